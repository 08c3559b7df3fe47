package newick

import (
	"testing"

	"github.com/partree/partree/pkg/errors"
)

var taxa = []string{"alpha", "beta", "gamma", "delta"}

func TestParse_Rooted(t *testing.T) {
	tr, err := Parse("((alpha,beta),(gamma,delta));", taxa)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := tr.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if tr.Sibling(1) != 2 {
		t.Errorf("alpha's sibling = %d, want beta (2)", tr.Sibling(1))
	}
	if tr.Sibling(3) != 4 {
		t.Errorf("gamma's sibling = %d, want delta (4)", tr.Sibling(3))
	}
}

func TestParse_BranchLengthsAndLabels(t *testing.T) {
	tr, err := Parse("((alpha:0.1,beta:0.2)90:0.05,(gamma:1e-3,delta:2)0.8);", taxa)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := tr.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestParse_Multifurcation(t *testing.T) {
	// Unrooted convention: trifurcating root.
	tr, err := Parse("(alpha,beta,(gamma,delta));", taxa)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := tr.Validate(); err != nil {
		t.Fatalf("Validate after resolution: %v", err)
	}

	// A four-way polytomy resolves too.
	tr, err = Parse("(alpha,beta,gamma,delta);", taxa)
	if err != nil {
		t.Fatalf("Parse polytomy: %v", err)
	}
	if err := tr.Validate(); err != nil {
		t.Fatalf("Validate after resolution: %v", err)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code errors.Code
	}{
		{"unknown taxon", "((alpha,beta),(gamma,epsilon));", errors.ErrCodeTaxonMismatch},
		{"missing taxon", "((alpha,beta),gamma);", errors.ErrCodeTaxonMismatch},
		{"repeated taxon", "((alpha,alpha),(gamma,delta));", errors.ErrCodeInvalidNewick},
		{"garbage", "((alpha,beta,", errors.ErrCodeInvalidNewick},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src, taxa)
			if err == nil {
				t.Fatal("expected an error")
			}
			if got := errors.GetCode(err); got != tt.code {
				t.Errorf("code = %v, want %v", got, tt.code)
			}
		})
	}
}

func TestRoundtrip(t *testing.T) {
	src := "((alpha,beta),(gamma,delta));"
	tr, err := Parse(src, taxa)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	out, err := Write(tr, taxa)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	back, err := Parse(out, taxa)
	if err != nil {
		t.Fatalf("Parse roundtrip of %q: %v", out, err)
	}
	for tip := 1; tip <= 4; tip++ {
		if tr.Sibling(tip) != back.Sibling(tip) {
			t.Errorf("tip %d sibling changed: %d -> %d", tip, tr.Sibling(tip), back.Sibling(tip))
		}
	}
}

func TestWrite_TaxonCountMismatch(t *testing.T) {
	tr, err := Parse("((alpha,beta),(gamma,delta));", taxa)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := Write(tr, taxa[:3]); err == nil {
		t.Error("expected error for short taxon list")
	}
}
