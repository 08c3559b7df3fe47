package pipeline

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/partree/partree/pkg/cache"
	"github.com/partree/partree/pkg/phylo/newick"
)

const quartetFasta = `>a
AATT
>b
AATT
>c
GGTT
>d
GGAA
`

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func TestExecute(t *testing.T) {
	runner := NewRunner(nil, nil, quietLogger())
	res, err := runner.Execute(context.Background(), Options{
		Alignment: []byte(quartetFasta),
		Formats:   []string{FormatNewick, FormatDOT},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if res.Score != 4 {
		t.Errorf("score = %d, want 4", res.Score)
	}
	if res.Newick == "" {
		t.Fatal("empty newick result")
	}
	tr, err := newick.Parse(res.Newick, res.Taxa)
	if err != nil {
		t.Fatalf("result newick does not parse: %v", err)
	}
	if tr.Sibling(1) != 2 && tr.Sibling(3) != 4 {
		t.Errorf("expected a+b or c+d as cherries in %s", res.Newick)
	}

	if _, ok := res.Artifacts[FormatNewick]; !ok {
		t.Error("missing newick artifact")
	}
	dot, ok := res.Artifacts[FormatDOT]
	if !ok {
		t.Fatal("missing dot artifact")
	}
	if !strings.Contains(string(dot), "digraph") {
		t.Error("dot artifact is not a DOT document")
	}

	if res.Stats.Taxa != 4 || res.Stats.Sites != 4 {
		t.Errorf("stats = %d taxa, %d sites, want 4, 4", res.Stats.Taxa, res.Stats.Sites)
	}
	if res.CacheInfo.SearchHit {
		t.Error("first run should not hit the search cache")
	}
	if res.RunID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("run id not assigned")
	}
}

func TestExecute_SearchCache(t *testing.T) {
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	runner := NewRunner(fc, nil, quietLogger())
	opts := Options{Alignment: []byte(quartetFasta)}

	first, err := runner.Execute(context.Background(), opts)
	if err != nil {
		t.Fatalf("first Execute: %v", err)
	}
	second, err := runner.Execute(context.Background(), opts)
	if err != nil {
		t.Fatalf("second Execute: %v", err)
	}

	if !second.CacheInfo.SearchHit {
		t.Error("second run should hit the search cache")
	}
	if second.Newick != first.Newick || second.Score != first.Score {
		t.Errorf("cached result differs: %s (%d) vs %s (%d)",
			second.Newick, second.Score, first.Newick, first.Score)
	}

	third, err := runner.Execute(context.Background(), Options{
		Alignment: []byte(quartetFasta),
		Refresh:   true,
	})
	if err != nil {
		t.Fatalf("refresh Execute: %v", err)
	}
	if third.CacheInfo.SearchHit {
		t.Error("refresh run should bypass the cache")
	}
}

func TestExecute_StartNewick(t *testing.T) {
	runner := NewRunner(nil, nil, quietLogger())
	res, err := runner.Execute(context.Background(), Options{
		Alignment:   []byte(quartetFasta),
		StartNewick: "((a,c),(b,d));",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Score != 4 {
		t.Errorf("score = %d, want 4 after climbing from a worse start", res.Score)
	}
}

func TestExecute_BadStartNewick(t *testing.T) {
	runner := NewRunner(nil, nil, quietLogger())
	_, err := runner.Execute(context.Background(), Options{
		Alignment:   []byte(quartetFasta),
		StartNewick: "((a,c),(b,x));",
	})
	if err == nil {
		t.Fatal("expected error for unknown taxon in start tree")
	}
}

func TestOptions_ValidateAndSetDefaults(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"no input", Options{}, true},
		{"path only", Options{AlignmentPath: "x.fasta"}, false},
		{"bytes only", Options{Alignment: []byte(">a\nAC\n")}, false},
		{"bad format", Options{Alignment: []byte("x"), Format: "nexus"}, true},
		{"bad output format", Options{Alignment: []byte("x"), Formats: []string{"pdf"}}, true},
		{"bad mode", Options{Alignment: []byte("x"), Mode: "tbr"}, true},
		{"bad strength", Options{Alignment: []byte("x"), PerturbStrength: 1.5}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.ValidateAndSetDefaults()
			if (err != nil) != tt.wantErr {
				t.Errorf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				if tt.opts.Format == "" || tt.opts.Mode == "" {
					t.Error("defaults not applied")
				}
				if len(tt.opts.Formats) == 0 {
					t.Error("default output format not applied")
				}
			}
		})
	}
}

func TestArtifactExtension(t *testing.T) {
	if got := ArtifactExtension(FormatNewick); got != "nwk" {
		t.Errorf("newick extension = %q, want nwk", got)
	}
	if got := ArtifactExtension(FormatSVG); got != "svg" {
		t.Errorf("svg extension = %q, want svg", got)
	}
}
