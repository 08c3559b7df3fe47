package align

import (
	"strings"
	"testing"

	"github.com/partree/partree/pkg/errors"
)

func TestReadFasta(t *testing.T) {
	in := `>taxon_a some description
ACGT
ACGT
>taxon_b
ACGTACGT
>taxon_c
TTTTTTTT
`
	a, err := ReadFasta(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadFasta: %v", err)
	}
	if a.NTaxa() != 3 || a.NSites() != 8 {
		t.Fatalf("got %d taxa x %d sites, want 3 x 8", a.NTaxa(), a.NSites())
	}
	if a.Names[0] != "taxon_a" {
		t.Errorf("name = %q, want description stripped", a.Names[0])
	}
	if string(a.Seqs[0]) != "ACGTACGT" {
		t.Errorf("wrapped sequence not joined: %q", a.Seqs[0])
	}
}

func TestReadFasta_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"data before header", "ACGT\n>a\nACGT\n"},
		{"ragged lengths", ">a\nACGT\n>b\nAC\n>c\nACGT\n"},
		{"too few sequences", ">a\nACGT\n>b\nACGT\n"},
		{"duplicate names", ">a\nAC\n>a\nAC\n>b\nAC\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadFasta(strings.NewReader(tt.in)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestReadPhylip(t *testing.T) {
	in := `3 8
a ACGT
ACGT
b ACGTACGT
c TTTT TTTT
`
	a, err := ReadPhylip(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadPhylip: %v", err)
	}
	if a.NTaxa() != 3 || a.NSites() != 8 {
		t.Fatalf("got %d taxa x %d sites, want 3 x 8", a.NTaxa(), a.NSites())
	}
	if string(a.Seqs[0]) != "ACGTACGT" {
		t.Errorf("continuation line not joined: %q", a.Seqs[0])
	}
	if string(a.Seqs[2]) != "TTTTTTTT" {
		t.Errorf("inline whitespace not removed: %q", a.Seqs[2])
	}
}

func TestReadPhylip_HeaderMismatch(t *testing.T) {
	in := "4 4\na ACGT\nb ACGT\nc ACGT\n"
	if _, err := ReadPhylip(strings.NewReader(in)); err == nil {
		t.Error("expected error for missing taxon")
	}
	if _, err := ReadPhylip(strings.NewReader("not a header\n")); err == nil {
		t.Error("expected error for bad header")
	}
}

func TestReadAuto(t *testing.T) {
	fasta := "\n  >a\nAC\n>b\nAC\n>c\nGT\n"
	a, err := ReadAuto(strings.NewReader(fasta))
	if err != nil {
		t.Fatalf("ReadAuto fasta: %v", err)
	}
	if a.NTaxa() != 3 {
		t.Errorf("fasta: %d taxa, want 3", a.NTaxa())
	}

	phylip := "3 2\na AC\nb AC\nc GT\n"
	a, err = ReadAuto(strings.NewReader(phylip))
	if err != nil {
		t.Fatalf("ReadAuto phylip: %v", err)
	}
	if a.NTaxa() != 3 {
		t.Errorf("phylip: %d taxa, want 3", a.NTaxa())
	}
}

func TestNewMatrix_Compression(t *testing.T) {
	a := &Alignment{
		Names: []string{"a", "b", "c"},
		Seqs: [][]byte{
			[]byte("AACA"),
			[]byte("CCGC"),
			[]byte("GGTG"),
		},
	}
	m, err := NewMatrix(a, DNA)
	if err != nil {
		t.Fatalf("NewMatrix: %v", err)
	}
	if m.NPatterns() != 2 {
		t.Fatalf("patterns = %d, want 2", m.NPatterns())
	}
	// Columns 1, 2 and 4 are identical.
	if m.Weights[0] != 3 {
		t.Errorf("first pattern weight = %d, want 3", m.Weights[0])
	}
	if m.TotalWeight() != 4 {
		t.Errorf("total weight = %d, want 4", m.TotalWeight())
	}
	if m.Contrast[0] != 0 {
		t.Error("contrast entry 0 must stay reserved")
	}
}

func TestNewMatrix_BadSymbol(t *testing.T) {
	a := &Alignment{
		Names: []string{"a", "b", "c"},
		Seqs:  [][]byte{[]byte("AZ"), []byte("AC"), []byte("AC")},
	}
	_, err := NewMatrix(a, DNA)
	if err == nil {
		t.Fatal("expected error for symbol outside the alphabet")
	}
	if errors.GetCode(err) != errors.ErrCodeInvalidAlignment {
		t.Errorf("code = %v, want ErrCodeInvalidAlignment", errors.GetCode(err))
	}
}

func TestSortedByWeight(t *testing.T) {
	a := &Alignment{
		Names: []string{"a", "b", "c"},
		Seqs: [][]byte{
			[]byte("ACCC"),
			[]byte("CAAA"),
			[]byte("GTTT"),
		},
	}
	m, err := NewMatrix(a, DNA)
	if err != nil {
		t.Fatalf("NewMatrix: %v", err)
	}
	s := m.SortedByWeight()
	for i := 1; i < s.NPatterns(); i++ {
		if s.Weights[i] > s.Weights[i-1] {
			t.Fatalf("weights not descending: %v", s.Weights)
		}
	}
	if s.Weights[0] != 3 {
		t.Errorf("heaviest pattern weight = %d, want 3", s.Weights[0])
	}
	// The original order is untouched.
	if m.Weights[0] != 1 {
		t.Errorf("source matrix reordered: %v", m.Weights)
	}
}

func TestSplitInformative(t *testing.T) {
	// Columns: constant, constant-via-ambiguity, autapomorphic (one change
	// on any topology), informative.
	a := &Alignment{
		Names: []string{"a", "b", "c", "d"},
		Seqs: [][]byte{
			[]byte("ANCA"),
			[]byte("AACA"),
			[]byte("AAGA"),
			[]byte("AAGC"),
		},
	}
	m, err := NewMatrix(a, DNA)
	if err != nil {
		t.Fatalf("NewMatrix: %v", err)
	}
	info, base := m.SplitInformative()
	if info.NPatterns() != 1 {
		t.Fatalf("informative patterns = %d, want 1", info.NPatterns())
	}
	if base != 1 {
		t.Errorf("base cost = %d, want 1 from the autapomorphic column", base)
	}
}

func TestDuplicateTaxa(t *testing.T) {
	a := &Alignment{
		Names: []string{"a", "b", "c", "d"},
		Seqs: [][]byte{
			[]byte("ACG"),
			[]byte("CCG"),
			[]byte("ACG"),
			[]byte("ACG"),
		},
	}
	m, err := NewMatrix(a, DNA)
	if err != nil {
		t.Fatalf("NewMatrix: %v", err)
	}
	dups := m.DuplicateTaxa()
	if len(dups) != 2 || dups[2] != 0 || dups[3] != 0 {
		t.Errorf("dups = %v, want {2:0, 3:0}", dups)
	}

	reduced, keep := m.WithoutTaxa([]int{2, 3})
	if reduced.NTaxa() != 2 {
		t.Fatalf("reduced taxa = %d, want 2", reduced.NTaxa())
	}
	if len(keep) != 2 || keep[0] != 0 || keep[1] != 1 {
		t.Errorf("keep = %v, want [0 1]", keep)
	}
}

func TestFingerprint(t *testing.T) {
	a := &Alignment{
		Names: []string{"a", "b", "c"},
		Seqs:  [][]byte{[]byte("AC"), []byte("AG"), []byte("AT")},
	}
	m1, err := NewMatrix(a, DNA)
	if err != nil {
		t.Fatalf("NewMatrix: %v", err)
	}
	m2, err := NewMatrix(a, DNA)
	if err != nil {
		t.Fatalf("NewMatrix: %v", err)
	}
	if m1.Fingerprint() != m2.Fingerprint() {
		t.Error("identical matrices hash differently")
	}
	if m1.Fingerprint() != m1.WithWeights([]int{1, 1}).Fingerprint() {
		t.Error("equal weight vectors should not change the hash")
	}
	if m1.Fingerprint() == m1.WithWeights([]int{2, 1}).Fingerprint() {
		t.Error("different weights must change the hash")
	}
}

func TestAlphabetMask(t *testing.T) {
	if m, ok := DNA.Mask('a'); !ok || m != 1 {
		t.Errorf("Mask('a') = %#x, %v; want 0x1, true", m, ok)
	}
	if m, ok := DNA.Mask('n'); !ok || m != 0xF {
		t.Errorf("Mask('n') = %#x, %v; want 0xF, true", m, ok)
	}
	if _, ok := DNA.Mask('Z'); ok {
		t.Error("Mask('Z') should be undefined")
	}
	if _, err := AlphabetByName("protein"); err == nil {
		t.Error("expected error for unknown alphabet")
	}
}
