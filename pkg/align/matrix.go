package align

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math/bits"
	"sort"

	"github.com/partree/partree/pkg/errors"
)

// Matrix is the encoded character matrix: the compressed, weighted form of
// an alignment that the parsimony engine scores trees against.
//
// Taxon i (0-based) corresponds to tip id i+1 in any tree the matrix is
// scored against; the taxon sets must match exactly. Codes[i][p] is a
// 1-based index into Contrast giving the state mask observed for taxon i at
// site pattern p. Contrast[0] is the reserved zero entry, so code 0 never
// appears in Codes.
//
// A Matrix is immutable once built; the With* methods derive new matrices.
type Matrix struct {
	Taxa     []string
	Codes    [][]uint8 // [taxon][pattern] -> contrast index
	Weights  []int     // one positive weight per pattern
	Contrast []uint32  // contrast table, entry 0 reserved as zero
	States   int       // number of canonical states m
}

// NewMatrix compresses an alignment into weighted site patterns under the
// given alphabet. Identical columns collapse into one pattern whose weight
// counts the collapsed columns; patterns keep first-appearance order.
func NewMatrix(a *Alignment, ab Alphabet) (*Matrix, error) {
	if err := a.validate(); err != nil {
		return nil, err
	}
	m := &Matrix{
		Taxa:     append([]string(nil), a.Names...),
		Codes:    make([][]uint8, a.NTaxa()),
		Contrast: []uint32{0},
		States:   ab.States,
	}
	codeOf := make(map[uint32]uint8)
	symCode := func(taxon int, site int) (uint8, error) {
		b := a.Seqs[taxon][site]
		mask, ok := ab.Mask(b)
		if !ok {
			return 0, errors.New(errors.ErrCodeInvalidAlignment,
				"symbol %q in sequence %q is not in the %s alphabet", string(b), a.Names[taxon], ab.Name)
		}
		c, ok := codeOf[mask]
		if !ok {
			if len(m.Contrast) > 255 {
				return 0, errors.New(errors.ErrCodeInvalidAlignment, "more than 255 distinct symbols")
			}
			c = uint8(len(m.Contrast))
			m.Contrast = append(m.Contrast, mask)
			codeOf[mask] = c
		}
		return c, nil
	}

	patIndex := make(map[string]int)
	col := make([]uint8, a.NTaxa())
	for site := 0; site < a.NSites(); site++ {
		for taxon := range a.Seqs {
			c, err := symCode(taxon, site)
			if err != nil {
				return nil, err
			}
			col[taxon] = c
		}
		key := string(col)
		if p, ok := patIndex[key]; ok {
			m.Weights[p]++
			continue
		}
		patIndex[key] = len(m.Weights)
		m.Weights = append(m.Weights, 1)
		for taxon, c := range col {
			m.Codes[taxon] = append(m.Codes[taxon], c)
		}
	}
	return m, nil
}

// NTaxa returns the number of taxa.
func (m *Matrix) NTaxa() int { return len(m.Taxa) }

// NPatterns returns the number of site patterns.
func (m *Matrix) NPatterns() int { return len(m.Weights) }

// TotalWeight returns the number of original alignment columns represented.
func (m *Matrix) TotalWeight() int {
	total := 0
	for _, w := range m.Weights {
		total += w
	}
	return total
}

// clone copies the matrix so derived forms never alias the original.
func (m *Matrix) clone() *Matrix {
	out := &Matrix{
		Taxa:     append([]string(nil), m.Taxa...),
		Codes:    make([][]uint8, len(m.Codes)),
		Weights:  append([]int(nil), m.Weights...),
		Contrast: append([]uint32(nil), m.Contrast...),
		States:   m.States,
	}
	for i, row := range m.Codes {
		out.Codes[i] = append([]uint8(nil), row...)
	}
	return out
}

// WithWeights returns a matrix sharing codes with m but carrying different
// pattern weights (used by the ratchet's perturbed rounds). Weights of zero
// are allowed there; len(w) must match the pattern count.
func (m *Matrix) WithWeights(w []int) *Matrix {
	out := *m
	out.Weights = append([]int(nil), w...)
	return &out
}

// SortedByWeight returns a matrix with patterns reordered by descending
// weight (stable, so equal weights keep first-appearance order). Putting
// heavy patterns first lets batched score comparisons abort early.
func (m *Matrix) SortedByWeight() *Matrix {
	idx := make([]int, m.NPatterns())
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return m.Weights[idx[a]] > m.Weights[idx[b]] })
	return m.selectPatterns(idx)
}

// WithoutTaxa returns a matrix with the given 0-based taxon indices removed
// and the remainder re-indexed densely, plus the mapping from new index to
// old. Patterns are not re-deduplicated.
func (m *Matrix) WithoutTaxa(drop []int) (*Matrix, []int) {
	dropped := make(map[int]bool, len(drop))
	for _, d := range drop {
		dropped[d] = true
	}
	out := &Matrix{
		Contrast: append([]uint32(nil), m.Contrast...),
		Weights:  append([]int(nil), m.Weights...),
		States:   m.States,
	}
	keep := make([]int, 0, m.NTaxa()-len(drop))
	for i := range m.Taxa {
		if dropped[i] {
			continue
		}
		keep = append(keep, i)
		out.Taxa = append(out.Taxa, m.Taxa[i])
		out.Codes = append(out.Codes, append([]uint8(nil), m.Codes[i]...))
	}
	return out, keep
}

// DuplicateTaxa finds taxa whose full character pattern exactly duplicates
// an earlier taxon. The result maps the 0-based index of each duplicate to
// the index of its first occurrence. Duplicates contribute nothing to
// topology search and are reattached as zero-cost siblings afterwards.
func (m *Matrix) DuplicateTaxa() map[int]int {
	first := make(map[string]int, m.NTaxa())
	dups := make(map[int]int)
	for i, row := range m.Codes {
		key := string(row)
		if j, ok := first[key]; ok {
			dups[i] = j
			continue
		}
		first[key] = i
	}
	return dups
}

// SplitInformative separates parsimony-informative patterns from patterns
// whose cost is the same on every topology. It returns the informative
// matrix and the constant weighted cost contributed by the dropped patterns,
// which must be added back to any score reported for the reduced matrix.
//
// A pattern is dropped when it is provably constant-cost:
//   - the intersection of all taxon masks is non-empty (cost 0 anywhere), or
//   - all masks are unambiguous and at most one state occurs in two or more
//     taxa (each minority taxon forces one change on every topology).
//
// Ambiguous non-constant patterns are conservatively kept.
func (m *Matrix) SplitInformative() (*Matrix, int) {
	base := 0
	var keep []int
	counts := make([]int, m.States+1)
	for p := 0; p < m.NPatterns(); p++ {
		inter := ^uint32(0)
		ambiguous := false
		for i := range counts {
			counts[i] = 0
		}
		for taxon := range m.Codes {
			mask := m.Contrast[m.Codes[taxon][p]]
			inter &= mask
			if bits.OnesCount32(mask) == 1 {
				counts[bits.TrailingZeros32(mask)]++
			} else {
				ambiguous = true
			}
		}
		if inter != 0 {
			continue // constant pattern, cost 0
		}
		if ambiguous {
			keep = append(keep, p)
			continue
		}
		repeated, max, total := 0, 0, 0
		for _, c := range counts {
			total += c
			if c >= 2 {
				repeated++
			}
			if c > max {
				max = c
			}
		}
		if repeated >= 2 {
			keep = append(keep, p)
			continue
		}
		// Uninformative: every non-majority taxon costs one change on any tree.
		base += (total - max) * m.Weights[p]
	}
	return m.selectPatterns(keep), base
}

// selectPatterns builds a matrix containing the given pattern indices, in order.
func (m *Matrix) selectPatterns(idx []int) *Matrix {
	out := &Matrix{
		Taxa:     append([]string(nil), m.Taxa...),
		Codes:    make([][]uint8, len(m.Codes)),
		Weights:  make([]int, len(idx)),
		Contrast: append([]uint32(nil), m.Contrast...),
		States:   m.States,
	}
	for i, p := range idx {
		out.Weights[i] = m.Weights[p]
	}
	for taxon, row := range m.Codes {
		sel := make([]uint8, len(idx))
		for i, p := range idx {
			sel[i] = row[p]
		}
		out.Codes[taxon] = sel
	}
	return out
}

// Fingerprint returns a sha256 content hash of the matrix, used as a cache
// key component. Two matrices built from the same alignment and alphabet
// hash identically.
func (m *Matrix) Fingerprint() string {
	h := sha256.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(m.States))
	h.Write(buf[:])
	for _, name := range m.Taxa {
		h.Write([]byte(name))
		h.Write([]byte{0})
	}
	for _, mask := range m.Contrast {
		binary.LittleEndian.PutUint64(buf[:], uint64(mask))
		h.Write(buf[:])
	}
	for _, w := range m.Weights {
		binary.LittleEndian.PutUint64(buf[:], uint64(w))
		h.Write(buf[:])
	}
	for _, row := range m.Codes {
		h.Write(row)
	}
	return hex.EncodeToString(h.Sum(nil))
}
