package align

import (
	"strings"

	"github.com/partree/partree/pkg/errors"
)

// Alphabet maps observed sequence symbols to bitmasks over canonical
// character states. A symbol whose mask has a single bit set is unambiguous;
// multi-bit masks are ambiguity codes meaning "one of these states".
type Alphabet struct {
	Name    string
	States  int               // number of canonical states (bits in use)
	Symbols map[byte]uint32   // observed symbol -> state mask
}

// DNA is the nucleotide alphabet over four canonical states A, C, G, T with
// the full IUPAC ambiguity codes. Gaps and unknowns map to the union of all
// four states. Lowercase input is accepted by [Alphabet.Mask].
var DNA = Alphabet{
	Name:   "dna",
	States: 4,
	Symbols: map[byte]uint32{
		'A': maskA, 'C': maskC, 'G': maskG, 'T': maskT, 'U': maskT,
		'R': maskA | maskG,
		'Y': maskC | maskT,
		'S': maskC | maskG,
		'W': maskA | maskT,
		'K': maskG | maskT,
		'M': maskA | maskC,
		'B': maskC | maskG | maskT,
		'D': maskA | maskG | maskT,
		'H': maskA | maskC | maskT,
		'V': maskA | maskC | maskG,
		'N': maskAny, 'X': maskAny, '?': maskAny, '-': maskAny,
	},
}

const (
	maskA   uint32 = 1
	maskC   uint32 = 2
	maskG   uint32 = 4
	maskT   uint32 = 8
	maskAny uint32 = maskA | maskC | maskG | maskT
)

// Binary is a two-state alphabet for presence/absence or recoded data.
var Binary = Alphabet{
	Name:   "binary",
	States: 2,
	Symbols: map[byte]uint32{
		'0': 1, '1': 2,
		'?': 3, '-': 3,
	},
}

// AlphabetByName resolves an alphabet by its CLI name ("dna" or "binary").
func AlphabetByName(name string) (Alphabet, error) {
	switch strings.ToLower(name) {
	case "dna", "nt", "nucleotide":
		return DNA, nil
	case "binary", "01":
		return Binary, nil
	}
	return Alphabet{}, errors.New(errors.ErrCodeInvalidAlphabet,
		"unknown alphabet %q (must be one of: dna, binary)", name)
}

// Mask returns the state mask for symbol b, folding case. The second result
// is false for symbols the alphabet does not define.
func (a Alphabet) Mask(b byte) (uint32, bool) {
	if b >= 'a' && b <= 'z' {
		b -= 'a' - 'A'
	}
	m, ok := a.Symbols[b]
	return m, ok
}
