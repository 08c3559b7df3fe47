package align

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/partree/partree/pkg/errors"
)

// Alignment holds raw, uncompressed sequence data: one equal-length
// sequence per taxon, in file order.
type Alignment struct {
	Names []string
	Seqs  [][]byte
}

// NTaxa returns the number of sequences.
func (a *Alignment) NTaxa() int { return len(a.Names) }

// NSites returns the alignment length, 0 for an empty alignment.
func (a *Alignment) NSites() int {
	if len(a.Seqs) == 0 {
		return 0
	}
	return len(a.Seqs[0])
}

// validate checks name uniqueness and equal sequence lengths.
func (a *Alignment) validate() error {
	if len(a.Names) < 3 {
		return errors.New(errors.ErrCodeInvalidAlignment,
			"alignment has %d sequences, need at least 3", len(a.Names))
	}
	seen := make(map[string]bool, len(a.Names))
	for i, name := range a.Names {
		if err := errors.ValidateTaxonName(name); err != nil {
			return err
		}
		if seen[name] {
			return errors.New(errors.ErrCodeInvalidAlignment, "duplicate taxon name %q", name)
		}
		seen[name] = true
		if len(a.Seqs[i]) != len(a.Seqs[0]) {
			return errors.New(errors.ErrCodeInvalidAlignment,
				"sequence %q has length %d, want %d", name, len(a.Seqs[i]), len(a.Seqs[0]))
		}
	}
	if a.NSites() == 0 {
		return errors.New(errors.ErrCodeInvalidAlignment, "alignment has no sites")
	}
	return nil
}

// ReadFasta parses a FASTA alignment. Sequence lines may be wrapped;
// everything after the first whitespace in a header is ignored.
func ReadFasta(r io.Reader) (*Alignment, error) {
	a := &Alignment{}
	var cur []byte
	flush := func() {
		if len(a.Names) > len(a.Seqs) {
			a.Seqs = append(a.Seqs, cur)
			cur = nil
		}
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			flush()
			name := string(line[1:])
			if i := strings.IndexAny(name, " \t"); i >= 0 {
				name = name[:i]
			}
			a.Names = append(a.Names, name)
			continue
		}
		if len(a.Names) == 0 {
			return nil, errors.New(errors.ErrCodeInvalidFormat, "FASTA data before first header")
		}
		cur = append(cur, line...)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "read FASTA")
	}
	flush()
	if err := a.validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// ReadPhylip parses a sequential PHYLIP alignment: a header line with taxon
// and site counts, then one "name sequence" record per taxon (the sequence
// may continue on following lines until the declared length is reached).
func ReadPhylip(r io.Reader) (*Alignment, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	if !sc.Scan() {
		return nil, errors.New(errors.ErrCodeInvalidFormat, "empty PHYLIP input")
	}
	header := strings.Fields(sc.Text())
	if len(header) != 2 {
		return nil, errors.New(errors.ErrCodeInvalidFormat, "bad PHYLIP header %q", sc.Text())
	}
	nTaxa, err1 := strconv.Atoi(header[0])
	nSites, err2 := strconv.Atoi(header[1])
	if err1 != nil || err2 != nil || nTaxa < 1 || nSites < 1 {
		return nil, errors.New(errors.ErrCodeInvalidFormat, "bad PHYLIP header %q", sc.Text())
	}

	a := &Alignment{}
	var cur []byte
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if len(a.Names) == 0 || len(cur) >= nSites {
			if len(a.Names) > 0 {
				a.Seqs = append(a.Seqs, cur)
			}
			if len(a.Names) == nTaxa {
				break
			}
			fields := strings.Fields(line)
			a.Names = append(a.Names, fields[0])
			cur = []byte(strings.Join(fields[1:], ""))
			continue
		}
		cur = append(cur, []byte(strings.Join(strings.Fields(line), ""))...)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "read PHYLIP")
	}
	if len(a.Names) > len(a.Seqs) {
		a.Seqs = append(a.Seqs, cur)
	}
	if len(a.Names) != nTaxa {
		return nil, errors.New(errors.ErrCodeInvalidFormat,
			"PHYLIP header declares %d taxa, found %d", nTaxa, len(a.Names))
	}
	for i, s := range a.Seqs {
		if len(s) != nSites {
			return nil, errors.New(errors.ErrCodeInvalidFormat,
				"sequence %q has %d sites, header declares %d", a.Names[i], len(s), nSites)
		}
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// ReadAuto sniffs the format from the first non-blank byte: '>' means
// FASTA, anything else is tried as PHYLIP.
func ReadAuto(r io.Reader) (*Alignment, error) {
	br := bufio.NewReader(r)
	for {
		b, err := br.Peek(1)
		if err != nil {
			return nil, errors.New(errors.ErrCodeInvalidFormat, "empty alignment input")
		}
		if b[0] == ' ' || b[0] == '\n' || b[0] == '\r' || b[0] == '\t' {
			br.ReadByte()
			continue
		}
		if b[0] == '>' {
			return ReadFasta(br)
		}
		return ReadPhylip(br)
	}
}
