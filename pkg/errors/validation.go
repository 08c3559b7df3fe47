package errors

import (
	"strings"
	"unicode"
)

// ValidateTaxonName validates a taxon identifier read from an alignment or
// tree file. Names end up in cache keys, Newick output and DOT labels, so
// the rules are intentionally conservative:
//   - No empty names
//   - No control characters
//   - No Newick metacharacters ( ) , : ;
//   - Maximum length of 256 characters
func ValidateTaxonName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidAlignment, "taxon name cannot be empty")
	}
	if len(name) > 256 {
		return New(ErrCodeInvalidAlignment, "taxon name too long (max 256 characters)")
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidAlignment, "taxon name contains control characters")
		}
	}
	if strings.ContainsAny(name, "(),:;") {
		return New(ErrCodeInvalidAlignment, "taxon name %q contains Newick metacharacters", name)
	}
	return nil
}
