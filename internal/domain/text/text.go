// Package text holds the normalization and tokenization rules shared by the
// lexical index and the field similarity engine.
package text

import (
	"strings"
	"unicode"
)

// allowedPunct is the punctuation that survives normalization.
const allowedPunct = ".,!?()-"

// Normalize lowercases s, drops characters outside letters (any script),
// digits and basic punctuation, and collapses whitespace runs to one space.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	pendingSpace := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = b.Len() > 0
			continue
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			r = unicode.ToLower(r)
		case strings.ContainsRune(allowedPunct, r):
		default:
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// IsMeaningless reports whether s carries no usable signal: empty after
// trimming, or at most two characters none of which is a letter or digit.
func IsMeaningless(s string) bool {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return true
	}
	runes := []rune(trimmed)
	if len(runes) > 2 {
		return false
	}
	for _, r := range runes {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// Tokenize normalizes s and splits it into letter/digit runs.
func Tokenize(s string) []string {
	return strings.FieldsFunc(Normalize(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// TokenSet is a set of normalized tokens.
type TokenSet map[string]struct{}

// NewTokenSet tokenizes s into a set.
func NewTokenSet(s string) TokenSet {
	tokens := Tokenize(s)
	set := make(TokenSet, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// Jaccard returns |a∩b| / |a∪b|. Two empty sets have similarity 0.
func Jaccard(a, b TokenSet) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for t := range small {
		if _, ok := large[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// NonSpaceLen counts the non-whitespace runes of s.
func NonSpaceLen(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
