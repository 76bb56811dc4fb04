package analyzer

import (
	"strings"
	"unicode"
)

// Normalizer turns raw display text into the lowercase, single-spaced form
// the phrase index accepts.
type Normalizer struct {
	strip map[rune]struct{}
}

// NewNormalizer creates a Normalizer that also removes every rune in stripChars.
func NewNormalizer(stripChars string) *Normalizer {
	strip := make(map[rune]struct{}, len(stripChars))
	for _, r := range stripChars {
		strip[r] = struct{}{}
	}
	return &Normalizer{strip: strip}
}

// Normalize lowercases text, drops stripped and control runes, collapses
// whitespace runs to one space and trims the ends.
func (n *Normalizer) Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	pendingSpace := false

	for _, r := range text {
		if _, skip := n.strip[r]; skip {
			continue
		}
		if unicode.IsSpace(r) {
			pendingSpace = b.Len() > 0
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(unicode.ToLower(r))
	}

	return b.String()
}

// Terms splits normalized text into whitespace-delimited terms.
func (n *Normalizer) Terms(text string) []string {
	return strings.Fields(n.Normalize(text))
}
