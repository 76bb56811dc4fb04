package fuzzy

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidPhrase is returned by Builder.Add for empty or non-lowercase phrases.
	ErrInvalidPhrase = errors.New("invalid phrase")

	// ErrCorruptIndex is returned when a snapshot cannot be turned back into an index.
	ErrCorruptIndex = errors.New("corrupt index")
)

// Index is a built, read-only trigram index over lowercase phrases.
// It is safe for concurrent use by multiple goroutines.
type Index struct {
	phrases   []string
	ids       map[string]int
	terms     [][]string
	originals [][]int
	trigrams  map[string][]int
}

// Builder accumulates phrases and produces an Index. A Builder is not safe
// for concurrent use.
type Builder struct {
	ix *Index
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{ix: newIndex()}
}

func newIndex() *Index {
	return &Index{
		ids:      make(map[string]int),
		trigrams: make(map[string][]int),
	}
}

// Add indexes phrase under originalIndex. A phrase seen before only gains
// another original index.
func (b *Builder) Add(phrase string, originalIndex int) error {
	if err := validatePhrase(phrase); err != nil {
		return err
	}

	ix := b.ix
	if id, ok := ix.ids[phrase]; ok {
		ix.originals[id] = append(ix.originals[id], originalIndex)
		return nil
	}

	id := len(ix.phrases)
	ix.ids[phrase] = id
	ix.phrases = append(ix.phrases, phrase)
	ix.originals = append(ix.originals, []int{originalIndex})
	ix.terms = append(ix.terms, strings.Fields(phrase))

	for _, tri := range trigrams(phrase) {
		ix.trigrams[tri] = append(ix.trigrams[tri], id)
	}
	return nil
}

// Len returns the number of distinct phrases added so far.
func (b *Builder) Len() int {
	return len(b.ix.phrases)
}

// Build returns the finished index and resets the builder.
func (b *Builder) Build() *Index {
	ix := b.ix
	b.ix = newIndex()
	return ix
}

func validatePhrase(phrase string) error {
	if strings.TrimSpace(phrase) == "" {
		return fmt.Errorf("%w: empty phrase", ErrInvalidPhrase)
	}
	// Compare against the query-side folding so titlecase runes are caught too.
	if strings.ToLower(phrase) != phrase {
		return fmt.Errorf("%w: %q is not lowercase", ErrInvalidPhrase, phrase)
	}
	return nil
}

// Len returns the number of distinct phrases.
func (ix *Index) Len() int {
	return len(ix.phrases)
}

// Stats describes the size of an index.
type Stats struct {
	Phrases  int `json:"phrases"`
	Records  int `json:"records"`
	Trigrams int `json:"trigrams"`
	Postings int `json:"postings"`
}

// Stats returns size counters for the index.
func (ix *Index) Stats() Stats {
	s := Stats{
		Phrases:  len(ix.phrases),
		Trigrams: len(ix.trigrams),
	}
	for _, o := range ix.originals {
		s.Records += len(o)
	}
	for _, bucket := range ix.trigrams {
		s.Postings += len(bucket)
	}
	return s
}

// OriginalIndices returns a copy of the original indices recorded for phrase.
func (ix *Index) OriginalIndices(phrase string) ([]int, bool) {
	id, ok := ix.ids[phrase]
	if !ok {
		return nil, false
	}
	return append([]int(nil), ix.originals[id]...), true
}

// trigrams returns every run of three consecutive runes in s, in order.
func trigrams(s string) []string {
	runes := []rune(s)
	if len(runes) < 3 {
		return nil
	}
	out := make([]string, 0, len(runes)-2)
	for i := 0; i+3 <= len(runes); i++ {
		out = append(out, string(runes[i:i+3]))
	}
	return out
}
