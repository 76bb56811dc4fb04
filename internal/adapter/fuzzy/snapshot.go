package fuzzy

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// Pair is a key/value tuple encoded as a two-element JSON array.
type Pair[K, V any] struct {
	Key   K
	Value V
}

func (p Pair[K, V]) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.Key, p.Value})
}

func (p *Pair[K, V]) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("pair has %d elements, want 2", len(raw))
	}
	if err := json.Unmarshal(raw[0], &p.Key); err != nil {
		return fmt.Errorf("pair key: %w", err)
	}
	if err := json.Unmarshal(raw[1], &p.Value); err != nil {
		return fmt.Errorf("pair value: %w", err)
	}
	return nil
}

// Snapshot is the flat, transportable form of an Index.
type Snapshot struct {
	Phrases   []string                 `json:"phrases"`
	Trigrams  []Pair[string, []string] `json:"trigrams"`
	Terms     []Pair[string, []string] `json:"terms"`
	Originals []Pair[string, []int]    `json:"originals"`
}

// Snapshot flattens the index. Trigrams are sorted; everything else follows
// the order phrases were first added.
func (ix *Index) Snapshot() Snapshot {
	s := Snapshot{
		Phrases:   append(make([]string, 0, len(ix.phrases)), ix.phrases...),
		Trigrams:  make([]Pair[string, []string], 0, len(ix.trigrams)),
		Terms:     make([]Pair[string, []string], 0, len(ix.phrases)),
		Originals: make([]Pair[string, []int], 0, len(ix.phrases)),
	}

	keys := make([]string, 0, len(ix.trigrams))
	for tri := range ix.trigrams {
		keys = append(keys, tri)
	}
	sort.Strings(keys)
	for _, tri := range keys {
		bucket := ix.trigrams[tri]
		phrases := make([]string, len(bucket))
		for i, id := range bucket {
			phrases[i] = ix.phrases[id]
		}
		s.Trigrams = append(s.Trigrams, Pair[string, []string]{Key: tri, Value: phrases})
	}

	for id, phrase := range ix.phrases {
		s.Terms = append(s.Terms, Pair[string, []string]{
			Key:   phrase,
			Value: append([]string(nil), ix.terms[id]...),
		})
		s.Originals = append(s.Originals, Pair[string, []int]{
			Key:   phrase,
			Value: append([]int(nil), ix.originals[id]...),
		})
	}
	return s
}

// FromSnapshot rebuilds an index from s without re-deriving terms or
// trigrams. Any structural problem yields an error wrapping ErrCorruptIndex.
func FromSnapshot(s Snapshot) (*Index, error) {
	ix := newIndex()
	ix.phrases = make([]string, 0, len(s.Phrases))
	ix.terms = make([][]string, len(s.Phrases))
	ix.originals = make([][]int, len(s.Phrases))

	for _, phrase := range s.Phrases {
		if err := validatePhrase(phrase); err != nil {
			return nil, corrupt("phrase list: %v", err)
		}
		if _, dup := ix.ids[phrase]; dup {
			return nil, corrupt("duplicate phrase %q", phrase)
		}
		ix.ids[phrase] = len(ix.phrases)
		ix.phrases = append(ix.phrases, phrase)
	}

	if len(s.Terms) != len(ix.phrases) {
		return nil, corrupt("%d term entries for %d phrases", len(s.Terms), len(ix.phrases))
	}
	for _, p := range s.Terms {
		id, ok := ix.ids[p.Key]
		if !ok {
			return nil, corrupt("terms for unknown phrase %q", p.Key)
		}
		if ix.terms[id] != nil {
			return nil, corrupt("duplicate terms for %q", p.Key)
		}
		ix.terms[id] = append(make([]string, 0, len(p.Value)), p.Value...)
	}

	if len(s.Originals) != len(ix.phrases) {
		return nil, corrupt("%d original entries for %d phrases", len(s.Originals), len(ix.phrases))
	}
	for _, p := range s.Originals {
		id, ok := ix.ids[p.Key]
		if !ok {
			return nil, corrupt("original indices for unknown phrase %q", p.Key)
		}
		if ix.originals[id] != nil {
			return nil, corrupt("duplicate original indices for %q", p.Key)
		}
		if len(p.Value) == 0 {
			return nil, corrupt("empty original indices for %q", p.Key)
		}
		ix.originals[id] = append([]int(nil), p.Value...)
	}

	for _, p := range s.Trigrams {
		if utf8.RuneCountInString(p.Key) != 3 {
			return nil, corrupt("trigram %q is not three characters", p.Key)
		}
		if _, dup := ix.trigrams[p.Key]; dup {
			return nil, corrupt("duplicate trigram %q", p.Key)
		}
		bucket := make([]int, 0, len(p.Value))
		for _, phrase := range p.Value {
			id, ok := ix.ids[phrase]
			if !ok {
				return nil, corrupt("trigram %q references unknown phrase %q", p.Key, phrase)
			}
			if !strings.Contains(phrase, p.Key) {
				return nil, corrupt("trigram %q does not occur in %q", p.Key, phrase)
			}
			bucket = append(bucket, id)
		}
		ix.trigrams[p.Key] = bucket
	}

	return ix, nil
}

// Encode serializes the index snapshot as JSON.
func (ix *Index) Encode() ([]byte, error) {
	return json.Marshal(ix.Snapshot())
}

// Decode parses JSON produced by Encode and rebuilds the index.
func Decode(data []byte) (*Index, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, corrupt("decode snapshot: %v", err)
	}
	for _, key := range snapshotKeys {
		raw, ok := fields[key]
		if !ok || string(raw) == "null" {
			return nil, corrupt("snapshot has no %q", key)
		}
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, corrupt("decode snapshot: %v", err)
	}
	return FromSnapshot(s)
}

var snapshotKeys = []string{"phrases", "trigrams", "terms", "originals"}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorruptIndex, fmt.Sprintf(format, args...))
}
