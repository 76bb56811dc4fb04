package domain

import "errors"

// Record is one row of a coding standard: a code and one of its display
// phrases (preferred term, synonym or alias).
type Record struct {
	Position int    `json:"position"`
	Code     string `json:"code"`
	Phrase   string `json:"phrase"`
	Kind     string `json:"kind,omitempty"`
	Source   string `json:"source,omitempty"`
}

const (
	KindTerm    = "term"
	KindSynonym = "synonym"
	KindAlias   = "alias"
)

// Match is a ranked phrase with the records it came from.
type Match struct {
	Phrase    string   `json:"phrase"`
	Score     int      `json:"score"`
	Positions []int    `json:"original_indices"`
	Codes     []string `json:"codes,omitempty"`
}

type Stats struct {
	Records  int `json:"records"`
	Phrases  int `json:"phrases"`
	Trigrams int `json:"trigrams"`
	Postings int `json:"postings"`
	Skipped  int `json:"skipped"`
}

// ErrRecordNotFound is returned by record stores for unknown positions.
var ErrRecordNotFound = errors.New("record not found")
