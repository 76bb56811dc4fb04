package fuzzy

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// DefaultMaxResults is the coverage bound used when callers have no preference.
const DefaultMaxResults = 25

// termWeight makes one strong token match outrank any whole-string similarity.
const termWeight = 64

// TermScoring selects how the per-term part of a score is computed.
type TermScoring int

const (
	// TermScoringTokens sums, over each query token, the distance to the
	// closest phrase term.
	TermScoringTokens TermScoring = iota
	// TermScoringWhole uses the distance between the whole query and the
	// closest phrase term.
	TermScoringWhole
)

func (t TermScoring) String() string {
	switch t {
	case TermScoringWhole:
		return "whole"
	default:
		return "tokens"
	}
}

// ParseTermScoring parses "tokens" or "whole". The empty string selects tokens.
func ParseTermScoring(s string) (TermScoring, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "tokens":
		return TermScoringTokens, nil
	case "whole":
		return TermScoringWhole, nil
	default:
		return TermScoringTokens, fmt.Errorf("unknown term scoring %q", s)
	}
}

// SearchOptions tunes a single query.
type SearchOptions struct {
	// MaxResults bounds the result list by the total number of original
	// indices it covers. Values <= 0 yield no results.
	MaxResults int
	// MaxCandidates caps how many phrases are scored. Zero means no cap.
	MaxCandidates int
	TermScoring   TermScoring
}

// SearchResult is one ranked phrase. Lower scores are better.
type SearchResult struct {
	Phrase          string `json:"phrase"`
	Score           int    `json:"score"`
	OriginalIndices []int  `json:"original_indices"`
}

// Find returns the phrases closest to query, best first, using default
// term scoring and no candidate cap.
func (ix *Index) Find(query string, maxResults int) []SearchResult {
	return ix.Search(query, SearchOptions{MaxResults: maxResults})
}

// Search is Find with explicit options.
func (ix *Index) Search(query string, opts SearchOptions) []SearchResult {
	query = strings.ToLower(query)
	queryTrigrams := trigrams(query)
	if len(queryTrigrams) == 0 || opts.MaxResults <= 0 {
		return []SearchResult{}
	}

	sc := newScorer(query, opts.TermScoring)
	rk := newRanker(opts.MaxResults)
	visited := make(map[int]struct{})
	seen := make(map[string]struct{}, len(queryTrigrams))
	scored := 0

	for _, tri := range queryTrigrams {
		if _, dup := seen[tri]; dup {
			continue
		}
		seen[tri] = struct{}{}

		for _, id := range ix.trigrams[tri] {
			if _, ok := visited[id]; ok {
				continue
			}
			if opts.MaxCandidates > 0 && scored >= opts.MaxCandidates {
				return rk.results
			}
			visited[id] = struct{}{}
			scored++

			score := sc.score(ix.phrases[id], ix.terms[id])
			if rk.prunes(score) {
				continue
			}
			rk.insert(SearchResult{
				Phrase:          ix.phrases[id],
				Score:           score,
				OriginalIndices: append([]int(nil), ix.originals[id]...),
			})
		}
	}

	return rk.results
}

type scorer struct {
	query  string
	tokens []string
	mode   TermScoring
}

func newScorer(query string, mode TermScoring) *scorer {
	return &scorer{
		query:  query,
		tokens: strings.Fields(query),
		mode:   mode,
	}
}

func (s *scorer) score(phrase string, terms []string) int {
	whole := levenshtein.ComputeDistance(s.query, phrase)
	return s.termDistance(terms)*termWeight + whole
}

func (s *scorer) termDistance(terms []string) int {
	if s.mode == TermScoringWhole {
		return closestTerm(s.query, terms)
	}
	total := 0
	for _, tok := range s.tokens {
		total += closestTerm(tok, terms)
	}
	return total
}

// closestTerm returns the smallest edit distance from s to any of terms. With
// no terms it is the distance to the empty string.
func closestTerm(s string, terms []string) int {
	best := utf8.RuneCountInString(s)
	for _, t := range terms {
		if d := levenshtein.ComputeDistance(s, t); d < best {
			best = d
			if best == 0 {
				break
			}
		}
	}
	return best
}

// ranker keeps results ascending by score, bounded by the number of original
// indices they cover.
type ranker struct {
	results   []SearchResult
	limit     int
	size      int
	best      int
	threshold int
}

func newRanker(limit int) *ranker {
	return &ranker{
		results:   make([]SearchResult, 0),
		limit:     limit,
		best:      math.MaxInt,
		threshold: math.MaxInt,
	}
}

func (r *ranker) prunes(score int) bool {
	return r.size >= r.limit && score >= r.threshold
}

func (r *ranker) insert(res SearchResult) {
	if res.Score < r.best {
		r.results = append(r.results, SearchResult{})
		copy(r.results[1:], r.results)
		r.results[0] = res
		r.best = res.Score
	} else {
		// Equal scores keep first-seen order.
		i := sort.Search(len(r.results), func(i int) bool {
			return r.results[i].Score > res.Score
		})
		r.results = append(r.results, SearchResult{})
		copy(r.results[i+1:], r.results[i:])
		r.results[i] = res
	}
	r.size += len(res.OriginalIndices)

	for {
		last := r.results[len(r.results)-1]
		if r.size-len(last.OriginalIndices) < r.limit {
			break
		}
		r.results = r.results[:len(r.results)-1]
		r.size -= len(last.OriginalIndices)
		r.threshold = r.results[len(r.results)-1].Score
	}
}
