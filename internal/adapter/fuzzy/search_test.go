package fuzzy

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFind_WristScenario(t *testing.T) {
	ix := buildIndex(t, "open wound of wrist", "fistula, wrist", "pain in wrist")

	results := ix.Find("wrist woound", DefaultMaxResults)
	require.Len(t, results, 3)

	assert.Equal(t, "open wound of wrist", results[0].Phrase)
	assert.Equal(t, "fistula, wrist", results[1].Phrase)
	assert.Equal(t, "pain in wrist", results[2].Phrase)

	// wrist->wrist 0, woound->wound 1; whole distance 15.
	assert.Equal(t, 1*64+15, results[0].Score)
	assert.Equal(t, 5*64+11, results[1].Score)
	assert.Equal(t, 5*64+11, results[2].Score)
}

func TestFind_WholeQueryTermScoring(t *testing.T) {
	ix := buildIndex(t, "open wound of wrist", "fistula, wrist", "pain in wrist")

	results := ix.Search("wrist woound", SearchOptions{
		MaxResults:  DefaultMaxResults,
		TermScoring: TermScoringWhole,
	})
	require.Len(t, results, 3)

	scores := map[string]int{}
	for _, r := range results {
		scores[r.Phrase] = r.Score
	}
	assert.Equal(t, 7*64+15, scores["open wound of wrist"])
	assert.Equal(t, 7*64+11, scores["fistula, wrist"])
	assert.Equal(t, 7*64+11, scores["pain in wrist"])
}

func TestFind_SingleTokenModesAgree(t *testing.T) {
	ix := buildIndex(t, generatePhrases(200)...)

	for _, q := range []string{"fever", "fractur", "wirst", "infektion"} {
		tokens := ix.Search(q, SearchOptions{MaxResults: 10, TermScoring: TermScoringTokens})
		whole := ix.Search(q, SearchOptions{MaxResults: 10, TermScoring: TermScoringWhole})
		assert.Equal(t, tokens, whole, "query %q", q)
	}
}

func TestFind_DuplicateSource(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Add("drug induced fever", 5))
	require.NoError(t, b.Add("viral fever", 6))
	require.NoError(t, b.Add("drug induced fever", 42))
	ix := b.Build()

	results := ix.Find("drug fever", DefaultMaxResults)

	var hits []SearchResult
	for _, r := range results {
		if r.Phrase == "drug induced fever" {
			hits = append(hits, r)
		}
	}
	require.Len(t, hits, 1)
	assert.Equal(t, []int{5, 42}, hits[0].OriginalIndices)
}

func TestFind_NoSharedTrigrams(t *testing.T) {
	phrases := make([]string, 1000)
	for i := range phrases {
		phrases[i] = fmt.Sprintf("phrase number %d", i)
	}
	ix := buildIndex(t, phrases...)

	results := ix.Find("zzzqqqxxx", DefaultMaxResults)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestFind_EdgeCases(t *testing.T) {
	empty := NewBuilder().Build()
	assert.Empty(t, empty.Find("fever", DefaultMaxResults))

	ix := buildIndex(t, "fever", "ab")

	assert.Empty(t, ix.Find("", DefaultMaxResults))
	assert.Empty(t, ix.Find("fe", DefaultMaxResults))
	assert.Empty(t, ix.Find("fever", 0))
	assert.Empty(t, ix.Find("fever", -3))

	// Sub-trigram phrases are unreachable, even by an exact query.
	assert.Empty(t, ix.Find("ab", DefaultMaxResults))
}

func TestFind_LowercasesQuery(t *testing.T) {
	ix := buildIndex(t, "acute bronchitis")

	lower := ix.Find("acute bronchitis", 5)
	upper := ix.Find("ACUTE Bronchitis", 5)
	require.Len(t, upper, 1)
	assert.Equal(t, lower, upper)
	assert.Equal(t, 0, upper[0].Score)
}

func TestFind_ExactTermRanksFirst(t *testing.T) {
	phrases := append(generatePhrases(300), "feverish", "fevers of unknown origin")
	ix := buildIndex(t, phrases...)

	results := ix.Find("fever", 1000)
	require.NotEmpty(t, results)

	lastWithToken := -1
	firstWithout := len(results)
	for i, r := range results {
		if containsToken(r.Phrase, "fever") {
			assert.Less(t, r.Score, termWeight, "phrase %q", r.Phrase)
			lastWithToken = i
		} else if i < firstWithout {
			firstWithout = i
		}
	}
	require.GreaterOrEqual(t, lastWithToken, 0)
	assert.Less(t, lastWithToken, firstWithout)

	// The best of the token-sharing phrases is the overall best.
	best := results[0]
	for _, p := range phrases {
		if containsToken(p, "fever") {
			sc := newScorer("fever", TermScoringTokens)
			assert.LessOrEqual(t, best.Score, sc.score(p, strings.Fields(p)))
		}
	}
}

func TestFind_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	phrases := generatePhrases(400)

	b := NewBuilder()
	for i, p := range phrases {
		require.NoError(t, b.Add(p, i))
		// Some phrases are shared by several source records.
		for j := 0; j < rng.Intn(3); j++ {
			require.NoError(t, b.Add(p, 10000+i*10+j))
		}
	}
	ix := b.Build()

	queries := []string{"wrist woound", "acute pain", "fracure ankle", "drug fever", "infection of left", "syndrom"}
	for _, q := range queries {
		for _, k := range []int{1, 2, 5, 25, 100} {
			results := ix.Find(q, k)
			require.NotEmpty(t, results, "query %q k=%d", q, k)

			seen := map[string]bool{}
			covered := 0
			for i, r := range results {
				assert.False(t, seen[r.Phrase], "duplicate phrase %q", r.Phrase)
				seen[r.Phrase] = true
				if i > 0 {
					assert.LessOrEqual(t, results[i-1].Score, r.Score)
				}
				if i < len(results)-1 {
					covered += len(r.OriginalIndices)
				}
			}
			assert.Less(t, covered, k, "query %q k=%d", q, k)

			assert.Equal(t, referenceFind(ix, q, k), results, "query %q k=%d", q, k)
		}
	}
}

func TestSearch_MaxCandidates(t *testing.T) {
	ix := buildIndex(t, generatePhrases(200)...)

	unbounded := ix.Search("acute pain", SearchOptions{MaxResults: 1000})
	require.Greater(t, len(unbounded), 3)

	capped := ix.Search("acute pain", SearchOptions{MaxResults: 1000, MaxCandidates: 3})
	assert.Len(t, capped, 3)
	for i := 1; i < len(capped); i++ {
		assert.LessOrEqual(t, capped[i-1].Score, capped[i].Score)
	}
}

func TestFind_ResultsDoNotAliasIndex(t *testing.T) {
	ix := buildIndex(t, "open wound of wrist")
	results := ix.Find("wrist", 5)
	require.Len(t, results, 1)
	results[0].OriginalIndices[0] = 123

	again := ix.Find("wrist", 5)
	assert.Equal(t, []int{0}, again[0].OriginalIndices)
}

func TestFind_ConcurrentQueries(t *testing.T) {
	ix := buildIndex(t, generatePhrases(500)...)
	queries := []string{"acute pain", "wrist woound", "drug fever", "viral infekshun", "closed fracture"}

	expected := make(map[string][]SearchResult, len(queries))
	for _, q := range queries {
		expected[q] = ix.Find(q, 25)
	}

	var wg sync.WaitGroup
	errs := make(chan string, 64)
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				q := queries[(g+i)%len(queries)]
				got := ix.Find(q, 25)
				if !assert.ObjectsAreEqual(expected[q], got) {
					errs <- q
					return
				}
			}
		}(g)
	}
	wg.Wait()
	close(errs)

	for q := range errs {
		t.Errorf("concurrent result mismatch for %q", q)
	}
}

func TestParseTermScoring(t *testing.T) {
	tests := []struct {
		input   string
		want    TermScoring
		wantErr bool
	}{
		{"", TermScoringTokens, false},
		{"tokens", TermScoringTokens, false},
		{" Whole ", TermScoringWhole, false},
		{"bogus", TermScoringTokens, true},
	}

	for _, tt := range tests {
		got, err := ParseTermScoring(tt.input)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.input)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, got, mustParse(t, got.String()))
	}
}

func mustParse(t *testing.T, s string) TermScoring {
	t.Helper()
	ts, err := ParseTermScoring(s)
	require.NoError(t, err)
	return ts
}

// referenceFind scores every candidate in visit order, stable-sorts them and
// keeps the shortest prefix covering k original indices.
func referenceFind(ix *Index, query string, k int) []SearchResult {
	query = strings.ToLower(query)
	sc := newScorer(query, TermScoringTokens)
	visited := map[int]bool{}
	seen := map[string]bool{}
	var all []SearchResult
	for _, tri := range trigrams(query) {
		if seen[tri] {
			continue
		}
		seen[tri] = true
		for _, id := range ix.trigrams[tri] {
			if visited[id] {
				continue
			}
			visited[id] = true
			all = append(all, SearchResult{
				Phrase:          ix.phrases[id],
				Score:           sc.score(ix.phrases[id], ix.terms[id]),
				OriginalIndices: append([]int(nil), ix.originals[id]...),
			})
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Score < all[j].Score })

	out := make([]SearchResult, 0)
	covered := 0
	for _, r := range all {
		if covered >= k {
			break
		}
		out = append(out, r)
		covered += len(r.OriginalIndices)
	}
	return out
}

func containsToken(phrase, token string) bool {
	for _, f := range strings.Fields(phrase) {
		if f == token {
			return true
		}
	}
	return false
}

func BenchmarkFind(b *testing.B) {
	ix := buildIndex(b, generatePhrases(20000)...)
	queries := []string{"acute pain", "wrist woound", "drug fever", "closed fracture of ankle"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ix.Find(queries[i%len(queries)], DefaultMaxResults)
	}
}

func BenchmarkBuild(b *testing.B) {
	phrases := generatePhrases(20000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		builder := NewBuilder()
		for j, p := range phrases {
			_ = builder.Add(p, j)
		}
		builder.Build()
	}
}
