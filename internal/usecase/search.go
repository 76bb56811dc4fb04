package usecase

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"phrasematch/internal/adapter/cache"
	"phrasematch/internal/adapter/fuzzy"
	"phrasematch/internal/adapter/metrics"
	"phrasematch/internal/domain"
)

var (
	// ErrNoIndex is returned by searches before any index was installed.
	ErrNoIndex = errors.New("no index loaded")

	// ErrReloadUnavailable is returned by Reload without a builder.
	ErrReloadUnavailable = errors.New("reload is not configured")
)

// SearchConfig holds the search defaults.
type SearchConfig struct {
	// Options.MaxResults is the limit used when callers pass <= 0.
	Options fuzzy.SearchOptions
	// MaxLimit clamps caller-supplied limits. Zero means no clamp.
	MaxLimit int
}

// SearchUseCase serves queries against the current index. The index can be
// replaced at any time; in-flight searches finish on the index they started
// with.
type SearchUseCase struct {
	current  atomic.Pointer[loadedIndex]
	builder  *BuildUseCase
	cache    *cache.QueryCache
	metrics  *metrics.Metrics
	opts     fuzzy.SearchOptions
	maxLimit int
	log      *logrus.Entry

	reloadMu sync.Mutex
}

type loadedIndex struct {
	index    *fuzzy.Index
	codes    map[int]string
	loadedAt time.Time
}

// NewSearchUseCase creates a search use case. builder, c and m may be nil;
// without a builder Reload is unavailable.
func NewSearchUseCase(builder *BuildUseCase, c *cache.QueryCache, m *metrics.Metrics, cfg SearchConfig, log *logrus.Entry) *SearchUseCase {
	opts := cfg.Options
	if opts.MaxResults <= 0 {
		opts.MaxResults = fuzzy.DefaultMaxResults
	}
	return &SearchUseCase{
		builder:  builder,
		cache:    c,
		metrics:  m,
		opts:     opts,
		maxLimit: cfg.MaxLimit,
		log:      log.WithField("component", "search"),
	}
}

// Swap installs ix as the live index. codes maps record positions to codes
// and may be nil, for example when the index came from a snapshot.
func (u *SearchUseCase) Swap(ix *fuzzy.Index, codes map[int]string) {
	u.current.Store(&loadedIndex{index: ix, codes: codes, loadedAt: time.Now()})
	if u.cache != nil {
		u.cache.Invalidate()
	}
	st := ix.Stats()
	u.log.WithFields(logrus.Fields{"phrases": st.Phrases, "records": st.Records}).Info("index swapped")
}

// Reload rebuilds the index from the record store and swaps it in.
// Concurrent reloads run one at a time.
func (u *SearchUseCase) Reload(ctx context.Context) (*BuildResult, error) {
	if u.builder == nil {
		return nil, ErrReloadUnavailable
	}
	u.reloadMu.Lock()
	defer u.reloadMu.Unlock()

	result, err := u.builder.Build(ctx, nil)
	if err != nil {
		return nil, err
	}
	u.Swap(result.Index, result.Codes)
	return result, nil
}

// LoadSnapshot decodes an encoded index and swaps it in.
func (u *SearchUseCase) LoadSnapshot(data []byte) error {
	ix, err := fuzzy.Decode(data)
	if err != nil {
		return err
	}
	u.Swap(ix, nil)
	return nil
}

// Ready reports whether an index is installed.
func (u *SearchUseCase) Ready() bool {
	return u.current.Load() != nil
}

// Limit resolves a caller-supplied limit against the defaults.
func (u *SearchUseCase) Limit(limit int) int {
	if limit <= 0 {
		return u.opts.MaxResults
	}
	if u.maxLimit > 0 && limit > u.maxLimit {
		return u.maxLimit
	}
	return limit
}

// Search returns the phrases closest to query, best first. limit bounds the
// number of source records covered.
func (u *SearchUseCase) Search(query string, limit int) ([]domain.Match, error) {
	start := time.Now()
	cur := u.current.Load()
	if cur == nil {
		u.metrics.ObserveSearch("none", time.Since(start).Seconds(), 0, ErrNoIndex)
		return nil, ErrNoIndex
	}
	limit = u.Limit(limit)

	if u.cache == nil {
		matches := u.search(cur, query, limit)
		u.metrics.ObserveSearch("none", time.Since(start).Seconds(), len(matches), nil)
		return matches, nil
	}

	matches, hit, err := u.cache.GetOrCompute(query, limit, func() ([]domain.Match, error) {
		return u.search(cur, query, limit), nil
	})
	status := "miss"
	if hit {
		status = "hit"
	}
	u.metrics.ObserveSearch(status, time.Since(start).Seconds(), len(matches), err)
	return matches, err
}

func (u *SearchUseCase) search(cur *loadedIndex, query string, limit int) []domain.Match {
	opts := u.opts
	opts.MaxResults = limit
	results := cur.index.Search(query, opts)

	matches := make([]domain.Match, len(results))
	for i, r := range results {
		matches[i] = domain.Match{
			Phrase:    r.Phrase,
			Score:     r.Score,
			Positions: r.OriginalIndices,
			Codes:     distinctCodes(cur.codes, r.OriginalIndices),
		}
	}
	return matches
}

func distinctCodes(codes map[int]string, positions []int) []string {
	if len(codes) == 0 {
		return nil
	}
	var out []string
	seen := make(map[string]struct{}, len(positions))
	for _, p := range positions {
		code, ok := codes[p]
		if !ok || code == "" {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}

// SearchBatch runs queries in parallel. Results line up with queries.
func (u *SearchUseCase) SearchBatch(ctx context.Context, queries []string, limit int) ([][]domain.Match, error) {
	results := make([][]domain.Match, len(queries))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			matches, err := u.Search(q, limit)
			if err != nil {
				return fmt.Errorf("query %d: %w", i, err)
			}
			results[i] = matches
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Snapshot encodes the live index.
func (u *SearchUseCase) Snapshot() ([]byte, error) {
	cur := u.current.Load()
	if cur == nil {
		return nil, ErrNoIndex
	}
	return cur.index.Encode()
}

// IndexInfo describes the live index.
type IndexInfo struct {
	Stats    fuzzy.Stats `json:"stats"`
	LoadedAt time.Time   `json:"loaded_at"`
	Cached   int         `json:"cached_queries"`
}

// Info describes the live index.
func (u *SearchUseCase) Info() (IndexInfo, error) {
	cur := u.current.Load()
	if cur == nil {
		return IndexInfo{}, ErrNoIndex
	}
	info := IndexInfo{Stats: cur.index.Stats(), LoadedAt: cur.loadedAt}
	if u.cache != nil {
		info.Cached = u.cache.Size()
	}
	return info, nil
}
