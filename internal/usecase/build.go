package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"phrasematch/internal/adapter/fuzzy"
	"phrasematch/internal/adapter/metrics"
	"phrasematch/internal/domain"
	"phrasematch/internal/port"
)

// BuildUseCase builds a fuzzy index from the record store.
type BuildUseCase struct {
	store   port.RecordStore
	metrics *metrics.Metrics
	log     *logrus.Entry
}

// NewBuildUseCase creates a new build use case. m may be nil.
func NewBuildUseCase(store port.RecordStore, m *metrics.Metrics, log *logrus.Entry) *BuildUseCase {
	return &BuildUseCase{
		store:   store,
		metrics: m,
		log:     log.WithField("component", "build"),
	}
}

// BuildResult is a freshly built index together with the code of every
// record position it covers.
type BuildResult struct {
	Index    *fuzzy.Index
	Codes    map[int]string
	Stats    domain.Stats
	Duration time.Duration
}

// ProgressFunc is called while building with the records processed so far.
type ProgressFunc func(done, total int)

const progressEvery = 1024

// Build reads all records in position order and indexes their phrases.
// Records the index rejects are counted as skipped. progress may be nil.
func (u *BuildUseCase) Build(ctx context.Context, progress ProgressFunc) (*BuildResult, error) {
	start := time.Now()
	result, err := u.build(ctx, progress)
	if err != nil {
		u.metrics.ObserveBuild(time.Since(start).Seconds(), 0, 0, 0, err)
		return nil, err
	}
	result.Duration = time.Since(start)
	u.metrics.ObserveBuild(result.Duration.Seconds(), result.Stats.Phrases, result.Stats.Records, result.Stats.Trigrams, nil)

	if err := u.store.UpdateStats(result.Stats); err != nil {
		return nil, fmt.Errorf("failed to update stats: %w", err)
	}

	u.log.WithFields(logrus.Fields{
		"records":  result.Stats.Records,
		"phrases":  result.Stats.Phrases,
		"trigrams": result.Stats.Trigrams,
		"skipped":  result.Stats.Skipped,
		"duration": result.Duration,
	}).Info("index built")
	return result, nil
}

func (u *BuildUseCase) build(ctx context.Context, progress ProgressFunc) (*BuildResult, error) {
	records, err := u.store.ListRecords()
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	builder := fuzzy.NewBuilder()
	codes := make(map[int]string, len(records))
	skipped := 0

	for i, rec := range records {
		if i%progressEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if progress != nil {
				progress(i, len(records))
			}
		}

		if err := builder.Add(rec.Phrase, rec.Position); err != nil {
			if errors.Is(err, fuzzy.ErrInvalidPhrase) {
				skipped++
				u.log.WithFields(logrus.Fields{"position": rec.Position, "phrase": rec.Phrase}).Debug("skipping record")
				continue
			}
			return nil, err
		}
		codes[rec.Position] = rec.Code
	}
	if progress != nil {
		progress(len(records), len(records))
	}

	ix := builder.Build()
	st := ix.Stats()
	return &BuildResult{
		Index: ix,
		Codes: codes,
		Stats: domain.Stats{
			Records:  st.Records,
			Phrases:  st.Phrases,
			Trigrams: st.Trigrams,
			Postings: st.Postings,
			Skipped:  skipped,
		},
	}, nil
}
