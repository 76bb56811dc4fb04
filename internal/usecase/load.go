package usecase

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"phrasematch/internal/adapter/analyzer"
	"phrasematch/internal/domain"
	"phrasematch/internal/port"
)

// LoadUseCase moves records from a source into the record store, normalizing
// phrases on the way in.
type LoadUseCase struct {
	store      port.RecordStore
	normalizer *analyzer.Normalizer
	minRunes   int
	log        *logrus.Entry
}

// NewLoadUseCase creates a new load use case. Phrases shorter than minRunes
// after normalization are skipped.
func NewLoadUseCase(store port.RecordStore, normalizer *analyzer.Normalizer, minRunes int, log *logrus.Entry) *LoadUseCase {
	return &LoadUseCase{
		store:      store,
		normalizer: normalizer,
		minRunes:   minRunes,
		log:        log.WithField("component", "load"),
	}
}

// LoadResult contains the results of a load.
type LoadResult struct {
	Source   string        `json:"source"`
	Loaded   int           `json:"loaded"`
	Skipped  int           `json:"skipped"`
	Total    int           `json:"total"`
	Duration time.Duration `json:"duration"`
}

// Load reads every record of src and appends the usable ones to the store.
// With replace the store contents are swapped for the new records in one
// step, so a failed load keeps the old records.
func (u *LoadUseCase) Load(ctx context.Context, src port.RecordSource, replace bool) (*LoadResult, error) {
	start := time.Now()
	result := &LoadResult{Source: src.Name()}

	records, err := src.Records(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", src.Name(), err)
	}

	prepared := make([]domain.Record, 0, len(records))
	for _, rec := range records {
		if p, ok := u.Prepare(rec); ok {
			prepared = append(prepared, p)
		} else {
			result.Skipped++
		}
	}

	if replace {
		if _, err := u.store.ReplaceRecords(prepared); err != nil {
			return nil, fmt.Errorf("replacing records: %w", err)
		}
	} else if _, err := u.store.AppendRecords(prepared); err != nil {
		return nil, fmt.Errorf("storing records: %w", err)
	}

	result.Loaded = len(prepared)
	if result.Total, err = u.store.Count(); err != nil {
		return nil, err
	}
	result.Duration = time.Since(start)

	u.log.WithFields(logrus.Fields{
		"source":  result.Source,
		"loaded":  result.Loaded,
		"skipped": result.Skipped,
		"total":   result.Total,
	}).Info("records loaded")
	return result, nil
}

// Ingest stores a single record, as delivered by a stream. It reports
// whether the record was kept.
func (u *LoadUseCase) Ingest(_ context.Context, rec domain.Record) (bool, error) {
	p, ok := u.Prepare(rec)
	if !ok {
		u.log.WithField("code", rec.Code).Debug("skipping record with unusable phrase")
		return false, nil
	}
	if _, err := u.store.AppendRecords([]domain.Record{p}); err != nil {
		return false, fmt.Errorf("storing record: %w", err)
	}
	return true, nil
}

// Prepare normalizes rec's phrase. It reports false for phrases that end up
// empty or shorter than the configured minimum.
func (u *LoadUseCase) Prepare(rec domain.Record) (domain.Record, bool) {
	rec.Phrase = u.normalizer.Normalize(rec.Phrase)
	if rec.Phrase == "" {
		return rec, false
	}
	if u.minRunes > 0 && utf8.RuneCountInString(rec.Phrase) < u.minRunes {
		return rec, false
	}
	if rec.Kind == "" {
		rec.Kind = domain.KindTerm
	}
	return rec, true
}
