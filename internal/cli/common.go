package cli

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"phrasematch/config"
	"phrasematch/internal/adapter/analyzer"
	"phrasematch/internal/adapter/cache"
	"phrasematch/internal/adapter/fuzzy"
	"phrasematch/internal/adapter/metrics"
	"phrasematch/internal/adapter/store"
	"phrasematch/internal/usecase"
)

// openStore opens the record store under dir, creating it when create is set.
func openStore(dir string, create bool) (*store.BoltStore, error) {
	dbPath := config.StoreDBPath(dir)
	if create {
		if err := config.EnsureDataDir(dir); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", config.DataDirName, err)
		}
	} else if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("no records found. Run 'phrasematch load' first")
	}

	st, err := store.NewBoltStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}
	return st, nil
}

// prepareStore brings the schema up to date, clearing the records when the
// corpus settings changed since they were loaded.
func prepareStore(st *store.BoltStore, cfg *config.Config) error {
	migration, err := st.CheckMigration(cfg)
	if err != nil {
		return fmt.Errorf("failed to check migration: %w", err)
	}

	if migration.NeedsRebuild {
		fmt.Fprintf(os.Stderr, "Record reload required: %s\n", migration.Reason)
		if err := st.Clear(); err != nil {
			return fmt.Errorf("failed to clear records: %w", err)
		}
	} else if migration.NeedsMigration {
		logger.WithField("reason", migration.Reason).Info("running schema migration")
	}
	return st.Migrate(cfg)
}

func newLoader(st *store.BoltStore, cfg *config.Config) *usecase.LoadUseCase {
	return usecase.NewLoadUseCase(st, analyzer.NewNormalizer(cfg.Corpus.StripChars), cfg.Index.MinPhraseRunes, logger)
}

// searchConfig turns the query section into search defaults. scoring, when
// set, overrides the configured term scoring.
func searchConfig(cfg *config.Config, scoring string) (usecase.SearchConfig, error) {
	if scoring == "" {
		scoring = cfg.Query.TermScoring
	}
	ts, err := fuzzy.ParseTermScoring(scoring)
	if err != nil {
		return usecase.SearchConfig{}, err
	}
	return usecase.SearchConfig{
		Options: fuzzy.SearchOptions{
			MaxResults:    cfg.Query.MaxResults,
			MaxCandidates: cfg.Query.MaxCandidates,
			TermScoring:   ts,
		},
		MaxLimit: cfg.Server.MaxLimit,
	}, nil
}

func newQueryCache(cfg *config.Config) *cache.QueryCache {
	if !cfg.Cache.Enabled {
		return nil
	}
	return cache.NewQueryCache(cfg.Cache.Size, cfg.Cache.TTL)
}

func newMetrics(cfg *config.Config) *metrics.Metrics {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return metrics.New()
}

// buildIndex builds the index from st, drawing a progress bar on stderr.
func buildIndex(ctx context.Context, st *store.BoltStore, m *metrics.Metrics) (*usecase.BuildResult, error) {
	builder := usecase.NewBuildUseCase(st, m, logger)
	result, err := builder.Build(ctx, progressFunc("Building"))
	if err != nil {
		return nil, fmt.Errorf("build failed: %w", err)
	}
	return result, nil
}

// progressFunc returns a callback that lazily creates a progress bar once the
// total is known.
func progressFunc(label string) usecase.ProgressFunc {
	var bar *progressbar.ProgressBar
	var barMu sync.Mutex
	var startTime time.Time

	return func(done, total int) {
		barMu.Lock()
		defer barMu.Unlock()

		if bar == nil {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]"+label+"[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprintln(os.Stderr)
				}),
			)
		}

		bar.Set(done)

		if done > 0 && done < total {
			elapsed := time.Since(startTime)
			rate := float64(done) / elapsed.Seconds()
			if rate > 0 {
				eta := time.Duration(float64(total-done)/rate) * time.Second
				bar.Describe(fmt.Sprintf("[cyan]%s[reset] ETA: %s", label, formatDuration(eta)))
			}
		}
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
