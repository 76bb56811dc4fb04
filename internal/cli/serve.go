package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"phrasematch/config"
	"phrasematch/internal/adapter/corpus"
	pmfs "phrasematch/internal/adapter/fs"
	"phrasematch/internal/adapter/redis"
	"phrasematch/internal/adapter/store"
	"phrasematch/internal/adapter/watcher"
	"phrasematch/internal/server"
	"phrasematch/internal/usecase"
)

var (
	serveAddr      string
	serveWatch     string
	serveFromRedis bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve fuzzy search over HTTP",
	Long: `Build the index from the record store and serve it over HTTP.

With --watch the given corpus directory is watched; after a burst of changes
settles the store is reloaded from it and the index rebuilt and swapped in.
With --from-redis the index is loaded from a published snapshot instead and
reloads are unavailable.

Examples:
  phrasematch serve
  phrasematch serve --addr :9090 --watch ./terms
  phrasematch serve --from-redis`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	serveCmd.Flags().StringVar(&serveWatch, "watch", "", "corpus directory to watch for changes")
	serveCmd.Flags().BoolVar(&serveFromRedis, "from-redis", false, "load the index from the Redis snapshot")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if serveFromRedis && serveWatch != "" {
		return fmt.Errorf("--watch cannot be combined with --from-redis")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	searchCfg, err := searchConfig(cfg, "")
	if err != nil {
		return err
	}
	m := newMetrics(cfg)

	var search *usecase.SearchUseCase
	var st *store.BoltStore
	if serveFromRedis {
		search = usecase.NewSearchUseCase(nil, newQueryCache(cfg), m, searchCfg, logger)
		if err := loadFromRedis(ctx, cfg, search); err != nil {
			return err
		}
	} else {
		st, err = openStore(GetRootDir(), serveWatch != "")
		if err != nil {
			return err
		}
		defer st.Close()
		if err := prepareStore(st, cfg); err != nil {
			return err
		}

		builder := usecase.NewBuildUseCase(st, m, logger)
		search = usecase.NewSearchUseCase(builder, newQueryCache(cfg), m, searchCfg, logger)
		if _, err := search.Reload(ctx); err != nil {
			return fmt.Errorf("initial build failed: %w", err)
		}
	}

	srv := server.New(cfg.Server, cfg.Metrics, search, m, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx)
	})
	if serveWatch != "" {
		g.Go(func() error {
			return watchCorpus(ctx, cfg, serveWatch, st, search)
		})
	}
	return g.Wait()
}

func loadFromRedis(ctx context.Context, cfg *config.Config, search *usecase.SearchUseCase) error {
	snapshots, err := redis.NewSnapshotStore(cfg.Redis)
	if err != nil {
		return err
	}
	defer snapshots.Close()

	data, err := snapshots.FetchSnapshot(ctx)
	if err != nil {
		return err
	}
	if err := search.LoadSnapshot(data); err != nil {
		return fmt.Errorf("snapshot at %s: %w", snapshots.Key(), err)
	}
	return nil
}

// watchCorpus reloads the store from dir and rebuilds the index whenever the
// corpus changes. Failed reloads keep the current index.
func watchCorpus(ctx context.Context, cfg *config.Config, dir string, st *store.BoltStore, search *usecase.SearchUseCase) error {
	root, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("invalid watch path: %w", err)
	}

	walker := pmfs.NewWalker(cfg.Corpus.Includes, cfg.Corpus.Excludes)
	w, err := watcher.New(root, walker, watcher.DefaultQuiet, logger)
	if err != nil {
		return err
	}

	loader := newLoader(st, cfg)
	src := corpus.NewFileSource(root, cfg.Corpus)
	log := logger.WithField("component", "reload")

	reload := func() {
		if _, err := loader.Load(ctx, src, true); err != nil {
			log.WithError(err).Error("corpus reload failed")
			return
		}
		if _, err := search.Reload(ctx); err != nil {
			log.WithError(err).Error("index rebuild failed")
		}
	}

	// Bring the store in line with the directory before waiting for changes.
	reload()
	return w.Run(ctx, func(paths []string) {
		log.WithField("changed", len(paths)).Info("corpus changed")
		reload()
	})
}
