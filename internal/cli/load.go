package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"phrasematch/internal/adapter/corpus"
	"phrasematch/internal/adapter/postgres"
	"phrasematch/internal/port"
)

var (
	loadPostgres bool
	loadReplace  bool
)

var loadCmd = &cobra.Command{
	Use:   "load [path]",
	Short: "Load phrases into the record store",
	Long: `Load phrase records from CSV, TSV or text files, or from a PostgreSQL
table, into the record store at .phrasematch/records.db. Phrases are
normalized on the way in; records whose phrase ends up empty are skipped.

Examples:
  phrasematch load ./terms               # Append every phrase file under ./terms
  phrasematch load codes.csv --replace   # Replace the store with one file
  phrasematch load --postgres            # Load the configured table`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)
	loadCmd.Flags().BoolVar(&loadPostgres, "postgres", false, "load from the configured PostgreSQL table")
	loadCmd.Flags().BoolVar(&loadReplace, "replace", false, "clear the store before loading")
}

func runLoad(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	ctx := cmd.Context()

	var src port.RecordSource
	if loadPostgres {
		if len(args) > 0 {
			return fmt.Errorf("a path cannot be combined with --postgres")
		}
		pg, err := postgres.Open(cfg.Postgres)
		if err != nil {
			return err
		}
		defer pg.Close()
		src = pg
	} else {
		path := GetRootDir()
		if len(args) > 0 {
			var err error
			path, err = filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("invalid path: %w", err)
			}
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("path does not exist: %w", err)
		}
		src = corpus.NewFileSource(path, cfg.Corpus)
	}

	st, err := openStore(GetRootDir(), true)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := prepareStore(st, cfg); err != nil {
		return err
	}

	fmt.Printf("Loading from %s...\n", src.Name())
	result, err := newLoader(st, cfg).Load(ctx, src, loadReplace)
	if err != nil {
		return fmt.Errorf("load failed: %w", err)
	}

	fmt.Printf("\nLoad complete:\n")
	fmt.Printf("  Records loaded:  %d\n", result.Loaded)
	fmt.Printf("  Records skipped: %d (empty or too short)\n", result.Skipped)
	fmt.Printf("  Records stored:  %d\n", result.Total)
	fmt.Printf("  Duration:        %s\n", formatDuration(result.Duration))
	return nil
}
