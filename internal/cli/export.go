package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"phrasematch/internal/adapter/redis"
)

var (
	exportOutput string
	exportRedis  bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export an index snapshot",
	Long: `Build the index from the record store and write its JSON snapshot to a
file, to stdout, or to the configured Redis key. Snapshots can be loaded by
'serve --from-redis' or by the wasm client without rebuilding.

Examples:
  phrasematch export -o index.json
  phrasematch export --redis`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default: stdout)")
	exportCmd.Flags().BoolVar(&exportRedis, "redis", false, "publish to the configured Redis key")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	ctx := cmd.Context()

	st, err := openStore(GetRootDir(), false)
	if err != nil {
		return err
	}
	defer st.Close()

	result, err := buildIndex(ctx, st, nil)
	if err != nil {
		return err
	}
	data, err := result.Index.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if exportRedis {
		snapshots, err := redis.NewSnapshotStore(cfg.Redis)
		if err != nil {
			return err
		}
		defer snapshots.Close()
		if err := snapshots.PublishSnapshot(ctx, data); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Snapshot published to %s (%d bytes)\n", snapshots.Key(), len(data))
	}

	switch {
	case exportOutput != "":
		if err := os.WriteFile(exportOutput, data, 0644); err != nil {
			return fmt.Errorf("failed to write snapshot: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Snapshot written to %s (%d bytes)\n", exportOutput, len(data))
	case !exportRedis:
		os.Stdout.Write(data)
		fmt.Println()
	}
	return nil
}
