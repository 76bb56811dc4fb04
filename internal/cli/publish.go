package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"phrasematch/internal/adapter/corpus"
	"phrasematch/internal/adapter/kafka"
	"phrasematch/internal/adapter/postgres"
	"phrasematch/internal/domain"
)

var publishPostgres bool

var publishCmd = &cobra.Command{
	Use:   "publish [path]",
	Short: "Publish phrase records to the Kafka topic",
	Long: `Read phrase records from files or from PostgreSQL and publish them as
record events to the configured Kafka topic, for other instances to consume.

Examples:
  phrasematch publish ./terms
  phrasematch publish --postgres`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)
	publishCmd.Flags().BoolVar(&publishPostgres, "postgres", false, "read from the configured PostgreSQL table")
}

func runPublish(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	ctx := cmd.Context()
	if len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is not configured")
	}

	var records []domain.Record
	var source string
	if publishPostgres {
		pg, err := postgres.Open(cfg.Postgres)
		if err != nil {
			return err
		}
		defer pg.Close()
		source = pg.Name()
		if records, err = pg.Records(ctx); err != nil {
			return err
		}
	} else {
		path := GetRootDir()
		if len(args) > 0 {
			var err error
			if path, err = filepath.Abs(args[0]); err != nil {
				return fmt.Errorf("invalid path: %w", err)
			}
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("path does not exist: %w", err)
		}
		src := corpus.NewFileSource(path, cfg.Corpus)
		source = src.Name()
		var err error
		if records, err = src.Records(ctx); err != nil {
			return err
		}
	}

	producer := kafka.NewProducer(cfg.Kafka, logger)
	defer producer.Close()

	if err := producer.Publish(ctx, records); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	fmt.Printf("Published %d records from %s to %s\n", len(records), source, cfg.Kafka.Topic)
	return nil
}
