package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"phrasematch/internal/adapter/kafka"
	"phrasematch/internal/domain"
)

var consumeMax int

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Append records from the Kafka topic to the store",
	Long: `Read record events from the configured Kafka topic and append them to
the record store. Offsets are committed after each stored record, so a
restart picks up where the last run stopped. Runs until interrupted or until
--max records were handled.

Examples:
  phrasematch consume
  phrasematch consume --max 10000`,
	Args: cobra.NoArgs,
	RunE: runConsume,
}

func init() {
	rootCmd.AddCommand(consumeCmd)
	consumeCmd.Flags().IntVar(&consumeMax, "max", 0, "stop after this many records (0 = run until interrupted)")
}

func runConsume(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is not configured")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(GetRootDir(), true)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := prepareStore(st, cfg); err != nil {
		return err
	}

	loader := newLoader(st, cfg)
	kept := 0
	handler := func(ctx context.Context, rec domain.Record) error {
		ok, err := loader.Ingest(ctx, rec)
		if ok {
			kept++
		}
		return err
	}

	consumer := kafka.NewConsumer(cfg.Kafka, handler, logger)
	defer consumer.Close()

	handled, err := consumer.Run(ctx, consumeMax)
	fmt.Printf("Handled %d events, stored %d records from %s\n", handled, kept, cfg.Kafka.Topic)
	if err != nil {
		return fmt.Errorf("consume failed: %w", err)
	}
	return nil
}
