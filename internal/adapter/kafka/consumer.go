// Package kafka streams phrase records through Kafka topics using
// segmentio/kafka-go. Records travel as JSON RecordEvents.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"phrasematch/config"
	"phrasematch/internal/domain"
)

// RecordEvent is the message payload for one record.
type RecordEvent struct {
	Code   string `json:"code"`
	Phrase string `json:"phrase"`
	Kind   string `json:"kind,omitempty"`
	Source string `json:"source,omitempty"`
}

func (e RecordEvent) Record() domain.Record {
	return domain.Record{Code: e.Code, Phrase: e.Phrase, Kind: e.Kind, Source: e.Source}
}

// RecordHandler receives each decoded record. Returning an error leaves the
// message uncommitted.
type RecordHandler func(ctx context.Context, rec domain.Record) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads RecordEvents from a topic and dispatches them to a handler.
type Consumer struct {
	reader  messageReader
	handler RecordHandler
	log     *logrus.Entry
}

func NewConsumer(cfg config.KafkaConfig, handler RecordHandler, log *logrus.Entry) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		MinBytes:    1e3,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	return newConsumer(r, handler, log.WithFields(logrus.Fields{"component": "kafka-consumer", "topic": cfg.Topic}))
}

func newConsumer(r messageReader, handler RecordHandler, log *logrus.Entry) *Consumer {
	return &Consumer{reader: r, handler: handler, log: log}
}

// Run consumes until ctx is cancelled or max records were handled (max <= 0
// means no limit). It returns the number of records handled.
func (c *Consumer) Run(ctx context.Context, max int) (int, error) {
	c.log.Info("consumer started")
	handled := 0
	for max <= 0 || handled < max {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.WithField("reason", ctx.Err()).Info("consumer stopping")
				return handled, nil
			}
			return handled, fmt.Errorf("fetching message: %w", err)
		}

		entry := c.log.WithFields(logrus.Fields{"partition": msg.Partition, "offset": msg.Offset})

		event, err := decodeEvent(msg.Value)
		if err != nil {
			// Poison messages are committed so they do not block the partition.
			entry.WithError(err).Warn("skipping undecodable message")
			c.commit(ctx, msg, entry)
			continue
		}
		if err := c.handler(ctx, event.Record()); err != nil {
			return handled, fmt.Errorf("handling offset %d: %w", msg.Offset, err)
		}
		c.commit(ctx, msg, entry)
		handled++
	}
	return handled, nil
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message, entry *logrus.Entry) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		entry.WithError(err).Error("failed to commit message")
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

func decodeEvent(value []byte) (RecordEvent, error) {
	var e RecordEvent
	if err := json.Unmarshal(value, &e); err != nil {
		return e, fmt.Errorf("decoding record event: %w", err)
	}
	if e.Phrase == "" {
		return e, fmt.Errorf("record event has no phrase")
	}
	return e, nil
}
