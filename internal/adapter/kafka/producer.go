package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"phrasematch/config"
	"phrasematch/internal/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes records as RecordEvents keyed by code, so every phrase
// of a code lands on the same partition in order.
type Producer struct {
	writer    messageWriter
	batchSize int
	log       *logrus.Entry
}

func NewProducer(cfg config.KafkaConfig, log *logrus.Entry) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireAll,
	}
	return newProducer(w, 100, log.WithFields(logrus.Fields{"component": "kafka-producer", "topic": cfg.Topic}))
}

func newProducer(w messageWriter, batchSize int, log *logrus.Entry) *Producer {
	return &Producer{writer: w, batchSize: batchSize, log: log}
}

// Publish writes records in batches.
func (p *Producer) Publish(ctx context.Context, records []domain.Record) error {
	for start := 0; start < len(records); start += p.batchSize {
		end := start + p.batchSize
		if end > len(records) {
			end = len(records)
		}

		messages := make([]kafka.Message, 0, end-start)
		for _, r := range records[start:end] {
			value, err := json.Marshal(RecordEvent{Code: r.Code, Phrase: r.Phrase, Kind: r.Kind, Source: r.Source})
			if err != nil {
				return fmt.Errorf("marshaling record event: %w", err)
			}
			messages = append(messages, kafka.Message{Key: []byte(r.Code), Value: value})
		}

		if err := p.writer.WriteMessages(ctx, messages...); err != nil {
			return fmt.Errorf("publishing batch to kafka: %w", err)
		}
		p.log.WithField("count", len(messages)).Debug("batch published")
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
