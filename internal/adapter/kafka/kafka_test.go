package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phrasematch/internal/domain"
	"phrasematch/internal/logging"
)

type fakeReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed []int64
	fetchErr  error
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if r.fetchErr != nil {
		err := r.fetchErr
		r.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(r.messages) > 0 {
		msg := r.messages[0]
		r.messages = r.messages[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func eventMessage(t *testing.T, offset int64, e RecordEvent) kafka.Message {
	t.Helper()
	data, err := json.Marshal(e)
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Key: []byte(e.Code), Value: data}
}

func TestConsumer_HandlesUntilMax(t *testing.T) {
	r := &fakeReader{messages: []kafka.Message{
		eventMessage(t, 0, RecordEvent{Code: "S61", Phrase: "open wound of wrist"}),
		eventMessage(t, 1, RecordEvent{Code: "L98", Phrase: "fistula, wrist", Kind: "synonym"}),
		eventMessage(t, 2, RecordEvent{Code: "M25", Phrase: "pain in wrist"}),
	}}

	var got []domain.Record
	c := newConsumer(r, func(_ context.Context, rec domain.Record) error {
		got = append(got, rec)
		return nil
	}, logging.Discard())

	n, err := c.Run(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int64{0, 1}, r.committed)
	require.Len(t, got, 2)
	assert.Equal(t, domain.Record{Code: "L98", Phrase: "fistula, wrist", Kind: "synonym"}, got[1])
}

func TestConsumer_SkipsPoisonMessages(t *testing.T) {
	r := &fakeReader{messages: []kafka.Message{
		{Offset: 0, Value: []byte("not json")},
		{Offset: 1, Value: []byte(`{"code":"X"}`)},
		eventMessage(t, 2, RecordEvent{Code: "R50", Phrase: "fever"}),
	}}

	handled := 0
	c := newConsumer(r, func(context.Context, domain.Record) error {
		handled++
		return nil
	}, logging.Discard())

	n, err := c.Run(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, handled)
	assert.Equal(t, []int64{0, 1, 2}, r.committed)
}

func TestConsumer_HandlerErrorStopsWithoutCommit(t *testing.T) {
	r := &fakeReader{messages: []kafka.Message{
		eventMessage(t, 7, RecordEvent{Code: "R50", Phrase: "fever"}),
	}}
	boom := errors.New("store unavailable")
	c := newConsumer(r, func(context.Context, domain.Record) error { return boom }, logging.Discard())

	_, err := c.Run(context.Background(), 0)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, r.committed)
}

func TestConsumer_StopsOnCancel(t *testing.T) {
	r := &fakeReader{messages: []kafka.Message{
		eventMessage(t, 0, RecordEvent{Code: "R50", Phrase: "fever"}),
	}}
	c := newConsumer(r, func(context.Context, domain.Record) error { return nil }, logging.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	n, err := c.Run(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestConsumer_FetchErrorIsReturned(t *testing.T) {
	r := &fakeReader{fetchErr: errors.New("broker down")}
	c := newConsumer(r, func(context.Context, domain.Record) error { return nil }, logging.Discard())

	_, err := c.Run(context.Background(), 0)
	assert.Error(t, err)
}

type fakeWriter struct {
	batches [][]kafka.Message
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.batches = append(w.batches, msgs)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestProducer_PublishBatches(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, 2, logging.Discard())

	records := []domain.Record{
		{Code: "A", Phrase: "fever"},
		{Code: "B", Phrase: "chills"},
		{Code: "C", Phrase: "cough", Kind: "term"},
	}
	require.NoError(t, p.Publish(context.Background(), records))

	require.Len(t, w.batches, 2)
	assert.Len(t, w.batches[0], 2)
	require.Len(t, w.batches[1], 1)

	msg := w.batches[1][0]
	assert.Equal(t, "C", string(msg.Key))
	event, err := decodeEvent(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, RecordEvent{Code: "C", Phrase: "cough", Kind: "term"}, event)
}
