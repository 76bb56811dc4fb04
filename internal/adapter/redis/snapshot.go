// Package redis ships encoded index snapshots through a Redis key so other
// processes can load an index without rebuilding it.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"phrasematch/config"
	"phrasematch/internal/port"
)

// ErrNoSnapshot is returned when the snapshot key does not exist.
var ErrNoSnapshot = errors.New("no snapshot published")

type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd
	Close() error
}

// SnapshotStore publishes and fetches snapshots under one key.
type SnapshotStore struct {
	client kv
	key    string
	ttl    time.Duration
}

// NewSnapshotStore connects and verifies the connection with a PING.
func NewSnapshotStore(cfg config.RedisConfig) (*SnapshotStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return newSnapshotStore(rdb, cfg.SnapshotKey, cfg.TTL), nil
}

func newSnapshotStore(client kv, key string, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{client: client, key: key, ttl: ttl}
}

func (s *SnapshotStore) Key() string {
	return s.key
}

func (s *SnapshotStore) PublishSnapshot(ctx context.Context, data []byte) error {
	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("storing snapshot at %s: %w", s.key, err)
	}
	return nil
}

func (s *SnapshotStore) FetchSnapshot(ctx context.Context) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%s: %w", s.key, ErrNoSnapshot)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching snapshot at %s: %w", s.key, err)
	}
	return data, nil
}

func (s *SnapshotStore) Close() error {
	return s.client.Close()
}

var (
	_ port.SnapshotPublisher = (*SnapshotStore)(nil)
	_ port.SnapshotFetcher   = (*SnapshotStore)(nil)
)
