package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"phrasematch/internal/domain"
)

var (
	bucketRecords = []byte("records")
	bucketStats   = []byte("stats")
	keyStats      = []byte("build_stats")
)

// BoltStore keeps source records in a bbolt file keyed by position.
type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketRecords, bucketStats} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) DB() *bbolt.DB {
	return s.db
}

// recordMeta is the stored value; the position lives in the key.
type recordMeta struct {
	Code   string `json:"code"`
	Phrase string `json:"phrase"`
	Kind   string `json:"kind,omitempty"`
	Source string `json:"source,omitempty"`
}

func positionKey(position int) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(position))
	return key
}

func keyPosition(key []byte) int {
	return int(binary.BigEndian.Uint64(key))
}

func encodeRecord(r domain.Record) ([]byte, error) {
	return json.Marshal(recordMeta{Code: r.Code, Phrase: r.Phrase, Kind: r.Kind, Source: r.Source})
}

func decodeRecord(key, data []byte) (domain.Record, error) {
	var meta recordMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return domain.Record{}, fmt.Errorf("decode record %d: %w", keyPosition(key), err)
	}
	return domain.Record{
		Position: keyPosition(key),
		Code:     meta.Code,
		Phrase:   meta.Phrase,
		Kind:     meta.Kind,
		Source:   meta.Source,
	}, nil
}

func (s *BoltStore) PutRecords(records []domain.Record) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRecords)
		for _, r := range records {
			if r.Position < 0 {
				return fmt.Errorf("negative position %d for %q", r.Position, r.Phrase)
			}
			data, err := encodeRecord(r)
			if err != nil {
				return err
			}
			if err := b.Put(positionKey(r.Position), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) AppendRecords(records []domain.Record) ([]domain.Record, error) {
	assigned := make([]domain.Record, len(records))
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRecords)

		next := 0
		if k, _ := b.Cursor().Last(); k != nil {
			next = keyPosition(k) + 1
		}

		for i, r := range records {
			r.Position = next + i
			data, err := encodeRecord(r)
			if err != nil {
				return err
			}
			if err := b.Put(positionKey(r.Position), data); err != nil {
				return err
			}
			assigned[i] = r
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return assigned, nil
}

func (s *BoltStore) ReplaceRecords(records []domain.Record) ([]domain.Record, error) {
	assigned := make([]domain.Record, len(records))
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketRecords); err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}
		b, err := tx.CreateBucket(bucketRecords)
		if err != nil {
			return err
		}
		for i, r := range records {
			r.Position = i
			data, err := encodeRecord(r)
			if err != nil {
				return err
			}
			if err := b.Put(positionKey(r.Position), data); err != nil {
				return err
			}
			assigned[i] = r
		}
		return tx.Bucket(bucketStats).Delete(keyStats)
	})
	if err != nil {
		return nil, err
	}
	return assigned, nil
}

func (s *BoltStore) GetRecord(position int) (domain.Record, error) {
	var rec domain.Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		key := positionKey(position)
		data := tx.Bucket(bucketRecords).Get(key)
		if data == nil {
			return fmt.Errorf("position %d: %w", position, domain.ErrRecordNotFound)
		}
		var err error
		rec, err = decodeRecord(key, data)
		return err
	})
	return rec, err
}

func (s *BoltStore) ListRecords() ([]domain.Record, error) {
	var records []domain.Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRecords)
		records = make([]domain.Record, 0, b.Stats().KeyN)
		return b.ForEach(func(k, v []byte) error {
			rec, err := decodeRecord(k, v)
			if err != nil {
				return err
			}
			records = append(records, rec)
			return nil
		})
	})
	return records, err
}

func (s *BoltStore) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketRecords).Stats().KeyN
		return nil
	})
	return n, err
}

func (s *BoltStore) GetStats() (domain.Stats, error) {
	var stats domain.Stats
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketStats).Get(keyStats)
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &stats)
	})
	return stats, err
}

func (s *BoltStore) UpdateStats(stats domain.Stats) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(stats)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketStats).Put(keyStats, data)
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
