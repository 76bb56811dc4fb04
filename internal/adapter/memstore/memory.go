package memstore

import (
	"fmt"
	"sort"
	"sync"

	"phrasematch/internal/domain"
	"phrasematch/internal/port"
)

// MemoryStore is a RecordStore held entirely in memory. It backs the wasm
// build, tests and one-shot queries that never touch disk.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[int]domain.Record
	next    int
	stats   domain.Stats
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[int]domain.Record),
	}
}

func (s *MemoryStore) PutRecords(records []domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if r.Position < 0 {
			return fmt.Errorf("negative position %d for %q", r.Position, r.Phrase)
		}
	}
	for _, r := range records {
		s.records[r.Position] = r
		if r.Position >= s.next {
			s.next = r.Position + 1
		}
	}
	return nil
}

func (s *MemoryStore) AppendRecords(records []domain.Record) ([]domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	assigned := make([]domain.Record, len(records))
	for i, r := range records {
		r.Position = s.next
		s.next++
		s.records[r.Position] = r
		assigned[i] = r
	}
	return assigned, nil
}

func (s *MemoryStore) ReplaceRecords(records []domain.Record) ([]domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fresh := make(map[int]domain.Record, len(records))
	assigned := make([]domain.Record, len(records))
	for i, r := range records {
		r.Position = i
		fresh[i] = r
		assigned[i] = r
	}
	s.records = fresh
	s.next = len(records)
	s.stats = domain.Stats{}
	return assigned, nil
}

func (s *MemoryStore) GetRecord(position int) (domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[position]
	if !ok {
		return domain.Record{}, fmt.Errorf("position %d: %w", position, domain.ErrRecordNotFound)
	}
	return r, nil
}

func (s *MemoryStore) ListRecords() ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]domain.Record, 0, len(s.records))
	for _, r := range s.records {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Position < records[j].Position
	})
	return records, nil
}

func (s *MemoryStore) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

func (s *MemoryStore) GetStats() (domain.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats, nil
}

func (s *MemoryStore) UpdateStats(stats domain.Stats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = stats
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[int]domain.Record)
	s.next = 0
	s.stats = domain.Stats{}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

var _ port.RecordStore = (*MemoryStore)(nil)
