package port

import "phrasematch/internal/domain"

// RecordStore persists the source records an index is built from. Positions
// are the original indices reported by searches.
type RecordStore interface {
	// PutRecords stores records under their own positions, replacing any
	// record already at that position.
	PutRecords(records []domain.Record) error

	// AppendRecords assigns positions after the current highest one and
	// stores the records. The assigned records are returned.
	AppendRecords(records []domain.Record) ([]domain.Record, error)

	// ReplaceRecords atomically swaps the whole store contents for records,
	// assigning positions from zero. Build stats are dropped. On error the
	// previous records are left untouched.
	ReplaceRecords(records []domain.Record) ([]domain.Record, error)

	// GetRecord returns domain.ErrRecordNotFound for unknown positions.
	GetRecord(position int) (domain.Record, error)

	// ListRecords returns every record in position order.
	ListRecords() ([]domain.Record, error)

	Count() (int, error)

	GetStats() (domain.Stats, error)
	UpdateStats(stats domain.Stats) error

	Clear() error

	Close() error
}
