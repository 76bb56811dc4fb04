package port

import (
	"context"

	"phrasematch/internal/domain"
)

// RecordSource produces records from an external system (files, a database).
// Positions on returned records are advisory; stores may reassign them.
type RecordSource interface {
	Records(ctx context.Context) ([]domain.Record, error)

	// Name describes the source for logs.
	Name() string
}
