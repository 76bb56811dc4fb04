package port

import "context"

// SnapshotPublisher ships an encoded index to other processes.
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, data []byte) error
}

// SnapshotFetcher retrieves an encoded index published elsewhere.
type SnapshotFetcher interface {
	FetchSnapshot(ctx context.Context) ([]byte, error)
}
