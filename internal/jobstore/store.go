package jobstore

import (
	"context"

	"server/internal/domain"
)

// Store is the keyed table of job status records. Implementations must be
// safe for concurrent use; Put calls for different ids never interfere, and a
// Get racing a Put for the same id sees some consistent prior write.
type Store interface {
	// Put upserts the job's current record.
	Put(ctx context.Context, job domain.Job) error
	// Get returns the latest known record, or domain.ErrNotFound.
	Get(ctx context.Context, id string) (domain.Job, error)
}
