package jobstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// PGStore keeps job records in PostgreSQL so multiple API instances can share
// a status table.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a job store backed by the given connection pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const pgSchema = `
CREATE TABLE IF NOT EXISTS video_jobs (
    id            TEXT PRIMARY KEY,
    status        TEXT NOT NULL,
    progress      INT NOT NULL DEFAULT 0,
    error_message TEXT NOT NULL DEFAULT '',
    video_url     TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL
);`

// EnsureSchema creates the video_jobs table when it does not exist yet.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, pgSchema); err != nil {
		return fmt.Errorf("jobstore: ensure schema: %w", err)
	}
	return nil
}

func (s *PGStore) Put(ctx context.Context, job domain.Job) error {
	query := `
INSERT INTO video_jobs (id, status, progress, error_message, video_url, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
    status        = EXCLUDED.status,
    progress      = EXCLUDED.progress,
    error_message = EXCLUDED.error_message,
    video_url     = EXCLUDED.video_url,
    updated_at    = EXCLUDED.updated_at;
`
	_, err := s.pool.Exec(ctx, query,
		job.ID,
		job.Status,
		job.Progress,
		job.Error,
		job.VideoURL,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("jobstore: %w: %v", domain.ErrStorage, err)
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, id string) (domain.Job, error) {
	query := `
SELECT id, status, progress, error_message, video_url, created_at, updated_at
FROM video_jobs
WHERE id = $1;
`
	row := s.pool.QueryRow(ctx, query, id)
	var job domain.Job
	if err := row.Scan(
		&job.ID,
		&job.Status,
		&job.Progress,
		&job.Error,
		&job.VideoURL,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Job{}, domain.ErrNotFound
		}
		return domain.Job{}, fmt.Errorf("jobstore: %w: %v", domain.ErrStorage, err)
	}
	return job, nil
}

var _ Store = (*PGStore)(nil)
