package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"server/internal/domain"
)

// FileStore persists one JSON status file per job under a base directory.
// Writes are synced to disk before returning so a status read served by
// another request observes the record.
type FileStore struct {
	basePath string
}

// NewFileStore initializes a FileStore rooted at basePath, creating the
// directory if needed.
func NewFileStore(basePath string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("jobstore: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("jobstore: ensure base path: %w", err)
	}
	return &FileStore{basePath: basePath}, nil
}

// BasePath returns the configured status directory.
func (s *FileStore) BasePath() string {
	return s.basePath
}

func (s *FileStore) Put(ctx context.Context, job domain.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.recordPath(job.ID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("jobstore: encode record: %w", err)
	}
	// Write to a sibling temp file, fsync, then rename so readers never see
	// a partially written record.
	tmp, err := os.CreateTemp(s.basePath, "."+job.ID+".*")
	if err != nil {
		return fmt.Errorf("jobstore: %w: %v", domain.ErrStorage, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("jobstore: write record: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("jobstore: sync record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("jobstore: close record: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("jobstore: %w: %v", domain.ErrStorage, err)
	}
	return nil
}

func (s *FileStore) Get(ctx context.Context, id string) (domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return domain.Job{}, err
	}
	path, err := s.recordPath(id)
	if err != nil {
		return domain.Job{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Job{}, domain.ErrNotFound
		}
		return domain.Job{}, fmt.Errorf("jobstore: %w: %v", domain.ErrStorage, err)
	}
	var job domain.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return domain.Job{}, fmt.Errorf("jobstore: decode record: %w", err)
	}
	return job, nil
}

// recordPath validates the id and resolves the status file path. Ids are
// opaque but must not escape the base directory.
func (s *FileStore) recordPath(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("jobstore: %w: empty id", domain.ErrInvalidRequest)
	}
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return "", fmt.Errorf("jobstore: %w: invalid id %q", domain.ErrInvalidRequest, id)
	}
	return filepath.Join(s.basePath, id+".json"), nil
}

var _ Store = (*FileStore)(nil)
