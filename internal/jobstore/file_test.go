package jobstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"server/internal/domain"
)

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}
	ctx := context.Background()

	job := domain.Job{
		ID:        "abc-123",
		Status:    domain.JobStateGenerating,
		Progress:  40,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := store.Put(ctx, job); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	// The record is a JSON file named after the id.
	if _, err := os.Stat(filepath.Join(dir, "abc-123.json")); err != nil {
		t.Fatalf("status file missing: %v", err)
	}

	got, err := store.Get(ctx, "abc-123")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.Status != domain.JobStateGenerating || got.Progress != 40 {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}
	ctx := context.Background()

	job := domain.Job{ID: "persist-1", Status: domain.JobStateReady, Progress: 100, VideoURL: "/video/persist-1"}
	if err := store.Put(ctx, job); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	reopened, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("reopen returned error: %v", err)
	}
	got, err := reopened.Get(ctx, "persist-1")
	if err != nil {
		t.Fatalf("Get after reopen returned error: %v", err)
	}
	if got.Status != domain.JobStateReady || got.VideoURL != "/video/persist-1" {
		t.Fatalf("unexpected record after reopen: %+v", got)
	}
}

func TestFileStoreNotFound(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}
	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFileStoreRejectsTraversalIds(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}
	ctx := context.Background()
	for _, id := range []string{"", "../escape", "a/b", `a\b`} {
		if err := store.Put(ctx, domain.Job{ID: id}); !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("Put(%q) error = %v, want ErrInvalidRequest", id, err)
		}
		if _, err := store.Get(ctx, id); !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("Get(%q) error = %v, want ErrInvalidRequest", id, err)
		}
	}
}
