package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/jobstore"
	"server/internal/render"
	"server/internal/storage"
)

const (
	DefaultWorkers       = 2
	DefaultRenderTimeout = 5 * time.Minute

	// An artifact smaller than this is treated as a failed render.
	minArtifactBytes = 64
)

// Request is a video-generation submission. Validation happens in Submit.
type Request struct {
	Subreddit     string
	IsCliffhanger bool
	Voice         map[string]any
	Background    map[string]any
	CustomStory   map[string]any
}

// Options configures a Runner.
type Options struct {
	Store         jobstore.Store
	Renderer      render.Renderer
	Artifacts     *storage.FileStore
	Logger        zerolog.Logger
	Workers       int
	RenderTimeout time.Duration
}

// Runner accepts generation requests, tracks them in the job store, and
// executes renders on a fixed pool of workers. Submission never blocks on
// render completion; the queue in front of the pool is unbounded.
type Runner struct {
	store     jobstore.Store
	renderer  render.Renderer
	artifacts *storage.FileStore
	logger    zerolog.Logger
	workers   int
	timeout   time.Duration

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []workItem
	stopped bool
	wg      sync.WaitGroup

	// updateMu serializes job record updates: a progress write from the
	// render goroutine must not interleave with a terminal write from the
	// worker, or it would resurrect a finished job.
	updateMu sync.Mutex
}

type workItem struct {
	id  string
	req Request
}

func New(opts Options) *Runner {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	timeout := opts.RenderTimeout
	if timeout <= 0 {
		timeout = DefaultRenderTimeout
	}
	r := &Runner{
		store:     opts.Store,
		renderer:  opts.Renderer,
		artifacts: opts.Artifacts,
		logger:    opts.Logger,
		workers:   workers,
		timeout:   timeout,
	}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Start launches the worker pool. ctx bounds the renders of jobs picked up
// after it is cancelled; call Stop to drain the pool.
func (r *Runner) Start(ctx context.Context) {
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.workerLoop(ctx, i+1)
	}
	r.logger.Info().Int("workers", r.workers).Msg("runner: started")
}

// Stop wakes idle workers and waits for in-flight jobs to finish. Queued
// items that no worker picked up remain in the queued state.
func (r *Runner) Stop() {
	r.mu.Lock()
	r.stopped = true
	r.cond.Broadcast()
	r.mu.Unlock()
	r.wg.Wait()
	r.logger.Info().Msg("runner: stopped")
}

// Submit validates the request, records a queued job, schedules the work and
// returns the new job id without waiting for a worker slot.
func (r *Runner) Submit(ctx context.Context, req Request) (string, error) {
	if err := validateRequest(req); err != nil {
		return "", err
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	job := domain.Job{
		ID:        id,
		Status:    domain.JobStateQueued,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.store.Put(ctx, job); err != nil {
		return "", fmt.Errorf("queue job: %w", err)
	}

	if err := r.enqueue(workItem{id: id, req: req}); err != nil {
		return "", err
	}
	r.logger.Info().Str("job_id", id).Str("subreddit", req.Subreddit).Msg("runner: job submitted")
	return id, nil
}

// Status returns the latest job record.
func (r *Runner) Status(ctx context.Context, id string) (domain.Job, error) {
	return r.store.Get(ctx, id)
}

// Artifact resolves the artifact path for a job. A job whose file is not on
// disk yet reports domain.ErrStillGenerating while it is queued or
// generating, and domain.ErrNotFound otherwise.
func (r *Runner) Artifact(ctx context.Context, id string) (string, error) {
	job, err := r.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	key := artifactKey(id)
	if info, statErr := r.artifacts.Stat(key); statErr == nil && info.Size() > 0 {
		return r.artifacts.Path(key)
	}
	if job.Status == domain.JobStateQueued || job.Status == domain.JobStateGenerating {
		return "", domain.ErrStillGenerating
	}
	return "", domain.ErrNotFound
}

func validateRequest(req Request) error {
	if strings.TrimSpace(req.Subreddit) == "" {
		return fmt.Errorf("%w: subreddit is required", domain.ErrInvalidRequest)
	}
	if req.Voice == nil {
		return fmt.Errorf("%w: voice configuration is required", domain.ErrInvalidRequest)
	}
	if req.Background == nil {
		return fmt.Errorf("%w: background configuration is required", domain.ErrInvalidRequest)
	}
	return nil
}

func (r *Runner) enqueue(item workItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return errors.New("runner: not accepting jobs")
	}
	r.queue = append(r.queue, item)
	r.cond.Signal()
	return nil
}

// next blocks until a work item is available or the runner stops.
func (r *Runner) next() (workItem, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for len(r.queue) == 0 && !r.stopped {
		r.cond.Wait()
	}
	if len(r.queue) == 0 {
		return workItem{}, false
	}
	item := r.queue[0]
	r.queue = r.queue[1:]
	return item, true
}

func (r *Runner) workerLoop(ctx context.Context, index int) {
	defer r.wg.Done()
	log := r.logger.With().Int("worker", index).Logger()
	for {
		item, ok := r.next()
		if !ok {
			log.Debug().Msg("runner: worker exiting")
			return
		}
		r.execute(ctx, item)
	}
}

func (r *Runner) execute(ctx context.Context, item workItem) {
	log := r.logger.With().Str("job_id", item.id).Logger()
	log.Info().Msg("runner: job started")

	r.advance(ctx, item.id, domain.JobStateGenerating, 10, "", "")

	renderCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req := render.Request{
		JobID:         item.id,
		Subreddit:     item.req.Subreddit,
		IsCliffhanger: item.req.IsCliffhanger,
		Voice:         item.req.Voice,
		Background:    item.req.Background,
		CustomStory:   item.req.CustomStory,
		OnProgress: func(percent int) {
			r.advance(context.Background(), item.id, domain.JobStateGenerating, percent, "", "")
		},
	}

	type renderResult struct {
		artifact *render.Artifact
		err      error
	}
	done := make(chan renderResult, 1)
	go func() {
		artifact, err := r.renderer.Render(renderCtx, req)
		done <- renderResult{artifact: artifact, err: err}
	}()

	var res renderResult
	select {
	case res = <-done:
	case <-renderCtx.Done():
		// Stop waiting; the render goroutine keeps running until it
		// observes the cancelled context.
		if errors.Is(renderCtx.Err(), context.DeadlineExceeded) {
			res.err = fmt.Errorf("%w after %s", domain.ErrRenderTimeout, r.timeout)
		} else {
			res.err = renderCtx.Err()
		}
	}

	if res.err != nil && errors.Is(res.err, context.DeadlineExceeded) && !errors.Is(res.err, domain.ErrRenderTimeout) {
		// The renderer observed the deadline itself before the select did.
		res.err = fmt.Errorf("%w after %s", domain.ErrRenderTimeout, r.timeout)
	}
	if res.err == nil {
		res.err = r.verifyArtifact(res.artifact)
	}
	if res.err != nil {
		log.Error().Err(res.err).Msg("runner: job failed")
		r.advance(context.Background(), item.id, domain.JobStateFailed, 0, res.err.Error(), "")
		return
	}

	r.advance(context.Background(), item.id, domain.JobStateReady, 100, "", "/video/"+item.id)
	log.Info().Int64("bytes", res.artifact.Bytes).Msg("runner: job ready")
}

// advance applies a guarded read-modify-write on the job record. Transitions
// that would move a terminal job, or progress values running backwards, are
// dropped. updateMu keeps the read and the write atomic against concurrent
// advances for the same job.
func (r *Runner) advance(ctx context.Context, id string, state domain.JobState, progress int, errMsg, videoURL string) {
	r.updateMu.Lock()
	defer r.updateMu.Unlock()

	job, err := r.store.Get(ctx, id)
	if err != nil {
		r.logger.Error().Err(err).Str("job_id", id).Msg("runner: load job for update failed")
		return
	}
	if !job.Status.CanTransition(state) {
		r.logger.Warn().
			Str("job_id", id).
			Str("from", string(job.Status)).
			Str("to", string(state)).
			Msg("runner: dropping illegal transition")
		return
	}
	if state == domain.JobStateGenerating && progress < job.Progress {
		progress = job.Progress
	}
	job.Status = state
	job.Progress = progress
	job.Error = errMsg
	job.VideoURL = videoURL
	job.UpdatedAt = time.Now().UTC()
	if err := r.store.Put(ctx, job); err != nil {
		r.logger.Error().Err(err).Str("job_id", id).Msg("runner: persist job update failed")
	}
}

func (r *Runner) verifyArtifact(artifact *render.Artifact) error {
	if artifact == nil {
		return fmt.Errorf("%w: renderer returned no artifact", domain.ErrRenderFailure)
	}
	info, err := os.Stat(artifact.Path)
	if err != nil {
		return fmt.Errorf("%w: artifact missing: %v", domain.ErrRenderFailure, err)
	}
	if info.Size() < minArtifactBytes {
		return fmt.Errorf("%w: artifact undersized (%d bytes)", domain.ErrRenderFailure, info.Size())
	}
	return nil
}

func artifactKey(id string) string {
	return fmt.Sprintf("video_%s.mp4", id)
}
