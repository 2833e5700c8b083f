package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/http/handlers"
	"server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/jobstore"
	"server/internal/render"
	"server/internal/runner"
	"server/internal/storage"
)

type rendererFunc func(ctx context.Context, req render.Request) (*render.Artifact, error)

func (f rendererFunc) Render(ctx context.Context, req render.Request) (*render.Artifact, error) {
	return f(ctx, req)
}

type testServer struct {
	router    http.Handler
	store     jobstore.Store
	artifacts *storage.FileStore
}

func newTestServer(t *testing.T, renderer render.Renderer) *testServer {
	t.Helper()
	store := jobstore.NewMemoryStore()
	artifacts, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}
	run := runner.New(runner.Options{
		Store:         store,
		Renderer:      renderer,
		Artifacts:     artifacts,
		Logger:        zerolog.Nop(),
		Workers:       2,
		RenderTimeout: 2 * time.Second,
	})
	run.Start(context.Background())
	t.Cleanup(run.Stop)

	app := handlers.NewApp(run, zerolog.Nop(), t.TempDir(), artifacts.BasePath())
	cfg := &infra.Config{RateLimitPerMin: 1000, CORSAllowedOrigins: []string{"*"}}
	return &testServer{
		router:    httpapi.NewRouter(app, cfg, zerolog.Nop()),
		store:     store,
		artifacts: artifacts,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) waitForTerminal(t *testing.T, id string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		rec := s.do(t, http.MethodGet, "/video-status/"+id, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status endpoint returned %d", rec.Code)
		}
		var job map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
			t.Fatalf("decode status body: %v", err)
		}
		status, _ := job["status"].(string)
		if status == string(domain.JobStateReady) || status == string(domain.JobStateFailed) {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached a terminal state", id)
	return nil
}

func writingRenderer(artifacts *storage.FileStore, release <-chan struct{}) rendererFunc {
	return func(ctx context.Context, req render.Request) (*render.Artifact, error) {
		if release != nil {
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		data := append([]byte("\x00\x00\x00\x18ftypisom"), bytes.Repeat([]byte{0xAB}, 256)...)
		path, err := artifacts.Write(ctx, fmt.Sprintf("video_%s.mp4", req.JobID), data)
		if err != nil {
			return nil, err
		}
		return &render.Artifact{Path: path, Format: "video/mp4", Bytes: int64(len(data))}, nil
	}
}

const validBody = `{"subreddit":"stories","voice":{"gender":"male"},"background":{}}`

func TestGenerateVideoLifecycle(t *testing.T) {
	release := make(chan struct{})
	var srv *testServer
	srv = newTestServer(t, rendererFunc(func(ctx context.Context, req render.Request) (*render.Artifact, error) {
		return writingRenderer(srv.artifacts, release)(ctx, req)
	}))

	rec := srv.do(t, http.MethodPost, "/generate-video", validBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit returned %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Success  bool    `json:"success"`
		VideoID  string  `json:"videoId"`
		VideoURL *string `json:"videoUrl"`
		Error    *string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode submit body: %v", err)
	}
	if !resp.Success || resp.Error != nil {
		t.Fatalf("unexpected submit response: %+v", resp)
	}
	if _, err := uuid.Parse(resp.VideoID); err != nil {
		t.Fatalf("videoId %q is not a uuid: %v", resp.VideoID, err)
	}
	if resp.VideoURL == nil || *resp.VideoURL != "/video/"+resp.VideoID {
		t.Fatalf("unexpected videoUrl: %v", resp.VideoURL)
	}

	// Immediately after submission the job is queued or generating.
	statusRec := srv.do(t, http.MethodGet, "/video-status/"+resp.VideoID, "")
	if statusRec.Code != http.StatusOK {
		t.Fatalf("status returned %d", statusRec.Code)
	}
	var job map[string]any
	if err := json.Unmarshal(statusRec.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode status body: %v", err)
	}
	if s := job["status"]; s != "queued" && s != "generating" {
		t.Fatalf("immediate status = %v, want queued or generating", s)
	}

	// While rendering, the download endpoint answers with the indicator.
	downloadRec := srv.do(t, http.MethodGet, "/video/"+resp.VideoID, "")
	if downloadRec.Code != http.StatusOK {
		t.Fatalf("download during render returned %d", downloadRec.Code)
	}
	if !strings.Contains(downloadRec.Body.String(), `"generating"`) {
		t.Fatalf("download during render body = %s", downloadRec.Body.String())
	}

	close(release)
	final := srv.waitForTerminal(t, resp.VideoID)
	if final["status"] != "ready" {
		t.Fatalf("final status = %v (error %v)", final["status"], final["error"])
	}
	if progress, _ := final["progress"].(float64); progress != 100 {
		t.Fatalf("final progress = %v, want 100", final["progress"])
	}
	if final["videoUrl"] != "/video/"+resp.VideoID {
		t.Fatalf("final videoUrl = %v", final["videoUrl"])
	}

	// The finished artifact downloads as video/mp4.
	fileRec := srv.do(t, http.MethodGet, "/video/"+resp.VideoID, "")
	if fileRec.Code != http.StatusOK {
		t.Fatalf("download returned %d", fileRec.Code)
	}
	if ct := fileRec.Header().Get("Content-Type"); ct != "video/mp4" {
		t.Fatalf("download content type = %q", ct)
	}
	data := fileRec.Body.Bytes()
	if len(data) < 12 || !bytes.Equal(data[4:8], []byte("ftyp")) {
		t.Fatalf("downloaded artifact missing ftyp header")
	}
}

func TestGenerateVideoValidation(t *testing.T) {
	srv := newTestServer(t, rendererFunc(func(ctx context.Context, req render.Request) (*render.Artifact, error) {
		return nil, errors.New("should not run")
	}))

	for _, body := range []string{
		`{"voice":{},"background":{}}`,
		`{"subreddit":"stories","background":{}}`,
		`{"subreddit":"stories","voice":{}}`,
		`{not json`,
	} {
		rec := srv.do(t, http.MethodPost, "/generate-video", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: code = %d, want 400", body, rec.Code)
			continue
		}
		var resp struct {
			Success bool    `json:"success"`
			Error   *string `json:"error"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode error body: %v", err)
		}
		if resp.Success || resp.Error == nil || *resp.Error == "" {
			t.Errorf("body %s: unexpected error response %+v", body, resp)
		}
	}
}

func TestVideoStatusUnknown(t *testing.T) {
	srv := newTestServer(t, rendererFunc(func(ctx context.Context, req render.Request) (*render.Artifact, error) {
		return nil, nil
	}))

	if rec := srv.do(t, http.MethodGet, "/video-status/does-not-exist", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("status for unknown id returned %d", rec.Code)
	}
	if rec := srv.do(t, http.MethodGet, "/video/does-not-exist", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("download for unknown id returned %d", rec.Code)
	}
}

func TestGenerateVideoRenderFailure(t *testing.T) {
	srv := newTestServer(t, rendererFunc(func(ctx context.Context, req render.Request) (*render.Artifact, error) {
		return nil, errors.New("no render backend available")
	}))

	rec := srv.do(t, http.MethodPost, "/generate-video", validBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit returned %d", rec.Code)
	}
	var resp struct {
		VideoID string `json:"videoId"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode submit body: %v", err)
	}

	final := srv.waitForTerminal(t, resp.VideoID)
	if final["status"] != "failed" {
		t.Fatalf("final status = %v, want failed", final["status"])
	}
	if msg, _ := final["error"].(string); msg == "" {
		t.Fatal("failed job carries no error message")
	}
	if progress, _ := final["progress"].(float64); progress != 0 {
		t.Fatalf("failed progress = %v, want 0", final["progress"])
	}

	if rec := srv.do(t, http.MethodGet, "/video/"+resp.VideoID, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("download for failed job returned %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, rendererFunc(func(ctx context.Context, req render.Request) (*render.Artifact, error) {
		return nil, nil
	}))

	rec := srv.do(t, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health returned %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Status  string `json:"status"`
		Service string `json:"service"`
		Storage map[string]struct {
			Path     string `json:"path"`
			Writable bool   `json:"writable"`
		} `json:"storage"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode health body: %v", err)
	}
	if body.Status != "healthy" || body.Service != "video-generation-api" {
		t.Fatalf("unexpected health body: %+v", body)
	}
	for name, entry := range body.Storage {
		if !entry.Writable {
			t.Fatalf("storage %s not writable: %+v", name, entry)
		}
	}
	if len(body.Storage) != 2 {
		t.Fatalf("expected two storage entries, got %d", len(body.Storage))
	}
}
