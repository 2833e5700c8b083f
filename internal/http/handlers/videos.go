package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
	"server/internal/runner"
)

type generateVideoRequest struct {
	Subreddit     string         `json:"subreddit"`
	IsCliffhanger bool           `json:"isCliffhanger"`
	Voice         map[string]any `json:"voice"`
	Background    map[string]any `json:"background"`
	CustomStory   map[string]any `json:"customStory"`
}

type generateVideoResponse struct {
	Success  bool    `json:"success"`
	VideoID  string  `json:"videoId"`
	VideoURL *string `json:"videoUrl"`
	Error    *string `json:"error"`
}

// GenerateVideo accepts a generation request and returns the job id
// immediately; completion is observed through the status endpoint.
func (a *App) GenerateVideo(w http.ResponseWriter, r *http.Request) {
	var req generateVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.generateError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	id, err := a.Runner.Submit(r.Context(), runner.Request{
		Subreddit:     req.Subreddit,
		IsCliffhanger: req.IsCliffhanger,
		Voice:         req.Voice,
		Background:    req.Background,
		CustomStory:   req.CustomStory,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			a.generateError(w, http.StatusBadRequest, err.Error())
			return
		}
		a.Logger.Error().Err(err).Msg("http: video submission failed")
		a.generateError(w, http.StatusInternalServerError, "failed to queue video generation")
		return
	}

	videoURL := "/video/" + id
	a.json(w, http.StatusOK, generateVideoResponse{
		Success:  true,
		VideoID:  id,
		VideoURL: &videoURL,
	})
}

func (a *App) generateError(w http.ResponseWriter, status int, message string) {
	a.json(w, status, generateVideoResponse{Success: false, Error: &message})
}

// VideoStatus returns the job record for polling clients.
func (a *App) VideoStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "video_id")
	job, err := a.Runner.Status(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "video not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", id).Msg("http: status lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load video status")
		return
	}
	a.json(w, http.StatusOK, job)
}

// VideoDownload serves the finished artifact. While the job is still queued
// or generating it answers with a JSON indicator instead of a 404.
func (a *App) VideoDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "video_id")
	path, err := a.Runner.Artifact(r.Context(), id)
	switch {
	case err == nil:
		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="video_%s.mp4"`, id))
		http.ServeFile(w, r, path)
	case errors.Is(err, domain.ErrStillGenerating):
		a.json(w, http.StatusOK, map[string]string{
			"status":  "generating",
			"message": "video is still being generated, poll /video-status/" + id,
		})
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "video not found")
	default:
		a.Logger.Error().Err(err).Str("job_id", id).Msg("http: artifact lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load video")
	}
}
