package handlers

import (
	"encoding/json"
	"net/http"

	"server/internal/infra"
	"server/internal/runner"
)

// App bundles the dependencies shared by the HTTP handlers.
type App struct {
	Runner    *runner.Runner
	Logger    infra.Logger
	StatusDir string
	VideoDir  string
}

func NewApp(r *runner.Runner, logger infra.Logger, statusDir, videoDir string) *App {
	return &App{Runner: r, Logger: logger, StatusDir: statusDir, VideoDir: videoDir}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}
