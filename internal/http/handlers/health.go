package handlers

import (
	"net/http"

	"server/internal/storage"
)

// Health reports liveness plus writability of the backing storage
// directories, so a misconfigured volume shows up before the first render.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	dirs := map[string]any{}
	for name, dir := range map[string]string{"statusDir": a.StatusDir, "videoDir": a.VideoDir} {
		if dir == "" {
			continue
		}
		entry := map[string]any{"path": dir, "writable": true}
		if err := probeWritable(dir); err != nil {
			entry["writable"] = false
			entry["error"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		dirs[name] = entry
	}

	overall := "healthy"
	if status != http.StatusOK {
		overall = "degraded"
	}
	a.json(w, status, map[string]any{
		"status":  overall,
		"service": "video-generation-api",
		"storage": dirs,
	})
}

func probeWritable(dir string) error {
	store, err := storage.NewFileStore(dir)
	if err != nil {
		return err
	}
	return store.CheckWritable()
}
