package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"server/internal/http/handlers"
	"server/internal/infra"
	"server/internal/middleware"
)

func NewRouter(app *handlers.App, cfg *infra.Config, logger infra.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(logger),
		middleware.CORS(cfg.CORSAllowedOrigins),
	)

	r.Get("/health", app.Health)

	r.With(middleware.RateLimit(cfg.RateLimitPerMin, time.Minute)).
		Post("/generate-video", app.GenerateVideo)

	r.Get("/video-status/{video_id}", app.VideoStatus)
	r.Get("/video/{video_id}", app.VideoDownload)

	return r
}
