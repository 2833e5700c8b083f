package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"server/internal/http/handlers"
	httpapi "server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/jobstore"
	"server/internal/render"
	"server/internal/runner"
	"server/internal/storage"
)

func main() {
	// Load .env (optional)
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()

	videoStore, err := storage.NewFileStore(cfg.VideoDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure video storage")
	}

	// Job store backend per config. The status dir is only probed by the
	// health endpoint when the file backend is active.
	var store jobstore.Store
	statusDir := ""
	switch cfg.JobStore {
	case infra.JobStoreMemory:
		store = jobstore.NewMemoryStore()
	case infra.JobStoreFile:
		fileStore, err := jobstore.NewFileStore(cfg.StatusDir)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure status storage")
		}
		store = fileStore
		statusDir = cfg.StatusDir
	case infra.JobStorePostgres:
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer pool.Close()
		pgStore := jobstore.NewPGStore(pool)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare job table")
		}
		store = pgStore
	}

	// Render strategies, tried in order per job.
	var strategies []render.Strategy
	if cfg.OpenAIAPIKey != "" {
		stories, err := render.NewOpenAIStoryProvider(render.OpenAIOptions{
			APIKey:       cfg.OpenAIAPIKey,
			Model:        cfg.OpenAIModel,
			BaseURL:      cfg.OpenAIBaseURL,
			Organization: cfg.OpenAIOrg,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure openai stories")
		}
		strategies = append(strategies, render.Strategy{
			Name:     "openai-story",
			Renderer: render.NewClipRenderer("openai-story", stories, videoStore, logger),
		})
	} else {
		logger.Warn().Msg("openai api key missing, falling back to template stories")
	}
	strategies = append(strategies,
		render.Strategy{
			Name:     "template-story",
			Renderer: render.NewClipRenderer("template-story", render.NewTemplateStoryProvider(), videoStore, logger),
		},
		render.Strategy{
			Name:     "background-only",
			Renderer: render.NewClipRenderer("background-only", nil, videoStore, logger),
		},
	)

	jobRunner := runner.New(runner.Options{
		Store:         store,
		Renderer:      render.NewChain(logger, strategies...),
		Artifacts:     videoStore,
		Logger:        logger,
		Workers:       cfg.WorkerCount,
		RenderTimeout: cfg.RenderTimeout,
	})
	jobRunner.Start(ctx)

	app := handlers.NewApp(jobRunner, logger, statusDir, cfg.VideoDir)
	router := httpapi.NewRouter(app, cfg, logger)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// Graceful shutdown: stop accepting requests, then drain the workers.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	jobRunner.Stop()
	logger.Info().Msg("server stopped")
}
