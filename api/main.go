package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/DeafMist/blog-factory/internal/config"
	"github.com/DeafMist/blog-factory/internal/elasticsearch"
	"github.com/DeafMist/blog-factory/internal/images"
	"github.com/DeafMist/blog-factory/internal/logger"
	"github.com/DeafMist/blog-factory/internal/metrics"
	"github.com/DeafMist/blog-factory/internal/render"
)

func main() {
	log := logger.New("api")
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
	if err != nil {
		log.Error("init elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}

	m := metrics.New(prometheus.NewRegistry())
	resolver, clients := images.NewFromConfig(cfg.Images, log, images.WithRecorder(m))

	srv := &server{
		log:       log,
		cfg:       cfg,
		posts:     esClient,
		images:    resolver,
		caches:    clients,
		renderer:  render.New(log),
		metrics:   m,
		imageOpts: images.OptionsFromConfig(cfg.Images),
	}

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	go func() {
		log.Info("api server starting", slog.String("addr", cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/validate", s.handleValidate)
		r.Post("/render", s.handleRender)
		r.Post("/analyze", s.handleAnalyze)

		r.Get("/images", s.handleImage)
		r.Post("/images/batch", s.handleImageBatch)
		r.Post("/images/prefetch", s.handlePrefetch)
		r.Delete("/images/cache", s.handleClearCache)

		r.Get("/posts", s.handleSearch)
		r.Get("/posts/{id}", s.handleGetPost)
	})
	return r
}
