package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/openmercato/catalog-search/internal/engine"
	"github.com/openmercato/catalog-search/internal/pipeline"
	"github.com/openmercato/catalog-search/internal/resolver"
	"github.com/openmercato/catalog-search/internal/server"
	"github.com/openmercato/catalog-search/pkg/config"
	"github.com/openmercato/catalog-search/pkg/health"
	"github.com/openmercato/catalog-search/pkg/logger"
	"github.com/openmercato/catalog-search/pkg/metrics"
	"github.com/openmercato/catalog-search/pkg/middleware"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting catalog search service",
		"port", cfg.Server.Port,
		"source", cfg.Catalog.SourcePath,
		"index", cfg.Catalog.IndexPath,
		"read_only", cfg.Catalog.ReadOnly,
	)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	p := pipeline.New(pipeline.Config{
		Path:                 cfg.Catalog.SourcePath,
		ChunkSize:            cfg.Pipeline.ChunkSize,
		Workers:              cfg.Pipeline.Workers,
		MaxImages:            cfg.Pipeline.MaxImages,
		MaxDescriptionLength: cfg.Pipeline.MaxDescriptionLength,
	}, m)

	res := resolver.New(resolver.Config{
		SourcePath:   cfg.Catalog.SourcePath,
		IndexPath:    cfg.Catalog.IndexPath,
		MaxAge:       cfg.Catalog.MaxAge,
		MinIndexSize: cfg.Catalog.MinIndexSize,
		ReadOnly:     cfg.Catalog.ReadOnly,
	}, p, m)

	provider := engine.NewProvider(res, engine.Options{
		SimilarityThreshold: cfg.Search.SimilarityThreshold,
		DefaultLimit:        cfg.Search.DefaultLimit,
	}, m)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := provider.Get(ctx)
	if err != nil {
		slog.Error("failed to build search engine", "error", err)
		os.Exit(1)
	}
	slog.Info("search engine ready", "products", eng.Size())

	checker := health.NewChecker()
	checker.Register("engine", func(ctx context.Context) health.ComponentHealth {
		if eng.Size() > 0 {
			return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d products", eng.Size())}
		}
		return health.ComponentHealth{Status: health.StatusDegraded, Message: "empty collection"}
	})
	checker.Register("artifact", func(ctx context.Context) health.ComponentHealth {
		if _, err := os.Stat(cfg.Catalog.IndexPath); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "artifact file missing"}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	h := server.New(provider,
		cfg.Search.DefaultLimit,
		cfg.Search.MaxLimit,
		cfg.Search.SuggestLimit,
		cfg.Catalog.ReadOnly,
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/suggest", h.Suggest)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
	mux.HandleFunc("GET /api/v1/vendors", h.Vendors)
	mux.HandleFunc("GET /api/v1/types", h.ProductTypes)
	mux.HandleFunc("POST /api/v1/reindex", h.Reindex)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	var metricsShutdown func(context.Context) error
	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port > 0 && cfg.Metrics.Port != cfg.Server.Port {
			metricsShutdown = metrics.StartServer(cfg.Metrics.Port)
		} else {
			mux.Handle("GET /metrics", metrics.Handler())
		}
	}

	var chain http.Handler = mux
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.RequestID(chain)

	if cfg.Watcher.Enabled && !cfg.Catalog.ReadOnly {
		watcher := server.NewWatcher(provider, cfg.Catalog.SourcePath, cfg.Watcher.Debounce)
		go func() {
			if err := watcher.Run(ctx); err != nil {
				slog.Error("source watcher stopped", "error", err)
			}
		}()
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if metricsShutdown != nil {
			if err := metricsShutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
	}()

	slog.Info("catalog search service listening", "addr", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("catalog search service stopped")
}
