package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/openmercato/catalog-search/internal/pipeline"
	"github.com/openmercato/catalog-search/internal/store"
	"github.com/openmercato/catalog-search/pkg/config"
	"github.com/openmercato/catalog-search/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	sourcePath := flag.String("source", "", "override catalog source path")
	indexPath := flag.String("index", "", "override index artifact path")
	force := flag.Bool("force", false, "rebuild even if the artifact is fresh")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *sourcePath != "" {
		cfg.Catalog.SourcePath = *sourcePath
	}
	if *indexPath != "" {
		cfg.Catalog.IndexPath = *indexPath
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if cfg.Catalog.ReadOnly {
		slog.Error("builder cannot run in read-only mode")
		os.Exit(1)
	}
	if !*force {
		if _, err := os.Stat(cfg.Catalog.IndexPath); err == nil {
			slog.Info("artifact already exists, use -force to rebuild", "path", cfg.Catalog.IndexPath)
			return
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := pipeline.New(pipeline.Config{
		Path:                 cfg.Catalog.SourcePath,
		ChunkSize:            cfg.Pipeline.ChunkSize,
		Workers:              cfg.Pipeline.Workers,
		MaxImages:            cfg.Pipeline.MaxImages,
		MaxDescriptionLength: cfg.Pipeline.MaxDescriptionLength,
	}, nil)

	artifact, runMetrics, err := p.Run(ctx)
	if err != nil {
		slog.Error("ingestion failed", "error", err)
		os.Exit(1)
	}
	if err := store.Persist(artifact, store.PathsFor(cfg.Catalog.IndexPath)); err != nil {
		slog.Error("persistence failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("products:        %d\n", artifact.Metadata.TotalProducts)
	fmt.Printf("rejected:        %d\n", runMetrics.RejectedCount)
	fmt.Printf("duration:        %dms\n", runMetrics.DurationMs)
	fmt.Printf("throughput:      %.1f rows/s\n", runMetrics.ThroughputPerSec)
	fmt.Printf("peak memory:     %.1f MB\n", runMetrics.PeakMemoryMB)
	fmt.Printf("artifact size:   %d bytes\n", runMetrics.ArtifactSizeBytes)
}
