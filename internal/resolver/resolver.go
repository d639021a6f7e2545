// Package resolver decides whether the persisted index artifact can be
// served as-is or must be rebuilt from the catalog source before anything
// else runs.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/openmercato/catalog-search/internal/catalog"
	"github.com/openmercato/catalog-search/internal/pipeline"
	"github.com/openmercato/catalog-search/internal/store"
	"github.com/openmercato/catalog-search/pkg/errors"
	"github.com/openmercato/catalog-search/pkg/metrics"
)

// Config is the resolver's complete decision input. ReadOnly is threaded
// through the constructor once and never re-queried ambiently.
type Config struct {
	SourcePath   string
	IndexPath    string
	MaxAge       time.Duration
	MinIndexSize int64
	Force        bool
	ReadOnly     bool
}

// Resolver owns the staleness policy and the rebuild path.
type Resolver struct {
	cfg      Config
	pipeline *pipeline.Pipeline
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// New creates a Resolver that rebuilds through the given pipeline.
func New(cfg Config, p *pipeline.Pipeline, m *metrics.Metrics) *Resolver {
	if cfg.MinIndexSize <= 0 {
		cfg.MinIndexSize = 64
	}
	return &Resolver{
		cfg:      cfg,
		pipeline: p,
		logger:   slog.Default().With("component", "resolver"),
		metrics:  m,
	}
}

// Resolve returns the product collection to serve, rebuilding the artifact
// first when the staleness policy demands it. In read-only mode a missing or
// corrupt artifact is fatal since there is nowhere to rebuild to.
func (r *Resolver) Resolve(ctx context.Context) ([]catalog.Product, error) {
	if r.cfg.ReadOnly {
		artifact, err := store.Load(r.cfg.IndexPath)
		if err != nil {
			return nil, fmt.Errorf("read-only mode: %w", err)
		}
		if err := store.Validate(artifact); err != nil {
			return nil, fmt.Errorf("read-only mode: %w", err)
		}
		r.logger.Info("serving existing artifact (read-only)",
			"path", r.cfg.IndexPath,
			"products", len(artifact.Products),
		)
		return artifact.Products, nil
	}

	reason, stale := r.staleness()
	if !stale {
		artifact, err := store.Load(r.cfg.IndexPath)
		if err == nil {
			if err := store.Validate(artifact); err == nil {
				r.logger.Info("serving existing artifact",
					"path", r.cfg.IndexPath,
					"products", len(artifact.Products),
				)
				return artifact.Products, nil
			}
		}
		// Existing file failed to load or validate after passing the cheap
		// checks; fall through to a rebuild.
		reason = "artifact failed validation"
	}

	r.logger.Info("rebuilding index", "reason", reason)
	return r.rebuild(ctx)
}

// staleness applies the decision table in order and reports the first
// matching rebuild reason.
func (r *Resolver) staleness() (string, bool) {
	if r.cfg.Force {
		return "force flag set", true
	}
	indexInfo, err := os.Stat(r.cfg.IndexPath)
	if err != nil {
		return "artifact missing", true
	}
	if sourceInfo, err := os.Stat(r.cfg.SourcePath); err == nil {
		if indexInfo.ModTime().Before(sourceInfo.ModTime()) {
			return "source newer than artifact", true
		}
	}
	if r.cfg.MaxAge > 0 && time.Since(indexInfo.ModTime()) > r.cfg.MaxAge {
		return "artifact older than max age", true
	}
	if indexInfo.Size() < r.cfg.MinIndexSize {
		return "artifact implausibly small", true
	}
	return "", false
}

func (r *Resolver) rebuild(ctx context.Context) ([]catalog.Product, error) {
	artifact, runMetrics, err := r.pipeline.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("rebuilding artifact: %w", err)
	}
	if err := store.Persist(artifact, store.PathsFor(r.cfg.IndexPath)); err != nil {
		return nil, err
	}
	if r.metrics != nil {
		r.metrics.IndexRebuildsTotal.Inc()
	}
	r.logger.Info("rebuild complete",
		"products", artifact.Metadata.TotalProducts,
		"rejected", runMetrics.RejectedCount,
		"duration_ms", runMetrics.DurationMs,
	)
	return artifact.Products, nil
}

// Rebuild forces a full re-ingestion and artifact replacement regardless of
// staleness. It fails in read-only mode.
func (r *Resolver) Rebuild(ctx context.Context) ([]catalog.Product, error) {
	if r.cfg.ReadOnly {
		return nil, fmt.Errorf("%w: rebuild requested", errors.ErrReadOnly)
	}
	return r.rebuild(ctx)
}
