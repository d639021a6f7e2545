package engine

import (
	"context"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/openmercato/catalog-search/internal/resolver"
	"github.com/openmercato/catalog-search/pkg/metrics"
)

// Provider owns one Engine and the resolver that feeds it. It replaces the
// long-lived global of older designs: callers hold the Provider explicitly
// and obtain the engine through Get.
type Provider struct {
	resolver *resolver.Resolver
	opts     Options
	metrics  *metrics.Metrics
	logger   *slog.Logger

	engine atomic.Pointer[Engine]
	group  singleflight.Group
}

// NewProvider wires a resolver to engine construction. Nothing is built
// until the first Get.
func NewProvider(r *resolver.Resolver, opts Options, m *metrics.Metrics) *Provider {
	return &Provider{
		resolver: r,
		opts:     opts,
		metrics:  m,
		logger:   slog.Default().With("component", "engine-provider"),
	}
}

// Get returns the active engine, building it on first use. Concurrent first
// callers share a single resolve-and-build.
func (p *Provider) Get(ctx context.Context) (*Engine, error) {
	if e := p.engine.Load(); e != nil {
		return e, nil
	}
	v, err, _ := p.group.Do("build", func() (any, error) {
		if e := p.engine.Load(); e != nil {
			return e, nil
		}
		products, err := p.resolver.Resolve(ctx)
		if err != nil {
			return nil, err
		}
		e := New(products, p.opts, p.metrics)
		p.engine.Store(e)
		p.logger.Info("engine built", "products", len(products))
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Engine), nil
}

// Rebuild forces a full re-ingestion and swaps the rebuilt collection into
// the active engine. Concurrent callers share one rebuild.
func (p *Provider) Rebuild(ctx context.Context) error {
	_, err, _ := p.group.Do("rebuild", func() (any, error) {
		products, err := p.resolver.Rebuild(ctx)
		if err != nil {
			return nil, err
		}
		if e := p.engine.Load(); e != nil {
			e.ReplaceCollection(products)
		} else {
			p.engine.Store(New(products, p.opts, p.metrics))
		}
		return nil, nil
	})
	return err
}
