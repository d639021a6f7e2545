// Package pipeline streams the delimited catalog source, transforms rows in
// bounded batches, and merges the accepted records into one index artifact.
package pipeline

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openmercato/catalog-search/internal/catalog"
	"github.com/openmercato/catalog-search/internal/transform"
	"github.com/openmercato/catalog-search/pkg/errors"
	"github.com/openmercato/catalog-search/pkg/metrics"
)

const memSampleInterval = 250 * time.Millisecond

// Config controls one ingestion run.
type Config struct {
	Path                 string
	ChunkSize            int
	Workers              int
	MaxImages            int
	MaxDescriptionLength int
}

// batchResult carries one transformed batch back to the merge point.
type batchResult struct {
	products []catalog.Product
	rejected int
}

// Pipeline reads the catalog source and produces artifacts. It holds no
// per-run state; every Run is independent.
type Pipeline struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a Pipeline. The metrics argument may be nil in tooling that
// does not export Prometheus metrics.
func New(cfg Config, m *metrics.Metrics) *Pipeline {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 2000
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return &Pipeline{
		cfg:     cfg,
		logger:  slog.Default().With("component", "pipeline"),
		metrics: m,
	}
}

// Run ingests the whole source file and returns the merged artifact together
// with the run's immutable metrics. A source open or stream-read failure is
// fatal: no partial artifact is ever returned.
func (p *Pipeline) Run(ctx context.Context) (*catalog.Artifact, catalog.Metrics, error) {
	start := time.Now()

	f, err := os.Open(p.cfg.Path)
	if err != nil {
		p.countRun("error")
		return nil, catalog.Metrics{}, fmt.Errorf("%w: opening %s: %v", errors.ErrSourceUnavailable, p.cfg.Path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		p.countRun("error")
		return nil, catalog.Metrics{}, fmt.Errorf("%w: reading header of %s: %v", errors.ErrSourceUnavailable, p.cfg.Path, err)
	}
	for i, col := range header {
		header[i] = strings.ToLower(strings.TrimSpace(col))
	}

	peak := newPeakSampler()
	peak.Start()
	defer peak.Stop()

	opts := transform.Options{
		MaxImages:            p.cfg.MaxImages,
		MaxDescriptionLength: p.cfg.MaxDescriptionLength,
	}

	g, gctx := errgroup.WithContext(ctx)
	batches := make(chan []transform.Row, p.cfg.Workers)
	results := make(chan batchResult, p.cfg.Workers)

	// Transform is pure and batch order is not significant, so batches are
	// handed to independent workers and merged afterwards.
	for range p.cfg.Workers {
		g.Go(func() error {
			for batch := range batches {
				res := batchResult{products: make([]catalog.Product, 0, len(batch))}
				for _, row := range batch {
					product, err := transform.Transform(row, opts)
					if err != nil {
						res.rejected++
						continue
					}
					res.products = append(res.products, product)
				}
				select {
				case results <- res:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}

	var readErr error
	go func() {
		defer close(batches)
		batch := make([]transform.Row, 0, p.cfg.ChunkSize)
		for {
			record, err := reader.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				readErr = fmt.Errorf("%w: streaming %s: %v", errors.ErrSourceUnavailable, p.cfg.Path, err)
				return
			}
			batch = append(batch, rowFromRecord(header, record))
			if len(batch) == p.cfg.ChunkSize {
				select {
				case batches <- batch:
				case <-gctx.Done():
					return
				}
				batch = make([]transform.Row, 0, p.cfg.ChunkSize)
			}
		}
		if len(batch) > 0 {
			select {
			case batches <- batch:
			case <-gctx.Done():
			}
		}
	}()

	var mergeWG sync.WaitGroup
	var products []catalog.Product
	rejected := 0
	mergeWG.Add(1)
	go func() {
		defer mergeWG.Done()
		for res := range results {
			products = append(products, res.products...)
			rejected += res.rejected
		}
	}()

	workerErr := g.Wait()
	close(results)
	mergeWG.Wait()

	if readErr != nil {
		p.countRun("error")
		return nil, catalog.Metrics{}, readErr
	}
	if workerErr != nil {
		p.countRun("error")
		return nil, catalog.Metrics{}, fmt.Errorf("transforming batches: %w", workerErr)
	}

	artifact := catalog.NewArtifact(products)
	elapsed := time.Since(start)

	size, err := artifactSize(artifact)
	if err != nil {
		p.countRun("error")
		return nil, catalog.Metrics{}, fmt.Errorf("sizing artifact: %w", err)
	}

	runMetrics := catalog.Metrics{
		DurationMs:        elapsed.Milliseconds(),
		ThroughputPerSec:  throughput(len(products), elapsed),
		PeakMemoryMB:      peak.PeakMB(),
		RejectedCount:     rejected,
		ArtifactSizeBytes: size,
	}

	if p.metrics != nil {
		p.metrics.RowsIngestedTotal.Add(float64(len(products)))
		p.metrics.RowsRejectedTotal.Add(float64(rejected))
		p.metrics.IngestionDuration.Observe(elapsed.Seconds())
		p.countRun("success")
	}

	p.logger.Info("ingestion complete",
		"source", p.cfg.Path,
		"accepted", len(products),
		"rejected", rejected,
		"duration_ms", runMetrics.DurationMs,
		"throughput_per_sec", runMetrics.ThroughputPerSec,
		"peak_memory_mb", runMetrics.PeakMemoryMB,
	)
	return artifact, runMetrics, nil
}

func (p *Pipeline) countRun(status string) {
	if p.metrics != nil {
		p.metrics.IngestionRunsTotal.WithLabelValues(status).Inc()
	}
}

func rowFromRecord(header, record []string) transform.Row {
	row := make(transform.Row, len(header))
	for i, col := range header {
		if i < len(record) {
			row[col] = record[i]
		}
	}
	return row
}

func throughput(accepted int, elapsed time.Duration) float64 {
	secs := elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(accepted) / secs
}

func artifactSize(a *catalog.Artifact) (int64, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

// peakSampler periodically samples heap usage during a run. The reading is
// advisory and not load-bearing for correctness.
type peakSampler struct {
	mu   sync.Mutex
	peak uint64
	done chan struct{}
	wg   sync.WaitGroup
}

func newPeakSampler() *peakSampler {
	return &peakSampler{done: make(chan struct{})}
}

func (s *peakSampler) Start() {
	s.sample()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(memSampleInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sample()
			case <-s.done:
				s.sample()
				return
			}
		}
	}()
}

func (s *peakSampler) Stop() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	s.wg.Wait()
}

func (s *peakSampler) sample() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	s.mu.Lock()
	if ms.HeapAlloc > s.peak {
		s.peak = ms.HeapAlloc
	}
	s.mu.Unlock()
}

func (s *peakSampler) PeakMB() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return float64(s.peak) / (1024 * 1024)
}
