// Package engine serves fuzzy, weighted, filterable, sortable, paginated
// queries over one immutable product collection. The collection and its
// derived match structure are built once and swapped wholesale; concurrent
// reads never require locking.
package engine

import (
	"log/slog"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/openmercato/catalog-search/internal/catalog"
	"github.com/openmercato/catalog-search/pkg/metrics"
)

// Sort orders accepted by Search.
const (
	SortRelevance = "relevance"
	SortPriceAsc  = "price-asc"
	SortPriceDesc = "price-desc"
	SortNameAsc   = "name-asc"
	SortNameDesc  = "name-desc"
	SortNewest    = "newest"
)

// Filters is a strict conjunction; every member is independently optional.
type Filters struct {
	Vendor      string
	ProductType string
	MinPrice    *float64
	MaxPrice    *float64
	InStock     bool
}

// Request is one search call.
type Request struct {
	Query   string
	Filters Filters
	Page    int
	Limit   int
	SortBy  string
}

// Result is a single page of matches plus pagination bookkeeping.
type Result struct {
	Items      []catalog.Product `json:"items"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalPages int               `json:"total_pages"`
	ElapsedMs  int64             `json:"elapsed_ms"`
}

// Options tunes the fuzzy matcher.
type Options struct {
	SimilarityThreshold float64
	DefaultLimit        int
}

// snapshot pairs the collection with its prepared match documents. A search
// holds exactly one snapshot for its whole execution.
type snapshot struct {
	products []catalog.Product
	docs     []document
}

// Engine answers queries over the active snapshot.
type Engine struct {
	current atomic.Pointer[snapshot]
	opts    Options
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New builds an Engine and its match structure from a loaded collection.
// The metrics argument may be nil.
func New(products []catalog.Product, opts Options, m *metrics.Metrics) *Engine {
	if opts.SimilarityThreshold <= 0 {
		opts.SimilarityThreshold = 0.35
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 20
	}
	e := &Engine{
		opts:    opts,
		logger:  slog.Default().With("component", "engine"),
		metrics: m,
	}
	e.current.Store(buildSnapshot(products))
	if m != nil {
		m.ActiveProducts.Set(float64(len(products)))
	}
	return e
}

// ReplaceCollection atomically swaps the active snapshot and rebuilds the
// match structure. Searches already holding the old snapshot complete
// against it.
func (e *Engine) ReplaceCollection(products []catalog.Product) {
	e.current.Store(buildSnapshot(products))
	if e.metrics != nil {
		e.metrics.ActiveProducts.Set(float64(len(products)))
	}
	e.logger.Info("collection replaced", "products", len(products))
}

// Size returns the number of products in the active collection.
func (e *Engine) Size() int {
	return len(e.current.Load().products)
}

// Search runs match, filter, sort, and paginate over the active snapshot.
func (e *Engine) Search(req Request) Result {
	start := time.Now()
	snap := e.current.Load()

	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 {
		req.Limit = e.opts.DefaultLimit
	}

	candidates := e.match(snap, req.Query)
	candidates = applyFilters(snap, candidates, req.Filters)
	sortCandidates(snap, candidates, req.SortBy)

	total := len(candidates)
	totalPages := int(math.Ceil(float64(total) / float64(req.Limit)))
	offset := (req.Page - 1) * req.Limit

	items := make([]catalog.Product, 0, req.Limit)
	for i := offset; i < total && i < offset+req.Limit; i++ {
		items = append(items, snap.products[candidates[i].idx])
	}

	elapsed := time.Since(start)
	if e.metrics != nil {
		e.metrics.SearchLatency.Observe(elapsed.Seconds())
		resultType := "hit"
		if total == 0 {
			resultType = "zero_result"
		}
		e.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	}

	return Result{
		Items:      items,
		Total:      total,
		Page:       req.Page,
		Limit:      req.Limit,
		TotalPages: totalPages,
		ElapsedMs:  elapsed.Milliseconds(),
	}
}

// candidate is one matched record; distance is meaningful only when the
// query was non-empty.
type candidate struct {
	idx      int
	distance float64
}

// match returns the candidate set. An empty query yields the whole
// collection unscored in original order; a non-empty query yields records
// whose best field similarity clears the threshold, ordered by ascending
// distance over the weighted field combination.
func (e *Engine) match(snap *snapshot, query string) []candidate {
	terms := queryTerms(query)
	if len(terms) == 0 {
		out := make([]candidate, len(snap.products))
		for i := range out {
			out[i] = candidate{idx: i}
		}
		return out
	}
	out := make([]candidate, 0, 64)
	for i := range snap.docs {
		best, weighted := snap.docs[i].evaluate(terms)
		if best >= e.opts.SimilarityThreshold {
			out = append(out, candidate{idx: i, distance: 1 - weighted})
		}
	}
	sortByDistance(out)
	return out
}

func applyFilters(snap *snapshot, in []candidate, f Filters) []candidate {
	vendor := strings.ToLower(strings.TrimSpace(f.Vendor))
	productType := strings.ToLower(strings.TrimSpace(f.ProductType))
	if vendor == "" && productType == "" && f.MinPrice == nil && f.MaxPrice == nil && !f.InStock {
		return in
	}
	out := in[:0]
	for _, c := range in {
		p := &snap.products[c.idx]
		if vendor != "" && !strings.Contains(strings.ToLower(p.Vendor), vendor) {
			continue
		}
		if productType != "" && !strings.Contains(strings.ToLower(p.ProductType), productType) {
			continue
		}
		// A product qualifies under a minimum-price filter if its best-case
		// (highest) price clears the bound, and under a maximum-price filter
		// if its best-case (lowest) price stays under the bound.
		if f.MinPrice != nil && p.EffectiveMaxPrice() < *f.MinPrice {
			continue
		}
		if f.MaxPrice != nil && p.EffectiveMinPrice() > *f.MaxPrice {
			continue
		}
		if f.InStock && !p.InStock() {
			continue
		}
		out = append(out, c)
	}
	return out
}
