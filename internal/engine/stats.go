package engine

import (
	"sort"

	"github.com/openmercato/catalog-search/internal/catalog"
)

// Stats are the aggregate figures for the active collection, computed on
// demand.
type Stats struct {
	TotalProducts      int                `json:"total_products"`
	UniqueVendors      int                `json:"unique_vendors"`
	UniqueProductTypes int                `json:"unique_product_types"`
	PriceRange         catalog.PriceRange `json:"price_range"`
	AvgPrice           float64            `json:"avg_price"`
}

// Vendors returns the distinct non-empty vendor names, sorted ascending.
func (e *Engine) Vendors() []string {
	snap := e.current.Load()
	return distinct(snap, func(p *catalog.Product) string { return p.Vendor })
}

// ProductTypes returns the distinct non-empty product types, sorted
// ascending.
func (e *Engine) ProductTypes() []string {
	snap := e.current.Load()
	return distinct(snap, func(p *catalog.Product) string { return p.ProductType })
}

// PriceBounds returns the min and max over all positive effective prices in
// the collection, or the zero range when no product has a positive price.
func (e *Engine) PriceBounds() catalog.PriceRange {
	snap := e.current.Load()
	return priceBounds(snap)
}

// ComputeStats aggregates the active collection. AvgPrice sums effective
// prices (zero for priceless records) over the full product count.
func (e *Engine) ComputeStats() Stats {
	snap := e.current.Load()
	var priceSum float64
	for i := range snap.products {
		priceSum += snap.products[i].EffectiveMinPrice()
	}
	avg := 0.0
	if len(snap.products) > 0 {
		avg = priceSum / float64(len(snap.products))
	}
	return Stats{
		TotalProducts:      len(snap.products),
		UniqueVendors:      len(distinct(snap, func(p *catalog.Product) string { return p.Vendor })),
		UniqueProductTypes: len(distinct(snap, func(p *catalog.Product) string { return p.ProductType })),
		PriceRange:         priceBounds(snap),
		AvgPrice:           avg,
	}
}

func distinct(snap *snapshot, field func(*catalog.Product) string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for i := range snap.products {
		v := field(&snap.products[i])
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func priceBounds(snap *snapshot) catalog.PriceRange {
	var bounds catalog.PriceRange
	found := false
	for i := range snap.products {
		p := &snap.products[i]
		low, high := p.EffectiveMinPrice(), p.EffectiveMaxPrice()
		if high <= 0 {
			continue
		}
		if low <= 0 {
			low = high
		}
		if !found {
			bounds = catalog.PriceRange{Min: low, Max: high}
			found = true
			continue
		}
		if low < bounds.Min {
			bounds.Min = low
		}
		if high > bounds.Max {
			bounds.Max = high
		}
	}
	return bounds
}
