// Package catalog defines the product record, index artifact, and ingestion
// metrics types shared by the pipeline, the store, and the query engine.
package catalog

import "time"

// PriceRange holds the minimum and maximum variant price of a product.
// A zero range means the price is unknown.
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// IsZero reports whether the range carries no price information.
func (p PriceRange) IsZero() bool {
	return p.Min == 0 && p.Max == 0
}

// Product is one catalog item. Records are created only by the transform
// step and are immutable afterwards; they live exactly as long as the
// artifact that contains them.
type Product struct {
	ID                    string     `json:"id"`
	Title                 string     `json:"title"`
	Vendor                string     `json:"vendor"`
	ProductType           string     `json:"product_type"`
	Description           string     `json:"description"`
	Status                string     `json:"status"`
	Handle                string     `json:"handle"`
	Tags                  []string   `json:"tags"`
	Images                []string   `json:"images"`
	FeaturedImage         string     `json:"featured_image"`
	Price                 float64    `json:"price,omitempty"`
	PriceRange            PriceRange `json:"price_range"`
	TotalInventory        int        `json:"total_inventory"`
	HasOutOfStockVariants bool       `json:"has_out_of_stock_variants"`
	IsGiftCard            bool       `json:"is_gift_card"`
	CreatedAt             string     `json:"created_at"`
	UpdatedAt             string     `json:"updated_at"`
	PublishedAt           string     `json:"published_at"`
}

// HasPrice reports whether the product carries any price information.
func (p *Product) HasPrice() bool {
	return p.Price > 0 || !p.PriceRange.IsZero()
}

// EffectiveMinPrice is the single price if present, otherwise the lower
// bound of the price range. Zero means no price information.
func (p *Product) EffectiveMinPrice() float64 {
	if p.Price > 0 {
		return p.Price
	}
	return p.PriceRange.Min
}

// EffectiveMaxPrice is the single price if present, otherwise the upper
// bound of the price range. Zero means no price information.
func (p *Product) EffectiveMaxPrice() float64 {
	if p.Price > 0 {
		return p.Price
	}
	return p.PriceRange.Max
}

// InStock reports whether the product can currently be sold.
func (p *Product) InStock() bool {
	return p.TotalInventory > 0 && !p.HasOutOfStockVariants
}

// Metadata describes the collection an artifact carries. Vendors and
// ProductTypes are the distinct non-empty values observed; order is not
// significant.
type Metadata struct {
	TotalProducts int       `json:"total_products"`
	Vendors       []string  `json:"vendors"`
	ProductTypes  []string  `json:"product_types"`
	ProcessedAt   time.Time `json:"processed_at"`
}

// Artifact is the full product collection plus derived metadata, both in
// memory and on disk. A new artifact always replaces the old one wholesale.
type Artifact struct {
	Products []Product `json:"products"`
	Metadata Metadata  `json:"metadata"`
}

// NewArtifact assembles an artifact from a merged record collection,
// deriving the distinct vendor and product-type lists.
func NewArtifact(products []Product) *Artifact {
	vendors := make(map[string]struct{})
	types := make(map[string]struct{})
	for i := range products {
		if v := products[i].Vendor; v != "" {
			vendors[v] = struct{}{}
		}
		if t := products[i].ProductType; t != "" {
			types[t] = struct{}{}
		}
	}
	return &Artifact{
		Products: products,
		Metadata: Metadata{
			TotalProducts: len(products),
			Vendors:       keys(vendors),
			ProductTypes:  keys(types),
			ProcessedAt:   time.Now().UTC(),
		},
	}
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

// Metrics summarises one pipeline run. It is returned to the caller and
// never persisted as part of the artifact.
type Metrics struct {
	DurationMs        int64   `json:"duration_ms"`
	ThroughputPerSec  float64 `json:"throughput_per_sec"`
	PeakMemoryMB      float64 `json:"peak_memory_mb"`
	RejectedCount     int     `json:"rejected_count"`
	ArtifactSizeBytes int64   `json:"artifact_size_bytes"`
}
