// Package transform maps one raw catalog row to one canonical product
// record. The mapping is pure: a malformed optional field degrades to its
// default value, and only a missing identifier or title rejects the row.
package transform

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/openmercato/catalog-search/internal/catalog"
	"github.com/openmercato/catalog-search/pkg/errors"
)

// Row is one header-keyed CSV record.
type Row map[string]string

// Options bounds the per-record field limits.
type Options struct {
	MaxImages            int
	MaxDescriptionLength int
}

// DefaultOptions mirrors the standard ingestion profile.
func DefaultOptions() Options {
	return Options{
		MaxImages:            3,
		MaxDescriptionLength: 500,
	}
}

var (
	tagPattern    = regexp.MustCompile(`<[^>]*>`)
	schemePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)
)

// Transform converts a raw row into a Product. It returns an error wrapping
// errors.ErrRowRejected when the row lacks an identifier or a title.
func Transform(row Row, opts Options) (catalog.Product, error) {
	if opts.MaxImages <= 0 {
		opts.MaxImages = 3
	}
	if opts.MaxDescriptionLength <= 0 {
		opts.MaxDescriptionLength = 500
	}

	id := strings.TrimSpace(first(row, "id", "product_id"))
	if id == "" {
		return catalog.Product{}, fmt.Errorf("%w: missing id", errors.ErrRowRejected)
	}
	title := strings.TrimSpace(first(row, "title", "name"))
	if title == "" {
		return catalog.Product{}, fmt.Errorf("%w: missing title", errors.ErrRowRejected)
	}

	description := first(row, "description", "body_html", "description_html")

	p := catalog.Product{
		ID:                    id,
		Title:                 title,
		Vendor:                strings.TrimSpace(row["vendor"]),
		ProductType:           strings.TrimSpace(first(row, "product_type", "type")),
		Description:           cleanDescription(description, opts.MaxDescriptionLength),
		Status:                strings.TrimSpace(row["status"]),
		Handle:                strings.TrimSpace(row["handle"]),
		Tags:                  parseTags(row["tags"]),
		Images:                parseImages(row["images"], opts.MaxImages),
		FeaturedImage:         parseFeaturedImage(row["featured_image"]),
		PriceRange:            ParsePriceRange(first(row, "price_range", "price_range_v2", "price")),
		TotalInventory:        parseInventory(first(row, "total_inventory", "inventory")),
		HasOutOfStockVariants: parseBool(row["has_out_of_stock_variants"]),
		IsGiftCard:            parseBool(row["is_gift_card"]),
		CreatedAt:             strings.TrimSpace(row["created_at"]),
		UpdatedAt:             strings.TrimSpace(row["updated_at"]),
		PublishedAt:           strings.TrimSpace(row["published_at"]),
	}
	return p, nil
}

func first(row Row, keys ...string) string {
	for _, k := range keys {
		if v, ok := row[k]; ok && v != "" {
			return v
		}
	}
	return ""
}

// cleanDescription strips markup tags and truncates to maxLen runes.
func cleanDescription(raw string, maxLen int) string {
	text := tagPattern.ReplaceAllString(raw, " ")
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) > maxLen {
		return string(runes[:maxLen])
	}
	return text
}

// parseImages accepts a JSON array of strings capped at maxImages, or a
// single scheme-prefixed URL as a one-element list. Anything else is empty.
func parseImages(raw string, maxImages int) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{}
	}
	if strings.HasPrefix(raw, "[") {
		var urls []string
		if err := json.Unmarshal([]byte(raw), &urls); err == nil {
			out := make([]string, 0, maxImages)
			for _, u := range urls {
				if u = strings.TrimSpace(u); u != "" {
					out = append(out, u)
				}
				if len(out) == maxImages {
					break
				}
			}
			return out
		}
		return []string{}
	}
	if schemePattern.MatchString(raw) {
		return []string{raw}
	}
	return []string{}
}

// parseTags accepts a JSON array of strings, else a comma-separated string
// split and trimmed with empty entries discarded.
func parseTags(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{}
	}
	if strings.HasPrefix(raw, "[") {
		var tags []string
		if err := json.Unmarshal([]byte(raw), &tags); err == nil {
			out := make([]string, 0, len(tags))
			for _, t := range tags {
				if t = strings.TrimSpace(t); t != "" {
					out = append(out, t)
				}
			}
			return out
		}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseFeaturedImage extracts a url property from a JSON object, else
// accepts the raw value when it looks like a URL.
func parseFeaturedImage(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "{") {
		var obj struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal([]byte(raw), &obj); err == nil && obj.URL != "" {
			return obj.URL
		}
		return ""
	}
	if schemePattern.MatchString(raw) {
		return raw
	}
	return ""
}

// parseBool matches true|1|yes case-insensitively; anything else, including
// an absent value, is false.
func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

func parseInventory(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
