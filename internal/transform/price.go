package transform

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/openmercato/catalog-search/internal/catalog"
)

var numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// variantPriceRange is the structured shape exported by storefront APIs.
type variantPriceRange struct {
	MinVariantPrice struct {
		Amount json.Number `json:"amount"`
	} `json:"min_variant_price"`
	MaxVariantPrice struct {
		Amount json.Number `json:"amount"`
	} `json:"max_variant_price"`
}

// flatPriceRange is the direct min/max shape.
type flatPriceRange struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

// ParsePriceRange attempts the supported price formats in order: the
// structured variant-price object, the direct min/max object, then free-text
// numeric extraction. Each attempt is total; on failure the result is the
// zero range meaning "unknown".
func ParsePriceRange(raw string) catalog.PriceRange {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return catalog.PriceRange{}
	}
	if strings.HasPrefix(raw, "{") {
		if pr, ok := parseVariantRange(raw); ok {
			return pr
		}
		if pr, ok := parseFlatRange(raw); ok {
			return pr
		}
	}
	return parseFreeTextRange(raw)
}

func parseVariantRange(raw string) (catalog.PriceRange, bool) {
	var v variantPriceRange
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return catalog.PriceRange{}, false
	}
	minAmount, errMin := v.MinVariantPrice.Amount.Float64()
	maxAmount, errMax := v.MaxVariantPrice.Amount.Float64()
	if errMin != nil || errMax != nil {
		return catalog.PriceRange{}, false
	}
	return normalizeRange(minAmount, maxAmount), true
}

func parseFlatRange(raw string) (catalog.PriceRange, bool) {
	var f flatPriceRange
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return catalog.PriceRange{}, false
	}
	if f.Min == nil && f.Max == nil {
		return catalog.PriceRange{}, false
	}
	var minVal, maxVal float64
	if f.Min != nil {
		minVal = *f.Min
	}
	if f.Max != nil {
		maxVal = *f.Max
	}
	return normalizeRange(minVal, maxVal), true
}

// parseFreeTextRange pulls the first two numeric tokens out of free text.
// Two tokens become {first,second}; exactly one token becomes {that,that}.
func parseFreeTextRange(raw string) catalog.PriceRange {
	tokens := numberPattern.FindAllString(raw, 2)
	switch len(tokens) {
	case 2:
		minVal, err1 := strconv.ParseFloat(tokens[0], 64)
		maxVal, err2 := strconv.ParseFloat(tokens[1], 64)
		if err1 != nil || err2 != nil {
			return catalog.PriceRange{}
		}
		return normalizeRange(minVal, maxVal)
	case 1:
		v, err := strconv.ParseFloat(tokens[0], 64)
		if err != nil {
			return catalog.PriceRange{}
		}
		return catalog.PriceRange{Min: v, Max: v}
	default:
		return catalog.PriceRange{}
	}
}

func normalizeRange(minVal, maxVal float64) catalog.PriceRange {
	if minVal < 0 {
		minVal = 0
	}
	if maxVal < 0 {
		maxVal = 0
	}
	if minVal > maxVal {
		minVal, maxVal = maxVal, minVal
	}
	return catalog.PriceRange{Min: minVal, Max: maxVal}
}
