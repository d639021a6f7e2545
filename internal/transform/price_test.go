package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openmercato/catalog-search/internal/catalog"
)

func TestParsePriceRange(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want catalog.PriceRange
	}{
		{
			"variant price object",
			`{"min_variant_price":{"amount":"19.99"},"max_variant_price":{"amount":"49.99"}}`,
			catalog.PriceRange{Min: 19.99, Max: 49.99},
		},
		{
			"variant price numeric amounts",
			`{"min_variant_price":{"amount":10},"max_variant_price":{"amount":20}}`,
			catalog.PriceRange{Min: 10, Max: 20},
		},
		{
			"flat min max",
			`{"min":5,"max":15}`,
			catalog.PriceRange{Min: 5, Max: 15},
		},
		{
			"free text two tokens",
			"From 799 to 999 USD",
			catalog.PriceRange{Min: 799, Max: 999},
		},
		{
			"free text one token",
			"$49.50",
			catalog.PriceRange{Min: 49.5, Max: 49.5},
		},
		{
			"unparseable",
			"contact us for pricing",
			catalog.PriceRange{},
		},
		{
			"empty",
			"",
			catalog.PriceRange{},
		},
		{
			"inverted bounds normalised",
			`{"min":100,"max":10}`,
			catalog.PriceRange{Min: 10, Max: 100},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParsePriceRange(tt.raw))
		})
	}
}
