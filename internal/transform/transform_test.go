package transform

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmercato/catalog-search/pkg/errors"
)

func TestTransformRejectsMissingIdentity(t *testing.T) {
	tests := []struct {
		name string
		row  Row
	}{
		{"missing id", Row{"title": "Widget"}},
		{"empty id", Row{"id": "  ", "title": "Widget"}},
		{"missing title", Row{"id": "1"}},
		{"empty title", Row{"id": "1", "title": ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Transform(tt.row, DefaultOptions())
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrRowRejected)
		})
	}
}

func TestTransformMalformedOptionalFieldsDegrade(t *testing.T) {
	row := Row{
		"id":                        "42",
		"title":                     "Widget",
		"tags":                      "[broken json",
		"images":                    "not a url",
		"price_range":               "no numbers here at all",
		"total_inventory":           "lots",
		"has_out_of_stock_variants": "maybe",
		"is_gift_card":              "",
		"featured_image":            "{\"nested\": true}",
	}
	p, err := Transform(row, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, "42", p.ID)
	assert.Equal(t, "Widget", p.Title)
	assert.Equal(t, []string{"[broken json"}, p.Tags) // comma-split fallback
	assert.Empty(t, p.Images)
	assert.True(t, p.PriceRange.IsZero())
	assert.Zero(t, p.TotalInventory)
	assert.False(t, p.HasOutOfStockVariants)
	assert.False(t, p.IsGiftCard)
	assert.Empty(t, p.FeaturedImage)
}

func TestTransformDescriptionStripsMarkupAndTruncates(t *testing.T) {
	long := strings.Repeat("a", 600)
	row := Row{
		"id":        "1",
		"title":     "Widget",
		"body_html": "<p>Great <b>product</b></p> " + long,
	}
	p, err := Transform(row, Options{MaxDescriptionLength: 500, MaxImages: 3})
	require.NoError(t, err)
	assert.NotContains(t, p.Description, "<")
	assert.True(t, strings.HasPrefix(p.Description, "Great product"))
	assert.LessOrEqual(t, len([]rune(p.Description)), 500)
}

func TestTransformImages(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"json array capped", `["http://a/1.jpg","http://a/2.jpg","http://a/3.jpg","http://a/4.jpg"]`,
			[]string{"http://a/1.jpg", "http://a/2.jpg", "http://a/3.jpg"}},
		{"single url", "https://cdn.example.com/img.png", []string{"https://cdn.example.com/img.png"}},
		{"plain text", "hello world", []string{}},
		{"empty", "", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Transform(Row{"id": "1", "title": "t", "images": tt.raw}, DefaultOptions())
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Images)
		})
	}
}

func TestTransformTags(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"json array", `["summer","sale"]`, []string{"summer", "sale"}},
		{"comma separated", " summer , sale ,, new ", []string{"summer", "sale", "new"}},
		{"empty", "", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Transform(Row{"id": "1", "title": "t", "tags": tt.raw}, DefaultOptions())
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Tags)
		})
	}
}

func TestTransformBooleans(t *testing.T) {
	for _, truthy := range []string{"true", "TRUE", "1", "yes", "Yes"} {
		p, err := Transform(Row{"id": "1", "title": "t", "is_gift_card": truthy}, DefaultOptions())
		require.NoError(t, err)
		assert.True(t, p.IsGiftCard, "value %q", truthy)
	}
	for _, falsy := range []string{"false", "0", "no", "", "on"} {
		p, err := Transform(Row{"id": "1", "title": "t", "is_gift_card": falsy}, DefaultOptions())
		require.NoError(t, err)
		assert.False(t, p.IsGiftCard, "value %q", falsy)
	}
}

func TestTransformFeaturedImage(t *testing.T) {
	p, err := Transform(Row{
		"id": "1", "title": "t",
		"featured_image": `{"url":"https://cdn.example.com/main.jpg","alt":"x"}`,
	}, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/main.jpg", p.FeaturedImage)

	p, err = Transform(Row{"id": "1", "title": "t", "featured_image": "https://cdn.example.com/raw.jpg"}, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/raw.jpg", p.FeaturedImage)
}

func TestTransformInventory(t *testing.T) {
	p, err := Transform(Row{"id": "1", "title": "t", "total_inventory": "17"}, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 17, p.TotalInventory)

	p, err = Transform(Row{"id": "1", "title": "t", "total_inventory": "-3"}, DefaultOptions())
	require.NoError(t, err)
	assert.Zero(t, p.TotalInventory)
}
