package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmercato/catalog-search/internal/catalog"
)

// fixtureProducts mirrors the standard four-product catalog used across the
// engine tests: two Apple devices, one out-of-stock Samsung foldable, and a
// cheap accessory.
func fixtureProducts() []catalog.Product {
	return []catalog.Product{
		{
			ID: "1", Title: "iPhone 15 Pro", Vendor: "Apple", ProductType: "Phone",
			Description: "Flagship smartphone with titanium frame",
			PriceRange:  catalog.PriceRange{Min: 999, Max: 1199},
			Tags:        []string{"smartphone", "flagship"},
			TotalInventory: 12, CreatedAt: "2024-03-01T00:00:00Z",
		},
		{
			ID: "2", Title: "MacBook Air", Vendor: "Apple", ProductType: "Laptop",
			Description: "Thin and light laptop for everyday work",
			PriceRange:  catalog.PriceRange{Min: 799, Max: 999},
			Tags:        []string{"laptop"},
			TotalInventory: 7, CreatedAt: "2024-01-15T00:00:00Z",
		},
		{
			ID: "3", Title: "Galaxy Z Fold", Vendor: "Samsung", ProductType: "Phone",
			Description: "Foldable phone with a large inner display",
			PriceRange:  catalog.PriceRange{Min: 2499, Max: 3999},
			Tags:        []string{"smartphone", "foldable"},
			TotalInventory: 5, HasOutOfStockVariants: true, CreatedAt: "2024-02-10T00:00:00Z",
		},
		{
			ID: "4", Title: "USB-C Charging Cable", Vendor: "Belkin", ProductType: "Accessory",
			Description: "Braided two metre charging cable",
			PriceRange:  catalog.PriceRange{Min: 50, Max: 50},
			Tags:        []string{"cable"},
			TotalInventory: 200, CreatedAt: "2023-11-05T00:00:00Z",
		},
	}
}

func fixtureEngine() *Engine {
	return New(fixtureProducts(), Options{}, nil)
}

func ids(items []catalog.Product) []string {
	out := make([]string, len(items))
	for i, p := range items {
		out[i] = p.ID
	}
	return out
}

func TestSearchEmptyQueryPagination(t *testing.T) {
	e := fixtureEngine()

	page1 := e.Search(Request{Page: 1, Limit: 2})
	assert.Equal(t, []string{"1", "2"}, ids(page1.Items))
	assert.Equal(t, 4, page1.Total)
	assert.Equal(t, 1, page1.Page)
	assert.Equal(t, 2, page1.TotalPages)

	page2 := e.Search(Request{Page: 2, Limit: 2})
	assert.Equal(t, []string{"3", "4"}, ids(page2.Items))
	assert.Equal(t, 4, page2.Total)

	page10 := e.Search(Request{Page: 10, Limit: 2})
	assert.Empty(t, page10.Items)
	assert.Equal(t, 4, page10.Total)
	assert.Equal(t, 2, page10.TotalPages)
}

func TestSearchVendorFilter(t *testing.T) {
	e := fixtureEngine()

	res := e.Search(Request{Filters: Filters{Vendor: "Apple"}, Page: 1, Limit: 20})
	assert.Equal(t, []string{"1", "2"}, ids(res.Items))

	// Case-insensitive and partial substrings must match too.
	res = e.Search(Request{Filters: Filters{Vendor: "apple"}, Page: 1, Limit: 20})
	assert.Equal(t, 2, res.Total)
	res = e.Search(Request{Filters: Filters{Vendor: "App"}, Page: 1, Limit: 20})
	assert.Equal(t, 2, res.Total)
}

func TestSearchProductTypeFilter(t *testing.T) {
	e := fixtureEngine()
	res := e.Search(Request{Filters: Filters{ProductType: "phone"}, Page: 1, Limit: 20})
	assert.Equal(t, []string{"1", "3"}, ids(res.Items))
}

func TestSearchPriceSorts(t *testing.T) {
	e := fixtureEngine()

	asc := e.Search(Request{Page: 1, Limit: 20, SortBy: SortPriceAsc})
	assert.Equal(t, []string{"4", "2", "1", "3"}, ids(asc.Items),
		"ascending by effective minimum price: 50, 799, 999, 2499")

	desc := e.Search(Request{Page: 1, Limit: 20, SortBy: SortPriceDesc})
	assert.Equal(t, []string{"3", "1", "2", "4"}, ids(desc.Items),
		"descending by effective maximum price: 3999, 1199, 999, 50")
}

func TestSearchPricelessRecordsSortLast(t *testing.T) {
	products := fixtureProducts()
	products = append(products,
		catalog.Product{ID: "5", Title: "Mystery Box A", Vendor: "Acme"},
		catalog.Product{ID: "6", Title: "Mystery Box B", Vendor: "Acme"},
	)
	e := New(products, Options{}, nil)

	asc := e.Search(Request{Page: 1, Limit: 20, SortBy: SortPriceAsc})
	assert.Equal(t, []string{"4", "2", "1", "3", "5", "6"}, ids(asc.Items))

	desc := e.Search(Request{Page: 1, Limit: 20, SortBy: SortPriceDesc})
	assert.Equal(t, []string{"3", "1", "2", "4", "5", "6"}, ids(desc.Items),
		"priceless records stay last and keep their relative order")
}

func TestSearchPriceFilters(t *testing.T) {
	e := fixtureEngine()

	minPrice := 900.0
	res := e.Search(Request{Filters: Filters{MinPrice: &minPrice}, Page: 1, Limit: 20})
	// Qualifies when the best-case (highest) price clears the bound.
	assert.Equal(t, []string{"1", "2", "3"}, ids(res.Items))

	maxPrice := 800.0
	res = e.Search(Request{Filters: Filters{MaxPrice: &maxPrice}, Page: 1, Limit: 20})
	// Qualifies when the best-case (lowest) price stays under the bound.
	assert.Equal(t, []string{"2", "4"}, ids(res.Items))

	res = e.Search(Request{Filters: Filters{MinPrice: &minPrice, MaxPrice: &maxPrice}, Page: 1, Limit: 20})
	assert.Equal(t, []string{"2"}, ids(res.Items))
}

func TestSearchInStockFilter(t *testing.T) {
	e := fixtureEngine()
	res := e.Search(Request{Filters: Filters{InStock: true}, Page: 1, Limit: 20})
	assert.Equal(t, []string{"1", "2", "4"}, ids(res.Items),
		"only the record with out-of-stock variants is excluded")
}

func TestSearchNameAndNewestSorts(t *testing.T) {
	e := fixtureEngine()

	res := e.Search(Request{Page: 1, Limit: 20, SortBy: SortNameAsc})
	assert.Equal(t, []string{"3", "2", "4", "1"}, ids(res.Items))

	res = e.Search(Request{Page: 1, Limit: 20, SortBy: SortNameDesc})
	assert.Equal(t, []string{"1", "4", "2", "3"}, ids(res.Items))

	res = e.Search(Request{Page: 1, Limit: 20, SortBy: SortNewest})
	assert.Equal(t, []string{"1", "3", "2", "4"}, ids(res.Items))
}

func TestSearchFuzzyMatching(t *testing.T) {
	e := fixtureEngine()

	res := e.Search(Request{Query: "iphone", Page: 1, Limit: 20})
	require.NotEmpty(t, res.Items)
	assert.Equal(t, "1", res.Items[0].ID, "exact title token ranks first")

	// A single-character typo must still find the record.
	res = e.Search(Request{Query: "ipone", Page: 1, Limit: 20})
	require.NotEmpty(t, res.Items)
	assert.Equal(t, "1", res.Items[0].ID)

	// Vendor terms match through the weighted vendor field.
	res = e.Search(Request{Query: "apple", Page: 1, Limit: 20})
	found := ids(res.Items)
	assert.Contains(t, found, "1")
	assert.Contains(t, found, "2")

	// Nonsense finds nothing.
	res = e.Search(Request{Query: "zzqx", Page: 1, Limit: 20})
	assert.Empty(t, res.Items)
	assert.Zero(t, res.Total)
}

func TestSearchQueryWithFilters(t *testing.T) {
	e := fixtureEngine()
	res := e.Search(Request{
		Query:   "phone",
		Filters: Filters{InStock: true},
		Page:    1, Limit: 20,
	})
	for _, p := range res.Items {
		assert.NotEqual(t, "3", p.ID, "filters apply on top of fuzzy matches")
	}
}

func TestReplaceCollectionSwapsAtomically(t *testing.T) {
	e := fixtureEngine()
	require.Equal(t, 4, e.Size())

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				res := e.Search(Request{Page: 1, Limit: 20})
				// Every read sees a complete snapshot of one generation.
				assert.Contains(t, []int{4, 1}, res.Total)
			}
		}()
	}
	for range 50 {
		e.ReplaceCollection([]catalog.Product{{ID: "9", Title: "Solo"}})
		e.ReplaceCollection(fixtureProducts())
	}
	wg.Wait()
	assert.Equal(t, 4, e.Size())
}

func TestSearchDefaults(t *testing.T) {
	e := fixtureEngine()
	res := e.Search(Request{})
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, 20, res.Limit)
	assert.Equal(t, 4, res.Total)
	assert.Equal(t, 1, res.TotalPages)
}
