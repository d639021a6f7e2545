package engine

import "strings"

// minSuggestLength is the shortest query Suggest will serve.
const minSuggestLength = 2

// Suggest returns up to limit values whose lowercase form contains the
// lowercase query as a plain substring, scanning titles first, then vendors,
// then product types. The result is deduplicated and order-preserving.
func (e *Engine) Suggest(query string, limit int) []string {
	if e.metrics != nil {
		e.metrics.SuggestQueriesTotal.Inc()
	}
	out := []string{}
	query = strings.ToLower(strings.TrimSpace(query))
	if len([]rune(query)) < minSuggestLength || limit < 1 {
		return out
	}
	snap := e.current.Load()
	seen := make(map[string]struct{})

	collect := func(value string) bool {
		if value == "" {
			return false
		}
		key := strings.ToLower(value)
		if !strings.Contains(key, query) {
			return false
		}
		if _, dup := seen[key]; dup {
			return false
		}
		seen[key] = struct{}{}
		out = append(out, value)
		return len(out) == limit
	}

	for i := range snap.products {
		if collect(snap.products[i].Title) {
			return out
		}
	}
	for i := range snap.products {
		if collect(snap.products[i].Vendor) {
			return out
		}
	}
	for i := range snap.products {
		if collect(snap.products[i].ProductType) {
			return out
		}
	}
	return out
}
