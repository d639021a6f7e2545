package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSuggest(t *testing.T) {
	e := fixtureEngine()

	suggestions := e.Suggest("ap", 5)
	assert.LessOrEqual(t, len(suggestions), 5)
	assert.Contains(t, suggestions, "Apple", "vendor values are scanned after titles")

	// Titles are scanned first.
	suggestions = e.Suggest("iphone", 5)
	assert.Equal(t, []string{"iPhone 15 Pro"}, suggestions)

	// Matching is plain substring, not fuzzy.
	assert.Empty(t, e.Suggest("ipone", 5))
}

func TestSuggestMinimumLength(t *testing.T) {
	e := fixtureEngine()
	assert.Empty(t, e.Suggest("a", 5), "below the two-character minimum")
	assert.Empty(t, e.Suggest("", 5))
	assert.NotEmpty(t, e.Suggest("ap", 5), "exactly at the boundary")
}

func TestSuggestDeduplicatesAndCaps(t *testing.T) {
	e := fixtureEngine()

	// Both Apple products share the vendor; the vendor value appears once.
	suggestions := e.Suggest("apple", 10)
	count := 0
	for _, s := range suggestions {
		if s == "Apple" {
			count++
		}
	}
	assert.Equal(t, 1, count)

	capped := e.Suggest("a", 1)
	assert.Empty(t, capped)
	capped = e.Suggest("ca", 1)
	assert.Len(t, capped, 1)
}

func TestSuggestOrderPreserving(t *testing.T) {
	e := fixtureEngine()
	suggestions := e.Suggest("ga", 5)
	// "Galaxy Z Fold" comes from titles before any vendor or type match.
	assert.Equal(t, "Galaxy Z Fold", suggestions[0])
}
