package engine

import (
	"sort"
	"strings"
	"unicode"

	"github.com/openmercato/catalog-search/internal/catalog"
)

// Field weights for combined match scoring.
const (
	weightTitle       = 0.4
	weightDescription = 0.3
	weightVendor      = 0.2
	weightType        = 0.1
	weightTags        = 0.1
)

// minTermLength is the minimum matched-substring length; shorter query terms
// contribute nothing.
const minTermLength = 2

// document holds the pre-tokenized lowercase fields of one product. The
// slice of documents is the approximate-match structure: built once per
// snapshot, never mutated.
type document struct {
	title       []string
	description []string
	vendor      []string
	productType []string
	tags        []string
}

func buildSnapshot(products []catalog.Product) *snapshot {
	docs := make([]document, len(products))
	for i := range products {
		p := &products[i]
		docs[i] = document{
			title:       fieldTerms(p.Title),
			description: fieldTerms(p.Description),
			vendor:      fieldTerms(p.Vendor),
			productType: fieldTerms(p.ProductType),
			tags:        fieldTerms(strings.Join(p.Tags, " ")),
		}
	}
	return &snapshot{products: products, docs: docs}
}

// evaluate scores the query terms against every field. The best single
// field similarity decides whether the record matches at all; the weighted
// combination ranks it among the matches. Token position within a field is
// ignored.
func (d *document) evaluate(terms []string) (best, weighted float64) {
	fields := []struct {
		tokens []string
		weight float64
	}{
		{d.title, weightTitle},
		{d.description, weightDescription},
		{d.vendor, weightVendor},
		{d.productType, weightType},
		{d.tags, weightTags},
	}
	for _, f := range fields {
		s := fieldScore(terms, f.tokens)
		if s > best {
			best = s
		}
		weighted += f.weight * s
	}
	if weighted > 1 {
		weighted = 1
	}
	return best, weighted
}

// fieldScore averages, over the query terms, each term's best similarity
// against any token of the field.
func fieldScore(terms []string, tokens []string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	var sum float64
	for _, term := range terms {
		best := 0.0
		for _, token := range tokens {
			if s := termSimilarity(term, token); s > best {
				best = s
				if best == 1 {
					break
				}
			}
		}
		sum += best
	}
	return sum / float64(len(terms))
}

// termSimilarity scores one query term against one field token using token
// containment first, then bounded edit distance.
func termSimilarity(term, token string) float64 {
	if term == token {
		return 1
	}
	// Containment: a shared substring at least minTermLength long, scored by
	// the covered share of the longer string.
	if len(term) >= minTermLength && strings.Contains(token, term) {
		return float64(len(term)) / float64(len(token))
	}
	if len(token) >= minTermLength && strings.Contains(term, token) {
		return float64(len(token)) / float64(len(term))
	}
	longer := len(term)
	if len(token) > longer {
		longer = len(token)
	}
	if longer < minTermLength {
		return 0
	}
	// Bounded edit distance: anything beyond half the longer string can
	// never clear a useful threshold, so the DP gives up early.
	bound := longer / 2
	dist, ok := boundedLevenshtein(term, token, bound)
	if !ok {
		return 0
	}
	return 1 - float64(dist)/float64(longer)
}

// boundedLevenshtein computes the edit distance between a and b, giving up
// once the distance is guaranteed to exceed bound.
func boundedLevenshtein(a, b string, bound int) (int, bool) {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if abs(la-lb) > bound {
		return 0, false
	}
	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		curr[0] = i
		rowMin := curr[0]
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = minOf(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
			if curr[j] < rowMin {
				rowMin = curr[j]
			}
		}
		if rowMin > bound {
			return 0, false
		}
		prev, curr = curr, prev
	}
	if prev[lb] > bound {
		return 0, false
	}
	return prev[lb], true
}

// queryTerms lower-cases and splits a query on non-alphanumeric boundaries,
// dropping terms shorter than the minimum matched-substring length.
func queryTerms(query string) []string {
	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := words[:0]
	for _, w := range words {
		if len(w) >= minTermLength {
			terms = append(terms, w)
		}
	}
	return terms
}

func fieldTerms(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// sortByDistance orders candidates best match first, keeping ties in
// collection order.
func sortByDistance(cands []candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].distance < cands[j].distance
	})
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func minOf(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
