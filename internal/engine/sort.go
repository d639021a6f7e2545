package engine

import "sort"

// sortCandidates orders the candidate set in place. Relevance leaves the
// fuzzy-match order intact, which for an empty query is the original
// collection order. All sorts are stable so that records comparing equal,
// including pairs that both lack a price, keep their prior relative order.
func sortCandidates(snap *snapshot, cands []candidate, sortBy string) {
	switch sortBy {
	case SortPriceAsc:
		sort.SliceStable(cands, func(i, j int) bool {
			a, b := &snap.products[cands[i].idx], &snap.products[cands[j].idx]
			ap, bp := a.HasPrice(), b.HasPrice()
			if ap != bp {
				return ap
			}
			if !ap {
				return false
			}
			return a.EffectiveMinPrice() < b.EffectiveMinPrice()
		})
	case SortPriceDesc:
		sort.SliceStable(cands, func(i, j int) bool {
			a, b := &snap.products[cands[i].idx], &snap.products[cands[j].idx]
			ap, bp := a.HasPrice(), b.HasPrice()
			if ap != bp {
				return ap
			}
			if !ap {
				return false
			}
			return a.EffectiveMaxPrice() > b.EffectiveMaxPrice()
		})
	case SortNameAsc:
		sort.SliceStable(cands, func(i, j int) bool {
			return snap.products[cands[i].idx].Title < snap.products[cands[j].idx].Title
		})
	case SortNameDesc:
		sort.SliceStable(cands, func(i, j int) bool {
			return snap.products[cands[i].idx].Title > snap.products[cands[j].idx].Title
		})
	case SortNewest:
		sort.SliceStable(cands, func(i, j int) bool {
			return snap.products[cands[i].idx].CreatedAt > snap.products[cands[j].idx].CreatedAt
		})
	default:
		// relevance: no-op
	}
}
