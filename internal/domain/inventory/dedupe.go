package inventory

import "strings"

// FirstWins drops every item whose key was already seen, keeping input
// order. Items with an empty key are dropped outright.
func FirstWins[T any](items []T, key func(T) string) []T {
	if items == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, it := range items {
		k := key(it)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, it)
	}
	return out
}

// DedupeMaterials collapses duplicate catalog codes, first occurrence wins.
// Remote data quality is not guaranteed, so every load path runs through
// this.
func DedupeMaterials(ms []Material) []Material {
	return FirstWins(ms, func(m Material) string {
		return strings.TrimSpace(m.Code)
	})
}

// DedupeRequests collapses duplicate request ids, first occurrence wins.
func DedupeRequests(rs []MaterialRequest) []MaterialRequest {
	return FirstWins(rs, func(r MaterialRequest) string { return r.ID })
}

// DedupeMovements collapses duplicate ledger ids, first occurrence wins.
func DedupeMovements(ms []StockMovement) []StockMovement {
	return FirstWins(ms, func(m StockMovement) string { return m.ID })
}
