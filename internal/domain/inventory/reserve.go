package inventory

// Reserved sums the requested quantity per material across all pending
// requests, in one pass over the items.
func Reserved(requests []MaterialRequest) map[string]int {
	out := make(map[string]int)
	for _, r := range requests {
		if r.Status != StatusPending {
			continue
		}
		for _, it := range r.Items {
			out[it.MaterialID] += it.Quantity
		}
	}
	return out
}

// Available is the effective stock: raw stock minus pending reservations,
// floored at zero. It is a view over the data and must never be written
// back into Material.Stock.
func Available(m Material, reserved map[string]int) int {
	avail := m.Stock - reserved[m.ID]
	if avail < 0 {
		return 0
	}
	return avail
}
