package catalog

// MatchCapability picks the entry in group that can stand in for selected
// after a same-family model switch: first an entry with the same resolution
// and attention variant, then one with the same resolution only. It reports
// false when neither exists. Ties are broken by path, so the answer does not
// depend on the order of group.
func MatchCapability(selected ModelEntry, group []ModelEntry) (ModelEntry, bool) {
	best := -1
	bestRank := 0
	for i, c := range group {
		rank := capabilityRank(selected, c)
		if rank == 0 {
			continue
		}
		if rank > bestRank || (rank == bestRank && c.Path < group[best].Path) {
			best, bestRank = i, rank
		}
	}
	if best < 0 {
		return ModelEntry{}, false
	}
	return group[best], true
}

func capabilityRank(selected, c ModelEntry) int {
	if !sameResolution(selected.Resolution, c.Resolution) {
		return 0
	}
	if selected.Attention == c.Attention {
		return 2
	}
	return 1
}

func sameResolution(a, b *Size) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
