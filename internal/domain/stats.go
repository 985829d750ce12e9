package domain

// Stats summarizes a dataset.
type Stats struct {
	TotalPastes     int              `json:"totalPastes"`
	TotalLinks      int              `json:"totalLinks"`
	UniqueLinks     int              `json:"uniqueLinks"`
	Classified      int              `json:"classified"`
	ByCategory      map[Category]int `json:"byCategory"`
	UniqueAddresses []Address        `json:"-"`
}

// ComputeStats counts pastes, links and categories. Unique addresses are
// returned in first-seen order; each unique address is counted once per
// category using its first classification.
func ComputeStats(records []PasteRecord) Stats {
	stats := Stats{
		TotalPastes: len(records),
		ByCategory:  make(map[Category]int),
	}
	category := make(map[Address]Category)
	seen := make(map[Address]struct{})
	for _, r := range records {
		stats.TotalLinks += len(r.Addresses)
		for _, a := range r.Addresses {
			if _, ok := seen[a.Address]; !ok {
				seen[a.Address] = struct{}{}
				stats.UniqueAddresses = append(stats.UniqueAddresses, a.Address)
			}
			if a.Classification == nil {
				continue
			}
			if _, ok := category[a.Address]; !ok {
				category[a.Address] = ParseCategory(string(a.Classification.Category))
			}
		}
	}
	stats.UniqueLinks = len(stats.UniqueAddresses)
	stats.Classified = len(category)
	for _, c := range category {
		stats.ByCategory[c]++
	}
	return stats
}
