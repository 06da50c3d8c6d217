package domain

// EligibleForfaits returns the forfaits a listing may still be upgraded to.
// With no active forfait the catalog is returned as is. Otherwise only
// strictly higher tiers are kept, so a PREMIUM listing gets nothing back.
func EligibleForfaits(catalog []Forfait, current *ForfaitType) []Forfait {
	if current == nil {
		return catalog
	}

	currentPriority := current.Priority()
	eligible := make([]Forfait, 0, len(catalog))
	for _, f := range catalog {
		if f.Type.Priority() < currentPriority {
			eligible = append(eligible, f)
		}
	}
	return eligible
}

// IsMaxTier reports whether the active tier cannot be upgraded any further
func IsMaxTier(current *ForfaitType) bool {
	return current != nil && *current == ForfaitPremium
}
