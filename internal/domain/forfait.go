package domain

import (
	"context"
	"fmt"
	"strings"
)

// ForfaitType is the visibility tier of a forfait
type ForfaitType string

const (
	ForfaitUrgent     ForfaitType = "URGENT"
	ForfaitTopAnnonce ForfaitType = "TOP_ANNONCE"
	ForfaitPremium    ForfaitType = "PREMIUM"
)

// Priority returns the rank of the tier. Lower is better: PREMIUM is 1.
// Unknown types rank below every known tier.
func (t ForfaitType) Priority() int {
	switch t {
	case ForfaitPremium:
		return 1
	case ForfaitTopAnnonce:
		return 2
	case ForfaitUrgent:
		return 3
	default:
		return 99
	}
}

// Valid reports whether t is one of the known tiers
func (t ForfaitType) Valid() bool {
	return t == ForfaitUrgent || t == ForfaitTopAnnonce || t == ForfaitPremium
}

// ParseForfaitType parses a tier name, case-insensitively
func ParseForfaitType(s string) (ForfaitType, error) {
	t := ForfaitType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidForfait, s)
	}
	return t, nil
}

// Forfait is a purchasable visibility boost for one listing
type Forfait struct {
	ID          string      `json:"id"`
	Type        ForfaitType `json:"type"`
	Price       int64       `json:"price"`    // Smallest currency unit (XAF)
	Duration    int         `json:"duration"` // Days
	Description string      `json:"description,omitempty"`
}

// FindForfait looks up a forfait by id in list
func FindForfait(list []Forfait, id string) (Forfait, bool) {
	for _, f := range list {
		if f.ID == id {
			return f, true
		}
	}
	return Forfait{}, false
}

// ForfaitCatalog is the read side of the forfait catalog
type ForfaitCatalog interface {
	ListForfaits(ctx context.Context) ([]Forfait, error)
}
