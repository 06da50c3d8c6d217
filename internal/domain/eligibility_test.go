package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testCatalog() []Forfait {
	return []Forfait{
		{ID: "f_urgent", Type: ForfaitUrgent, Price: 1000, Duration: 7},
		{ID: "f_top", Type: ForfaitTopAnnonce, Price: 2000, Duration: 14},
		{ID: "f_premium", Type: ForfaitPremium, Price: 5000, Duration: 30},
		{ID: "f_top_long", Type: ForfaitTopAnnonce, Price: 3500, Duration: 30},
	}
}

func typePtr(t ForfaitType) *ForfaitType {
	return &t
}

func TestEligibleForfaits(t *testing.T) {
	tests := []struct {
		name    string
		current *ForfaitType
		wantIDs []string
	}{
		{
			name:    "no active forfait returns the catalog",
			current: nil,
			wantIDs: []string{"f_urgent", "f_top", "f_premium", "f_top_long"},
		},
		{
			name:    "urgent can move to top annonce or premium",
			current: typePtr(ForfaitUrgent),
			wantIDs: []string{"f_top", "f_premium", "f_top_long"},
		},
		{
			name:    "top annonce can only move to premium",
			current: typePtr(ForfaitTopAnnonce),
			wantIDs: []string{"f_premium"},
		},
		{
			name:    "premium has nothing left",
			current: typePtr(ForfaitPremium),
			wantIDs: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EligibleForfaits(testCatalog(), tt.current)

			ids := make([]string, 0, len(got))
			for _, f := range got {
				ids = append(ids, f.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestEligibleForfaitsIdentityWithoutActive(t *testing.T) {
	catalog := testCatalog()
	assert.Equal(t, catalog, EligibleForfaits(catalog, nil))
}

func TestIsMaxTier(t *testing.T) {
	assert.True(t, IsMaxTier(typePtr(ForfaitPremium)))
	assert.False(t, IsMaxTier(typePtr(ForfaitTopAnnonce)))
	assert.False(t, IsMaxTier(nil))
}

func TestParseForfaitType(t *testing.T) {
	got, err := ParseForfaitType(" top_annonce ")
	assert.NoError(t, err)
	assert.Equal(t, ForfaitTopAnnonce, got)

	_, err = ParseForfaitType("GOLD")
	assert.ErrorIs(t, err, ErrInvalidForfait)
}
