package domain

import (
	"context"
	"math"
	"time"
)

// ForfaitAssignment is a forfait applied to a listing
type ForfaitAssignment struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"productId,omitempty"`
	Forfait     Forfait   `json:"forfait"`
	ActivatedAt time.Time `json:"activatedAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
	IsActive    bool      `json:"isActive"`
}

// ActiveAt reports whether the assignment is in effect at now
func (a ForfaitAssignment) ActiveAt(now time.Time) bool {
	return a.IsActive && a.ExpiresAt.After(now)
}

// RemainingDays is the number of started days left before expiry, never negative
func (a ForfaitAssignment) RemainingDays(now time.Time) int {
	left := a.ExpiresAt.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Hours() / 24))
}

// Progress returns the elapsed fraction of the assignment in [0, 1]
func (a ForfaitAssignment) Progress(now time.Time) float64 {
	total := a.ExpiresAt.Sub(a.ActivatedAt)
	if total <= 0 {
		return 1
	}
	elapsed := now.Sub(a.ActivatedAt)
	switch {
	case elapsed <= 0:
		return 0
	case elapsed >= total:
		return 1
	}
	return float64(elapsed) / float64(total)
}

// CurrentActive returns the first assignment still in effect, in server order
func CurrentActive(assignments []ForfaitAssignment, now time.Time) *ForfaitAssignment {
	for i := range assignments {
		if assignments[i].ActiveAt(now) {
			return &assignments[i]
		}
	}
	return nil
}

// CurrentActiveType is the tier of CurrentActive, or nil when nothing is active
func CurrentActiveType(assignments []ForfaitAssignment, now time.Time) *ForfaitType {
	active := CurrentActive(assignments, now)
	if active == nil {
		return nil
	}
	t := active.Forfait.Type
	return &t
}

// AssignmentSource lists the forfaits applied to a listing
type AssignmentSource interface {
	ProductForfaits(ctx context.Context, productID string) ([]ForfaitAssignment, error)
}
