package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/buyandsale/boost/internal/domain"
	"github.com/buyandsale/boost/internal/repository"
	"golang.org/x/sync/errgroup"
)

// AssignmentCache holds short-lived copies of a listing's forfaits
type AssignmentCache interface {
	GetProductForfaits(ctx context.Context, productID string) ([]domain.ForfaitAssignment, error)
	SetProductForfaits(ctx context.Context, productID string, assignments []domain.ForfaitAssignment, ttl time.Duration) error
	InvalidateProductForfaits(ctx context.Context, productID string) error
}

// Eligibility is the upgrade situation of one listing
type Eligibility struct {
	ProductID      string                    `json:"product_id"`
	Current        *domain.ForfaitType       `json:"current,omitempty"`
	Active         *domain.ForfaitAssignment `json:"active,omitempty"`
	RemainingDays  int                       `json:"remaining_days,omitempty"`
	Progress       float64                   `json:"progress,omitempty"`
	Forfaits       []domain.Forfait          `json:"forfaits"`
	MaxTierReached bool                      `json:"max_tier_reached"`
}

// EligibilityChecker computes which forfaits a listing may be boosted with
type EligibilityChecker struct {
	catalog *CatalogProvider
	cache   AssignmentCache
	ttl     time.Duration
	now     func() time.Time
}

// NewEligibilityChecker creates a new EligibilityChecker. cache may be nil.
func NewEligibilityChecker(catalog *CatalogProvider, cache AssignmentCache, ttl time.Duration) *EligibilityChecker {
	return &EligibilityChecker{
		catalog: catalog,
		cache:   cache,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Check loads the catalog and the listing's forfaits concurrently and filters
// the catalog down to strictly higher tiers than the active one.
func (c *EligibilityChecker) Check(ctx context.Context, source domain.AssignmentSource, productID string) (*Eligibility, error) {
	if productID == "" {
		return nil, domain.ErrMissingProduct
	}

	var (
		catalog     []domain.Forfait
		assignments []domain.ForfaitAssignment
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		catalog, err = c.catalog.Get(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		assignments, err = c.assignments(gctx, source, productID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := c.now()
	result := &Eligibility{ProductID: productID}
	if active := domain.CurrentActive(assignments, now); active != nil {
		current := active.Forfait.Type
		result.Current = &current
		result.Active = active
		result.RemainingDays = active.RemainingDays(now)
		result.Progress = active.Progress(now)
	}
	result.Forfaits = domain.EligibleForfaits(catalog, result.Current)
	result.MaxTierReached = domain.IsMaxTier(result.Current)

	return result, nil
}

// Invalidate forgets the cached forfaits of a listing, e.g. after a boost
func (c *EligibilityChecker) Invalidate(ctx context.Context, productID string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.InvalidateProductForfaits(ctx, productID); err != nil {
		log.Printf("[Eligibility] failed to invalidate product %s: %v", productID, err)
	}
}

func (c *EligibilityChecker) assignments(ctx context.Context, source domain.AssignmentSource, productID string) ([]domain.ForfaitAssignment, error) {
	if c.cache != nil {
		cached, err := c.cache.GetProductForfaits(ctx, productID)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, repository.ErrCacheMiss) {
			log.Printf("[Eligibility] cache read failed for product %s: %v", productID, err)
		}
	}

	assignments, err := source.ProductForfaits(ctx, productID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("failed to fetch forfaits of product %s: %w", productID, err)
		}
		// No forfait history yet
		assignments = []domain.ForfaitAssignment{}
	}

	if c.cache != nil {
		if err := c.cache.SetProductForfaits(ctx, productID, assignments, c.ttl); err != nil {
			log.Printf("[Eligibility] cache write failed for product %s: %v", productID, err)
		}
	}
	return assignments, nil
}
