package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/buyandsale/boost/internal/domain"
)

// OutcomeJournal records how boost workflows ended
type OutcomeJournal struct {
	repo    domain.OutcomeRepository
	timeout time.Duration
}

// NewOutcomeJournal creates a new OutcomeJournal. A nil repo only logs.
func NewOutcomeJournal(repo domain.OutcomeRepository, timeout time.Duration) *OutcomeJournal {
	return &OutcomeJournal{repo: repo, timeout: timeout}
}

// Record stores one outcome
func (j *OutcomeJournal) Record(ctx context.Context, outcome *domain.BoostOutcome) error {
	log.Printf("[Journal] session %s: %s product=%s payment=%s",
		outcome.SessionID, outcome.Resolution, outcome.ProductID, outcome.PaymentID)
	if j.repo == nil {
		return nil
	}

	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}
	if err := j.repo.Create(ctx, outcome); err != nil {
		return fmt.Errorf("failed to record outcome of session %s: %w", outcome.SessionID, err)
	}
	return nil
}

// ListByProduct returns the recorded outcomes of a listing
func (j *OutcomeJournal) ListByProduct(ctx context.Context, productID string) ([]*domain.BoostOutcome, error) {
	if productID == "" {
		return nil, domain.ErrMissingProduct
	}
	if j.repo == nil {
		return []*domain.BoostOutcome{}, nil
	}
	return j.repo.ListByProduct(ctx, productID)
}
