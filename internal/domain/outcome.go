package domain

import (
	"context"
	"time"
)

// BoostOutcome records how a boost workflow session ended. It is written
// once per resolution and is never read back to resume a session.
type BoostOutcome struct {
	ID          string      `bson:"_id,omitempty" json:"id"`
	SessionID   string      `bson:"session_id" json:"session_id"`
	Flow        string      `bson:"flow" json:"flow"`
	UserID      string      `bson:"user_id,omitempty" json:"user_id,omitempty"`
	ProductID   string      `bson:"product_id,omitempty" json:"product_id,omitempty"`
	ForfaitID   string      `bson:"forfait_id,omitempty" json:"forfait_id,omitempty"`
	ForfaitType ForfaitType `bson:"forfait_type,omitempty" json:"forfait_type,omitempty"`
	Amount      int64       `bson:"amount,omitempty" json:"amount,omitempty"`
	PaymentID   string      `bson:"payment_id,omitempty" json:"payment_id,omitempty"`
	Resolution  string      `bson:"resolution" json:"resolution"`
	Reason      string      `bson:"reason,omitempty" json:"reason,omitempty"`
	ResolvedAt  time.Time   `bson:"resolved_at" json:"resolved_at"`
}

// OutcomeRepository defines operations for the boost outcome journal
type OutcomeRepository interface {
	Create(ctx context.Context, outcome *BoostOutcome) error
	ListByProduct(ctx context.Context, productID string) ([]*BoostOutcome, error)
}
