package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/buyandsale/boost/internal/domain"
	"github.com/oklog/ulid/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoOutcomeRepository implements domain.OutcomeRepository
type MongoOutcomeRepository struct {
	collection *mongo.Collection
}

// NewMongoOutcomeRepository creates a new boost outcome repository
// Note: No index creation to ensure zero-impact deployment on existing collections
func NewMongoOutcomeRepository(db *mongo.Database) *MongoOutcomeRepository {
	coll := db.Collection("boost_outcomes")
	return &MongoOutcomeRepository{
		collection: coll,
	}
}

// Create stores one outcome, assigning its id and resolution time when unset
func (r *MongoOutcomeRepository) Create(ctx context.Context, outcome *domain.BoostOutcome) error {
	if outcome.ID == "" {
		outcome.ID = ulid.Make().String()
	}
	if outcome.ResolvedAt.IsZero() {
		outcome.ResolvedAt = time.Now().UTC()
	}

	doc := bson.M{
		"_id":          outcome.ID,
		"session_id":   outcome.SessionID,
		"flow":         outcome.Flow,
		"user_id":      outcome.UserID,
		"product_id":   outcome.ProductID,
		"forfait_id":   outcome.ForfaitID,
		"forfait_type": string(outcome.ForfaitType),
		"amount":       outcome.Amount,
		"payment_id":   outcome.PaymentID,
		"resolution":   outcome.Resolution,
		"reason":       outcome.Reason,
		"resolved_at":  outcome.ResolvedAt,
	}

	_, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to create boost outcome: %w", err)
	}
	return nil
}

// ListByProduct returns the outcomes of a listing, newest first
func (r *MongoOutcomeRepository) ListByProduct(ctx context.Context, productID string) ([]*domain.BoostOutcome, error) {
	opts := options.Find().SetSort(bson.D{{Key: "resolved_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"product_id": productID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list boost outcomes: %w", err)
	}
	defer cursor.Close(ctx)

	var outcomes []*domain.BoostOutcome
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, err
		}
		outcomes = append(outcomes, mapBsonToOutcome(raw))
	}
	return outcomes, nil
}

func mapBsonToOutcome(raw bson.M) *domain.BoostOutcome {
	outcome := &domain.BoostOutcome{}

	if id, ok := raw["_id"].(string); ok {
		outcome.ID = id
	}
	if v, ok := raw["session_id"].(string); ok {
		outcome.SessionID = v
	}
	if v, ok := raw["flow"].(string); ok {
		outcome.Flow = v
	}
	if v, ok := raw["user_id"].(string); ok {
		outcome.UserID = v
	}
	if v, ok := raw["product_id"].(string); ok {
		outcome.ProductID = v
	}
	if v, ok := raw["forfait_id"].(string); ok {
		outcome.ForfaitID = v
	}
	if v, ok := raw["forfait_type"].(string); ok {
		outcome.ForfaitType = domain.ForfaitType(v)
	}
	if amount, ok := raw["amount"].(int64); ok {
		outcome.Amount = amount
	} else if amount, ok := raw["amount"].(int32); ok {
		outcome.Amount = int64(amount)
	}
	if v, ok := raw["payment_id"].(string); ok {
		outcome.PaymentID = v
	}
	if v, ok := raw["resolution"].(string); ok {
		outcome.Resolution = v
	}
	if v, ok := raw["reason"].(string); ok {
		outcome.Reason = v
	}
	if resolved, ok := raw["resolved_at"].(primitive.DateTime); ok {
		outcome.ResolvedAt = resolved.Time().UTC()
	}

	return outcome
}
