package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/buyandsale/boost/internal/domain"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	forfaitCatalogKey       = "forfait:catalog"
	productForfaitKeyPrefix = "forfait:product:"
)

// ErrCacheMiss is returned by Get when the key does not exist
var ErrCacheMiss = errors.New("cache miss")

// RedisCacheRepository is a JSON cache on top of Redis
type RedisCacheRepository struct {
	client *redis.Client
}

// NewRedisCacheRepository creates a new Redis cache repository
func NewRedisCacheRepository(client *redis.Client) *RedisCacheRepository {
	return &RedisCacheRepository{
		client: client,
	}
}

// SetCatalog caches the forfait catalog snapshot
func (r *RedisCacheRepository) SetCatalog(ctx context.Context, forfaits []domain.Forfait, ttl time.Duration) error {
	return r.Set(ctx, forfaitCatalogKey, forfaits, ttl)
}

// GetCatalog returns the cached catalog or ErrCacheMiss
func (r *RedisCacheRepository) GetCatalog(ctx context.Context) ([]domain.Forfait, error) {
	var forfaits []domain.Forfait
	if err := r.Get(ctx, forfaitCatalogKey, &forfaits); err != nil {
		return nil, err
	}
	return forfaits, nil
}

// InvalidateCatalog drops the cached catalog
func (r *RedisCacheRepository) InvalidateCatalog(ctx context.Context) error {
	return r.Delete(ctx, forfaitCatalogKey)
}

// SetProductForfaits caches the forfaits applied to a listing
func (r *RedisCacheRepository) SetProductForfaits(ctx context.Context, productID string, assignments []domain.ForfaitAssignment, ttl time.Duration) error {
	return r.Set(ctx, productForfaitKeyPrefix+productID, assignments, ttl)
}

// GetProductForfaits returns the cached forfaits of a listing or ErrCacheMiss
func (r *RedisCacheRepository) GetProductForfaits(ctx context.Context, productID string) ([]domain.ForfaitAssignment, error) {
	var assignments []domain.ForfaitAssignment
	if err := r.Get(ctx, productForfaitKeyPrefix+productID, &assignments); err != nil {
		return nil, err
	}
	return assignments, nil
}

// InvalidateProductForfaits drops the cached forfaits of a listing
func (r *RedisCacheRepository) InvalidateProductForfaits(ctx context.Context, productID string) error {
	return r.Delete(ctx, productForfaitKeyPrefix+productID)
}

// =============================================================================
// Generic Cache Operations with OpenTelemetry Tracing
// =============================================================================

// Get retrieves a value from cache by key with OTel tracing
func (r *RedisCacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	tracer := otel.Tracer("redis")
	ctx, span := tracer.Start(ctx, "redis.Get",
		trace.WithAttributes(attribute.String("cache.key", key)),
	)
	defer span.End()

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			span.SetAttributes(attribute.String("cache.result", "miss"))
			return ErrCacheMiss
		}
		span.RecordError(err)
		return fmt.Errorf("redis get error: %w", err)
	}

	span.SetAttributes(attribute.String("cache.result", "hit"))
	if err := json.Unmarshal(data, dest); err != nil {
		span.RecordError(err)
		return fmt.Errorf("unmarshal error: %w", err)
	}

	return nil
}

// Set stores a value in cache with TTL and OTel tracing
func (r *RedisCacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	tracer := otel.Tracer("redis")
	ctx, span := tracer.Start(ctx, "redis.Set",
		trace.WithAttributes(
			attribute.String("cache.key", key),
			attribute.Int64("cache.ttl_seconds", int64(ttl.Seconds())),
		),
	)
	defer span.End()

	data, err := json.Marshal(value)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("marshal error: %w", err)
	}

	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("redis set error: %w", err)
	}

	return nil
}

// Delete removes keys from cache with OTel tracing
func (r *RedisCacheRepository) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	tracer := otel.Tracer("redis")
	ctx, span := tracer.Start(ctx, "redis.Delete",
		trace.WithAttributes(attribute.Int("cache.key_count", len(keys))),
	)
	defer span.End()

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("redis delete error: %w", err)
	}

	return nil
}
