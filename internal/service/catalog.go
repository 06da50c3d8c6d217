package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/buyandsale/boost/internal/domain"
	"github.com/buyandsale/boost/internal/metrics"
	"github.com/buyandsale/boost/internal/repository"
	"golang.org/x/sync/singleflight"
)

// CatalogCache is the shared second-tier store for the forfait catalog
type CatalogCache interface {
	GetCatalog(ctx context.Context) ([]domain.Forfait, error)
	SetCatalog(ctx context.Context, forfaits []domain.Forfait, ttl time.Duration) error
	InvalidateCatalog(ctx context.Context) error
}

// CatalogProvider serves the forfait catalog to every workflow session.
// Lookups go memory, then cache, then backend; concurrent backend fetches
// are collapsed into one.
type CatalogProvider struct {
	source  domain.ForfaitCatalog
	cache   CatalogCache
	ttl     time.Duration
	metrics *metrics.Metrics
	group   singleflight.Group

	mu        sync.RWMutex
	snapshot  []domain.Forfait
	loaded    bool
	fetchedAt time.Time
	now       func() time.Time
}

// NewCatalogProvider creates a new CatalogProvider. cache may be nil.
func NewCatalogProvider(source domain.ForfaitCatalog, cache CatalogCache, ttl time.Duration, m *metrics.Metrics) *CatalogProvider {
	return &CatalogProvider{
		source:  source,
		cache:   cache,
		ttl:     ttl,
		metrics: m,
		now:     time.Now,
	}
}

// Get returns the catalog, fetching it if the in-memory snapshot is missing or stale
func (p *CatalogProvider) Get(ctx context.Context) ([]domain.Forfait, error) {
	p.mu.RLock()
	if p.loaded && p.now().Sub(p.fetchedAt) < p.ttl {
		forfaits := cloneForfaits(p.snapshot)
		p.mu.RUnlock()
		p.count("memory")
		return forfaits, nil
	}
	p.mu.RUnlock()

	v, err, _ := p.group.Do("catalog", func() (interface{}, error) {
		return p.load(ctx, false)
	})
	if err != nil {
		return nil, err
	}
	return cloneForfaits(v.([]domain.Forfait)), nil
}

// Snapshot returns the last loaded catalog without blocking. loaded is
// false until the first successful fetch.
func (p *CatalogProvider) Snapshot() (forfaits []domain.Forfait, loaded bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return cloneForfaits(p.snapshot), p.loaded
}

// Refresh bypasses every cache tier and refetches from the backend
func (p *CatalogProvider) Refresh(ctx context.Context) ([]domain.Forfait, error) {
	v, err, _ := p.group.Do("refresh", func() (interface{}, error) {
		return p.load(ctx, true)
	})
	if err != nil {
		return nil, err
	}
	return cloneForfaits(v.([]domain.Forfait)), nil
}

func (p *CatalogProvider) load(ctx context.Context, skipCache bool) ([]domain.Forfait, error) {
	if p.cache != nil && !skipCache {
		forfaits, err := p.cache.GetCatalog(ctx)
		if err == nil {
			p.count("cache")
			p.store(forfaits)
			return forfaits, nil
		}
		if !errors.Is(err, repository.ErrCacheMiss) {
			log.Printf("[Catalog] cache read failed: %v", err)
		}
	}
	if p.cache != nil && skipCache {
		if err := p.cache.InvalidateCatalog(ctx); err != nil {
			log.Printf("[Catalog] cache invalidation failed: %v", err)
		}
	}

	forfaits, err := p.source.ListForfaits(ctx)
	if err != nil {
		p.count("error")
		return nil, fmt.Errorf("failed to fetch forfait catalog: %w", err)
	}
	p.count("backend")

	if forfaits == nil {
		forfaits = []domain.Forfait{}
	}
	p.store(forfaits)

	if p.cache != nil {
		if err := p.cache.SetCatalog(ctx, forfaits, p.ttl); err != nil {
			log.Printf("[Catalog] cache write failed: %v", err)
		}
	}

	log.Printf("[Catalog] loaded %d forfaits from backend", len(forfaits))
	return forfaits, nil
}

func (p *CatalogProvider) store(forfaits []domain.Forfait) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshot = cloneForfaits(forfaits)
	p.loaded = true
	p.fetchedAt = p.now()
}

func (p *CatalogProvider) count(source string) {
	if p.metrics != nil {
		p.metrics.CatalogFetches.WithLabelValues(source).Inc()
	}
}

func cloneForfaits(in []domain.Forfait) []domain.Forfait {
	if in == nil {
		return nil
	}
	out := make([]domain.Forfait, len(in))
	copy(out, in)
	return out
}
