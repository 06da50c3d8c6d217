package workflow

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/buyandsale/boost/internal/domain"
	"github.com/buyandsale/boost/internal/metrics"
	"github.com/oklog/ulid/v2"
)

type registryEntry struct {
	orchestrator *Orchestrator
	owner        string
	lastSeen     time.Time
}

// Registry holds the live workflow sessions of the gateway. Each session
// belongs to one user and is never shared between pages.
type Registry struct {
	idleTTL time.Duration
	metrics *metrics.Metrics
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*registryEntry
}

// NewRegistry creates a new Registry
func NewRegistry(idleTTL time.Duration, m *metrics.Metrics) *Registry {
	return &Registry{
		idleTTL:  idleTTL,
		metrics:  m,
		now:      time.Now,
		sessions: make(map[string]*registryEntry),
	}
}

// Add registers the orchestrator built for a new session id and returns both
func (r *Registry) Add(owner string, build func(id string) *Orchestrator) (string, *Orchestrator) {
	id := ulid.Make().String()
	o := build(id)

	r.mu.Lock()
	r.sessions[id] = &registryEntry{orchestrator: o, owner: owner, lastSeen: r.now()}
	r.gauge()
	r.mu.Unlock()

	log.Printf("[Registry] session %s (%s) opened for user %s", id, o.Flow(), owner)
	return id, o
}

// Get returns the orchestrator of a session owned by owner
func (r *Registry) Get(id, owner string) (*Orchestrator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if e.owner != owner {
		return nil, domain.ErrForbidden
	}
	e.lastSeen = r.now()
	return e.orchestrator, nil
}

// Remove closes and forgets a session
func (r *Registry) Remove(id, owner string) error {
	r.mu.Lock()
	e, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return domain.ErrSessionNotFound
	}
	if e.owner != owner {
		r.mu.Unlock()
		return domain.ErrForbidden
	}
	delete(r.sessions, id)
	r.gauge()
	r.mu.Unlock()

	e.orchestrator.Close()
	log.Printf("[Registry] session %s closed", id)
	return nil
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep closes sessions nobody looked at for longer than the idle TTL
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.idleTTL)

	r.mu.Lock()
	var idle []*Orchestrator
	for id, e := range r.sessions {
		if e.lastSeen.Before(cutoff) {
			idle = append(idle, e.orchestrator)
			delete(r.sessions, id)
		}
	}
	r.gauge()
	r.mu.Unlock()

	for _, o := range idle {
		o.Close()
	}
	if len(idle) > 0 {
		log.Printf("[Registry] swept %d idle sessions", len(idle))
	}
	return len(idle)
}

// Run sweeps at every interval until ctx is done, then closes all sessions
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.CloseAll()
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// CloseAll closes every session
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := make([]*Orchestrator, 0, len(r.sessions))
	for id, e := range r.sessions {
		all = append(all, e.orchestrator)
		delete(r.sessions, id)
	}
	r.gauge()
	r.mu.Unlock()

	for _, o := range all {
		o.Close()
	}
}

func (r *Registry) gauge() {
	if r.metrics != nil {
		r.metrics.ActiveSessions.Set(float64(len(r.sessions)))
	}
}
