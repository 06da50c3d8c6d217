package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/buyandsale/boost/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(o *Orchestrator) func(string) *Orchestrator {
	return func(string) *Orchestrator { return o }
}

func TestRegistryOwnership(t *testing.T) {
	r := NewRegistry(time.Minute, nil)
	h := newHarness(t, FlowCreateAd, Session{})

	id, _ := r.Add("user_1", build(h.o))
	require.NotEmpty(t, id)

	got, err := r.Get(id, "user_1")
	require.NoError(t, err)
	assert.Same(t, h.o, got)

	_, err = r.Get(id, "user_2")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.ErrorIs(t, r.Remove(id, "user_2"), domain.ErrForbidden)

	_, err = r.Get("missing", "user_1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	require.NoError(t, r.Remove(id, "user_1"))
	assert.True(t, h.o.Closed())
	assert.Zero(t, r.Len())
	assert.ErrorIs(t, r.Remove(id, "user_1"), domain.ErrSessionNotFound)
}

func TestRegistrySweepsIdleSessions(t *testing.T) {
	r := NewRegistry(10*time.Minute, nil)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	idle := newHarness(t, FlowCreateAd, Session{})
	active := newHarness(t, FlowBoostExisting, Session{})
	idleID, _ := r.Add("user_1", build(idle.o))
	activeID, _ := r.Add("user_1", build(active.o))

	require.NoError(t, idle.o.AdCreated(context.Background(), "prod_1", "Sofa"))

	now = now.Add(8 * time.Minute)
	_, err := r.Get(activeID, "user_1")
	require.NoError(t, err)

	now = now.Add(5 * time.Minute)
	assert.Equal(t, 1, r.Sweep())

	_, err = r.Get(idleID, "user_1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.True(t, idle.o.Closed())
	assert.Equal(t, ResolutionAbandoned, idle.o.View().Resolution)
	assert.False(t, active.o.Closed())
}

func TestRegistryRunClosesEverythingOnShutdown(t *testing.T) {
	r := NewRegistry(time.Hour, nil)
	h := newHarness(t, FlowCreateAd, Session{})
	r.Add("user_1", build(h.o))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx, time.Hour)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("registry did not stop")
	}
	assert.Zero(t, r.Len())
	assert.True(t, h.o.Closed())
}
