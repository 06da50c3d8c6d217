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
)

// PaymentStatusSource reads the current state of a payment
type PaymentStatusSource interface {
	PaymentStatus(ctx context.Context, paymentID string) (*domain.Payment, error)
}

// TrackerCallbacks receive the outcome of a tracked payment. Exactly one of
// OnSuccess and OnError is called, unless tracking is stopped first.
type TrackerCallbacks struct {
	OnSuccess func(payment *domain.Payment)
	OnError   func(err error)
	// OnPoll is called after every successful status read, optional
	OnPoll func(payment *domain.Payment)
}

// PaymentTracker polls a payment at a fixed interval for a capped number of attempts
type PaymentTracker struct {
	interval    time.Duration
	maxAttempts int
	metrics     *metrics.Metrics
}

// NewPaymentTracker creates a new PaymentTracker
func NewPaymentTracker(interval time.Duration, maxAttempts int, m *metrics.Metrics) *PaymentTracker {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &PaymentTracker{interval: interval, maxAttempts: maxAttempts, metrics: m}
}

// Track starts polling paymentID in the background. The returned stop
// function cancels polling. A callback that already started when stop is
// called still runs to completion, so owners keep their own liveness check.
func (t *PaymentTracker) Track(ctx context.Context, src PaymentStatusSource, paymentID string, cb TrackerCallbacks) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)

	var (
		mu      sync.Mutex
		stopped bool
	)
	finish := func(f func()) {
		mu.Lock()
		if stopped {
			mu.Unlock()
			return
		}
		stopped = true
		mu.Unlock()

		cancel()
		if f != nil {
			f()
		}
	}

	go t.poll(ctx, src, paymentID, cb, finish)

	return func() {
		finish(nil)
	}
}

func (t *PaymentTracker) poll(ctx context.Context, src PaymentStatusSource, paymentID string, cb TrackerCallbacks, finish func(func())) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for attempt := 1; attempt <= t.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		payment, err := src.PaymentStatus(ctx, paymentID)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			t.count("error")
			if errors.Is(err, domain.ErrUnauthorized) || errors.Is(err, domain.ErrNotFound) {
				finish(func() { cb.OnError(fmt.Errorf("payment status unavailable: %w", err)) })
				return
			}
			log.Printf("[Tracker] poll %d/%d for payment %s failed: %v", attempt, t.maxAttempts, paymentID, err)
			timer.Reset(t.interval)
			continue
		}

		t.count(string(payment.Status))
		if cb.OnPoll != nil {
			cb.OnPoll(payment)
		}

		switch {
		case payment.Status == domain.PaymentStatusSuccess:
			log.Printf("[Tracker] payment %s succeeded after %d polls", paymentID, attempt)
			finish(func() { cb.OnSuccess(payment) })
			return
		case payment.Status.IsTerminal():
			log.Printf("[Tracker] payment %s ended with status %s", paymentID, payment.Status)
			finish(func() { cb.OnError(fmt.Errorf("%w: status %s", domain.ErrPaymentFailed, payment.Status)) })
			return
		}

		timer.Reset(t.interval)
	}

	log.Printf("[Tracker] payment %s still pending after %d polls, giving up", paymentID, t.maxAttempts)
	finish(func() { cb.OnError(domain.ErrPaymentTimeout) })
}

func (t *PaymentTracker) count(status string) {
	if t.metrics != nil {
		t.metrics.PaymentPolls.WithLabelValues(status).Inc()
	}
}
