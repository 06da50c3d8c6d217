package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/buyandsale/boost/internal/domain"
)

func testCatalog() []domain.Forfait {
	return []domain.Forfait{
		{ID: "f-urgent", Type: domain.ForfaitUrgent, Price: 1000, Duration: 7},
		{ID: "f-top", Type: domain.ForfaitTopAnnonce, Price: 2500, Duration: 14},
		{ID: "f-premium", Type: domain.ForfaitPremium, Price: 5000, Duration: 30},
	}
}

type fakeCatalog struct {
	calls    atomic.Int32
	delay    time.Duration
	err      error
	forfaits []domain.Forfait
}

func (f *fakeCatalog) ListForfaits(ctx context.Context) ([]domain.Forfait, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.forfaits, nil
}

type fakeAssignments struct {
	calls       atomic.Int32
	err         error
	assignments []domain.ForfaitAssignment
}

func (f *fakeAssignments) ProductForfaits(ctx context.Context, productID string) ([]domain.ForfaitAssignment, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.assignments, nil
}

type fakeGateway struct {
	mu   sync.Mutex
	reqs []domain.AssignWithPaymentRequest
	resp *domain.PaymentInitiation
	err  error
}

func (f *fakeGateway) AssignWithPayment(ctx context.Context, req domain.AssignWithPaymentRequest) (*domain.PaymentInitiation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return f.resp, f.err
}

// scriptedStatus returns each entry in order, repeating the last one
type scriptedStatus struct {
	mu      sync.Mutex
	calls   int
	results []statusResult
}

type statusResult struct {
	status domain.PaymentStatus
	err    error
}

func (s *scriptedStatus) PaymentStatus(ctx context.Context, paymentID string) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	s.calls++
	r := s.results[i]
	if r.err != nil {
		return nil, r.err
	}
	return &domain.Payment{ID: paymentID, Status: r.status}, nil
}

func (s *scriptedStatus) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
