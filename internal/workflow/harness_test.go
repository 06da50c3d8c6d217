package workflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/buyandsale/boost/internal/domain"
	"github.com/buyandsale/boost/internal/service"
)

// manualScheduler runs scheduled work only when the test flushes it
type manualScheduler struct {
	mu      sync.Mutex
	pending []*scheduledTask
}

type scheduledTask struct {
	fn        func()
	cancelled bool
}

func (s *manualScheduler) Schedule(d time.Duration, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	task := &scheduledTask{fn: fn}
	s.pending = append(s.pending, task)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		task.cancelled = true
	}
}

func (s *manualScheduler) Flush() {
	s.mu.Lock()
	tasks := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, task := range tasks {
		s.mu.Lock()
		cancelled := task.cancelled
		s.mu.Unlock()
		if !cancelled {
			task.fn()
		}
	}
}

type staticCatalog struct {
	forfaits []domain.Forfait
	err      error
}

func (c *staticCatalog) ListForfaits(ctx context.Context) ([]domain.Forfait, error) {
	return c.forfaits, c.err
}

func (c *staticCatalog) Get(ctx context.Context) ([]domain.Forfait, error) {
	return c.forfaits, c.err
}

func (c *staticCatalog) Snapshot() ([]domain.Forfait, bool) {
	return c.forfaits, c.err == nil
}

type fakeAssignments struct {
	assignments []domain.ForfaitAssignment
}

func (f *fakeAssignments) ProductForfaits(ctx context.Context, productID string) ([]domain.ForfaitAssignment, error) {
	return f.assignments, nil
}

type fakePayments struct {
	mu       sync.Mutex
	requests []domain.AssignWithPaymentRequest
	resp     *domain.PaymentInitiation
	err      error
	block    chan struct{}
	status   domain.PaymentStatus
	polls    int
}

func (f *fakePayments) AssignWithPayment(ctx context.Context, req domain.AssignWithPaymentRequest) (*domain.PaymentInitiation, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	block, resp, err := f.block, f.resp, f.err
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	return resp, err
}

func (f *fakePayments) PaymentStatus(ctx context.Context, paymentID string) (*domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	return &domain.Payment{ID: paymentID, Status: f.status, Amount: 2000}, nil
}

func (f *fakePayments) setStatus(s domain.PaymentStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = s
}

func (f *fakePayments) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakePayments) pollCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls
}

func testCatalog() []domain.Forfait {
	return []domain.Forfait{
		{ID: "f-urgent", Type: domain.ForfaitUrgent, Price: 1000, Duration: 7},
		{ID: "f-top", Type: domain.ForfaitTopAnnonce, Price: 2000, Duration: 14},
		{ID: "f-premium", Type: domain.ForfaitPremium, Price: 5000, Duration: 30},
	}
}

func pendingPayment(id string) *domain.PaymentInitiation {
	return &domain.PaymentInitiation{
		Payment:      &domain.Payment{ID: id, Amount: 2000, Status: domain.PaymentStatusPending, CampayReference: "CP-1"},
		Instructions: "Dial *126# to confirm",
	}
}

type harness struct {
	o           *Orchestrator
	sched       *manualScheduler
	catalog     *staticCatalog
	payments    *fakePayments
	assignments *fakeAssignments

	mu        sync.Mutex
	navigated []Destination
	outcomes  []Outcome
}

func newHarness(t *testing.T, flow Flow, target Session) *harness {
	t.Helper()
	h := &harness{
		sched:       &manualScheduler{},
		catalog:     &staticCatalog{forfaits: testCatalog()},
		payments:    &fakePayments{status: domain.PaymentStatusPending, resp: pendingPayment("pay_1")},
		assignments: &fakeAssignments{},
	}

	provider := service.NewCatalogProvider(h.catalog, nil, time.Minute, nil)
	h.o = New(flow, Deps{
		Catalog:     h.catalog,
		Eligibility: service.NewEligibilityChecker(provider, nil, 0),
		Assignments: h.assignments,
		Payments:    h.payments,
		Initiator:   service.NewPaymentInitiator(time.Second, nil),
		Tracker:     service.NewPaymentTracker(5*time.Millisecond, 1000, nil),
		Scheduler:   h.sched,
		Navigator: NavigatorFunc(func(dest Destination) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.navigated = append(h.navigated, dest)
		}),
		OnResolved: func(out Outcome) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.outcomes = append(h.outcomes, out)
		},
		TransitionDelay: 300 * time.Millisecond,
	}, target)
	t.Cleanup(h.o.Close)
	return h
}

func (h *harness) Navigated() []Destination {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Destination{}, h.navigated...)
}

func (h *harness) Outcomes() []Outcome {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Outcome{}, h.outcomes...)
}
