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
	"github.com/oklog/ulid/v2"
)

// PaymentGateway creates a mobile money payment and tentatively assigns the forfait
type PaymentGateway interface {
	AssignWithPayment(ctx context.Context, req domain.AssignWithPaymentRequest) (*domain.PaymentInitiation, error)
}

// PaymentInitiator validates a boost purchase and submits it to the backend
type PaymentInitiator struct {
	timeout time.Duration
	metrics *metrics.Metrics
}

// NewPaymentInitiator creates a new PaymentInitiator
func NewPaymentInitiator(timeout time.Duration, m *metrics.Metrics) *PaymentInitiator {
	return &PaymentInitiator{timeout: timeout, metrics: m}
}

// Prepare validates the purchase locally and returns the normalized request.
// It never touches the network.
func (p *PaymentInitiator) Prepare(productID string, forfaitType domain.ForfaitType, rawPhone string) (domain.AssignWithPaymentRequest, error) {
	if productID == "" {
		return domain.AssignWithPaymentRequest{}, domain.ErrMissingProduct
	}
	if !forfaitType.Valid() {
		return domain.AssignWithPaymentRequest{}, domain.ErrInvalidForfait
	}
	phone, err := domain.NormalizePhone(rawPhone)
	if err != nil {
		return domain.AssignWithPaymentRequest{}, err
	}
	return domain.AssignWithPaymentRequest{
		ProductID:   productID,
		ForfaitType: forfaitType,
		PhoneNumber: phone,
	}, nil
}

// Submit sends a prepared request. A response without a payment id is a
// contract violation and is reported as domain.ErrMissingPaymentID.
func (p *PaymentInitiator) Submit(ctx context.Context, gw PaymentGateway, req domain.AssignWithPaymentRequest) (*domain.PaymentInitiation, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	resp, err := gw.AssignWithPayment(ctx, req)
	if err != nil {
		p.count("error")
		log.Printf("[Payment] assign-with-payment failed for product=%s type=%s: %v", req.ProductID, req.ForfaitType, err)
		return nil, fmt.Errorf("payment initiation failed: %w", err)
	}
	if resp == nil || resp.Payment == nil || resp.Payment.ID == "" {
		p.count("missing_id")
		log.Printf("[Payment] assign-with-payment returned no payment id for product=%s", req.ProductID)
		return nil, domain.ErrMissingPaymentID
	}

	p.count("created")
	log.Printf("[Payment] payment %s created for product=%s type=%s amount=%d",
		resp.Payment.ID, req.ProductID, req.ForfaitType, resp.Payment.Amount)
	return resp, nil
}

// Initiate is Prepare followed by Submit
func (p *PaymentInitiator) Initiate(ctx context.Context, gw PaymentGateway, productID string, forfaitType domain.ForfaitType, rawPhone string) (*domain.PaymentInitiation, error) {
	req, err := p.Prepare(productID, forfaitType, rawPhone)
	if err != nil {
		return nil, err
	}
	return p.Submit(ctx, gw, req)
}

func (p *PaymentInitiator) count(outcome string) {
	if p.metrics != nil {
		p.metrics.PaymentInitiations.WithLabelValues(outcome).Inc()
	}
}

// SandboxPayments is an in-memory stand-in for the payment endpoints used in
// development. Payments settle as SUCCESS after SettleAfter status reads,
// except for numbers ending in "0000" which fail.
type SandboxPayments struct {
	SettleAfter int

	catalog  func() []domain.Forfait
	mu       sync.Mutex
	payments map[string]*sandboxPayment
}

type sandboxPayment struct {
	payment domain.Payment
	phone   string
	reads   int
}

// NewSandboxPayments creates a sandbox that prices payments from catalog
func NewSandboxPayments(catalog func() []domain.Forfait, settleAfter int) *SandboxPayments {
	log.Println("[Payment] Using sandbox payments (no mobile money provider)")
	return &SandboxPayments{
		SettleAfter: settleAfter,
		catalog:     catalog,
		payments:    make(map[string]*sandboxPayment),
	}
}

func (s *SandboxPayments) price(t domain.ForfaitType) int64 {
	if s.catalog == nil {
		return 0
	}
	for _, f := range s.catalog() {
		if f.Type == t {
			return f.Price
		}
	}
	return 0
}

// AssignWithPayment creates a pending sandbox payment
func (s *SandboxPayments) AssignWithPayment(ctx context.Context, req domain.AssignWithPaymentRequest) (*domain.PaymentInitiation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := ulid.Make().String()
	p := &sandboxPayment{
		payment: domain.Payment{
			ID:              id,
			Amount:          s.price(req.ForfaitType),
			Status:          domain.PaymentStatusPending,
			CampayReference: "SANDBOX-" + id[:8],
			CreatedAt:       time.Now().UTC(),
			Metadata: map[string]any{
				"productId":   req.ProductID,
				"forfaitType": string(req.ForfaitType),
			},
		},
		phone: req.PhoneNumber,
	}
	s.payments[id] = p

	payment := p.payment
	return &domain.PaymentInitiation{
		Payment:      &payment,
		Instructions: "Sandbox: confirm the payment on " + req.PhoneNumber,
	}, nil
}

// PaymentStatus advances and returns a sandbox payment
func (s *SandboxPayments) PaymentStatus(ctx context.Context, paymentID string) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[paymentID]
	if !ok {
		return nil, domain.ErrNotFound
	}

	p.reads++
	if p.payment.Status == domain.PaymentStatusPending && p.reads >= s.SettleAfter {
		now := time.Now().UTC()
		if len(p.phone) >= 4 && p.phone[len(p.phone)-4:] == "0000" {
			p.payment.Status = domain.PaymentStatusFailed
		} else {
			p.payment.Status = domain.PaymentStatusSuccess
			p.payment.PaidAt = &now
		}
	}

	payment := p.payment
	return &payment, nil
}

// IsValidationError reports whether err was raised before any network call
func IsValidationError(err error) bool {
	return errors.Is(err, domain.ErrInvalidPhone) ||
		errors.Is(err, domain.ErrMissingProduct) ||
		errors.Is(err, domain.ErrInvalidForfait) ||
		errors.Is(err, domain.ErrUnknownForfait)
}
