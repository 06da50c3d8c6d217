package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/buyandsale/boost/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// fakeBackend mimics the Buy&Sale REST API the gateway talks to
type fakeBackend struct {
	server *httptest.Server

	mu             sync.Mutex
	forfaits       []domain.Forfait
	assignments    map[string][]domain.ForfaitAssignment
	payments       map[string]*domain.Payment
	polls          map[string]int
	settleAfter    int
	finalStatus    domain.PaymentStatus
	assignStatus   int           // non-zero: assign-with-payment answers with this status
	assignGate     chan struct{} // non-nil: assign-with-payment blocks until closed
	assignCalls    int
	refreshCalls   int
	correlationIDs []string
	phones         []string
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()

	b := &fakeBackend{
		forfaits: []domain.Forfait{
			{ID: "f_urgent", Type: domain.ForfaitUrgent, Price: 1000, Duration: 3},
			{ID: "f_top", Type: domain.ForfaitTopAnnonce, Price: 2000, Duration: 7},
			{ID: "f_premium", Type: domain.ForfaitPremium, Price: 5000, Duration: 30},
		},
		assignments: make(map[string][]domain.ForfaitAssignment),
		payments:    make(map[string]*domain.Payment),
		polls:       make(map[string]int),
		settleAfter: 1,
		finalStatus: domain.PaymentStatusSuccess,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /forfait", b.listForfaits)
	mux.HandleFunc("GET /forfait/product/{id}", b.authenticated(b.productForfaits))
	mux.HandleFunc("POST /forfait/assign-with-payment", b.authenticated(b.assignWithPayment))
	mux.HandleFunc("GET /payment/{id}", b.authenticated(b.paymentStatus))
	mux.HandleFunc("POST /auth/refresh-token", b.refreshToken)

	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

func (b *fakeBackend) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" || expired(token) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
			return
		}
		next(w, r)
	}
}

func (b *fakeBackend) listForfaits(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, b.forfaits)
}

func (b *fakeBackend) productForfaits(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	assignments, ok := b.assignments[r.PathValue("id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Product not found"})
		return
	}
	writeJSON(w, http.StatusOK, assignments)
}

func (b *fakeBackend) assignWithPayment(w http.ResponseWriter, r *http.Request) {
	var req domain.AssignWithPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}

	b.mu.Lock()
	b.assignCalls++
	b.correlationIDs = append(b.correlationIDs, r.Header.Get("X-Correlation-ID"))
	b.phones = append(b.phones, req.PhoneNumber)
	gate := b.assignGate
	status := b.assignStatus
	b.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if status != 0 {
		writeJSON(w, status, map[string]string{"message": "Payment provider unavailable"})
		return
	}

	var price int64
	for _, f := range b.forfaits {
		if f.Type == req.ForfaitType {
			price = f.Price
		}
	}

	b.mu.Lock()
	id := fmt.Sprintf("pay_%d", len(b.payments)+1)
	payment := &domain.Payment{
		ID:        id,
		Amount:    price,
		Status:    domain.PaymentStatusPending,
		CreatedAt: time.Now().UTC(),
		Metadata:  map[string]any{"productId": req.ProductID, "forfaitType": string(req.ForfaitType)},
	}
	b.payments[id] = payment
	b.mu.Unlock()

	writeJSON(w, http.StatusCreated, domain.PaymentInitiation{
		Payment:      payment,
		Instructions: "Dial *126# to confirm",
	})
}

func (b *fakeBackend) paymentStatus(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := r.PathValue("id")
	payment, ok := b.payments[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Payment not found"})
		return
	}

	b.polls[id]++
	if b.polls[id] > b.settleAfter && !payment.Status.IsTerminal() {
		payment.Status = b.finalStatus
		payment.CampayReference = "CP-" + id
		if payment.Status == domain.PaymentStatusSuccess {
			now := time.Now().UTC()
			payment.PaidAt = &now
		}
	}
	writeJSON(w, http.StatusOK, payment)
}

func (b *fakeBackend) refreshToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	b.mu.Lock()
	b.refreshCalls++
	b.mu.Unlock()

	if req.RefreshToken != "valid-refresh" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid refresh token"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"accessToken":  "renewed-access-token",
		"refreshToken": "valid-refresh",
	})
}

func (b *fakeBackend) setAssignments(productID string, assignments ...domain.ForfaitAssignment) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.assignments[productID] = assignments
}

func (b *fakeBackend) stats() (assignCalls, refreshCalls int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.assignCalls, b.refreshCalls
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// expired reports whether token is a JWT past its expiry. Opaque tokens
// such as refreshed ones are accepted.
func expired(token string) bool {
	claims := &domain.BackendClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	return claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now())
}

// accessToken issues a backend-style access token for userID
func accessToken(t *testing.T, userID string) string {
	return signToken(t, userID, time.Now().Add(time.Hour))
}

func expiredAccessToken(t *testing.T, userID string) string {
	return signToken(t, userID, time.Now().Add(-time.Minute))
}

func signToken(t *testing.T, userID string, expiresAt time.Time) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &domain.BackendClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(expiresAt.Add(-time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte("backend-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func activeAssignment(productID string, f domain.Forfait) domain.ForfaitAssignment {
	now := time.Now().UTC()
	return domain.ForfaitAssignment{
		ID:          "assign_" + productID,
		ProductID:   productID,
		Forfait:     f,
		ActivatedAt: now.Add(-24 * time.Hour),
		ExpiresAt:   now.Add(6 * 24 * time.Hour),
		IsActive:    true,
	}
}
