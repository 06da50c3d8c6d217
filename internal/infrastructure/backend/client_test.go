package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/buyandsale/boost/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, Timeout: 5 * time.Second}, nil)
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user_1",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestListForfaits(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/forfait", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte(`[{"id":"f1","type":"URGENT","price":1000,"duration":7},{"id":"f2","type":"PREMIUM","price":5000,"duration":30,"description":"Top of the list"}]`))
	})

	forfaits, err := client.ListForfaits(context.Background())
	require.NoError(t, err)
	require.Len(t, forfaits, 2)
	assert.Equal(t, domain.ForfaitPremium, forfaits[1].Type)
	assert.Equal(t, int64(5000), forfaits[1].Price)
	assert.Equal(t, 30, forfaits[1].Duration)
}

func TestAssignWithPayment(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/forfait/assign-with-payment", r.URL.Path)
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Correlation-ID"))

		var body domain.AssignWithPaymentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "prod_1", body.ProductID)
		assert.Equal(t, domain.ForfaitTopAnnonce, body.ForfaitType)
		assert.Equal(t, "677889900", body.PhoneNumber)

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"payment":{"id":"pay_1","amount":2000,"status":"PENDING","campayReference":"cp_9"},"instructions":"Dial *126#"}`))
	})

	tm := NewTokenManager(TokenPair{AccessToken: "access-1"}, nil, nil, time.Second)
	resp, err := client.WithAuth(tm).AssignWithPayment(context.Background(), domain.AssignWithPaymentRequest{
		ProductID:   "prod_1",
		ForfaitType: domain.ForfaitTopAnnonce,
		PhoneNumber: "677889900",
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Payment)
	assert.Equal(t, "pay_1", resp.Payment.ID)
	assert.Equal(t, domain.PaymentStatusPending, resp.Payment.Status)
	assert.Equal(t, "Dial *126#", resp.Instructions)
}

func TestAPIErrorMapping(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/payment/missing":
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message":"Payment not found"}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"message":["campay unavailable","retry later"]}`))
		}
	})

	_, err := client.PaymentStatus(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = client.ListForfaits(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "campay unavailable; retry later", apiErr.Message)
}

func TestRetriesOnceAfterRefresh(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/refresh-token":
			assert.Empty(t, r.Header.Get("Authorization"))
			w.Write([]byte(`{"accessToken":"fresh","refreshToken":"refresh-2"}`))
		case "/forfait/product/prod_1":
			atomic.AddInt32(&calls, 1)
			if r.Header.Get("Authorization") != "Bearer fresh" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Write([]byte(`[{"id":"a1","forfait":{"id":"f1","type":"URGENT"},"isActive":true}]`))
		}
	})

	tm := NewTokenManager(TokenPair{AccessToken: "stale", RefreshToken: "refresh-1"}, client.RefreshToken, nil, time.Second)
	assignments, err := client.WithAuth(tm).ProductForfaits(context.Background(), "prod_1")
	require.NoError(t, err)
	assert.Len(t, assignments, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRejectedRefreshLogsOut(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	loggedOut := make(chan struct{})
	tm := NewTokenManager(TokenPair{AccessToken: "stale", RefreshToken: "revoked"}, client.RefreshToken, func() { close(loggedOut) }, time.Second)

	_, err := client.WithAuth(tm).PaymentStatus(context.Background(), "pay_1")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	select {
	case <-loggedOut:
	case <-time.After(time.Second):
		t.Fatal("logout callback was not invoked")
	}
	assert.True(t, tm.LoggedOut())

	_, err = tm.AccessToken(context.Background())
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestProactiveRefreshOnExpiringToken(t *testing.T) {
	var refreshed int32
	refresh := func(ctx context.Context, refreshToken string) (*TokenPair, error) {
		atomic.AddInt32(&refreshed, 1)
		assert.Equal(t, "refresh-1", refreshToken)
		return &TokenPair{AccessToken: "renewed", RefreshToken: "refresh-2"}, nil
	}

	expiring := signedToken(t, time.Now().Add(10*time.Second))
	tm := NewTokenManager(TokenPair{AccessToken: expiring, RefreshToken: "refresh-1"}, refresh, nil, time.Minute)

	token, err := tm.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "renewed", token)
	assert.Equal(t, int32(1), atomic.LoadInt32(&refreshed))

	valid := signedToken(t, time.Now().Add(time.Hour))
	tm = NewTokenManager(TokenPair{AccessToken: valid, RefreshToken: "refresh-1"}, refresh, nil, time.Minute)
	token, err = tm.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, valid, token)
	assert.Equal(t, int32(1), atomic.LoadInt32(&refreshed))
}
