package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/buyandsale/boost/internal/domain"
	"github.com/buyandsale/boost/internal/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Config holds Buy&Sale API configuration
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Client is the Buy&Sale REST API client. The zero-auth client serves public
// endpoints; WithAuth derives a client bound to one user's credentials.
type Client struct {
	config     Config
	httpClient *http.Client
	metrics    *metrics.Metrics
	auth       Authenticator
}

// APIError is returned for any non-2xx backend response
type APIError struct {
	Endpoint string
	Status   int
	Message  string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend %s: status %d", e.Endpoint, e.Status)
	}
	return fmt.Sprintf("backend %s: status %d: %s", e.Endpoint, e.Status, e.Message)
}

// Unwrap maps auth and lookup failures onto domain errors
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case http.StatusForbidden:
		return domain.ErrForbidden
	case http.StatusNotFound:
		return domain.ErrNotFound
	}
	return nil
}

// NewClient creates a new Buy&Sale API client
func NewClient(cfg Config, m *metrics.Metrics) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: timeout},
		metrics:    m,
	}
}

// WithAuth returns a copy of the client that authenticates with a
func (c *Client) WithAuth(a Authenticator) *Client {
	clone := *c
	clone.auth = a
	return &clone
}

// ListForfaits handles GET /forfait
func (c *Client) ListForfaits(ctx context.Context) ([]domain.Forfait, error) {
	var forfaits []domain.Forfait
	if err := c.do(ctx, http.MethodGet, "/forfait", "list_forfaits", nil, nil, &forfaits); err != nil {
		return nil, err
	}
	return forfaits, nil
}

// ProductForfaits handles GET /forfait/product/:productId
func (c *Client) ProductForfaits(ctx context.Context, productID string) ([]domain.ForfaitAssignment, error) {
	if productID == "" {
		return nil, domain.ErrMissingProduct
	}
	endpoint := "/forfait/product/" + url.PathEscape(productID)

	var assignments []domain.ForfaitAssignment
	if err := c.do(ctx, http.MethodGet, endpoint, "product_forfaits", nil, nil, &assignments); err != nil {
		return nil, err
	}
	return assignments, nil
}

// AssignWithPayment handles POST /forfait/assign-with-payment.
// Every call carries a fresh X-Correlation-ID so a replayed request can be
// recognised server side.
func (c *Client) AssignWithPayment(ctx context.Context, req domain.AssignWithPaymentRequest) (*domain.PaymentInitiation, error) {
	headers := map[string]string{"X-Correlation-ID": uuid.NewString()}

	var resp domain.PaymentInitiation
	if err := c.do(ctx, http.MethodPost, "/forfait/assign-with-payment", "assign_with_payment", req, headers, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PaymentStatus handles GET /payment/:id
func (c *Client) PaymentStatus(ctx context.Context, paymentID string) (*domain.Payment, error) {
	if paymentID == "" {
		return nil, domain.ErrMissingPaymentID
	}

	var payment domain.Payment
	if err := c.do(ctx, http.MethodGet, "/payment/"+url.PathEscape(paymentID), "payment_status", nil, nil, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RefreshToken handles POST /auth/refresh-token. It never uses the bound
// credentials, so a TokenManager can call it without recursing.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	public := c.WithAuth(nil)

	var pair TokenPair
	if err := public.do(ctx, http.MethodPost, "/auth/refresh-token", "refresh_token", refreshRequest{RefreshToken: refreshToken}, nil, &pair); err != nil {
		return nil, err
	}
	if pair.AccessToken == "" {
		return nil, fmt.Errorf("refresh response without access token: %w", domain.ErrUnauthorized)
	}
	if pair.RefreshToken == "" {
		pair.RefreshToken = refreshToken
	}
	return &pair, nil
}

// do sends the request, retrying once with a refreshed token on 401
func (c *Client) do(ctx context.Context, method, endpoint, label string, body any, headers map[string]string, dest any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	token := ""
	if c.auth != nil {
		var err error
		token, err = c.auth.AccessToken(ctx)
		if err != nil {
			return err
		}
	}

	status, respBody, err := c.send(ctx, method, endpoint, label, payload, headers, token)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized && c.auth != nil {
		log.Printf("[Backend] %s %s returned 401, refreshing token", method, endpoint)
		token, err = c.auth.Refresh(ctx)
		if err != nil {
			return err
		}
		status, respBody, err = c.send(ctx, method, endpoint, label, payload, headers, token)
		if err != nil {
			return err
		}
	}

	if status < 200 || status >= 300 {
		return &APIError{Endpoint: endpoint, Status: status, Message: extractMessage(respBody)}
	}

	if dest == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, dest); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", endpoint, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, endpoint, label string, payload []byte, headers map[string]string, token string) (int, []byte, error) {
	tracer := otel.Tracer("backend")
	ctx, span := tracer.Start(ctx, "backend."+label,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("backend.endpoint", endpoint),
		),
	)
	defer span.End()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.config.BaseURL, "/")+endpoint, reader)
	if err != nil {
		span.RecordError(err)
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if c.metrics != nil {
			c.metrics.BackendRequests.WithLabelValues(label, "error").Inc()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	statusLabel := strconv.Itoa(resp.StatusCode)
	if c.metrics != nil {
		c.metrics.BackendRequests.WithLabelValues(label, statusLabel).Inc()
		c.metrics.BackendLatency.WithLabelValues(label, statusLabel).Observe(time.Since(start).Seconds())
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", resp.StatusCode))
	}

	return resp.StatusCode, respBody, nil
}

// extractMessage reads {"message": "..."} or {"message": ["..."]} error bodies
func extractMessage(body []byte) string {
	var envelope struct {
		Message json.RawMessage `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return strings.TrimSpace(truncate(string(body), 200))
	}

	var single string
	if err := json.Unmarshal(envelope.Message, &single); err == nil && single != "" {
		return single
	}
	var many []string
	if err := json.Unmarshal(envelope.Message, &many); err == nil && len(many) > 0 {
		return strings.Join(many, "; ")
	}
	return envelope.Error
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
