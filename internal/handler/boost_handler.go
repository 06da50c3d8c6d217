package handler

import (
	"log"
	"strings"

	"github.com/buyandsale/boost/internal/domain"
	"github.com/buyandsale/boost/internal/middleware"
	"github.com/buyandsale/boost/internal/telemetry"
	"github.com/buyandsale/boost/internal/workflow"
	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel/attribute"
)

// SessionFactory builds the orchestrator of a new session, bound to the
// caller's backend credentials
type SessionFactory func(sessionID string, flow workflow.Flow, creds middleware.Credentials, target workflow.Session) *workflow.Orchestrator

// BoostHandler exposes boost workflow sessions to the host pages
type BoostHandler struct {
	registry *workflow.Registry
	factory  SessionFactory
}

// NewBoostHandler creates a new BoostHandler
func NewBoostHandler(registry *workflow.Registry, factory SessionFactory) *BoostHandler {
	return &BoostHandler{
		registry: registry,
		factory:  factory,
	}
}

// CreateSessionRequest represents the request body for opening a session
type CreateSessionRequest struct {
	Flow        string `json:"flow"` // create_ad, boost_existing
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
}

// ProductRequest names the listing an event applies to
type ProductRequest struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
}

// SelectionRequest represents the request body for picking a forfait
type SelectionRequest struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// PaymentRequest represents the request body for starting the payment
type PaymentRequest struct {
	PhoneNumber string `json:"phone_number"`
}

// SessionResponse is a session id with what the host should render
type SessionResponse struct {
	ID string `json:"id"`
	workflow.View
}

// CreateSession handles POST /v1/boost/sessions
func (h *BoostHandler) CreateSession(c *fiber.Ctx) error {
	creds, ok := middleware.CredentialsFrom(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "unauthorized",
		})
	}

	var req CreateSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "invalid request body",
		})
	}

	flow := workflow.Flow(strings.ToLower(strings.TrimSpace(req.Flow)))
	if !flow.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "invalid flow, must be create_ad or boost_existing",
		})
	}

	target := workflow.Session{ProductID: req.ProductID, ProductName: req.ProductName}
	id, o := h.registry.Add(creds.UserID, func(id string) *workflow.Orchestrator {
		return h.factory(id, flow, creds, target)
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    SessionResponse{ID: id, View: o.View()},
	})
}

// GetSession handles GET /v1/boost/sessions/:id
func (h *BoostHandler) GetSession(c *fiber.Ctx) error {
	return h.apply(c, nil)
}

// CloseSession handles DELETE /v1/boost/sessions/:id
// Equivalent to the host page unmounting
func (h *BoostHandler) CloseSession(c *fiber.Ctx) error {
	userID, _ := c.Locals(middleware.UserIDKey).(string)
	id := c.Params("id")

	o, err := h.registry.Get(id, userID)
	if err != nil {
		return respondError(c, err)
	}
	if err := h.registry.Remove(id, userID); err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    SessionResponse{ID: id, View: o.View()},
	})
}

// AdCreated handles POST /v1/boost/sessions/:id/ad-created
func (h *BoostHandler) AdCreated(c *fiber.Ctx) error {
	var req ProductRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "invalid request body",
		})
	}
	if req.ProductID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "product_id is required",
		})
	}

	return h.apply(c, func(o *workflow.Orchestrator) error {
		return o.AdCreated(c.UserContext(), req.ProductID, req.ProductName)
	})
}

// Begin handles POST /v1/boost/sessions/:id/begin
// The body is optional when the session was opened with a product
func (h *BoostHandler) Begin(c *fiber.Ctx) error {
	var req ProductRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   "invalid request body",
			})
		}
	}

	return h.apply(c, func(o *workflow.Orchestrator) error {
		return o.BeginBoost(req.ProductID, req.ProductName)
	})
}

// AcceptOffer handles POST /v1/boost/sessions/:id/offer/accept
func (h *BoostHandler) AcceptOffer(c *fiber.Ctx) error {
	return h.apply(c, (*workflow.Orchestrator).AcceptOffer)
}

// DeclineOffer handles POST /v1/boost/sessions/:id/offer/decline
func (h *BoostHandler) DeclineOffer(c *fiber.Ctx) error {
	return h.apply(c, (*workflow.Orchestrator).DeclineOffer)
}

// Select handles POST /v1/boost/sessions/:id/selection
func (h *BoostHandler) Select(c *fiber.Ctx) error {
	var req SelectionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "invalid request body",
		})
	}
	if req.ID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "id is required",
		})
	}

	var forfaitType domain.ForfaitType
	if req.Type != "" {
		t, err := domain.ParseForfaitType(req.Type)
		if err != nil {
			return respondError(c, err)
		}
		forfaitType = t
	}

	return h.apply(c, func(o *workflow.Orchestrator) error {
		return o.SelectForfait(forfaitType, req.ID)
	})
}

// SkipSelection handles POST /v1/boost/sessions/:id/selection/skip
func (h *BoostHandler) SkipSelection(c *fiber.Ctx) error {
	return h.apply(c, (*workflow.Orchestrator).SkipSelection)
}

// CloseSelection handles POST /v1/boost/sessions/:id/selection/close
func (h *BoostHandler) CloseSelection(c *fiber.Ctx) error {
	return h.apply(c, (*workflow.Orchestrator).CloseSelection)
}

// SubmitPayment handles POST /v1/boost/sessions/:id/payment
// Creates the mobile money payment and starts tracking it
func (h *BoostHandler) SubmitPayment(c *fiber.Ctx) error {
	var req PaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "invalid request body",
		})
	}

	return h.apply(c, func(o *workflow.Orchestrator) error {
		return o.SubmitPhone(c.UserContext(), req.PhoneNumber)
	})
}

// CancelPayment handles POST /v1/boost/sessions/:id/payment/cancel
func (h *BoostHandler) CancelPayment(c *fiber.Ctx) error {
	return h.apply(c, (*workflow.Orchestrator).CancelPayment)
}

// CancelTracking handles POST /v1/boost/sessions/:id/tracking/cancel
func (h *BoostHandler) CancelTracking(c *fiber.Ctx) error {
	return h.apply(c, (*workflow.Orchestrator).CancelTracking)
}

// apply looks up the caller's session, runs event on it (if any) and
// responds with the resulting view
func (h *BoostHandler) apply(c *fiber.Ctx, event func(o *workflow.Orchestrator) error) error {
	userID, _ := c.Locals(middleware.UserIDKey).(string)
	id := c.Params("id")

	o, err := h.registry.Get(id, userID)
	if err != nil {
		return respondError(c, err)
	}

	var eventErr error
	if event != nil {
		eventErr = event(o)
	}
	view := o.View()
	telemetry.AddSpanEvent(c, "boost.workflow",
		attribute.String("flow", string(view.Flow)),
		attribute.String("step", string(view.Step)),
		attribute.Bool("presented", view.Presented),
	)

	if eventErr != nil {
		status := statusFor(eventErr)
		if status >= fiber.StatusInternalServerError {
			log.Printf("[BoostHandler] session %s: %v", id, eventErr)
		}
		return c.Status(status).JSON(fiber.Map{
			"success": false,
			"error":   errorMessage(eventErr),
			"data":    SessionResponse{ID: id, View: view},
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    SessionResponse{ID: id, View: view},
	})
}
