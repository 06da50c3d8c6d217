package handler

import (
	"log"

	"github.com/buyandsale/boost/internal/domain"
	"github.com/buyandsale/boost/internal/middleware"
	"github.com/buyandsale/boost/internal/service"
	"github.com/gofiber/fiber/v2"
)

// AssignmentSourceFactory returns a forfait reader acting with the caller's credentials
type AssignmentSourceFactory func(creds middleware.Credentials) domain.AssignmentSource

// ForfaitHandler serves the forfait catalog and per-listing forfait data
type ForfaitHandler struct {
	catalog     *service.CatalogProvider
	eligibility *service.EligibilityChecker
	journal     *service.OutcomeJournal
	assignments AssignmentSourceFactory
}

// NewForfaitHandler creates a new ForfaitHandler
func NewForfaitHandler(
	catalog *service.CatalogProvider,
	eligibility *service.EligibilityChecker,
	journal *service.OutcomeJournal,
	assignments AssignmentSourceFactory,
) *ForfaitHandler {
	return &ForfaitHandler{
		catalog:     catalog,
		eligibility: eligibility,
		journal:     journal,
		assignments: assignments,
	}
}

// PhoneRequest represents the request body for checking a phone number
type PhoneRequest struct {
	PhoneNumber string `json:"phone_number"`
}

// PhoneResponse tells the form what to display and whether it may submit
type PhoneResponse struct {
	Filtered   string `json:"filtered"`
	Normalized string `json:"normalized,omitempty"`
	Valid      bool   `json:"valid"`
}

// ListForfaits handles GET /v1/forfaits
// Query params: refresh=true to bypass the caches
func (h *ForfaitHandler) ListForfaits(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var (
		forfaits []domain.Forfait
		err      error
	)
	if c.QueryBool("refresh", false) {
		forfaits, err = h.catalog.Refresh(ctx)
	} else {
		forfaits, err = h.catalog.Get(ctx)
	}
	if err != nil {
		log.Printf("[ForfaitHandler] Failed to list forfaits: %v", err)
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    forfaits,
	})
}

// GetEligibility handles GET /v1/products/:id/eligibility
// Returns the active forfait of a listing and the tiers it may still buy
func (h *ForfaitHandler) GetEligibility(c *fiber.Ctx) error {
	creds, ok := middleware.CredentialsFrom(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "unauthorized",
		})
	}

	productID := c.Params("id")
	result, err := h.eligibility.Check(c.UserContext(), h.assignments(creds), productID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    result,
	})
}

// ListOutcomes handles GET /v1/products/:id/outcomes
func (h *ForfaitHandler) ListOutcomes(c *fiber.Ctx) error {
	outcomes, err := h.journal.ListByProduct(c.UserContext(), c.Params("id"))
	if err != nil {
		log.Printf("[ForfaitHandler] Failed to list outcomes: %v", err)
		return respondError(c, err)
	}

	userID, _ := c.Locals(middleware.UserIDKey).(string)
	mine := make([]*domain.BoostOutcome, 0, len(outcomes))
	for _, o := range outcomes {
		if o.UserID == userID {
			mine = append(mine, o)
		}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    mine,
	})
}

// CheckPhone handles POST /v1/phone/check
// Filters what the user typed and reports whether it is a valid mobile money number
func (h *ForfaitHandler) CheckPhone(c *fiber.Ctx) error {
	var req PhoneRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "invalid request body",
		})
	}

	resp := PhoneResponse{Filtered: domain.FilterPhoneInput(req.PhoneNumber)}
	if normalized, err := domain.NormalizePhone(req.PhoneNumber); err == nil {
		resp.Normalized = normalized
		resp.Valid = true
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    resp,
	})
}
