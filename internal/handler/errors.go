package handler

import (
	"context"
	"errors"

	"github.com/buyandsale/boost/internal/domain"
	"github.com/gofiber/fiber/v2"
)

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidPhone),
		errors.Is(err, domain.ErrUnknownForfait),
		errors.Is(err, domain.ErrInvalidForfait),
		errors.Is(err, domain.ErrMissingProduct),
		errors.Is(err, domain.ErrMaxTierReached):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrPaymentInFlight),
		errors.Is(err, domain.ErrStepNotPresented),
		errors.Is(err, domain.ErrInvalidTransition):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrSessionClosed):
		return fiber.StatusGone
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, domain.ErrUnauthorized):
		return fiber.StatusUnauthorized
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fiber.StatusGatewayTimeout
	default:
		// Backend failures and contract violations
		return fiber.StatusBadGateway
	}
}

// errorMessage hides backend details behind a generic message
func errorMessage(err error) string {
	if statusFor(err) == fiber.StatusBadGateway {
		if errors.Is(err, domain.ErrMissingPaymentID) {
			return domain.ErrMissingPaymentID.Error()
		}
		return "backend request failed"
	}
	return err.Error()
}

func respondError(c *fiber.Ctx, err error) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{
		"success": false,
		"error":   errorMessage(err),
	})
}
