package handler

import (
	"context"
	"fmt"
	"testing"

	"github.com/buyandsale/boost/internal/domain"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid phone", domain.ErrInvalidPhone, fiber.StatusUnprocessableEntity},
		{"wrapped unknown forfait", fmt.Errorf("select: %w", domain.ErrUnknownForfait), fiber.StatusUnprocessableEntity},
		{"max tier", domain.ErrMaxTierReached, fiber.StatusUnprocessableEntity},
		{"in flight", domain.ErrPaymentInFlight, fiber.StatusConflict},
		{"not presented", domain.ErrStepNotPresented, fiber.StatusConflict},
		{"closed", domain.ErrSessionClosed, fiber.StatusGone},
		{"unknown session", domain.ErrSessionNotFound, fiber.StatusNotFound},
		{"other owner", domain.ErrForbidden, fiber.StatusForbidden},
		{"expired credentials", fmt.Errorf("refresh rejected: %w", domain.ErrUnauthorized), fiber.StatusUnauthorized},
		{"deadline", context.DeadlineExceeded, fiber.StatusGatewayTimeout},
		{"backend failure", fmt.Errorf("backend /forfait: status 500"), fiber.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestErrorMessageHidesBackendDetails(t *testing.T) {
	assert.Equal(t, "backend request failed", errorMessage(fmt.Errorf("backend /payment: status 500: stack trace")))
	assert.Equal(t, domain.ErrMissingPaymentID.Error(), errorMessage(fmt.Errorf("initiate: %w", domain.ErrMissingPaymentID)))
	assert.Equal(t, domain.ErrInvalidPhone.Error(), errorMessage(domain.ErrInvalidPhone))
}
