package domain

import "errors"

// Common errors
var (
	ErrNotFound  = errors.New("record not found")
	ErrForbidden = errors.New("access forbidden: you don't own this resource")

	ErrUnauthorized = errors.New("unauthorized")
)

// Validation errors. These never reach the network.
var (
	ErrInvalidPhone     = errors.New("invalid mobile money number: expected 9 digits starting with 6 or 7")
	ErrUnknownForfait   = errors.New("selected forfait is not available for this listing")
	ErrInvalidForfait   = errors.New("unknown forfait type")
	ErrMissingProduct   = errors.New("no listing selected for boost")
	ErrMaxTierReached   = errors.New("listing already has the maximum forfait tier")
	ErrMissingPaymentID = errors.New("backend response is missing the payment id")
)

// Workflow errors
var (
	ErrPaymentInFlight   = errors.New("a payment request is already in progress")
	ErrInvalidTransition = errors.New("action not allowed in the current step")
	ErrStepNotPresented  = errors.New("step is not presented yet")
	ErrSessionClosed     = errors.New("boost session is closed")
	ErrSessionNotFound   = errors.New("boost session not found")
	ErrPaymentFailed     = errors.New("payment was not completed")
	ErrPaymentTimeout    = errors.New("payment status did not settle in time")
)
