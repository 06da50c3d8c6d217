package domain

import "time"

// PaymentStatus is the lifecycle state of a mobile money payment
type PaymentStatus string

// Payment status constants
const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusSuccess   PaymentStatus = "SUCCESS"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
	PaymentStatusExpired   PaymentStatus = "EXPIRED"
)

// IsTerminal reports whether no further transition can happen
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusSuccess, PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusExpired:
		return true
	}
	return false
}

// Payment is the backend record of a forfait payment (read-only on our side)
type Payment struct {
	ID              string         `json:"id"`
	Amount          int64          `json:"amount"`
	Status          PaymentStatus  `json:"status"`
	CampayReference string         `json:"campayReference,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	PaidAt          *time.Time     `json:"paidAt,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// AssignWithPaymentRequest is the body of POST /forfait/assign-with-payment
type AssignWithPaymentRequest struct {
	ProductID   string      `json:"productId"`
	ForfaitType ForfaitType `json:"forfaitType"`
	PhoneNumber string      `json:"phoneNumber"`
}

// PaymentInitiation is the backend answer to AssignWithPaymentRequest
type PaymentInitiation struct {
	Payment      *Payment `json:"payment"`
	Instructions string   `json:"instructions,omitempty"`
}
