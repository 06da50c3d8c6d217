package workflow

import "github.com/buyandsale/boost/internal/domain"

// Step is the single active step of a boost workflow
type Step string

const (
	StepIdle              Step = "idle"
	StepBoostOffer        Step = "boost_offer"
	StepPackageSelection  Step = "package_selection"
	StepPaymentCollection Step = "payment_collection"
	StepPaymentTracking   Step = "payment_tracking"
	StepResolved          Step = "resolved"
)

// modal reports whether the step is presented as a modal on the host page
func (s Step) modal() bool {
	switch s {
	case StepBoostOffer, StepPackageSelection, StepPaymentCollection, StepPaymentTracking:
		return true
	}
	return false
}

// Resolution is how a workflow ended
type Resolution string

const (
	ResolutionBoosted   Resolution = "boosted"
	ResolutionDeclined  Resolution = "declined" // finished without a boost
	ResolutionAbandoned Resolution = "abandoned"
	ResolutionFailed    Resolution = "failed"
)

// Flow identifies the page hosting the workflow
type Flow string

const (
	// FlowCreateAd runs after a listing is created; the product is known only then
	FlowCreateAd Flow = "create_ad"
	// FlowBoostExisting boosts a listing from the profile page
	FlowBoostExisting Flow = "boost_existing"
)

// Valid reports whether f is a known flow
func (f Flow) Valid() bool {
	return f == FlowCreateAd || f == FlowBoostExisting
}

// Destination is the route the host navigates to once the workflow resolves
func (f Flow) Destination() Destination {
	if f == FlowBoostExisting {
		return DestinationProfile
	}
	return DestinationListings
}

// Destination is a host route
type Destination string

const (
	DestinationListings Destination = "listings"
	DestinationProfile  Destination = "profile"
)

// Session is the per-workflow state. It lives only as long as the workflow.
type Session struct {
	ProductID     string             `json:"product_id,omitempty"`
	ProductName   string             `json:"product_name,omitempty"`
	SelectedType  domain.ForfaitType `json:"selected_type,omitempty"`
	SelectedID    string             `json:"selected_id,omitempty"`
	SelectedPrice int64              `json:"selected_price,omitempty"`
	PaymentID     string             `json:"payment_id,omitempty"`
}

// HasSelection reports whether a forfait was picked
func (s Session) HasSelection() bool {
	return s.SelectedID != ""
}

func (s *Session) clearSelection() {
	s.SelectedType = ""
	s.SelectedID = ""
	s.SelectedPrice = 0
}

func (s *Session) reset() {
	*s = Session{}
}

// Record converts an outcome into its journal entry
func (o Outcome) Record(sessionID, userID string) *domain.BoostOutcome {
	return &domain.BoostOutcome{
		SessionID:   sessionID,
		Flow:        string(o.Flow),
		UserID:      userID,
		ProductID:   o.Session.ProductID,
		ForfaitID:   o.Session.SelectedID,
		ForfaitType: o.Session.SelectedType,
		Amount:      o.Session.SelectedPrice,
		PaymentID:   o.Session.PaymentID,
		Resolution:  string(o.Resolution),
		Reason:      o.Reason,
		ResolvedAt:  o.ResolvedAt,
	}
}
