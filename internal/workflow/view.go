package workflow

import (
	"time"

	"github.com/buyandsale/boost/internal/domain"
)

// Message levels
const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelError   = "error"
)

const maxMessages = 10

// Message is a user-facing notice raised by the workflow
type Message struct {
	Level string    `json:"level"`
	Text  string    `json:"text"`
	At    time.Time `json:"at"`
}

// View is what the host page renders. At most one of Offer, Selector,
// Payment and Tracking is set, and none while a step is waiting to be presented.
type View struct {
	Flow        Flow          `json:"flow"`
	Step        Step          `json:"step"`
	Presented   bool          `json:"presented"`
	Session     Session       `json:"session"`
	Offer       *OfferView    `json:"offer,omitempty"`
	Selector    *SelectorView `json:"selector,omitempty"`
	Payment     *PaymentView  `json:"payment,omitempty"`
	Tracking    *TrackingView `json:"tracking,omitempty"`
	Resolution  Resolution    `json:"resolution,omitempty"`
	Destination Destination   `json:"destination,omitempty"`
	Messages    []Message     `json:"messages"`
	Closed      bool          `json:"closed,omitempty"`
}

// OfferView is the yes/no boost prompt shown after a listing is created
type OfferView struct {
	ProductName string `json:"product_name,omitempty"`
	Packages    int    `json:"packages"`
	StartsAt    int64  `json:"starts_at"` // cheapest price
}

// SelectorView lists the forfaits the listing may be boosted with
type SelectorView struct {
	Forfaits       []domain.Forfait    `json:"forfaits"`
	Current        *domain.ForfaitType `json:"current,omitempty"`
	Loading        bool                `json:"loading"`
	Empty          bool                `json:"empty"`
	MaxTierReached bool                `json:"max_tier_reached"`
	Notice         string              `json:"notice,omitempty"`
	Error          string              `json:"error,omitempty"`
}

// PaymentView is the phone number form
type PaymentView struct {
	ForfaitType domain.ForfaitType `json:"forfait_type"`
	ForfaitID   string             `json:"forfait_id"`
	Price       int64              `json:"price"`
	Processing  bool               `json:"processing"`
	Error       string             `json:"error,omitempty"`
}

// TrackingView shows a payment waiting for confirmation
type TrackingView struct {
	PaymentID    string               `json:"payment_id"`
	Status       domain.PaymentStatus `json:"status"`
	Amount       int64                `json:"amount"`
	Reference    string               `json:"reference,omitempty"`
	Instructions string               `json:"instructions,omitempty"`
}

// View returns a snapshot of what the host should display
func (o *Orchestrator) View() View {
	o.mu.Lock()
	defer o.mu.Unlock()

	v := View{
		Flow:        o.flow,
		Step:        o.step,
		Presented:   o.presented,
		Session:     o.session,
		Resolution:  o.resolution,
		Destination: o.destination,
		Messages:    append([]Message{}, o.messages...),
		Closed:      o.closed,
	}
	if !o.presented {
		return v
	}

	switch o.step {
	case StepBoostOffer:
		v.Offer = o.offerView()
	case StepPackageSelection:
		v.Selector = o.selectorView()
	case StepPaymentCollection:
		v.Payment = &PaymentView{
			ForfaitType: o.session.SelectedType,
			ForfaitID:   o.session.SelectedID,
			Price:       o.session.SelectedPrice,
			Processing:  o.processing,
			Error:       o.paymentErr,
		}
	case StepPaymentTracking:
		t := &TrackingView{
			PaymentID:    o.session.PaymentID,
			Status:       domain.PaymentStatusPending,
			Instructions: o.instructions,
		}
		if o.payment != nil {
			t.Status = o.payment.Status
			t.Amount = o.payment.Amount
			t.Reference = o.payment.CampayReference
		}
		v.Tracking = t
	}
	return v
}

func (o *Orchestrator) offerView() *OfferView {
	catalog, _ := o.deps.Catalog.Snapshot()
	offer := &OfferView{ProductName: o.session.ProductName, Packages: len(catalog)}
	for i, f := range catalog {
		if i == 0 || f.Price < offer.StartsAt {
			offer.StartsAt = f.Price
		}
	}
	return offer
}

func (o *Orchestrator) selectorView() *SelectorView {
	s := &SelectorView{
		Forfaits:       append([]domain.Forfait{}, o.forfaits...),
		Current:        o.current,
		Loading:        o.loading,
		MaxTierReached: o.maxTier,
		Error:          o.selectorErr,
	}
	if s.Loading {
		return s
	}
	s.Empty = len(s.Forfaits) == 0
	switch {
	case s.MaxTierReached:
		s.Notice = "This listing already has the highest package (PREMIUM)."
	case s.Empty && s.Error == "":
		s.Notice = "No package is available for this listing right now."
	}
	return s
}

func (o *Orchestrator) notify(level, text string) {
	o.messages = append(o.messages, Message{Level: level, Text: text, At: time.Now().UTC()})
	if len(o.messages) > maxMessages {
		o.messages = o.messages[len(o.messages)-maxMessages:]
	}
}
