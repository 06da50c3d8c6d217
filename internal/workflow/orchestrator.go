package workflow

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/buyandsale/boost/internal/domain"
	"github.com/buyandsale/boost/internal/metrics"
	"github.com/buyandsale/boost/internal/service"
	"go.opentelemetry.io/otel/trace"
)

// CatalogSource serves the shared forfait catalog
type CatalogSource interface {
	Get(ctx context.Context) ([]domain.Forfait, error)
	Snapshot() ([]domain.Forfait, bool)
}

// EligibilitySource computes the forfaits a listing may be upgraded to
type EligibilitySource interface {
	Check(ctx context.Context, source domain.AssignmentSource, productID string) (*service.Eligibility, error)
	Invalidate(ctx context.Context, productID string)
}

// PaymentBackend creates and observes payments
type PaymentBackend interface {
	service.PaymentGateway
	service.PaymentStatusSource
}

// Navigator moves the host page once a workflow resolves
type Navigator interface {
	Navigate(dest Destination)
}

// NavigatorFunc adapts a function to Navigator
type NavigatorFunc func(dest Destination)

// Navigate implements Navigator
func (f NavigatorFunc) Navigate(dest Destination) { f(dest) }

// Outcome describes a resolved workflow
type Outcome struct {
	Flow       Flow
	Resolution Resolution
	Session    Session // state right before it was cleared
	Reason     string
	ResolvedAt time.Time
}

// Deps are the collaborators of an Orchestrator
type Deps struct {
	Catalog     CatalogSource
	Eligibility EligibilitySource
	Assignments domain.AssignmentSource
	Payments    PaymentBackend
	Initiator   *service.PaymentInitiator
	Tracker     *service.PaymentTracker
	Scheduler   Scheduler
	Navigator   Navigator
	OnResolved  func(Outcome)
	Metrics     *metrics.Metrics

	// TransitionDelay separates closing one modal step from presenting the next
	TransitionDelay time.Duration
}

// Orchestrator drives one boost workflow. All events are serialized on a
// single mutex and every step change goes through transition or resolve.
// Results of asynchronous work are applied only if the epoch they captured
// is still current.
type Orchestrator struct {
	flow   Flow
	target Session
	deps   Deps
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	step      Step
	presented bool
	epoch     uint64
	closed    bool
	session   Session

	forfaits    []domain.Forfait
	current     *domain.ForfaitType
	loading     bool
	maxTier     bool
	selectorErr string

	processing   bool
	paymentErr   string
	instructions string
	payment      *domain.Payment

	resolution  Resolution
	destination Destination
	messages    []Message

	cancelPresent func()
	stopTracking  func()
	effects       []func()
}

// New creates an idle Orchestrator. target preloads the listing of a
// boost_existing flow and may be empty.
func New(flow Flow, deps Deps, target Session) *Orchestrator {
	if deps.Scheduler == nil {
		deps.Scheduler = NewTimerScheduler()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		flow:   flow,
		target: target,
		deps:   deps,
		ctx:    ctx,
		cancel: cancel,
		step:   StepIdle,
	}
}

// Flow returns the flow this orchestrator runs
func (o *Orchestrator) Flow() Flow {
	return o.flow
}

// AdCreated starts the create_ad flow once the listing exists. The boost
// offer is shown only when the catalog has something to sell.
func (o *Orchestrator) AdCreated(ctx context.Context, productID, productName string) error {
	if productID == "" {
		return domain.ErrMissingProduct
	}

	o.mu.Lock()
	if err := o.checkStart(FlowCreateAd); err != nil {
		o.mu.Unlock()
		return err
	}
	epoch := o.epoch
	o.mu.Unlock()

	catalog, fetchErr := o.deps.Catalog.Get(ctx)

	return o.run(func() error {
		if o.closed {
			return domain.ErrSessionClosed
		}
		if epoch != o.epoch {
			return domain.ErrInvalidTransition
		}

		o.startSession(productID, productName)
		if fetchErr != nil {
			log.Printf("[Workflow] catalog unavailable after ad %s was created: %v", productID, fetchErr)
			catalog = nil
		}
		if len(catalog) == 0 {
			o.notify(LevelSuccess, "Your listing is published.")
			o.resolve(ResolutionDeclined, "no forfait to offer", true)
			return nil
		}

		o.transition(StepBoostOffer)
		return nil
	})
}

// BeginBoost starts the boost_existing flow for a listing. Empty arguments
// fall back to the listing the session was created for.
func (o *Orchestrator) BeginBoost(productID, productName string) error {
	return o.run(func() error {
		if err := o.checkStart(FlowBoostExisting); err != nil {
			return err
		}
		if productID == "" {
			productID, productName = o.target.ProductID, o.target.ProductName
		}
		if productID == "" {
			return domain.ErrMissingProduct
		}

		o.startSession(productID, productName)
		o.transition(StepPackageSelection)
		o.loadEligibility(productID)
		return nil
	})
}

// AcceptOffer moves from the boost offer to the package selector
func (o *Orchestrator) AcceptOffer() error {
	return o.run(func() error {
		if err := o.expect(StepBoostOffer); err != nil {
			return err
		}
		o.transition(StepPackageSelection)

		// A new listing has no forfait yet, so the whole catalog is eligible
		if catalog, loaded := o.deps.Catalog.Snapshot(); loaded {
			o.forfaits = domain.EligibleForfaits(catalog, nil)
			return nil
		}
		o.loadCatalog()
		return nil
	})
}

// DeclineOffer finishes the create_ad flow without a boost
func (o *Orchestrator) DeclineOffer() error {
	return o.run(func() error {
		if err := o.expect(StepBoostOffer); err != nil {
			return err
		}
		o.notify(LevelSuccess, "Your listing is published.")
		o.resolve(ResolutionDeclined, "offer declined", true)
		return nil
	})
}

// SelectForfait picks a forfait from the list currently shown. An id that
// is not in that list leaves the selector open with an error.
func (o *Orchestrator) SelectForfait(forfaitType domain.ForfaitType, forfaitID string) error {
	return o.run(func() error {
		if err := o.expect(StepPackageSelection); err != nil {
			return err
		}

		if o.maxTier {
			return domain.ErrMaxTierReached
		}
		f, ok := domain.FindForfait(o.forfaits, forfaitID)
		if !ok || (forfaitType != "" && f.Type != forfaitType) {
			o.selectorErr = "This package is no longer available. Please pick another one."
			o.notify(LevelError, o.selectorErr)
			return domain.ErrUnknownForfait
		}
		if o.session.ProductID == "" {
			o.selectorErr = "The listing to boost is unknown."
			return domain.ErrMissingProduct
		}

		o.session.SelectedType = f.Type
		o.session.SelectedID = f.ID
		o.session.SelectedPrice = f.Price
		o.transition(StepPaymentCollection)
		return nil
	})
}

// SkipSelection finishes the workflow without a boost
func (o *Orchestrator) SkipSelection() error {
	return o.leaveSelection("selection skipped")
}

// CloseSelection behaves like SkipSelection
func (o *Orchestrator) CloseSelection() error {
	return o.leaveSelection("selection closed")
}

func (o *Orchestrator) leaveSelection(reason string) error {
	return o.run(func() error {
		if err := o.expect(StepPackageSelection); err != nil {
			return err
		}
		o.session.clearSelection()
		if o.flow == FlowCreateAd {
			o.notify(LevelSuccess, "Your listing is published.")
		}
		o.resolve(ResolutionDeclined, reason, true)
		return nil
	})
}

// SubmitPhone validates the phone number and asks the backend to create the
// payment. Only one submission may be in flight. The request keeps running
// if ctx is cancelled, and its result is dropped if the step was left.
func (o *Orchestrator) SubmitPhone(ctx context.Context, rawPhone string) error {
	o.mu.Lock()
	if err := o.expect(StepPaymentCollection); err != nil {
		o.mu.Unlock()
		return err
	}
	if o.processing {
		o.mu.Unlock()
		return domain.ErrPaymentInFlight
	}
	req, err := o.deps.Initiator.Prepare(o.session.ProductID, o.session.SelectedType, rawPhone)
	if err != nil {
		o.paymentErr = userMessage(err)
		o.mu.Unlock()
		return err
	}
	o.processing = true
	o.paymentErr = ""
	epoch := o.epoch
	o.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		resp, err := o.deps.Initiator.Submit(detach(ctx), o.deps.Payments, req)
		done <- o.run(func() error {
			return o.paymentInitiated(epoch, resp, err)
		})
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) paymentInitiated(epoch uint64, resp *domain.PaymentInitiation, err error) error {
	if !o.live(epoch) {
		if err == nil {
			log.Printf("[Workflow] payment %s created after the step was left, ignoring", resp.Payment.ID)
		}
		return domain.ErrSessionClosed
	}

	o.processing = false
	if err != nil {
		o.paymentErr = userMessage(err)
		o.notify(LevelError, o.paymentErr)
		return err
	}

	o.session.PaymentID = resp.Payment.ID
	o.transition(StepPaymentTracking)
	o.payment = resp.Payment
	o.instructions = resp.Instructions
	o.startTracking(resp.Payment.ID)
	o.notify(LevelInfo, "Confirm the payment on your phone to activate the boost.")
	return nil
}

// CancelPayment abandons the workflow from the phone number step
func (o *Orchestrator) CancelPayment() error {
	return o.run(func() error {
		if err := o.expect(StepPaymentCollection); err != nil {
			return err
		}
		o.resolve(ResolutionAbandoned, "payment cancelled", true)
		return nil
	})
}

// CancelTracking abandons the workflow while the payment is pending. The
// payment itself may still settle on the backend.
func (o *Orchestrator) CancelTracking() error {
	return o.run(func() error {
		if err := o.expect(StepPaymentTracking); err != nil {
			return err
		}
		o.resolve(ResolutionAbandoned, "tracking cancelled", true)
		return nil
	})
}

// Close tears the orchestrator down, as when the host page unmounts. An
// unfinished workflow is recorded as abandoned. Close is idempotent.
func (o *Orchestrator) Close() {
	_ = o.run(func() error {
		if o.closed {
			return nil
		}
		if o.step.modal() {
			o.resolve(ResolutionAbandoned, "closed", false)
		}
		o.closed = true
		o.epoch++
		o.leave()
		o.cancel()
		return nil
	})
}

// Closed reports whether Close was called
func (o *Orchestrator) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

// run executes fn under the lock, then runs the side effects fn queued
func (o *Orchestrator) run(fn func() error) error {
	o.mu.Lock()
	err := fn()
	effects := o.effects
	o.effects = nil
	o.mu.Unlock()

	for _, effect := range effects {
		effect()
	}
	return err
}

func (o *Orchestrator) after(effect func()) {
	o.effects = append(o.effects, effect)
}

func (o *Orchestrator) live(epoch uint64) bool {
	return !o.closed && o.epoch == epoch
}

func (o *Orchestrator) checkStart(flow Flow) error {
	if o.closed {
		return domain.ErrSessionClosed
	}
	if o.flow != flow {
		return domain.ErrInvalidTransition
	}
	if o.step != StepIdle && o.step != StepResolved {
		return domain.ErrInvalidTransition
	}
	return nil
}

func (o *Orchestrator) expect(step Step) error {
	if o.closed {
		return domain.ErrSessionClosed
	}
	if o.step != step {
		return domain.ErrInvalidTransition
	}
	if !o.presented {
		return domain.ErrStepNotPresented
	}
	return nil
}

func (o *Orchestrator) startSession(productID, productName string) {
	o.session.reset()
	o.session.ProductID = productID
	o.session.ProductName = productName
	o.resolution = ""
	o.destination = ""
	o.messages = nil
}

// transition is the only place a workflow enters a non-final step
func (o *Orchestrator) transition(to Step) {
	wasVisible := o.step.modal() && o.presented

	o.leave()
	o.epoch++
	o.step = to
	o.presented = false
	o.resetStepState()

	if o.deps.Metrics != nil {
		o.deps.Metrics.WorkflowSteps.WithLabelValues(string(o.flow), string(to)).Inc()
	}

	if !wasVisible {
		o.presented = true
		return
	}

	epoch := o.epoch
	o.cancelPresent = o.deps.Scheduler.Schedule(o.deps.TransitionDelay, func() {
		o.present(epoch)
	})
}

func (o *Orchestrator) present(epoch uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.live(epoch) {
		return
	}
	o.presented = true
	o.cancelPresent = nil
}

// resolve ends the workflow: the session is cleared and, when navigate is
// set, the host is sent to the flow's destination.
func (o *Orchestrator) resolve(res Resolution, reason string, navigate bool) {
	snapshot := o.session

	o.leave()
	o.epoch++
	o.step = StepResolved
	o.presented = true
	o.resetStepState()
	o.session.reset()
	o.resolution = res

	if o.deps.Metrics != nil {
		o.deps.Metrics.WorkflowResolved.WithLabelValues(string(o.flow), string(res)).Inc()
	}
	log.Printf("[Workflow] %s flow resolved as %s for product %s (%s)", o.flow, res, snapshot.ProductID, reason)

	outcome := Outcome{
		Flow:       o.flow,
		Resolution: res,
		Session:    snapshot,
		Reason:     reason,
		ResolvedAt: time.Now().UTC(),
	}
	var dest Destination
	if navigate {
		dest = o.flow.Destination()
		o.destination = dest
	}

	o.after(func() {
		if dest != "" && o.deps.Navigator != nil {
			o.deps.Navigator.Navigate(dest)
		}
		if o.deps.OnResolved != nil {
			o.deps.OnResolved(outcome)
		}
	})
}

// leave cancels everything owned by the current step
func (o *Orchestrator) leave() {
	if o.cancelPresent != nil {
		o.cancelPresent()
		o.cancelPresent = nil
	}
	if o.stopTracking != nil {
		o.stopTracking()
		o.stopTracking = nil
	}
}

func (o *Orchestrator) resetStepState() {
	o.forfaits = nil
	o.current = nil
	o.loading = false
	o.maxTier = false
	o.selectorErr = ""
	o.processing = false
	o.paymentErr = ""
	o.instructions = ""
	o.payment = nil
}

func (o *Orchestrator) loadEligibility(productID string) {
	o.loading = true
	epoch := o.epoch

	go func() {
		result, err := o.deps.Eligibility.Check(o.ctx, o.deps.Assignments, productID)
		_ = o.run(func() error {
			if !o.live(epoch) {
				return nil
			}
			o.loading = false
			if err != nil {
				log.Printf("[Workflow] eligibility check failed for product %s: %v", productID, err)
				o.selectorErr = "Packages could not be loaded. Please try again later."
				o.notify(LevelError, o.selectorErr)
				return nil
			}
			o.forfaits = result.Forfaits
			o.current = result.Current
			o.maxTier = result.MaxTierReached
			return nil
		})
	}()
}

func (o *Orchestrator) loadCatalog() {
	o.loading = true
	epoch := o.epoch

	go func() {
		catalog, err := o.deps.Catalog.Get(o.ctx)
		_ = o.run(func() error {
			if !o.live(epoch) {
				return nil
			}
			o.loading = false
			if err != nil {
				log.Printf("[Workflow] catalog fetch failed: %v", err)
				o.selectorErr = "Packages could not be loaded. Please try again later."
				o.notify(LevelError, o.selectorErr)
				return nil
			}
			o.forfaits = domain.EligibleForfaits(catalog, nil)
			return nil
		})
	}()
}

func (o *Orchestrator) startTracking(paymentID string) {
	epoch := o.epoch
	productID := o.session.ProductID

	o.stopTracking = o.deps.Tracker.Track(o.ctx, o.deps.Payments, paymentID, service.TrackerCallbacks{
		OnPoll: func(p *domain.Payment) {
			_ = o.run(func() error {
				if o.live(epoch) {
					o.payment = p
				}
				return nil
			})
		},
		OnSuccess: func(p *domain.Payment) {
			_ = o.run(func() error {
				if !o.live(epoch) {
					return nil
				}
				o.after(func() {
					o.deps.Eligibility.Invalidate(context.Background(), productID)
				})
				o.notify(LevelSuccess, "Payment confirmed. Your listing is now boosted.")
				o.resolve(ResolutionBoosted, "payment "+p.ID+" succeeded", true)
				return nil
			})
		},
		OnError: func(err error) {
			_ = o.run(func() error {
				if !o.live(epoch) {
					return nil
				}
				o.notify(LevelError, userMessage(err))
				o.resolve(ResolutionFailed, err.Error(), true)
				return nil
			})
		},
	})
}

// detach keeps the trace of ctx but drops its deadline and values
func detach(ctx context.Context) context.Context {
	return trace.ContextWithSpanContext(context.Background(), trace.SpanContextFromContext(ctx))
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidPhone):
		return "Enter a valid mobile money number: 9 digits starting with 6 or 7."
	case errors.Is(err, domain.ErrMissingProduct):
		return "The listing to boost is unknown."
	case errors.Is(err, domain.ErrInvalidForfait), errors.Is(err, domain.ErrUnknownForfait):
		return "This package is no longer available."
	case errors.Is(err, domain.ErrUnauthorized):
		return "Your session has expired. Please sign in again."
	case errors.Is(err, domain.ErrPaymentTimeout):
		return "The payment was not confirmed in time. Your listing was not boosted."
	case errors.Is(err, domain.ErrPaymentFailed):
		return "The payment did not go through. Your listing was not boosted."
	default:
		return "The payment could not be started. Please try again."
	}
}
