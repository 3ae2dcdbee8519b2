package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/arkamarket/checkout/internal/domain"
	"github.com/arkamarket/checkout/internal/repositories"
)

const defaultSessionTTL = 2 * time.Hour

var (
	// ErrWizardInvalidInput indicates the caller supplied invalid parameters.
	ErrWizardInvalidInput = errors.New("checkout wizard: invalid input")
	// ErrWizardUnavailable indicates wizard dependencies are not wired.
	ErrWizardUnavailable = errors.New("checkout wizard: unavailable")
	// ErrWizardCartEmpty indicates the user has no cart snapshot to check out.
	ErrWizardCartEmpty = errors.New("checkout wizard: cart is empty")
	// ErrWizardSessionNotFound indicates the session does not exist, expired, or belongs to another user.
	ErrWizardSessionNotFound = errors.New("checkout wizard: session not found")
	// ErrWizardNotAtPayment indicates submit was invoked before reaching the payment step.
	ErrWizardNotAtPayment = errors.New("checkout wizard: not at payment step")
	// ErrWizardTermsNotAccepted indicates submit was invoked without the terms checkbox set.
	ErrWizardTermsNotAccepted = errors.New("checkout wizard: terms not accepted")
	// ErrWizardSubmitInFlight indicates a concurrent submission is already running for the session.
	ErrWizardSubmitInFlight = errors.New("checkout wizard: submission already in flight")
)

// CheckoutWizardDeps wires the dependencies required by the wizard.
type CheckoutWizardDeps struct {
	Sessions    repositories.SessionStore
	Snapshots   repositories.CartSnapshotStore
	Profiles    ProfileGateway
	Validator   *FormValidator
	Pricing     *PricingEngine
	Submitter   OrderSubmitter
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
	SessionTTL  time.Duration
}

type checkoutWizard struct {
	sessions   repositories.SessionStore
	snapshots  repositories.CartSnapshotStore
	profiles   ProfileGateway
	validator  *FormValidator
	pricing    *PricingEngine
	submitter  OrderSubmitter
	now        func() time.Time
	idGen      func() string
	logger     func(ctx context.Context, event string, fields map[string]any)
	sessionTTL time.Duration

	// inflight guards the submit action per session so a double-click
	// cannot issue two order creations.
	inflight sync.Map
}

// NewCheckoutWizard constructs a CheckoutWizard validating required dependencies.
func NewCheckoutWizard(deps CheckoutWizardDeps) (CheckoutWizard, error) {
	if deps.Sessions == nil {
		return nil, errors.New("checkout wizard: session store is required")
	}
	if deps.Snapshots == nil {
		return nil, errors.New("checkout wizard: snapshot store is required")
	}
	if deps.Validator == nil {
		return nil, errors.New("checkout wizard: form validator is required")
	}
	if deps.Pricing == nil {
		return nil, errors.New("checkout wizard: pricing engine is required")
	}
	if deps.Submitter == nil {
		return nil, errors.New("checkout wizard: order submitter is required")
	}
	if deps.IDGenerator == nil {
		return nil, errors.New("checkout wizard: id generator is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	ttl := deps.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}

	return &checkoutWizard{
		sessions:  deps.Sessions,
		snapshots: deps.Snapshots,
		profiles:  deps.Profiles,
		validator: deps.Validator,
		pricing:   deps.Pricing,
		submitter: deps.Submitter,
		now: func() time.Time {
			return clock().UTC()
		},
		idGen:      deps.IDGenerator,
		logger:     logger,
		sessionTTL: ttl,
	}, nil
}

// StartSession reads the cart snapshot once and opens a session at the
// shipping step. The shipping form is pre-filled from the user profile
// when available; profile failures are swallowed.
func (w *checkoutWizard) StartSession(ctx context.Context, cmd StartSessionCommand) (SessionView, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return SessionView{}, ErrWizardInvalidInput
	}

	snapshot, err := w.snapshots.Load(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrSnapshotNotFound) {
			return SessionView{}, ErrWizardCartEmpty
		}
		return SessionView{}, err
	}
	if snapshot.Empty() {
		return SessionView{}, ErrWizardCartEmpty
	}

	form := domain.CheckoutForm{
		BillingSameAsShipping: true,
		ShippingMethodID:      w.pricing.Policy().DefaultShippingMethodID(),
		PaymentMethodID:       domain.PaymentMethodOnline,
	}
	w.prefillShipping(ctx, cmd.Credential, &form)
	form.SyncBilling()

	now := w.now()
	session := domain.CheckoutSession{
		ID:        w.idGen(),
		UserID:    userID,
		Step:      domain.StepShipping,
		Form:      form,
		Snapshot:  snapshot,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(w.sessionTTL),
	}

	if err := w.sessions.Create(ctx, session); err != nil {
		return SessionView{}, err
	}

	w.logger(ctx, "checkout.session_started", map[string]any{
		"session_id": session.ID,
		"items":      len(snapshot.Lines),
		"subtotal":   snapshot.Subtotal,
	})

	return w.view(ctx, session, nil), nil
}

// GetSession returns the current wizard state.
func (w *checkoutWizard) GetSession(ctx context.Context, sessionID, userID string) (SessionView, error) {
	session, err := w.loadOwned(ctx, sessionID, userID)
	if err != nil {
		return SessionView{}, err
	}
	return w.view(ctx, session, nil), nil
}

// UpdateForm applies a partial form update. No validation runs here;
// step gates are enforced on Advance and Submit only.
func (w *checkoutWizard) UpdateForm(ctx context.Context, sessionID, userID string, patch FormPatch) (SessionView, error) {
	session, err := w.loadOwned(ctx, sessionID, userID)
	if err != nil {
		return SessionView{}, err
	}

	applyPatch(&session.Form, patch)
	session.Form.SyncBilling()
	session.UpdatedAt = w.now()

	if err := w.sessions.Save(ctx, session); err != nil {
		return SessionView{}, err
	}
	return w.view(ctx, session, nil), nil
}

// Advance moves the wizard forward one step when the current step's
// gate passes; otherwise the step is unchanged and the view carries the
// field error mapping.
func (w *checkoutWizard) Advance(ctx context.Context, sessionID, userID string) (SessionView, error) {
	session, err := w.loadOwned(ctx, sessionID, userID)
	if err != nil {
		return SessionView{}, err
	}

	if errs := w.validator.Validate(session.Step, session.Form); len(errs) > 0 {
		return w.view(ctx, session, errs), nil
	}

	switch session.Step {
	case domain.StepShipping:
		session.Step = domain.StepReview
	case domain.StepReview:
		session.Step = domain.StepPayment
	case domain.StepPayment:
		// Final step; submission is a separate action.
		return w.view(ctx, session, nil), nil
	}

	session.UpdatedAt = w.now()
	if err := w.sessions.Save(ctx, session); err != nil {
		return SessionView{}, err
	}
	return w.view(ctx, session, nil), nil
}

// Back moves the wizard one step towards shipping. Backward movement
// never re-validates; at the first step it is a no-op.
func (w *checkoutWizard) Back(ctx context.Context, sessionID, userID string) (SessionView, error) {
	session, err := w.loadOwned(ctx, sessionID, userID)
	if err != nil {
		return SessionView{}, err
	}

	switch session.Step {
	case domain.StepPayment:
		session.Step = domain.StepReview
	case domain.StepReview:
		session.Step = domain.StepShipping
	case domain.StepShipping:
		return w.view(ctx, session, nil), nil
	}

	session.UpdatedAt = w.now()
	if err := w.sessions.Save(ctx, session); err != nil {
		return SessionView{}, err
	}
	return w.view(ctx, session, nil), nil
}

// Submit runs the order submission saga for a session at the payment
// step. On success the session and the cart snapshot are discarded; on
// failure the session stays at payment so the user can retry or go
// back. A failed result is reported in the SubmitResult, not as an
// error.
func (w *checkoutWizard) Submit(ctx context.Context, cmd SubmitCommand) (SubmitResult, error) {
	session, err := w.loadOwned(ctx, cmd.SessionID, cmd.UserID)
	if err != nil {
		return SubmitResult{}, err
	}
	if session.Step != domain.StepPayment {
		return SubmitResult{}, ErrWizardNotAtPayment
	}
	// The terms box can be unchecked again after the review gate passed.
	if errs := w.validator.Validate(domain.StepReview, session.Form); len(errs) > 0 {
		return SubmitResult{}, ErrWizardTermsNotAccepted
	}
	if errs := w.validator.Validate(domain.StepPayment, session.Form); len(errs) > 0 {
		return SubmitResult{}, ErrWizardNotAtPayment
	}

	if _, loaded := w.inflight.LoadOrStore(session.ID, struct{}{}); loaded {
		return SubmitResult{}, ErrWizardSubmitInFlight
	}
	defer w.inflight.Delete(session.ID)

	totals := w.pricing.ComputeTotals(ctx, session.Snapshot, session.Form.ShippingMethodID)

	outcome, err := w.submitter.Submit(ctx, SubmitOrderCommand{
		Form:       session.Form,
		Cart:       session.Snapshot,
		Totals:     totals,
		Credential: cmd.Credential,
	})
	if err != nil {
		var subErr *SubmissionError
		if errors.As(err, &subErr) {
			w.logger(ctx, "checkout.submit_failed", map[string]any{
				"session_id": session.ID,
				"kind":       string(subErr.Kind),
			})
			return SubmitResult{
				Message:        subErr.Message,
				Kind:           subErr.Kind,
				RedirectToCart: subErr.Kind == domain.ErrorKindOutOfStock,
			}, nil
		}
		return SubmitResult{}, err
	}

	// The order is durable; local state is now disposable. Failures
	// here are logged and swallowed.
	if err := w.snapshots.Delete(ctx, session.UserID); err != nil {
		w.logger(ctx, "checkout.snapshot_delete_failed", map[string]any{
			"session_id": session.ID,
			"error":      err.Error(),
		})
	}
	if err := w.sessions.Delete(ctx, session.ID); err != nil {
		w.logger(ctx, "checkout.session_delete_failed", map[string]any{
			"session_id": session.ID,
			"error":      err.Error(),
		})
	}

	w.logger(ctx, "checkout.submitted", map[string]any{
		"session_id": session.ID,
		"order_id":   outcome.OrderID,
	})

	return SubmitResult{OrderID: outcome.OrderID}, nil
}

func (w *checkoutWizard) loadOwned(ctx context.Context, sessionID, userID string) (domain.CheckoutSession, error) {
	sessionID = strings.TrimSpace(sessionID)
	userID = strings.TrimSpace(userID)
	if sessionID == "" || userID == "" {
		return domain.CheckoutSession{}, ErrWizardInvalidInput
	}

	session, err := w.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repositories.ErrSessionNotFound) {
			return domain.CheckoutSession{}, ErrWizardSessionNotFound
		}
		return domain.CheckoutSession{}, err
	}
	if session.UserID != userID {
		return domain.CheckoutSession{}, ErrWizardSessionNotFound
	}
	if session.Expired(w.now()) {
		_ = w.sessions.Delete(ctx, sessionID)
		return domain.CheckoutSession{}, ErrWizardSessionNotFound
	}
	return session, nil
}

func (w *checkoutWizard) view(ctx context.Context, session domain.CheckoutSession, errs map[string]string) SessionView {
	return SessionView{
		Session: session,
		Totals:  w.pricing.ComputeTotals(ctx, session.Snapshot, session.Form.ShippingMethodID),
		Errors:  errs,
	}
}

// prefillShipping copies profile fields into the empty shipping form.
// Best-effort only; any failure leaves the form blank.
func (w *checkoutWizard) prefillShipping(ctx context.Context, credential string, form *domain.CheckoutForm) {
	if w.profiles == nil || strings.TrimSpace(credential) == "" {
		return
	}
	profile, err := w.profiles.Me(ctx, credential)
	if err != nil {
		w.logger(ctx, "checkout.prefill_failed", map[string]any{"error": err.Error()})
		return
	}
	form.ShippingAddress.FirstName = profile.FirstName
	form.ShippingAddress.LastName = profile.LastName
	form.ShippingAddress.Phone = profile.Phone
	form.ShippingAddress.Email = profile.Email
	form.ShippingAddress.City = profile.City
	form.ShippingAddress.Street = profile.Address
	form.ShippingAddress.PostalCode = profile.PostalCode
}

func applyPatch(form *domain.CheckoutForm, patch FormPatch) {
	if patch.ShippingAddress != nil {
		applyAddressPatch(&form.ShippingAddress, *patch.ShippingAddress)
	}
	if patch.BillingSameAsShipping != nil {
		form.BillingSameAsShipping = *patch.BillingSameAsShipping
	}
	if patch.BillingAddress != nil {
		applyAddressPatch(&form.BillingAddress, *patch.BillingAddress)
	}
	if patch.ShippingMethodID != nil {
		form.ShippingMethodID = strings.TrimSpace(*patch.ShippingMethodID)
	}
	if patch.PaymentMethodID != nil {
		form.PaymentMethodID = strings.TrimSpace(*patch.PaymentMethodID)
	}
	if patch.AcceptTerms != nil {
		form.AcceptTerms = *patch.AcceptTerms
	}
}

func applyAddressPatch(addr *domain.Address, patch AddressPatch) {
	if patch.FirstName != nil {
		addr.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		addr.LastName = *patch.LastName
	}
	if patch.Phone != nil {
		addr.Phone = *patch.Phone
	}
	if patch.Email != nil {
		addr.Email = *patch.Email
	}
	if patch.City != nil {
		addr.City = *patch.City
	}
	if patch.Street != nil {
		addr.Street = *patch.Street
	}
	if patch.PostalCode != nil {
		addr.PostalCode = *patch.PostalCode
	}
	if patch.Note != nil {
		addr.Note = *patch.Note
	}
}
