package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/arkamarket/checkout/internal/domain"
	"github.com/arkamarket/checkout/internal/platform/auth"
	"github.com/arkamarket/checkout/internal/platform/httpx"
	"github.com/arkamarket/checkout/internal/repositories"
	"github.com/arkamarket/checkout/internal/services"
)

const maxCheckoutRequestBody = 8 * 1024

var (
	errEmptyBody    = errors.New("request body is required")
	errBodyTooLarge = errors.New("request body exceeds the allowed size")
)

// CheckoutHandlers exposes the checkout wizard endpoints for
// authenticated users.
type CheckoutHandlers struct {
	authn        *auth.Authenticator
	wizard       services.CheckoutWizard
	submitGuards []func(http.Handler) http.Handler
}

// CheckoutOption customises the checkout handlers.
type CheckoutOption func(*CheckoutHandlers)

// WithSubmitMiddlewares wraps the submit endpoint with additional
// middleware, typically the idempotency guard.
func WithSubmitMiddlewares(mw ...func(http.Handler) http.Handler) CheckoutOption {
	return func(h *CheckoutHandlers) {
		h.submitGuards = append(h.submitGuards, mw...)
	}
}

// NewCheckoutHandlers constructs checkout handlers guarded by bearer
// token authentication.
func NewCheckoutHandlers(authn *auth.Authenticator, wizard services.CheckoutWizard, opts ...CheckoutOption) *CheckoutHandlers {
	h := &CheckoutHandlers{
		authn:  authn,
		wizard: wizard,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers checkout endpoints under the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	group := r
	if h.authn != nil {
		group = group.With(h.authn.RequireAuth())
	}
	group.Post("/session", h.startSession)
	group.Route("/session/{sessionID}", func(sr chi.Router) {
		sr.Get("/", h.getSession)
		sr.Patch("/form", h.updateForm)
		sr.Post("/advance", h.advance)
		sr.Post("/back", h.back)

		submit := sr
		for _, mw := range h.submitGuards {
			if mw != nil {
				submit = submit.With(mw)
			}
		}
		submit.Post("/submit", h.submit)
	})
}

type sessionResponse struct {
	SessionID string              `json:"session_id"`
	Step      domain.CheckoutStep `json:"step"`
	StepIndex int                 `json:"step_index"`
	Form      domain.CheckoutForm `json:"form"`
	Cart      domain.CartSnapshot `json:"cart"`
	Totals    domain.Totals       `json:"totals"`
	Errors    map[string]string   `json:"errors,omitempty"`
	ExpiresAt string              `json:"expires_at"`
}

type submitResponse struct {
	Status  string `json:"status"`
	OrderID string `json:"order_id"`
}

func sessionPayload(view services.SessionView) sessionResponse {
	return sessionResponse{
		SessionID: view.Session.ID,
		Step:      view.Session.Step,
		StepIndex: domain.StepOrder(view.Session.Step),
		Form:      view.Session.Form,
		Cart:      view.Session.Snapshot,
		Totals:    view.Totals,
		Errors:    view.Errors,
		ExpiresAt: view.Session.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

func (h *CheckoutHandlers) startSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	view, err := h.wizard.StartSession(ctx, services.StartSessionCommand{
		UserID:     identity.UID,
		Credential: identity.Credential,
	})
	if err != nil {
		h.writeWizardError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, sessionPayload(view))
}

func (h *CheckoutHandlers) getSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	view, err := h.wizard.GetSession(ctx, chi.URLParam(r, "sessionID"), identity.UID)
	if err != nil {
		h.writeWizardError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, sessionPayload(view))
}

func (h *CheckoutHandlers) updateForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxCheckoutRequestBody)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return
	}

	var patch services.FormPatch
	if err := json.Unmarshal(body, &patch); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	view, err := h.wizard.UpdateForm(ctx, chi.URLParam(r, "sessionID"), identity.UID, patch)
	if err != nil {
		h.writeWizardError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, sessionPayload(view))
}

func (h *CheckoutHandlers) advance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	view, err := h.wizard.Advance(ctx, chi.URLParam(r, "sessionID"), identity.UID)
	if err != nil {
		h.writeWizardError(ctx, w, err)
		return
	}

	// A blocked gate keeps the step and reports the field mapping.
	status := http.StatusOK
	if len(view.Errors) > 0 {
		status = http.StatusUnprocessableEntity
	}
	httpx.WriteJSON(w, status, sessionPayload(view))
}

func (h *CheckoutHandlers) back(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	view, err := h.wizard.Back(ctx, chi.URLParam(r, "sessionID"), identity.UID)
	if err != nil {
		h.writeWizardError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, sessionPayload(view))
}

func (h *CheckoutHandlers) submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	result, err := h.wizard.Submit(ctx, services.SubmitCommand{
		SessionID:  chi.URLParam(r, "sessionID"),
		UserID:     identity.UID,
		Credential: identity.Credential,
	})
	if err != nil {
		h.writeWizardError(ctx, w, err)
		return
	}

	if result.OrderID == "" {
		writeSubmitFailure(ctx, w, result)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, submitResponse{
		Status:  "created",
		OrderID: result.OrderID,
	})
}

// writeSubmitFailure maps a rejected order submission onto the error
// envelope. The order service's message is surfaced verbatim so the
// storefront can show it to the user.
func writeSubmitFailure(ctx context.Context, w http.ResponseWriter, result services.SubmitResult) {
	var (
		code   string
		status int
	)
	switch result.Kind {
	case domain.ErrorKindOutOfStock:
		code = "out_of_stock"
		status = http.StatusConflict
	case domain.ErrorKindAuth:
		code = "upstream_auth_failed"
		status = http.StatusUnauthorized
	default:
		code = "order_rejected"
		status = http.StatusBadGateway
	}

	httpx.WriteError(ctx, w, httpx.NewError(code, result.Message, status).WithDetails(map[string]any{
		"kind":             string(result.Kind),
		"redirect_to_cart": result.RedirectToCart,
	}))
}

func (h *CheckoutHandlers) writeWizardError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrWizardInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrWizardCartEmpty):
		httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "cart is empty", http.StatusConflict).WithDetails(map[string]any{
			"redirect_to_cart": true,
		}))
	case errors.Is(err, services.ErrWizardSessionNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("session_not_found", "checkout session not found", http.StatusNotFound))
	case errors.Is(err, services.ErrWizardNotAtPayment):
		httpx.WriteError(ctx, w, httpx.NewError("not_at_payment", "session has not reached the payment step", http.StatusConflict))
	case errors.Is(err, services.ErrWizardTermsNotAccepted):
		httpx.WriteError(ctx, w, httpx.NewError("terms_not_accepted", "terms and conditions must be accepted before submitting", http.StatusConflict))
	case errors.Is(err, services.ErrWizardSubmitInFlight):
		httpx.WriteError(ctx, w, httpx.NewError("submit_in_flight", "a submission is already in progress", http.StatusConflict))
	case errors.Is(err, services.ErrWizardUnavailable), errors.Is(err, repositories.ErrUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_error", "failed to process checkout request", http.StatusInternalServerError))
	}
}

func requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = maxCheckoutRequestBody
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}
