package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/arkamarket/checkout/internal/domain"
	"github.com/arkamarket/checkout/internal/platform/auth"
	"github.com/arkamarket/checkout/internal/services"
)

type stubWizard struct {
	startView  services.SessionView
	startErr   error
	getView    services.SessionView
	getErr     error
	updateView services.SessionView
	updateErr  error
	advView    services.SessionView
	advErr     error
	backView   services.SessionView
	backErr    error
	submitRes  services.SubmitResult
	submitErr  error

	lastPatch  services.FormPatch
	lastSubmit services.SubmitCommand
}

func (s *stubWizard) StartSession(context.Context, services.StartSessionCommand) (services.SessionView, error) {
	return s.startView, s.startErr
}

func (s *stubWizard) GetSession(context.Context, string, string) (services.SessionView, error) {
	return s.getView, s.getErr
}

func (s *stubWizard) UpdateForm(_ context.Context, _, _ string, patch services.FormPatch) (services.SessionView, error) {
	s.lastPatch = patch
	return s.updateView, s.updateErr
}

func (s *stubWizard) Advance(context.Context, string, string) (services.SessionView, error) {
	return s.advView, s.advErr
}

func (s *stubWizard) Back(context.Context, string, string) (services.SessionView, error) {
	return s.backView, s.backErr
}

func (s *stubWizard) Submit(_ context.Context, cmd services.SubmitCommand) (services.SubmitResult, error) {
	s.lastSubmit = cmd
	return s.submitRes, s.submitErr
}

func testView(step domain.CheckoutStep, errs map[string]string) services.SessionView {
	return services.SessionView{
		Session: domain.CheckoutSession{
			ID:        "sess-1",
			UserID:    "42",
			Step:      step,
			ExpiresAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
		Totals: domain.Totals{Subtotal: 600000, Total: 600000},
		Errors: errs,
	}
}

func checkoutRouter(wizard services.CheckoutWizard) chi.Router {
	h := NewCheckoutHandlers(nil, wizard)
	r := chi.NewRouter()
	h.Routes(r)
	return r
}

func authedRequest(method, target, body string) *http.Request {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	identity := &auth.Identity{UID: "42", Credential: "tok"}
	return req.WithContext(auth.WithIdentity(req.Context(), identity))
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return body
}

func TestStartSessionCreated(t *testing.T) {
	wizard := &stubWizard{startView: testView(domain.StepShipping, nil)}
	router := checkoutRouter(wizard)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/session", ""))

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["session_id"] != "sess-1" {
		t.Errorf("session_id = %v", body["session_id"])
	}
	if body["step"] != "shipping" {
		t.Errorf("step = %v", body["step"])
	}
	if body["step_index"] != float64(0) {
		t.Errorf("step_index = %v", body["step_index"])
	}
}

func TestSessionPayloadStepIndex(t *testing.T) {
	cases := []struct {
		step domain.CheckoutStep
		want int
	}{
		{domain.StepShipping, 0},
		{domain.StepReview, 1},
		{domain.StepPayment, 2},
	}
	for _, tc := range cases {
		payload := sessionPayload(testView(tc.step, nil))
		if payload.StepIndex != tc.want {
			t.Errorf("step %q index = %d, want %d", tc.step, payload.StepIndex, tc.want)
		}
	}
}

func TestStartSessionEmptyCartRedirects(t *testing.T) {
	wizard := &stubWizard{startErr: services.ErrWizardCartEmpty}
	router := checkoutRouter(wizard)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/session", ""))

	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["error"] != "cart_empty" {
		t.Errorf("error = %v", body["error"])
	}
	if body["redirect_to_cart"] != true {
		t.Errorf("redirect_to_cart = %v", body["redirect_to_cart"])
	}
}

func TestCheckoutRequiresIdentity(t *testing.T) {
	router := checkoutRouter(&stubWizard{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/session", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	wizard := &stubWizard{getErr: services.ErrWizardSessionNotFound}
	router := checkoutRouter(wizard)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodGet, "/session/sess-9", ""))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestUpdateFormForwardsPatch(t *testing.T) {
	wizard := &stubWizard{updateView: testView(domain.StepShipping, nil)}
	router := checkoutRouter(wizard)

	payload := `{"shipping_address":{"phone":"09123456789"},"accept_terms":true}`
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPatch, "/session/sess-1/form", payload))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if wizard.lastPatch.ShippingAddress == nil || wizard.lastPatch.ShippingAddress.Phone == nil {
		t.Fatal("patch not forwarded")
	}
	if *wizard.lastPatch.ShippingAddress.Phone != "09123456789" {
		t.Errorf("phone = %q", *wizard.lastPatch.ShippingAddress.Phone)
	}
	if wizard.lastPatch.AcceptTerms == nil || !*wizard.lastPatch.AcceptTerms {
		t.Error("accept_terms not forwarded")
	}
}

func TestUpdateFormRejectsInvalidJSON(t *testing.T) {
	router := checkoutRouter(&stubWizard{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPatch, "/session/sess-1/form", "{not json"))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestAdvanceReportsValidationErrors(t *testing.T) {
	wizard := &stubWizard{advView: testView(domain.StepShipping, map[string]string{
		"shipping_address.phone": "phone must be 11 digits starting with 09",
	})}
	router := checkoutRouter(wizard)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/session/sess-1/advance", ""))

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rr.Code)
	}
	body := decodeBody(t, rr)
	errs, ok := body["errors"].(map[string]any)
	if !ok {
		t.Fatalf("errors missing: %v", body)
	}
	if _, ok := errs["shipping_address.phone"]; !ok {
		t.Errorf("expected phone error, got %v", errs)
	}
	if body["step"] != "shipping" {
		t.Errorf("step = %v", body["step"])
	}
}

func TestSubmitCreated(t *testing.T) {
	wizard := &stubWizard{submitRes: services.SubmitResult{OrderID: "981"}}
	router := checkoutRouter(wizard)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/session/sess-1/submit", ""))

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["order_id"] != "981" {
		t.Errorf("order_id = %v", body["order_id"])
	}
	if wizard.lastSubmit.SessionID != "sess-1" || wizard.lastSubmit.UserID != "42" {
		t.Errorf("submit command = %+v", wizard.lastSubmit)
	}
	if wizard.lastSubmit.Credential != "tok" {
		t.Errorf("credential = %q", wizard.lastSubmit.Credential)
	}
}

func TestSubmitOutOfStock(t *testing.T) {
	wizard := &stubWizard{submitRes: services.SubmitResult{
		Message:        "insufficient stock for product p1",
		Kind:           domain.ErrorKindOutOfStock,
		RedirectToCart: true,
	}}
	router := checkoutRouter(wizard)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/session/sess-1/submit", ""))

	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["error"] != "out_of_stock" {
		t.Errorf("error = %v", body["error"])
	}
	if body["message"] != "insufficient stock for product p1" {
		t.Errorf("message = %v", body["message"])
	}
	if body["redirect_to_cart"] != true {
		t.Errorf("redirect_to_cart = %v", body["redirect_to_cart"])
	}
}

func TestSubmitRejectedIsBadGateway(t *testing.T) {
	wizard := &stubWizard{submitRes: services.SubmitResult{
		Message: "unknown server error",
		Kind:    domain.ErrorKindGeneric,
	}}
	router := checkoutRouter(wizard)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/session/sess-1/submit", ""))

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rr.Code)
	}
}

func TestSubmitInFlightConflict(t *testing.T) {
	wizard := &stubWizard{submitErr: services.ErrWizardSubmitInFlight}
	router := checkoutRouter(wizard)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/session/sess-1/submit", ""))

	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["error"] != "submit_in_flight" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestSubmitNotAtPaymentConflict(t *testing.T) {
	wizard := &stubWizard{submitErr: services.ErrWizardNotAtPayment}
	router := checkoutRouter(wizard)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/session/sess-1/submit", ""))

	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rr.Code)
	}
}

func TestSubmitTermsNotAcceptedConflict(t *testing.T) {
	wizard := &stubWizard{submitErr: services.ErrWizardTermsNotAccepted}
	router := checkoutRouter(wizard)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/session/sess-1/submit", ""))

	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["error"] != "terms_not_accepted" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestSubmitMiddlewareApplied(t *testing.T) {
	var sawSubmit, sawAdvance bool
	guard := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasSuffix(r.URL.Path, "/submit") {
				sawSubmit = true
			} else {
				sawAdvance = true
			}
			next.ServeHTTP(w, r)
		})
	}

	h := NewCheckoutHandlers(nil, &stubWizard{
		submitRes: services.SubmitResult{OrderID: "1"},
		advView:   testView(domain.StepReview, nil),
	}, WithSubmitMiddlewares(guard))
	router := chi.NewRouter()
	h.Routes(router)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/session/sess-1/submit", ""))
	if !sawSubmit {
		t.Error("middleware not applied to submit")
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/session/sess-1/advance", ""))
	if sawAdvance {
		t.Error("middleware leaked onto advance")
	}
}
