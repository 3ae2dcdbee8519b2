package services

import (
	"regexp"
	"strings"

	"github.com/arkamarket/checkout/internal/domain"
	"github.com/arkamarket/checkout/internal/platform/textutil"
)

var (
	phonePattern  = regexp.MustCompile(`^09\d{9}$`)
	postalPattern = regexp.MustCompile(`^\d{10}$`)
	emailPattern  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// FormValidator checks per-step form requirements. Validation is pure:
// it never mutates the form, and repeated calls on the same form yield
// the same mapping.
type FormValidator struct {
	policy domain.ShippingPolicy
}

// NewFormValidator constructs a validator bound to the shipping policy
// so method selection can be checked against the offered options.
func NewFormValidator(policy domain.ShippingPolicy) *FormValidator {
	if len(policy.Options) == 0 {
		policy = domain.DefaultShippingPolicy()
	}
	return &FormValidator{policy: policy}
}

// Validate returns a mapping of dotted field paths to messages. An
// empty map means the step gate is open.
func (v *FormValidator) Validate(step domain.CheckoutStep, form domain.CheckoutForm) map[string]string {
	errs := make(map[string]string)

	switch step {
	case domain.StepShipping:
		v.validateAddress("shipping_address", form.ShippingAddress, errs)
		if !form.BillingSameAsShipping {
			v.validateAddress("billing_address", form.BillingAddress, errs)
		}
		if _, ok := v.policy.Option(form.ShippingMethodID); !ok {
			errs["shipping_method_id"] = "unknown shipping method"
		}
	case domain.StepReview:
		if !form.AcceptTerms {
			errs["accept_terms"] = "terms and conditions must be accepted"
		}
	case domain.StepPayment:
		if !domain.ValidPaymentMethod(form.PaymentMethodID) {
			errs["payment_method_id"] = "unknown payment method"
		}
	}

	return errs
}

func (v *FormValidator) validateAddress(prefix string, addr domain.Address, errs map[string]string) {
	if strings.TrimSpace(addr.FirstName) == "" {
		errs[prefix+".first_name"] = "first name is required"
	}
	if strings.TrimSpace(addr.LastName) == "" {
		errs[prefix+".last_name"] = "last name is required"
	}
	if strings.TrimSpace(addr.City) == "" {
		errs[prefix+".city"] = "city is required"
	}
	if strings.TrimSpace(addr.Street) == "" {
		errs[prefix+".address"] = "address is required"
	}

	phone := textutil.FoldNumeric(addr.Phone)
	if phone == "" {
		errs[prefix+".phone"] = "phone number is required"
	} else if !phonePattern.MatchString(phone) {
		errs[prefix+".phone"] = "phone number must be 11 digits starting with 09"
	}

	postal := textutil.FoldNumeric(addr.PostalCode)
	if postal == "" {
		errs[prefix+".postal_code"] = "postal code is required"
	} else if !postalPattern.MatchString(postal) {
		errs[prefix+".postal_code"] = "postal code must be exactly 10 digits"
	}

	if email := strings.TrimSpace(addr.Email); email != "" && !emailPattern.MatchString(email) {
		errs[prefix+".email"] = "email address is invalid"
	}
}
