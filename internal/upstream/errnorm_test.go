package upstream

import (
	"testing"

	"github.com/arkamarket/checkout/internal/domain"
)

func TestNormalizeKnownShapes(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{name: "string passthrough", raw: `"x"`, want: "x"},
		{name: "array join", raw: `["a","b"]`, want: "a | b"},
		{name: "array of objects", raw: `[{"message":"a"},{"detail":"b"}]`, want: "a | b"},
		{name: "detail", raw: `{"detail":"x"}`, want: "x"},
		{name: "message", raw: `{"message":"x"}`, want: "x"},
		{name: "detail wins over message", raw: `{"detail":"d","message":"m"}`, want: "d"},
		{name: "non field errors string", raw: `{"non_field_errors":"boom"}`, want: "boom"},
		{name: "non field errors array", raw: `{"non_field_errors":["a","b"]}`, want: "a | b"},
		{name: "field aggregation", raw: `{"field":["e1","e2"]}`, want: "field: e1, e2"},
		{name: "multi field sorted", raw: `{"b":["x"],"a":["y"]}`, want: "a: y | b: x"},
		{name: "field with string value", raw: `{"phone":"invalid"}`, want: "phone: invalid"},
		{name: "bare text body", raw: `server exploded`, want: "server exploded"},
		{name: "empty body", raw: ``, want: GenericErrorMessage},
		{name: "empty object", raw: `{}`, want: GenericErrorMessage},
		{name: "json dump fallback", raw: `{"weird": 42}`, want: `{"weird":42}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, _ := Normalize([]byte(tc.raw))
			if got != tc.want {
				t.Fatalf("Normalize(%s) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}

func TestNormalizeIsIdempotentOnMessage(t *testing.T) {
	raw := []byte(`{"detail":"insufficient stock for product 3"}`)
	first, _ := Normalize(raw)
	second, _ := Normalize(raw)
	if first != second {
		t.Fatalf("normalization not stable: %q vs %q", first, second)
	}
}

func TestKindFromMessage(t *testing.T) {
	cases := []struct {
		name    string
		message string
		want    domain.ErrorKind
	}{
		{name: "english stock", message: "insufficient stock for product", want: domain.ErrorKindOutOfStock},
		{name: "english unavailable", message: "product unavailable", want: domain.ErrorKindOutOfStock},
		{name: "persian stock", message: "موجودی کافی نیست", want: domain.ErrorKindOutOfStock},
		{name: "persian not available", message: "این محصول موجود نیست", want: domain.ErrorKindOutOfStock},
		{name: "generic", message: "validation failed", want: domain.ErrorKindGeneric},
		{name: "case insensitive", message: "Out Of Stock", want: domain.ErrorKindOutOfStock},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindFromMessage(tc.message); got != tc.want {
				t.Fatalf("KindFromMessage(%q) = %q, want %q", tc.message, got, tc.want)
			}
		})
	}
}
