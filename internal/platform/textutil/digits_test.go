package textutil

import "testing"

func TestFoldDigits(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "persian digits", in: "۰۹۱۲۳۴۵۶۷۸۹", want: "09123456789"},
		{name: "arabic indic digits", in: "٠٩١٢٣٤٥٦٧٨٩", want: "09123456789"},
		{name: "mixed", in: "09۱2345678۹", want: "09123456789"},
		{name: "ascii untouched", in: "1234567890", want: "1234567890"},
		{name: "non digits untouched", in: "تهران 12", want: "تهران 12"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FoldDigits(tc.in); got != tc.want {
				t.Fatalf("FoldDigits(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestFoldNumeric(t *testing.T) {
	if got := FoldNumeric(" ۰۹12 345 6789 "); got != "09123456789" {
		t.Fatalf("FoldNumeric mismatch: got %q", got)
	}
}
