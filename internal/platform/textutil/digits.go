package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// digitFolder maps Persian (Extended Arabic-Indic) and Arabic-Indic
// numerals onto their ASCII counterparts. Storefront users routinely
// type phone and postal numbers with a Persian keyboard layout.
var digitFolder = runes.Map(func(r rune) rune {
	switch {
	case r >= '۰' && r <= '۹':
		return '0' + (r - '۰')
	case r >= '٠' && r <= '٩':
		return '0' + (r - '٠')
	default:
		return r
	}
})

// FoldDigits rewrites non-ASCII decimal digits to ASCII, leaving every
// other rune untouched.
func FoldDigits(value string) string {
	folded, _, err := transform.String(digitFolder, value)
	if err != nil {
		return value
	}
	return folded
}

// StripSpaces removes all Unicode whitespace from value.
func StripSpaces(value string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, value)
}

// FoldNumeric folds digits and strips whitespace in one pass, the shape
// expected by the phone and postal code validators.
func FoldNumeric(value string) string {
	return StripSpaces(FoldDigits(value))
}
