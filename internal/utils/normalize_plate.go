package utils

import (
	"strings"
	"unicode"
)

// NormalizePlate reduces a plate to upper-case ASCII letters and digits,
// e.g. "b 1970-ssw" -> "B1970SSW". Used as the search key in storage.
func NormalizePlate(raw string) string {
	return strings.Map(func(r rune) rune {
		if r >= unicode.MaxASCII {
			return -1
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToUpper(r)
		}
		return -1
	}, raw)
}
