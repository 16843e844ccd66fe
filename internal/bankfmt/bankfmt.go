// Package bankfmt implements the bank's bespoke field formats: the
// concatenated request-date form, the dotted payment-date form, the
// integer-cents currency convention and CPF/CNPJ digit handling.
package bankfmt

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
)

// CPFLen and CNPJLen are the canonical digit counts of the Brazilian
// individual and corporate tax identifiers.
const (
	CPFLen  = 11
	CNPJLen = 14
)

// RequestDate renders a date the way the bank's request parameters want
// it: day without leading zero, month always two digits, year four
// digits, no separators. 2024-03-05 → "5032024"; 2024-03-15 → "15032024".
func RequestDate(t time.Time) string {
	return fmt.Sprintf("%d%02d%04d", t.Day(), int(t.Month()), t.Year())
}

// DottedDate renders DD.MM.YYYY, the form the bank uses for payment
// dates in response payloads.
func DottedDate(t time.Time) string {
	return t.Format("02.01.2006")
}

// ParseDottedDate parses DD.MM.YYYY.
func ParseDottedDate(s string) (time.Time, bool) {
	t, err := time.Parse("02.01.2006", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// DayBefore reports whether a falls on an earlier calendar day than b,
// each read in its own location. Bare dates parsed at UTC midnight
// compare correctly against local wall-clock instants near midnight,
// where instant arithmetic would shift the day.
func DayBefore(a, b time.Time) bool {
	return a.Format("2006-01-02") < b.Format("2006-01-02")
}

// ToCents scales a currency value to the bank's integer-cents
// convention, rounding half away from zero.
func ToCents(v float64) int64 {
	return int64(math.Round(v * 100))
}

// FromCents converts integer cents back to a currency value.
func FromCents(cents int64) float64 {
	return float64(cents) / 100
}

// RoundCents rounds a currency value to two decimal places. Order status
// comparisons always go through this first.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

var nonDigit = regexp.MustCompile(`[^0-9]`)

// Digits strips everything but 0-9.
func Digits(s string) string {
	return nonDigit.ReplaceAllString(s, "")
}

// PadTaxID left-pads a digit string with zeros to the requested length.
// Strings already at or above the length are returned unchanged.
func PadTaxID(digits string, length int) string {
	if len(digits) >= length {
		return digits
	}
	return strings.Repeat("0", length-len(digits)) + digits
}

var taxIDRun = regexp.MustCompile(`[0-9]{11,14}`)

// ExtractTaxIDRun pulls the first 11-to-14 digit run out of a free-text
// narrative field.
func ExtractTaxIDRun(text string) (string, bool) {
	run := taxIDRun.FindString(text)
	return run, run != ""
}
