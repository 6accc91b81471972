// Package statement parses the documented bank statement export layout
// into normalized transaction rows.
//
// The layout uses day/month/year dates, a period as the thousands
// separator, a comma as the decimal separator, an optional currency
// prefix, and parentheses around negative amounts.
package statement

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// Parse errors. All are line-scoped when surfaced by the Parser.
var (
	ErrMalformedDate       = errors.New("malformed date")
	ErrMalformedAmount     = errors.New("malformed amount")
	ErrMalformedDescriptor = errors.New("malformed descriptor")
	ErrBlankColumn         = errors.New("column is blank")
)

var dateFormat = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)

// ParseDate parses a day/month/year date with 1-2 digit day and month and
// a 4-digit year. The result is a calendar date only; no timezone
// adjustment is applied.
func ParseDate(text string) (time.Time, error) {
	m := dateFormat.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return time.Time{}, fmt.Errorf("%w: %q does not match d/m/yyyy", ErrMalformedDate, text)
	}

	var day, month, year int
	_, _ = fmt.Sscanf(m[1], "%d", &day)
	_, _ = fmt.Sscanf(m[2], "%d", &month)
	_, _ = fmt.Sscanf(m[3], "%d", &year)

	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow (31/04 becomes 01/05), so a changed
	// component means the input was not a real calendar date.
	if date.Day() != day || date.Month() != time.Month(month) || date.Year() != year {
		return time.Time{}, fmt.Errorf("%w: %q is not a real calendar date", ErrMalformedDate, text)
	}

	return date, nil
}

// ParseAmount parses a locale-formatted signed amount. It accepts an
// optional currency-symbol prefix, periods as thousands separators, a
// comma as the decimal separator, and parenthesis-wrapping to denote a
// negative value.
func ParseAmount(text string) (decimal.Decimal, error) {
	if containsControl(text) {
		return decimal.Zero, fmt.Errorf("%w: control character in %q", ErrMalformedAmount, text)
	}

	s := strings.TrimSpace(text)

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	for _, prefix := range []string{"R$", "$"} {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimSpace(strings.TrimPrefix(s, prefix))
			break
		}
	}

	if strings.Count(s, ",") > 1 {
		return decimal.Zero, fmt.Errorf("%w: multiple decimal markers in %q", ErrMalformedAmount, text)
	}

	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")

	value, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not numeric", ErrMalformedAmount, text)
	}

	if negative {
		value = value.Neg()
	}
	return value, nil
}

// NormalizeDescriptor trims, collapses internal whitespace runs to a
// single space, and upper-cases a descriptor. Accents are kept; diacritic
// folding happens at comparison time so the stored form stays readable.
func NormalizeDescriptor(text string) (string, error) {
	if containsControl(text) {
		return "", fmt.Errorf("%w: control character in descriptor", ErrMalformedDescriptor)
	}
	return strings.ToUpper(strings.Join(strings.Fields(text), " ")), nil
}

// containsControl reports embedded control characters. Tabs count as
// ordinary whitespace; the normalizer collapses them instead.
func containsControl(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) && r != '\t' {
			return true
		}
	}
	return false
}
