// Package translate maps records between their persisted shape (legacy
// column names, numeric money, raw JSON bytes) and the domain shape handed to
// presentation code (renamed fields, decimal-string money, derived flags).
//
// Read direction (FromPersisted) is total: any row that decodes into the
// persisted struct translates without error, with absent money defaulting to
// "0" and malformed JSON surfacing as null. Write direction (ToPersisted)
// works on partial patches, drops domain-only fields, and rejects values that
// cannot be stored faithfully instead of writing NaN.
package translate

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidDecimal is returned when a monetary string cannot be parsed.
	ErrInvalidDecimal = errors.New("invalid decimal")
	// ErrInvalidStatus is returned for a status outside the entity's enumeration.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrInvalidJSON is returned when an opaque JSON field is not valid JSON.
	ErrInvalidJSON = errors.New("invalid json")
)

// MoneyString renders a nullable persisted amount as a decimal string.
// nil, NaN and ±Inf all read as "0".
func MoneyString(v *float64) string {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return "0"
	}
	return decimal.NewFromFloat(*v).String()
}

// ParseMoney parses a decimal string for storage. Blank input is 0.
// Brazilian formatting ("1.234,56") is accepted alongside "1234.56".
func ParseMoney(s string) (float64, error) {
	raw := s
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDecimal, raw)
	}
	f := d.InexactFloat64()
	if math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidDecimal, raw)
	}
	return f, nil
}

// IsPositive reports whether the decimal string s is > 0. Unparsable input
// is treated as zero.
func IsPositive(s string) bool {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return d.IsPositive()
}

func setMoney(out map[string]any, col string, v *string) error {
	if v == nil {
		return nil
	}
	f, err := ParseMoney(*v)
	if err != nil {
		return fmt.Errorf("%s: %w", col, err)
	}
	out[col] = f
	return nil
}

func setString(out map[string]any, col string, v *string) {
	if v != nil {
		out[col] = *v
	}
}
