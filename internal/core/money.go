// Package core provides money parsing and handling utilities.
//
// Amounts are held as integer cents. Text input goes through
// github.com/shopspring/decimal so that rounding never touches floats.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseDecimalToCents converts a positive decimal string to cents.
//
// Both dot (12.34) and comma (12,34) separators are accepted, as is the
// Brazilian grouped form (1.234,56). The value is rounded half-up to cents.
// Zero, negative and malformed inputs return ErrInvalidAmount.
//
// Examples:
//
//	ParseDecimalToCents("12.34")    -> 1234, nil
//	ParseDecimalToCents("1.234,56") -> 123456, nil
//	ParseDecimalToCents("12.345")   -> 1235, nil
func ParseDecimalToCents(s string) (int64, error) {
	cents, err := parseCents(s)
	if err != nil {
		return 0, err
	}
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// ParseSignedDecimalToCents is ParseDecimalToCents for investment amounts,
// where a leading minus marks a withdrawal. Zero is still rejected.
func ParseSignedDecimalToCents(s string) (int64, error) {
	cents, err := parseCents(s)
	if err != nil {
		return 0, err
	}
	if cents == 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

func parseCents(s string) (int64, error) {
	s = normalizeSeparators(strings.TrimSpace(s))
	if s == "" {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	cents := d.Shift(2).Round(0)
	bi := cents.BigInt()
	if !bi.IsInt64() {
		return 0, ErrInvalidAmount
	}
	return bi.Int64(), nil
}

func normalizeSeparators(s string) string {
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	return s
}

// Decimal returns the amount in currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Float returns the value as a float64 for display purposes.
// Use cents for calculations.
func (m Money) Float() float64 {
	return float64(m.Cents) / 100.0
}

func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

func (m Money) Abs() Money {
	if m.Cents < 0 {
		return Money{Cents: -m.Cents}
	}
	return m
}

func (m Money) IsZero() bool {
	return m.Cents == 0
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// MarshalJSON encodes the amount as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*m = Money{}
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("parse amount %q: %w", s, ErrInvalidAmount)
	}
	*m = Money{Cents: d.Shift(2).Round(0).IntPart()}
	return nil
}
