// Package report aggregates transactions into the view models used by the
// dashboard, reports and analytics endpoints.
//
// Every function in this package is pure: inputs are never modified and no
// state is kept between calls. Unresolvable references, missing dates and
// zero denominators degrade to documented values instead of errors.
package report

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"carteira/internal/core"
)

// AllYears and AllMonths select every year or every month of a Period.
const (
	AllYears  = 0
	AllMonths = 0
)

var (
	ErrInvalidYear  = errors.New("invalid year selector")
	ErrInvalidMonth = errors.New("invalid month selector")
	// ErrInvalidSelector covers unknown sort, order, status and type values.
	ErrInvalidSelector = errors.New("invalid selector")
)

// Period selects transactions by year and month. The two axes are
// independent: {AllYears, 3} matches March of every year.
type Period struct {
	Year  int
	Month int
}

// ParsePeriod parses "all" or a number for each selector. Empty selectors
// mean "all".
func ParsePeriod(year, month string) (Period, error) {
	var p Period
	year = strings.TrimSpace(year)
	if year != "" && year != "all" {
		y, err := strconv.Atoi(year)
		if err != nil || y < 1 || y > 9999 {
			return Period{}, fmt.Errorf("%w: %q", ErrInvalidYear, year)
		}
		p.Year = y
	}
	month = strings.TrimSpace(month)
	if month != "" && month != "all" {
		m, err := strconv.Atoi(month)
		if err != nil || m < 1 || m > 12 {
			return Period{}, fmt.Errorf("%w: %q", ErrInvalidMonth, month)
		}
		p.Month = m
	}
	return p, nil
}

// Matches reports whether d falls inside the period. A missing date never
// matches, not even the all/all period.
func (p Period) Matches(d core.Date) bool {
	if d.IsZero() {
		return false
	}
	if p.Year != AllYears && d.Year() != p.Year {
		return false
	}
	if p.Month != AllMonths && d.Month() != p.Month {
		return false
	}
	return true
}

// Key renders the period as "all", "all-3", "2024-all" or "2024-03".
func (p Period) Key() string {
	switch {
	case p.Year == AllYears && p.Month == AllMonths:
		return "all"
	case p.Year == AllYears:
		return fmt.Sprintf("all-%d", p.Month)
	case p.Month == AllMonths:
		return fmt.Sprintf("%d-all", p.Year)
	}
	return fmt.Sprintf("%d-%02d", p.Year, p.Month)
}

func (p Period) String() string {
	return p.Key()
}

// FilterPeriod returns the transactions inside p, preserving order.
func FilterPeriod(txs []core.Transaction, p Period) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if p.Matches(tx.Date) {
			out = append(out, tx)
		}
	}
	return out
}

// Status filters transactions by settlement.
type Status string

const (
	StatusAll     Status = "all"
	StatusSettled Status = "settled"
	StatusPending Status = "pending"
)

// ParseStatus accepts all, settled, pending and the paid/received aliases.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return StatusAll, nil
	case "settled", "paid", "received":
		return StatusSettled, nil
	case "pending", "unpaid":
		return StatusPending, nil
	}
	return "", fmt.Errorf("%w: status %q", ErrInvalidSelector, s)
}

// ParseType accepts a transaction type or "" / "all" for every type.
func ParseType(s string) (core.TransactionType, error) {
	t := core.TransactionType(strings.ToLower(strings.TrimSpace(s)))
	if t == "" || t == "all" {
		return "", nil
	}
	if !t.Valid() {
		return "", fmt.Errorf("%w: type %q", ErrInvalidSelector, s)
	}
	return t, nil
}

// Query narrows a transaction list before listing or analytics. Zero-valued
// fields do not filter.
type Query struct {
	Period        Period
	Type          core.TransactionType
	CategoryID    string
	BankAccountID string
	Status        Status
}

func (q Query) Matches(tx core.Transaction) bool {
	if !q.Period.Matches(tx.Date) {
		return false
	}
	if q.Type != "" && tx.Type != q.Type {
		return false
	}
	if q.CategoryID != "" && tx.CategoryID != q.CategoryID {
		return false
	}
	if q.BankAccountID != "" && tx.BankAccountID != q.BankAccountID {
		return false
	}
	switch q.Status {
	case StatusSettled:
		return tx.Settled()
	case StatusPending:
		return !tx.Settled()
	}
	return true
}

// Filter returns the matching transactions, preserving order.
func (q Query) Filter(txs []core.Transaction) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if q.Matches(tx) {
			out = append(out, tx)
		}
	}
	return out
}
