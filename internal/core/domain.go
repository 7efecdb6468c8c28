package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Income     TransactionType = "income"
	Expense    TransactionType = "expense"
	Investment TransactionType = "investment"
)

const (
	Checking   AccountType = "checking"
	Savings    AccountType = "savings"
	CreditCard AccountType = "credit_card"
	Brokerage  AccountType = "investment"
)

const dateLayout = "2006-01-02"

type (
	TransactionType string

	AccountType string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Transaction is a single financial event. Paid is only meaningful for
	// expenses and Received only for incomes; a false flag means not settled.
	Transaction struct {
		ID            string          `json:"id"`
		Type          TransactionType `json:"type"`
		Amount        Money           `json:"amount"`
		CategoryID    string          `json:"category,omitempty"`
		SubCategoryID string          `json:"subCategory,omitempty"`
		Date          Date            `json:"date"`
		Paid          bool            `json:"paid,omitempty"`
		Received      bool            `json:"received,omitempty"`
		BankAccountID string          `json:"bankAccount,omitempty"`
		Observation   string          `json:"observation,omitempty"`
		AttachmentURL string          `json:"attachmentUrl,omitempty"`
	}

	Category struct {
		ID    string          `json:"id"`
		Name  string          `json:"name"`
		Type  TransactionType `json:"type"`
		Color string          `json:"color"`
	}

	// SubCategory belongs to exactly one Category and shares its type.
	SubCategory struct {
		ID       string          `json:"id"`
		Name     string          `json:"name"`
		ParentID string          `json:"parentId"`
		Type     TransactionType `json:"type"`
	}

	BankAccount struct {
		ID            string      `json:"id"`
		BankName      string      `json:"bankName"`
		AccountNumber string      `json:"accountNumber"`
		Type          AccountType `json:"type"`
	}
)

var (
	ErrInvalidDay          = errors.New("invalid day")
	ErrInvalidMonth        = errors.New("invalid month")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidType         = errors.New("invalid transaction type")
	ErrMissingCategory     = errors.New("missing category")
	ErrUnknownCategory     = errors.New("unknown category")
	ErrCategoryMismatch    = errors.New("category type does not match transaction type")
	ErrUnknownSubCategory  = errors.New("unknown subcategory")
	ErrSubCategoryMismatch = errors.New("subcategory does not belong to category")
	ErrUnknownBankAccount  = errors.New("unknown bank account")
	ErrSettlementFlag      = errors.New("settlement flag not valid for transaction type")
	ErrEmptyName           = errors.New("empty name")
	ErrObservationTooLong  = errors.New("observation too long (max 500 characters)")
	ErrInvalidAccountType  = errors.New("invalid bank account type")
	ErrInvalidCategoryType = errors.New("category type must be income or expense")
	ErrCategoryTypeChange  = errors.New("category type cannot change")
)

// ParseDate accepts "2006-01-02" or an RFC 3339 timestamp and keeps only the
// calendar date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return Date{Time: t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return NewDate(t.Year(), int(t.Month()), t.Day()), nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// MonthKey returns the YYYY-MM key, or "" for a missing date.
func (d Date) MonthKey() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01")
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

// UnmarshalJSON leaves the date zero when the input is not a date. Missing or
// malformed dates are kept so that period filters can exclude them.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		*d = Date{}
		return nil
	}
	*d = parsed
	return nil
}

func (t TransactionType) Valid() bool {
	switch t {
	case Income, Expense, Investment:
		return true
	}
	return false
}

func (a AccountType) Valid() bool {
	switch a {
	case Checking, Savings, CreditCard, Brokerage:
		return true
	}
	return false
}

// Settled reports whether the transaction has been received (income) or paid
// (expense). Investments are always settled.
func (t Transaction) Settled() bool {
	switch t.Type {
	case Income:
		return t.Received
	case Expense:
		return t.Paid
	}
	return true
}

// Validate checks the transaction on its own. Investment amounts are signed:
// positive is an entry into the bank account, negative a withdrawal.
func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	switch t.Type {
	case Income, Expense:
		if err := t.Amount.Validate(); err != nil {
			return err
		}
		if strings.TrimSpace(t.CategoryID) == "" {
			return ErrMissingCategory
		}
	case Investment:
		if t.Amount.Cents == 0 {
			return ErrInvalidAmount
		}
	}
	if t.Paid && t.Type != Expense {
		return ErrSettlementFlag
	}
	if t.Received && t.Type != Income {
		return ErrSettlementFlag
	}
	if len(t.Observation) > 500 {
		return ErrObservationTooLong
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if c.Type != Income && c.Type != Expense {
		return ErrInvalidCategoryType
	}
	return nil
}

func (s SubCategory) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(s.ParentID) == "" {
		return ErrMissingCategory
	}
	return nil
}

func (b BankAccount) Validate() error {
	if strings.TrimSpace(b.BankName) == "" {
		return ErrEmptyName
	}
	if !b.Type.Valid() {
		return ErrInvalidAccountType
	}
	return nil
}
