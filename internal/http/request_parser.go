// Package http provides HTTP server and handler implementations.
//
// This file turns query strings and request bodies into report queries and
// transactions.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"carteira/internal/core"
	"carteira/internal/report"
)

const (
	maxBodyBytes = 64 << 10
	maxLimit     = 100
)

// errBadRequest wraps malformed input that never reached validation.
var errBadRequest = errors.New("bad request")

// parsePeriod reads year and month from the query. Missing selectors mean
// "all".
func parsePeriod(q url.Values) (report.Period, error) {
	return report.ParsePeriod(q.Get("year"), q.Get("month"))
}

// parseQuery reads the listing and analytics filters.
func parseQuery(q url.Values) (report.Query, error) {
	p, err := parsePeriod(q)
	if err != nil {
		return report.Query{}, err
	}
	typ, err := report.ParseType(q.Get("type"))
	if err != nil {
		return report.Query{}, err
	}
	status, err := report.ParseStatus(q.Get("status"))
	if err != nil {
		return report.Query{}, err
	}
	return report.Query{
		Period:        p,
		Type:          typ,
		CategoryID:    sanitizeInput(q.Get("category")),
		BankAccountID: sanitizeInput(q.Get("bank")),
		Status:        status,
	}, nil
}

// parseYear reads a single year selector; "" and "all" give AllYears.
func parseYear(q url.Values) (int, error) {
	p, err := report.ParsePeriod(q.Get("year"), "")
	return p.Year, err
}

// parseLimit reads a positive count, falling back to def and capping at
// maxLimit.
func parseLimit(q url.Values, def int) (int, error) {
	v := strings.TrimSpace(q.Get("limit"))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: limit %q", errBadRequest, v)
	}
	return min(n, maxLimit), nil
}

// RequestBodyParser reads a body once and exposes it as flat key/value
// pairs, whether it was sent as JSON or as a form.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]any
	formData url.Values
	err      error
}

// NewRequestBodyParser reads and parses the body of r.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if p.err == nil && len(p.body) > maxBodyBytes {
		p.err = fmt.Errorf("%w: body larger than %d bytes", errBadRequest, maxBodyBytes)
	}
	if p.err == nil {
		p.err = p.parse(r.Header.Get("Content-Type"))
	}
	return p
}

func (p *RequestBodyParser) parse(contentType string) error {
	trimmed := strings.TrimSpace(string(p.body))
	if trimmed == "" {
		p.formData = url.Values{}
		return nil
	}
	if strings.HasPrefix(contentType, "application/json") || trimmed[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			return fmt.Errorf("%w: %v", errBadRequest, err)
		}
		return nil
	}
	values, err := url.ParseQuery(trimmed)
	if err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	p.formData = values
	return nil
}

// Err returns the read or parse error, if any.
func (p *RequestBodyParser) Err() error {
	return p.err
}

// Get returns a sanitized value from the parsed data.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// Bool reads a checkbox-style flag: true, 1, on and yes are true.
func (p *RequestBodyParser) Bool(key string) bool {
	switch strings.ToLower(p.Get(key)) {
	case "true", "1", "on", "yes", "sim":
		return true
	}
	return false
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// Transaction builds a transaction from the parsed body. Amounts go through
// the decimal parser; investments accept a sign. Field errors are wrapped in
// errBadRequest, domain rules are left to the service.
func (p *RequestBodyParser) Transaction() (core.Transaction, error) {
	if p.err != nil {
		return core.Transaction{}, p.err
	}

	typ := core.TransactionType(strings.ToLower(p.Get("type")))
	if !typ.Valid() {
		return core.Transaction{}, fmt.Errorf("%w: %w", errBadRequest, core.ErrInvalidType)
	}

	parseAmount := core.ParseDecimalToCents
	if typ == core.Investment {
		parseAmount = core.ParseSignedDecimalToCents
	}
	cents, err := parseAmount(p.Get("amount"))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("%w: %w", errBadRequest, err)
	}

	date, err := core.ParseDate(p.Get("date"))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("%w: %w", errBadRequest, err)
	}

	return core.Transaction{
		Type:          typ,
		Amount:        core.Money{Cents: cents},
		CategoryID:    p.Get("category"),
		SubCategoryID: p.Get("subCategory"),
		Date:          date,
		Paid:          p.Bool("paid"),
		Received:      p.Bool("received"),
		BankAccountID: p.Get("bankAccount"),
		Observation:   p.Get("observation"),
		AttachmentURL: p.Get("attachmentUrl"),
	}, nil
}

// Category builds the category with id from the body. Rules are left to the
// service.
func (p *RequestBodyParser) Category(id string) (core.Category, error) {
	if p.err != nil {
		return core.Category{}, p.err
	}
	return core.Category{
		ID:    id,
		Name:  p.Get("name"),
		Type:  core.TransactionType(strings.ToLower(p.Get("type"))),
		Color: p.Get("color"),
	}, nil
}

// SubCategory builds the subcategory with id. Its type comes from the
// parent, so the body carries none.
func (p *RequestBodyParser) SubCategory(id string) (core.SubCategory, error) {
	if p.err != nil {
		return core.SubCategory{}, p.err
	}
	return core.SubCategory{
		ID:       id,
		Name:     p.Get("name"),
		ParentID: p.Get("parentId"),
	}, nil
}

func (p *RequestBodyParser) BankAccount(id string) (core.BankAccount, error) {
	if p.err != nil {
		return core.BankAccount{}, p.err
	}
	return core.BankAccount{
		ID:            id,
		BankName:      p.Get("bankName"),
		AccountNumber: p.Get("accountNumber"),
		Type:          core.AccountType(strings.ToLower(p.Get("type"))),
	}, nil
}

// sanitizeInput drops control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s))
}
