package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carteira/internal/cache"
	"carteira/internal/core"
	"carteira/internal/ledger"
	"carteira/internal/ledger/memory"
	"carteira/internal/log"
	"carteira/internal/services"
)

func quietLogger() *log.Logger {
	return log.New(log.Config{Component: "test", Handler: slog.NewTextHandler(io.Discard, nil)})
}

func fixtureDataset() core.Dataset {
	ds := memory.DefaultDataset()
	ds.BankAccounts = append(ds.BankAccounts, core.BankAccount{ID: "nubank", BankName: "Nubank", Type: core.Checking})
	ds.Transactions = []core.Transaction{
		{ID: "t1", Type: core.Income, Amount: core.Money{Cents: 500000}, CategoryID: "salario", Date: core.NewDate(2024, 3, 5), Received: true},
		{ID: "t2", Type: core.Expense, Amount: core.Money{Cents: 150000}, CategoryID: "moradia", SubCategoryID: "aluguel", Date: core.NewDate(2024, 3, 10), Paid: true},
		{ID: "t3", Type: core.Expense, Amount: core.Money{Cents: 30000}, CategoryID: "alimentacao", Date: core.NewDate(2024, 3, 20)},
		{ID: "t4", Type: core.Investment, Amount: core.Money{Cents: 100000}, BankAccountID: "nubank", Date: core.NewDate(2024, 3, 25)},
		{ID: "t5", Type: core.Expense, Amount: core.Money{Cents: 5000}, CategoryID: "transporte", Date: core.NewDate(2023, 12, 1), Paid: true},
	}
	return ds
}

type testServer struct {
	*Server
	store   *memory.Store
	reports *services.ReportService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.New(fixtureDataset())
	reports := services.NewReportService(store, cache.NewLRUCache[any](64, time.Minute))
	txs := services.NewTransactionService(store, nil, reports, quietLogger())
	srv := NewServer(":0", Deps{
		Reports:      reports,
		Transactions: txs,
		Catalog:      services.NewCatalogService(store, nil, reports, quietLogger()),
		Getter:       store,
		Pinger:       store,
		Logger:       quietLogger(),
	})
	t.Cleanup(func() { srv.limiter.Stop() })
	return &testServer{Server: srv, store: store, reports: reports}
}

func (ts *testServer) do(t *testing.T, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	ts.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := ts.do(t, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"), path)
		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"), path)
	}

	ready := decode[map[string]any](t, ts.do(t, http.MethodGet, "/readyz", nil, ""))
	assert.Equal(t, "ready", ready["status"])
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

func TestReady_StoreDown(t *testing.T) {
	ts := newTestServer(t)
	ts.pinger = failingPinger{}

	rec := ts.do(t, http.MethodGet, "/readyz", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestReport(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/report?year=2024&month=3", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decode[map[string]any](t, rec)
	assert.Equal(t, "2024-03", got["month"])
	assert.Equal(t, 5000.0, got["totalIncome"])
	assert.Equal(t, 1800.0, got["totalExpenses"])
	assert.Equal(t, 300.0, got["totalUnpaidExpenses"])
	assert.Equal(t, 3200.0, got["balance"])
	assert.Equal(t, 2200.0, got["finalBalance"])
	assert.Equal(t, 4.0, got["transactionCount"])
}

func TestReport_AllPeriods(t *testing.T) {
	ts := newTestServer(t)

	got := decode[map[string]any](t, ts.do(t, http.MethodGet, "/api/report", nil, ""))
	assert.Equal(t, "all", got["month"])
	assert.Equal(t, 5.0, got["transactionCount"])
}

func TestBadSelectors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		target string
	}{
		{"month out of range", "/api/report?year=2024&month=13"},
		{"year not numeric", "/api/cashflow?year=abc"},
		{"unknown status", "/api/transactions?status=maybe"},
		{"unknown sort", "/api/transactions?sort=color"},
		{"unknown order", "/api/analytics/categories?order=up"},
		{"unknown type", "/api/investments?type=loan"},
		{"bad limit", "/api/pending?limit=-1"},
		{"bad consolidated year", "/api/consolidated?year=20x4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodGet, tt.target, nil, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			body := decode[errorBody](t, rec)
			assert.NotEmpty(t, body.Error)
			assert.Equal(t, rec.Header().Get("X-Request-ID"), body.RequestID)
		})
	}
}

func TestListTransactions(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/transactions?type=expense&sort=amount&order=desc", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decode[services.ListingView](t, rec)
	assert.Equal(t, 3, got.Count)
	require.Len(t, got.Groups, 2)
	assert.Equal(t, "2024-03", got.Groups[0].Key)
	assert.Equal(t, "t2", got.Groups[0].Transactions[0].ID)
	assert.Equal(t, "Aluguel", got.Titles["t2"])

	pending := decode[services.ListingView](t, ts.do(t, http.MethodGet, "/api/transactions?status=pending&year=2024", nil, ""))
	assert.Equal(t, 1, pending.Count)
}

func TestCreateTransaction(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
		wantStatus  int
	}{
		{
			name:        "json expense",
			body:        `{"type":"expense","amount":"45,90","category":"alimentacao","subCategory":"mercado","date":"2024-03-28","paid":true}`,
			contentType: "application/json",
			wantStatus:  http.StatusCreated,
		},
		{
			name:        "form income",
			body:        url.Values{"type": {"income"}, "amount": {"1.200,00"}, "category": {"freelance"}, "date": {"2024-04-02"}, "received": {"on"}}.Encode(),
			contentType: "application/x-www-form-urlencoded",
			wantStatus:  http.StatusCreated,
		},
		{
			name:        "json investment withdrawal",
			body:        `{"type":"investment","amount":-250,"bankAccount":"nubank","date":"2024-03-30"}`,
			contentType: "application/json",
			wantStatus:  http.StatusCreated,
		},
		{
			name:        "unknown category",
			body:        `{"type":"expense","amount":"10","category":"lazer","date":"2024-03-28"}`,
			contentType: "application/json",
			wantStatus:  http.StatusUnprocessableEntity,
		},
		{
			name:        "category of the wrong type",
			body:        `{"type":"income","amount":"10","category":"moradia","date":"2024-03-28"}`,
			contentType: "application/json",
			wantStatus:  http.StatusUnprocessableEntity,
		},
		{
			name:        "paid flag on income",
			body:        `{"type":"income","amount":"10","category":"salario","date":"2024-03-28","paid":true}`,
			contentType: "application/json",
			wantStatus:  http.StatusUnprocessableEntity,
		},
		{
			name:        "negative expense",
			body:        `{"type":"expense","amount":"-10","category":"moradia","date":"2024-03-28"}`,
			contentType: "application/json",
			wantStatus:  http.StatusBadRequest,
		},
		{
			name:        "bad date",
			body:        `{"type":"expense","amount":"10","category":"moradia","date":"28/03/2024"}`,
			contentType: "application/json",
			wantStatus:  http.StatusBadRequest,
		},
		{
			name:        "malformed json",
			body:        `{"type":`,
			contentType: "application/json",
			wantStatus:  http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			rec := ts.do(t, http.MethodPost, "/api/transactions", strings.NewReader(tt.body), tt.contentType)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			if tt.wantStatus != http.StatusCreated {
				return
			}
			created := decode[core.Transaction](t, rec)
			assert.NotEmpty(t, created.ID)
			assert.Equal(t, "/api/transactions/"+created.ID, rec.Header().Get("Location"))

			stored, err := ts.store.Transaction(context.Background(), created.ID)
			require.NoError(t, err)
			assert.Equal(t, created.Amount, stored.Amount)
		})
	}
}

func TestCreateTransaction_InvalidatesReports(t *testing.T) {
	ts := newTestServer(t)

	before := decode[map[string]any](t, ts.do(t, http.MethodGet, "/api/report?year=2024&month=3", nil, ""))
	assert.Equal(t, 1800.0, before["totalExpenses"])

	body := `{"type":"expense","amount":"200","category":"saude","date":"2024-03-15","paid":true}`
	rec := ts.do(t, http.MethodPost, "/api/transactions", strings.NewReader(body), "application/json")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	after := decode[map[string]any](t, ts.do(t, http.MethodGet, "/api/report?year=2024&month=3", nil, ""))
	assert.Equal(t, 2000.0, after["totalExpenses"])
}

func TestUpdateTransaction(t *testing.T) {
	ts := newTestServer(t)

	before := decode[map[string]any](t, ts.do(t, http.MethodGet, "/api/report?year=2024&month=3", nil, ""))
	assert.Equal(t, 1800.0, before["totalExpenses"])

	tests := []struct {
		name       string
		target     string
		body       string
		wantStatus int
	}{
		{"unknown id", "/api/transactions/missing", `{"type":"expense","amount":"10","category":"moradia","date":"2024-03-10"}`, http.StatusNotFound},
		{"category of the wrong type", "/api/transactions/t2", `{"type":"expense","amount":"10","category":"salario","date":"2024-03-10"}`, http.StatusUnprocessableEntity},
		{"bad amount", "/api/transactions/t2", `{"type":"expense","amount":"dez","category":"moradia","date":"2024-03-10"}`, http.StatusBadRequest},
		{"ok", "/api/transactions/t2", `{"type":"expense","amount":"1000","category":"moradia","subCategory":"aluguel","date":"2024-03-10","paid":true}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPut, tt.target, strings.NewReader(tt.body), "application/json")
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}

	stored, err := ts.store.Transaction(context.Background(), "t2")
	require.NoError(t, err)
	assert.Equal(t, int64(100000), stored.Amount.Cents)

	after := decode[map[string]any](t, ts.do(t, http.MethodGet, "/api/report?year=2024&month=3", nil, ""))
	assert.Equal(t, 1300.0, after["totalExpenses"], "cached report dropped after the update")
}

func TestDeleteTransaction(t *testing.T) {
	ts := newTestServer(t)

	before := decode[map[string]any](t, ts.do(t, http.MethodGet, "/api/report?year=2024&month=3", nil, ""))
	assert.Equal(t, 1800.0, before["totalExpenses"])

	rec := ts.do(t, http.MethodDelete, "/api/transactions/t3", nil, "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	after := decode[map[string]any](t, ts.do(t, http.MethodGet, "/api/report?year=2024&month=3", nil, ""))
	assert.Equal(t, 1500.0, after["totalExpenses"])

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodDelete, "/api/transactions/t3", nil, "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/transactions/t3", nil, "").Code)
}

func TestCatalogEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/categories", strings.NewReader(`{"name":"Lazer","type":"Expense","color":"#22C55E"}`), "application/json")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	lazer := decode[core.Category](t, rec)
	assert.NotEmpty(t, lazer.ID)
	assert.Equal(t, core.Expense, lazer.Type)

	rec = ts.do(t, http.MethodPost, "/api/subcategories", strings.NewReader(`{"name":"Cinema","parentId":"`+lazer.ID+`"}`), "application/json")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	cinema := decode[core.SubCategory](t, rec)
	assert.Equal(t, core.Expense, cinema.Type)

	form := url.Values{"bankName": {"Inter"}, "accountNumber": {"00123456"}, "type": {"savings"}}.Encode()
	rec = ts.do(t, http.MethodPost, "/api/bank-accounts", strings.NewReader(form), "application/x-www-form-urlencoded")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	inter := decode[core.BankAccount](t, rec)

	rec = ts.do(t, http.MethodPut, "/api/categories/"+lazer.ID, strings.NewReader(`{"name":"Lazer e cultura","type":"expense"}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Lazer e cultura", decode[core.Category](t, rec).Name)

	body := `{"type":"expense","amount":"80","category":"` + lazer.ID + `","subCategory":"` + cinema.ID + `","date":"2024-03-22","paid":true}`
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/transactions", strings.NewReader(body), "application/json").Code)
	mid := decode[map[string]any](t, ts.do(t, http.MethodGet, "/api/report?year=2024&month=3", nil, ""))
	assert.Equal(t, 1880.0, mid["totalExpenses"])

	catalog := decode[services.Catalog](t, ts.do(t, http.MethodGet, "/api/catalog", nil, ""))
	assert.Len(t, catalog.Categories, 7)
	assert.Contains(t, catalog.BankAccounts, inter)

	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		wantStatus int
	}{
		{"empty category name", http.MethodPost, "/api/categories", `{"name":"","type":"expense"}`, http.StatusUnprocessableEntity},
		{"category type change", http.MethodPut, "/api/categories/" + lazer.ID, `{"name":"Lazer","type":"income"}`, http.StatusUnprocessableEntity},
		{"unknown parent", http.MethodPost, "/api/subcategories", `{"name":"Teatro","parentId":"nope"}`, http.StatusUnprocessableEntity},
		{"unknown bank account", http.MethodPut, "/api/bank-accounts/nope", `{"bankName":"Inter","type":"checking"}`, http.StatusNotFound},
		{"bad account type", http.MethodPost, "/api/bank-accounts", `{"bankName":"Inter","type":"cofre"}`, http.StatusUnprocessableEntity},
		{"delete unknown subcategory", http.MethodDelete, "/api/subcategories/nope", "", http.StatusNotFound},
		{"delete bank account", http.MethodDelete, "/api/bank-accounts/" + inter.ID, "", http.StatusNoContent},
		{"delete category", http.MethodDelete, "/api/categories/" + lazer.ID, "", http.StatusNoContent},
		{"delete category twice", http.MethodDelete, "/api/categories/" + lazer.ID, "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, tt.method, tt.target, strings.NewReader(tt.body), "application/json")
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}

	after := decode[map[string]any](t, ts.do(t, http.MethodGet, "/api/report?year=2024&month=3", nil, ""))
	assert.Equal(t, 1800.0, after["totalExpenses"], "the category took its transaction with it")
}

func TestCatalogRoutesNeedCatalog(t *testing.T) {
	store := memory.New(fixtureDataset())
	reports := services.NewReportService(store, nil)
	srv := NewServer(":0", Deps{Reports: reports, Transactions: services.NewTransactionService(store, nil, reports, quietLogger()), Logger: quietLogger()})
	t.Cleanup(func() { srv.limiter.Stop() })

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/catalog", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetTransaction(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/transactions/t3", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "t3", decode[core.Transaction](t, rec).ID)

	rec = ts.do(t, http.MethodGet, "/api/transactions/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalyticsEndpoints(t *testing.T) {
	ts := newTestServer(t)

	matrix := decode[map[string]any](t, ts.do(t, http.MethodGet, "/api/analytics/categories?year=2024&sort=total", nil, ""))
	assert.Equal(t, "expense", matrix["type"])
	assert.Equal(t, 1800.0, matrix["grandTotal"])

	inv := decode[map[string]any](t, ts.do(t, http.MethodGet, "/api/investments?year=2024", nil, ""))
	assert.Equal(t, 1000.0, inv["total"])

	cons := decode[map[string]any](t, ts.do(t, http.MethodGet, "/api/consolidated?year=2024", nil, ""))
	assert.Equal(t, 2024.0, cons["year"])
	assert.Len(t, cons["months"], 12)

	years := decode[map[string][]int](t, ts.do(t, http.MethodGet, "/api/years", nil, ""))
	assert.Equal(t, []int{2024, 2023}, years["years"])

	pending := decode[map[string]any](t, ts.do(t, http.MethodGet, "/api/pending?limit=3", nil, ""))
	assert.Len(t, pending["items"], 1)

	recent := decode[services.ListingView](t, ts.do(t, http.MethodGet, "/api/recent?limit=2", nil, ""))
	assert.Equal(t, 2, recent.Count)

	cash := decode[services.CashFlowView](t, ts.do(t, http.MethodGet, "/api/cashflow?year=2024", nil, ""))
	assert.Len(t, cash.Realized, 12)
	assert.Equal(t, "2024-all", cash.Period)
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodDelete, "/api/transactions", nil, "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCreateTransaction_RateLimited(t *testing.T) {
	store := memory.New(fixtureDataset())
	reports := services.NewReportService(store, nil)
	srv := NewServer(":0", Deps{
		Reports:            reports,
		Transactions:       services.NewTransactionService(store, nil, reports, quietLogger()),
		Pinger:             store,
		Logger:             quietLogger(),
		RateLimitPerMinute: 1,
	})
	t.Cleanup(func() { srv.limiter.Stop() })

	post := func() int {
		body := bytes.NewBufferString(`{"type":"expense","amount":"1","category":"saude","date":"2024-03-01"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/transactions", body)
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusCreated, post())
	assert.Equal(t, http.StatusTooManyRequests, post())

	del := httptest.NewRecorder()
	srv.Handler.ServeHTTP(del, httptest.NewRequest(http.MethodDelete, "/api/transactions/t1", nil))
	assert.Equal(t, http.StatusTooManyRequests, del.Code, "deletes share the write budget")

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/years", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(&services.ValidationError{Err: core.ErrMissingCategory}))
	assert.Equal(t, http.StatusBadRequest, statusFor(errBadRequest))
	assert.Equal(t, http.StatusNotFound, statusFor(fmt.Errorf("category x: %w", ledger.ErrNotFound)))
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(context.DeadlineExceeded))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("disk full")))
}
