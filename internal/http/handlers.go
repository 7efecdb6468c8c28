package http

import (
	"errors"
	"net/http"

	"carteira/internal/ledger"
	"carteira/internal/log"
	"carteira/internal/report"
)

const (
	defaultPendingLimit = 5
	defaultRecentLimit  = 10
)

// handleReport serves the monthly report of ?year=&month=.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	p, err := parsePeriod(r.URL.Query())
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	ctx, cancel := s.withTimeout(r)
	defer cancel()

	rep, err := s.reports.Monthly(ctx, p)
	if err != nil {
		writeError(w, r, log.OpCompute, err)
		return
	}
	NewResponse().JSON(rep).Write(w)
}

func (s *Server) handleCashFlow(w http.ResponseWriter, r *http.Request) {
	p, err := parsePeriod(r.URL.Query())
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	ctx, cancel := s.withTimeout(r)
	defer cancel()

	v, err := s.reports.CashFlow(ctx, p)
	if err != nil {
		writeError(w, r, log.OpCompute, err)
		return
	}
	NewResponse().JSON(v).Write(w)
}

// handleListTransactions serves the filtered listing grouped by month.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query, err := parseQuery(q)
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	key, order, err := report.ParseSort(q.Get("sort"), q.Get("order"))
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	ctx, cancel := s.withTimeout(r)
	defer cancel()

	v, err := s.reports.Transactions(ctx, query, key, order)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	NewResponse().JSON(v).Write(w)
}

// handleCreateTransaction accepts JSON or form bodies and answers 201 with
// the stored transaction.
func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := NewRequestBodyParser(r).Transaction()
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	ctx, cancel := s.withTimeout(r)
	defer cancel()

	created, err := s.transactions.Create(ctx, tx)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/transactions/"+created.ID).
		JSON(created).
		Write(w)
}

// handleUpdateTransaction replaces the transaction at the path ID with the
// body.
func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := NewRequestBodyParser(r).Transaction()
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	tx.ID = r.PathValue("id")
	ctx, cancel := s.withTimeout(r)
	defer cancel()

	updated, err := s.transactions.Update(ctx, tx)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	NewResponse().JSON(updated).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.withTimeout(r)
	defer cancel()

	if err := s.transactions.Delete(ctx, r.PathValue("id")); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	if s.getter == nil {
		ErrorResponse(r.Context(), http.StatusNotImplemented, "lookup not available").Write(w)
		return
	}
	ctx, cancel := s.withTimeout(r)
	defer cancel()

	tx, err := s.getter.Transaction(ctx, r.PathValue("id"))
	if errors.Is(err, ledger.ErrNotFound) {
		ErrorResponse(r.Context(), http.StatusNotFound, "transaction not found").Write(w)
		return
	}
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewResponse().JSON(tx).Write(w)
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	n, err := parseLimit(r.URL.Query(), defaultRecentLimit)
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	ctx, cancel := s.withTimeout(r)
	defer cancel()

	v, err := s.reports.Recent(ctx, n)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	NewResponse().JSON(v).Write(w)
}

// handleCategoryMatrix serves the category x month matrix. The type defaults
// to expense.
func (s *Server) handleCategoryMatrix(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query, err := parseQuery(q)
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	by, order, err := report.ParseMatrixSort(q.Get("sort"), q.Get("order"))
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	ctx, cancel := s.withTimeout(r)
	defer cancel()

	m, err := s.reports.CategoryMatrix(ctx, query, by, order)
	if err != nil {
		writeError(w, r, log.OpCompute, err)
		return
	}
	NewResponse().JSON(m).Write(w)
}

func (s *Server) handleInvestments(w http.ResponseWriter, r *http.Request) {
	query, err := parseQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	ctx, cancel := s.withTimeout(r)
	defer cancel()

	st, err := s.reports.Investments(ctx, query)
	if err != nil {
		writeError(w, r, log.OpCompute, err)
		return
	}
	NewResponse().JSON(st).Write(w)
}

// handleConsolidated serves the twelve-month table of ?year=; without a year
// every year is folded into the same twelve rows.
func (s *Server) handleConsolidated(w http.ResponseWriter, r *http.Request) {
	year, err := parseYear(r.URL.Query())
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	ctx, cancel := s.withTimeout(r)
	defer cancel()

	c, err := s.reports.Consolidated(ctx, year)
	if err != nil {
		writeError(w, r, log.OpCompute, err)
		return
	}
	NewResponse().JSON(c).Write(w)
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query(), defaultPendingLimit)
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	ctx, cancel := s.withTimeout(r)
	defer cancel()

	p, err := s.reports.Pending(ctx, limit)
	if err != nil {
		writeError(w, r, log.OpCompute, err)
		return
	}
	NewResponse().JSON(p).Write(w)
}

func (s *Server) handleYears(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.withTimeout(r)
	defer cancel()

	years, err := s.reports.Years(ctx)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	NewResponse().JSON(map[string][]int{"years": years}).Write(w)
}
