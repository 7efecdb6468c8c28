package http

import (
	"context"
	"net/http"
	"time"

	"carteira/internal/core"
	"carteira/internal/ledger"
	"carteira/internal/log"
	"carteira/internal/middleware/ratelimit"
	"carteira/internal/middleware/recovery"
	"carteira/internal/middleware/security"
	"carteira/internal/middleware/trace"
	"carteira/internal/report"
	"carteira/internal/services"
)

const (
	defaultRequestTimeout = 15 * time.Second
	readyTimeout          = 5 * time.Second
)

// ReportViews is the read side used by the handlers.
type ReportViews interface {
	Monthly(ctx context.Context, p report.Period) (report.MonthlyReport, error)
	CashFlow(ctx context.Context, p report.Period) (services.CashFlowView, error)
	Transactions(ctx context.Context, q report.Query, key report.SortKey, order report.Order) (services.ListingView, error)
	Recent(ctx context.Context, n int) (services.ListingView, error)
	CategoryMatrix(ctx context.Context, q report.Query, by report.MatrixSort, order report.Order) (report.CategoryMatrix, error)
	Investments(ctx context.Context, q report.Query) (report.BankStatement, error)
	Consolidated(ctx context.Context, year int) (report.Consolidated, error)
	Pending(ctx context.Context, limit int) (report.Pending, error)
	Years(ctx context.Context) ([]int, error)
}

// TransactionWriter is the write side used by the handlers.
type TransactionWriter interface {
	Create(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	Update(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	Delete(ctx context.Context, id string) error
}

// Deps are the collaborators of the server. Getter and Pinger are usually
// the same store. Without Catalog the taxonomy routes are not mounted.
type Deps struct {
	Reports      ReportViews
	Transactions TransactionWriter
	Catalog      CatalogManager
	Getter       ledger.TransactionGetter
	Pinger       ledger.Pinger
	Logger       *log.Logger

	RateLimitPerMinute int
	RequestTimeout     time.Duration
}

// Server is the JSON API.
type Server struct {
	http.Server

	reports        ReportViews
	transactions   TransactionWriter
	catalog        CatalogManager
	getter         ledger.TransactionGetter
	pinger         ledger.Pinger
	logger         *log.Logger
	limiter        *ratelimit.Limiter
	detector       *security.Detector
	tracer         *trace.Middleware
	requestTimeout time.Duration
	started        time.Time
}

// NewServer wires routes and middleware. The limiter goroutine is released
// by Shutdown.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	s := &Server{
		reports:        deps.Reports,
		transactions:   deps.Transactions,
		catalog:        deps.Catalog,
		getter:         deps.Getter,
		pinger:         deps.Pinger,
		logger:         logger.WithComponent(log.ComponentHTTP),
		limiter:        ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RateLimitPerMinute}),
		detector:       security.NewDetector(),
		requestTimeout: timeout,
		started:        time.Now(),
	}
	s.tracer = trace.NewMiddleware(s.logger, s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/report", s.handleReport)
	mux.HandleFunc("GET /api/cashflow", s.handleCashFlow)
	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("PUT /api/transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("GET /api/recent", s.handleRecent)
	mux.HandleFunc("GET /api/analytics/categories", s.handleCategoryMatrix)
	mux.HandleFunc("GET /api/investments", s.handleInvestments)
	mux.HandleFunc("GET /api/consolidated", s.handleConsolidated)
	mux.HandleFunc("GET /api/pending", s.handlePending)
	mux.HandleFunc("GET /api/years", s.handleYears)
	if deps.Catalog != nil {
		s.registerCatalog(mux, deps.Catalog)
	}

	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited, http.MethodPost, http.MethodPut, http.MethodDelete)(h)
	h = s.detector.Middleware(h)
	h = security.Headers(security.DefaultHeadersConfig())(h)
	h = recovery.Middleware(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Shutdown stops the rate limiter and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.Server.Shutdown(ctx)
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldComponent, log.ComponentRateLimit,
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldPath, r.URL.Path)
	ErrorResponse(r.Context(), http.StatusTooManyRequests, "rate limit exceeded").Write(w)
}

// withTimeout bounds persistence work of one request.
func (s *Server) withTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.requestTimeout)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady pings the store and reports the middleware counters.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]any{}

	switch {
	case s.pinger == nil:
		checks["store"] = "not_configured"
		status, code = "not_ready", http.StatusServiceUnavailable
	default:
		if err := s.pinger.Ping(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", log.FieldError, err.Error())
			checks["store"] = "failed: " + err.Error()
			status, code = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	}

	traffic := s.tracer.Metrics()
	sec := s.detector.Metrics()
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.limiter.ActiveClients(),
		"rejected":       s.limiter.Hits(),
	}
	checks["traffic"] = map[string]any{
		"requests":            traffic.TotalRequests,
		"avg_response_micros": traffic.AverageResponseMic,
		"suspicious":          sec.SuspiciousRequests,
		"blocked":             sec.BlockedRequests,
	}

	NewResponse().Status(code).JSON(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}
