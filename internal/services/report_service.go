package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"carteira/internal/cache"
	"carteira/internal/core"
	"carteira/internal/ledger"
	"carteira/internal/log"
	"carteira/internal/report"
)

const defaultLoadTimeout = 10 * time.Second

// CashFlowView bundles the chart series of one period with their scales and
// the summary card.
type CashFlowView struct {
	Period           string                    `json:"period"`
	Summary          report.CashFlow           `json:"summary"`
	Realized         []report.RealizedPoint    `json:"realized"`
	RealizedScale    report.Scale              `json:"realizedScale"`
	Provisioned      []report.ProvisionedPoint `json:"provisioned"`
	ProvisionedScale report.Scale              `json:"provisionedScale"`
}

// ListingView is the grouped transaction listing with display titles.
type ListingView struct {
	Groups []report.MonthGroup `json:"groups"`
	Titles map[string]string   `json:"titles"`
	Count  int                 `json:"count"`
	Total  core.Money          `json:"total"`
}

// ReportService loads the dataset and computes report views, caching each
// view by its parameters until the next write.
type ReportService struct {
	reader      ledger.DatasetReader
	cache       cache.Cache[any]
	loadTimeout time.Duration
	now         func() time.Time

	// gen counts invalidations. A view is cached only if no invalidation
	// happened between its load and its Set.
	mu  sync.Mutex
	gen uint64
}

// NewReportService wires the service. A nil cache disables caching.
func NewReportService(reader ledger.DatasetReader, c cache.Cache[any]) *ReportService {
	return &ReportService{
		reader:      reader,
		cache:       c,
		loadTimeout: defaultLoadTimeout,
		now:         time.Now,
	}
}

// Invalidate drops every cached view and returns how many were dropped.
func (s *ReportService) Invalidate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.cache == nil {
		return 0
	}
	return s.cache.Purge()
}

func (s *ReportService) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// store caches v unless the dataset changed since generation gen was read.
func (s *ReportService) store(key string, v any, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return false
	}
	s.cache.Set(key, v)
	return true
}

func (s *ReportService) load(ctx context.Context) (core.Dataset, error) {
	ctx, cancel := context.WithTimeout(ctx, s.loadTimeout)
	defer cancel()

	ds, err := s.reader.Dataset(ctx)
	if err != nil {
		return core.Dataset{}, fmt.Errorf("load dataset: %w", err)
	}
	return ds, nil
}

// view returns the cached value for key or computes and caches it.
func view[T any](ctx context.Context, s *ReportService, name, key string, compute func(core.Dataset) T) (T, error) {
	cacheKey := name + "|" + key
	if s.cache != nil {
		if v, ok := s.cache.Get(cacheKey); ok {
			if typed, ok := v.(T); ok {
				log.FromContext(ctx).DebugContext(ctx, "Report served from cache",
					append(log.NewFields().WithReport(name, key).ToSlice(), log.FieldCacheHit, true)...)
				return typed, nil
			}
		}
	}

	var zero T
	gen := s.generation()
	ds, err := s.load(ctx)
	if err != nil {
		return zero, err
	}

	start := time.Now()
	v := compute(ds)
	fields := log.NewFields().WithReport(name, key)
	fields[log.FieldCacheHit] = false
	fields[log.FieldCount] = len(ds.Transactions)
	fields[log.FieldDuration] = time.Since(start).Milliseconds()
	log.FromContext(ctx).DebugContext(ctx, "Report computed", fields.ToSlice()...)

	if s.cache != nil && !s.store(cacheKey, v, gen) {
		log.FromContext(ctx).DebugContext(ctx, "Stale report not cached", log.NewFields().WithReport(name, key).ToSlice()...)
	}
	return v, nil
}

func (s *ReportService) Monthly(ctx context.Context, p report.Period) (report.MonthlyReport, error) {
	return view(ctx, s, "monthly", p.Key(), func(ds core.Dataset) report.MonthlyReport {
		return report.BuildMonthlyReport(ds, p)
	})
}

// CashFlow charts p.Year; the month of p only narrows the summary card.
func (s *ReportService) CashFlow(ctx context.Context, p report.Period) (CashFlowView, error) {
	return view(ctx, s, "cashflow", p.Key(), func(ds core.Dataset) CashFlowView {
		realized := report.RealizedSeries(ds.Transactions, p.Year)
		provisioned := report.ProvisionedSeries(ds.Transactions, p.Year)
		return CashFlowView{
			Period:           p.Key(),
			Summary:          report.CashFlowSummary(ds.Transactions, p),
			Realized:         realized,
			RealizedScale:    report.RealizedScale(realized),
			Provisioned:      provisioned,
			ProvisionedScale: report.ProvisionedScale(provisioned),
		}
	})
}

func (s *ReportService) Transactions(ctx context.Context, q report.Query, key report.SortKey, order report.Order) (ListingView, error) {
	return view(ctx, s, "transactions", fmt.Sprintf("%+v|%s|%s", q, key, order), func(ds core.Dataset) ListingView {
		res := report.NewResolver(ds)
		txs := q.Filter(ds.Transactions)
		lv := ListingView{
			Groups: report.Listing(txs, res, key, order),
			Titles: make(map[string]string, len(txs)),
			Count:  len(txs),
		}
		for _, tx := range txs {
			lv.Titles[tx.ID] = res.Title(tx)
			lv.Total = lv.Total.Add(tx.Amount)
		}
		return lv
	})
}

func (s *ReportService) CategoryMatrix(ctx context.Context, q report.Query, by report.MatrixSort, order report.Order) (report.CategoryMatrix, error) {
	typ := q.Type
	if typ == "" {
		typ = core.Expense
	}
	return view(ctx, s, "categories", fmt.Sprintf("%+v|%s|%s|%s", q, typ, by, order), func(ds core.Dataset) report.CategoryMatrix {
		return report.BuildCategoryMatrix(ds, q.Filter(ds.Transactions), typ, by, order)
	})
}

func (s *ReportService) Investments(ctx context.Context, q report.Query) (report.BankStatement, error) {
	q.Type = core.Investment
	return view(ctx, s, "investments", fmt.Sprintf("%+v", q), func(ds core.Dataset) report.BankStatement {
		return report.BuildBankStatement(ds, q.Filter(ds.Transactions))
	})
}

func (s *ReportService) Consolidated(ctx context.Context, year int) (report.Consolidated, error) {
	return view(ctx, s, "consolidated", fmt.Sprint(year), func(ds core.Dataset) report.Consolidated {
		return report.BuildConsolidated(ds, year)
	})
}

// Pending is keyed by the current day as well, since overdue flags change at
// midnight.
func (s *ReportService) Pending(ctx context.Context, limit int) (report.Pending, error) {
	today := s.now()
	return view(ctx, s, "pending", fmt.Sprintf("%d|%s", limit, today.Format("2006-01-02")), func(ds core.Dataset) report.Pending {
		return report.PendingExpenses(ds, limit, today)
	})
}

func (s *ReportService) Years(ctx context.Context) ([]int, error) {
	return view(ctx, s, "years", "", func(ds core.Dataset) []int {
		return report.AvailableYears(ds.Transactions)
	})
}

// Recent lists the n most recent transactions with their display titles.
func (s *ReportService) Recent(ctx context.Context, n int) (ListingView, error) {
	return view(ctx, s, "recent", fmt.Sprint(n), func(ds core.Dataset) ListingView {
		res := report.NewResolver(ds)
		txs := report.Recent(ds.Transactions, n)
		lv := ListingView{
			Groups: report.GroupByMonth(txs),
			Titles: make(map[string]string, len(txs)),
			Count:  len(txs),
		}
		for _, tx := range txs {
			lv.Titles[tx.ID] = res.Title(tx)
			lv.Total = lv.Total.Add(tx.Amount)
		}
		return lv
	})
}
