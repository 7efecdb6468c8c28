package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"carteira/internal/ledger"
	"carteira/internal/report"
)

// ConsolidatedExporter writes an annual summary table somewhere outside the
// ledger, e.g. a spreadsheet.
type ConsolidatedExporter interface {
	ExportConsolidated(ctx context.Context, c report.Consolidated) error
}

// ExportService builds consolidated tables from the ledger and hands them
// to an exporter.
type ExportService struct {
	reader   ledger.DatasetReader
	exporter ConsolidatedExporter
}

func NewExportService(reader ledger.DatasetReader, exporter ConsolidatedExporter) *ExportService {
	return &ExportService{reader: reader, exporter: exporter}
}

// ExportYear exports the consolidated table of one year.
func (s *ExportService) ExportYear(ctx context.Context, year int) error {
	ds, err := s.reader.Dataset(ctx)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	return s.export(ctx, report.BuildConsolidated(ds, year))
}

// ExportAll exports every year present in the ledger and returns how many
// were exported. Failures of single years are joined.
func (s *ExportService) ExportAll(ctx context.Context) (int, error) {
	ds, err := s.reader.Dataset(ctx)
	if err != nil {
		return 0, fmt.Errorf("load dataset: %w", err)
	}

	var (
		errs     []error
		exported int
	)
	for _, year := range report.AvailableYears(ds.Transactions) {
		if err := ctx.Err(); err != nil {
			return exported, err
		}
		if err := s.export(ctx, report.BuildConsolidated(ds, year)); err != nil {
			errs = append(errs, err)
			continue
		}
		exported++
	}
	return exported, errors.Join(errs...)
}

func (s *ExportService) export(ctx context.Context, c report.Consolidated) error {
	if err := s.exporter.ExportConsolidated(ctx, c); err != nil {
		return fmt.Errorf("export %d: %w", c.Year, err)
	}
	slog.InfoContext(ctx, "Consolidated table exported",
		"year", c.Year,
		"income_cents", c.Totals.Income.Cents,
		"expenses_cents", c.Totals.Expenses.Cents)
	return nil
}

// ExportProcessorConfig holds configuration for the periodic export.
type ExportProcessorConfig struct {
	// Interval is how often every year is re-exported (default: 10m)
	Interval time.Duration
}

func DefaultExportProcessorConfig() ExportProcessorConfig {
	return ExportProcessorConfig{Interval: 10 * time.Minute}
}

// ExportProcessor re-exports every year on a fixed interval so that the
// spreadsheet converges even when change messages were lost.
type ExportProcessor struct {
	export *ExportService
	config ExportProcessorConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewExportProcessor(export *ExportService, config ExportProcessorConfig) *ExportProcessor {
	if config.Interval <= 0 {
		config.Interval = DefaultExportProcessorConfig().Interval
	}
	return &ExportProcessor{export: export, config: config}
}

// Start begins the export loop. Returns an error if already running.
func (p *ExportProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("export processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	go p.runLoop(ctx, stopCh, doneCh)

	slog.InfoContext(ctx, "Export processor started", "interval", p.config.Interval)
	return nil
}

// Stop signals the loop and waits for it or for ctx.
func (p *ExportProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Export processor stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Export processor stop timed out")
		return ctx.Err()
	}
}

func (p *ExportProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *ExportProcessor) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.runOnce(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

func (p *ExportProcessor) runOnce(ctx context.Context) {
	n, err := p.export.ExportAll(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Periodic export failed", "exported", n, "error", err)
		return
	}
	slog.DebugContext(ctx, "Periodic export finished", "exported", n)
}
