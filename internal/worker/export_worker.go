package worker

import (
	"context"
	"fmt"
	"log/slog"

	"carteira/internal/amqp"
)

// Exporter is implemented by services.ExportService.
type Exporter interface {
	ExportYear(ctx context.Context, year int) error
	ExportAll(ctx context.Context) (int, error)
}

// ExportWorker refreshes exported reports when the ledger changes.
type ExportWorker struct {
	exporter Exporter
}

func NewExportWorker(exporter Exporter) *ExportWorker {
	return &ExportWorker{exporter: exporter}
}

// HandleDatasetChanged processes a single dataset changed message from AMQP.
// A message without a year refreshes every year. A returned error makes the
// consumer requeue the message.
func (w *ExportWorker) HandleDatasetChanged(ctx context.Context, msg *amqp.DatasetChangedMessage) error {
	slog.InfoContext(ctx, "Processing dataset changed message",
		"reason", msg.Reason,
		"transaction_id", msg.TransactionID,
		"year", msg.Year,
		"timestamp", msg.Timestamp)

	if msg.Year == 0 {
		n, err := w.exporter.ExportAll(ctx)
		if err != nil {
			return fmt.Errorf("export all years: %w", err)
		}
		slog.InfoContext(ctx, "Exported every year", "years", n)
		return nil
	}

	if err := w.exporter.ExportYear(ctx, msg.Year); err != nil {
		return fmt.Errorf("export year %d: %w", msg.Year, err)
	}
	return nil
}
