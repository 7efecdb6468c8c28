package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"carteira/internal/amqp"
	"carteira/internal/core"
	"carteira/internal/ledger"
	"carteira/internal/log"
)

// Publisher announces ledger changes to the export worker.
type Publisher interface {
	PublishDatasetChanged(ctx context.Context, msg *amqp.DatasetChangedMessage) error
}

// Invalidator drops cached report views.
type Invalidator interface {
	Invalidate() int
}

// ValidationError marks input rejected before anything was written.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "invalid input: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// TransactionService orchestrates writes across the store, the report cache
// and AMQP.
type TransactionService struct {
	store ledger.Store
	notifier
}

// NewTransactionService wires the service. publisher and reports may be nil.
func NewTransactionService(store ledger.Store, publisher Publisher, reports Invalidator, logger *log.Logger) *TransactionService {
	return &TransactionService{
		store:    store,
		notifier: newNotifier(publisher, reports, logger),
	}
}

// Create validates tx against the current dataset, stores it and returns it
// with its assigned ID.
func (s *TransactionService) Create(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	ds, err := s.store.Dataset(ctx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("load dataset: %w", err)
	}
	if err := ds.ValidateTransaction(tx); err != nil {
		return core.Transaction{}, &ValidationError{Err: err}
	}

	id, err := s.store.AddTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	tx.ID = id

	s.logger.LogTransactionCreated(ctx, tx.ID, string(tx.Type), tx.Amount.Cents, tx.CategoryID, tx.BankAccountID)
	s.changed(ctx, amqp.NewDatasetChangedMessage(amqp.ReasonTransactionCreated, tx.ID, tx.Date.Year()))

	return tx, nil
}

// Update replaces the stored transaction with tx.ID. Unknown IDs yield
// ledger.ErrNotFound.
func (s *TransactionService) Update(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	prev, err := s.store.Transaction(ctx, tx.ID)
	if err != nil {
		return core.Transaction{}, err
	}
	ds, err := s.store.Dataset(ctx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("load dataset: %w", err)
	}
	if err := ds.ValidateTransaction(tx); err != nil {
		return core.Transaction{}, &ValidationError{Err: err}
	}
	if err := s.store.UpdateTransaction(ctx, tx); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}

	s.logger.LogWrite(ctx, "Transaction updated", log.OpUpdate,
		log.NewFields().WithTransaction(tx.ID, string(tx.Type), tx.Amount.Cents, tx.CategoryID, tx.BankAccountID))
	s.changed(ctx, amqp.NewDatasetChangedMessage(amqp.ReasonTransactionUpdated, tx.ID, changedYear(prev.Date, tx.Date)))
	return tx, nil
}

// Delete removes the transaction with id.
func (s *TransactionService) Delete(ctx context.Context, id string) error {
	prev, err := s.store.Transaction(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	s.logger.LogWrite(ctx, "Transaction deleted", log.OpDelete, log.LogFields{log.FieldTxID: id})
	s.changed(ctx, amqp.NewDatasetChangedMessage(amqp.ReasonTransactionDeleted, id, changedYear(prev.Date, prev.Date)))
	return nil
}

// changedYear is the single year touched by moving a transaction from a to
// b, or 0 when the move spans two years or either date is missing.
func changedYear(a, b core.Date) int {
	if a.IsZero() || b.IsZero() || a.Year() != b.Year() {
		return 0
	}
	return a.Year()
}

// Import upserts a whole dataset. The taxonomy must be valid; transactions
// are stored as given so historical data with dangling references survives.
func (s *TransactionService) Import(ctx context.Context, ds core.Dataset) error {
	if err := ds.Validate(); err != nil {
		return &ValidationError{Err: err}
	}
	if err := s.store.Import(ctx, ds); err != nil {
		return fmt.Errorf("import dataset: %w", err)
	}

	slog.InfoContext(ctx, "Dataset imported",
		"transactions", len(ds.Transactions),
		"categories", len(ds.Categories),
		"bank_accounts", len(ds.BankAccounts))
	s.changed(ctx, amqp.NewDatasetChangedMessage(amqp.ReasonImport, "", 0))
	return nil
}

// notifier fans a successful write out to the report cache and AMQP.
type notifier struct {
	publisher Publisher
	reports   Invalidator
	logger    *log.StructuredLogger
}

func newNotifier(publisher Publisher, reports Invalidator, logger *log.Logger) notifier {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return notifier{
		publisher: publisher,
		reports:   reports,
		logger:    log.NewStructuredLogger(logger.WithComponent(log.ComponentLedger)),
	}
}

// changed purges cached reports and publishes msg. Publishing is best effort:
// the write already succeeded.
func (s notifier) changed(ctx context.Context, msg *amqp.DatasetChangedMessage) {
	if s.reports != nil {
		if n := s.reports.Invalidate(); n > 0 {
			slog.DebugContext(ctx, "Report cache purged", log.FieldCount, n)
		}
	}

	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping dataset changed message")
		return
	}
	if err := s.publisher.PublishDatasetChanged(ctx, msg); err != nil {
		s.logger.LogError(ctx, "Failed to publish dataset changed message", err,
			log.ComponentAMQP, log.OpPublish, log.LogFields{log.FieldTxID: msg.TransactionID, log.FieldYear: msg.Year})
	}
}
