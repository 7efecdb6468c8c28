// Package ledger defines the persistence ports used by services and the
// HTTP layer. Backends live in ledger/memory and internal/storage.
package ledger

import (
	"context"
	"errors"

	"carteira/internal/core"
)

var ErrNotFound = errors.New("not found")

// Ports for persistence adapters.
type (
	// DatasetReader loads the four collections the report engine needs.
	DatasetReader interface {
		Dataset(ctx context.Context) (core.Dataset, error)
	}

	// TransactionWriter stores validated transactions. AddTransaction
	// assigns an ID when tx.ID is empty and returns the stored one.
	// UpdateTransaction replaces the transaction with the same ID and
	// DeleteTransaction removes it; both return ErrNotFound for unknown IDs.
	TransactionWriter interface {
		AddTransaction(ctx context.Context, tx core.Transaction) (string, error)
		UpdateTransaction(ctx context.Context, tx core.Transaction) error
		DeleteTransaction(ctx context.Context, id string) error
	}

	// CatalogWriter maintains categories, subcategories and bank accounts.
	// Save* insert or replace by ID, which the caller assigns. Delete*
	// return ErrNotFound for unknown IDs and cascade like this:
	// a category takes its subcategories and its transactions with it,
	// a subcategory is cleared from the transactions that used it, and
	// a bank account leaves its transactions pointing at a missing account.
	CatalogWriter interface {
		SaveCategory(ctx context.Context, c core.Category) error
		DeleteCategory(ctx context.Context, id string) error
		SaveSubCategory(ctx context.Context, sc core.SubCategory) error
		DeleteSubCategory(ctx context.Context, id string) error
		SaveBankAccount(ctx context.Context, b core.BankAccount) error
		DeleteBankAccount(ctx context.Context, id string) error
	}

	// TransactionGetter fetches one transaction by ID or returns ErrNotFound.
	TransactionGetter interface {
		Transaction(ctx context.Context, id string) (core.Transaction, error)
	}

	// Importer replaces or upserts categories, subcategories, bank accounts
	// and transactions in bulk, keeping the IDs of the input.
	Importer interface {
		Import(ctx context.Context, ds core.Dataset) error
	}

	// Pinger reports whether the backend is reachable.
	Pinger interface {
		Ping(ctx context.Context) error
	}

	// Store is implemented by every backend.
	Store interface {
		DatasetReader
		TransactionWriter
		TransactionGetter
		CatalogWriter
		Importer
		Pinger
	}
)
