package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"carteira/internal/core"
	"carteira/internal/ledger"

	_ "modernc.org/sqlite"
)

var _ ledger.Store = (*SQLiteRepository)(nil)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("SQLite schema ready", "path", dbPath, "version", version)

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Dataset loads the four tables concurrently.
func (r *SQLiteRepository) Dataset(ctx context.Context) (core.Dataset, error) {
	var ds core.Dataset
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		ds.Transactions, err = r.transactions(ctx)
		return err
	})
	g.Go(func() (err error) {
		ds.Categories, err = r.categories(ctx)
		return err
	})
	g.Go(func() (err error) {
		ds.SubCategories, err = r.subCategories(ctx)
		return err
	})
	g.Go(func() (err error) {
		ds.BankAccounts, err = r.bankAccounts(ctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return core.Dataset{}, err
	}
	return ds, nil
}

const transactionColumns = `id, type, amount_cents, category_id, subcategory_id, date,
	paid, received, bank_account_id, observation, attachment_url`

func (r *SQLiteRepository) transactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+transactionColumns+` FROM transactions ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		tx   core.Transaction
		date string
	)
	err := s.Scan(&tx.ID, &tx.Type, &tx.Amount.Cents, &tx.CategoryID, &tx.SubCategoryID, &date,
		&tx.Paid, &tx.Received, &tx.BankAccountID, &tx.Observation, &tx.AttachmentURL)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}
	// Stored dates that do not parse are reported as undated.
	if d, err := core.ParseDate(date); err == nil {
		tx.Date = d
	}
	return tx, nil
}

func (r *SQLiteRepository) categories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, type, color FROM categories ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Type, &c.Color); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) subCategories(ctx context.Context) ([]core.SubCategory, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, parent_id, type FROM subcategories ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query subcategories: %w", err)
	}
	defer rows.Close()

	var out []core.SubCategory
	for rows.Next() {
		var s core.SubCategory
		if err := rows.Scan(&s.ID, &s.Name, &s.ParentID, &s.Type); err != nil {
			return nil, fmt.Errorf("scan subcategory: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) bankAccounts(ctx context.Context) ([]core.BankAccount, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, bank_name, account_number, type FROM bank_accounts ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query bank accounts: %w", err)
	}
	defer rows.Close()

	var out []core.BankAccount
	for rows.Next() {
		var b core.BankAccount
		if err := rows.Scan(&b.ID, &b.BankName, &b.AccountNumber, &b.Type); err != nil {
			return nil, fmt.Errorf("scan bank account: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// AddTransaction implements ledger.TransactionWriter
func (r *SQLiteRepository) AddTransaction(ctx context.Context, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", err
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if err := upsertTransaction(ctx, r.db, tx); err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", tx.ID,
		"type", tx.Type,
		"amount_cents", tx.Amount.Cents,
		"date", tx.Date.String())

	return tx.ID, nil
}

// Transaction implements ledger.TransactionGetter
func (r *SQLiteRepository) Transaction(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, ledger.ErrNotFound)
	}
	return tx, err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertTransaction(ctx context.Context, db execer, tx core.Transaction) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			amount_cents = excluded.amount_cents,
			category_id = excluded.category_id,
			subcategory_id = excluded.subcategory_id,
			date = excluded.date,
			paid = excluded.paid,
			received = excluded.received,
			bank_account_id = excluded.bank_account_id,
			observation = excluded.observation,
			attachment_url = excluded.attachment_url`,
		tx.ID, tx.Type, tx.Amount.Cents, tx.CategoryID, tx.SubCategoryID, tx.Date.String(),
		tx.Paid, tx.Received, tx.BankAccountID, tx.Observation, tx.AttachmentURL)
	if err != nil {
		return fmt.Errorf("upsert transaction %s: %w", tx.ID, err)
	}
	return nil
}

// Import upserts the whole dataset in a single database transaction.
func (r *SQLiteRepository) Import(ctx context.Context, ds core.Dataset) error {
	if err := ds.Validate(); err != nil {
		return err
	}

	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer sqlTx.Rollback()

	for _, c := range ds.Categories {
		if err := upsertCategory(ctx, sqlTx, c); err != nil {
			return err
		}
	}
	for _, sc := range ds.SubCategories {
		if err := upsertSubCategory(ctx, sqlTx, sc); err != nil {
			return err
		}
	}
	for _, b := range ds.BankAccounts {
		if err := upsertBankAccount(ctx, sqlTx, b); err != nil {
			return err
		}
	}
	for _, tx := range ds.Transactions {
		if tx.ID == "" {
			tx.ID = uuid.NewString()
		}
		if err := upsertTransaction(ctx, sqlTx, tx); err != nil {
			return err
		}
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}

	slog.InfoContext(ctx, "Dataset imported into SQLite",
		"transactions", len(ds.Transactions),
		"categories", len(ds.Categories),
		"subcategories", len(ds.SubCategories),
		"bank_accounts", len(ds.BankAccounts))
	return nil
}

// UpdateTransaction implements ledger.TransactionWriter
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET
			type = ?, amount_cents = ?, category_id = ?, subcategory_id = ?, date = ?,
			paid = ?, received = ?, bank_account_id = ?, observation = ?, attachment_url = ?
		WHERE id = ?`,
		tx.Type, tx.Amount.Cents, tx.CategoryID, tx.SubCategoryID, tx.Date.String(),
		tx.Paid, tx.Received, tx.BankAccountID, tx.Observation, tx.AttachmentURL, tx.ID)
	if err != nil {
		return fmt.Errorf("update transaction %s: %w", tx.ID, err)
	}
	return requireAffected(res, "transaction", tx.ID)
}

// DeleteTransaction implements ledger.TransactionWriter
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	return requireAffected(res, "transaction", id)
}

func (r *SQLiteRepository) SaveCategory(ctx context.Context, c core.Category) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return upsertCategory(ctx, r.db, c)
}

// DeleteCategory removes the category, its subcategories and its
// transactions in one database transaction.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id string) error {
	return r.inTx(ctx, func(sqlTx *sql.Tx) error {
		res, err := sqlTx.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete category %s: %w", id, err)
		}
		if err := requireAffected(res, "category", id); err != nil {
			return err
		}
		if _, err := sqlTx.ExecContext(ctx, `DELETE FROM subcategories WHERE parent_id = ?`, id); err != nil {
			return fmt.Errorf("delete subcategories of %s: %w", id, err)
		}
		if _, err := sqlTx.ExecContext(ctx, `DELETE FROM transactions WHERE category_id = ?`, id); err != nil {
			return fmt.Errorf("delete transactions of %s: %w", id, err)
		}
		return nil
	})
}

func (r *SQLiteRepository) SaveSubCategory(ctx context.Context, sc core.SubCategory) error {
	if err := sc.Validate(); err != nil {
		return err
	}
	return upsertSubCategory(ctx, r.db, sc)
}

// DeleteSubCategory removes the subcategory and clears it from
// transactions.
func (r *SQLiteRepository) DeleteSubCategory(ctx context.Context, id string) error {
	return r.inTx(ctx, func(sqlTx *sql.Tx) error {
		res, err := sqlTx.ExecContext(ctx, `DELETE FROM subcategories WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete subcategory %s: %w", id, err)
		}
		if err := requireAffected(res, "subcategory", id); err != nil {
			return err
		}
		if _, err := sqlTx.ExecContext(ctx, `UPDATE transactions SET subcategory_id = '' WHERE subcategory_id = ?`, id); err != nil {
			return fmt.Errorf("clear subcategory %s: %w", id, err)
		}
		return nil
	})
}

func (r *SQLiteRepository) SaveBankAccount(ctx context.Context, b core.BankAccount) error {
	if err := b.Validate(); err != nil {
		return err
	}
	return upsertBankAccount(ctx, r.db, b)
}

func (r *SQLiteRepository) DeleteBankAccount(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM bank_accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete bank account %s: %w", id, err)
	}
	return requireAffected(res, "bank account", id)
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer sqlTx.Rollback()
	if err := fn(sqlTx); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func requireAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %s: %w", kind, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ledger.ErrNotFound)
	}
	return nil
}

func upsertCategory(ctx context.Context, db execer, c core.Category) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO categories (id, name, type, color) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, type = excluded.type, color = excluded.color`,
		c.ID, c.Name, c.Type, c.Color)
	if err != nil {
		return fmt.Errorf("upsert category %s: %w", c.ID, err)
	}
	return nil
}

func upsertSubCategory(ctx context.Context, db execer, sc core.SubCategory) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO subcategories (id, name, parent_id, type) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, parent_id = excluded.parent_id, type = excluded.type`,
		sc.ID, sc.Name, sc.ParentID, sc.Type)
	if err != nil {
		return fmt.Errorf("upsert subcategory %s: %w", sc.ID, err)
	}
	return nil
}

func upsertBankAccount(ctx context.Context, db execer, b core.BankAccount) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO bank_accounts (id, bank_name, account_number, type) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET bank_name = excluded.bank_name, account_number = excluded.account_number, type = excluded.type`,
		b.ID, b.BankName, b.AccountNumber, b.Type)
	if err != nil {
		return fmt.Errorf("upsert bank account %s: %w", b.ID, err)
	}
	return nil
}
