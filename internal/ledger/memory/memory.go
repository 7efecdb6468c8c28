package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/google/uuid"

	"carteira/internal/core"
	"carteira/internal/ledger"
)

// SeedFile is the dataset file read by NewFromDir.
const SeedFile = "dataset.json"

var _ ledger.Store = (*Store)(nil)

// Store keeps the dataset in process memory.
type Store struct {
	mu sync.RWMutex
	ds core.Dataset
}

func New(ds core.Dataset) *Store {
	return &Store{ds: cloneDataset(ds)}
}

// NewFromDir seeds the store from dir/dataset.json. A missing directory or
// file yields the default categories and no transactions.
func NewFromDir(dir string) (*Store, error) {
	if dir == "" {
		return New(DefaultDataset()), nil
	}
	b, err := os.ReadFile(filepath.Join(dir, SeedFile))
	if os.IsNotExist(err) {
		return New(DefaultDataset()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var ds core.Dataset
	if err := json.Unmarshal(b, &ds); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	if err := ds.Validate(); err != nil {
		return nil, fmt.Errorf("invalid seed dataset: %w", err)
	}
	return New(ds), nil
}

// DefaultDataset holds the starter categories offered to a new user.
func DefaultDataset() core.Dataset {
	return core.Dataset{
		Categories: []core.Category{
			{ID: "salario", Name: "Salário", Type: core.Income, Color: "#10B981"},
			{ID: "freelance", Name: "Freelance", Type: core.Income, Color: "#3B82F6"},
			{ID: "moradia", Name: "Moradia", Type: core.Expense, Color: "#EF4444"},
			{ID: "alimentacao", Name: "Alimentação", Type: core.Expense, Color: "#F59E0B"},
			{ID: "transporte", Name: "Transporte", Type: core.Expense, Color: "#8B5CF6"},
			{ID: "saude", Name: "Saúde", Type: core.Expense, Color: "#EC4899"},
		},
		SubCategories: []core.SubCategory{
			{ID: "aluguel", Name: "Aluguel", ParentID: "moradia", Type: core.Expense},
			{ID: "mercado", Name: "Mercado", ParentID: "alimentacao", Type: core.Expense},
			{ID: "restaurante", Name: "Restaurante", ParentID: "alimentacao", Type: core.Expense},
		},
	}
}

// Dataset returns a copy; callers may not mutate the store through it.
func (s *Store) Dataset(_ context.Context) (core.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneDataset(s.ds), nil
}

func (s *Store) AddTransaction(_ context.Context, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", err
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ds.Transactions = append(s.ds.Transactions, tx)
	return tx.ID, nil
}

func (s *Store) Transaction(_ context.Context, id string) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, tx := range s.ds.Transactions {
		if tx.ID == id {
			return tx, nil
		}
	}
	return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, ledger.ErrNotFound)
}

// UpdateTransaction replaces the stored transaction with tx.ID.
func (s *Store) UpdateTransaction(_ context.Context, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.ds.Transactions, func(t core.Transaction) bool { return t.ID == tx.ID })
	if tx.ID == "" || i < 0 {
		return fmt.Errorf("transaction %s: %w", tx.ID, ledger.ErrNotFound)
	}
	s.ds.Transactions[i] = tx
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.ds.Transactions)
	s.ds.Transactions = slices.DeleteFunc(s.ds.Transactions, func(t core.Transaction) bool { return t.ID == id })
	if id == "" || len(s.ds.Transactions) == n {
		return fmt.Errorf("transaction %s: %w", id, ledger.ErrNotFound)
	}
	return nil
}

// Import upserts every entity by ID. Transactions without an ID get a new
// one each.
func (s *Store) Import(_ context.Context, ds core.Dataset) error {
	if err := ds.Validate(); err != nil {
		return err
	}
	txs := slices.Clone(ds.Transactions)
	for i := range txs {
		if txs[i].ID == "" {
			txs[i].ID = uuid.NewString()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ds.Categories = upsert(s.ds.Categories, ds.Categories, func(c core.Category) string { return c.ID })
	s.ds.SubCategories = upsert(s.ds.SubCategories, ds.SubCategories, func(c core.SubCategory) string { return c.ID })
	s.ds.BankAccounts = upsert(s.ds.BankAccounts, ds.BankAccounts, func(b core.BankAccount) string { return b.ID })
	s.ds.Transactions = upsert(s.ds.Transactions, txs, func(t core.Transaction) string { return t.ID })
	return nil
}

func (s *Store) SaveCategory(_ context.Context, c core.Category) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ds.Categories = upsert(s.ds.Categories, []core.Category{c}, func(c core.Category) string { return c.ID })
	return nil
}

// DeleteCategory removes the category with its subcategories and
// transactions.
func (s *Store) DeleteCategory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.ds.Categories)
	s.ds.Categories = slices.DeleteFunc(s.ds.Categories, func(c core.Category) bool { return c.ID == id })
	if id == "" || len(s.ds.Categories) == n {
		return fmt.Errorf("category %s: %w", id, ledger.ErrNotFound)
	}
	s.ds.SubCategories = slices.DeleteFunc(s.ds.SubCategories, func(sc core.SubCategory) bool { return sc.ParentID == id })
	s.ds.Transactions = slices.DeleteFunc(s.ds.Transactions, func(t core.Transaction) bool { return t.CategoryID == id })
	return nil
}

func (s *Store) SaveSubCategory(_ context.Context, sc core.SubCategory) error {
	if err := sc.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ds.SubCategories = upsert(s.ds.SubCategories, []core.SubCategory{sc}, func(c core.SubCategory) string { return c.ID })
	return nil
}

// DeleteSubCategory removes the subcategory and clears it from
// transactions.
func (s *Store) DeleteSubCategory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.ds.SubCategories)
	s.ds.SubCategories = slices.DeleteFunc(s.ds.SubCategories, func(sc core.SubCategory) bool { return sc.ID == id })
	if id == "" || len(s.ds.SubCategories) == n {
		return fmt.Errorf("subcategory %s: %w", id, ledger.ErrNotFound)
	}
	for i := range s.ds.Transactions {
		if s.ds.Transactions[i].SubCategoryID == id {
			s.ds.Transactions[i].SubCategoryID = ""
		}
	}
	return nil
}

func (s *Store) SaveBankAccount(_ context.Context, b core.BankAccount) error {
	if err := b.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ds.BankAccounts = upsert(s.ds.BankAccounts, []core.BankAccount{b}, func(b core.BankAccount) string { return b.ID })
	return nil
}

func (s *Store) DeleteBankAccount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.ds.BankAccounts)
	s.ds.BankAccounts = slices.DeleteFunc(s.ds.BankAccounts, func(b core.BankAccount) bool { return b.ID == id })
	if id == "" || len(s.ds.BankAccounts) == n {
		return fmt.Errorf("bank account %s: %w", id, ledger.ErrNotFound)
	}
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	return nil
}

func upsert[T any](dst, src []T, id func(T) string) []T {
	out := slices.Clone(dst)
	for _, v := range src {
		i := slices.IndexFunc(out, func(e T) bool { return id(e) == id(v) })
		if i >= 0 {
			out[i] = v
			continue
		}
		out = append(out, v)
	}
	return out
}

func cloneDataset(ds core.Dataset) core.Dataset {
	return core.Dataset{
		Transactions:  slices.Clone(ds.Transactions),
		Categories:    slices.Clone(ds.Categories),
		SubCategories: slices.Clone(ds.SubCategories),
		BankAccounts:  slices.Clone(ds.BankAccounts),
	}
}
