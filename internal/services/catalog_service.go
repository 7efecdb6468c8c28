package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"carteira/internal/amqp"
	"carteira/internal/core"
	"carteira/internal/ledger"
	"carteira/internal/log"
)

// Catalog is the taxonomy without transactions.
type Catalog struct {
	Categories    []core.Category    `json:"categories"`
	SubCategories []core.SubCategory `json:"subcategories"`
	BankAccounts  []core.BankAccount `json:"bankAccounts"`
}

// CatalogService manages categories, subcategories and bank accounts.
// Every write invalidates cached reports and announces a catalog change
// covering all years.
type CatalogService struct {
	store ledger.Store
	notifier
}

// NewCatalogService wires the service. publisher and reports may be nil.
func NewCatalogService(store ledger.Store, publisher Publisher, reports Invalidator, logger *log.Logger) *CatalogService {
	return &CatalogService{
		store:    store,
		notifier: newNotifier(publisher, reports, logger),
	}
}

func (s *CatalogService) Catalog(ctx context.Context) (Catalog, error) {
	ds, err := s.store.Dataset(ctx)
	if err != nil {
		return Catalog{}, fmt.Errorf("load dataset: %w", err)
	}
	return Catalog{
		Categories:    ds.Categories,
		SubCategories: ds.SubCategories,
		BankAccounts:  ds.BankAccounts,
	}, nil
}

func (s *CatalogService) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	c.ID = uuid.NewString()
	if err := c.Validate(); err != nil {
		return core.Category{}, &ValidationError{Err: err}
	}
	if err := s.store.SaveCategory(ctx, c); err != nil {
		return core.Category{}, fmt.Errorf("save category: %w", err)
	}
	s.written(ctx, "Category created", log.OpCreate, "category", c.ID)
	return c, nil
}

// UpdateCategory renames or recolors a category. Its type is fixed once
// created, since transactions and subcategories were validated against it.
func (s *CatalogService) UpdateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	ds, err := s.store.Dataset(ctx)
	if err != nil {
		return core.Category{}, fmt.Errorf("load dataset: %w", err)
	}
	prev, ok := ds.Category(c.ID)
	if !ok {
		return core.Category{}, fmt.Errorf("category %s: %w", c.ID, ledger.ErrNotFound)
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, &ValidationError{Err: err}
	}
	if c.Type != prev.Type {
		return core.Category{}, &ValidationError{Err: core.ErrCategoryTypeChange}
	}
	if err := s.store.SaveCategory(ctx, c); err != nil {
		return core.Category{}, fmt.Errorf("save category: %w", err)
	}
	s.written(ctx, "Category updated", log.OpUpdate, "category", c.ID)
	return c, nil
}

// DeleteCategory removes the category together with its subcategories and
// transactions.
func (s *CatalogService) DeleteCategory(ctx context.Context, id string) error {
	if err := s.store.DeleteCategory(ctx, id); err != nil {
		return err
	}
	s.written(ctx, "Category deleted", log.OpDelete, "category", id)
	return nil
}

// CreateSubCategory stores sc under an existing parent; sc takes the
// parent's type.
func (s *CatalogService) CreateSubCategory(ctx context.Context, sc core.SubCategory) (core.SubCategory, error) {
	sc.ID = uuid.NewString()
	sc, err := s.saveSubCategory(ctx, sc, false)
	if err != nil {
		return core.SubCategory{}, err
	}
	s.written(ctx, "Subcategory created", log.OpCreate, "subcategory", sc.ID)
	return sc, nil
}

func (s *CatalogService) UpdateSubCategory(ctx context.Context, sc core.SubCategory) (core.SubCategory, error) {
	sc, err := s.saveSubCategory(ctx, sc, true)
	if err != nil {
		return core.SubCategory{}, err
	}
	s.written(ctx, "Subcategory updated", log.OpUpdate, "subcategory", sc.ID)
	return sc, nil
}

func (s *CatalogService) saveSubCategory(ctx context.Context, sc core.SubCategory, existing bool) (core.SubCategory, error) {
	ds, err := s.store.Dataset(ctx)
	if err != nil {
		return core.SubCategory{}, fmt.Errorf("load dataset: %w", err)
	}
	if _, ok := ds.SubCategory(sc.ID); existing && !ok {
		return core.SubCategory{}, fmt.Errorf("subcategory %s: %w", sc.ID, ledger.ErrNotFound)
	}
	if err := sc.Validate(); err != nil {
		return core.SubCategory{}, &ValidationError{Err: err}
	}
	parent, ok := ds.Category(sc.ParentID)
	if !ok {
		return core.SubCategory{}, &ValidationError{Err: fmt.Errorf("%w: %s", core.ErrUnknownCategory, sc.ParentID)}
	}
	sc.Type = parent.Type
	if err := s.store.SaveSubCategory(ctx, sc); err != nil {
		return core.SubCategory{}, fmt.Errorf("save subcategory: %w", err)
	}
	return sc, nil
}

// DeleteSubCategory removes the subcategory and detaches it from
// transactions, which keep their category.
func (s *CatalogService) DeleteSubCategory(ctx context.Context, id string) error {
	if err := s.store.DeleteSubCategory(ctx, id); err != nil {
		return err
	}
	s.written(ctx, "Subcategory deleted", log.OpDelete, "subcategory", id)
	return nil
}

func (s *CatalogService) CreateBankAccount(ctx context.Context, b core.BankAccount) (core.BankAccount, error) {
	b.ID = uuid.NewString()
	if err := b.Validate(); err != nil {
		return core.BankAccount{}, &ValidationError{Err: err}
	}
	if err := s.store.SaveBankAccount(ctx, b); err != nil {
		return core.BankAccount{}, fmt.Errorf("save bank account: %w", err)
	}
	s.written(ctx, "Bank account created", log.OpCreate, "bank_account", b.ID)
	return b, nil
}

func (s *CatalogService) UpdateBankAccount(ctx context.Context, b core.BankAccount) (core.BankAccount, error) {
	ds, err := s.store.Dataset(ctx)
	if err != nil {
		return core.BankAccount{}, fmt.Errorf("load dataset: %w", err)
	}
	if _, ok := ds.BankAccount(b.ID); !ok {
		return core.BankAccount{}, fmt.Errorf("bank account %s: %w", b.ID, ledger.ErrNotFound)
	}
	if err := b.Validate(); err != nil {
		return core.BankAccount{}, &ValidationError{Err: err}
	}
	if err := s.store.SaveBankAccount(ctx, b); err != nil {
		return core.BankAccount{}, fmt.Errorf("save bank account: %w", err)
	}
	s.written(ctx, "Bank account updated", log.OpUpdate, "bank_account", b.ID)
	return b, nil
}

// DeleteBankAccount removes the account. Transactions still pointing at it
// are reported under the fallback bank.
func (s *CatalogService) DeleteBankAccount(ctx context.Context, id string) error {
	if err := s.store.DeleteBankAccount(ctx, id); err != nil {
		return err
	}
	s.written(ctx, "Bank account deleted", log.OpDelete, "bank_account", id)
	return nil
}

func (s *CatalogService) written(ctx context.Context, msg, op, entity, id string) {
	s.logger.LogWrite(ctx, msg, op, log.LogFields{log.FieldEntity: entity, log.FieldEntityID: id})
	s.changed(ctx, amqp.NewDatasetChangedMessage(amqp.ReasonCatalogChanged, "", 0))
}
