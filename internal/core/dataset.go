package core

import "fmt"

// Dataset is the set of collections loaded by a persistence backend.
type Dataset struct {
	Transactions  []Transaction `json:"transactions"`
	Categories    []Category    `json:"categories"`
	SubCategories []SubCategory `json:"subcategories"`
	BankAccounts  []BankAccount `json:"bankAccounts"`
}

func (ds Dataset) Category(id string) (Category, bool) {
	for _, c := range ds.Categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

func (ds Dataset) SubCategory(id string) (SubCategory, bool) {
	for _, s := range ds.SubCategories {
		if s.ID == id {
			return s, true
		}
	}
	return SubCategory{}, false
}

func (ds Dataset) BankAccount(id string) (BankAccount, bool) {
	for _, b := range ds.BankAccounts {
		if b.ID == id {
			return b, true
		}
	}
	return BankAccount{}, false
}

// ValidateTransaction validates tx and checks its references against the
// dataset. It is meant for the data-entry boundary; reports never call it.
func (ds Dataset) ValidateTransaction(tx Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	if tx.Type != Investment || tx.CategoryID != "" {
		cat, ok := ds.Category(tx.CategoryID)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownCategory, tx.CategoryID)
		}
		if tx.Type != Investment && cat.Type != tx.Type {
			return ErrCategoryMismatch
		}
	}
	if tx.SubCategoryID != "" {
		sub, ok := ds.SubCategory(tx.SubCategoryID)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownSubCategory, tx.SubCategoryID)
		}
		if sub.ParentID != tx.CategoryID {
			return ErrSubCategoryMismatch
		}
	}
	if tx.BankAccountID != "" {
		if _, ok := ds.BankAccount(tx.BankAccountID); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownBankAccount, tx.BankAccountID)
		}
	}
	return nil
}

// Validate checks every category, subcategory and bank account. Transactions
// are not checked here so that historical data with dangling references can
// still be loaded and reported on.
func (ds Dataset) Validate() error {
	for _, c := range ds.Categories {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("category %s: %w", c.ID, err)
		}
	}
	for _, s := range ds.SubCategories {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("subcategory %s: %w", s.ID, err)
		}
	}
	for _, b := range ds.BankAccounts {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("bank account %s: %w", b.ID, err)
		}
	}
	return nil
}
