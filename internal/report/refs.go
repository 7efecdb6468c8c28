package report

import "carteira/internal/core"

// Display labels used when a reference cannot be resolved.
const (
	FallbackCategory = "Outros"
	FallbackBank     = "Conta não especificada"
	FallbackListing  = "Categoria não encontrada"
)

// Ref is a reference to a category, subcategory or bank account. An
// unresolved Ref has an empty ID and Resolved false, so every dangling or
// missing reference of one kind lands in the same bucket.
type Ref struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	Account  string `json:"account,omitempty"`
	Resolved bool   `json:"resolved"`
}

// Label returns the entity name, or fallback when unresolved.
func (r Ref) Label(fallback string) string {
	if !r.Resolved {
		return fallback
	}
	return r.Name
}

// Resolver maps identifiers to references using a dataset snapshot.
type Resolver struct {
	categories    map[string]core.Category
	subcategories map[string]core.SubCategory
	banks         map[string]core.BankAccount
}

func NewResolver(ds core.Dataset) *Resolver {
	r := &Resolver{
		categories:    make(map[string]core.Category, len(ds.Categories)),
		subcategories: make(map[string]core.SubCategory, len(ds.SubCategories)),
		banks:         make(map[string]core.BankAccount, len(ds.BankAccounts)),
	}
	for _, c := range ds.Categories {
		r.categories[c.ID] = c
	}
	for _, s := range ds.SubCategories {
		r.subcategories[s.ID] = s
	}
	for _, b := range ds.BankAccounts {
		r.banks[b.ID] = b
	}
	return r
}

func (r *Resolver) Category(id string) Ref {
	if c, ok := r.categories[id]; ok && id != "" {
		return Ref{ID: c.ID, Name: c.Name, Resolved: true}
	}
	return Ref{}
}

// SubCategory resolves a subcategory only when it belongs to categoryID.
func (r *Resolver) SubCategory(id, categoryID string) Ref {
	if s, ok := r.subcategories[id]; ok && id != "" && s.ParentID == categoryID {
		return Ref{ID: s.ID, Name: s.Name, Resolved: true}
	}
	return Ref{}
}

// Bank resolves a bank account. Name is the bank name; Account carries the
// masked account number.
func (r *Resolver) Bank(id string) Ref {
	if b, ok := r.banks[id]; ok && id != "" {
		return Ref{ID: b.ID, Name: b.BankName, Account: MaskAccount(b.AccountNumber), Resolved: true}
	}
	return Ref{}
}

// BankLabel is the bank shown in listings, "Nubank - ****1234", so that two
// accounts at the same bank stay apart.
func (r *Resolver) BankLabel(id string) string {
	ref := r.Bank(id)
	if !ref.Resolved {
		return FallbackBank
	}
	if ref.Account == "" {
		return ref.Name
	}
	return ref.Name + " - " + ref.Account
}

// MaskAccount keeps the last four characters of an account number.
func MaskAccount(number string) string {
	if number == "" {
		return ""
	}
	runes := []rune(number)
	return "****" + string(runes[max(0, len(runes)-4):])
}

// Color returns the category color, or "" when unknown.
func (r *Resolver) Color(categoryID string) string {
	return r.categories[categoryID].Color
}

// Title is the label shown for a transaction in listings: its subcategory
// when set, otherwise its category, otherwise its bank for investments.
func (r *Resolver) Title(tx core.Transaction) string {
	if sub := r.SubCategory(tx.SubCategoryID, tx.CategoryID); sub.Resolved {
		return sub.Name
	}
	if tx.Type == core.Investment {
		return r.BankLabel(tx.BankAccountID)
	}
	return r.Category(tx.CategoryID).Label(FallbackListing)
}

// Group is the label used by the category sort key: the category for incomes
// and expenses, the bank for investments.
func (r *Resolver) Group(tx core.Transaction) string {
	if tx.Type == core.Investment {
		return r.BankLabel(tx.BankAccountID)
	}
	return r.Category(tx.CategoryID).Label(FallbackListing)
}
