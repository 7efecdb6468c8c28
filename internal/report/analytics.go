package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"carteira/internal/core"
)

// MatrixRow is a category or subcategory with one total per month.
type MatrixRow struct {
	Ref           Ref          `json:"ref"`
	Color         string       `json:"color,omitempty"`
	MonthlyTotals []core.Money `json:"monthlyTotals"`
	Total         core.Money   `json:"total"`
	SubRows       []MatrixRow  `json:"subcategories,omitempty"`
}

// CategoryMatrix is the category by month table of the analytics views.
type CategoryMatrix struct {
	Type        core.TransactionType `json:"type"`
	Rows        []MatrixRow          `json:"rows"`
	MonthTotals []core.Money         `json:"monthTotals"`
	GrandTotal  core.Money           `json:"grandTotal"`
}

// MatrixSort orders matrix rows.
type MatrixSort string

const (
	MatrixByName  MatrixSort = "name"
	MatrixByTotal MatrixSort = "total"
)

// BuildCategoryMatrix lays out the transactions of one type by category and
// calendar month. Every category of that type gets a row, even when empty;
// transactions whose category cannot be resolved get a trailing row of their
// own. txs is expected to be filtered already.
func BuildCategoryMatrix(ds core.Dataset, txs []core.Transaction, typ core.TransactionType, by MatrixSort, order Order) CategoryMatrix {
	res := NewResolver(ds)
	m := CategoryMatrix{Type: typ, MonthTotals: make([]core.Money, 12)}

	rowIndex := make(map[string]int)
	for _, c := range ds.Categories {
		if c.Type != typ {
			continue
		}
		row := MatrixRow{Ref: res.Category(c.ID), Color: c.Color, MonthlyTotals: make([]core.Money, 12)}
		for _, s := range ds.SubCategories {
			if s.ParentID == c.ID {
				row.SubRows = append(row.SubRows, MatrixRow{Ref: res.SubCategory(s.ID, c.ID), MonthlyTotals: make([]core.Money, 12)})
			}
		}
		rowIndex[c.ID] = len(m.Rows)
		m.Rows = append(m.Rows, row)
	}

	unresolved := -1
	for _, tx := range txs {
		if tx.Type != typ || tx.Date.IsZero() {
			continue
		}
		i, ok := rowIndex[tx.CategoryID]
		if !ok {
			if unresolved < 0 {
				unresolved = len(m.Rows)
				m.Rows = append(m.Rows, MatrixRow{Ref: Ref{}, MonthlyTotals: make([]core.Money, 12)})
			}
			i = unresolved
		}
		month := tx.Date.Month() - 1
		row := &m.Rows[i]
		row.MonthlyTotals[month] = row.MonthlyTotals[month].Add(tx.Amount)
		row.Total = row.Total.Add(tx.Amount)
		for j := range row.SubRows {
			if row.SubRows[j].Ref.ID == tx.SubCategoryID {
				sub := &row.SubRows[j]
				sub.MonthlyTotals[month] = sub.MonthlyTotals[month].Add(tx.Amount)
				sub.Total = sub.Total.Add(tx.Amount)
			}
		}
		m.MonthTotals[month] = m.MonthTotals[month].Add(tx.Amount)
		m.GrandTotal = m.GrandTotal.Add(tx.Amount)
	}

	sortMatrix(m.Rows, by, order)
	if m.Rows == nil {
		m.Rows = []MatrixRow{}
	}
	return m
}

func sortMatrix(rows []MatrixRow, by MatrixSort, order Order) {
	col := collate.New(language.BrazilianPortuguese, collate.IgnoreCase)
	sort.SliceStable(rows, func(i, j int) bool {
		// The unresolved row always goes last.
		if rows[i].Ref.Resolved != rows[j].Ref.Resolved {
			return rows[i].Ref.Resolved
		}
		var c int
		if by == MatrixByTotal {
			c = compareInt(rows[i].Total.Cents, rows[j].Total.Cents)
		} else {
			c = col.CompareString(rows[i].Ref.Name, rows[j].Ref.Name)
		}
		if order == Desc {
			return c > 0
		}
		return c < 0
	})
}

// ParseMatrixSort defaults to name ascending and total descending.
func ParseMatrixSort(by, order string) (MatrixSort, Order, error) {
	s := MatrixSort(strings.ToLower(strings.TrimSpace(by)))
	switch s {
	case "":
		s = MatrixByName
	case MatrixByName, MatrixByTotal:
	default:
		return "", "", fmt.Errorf("%w: sort %q", ErrInvalidSelector, by)
	}
	o, err := parseOrder(order, s == MatrixByTotal)
	if err != nil {
		return "", "", err
	}
	return s, o, nil
}

// BankMovement summarizes the investment flow of one bank account.
type BankMovement struct {
	Bank        Ref        `json:"bank"`
	Entries     core.Money `json:"entries"`
	Withdrawals core.Money `json:"withdrawals"`
	Total       core.Money `json:"total"`
}

// BankStatement is the investment statement: per bank movements plus
// overall figures.
type BankStatement struct {
	Banks       []BankMovement `json:"banks"`
	Entries     core.Money     `json:"entries"`
	Withdrawals core.Money     `json:"withdrawals"`
	Total       core.Money     `json:"total"`
}

// BuildBankStatement splits investment transactions into entries (positive
// amounts) and withdrawals (absolute value of negative amounts). Banks with
// no movement are omitted; the rest are sorted by absolute net total.
func BuildBankStatement(ds core.Dataset, txs []core.Transaction) BankStatement {
	res := NewResolver(ds)
	index := make(map[string]int)
	st := BankStatement{Banks: []BankMovement{}}

	for _, tx := range txs {
		if tx.Type != core.Investment {
			continue
		}
		ref := res.Bank(tx.BankAccountID)
		i, ok := index[ref.ID]
		if !ok {
			i = len(st.Banks)
			index[ref.ID] = i
			st.Banks = append(st.Banks, BankMovement{Bank: ref})
		}
		b := &st.Banks[i]
		if tx.Amount.Cents > 0 {
			b.Entries = b.Entries.Add(tx.Amount)
			st.Entries = st.Entries.Add(tx.Amount)
		} else {
			b.Withdrawals = b.Withdrawals.Add(tx.Amount.Abs())
			st.Withdrawals = st.Withdrawals.Add(tx.Amount.Abs())
		}
		b.Total = b.Total.Add(tx.Amount)
		st.Total = st.Total.Add(tx.Amount)
	}

	kept := st.Banks[:0]
	for _, b := range st.Banks {
		if !b.Total.IsZero() || !b.Entries.IsZero() || !b.Withdrawals.IsZero() {
			kept = append(kept, b)
		}
	}
	st.Banks = kept
	sort.SliceStable(st.Banks, func(i, j int) bool {
		return st.Banks[i].Total.Abs().Cents > st.Banks[j].Total.Abs().Cents
	})
	return st
}

// ConsolidatedRow is one month of the annual summary table.
type ConsolidatedRow struct {
	Month        int        `json:"month"`
	Label        string     `json:"label"`
	Income       core.Money `json:"income"`
	Expenses     core.Money `json:"expenses"`
	Investments  core.Money `json:"investments"`
	Balance      core.Money `json:"balance"`
	FinalBalance core.Money `json:"finalBalance"`
}

// Consolidated is the twelve month summary with a totals row.
type Consolidated struct {
	Year   int               `json:"year"`
	Months []ConsolidatedRow `json:"months"`
	Totals ConsolidatedRow   `json:"totals"`
}

// BuildConsolidated summarizes each month of year. With AllYears each row
// aggregates that month across every year.
func BuildConsolidated(ds core.Dataset, year int) Consolidated {
	res := NewResolver(ds)
	c := Consolidated{Year: year, Months: make([]ConsolidatedRow, 12), Totals: ConsolidatedRow{Label: "Total"}}
	for i := range c.Months {
		p := Period{Year: year, Month: i + 1}
		r := Summarize(FilterPeriod(ds.Transactions, p), res, p)
		row := ConsolidatedRow{
			Month:        i + 1,
			Label:        MonthAbbreviations[i],
			Income:       r.TotalIncome,
			Expenses:     r.TotalExpenses,
			Investments:  r.TotalInvestments,
			Balance:      r.Balance,
			FinalBalance: r.FinalBalance,
		}
		c.Months[i] = row
		c.Totals.Income = c.Totals.Income.Add(row.Income)
		c.Totals.Expenses = c.Totals.Expenses.Add(row.Expenses)
		c.Totals.Investments = c.Totals.Investments.Add(row.Investments)
		c.Totals.Balance = c.Totals.Balance.Add(row.Balance)
		c.Totals.FinalBalance = c.Totals.FinalBalance.Add(row.FinalBalance)
	}
	return c
}

// PendingItem is an unpaid expense with its display title.
type PendingItem struct {
	Transaction core.Transaction `json:"transaction"`
	Title       string           `json:"title"`
	AmountLabel string           `json:"amountLabel"`
	Overdue     bool             `json:"overdue"`
}

// Pending lists unpaid expenses, oldest first.
type Pending struct {
	Items     []PendingItem `json:"items"`
	Remaining int           `json:"remaining"`
	Total     core.Money    `json:"total"`
}

// PendingExpenses returns up to limit unpaid expenses ordered by date, oldest
// first, and how many more exist. Expenses dated before today are overdue.
// Undated expenses sort last.
func PendingExpenses(ds core.Dataset, limit int, today time.Time) Pending {
	res := NewResolver(ds)
	var unpaid []core.Transaction
	for _, tx := range ds.Transactions {
		if tx.Type == core.Expense && !tx.Paid {
			unpaid = append(unpaid, tx)
		}
	}
	sort.SliceStable(unpaid, func(i, j int) bool {
		a, b := unpaid[i].Date, unpaid[j].Date
		if a.IsZero() || b.IsZero() {
			return b.IsZero() && !a.IsZero()
		}
		return a.Before(b.Time)
	})

	p := Pending{Items: []PendingItem{}}
	start := core.NewDate(today.Year(), int(today.Month()), today.Day())
	for i, tx := range unpaid {
		p.Total = p.Total.Add(tx.Amount)
		if limit > 0 && i >= limit {
			p.Remaining++
			continue
		}
		p.Items = append(p.Items, PendingItem{
			Transaction: tx,
			Title:       res.Title(tx),
			AmountLabel: FormatBRL(tx.Amount),
			Overdue:     !tx.Date.IsZero() && tx.Date.Before(start.Time),
		})
	}
	return p
}

// AvailableYears lists the distinct years present, most recent first.
func AvailableYears(txs []core.Transaction) []int {
	seen := make(map[int]bool)
	years := []int{}
	for _, tx := range txs {
		if tx.Date.IsZero() || seen[tx.Date.Year()] {
			continue
		}
		seen[tx.Date.Year()] = true
		years = append(years, tx.Date.Year())
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years
}

// Recent returns the n most recent dated transactions, newest first.
func Recent(txs []core.Transaction, n int) []core.Transaction {
	dated := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if !tx.Date.IsZero() {
			dated = append(dated, tx)
		}
	}
	sort.SliceStable(dated, func(i, j int) bool {
		return dated[i].Date.After(dated[j].Date.Time)
	})
	if n >= 0 && len(dated) > n {
		dated = dated[:n]
	}
	return dated
}
