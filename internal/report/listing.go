package report

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"carteira/internal/core"
)

// SortKey selects the field used to order a listing.
type SortKey string

const (
	SortNone        SortKey = ""
	SortDescription SortKey = "description"
	SortCategory    SortKey = "category"
	SortBank        SortKey = "bank"
	SortDate        SortKey = "date"
	SortAmount      SortKey = "amount"
	SortPaid        SortKey = "paid"
)

type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// ParseSort validates the sort key and order. An empty order defaults to
// descending for dates and ascending otherwise.
func ParseSort(key, order string) (SortKey, Order, error) {
	k := SortKey(strings.ToLower(strings.TrimSpace(key)))
	switch k {
	case SortNone, SortDescription, SortCategory, SortBank, SortDate, SortAmount, SortPaid:
	default:
		return "", "", fmt.Errorf("%w: sort %q", ErrInvalidSelector, key)
	}
	o, err := parseOrder(order, k == SortDate)
	if err != nil {
		return "", "", err
	}
	return k, o, nil
}

func parseOrder(s string, descByDefault bool) (Order, error) {
	switch Order(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		if descByDefault {
			return Desc, nil
		}
		return Asc, nil
	case Asc:
		return Asc, nil
	case Desc:
		return Desc, nil
	}
	return "", fmt.Errorf("%w: order %q", ErrInvalidSelector, s)
}

// SortTransactions returns a sorted copy of txs. Text keys use Brazilian
// Portuguese collation. Equal keys keep their input order in both
// directions.
func SortTransactions(txs []core.Transaction, res *Resolver, key SortKey, order Order) []core.Transaction {
	out := make([]core.Transaction, len(txs))
	copy(out, txs)
	if key == SortNone {
		return out
	}

	col := collate.New(language.BrazilianPortuguese, collate.IgnoreCase)
	cmp := func(a, b core.Transaction) int {
		switch key {
		case SortDescription:
			return col.CompareString(res.Title(a), res.Title(b))
		case SortCategory:
			return col.CompareString(res.Group(a), res.Group(b))
		case SortBank:
			return col.CompareString(res.BankLabel(a.BankAccountID), res.BankLabel(b.BankAccountID))
		case SortDate:
			return a.Date.Compare(b.Date.Time)
		case SortAmount:
			return compareInt(a.Amount.Cents, b.Amount.Cents)
		case SortPaid:
			return compareBool(a.Settled(), b.Settled())
		}
		return 0
	}

	sort.SliceStable(out, func(i, j int) bool {
		c := cmp(out[i], out[j])
		if order == Desc {
			return c > 0
		}
		return c < 0
	})
	return out
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	}
	return -1
}

var monthNames = [12]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

// NoDateLabel labels the group of transactions without a usable date.
const NoDateLabel = "Sem data"

// MonthGroup is one calendar month of a grouped listing.
type MonthGroup struct {
	Key          string             `json:"monthKey"`
	Label        string             `json:"monthLabel"`
	Count        int                `json:"count"`
	Total        core.Money         `json:"total"`
	Transactions []core.Transaction `json:"transactions"`
}

// MonthLabel renders "Março de 2024".
func MonthLabel(year, month int) string {
	if month < 1 || month > 12 {
		return NoDateLabel
	}
	name := monthNames[month-1]
	return strings.ToUpper(name[:1]) + name[1:] + fmt.Sprintf(" de %d", year)
}

// GroupByMonth partitions txs by YYYY-MM, most recent month first. Order
// inside each group follows the input. Transactions without a date form a
// last group with an empty key.
func GroupByMonth(txs []core.Transaction) []MonthGroup {
	index := make(map[string]int)
	var groups []MonthGroup
	for _, tx := range txs {
		key := tx.Date.MonthKey()
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			label := NoDateLabel
			if key != "" {
				label = MonthLabel(tx.Date.Year(), tx.Date.Month())
			}
			groups = append(groups, MonthGroup{Key: key, Label: label})
		}
		g := &groups[i]
		g.Transactions = append(g.Transactions, tx)
		g.Count++
		g.Total = g.Total.Add(tx.Amount)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Key == "" || groups[j].Key == "" {
			return groups[j].Key == "" && groups[i].Key != ""
		}
		return groups[i].Key > groups[j].Key
	})
	if groups == nil {
		groups = []MonthGroup{}
	}
	return groups
}

// Listing sorts and then groups txs.
func Listing(txs []core.Transaction, res *Resolver, key SortKey, order Order) []MonthGroup {
	return GroupByMonth(SortTransactions(txs, res, key, order))
}
