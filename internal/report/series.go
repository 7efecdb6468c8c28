package report

import (
	"github.com/shopspring/decimal"

	"carteira/internal/core"
)

// MonthAbbreviations are the pt-BR short month names, January first.
var MonthAbbreviations = [12]string{"Jan", "Fev", "Mar", "Abr", "Mai", "Jun", "Jul", "Ago", "Set", "Out", "Nov", "Dez"}

// RealizedPoint holds settled amounts for one calendar month.
type RealizedPoint struct {
	Month          int        `json:"month"`
	Label          string     `json:"label"`
	ReceivedIncome core.Money `json:"receivedIncome"`
	PaidExpenses   core.Money `json:"paidExpenses"`
	Balance        core.Money `json:"balance"`
}

// ProvisionedPoint holds every recorded amount for one calendar month.
type ProvisionedPoint struct {
	Month         int        `json:"month"`
	Label         string     `json:"label"`
	TotalIncome   core.Money `json:"totalIncome"`
	TotalExpenses core.Money `json:"totalExpenses"`
	Balance       core.Money `json:"balance"`
}

// RealizedSeries returns twelve points, January first. With AllYears each
// point aggregates that month across every year.
func RealizedSeries(txs []core.Transaction, year int) []RealizedPoint {
	points := make([]RealizedPoint, 12)
	for i := range points {
		points[i] = RealizedPoint{Month: i + 1, Label: MonthAbbreviations[i]}
	}
	for _, tx := range txs {
		if !(Period{Year: year}).Matches(tx.Date) {
			continue
		}
		p := &points[tx.Date.Month()-1]
		switch {
		case tx.Type == core.Income && tx.Received:
			p.ReceivedIncome = p.ReceivedIncome.Add(tx.Amount)
		case tx.Type == core.Expense && tx.Paid:
			p.PaidExpenses = p.PaidExpenses.Add(tx.Amount)
		}
	}
	for i := range points {
		points[i].Balance = core.Money{Cents: points[i].ReceivedIncome.Cents - points[i].PaidExpenses.Cents}
	}
	return points
}

// ProvisionedSeries is RealizedSeries without the settlement filter.
func ProvisionedSeries(txs []core.Transaction, year int) []ProvisionedPoint {
	points := make([]ProvisionedPoint, 12)
	for i := range points {
		points[i] = ProvisionedPoint{Month: i + 1, Label: MonthAbbreviations[i]}
	}
	for _, tx := range txs {
		if !(Period{Year: year}).Matches(tx.Date) {
			continue
		}
		p := &points[tx.Date.Month()-1]
		switch tx.Type {
		case core.Income:
			p.TotalIncome = p.TotalIncome.Add(tx.Amount)
		case core.Expense:
			p.TotalExpenses = p.TotalExpenses.Add(tx.Amount)
		}
	}
	for i := range points {
		points[i].Balance = core.Money{Cents: points[i].TotalIncome.Cents - points[i].TotalExpenses.Cents}
	}
	return points
}

// CashFlow is the period card shown next to the charts.
type CashFlow struct {
	ReceivedIncome      core.Money `json:"receivedIncome"`
	PaidExpenses        core.Money `json:"paidExpenses"`
	RealizedBalance     core.Money `json:"realizedBalance"`
	ProvisionedIncome   core.Money `json:"provisionedIncome"`
	ProvisionedExpenses core.Money `json:"provisionedExpenses"`
	ProvisionedBalance  core.Money `json:"provisionedBalance"`
}

func CashFlowSummary(txs []core.Transaction, p Period) CashFlow {
	var cf CashFlow
	for _, tx := range FilterPeriod(txs, p) {
		switch tx.Type {
		case core.Income:
			cf.ProvisionedIncome = cf.ProvisionedIncome.Add(tx.Amount)
			if tx.Received {
				cf.ReceivedIncome = cf.ReceivedIncome.Add(tx.Amount)
			}
		case core.Expense:
			cf.ProvisionedExpenses = cf.ProvisionedExpenses.Add(tx.Amount)
			if tx.Paid {
				cf.PaidExpenses = cf.PaidExpenses.Add(tx.Amount)
			}
		}
	}
	cf.RealizedBalance = core.Money{Cents: cf.ReceivedIncome.Cents - cf.PaidExpenses.Cents}
	cf.ProvisionedBalance = core.Money{Cents: cf.ProvisionedIncome.Cents - cf.ProvisionedExpenses.Cents}
	return cf
}

// Scale bounds a series for charting. Max is at least one currency unit and
// MinBalance is at most zero.
type Scale struct {
	Max        core.Money `json:"max"`
	MinBalance core.Money `json:"minBalance"`
	MaxBalance core.Money `json:"maxBalance"`
	Ticks      []Tick     `json:"ticks"`
}

// Tick is one labelled value of the vertical axis.
type Tick struct {
	Value core.Money `json:"value"`
	Label string     `json:"label"`
}

const (
	unit      = 100
	axisTicks = 5
)

func RealizedScale(points []RealizedPoint) Scale {
	s := Scale{Max: core.Money{Cents: unit}, MaxBalance: core.Money{Cents: unit}}
	for _, p := range points {
		s.Max.Cents = max(s.Max.Cents, p.ReceivedIncome.Cents, p.PaidExpenses.Cents)
		s.MinBalance.Cents = min(s.MinBalance.Cents, p.Balance.Cents)
		s.MaxBalance.Cents = max(s.MaxBalance.Cents, p.Balance.Cents)
	}
	s.Ticks = AxisTicks(s.Max, axisTicks)
	return s
}

func ProvisionedScale(points []ProvisionedPoint) Scale {
	s := Scale{Max: core.Money{Cents: unit}, MaxBalance: core.Money{Cents: unit}}
	for _, p := range points {
		s.Max.Cents = max(s.Max.Cents, p.TotalIncome.Cents, p.TotalExpenses.Cents)
		s.MinBalance.Cents = min(s.MinBalance.Cents, p.Balance.Cents)
		s.MaxBalance.Cents = max(s.MaxBalance.Cents, p.Balance.Cents)
	}
	s.Ticks = AxisTicks(s.Max, axisTicks)
	return s
}

// AxisTicks returns n evenly spaced values from top down to zero.
func AxisTicks(top core.Money, n int) []Tick {
	if n < 2 {
		n = 2
	}
	ticks := make([]Tick, n)
	for i := 0; i < n; i++ {
		v := core.Money{Cents: top.Cents * int64(n-1-i) / int64(n-1)}
		ticks[i] = Tick{Value: v, Label: FormatAbbreviated(v)}
	}
	return ticks
}

var (
	thousand = decimal.NewFromInt(1000)
	million  = decimal.NewFromInt(1000000)
)

// FormatAbbreviated renders an axis label: "0", "950", "1.2k", "-3.4Mi".
func FormatAbbreviated(m core.Money) string {
	if m.IsZero() {
		return "0"
	}
	sign := ""
	if m.Cents < 0 {
		sign = "-"
	}
	v := m.Abs().Decimal()
	switch {
	case v.GreaterThanOrEqual(million):
		return sign + v.Div(million).StringFixed(1) + "Mi"
	case v.GreaterThanOrEqual(thousand):
		return sign + v.Div(thousand).StringFixed(1) + "k"
	}
	return sign + v.StringFixed(0)
}
