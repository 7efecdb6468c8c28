package report

import "carteira/internal/core"

// MonthlyReport aggregates one period. Balance excludes investments;
// FinalBalance subtracts them too.
type MonthlyReport struct {
	Period              Period     `json:"-"`
	Key                 string     `json:"month"`
	TotalIncome         core.Money `json:"totalIncome"`
	TotalReceivedIncome core.Money `json:"totalReceivedIncome"`
	TotalExpenses       core.Money `json:"totalExpenses"`
	TotalUnpaidExpenses core.Money `json:"totalUnpaidExpenses"`
	TotalInvestments    core.Money `json:"totalInvestments"`
	Balance             core.Money `json:"balance"`
	FinalBalance        core.Money `json:"finalBalance"`
	IncomeByCategory    Breakdown  `json:"incomeByCategory"`
	ExpensesByCategory  Breakdown  `json:"expensesByCategory"`
	InvestmentsByBank   Breakdown  `json:"investmentsByBank"`
	TransactionCount    int        `json:"transactionCount"`
}

// BuildMonthlyReport filters the dataset transactions to p and summarizes
// them.
func BuildMonthlyReport(ds core.Dataset, p Period) MonthlyReport {
	return Summarize(FilterPeriod(ds.Transactions, p), NewResolver(ds), p)
}

// Summarize reduces an already filtered transaction list. p only labels the
// result.
func Summarize(txs []core.Transaction, res *Resolver, p Period) MonthlyReport {
	r := MonthlyReport{Period: p, Key: p.Key(), TransactionCount: len(txs)}
	income, expenses, investments := newAccumulator(), newAccumulator(), newAccumulator()

	for _, tx := range txs {
		switch tx.Type {
		case core.Income:
			r.TotalIncome = r.TotalIncome.Add(tx.Amount)
			if tx.Received {
				r.TotalReceivedIncome = r.TotalReceivedIncome.Add(tx.Amount)
			}
			income.add(res.Category(tx.CategoryID), tx.Amount)
		case core.Expense:
			r.TotalExpenses = r.TotalExpenses.Add(tx.Amount)
			if !tx.Paid {
				r.TotalUnpaidExpenses = r.TotalUnpaidExpenses.Add(tx.Amount)
			}
			expenses.add(res.Category(tx.CategoryID), tx.Amount)
		case core.Investment:
			r.TotalInvestments = r.TotalInvestments.Add(tx.Amount)
			investments.add(res.Bank(tx.BankAccountID), tx.Amount)
		}
	}

	r.Balance = core.Money{Cents: r.TotalIncome.Cents - r.TotalExpenses.Cents}
	r.FinalBalance = core.Money{Cents: r.Balance.Cents - r.TotalInvestments.Cents}
	r.IncomeByCategory = income.breakdown()
	r.ExpensesByCategory = expenses.breakdown()
	r.InvestmentsByBank = investments.breakdown()
	return r
}

// PaidExpenses is the settled part of TotalExpenses.
func (r MonthlyReport) PaidExpenses() core.Money {
	return core.Money{Cents: r.TotalExpenses.Cents - r.TotalUnpaidExpenses.Cents}
}

// InvestmentShare is investments as a percentage of a positive balance.
func (r MonthlyReport) InvestmentShare() float64 {
	if r.Balance.Cents <= 0 {
		return 0
	}
	return Percent(r.TotalInvestments, r.Balance)
}

// ExpenseRatio is expenses as a percentage of income.
func (r MonthlyReport) ExpenseRatio() float64 {
	return Percent(r.TotalExpenses, r.TotalIncome)
}
