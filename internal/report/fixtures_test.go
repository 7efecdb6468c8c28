package report

import "carteira/internal/core"

func brl(units int64) core.Money {
	return core.Money{Cents: units * 100}
}

func sampleDataset() core.Dataset {
	return core.Dataset{
		Categories: []core.Category{
			{ID: "salary", Name: "Salary", Type: core.Income, Color: "#10B981"},
			{ID: "rent", Name: "Rent", Type: core.Expense, Color: "#EF4444"},
			{ID: "food", Name: "Alimentação", Type: core.Expense, Color: "#F59E0B"},
		},
		SubCategories: []core.SubCategory{
			{ID: "market", Name: "Mercado", ParentID: "food", Type: core.Expense},
			{ID: "restaurant", Name: "Restaurante", ParentID: "food", Type: core.Expense},
		},
		BankAccounts: []core.BankAccount{
			{ID: "nu", BankName: "Nubank", AccountNumber: "001", Type: core.Brokerage},
			{ID: "itau", BankName: "Itaú", AccountNumber: "002", Type: core.Savings},
		},
		Transactions: []core.Transaction{
			{ID: "t1", Type: core.Income, Amount: brl(1000), CategoryID: "salary", Received: true, Date: core.NewDate(2024, 3, 10)},
			{ID: "t2", Type: core.Expense, Amount: brl(300), CategoryID: "rent", Date: core.NewDate(2024, 3, 5)},
		},
	}
}

// richDataset spans two years, all transaction types and some dangling
// references.
func richDataset() core.Dataset {
	ds := sampleDataset()
	ds.Transactions = []core.Transaction{
		{ID: "i1", Type: core.Income, Amount: brl(5000), CategoryID: "salary", Received: true, Date: core.NewDate(2024, 1, 5)},
		{ID: "i2", Type: core.Income, Amount: brl(5000), CategoryID: "salary", Date: core.NewDate(2024, 2, 5)},
		{ID: "i3", Type: core.Income, Amount: brl(200), CategoryID: "gone", Received: true, Date: core.NewDate(2023, 1, 20)},
		{ID: "e1", Type: core.Expense, Amount: brl(1500), CategoryID: "rent", Paid: true, Date: core.NewDate(2024, 1, 10)},
		{ID: "e2", Type: core.Expense, Amount: brl(320), CategoryID: "food", SubCategoryID: "market", Paid: true, Date: core.NewDate(2024, 1, 12)},
		{ID: "e3", Type: core.Expense, Amount: brl(80), CategoryID: "food", SubCategoryID: "restaurant", Date: core.NewDate(2024, 2, 1)},
		{ID: "e4", Type: core.Expense, Amount: brl(45), CategoryID: "", Date: core.NewDate(2023, 12, 30)},
		{ID: "v1", Type: core.Investment, Amount: brl(1000), BankAccountID: "nu", Date: core.NewDate(2024, 1, 15)},
		{ID: "v2", Type: core.Investment, Amount: brl(-400), BankAccountID: "nu", Date: core.NewDate(2024, 2, 15)},
		{ID: "v3", Type: core.Investment, Amount: brl(250), BankAccountID: "closed", Date: core.NewDate(2024, 2, 20)},
		{ID: "x1", Type: core.Expense, Amount: brl(999), CategoryID: "rent", Date: core.Date{}},
	}
	return ds
}
