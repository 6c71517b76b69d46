package core

import "github.com/shopspring/decimal"

// ExpenseProgress is the per-expense line of a month summary.
type ExpenseProgress struct {
	ExpenseID      string          `json:"expenseId"`
	Name           string          `json:"name"`
	Category       string          `json:"category"`
	PurchaseDate   Date            `json:"purchaseDate"`
	TotalValue     decimal.Decimal `json:"totalValue"`
	PerInstallment decimal.Decimal `json:"perInstallment"`
	DueThisMonth   decimal.Decimal `json:"dueThisMonth"`
	PaidCount      int             `json:"paidCount"`
	TotalCount     int             `json:"totalCount"`
}

// MonthSummary holds the totals of installments due in one month.
type MonthSummary struct {
	MonthKey string            `json:"monthKey"`
	Due      decimal.Decimal   `json:"due"`
	Paid     decimal.Decimal   `json:"paid"`
	Open     decimal.Decimal   `json:"open"`
	Expenses []ExpenseProgress `json:"expenses"`
}
