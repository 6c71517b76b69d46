package services

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"

	"parcelas/internal/core"
)

// Summarize totals the installments of items that fall due in monthKey.
// Installments of the same expense due in other months do not count toward
// the totals but still show in the per-expense paid/total progress.
func Summarize(monthKey string, items []core.MonthlyExpense) core.MonthSummary {
	summary := core.MonthSummary{
		MonthKey: monthKey,
		Due:      decimal.Zero,
		Paid:     decimal.Zero,
		Open:     decimal.Zero,
		Expenses: make([]core.ExpenseProgress, 0, len(items)),
	}

	for _, item := range items {
		dueThisMonth := decimal.Zero
		for _, inst := range item.Installments {
			if inst.MonthKey != monthKey {
				continue
			}
			dueThisMonth = dueThisMonth.Add(inst.Value)
			if inst.Paid {
				summary.Paid = summary.Paid.Add(inst.Value)
			}
		}
		summary.Due = summary.Due.Add(dueThisMonth)

		summary.Expenses = append(summary.Expenses, core.ExpenseProgress{
			ExpenseID:      item.Expense.ID,
			Name:           item.Expense.Name,
			Category:       item.Expense.Category,
			PurchaseDate:   item.Expense.PurchaseDate,
			TotalValue:     item.Expense.TotalValue,
			PerInstallment: item.Expense.PerInstallment,
			DueThisMonth:   dueThisMonth,
			PaidCount:      item.PaidCount,
			TotalCount:     item.TotalCount,
		})
	}
	summary.Open = summary.Due.Sub(summary.Paid)

	// newest purchase first, then by name
	slices.SortStableFunc(summary.Expenses, func(a, b core.ExpenseProgress) int {
		if c := b.PurchaseDate.Compare(a.PurchaseDate.Time); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})

	return summary
}
