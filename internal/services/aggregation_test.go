package services

import (
	"testing"

	"github.com/shopspring/decimal"

	"parcelas/internal/core"
)

func monthly(t *testing.T, id, name string, total string, count int, date core.Date) core.MonthlyExpense {
	t.Helper()
	e, insts, err := core.BuildSchedule(core.PurchaseInput{
		Name:              name,
		Category:          "Casa",
		PurchaseDate:      date,
		TotalValue:        decimal.RequireFromString(total),
		InstallmentsCount: count,
	}, id, date.Time)
	if err != nil {
		t.Fatalf("build schedule: %v", err)
	}
	return core.MonthlyExpense{Expense: e, Installments: insts, TotalCount: len(insts)}
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name      string
		month     string
		paidIDs   []string
		wantDue   string
		wantPaid  string
		wantOpen  string
		wantCount int
	}{
		{
			name:      "nothing paid",
			month:     "2024-02",
			wantDue:   "400",
			wantPaid:  "0",
			wantOpen:  "400",
			wantCount: 0,
		},
		{
			name:      "month installment paid",
			month:     "2024-02",
			paidIDs:   []string{"a::2"},
			wantDue:   "400",
			wantPaid:  "400",
			wantOpen:  "0",
			wantCount: 1,
		},
		{
			name:      "other month paid does not count toward totals",
			month:     "2024-02",
			paidIDs:   []string{"a::1"},
			wantDue:   "400",
			wantPaid:  "0",
			wantOpen:  "400",
			wantCount: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := monthly(t, "a", "Geladeira", "1200", 3, core.NewDate(2024, 1, 15))
			for i := range item.Installments {
				for _, id := range tt.paidIDs {
					if item.Installments[i].ID == id {
						item.Installments[i].Paid = true
					}
				}
			}
			item.PaidCount = core.PaidCount(item.Installments)

			got := Summarize(tt.month, []core.MonthlyExpense{item})

			if !got.Due.Equal(decimal.RequireFromString(tt.wantDue)) {
				t.Errorf("due = %s, want %s", got.Due, tt.wantDue)
			}
			if !got.Paid.Equal(decimal.RequireFromString(tt.wantPaid)) {
				t.Errorf("paid = %s, want %s", got.Paid, tt.wantPaid)
			}
			if !got.Open.Equal(decimal.RequireFromString(tt.wantOpen)) {
				t.Errorf("open = %s, want %s", got.Open, tt.wantOpen)
			}
			if len(got.Expenses) != 1 {
				t.Fatalf("expected 1 expense line, got %d", len(got.Expenses))
			}
			line := got.Expenses[0]
			if line.PaidCount != tt.wantCount || line.TotalCount != 3 {
				t.Errorf("progress = %d/%d, want %d/3", line.PaidCount, line.TotalCount, tt.wantCount)
			}
			if !line.DueThisMonth.Equal(decimal.NewFromInt(400)) {
				t.Errorf("due this month = %s, want 400", line.DueThisMonth)
			}
		})
	}
}

func TestSummarize_Empty(t *testing.T) {
	got := Summarize("2024-05", nil)
	if !got.Due.IsZero() || !got.Paid.IsZero() || !got.Open.IsZero() {
		t.Errorf("expected zero totals, got %+v", got)
	}
	if got.Expenses == nil || len(got.Expenses) != 0 {
		t.Errorf("expected empty non-nil expense lines, got %#v", got.Expenses)
	}
	if got.MonthKey != "2024-05" {
		t.Errorf("month key = %q", got.MonthKey)
	}
}

func TestSummarize_OrdersNewestPurchaseFirst(t *testing.T) {
	items := []core.MonthlyExpense{
		monthly(t, "old", "Sofa", "300", 3, core.NewDate(2024, 1, 5)),
		monthly(t, "new-b", "TV", "100", 1, core.NewDate(2024, 3, 1)),
		monthly(t, "new-a", "Cadeira", "100", 1, core.NewDate(2024, 3, 1)),
	}

	got := Summarize("2024-03", items)

	want := []string{"new-a", "new-b", "old"}
	for i, id := range want {
		if got.Expenses[i].ExpenseID != id {
			t.Fatalf("position %d = %s, want %s", i, got.Expenses[i].ExpenseID, id)
		}
	}
	if !got.Due.Equal(decimal.NewFromInt(300)) {
		t.Errorf("due = %s, want 300", got.Due)
	}
}
