package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var testNow = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func purchase(total string, count int, date Date, dueDay *int) PurchaseInput {
	return PurchaseInput{
		Name:              "Notebook",
		Category:          "Trabalho",
		PurchaseDate:      date,
		TotalValue:        decimal.RequireFromString(total),
		InstallmentsCount: count,
		DueDay:            dueDay,
	}
}

func TestBuildSchedule_ThreeInstallments(t *testing.T) {
	exp, insts, err := BuildSchedule(purchase("1200", 3, NewDate(2024, 1, 15), nil), "exp-1", testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if exp.MonthKey != "2024-01" {
		t.Errorf("expense month key = %q", exp.MonthKey)
	}
	if !exp.PerInstallment.Equal(decimal.NewFromInt(400)) {
		t.Errorf("per installment = %s", exp.PerInstallment)
	}
	if len(insts) != 3 {
		t.Fatalf("expected 3 installments, got %d", len(insts))
	}

	wantDue := []Date{NewDate(2024, 1, 15), NewDate(2024, 2, 15), NewDate(2024, 3, 15)}
	for i, inst := range insts {
		if inst.Number != i+1 || inst.Total != 3 {
			t.Errorf("installment %d: number=%d total=%d", i, inst.Number, inst.Total)
		}
		if inst.ID != InstallmentID("exp-1", i+1) || inst.ExpenseID != "exp-1" {
			t.Errorf("installment %d: id=%q expense=%q", i, inst.ID, inst.ExpenseID)
		}
		if !inst.DueDate.Equal(wantDue[i].Time) {
			t.Errorf("installment %d: due %v, want %v", i, inst.DueDate, wantDue[i])
		}
		if inst.MonthKey != MonthKey(inst.DueDate) {
			t.Errorf("installment %d: month key %q does not match due date", i, inst.MonthKey)
		}
		if !inst.Value.Equal(decimal.NewFromInt(400)) || inst.Paid || inst.PaidAt != nil {
			t.Errorf("installment %d: unexpected state %+v", i, inst)
		}
		if !inst.CreatedAt.Equal(testNow) {
			t.Errorf("installment %d: created at %v", i, inst.CreatedAt)
		}
	}
}

func TestBuildSchedule_EndOfMonthClamp(t *testing.T) {
	_, insts, err := BuildSchedule(purchase("100", 2, NewDate(2024, 1, 31), nil), "exp-2", testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := insts[1].DueDate; !got.Equal(NewDate(2024, 2, 29).Time) {
		t.Fatalf("second installment due %v, want 2024-02-29", got)
	}
}

func TestBuildSchedule_DueDayOverride(t *testing.T) {
	_, insts, err := BuildSchedule(purchase("4800", 18, NewDate(2024, 1, 20), intPtr(12)), "exp-3", testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !insts[0].DueDate.Equal(NewDate(2024, 1, 12).Time) {
		t.Errorf("first due %v", insts[0].DueDate)
	}
	if !insts[17].DueDate.Equal(NewDate(2025, 6, 12).Time) {
		t.Errorf("last due %v", insts[17].DueDate)
	}
}

func TestBuildSchedule_CountCoercion(t *testing.T) {
	for _, count := range []int{0, -4} {
		exp, insts, err := BuildSchedule(purchase("50", count, NewDate(2024, 5, 1), nil), "exp", testNow)
		if err != nil {
			t.Fatalf("count %d: unexpected error %v", count, err)
		}
		if exp.InstallmentsCount != 1 || len(insts) != 1 {
			t.Fatalf("count %d: expected coercion to 1, got %d/%d", count, exp.InstallmentsCount, len(insts))
		}
	}
}

func TestBuildSchedule_SumReconciles(t *testing.T) {
	tolerance := decimal.New(1, -12)
	for _, tc := range []struct {
		total string
		count int
	}{
		{"100", 3},
		{"119.90", 7},
		{"4800", 18},
		{"0.01", 3},
		{"356.40", 1},
	} {
		exp, insts, err := BuildSchedule(purchase(tc.total, tc.count, NewDate(2024, 1, 1), nil), "exp", testNow)
		if err != nil {
			t.Fatalf("%s/%d: %v", tc.total, tc.count, err)
		}
		if len(insts) != tc.count {
			t.Fatalf("%s/%d: got %d installments", tc.total, tc.count, len(insts))
		}
		product := exp.PerInstallment.Mul(decimal.NewFromInt(int64(tc.count)))
		if product.Sub(exp.TotalValue).Abs().GreaterThan(tolerance) {
			t.Errorf("%s/%d: per x count = %s, total %s", tc.total, tc.count, product, exp.TotalValue)
		}
		for _, inst := range insts {
			if !inst.Value.Equal(exp.PerInstallment) {
				t.Errorf("%s/%d: installment %d value %s differs from share %s", tc.total, tc.count, inst.Number, inst.Value, exp.PerInstallment)
			}
		}
	}
}

func TestBuildSchedule_Validation(t *testing.T) {
	good := purchase("10", 1, NewDate(2024, 1, 1), nil)

	cases := []struct {
		name   string
		mutate func(*PurchaseInput)
		want   error
	}{
		{"empty name", func(in *PurchaseInput) { in.Name = "   " }, ErrEmptyName},
		{"zero date", func(in *PurchaseInput) { in.PurchaseDate = Date{} }, ErrInvalidDate},
		{"zero total", func(in *PurchaseInput) { in.TotalValue = decimal.Zero }, ErrInvalidAmount},
		{"negative total", func(in *PurchaseInput) { in.TotalValue = decimal.NewFromInt(-5) }, ErrInvalidAmount},
		{"due day zero", func(in *PurchaseInput) { in.DueDay = intPtr(0) }, ErrInvalidDueDay},
		{"due day 32", func(in *PurchaseInput) { in.DueDay = intPtr(32) }, ErrInvalidDueDay},
		{"count above cap", func(in *PurchaseInput) { in.InstallmentsCount = MaxInstallments + 1 }, ErrInvalidCount},
		{"count too large to allocate", func(in *PurchaseInput) { in.InstallmentsCount = 1 << 62 }, ErrInvalidCount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := good
			tc.mutate(&in)
			if _, _, err := BuildSchedule(in, "exp", testNow); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestBuildSchedule_MaxInstallments(t *testing.T) {
	in := purchase("600", MaxInstallments, NewDate(2024, 1, 1), nil)
	_, insts, err := BuildSchedule(in, "long", testNow)
	if err != nil {
		t.Fatalf("build schedule at the cap: %v", err)
	}
	if len(insts) != MaxInstallments {
		t.Fatalf("expected %d installments, got %d", MaxInstallments, len(insts))
	}
	if last := insts[len(insts)-1]; last.MonthKey != "2073-12" {
		t.Fatalf("expected last installment in 2073-12, got %s", last.MonthKey)
	}
}

func TestNewExpenseIDUnique(t *testing.T) {
	a, b := NewExpenseID(), NewExpenseID()
	if a == "" || a == b {
		t.Fatalf("expected distinct ids, got %q and %q", a, b)
	}
}
