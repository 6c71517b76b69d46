package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxInstallments caps a schedule at fifty years of monthly payments.
const MaxInstallments = 600

// PurchaseInput is what a caller collects to register a purchase.
type PurchaseInput struct {
	Name              string          `json:"name"`
	Category          string          `json:"category"`
	PurchaseDate      Date            `json:"purchaseDate"`
	TotalValue        decimal.Decimal `json:"totalValue"`
	InstallmentsCount int             `json:"installmentsCount"`
	DueDay            *int            `json:"dueDay"`
	Notes             string          `json:"notes"`
}

// Normalize trims text fields and coerces a missing or non-positive count to 1.
func (in PurchaseInput) Normalize() PurchaseInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	in.Notes = strings.TrimSpace(in.Notes)
	if in.InstallmentsCount < 1 {
		in.InstallmentsCount = 1
	}
	return in
}

func (in PurchaseInput) Validate() error {
	if in.Name == "" {
		return ErrEmptyName
	}
	if len(in.Name) > 200 {
		return fmt.Errorf("%w: name too long (max 200 characters)", ErrEmptyName)
	}
	if err := in.PurchaseDate.Validate(); err != nil {
		return err
	}
	if !in.TotalValue.IsPositive() {
		return ErrInvalidAmount
	}
	if in.InstallmentsCount > MaxInstallments {
		return fmt.Errorf("%w: at most %d installments", ErrInvalidCount, MaxInstallments)
	}
	if in.DueDay != nil && !ValidDueDay(*in.DueDay) {
		return ErrInvalidDueDay
	}
	return nil
}

// NewExpenseID returns a fresh opaque expense identifier.
func NewExpenseID() string {
	return uuid.NewString()
}

// InstallmentID derives the installment key from its parent and sequence number.
func InstallmentID(expenseID string, number int) string {
	return fmt.Sprintf("%s::%d", expenseID, number)
}

// BuildSchedule turns a purchase into its expense record and the ordered
// installments due one month apart. Every installment carries the same plain
// share total/count; no remainder is moved between installments.
func BuildSchedule(in PurchaseInput, id string, now time.Time) (Expense, []Installment, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return Expense{}, nil, err
	}

	count := in.InstallmentsCount
	per := in.TotalValue.Div(decimal.NewFromInt(int64(count)))

	expense := Expense{
		ID:                id,
		Name:              in.Name,
		Category:          in.Category,
		PurchaseDate:      in.PurchaseDate,
		TotalValue:        in.TotalValue,
		InstallmentsCount: count,
		PerInstallment:    per,
		DueDay:            in.DueDay,
		Notes:             in.Notes,
		MonthKey:          MonthKey(in.PurchaseDate),
		CreatedAt:         now,
	}

	installments := make([]Installment, count)
	for i := range installments {
		number := i + 1
		due := AddMonthsKeepingDay(in.PurchaseDate, i, in.DueDay)
		installments[i] = Installment{
			ID:        InstallmentID(id, number),
			ExpenseID: id,
			Number:    number,
			Total:     count,
			Value:     per,
			DueDate:   due,
			MonthKey:  MonthKey(due),
			CreatedAt: now,
		}
	}

	return expense, installments, nil
}
