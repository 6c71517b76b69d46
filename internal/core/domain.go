package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

type (
	// Date is a calendar date at UTC midnight.
	Date struct {
		time.Time
	}

	Expense struct {
		ID                string          `json:"id"`
		Name              string          `json:"name"`
		Category          string          `json:"category"`
		PurchaseDate      Date            `json:"purchaseDate"`
		TotalValue        decimal.Decimal `json:"totalValue"`
		InstallmentsCount int             `json:"installmentsCount"`
		PerInstallment    decimal.Decimal `json:"perInstallment"`
		DueDay            *int            `json:"dueDay"`
		Notes             string          `json:"notes"`
		MonthKey          string          `json:"monthKey"`
		CreatedAt         time.Time       `json:"createdAt"`
	}

	Installment struct {
		ID        string          `json:"id"`
		ExpenseID string          `json:"expenseId"`
		Number    int             `json:"number"`
		Total     int             `json:"total"`
		Value     decimal.Decimal `json:"value"`
		DueDate   Date            `json:"dueDate"`
		MonthKey  string          `json:"monthKey"`
		Paid      bool            `json:"paid"`
		PaidAt    *time.Time      `json:"paidAt"`
		CreatedAt time.Time       `json:"createdAt"`
	}

	// MonthlyExpense pairs an expense with its installment set and paid progress.
	MonthlyExpense struct {
		Expense      Expense       `json:"expense"`
		Installments []Installment `json:"installments"`
		PaidCount    int           `json:"paidCount"`
		TotalCount   int           `json:"totalCount"`
	}
)

var (
	ErrEmptyName       = errors.New("empty name")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidDueDay   = errors.New("invalid due day")
	ErrInvalidCount    = errors.New("invalid installments count")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidMonthKey = errors.New("invalid month key")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON shadows the promoted time.Time encoding so dates stay YYYY-MM-DD.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, b)
	}
	return d.UnmarshalText([]byte(s))
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// ValidDueDay reports whether day can be used as a due-day override.
func ValidDueDay(day int) bool {
	return day >= 1 && day <= 31
}

// PaidCount returns how many installments in the slice are paid.
func PaidCount(installments []Installment) int {
	n := 0
	for _, inst := range installments {
		if inst.Paid {
			n++
		}
	}
	return n
}

// IsValidation reports whether err was caused by rejected input.
func IsValidation(err error) bool {
	for _, target := range []error{ErrEmptyName, ErrInvalidAmount, ErrInvalidDueDay, ErrInvalidCount, ErrInvalidDate, ErrInvalidMonthKey} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
