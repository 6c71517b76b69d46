package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"parcelas/internal/amqp"
	"parcelas/internal/core"
)

// ExpenseStore is the persistence the service orchestrates.
// *storage.SQLiteRepository satisfies it.
type ExpenseStore interface {
	MonthReader
	CreateExpenseWithInstallments(ctx context.Context, e core.Expense, installments []core.Installment) error
	GetExpenseWithInstallments(ctx context.Context, id string) (*core.Expense, []core.Installment, error)
	SetInstallmentPaid(ctx context.Context, installmentID string, paid bool) (bool, error)
	SetAllInstallmentsPaid(ctx context.Context, expenseID string, paid bool) (int, error)
	DeleteExpenseCascade(ctx context.Context, expenseID string) error
	ClearAll(ctx context.Context) error
	Close() error
}

// EventPublisher announces local changes. *amqp.Client satisfies it.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, evt *amqp.ExpenseEvent) error
	Close() error
}

// ExpenseService orchestrates expense operations across SQLite, the summary
// cache and AMQP change events.
type ExpenseService struct {
	storage   ExpenseStore
	publisher EventPublisher
	summaries *SummaryService
	now       func() time.Time
}

// NewExpenseService wires the service. publisher and summaries may be nil.
func NewExpenseService(storage ExpenseStore, publisher EventPublisher, summaries *SummaryService) *ExpenseService {
	return &ExpenseService{
		storage:   storage,
		publisher: publisher,
		summaries: summaries,
		now:       time.Now,
	}
}

// CreateExpense builds the installment schedule for in and stores it
// atomically together with the expense.
func (s *ExpenseService) CreateExpense(ctx context.Context, in core.PurchaseInput) (core.Expense, []core.Installment, error) {
	expense, installments, err := core.BuildSchedule(in, core.NewExpenseID(), s.now())
	if err != nil {
		return core.Expense{}, nil, fmt.Errorf("build schedule: %w", err)
	}

	if err := s.storage.CreateExpenseWithInstallments(ctx, expense, installments); err != nil {
		return core.Expense{}, nil, fmt.Errorf("save expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense created",
		"expense_id", expense.ID,
		"name", expense.Name,
		"total", expense.TotalValue.StringFixed(2),
		"installments", expense.InstallmentsCount)

	evt := amqp.NewExpenseEvent(amqp.EventExpenseCreated, expense.ID)
	evt.Count = len(installments)
	evt.MonthKeys = monthKeysOf(installments)
	s.afterMutation(ctx, evt)

	return expense, installments, nil
}

// GetExpense returns a nil expense when id does not exist.
func (s *ExpenseService) GetExpense(ctx context.Context, id string) (*core.Expense, []core.Installment, error) {
	e, insts, err := s.storage.GetExpenseWithInstallments(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("get expense %s: %w", id, err)
	}
	return e, insts, nil
}

// SetInstallmentPaid reports whether the installment exists.
func (s *ExpenseService) SetInstallmentPaid(ctx context.Context, installmentID string, paid bool) (bool, error) {
	found, err := s.storage.SetInstallmentPaid(ctx, installmentID, paid)
	if err != nil {
		return false, fmt.Errorf("set installment paid: %w", err)
	}
	if !found {
		return false, nil
	}

	evt := amqp.NewExpenseEvent(amqp.EventInstallmentPaid, "").WithPaid(paid)
	evt.InstallmentID = installmentID
	s.afterMutation(ctx, evt)
	return true, nil
}

// SetAllPaid marks every installment of expenseID and returns how many
// installments were touched.
func (s *ExpenseService) SetAllPaid(ctx context.Context, expenseID string, paid bool) (int, error) {
	n, err := s.storage.SetAllInstallmentsPaid(ctx, expenseID, paid)
	if err != nil {
		return 0, fmt.Errorf("set all installments paid: %w", err)
	}
	if n == 0 {
		return 0, nil
	}

	evt := amqp.NewExpenseEvent(amqp.EventInstallmentsPaid, expenseID).WithPaid(paid)
	evt.Count = n
	s.afterMutation(ctx, evt)
	return n, nil
}

func (s *ExpenseService) DeleteExpense(ctx context.Context, expenseID string) error {
	if err := s.storage.DeleteExpenseCascade(ctx, expenseID); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	s.afterMutation(ctx, amqp.NewExpenseEvent(amqp.EventExpenseDeleted, expenseID))
	return nil
}

func (s *ExpenseService) ClearAll(ctx context.Context) error {
	if err := s.storage.ClearAll(ctx); err != nil {
		return fmt.Errorf("clear all: %w", err)
	}
	s.afterMutation(ctx, amqp.NewExpenseEvent(amqp.EventStoreCleared, ""))
	return nil
}

type seedExample struct {
	name     string
	category string
	total    string
	count    int
	dueDay   int
}

var seedExamples = []seedExample{
	{name: "Internet", category: "Casa", total: "119.90", count: 1, dueDay: 10},
	{name: "Notebook", category: "Trabalho", total: "4800.00", count: 18, dueDay: 12},
	{name: "Mercado", category: "Alimentação", total: "356.40", count: 1},
}

// SeedExamples adds three sample purchases dated today. Existing data is kept.
func (s *ExpenseService) SeedExamples(ctx context.Context, today core.Date) ([]core.Expense, error) {
	created := make([]core.Expense, 0, len(seedExamples))
	for _, ex := range seedExamples {
		in := core.PurchaseInput{
			Name:              ex.name,
			Category:          ex.category,
			PurchaseDate:      today,
			TotalValue:        decimal.RequireFromString(ex.total),
			InstallmentsCount: ex.count,
		}
		if ex.dueDay != 0 {
			day := ex.dueDay
			in.DueDay = &day
		}

		e, _, err := s.CreateExpense(ctx, in)
		if err != nil {
			return created, fmt.Errorf("seed %s: %w", ex.name, err)
		}
		created = append(created, e)
	}
	return created, nil
}

// afterMutation runs once a write has committed. Failures are logged only.
func (s *ExpenseService) afterMutation(ctx context.Context, evt *amqp.ExpenseEvent) {
	if s.summaries != nil {
		s.summaries.Invalidate()
	}

	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP publisher not available, skipping change event", "type", evt.Type)
		return
	}
	if err := s.publisher.PublishExpenseEvent(ctx, evt); err != nil {
		slog.ErrorContext(ctx, "Failed to publish change event",
			"type", evt.Type,
			"expense_id", evt.ExpenseID,
			"error", err)
	}
}

func monthKeysOf(installments []core.Installment) []string {
	keys := make([]string, 0, len(installments))
	for _, inst := range installments {
		keys = append(keys, inst.MonthKey)
	}
	return keys
}

// Close closes both storage and AMQP connections
func (s *ExpenseService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close expense service: %w", err)
	}
	return nil
}
