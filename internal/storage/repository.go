package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"parcelas/internal/core"
)

const (
	timestampLayout = time.RFC3339Nano

	expenseColumns = `id, name, category, purchase_date, total_value, installments_count,
		per_installment, due_day, notes, month_key, created_at`
	installmentColumns = `id, expense_id, number, total, value, due_date, month_key,
		paid, paid_at, created_at`
)

// SQLiteRepository persists expenses and their installments. Every exported
// operation runs in exactly one transaction.
type SQLiteRepository struct {
	db    *sql.DB
	clock func() time.Time
}

const dsnPragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// DSN builds the driver connection string for dbPath with the pragmas the
// repository relies on.
func DSN(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + dsnPragmas
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, newError("open", ErrStoreUnavailable, fmt.Errorf("create db directory: %w", err))
	}

	dsn := DSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, newError("open", ErrStoreUnavailable, fmt.Errorf("open sqlite database: %w", err))
	}

	// One connection: operations are serialized the way a single local client expects.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, newError("open", ErrStoreUnavailable, fmt.Errorf("ping database: %w", err))
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, newError("open", ErrStoreUnavailable, err)
	}

	return &SQLiteRepository{db: db, clock: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the backing store is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return newError("ping", ErrStoreUnavailable, err)
	}
	return nil
}

// withTx runs fn in a transaction, committing on success and rolling back on
// any error. Errors come back as *StorageError.
func (r *SQLiteRepository) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return newError(op, ErrStoreUnavailable, fmt.Errorf("begin transaction: %w", err))
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.ErrorContext(ctx, "Rollback failed", "operation", op, "error", rbErr)
		}
		var se *StorageError
		if errors.As(err, &se) {
			return se
		}
		if isDuplicateKey(err) {
			return newError(op, ErrDuplicateKey, err)
		}
		return newError(op, ErrTransactionAborted, err)
	}

	if err := tx.Commit(); err != nil {
		return newError(op, ErrTransactionAborted, fmt.Errorf("commit: %w", err))
	}
	return nil
}

// CreateExpenseWithInstallments inserts the expense and all of its
// installments atomically. An existing expense id fails with ErrDuplicateKey.
func (r *SQLiteRepository) CreateExpenseWithInstallments(ctx context.Context, e core.Expense, installments []core.Installment) error {
	const op = "create expense"

	err := r.withTx(ctx, op, func(tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM expenses WHERE id = ?`, e.ID).Scan(&one)
		if err == nil {
			return newError(op, ErrDuplicateKey, fmt.Errorf("expense %q already exists", e.ID))
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check expense id: %w", err)
		}

		var dueDay sql.NullInt64
		if e.DueDay != nil {
			dueDay = sql.NullInt64{Int64: int64(*e.DueDay), Valid: true}
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO expenses (`+expenseColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.Name, e.Category, e.PurchaseDate.String(), e.TotalValue.String(),
			e.InstallmentsCount, e.PerInstallment.String(), dueDay, e.Notes, e.MonthKey,
			e.CreatedAt.UTC().Format(timestampLayout))
		if err != nil {
			return fmt.Errorf("insert expense: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO installments (`+installmentColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare installment insert: %w", err)
		}
		defer stmt.Close()

		for _, inst := range installments {
			if inst.ExpenseID != e.ID {
				return fmt.Errorf("installment %q belongs to expense %q, not %q", inst.ID, inst.ExpenseID, e.ID)
			}
			if _, err := stmt.ExecContext(ctx,
				inst.ID, inst.ExpenseID, inst.Number, inst.Total, inst.Value.String(),
				inst.DueDate.String(), inst.MonthKey, inst.Paid, formatTimestampPtr(inst.PaidAt),
				inst.CreatedAt.UTC().Format(timestampLayout)); err != nil {
				return fmt.Errorf("insert installment %s: %w", inst.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Expense saved with installments",
		"expense_id", e.ID,
		"name", e.Name,
		"total_value", e.TotalValue.String(),
		"installments", len(installments),
		"month_key", e.MonthKey)

	return nil
}

// QueryExpensesByMonth returns every expense with an installment due in
// monthKey, each with its full installment set. Order is unspecified.
func (r *SQLiteRepository) QueryExpensesByMonth(ctx context.Context, monthKey string) ([]core.MonthlyExpense, error) {
	var out []core.MonthlyExpense

	err := r.withTx(ctx, "query expenses by month", func(tx *sql.Tx) error {
		ids, err := collect(cursor(ctx, tx, scanString,
			`SELECT DISTINCT expense_id FROM installments INDEXED BY idx_installments_month_key
			 WHERE month_key = ?`, monthKey))
		if err != nil {
			return fmt.Errorf("scan month index: %w", err)
		}

		out = make([]core.MonthlyExpense, 0, len(ids))
		for _, id := range ids {
			e, err := getExpense(ctx, tx, id)
			if err != nil {
				return err
			}
			if e == nil {
				// unreachable while foreign_keys is on
				continue
			}
			insts, err := installmentsOf(ctx, tx, id)
			if err != nil {
				return err
			}
			out = append(out, core.MonthlyExpense{
				Expense:      *e,
				Installments: insts,
				PaidCount:    core.PaidCount(insts),
				TotalCount:   len(insts),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListExpensesByPurchaseMonth returns the expenses purchased in monthKey,
// newest purchase first.
func (r *SQLiteRepository) ListExpensesByPurchaseMonth(ctx context.Context, monthKey string) ([]core.Expense, error) {
	var out []core.Expense
	err := r.withTx(ctx, "list expenses by purchase month", func(tx *sql.Tx) error {
		var err error
		out, err = collect(cursor(ctx, tx, scanExpense,
			`SELECT `+expenseColumns+` FROM expenses INDEXED BY idx_expenses_month_key
			 WHERE month_key = ? ORDER BY purchase_date DESC, name ASC`, monthKey))
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetExpenseWithInstallments returns a nil expense when id does not exist.
func (r *SQLiteRepository) GetExpenseWithInstallments(ctx context.Context, id string) (*core.Expense, []core.Installment, error) {
	var (
		expense      *core.Expense
		installments []core.Installment
	)
	err := r.withTx(ctx, "get expense", func(tx *sql.Tx) error {
		var err error
		expense, err = getExpense(ctx, tx, id)
		if err != nil || expense == nil {
			return err
		}
		installments, err = installmentsOf(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return expense, installments, nil
}

// ListInstallmentsDue returns installments due between from and to inclusive,
// ordered by due date.
func (r *SQLiteRepository) ListInstallmentsDue(ctx context.Context, from, to core.Date) ([]core.Installment, error) {
	var out []core.Installment
	err := r.withTx(ctx, "list installments due", func(tx *sql.Tx) error {
		var err error
		out, err = collect(cursor(ctx, tx, scanInstallment,
			`SELECT `+installmentColumns+` FROM installments INDEXED BY idx_installments_due_date
			 WHERE due_date BETWEEN ? AND ? ORDER BY due_date ASC, expense_id ASC, number ASC`,
			from.String(), to.String()))
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetInstallmentPaid updates one installment's paid state and reports whether
// it exists. Marking it paid stamps paid_at with the current time, also when
// it was already paid; unmarking clears it.
func (r *SQLiteRepository) SetInstallmentPaid(ctx context.Context, installmentID string, paid bool) (bool, error) {
	var updated bool
	now := r.clock().UTC().Format(timestampLayout)

	err := r.withTx(ctx, "set installment paid", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE installments
			SET paid = ?, paid_at = CASE WHEN ? THEN ? ELSE NULL END
			WHERE id = ?`, paid, paid, now, installmentID)
		if err != nil {
			return fmt.Errorf("update installment: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		updated = n > 0
		return nil
	})
	if err != nil {
		return false, err
	}

	if updated {
		slog.InfoContext(ctx, "Installment paid state updated", "installment_id", installmentID, "paid", paid)
	}
	return updated, nil
}

// SetAllInstallmentsPaid sets the paid state of every installment of
// expenseID in one transaction and returns how many it touched. paid_at is
// restamped the same way as in SetInstallmentPaid.
func (r *SQLiteRepository) SetAllInstallmentsPaid(ctx context.Context, expenseID string, paid bool) (int, error) {
	var count int
	now := r.clock().UTC().Format(timestampLayout)

	err := r.withTx(ctx, "set all installments paid", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE installments INDEXED BY idx_installments_expense_id
			SET paid = ?, paid_at = CASE WHEN ? THEN ? ELSE NULL END
			WHERE expense_id = ?`, paid, paid, now, expenseID)
		if err != nil {
			return fmt.Errorf("update installments: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		count = int(n)
		return nil
	})
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Installments paid state updated", "expense_id", expenseID, "paid", paid, "count", count)
	return count, nil
}

// DeleteExpenseCascade removes the expense and its installments together.
// Deleting a missing expense succeeds.
func (r *SQLiteRepository) DeleteExpenseCascade(ctx context.Context, expenseID string) error {
	var removed int64
	err := r.withTx(ctx, "delete expense", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM installments WHERE expense_id = ?`, expenseID); err != nil {
			return fmt.Errorf("delete installments: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, expenseID)
		if err != nil {
			return fmt.Errorf("delete expense: %w", err)
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Expense deleted", "expense_id", expenseID, "existed", removed > 0)
	return nil
}

// ClearAll empties both collections. Irreversible.
func (r *SQLiteRepository) ClearAll(ctx context.Context) error {
	err := r.withTx(ctx, "clear all", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM installments`); err != nil {
			return fmt.Errorf("clear installments: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM expenses`); err != nil {
			return fmt.Errorf("clear expenses: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.WarnContext(ctx, "All expenses and installments cleared")
	return nil
}

func getExpense(ctx context.Context, tx *sql.Tx, id string) (*core.Expense, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get expense %s: %w", id, err)
	}
	return &e, nil
}

func installmentsOf(ctx context.Context, tx *sql.Tx, expenseID string) ([]core.Installment, error) {
	insts, err := collect(cursor(ctx, tx, scanInstallment,
		`SELECT `+installmentColumns+` FROM installments INDEXED BY idx_installments_expense_id
		 WHERE expense_id = ? ORDER BY number ASC`, expenseID))
	if err != nil {
		return nil, fmt.Errorf("list installments of %s: %w", expenseID, err)
	}
	return insts, nil
}

func scanString(s rowScanner) (string, error) {
	var v string
	err := s.Scan(&v)
	return v, err
}

func scanExpense(s rowScanner) (core.Expense, error) {
	var (
		e                                 core.Expense
		purchaseDate, total, per, created string
		dueDay                            sql.NullInt64
	)
	if err := s.Scan(&e.ID, &e.Name, &e.Category, &purchaseDate, &total, &e.InstallmentsCount,
		&per, &dueDay, &e.Notes, &e.MonthKey, &created); err != nil {
		return core.Expense{}, err
	}

	var err error
	if e.PurchaseDate, err = core.ParseDate(purchaseDate); err != nil {
		return core.Expense{}, fmt.Errorf("expense %s purchase date: %w", e.ID, err)
	}
	if e.TotalValue, err = decimal.NewFromString(total); err != nil {
		return core.Expense{}, fmt.Errorf("expense %s total value: %w", e.ID, err)
	}
	if e.PerInstallment, err = decimal.NewFromString(per); err != nil {
		return core.Expense{}, fmt.Errorf("expense %s per installment: %w", e.ID, err)
	}
	if e.CreatedAt, err = time.Parse(timestampLayout, created); err != nil {
		return core.Expense{}, fmt.Errorf("expense %s created at: %w", e.ID, err)
	}
	if dueDay.Valid {
		d := int(dueDay.Int64)
		e.DueDay = &d
	}
	return e, nil
}

func scanInstallment(s rowScanner) (core.Installment, error) {
	var (
		inst                core.Installment
		value, due, created string
		paidAt              sql.NullString
	)
	if err := s.Scan(&inst.ID, &inst.ExpenseID, &inst.Number, &inst.Total, &value, &due,
		&inst.MonthKey, &inst.Paid, &paidAt, &created); err != nil {
		return core.Installment{}, err
	}

	var err error
	if inst.Value, err = decimal.NewFromString(value); err != nil {
		return core.Installment{}, fmt.Errorf("installment %s value: %w", inst.ID, err)
	}
	if inst.DueDate, err = core.ParseDate(due); err != nil {
		return core.Installment{}, fmt.Errorf("installment %s due date: %w", inst.ID, err)
	}
	if inst.CreatedAt, err = time.Parse(timestampLayout, created); err != nil {
		return core.Installment{}, fmt.Errorf("installment %s created at: %w", inst.ID, err)
	}
	if paidAt.Valid {
		t, err := time.Parse(timestampLayout, paidAt.String)
		if err != nil {
			return core.Installment{}, fmt.Errorf("installment %s paid at: %w", inst.ID, err)
		}
		inst.PaidAt = &t
	}
	return inst, nil
}

func formatTimestampPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timestampLayout)
}
