package http

import (
	"cmp"
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"parcelas/internal/core"
	"parcelas/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{
		"status": "ok",
		"uptime": s.now().Sub(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady reports whether the store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.queries.Ping(ctx); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", "error", err)
		ErrorResponse(http.StatusServiceUnavailable, "storage unavailable").Write(w)
		return
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}

func (s *Server) handleListMonths(w http.ResponseWriter, r *http.Request) {
	keys := core.RecentMonthKeys(s.now(), parseMonthsParam(r.URL.Query(), recentMonths))
	NewJSONResponse().Body(map[string]any{
		"current": keys[0],
		"months":  keys,
	}).Write(w)
}

func (s *Server) handleMonthExpenses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	month, err := monthFromPath(r)
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}

	items, err := s.queries.QueryExpensesByMonth(ctx, month)
	if err != nil {
		s.fail(ctx, w, "Month expenses query failed", err, log.NewFields().WithMonth(month))
		return
	}

	slices.SortFunc(items, func(a, b core.MonthlyExpense) int {
		if c := b.Expense.PurchaseDate.Compare(a.Expense.PurchaseDate.Time); c != 0 {
			return c
		}
		return cmp.Compare(a.Expense.Name, b.Expense.Name)
	})
	NewJSONResponse().Body(items).Write(w)
}

func (s *Server) handleMonthSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	month, err := monthFromPath(r)
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}

	summary, err := s.summaries.MonthSummary(ctx, month)
	if err != nil {
		s.fail(ctx, w, "Month summary failed", err, log.NewFields().WithMonth(month).WithOperation(log.OpSummary))
		return
	}
	NewJSONResponse().Body(summary).Write(w)
}

func (s *Server) handleMonthPurchases(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	month, err := monthFromPath(r)
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}

	expenses, err := s.queries.ListExpensesByPurchaseMonth(ctx, month)
	if err != nil {
		s.fail(ctx, w, "Purchase month listing failed", err, log.NewFields().WithMonth(month))
		return
	}
	NewJSONResponse().Body(expenses).Write(w)
}

type expenseResponse struct {
	Expense      core.Expense       `json:"expense"`
	Installments []core.Installment `json:"installments"`
	PaidCount    int                `json:"paidCount"`
	TotalCount   int                `json:"totalCount"`
}

func newExpenseResponse(e core.Expense, insts []core.Installment) expenseResponse {
	if insts == nil {
		insts = []core.Installment{}
	}
	return expenseResponse{
		Expense:      e,
		Installments: insts,
		PaidCount:    core.PaidCount(insts),
		TotalCount:   len(insts),
	}
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createExpenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	in, err := req.toPurchaseInput(s.today())
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}

	expense, installments, err := s.commands.CreateExpense(ctx, in)
	if err != nil {
		s.fail(ctx, w, "Create expense failed", err, log.NewFields().WithOperation(log.OpCreate))
		return
	}

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/expenses/"+expense.ID).
		Body(newExpenseResponse(expense, installments)).
		Write(w)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	expense, installments, err := s.commands.GetExpense(ctx, id)
	if err != nil {
		s.fail(ctx, w, "Get expense failed", err, log.NewFields().WithExpense(id, ""))
		return
	}
	if expense == nil {
		NotFoundError("expense not found").Write(w)
		return
	}
	NewJSONResponse().Body(newExpenseResponse(*expense, installments)).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	if err := s.commands.DeleteExpense(ctx, id); err != nil {
		s.fail(ctx, w, "Delete expense failed", err, log.NewFields().WithExpense(id, "").WithOperation(log.OpDelete))
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleSetAllPaid(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	paid, ok := s.readPaid(w, r)
	if !ok {
		return
	}

	n, err := s.commands.SetAllPaid(ctx, id, paid)
	if err != nil {
		s.fail(ctx, w, "Set all paid failed", err, log.NewFields().WithExpense(id, "").WithOperation(log.OpUpdate))
		return
	}
	if n == 0 {
		NotFoundError("expense not found").Write(w)
		return
	}
	NewJSONResponse().Body(map[string]any{"expenseId": id, "paid": paid, "updated": n}).Write(w)
}

func (s *Server) handleSetInstallmentPaid(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	paid, ok := s.readPaid(w, r)
	if !ok {
		return
	}

	found, err := s.commands.SetInstallmentPaid(ctx, id, paid)
	if err != nil {
		s.fail(ctx, w, "Set installment paid failed", err, log.NewFields().WithInstallment(id, paid))
		return
	}
	if !found {
		NotFoundError("installment not found").Write(w)
		return
	}
	NewJSONResponse().Body(map[string]any{"id": id, "paid": paid}).Write(w)
}

func (s *Server) readPaid(w http.ResponseWriter, r *http.Request) (bool, bool) {
	var req setPaidRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return false, false
	}
	paid, err := req.value()
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return false, false
	}
	return paid, true
}

func (s *Server) handleInstallmentsDue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	from, to, err := parseDateRange(r.URL.Query(), s.today())
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}

	installments, err := s.queries.ListInstallmentsDue(ctx, from, to)
	if err != nil {
		s.fail(ctx, w, "Installments due query failed", err, log.NewFields().WithOperation(log.OpList))
		return
	}
	NewJSONResponse().Body(installments).Write(w)
}

func (s *Server) handleSeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	created, err := s.commands.SeedExamples(ctx, s.today())
	if err != nil {
		s.fail(ctx, w, "Seeding examples failed", err, log.NewFields().WithOperation(log.OpSeed))
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(map[string]any{"created": created}).Write(w)
}

func (s *Server) handleClearAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := s.commands.ClearAll(ctx); err != nil {
		s.fail(ctx, w, "Clearing data failed", err, log.NewFields().WithOperation(log.OpClear))
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// fail logs err with fields and writes the mapped error response. Rejected
// input is logged at warn, everything else at error.
func (s *Server) fail(ctx context.Context, w http.ResponseWriter, msg string, err error, fields log.LogFields) {
	logger := log.FromContext(ctx)
	args := fields.WithError(err).ToSlice()
	if core.IsValidation(err) || errors.Is(err, context.Canceled) {
		logger.WarnContext(ctx, msg, args...)
	} else {
		logger.ErrorContext(ctx, msg, args...)
	}
	ErrorFor(err).Write(w)
}
