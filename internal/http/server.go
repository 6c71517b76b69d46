package http

import (
	"context"
	"net/http"
	"time"

	"parcelas/internal/core"
	"parcelas/internal/log"
)

// ExpenseCommands are the mutating operations. *services.ExpenseService
// satisfies it.
type ExpenseCommands interface {
	CreateExpense(ctx context.Context, in core.PurchaseInput) (core.Expense, []core.Installment, error)
	GetExpense(ctx context.Context, id string) (*core.Expense, []core.Installment, error)
	SetInstallmentPaid(ctx context.Context, installmentID string, paid bool) (bool, error)
	SetAllPaid(ctx context.Context, expenseID string, paid bool) (int, error)
	DeleteExpense(ctx context.Context, expenseID string) error
	ClearAll(ctx context.Context) error
	SeedExamples(ctx context.Context, today core.Date) ([]core.Expense, error)
}

// ExpenseQueries are the read-only storage operations.
// *storage.SQLiteRepository satisfies it.
type ExpenseQueries interface {
	Ping(ctx context.Context) error
	QueryExpensesByMonth(ctx context.Context, monthKey string) ([]core.MonthlyExpense, error)
	ListExpensesByPurchaseMonth(ctx context.Context, monthKey string) ([]core.Expense, error)
	ListInstallmentsDue(ctx context.Context, from, to core.Date) ([]core.Installment, error)
}

// MonthSummaries computes per-month totals. *services.SummaryService
// satisfies it.
type MonthSummaries interface {
	MonthSummary(ctx context.Context, monthKey string) (core.MonthSummary, error)
}

// Dependencies groups what the server needs. Logger and Now are optional.
type Dependencies struct {
	Commands  ExpenseCommands
	Queries   ExpenseQueries
	Summaries MonthSummaries
	Logger    *log.Logger
	Now       func() time.Time
}

const (
	recentMonths     = 18
	adminLimit       = 10
	adminLimitWindow = time.Minute
)

type Server struct {
	http.Server
	commands  ExpenseCommands
	queries   ExpenseQueries
	summaries MonthSummaries
	now       func() time.Time
	started   time.Time

	adminLimiter *rateLimiter
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Dependencies) *Server {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	s := &Server{
		commands:     deps.Commands,
		queries:      deps.Queries,
		summaries:    deps.Summaries,
		now:          now,
		started:      now(),
		adminLimiter: newRateLimiter(adminLimit, adminLimitWindow),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/months", s.handleListMonths)
	mux.HandleFunc("GET /api/months/{month}/expenses", s.handleMonthExpenses)
	mux.HandleFunc("GET /api/months/{month}/summary", s.handleMonthSummary)
	mux.HandleFunc("GET /api/months/{month}/purchases", s.handleMonthPurchases)

	mux.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	mux.HandleFunc("GET /api/expenses/{id}", s.handleGetExpense)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.handleDeleteExpense)
	mux.HandleFunc("PUT /api/expenses/{id}/paid", s.handleSetAllPaid)

	mux.HandleFunc("GET /api/installments", s.handleInstallmentsDue)
	mux.HandleFunc("PUT /api/installments/{id}/paid", s.handleSetInstallmentPaid)

	mux.HandleFunc("POST /api/admin/seed", s.adminLimiter.middleware(s.handleSeed))
	mux.HandleFunc("DELETE /api/admin/data", s.adminLimiter.middleware(s.handleClearAll))

	s.Server = http.Server{
		Addr:              addr,
		Handler:           log.RequestLogger(logger, extractClientIP)(securityHeaders(mux)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Shutdown stops background work and gracefully shuts the server down.
func (s *Server) Shutdown(ctx context.Context) error {
	s.adminLimiter.stop()
	return s.Server.Shutdown(ctx)
}

func (s *Server) today() core.Date {
	return core.DateOf(s.now())
}
