// Package http exposes the budget over a JSON API.
package http

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"budget/internal/cache"
	"budget/internal/core"
	"budget/internal/engine"
	"budget/internal/log"
	"budget/internal/middleware/ratelimit"
	"budget/internal/middleware/security"
	"budget/internal/middleware/trace"
	"budget/internal/services"
)

// Finance is the part of services.FinanceService the API drives.
type Finance interface {
	State() core.FinanceState
	Ping(ctx context.Context) error

	UpdateSalary(ctx context.Context, amount float64, date core.Date) (core.FinanceState, error)
	AddExpense(ctx context.Context, in services.ExpenseInput) (core.Expense, error)
	UpdateExpense(ctx context.Context, id string, patch services.ExpensePatch) (core.Expense, error)
	DeleteExpense(ctx context.Context, id string) error
	AddRecurringRule(ctx context.Context, in services.RuleInput) (core.RecurringRule, error)
	UpdateRecurringRule(ctx context.Context, id string, patch services.RulePatch) (core.RecurringRule, error)
	SetRecurringActive(ctx context.Context, id string, active bool) (core.RecurringRule, error)
	DeleteRecurringRule(ctx context.Context, id string) error
	AddSavingsDeposit(ctx context.Context, amount float64, date core.Date) (core.SavingsGoal, error)
	CorrectSaved(ctx context.Context, amount float64, date core.Date) (core.SavingsGoal, error)
	UpdateSavingsGoal(ctx context.Context, in services.GoalUpdate) (core.SavingsGoal, error)

	ImportBackup(ctx context.Context, r io.Reader) (core.FinanceState, error)
	ExportBackup(w io.Writer) error
	Reset(ctx context.Context) (core.FinanceState, error)

	Dashboard(kind engine.PeriodKind, date core.Date) (engine.Dashboard, error)
	Insights() []engine.Insight
	Goal() engine.GoalMetrics
	CategoryTotals(r *engine.Range, prorate bool) map[string]float64
	TopCategories(limit int) []engine.CategoryAmount
	Snapshots() []engine.SnapshotPoint
	DashboardCache() *cache.LRUCache[engine.Dashboard]
}

type Options struct {
	Logger    *log.Logger
	RateLimit ratelimit.Config
	TopN      int
	Clock     func() time.Time
}

type Server struct {
	http.Server
	finance  Finance
	logger   *log.Logger
	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware
	detector *security.Detector
	topN     int
	now      func() time.Time

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
// Shutdown must be called to release the rate limiter.
func NewServer(addr string, finance Finance, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.TopN <= 0 {
		opts.TopN = 5
	}
	logger := opts.Logger.WithComponent(log.ComponentHTTP)
	detector := security.NewDetector()

	s := &Server{
		finance:  finance,
		logger:   logger,
		limiter:  ratelimit.NewLimiter(opts.RateLimit),
		tracer:   trace.NewMiddleware(opts.Logger, detector.ExtractClientIP),
		detector: detector,
		topN:     opts.TopN,
		now:      opts.Clock,
	}

	mux := http.NewServeMux()
	s.routes(mux)

	var h http.Handler = mux
	h = s.limiter.Middleware(detector.ExtractClientIP, s.handleRateLimited)(h)
	h = s.detect(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /api/metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/state", s.handleGetState)
	mux.HandleFunc("PUT /api/state", s.handleImportState)
	mux.HandleFunc("DELETE /api/state", s.handleResetState)
	mux.HandleFunc("GET /api/export", s.handleExport)

	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/insights", s.handleInsights)
	mux.HandleFunc("GET /api/snapshots", s.handleSnapshots)

	mux.HandleFunc("GET /api/categories", s.handleCategories)
	mux.HandleFunc("GET /api/categories/totals", s.handleCategoryTotals)
	mux.HandleFunc("GET /api/categories/top", s.handleTopCategories)

	mux.HandleFunc("PUT /api/salary", s.handleUpdateSalary)

	mux.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	mux.HandleFunc("PATCH /api/expenses/{id}", s.handleUpdateExpense)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.handleDeleteExpense)

	mux.HandleFunc("POST /api/recurring", s.handleCreateRecurring)
	mux.HandleFunc("PATCH /api/recurring/{id}", s.handleUpdateRecurring)
	mux.HandleFunc("POST /api/recurring/{id}/pause", s.handleSetRecurringActive(false))
	mux.HandleFunc("POST /api/recurring/{id}/resume", s.handleSetRecurringActive(true))
	mux.HandleFunc("DELETE /api/recurring/{id}", s.handleDeleteRecurring)

	mux.HandleFunc("GET /api/goal", s.handleGetGoal)
	mux.HandleFunc("PUT /api/goal", s.handleUpdateGoal)
	mux.HandleFunc("POST /api/goal/deposits", s.handleGoalDeposit)
	mux.HandleFunc("POST /api/goal/correction", s.handleGoalCorrection)
}

// detect logs requests that look like probes. They are still served so the
// router can answer with its usual 404 or 405.
func (s *Server) detect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.IsSuspicious(r) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request",
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldClientIP, s.detector.ExtractClientIP(r),
				log.FieldUserAgent, r.UserAgent())
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	writeJSON(w, http.StatusTooManyRequests, errorResponse{
		Error:     "rate limit exceeded, please try again later",
		RequestID: trace.GetRequestID(r.Context()),
	})
}

// Shutdown gracefully shuts down the server and its background goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
