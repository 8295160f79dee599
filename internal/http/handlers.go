package http

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"budget/internal/backup"
	"budget/internal/cache"
	"budget/internal/category"
	"budget/internal/core"
	"budget/internal/engine"
	"budget/internal/log"
	"budget/internal/middleware/ratelimit"
	"budget/internal/middleware/security"
	"budget/internal/services"
)

// readyTimeout bounds the repository ping behind /readyz.
const readyTimeout = 3 * time.Second

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	if err := s.finance.Ping(ctx); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

type metricsResponse struct {
	Requests       int64                     `json:"requests"`
	AvgResponseMs  float64                   `json:"avg_response_ms"`
	RateLimit      ratelimit.Metrics         `json:"rate_limit"`
	Security       security.DetectionMetrics `json:"security"`
	DashboardCache cache.Stats               `json:"dashboard_cache"`
	StateVersion   int64                     `json:"state_version"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	tm := s.tracer.GetMetrics()
	writeJSON(w, http.StatusOK, metricsResponse{
		Requests:       tm.TotalRequests,
		AvgResponseMs:  float64(tm.AverageResponseTime().Microseconds()) / 1000,
		RateLimit:      s.limiter.GetMetrics(),
		Security:       s.detector.GetMetrics(),
		DashboardCache: s.finance.DashboardCache().Stats(),
		StateVersion:   s.finance.State().Version,
	})
}

func (s *Server) handleGetState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.finance.State())
}

// handleImportState replaces the state with a backup document. Any invalid
// record rejects the whole import.
func (s *Server) handleImportState(w http.ResponseWriter, r *http.Request) {
	st, err := s.finance.ImportBackup(r.Context(), http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleResetState(w http.ResponseWriter, r *http.Request) {
	st, err := s.finance.Reset(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.finance.ExportBackup(&buf); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", backup.FileName(s.now())))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	kind, err := engine.ParsePeriodKind(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	date, err := queryDate(r, "date")
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, err := s.finance.Dashboard(kind, date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleInsights(w http.ResponseWriter, _ *http.Request) {
	insights := s.finance.Insights()
	if insights == nil {
		insights = []engine.Insight{}
	}
	writeJSON(w, http.StatusOK, insights)
}

func (s *Server) handleSnapshots(w http.ResponseWriter, _ *http.Request) {
	points := s.finance.Snapshots()
	if points == nil {
		points = []engine.SnapshotPoint{}
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleCategories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, category.All())
}

func (s *Server) handleCategoryTotals(w http.ResponseWriter, r *http.Request) {
	rng, err := queryRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	prorate, err := queryBool(r, "prorate")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if prorate && rng == nil {
		writeError(w, r, fmt.Errorf("%w: prorate requires from and to", errBadRequest))
		return
	}
	writeJSON(w, http.StatusOK, s.finance.CategoryTotals(rng, prorate))
}

func (s *Server) handleTopCategories(w http.ResponseWriter, r *http.Request) {
	limit, err := queryPositiveInt(r, "limit", s.topN)
	if err != nil {
		writeError(w, r, err)
		return
	}
	top := s.finance.TopCategories(limit)
	if top == nil {
		top = []engine.CategoryAmount{}
	}
	writeJSON(w, http.StatusOK, top)
}

func (s *Server) handleUpdateSalary(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	st, err := s.finance.UpdateSalary(r.Context(), req.Amount, req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Salary     float64   `json:"salary"`
		SalaryDate core.Date `json:"salaryDate"`
		Version    int64     `json:"version"`
	}{st.Salary, st.SalaryDate, st.Version})
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var in services.ExpenseInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	in.Category = sanitizeInput(in.Category)
	in.Description = sanitizeInput(in.Description)

	e, err := s.finance.AddExpense(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/expenses/"+e.ID)
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var patch services.ExpensePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	sanitizePtr(patch.Category)
	sanitizePtr(patch.Description)

	e, err := s.finance.UpdateExpense(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.finance.DeleteExpense(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	var in services.RuleInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	in.Category = sanitizeInput(in.Category)
	in.Description = sanitizeInput(in.Description)

	rule, err := s.finance.AddRecurringRule(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/recurring/"+rule.ID)
	writeJSON(w, http.StatusCreated, rule)
}

func (s *Server) handleUpdateRecurring(w http.ResponseWriter, r *http.Request) {
	var patch services.RulePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	sanitizePtr(patch.Category)
	sanitizePtr(patch.Description)

	rule, err := s.finance.UpdateRecurringRule(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (s *Server) handleSetRecurringActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rule, err := s.finance.SetRecurringActive(r.Context(), r.PathValue("id"), active)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rule)
	}
}

func (s *Server) handleDeleteRecurring(w http.ResponseWriter, r *http.Request) {
	if err := s.finance.DeleteRecurringRule(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type goalResponse struct {
	Goal    core.SavingsGoal   `json:"goal"`
	Metrics engine.GoalMetrics `json:"metrics"`
}

func (s *Server) handleGetGoal(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, goalResponse{
		Goal:    s.finance.State().SavingsGoal,
		Metrics: s.finance.Goal(),
	})
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	var in services.GoalUpdate
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	g, err := s.finance.UpdateSavingsGoal(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goalResponse{Goal: g, Metrics: s.finance.Goal()})
}

func (s *Server) handleGoalDeposit(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	g, err := s.finance.AddSavingsDeposit(r.Context(), req.Amount, req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, goalResponse{Goal: g, Metrics: s.finance.Goal()})
}

func (s *Server) handleGoalCorrection(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	g, err := s.finance.CorrectSaved(r.Context(), req.Amount, req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goalResponse{Goal: g, Metrics: s.finance.Goal()})
}
