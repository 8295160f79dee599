package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"budget/internal/core"
	"budget/internal/engine"
	"budget/internal/log"
	"budget/internal/middleware/ratelimit"
	"budget/internal/services"
	"budget/internal/storage/memory"
)

var fixedNow = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	srv *Server
	svc *services.FinanceService
}

func newTestEnv(t *testing.T, perMinute int) *testEnv {
	t.Helper()
	logger := log.New(log.Config{Output: io.Discard})
	clock := func() time.Time { return fixedNow }

	svc, err := services.NewFinanceService(context.Background(), memory.New(), nil, services.Options{
		Defaults: core.DefaultDefaults(),
		Clock:    clock,
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("NewFinanceService() error = %v", err)
	}

	srv := NewServer(":0", svc, Options{
		Logger:    logger,
		RateLimit: ratelimit.Config{RequestsPerMinute: perMinute},
		Clock:     clock,
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{srv: srv, svc: svc}
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, 0)
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := env.do(t, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rec.Code)
		}
	}
}

func TestMiddlewareHeaders(t *testing.T) {
	env := newTestEnv(t, 0)
	rec := env.do(t, http.MethodGet, "/api/state", "")

	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestExpenseLifecycle(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodPost, "/api/expenses", `{"category":"Food","amount":12.5,"description":"lunch\u0007","date":"2026-03-10"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d body=%s", rec.Code, rec.Body.String())
	}
	created := decode[core.Expense](t, rec)
	if created.ID == "" || created.Description != "lunch" {
		t.Fatalf("created = %+v", created)
	}
	if rec.Header().Get("Location") != "/api/expenses/"+created.ID {
		t.Errorf("Location = %q", rec.Header().Get("Location"))
	}

	rec = env.do(t, http.MethodPatch, "/api/expenses/"+created.ID, `{"amount":20}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d body=%s", rec.Code, rec.Body.String())
	}
	if got := decode[core.Expense](t, rec); got.Amount != 20 || got.Category != "Food" {
		t.Errorf("patched = %+v", got)
	}

	rec = env.do(t, http.MethodDelete, "/api/expenses/"+created.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = env.do(t, http.MethodDelete, "/api/expenses/"+created.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d", rec.Code)
	}
	if body := decode[errorResponse](t, rec); body.RequestID == "" || !strings.Contains(body.Error, "not found") {
		t.Errorf("error body = %+v", body)
	}
}

func TestErrorMapping(t *testing.T) {
	env := newTestEnv(t, 0)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"negative amount", http.MethodPost, "/api/expenses", `{"category":"Food","amount":-1}`, http.StatusUnprocessableEntity},
		{"missing category", http.MethodPost, "/api/expenses", `{"amount":5}`, http.StatusUnprocessableEntity},
		{"unknown field", http.MethodPost, "/api/expenses", `{"category":"Food","amount":5,"tip":1}`, http.StatusBadRequest},
		{"malformed json", http.MethodPost, "/api/expenses", `{"category":`, http.StatusBadRequest},
		{"empty body", http.MethodPut, "/api/salary", "", http.StatusBadRequest},
		{"bad date in body", http.MethodPost, "/api/expenses", `{"category":"Food","amount":5,"date":"15/03/2026"}`, http.StatusBadRequest},
		{"bad frequency", http.MethodPost, "/api/recurring", `{"category":"Rent","amount":5,"frequency":"daily"}`, http.StatusUnprocessableEntity},
		{"unknown rule", http.MethodPost, "/api/recurring/nope/pause", "", http.StatusNotFound},
		{"bad goal target", http.MethodPut, "/api/goal", `{"target":0,"deadline":"2027-01-01"}`, http.StatusUnprocessableEntity},
		{"zero deposit", http.MethodPost, "/api/goal/deposits", `{"amount":0}`, http.StatusUnprocessableEntity},
		{"bad period", http.MethodGet, "/api/dashboard?period=yearly", "", http.StatusBadRequest},
		{"bad dashboard date", http.MethodGet, "/api/dashboard?date=tomorrow", "", http.StatusBadRequest},
		{"half range", http.MethodGet, "/api/categories/totals?from=2026-03-01", "", http.StatusBadRequest},
		{"prorate without range", http.MethodGet, "/api/categories/totals?prorate=true", "", http.StatusBadRequest},
		{"bad prorate flag", http.MethodGet, "/api/categories/totals?prorate=maybe", "", http.StatusBadRequest},
		{"zero limit", http.MethodGet, "/api/categories/top?limit=0", "", http.StatusBadRequest},
		{"invalid backup", http.MethodPut, "/api/state", `[1,2,3]`, http.StatusBadRequest},
		{"wrong method", http.MethodPost, "/api/state", "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.target, tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body=%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}

	if v := env.svc.Version(); v != 0 {
		t.Errorf("failed requests changed state to version %d", v)
	}
}

func TestRecurringAndDashboard(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodPost, "/api/recurring", `{"category":"Gym","amount":100,"frequency":"weekly","startDate":"2026-03-01"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d body=%s", rec.Code, rec.Body.String())
	}
	rule := decode[core.RecurringRule](t, rec)
	if !rule.Active {
		t.Fatal("new rule should be active")
	}

	dash := decode[engine.Dashboard](t, env.do(t, http.MethodGet, "/api/dashboard?period=monthly&date=2026-03-20", ""))
	if math.Abs(dash.RecurringMonthly-433) > 1e-6 {
		t.Errorf("RecurringMonthly = %v, want 433", dash.RecurringMonthly)
	}
	if dash.Period.Start.String() != "2026-03-01" || dash.Period.End.String() != "2026-03-31" {
		t.Errorf("period = %+v", dash.Period)
	}

	rec = env.do(t, http.MethodPost, "/api/recurring/"+rule.ID+"/pause", "")
	if rec.Code != http.StatusOK || decode[core.RecurringRule](t, rec).Active {
		t.Fatalf("pause status = %d body=%s", rec.Code, rec.Body.String())
	}
	dash = decode[engine.Dashboard](t, env.do(t, http.MethodGet, "/api/dashboard", ""))
	if dash.RecurringMonthly != 0 {
		t.Errorf("paused RecurringMonthly = %v", dash.RecurringMonthly)
	}

	rec = env.do(t, http.MethodPost, "/api/recurring/"+rule.ID+"/resume", "")
	if !decode[core.RecurringRule](t, rec).Active {
		t.Error("resume should reactivate the rule")
	}

	rec = env.do(t, http.MethodPatch, "/api/recurring/"+rule.ID, `{"frequency":"monthly","amount":50}`)
	if got := decode[core.RecurringRule](t, rec); got.Frequency != core.Monthly || got.Amount != 50 {
		t.Errorf("patched rule = %+v", got)
	}

	if rec := env.do(t, http.MethodDelete, "/api/recurring/"+rule.ID, ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rec.Code)
	}
}

func TestCategoryEndpoints(t *testing.T) {
	env := newTestEnv(t, 0)
	for _, body := range []string{
		`{"category":"Food","amount":30,"date":"2026-03-02"}`,
		`{"category":"Food","amount":20,"date":"2026-03-03"}`,
		`{"category":"Travel","amount":40,"date":"2026-03-04"}`,
		`{"category":"Travel","amount":100,"date":"2026-01-04"}`,
	} {
		if rec := env.do(t, http.MethodPost, "/api/expenses", body); rec.Code != http.StatusCreated {
			t.Fatalf("seed status = %d", rec.Code)
		}
	}

	cats := decode[[]map[string]any](t, env.do(t, http.MethodGet, "/api/categories", ""))
	if len(cats) == 0 {
		t.Error("category registry is empty")
	}

	totals := decode[map[string]float64](t, env.do(t, http.MethodGet, "/api/categories/totals?from=2026-03-01&to=2026-03-31", ""))
	if totals["Food"] != 50 || totals["Travel"] != 40 {
		t.Errorf("march totals = %v", totals)
	}
	all := decode[map[string]float64](t, env.do(t, http.MethodGet, "/api/categories/totals", ""))
	if all["Travel"] != 140 {
		t.Errorf("all-time Travel = %v", all["Travel"])
	}

	top := decode[[]engine.CategoryAmount](t, env.do(t, http.MethodGet, "/api/categories/top?limit=1", ""))
	if len(top) != 1 || top[0].Category != "Food" {
		t.Errorf("top = %+v", top)
	}
}

func TestGoalEndpoints(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodPut, "/api/goal", `{"target":1000,"deadline":"2026-12-31","trackingStart":"2026-01-01"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update goal status = %d body=%s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/api/goal/deposits", `{"amount":150,"date":"2026-03-01"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("deposit status = %d body=%s", rec.Code, rec.Body.String())
	}
	if got := decode[goalResponse](t, rec); got.Goal.Saved != 150 || got.Metrics.Saved != 150 {
		t.Errorf("after deposit = %+v", got)
	}

	rec = env.do(t, http.MethodPost, "/api/goal/correction", `{"amount":100}`)
	got := decode[goalResponse](t, rec)
	if got.Goal.Saved != 100 || len(got.Goal.Entries) != 2 || !got.Goal.Entries[1].Adjustment {
		t.Errorf("after correction = %+v", got.Goal)
	}

	got = decode[goalResponse](t, env.do(t, http.MethodGet, "/api/goal", ""))
	if got.Metrics.Target != 1000 || got.Metrics.Percentage != 10 {
		t.Errorf("metrics = %+v", got.Metrics)
	}
}

func TestSalaryAndSnapshots(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodPut, "/api/salary", `{"amount":3000}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("salary status = %d body=%s", rec.Code, rec.Body.String())
	}

	points := decode[[]engine.SnapshotPoint](t, env.do(t, http.MethodGet, "/api/snapshots", ""))
	if len(points) != 1 || points[0].Month != "2026-03" {
		t.Errorf("snapshots = %+v", points)
	}

	if rec := env.do(t, http.MethodGet, "/api/insights", ""); rec.Code != http.StatusOK || !strings.HasPrefix(rec.Body.String(), "[") {
		t.Errorf("insights status = %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestExportImportReset(t *testing.T) {
	env := newTestEnv(t, 0)
	env.do(t, http.MethodPost, "/api/expenses", `{"category":"Food","amount":9,"date":"2026-03-02"}`)

	rec := env.do(t, http.MethodGet, "/api/export", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "finance-data-2026-03-15.json") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	exported := rec.Body.Bytes()

	rec = env.do(t, http.MethodDelete, "/api/state", "")
	if st := decode[core.FinanceState](t, rec); len(st.Expenses) != 0 {
		t.Fatalf("reset left %d expenses", len(st.Expenses))
	}

	req := httptest.NewRequest(http.MethodPut, "/api/state", bytes.NewReader(exported))
	rec = httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("import status = %d body=%s", rec.Code, rec.Body.String())
	}
	st := decode[core.FinanceState](t, rec)
	if len(st.Expenses) != 1 || st.Version != 3 {
		t.Errorf("imported state: %d expenses, version %d", len(st.Expenses), st.Version)
	}
}

func TestRateLimitOnlyMutations(t *testing.T) {
	env := newTestEnv(t, 1)

	if rec := env.do(t, http.MethodPut, "/api/salary", `{"amount":1}`); rec.Code != http.StatusOK {
		t.Fatalf("first mutation status = %d", rec.Code)
	}
	rec := env.do(t, http.MethodPut, "/api/salary", `{"amount":2}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second mutation status = %d", rec.Code)
	}
	if body := decode[errorResponse](t, rec); !strings.Contains(body.Error, "rate limit") {
		t.Errorf("body = %+v", body)
	}
	if rec := env.do(t, http.MethodGet, "/api/state", ""); rec.Code != http.StatusOK {
		t.Errorf("reads must not be limited, got %d", rec.Code)
	}

	m := decode[metricsResponse](t, env.do(t, http.MethodGet, "/api/metrics", ""))
	if m.RateLimit.Rejected != 1 || m.StateVersion != 1 {
		t.Errorf("metrics = %+v", m)
	}
}
