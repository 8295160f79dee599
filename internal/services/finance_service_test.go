package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"budget/internal/backup"
	"budget/internal/core"
	"budget/internal/engine"
	"budget/internal/log"
	"budget/internal/storage/memory"
)

type fakePublisher struct {
	mu       sync.Mutex
	versions []int64
	reasons  []string
	err      error
}

func (p *fakePublisher) PublishStateSync(_ context.Context, version int64, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.versions = append(p.versions, version)
	p.reasons = append(p.reasons, reason)
	return p.err
}

func (p *fakePublisher) published() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int64(nil), p.versions...)
}

type failingRepo struct {
	*memory.Store
	saveErr error
}

func (r *failingRepo) Save(ctx context.Context, s core.FinanceState) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	return r.Store.Save(ctx, s)
}

var fixedNow = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

func quietLogger() *log.Logger {
	return log.New(log.Config{Output: io.Discard})
}

func newTestService(t *testing.T, repo Repository, pub Publisher) *FinanceService {
	t.Helper()
	if repo == nil {
		repo = memory.New()
	}
	svc, err := NewFinanceService(context.Background(), repo, pub, Options{
		Defaults: core.DefaultDefaults(),
		Clock:    func() time.Time { return fixedNow },
		Logger:   quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewFinanceService() error = %v", err)
	}
	return svc
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNewFinanceService_EmptyRepositoryUsesDefaults(t *testing.T) {
	svc := newTestService(t, nil, nil)
	st := svc.State()

	if st.Version != 0 || st.Salary != 0 {
		t.Errorf("state = %+v", st)
	}
	if st.SavingsGoal.Target != 20000 || st.SavingsGoal.Deadline.String() != "2026-07-01" {
		t.Errorf("goal = %+v", st.SavingsGoal)
	}
	if st.SalaryDate.String() != "2026-03-15" {
		t.Errorf("SalaryDate = %s", st.SalaryDate)
	}
}

func TestNewFinanceService_LoadError(t *testing.T) {
	repo := &errRepo{err: errors.New("disk on fire")}
	_, err := NewFinanceService(context.Background(), repo, nil, Options{Logger: quietLogger()})
	if err == nil || !strings.Contains(err.Error(), "disk on fire") {
		t.Errorf("NewFinanceService() error = %v", err)
	}
}

type errRepo struct{ err error }

func (r *errRepo) Load(context.Context) (core.FinanceState, error) { return core.FinanceState{}, r.err }
func (r *errRepo) Save(context.Context, core.FinanceState) error   { return r.err }

func TestNewFinanceService_NormalizesLoadedState(t *testing.T) {
	s := core.FinanceState{
		Salary: 1000,
		SavingsGoal: core.SavingsGoal{
			Saved: 300,
		},
	}
	svc := newTestService(t, memory.NewWithState(s), nil)
	g := svc.State().SavingsGoal

	if !approxEqual(g.EntrySum(), g.Saved) {
		t.Errorf("saved %v != entry sum %v", g.Saved, g.EntrySum())
	}
	if g.Target != 20000 {
		t.Errorf("Target = %v, want default", g.Target)
	}
}

func TestFinanceService_ExpenseLifecycle(t *testing.T) {
	repo := memory.New()
	pub := &fakePublisher{}
	svc := newTestService(t, repo, pub)
	ctx := context.Background()

	e, err := svc.AddExpense(ctx, ExpenseInput{Category: "Groceries", Amount: 42.5, Description: "market"})
	if err != nil {
		t.Fatalf("AddExpense() error = %v", err)
	}
	if e.ID == "" || e.Date.String() != "2026-03-15" || e.Recurring {
		t.Errorf("expense = %+v", e)
	}

	newAmount := 50.0
	updated, err := svc.UpdateExpense(ctx, e.ID, ExpensePatch{Amount: &newAmount})
	if err != nil {
		t.Fatalf("UpdateExpense() error = %v", err)
	}
	if updated.Amount != 50 || updated.Category != "Groceries" {
		t.Errorf("updated = %+v", updated)
	}

	if err := svc.DeleteExpense(ctx, e.ID); err != nil {
		t.Fatalf("DeleteExpense() error = %v", err)
	}
	if len(svc.State().Expenses) != 0 {
		t.Error("expense not deleted")
	}

	svc.Wait()
	got := pub.published()
	slices.Sort(got)
	if !slices.Equal(got, []int64{1, 2, 3}) {
		t.Errorf("published versions = %v", got)
	}
	if repo.Saves() != 3 {
		t.Errorf("repo saves = %d", repo.Saves())
	}
	persisted, _ := repo.Load(ctx)
	if persisted.Version != 3 {
		t.Errorf("persisted version = %d", persisted.Version)
	}
}

func TestFinanceService_Errors(t *testing.T) {
	svc := newTestService(t, nil, nil)
	ctx := context.Background()
	empty := ""
	negative := -5.0

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{"expense zero amount", func() error {
			_, err := svc.AddExpense(ctx, ExpenseInput{Category: "Pets", Amount: 0})
			return err
		}, core.ErrInvalidAmount},
		{"expense empty category", func() error {
			_, err := svc.AddExpense(ctx, ExpenseInput{Category: " ", Amount: 1})
			return err
		}, core.ErrEmptyCategory},
		{"expense long description", func() error {
			_, err := svc.AddExpense(ctx, ExpenseInput{Category: "Pets", Amount: 1, Description: strings.Repeat("x", 201)})
			return err
		}, core.ErrDescriptionLength},
		{"update missing expense", func() error {
			_, err := svc.UpdateExpense(ctx, "nope", ExpensePatch{})
			return err
		}, ErrExpenseNotFound},
		{"delete missing expense", func() error {
			return svc.DeleteExpense(ctx, "nope")
		}, ErrExpenseNotFound},
		{"rule bad frequency", func() error {
			_, err := svc.AddRecurringRule(ctx, RuleInput{Category: "Rent", Amount: 1, Frequency: "yearly"})
			return err
		}, core.ErrInvalidFrequency},
		{"update missing rule", func() error {
			_, err := svc.UpdateRecurringRule(ctx, "nope", RulePatch{Category: &empty})
			return err
		}, ErrRuleNotFound},
		{"pause missing rule", func() error {
			_, err := svc.SetRecurringActive(ctx, "nope", false)
			return err
		}, ErrRuleNotFound},
		{"delete missing rule", func() error {
			return svc.DeleteRecurringRule(ctx, "nope")
		}, ErrRuleNotFound},
		{"negative salary", func() error {
			_, err := svc.UpdateSalary(ctx, negative, core.Date{})
			return err
		}, core.ErrInvalidAmount},
		{"deposit zero", func() error {
			_, err := svc.AddSavingsDeposit(ctx, 0, core.Date{})
			return err
		}, core.ErrInvalidAmount},
		{"correct negative", func() error {
			_, err := svc.CorrectSaved(ctx, negative, core.Date{})
			return err
		}, core.ErrInvalidAmount},
		{"goal zero target", func() error {
			_, err := svc.UpdateSavingsGoal(ctx, GoalUpdate{Target: 0, Deadline: core.NewDate(2027, 1, 1)})
			return err
		}, core.ErrInvalidTarget},
		{"goal missing deadline", func() error {
			_, err := svc.UpdateSavingsGoal(ctx, GoalUpdate{Target: 100})
			return err
		}, core.ErrInvalidDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}

	if v := svc.Version(); v != 0 {
		t.Errorf("failed mutations bumped version to %d", v)
	}
}

func TestFinanceService_SaveFailureKeepsState(t *testing.T) {
	repo := &failingRepo{Store: memory.New(), saveErr: errors.New("readonly database")}
	pub := &fakePublisher{}
	svc := newTestService(t, repo, pub)

	_, err := svc.AddExpense(context.Background(), ExpenseInput{Category: "Pets", Amount: 3})
	if err == nil || !strings.Contains(err.Error(), "readonly database") {
		t.Fatalf("AddExpense() error = %v", err)
	}
	if len(svc.State().Expenses) != 0 || svc.Version() != 0 {
		t.Error("in-memory state changed despite save failure")
	}
	svc.Wait()
	if len(pub.published()) != 0 {
		t.Error("nothing should be published when the save fails")
	}
}

func TestFinanceService_PublishFailureIsSwallowed(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := newTestService(t, nil, pub)

	if _, err := svc.UpdateSalary(context.Background(), 3000, core.Date{}); err != nil {
		t.Fatalf("UpdateSalary() error = %v", err)
	}
	svc.Wait()
	if svc.State().Salary != 3000 {
		t.Error("salary not applied")
	}
	if len(pub.published()) != 1 {
		t.Error("publish not attempted")
	}
}

func TestFinanceService_RecurringRules(t *testing.T) {
	svc := newTestService(t, nil, nil)
	ctx := context.Background()

	r, err := svc.AddRecurringRule(ctx, RuleInput{Category: "Rent", Amount: 1000})
	if err != nil {
		t.Fatalf("AddRecurringRule() error = %v", err)
	}
	if !r.Active || !r.Recurring || r.Frequency != core.Monthly || r.StartDate.String() != "2026-03-15" {
		t.Errorf("rule = %+v", r)
	}

	weekly := core.Weekly
	r, err = svc.UpdateRecurringRule(ctx, r.ID, RulePatch{Frequency: &weekly})
	if err != nil || r.Frequency != core.Weekly {
		t.Fatalf("UpdateRecurringRule() = %+v, %v", r, err)
	}

	r, err = svc.SetRecurringActive(ctx, r.ID, false)
	if err != nil || r.Active {
		t.Fatalf("SetRecurringActive(false) = %+v, %v", r, err)
	}
	if got := svc.Snapshots(); len(got) != 1 || got[0].Expenses != 0 {
		t.Errorf("paused rule should not count: %+v", got)
	}

	if _, err := svc.SetRecurringActive(ctx, r.ID, true); err != nil {
		t.Fatal(err)
	}
	if got := svc.Snapshots(); !approxEqual(got[0].Expenses, 4330) {
		t.Errorf("snapshot expenses = %v, want 4330", got[0].Expenses)
	}

	if err := svc.DeleteRecurringRule(ctx, r.ID); err != nil {
		t.Fatal(err)
	}
	if len(svc.State().RecurringRules) != 0 {
		t.Error("rule not deleted")
	}
}

func TestFinanceService_SnapshotRecordedOnMutation(t *testing.T) {
	svc := newTestService(t, nil, nil)
	ctx := context.Background()

	if _, err := svc.UpdateSalary(ctx, 3000, core.Date{}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AddExpense(ctx, ExpenseInput{Category: "Groceries", Amount: 200}); err != nil {
		t.Fatal(err)
	}

	snap, ok := svc.State().MonthlySnapshots["2026-03"]
	if !ok {
		t.Fatal("no snapshot for 2026-03")
	}
	if snap.Income != 3000 || snap.Expenses != 200 || snap.Balance != 2800 {
		t.Errorf("snapshot = %+v", snap)
	}

	if _, err := svc.AddSavingsDeposit(ctx, 100, core.Date{}); err != nil {
		t.Fatal(err)
	}
	if got := svc.State().MonthlySnapshots["2026-03"]; got != snap {
		t.Errorf("goal mutation changed snapshot: %+v", got)
	}
}

func TestFinanceService_SavingsGoal(t *testing.T) {
	svc := newTestService(t, nil, nil)
	ctx := context.Background()

	if _, err := svc.AddSavingsDeposit(ctx, 500, core.NewDate(2026, 2, 1)); err != nil {
		t.Fatal(err)
	}
	g, err := svc.AddSavingsDeposit(ctx, 250, core.Date{})
	if err != nil {
		t.Fatal(err)
	}
	if g.Saved != 750 || len(g.Entries) != 2 || g.Entries[1].Date.String() != "2026-03-15" {
		t.Errorf("goal = %+v", g)
	}

	g, err = svc.CorrectSaved(ctx, 600, core.Date{})
	if err != nil {
		t.Fatal(err)
	}
	last := g.Entries[len(g.Entries)-1]
	if g.Saved != 600 || !last.Adjustment || last.Amount != -150 {
		t.Errorf("after correction: saved=%v last=%+v", g.Saved, last)
	}
	if !approxEqual(g.Saved, g.EntrySum()) {
		t.Errorf("saved %v != entry sum %v", g.Saved, g.EntrySum())
	}

	g, err = svc.CorrectSaved(ctx, 600, core.Date{})
	if err != nil || len(g.Entries) != 3 {
		t.Errorf("no-op correction added an entry: %+v, %v", g, err)
	}

	g, err = svc.UpdateSavingsGoal(ctx, GoalUpdate{Target: 12000, Deadline: core.NewDate(2026, 12, 31)})
	if err != nil {
		t.Fatal(err)
	}
	if g.Target != 12000 || g.Saved != 600 || !g.TrackingStart.IsZero() {
		t.Errorf("goal = %+v", g)
	}

	m := svc.Goal()
	if m.Target != 12000 || m.Saved != 600 || !approxEqual(m.Remaining, 11400) {
		t.Errorf("metrics = %+v", m)
	}
	if m.TrackingStart.String() != "2026-01-01" {
		t.Errorf("TrackingStart = %s", m.TrackingStart)
	}
}

func TestFinanceService_ImportExportReset(t *testing.T) {
	svc := newTestService(t, nil, nil)
	ctx := context.Background()

	if _, err := svc.AddExpense(ctx, ExpenseInput{Category: "Pets", Amount: 12}); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := svc.ExportBackup(&buf); err != nil {
		t.Fatalf("ExportBackup() error = %v", err)
	}

	if _, err := svc.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	if st := svc.State(); len(st.Expenses) != 0 || st.Version != 2 {
		t.Errorf("after reset: %+v", st)
	}

	st, err := svc.ImportBackup(ctx, &buf)
	if err != nil {
		t.Fatalf("ImportBackup() error = %v", err)
	}
	if len(st.Expenses) != 1 || st.Expenses[0].Amount != 12 {
		t.Errorf("imported expenses = %+v", st.Expenses)
	}
	if st.Version != 3 {
		t.Errorf("Version = %d, want 3 (import supersedes)", st.Version)
	}

	if _, err := svc.ImportBackup(ctx, strings.NewReader("{not json")); !errors.Is(err, backup.ErrInvalidBackup) {
		t.Errorf("ImportBackup(garbage) error = %v", err)
	}
	if svc.Version() != 3 {
		t.Error("failed import changed the state")
	}
}

func TestFinanceService_ImportAndResetRecordSnapshot(t *testing.T) {
	svc := newTestService(t, nil, nil)
	ctx := context.Background()

	if _, err := svc.UpdateSalary(ctx, 3000, core.Date{}); err != nil {
		t.Fatal(err)
	}

	file := `{"salary":5000,"expenses":[{"id":"a","category":"Food","amount":100,"date":"2026-03-02"}]}`
	st, err := svc.ImportBackup(ctx, strings.NewReader(file))
	if err != nil {
		t.Fatalf("ImportBackup() error = %v", err)
	}
	want := core.MonthlySnapshot{Income: 5000, Expenses: 100, Balance: 4900}
	if got, ok := st.MonthlySnapshots["2026-03"]; !ok || got != want {
		t.Errorf("snapshot after import = %+v (present %v), want %+v", got, ok, want)
	}

	st, err = svc.Reset(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want = core.MonthlySnapshot{}
	if got, ok := st.MonthlySnapshots["2026-03"]; !ok || got != want {
		t.Errorf("snapshot after reset = %+v (present %v), want zeroes", got, ok)
	}
	if len(st.MonthlySnapshots) != 1 {
		t.Errorf("reset kept %d snapshots", len(st.MonthlySnapshots))
	}
}

func TestFinanceService_ImportRecordIDs(t *testing.T) {
	svc := newTestService(t, nil, nil)
	ctx := context.Background()

	file := `{"expenses":[
		{"category":"Food","amount":10,"date":"2026-03-01"},
		{"category":"Food","amount":20,"date":"2026-03-02"}]}`
	st, err := svc.ImportBackup(ctx, strings.NewReader(file))
	if err != nil {
		t.Fatalf("ImportBackup() error = %v", err)
	}
	if st.Expenses[0].ID == "" || st.Expenses[0].ID == st.Expenses[1].ID {
		t.Fatalf("imported ids = %q, %q", st.Expenses[0].ID, st.Expenses[1].ID)
	}
	if err := svc.DeleteExpense(ctx, ""); !errors.Is(err, ErrExpenseNotFound) {
		t.Errorf("DeleteExpense(\"\") error = %v", err)
	}
	if err := svc.DeleteExpense(ctx, st.Expenses[0].ID); err != nil {
		t.Fatal(err)
	}
	if got := len(svc.State().Expenses); got != 1 {
		t.Errorf("remaining expenses = %d, want 1", got)
	}

	dup := st
	dup.Expenses = append(dup.Expenses, dup.Expenses[0])
	if _, err := svc.Import(ctx, dup); !errors.Is(err, backup.ErrInvalidBackup) {
		t.Errorf("Import(duplicate ids) error = %v, want ErrInvalidBackup", err)
	}
}

func TestFinanceService_DashboardCached(t *testing.T) {
	svc := newTestService(t, nil, nil)
	ctx := context.Background()

	if _, err := svc.UpdateSalary(ctx, 3000, core.Date{}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AddExpense(ctx, ExpenseInput{Category: "Groceries", Amount: 100}); err != nil {
		t.Fatal(err)
	}

	d, err := svc.Dashboard(engine.PeriodMonthly, core.Date{})
	if err != nil {
		t.Fatalf("Dashboard() error = %v", err)
	}
	if d.Income != 3000 || d.Expenses != 100 || d.Balance != 2900 {
		t.Errorf("dashboard = %+v", d)
	}
	if _, err := svc.Dashboard(engine.PeriodMonthly, core.Date{}); err != nil {
		t.Fatal(err)
	}
	if st := svc.DashboardCache().Stats(); st.Hits != 1 || st.Size != 1 {
		t.Errorf("cache stats = %+v", st)
	}

	if _, err := svc.AddExpense(ctx, ExpenseInput{Category: "Groceries", Amount: 50}); err != nil {
		t.Fatal(err)
	}
	d, _ = svc.Dashboard(engine.PeriodMonthly, core.Date{})
	if d.Expenses != 150 {
		t.Errorf("stale dashboard after mutation: expenses = %v", d.Expenses)
	}
}

func TestFinanceService_CategoryQueries(t *testing.T) {
	svc := newTestService(t, nil, nil)
	ctx := context.Background()

	for _, in := range []ExpenseInput{
		{Category: "Groceries", Amount: 100},
		{Category: "Pets", Amount: 30},
		{Category: "Groceries", Amount: 20, Date: core.NewDate(2026, 1, 10)},
	} {
		if _, err := svc.AddExpense(ctx, in); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := svc.AddRecurringRule(ctx, RuleInput{Category: "Rent", Amount: 300, StartDate: core.NewDate(2026, 1, 1)}); err != nil {
		t.Fatal(err)
	}

	all := svc.CategoryTotals(nil, false)
	if all["Groceries"] != 120 || all["Rent"] != 300 {
		t.Errorf("all-time totals = %v", all)
	}

	week := engine.NewRange(core.NewDate(2026, 3, 15), core.NewDate(2026, 3, 21))
	prorated := svc.CategoryTotals(&week, true)
	if !approxEqual(prorated["Rent"], 70) || prorated["Groceries"] != 100 {
		t.Errorf("prorated totals = %v", prorated)
	}

	top := svc.TopCategories(2)
	if len(top) != 2 || top[0].Category != "Rent" || top[1].Category != "Groceries" || top[1].Amount != 100 {
		t.Errorf("TopCategories(2) = %+v", top)
	}

	if len(svc.Insights()) == 0 {
		t.Error("expected insights for a month with spending")
	}
}
