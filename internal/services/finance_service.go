// Package services holds FinanceService, the single owner of the mutable
// budget state. It validates mutations, persists them, records monthly
// snapshots and announces every new version to the sync worker.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"budget/internal/backup"
	"budget/internal/cache"
	"budget/internal/core"
	"budget/internal/engine"
	"budget/internal/log"
)

var (
	ErrExpenseNotFound = errors.New("expense not found")
	ErrRuleNotFound    = errors.New("recurring expense not found")
)

// publishTimeout bounds a single fire-and-forget sync publish.
const publishTimeout = 10 * time.Second

type (
	// Repository persists the whole state. Load returns core.ErrNoState when
	// nothing has been saved yet.
	Repository interface {
		Load(ctx context.Context) (core.FinanceState, error)
		Save(ctx context.Context, s core.FinanceState) error
	}

	// Publisher announces a committed state version.
	Publisher interface {
		PublishStateSync(ctx context.Context, version int64, reason string) error
	}

	// Pinger is implemented by repositories that can report readiness.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)

type Options struct {
	Defaults  core.Defaults
	TopN      int
	CacheSize int
	CacheTTL  time.Duration
	Clock     func() time.Time
	Logger    *log.Logger
}

type ExpenseInput struct {
	Category    string    `json:"category"`
	Amount      float64   `json:"amount"`
	Description string    `json:"description"`
	Date        core.Date `json:"date"`
}

// ExpensePatch changes only the fields that are set.
type ExpensePatch struct {
	Category    *string    `json:"category,omitempty"`
	Amount      *float64   `json:"amount,omitempty"`
	Description *string    `json:"description,omitempty"`
	Date        *core.Date `json:"date,omitempty"`
}

type RuleInput struct {
	Category    string         `json:"category"`
	Amount      float64        `json:"amount"`
	Description string         `json:"description"`
	Frequency   core.Frequency `json:"frequency"`
	StartDate   core.Date      `json:"startDate"`
}

type RulePatch struct {
	Category    *string         `json:"category,omitempty"`
	Amount      *float64        `json:"amount,omitempty"`
	Description *string         `json:"description,omitempty"`
	Frequency   *core.Frequency `json:"frequency,omitempty"`
	StartDate   *core.Date      `json:"startDate,omitempty"`
}

// GoalUpdate replaces the target and deadline. A zero TrackingStart keeps
// the current one.
type GoalUpdate struct {
	Target        float64   `json:"target"`
	Deadline      core.Date `json:"deadline"`
	TrackingStart core.Date `json:"trackingStart"`
}

// FinanceService serializes all mutations behind one lock. Reads return
// deep copies so callers never observe a half-applied change.
type FinanceService struct {
	mu        sync.RWMutex
	state     core.FinanceState
	repo      Repository
	publisher Publisher

	defaults   core.Defaults
	projector  engine.Projector
	topN       int
	dashboards *cache.LRUCache[engine.Dashboard]
	clock      func() time.Time

	logger     *log.Logger
	structured *log.StructuredLogger
	inflight   sync.WaitGroup
}

// NewFinanceService loads the persisted state, falling back to the defaults
// when the repository is empty. publisher may be nil.
func NewFinanceService(ctx context.Context, repo Repository, publisher Publisher, opts Options) (*FinanceService, error) {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 64
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	logger := opts.Logger.WithComponent(log.ComponentFinance)

	svc := &FinanceService{
		repo:       repo,
		publisher:  publisher,
		defaults:   opts.Defaults,
		projector:  engine.NewProjector(opts.Defaults.TrackingStart),
		topN:       opts.TopN,
		dashboards: cache.NewLRUCache[engine.Dashboard](opts.CacheSize, opts.CacheTTL),
		clock:      opts.Clock,
		logger:     logger,
		structured: log.NewStructuredLogger(logger),
	}

	today := svc.today()
	s, err := repo.Load(ctx)
	switch {
	case errors.Is(err, core.ErrNoState):
		s = core.DefaultState(opts.Defaults, today)
		logger.InfoContext(ctx, "No saved state, starting from defaults")
	case err != nil:
		return nil, fmt.Errorf("load state: %w", err)
	default:
		core.Normalize(&s, opts.Defaults, today)
	}
	svc.state = s
	return svc, nil
}

func (s *FinanceService) today() core.Date {
	return core.DateOf(s.clock())
}

// Today is the current day on the service clock.
func (s *FinanceService) Today() core.Date {
	return s.today()
}

// DashboardCache exposes the dashboard cache for registration with a
// cache.Manager.
func (s *FinanceService) DashboardCache() *cache.LRUCache[engine.Dashboard] {
	return s.dashboards
}

// mutate applies fn to a copy of the state, persists it and only then makes
// it current. snapshot records the current month after fn succeeds.
func (s *FinanceService) mutate(ctx context.Context, op string, snapshot bool, fields log.LogFields, fn func(st *core.FinanceState, today core.Date) error) (core.FinanceState, error) {
	s.mu.Lock()

	today := s.today()
	next := s.state.Clone()
	if err := fn(&next, today); err != nil {
		s.mu.Unlock()
		return core.FinanceState{}, err
	}
	if snapshot {
		engine.RecordSnapshot(&next, today)
	}
	next.Version = s.state.Version + 1

	if err := s.repo.Save(ctx, next); err != nil {
		s.mu.Unlock()
		s.structured.LogError(ctx, "Failed to save state", err, log.ComponentStorage, op, fields)
		return core.FinanceState{}, fmt.Errorf("save state: %w", err)
	}
	s.state = next
	s.dashboards.Purge()
	s.mu.Unlock()

	s.structured.LogMutation(ctx, op, next.Version, fields)
	s.publish(next.Version, op)
	return next.Clone(), nil
}

// publish announces version without blocking the caller. Failures are
// logged; the worker's periodic resync covers lost messages.
func (s *FinanceService) publish(version int64, reason string) {
	if s.publisher == nil {
		return
	}
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := s.publisher.PublishStateSync(ctx, version, reason); err != nil {
			s.logger.Warn("Failed to publish state sync", log.FieldVersion, version, log.FieldOperation, reason, log.FieldError, err)
		}
	}()
}

// Wait blocks until in-flight sync publishes have finished.
func (s *FinanceService) Wait() {
	s.inflight.Wait()
}

// State returns a deep copy of the current state.
func (s *FinanceService) State() core.FinanceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

func (s *FinanceService) Version() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Version
}

// Ping reports repository readiness when the repository supports it.
func (s *FinanceService) Ping(ctx context.Context) error {
	if p, ok := s.repo.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (s *FinanceService) UpdateSalary(ctx context.Context, amount float64, date core.Date) (core.FinanceState, error) {
	if err := core.ValidateIncome(amount); err != nil {
		return core.FinanceState{}, err
	}
	fields := log.LogFields{log.FieldAmount: amount, log.FieldDate: date.String()}
	return s.mutate(ctx, log.OpUpdate, true, fields, func(st *core.FinanceState, today core.Date) error {
		if date.IsZero() {
			date = today
		}
		st.Salary = amount
		st.SalaryDate = date
		return nil
	})
}

func (s *FinanceService) AddExpense(ctx context.Context, in ExpenseInput) (core.Expense, error) {
	var out core.Expense
	fields := log.NewFields().WithExpense("", in.Category, in.Amount, in.Date.String())
	_, err := s.mutate(ctx, log.OpCreate, true, fields, func(st *core.FinanceState, today core.Date) error {
		e := core.Expense{
			ID:          uuid.NewString(),
			Category:    in.Category,
			Amount:      in.Amount,
			Description: in.Description,
			Date:        in.Date,
		}
		if e.Date.IsZero() {
			e.Date = today
		}
		if err := e.Validate(); err != nil {
			return err
		}
		st.Expenses = append(st.Expenses, e)
		out = e
		return nil
	})
	return out, err
}

func (s *FinanceService) UpdateExpense(ctx context.Context, id string, patch ExpensePatch) (core.Expense, error) {
	var out core.Expense
	fields := log.NewFields().WithExpense(id, "", 0, "")
	_, err := s.mutate(ctx, log.OpUpdate, true, fields, func(st *core.FinanceState, _ core.Date) error {
		i := slices.IndexFunc(st.Expenses, func(e core.Expense) bool { return e.ID == id })
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrExpenseNotFound, id)
		}
		e := st.Expenses[i]
		if patch.Category != nil {
			e.Category = *patch.Category
		}
		if patch.Amount != nil {
			e.Amount = *patch.Amount
		}
		if patch.Description != nil {
			e.Description = *patch.Description
		}
		if patch.Date != nil {
			e.Date = *patch.Date
		}
		if err := e.Validate(); err != nil {
			return err
		}
		st.Expenses[i] = e
		out = e
		return nil
	})
	return out, err
}

func (s *FinanceService) DeleteExpense(ctx context.Context, id string) error {
	fields := log.NewFields().WithExpense(id, "", 0, "")
	_, err := s.mutate(ctx, log.OpDelete, true, fields, func(st *core.FinanceState, _ core.Date) error {
		n := len(st.Expenses)
		st.Expenses = slices.DeleteFunc(st.Expenses, func(e core.Expense) bool { return e.ID == id })
		if len(st.Expenses) == n {
			return fmt.Errorf("%w: %s", ErrExpenseNotFound, id)
		}
		return nil
	})
	return err
}

func (s *FinanceService) AddRecurringRule(ctx context.Context, in RuleInput) (core.RecurringRule, error) {
	var out core.RecurringRule
	fields := log.NewFields().WithRule("", in.Category, in.Amount, string(in.Frequency))
	_, err := s.mutate(ctx, log.OpCreate, true, fields, func(st *core.FinanceState, today core.Date) error {
		r := core.RecurringRule{
			ID:          uuid.NewString(),
			Category:    in.Category,
			Amount:      in.Amount,
			Description: in.Description,
			Frequency:   in.Frequency,
			StartDate:   in.StartDate,
			Active:      true,
			Recurring:   true,
		}
		if r.Frequency == "" {
			r.Frequency = core.Monthly
		}
		if r.StartDate.IsZero() {
			r.StartDate = today
		}
		if err := r.Validate(); err != nil {
			return err
		}
		st.RecurringRules = append(st.RecurringRules, r)
		out = r
		return nil
	})
	return out, err
}

func (s *FinanceService) UpdateRecurringRule(ctx context.Context, id string, patch RulePatch) (core.RecurringRule, error) {
	return s.updateRule(ctx, id, log.OpUpdate, func(r *core.RecurringRule) {
		if patch.Category != nil {
			r.Category = *patch.Category
		}
		if patch.Amount != nil {
			r.Amount = *patch.Amount
		}
		if patch.Description != nil {
			r.Description = *patch.Description
		}
		if patch.Frequency != nil {
			r.Frequency = *patch.Frequency
		}
		if patch.StartDate != nil {
			r.StartDate = *patch.StartDate
		}
	})
}

// SetRecurringActive pauses or resumes a rule. Paused rules are excluded
// from every total but kept in the state.
func (s *FinanceService) SetRecurringActive(ctx context.Context, id string, active bool) (core.RecurringRule, error) {
	return s.updateRule(ctx, id, log.OpUpdate, func(r *core.RecurringRule) {
		r.Active = active
	})
}

func (s *FinanceService) updateRule(ctx context.Context, id, op string, apply func(*core.RecurringRule)) (core.RecurringRule, error) {
	var out core.RecurringRule
	fields := log.NewFields().WithRule(id, "", 0, "")
	_, err := s.mutate(ctx, op, true, fields, func(st *core.FinanceState, _ core.Date) error {
		i := slices.IndexFunc(st.RecurringRules, func(r core.RecurringRule) bool { return r.ID == id })
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
		}
		r := st.RecurringRules[i]
		apply(&r)
		if err := r.Validate(); err != nil {
			return err
		}
		st.RecurringRules[i] = r
		out = r
		return nil
	})
	return out, err
}

func (s *FinanceService) DeleteRecurringRule(ctx context.Context, id string) error {
	fields := log.NewFields().WithRule(id, "", 0, "")
	_, err := s.mutate(ctx, log.OpDelete, true, fields, func(st *core.FinanceState, _ core.Date) error {
		n := len(st.RecurringRules)
		st.RecurringRules = slices.DeleteFunc(st.RecurringRules, func(r core.RecurringRule) bool { return r.ID == id })
		if len(st.RecurringRules) == n {
			return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
		}
		return nil
	})
	return err
}

// AddSavingsDeposit records a positive contribution to the goal.
func (s *FinanceService) AddSavingsDeposit(ctx context.Context, amount float64, date core.Date) (core.SavingsGoal, error) {
	if err := core.ValidateAmount(amount); err != nil {
		return core.SavingsGoal{}, err
	}
	st, err := s.mutate(ctx, log.OpDeposit, false, log.NewFields().WithGoal(0, amount, date.String()), func(st *core.FinanceState, today core.Date) error {
		if date.IsZero() {
			date = today
		}
		g := &st.SavingsGoal
		g.Entries = append(g.Entries, core.SavingsEntry{Date: date, Amount: amount})
		g.Saved += amount
		return nil
	})
	return st.SavingsGoal, err
}

// CorrectSaved sets the saved total to amount by appending an adjustment
// entry for the difference.
func (s *FinanceService) CorrectSaved(ctx context.Context, amount float64, date core.Date) (core.SavingsGoal, error) {
	if err := core.ValidateIncome(amount); err != nil {
		return core.SavingsGoal{}, err
	}
	st, err := s.mutate(ctx, log.OpCorrect, false, log.NewFields().WithGoal(0, amount, date.String()), func(st *core.FinanceState, today core.Date) error {
		if date.IsZero() {
			date = today
		}
		g := &st.SavingsGoal
		diff := amount - g.Saved
		if math.Abs(diff) >= 1e-9 {
			g.Entries = append(g.Entries, core.SavingsEntry{Date: date, Amount: diff, Adjustment: true})
		}
		g.Saved = amount
		return nil
	})
	return st.SavingsGoal, err
}

func (s *FinanceService) UpdateSavingsGoal(ctx context.Context, in GoalUpdate) (core.SavingsGoal, error) {
	fields := log.NewFields().WithGoal(in.Target, 0, in.Deadline.String())
	st, err := s.mutate(ctx, log.OpUpdate, false, fields, func(st *core.FinanceState, _ core.Date) error {
		g := st.SavingsGoal
		g.Target = in.Target
		g.Deadline = in.Deadline
		if !in.TrackingStart.IsZero() {
			g.TrackingStart = in.TrackingStart
		}
		if err := g.Validate(); err != nil {
			return err
		}
		st.SavingsGoal = g
		return nil
	})
	return st.SavingsGoal, err
}

// Import replaces the whole state. The incoming state is normalized against
// the configured defaults; its version is superseded by the next one.
func (s *FinanceService) Import(ctx context.Context, in core.FinanceState) (core.FinanceState, error) {
	return s.mutate(ctx, log.OpImport, true, nil, func(st *core.FinanceState, today core.Date) error {
		next := in.Clone()
		core.Normalize(&next, s.defaults, today)
		if err := next.CheckIDs(); err != nil {
			return fmt.Errorf("%w: %v", backup.ErrInvalidBackup, err)
		}
		*st = next
		return nil
	})
}

// ImportBackup decodes a backup file and imports it.
func (s *FinanceService) ImportBackup(ctx context.Context, r io.Reader) (core.FinanceState, error) {
	in, err := backup.Import(r, s.defaults, s.today())
	if err != nil {
		return core.FinanceState{}, err
	}
	return s.Import(ctx, in)
}

// ExportBackup writes the current state as a backup file.
func (s *FinanceService) ExportBackup(w io.Writer) error {
	return backup.Export(w, s.State())
}

// Reset discards everything and starts over from the defaults.
func (s *FinanceService) Reset(ctx context.Context) (core.FinanceState, error) {
	return s.mutate(ctx, log.OpReset, true, nil, func(st *core.FinanceState, today core.Date) error {
		*st = core.DefaultState(s.defaults, today)
		return nil
	})
}

// Dashboard returns the dashboard for the period of kind containing date.
// Results are cached per state version and day.
func (s *FinanceService) Dashboard(kind engine.PeriodKind, date core.Date) (engine.Dashboard, error) {
	today := s.today()
	if date.IsZero() {
		date = today
	}
	st := s.State()
	key := fmt.Sprintf("%d|%s|%s|%s", st.Version, kind, date, today)
	return s.dashboards.GetOrLoad(key, func() (engine.Dashboard, error) {
		p := engine.PeriodOf(kind, date)
		return engine.BuildDashboard(st, p, today, engine.DashboardOptions{
			TopN:      s.topN,
			Projector: s.projector,
		}), nil
	})
}

func (s *FinanceService) Insights() []engine.Insight {
	return engine.Insights(s.State(), s.today(), s.projector)
}

func (s *FinanceService) Goal() engine.GoalMetrics {
	return s.projector.Project(s.State().SavingsGoal, s.today())
}

// CategoryTotals sums spending per category. With prorate set, recurring
// rules contribute their share of r instead of a full monthly equivalent;
// prorating requires a range.
func (s *FinanceService) CategoryTotals(r *engine.Range, prorate bool) map[string]float64 {
	st := s.State()
	if prorate && r != nil {
		return engine.ProratedCategoryTotals(st.Expenses, st.RecurringRules, *r)
	}
	return engine.CategoryTotals(st.Expenses, st.RecurringRules, r)
}

// TopCategories ranks the categories of the month containing today.
func (s *FinanceService) TopCategories(limit int) []engine.CategoryAmount {
	month := engine.MonthOf(s.today())
	return engine.TopCategories(s.CategoryTotals(&month.Range, false), limit)
}

func (s *FinanceService) Snapshots() []engine.SnapshotPoint {
	return engine.SnapshotTrend(s.State().MonthlySnapshots)
}
