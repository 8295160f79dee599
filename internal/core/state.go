package core

import (
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/google/uuid"
)

// FinanceState is the complete persisted state of one budget. JSON keys match
// the interchange format used by backups.
type FinanceState struct {
	Salary           float64                    `json:"salary"`
	SalaryDate       Date                       `json:"salaryDate"`
	Expenses         []Expense                  `json:"expenses"`
	RecurringRules   []RecurringRule            `json:"recurringExpenses"`
	SavingsGoal      SavingsGoal                `json:"savingsGoal"`
	MonthlySnapshots map[string]MonthlySnapshot `json:"monthlySnapshots"`
	Version          int64                      `json:"version,omitempty"`
}

// Defaults holds the values substituted for missing fields on load.
type Defaults struct {
	GoalTarget    float64
	GoalDeadline  Date
	TrackingStart Date
}

// DefaultDefaults returns the built-in goal defaults.
func DefaultDefaults() Defaults {
	return Defaults{
		GoalTarget:   20000,
		GoalDeadline: NewDate(2026, 7, 1),
	}
}

// DefaultState returns an empty state carrying the configured goal defaults.
func DefaultState(def Defaults, today Date) FinanceState {
	return FinanceState{
		SalaryDate:     today,
		Expenses:       []Expense{},
		RecurringRules: []RecurringRule{},
		SavingsGoal: SavingsGoal{
			Target:        def.GoalTarget,
			Deadline:      def.GoalDeadline,
			Entries:       []SavingsEntry{},
			TrackingStart: def.TrackingStart,
		},
		MonthlySnapshots: map[string]MonthlySnapshot{},
	}
}

// Clone returns a deep copy of s.
func (s FinanceState) Clone() FinanceState {
	out := s
	out.Expenses = slices.Clone(s.Expenses)
	out.RecurringRules = slices.Clone(s.RecurringRules)
	out.SavingsGoal.Entries = slices.Clone(s.SavingsGoal.Entries)
	out.MonthlySnapshots = maps.Clone(s.MonthlySnapshots)
	if out.Expenses == nil {
		out.Expenses = []Expense{}
	}
	if out.RecurringRules == nil {
		out.RecurringRules = []RecurringRule{}
	}
	if out.SavingsGoal.Entries == nil {
		out.SavingsGoal.Entries = []SavingsEntry{}
	}
	if out.MonthlySnapshots == nil {
		out.MonthlySnapshots = map[string]MonthlySnapshot{}
	}
	return out
}

// Normalize fills missing fields from def and restores the invariants the
// rest of the system relies on. Discriminants match the variant, collections
// are non-nil, every record has an ID, and the goal's saved amount equals
// the sum of its entries.
func Normalize(s *FinanceState, def Defaults, today Date) {
	if s.SalaryDate.IsZero() {
		s.SalaryDate = today
	}
	if s.Expenses == nil {
		s.Expenses = []Expense{}
	}
	if s.RecurringRules == nil {
		s.RecurringRules = []RecurringRule{}
	}
	if s.MonthlySnapshots == nil {
		s.MonthlySnapshots = map[string]MonthlySnapshot{}
	}
	for i := range s.Expenses {
		s.Expenses[i].Recurring = false
		if s.Expenses[i].ID == "" {
			s.Expenses[i].ID = uuid.NewString()
		}
	}
	for i := range s.RecurringRules {
		s.RecurringRules[i].Recurring = true
		if s.RecurringRules[i].ID == "" {
			s.RecurringRules[i].ID = uuid.NewString()
		}
		if s.RecurringRules[i].Frequency == "" {
			s.RecurringRules[i].Frequency = Monthly
		}
	}

	g := &s.SavingsGoal
	if g.Target <= 0 || math.IsNaN(g.Target) || math.IsInf(g.Target, 0) {
		g.Target = def.GoalTarget
	}
	if g.Deadline.IsZero() {
		g.Deadline = def.GoalDeadline
	}
	if g.TrackingStart.IsZero() {
		g.TrackingStart = def.TrackingStart
	}
	NormalizeGoal(g, today)
}

// CheckIDs reports the first ID shared by two records. Expenses and
// recurring rules share one ID space.
func (s FinanceState) CheckIDs() error {
	seen := make(map[string]struct{}, len(s.Expenses)+len(s.RecurringRules))
	check := func(id string) error {
		if id == "" {
			return ErrMissingID
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateID, id)
		}
		seen[id] = struct{}{}
		return nil
	}
	for _, e := range s.Expenses {
		if err := check(e.ID); err != nil {
			return err
		}
	}
	for _, r := range s.RecurringRules {
		if err := check(r.ID); err != nil {
			return err
		}
	}
	return nil
}

// NormalizeGoal appends an adjustment entry when Saved and the entry log
// disagree, so that Saved == EntrySum() holds afterwards.
func NormalizeGoal(g *SavingsGoal, today Date) {
	if g.Entries == nil {
		g.Entries = []SavingsEntry{}
	}
	if math.IsNaN(g.Saved) || math.IsInf(g.Saved, 0) {
		g.Saved = 0
	}
	diff := g.Saved - g.EntrySum()
	if math.Abs(diff) < 1e-9 {
		return
	}
	g.Entries = append(g.Entries, SavingsEntry{Date: today, Amount: diff, Adjustment: true})
}

// Entries merges one-time expenses and recurring rules into a single list,
// newest first.
func (s FinanceState) Entries() []Entry {
	out := make([]Entry, 0, len(s.Expenses)+len(s.RecurringRules))
	for i := range s.Expenses {
		e := s.Expenses[i]
		out = append(out, Entry{Kind: KindOneTime, OneTime: &e})
	}
	for i := range s.RecurringRules {
		r := s.RecurringRules[i]
		out = append(out, Entry{Kind: KindRecurring, Rule: &r})
	}
	slices.SortStableFunc(out, func(a, b Entry) int {
		return b.Date().Compare(a.Date().Time)
	})
	return out
}
