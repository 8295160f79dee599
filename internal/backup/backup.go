// Package backup reads and writes the JSON interchange form of a
// FinanceState.
package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"budget/internal/core"
)

// ErrInvalidBackup is returned for files that cannot be understood as a
// FinanceState.
var ErrInvalidBackup = errors.New("invalid backup file")

// legacyGoalKey is the savings goal key written by older exports.
const legacyGoalKey = "tripSavings"

// FileName returns the download name for an export taken at now.
func FileName(now time.Time) string {
	return "finance-data-" + now.Format(core.DateLayout) + ".json"
}

// Export writes s as indented JSON.
func Export(w io.Writer, s core.FinanceState) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.Clone()); err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}
	return nil
}

// Import decodes a backup onto the default state, so that fields missing
// from the file keep their defaults. Every record is validated and the
// result is normalized before it is returned.
func Import(r io.Reader, def core.Defaults, today core.Date) (core.FinanceState, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return core.FinanceState{}, fmt.Errorf("read backup: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return core.FinanceState{}, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}
	if raw == nil {
		return core.FinanceState{}, fmt.Errorf("%w: empty document", ErrInvalidBackup)
	}

	s := core.DefaultState(def, today)
	if err := json.Unmarshal(data, &s); err != nil {
		return core.FinanceState{}, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}
	if _, ok := raw["savingsGoal"]; !ok {
		if legacy, ok := raw[legacyGoalKey]; ok {
			if err := json.Unmarshal(legacy, &s.SavingsGoal); err != nil {
				return core.FinanceState{}, fmt.Errorf("%w: %s: %v", ErrInvalidBackup, legacyGoalKey, err)
			}
		}
	}
	s.Version = 0

	core.Normalize(&s, def, today)
	if err := validate(s); err != nil {
		return core.FinanceState{}, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}
	return s, nil
}

func validate(s core.FinanceState) error {
	if err := core.ValidateIncome(s.Salary); err != nil {
		return fmt.Errorf("salary: %w", err)
	}
	for i, e := range s.Expenses {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("expenses[%d] %s: %w", i, e.ID, err)
		}
	}
	for i, r := range s.RecurringRules {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("recurringExpenses[%d] %s: %w", i, r.ID, err)
		}
	}
	if err := s.SavingsGoal.Validate(); err != nil {
		return fmt.Errorf("savingsGoal: %w", err)
	}
	return s.CheckIDs()
}
