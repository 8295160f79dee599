package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

const (
	Monthly Frequency = "monthly"
	Weekly  Frequency = "weekly"
)

const (
	KindOneTime   EntryKind = "one-time"
	KindRecurring EntryKind = "recurring"
)

type (
	Frequency string

	// EntryKind discriminates one-time expenses from recurring rules when
	// both are presented in a single list.
	EntryKind string

	Expense struct {
		ID          string  `json:"id"`
		Category    string  `json:"category"`
		Amount      float64 `json:"amount"`
		Description string  `json:"description"`
		Date        Date    `json:"date"`
		Recurring   bool    `json:"recurring"` // always false
	}

	RecurringRule struct {
		ID          string    `json:"id"`
		Category    string    `json:"category"`
		Amount      float64   `json:"amount"` // per occurrence
		Description string    `json:"description"`
		Frequency   Frequency `json:"frequency"`
		StartDate   Date      `json:"startDate"`
		Active      bool      `json:"active"`
		Recurring   bool      `json:"recurring"` // always true
	}

	// Entry is the tagged union of the two expense variants. Exactly one of
	// OneTime or Rule is set, matching Kind.
	Entry struct {
		Kind    EntryKind      `json:"kind"`
		OneTime *Expense       `json:"expense,omitempty"`
		Rule    *RecurringRule `json:"rule,omitempty"`
	}

	SavingsEntry struct {
		Date       Date    `json:"date"`
		Amount     float64 `json:"amount"`
		Adjustment bool    `json:"adjustment,omitempty"`
	}

	SavingsGoal struct {
		Target        float64        `json:"target"`
		Deadline      Date           `json:"deadline"`
		Saved         float64        `json:"saved"`
		Entries       []SavingsEntry `json:"entries"`
		TrackingStart Date           `json:"trackingStart"`
	}

	MonthlySnapshot struct {
		Income   float64 `json:"income"`
		Expenses float64 `json:"expenses"`
		Balance  float64 `json:"balance"`
	}
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidDate       = errors.New("invalid date")
	ErrEmptyCategory     = errors.New("empty category")
	ErrInvalidFrequency  = errors.New("invalid frequency")
	ErrInvalidTarget     = errors.New("savings target must be positive")
	ErrDescriptionLength = errors.New("description too long (max 200 characters)")
	ErrNoState           = errors.New("no saved state")
	ErrMissingID         = errors.New("missing id")
	ErrDuplicateID       = errors.New("duplicate id")
)

const maxDescriptionLength = 200

// IsValidation reports whether err is one of the input validation failures.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidAmount, ErrInvalidDate, ErrEmptyCategory,
		ErrInvalidFrequency, ErrInvalidTarget, ErrDescriptionLength,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsValid reports whether f is one of the supported cadences.
func (f Frequency) IsValid() bool {
	switch f {
	case Monthly, Weekly:
		return true
	default:
		return false
	}
}

func (f Frequency) String() string {
	return string(f)
}

// ValidateAmount accepts finite, strictly positive amounts.
func ValidateAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// ValidateIncome accepts finite, non-negative amounts. A zero salary is a
// legitimate state.
func ValidateIncome(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func validateDescription(s string) error {
	if len(s) > maxDescriptionLength {
		return ErrDescriptionLength
	}
	return nil
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if err := ValidateAmount(e.Amount); err != nil {
		return err
	}
	return validateDescription(e.Description)
}

func (r RecurringRule) Validate() error {
	if err := r.StartDate.Validate(); err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	if !r.Frequency.IsValid() {
		return ErrInvalidFrequency
	}
	if strings.TrimSpace(r.Category) == "" {
		return ErrEmptyCategory
	}
	if err := ValidateAmount(r.Amount); err != nil {
		return err
	}
	return validateDescription(r.Description)
}

func (g SavingsGoal) Validate() error {
	if math.IsNaN(g.Target) || math.IsInf(g.Target, 0) || g.Target <= 0 {
		return ErrInvalidTarget
	}
	if err := g.Deadline.Validate(); err != nil {
		return fmt.Errorf("invalid deadline: %w", err)
	}
	return nil
}

// EntrySum returns the sum of all savings entries.
func (g SavingsGoal) EntrySum() float64 {
	var sum float64
	for _, e := range g.Entries {
		sum += e.Amount
	}
	return sum
}

// Date returns the date used to order the entry in mixed listings.
func (e Entry) Date() Date {
	switch e.Kind {
	case KindOneTime:
		return e.OneTime.Date
	case KindRecurring:
		return e.Rule.StartDate
	default:
		return Date{}
	}
}
