package engine

import (
	"fmt"

	"budget/internal/core"
)

const (
	// WeeksPerMonth is the average-weeks-per-month approximation applied to
	// weekly rules.
	WeeksPerMonth = 4.33
	// DaysPerMonth is the fixed month length used to prorate monthly rules.
	DaysPerMonth = 30.0
)

// Prorator converts a per-occurrence amount of one cadence into a monthly
// equivalent and into an amount for an arbitrary number of days.
type Prorator interface {
	MonthlyEquivalent(amount float64) float64
	ForDays(amount float64, days int) float64
}

// MonthlyProrator implements Prorator for monthly rules.
type MonthlyProrator struct{}

func (MonthlyProrator) MonthlyEquivalent(amount float64) float64 {
	return amount
}

// ForDays scales by days/30.
func (MonthlyProrator) ForDays(amount float64, days int) float64 {
	return amount * float64(days) / DaysPerMonth
}

// WeeklyProrator implements Prorator for weekly rules.
type WeeklyProrator struct{}

func (WeeklyProrator) MonthlyEquivalent(amount float64) float64 {
	return amount * WeeksPerMonth
}

// ForDays scales by the number of weeks in the span, fractional weeks
// included.
func (WeeklyProrator) ForDays(amount float64, days int) float64 {
	return amount * (float64(days) / 7)
}

var prorators = map[core.Frequency]Prorator{
	core.Monthly: MonthlyProrator{},
	core.Weekly:  WeeklyProrator{},
}

// GetProrator returns the prorator for a frequency.
func GetProrator(f core.Frequency) (Prorator, error) {
	p, ok := prorators[f]
	if !ok {
		return nil, fmt.Errorf("unknown frequency: %s", f)
	}
	return p, nil
}

// MonthlyEquivalent returns what rule costs per month. Paused rules and
// rules with an unknown frequency contribute zero.
func MonthlyEquivalent(rule core.RecurringRule) float64 {
	if !rule.Active {
		return 0
	}
	p, err := GetProrator(rule.Frequency)
	if err != nil {
		return 0
	}
	return p.MonthlyEquivalent(rule.Amount)
}

// ProratedForRange returns what rule costs over r. Paused rules and inverted
// ranges yield zero.
func ProratedForRange(rule core.RecurringRule, r Range) float64 {
	if !rule.Active {
		return 0
	}
	p, err := GetProrator(rule.Frequency)
	if err != nil {
		return 0
	}
	return p.ForDays(rule.Amount, r.Days())
}
