// Package sheets defines the remote mirror of the budget state and the
// tabular layout shared by its adapters.
package sheets

import (
	"context"

	"budget/internal/core"
)

// Ports for outbound adapters.
type (
	// StateMirror replaces the remote copy with s.
	StateMirror interface {
		Mirror(ctx context.Context, s core.FinanceState) error
	}
)

// Tab names written by every mirror.
const (
	TabExpenses  = "Expenses"
	TabRecurring = "Recurring"
	TabSavings   = "Savings"
	TabSnapshots = "Snapshots"
)
