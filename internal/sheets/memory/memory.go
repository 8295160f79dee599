// Package memory is a StateMirror that keeps the rendered tabs in process.
// The worker falls back to it when no spreadsheet is configured.
package memory

import (
	"context"
	"sync"

	"budget/internal/core"
	"budget/internal/sheets"
)

type Mirror struct {
	mu      sync.Mutex
	tabs    map[string][][]any
	version int64
	calls   int
	err     error
}

var _ sheets.StateMirror = (*Mirror)(nil)

func New() *Mirror {
	return &Mirror{tabs: map[string][][]any{}}
}

// Mirror implements sheets.StateMirror.
func (m *Mirror) Mirror(_ context.Context, s core.FinanceState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	for _, tab := range sheets.Render(s) {
		m.tabs[tab.Name] = tab.Rows
	}
	m.version = s.Version
	return nil
}

// FailWith makes subsequent Mirror calls return err; nil restores success.
func (m *Mirror) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Tab returns the rows last written to the named tab.
func (m *Mirror) Tab(name string) [][]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tabs[name]
}

// Version returns the state version of the last successful mirror.
func (m *Mirror) Version() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version
}

// Calls counts Mirror invocations, failed ones included.
func (m *Mirror) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
