// Package memory is an in-process repository. It can be seeded from a JSON
// backup so that demos and tests start from a known state.
package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"budget/internal/backup"
	"budget/internal/core"
)

type Store struct {
	mu    sync.Mutex
	state *core.FinanceState
	saves int
}

func New() *Store {
	return &Store{}
}

// NewWithState returns a store that already holds s.
func NewWithState(s core.FinanceState) *Store {
	c := s.Clone()
	return &Store{state: &c}
}

// NewFromFile seeds the store from a backup file. A missing file yields an
// empty store.
func NewFromFile(path string, def core.Defaults, today core.Date) (*Store, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	s, err := backup.Import(f, def, today)
	if err != nil {
		return nil, fmt.Errorf("seed %s: %w", path, err)
	}
	return NewWithState(s), nil
}

// Load returns a copy of the stored state, or core.ErrNoState.
func (s *Store) Load(_ context.Context) (core.FinanceState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return core.FinanceState{}, core.ErrNoState
	}
	return s.state.Clone(), nil
}

func (s *Store) Save(_ context.Context, st core.FinanceState) error {
	c := st.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = &c
	s.saves++
	return nil
}

// Saves reports how many times Save was called.
func (s *Store) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
