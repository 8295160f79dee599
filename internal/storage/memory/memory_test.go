package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"budget/internal/core"
)

func TestStore_LoadSave(t *testing.T) {
	ctx := context.Background()
	st := New()

	if _, err := st.Load(ctx); !errors.Is(err, core.ErrNoState) {
		t.Fatalf("Load() on empty store error = %v, want ErrNoState", err)
	}

	s := core.DefaultState(core.DefaultDefaults(), core.NewDate(2026, 1, 1))
	s.Expenses = append(s.Expenses, core.Expense{ID: "x", Category: "Pets", Amount: 5, Date: core.NewDate(2026, 1, 2)})
	if err := st.Save(ctx, s); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Mutating the caller's copy must not leak into the store.
	s.Expenses[0].Amount = 999

	got, err := st.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Expenses[0].Amount != 5 {
		t.Errorf("stored amount = %v, want 5", got.Expenses[0].Amount)
	}
	if st.Saves() != 1 {
		t.Errorf("Saves() = %d, want 1", st.Saves())
	}
}

func TestNewFromFile(t *testing.T) {
	dir := t.TempDir()
	today := core.NewDate(2026, 1, 1)

	st, err := NewFromFile(filepath.Join(dir, "missing.json"), core.DefaultDefaults(), today)
	if err != nil {
		t.Fatalf("NewFromFile(missing) error = %v", err)
	}
	if _, err := st.Load(context.Background()); !errors.Is(err, core.ErrNoState) {
		t.Errorf("missing seed should give an empty store, got %v", err)
	}

	path := filepath.Join(dir, "seed.json")
	if err := os.WriteFile(path, []byte(`{"salary": 2500}`), 0o600); err != nil {
		t.Fatal(err)
	}
	st, err = NewFromFile(path, core.DefaultDefaults(), today)
	if err != nil {
		t.Fatalf("NewFromFile() error = %v", err)
	}
	got, err := st.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Salary != 2500 {
		t.Errorf("Salary = %v, want 2500", got.Salary)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFromFile(bad, core.DefaultDefaults(), today); err == nil {
		t.Error("NewFromFile(bad) expected error")
	}
}
