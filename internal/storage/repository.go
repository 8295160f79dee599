package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"budget/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository persists a single FinanceState across a handful of
// tables. Save replaces the whole state inside one transaction.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY between the API and a CLI run.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	slog.Info("SQLite repository ready", "db_path", dbPath, "schema_version", version)
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Load reads the stored state. It returns core.ErrNoState when nothing has
// been saved yet.
func (r *SQLiteRepository) Load(ctx context.Context) (core.FinanceState, error) {
	var (
		s                                   core.FinanceState
		salaryDate, deadline, trackingStart string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT salary, salary_date, goal_target, goal_deadline, goal_saved, goal_tracking_start, version
		FROM budget_state WHERE id = 1`,
	).Scan(&s.Salary, &salaryDate, &s.SavingsGoal.Target, &deadline, &s.SavingsGoal.Saved, &trackingStart, &s.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return core.FinanceState{}, core.ErrNoState
	}
	if err != nil {
		return core.FinanceState{}, fmt.Errorf("load budget state: %w", err)
	}

	if s.SalaryDate, err = parseStoredDate(salaryDate); err != nil {
		return core.FinanceState{}, fmt.Errorf("salary date: %w", err)
	}
	if s.SavingsGoal.Deadline, err = parseStoredDate(deadline); err != nil {
		return core.FinanceState{}, fmt.Errorf("goal deadline: %w", err)
	}
	if s.SavingsGoal.TrackingStart, err = parseStoredDate(trackingStart); err != nil {
		return core.FinanceState{}, fmt.Errorf("goal tracking start: %w", err)
	}

	if s.Expenses, err = r.loadExpenses(ctx); err != nil {
		return core.FinanceState{}, err
	}
	if s.RecurringRules, err = r.loadRules(ctx); err != nil {
		return core.FinanceState{}, err
	}
	if s.SavingsGoal.Entries, err = r.loadEntries(ctx); err != nil {
		return core.FinanceState{}, err
	}
	if s.MonthlySnapshots, err = r.loadSnapshots(ctx); err != nil {
		return core.FinanceState{}, err
	}

	slog.DebugContext(ctx, "Loaded budget state from SQLite",
		"version", s.Version,
		"expenses", len(s.Expenses),
		"recurring", len(s.RecurringRules),
		"snapshots", len(s.MonthlySnapshots))
	return s, nil
}

func (r *SQLiteRepository) loadExpenses(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, category, amount, description, date FROM expenses ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	out := []core.Expense{}
	for rows.Next() {
		var (
			e    core.Expense
			date string
		)
		if err := rows.Scan(&e.ID, &e.Category, &e.Amount, &e.Description, &date); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		if e.Date, err = parseStoredDate(date); err != nil {
			return nil, fmt.Errorf("expense %s: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) loadRules(ctx context.Context) ([]core.RecurringRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, category, amount, description, frequency, start_date, active
		FROM recurring_rules ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query recurring rules: %w", err)
	}
	defer rows.Close()

	out := []core.RecurringRule{}
	for rows.Next() {
		var (
			rule      core.RecurringRule
			frequency string
			start     string
		)
		if err := rows.Scan(&rule.ID, &rule.Category, &rule.Amount, &rule.Description, &frequency, &start, &rule.Active); err != nil {
			return nil, fmt.Errorf("scan recurring rule: %w", err)
		}
		rule.Frequency = core.Frequency(frequency)
		rule.Recurring = true
		if rule.StartDate, err = parseStoredDate(start); err != nil {
			return nil, fmt.Errorf("recurring rule %s: %w", rule.ID, err)
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) loadEntries(ctx context.Context) ([]core.SavingsEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT date, amount, adjustment FROM savings_entries ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query savings entries: %w", err)
	}
	defer rows.Close()

	out := []core.SavingsEntry{}
	for rows.Next() {
		var (
			e    core.SavingsEntry
			date string
		)
		if err := rows.Scan(&date, &e.Amount, &e.Adjustment); err != nil {
			return nil, fmt.Errorf("scan savings entry: %w", err)
		}
		if e.Date, err = parseStoredDate(date); err != nil {
			return nil, fmt.Errorf("savings entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) loadSnapshots(ctx context.Context) (map[string]core.MonthlySnapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT month, income, expenses, balance FROM monthly_snapshots`)
	if err != nil {
		return nil, fmt.Errorf("query monthly snapshots: %w", err)
	}
	defer rows.Close()

	out := map[string]core.MonthlySnapshot{}
	for rows.Next() {
		var (
			month string
			snap  core.MonthlySnapshot
		)
		if err := rows.Scan(&month, &snap.Income, &snap.Expenses, &snap.Balance); err != nil {
			return nil, fmt.Errorf("scan monthly snapshot: %w", err)
		}
		out[month] = snap
	}
	return out, rows.Err()
}

// Save replaces the stored state with s.
func (r *SQLiteRepository) Save(ctx context.Context, s core.FinanceState) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO budget_state (id, salary, salary_date, goal_target, goal_deadline, goal_saved, goal_tracking_start, version, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			salary = excluded.salary,
			salary_date = excluded.salary_date,
			goal_target = excluded.goal_target,
			goal_deadline = excluded.goal_deadline,
			goal_saved = excluded.goal_saved,
			goal_tracking_start = excluded.goal_tracking_start,
			version = excluded.version,
			updated_at = CURRENT_TIMESTAMP`,
		s.Salary, s.SalaryDate.String(),
		s.SavingsGoal.Target, s.SavingsGoal.Deadline.String(), s.SavingsGoal.Saved,
		s.SavingsGoal.TrackingStart.String(), s.Version)
	if err != nil {
		return fmt.Errorf("upsert budget state: %w", err)
	}

	for _, table := range []string{"expenses", "recurring_rules", "savings_entries", "monthly_snapshots"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for i, e := range s.Expenses {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO expenses (id, position, category, amount, description, date) VALUES (?, ?, ?, ?, ?, ?)`,
			e.ID, i, e.Category, e.Amount, e.Description, e.Date.String()); err != nil {
			return fmt.Errorf("insert expense %s: %w", e.ID, err)
		}
	}
	for i, rule := range s.RecurringRules {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO recurring_rules (id, position, category, amount, description, frequency, start_date, active) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rule.ID, i, rule.Category, rule.Amount, rule.Description, string(rule.Frequency), rule.StartDate.String(), rule.Active); err != nil {
			return fmt.Errorf("insert recurring rule %s: %w", rule.ID, err)
		}
	}
	for _, e := range s.SavingsGoal.Entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO savings_entries (date, amount, adjustment) VALUES (?, ?, ?)`,
			e.Date.String(), e.Amount, e.Adjustment); err != nil {
			return fmt.Errorf("insert savings entry: %w", err)
		}
	}
	for month, snap := range s.MonthlySnapshots {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO monthly_snapshots (month, income, expenses, balance) VALUES (?, ?, ?, ?)`,
			month, snap.Income, snap.Expenses, snap.Balance); err != nil {
			return fmt.Errorf("insert snapshot %s: %w", month, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.DebugContext(ctx, "Budget state saved to SQLite", "version", s.Version)
	return nil
}

func parseStoredDate(s string) (core.Date, error) {
	if s == "" {
		return core.Date{}, nil
	}
	return core.ParseDate(s)
}
