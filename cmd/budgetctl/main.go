// Command budgetctl inspects and maintains the budget state from a terminal.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"budget/internal/backend"
	"budget/internal/cli"
	"budget/internal/config"
	"budget/internal/log"
	"budget/internal/services"
)

var (
	flagBackend string
	flagDBPath  string
	flagQuiet   bool
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:           "budgetctl",
	Short:         "Budget state CLI",
	Long:          "Inspect the budget dashboard, savings goal and trend, and move state in and out of backups.",
	RunE:          runSummary,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "  Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagBackend, "backend", "", "Data backend override (sqlite, memory)")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "SQLite database path override")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress progress output")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Log at debug level")
}

// session is the state every command works against.
type session struct {
	cfg    *config.Config
	logger *log.Logger
	result *backend.BackendResult
	svc    *services.FinanceService
}

// openSession loads configuration, applies the flag overrides and opens the
// configured repository.
func openSession(ctx context.Context) (*session, error) {
	cli.LoadEnvFile()
	if flagBackend != "" {
		_ = os.Setenv("DATA_BACKEND", flagBackend)
	}
	if flagDBPath != "" {
		_ = os.Setenv("SQLITE_DB_PATH", flagDBPath)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	level := "warn"
	if flagVerbose {
		level = "debug"
	}
	logger := log.New(log.Config{
		Level:     log.ParseLevel(level),
		Format:    cfg.LogFormat,
		Component: "budgetctl",
		Output:    os.Stderr,
	})

	result, bcfg, err := cli.OpenBackend(ctx, logger, cfg)
	if err != nil {
		return nil, err
	}
	svc, err := cli.NewFinanceService(ctx, logger, cfg, result)
	if err != nil {
		_ = result.Cleanup()
		return nil, fmt.Errorf("load state: %w", err)
	}

	if !flagQuiet {
		fmt.Fprintf(os.Stderr, "  Loaded %s state (version %d)\n", bcfg.Type, svc.Version())
	}
	return &session{cfg: cfg, logger: logger, result: result, svc: svc}, nil
}

// Close waits for pending sync publishes and releases the backend.
func (s *session) Close() {
	s.svc.Wait()
	if err := s.result.Cleanup(); err != nil {
		s.logger.Error("Backend cleanup error", log.FieldError, err)
	}
}
