package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"budget/internal/backup"
)

var (
	flagOut   string
	flagForce bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the state to a JSON backup file",
	RunE:  runExport,
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the state with a JSON backup",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Discard all data and start from the defaults",
	RunE:  runReset,
}

func init() {
	exportCmd.Flags().StringVarP(&flagOut, "out", "o", "", "Output file (default finance-data-<date>.json, - for stdout)")
	resetCmd.Flags().BoolVar(&flagForce, "force", false, "Confirm the reset")
	rootCmd.AddCommand(exportCmd, importCmd, resetCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	var buf bytes.Buffer
	if err := s.svc.ExportBackup(&buf); err != nil {
		return err
	}

	if flagOut == "-" {
		_, err := os.Stdout.Write(buf.Bytes())
		return err
	}
	path := flagOut
	if path == "" {
		path = backup.FileName(s.svc.Today().Time)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	fmt.Printf("  Exported version %d to %s\n", s.svc.Version(), path)
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	st, err := s.svc.ImportBackup(cmd.Context(), f)
	if err != nil {
		return fmt.Errorf("import %s: %w", args[0], err)
	}
	fmt.Printf("  Imported %d expenses and %d recurring rules (version %d)\n",
		len(st.Expenses), len(st.RecurringRules), st.Version)
	return nil
}

func runReset(cmd *cobra.Command, _ []string) error {
	if !flagForce {
		return fmt.Errorf("reset discards all data; rerun with --force to confirm")
	}

	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	st, err := s.svc.Reset(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("  State reset (version %d)\n", st.Version)
	return nil
}
