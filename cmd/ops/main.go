// Package main provides the operations CLI.
// Usage: ops migrate [up|down|status]
//
//	ops export-payments -o payments.xlsx [--from 2025-04-01] [--to 2026-03-31] [--mode cash]
//	ops dashboard
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/joho/godotenv"

	"taxledger/internal/domain/dashboard"
	"taxledger/internal/domain/payment"
	"taxledger/internal/infrastructure/export"
	"taxledger/internal/infrastructure/storage/postgres"
	"taxledger/internal/infrastructure/storage/postgres/ledger_repo"
	"taxledger/internal/infrastructure/storage/postgres/report_repo"
)

const dateLayout = "2006-01-02"

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()

	var err error
	switch os.Args[1] {
	case "migrate":
		err = migrate(os.Args[2:])
	case "export-payments":
		err = exportPayments(ctx, os.Args[2:])
	case "dashboard":
		err = printDashboard(ctx)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`taxledger operations CLI

Usage:
  ops <command> [options]

Commands:
  migrate           Run goose migrations (up, down, status; default up)
  export-payments   Write payments to an XLSX workbook
  dashboard         Print the dashboard totals as JSON
  help              Show this help

Environment Variables:
  DATABASE_URL      Connection string (required)
  MIGRATIONS_DIR    Migration directory (default db/migrations)

Examples:
  ops migrate
  ops migrate status
  ops export-payments -o payments.xlsx --from 2025-04-01 --to 2026-03-31
  ops export-payments -o cash.xlsx --mode cash`)
}

func databaseURL() (string, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return "", fmt.Errorf("DATABASE_URL environment variable is required")
	}
	return dsn, nil
}

func openPool(ctx context.Context) (*postgres.Pool, error) {
	dsn, err := databaseURL()
	if err != nil {
		return nil, err
	}
	return postgres.NewPool(ctx, postgres.DefaultPoolConfig(dsn))
}

// migrate shells out to the goose binary.
func migrate(args []string) error {
	dsn, err := databaseURL()
	if err != nil {
		return err
	}
	command := "up"
	if len(args) > 0 {
		command = args[0]
	}
	switch command {
	case "up", "down", "status":
	default:
		return fmt.Errorf("unknown migrate command %q", command)
	}

	dir := os.Getenv("MIGRATIONS_DIR")
	if dir == "" {
		dir = "db/migrations"
	}

	cmd := exec.Command("goose", "-dir", dir, "postgres", dsn, command)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	fmt.Println("Migrations completed")
	return nil
}

// exportOptions are the export-payments flags.
type exportOptions struct {
	output string
	filter payment.Filter
}

func parseExportArgs(args []string, now time.Time) (exportOptions, error) {
	fs := flag.NewFlagSet("export-payments", flag.ContinueOnError)
	output := fs.String("o", "", "output file (default payments_<timestamp>.xlsx)")
	from := fs.String("from", "", "first payment date, inclusive (YYYY-MM-DD)")
	to := fs.String("to", "", "last payment date, inclusive (YYYY-MM-DD)")
	mode := fs.String("mode", "", "payment mode")
	if err := fs.Parse(args); err != nil {
		return exportOptions{}, err
	}

	opts := exportOptions{output: *output}
	if opts.output == "" {
		opts.output = export.PaymentsFilename(now)
	}
	if *from != "" {
		t, err := time.Parse(dateLayout, *from)
		if err != nil {
			return exportOptions{}, fmt.Errorf("invalid --from: %w", err)
		}
		opts.filter.From = &t
	}
	if *to != "" {
		t, err := time.Parse(dateLayout, *to)
		if err != nil {
			return exportOptions{}, fmt.Errorf("invalid --to: %w", err)
		}
		end := t.AddDate(0, 0, 1)
		opts.filter.To = &end
	}
	if opts.filter.From != nil && opts.filter.To != nil && !opts.filter.From.Before(*opts.filter.To) {
		return exportOptions{}, fmt.Errorf("--from must not be after --to")
	}
	if *mode != "" {
		m := payment.Mode(*mode)
		if !m.Valid() {
			return exportOptions{}, fmt.Errorf("unknown mode %q", *mode)
		}
		opts.filter.Mode = &m
	}
	return opts, nil
}

func exportPayments(ctx context.Context, args []string) error {
	opts, err := parseExportArgs(args, time.Now())
	if err != nil {
		return err
	}

	pool, err := openPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	txm := postgres.NewTxManager(pool)
	svc := payment.NewService(payment.ServiceConfig{
		Repo:      ledger_repo.NewPaymentRepo(txm),
		TxManager: txm,
	})

	f, err := os.Create(opts.output)
	if err != nil {
		return fmt.Errorf("create %s: %w", opts.output, err)
	}

	rows, err := export.WritePayments(f, func(fn func(*payment.Payment) error) error {
		return svc.Export(ctx, opts.filter, fn)
	})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(opts.output)
		return err
	}

	fmt.Printf("Exported %d payments to %s\n", rows, opts.output)
	return nil
}

func printDashboard(ctx context.Context) error {
	pool, err := openPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	svc := dashboard.NewService(report_repo.NewDashboardRepo(postgres.NewTxManager(pool)), nil, 0)
	totals, err := svc.Get(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(totals)
}
