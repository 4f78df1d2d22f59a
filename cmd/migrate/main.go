// Package main applies the sync ledger migrations to DATABASE_URL.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/hephy-analysis/analysis-tools/db/migrations"
	"github.com/hephy-analysis/analysis-tools/db/migrator"
	"github.com/hephy-analysis/analysis-tools/internal/adapters/outbound/postgres"
	"github.com/hephy-analysis/analysis-tools/internal/pkg/env"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	dbURL := fs.String("db", "", "PostgreSQL connection URL (default: DATABASE_URL)")
	list := fs.Bool("list", false, "List applied migrations after migrating")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *dbURL == "" {
		url, err := env.Require("DATABASE_URL")
		if err != nil {
			return err
		}
		*dbURL = url
	}

	logger := env.NewLogger(os.Stdout, false)

	pool, err := postgres.OpenPool(ctx, postgres.DefaultDBConfig(*dbURL))
	if err != nil {
		return err
	}
	defer pool.Close()

	m := migrator.New(pool, migrations.FS, logger)
	n, err := m.ApplyAll(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "applied %d migrations, all up to date\n", n)

	if *list {
		applied, err := m.ListApplied(ctx)
		if err != nil {
			return err
		}
		for _, name := range applied {
			fmt.Fprintf(out, "  %s\n", name)
		}
	}
	return nil
}
