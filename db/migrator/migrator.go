// Package migrator applies SQL migrations in filename order and records a
// checksum of each, so that edits to an applied migration are detected.
package migrator

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createMigrationsTable = `
	CREATE TABLE IF NOT EXISTS migrations (
		filename   TEXT PRIMARY KEY,
		checksum   TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`

// ErrChecksumMismatch is returned when an applied migration has been edited.
var ErrChecksumMismatch = errors.New("migration has been modified")

type Migrator struct {
	pool   *pgxpool.Pool
	fsys   fs.FS
	logger *slog.Logger
}

// New creates a migrator reading *.sql files from the root of fsys.
func New(pool *pgxpool.Pool, fsys fs.FS, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{
		pool:   pool,
		fsys:   fsys,
		logger: logger.With("component", "migrator"),
	}
}

// ApplyAll applies pending migrations and verifies the checksums of the
// applied ones. It returns the number of migrations applied.
func (m *Migrator) ApplyAll(ctx context.Context) (int, error) {
	if _, err := m.pool.Exec(ctx, createMigrationsTable); err != nil {
		return 0, fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := m.appliedChecksums(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	files, err := MigrationFiles(m.fsys)
	if err != nil {
		return 0, fmt.Errorf("failed to get migration files: %w", err)
	}

	count := 0
	for _, filename := range files {
		content, err := fs.ReadFile(m.fsys, filename)
		if err != nil {
			return count, fmt.Errorf("failed to read %s: %w", filename, err)
		}
		sum := Checksum(content)

		if stored, ok := applied[filename]; ok {
			if stored != sum {
				return count, fmt.Errorf("%s: %w (expected checksum %s, got %s)", filename, ErrChecksumMismatch, stored, sum)
			}
			continue
		}

		if err := m.apply(ctx, filename, content, sum); err != nil {
			return count, fmt.Errorf("failed to apply migration %s: %w", filename, err)
		}
		count++
	}
	return count, nil
}

func (m *Migrator) appliedChecksums(ctx context.Context) (map[string]string, error) {
	rows, err := m.pool.Query(ctx, "SELECT filename, checksum FROM migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]string)
	for rows.Next() {
		var filename, checksum string
		if err := rows.Scan(&filename, &checksum); err != nil {
			return nil, err
		}
		applied[filename] = checksum
	}
	return applied, rows.Err()
}

func (m *Migrator) apply(ctx context.Context, filename string, content []byte, checksum string) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			m.logger.Warn("failed to rollback transaction", "error", err)
		}
	}()

	if _, err := tx.Exec(ctx, string(content)); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}
	if _, err := tx.Exec(ctx,
		"INSERT INTO migrations (filename, checksum) VALUES ($1, $2)",
		filename, checksum); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	m.logger.Info("applied migration", "file", filename, "checksum", checksum[:8])
	return nil
}

// ListApplied returns the applied migrations in the order they were applied.
func (m *Migrator) ListApplied(ctx context.Context) ([]string, error) {
	rows, err := m.pool.Query(ctx,
		"SELECT filename FROM migrations ORDER BY applied_at ASC, filename ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var migrations []string
	for rows.Next() {
		var filename string
		if err := rows.Scan(&filename); err != nil {
			return nil, err
		}
		migrations = append(migrations, filename)
	}
	return migrations, rows.Err()
}

// MigrationFiles lists the *.sql files at the root of fsys, sorted by name.
func MigrationFiles(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}
		if strings.HasPrefix(entry.Name(), "README") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	return files, nil
}

// Checksum returns the hex encoded SHA-256 of a migration.
func Checksum(content []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(content))
}
