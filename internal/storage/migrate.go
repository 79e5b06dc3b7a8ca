package storage

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
)

// migrationTarget is a database that can run forward-only migrations.
type migrationTarget interface {
	execMigration(ctx context.Context, query string, args ...any) error
	appliedMigrations(ctx context.Context) (map[string]bool, error)
}

// migrationDialect holds the backend-specific bookkeeping statements.
type migrationDialect struct {
	createTable string
	record      string
}

var postgresDialect = migrationDialect{
	createTable: `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	record: `INSERT INTO schema_migrations (version) VALUES ($1) ON CONFLICT DO NOTHING`,
}

var sqliteDialect = migrationDialect{
	createTable: `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	record: `INSERT OR IGNORE INTO schema_migrations (version) VALUES (?)`,
}

// runMigrations executes unapplied .sql files from migrationsFS in name
// order and records each one in schema_migrations so it runs at most once.
// This is a simple forward-only runner; there are no down migrations.
func runMigrations(ctx context.Context, t migrationTarget, d migrationDialect, migrationsFS fs.FS, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if err := t.execMigration(ctx, d.createTable); err != nil {
		return fmt.Errorf("storage: create schema_migrations: %w", err)
	}

	applied, err := t.appliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("storage: load applied migrations: %w", err)
	}

	entries, err := fs.ReadDir(migrationsFS, ".")
	if err != nil {
		return fmt.Errorf("storage: read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		if applied[name] {
			logger.Debug("migration already applied, skipping", "file", name)
			continue
		}

		content, err := fs.ReadFile(migrationsFS, name)
		if err != nil {
			return fmt.Errorf("storage: read migration %s: %w", name, err)
		}

		logger.Info("running migration", "file", name)
		if err := t.execMigration(ctx, string(content)); err != nil {
			return fmt.Errorf("storage: execute migration %s: %w", name, err)
		}
		if err := t.execMigration(ctx, d.record, name); err != nil {
			return fmt.Errorf("storage: record migration %s: %w", name, err)
		}
	}
	return nil
}
