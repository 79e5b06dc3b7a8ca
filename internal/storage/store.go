package storage

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/ashita-ai/policymesh/internal/service/audit"
)

// Backend names a storage implementation.
type Backend string

const (
	BackendPostgres Backend = "postgres"
	BackendSQLite   Backend = "sqlite"
)

// Store is an audit repository with lifecycle methods.
type Store interface {
	audit.Repository
	Backend() Backend
	RunMigrations(ctx context.Context, migrationsFS fs.FS) error
	Close(ctx context.Context)
}

var (
	_ Store = (*DB)(nil)
	_ Store = (*SQLiteStore)(nil)
)

// Open connects to the database named by databaseURL.
//
// Accepted forms:
//
//	postgres://... and postgresql://...   PostgreSQL via pgx
//	postgresql+<driver>://...             same; the driver suffix is ignored
//	sqlite:///relative.db                 SQLite file relative to the working dir
//	sqlite:////abs/path.db                SQLite file at an absolute path
//	sqlite://  or  sqlite:///:memory:     private in-memory SQLite
//	file:...                              SQLite DSN passed through unchanged
func Open(ctx context.Context, databaseURL string, logger *slog.Logger) (Store, error) {
	backend, dsn, err := ParseDatabaseURL(databaseURL)
	if err != nil {
		return nil, err
	}
	switch backend {
	case BackendPostgres:
		return New(ctx, dsn, logger)
	default:
		return NewSQLite(ctx, dsn, logger)
	}
}

// ParseDatabaseURL selects a backend and returns the DSN its driver expects.
func ParseDatabaseURL(databaseURL string) (Backend, string, error) {
	raw := strings.TrimSpace(databaseURL)
	if raw == "" {
		return "", "", fmt.Errorf("storage: empty database URL")
	}
	if strings.HasPrefix(raw, "file:") {
		return BackendSQLite, raw, nil
	}

	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return "", "", fmt.Errorf("storage: database URL has no scheme")
	}
	// SQLAlchemy-style URLs carry the client driver after a plus sign.
	scheme, _, _ = strings.Cut(strings.ToLower(scheme), "+")

	switch scheme {
	case "postgres", "postgresql":
		return BackendPostgres, scheme + "://" + rest, nil
	case "sqlite", "sqlite3":
		path := strings.TrimPrefix(rest, "/")
		if path == "" {
			path = ":memory:"
		}
		return BackendSQLite, path, nil
	}
	return "", "", fmt.Errorf("storage: unsupported database scheme %q", scheme)
}
