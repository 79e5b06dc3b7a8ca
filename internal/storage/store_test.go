package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDatabaseURL(t *testing.T) {
	tests := []struct {
		in      string
		backend Backend
		dsn     string
	}{
		{"postgres://u:p@db:5432/pm", BackendPostgres, "postgres://u:p@db:5432/pm"},
		{"postgresql://u:p@db/pm?sslmode=disable", BackendPostgres, "postgresql://u:p@db/pm?sslmode=disable"},
		{"postgresql+psycopg://u:p@db/pm", BackendPostgres, "postgresql://u:p@db/pm"},
		{"sqlite:///audit.db", BackendSQLite, "audit.db"},
		{"sqlite:////var/lib/pm/audit.db", BackendSQLite, "/var/lib/pm/audit.db"},
		{"sqlite+aiosqlite:///./audit.db", BackendSQLite, "./audit.db"},
		{"sqlite://", BackendSQLite, ":memory:"},
		{"sqlite:///:memory:", BackendSQLite, ":memory:"},
		{"file:audit.db?_pragma=journal_mode(WAL)", BackendSQLite, "file:audit.db?_pragma=journal_mode(WAL)"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			backend, dsn, err := ParseDatabaseURL(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.backend, backend)
			assert.Equal(t, tt.dsn, dsn)
		})
	}
}

func TestParseDatabaseURL_Rejects(t *testing.T) {
	for _, in := range []string{"", "   ", "mysql://u@h/db", "just-a-path"} {
		_, _, err := ParseDatabaseURL(in)
		assert.Error(t, err, in)
	}
}
