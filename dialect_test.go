package migrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDialect_MatchesProductString(t *testing.T) {
	tests := []struct {
		name    string
		product string
		want    Dialect
	}{
		{"postgres with version suffix", "PostgreSQL 15.4 on x86_64-pc-linux-gnu", DialectPostgres},
		{"postgres lowercase", "postgresql 12.1", DialectPostgres},
		{"mysql", "MySQL Community Server 8.0.36", DialectMySQL},
		{"mariadb reports as mysql family", "10.11.6-MariaDB", DialectMySQL},
		{"sqlite", "SQLite version 3.45.0", DialectSQLite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveDialect(ConnectionMetadata{Product: tt.product})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveDialect_FallsBackToDriverName(t *testing.T) {
	tests := []struct {
		driver string
		want   Dialect
	}{
		{"postgres", DialectPostgres},
		{"pgx", DialectPostgres},
		{"mysql", DialectMySQL},
		{"sqlite3", DialectSQLite},
	}

	for _, tt := range tests {
		got, err := ResolveDialect(ConnectionMetadata{DriverName: tt.driver})
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestResolveDialect_UnknownBackend(t *testing.T) {
	_, err := ResolveDialect(ConnectionMetadata{Product: "Oracle Database 19c", DriverName: "oracle"})
	assert.ErrorIs(t, err, ErrUnsupportedDialect)
}

func TestResolveDialect_EmptyMetadata(t *testing.T) {
	_, err := ResolveDialect(ConnectionMetadata{})
	assert.ErrorIs(t, err, ErrUnsupportedDialect)
}
