package database

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		in          string
		wantDialect Dialect
		wantPrefix  string
	}{
		{"postgres://u:p@db:5432/tasks", Postgres, "postgres://u:p@db:5432/tasks"},
		{"postgresql://db/tasks?sslmode=disable", Postgres, "postgresql://db/tasks?sslmode=disable"},
		{"sqlite:///tmp/x.db", SQLite, "/tmp/x.db?_pragma="},
		{"file:data.db?mode=rwc", SQLite, "data.db?mode=rwc&_pragma="},
		{"", SQLite, "taskboard.db?_pragma="},
	}
	for _, tc := range tests {
		d, dsn := resolve(tc.in)
		assert.Equal(t, tc.wantDialect, d, tc.in)
		assert.True(t, strings.HasPrefix(dsn, tc.wantPrefix), "dsn %q for %q", dsn, tc.in)
	}
}

func TestRebind(t *testing.T) {
	pg := &DB{Dialect: Postgres}
	lite := &DB{Dialect: SQLite}

	q := "UPDATE tasks SET title = ?, status = ? WHERE id = ? AND version = ?"
	assert.Equal(t, "UPDATE tasks SET title = $1, status = $2 WHERE id = $3 AND version = $4", pg.Rebind(q))
	assert.Equal(t, q, lite.Rebind(q))
}

func TestMillisRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 30, 15, 123456789, time.FixedZone("x", 3600))
	got := FromMillis(ToMillis(now))
	assert.True(t, got.Equal(now.Truncate(time.Millisecond)))
	assert.Equal(t, time.UTC, got.Location())
}

func TestIsUniqueViolation_Postgres(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
}

func TestNewAndMigrate_SQLite(t *testing.T) {
	ctx := context.Background()
	db, err := New(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Migrate(ctx, db))
	// Second run is a no-op.
	require.NoError(t, Migrate(ctx, db))

	_, err = db.ExecContext(ctx, "INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)", "u1", "a@b.c", "h", 1)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, "INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)", "u2", "a@b.c", "h", 2)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err), "got %v", err)
}
