package database

import (
	"context"
	"fmt"

	"github.com/isdelr/taskboard-be/internal/database/migrations"
	"github.com/pressly/goose/v3"
	goosedb "github.com/pressly/goose/v3/database"
	"github.com/rs/zerolog/log"
)

// Migrate applies the embedded schema migrations with the dialect of db.
func Migrate(ctx context.Context, db *DB) error {
	dialect := goosedb.DialectSQLite3
	if db.Dialect == Postgres {
		dialect = goosedb.DialectPostgres
	}

	provider, err := goose.NewProvider(dialect, db.DB, migrations.FS)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	for _, r := range results {
		log.Info().Str("migration", r.Source.Path).Dur("took", r.Duration).Msg("Applied migration")
	}
	return nil
}
