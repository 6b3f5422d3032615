package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/heartmarshall/shop-catalog-backend/migrations"
)

// NewMigrator returns a goose provider over the embedded migrations. The
// returned close func releases the database/sql handle goose needs.
func NewMigrator(pool *pgxpool.Pool) (*goose.Provider, func() error, error) {
	db := stdlib.OpenDBFromPool(pool)

	provider, err := newProvider(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return provider, db.Close, nil
}

// Migrate applies every pending migration.
func Migrate(ctx context.Context, pool *pgxpool.Pool) ([]*goose.MigrationResult, error) {
	provider, closeDB, err := NewMigrator(pool)
	if err != nil {
		return nil, err
	}
	defer func() { _ = closeDB() }()

	results, err := provider.Up(ctx)
	if err != nil {
		return results, fmt.Errorf("goose up: %w", err)
	}
	return results, nil
}

// MigrateDB applies every pending migration through an existing *sql.DB.
func MigrateDB(ctx context.Context, db *sql.DB) error {
	provider, err := newProvider(db)
	if err != nil {
		return err
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

func newProvider(db *sql.DB) (*goose.Provider, error) {
	// goose.NewProvider handles $$-delimited bodies, unlike the legacy goose.Up.
	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		return nil, fmt.Errorf("goose new provider: %w", err)
	}
	return provider, nil
}
