package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"anime-watchlist/internal/db/migrations"
)

// Migrate aplica las migraciones embebidas contra DATABASE_URL.
func Migrate(ctx context.Context, databaseURL string) error {
	return RunMigrations(ctx, databaseURL, "up")
}

// RunMigrations ejecuta un comando de goose (up, down, status, version, redo, reset).
func RunMigrations(ctx context.Context, databaseURL, command string, args ...string) error {
	sqlDB, err := openMigrationDB(databaseURL)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := goose.RunContext(ctx, command, sqlDB, ".", args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

func openMigrationDB(databaseURL string) (*sql.DB, error) {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, err
	}
	sqlDB, err := goose.OpenDBWithDriver("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open migration db: %w", err)
	}
	return sqlDB, nil
}
