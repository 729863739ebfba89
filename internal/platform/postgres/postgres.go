// Package postgres opens the PostgreSQL pool and owns the schema migrations.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"taskboard/internal/platform/config"
	"taskboard/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// Open connects through the pgx stdlib driver, applies pool limits and pings.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// IsUniqueViolation reports whether err is a Postgres unique-constraint failure.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// TranslateError maps driver errors onto store sentinels. Other errors are
// wrapped with op for context.
func TranslateError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return sentinel.ErrNotFound
	case IsUniqueViolation(err):
		return fmt.Errorf("%s: %w", op, sentinel.ErrAlreadyUsed)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
