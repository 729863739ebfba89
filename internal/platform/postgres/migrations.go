package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
)

// Migration is one versioned schema change.
type Migration struct {
	Version     int
	Description string
	Up          string
	Down        string
}

// Migrator applies registered migrations in version order, recording each in
// schema_version.
type Migrator struct {
	db         *sql.DB
	migrations []Migration
}

// NewMigrator returns a Migrator preloaded with the service schema.
func NewMigrator(db *sql.DB) *Migrator {
	m := &Migrator{db: db}
	for _, mig := range schema {
		m.Register(mig)
	}
	return m
}

// Register adds a migration.
func (m *Migrator) Register(migration Migration) {
	m.migrations = append(m.migrations, migration)
	sort.Slice(m.migrations, func(i, j int) bool {
		return m.migrations[i].Version < m.migrations[j].Version
	})
}

// Version returns the highest applied migration, 0 for an empty database.
func (m *Migrator) Version(ctx context.Context) (int, error) {
	if err := m.ensureVersionTable(ctx); err != nil {
		return 0, err
	}
	var version int
	if err := m.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

// Up applies every pending migration and returns how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	current, err := m.Version(ctx)
	if err != nil {
		return 0, err
	}
	applied := 0
	for _, mig := range m.migrations {
		if mig.Version <= current {
			continue
		}
		if err := m.apply(ctx, mig); err != nil {
			return applied, fmt.Errorf("apply migration %d: %w", mig.Version, err)
		}
		applied++
	}
	return applied, nil
}

// Down reverts the most recent migration.
func (m *Migrator) Down(ctx context.Context) error {
	current, err := m.Version(ctx)
	if err != nil {
		return err
	}
	if current == 0 {
		return fmt.Errorf("no migrations to roll back")
	}
	for _, mig := range m.migrations {
		if mig.Version != current {
			continue
		}
		return m.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, mig.Down); err != nil {
				return fmt.Errorf("execute rollback SQL: %w", err)
			}
			_, err := tx.ExecContext(ctx, `DELETE FROM schema_version WHERE version = $1`, mig.Version)
			return err
		})
	}
	return fmt.Errorf("migration %d not registered", current)
}

func (m *Migrator) apply(ctx context.Context, mig Migration) error {
	return m.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, mig.Up); err != nil {
			return fmt.Errorf("execute migration SQL: %w", err)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO schema_version (version, description) VALUES ($1, $2)`,
			mig.Version, mig.Description,
		)
		return err
	})
}

func (m *Migrator) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (m *Migrator) ensureVersionTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}
	return nil
}
