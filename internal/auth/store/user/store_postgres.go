package user

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"taskboard/internal/auth/models"
	"taskboard/internal/platform/postgres"
	id "taskboard/pkg/domain"
	"taskboard/pkg/platform/tx"
)

// PostgresStore persists users in the users table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a Postgres-backed user store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts user. The unique email index maps to sentinel.ErrAlreadyUsed.
func (s *PostgresStore) Create(ctx context.Context, user *models.User) error {
	_, err := tx.Q(ctx, s.db).ExecContext(ctx, `
		INSERT INTO users (id, email, name, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.UUID(user.ID), user.Email, user.Name, user.PasswordHash, user.CreatedAt, user.UpdatedAt)
	return postgres.TranslateError("create user", err)
}

func (s *PostgresStore) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	row := tx.Q(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, created_at, updated_at
		FROM users WHERE id = $1
	`, uuid.UUID(userID))
	return scanUser(row)
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	row := tx.Q(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, created_at, updated_at
		FROM users WHERE email = $1
	`, email)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*models.User, error) {
	var (
		u      models.User
		userID uuid.UUID
	)
	if err := row.Scan(&userID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, postgres.TranslateError("find user", err)
	}
	u.ID = id.UserID(userID)
	return &u, nil
}
