package session

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"taskboard/internal/auth/models"
	"taskboard/internal/platform/postgres"
	id "taskboard/pkg/domain"
	"taskboard/pkg/platform/sentinel"
	"taskboard/pkg/platform/tx"
)

const sessionColumns = `id, user_id, token_hash, status, user_agent, client_ip,
	device_display_name, created_at, expires_at, revoked_at`

// PostgresStore persists sessions in the sessions table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a Postgres-backed session store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, session *models.Session) error {
	_, err := tx.Q(ctx, s.db).ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, uuid.UUID(session.ID), uuid.UUID(session.UserID), session.TokenHash, string(session.Status),
		session.UserAgent, session.ClientIP, session.DeviceDisplayName,
		session.CreatedAt, session.ExpiresAt, session.RevokedAt)
	return postgres.TranslateError("create session", err)
}

func (s *PostgresStore) FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	row := tx.Q(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, uuid.UUID(sessionID))
	return scanSession(row)
}

func (s *PostgresStore) FindByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	row := tx.Q(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE token_hash = $1`, tokenHash)
	return scanSession(row)
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID) ([]*models.Session, error) {
	rows, err := tx.Q(ctx, s.db).QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id = $1 ORDER BY created_at DESC`, uuid.UUID(userID))
	if err != nil {
		return nil, postgres.TranslateError("list sessions", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, postgres.TranslateError("list sessions", err)
	}
	return sessions, nil
}

func (s *PostgresStore) UpdateSession(ctx context.Context, session *models.Session) error {
	res, err := tx.Q(ctx, s.db).ExecContext(ctx, `
		UPDATE sessions
		SET status = $2, user_agent = $3, client_ip = $4, device_display_name = $5,
			expires_at = $6, revoked_at = $7
		WHERE id = $1
	`, uuid.UUID(session.ID), string(session.Status), session.UserAgent, session.ClientIP,
		session.DeviceDisplayName, session.ExpiresAt, session.RevokedAt)
	if err != nil {
		return postgres.TranslateError("update session", err)
	}
	return requireRow(res)
}

// Execute locks the row with SELECT ... FOR UPDATE, applies validate and
// mutate, and writes the result in the same transaction.
func (s *PostgresStore) Execute(ctx context.Context, sessionID id.SessionID, validate func(*models.Session) error, mutate func(*models.Session)) (*models.Session, error) {
	var result *models.Session
	err := tx.Run(ctx, s.db, func(ctx context.Context) error {
		row := tx.Q(ctx, s.db).QueryRowContext(ctx,
			`SELECT `+sessionColumns+` FROM sessions WHERE id = $1 FOR UPDATE`, uuid.UUID(sessionID))
		session, err := scanSession(row)
		if err != nil {
			return err
		}
		if err := validate(session); err != nil {
			return err
		}
		mutate(session)
		if err := s.UpdateSession(ctx, session); err != nil {
			return err
		}
		result = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RevokeSessionIfActive flips an active session to revoked in one statement.
func (s *PostgresStore) RevokeSessionIfActive(ctx context.Context, sessionID id.SessionID, now time.Time) error {
	res, err := tx.Q(ctx, s.db).ExecContext(ctx, `
		UPDATE sessions SET status = $2, revoked_at = $3
		WHERE id = $1 AND status = $4
	`, uuid.UUID(sessionID), string(models.SessionStatusRevoked), now, string(models.SessionStatusActive))
	if err != nil {
		return postgres.TranslateError("revoke session", err)
	}
	if n, err := res.RowsAffected(); err != nil || n > 0 {
		return err
	}
	if _, err := s.FindByID(ctx, sessionID); err != nil {
		return err
	}
	return ErrSessionRevoked
}

func (s *PostgresStore) RevokeExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := tx.Q(ctx, s.db).ExecContext(ctx, `
		UPDATE sessions SET status = $1, revoked_at = $2
		WHERE status = $3 AND expires_at < $2
	`, string(models.SessionStatusRevoked), now, string(models.SessionStatusActive))
	if err != nil {
		return 0, postgres.TranslateError("revoke expired sessions", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var (
		session   models.Session
		sessionID uuid.UUID
		userID    uuid.UUID
		status    string
		revokedAt sql.NullTime
	)
	err := row.Scan(&sessionID, &userID, &session.TokenHash, &status, &session.UserAgent,
		&session.ClientIP, &session.DeviceDisplayName, &session.CreatedAt, &session.ExpiresAt, &revokedAt)
	if err != nil {
		return nil, postgres.TranslateError("scan session", err)
	}
	session.ID = id.SessionID(sessionID)
	session.UserID = id.UserID(userID)
	session.Status = models.SessionStatus(status)
	if revokedAt.Valid {
		t := revokedAt.Time
		session.RevokedAt = &t
	}
	return &session, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
