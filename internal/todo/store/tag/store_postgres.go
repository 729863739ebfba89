package tag

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"taskboard/internal/platform/postgres"
	"taskboard/internal/todo/models"
	id "taskboard/pkg/domain"
	"taskboard/pkg/platform/sentinel"
	"taskboard/pkg/platform/tx"
)

const tagColumns = `id, user_id, name, color_code, created_at, updated_at`

// PostgresStore persists tags in the tags table. Name uniqueness per owner
// is enforced by the (user_id, lower(name)) index.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a Postgres-backed tag store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, tag *models.Tag) error {
	_, err := tx.Q(ctx, s.db).ExecContext(ctx, `
		INSERT INTO tags (`+tagColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.UUID(tag.ID), uuid.UUID(tag.UserID), tag.Name, tag.ColorCode, tag.CreatedAt, tag.UpdatedAt)
	return postgres.TranslateError("create tag", err)
}

func (s *PostgresStore) FindByID(ctx context.Context, tagID id.TagID) (*models.Tag, error) {
	row := tx.Q(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE id = $1`, uuid.UUID(tagID))
	return scanTag(row)
}

func (s *PostgresStore) FindByIDs(ctx context.Context, tagIDs []id.TagID) ([]*models.Tag, error) {
	if len(tagIDs) == 0 {
		return nil, nil
	}
	rows, err := tx.Q(ctx, s.db).QueryContext(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE id = ANY($1::uuid[])`,
		pq.Array(id.TagIDStrings(tagIDs)))
	if err != nil {
		return nil, postgres.TranslateError("find tags", err)
	}
	found, err := collect(rows, "find tags")
	if err != nil {
		return nil, err
	}

	byID := make(map[id.TagID]*models.Tag, len(found))
	for _, t := range found {
		byID[t.ID] = t
	}
	out := make([]*models.Tag, 0, len(found))
	for _, tagID := range tagIDs {
		if t, ok := byID[tagID]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID) ([]*models.Tag, error) {
	rows, err := tx.Q(ctx, s.db).QueryContext(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE user_id = $1 ORDER BY lower(name), name`,
		uuid.UUID(userID))
	if err != nil {
		return nil, postgres.TranslateError("list tags", err)
	}
	return collect(rows, "list tags")
}

func (s *PostgresStore) Update(ctx context.Context, tag *models.Tag) error {
	res, err := tx.Q(ctx, s.db).ExecContext(ctx, `
		UPDATE tags SET name = $2, color_code = $3, updated_at = $4
		WHERE id = $1
	`, uuid.UUID(tag.ID), tag.Name, tag.ColorCode, tag.UpdatedAt)
	if err != nil {
		return postgres.TranslateError("update tag", err)
	}
	return requireRow(res)
}

// Delete removes the tag; todo_tags rows go with it through ON DELETE CASCADE.
func (s *PostgresStore) Delete(ctx context.Context, tagID id.TagID) error {
	res, err := tx.Q(ctx, s.db).ExecContext(ctx, `DELETE FROM tags WHERE id = $1`, uuid.UUID(tagID))
	if err != nil {
		return postgres.TranslateError("delete tag", err)
	}
	return requireRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTag(row rowScanner) (*models.Tag, error) {
	var (
		t              models.Tag
		tagID, ownerID uuid.UUID
	)
	if err := row.Scan(&tagID, &ownerID, &t.Name, &t.ColorCode, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, postgres.TranslateError("find tag", err)
	}
	t.ID = id.TagID(tagID)
	t.UserID = id.UserID(ownerID)
	return &t, nil
}

func collect(rows *sql.Rows, op string) ([]*models.Tag, error) {
	defer rows.Close()
	var out []*models.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, postgres.TranslateError(op, err)
	}
	return out, nil
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
