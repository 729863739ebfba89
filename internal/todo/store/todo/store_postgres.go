package todo

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"taskboard/internal/platform/postgres"
	"taskboard/internal/todo/models"
	id "taskboard/pkg/domain"
	"taskboard/pkg/platform/sentinel"
	"taskboard/pkg/platform/tx"
)

const todoColumns = `id, user_id, title, description, status, starts_date, expires_date, created_at, updated_at`

// PostgresStore persists todos in the todos table and their tag links in todo_tags.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a Postgres-backed todo store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts the todo row and its links in one transaction, joining the
// caller's transaction when ctx carries one.
func (s *PostgresStore) Create(ctx context.Context, todo *models.Todo) error {
	return tx.Run(ctx, s.db, func(ctx context.Context) error {
		_, err := tx.Q(ctx, s.db).ExecContext(ctx, `
			INSERT INTO todos (`+todoColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, uuid.UUID(todo.ID), uuid.UUID(todo.UserID), todo.Title, todo.Description, string(todo.Status),
			todo.StartsDate, todo.ExpiresDate, todo.CreatedAt, todo.UpdatedAt)
		if err != nil {
			return postgres.TranslateError("create todo", err)
		}
		return s.insertLinks(ctx, todo.ID, todo.TagIDs)
	})
}

func (s *PostgresStore) FindByID(ctx context.Context, todoID id.TodoID) (*models.Todo, error) {
	row := tx.Q(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+todoColumns+` FROM todos WHERE id = $1`, uuid.UUID(todoID))
	todo, err := scanTodo(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadTagIDs(ctx, []*models.Todo{todo}); err != nil {
		return nil, err
	}
	return todo, nil
}

// List pages through the owner's todos newest first. Tag filtering uses
// EXISTS so a todo carrying several of the requested tags appears once.
func (s *PostgresStore) List(ctx context.Context, filter models.ListFilter) ([]*models.Todo, error) {
	var status sql.NullString
	if filter.Status != nil {
		status = sql.NullString{String: string(*filter.Status), Valid: true}
	}
	rows, err := tx.Q(ctx, s.db).QueryContext(ctx, `
		SELECT `+todoColumns+` FROM todos t
		WHERE t.user_id = $1
		  AND ($2::text IS NULL OR t.status = $2)
		  AND (cardinality($3::uuid[]) = 0 OR EXISTS (
				SELECT 1 FROM todo_tags tt WHERE tt.todo_id = t.id AND tt.tag_id = ANY($3::uuid[])
		  ))
		ORDER BY t.created_at DESC, t.id DESC
		LIMIT $4 OFFSET $5
	`, uuid.UUID(filter.UserID), status, pq.Array(id.TagIDStrings(filter.TagIDs)), filter.Limit, filter.Offset)
	if err != nil {
		return nil, postgres.TranslateError("list todos", err)
	}
	defer rows.Close()

	todos := []*models.Todo{}
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		todos = append(todos, todo)
	}
	if err := rows.Err(); err != nil {
		return nil, postgres.TranslateError("list todos", err)
	}
	if err := s.loadTagIDs(ctx, todos); err != nil {
		return nil, err
	}
	return todos, nil
}

// Update rewrites the todo row and replaces its tag links.
func (s *PostgresStore) Update(ctx context.Context, todo *models.Todo) error {
	return tx.Run(ctx, s.db, func(ctx context.Context) error {
		res, err := tx.Q(ctx, s.db).ExecContext(ctx, `
			UPDATE todos
			SET title = $2, description = $3, status = $4, starts_date = $5,
				expires_date = $6, updated_at = $7
			WHERE id = $1
		`, uuid.UUID(todo.ID), todo.Title, todo.Description, string(todo.Status),
			todo.StartsDate, todo.ExpiresDate, todo.UpdatedAt)
		if err != nil {
			return postgres.TranslateError("update todo", err)
		}
		if err := requireRow(res); err != nil {
			return err
		}
		if _, err := tx.Q(ctx, s.db).ExecContext(ctx,
			`DELETE FROM todo_tags WHERE todo_id = $1`, uuid.UUID(todo.ID)); err != nil {
			return postgres.TranslateError("clear todo tags", err)
		}
		return s.insertLinks(ctx, todo.ID, todo.TagIDs)
	})
}

// Delete removes the todo; its links go through ON DELETE CASCADE.
func (s *PostgresStore) Delete(ctx context.Context, todoID id.TodoID) error {
	res, err := tx.Q(ctx, s.db).ExecContext(ctx, `DELETE FROM todos WHERE id = $1`, uuid.UUID(todoID))
	if err != nil {
		return postgres.TranslateError("delete todo", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) DetachTag(ctx context.Context, tagID id.TagID) error {
	_, err := tx.Q(ctx, s.db).ExecContext(ctx, `DELETE FROM todo_tags WHERE tag_id = $1`, uuid.UUID(tagID))
	return postgres.TranslateError("detach tag", err)
}

func (s *PostgresStore) insertLinks(ctx context.Context, todoID id.TodoID, tagIDs []id.TagID) error {
	if len(tagIDs) == 0 {
		return nil
	}
	_, err := tx.Q(ctx, s.db).ExecContext(ctx, `
		INSERT INTO todo_tags (todo_id, tag_id)
		SELECT $1, unnest($2::uuid[])
		ON CONFLICT DO NOTHING
	`, uuid.UUID(todoID), pq.Array(id.TagIDStrings(tagIDs)))
	return postgres.TranslateError("link todo tags", err)
}

// loadTagIDs fills TagIDs for todos with a single query.
func (s *PostgresStore) loadTagIDs(ctx context.Context, todos []*models.Todo) error {
	if len(todos) == 0 {
		return nil
	}
	byID := make(map[id.TodoID]*models.Todo, len(todos))
	todoIDs := make([]string, 0, len(todos))
	for _, t := range todos {
		byID[t.ID] = t
		todoIDs = append(todoIDs, t.ID.String())
	}

	rows, err := tx.Q(ctx, s.db).QueryContext(ctx, `
		SELECT todo_id, tag_id FROM todo_tags
		WHERE todo_id = ANY($1::uuid[])
		ORDER BY tag_id
	`, pq.Array(todoIDs))
	if err != nil {
		return postgres.TranslateError("load todo tags", err)
	}
	defer rows.Close()

	for rows.Next() {
		var todoID, tagID uuid.UUID
		if err := rows.Scan(&todoID, &tagID); err != nil {
			return postgres.TranslateError("load todo tags", err)
		}
		t := byID[id.TodoID(todoID)]
		t.TagIDs = append(t.TagIDs, id.TagID(tagID))
	}
	if err := rows.Err(); err != nil {
		return postgres.TranslateError("load todo tags", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTodo(row rowScanner) (*models.Todo, error) {
	var (
		t               models.Todo
		todoID, ownerID uuid.UUID
		description     sql.NullString
		status          string
		starts, expires sql.NullTime
	)
	if err := row.Scan(&todoID, &ownerID, &t.Title, &description, &status,
		&starts, &expires, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, postgres.TranslateError("find todo", err)
	}
	t.ID = id.TodoID(todoID)
	t.UserID = id.UserID(ownerID)
	t.Status = models.Status(status)
	if description.Valid {
		t.Description = &description.String
	}
	t.StartsDate = nullTime(starts)
	t.ExpiresDate = nullTime(expires)
	return &t, nil
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
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
