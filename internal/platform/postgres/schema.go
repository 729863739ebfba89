package postgres

var schema = []Migration{
	{
		Version:     1,
		Description: "users and sessions",
		Up: `
			CREATE TABLE users (
				id            UUID PRIMARY KEY,
				email         VARCHAR(255) NOT NULL UNIQUE,
				name          VARCHAR(255) NOT NULL,
				password_hash VARCHAR(255) NOT NULL,
				created_at    TIMESTAMPTZ NOT NULL,
				updated_at    TIMESTAMPTZ NOT NULL
			);

			CREATE TABLE sessions (
				id                  UUID PRIMARY KEY,
				user_id             UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				token_hash          CHAR(64) NOT NULL UNIQUE,
				status              VARCHAR(16) NOT NULL,
				user_agent          TEXT NOT NULL DEFAULT '',
				client_ip           VARCHAR(64) NOT NULL DEFAULT '',
				device_display_name VARCHAR(255) NOT NULL DEFAULT '',
				created_at          TIMESTAMPTZ NOT NULL,
				expires_at          TIMESTAMPTZ NOT NULL,
				revoked_at          TIMESTAMPTZ
			);
			CREATE INDEX idx_sessions_user_id ON sessions (user_id);
			CREATE INDEX idx_sessions_active_expiry ON sessions (expires_at) WHERE status = 'active';
		`,
		Down: `
			DROP TABLE IF EXISTS sessions;
			DROP TABLE IF EXISTS users;
		`,
	},
	{
		Version:     2,
		Description: "todos and tags",
		Up: `
			CREATE TABLE tags (
				id         UUID PRIMARY KEY,
				user_id    UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				name       VARCHAR(50) NOT NULL,
				color_code CHAR(7) NOT NULL,
				created_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL
			);
			CREATE UNIQUE INDEX idx_tags_user_name ON tags (user_id, lower(name));

			CREATE TABLE todos (
				id           UUID PRIMARY KEY,
				user_id      UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				title        VARCHAR(200) NOT NULL,
				description  TEXT,
				status       VARCHAR(20) NOT NULL DEFAULT 'pending',
				starts_date  TIMESTAMPTZ,
				expires_date TIMESTAMPTZ,
				created_at   TIMESTAMPTZ NOT NULL,
				updated_at   TIMESTAMPTZ NOT NULL,
				CONSTRAINT todos_dates_ordered CHECK (
					starts_date IS NULL OR expires_date IS NULL OR expires_date >= starts_date
				)
			);
			CREATE INDEX idx_todos_user_created ON todos (user_id, created_at DESC, id DESC);
			CREATE INDEX idx_todos_user_status ON todos (user_id, status);

			CREATE TABLE todo_tags (
				todo_id UUID NOT NULL REFERENCES todos(id) ON DELETE CASCADE,
				tag_id  UUID NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
				PRIMARY KEY (todo_id, tag_id)
			);
			CREATE INDEX idx_todo_tags_tag_id ON todo_tags (tag_id);
		`,
		Down: `
			DROP TABLE IF EXISTS todo_tags;
			DROP TABLE IF EXISTS todos;
			DROP TABLE IF EXISTS tags;
		`,
	},
}
