package docstore

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

const postgresSchemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	seq        BIGSERIAL,
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	tags       TEXT NOT NULL DEFAULT '[]',
	content    TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	locked     BOOLEAN NOT NULL DEFAULT FALSE,
	lock_hash  TEXT,
	locked_at  TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_documents_updated_at ON documents(updated_at DESC);
`

var postgresDialect = dialect{name: DriverPostgres, order: "seq", numbered: true}

// OpenPostgres connects to the PostgreSQL database at dsn and applies the
// schema.
func OpenPostgres(dsn string) (Repository, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("docstore: open postgres: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("docstore: ping postgres: %w", err)
	}
	if _, err := conn.Exec(postgresSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("docstore: apply postgres schema: %w", err)
	}
	return newSQLStore(conn, postgresDialect), nil
}
