package docstore

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	tags       TEXT NOT NULL DEFAULT '[]',
	content    TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	locked     BOOLEAN NOT NULL DEFAULT 0,
	lock_hash  TEXT,
	locked_at  DATETIME
);

CREATE INDEX IF NOT EXISTS idx_documents_updated_at ON documents(updated_at);
`

var sqliteDialect = dialect{name: DriverSQLite, order: "rowid"}

// OpenSQLite opens (or creates) the SQLite database at path and applies the
// schema.
func OpenSQLite(path string) (Repository, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("docstore: open sqlite: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("docstore: ping sqlite: %w", err)
	}
	if _, err := conn.Exec(sqliteSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("docstore: apply sqlite schema: %w", err)
	}
	return newSQLStore(conn, sqliteDialect), nil
}
