package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/vanesdocs/vanesdocs/internal/apperr"
	"github.com/vanesdocs/vanesdocs/internal/models"
)

// dialect captures the differences between the SQL backends.
type dialect struct {
	name string
	// order is the column that records insertion order.
	order string
	// numbered placeholders ($1, $2...) instead of ?.
	numbered bool
}

const columns = `id, title, tags, content, created_at, updated_at, locked, lock_hash, locked_at`

// sqlStore implements Repository over database/sql.
type sqlStore struct {
	conn *sql.DB
	d    dialect
}

func newSQLStore(conn *sql.DB, d dialect) *sqlStore {
	return &sqlStore{conn: conn, d: d}
}

// rebind rewrites ? placeholders for dialects that number them.
func (s *sqlStore) rebind(query string) string {
	if !s.d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var (
		d        models.Document
		tagsJSON string
		lockHash sql.NullString
		lockedAt sql.NullTime
	)
	if err := row.Scan(&d.ID, &d.Title, &tagsJSON, &d.Content, &d.CreatedAt, &d.UpdatedAt,
		&d.Locked, &lockHash, &lockedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &d.Tags); err != nil {
		return nil, fmt.Errorf("decode tags of %s: %w", d.ID, err)
	}
	d.Tags = nonNilTags(d.Tags)
	d.CreatedAt = d.CreatedAt.UTC()
	d.UpdatedAt = d.UpdatedAt.UTC()
	if lockHash.Valid {
		h := lockHash.String
		d.LockHash = &h
	}
	if lockedAt.Valid {
		t := lockedAt.Time.UTC()
		d.LockedAt = &t
	}
	return &d, nil
}

// List returns every document, newest first.
func (s *sqlStore) List(ctx context.Context) ([]models.Document, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+columns+` FROM documents ORDER BY updated_at DESC, `+s.d.order+` ASC`)
	if err != nil {
		return nil, fmt.Errorf("docstore: list: %w", err)
	}
	defer rows.Close()

	out := []models.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("docstore: list: %w", err)
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("docstore: list: %w", err)
	}
	return out, nil
}

// Get returns the document with the given id.
func (s *sqlStore) Get(ctx context.Context, id string) (*models.Document, error) {
	row := s.conn.QueryRowContext(ctx, s.rebind(`SELECT `+columns+` FROM documents WHERE id = ?`), id)
	d, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("docstore: get %s: %w", id, err)
	}
	return d, nil
}

// Upsert inserts or replaces doc inside a transaction.
func (s *sqlStore) Upsert(ctx context.Context, doc *models.Document) (*models.Document, error) {
	out := doc.Clone()
	out.Tags = nonNilTags(out.Tags)
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("docstore: %w: %v", apperr.ErrInvalidInput, err)
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("docstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var existing *models.Document
	var prev models.Document
	err = tx.QueryRowContext(ctx, s.rebind(`SELECT created_at, updated_at FROM documents WHERE id = ?`), out.ID).
		Scan(&prev.CreatedAt, &prev.UpdatedAt)
	switch {
	case err == nil:
		prev.CreatedAt = prev.CreatedAt.UTC()
		prev.UpdatedAt = prev.UpdatedAt.UTC()
		existing = &prev
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, fmt.Errorf("docstore: upsert %s: %w", out.ID, err)
	}
	stamp(out, existing)

	tagsJSON, err := json.Marshal(out.Tags)
	if err != nil {
		return nil, fmt.Errorf("docstore: encode tags: %w", err)
	}
	var lockHash sql.NullString
	if out.LockHash != nil {
		lockHash = sql.NullString{String: *out.LockHash, Valid: true}
	}
	var lockedAt sql.NullTime
	if out.LockedAt != nil {
		lockedAt = sql.NullTime{Time: out.LockedAt.UTC(), Valid: true}
	}

	_, err = tx.ExecContext(ctx, s.rebind(`
		INSERT INTO documents (`+columns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title      = excluded.title,
			tags       = excluded.tags,
			content    = excluded.content,
			updated_at = excluded.updated_at,
			locked     = excluded.locked,
			lock_hash  = excluded.lock_hash,
			locked_at  = excluded.locked_at
	`), out.ID, out.Title, string(tagsJSON), out.Content, out.CreatedAt, out.UpdatedAt,
		out.Locked, lockHash, lockedAt)
	if err != nil {
		return nil, fmt.Errorf("docstore: upsert %s: %w", out.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("docstore: commit: %w", err)
	}
	return out, nil
}

// SetLockHash rewrites lock_hash of a locked document.
func (s *sqlStore) SetLockHash(ctx context.Context, id, hash string) error {
	if hash == "" {
		return fmt.Errorf("docstore: %w: empty lock hash", apperr.ErrInvalidInput)
	}
	res, err := s.conn.ExecContext(ctx,
		s.rebind(`UPDATE documents SET lock_hash = ? WHERE id = ? AND locked`), hash, id)
	if err != nil {
		return fmt.Errorf("docstore: set lock hash %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("docstore: set lock hash %s: %w", id, err)
	}
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// Delete removes the document with the given id.
func (s *sqlStore) Delete(ctx context.Context, id string) error {
	res, err := s.conn.ExecContext(ctx, s.rebind(`DELETE FROM documents WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("docstore: delete %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("docstore: delete %s: %w", id, err)
	}
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *sqlStore) Close() error {
	return s.conn.Close()
}
