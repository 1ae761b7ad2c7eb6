// Package session provides a session-scoped key-value store and the cookie
// middleware that identifies the browsing session.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-memdb"

	"github.com/vanesdocs/vanesdocs/internal/apperr"
)

// Store keeps string values per session. Clear drops everything a session
// holds.
type Store interface {
	Get(ctx context.Context, sessionID, key string) (string, bool, error)
	Set(ctx context.Context, sessionID, key, value string) error
	Clear(ctx context.Context, sessionID string) error
}

const tblEntries = "entries"

var memorySchema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tblEntries: {
			Name: tblEntries,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:   "id",
					Unique: true,
					Indexer: &memdb.CompoundIndex{
						Indexes: []memdb.Indexer{
							&memdb.StringFieldIndex{Field: "SessionID"},
							&memdb.StringFieldIndex{Field: "Key"},
						},
					},
				},
				"session_id": {
					Name:    "session_id",
					Indexer: &memdb.StringFieldIndex{Field: "SessionID"},
				},
			},
		},
	},
}

type entry struct {
	SessionID string
	Key       string
	Value     string
	ExpiresAt time.Time
}

// Memory is a Store on go-memdb. Entries expire ttl after their last Set.
type Memory struct {
	db  *memdb.MemDB
	ttl time.Duration
	now func() time.Time
}

// NewMemory returns an empty store. ttl <= 0 keeps entries until Clear.
func NewMemory(ttl time.Duration) (*Memory, error) {
	db, err := memdb.NewMemDB(memorySchema)
	if err != nil {
		return nil, fmt.Errorf("session: new memdb: %w", err)
	}
	return &Memory{db: db, ttl: ttl, now: time.Now}, nil
}

func (m *Memory) expired(e *entry) bool {
	return !e.ExpiresAt.IsZero() && !m.now().Before(e.ExpiresAt)
}

// Get returns the value stored under key for the session.
func (m *Memory) Get(_ context.Context, sessionID, key string) (string, bool, error) {
	if sessionID == "" || key == "" {
		return "", false, nil
	}
	txn := m.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblEntries, "id", sessionID, key)
	if err != nil {
		return "", false, fmt.Errorf("session: get %s: %w", key, err)
	}
	if raw == nil {
		return "", false, nil
	}
	e := raw.(*entry)
	if m.expired(e) {
		return "", false, nil
	}
	return e.Value, true, nil
}

// Set stores value under key and restarts the entry's ttl.
func (m *Memory) Set(_ context.Context, sessionID, key, value string) error {
	if sessionID == "" || key == "" {
		return fmt.Errorf("session: empty session id or key: %w", apperr.ErrInvalidInput)
	}
	e := &entry{SessionID: sessionID, Key: key, Value: value}
	if m.ttl > 0 {
		e.ExpiresAt = m.now().Add(m.ttl)
	}

	txn := m.db.Txn(true)
	defer txn.Abort()
	if err := txn.Insert(tblEntries, e); err != nil {
		return fmt.Errorf("session: set %s: %w", key, err)
	}
	txn.Commit()
	return nil
}

// Clear removes every entry of the session.
func (m *Memory) Clear(_ context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	txn := m.db.Txn(true)
	defer txn.Abort()
	if _, err := txn.DeleteAll(tblEntries, "session_id", sessionID); err != nil {
		return fmt.Errorf("session: clear: %w", err)
	}
	txn.Commit()
	return nil
}

// Sweep deletes expired entries and returns how many were removed.
func (m *Memory) Sweep() (int, error) {
	txn := m.db.Txn(true)
	defer txn.Abort()

	it, err := txn.Get(tblEntries, "id")
	if err != nil {
		return 0, fmt.Errorf("session: sweep: %w", err)
	}
	var stale []*entry
	for raw := it.Next(); raw != nil; raw = it.Next() {
		if e := raw.(*entry); m.expired(e) {
			stale = append(stale, e)
		}
	}
	for _, e := range stale {
		if err := txn.Delete(tblEntries, e); err != nil {
			return 0, fmt.Errorf("session: sweep: %w", err)
		}
	}
	txn.Commit()
	return len(stale), nil
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *Memory) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if _, err := m.Sweep(); err != nil {
				return err
			}
		}
	}
}
