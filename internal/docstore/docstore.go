// Package docstore persists documents. Three backends share the Repository
// contract: SQLite, PostgreSQL and an in-memory go-memdb store.
package docstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/vanesdocs/vanesdocs/internal/models"
)

// Drivers accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Repository is the CRUD contract over document records.
//
// List returns documents newest UpdatedAt first; ties keep insertion order.
// Upsert sets CreatedAt on first insert only and always moves UpdatedAt
// forward. SetLockHash replaces the hash of a locked document and leaves
// every timestamp alone. Get, SetLockHash and Delete return
// apperr.ErrNotFound for unknown ids.
type Repository interface {
	List(ctx context.Context) ([]models.Document, error)
	Get(ctx context.Context, id string) (*models.Document, error)
	Upsert(ctx context.Context, doc *models.Document) (*models.Document, error)
	SetLockHash(ctx context.Context, id, hash string) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// Open returns the repository for driver. dsn is a file path for sqlite and
// a connection URL for postgres; it is ignored for memory.
func Open(driver, dsn string) (Repository, error) {
	switch driver {
	case DriverSQLite:
		return OpenSQLite(dsn)
	case DriverPostgres:
		return OpenPostgres(dsn)
	case DriverMemory:
		return NewMemory()
	default:
		return nil, fmt.Errorf("docstore: unknown driver %q", driver)
	}
}

// clock is swapped in tests.
var clock = time.Now

func now() time.Time {
	return clock().UTC().Truncate(time.Microsecond)
}

// nextUpdatedAt returns a timestamp strictly after prev.
func nextUpdatedAt(prev, at time.Time) time.Time {
	if at.After(prev) {
		return at
	}
	return prev.Add(time.Microsecond)
}

// stamp fills the timestamps of doc for a write. existing is nil on first
// insert.
func stamp(doc *models.Document, existing *models.Document) {
	at := now()
	if existing == nil {
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = at
		} else {
			doc.CreatedAt = doc.CreatedAt.UTC().Truncate(time.Microsecond)
		}
		doc.UpdatedAt = at
		return
	}
	doc.CreatedAt = existing.CreatedAt
	doc.UpdatedAt = nextUpdatedAt(existing.UpdatedAt, at)
}

type ordered struct {
	doc models.Document
	seq uint64
}

// sortNewestFirst orders by UpdatedAt descending, then by seq ascending.
func sortNewestFirst(items []ordered) []models.Document {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.doc.UpdatedAt.Equal(b.doc.UpdatedAt) {
			return a.doc.UpdatedAt.After(b.doc.UpdatedAt)
		}
		return a.seq < b.seq
	})
	out := make([]models.Document, len(items))
	for i := range items {
		out[i] = items[i].doc
	}
	return out
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
