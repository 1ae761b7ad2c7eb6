package docstore

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/hashicorp/go-memdb"

	"github.com/vanesdocs/vanesdocs/internal/apperr"
	"github.com/vanesdocs/vanesdocs/internal/models"
)

const tblDocuments = "documents"

var memorySchema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tblDocuments: {
			Name: tblDocuments,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID"},
				},
			},
		},
	},
}

type documentRecord struct {
	ID  string
	Seq uint64
	Doc *models.Document
}

// Memory is an in-memory Repository for tests and throwaway instances.
type Memory struct {
	db  *memdb.MemDB
	seq atomic.Uint64
}

// NewMemory returns an empty in-memory repository.
func NewMemory() (*Memory, error) {
	db, err := memdb.NewMemDB(memorySchema)
	if err != nil {
		return nil, fmt.Errorf("docstore: new memdb: %w", err)
	}
	return &Memory{db: db}, nil
}

// List returns every document, newest first.
func (m *Memory) List(_ context.Context) ([]models.Document, error) {
	txn := m.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tblDocuments, "id")
	if err != nil {
		return nil, fmt.Errorf("docstore: list: %w", err)
	}
	var items []ordered
	for raw := it.Next(); raw != nil; raw = it.Next() {
		rec := raw.(*documentRecord)
		items = append(items, ordered{doc: *rec.Doc.Clone(), seq: rec.Seq})
	}
	return sortNewestFirst(items), nil
}

// Get returns the document with the given id.
func (m *Memory) Get(_ context.Context, id string) (*models.Document, error) {
	txn := m.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblDocuments, "id", id)
	if err != nil {
		return nil, fmt.Errorf("docstore: get %s: %w", id, err)
	}
	if raw == nil {
		return nil, apperr.ErrNotFound
	}
	return raw.(*documentRecord).Doc.Clone(), nil
}

// Upsert inserts or replaces doc.
func (m *Memory) Upsert(_ context.Context, doc *models.Document) (*models.Document, error) {
	out := doc.Clone()
	out.Tags = nonNilTags(out.Tags)
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("docstore: %w: %v", apperr.ErrInvalidInput, err)
	}

	txn := m.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblDocuments, "id", out.ID)
	if err != nil {
		return nil, fmt.Errorf("docstore: upsert %s: %w", out.ID, err)
	}
	rec := &documentRecord{ID: out.ID}
	if raw != nil {
		prev := raw.(*documentRecord)
		rec.Seq = prev.Seq
		stamp(out, prev.Doc)
	} else {
		rec.Seq = m.seq.Add(1)
		stamp(out, nil)
	}
	rec.Doc = out.Clone()

	if err := txn.Insert(tblDocuments, rec); err != nil {
		return nil, fmt.Errorf("docstore: upsert %s: %w", out.ID, err)
	}
	txn.Commit()
	return out, nil
}

// Delete removes the document with the given id.
func (m *Memory) Delete(_ context.Context, id string) error {
	txn := m.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblDocuments, "id", id)
	if err != nil {
		return fmt.Errorf("docstore: delete %s: %w", id, err)
	}
	if raw == nil {
		return apperr.ErrNotFound
	}
	if err := txn.Delete(tblDocuments, raw); err != nil {
		return fmt.Errorf("docstore: delete %s: %w", id, err)
	}
	txn.Commit()
	return nil
}

// SetLockHash replaces the hash of a locked document in place.
func (m *Memory) SetLockHash(_ context.Context, id, hash string) error {
	if hash == "" {
		return fmt.Errorf("docstore: %w: empty lock hash", apperr.ErrInvalidInput)
	}
	txn := m.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblDocuments, "id", id)
	if err != nil {
		return fmt.Errorf("docstore: set lock hash %s: %w", id, err)
	}
	if raw == nil || !raw.(*documentRecord).Doc.Locked {
		return apperr.ErrNotFound
	}
	prev := raw.(*documentRecord)
	doc := prev.Doc.Clone()
	doc.LockHash = &hash
	if err := txn.Insert(tblDocuments, &documentRecord{ID: prev.ID, Seq: prev.Seq, Doc: doc}); err != nil {
		return fmt.Errorf("docstore: set lock hash %s: %w", id, err)
	}
	txn.Commit()
	return nil
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}
