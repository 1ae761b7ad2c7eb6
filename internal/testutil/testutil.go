// Package testutil provides shared test helpers that wire a document service
// over in-memory stores.
package testutil

import (
	"testing"
	"time"

	"github.com/vanesdocs/vanesdocs/internal/attachment"
	"github.com/vanesdocs/vanesdocs/internal/docservice"
	"github.com/vanesdocs/vanesdocs/internal/docstore"
	"github.com/vanesdocs/vanesdocs/internal/lockgate"
	"github.com/vanesdocs/vanesdocs/internal/objectstore"
	"github.com/vanesdocs/vanesdocs/internal/session"
)

// MaxUploadBytes bounds one upload in an Env.
const MaxUploadBytes = 1 << 20

// Env is a document service over a memory repository, memory sessions and
// a temporary object store.
type Env struct {
	Repo     *docstore.Memory
	Sessions *session.Memory
	Store    *objectstore.FS
	Service  *docservice.Service
}

// NewEnv creates an Env that is cleaned up with t.
func NewEnv(t *testing.T, opts ...docservice.Option) *Env {
	t.Helper()
	repo, err := docstore.NewMemory()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	sessions, err := session.NewMemory(time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	store, err := objectstore.NewFS(t.TempDir(), "/files/", attachment.BucketImages, attachment.BucketFiles)
	if err != nil {
		t.Fatal(err)
	}

	svc := docservice.New(repo, lockgate.NewGate(sessions), attachment.New(store, MaxUploadBytes), opts...)
	return &Env{Repo: repo, Sessions: sessions, Store: store, Service: svc}
}
