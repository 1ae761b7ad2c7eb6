package lockgate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/vanesdocs/vanesdocs/internal/apperr"
	"github.com/vanesdocs/vanesdocs/internal/models"
	"github.com/vanesdocs/vanesdocs/internal/session"
)

// LockRequest is the lock part of an owner's edit.
type LockRequest struct {
	Locked   bool
	Password string
	Confirm  string
}

// ApplyEdit applies req to doc in place.
//
// Locking an unlocked document needs a password and a matching
// confirmation. For a document that is already locked both fields may be
// left blank to keep the current hash. Unlocking clears the hash and
// LockedAt.
func ApplyEdit(doc *models.Document, req LockRequest, now time.Time) error {
	if !req.Locked {
		doc.Locked = false
		doc.LockHash = nil
		doc.LockedAt = nil
		return nil
	}

	switch {
	case req.Password == "" && req.Confirm == "":
		if doc.Locked && doc.LockHash != nil {
			return nil
		}
		return apperr.ErrPasswordRequired
	case req.Password == "" || req.Confirm == "":
		return apperr.ErrPasswordRequired
	case req.Password != req.Confirm:
		return apperr.ErrPasswordMismatch
	}

	hash, err := Hash(req.Password)
	if err != nil {
		return fmt.Errorf("lockgate: %w", err)
	}
	wasLocked := doc.Locked
	doc.Locked = true
	doc.LockHash = &hash
	if !wasLocked || doc.LockedAt == nil {
		at := now.UTC()
		doc.LockedAt = &at
	}
	return nil
}

// Gate caches successful unlocks in the session store.
type Gate struct {
	store session.Store
}

// NewGate returns a Gate backed by store.
func NewGate(store session.Store) *Gate {
	return &Gate{store: store}
}

func unlockKey(docID string) string {
	return "unlock:" + docID
}

// fingerprint ties a cached unlock to the hash it was granted for, so that a
// password change locks out sessions unlocked with the old one.
func fingerprint(hash string) string {
	sum := sha256.Sum256([]byte(hash))
	return hex.EncodeToString(sum[:8])
}

// IsUnlocked reports whether the session may read doc. Unlocked documents are
// always readable.
func (g *Gate) IsUnlocked(ctx context.Context, sessionID string, doc *models.Document) (bool, error) {
	if !doc.Locked {
		return true, nil
	}
	if doc.LockHash == nil || sessionID == "" {
		return false, nil
	}
	v, ok, err := g.store.Get(ctx, sessionID, unlockKey(doc.ID))
	if err != nil {
		return false, fmt.Errorf("lockgate: %w", err)
	}
	return ok && v == fingerprint(*doc.LockHash), nil
}

// Unlock checks password against doc's hash and remembers the unlock for the
// session. A mismatch returns apperr.ErrWrongPassword.
func (g *Gate) Unlock(ctx context.Context, sessionID string, doc *models.Document, password string) error {
	if !doc.Locked {
		return nil
	}
	if doc.LockHash == nil || !Verify(*doc.LockHash, password) {
		return apperr.ErrWrongPassword
	}
	if err := g.store.Set(ctx, sessionID, unlockKey(doc.ID), fingerprint(*doc.LockHash)); err != nil {
		return fmt.Errorf("lockgate: remember unlock: %w", err)
	}
	return nil
}

// Grant marks doc as unlocked for the session without a password check. Used
// after the owner sets the lock so they are not prompted right away.
func (g *Gate) Grant(ctx context.Context, sessionID string, doc *models.Document) error {
	if !doc.Locked || doc.LockHash == nil || sessionID == "" {
		return nil
	}
	return g.store.Set(ctx, sessionID, unlockKey(doc.ID), fingerprint(*doc.LockHash))
}

// Forget drops every unlock of the session.
func (g *Gate) Forget(ctx context.Context, sessionID string) error {
	return g.store.Clear(ctx, sessionID)
}
