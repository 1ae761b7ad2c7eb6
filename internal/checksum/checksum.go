// Package checksum computes content digests used as document ETags.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/vanesdocs/vanesdocs/internal/models"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Document returns the digest of the user-editable state of d. Timestamps
// and the lock hash are excluded so that an unchanged save keeps its ETag.
func Document(d *models.Document) string {
	var b strings.Builder
	b.WriteString(d.Title)
	b.WriteByte(0)
	b.WriteString(strings.Join(d.Tags, "\x1f"))
	b.WriteByte(0)
	b.WriteString(d.Content)
	b.WriteByte(0)
	if d.Locked {
		b.WriteByte('1')
	}
	return Sum([]byte(b.String()))
}
