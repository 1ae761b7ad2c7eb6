// Package objectstore stores attachment blobs in named buckets and exposes
// them under public URLs.
package objectstore

import (
	"context"
	"io"
)

// Provider is the interface for attachment blob operations. Keys are slash
// separated paths relative to the bucket.
type Provider interface {
	// Put writes r to bucket/key and returns the number of bytes written.
	// It never overwrites: an existing object yields apperr.ErrAlreadyExists.
	Put(ctx context.Context, bucket, key string, r io.Reader) (int64, error)
	// Open returns a reader for bucket/key.
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	// Delete removes bucket/key.
	Delete(ctx context.Context, bucket, key string) error
	// PublicURL returns the URL under which bucket/key is publicly readable.
	PublicURL(bucket, key string) string
}
