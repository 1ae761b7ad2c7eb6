package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/vanesdocs/vanesdocs/internal/apperr"
)

// FS implements Provider on the local file system. Each bucket is a
// directory under root.
type FS struct {
	root    string // absolute path to the storage directory
	baseURL string
	buckets map[string]struct{}
}

// NewFS creates a provider rooted at root serving objects under baseURL
// (for example "/files" or "https://cdn.example.com/files"). Only the listed
// buckets are accepted. Bucket directories are created when missing.
func NewFS(root, baseURL string, buckets ...string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("objectstore: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("objectstore: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("objectstore: root is not a directory: %s", abs)
	}
	f := &FS{
		root:    abs,
		baseURL: strings.TrimRight(baseURL, "/"),
		buckets: make(map[string]struct{}, len(buckets)),
	}
	for _, b := range buckets {
		if b == "" || strings.ContainsAny(b, `/\.`) {
			return nil, fmt.Errorf("objectstore: invalid bucket name %q", b)
		}
		if err := os.MkdirAll(filepath.Join(abs, b), 0o755); err != nil {
			return nil, fmt.Errorf("objectstore: create bucket %s: %w", b, err)
		}
		f.buckets[b] = struct{}{}
	}
	return f, nil
}

// safePath resolves bucket/key against the root and rejects unknown buckets
// and any key that escapes its bucket.
func (f *FS) safePath(bucket, key string) (string, error) {
	if _, ok := f.buckets[bucket]; !ok {
		return "", fmt.Errorf("objectstore: unknown bucket %q: %w", bucket, apperr.ErrNotFound)
	}
	if key == "" {
		return "", fmt.Errorf("objectstore: empty key: %w", apperr.ErrInvalidInput)
	}
	cleaned := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(cleaned) || cleaned == "." || strings.HasPrefix(cleaned, "..") {
		return "", fmt.Errorf("objectstore: invalid key %q: %w", key, apperr.ErrInvalidInput)
	}
	base := filepath.Join(f.root, bucket)
	abs := filepath.Join(base, cleaned)
	if !strings.HasPrefix(abs, base+string(os.PathSeparator)) {
		return "", fmt.Errorf("objectstore: key escapes bucket: %q: %w", key, apperr.ErrInvalidInput)
	}
	return abs, nil
}

// Put streams r into a temp file, fsyncs it and hard-links it into place.
// The link fails when the target exists, so objects are never overwritten.
func (f *FS) Put(_ context.Context, bucket, key string, r io.Reader) (int64, error) {
	abs, err := f.safePath(bucket, key)
	if err != nil {
		return 0, err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("objectstore: mkdir: %w", err)
	}
	if _, err := os.Lstat(abs); err == nil {
		return 0, fmt.Errorf("objectstore: %s/%s: %w", bucket, key, apperr.ErrAlreadyExists)
	}

	tmp, err := os.CreateTemp(dir, ".vd-tmp-*")
	if err != nil {
		return 0, fmt.Errorf("objectstore: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	n, err := io.Copy(tmp, r)
	if err != nil {
		return 0, fmt.Errorf("objectstore: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return 0, fmt.Errorf("objectstore: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("objectstore: close temp: %w", err)
	}
	if err := os.Link(tmpName, abs); err != nil {
		if errors.Is(err, os.ErrExist) {
			return 0, fmt.Errorf("objectstore: %s/%s: %w", bucket, key, apperr.ErrAlreadyExists)
		}
		return 0, fmt.Errorf("objectstore: link: %w", err)
	}
	return n, nil
}

// Open returns a reader for bucket/key.
func (f *FS) Open(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	abs, err := f.safePath(bucket, key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("objectstore: open %s/%s: %w", bucket, key, err)
	}
	return file, nil
}

// Delete removes bucket/key.
func (f *FS) Delete(_ context.Context, bucket, key string) error {
	abs, err := f.safePath(bucket, key)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return fmt.Errorf("objectstore: delete %s/%s: %w", bucket, key, err)
	}
	return nil
}

// PublicURL joins the base URL, bucket and key.
func (f *FS) PublicURL(bucket, key string) string {
	return f.baseURL + "/" + path.Join(bucket, key)
}

// LocalPath returns the file backing bucket/key, for http.ServeFile.
func (f *FS) LocalPath(bucket, key string) (string, error) {
	return f.safePath(bucket, key)
}
