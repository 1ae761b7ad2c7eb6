// Package attachment uploads images and generic files into the object store
// and returns their public URLs.
package attachment

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/vanesdocs/vanesdocs/internal/apperr"
	"github.com/vanesdocs/vanesdocs/internal/objectstore"
)

// Buckets used by the uploader.
const (
	BucketImages = "images"
	BucketFiles  = "files"
)

const (
	defaultImageExt = "png"
	defaultFileExt  = "bin"
	defaultMime     = "application/octet-stream"
	publicNamespace = "public"
	maxExtLen       = 16
)

// File is one upload: its original name, the declared content type (may be
// empty) and the body.
type File struct {
	Name string
	Mime string
	Body io.Reader
}

// Uploaded describes a stored generic file.
type Uploaded struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	Mime string `json:"mime"`
	Size int64  `json:"size"`
}

// Uploader writes attachments under a per-user namespace.
type Uploader struct {
	store    objectstore.Provider
	maxBytes int64
	now      func() time.Time
}

// New creates an Uploader. maxBytes <= 0 disables the size limit.
func New(store objectstore.Provider, maxBytes int64) *Uploader {
	return &Uploader{store: store, maxBytes: maxBytes, now: time.Now}
}

// UploadImage stores f in the images bucket and returns its public URL.
func (u *Uploader) UploadImage(ctx context.Context, userID string, f File) (string, error) {
	key := u.objectKey(userID, f.Name, defaultImageExt)
	if _, err := u.put(ctx, BucketImages, key, f.Body); err != nil {
		return "", fmt.Errorf("upload image %q: %w", f.Name, err)
	}
	slog.Debug("image uploaded", slog.String("key", key))
	return u.store.PublicURL(BucketImages, key), nil
}

// UploadFile stores f in the files bucket.
func (u *Uploader) UploadFile(ctx context.Context, userID string, f File) (Uploaded, error) {
	br := bufio.NewReader(f.Body)
	mime := f.Mime
	if mime == "" || mime == defaultMime {
		// Peek returns what it has on short reads; EOF is fine here.
		head, _ := br.Peek(512)
		mime = sniff(head)
	}
	key := u.objectKey(userID, f.Name, defaultFileExt)
	n, err := u.put(ctx, BucketFiles, key, br)
	if err != nil {
		return Uploaded{}, fmt.Errorf("upload file %q: %w", f.Name, err)
	}
	slog.Debug("file uploaded", slog.String("key", key), slog.Int64("size", n))
	return Uploaded{
		URL:  u.store.PublicURL(BucketFiles, key),
		Name: f.Name,
		Mime: mime,
		Size: n,
	}, nil
}

func (u *Uploader) put(ctx context.Context, bucket, key string, body io.Reader) (int64, error) {
	if body == nil {
		return 0, fmt.Errorf("empty body: %w", apperr.ErrInvalidInput)
	}
	if u.maxBytes > 0 {
		body = &limitReader{r: body, remaining: u.maxBytes}
	}
	return u.store.Put(ctx, bucket, key, body)
}

// objectKey builds <namespace>/<unixMillis>-<xid>.<ext>.
func (u *Uploader) objectKey(userID, name, defExt string) string {
	ns := Namespace(userID)
	file := strconv.FormatInt(u.now().UnixMilli(), 10) + "-" + xid.New().String() + "." + Ext(name, defExt)
	return ns + "/" + file
}

// Namespace maps a user id to a safe key prefix; anonymous uploads go to
// "public".
func Namespace(userID string) string {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return publicNamespace
	}
	var b strings.Builder
	for _, r := range userID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// Ext returns the lowercased extension of name, or def when name has none
// or it contains anything but letters and digits.
func Ext(name, def string) string {
	ext := strings.TrimPrefix(path.Ext(name), ".")
	if ext == "" || len(ext) > maxExtLen {
		return def
	}
	ext = strings.ToLower(ext)
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return def
		}
	}
	return ext
}

// IsImage reports whether the declared type or the name looks like an image.
// The generic octet-stream type counts as undeclared.
func IsImage(name, mime string) bool {
	if mime != "" && mime != defaultMime {
		return strings.HasPrefix(mime, "image/")
	}
	switch Ext(name, "") {
	case "png", "jpg", "jpeg", "gif", "webp", "svg", "bmp", "avif":
		return true
	}
	return false
}

func sniff(head []byte) string {
	if len(head) == 0 {
		return defaultMime
	}
	mime := http.DetectContentType(head)
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	if mime == "" {
		return defaultMime
	}
	return mime
}

// limitReader fails with apperr.ErrTooLarge once more than remaining bytes
// have been read.
type limitReader struct {
	r         io.Reader
	remaining int64
}

func (l *limitReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, apperr.ErrTooLarge
	}
	return n, err
}
