// Package inbox imports files dropped into a watched directory as documents.
//
// Markdown (.md) files become documents via their frontmatter, HTML files are
// stored as is, and .json files are read as exports of the old browser-local
// store. Handled files are moved to .imported/ or .failed/ next to them.
package inbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vanesdocs/vanesdocs/internal/auth"
	"github.com/vanesdocs/vanesdocs/internal/docservice"
	"github.com/vanesdocs/vanesdocs/internal/lockgate"
	"github.com/vanesdocs/vanesdocs/internal/parser"
)

const (
	importedDir = ".imported"
	failedDir   = ".failed"

	// UserID owns documents created from the inbox.
	UserID = "inbox"
)

// ErrUnsupported is returned for files the inbox does not handle.
var ErrUnsupported = errors.New("inbox: unsupported file type")

// Importer is the part of the document service the inbox uses.
type Importer interface {
	Create(ctx context.Context, in docservice.Input) (*docservice.Detail, error)
	CreateFromMarkdown(ctx context.Context, in docservice.Input) (*docservice.Detail, error)
	Import(ctx context.Context, docs []docservice.LegacyDocument) (docservice.ImportReport, error)
}

// Inbox imports files from one directory.
type Inbox struct {
	dir    string
	svc    Importer
	logger *slog.Logger
	settle time.Duration
}

// Option configures an Inbox.
type Option func(*Inbox)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(in *Inbox) { in.logger = l }
}

// WithSettleDelay sets how long a file must stay unchanged before it is
// imported. Defaults to 500ms.
func WithSettleDelay(d time.Duration) Option {
	return func(in *Inbox) { in.settle = d }
}

// New creates the inbox directory layout under dir.
func New(dir string, svc Importer, opts ...Option) (*Inbox, error) {
	in := &Inbox{dir: dir, svc: svc, logger: slog.Default(), settle: 500 * time.Millisecond}
	for _, o := range opts {
		o(in)
	}
	for _, d := range []string{dir, filepath.Join(dir, importedDir), filepath.Join(dir, failedDir)} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("inbox: %w", err)
		}
	}
	return in, nil
}

// Supported reports whether the inbox imports files named name.
func Supported(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".md", ".markdown", ".html", ".htm", ".json":
		return true
	}
	return false
}

func importContext(ctx context.Context) context.Context {
	return auth.WithUser(ctx, &auth.User{ID: UserID})
}

// ImportFile imports the file at path and moves it to .imported or .failed.
func (in *Inbox) ImportFile(ctx context.Context, path string) error {
	if !Supported(path) {
		return ErrUnsupported
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("inbox: read %s: %w", path, err)
	}

	ctx = importContext(ctx)
	ids, err := in.importData(ctx, path, data)
	dest := importedDir
	if err != nil {
		dest = failedDir
		in.logger.Warn("inbox: import failed", slog.String("path", path), slog.String("error", err.Error()))
	} else {
		in.logger.Info("inbox: imported", slog.String("path", path), slog.Any("ids", ids))
	}
	if mvErr := in.move(path, dest); mvErr != nil {
		in.logger.Warn("inbox: move failed", slog.String("path", path), slog.String("error", mvErr.Error()))
	}
	return err
}

func (in *Inbox) importData(ctx context.Context, path string, data []byte) ([]string, error) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		r, err := parser.Parse(data)
		if err != nil {
			return nil, err
		}
		title := r.Title
		if title == "" {
			title = name
		}
		doc, err := in.svc.CreateFromMarkdown(ctx, docservice.Input{
			Title:   title,
			Tags:    r.Tags,
			Content: r.Body,
			Lock:    lockgate.LockRequest{Locked: r.Password != "", Password: r.Password, Confirm: r.Password},
		})
		if err != nil {
			return nil, err
		}
		return []string{doc.ID}, nil

	case ".html", ".htm":
		doc, err := in.svc.Create(ctx, docservice.Input{Title: name, Content: string(data)})
		if err != nil {
			return nil, err
		}
		return []string{doc.ID}, nil

	case ".json":
		docs, err := docservice.ParseLegacy(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		report, err := in.svc.Import(ctx, docs)
		if err != nil {
			return nil, err
		}
		for id, reason := range report.Failed {
			in.logger.Warn("inbox: legacy document skipped", slog.String("id", id), slog.String("error", reason))
		}
		if len(report.Imported) == 0 && len(report.Failed) > 0 {
			return nil, fmt.Errorf("inbox: no document of %d imported", len(docs))
		}
		return report.Imported, nil
	}
	return nil, ErrUnsupported
}

// move renames path into the given subdirectory, prefixed with a timestamp
// so repeated drops of the same name do not collide.
func (in *Inbox) move(path, sub string) error {
	dest := filepath.Join(in.dir, sub, time.Now().UTC().Format("20060102T150405.000")+"-"+filepath.Base(path))
	return os.Rename(path, dest)
}

// Scan imports every supported file currently in the inbox directory and
// returns how many were imported successfully.
func (in *Inbox) Scan(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(in.dir)
	if err != nil {
		return 0, fmt.Errorf("inbox: %w", err)
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() || !Supported(e.Name()) {
			continue
		}
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		if err := in.ImportFile(ctx, filepath.Join(in.dir, e.Name())); err == nil {
			n++
		}
	}
	return n, nil
}

// pathExists reports whether path is still a regular file.
func pathExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
