package objectstore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vanesdocs/vanesdocs/internal/apperr"
)

func tempStore(t *testing.T) *FS {
	t.Helper()
	fs, err := NewFS(t.TempDir(), "/files/", "images", "files")
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestPutAndOpen(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	n, err := s.Put(ctx, "files", "public/1-a.pdf", strings.NewReader("%PDF-1.4"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if n != 8 {
		t.Errorf("n = %d, want 8", n)
	}
	rc, err := s.Open(ctx, "files", "public/1-a.pdf")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != "%PDF-1.4" {
		t.Errorf("content = %q", got)
	}
}

func TestPutNeverOverwrites(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	if _, err := s.Put(ctx, "images", "public/x.png", strings.NewReader("one")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	_, err := s.Put(ctx, "images", "public/x.png", strings.NewReader("two"))
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Fatalf("second Put err = %v, want ErrAlreadyExists", err)
	}
	rc, _ := s.Open(ctx, "images", "public/x.png")
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != "one" {
		t.Errorf("object overwritten: %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(s.root, "images", "public", ".vd-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestDelete(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	_, _ = s.Put(ctx, "files", "k.bin", strings.NewReader("x"))
	if err := s.Delete(ctx, "files", "k.bin"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Open(ctx, "files", "k.bin"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Open after delete err = %v", err)
	}
}

func TestPublicURL(t *testing.T) {
	s := tempStore(t)
	if got := s.PublicURL("images", "public/1-a.png"); got != "/files/images/public/1-a.png" {
		t.Errorf("url = %q", got)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	cases := []string{
		"../../etc/passwd",
		"../files/x",
		"/etc/shadow",
		"",
	}
	for _, k := range cases {
		if _, err := s.Put(ctx, "images", k, strings.NewReader("x")); err == nil {
			t.Errorf("expected error for key %q", k)
		}
	}
	if _, err := s.Put(ctx, "secrets", "a.txt", strings.NewReader("x")); err == nil {
		t.Error("expected error for unknown bucket")
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS("/tmp/vanesdocs-does-not-exist-"+t.Name(), "/files", "images")
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_InvalidBucket(t *testing.T) {
	if _, err := NewFS(t.TempDir(), "/files", "../up"); err == nil {
		t.Error("expected error for invalid bucket")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "vanesdocs-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	if _, err := NewFS(f.Name(), "/files"); err == nil {
		t.Error("expected error when root is a file")
	}
}
