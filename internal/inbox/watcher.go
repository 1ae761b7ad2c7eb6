package inbox

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EventCallback is called after each watcher-driven import attempt.
type EventCallback func(path string, err error)

// Watch imports files already waiting in the inbox, then watches the
// directory and imports each supported file once it has stopped changing
// for the settle delay. It returns when ctx is cancelled.
func (in *Inbox) Watch(ctx context.Context, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(in.dir); err != nil {
		return err
	}
	in.logger.Info("inbox: watching", slog.String("dir", in.dir))

	if n, err := in.Scan(ctx); err != nil {
		in.logger.Warn("inbox: initial scan failed", slog.String("error", err.Error()))
	} else if n > 0 {
		in.logger.Info("inbox: initial scan", slog.Int("imported", n))
	}

	ready := make(chan string)
	var mu sync.Mutex
	pending := make(map[string]*time.Timer)

	schedule := func(path string) {
		mu.Lock()
		defer mu.Unlock()
		if t, ok := pending[path]; ok {
			t.Reset(in.settle)
			return
		}
		pending[path] = time.AfterFunc(in.settle, func() {
			select {
			case ready <- path:
			case <-ctx.Done():
			}
		})
	}

	defer func() {
		mu.Lock()
		for _, t := range pending {
			t.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			in.logger.Info("inbox: stopped")
			return nil

		case path := <-ready:
			mu.Lock()
			delete(pending, path)
			mu.Unlock()
			if !pathExists(path) {
				continue
			}
			err := in.ImportFile(ctx, path)
			if cb != nil {
				cb(path, err)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Dir(ev.Name) != filepath.Clean(in.dir) || !Supported(ev.Name) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				schedule(ev.Name)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			in.logger.Error("inbox: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}
