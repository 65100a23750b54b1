// Package inbox watches a drop directory for snapshot and CSV files and
// imports them automatically.
package inbox

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/marden/trove/internal/exchange"
)

// ResultCallback is called after each processed inbox file.
type ResultCallback func(file string, res exchange.Result)

// Watcher imports files dropped into the inbox directory. Processed files are
// moved to processed/, files whose import produced only errors to failed/.
type Watcher struct {
	importer *exchange.Importer
	dir      string
	policy   exchange.Policy
	logger   *slog.Logger
	cb       ResultCallback

	// settle is how long a file must sit unchanged before import, so a
	// half-copied file is not picked up.
	settle time.Duration
}

// NewWatcher creates a Watcher over dir. cb may be nil.
func NewWatcher(importer *exchange.Importer, dir string, policy exchange.Policy, logger *slog.Logger, cb ResultCallback) *Watcher {
	return &Watcher{
		importer: importer,
		dir:      dir,
		policy:   policy,
		logger:   logger,
		cb:       cb,
		settle:   200 * time.Millisecond,
	}
}

// Run watches the inbox until ctx is cancelled. Files already present at
// startup are processed first.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return err
	}

	w.logger.Info("inbox: started", slog.String("dir", w.dir), slog.String("policy", string(w.policy)))

	w.sweep()

	// pending debounces rapid write events per file path.
	pending := make(map[string]*time.Timer)
	dueCh := make(chan string, 16)

	for {
		select {
		case <-ctx.Done():
			for _, t := range pending {
				t.Stop()
			}
			w.logger.Info("inbox: stopped")
			return nil

		case path := <-dueCh:
			delete(pending, path)
			w.process(path)

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !importable(ev.Name) {
				continue
			}
			path := ev.Name
			if t, ok := pending[path]; ok {
				t.Reset(w.settle)
				continue
			}
			pending[path] = time.AfterFunc(w.settle, func() {
				select {
				case dueCh <- path:
				case <-ctx.Done():
				}
			})

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("inbox: watch error", slog.String("error", watchErr.Error()))
		}
	}
}

// sweep processes files that were already waiting in the inbox.
func (w *Watcher) sweep() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("inbox: sweep failed", slog.String("error", err.Error()))
		return
	}
	for _, e := range entries {
		if e.IsDir() || !importable(e.Name()) {
			continue
		}
		w.process(filepath.Join(w.dir, e.Name()))
	}
}

func (w *Watcher) process(path string) {
	if _, err := os.Stat(path); err != nil {
		return // already moved or removed
	}

	var res exchange.Result
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		res = w.importer.ImportSnapshot(path, w.policy)
	case ".csv":
		res = w.importer.ImportItemsCSV(path, w.policy)
	default:
		return
	}

	dest := "processed"
	if res.Imported == 0 && len(res.Errors) > 0 {
		dest = "failed"
	}
	if err := w.archive(path, dest); err != nil {
		w.logger.Warn("inbox: archive failed", slog.String("file", path), slog.String("error", err.Error()))
	}

	w.logger.Info("inbox: imported",
		slog.String("file", filepath.Base(path)),
		slog.Int("imported", res.Imported),
		slog.Int("skipped", res.Skipped),
		slog.Int("errors", len(res.Errors)))

	if w.cb != nil {
		w.cb(filepath.Base(path), res)
	}
}

// archive moves a processed file into the given subdirectory, prefixing a
// timestamp so repeated drops of the same filename never collide.
func (w *Watcher) archive(path, sub string) error {
	dir := filepath.Join(w.dir, sub)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	name := time.Now().Format("20060102_150405") + "_" + filepath.Base(path)
	return os.Rename(path, filepath.Join(dir, name))
}

func importable(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".csv":
		return true
	}
	return false
}
