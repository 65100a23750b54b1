package inbox

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marden/trove/internal/exchange"
	"github.com/marden/trove/internal/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type received struct {
	file string
	res  exchange.Result
}

func runWatcher(t *testing.T, w *Watcher) (chan received, context.CancelFunc) {
	t.Helper()
	results := make(chan received, 8)
	ctx, cancel := context.WithCancel(context.Background())
	w.cb = func(file string, res exchange.Result) {
		results <- received{file: file, res: res}
	}
	go func() {
		if err := w.Run(ctx); err != nil {
			t.Errorf("Run: %v", err)
		}
	}()
	t.Cleanup(cancel)
	return results, cancel
}

func waitResult(t *testing.T, results chan received) received {
	t.Helper()
	select {
	case r := <-results:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for import result")
		return received{}
	}
}

func TestSweepImportsExistingFile(t *testing.T) {
	db := testutil.TestDB(t)
	dir := filepath.Join(t.TempDir(), "inbox")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	csvPath := filepath.Join(dir, "drop.csv")
	os.WriteFile(csvPath, []byte("name,category\nOak dowel,Wood\n"), 0o644)

	w := NewWatcher(exchange.NewImporter(db), dir, exchange.PolicySkip, discardLogger(), nil)
	results, _ := runWatcher(t, w)

	r := waitResult(t, results)
	if r.file != "drop.csv" || r.res.Imported != 1 {
		t.Fatalf("result = %+v", r)
	}

	items, _ := db.ListItems()
	if len(items) != 1 || items[0].Name != "Oak dowel" {
		t.Errorf("items = %+v", items)
	}

	// Original file is archived under processed/ with a timestamp prefix.
	if _, err := os.Stat(csvPath); !os.IsNotExist(err) {
		t.Error("source file still in inbox")
	}
	archived, _ := os.ReadDir(filepath.Join(dir, "processed"))
	if len(archived) != 1 {
		t.Fatalf("processed dir entries = %d", len(archived))
	}
}

func TestDroppedFileImported(t *testing.T) {
	db := testutil.TestDB(t)
	dir := filepath.Join(t.TempDir(), "inbox")

	w := NewWatcher(exchange.NewImporter(db), dir, exchange.PolicySkip, discardLogger(), nil)
	results, _ := runWatcher(t, w)

	// Give the watcher a moment to register before dropping the file.
	time.Sleep(100 * time.Millisecond)
	os.WriteFile(filepath.Join(dir, "drop.csv"), []byte("name\nLinen thread\n"), 0o644)

	r := waitResult(t, results)
	if r.res.Imported != 1 {
		t.Fatalf("result = %+v", r)
	}
	items, _ := db.ListItems()
	if len(items) != 1 {
		t.Errorf("items = %d", len(items))
	}
}

func TestBadFileArchivedAsFailed(t *testing.T) {
	db := testutil.TestDB(t)
	dir := filepath.Join(t.TempDir(), "inbox")
	os.MkdirAll(dir, 0o755)
	os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o644)

	w := NewWatcher(exchange.NewImporter(db), dir, exchange.PolicySkip, discardLogger(), nil)
	results, _ := runWatcher(t, w)

	r := waitResult(t, results)
	if r.res.Imported != 0 || len(r.res.Errors) == 0 {
		t.Fatalf("result = %+v", r)
	}

	failed, _ := os.ReadDir(filepath.Join(dir, "failed"))
	if len(failed) != 1 {
		t.Errorf("failed dir entries = %d", len(failed))
	}
}

func TestNonImportableFilesIgnored(t *testing.T) {
	if importable("photo.png") || importable("README") {
		t.Error("non-importable extension accepted")
	}
	if !importable("a.JSON") || !importable("b.csv") {
		t.Error("importable extension rejected")
	}
}
