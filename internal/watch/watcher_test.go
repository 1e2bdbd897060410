package watch

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func quietLogger() *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{Level: log.ErrorLevel})
}

func start(t *testing.T, cfg Config) (<-chan []string, context.CancelFunc) {
	t.Helper()
	calls := make(chan []string, 10)
	cfg.Debounce = 100 * time.Millisecond
	cfg.Logger = quietLogger()
	cfg.OnChange = func(_ context.Context, changed []string) error {
		calls <- changed
		return nil
	}
	w, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-errCh; err != nil {
			t.Errorf("Run() error: %v", err)
		}
	})
	return calls, cancel
}

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWatcherDebounce(t *testing.T) {
	dir := t.TempDir()
	calls, _ := start(t, Config{Root: dir, Patterns: []string{"package.json", "go.mod"}})

	write(t, filepath.Join(dir, "package.json"), "{}")
	time.Sleep(10 * time.Millisecond)
	write(t, filepath.Join(dir, "go.mod"), "module x")

	select {
	case changed := <-calls:
		for _, want := range []string{"go.mod", "package.json"} {
			if !slices.Contains(changed, want) {
				t.Errorf("changed = %v, missing %s", changed, want)
			}
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for callback")
	}

	select {
	case changed := <-calls:
		t.Errorf("unexpected second callback: %v", changed)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherIgnoresUnmatchedAndExcluded(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "node_modules", "x"), 0o755); err != nil {
		t.Fatal(err)
	}
	calls, _ := start(t, Config{Root: dir, Patterns: []string{"package.json"}})

	write(t, filepath.Join(dir, "README.md"), "hello")
	write(t, filepath.Join(dir, "node_modules", "x", "package.json"), "{}")

	select {
	case changed := <-calls:
		t.Errorf("unexpected callback: %v", changed)
	case <-time.After(400 * time.Millisecond):
	}
}

func TestWatcherNewDirectory(t *testing.T) {
	dir := t.TempDir()
	calls, _ := start(t, Config{Root: dir, Patterns: []string{"Cargo.lock"}})

	sub := filepath.Join(dir, "crates", "core")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	// Let the watcher register the new directories.
	time.Sleep(200 * time.Millisecond)
	write(t, filepath.Join(sub, "Cargo.lock"), "")

	select {
	case changed := <-calls:
		if !slices.Contains(changed, "crates/core/Cargo.lock") {
			t.Errorf("changed = %v", changed)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for callback")
	}
}

func TestRunTwice(t *testing.T) {
	w, err := New(Config{Root: t.TempDir(), Logger: quietLogger()})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Run(ctx); err != nil {
		t.Fatalf("first Run() = %v", err)
	}
	if err := w.Run(ctx); err == nil {
		t.Error("second Run() should fail")
	}
}

func TestNewRejectsMissingRoot(t *testing.T) {
	if _, err := New(Config{Root: filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Error("New() should fail for a missing root")
	}
}
