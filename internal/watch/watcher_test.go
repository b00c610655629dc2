package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testDebounce = 50 * time.Millisecond

func waitEvent(t *testing.T, w *Watcher) Event {
	t.Helper()
	select {
	case ev := <-w.Events():
		return ev
	case err := <-w.Errors():
		t.Fatalf("watcher error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func expectNoEvent(t *testing.T, w *Watcher, wait time.Duration) {
	t.Helper()
	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(wait):
	}
}

func TestOpString(t *testing.T) {
	tests := map[Op]string{
		Changed: "changed",
		Removed: "removed",
		Op(42):  "unknown",
	}
	for op, want := range tests {
		if got := op.String(); got != want {
			t.Errorf("Op(%d).String() = %q, want %q", int(op), got, want)
		}
	}
}

func TestNew(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guide.md")

	w, err := New(path, 0)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer w.Close()

	if !filepath.IsAbs(w.Path()) {
		t.Errorf("Path() = %q, want absolute", w.Path())
	}
	if w.debounceDelay != DefaultDebounceDelay {
		t.Errorf("debounceDelay = %v, want default", w.debounceDelay)
	}
}

func TestNew_MissingDirectory(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "missing", "guide.md"), testDebounce); err == nil {
		t.Error("expected error when the directory does not exist")
	}
}

func TestWatcher_Changed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guide.md")
	if err := os.WriteFile(path, []byte("# Guide\n"), 0644); err != nil {
		t.Fatal(err)
	}

	w, err := New(path, testDebounce)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte("# Guide\n\n```c\nint x;\n```\n"), 0644); err != nil {
		t.Fatal(err)
	}

	ev := waitEvent(t, w)
	if ev.Op != Changed {
		t.Errorf("Op = %v, want changed", ev.Op)
	}
	if ev.Path != w.Path() {
		t.Errorf("Path = %q, want %q", ev.Path, w.Path())
	}
	if ev.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
}

func TestWatcher_CoalescesBurst(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guide.md")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}

	w, err := New(path, 200*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte{byte('a' + i)}, 0644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if ev := waitEvent(t, w); ev.Op != Changed {
		t.Errorf("Op = %v, want changed", ev.Op)
	}
	expectNoEvent(t, w, 400*time.Millisecond)
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guide.md")

	w, err := New(path, testDebounce)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := os.WriteFile(filepath.Join(dir, "other.md"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	expectNoEvent(t, w, 300*time.Millisecond)
}

func TestWatcher_Removed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guide.md")
	if err := os.WriteFile(path, []byte("# Guide\n"), 0644); err != nil {
		t.Fatal(err)
	}

	w, err := New(path, testDebounce)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if ev := waitEvent(t, w); ev.Op != Removed {
		t.Errorf("Op = %v, want removed", ev.Op)
	}

	if err := os.WriteFile(path, []byte("# Back\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if ev := waitEvent(t, w); ev.Op != Changed {
		t.Errorf("Op = %v, want changed after re-creation", ev.Op)
	}
}

func TestWatcher_CloseIdempotent(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "guide.md"), testDebounce)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
