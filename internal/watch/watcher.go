// Package watch reports edits to a single document on disk.
//
// Editors save in different ways (write in place, write-then-rename,
// remove-then-create), so the watcher observes the document's directory and
// coalesces every burst of events touching the document into one Event.
package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Op is the kind of change observed.
type Op int

const (
	// Changed means the document was created or written.
	Changed Op = iota
	// Removed means the document no longer exists.
	Removed
)

// String returns a human-readable representation of the operation
func (op Op) String() string {
	switch op {
	case Changed:
		return "changed"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is one coalesced change to the watched document.
type Event struct {
	Path      string
	Op        Op
	Timestamp time.Time
}

// DefaultDebounceDelay is the default delay for coalescing rapid writes
const DefaultDebounceDelay = 200 * time.Millisecond

// Watcher watches one document.
type Watcher struct {
	watcher *fsnotify.Watcher
	events  chan Event
	errors  chan error
	done    chan struct{}
	path    string

	mu            sync.Mutex
	debounceDelay time.Duration
	pending       *time.Timer
	closed        bool
}

// New starts watching the document at path. The document's directory must
// exist; the document itself may appear later.
func New(path string, debounce time.Duration) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounceDelay
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	w := &Watcher{
		watcher:       fsw,
		events:        make(chan Event, 16),
		errors:        make(chan error, 4),
		done:          make(chan struct{}),
		path:          abs,
		debounceDelay: debounce,
	}
	go w.processEvents()
	return w, nil
}

// Path returns the absolute path of the watched document.
func (w *Watcher) Path() string { return w.path }

// Events returns the channel of coalesced document events.
func (w *Watcher) Events() <-chan Event { return w.events }

// Errors returns the channel of watcher errors.
func (w *Watcher) Errors() <-chan error { return w.errors }

func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	// Chmod alone never changes content
	if event.Op == fsnotify.Chmod {
		return
	}
	w.debounce()
}

// debounce restarts the quiet-period timer. The event kind is decided when
// the timer fires, from whether the document exists at that moment.
func (w *Watcher) debounce() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(w.debounceDelay, w.fire)
}

func (w *Watcher) fire() {
	op := Changed
	if _, err := os.Stat(w.path); os.IsNotExist(err) {
		op = Removed
	}

	select {
	case w.events <- Event{Path: w.path, Op: op, Timestamp: time.Now()}:
	case <-w.done:
	default:
		// a run is already queued; it will read the latest content
	}
}

// Close stops the watcher and releases resources
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.pending != nil {
		w.pending.Stop()
	}
	w.mu.Unlock()

	close(w.done)
	return w.watcher.Close()
}
