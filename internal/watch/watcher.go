package watch

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mutagen-io/mutagen/pkg/logging"
	"github.com/mutagen-io/mutagen/pkg/state"
)

// debounceWindow is how long the watcher waits for the event stream to go
// quiet before delivering a batch.
const debounceWindow = 100 * time.Millisecond

// Watcher wraps an OS filesystem notifier with coalesced, batched delivery:
// raw events accumulate in a pending set while pkg/state.Coalescer's timer
// is running, and the whole batch is delivered in receipt order once the
// stream has been quiet for debounceWindow.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	coalescer *state.Coalescer
	logger    *logging.Logger

	mu      sync.Mutex
	pending []string
	seen    map[string]bool

	done chan struct{}
}

// New creates a Watcher. Call Add to subscribe paths and Run to begin
// delivering batches.
func New(logger *logging.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsWatcher: fsWatcher,
		coalescer: state.NewCoalescer(debounceWindow),
		logger:    logger,
		seen:      make(map[string]bool),
		done:      make(chan struct{}),
	}

	go w.consume()

	return w, nil
}

// Add subscribes a directory to OS-level notifications. The caller is
// responsible for recording the path (and any symlink aliases) in a Table
// separately; this only arranges for raw events to be reported.
func (w *Watcher) Add(path string) error {
	return w.fsWatcher.Add(path)
}

// Remove unsubscribes a previously added directory.
func (w *Watcher) Remove(path string) error {
	return w.fsWatcher.Remove(path)
}

// consume drains the underlying fsnotify channels, recording each event's
// path and strobing the coalescer, until the watcher is closed.
func (w *Watcher) consume() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.mu.Lock()
			if !w.seen[event.Name] {
				w.seen[event.Name] = true
				w.pending = append(w.pending, event.Name)
			}
			w.mu.Unlock()
			w.coalescer.Strobe()
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			if w.logger != nil {
				w.logger.Debugf("filesystem watch error: %v", err)
			}
		}
	}
}

// Run delivers coalesced batches of changed paths to handle until the
// watcher is closed via Close. Events within a batch are in receipt order; the
// loader-side dirty tracking this feeds is idempotent, so an occasional
// duplicate or reordering across batch boundaries is harmless.
func (w *Watcher) Run(handle func(batch []string)) {
	for {
		select {
		case <-w.coalescer.Events():
			w.mu.Lock()
			batch := w.pending
			w.pending = nil
			w.seen = make(map[string]bool)
			w.mu.Unlock()

			if len(batch) > 0 {
				handle(batch)
			}
		case <-w.done:
			return
		}
	}
}

// Close terminates the watcher's background goroutines and the underlying
// OS notifier.
func (w *Watcher) Close() error {
	close(w.done)
	w.coalescer.Terminate()
	return w.fsWatcher.Close()
}
