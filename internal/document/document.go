// Package document implements the Persistent Document: an in-memory value
// backed by a JSON file on disk, loaded lazily and saved atomically. Its
// write-failure semantics are deliberately stricter than the original
// Rust implementation (original_source/crates/backend/src/persistent.rs),
// whose Persistent only marks itself dirty after a successful write (to
// force a reload as a consistency check). Here, any write failure also
// marks the document dirty, forcing a re-read from disk before the next
// access, since the in-memory value may no longer agree with what's (or
// isn't) on disk.
package document

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/mutagen-io/mutagen/pkg/encoding"
	"github.com/mutagen-io/mutagen/pkg/logging"
)

// Persistent wraps a JSON-serializable value of type T, persisted at a fixed
// path. It is safe for concurrent use.
type Persistent[T any] struct {
	path   string
	logger *logging.Logger

	mu     sync.Mutex
	value  T
	loaded bool
	dirty  bool
}

// New creates a Persistent document backed by the specified path. The
// default value is used until the document is first loaded (or if the file
// does not yet exist on disk).
func New[T any](path string, defaultValue T, logger *logging.Logger) *Persistent[T] {
	return &Persistent[T]{
		path:  path,
		value: defaultValue,
		logger: logger,
	}
}

// load reads the document from disk if it hasn't been loaded yet or has been
// marked dirty. The caller must hold p.mu.
func (p *Persistent[T]) load() error {
	if p.loaded && !p.dirty {
		return nil
	}

	var value T
	err := encoding.LoadAndUnmarshal(p.path, func(data []byte) error {
		return json.Unmarshal(data, &value)
	})
	if os.IsNotExist(err) {
		// No file on disk yet; keep whatever value is already in memory
		// (the default, or the last successfully-applied in-memory
		// mutation) and treat the document as loaded and clean.
		p.loaded = true
		p.dirty = false
		return nil
	} else if err != nil {
		return fmt.Errorf("unable to load document: %w", err)
	}

	p.value = value
	p.loaded = true
	p.dirty = false
	return nil
}

// Get returns a copy of the current value, loading from disk first if
// necessary.
func (p *Persistent[T]) Get() (T, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.load(); err != nil {
		var zero T
		return zero, err
	}
	return p.value, nil
}

// MarkDirty forces the next Get or Modify call to re-read from disk rather
// than trust the in-memory value, for callers that have detected (e.g. via a
// filesystem watcher) that the backing file changed outside this document's
// own Modify calls.
func (p *Persistent[T]) MarkDirty() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dirty = true
}

// Modify loads the current value (if necessary), applies mutate to a pointer
// to it, and then saves the result to disk. The mutation is applied to the
// in-memory value regardless of whether the subsequent save succeeds; if the
// save fails, the document is marked dirty so that the next access re-reads
// from disk rather than trusting the (possibly unsaved) in-memory value.
func (p *Persistent[T]) Modify(mutate func(*T) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.load(); err != nil {
		return err
	}

	if err := mutate(&p.value); err != nil {
		return fmt.Errorf("unable to apply mutation: %w", err)
	}

	saveErr := encoding.MarshalAndSave(p.path, p.logger, func() ([]byte, error) {
		return json.MarshalIndent(p.value, "", "  ")
	})
	if saveErr != nil {
		p.dirty = true
		return fmt.Errorf("unable to save document: %w", saveErr)
	}

	p.dirty = false
	return nil
}
