package instance

import (
	"context"
	"sync/atomic"

	"github.com/mutagen-io/mutagen/pkg/state"
)

// State is the five-valued load state each of an instance's three loaders
// (worlds, servers, per-content-folder) cycles through.
type State uint32

const (
	StateUnloaded State = iota
	StateLoading
	StateLoadingDirty
	StateLoaded
	StateLoadedDirty
)

// String renders the state for logging.
func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateLoadingDirty:
		return "loading-dirty"
	case StateLoaded:
		return "loaded"
	case StateLoadedDirty:
		return "loaded-dirty"
	default:
		return "unknown"
	}
}

// loadState is a single atomic.Uint32 holding a State value, mirroring
// pkg/state.Marker's pattern of small atomic-backed state generalized from
// one bit to five values, and Instance::cas_update's
// compare-and-swap transition loop.
type loadState struct {
	value atomic.Uint32
}

func (s *loadState) load() State {
	return State(s.value.Load())
}

func (s *loadState) store(v State) {
	s.value.Store(uint32(v))
}

// cas repeatedly applies transition to the current state until it either
// settles (transition returns the same value, a no-op) or the
// compare-and-swap succeeds.
func (s *loadState) cas(transition func(State) State) {
	for {
		old := State(s.value.Load())
		next := transition(old)
		if next == old {
			return
		}
		if s.value.CompareAndSwap(uint32(old), uint32(next)) {
			return
		}
	}
}

// loadSignal is a one-shot notifier for "a background load has completed,"
// grounded on original_source's KeepAliveNotifySignal and implemented with
// pkg/state.Tracker, which already solves "many waiters, one completion
// signal" this way: a fresh Tracker is created per in-flight load, fired
// exactly once when the load commits, and terminated immediately afterward
// since nothing will wait on it again (the owning loader clears its
// pendingLoad field to nil in the same step).
type loadSignal struct {
	tracker *state.Tracker
}

func newLoadSignal() *loadSignal {
	return &loadSignal{tracker: state.NewTracker()}
}

// await blocks until fire is called or ctx is cancelled.
func (s *loadSignal) await(ctx context.Context) {
	s.tracker.WaitForChange(ctx, 1)
}

// notified reports whether fire has already been called, without blocking.
func (s *loadSignal) notified() bool {
	index, _ := s.tracker.WaitForChange(context.Background(), 0)
	return index != 1
}

// fire wakes every current and future awaiter, then terminates the
// underlying tracker (safe because nothing references this loadSignal after
// the owning loader clears its pendingLoad field under the same lock).
func (s *loadSignal) fire() {
	s.tracker.NotifyOfChange()
	s.tracker.Terminate()
}
