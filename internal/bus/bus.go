package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// requestQueueDepth bounds how many requests may be in flight (sent but not
// yet picked up by the dispatcher) before Send blocks. The dispatcher is a
// single select loop, so this is really just slack for bursty callers.
const requestQueueDepth = 32

// Bus is the frontend-facing half of the message bus: a request channel the
// dispatcher drains, a correlation table matching each in-flight request to
// the channel its caller is waiting on, and a best-effort event channel for
// uncorrelated refresh pushes.
type Bus struct {
	requests chan Request

	mu      sync.Mutex
	waiting map[uuid.UUID]chan Response

	events chan Event
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{
		requests: make(chan Request, requestQueueDepth),
		waiting:  make(map[uuid.UUID]chan Response),
		// Buffered with capacity 1: a pending, undelivered event is
		// coalesced rather than queued, since a refresh notice only ever
		// means "go re-fetch," never "here is the new data."
		events: make(chan Event, 1),
	}
}

// Requests returns the channel the dispatcher drains.
func (b *Bus) Requests() <-chan Request {
	return b.requests
}

// Events returns the channel a frontend drains for refresh pushes.
func (b *Bus) Events() <-chan Event {
	return b.events
}

// Send submits req (stamping a fresh correlation ID onto it) and blocks
// until the dispatcher replies or ctx is cancelled.
func (b *Bus) Send(ctx context.Context, req Request) (Response, error) {
	req.ID = uuid.New()

	reply := make(chan Response, 1)
	b.mu.Lock()
	b.waiting[req.ID] = reply
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.waiting, req.ID)
		b.mu.Unlock()
	}()

	select {
	case b.requests <- req:
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}

	select {
	case resp := <-reply:
		return resp, nil
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

// Reply delivers resp to whichever Send call is waiting on its ID. It is a
// no-op (other than logging, left to the caller) if no one is waiting,
// which happens if the original Send call's context was already cancelled.
func (b *Bus) Reply(resp Response) error {
	b.mu.Lock()
	reply, ok := b.waiting[resp.ID]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("bus: no waiter for response %s", resp.ID)
	}

	select {
	case reply <- resp:
	default:
		// The waiter's buffered slot is already full, which can only
		// happen if Reply is (incorrectly) called twice for the same
		// request; drop the duplicate rather than block.
	}
	return nil
}

// PublishEvent pushes ev to the event channel, dropping it if a previous
// event is still pending and undelivered (coalescing refresh notices rather
// than queuing them).
func (b *Bus) PublishEvent(ev Event) {
	select {
	case b.events <- ev:
	default:
	}
}
