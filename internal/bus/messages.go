// Package bus implements the frontend message bus and the backend
// dispatcher that drains it: a pair of typed Go channels (no generated RPC
// stubs) carrying request/response pairs correlated by ID, plus a
// best-effort, droppable event channel for "something changed, go
// re-fetch" refresh notices.
//
// Grounded on original_source/crates/bridge/src/message.rs for the message
// shapes (request/response pairing by correlation ID, a generation-stamped
// diff of entities) and on pkg/housekeeping.Regularly's ticker-plus-context
// select loop, generalized here to a three-way select over requests,
// watcher events, and a tick.
package bus

import (
	"github.com/google/uuid"

	"github.com/mutagen-io/mutagen/internal/instance"
	"github.com/mutagen-io/mutagen/internal/library"
	"github.com/mutagen-io/mutagen/internal/slab"
)

// RequestKind identifies which operation a Request asks the backend to
// perform.
type RequestKind int

const (
	RequestListInstances RequestKind = iota
	RequestLoadWorlds
	RequestLoadServers
	RequestLoadContent
	RequestInstallContent
)

// String renders the kind for logging.
func (k RequestKind) String() string {
	switch k {
	case RequestListInstances:
		return "list-instances"
	case RequestLoadWorlds:
		return "load-worlds"
	case RequestLoadServers:
		return "load-servers"
	case RequestLoadContent:
		return "load-content"
	case RequestInstallContent:
		return "install-content"
	default:
		return "unknown"
	}
}

// Request is one frontend-initiated operation. Only the fields relevant to
// Kind are meaningful.
type Request struct {
	ID   uuid.UUID
	Kind RequestKind

	Instance slab.Handle
	Folder   instance.ContentFolder

	Install library.Request
}

// ResponseKind identifies the shape of a Response's payload.
type ResponseKind int

const (
	ResponseInstanceList ResponseKind = iota
	ResponseWorlds
	ResponseServers
	ResponseContent
	ResponseInstallResult
	ResponseError
)

// Response answers exactly one Request, identified by matching ID.
type Response struct {
	ID   uuid.UUID
	Kind ResponseKind

	Instances []InstanceSummary
	Worlds    []instance.WorldSummary
	Servers   []instance.ServerSummary
	Content   []instance.ContentSummary
	Install   *library.Result

	Err error
}

// InstanceSummary is the minimal, handle-identified view of an instance
// surfaced by RequestListInstances, deliberately excluding loader state
// (worlds/servers/content are fetched separately, on demand).
type InstanceSummary struct {
	Handle slab.Handle
	ID     string
	Name   string
	Root   string
}

// EventKind identifies what changed in a push notification. Events carry no
// payload beyond "this changed": the frontend is expected to re-request the
// relevant Load* operation rather than receive a data-carrying push. While
// one event is pending and undelivered, any newer event (of any kind) is
// dropped.
type EventKind int

const (
	EventInstancesChanged EventKind = iota
	EventWorldsChanged
	EventServersChanged
	EventContentChanged
)

// Event is a backend-initiated, uncorrelated push.
type Event struct {
	Kind     EventKind
	Instance slab.Handle
	Folder   instance.ContentFolder
}
