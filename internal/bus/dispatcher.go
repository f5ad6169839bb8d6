package bus

import (
	"context"
	"errors"
	"time"

	"github.com/mutagen-io/mutagen/internal/archive"
	"github.com/mutagen-io/mutagen/internal/instance"
	"github.com/mutagen-io/mutagen/internal/library"
	"github.com/mutagen-io/mutagen/internal/slab"
	"github.com/mutagen-io/mutagen/internal/sourceindex"
	"github.com/mutagen-io/mutagen/internal/watch"
	"github.com/mutagen-io/mutagen/pkg/logging"
)

var (
	errNoLibrary          = errors.New("bus: no content library configured")
	errUnknownRequestKind = errors.New("bus: unknown request kind")
)

// tickInterval governs how often the dispatcher wakes even absent a
// request or a watcher batch, grounded on housekeeping's ticker-plus-select
// loop shape. A tick currently does no work; the watcher's debounce runs in
// the watcher's own goroutine and reaches this loop only as a batch.
const tickInterval = time.Second

// Dispatcher is the backend half of the message bus: it drains frontend
// requests and watcher-driven filesystem events from a single select loop
// and replies on the Bus, publishing Events when something changed out
// from under a caller that never asked.
type Dispatcher struct {
	bus          *Bus
	instances    *instance.Table
	instancesDir string
	watchDisp    *watch.Dispatcher
	cache        *archive.Cache
	index        *sourceindex.Index
	library      *library.Library
	resolver     library.Resolver
	logger       *logging.Logger
}

// NewDispatcher assembles a Dispatcher from its collaborators. resolver may
// be nil only if no RequestInstallContent will ever be issued. instancesDir
// is only consulted for an install Targeting a new instance; it may be
// empty otherwise.
func NewDispatcher(bus *Bus, instances *instance.Table, instancesDir string, watchDisp *watch.Dispatcher, cache *archive.Cache, index *sourceindex.Index, lib *library.Library, resolver library.Resolver, logger *logging.Logger) *Dispatcher {
	return &Dispatcher{
		bus:          bus,
		instances:    instances,
		instancesDir: instancesDir,
		watchDisp:    watchDisp,
		cache:        cache,
		index:        index,
		library:      lib,
		resolver:     resolver,
		logger:       logger,
	}
}

// Run drains requests and watcher batches until ctx is cancelled. batches is
// fed by a Watcher's Run goroutine; Dispatcher never starts that goroutine
// itself so that callers remain free to choose the Watcher's lifecycle.
func (d *Dispatcher) Run(ctx context.Context, batches <-chan []string) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-d.bus.Requests():
			d.handle(ctx, req)
		case batch := <-batches:
			if d.watchDisp != nil {
				d.watchDisp.Dispatch(batch)
			}
		case <-ticker.C:
			// Nothing scheduled on a plain tick today; reserved for
			// future periodic work (e.g. library housekeeping) without
			// reshaping the select loop.
		}
	}
}

// handle executes one request and replies on the bus. Errors from the
// underlying instance/library operations are reported in the Response
// rather than logged-and-dropped, since the frontend is the only consumer
// that can decide whether to retry.
func (d *Dispatcher) handle(ctx context.Context, req Request) {
	resp := Response{ID: req.ID}

	switch req.Kind {
	case RequestListInstances:
		resp.Kind = ResponseInstanceList
		resp.Instances = d.listInstances()

	case RequestLoadWorlds:
		resp.Kind = ResponseWorlds
		worlds, _, err := instance.LoadWorlds(ctx, d.instances, req.Instance, d.logger)
		resp.Worlds, resp.Err = worlds, err

	case RequestLoadServers:
		resp.Kind = ResponseServers
		servers, _, err := instance.LoadServers(ctx, d.instances, req.Instance, d.logger)
		resp.Servers, resp.Err = servers, err

	case RequestLoadContent:
		resp.Kind = ResponseContent
		content, _, err := instance.LoadContent(ctx, d.instances, req.Instance, req.Folder, d.cache, d.index, d.logger)
		resp.Content, resp.Err = content, err

	case RequestInstallContent:
		resp.Kind = ResponseInstallResult
		if d.library == nil {
			resp.Err = errNoLibrary
			break
		}
		result, err := d.library.Install(ctx, req.Install, d.resolver, d.cache, d.index, d.instances, d.instancesDir, d.logger)
		resp.Install, resp.Err = result, err
		if err == nil {
			d.bus.PublishEvent(Event{Kind: EventContentChanged, Instance: req.Instance, Folder: req.Folder})
		}

	default:
		resp.Kind = ResponseError
		resp.Err = errUnknownRequestKind
	}

	if err := d.bus.Reply(resp); err != nil {
		d.logger.Debugf("bus: dropping reply for %s: %v", req.ID, err)
	}
}

// listInstances builds the handle-identified summary list surfaced by
// RequestListInstances.
func (d *Dispatcher) listInstances() []InstanceSummary {
	var out []InstanceSummary
	d.instances.Range(func(h slab.Handle, inst *instance.Instance) {
		out = append(out, InstanceSummary{Handle: h, ID: inst.ID, Name: inst.Name, Root: inst.RootPath})
	})
	return out
}
