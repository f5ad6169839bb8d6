package watch

import (
	"path/filepath"
	"strings"

	"github.com/mutagen-io/mutagen/internal/childstate"
	"github.com/mutagen-io/mutagen/internal/instance"
	"github.com/mutagen-io/mutagen/internal/slab"
	"github.com/mutagen-io/mutagen/pkg/logging"
)

// NotifyKind identifies which part of an instance's loadable state a dirty
// mark landed on, so a caller wiring Dispatcher to a push-notification
// channel (internal/bus's Event) can translate without this package needing
// to know about bus's types.
type NotifyKind int

const (
	NotifyWorldsChanged NotifyKind = iota
	NotifyServersChanged
	NotifyContentChanged
)

// Dispatcher turns a batch of raw watcher paths into dirty marks on an
// instance table: expand each path to its logical paths, look up each
// logical path's target (or its parent's), and dispatch per target kind.
type Dispatcher struct {
	table  *Table
	inst   *instance.Table
	logger *logging.Logger
	// rescan is called for TargetRoot/TargetInstancesDir: re-enumerate instances.
	rescan func()
	// notify is called whenever a dirty mark lands on an instance.
	notify func(handle slab.Handle, kind NotifyKind, folder instance.ContentFolder)
}

// NewDispatcher creates a Dispatcher. rescan is invoked whenever the
// launcher root or the instances directory itself changes (an instance was
// added or removed), so the caller can re-enumerate instances and update
// table/inst accordingly. notify is invoked (handle, NotifyKind, folder)
// whenever a filesystem change marks part of an instance dirty; folder is
// meaningful only for NotifyContentChanged. Either callback may be nil.
func NewDispatcher(table *Table, inst *instance.Table, rescan func(), logger *logging.Logger) *Dispatcher {
	return &Dispatcher{table: table, inst: inst, rescan: rescan, logger: logger}
}

// SetNotify installs the dirty-mark callback. Kept separate from
// NewDispatcher rather than adding a fifth constructor parameter, since most
// callers (including every existing test) don't need it.
func (d *Dispatcher) SetNotify(notify func(handle slab.Handle, kind NotifyKind, folder instance.ContentFolder)) {
	d.notify = notify
}

// Dispatch processes one coalesced batch of changed paths, in receipt
// order.
func (d *Dispatcher) Dispatch(batch []string) {
	for _, path := range batch {
		for _, logical := range d.table.ExpandLogical(path) {
			for _, target := range d.table.TargetsFor(logical) {
				d.dispatchOne(target, logical)
			}
		}
	}
}

func (d *Dispatcher) dispatchOne(target Target, path string) {
	switch target.Kind {
	case TargetRoot, TargetInstancesDir:
		if d.rescan != nil {
			d.rescan()
		}

	case TargetInstanceRoot:
		inst, ok := d.inst.Get(target.Handle)
		if !ok {
			return
		}
		if filepath.Base(path) == "info_v1.json" {
			inst.Configuration.MarkDirty()
		}
		// A rename of the instance root directory itself (rather than a
		// file within it) is detected and applied by the caller that owns
		// the instances-directory rescan, which calls inst.OnRootRenamed
		// once it has resolved the new path; this dispatcher only handles
		// the configuration-file-changed case, which doesn't require
		// knowing the new root path.

	case TargetInstanceGameRoot:
		d.dispatchGameRoot(target, path)

	case TargetInstanceWorldsDir:
		inst, ok := d.inst.Get(target.Handle)
		if !ok {
			return
		}
		inst.MarkAllWorldsDirty()
		d.notifyOf(target.Handle, NotifyWorldsChanged, 0)

	case TargetSingleWorldDir:
		inst, ok := d.inst.Get(target.Handle)
		if !ok {
			return
		}
		inst.MarkWorldDirty(target.WorldName)
		d.notifyOf(target.Handle, NotifyWorldsChanged, 0)

	case TargetServersFile:
		inst, ok := d.inst.Get(target.Handle)
		if !ok {
			return
		}
		inst.MarkServersDirty()
		d.notifyOf(target.Handle, NotifyServersChanged, 0)

	case TargetContentDir:
		inst, ok := d.inst.Get(target.Handle)
		if !ok {
			return
		}
		d.markContentDirty(inst, target.Folder, path)
		d.notifyOf(target.Handle, NotifyContentChanged, target.Folder)

	default:
		d.logger.Debugf("watch: unhandled target kind %v for %s", target.Kind, path)
	}
}

// dispatchGameRoot routes an event seen directly on an instance's game root
// (".minecraft") to whichever subpath actually changed: saves, servers.dat,
// or a content directory.
func (d *Dispatcher) dispatchGameRoot(target Target, path string) {
	inst, ok := d.inst.Get(target.Handle)
	if !ok {
		return
	}

	base := filepath.Base(path)
	switch {
	case base == "saves":
		inst.MarkAllWorldsDirty()
		d.notifyOf(target.Handle, NotifyWorldsChanged, 0)
	case base == "servers.dat":
		inst.MarkServersDirty()
		d.notifyOf(target.Handle, NotifyServersChanged, 0)
	case base == "mods":
		inst.MarkAllContentDirty(instance.ContentFolderMods)
		d.notifyOf(target.Handle, NotifyContentChanged, instance.ContentFolderMods)
	case base == "resourcepacks":
		inst.MarkAllContentDirty(instance.ContentFolderResourcePacks)
		d.notifyOf(target.Handle, NotifyContentChanged, instance.ContentFolderResourcePacks)
	}
}

// notifyOf invokes the notify callback if one is installed.
func (d *Dispatcher) notifyOf(handle slab.Handle, kind NotifyKind, folder instance.ContentFolder) {
	if d.notify != nil {
		d.notify(handle, kind, folder)
	}
}

// markContentDirty folds a sidecar path's dirty mark onto its owning
// content file before marking it dirty.
func (d *Dispatcher) markContentDirty(inst *instance.Instance, folder instance.ContentFolder, path string) {
	filename := filepath.Base(path)
	if childstate.IsSidecarPath(filename) {
		filename = filepath.Base(childstate.FoldDirtyPath(filename))
	}
	if filename == "" || strings.TrimSpace(filename) == "" {
		return
	}
	inst.MarkContentDirty(folder, filename)
}
