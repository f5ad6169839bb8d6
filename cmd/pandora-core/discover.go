package main

import (
	"os"
	"path/filepath"

	"github.com/mutagen-io/mutagen/internal/instance"
	"github.com/mutagen-io/mutagen/internal/slab"
	"github.com/mutagen-io/mutagen/internal/watch"
	"github.com/mutagen-io/mutagen/pkg/logging"
)

// registry wires an instance.Table together with the watch.Table tracking
// which directory each loaded instance's watch targets live under, so that
// a rescan can both load newly-created instance directories and unsubscribe
// ones that disappeared.
type registry struct {
	instancesDir string
	instances    *instance.Table
	watchTable   *watch.Table
	fsWatcher    *watch.Watcher
	logger       *logging.Logger

	// roots maps an instance directory name to the handle loaded for it, so
	// a rescan can tell which on-disk directories are already tracked.
	roots map[string]slab.Handle
}

func newRegistry(instancesDir string, instances *instance.Table, watchTable *watch.Table, fsWatcher *watch.Watcher, logger *logging.Logger) *registry {
	return &registry{
		instancesDir: instancesDir,
		instances:    instances,
		watchTable:   watchTable,
		fsWatcher:    fsWatcher,
		logger:       logger,
		roots:        make(map[string]slab.Handle),
	}
}

// rescan re-enumerates instancesDir, loading any subdirectory not already
// tracked and removing (unsubscribing) any tracked directory that vanished.
// Errors loading an individual instance are logged and skipped rather than
// aborting the whole scan, since one malformed instance shouldn't block
// discovery of the others.
func (r *registry) rescan() {
	entries, err := os.ReadDir(r.instancesDir)
	if err != nil {
		r.logger.Warnf("unable to enumerate instances directory: %v", err)
		return
	}

	seen := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		seen[entry.Name()] = true
		if _, tracked := r.roots[entry.Name()]; tracked {
			continue
		}

		path := filepath.Join(r.instancesDir, entry.Name())
		inst, err := instance.LoadFromFolder(path, r.logger.Sublogger(entry.Name()))
		if err != nil {
			r.logger.Warnf("skipping instance directory %s: %v", entry.Name(), err)
			continue
		}

		handle := r.instances.Insert(inst)
		r.roots[entry.Name()] = handle
		r.subscribe(handle, inst)
	}

	for name, handle := range r.roots {
		if seen[name] {
			continue
		}
		r.unsubscribe(handle)
		delete(r.roots, name)
	}
}
