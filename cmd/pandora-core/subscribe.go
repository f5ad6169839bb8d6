package main

import (
	"path/filepath"

	"github.com/mutagen-io/mutagen/internal/instance"
	"github.com/mutagen-io/mutagen/internal/slab"
	"github.com/mutagen-io/mutagen/internal/watch"
)

// subscribe registers every directory and file a loaded instance needs
// watched, and tells the OS-level watcher to start observing them. A
// failure to add any one path is ignored: a missing
// saves directory (for example) just means world changes won't be noticed
// until the instance is reloaded.
func (r *registry) subscribe(handle slab.Handle, inst *instance.Instance) {
	r.watchTable.Subscribe(inst.RootPath, inst.RootPath, watch.Target{Kind: watch.TargetInstanceRoot, Handle: handle})
	r.addPath(inst.RootPath)

	r.watchTable.Subscribe(inst.GameRootPath, inst.GameRootPath, watch.Target{Kind: watch.TargetInstanceGameRoot, Handle: handle})
	r.addPath(inst.GameRootPath)

	r.watchTable.Subscribe(inst.SavesPath, inst.SavesPath, watch.Target{Kind: watch.TargetInstanceWorldsDir, Handle: handle})
	r.addPath(inst.SavesPath)

	r.watchTable.Subscribe(inst.ServerDatPath, inst.ServerDatPath, watch.Target{Kind: watch.TargetServersFile, Handle: handle})
	r.addPath(inst.ServerDatPath)

	for _, folder := range []instance.ContentFolder{instance.ContentFolderMods, instance.ContentFolderResourcePacks} {
		path := filepath.Join(inst.GameRootPath, folder.RelativePath())
		r.watchTable.Subscribe(path, path, watch.Target{Kind: watch.TargetContentDir, Handle: handle, Folder: folder})
		r.addPath(path)
	}
}

// addPath adds path to the OS watcher, ignoring the error: a path that
// doesn't exist yet (a world's saves directory before the player has ever
// opened the world, say) stays unwatched for as long as the instance stays
// tracked, since rescan skips instances it already tracks.
func (r *registry) addPath(path string) {
	_ = r.fsWatcher.Add(path)
}

// unsubscribe removes a no-longer-present instance from the instance table
// and its watch subscriptions. The underlying watch paths are left
// registered with the OS watcher; a removed instance directory generates
// its own delete events that the dispatcher will simply find no surviving
// target for.
func (r *registry) unsubscribe(handle slab.Handle) {
	inst, ok := r.instances.Remove(handle)
	if !ok {
		return
	}

	r.watchTable.Unsubscribe(inst.RootPath)
	r.watchTable.Unsubscribe(inst.GameRootPath)
	r.watchTable.Unsubscribe(inst.SavesPath)
	r.watchTable.Unsubscribe(inst.ServerDatPath)
	for _, folder := range []instance.ContentFolder{instance.ContentFolderMods, instance.ContentFolderResourcePacks} {
		r.watchTable.Unsubscribe(filepath.Join(inst.GameRootPath, folder.RelativePath()))
	}
}
