package instance

// dirtyTransition is the state transition applied when some part of an
// instance's backing filesystem changes: a Loaded loader becomes
// LoadedDirty so the next call reloads, a Loading load becomes
// LoadingDirty so its in-flight result is known stale on arrival, and
// Unloaded/LoadingDirty/LoadedDirty are left as-is (already dirty, or not
// yet loaded at all). Mirrors Instance::cas_update's mark_dirty use.
func dirtyTransition(s State) State {
	switch s {
	case StateLoaded:
		return StateLoadedDirty
	case StateLoading:
		return StateLoadingDirty
	default:
		return s
	}
}

// MarkWorldDirty marks a single world (named by its folder name within the
// saves directory) as needing reload on the next LoadWorlds call.
func (inst *Instance) MarkWorldDirty(name string) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if !inst.allWorldsDirty {
		inst.dirtyWorlds[name] = true
	}
	inst.worldsState.cas(dirtyTransition)
}

// MarkAllWorldsDirty marks every world as needing reload, superseding any
// previously recorded individual dirty marks.
func (inst *Instance) MarkAllWorldsDirty() {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	inst.allWorldsDirty = true
	inst.dirtyWorlds = make(map[string]bool)
	inst.worldsState.cas(dirtyTransition)
}

// MarkServersDirty marks servers.dat as needing reload.
func (inst *Instance) MarkServersDirty() {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	inst.dirtyServers = true
	inst.serversState.cas(dirtyTransition)
}

// MarkContentDirty marks a single file (named relative to folder) as
// needing reload on the next LoadContent call for that folder.
func (inst *Instance) MarkContentDirty(folder ContentFolder, filename string) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	cf := inst.content[folder]
	if !cf.allDirty {
		cf.dirtyPaths[filename] = true
	}
	cf.state.cas(dirtyTransition)
}

// MarkAllContentDirty marks every file in folder as needing reload,
// superseding any previously recorded individual dirty marks.
func (inst *Instance) MarkAllContentDirty(folder ContentFolder) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	cf := inst.content[folder]
	cf.allDirty = true
	cf.dirtyPaths = make(map[string]bool)
	cf.state.cas(dirtyTransition)
}
