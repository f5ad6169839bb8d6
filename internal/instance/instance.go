// Package instance implements the instance entity and its three incremental
// loaders (worlds, servers, content folders), each following the same
// entry-gate/plan/commit skeleton over a one-shot load notifier.
//
// Grounded directly on original_source/crates/backend/src/instance.rs: field
// layout (Instance, ContentFolder, ContentFolderState), the
// Unloaded/Loading/LoadingDirty/Loaded/LoadedDirty state machine (here a
// single atomic.Uint32 per loader, mirroring pkg/state.Marker's pattern of
// small atomic-backed state with CAS-style transitions, generalized from one
// bit to five values), and the dirty-mark bookkeeping each loader consults.
package instance

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mutagen-io/mutagen/internal/document"
	"github.com/mutagen-io/mutagen/internal/safepath"
	"github.com/mutagen-io/mutagen/internal/slab"
	"github.com/mutagen-io/mutagen/pkg/identifier"
	"github.com/mutagen-io/mutagen/pkg/logging"
)

// Loader identifies which of an instance's three loaders a dirty mark or
// watch subscription concerns.
type Loader int

const (
	LoaderWorlds Loader = iota
	LoaderServers
	LoaderContent
)

// ContentFolder identifies one of an instance's content folders.
type ContentFolder int

const (
	ContentFolderMods ContentFolder = iota
	ContentFolderResourcePacks
)

// RelativePath returns the content folder's path relative to the instance's
// game root (its ".minecraft" directory).
func (f ContentFolder) RelativePath() string {
	switch f {
	case ContentFolderMods:
		return "mods"
	case ContentFolderResourcePacks:
		return "resourcepacks"
	default:
		return ""
	}
}

// String renders the folder name for logging.
func (f ContentFolder) String() string {
	return f.RelativePath()
}

// contentFolders lists every ContentFolder value, for iteration.
var contentFolders = []ContentFolder{ContentFolderMods, ContentFolderResourcePacks}

// Loader kind identifying an instance's Minecraft mod loader. Unknown is the
// zero value so a freshly-decoded configuration without an explicit loader
// field defaults to it rather than to Vanilla.
type LoaderKind int

const (
	LoaderUnknown LoaderKind = iota
	LoaderVanilla
	LoaderFabric
	LoaderForge
	LoaderNeoForge
	LoaderQuilt
)

// ParseLoaderKind maps a lowercase Modrinth-style loader identifier (as
// carried by a library.Request's LoaderHint) to a LoaderKind, reporting
// false for anything unrecognized.
func ParseLoaderKind(hint string) (LoaderKind, bool) {
	switch hint {
	case "vanilla":
		return LoaderVanilla, true
	case "fabric":
		return LoaderFabric, true
	case "forge":
		return LoaderForge, true
	case "neoforge":
		return LoaderNeoForge, true
	case "quilt":
		return LoaderQuilt, true
	default:
		return LoaderUnknown, false
	}
}

// MemoryConfiguration is an optional JVM heap size hint, in megabytes.
type MemoryConfiguration struct {
	Min uint32 `json:"min"`
	Max uint32 `json:"max"`
}

// Configuration is the persistent per-instance document (info_v1.json).
// JVM launch fields are retained on the document (they are part of the
// on-disk configuration contract other tooling reads and writes) even though
// assembling launch arguments from them is out of this module's scope.
type Configuration struct {
	MinecraftVersion       string               `json:"minecraft_version"`
	Loader                 LoaderKind           `json:"loader"`
	PreferredLoaderVersion string               `json:"preferred_loader_version,omitempty"`
	Memory                 *MemoryConfiguration `json:"memory,omitempty"`
	JVMFlags               []string             `json:"jvm_flags,omitempty"`
	JVMBinary              string               `json:"jvm_binary,omitempty"`
}

// contentFolderState tracks one content folder's loader state.
type contentFolderState struct {
	path        string
	watchingDir bool

	state loadState

	dirtyPaths map[string]bool
	allDirty   bool

	generation  uint64
	pendingLoad *loadSignal
	summaries   []ContentSummary
}

func newContentFolderState(path string) *contentFolderState {
	return &contentFolderState{
		path:       path,
		allDirty:   true,
		dirtyPaths: make(map[string]bool),
	}
}

// Instance represents one installed game root, mirroring
// original_source/crates/backend/src/instance.rs's Instance.
type Instance struct {
	// mu guards every field below except Configuration, which has its own
	// internal lock (it is a document.Persistent).
	mu sync.Mutex

	// ID is a stable, collision-resistant identifier assigned once at
	// construction. Unlike the handle a Table assigns on Insert, it survives
	// process restarts, so a frontend can persist "last opened instance"
	// across sessions.
	ID string

	RootPath      string
	GameRootPath  string // the ".minecraft" subfolder
	ServerDatPath string
	SavesPath     string
	Name          string

	Configuration *document.Persistent[Configuration]

	watchingGameRoot  bool
	watchingServerDat bool
	watchingSavesDir  bool

	worldsState        loadState
	dirtyWorlds        map[string]bool
	allWorldsDirty     bool
	pendingWorldsLoad  *loadSignal
	worlds             []WorldSummary

	serversState       loadState
	dirtyServers       bool
	pendingServersLoad *loadSignal
	servers            []ServerSummary

	contentGeneration uint64
	content           map[ContentFolder]*contentFolderState
}

// New constructs an Instance rooted at path, attaching its configuration
// document with defaultConfiguration as the in-memory default; the document
// is not read from disk until first accessed. It does not validate that
// path is a directory;
// LoadFromFolder does that for the filesystem-discovery path. It does
// validate that path's final component is a safe instance name (§6 "Name
// validation rules"), rejecting anything that would escape the instances
// directory as a path (ErrNameIsPath) or that Windows's filename rules
// forbid (ErrNameInvalid); checking for a name already in use by a sibling
// instance is the caller's responsibility, via Table.NameInUse, since only
// the caller holds the full set of existing instances.
func New(path string, defaultConfiguration Configuration, configLogger *logging.Logger) (*Instance, error) {
	name := filepath.Base(path)
	if !safepath.IsSingleComponentPath(name) {
		return nil, ErrNameIsPath
	}
	if !safepath.IsSanitizedWindows(name) {
		return nil, ErrNameInvalid
	}

	id, err := identifier.New(identifier.PrefixInstance)
	if err != nil {
		return nil, fmt.Errorf("unable to generate instance identifier: %w", err)
	}

	gameRootPath := filepath.Join(path, ".minecraft")

	inst := &Instance{
		ID:            id,
		RootPath:      path,
		GameRootPath:  gameRootPath,
		ServerDatPath: filepath.Join(gameRootPath, "servers.dat"),
		SavesPath:     filepath.Join(gameRootPath, "saves"),
		Name:          name,

		dirtyWorlds:    make(map[string]bool),
		allWorldsDirty: true,
		dirtyServers:   true,

		content: make(map[ContentFolder]*contentFolderState),
	}
	inst.Configuration = document.New(filepath.Join(path, "info_v1.json"), defaultConfiguration, configLogger)

	for _, folder := range contentFolders {
		inst.content[folder] = newContentFolderState(filepath.Join(gameRootPath, folder.RelativePath()))
	}

	return inst, nil
}

// ErrNotADirectory indicates LoadFromFolder was given a path that is not a
// directory.
var ErrNotADirectory = fmt.Errorf("instance: not a directory")

// LoadFromFolder constructs an Instance from an existing directory,
// eagerly reading (and validating) its configuration document so that a
// malformed info_v1.json is reported to the caller immediately, rather than
// surfacing lazily on first access. Grounded on Instance::load_from_folder.
func LoadFromFolder(path string, logger *logging.Logger) (*Instance, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("unable to stat instance directory: %w", err)
	}
	if !info.IsDir() {
		return nil, ErrNotADirectory
	}

	configPath := filepath.Join(path, "info_v1.json")
	if _, err := os.Stat(configPath); err != nil {
		return nil, fmt.Errorf("unable to find instance configuration: %w", err)
	}

	inst, err := New(path, Configuration{}, logger)
	if err != nil {
		return nil, err
	}
	if _, err := inst.Configuration.Get(); err != nil {
		return nil, fmt.Errorf("unable to load instance configuration: %w", err)
	}
	return inst, nil
}

// OnRootRenamed recomputes the instance's root path and every path derived
// from it, without changing the instance's identity (its slab Handle).
// Grounded on Instance::on_root_renamed.
func (inst *Instance) OnRootRenamed(path string, configLogger *logging.Logger) {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	inst.Name = filepath.Base(path)
	inst.RootPath = path

	current, _ := inst.Configuration.Get()
	inst.Configuration = document.New(filepath.Join(path, "info_v1.json"), current, configLogger)

	gameRootPath := filepath.Join(path, ".minecraft")
	inst.GameRootPath = gameRootPath
	inst.ServerDatPath = filepath.Join(gameRootPath, "servers.dat")
	inst.SavesPath = filepath.Join(gameRootPath, "saves")

	for _, folder := range contentFolders {
		inst.content[folder].path = filepath.Join(gameRootPath, folder.RelativePath())
	}
}

// SetWatching records which of the instance's subpaths the caller has
// subscribed to the filesystem watcher. Loaders panic in debug builds of the
// original on a missing subscription; this port simply trusts the caller,
// since the watcher wiring (internal/watch) is responsible for establishing
// these subscriptions before any load is attempted.
func (inst *Instance) SetWatching(gameRoot, serverDat, savesDir bool) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	inst.watchingGameRoot = gameRoot
	inst.watchingServerDat = serverDat
	inst.watchingSavesDir = savesDir
}

// Table is a handle-addressed collection of instances, guarded by a
// multi-reader/single-writer lock.
type Table struct {
	mu    sync.RWMutex
	arena *slab.Slab[*Instance]
}

// NewTable creates an empty instance table.
func NewTable() *Table {
	return &Table{arena: slab.New[*Instance]()}
}

// Insert adds inst to the table and returns its handle.
func (t *Table) Insert(inst *Instance) slab.Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.arena.Insert(inst)
}

// Get retrieves the instance for handle, if it is still live.
func (t *Table) Get(handle slab.Handle) (*Instance, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.arena.Get(handle)
}

// Remove deletes the instance for handle, if it is still live.
func (t *Table) Remove(handle slab.Handle) (*Instance, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	inst, ok := t.arena.Get(handle)
	if ok {
		t.arena.Remove(handle)
	}
	return inst, ok
}

// Range calls fn for every live instance, in slot order; a slot freed by
// Remove is reused by a later Insert, so this is not insertion order.
func (t *Table) Range(fn func(slab.Handle, *Instance)) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	t.arena.Range(fn)
}

// NameInUse reports whether name already belongs to a tracked instance,
// completing the §8 name-sanitization property's name_not_in_use check
// (IsValidInstanceName only checks the name in isolation; uniqueness
// requires the table).
func (t *Table) NameInUse(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	inUse := false
	t.arena.Range(func(_ slab.Handle, inst *Instance) {
		inst.mu.Lock()
		if inst.Name == name {
			inUse = true
		}
		inst.mu.Unlock()
	})
	return inUse
}
