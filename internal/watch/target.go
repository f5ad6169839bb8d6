// Package watch implements the filesystem watcher and its event classifier:
// a debounced, symlink-aware path-to-purpose table that turns raw OS
// notifications into dirty marks on the instance table.
//
// Grounded on the *shape* of pkg/filesystem's path-to-purpose mapping
// (present before its removal in favor of mutagen's two-way sync
// consistency model) combined with pkg/state.Coalescer for debounce and
// github.com/fsnotify/fsnotify for the underlying OS notifications.
package watch

import (
	"github.com/mutagen-io/mutagen/internal/instance"
	"github.com/mutagen-io/mutagen/internal/slab"
)

// TargetKind identifies what role a watched path plays for dispatch
// purposes, grounded on the dispatch table the classifier consults.
type TargetKind int

const (
	TargetRoot TargetKind = iota
	TargetInstancesDir
	TargetInstanceRoot
	TargetInstanceGameRoot
	TargetInstanceWorldsDir
	TargetSingleWorldDir
	TargetServersFile
	TargetContentDir
)

// String renders the kind for logging.
func (k TargetKind) String() string {
	switch k {
	case TargetRoot:
		return "root"
	case TargetInstancesDir:
		return "instances-dir"
	case TargetInstanceRoot:
		return "instance-root"
	case TargetInstanceGameRoot:
		return "instance-game-root"
	case TargetInstanceWorldsDir:
		return "instance-worlds-dir"
	case TargetSingleWorldDir:
		return "single-world-dir"
	case TargetServersFile:
		return "servers-file"
	case TargetContentDir:
		return "content-dir"
	default:
		return "unknown"
	}
}

// Target is what a subscribed path resolves to for dispatch purposes. Only
// the fields relevant to Kind are meaningful; the rest are left zero.
type Target struct {
	Kind TargetKind

	// Handle identifies the owning instance, for every kind except Root and
	// InstancesDir.
	Handle slab.Handle

	// Folder is meaningful only for TargetContentDir.
	Folder instance.ContentFolder

	// WorldName is meaningful only for TargetSingleWorldDir: the world's
	// folder name relative to the instance's saves directory.
	WorldName string
}
