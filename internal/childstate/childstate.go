// Package childstate implements the per-file disabled-children sidecar: a
// small on-disk file, stored alongside a content file (a mod or resource
// pack), that records which of that file's embedded children (e.g. jars
// bundled inside a JarInJar mod, or a modpack's inner downloads) have been
// disabled by the user.
//
// The on-disk naming convention, the plain newline-delimited body, and the
// "fold a sidecar path back onto its owning content path" logic are grounded
// directly on original_source/crates/backend/src/instance.rs:
// read_disabled_children_for (one relative path per line, briefly
// flock'd while reading) and ContentFolderState::mark_dirty (a sidecar for
// "foo.jar" is named ".foo.jar.pandorachildstate", hidden so it doesn't show
// up as a normal content file in folder listings; any watcher event observed
// against that sidecar path must be remapped onto "foo.jar" before being
// treated as a change to the content item itself).
package childstate

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mutagen-io/mutagen/pkg/filesystem"
	"github.com/mutagen-io/mutagen/pkg/filesystem/locking"
	"github.com/mutagen-io/mutagen/pkg/logging"
)

// sidecarSuffix is the suffix applied to a content file's name (after a
// leading dot is added) to produce its sidecar path.
const sidecarSuffix = ".pandorachildstate"

// State is the sidecar document for a single content file: the set of
// relative (within the content file's archive) paths that the user has
// disabled.
type State struct {
	DisabledChildren []string
}

// SidecarPath computes the sidecar path for a content file.
func SidecarPath(contentPath string) string {
	dir := filepath.Dir(contentPath)
	base := filepath.Base(contentPath)
	return filepath.Join(dir, "."+base+sidecarSuffix)
}

// IsSidecarPath reports whether path looks like a sidecar path (i.e. whether
// FoldDirtyPath would remap it).
func IsSidecarPath(path string) bool {
	return strings.HasSuffix(path, sidecarSuffix)
}

// FoldDirtyPath remaps a changed path onto the content file it logically
// belongs to. If path is not a sidecar path, it is returned unchanged.
//
// Folding strips the ".pandorachildstate" suffix, then strips a single
// leading "." from the resulting file name if present, mirroring the
// hide-the-sidecar naming convention above.
func FoldDirtyPath(path string) string {
	if !IsSidecarPath(path) {
		return path
	}

	stripped := strings.TrimSuffix(path, sidecarSuffix)
	dir := filepath.Dir(stripped)
	base := filepath.Base(stripped)
	if strings.HasPrefix(base, ".") {
		base = base[1:]
	}
	return filepath.Join(dir, base)
}

// Load reads the sidecar document for a content file: one disabled relative
// path per line. If no sidecar file exists, a zero-value State is returned
// with no error (a content file with no disabled children has no sidecar on
// disk). The file is briefly held under an exclusive lock while it is read,
// matching the original's "lock the file briefly while reading." Save does
// not take this lock; it replaces the file atomically instead.
func Load(contentPath string) (*State, error) {
	path := SidecarPath(contentPath)

	// Reading must never create the sidecar as a side effect (most content
	// files have no disabled children and thus no sidecar at all), so check
	// existence before opening a Locker, which creates its target.
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return &State{}, nil
		}
		return nil, fmt.Errorf("unable to stat sidecar: %w", err)
	}

	locker, err := locking.NewLocker(path, 0600)
	if err != nil {
		return nil, fmt.Errorf("unable to open sidecar: %w", err)
	}
	defer locker.Unlock()

	if err := locker.Lock(true); err != nil {
		return nil, fmt.Errorf("unable to lock sidecar: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{}, nil
		}
		return nil, fmt.Errorf("unable to read sidecar: %w", err)
	}

	state := &State{}
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			state.DisabledChildren = append(state.DisabledChildren, line)
		}
	}
	return state, nil
}

// Save writes the sidecar document for a content file atomically, one
// disabled relative path per line. If state has no disabled children, the
// sidecar file is removed rather than written empty.
func Save(contentPath string, state *State, logger *logging.Logger) error {
	path := SidecarPath(contentPath)

	if len(state.DisabledChildren) == 0 {
		err := os.Remove(path)
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("unable to remove empty sidecar: %w", err)
		}
		return nil
	}

	var body strings.Builder
	for _, child := range state.DisabledChildren {
		body.WriteString(child)
		body.WriteByte('\n')
	}

	return filesystem.WriteFileAtomic(path, []byte(body.String()), 0600, logger)
}
