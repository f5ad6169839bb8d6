package watch

import (
	"path/filepath"
	"sync"
)

// Table records which Targets a subscribed path (and its symlink aliases)
// resolves to, and lets a raw OS-reported path be expanded to every
// "logical path" that might be observed for the same underlying file or
// directory.
//
// A path may be reached via several logical paths: the original path, each
// symlink alias registered for it, and each symlink-alias-of-parent sharing
// the same filename.
type Table struct {
	mu sync.RWMutex

	// targets maps a canonical path to every Target subscribed under it. A
	// path may be subscribed multiple times under different targets (e.g.
	// a directory is both an InstanceGameRoot and the parent of a watched
	// sub-path), so all entries are kept and all are consulted.
	targets map[string][]Target

	// aliases maps a path to every other path known to denote the same
	// logical location, recorded symmetrically whenever Subscribe
	// discovers that a path's canonical form differs from the path itself.
	aliases map[string][]string
}

// NewTable creates an empty watch table.
func NewTable() *Table {
	return &Table{
		targets: make(map[string][]Target),
		aliases: make(map[string][]string),
	}
}

// Subscribe records that path resolves to target. canonical is the
// caller-resolved canonical form of path (e.g. via filepath.EvalSymlinks);
// pass path itself if it could not be resolved (doesn't exist yet, or isn't
// a symlink). If canonical differs from path, both directions are recorded
// as aliases of one another so that an event on either translates to the
// same logical location.
func (t *Table) Subscribe(path, canonical string, target Target) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.targets[canonical] = append(t.targets[canonical], target)

	if canonical != path {
		t.addAliasLocked(path, canonical)
		t.addAliasLocked(canonical, path)
	}
}

func (t *Table) addAliasLocked(from, to string) {
	for _, existing := range t.aliases[from] {
		if existing == to {
			return
		}
	}
	t.aliases[from] = append(t.aliases[from], to)
}

// Unsubscribe removes every Target recorded for path (which should be a
// canonical path previously passed to Subscribe).
func (t *Table) Unsubscribe(canonical string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.targets, canonical)
}

// ExpandLogical returns every logical path a raw event path might denote:
// the path itself, its direct aliases, and — for a parent directory that
// has aliases — the same filename joined onto each of the parent's
// aliases (a "symlink-alias-of-parent" translation).
func (t *Table) ExpandLogical(path string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	seen := map[string]bool{path: true}
	logical := []string{path}

	for _, alias := range t.aliases[path] {
		if !seen[alias] {
			seen[alias] = true
			logical = append(logical, alias)
		}
	}

	parent := filepath.Dir(path)
	name := filepath.Base(path)
	for _, parentAlias := range t.aliases[parent] {
		candidate := filepath.Join(parentAlias, name)
		if !seen[candidate] {
			seen[candidate] = true
			logical = append(logical, candidate)
		}
	}

	return logical
}

// TargetsFor returns every Target subscribed directly under path, plus
// every Target subscribed under path's parent (so that a per-file event
// under a directory-level subscription, like ContentDir or
// InstanceGameRoot, is still routed).
func (t *Table) TargetsFor(path string) []Target {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var result []Target
	result = append(result, t.targets[path]...)
	result = append(result, t.targets[filepath.Dir(path)]...)
	return result
}
