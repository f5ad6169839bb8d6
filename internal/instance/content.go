package instance

import (
	"context"
	"crypto/sha1" //nolint:gosec // content-addressing digest, not a security boundary.
	"hash/fnv"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mutagen-io/mutagen/internal/archive"
	"github.com/mutagen-io/mutagen/internal/childstate"
	"github.com/mutagen-io/mutagen/internal/slab"
	"github.com/mutagen-io/mutagen/internal/sourceindex"
	"github.com/mutagen-io/mutagen/pkg/logging"
)

// disabledSuffix marks a content file as user-disabled, toggled by renaming
// "foo.jar" to "foo.jar.disabled" (or back), mirroring the convention most
// Minecraft launchers already use.
const disabledSuffix = ".disabled"

// ContentID identifies one entry in a content folder's listing. Index is
// stable only within a single Generation: a full reload reassigns indices
// from zero, so callers must treat (Index, Generation) as the identity, not
// Index alone.
type ContentID struct {
	Index      int
	Generation uint64
}

// ContentSummary is one file's listing entry within a content folder
// (mods or resourcepacks), grounded on InstanceModSummary.
type ContentSummary struct {
	Archive *archive.Summary // nil if the file could not be recognized

	ID           ContentID
	Filename     string
	FilenameHash uint64
	Path         string
	Enabled      bool

	Source sourceindex.Source

	DisabledChildren []string
}

// LoadContent ensures a content folder's listing reflects its directory,
// following the same entry-gate/plan/commit skeleton as LoadWorlds and
// LoadServers. A commit bumps the instance's shared content generation
// counter and stamps it onto every summary's ContentID, so a caller holding
// a stale ContentID from a previous generation can detect it as such.
func LoadContent(ctx context.Context, table *Table, handle slab.Handle, folder ContentFolder, cache *archive.Cache, idx *sourceindex.Index, logger *logging.Logger) ([]ContentSummary, bool, error) {
	for {
		inst, ok := table.Get(handle)
		if !ok {
			return nil, false, ErrInstanceNotFound
		}

		inst.mu.Lock()
		cf := inst.content[folder]
		switch cf.state.load() {
		case StateLoaded:
			summaries := cf.summaries
			inst.mu.Unlock()
			return summaries, false, nil
		case StateLoading, StateLoadingDirty:
			pending := cf.pendingLoad
			inst.mu.Unlock()
			pending.await(ctx)
			if err := ctx.Err(); err != nil {
				return nil, false, err
			}
			continue
		}

		allDirty := cf.state.load() == StateUnloaded || cf.allDirty
		dirty := cf.dirtyPaths
		cf.dirtyPaths = make(map[string]bool)
		cf.allDirty = false
		last := cf.summaries
		folderPath := cf.path

		signal := newLoadSignal()
		cf.pendingLoad = signal
		cf.state.store(StateLoading)
		inst.mu.Unlock()

		var summaries []ContentSummary
		if allDirty {
			summaries = loadContentAll(folderPath, cache, idx, logger)
		} else {
			summaries = loadContentDirty(folderPath, dirty, last, cache, idx, logger)
		}
		sortContent(summaries)

		committed, ok := table.Get(handle)
		if !ok {
			signal.fire()
			return nil, false, ErrInstanceNotFound
		}
		committed.mu.Lock()
		committed.contentGeneration++
		generation := committed.contentGeneration
		for i := range summaries {
			summaries[i].ID = ContentID{Index: i, Generation: generation}
		}
		ccf := committed.content[folder]
		ccf.summaries = summaries
		ccf.generation = generation
		ccf.state.cas(func(s State) State {
			if s == StateLoadingDirty {
				return StateLoadedDirty
			}
			return StateLoaded
		})
		ccf.pendingLoad = nil
		committed.mu.Unlock()
		signal.fire()

		return summaries, true, nil
	}
}

// loadContentAll walks every file directly inside folderPath and summarizes
// it, skipping sidecar files and anything that fails to read.
func loadContentAll(folderPath string, cache *archive.Cache, idx *sourceindex.Index, logger *logging.Logger) []ContentSummary {
	entries, err := os.ReadDir(folderPath)
	if err != nil {
		return nil
	}

	var summaries []ContentSummary
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		filename := entry.Name()
		if !acceptedFilename(filename) {
			continue
		}
		path := filepath.Join(folderPath, filename)
		summary, err := createContentSummary(path, cache, idx)
		if err != nil {
			logger.Debugf("skipping unreadable content file %s: %v", filename, err)
			continue
		}
		summaries = append(summaries, *summary)
	}
	return summaries
}

// loadContentDirty re-reads only the files named in dirty, folding the
// result into last by filename. A dirty name whose file no longer exists is
// dropped from the result, unless its disabled-toggled counterpart exists:
// a user disabling or enabling a mod renames it, which briefly leaves the
// old name missing before the watcher delivers the corresponding create
// event for the new name; without this check the item would flicker out of
// the listing for one load cycle.
func loadContentDirty(folderPath string, dirty map[string]bool, last []ContentSummary, cache *archive.Cache, idx *sourceindex.Index, logger *logging.Logger) []ContentSummary {
	byName := make(map[string]ContentSummary, len(last))
	for _, s := range last {
		byName[s.Filename] = s
	}

	for filename := range dirty {
		childstatePath := childstate.FoldDirtyPath(filename)
		if childstatePath != filename {
			filename = childstatePath
		}
		if _, ok := acceptedFilename(filename); !ok {
			delete(byName, filename)
			continue
		}

		path := filepath.Join(folderPath, filename)
		summary, err := createContentSummary(path, cache, idx)
		if err == nil {
			byName[filename] = *summary
			continue
		}
		if !os.IsNotExist(err) {
			logger.Debugf("skipping unreadable content file %s: %v", filename, err)
			continue
		}

		alt := alternateDisabledPath(filename)
		altPath := filepath.Join(folderPath, alt)
		if altSummary, altErr := createContentSummary(altPath, cache, idx); altErr == nil {
			byName[alt] = *altSummary
			delete(byName, filename)
			continue
		}

		delete(byName, filename)
	}

	summaries := make([]ContentSummary, 0, len(byName))
	for _, s := range byName {
		summaries = append(summaries, s)
	}
	return summaries
}

// acceptedFilename reports whether filename is a content file the loader
// should surface, and if so whether it is enabled. Sidecar files (disabled
// children state) and anything starting with "." are never listed directly.
func acceptedFilename(filename string) (enabled, ok bool) {
	if filename == "" || strings.HasPrefix(filename, ".") {
		return false, false
	}
	if childstate.IsSidecarPath(filename) {
		return false, false
	}
	if strings.HasSuffix(filename, disabledSuffix) {
		return false, true
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != ".jar" && ext != ".zip" && ext != ".mrpack" {
		return false, false
	}
	return true, true
}

// alternateDisabledPath toggles filename's disabled-suffix state: stripping
// it if present, appending it otherwise.
func alternateDisabledPath(filename string) string {
	if strings.HasSuffix(filename, disabledSuffix) {
		return strings.TrimSuffix(filename, disabledSuffix)
	}
	return filename + disabledSuffix
}

// createContentSummary builds a ContentSummary for a single content file:
// hashing its bytes, extracting (or retrieving cached) archive metadata,
// reading its disabled-children sidecar, and looking up its known source.
func createContentSummary(path string, cache *archive.Cache, idx *sourceindex.Index) (*ContentSummary, error) {
	filename := filepath.Base(path)
	enabled, ok := acceptedFilename(filename)
	if !ok {
		return nil, os.ErrNotExist
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	hash := sha1.Sum(data) //nolint:gosec

	var summary *archive.Summary
	if s, cacheErr := cache.GetOrExtract(hash, data, true); cacheErr == nil {
		summary = s
	}

	childstateState, err := childstate.Load(path)
	if err != nil {
		childstateState = &childstate.State{}
	}

	source, _ := idx.Get(hash)

	return &ContentSummary{
		Archive:          summary,
		Filename:         filename,
		FilenameHash:     fnvHash(filename),
		Path:             path,
		Enabled:          enabled,
		Source:           source,
		DisabledChildren: childstateState.DisabledChildren,
	}, nil
}

func fnvHash(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

// sortContent groups entries sharing the same recognized mod ID together,
// then orders within (and across unrecognized) groups by filename,
// descending. The Modrinth/Rust original orders the secondary key with a
// natural-lexical comparison (so "mod-2.jar" sorts after "mod-10.jar"); no
// natural-sort library is available here, so plain lexical comparison is
// used instead, which only disagrees on filenames whose numeric suffixes
// differ in digit count.
func sortContent(summaries []ContentSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		idI, idJ := contentGroupID(summaries[i]), contentGroupID(summaries[j])
		if idI != idJ {
			return idI < idJ
		}
		return summaries[i].Filename > summaries[j].Filename
	})
}

func contentGroupID(s ContentSummary) string {
	if s.Archive != nil {
		return s.Archive.ID
	}
	return ""
}
