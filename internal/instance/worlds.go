package instance

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Tnze/go-mc/nbt"

	"github.com/mutagen-io/mutagen/internal/slab"
	"github.com/mutagen-io/mutagen/pkg/logging"
)

// maxWorlds caps how many world summaries a full world load collects; once
// the cap is reached, the remaining saves directory entries are not
// examined. Non-directory entries and unreadable worlds do not count toward
// the cap.
const maxWorlds = 64

// WorldSummary is the metadata surfaced for one world under an instance's
// saves directory, grounded on InstanceWorldSummary.
type WorldSummary struct {
	Title      string
	Subtitle   string
	LevelPath  string // the world's folder name, relative to the saves directory
	LastPlayed int64  // milliseconds since epoch, as stored in level.dat
	Icon       []byte // icon.png bytes, nil if absent
}

// levelDatRoot mirrors the subset of level.dat's root "Data" compound
// consulted here.
type levelDatRoot struct {
	Data struct {
		LevelName  string `nbt:"LevelName"`
		LastPlayed int64  `nbt:"LastPlayed"`
	} `nbt:"Data"`
}

// LoadWorlds ensures an instance's world list reflects its saves directory,
// following the entry-gate/plan/commit skeleton every loader shares:
// callers already in flight await the in-flight load's completion instead
// of starting a redundant one, a full load walks every world folder while a
// dirty load re-reads only the marked-dirty ones, and the commit step
// publishes the result and advances the loader's state under lock.
//
// Grounded on Instance's world loader in original_source/crates/backend/src/instance.rs.
func LoadWorlds(ctx context.Context, table *Table, handle slab.Handle, logger *logging.Logger) ([]WorldSummary, bool, error) {
	for {
		inst, ok := table.Get(handle)
		if !ok {
			return nil, false, ErrInstanceNotFound
		}

		inst.mu.Lock()
		switch inst.worldsState.load() {
		case StateLoaded:
			summaries := inst.worlds
			inst.mu.Unlock()
			return summaries, false, nil
		case StateLoading, StateLoadingDirty:
			pending := inst.pendingWorldsLoad
			inst.mu.Unlock()
			pending.await(ctx)
			if err := ctx.Err(); err != nil {
				return nil, false, err
			}
			continue
		}

		// Unloaded or LoadedDirty: plan a load.
		allDirty := inst.worldsState.load() == StateUnloaded || inst.allWorldsDirty
		dirty := inst.dirtyWorlds
		inst.dirtyWorlds = make(map[string]bool)
		inst.allWorldsDirty = false
		last := inst.worlds
		savesPath := inst.SavesPath

		signal := newLoadSignal()
		inst.pendingWorldsLoad = signal
		inst.worldsState.store(StateLoading)
		inst.mu.Unlock()

		var summaries []WorldSummary
		if allDirty {
			summaries = loadWorldsAll(savesPath, logger)
		} else {
			summaries = loadWorldsDirty(savesPath, dirty, last, logger)
		}
		sortWorldsDescending(summaries)

		committed, ok := table.Get(handle)
		if !ok {
			signal.fire()
			return nil, false, ErrInstanceNotFound
		}
		committed.mu.Lock()
		committed.worlds = summaries
		committed.worldsState.cas(func(s State) State {
			if s == StateLoadingDirty {
				return StateLoadedDirty
			}
			return StateLoaded
		})
		committed.pendingWorldsLoad = nil
		committed.mu.Unlock()
		signal.fire()

		return summaries, true, nil
	}
}

// loadWorldsAll walks every immediate subdirectory of savesPath and loads
// each one's summary, skipping (and logging) any that fail to parse.
func loadWorldsAll(savesPath string, logger *logging.Logger) []WorldSummary {
	entries, err := os.ReadDir(savesPath)
	if err != nil {
		return nil
	}

	var summaries []WorldSummary
	for _, entry := range entries {
		if len(summaries) >= maxWorlds {
			logger.Warnf("saves directory has more than %d worlds, truncating", maxWorlds)
			break
		}
		if !entry.IsDir() {
			continue
		}
		summary, err := loadWorldSummary(filepath.Join(savesPath, entry.Name()))
		if err != nil {
			logger.Debug("skipping unreadable world", entry.Name(), ":", err)
			continue
		}
		summaries = append(summaries, *summary)
	}
	return summaries
}

// loadWorldsDirty re-reads only the world folders named in dirty, folding
// the result into last (the previous full list) by name, and dropping
// entries whose folder has since been removed.
func loadWorldsDirty(savesPath string, dirty map[string]bool, last []WorldSummary, logger *logging.Logger) []WorldSummary {
	byName := make(map[string]WorldSummary, len(last))
	for _, s := range last {
		byName[s.LevelPath] = s
	}

	for name := range dirty {
		summary, err := loadWorldSummary(filepath.Join(savesPath, name))
		if err != nil {
			if os.IsNotExist(err) {
				delete(byName, name)
			} else {
				logger.Debug("skipping unreadable world", name, ":", err)
			}
			continue
		}
		byName[name] = *summary
	}

	summaries := make([]WorldSummary, 0, len(byName))
	for _, s := range byName {
		summaries = append(summaries, s)
	}
	return summaries
}

// sortWorldsDescending orders worlds by most-recently-played first.
func sortWorldsDescending(summaries []WorldSummary) {
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastPlayed > summaries[j].LastPlayed
	})
}

// loadWorldSummary reads a single world folder's level.dat (gzip-compressed
// NBT) and optional icon.png.
func loadWorldSummary(path string) (*WorldSummary, error) {
	raw, err := os.ReadFile(filepath.Join(path, "level.dat"))
	if err != nil {
		return nil, err
	}

	gzr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer gzr.Close()

	var root levelDatRoot
	if _, err := nbt.NewDecoder(gzr).Decode(&root); err != nil {
		return nil, err
	}

	var icon []byte
	if data, err := os.ReadFile(filepath.Join(path, "icon.png")); err == nil {
		icon = data
	}

	folder := filepath.Base(path)

	title := root.Data.LevelName
	if title == "" {
		title = folder
	}

	return &WorldSummary{
		Title:      title,
		Subtitle:   worldSubtitle(folder, root.Data.LastPlayed),
		LevelPath:  folder,
		LastPlayed: root.Data.LastPlayed,
		Icon:       icon,
	}, nil
}

// worldSubtitle formats a world's secondary label: the folder name alone,
// or the folder name with its last-played timestamp appended in local time
// when lastPlayedMillis is a meaningful (positive) value. Grounded on
// load_world_summary's subtitle computation.
func worldSubtitle(folder string, lastPlayedMillis int64) string {
	if lastPlayedMillis <= 0 {
		return folder
	}
	t := time.UnixMilli(lastPlayedMillis).Local()
	return fmt.Sprintf("%s (%s)", folder, t.Format("02/01/2006 15:04"))
}
