package instance

import (
	"context"
	"encoding/base64"
	"os"

	"github.com/Tnze/go-mc/nbt"

	"github.com/mutagen-io/mutagen/internal/slab"
	"github.com/mutagen-io/mutagen/pkg/logging"
)

// ServerSummary is the metadata surfaced for one entry in an instance's
// servers.dat, grounded on InstanceServerSummary. Servers.dat entries with
// Hidden set, or with no IP, carry no useful information for the launcher
// and are dropped during load rather than surfaced as unusable entries.
type ServerSummary struct {
	Name string
	IP   string
	Icon []byte
}

// serversDatRoot mirrors the subset of servers.dat's root compound consulted
// here.
type serversDatRoot struct {
	Servers []serverDatEntry `nbt:"servers"`
}

type serverDatEntry struct {
	Name   string `nbt:"name"`
	IP     string `nbt:"ip"`
	Icon   string `nbt:"icon"` // base64-encoded PNG
	Hidden byte   `nbt:"hidden"`
}

// LoadServers ensures an instance's server list reflects its servers.dat,
// following the same entry-gate/plan/commit skeleton as LoadWorlds. Unlike
// worlds and content folders, servers.dat is a single file rather than a
// directory of entries, so every load (dirty or not) simply re-reads the
// whole file; there is no per-entry dirty set to narrow the work.
func LoadServers(ctx context.Context, table *Table, handle slab.Handle, logger *logging.Logger) ([]ServerSummary, bool, error) {
	for {
		inst, ok := table.Get(handle)
		if !ok {
			return nil, false, ErrInstanceNotFound
		}

		inst.mu.Lock()
		switch inst.serversState.load() {
		case StateLoaded:
			summaries := inst.servers
			inst.mu.Unlock()
			return summaries, false, nil
		case StateLoading, StateLoadingDirty:
			pending := inst.pendingServersLoad
			inst.mu.Unlock()
			pending.await(ctx)
			if err := ctx.Err(); err != nil {
				return nil, false, err
			}
			continue
		}

		inst.dirtyServers = false
		serverDatPath := inst.ServerDatPath

		signal := newLoadSignal()
		inst.pendingServersLoad = signal
		inst.serversState.store(StateLoading)
		inst.mu.Unlock()

		summaries := loadServersAll(serverDatPath, logger)

		committed, ok := table.Get(handle)
		if !ok {
			signal.fire()
			return nil, false, ErrInstanceNotFound
		}
		committed.mu.Lock()
		committed.servers = summaries
		committed.serversState.cas(func(s State) State {
			if s == StateLoadingDirty {
				return StateLoadedDirty
			}
			return StateLoaded
		})
		committed.pendingServersLoad = nil
		committed.mu.Unlock()
		signal.fire()

		return summaries, true, nil
	}
}

// loadServersAll reads servers.dat and decodes it with decodeServers.
func loadServersAll(serverDatPath string, logger *logging.Logger) []ServerSummary {
	raw, err := os.ReadFile(serverDatPath)
	if err != nil {
		return nil
	}
	return decodeServers(raw, logger)
}

// decodeServers decodes servers.dat contents (uncompressed NBT), skipping
// hidden entries and entries with no IP. Malformed data yields nil.
func decodeServers(raw []byte, logger *logging.Logger) []ServerSummary {
	var root serversDatRoot
	if err := nbt.Unmarshal(raw, &root); err != nil {
		logger.Debugf("unable to parse servers.dat: %v", err)
		return nil
	}

	summaries := make([]ServerSummary, 0, len(root.Servers))
	for _, entry := range root.Servers {
		if entry.Hidden != 0 {
			continue
		}
		if entry.IP == "" {
			continue
		}
		name := entry.Name
		if name == "" {
			name = "<unnamed>"
		}
		var icon []byte
		if entry.Icon != "" {
			if decoded, err := base64.StdEncoding.DecodeString(entry.Icon); err == nil {
				icon = decoded
			}
		}
		summaries = append(summaries, ServerSummary{Name: name, IP: entry.IP, Icon: icon})
	}
	return summaries
}
