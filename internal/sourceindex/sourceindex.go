// Package sourceindex implements the hash→provenance index: a durable record
// of where each piece of content in the library came from (manually added by
// the user, a known Modrinth project, or a Modrinth download whose owning
// project could not be determined at install time).
//
// The sharded binary layout and precedence rules are grounded directly on
// original_source/crates/backend/src/mod_metadata.rs's ContentSources: 256
// shards keyed by a digest's first byte, each holding entries sorted by the
// remaining 19 bytes of the digest, found by binary search.
package sourceindex

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/mutagen-io/mutagen/pkg/encoding"
	"github.com/mutagen-io/mutagen/pkg/logging"
)

// Kind identifies the provenance of a content source.
type Kind uint8

const (
	// KindManual indicates the user explicitly associated this hash with
	// its source (or that no further automatic association should occur).
	KindManual Kind = 0
	// KindModrinthUnknown indicates the content was downloaded from
	// Modrinth but the owning project could not be determined.
	KindModrinthUnknown Kind = 1
	// KindModrinthProject indicates the content is known to belong to a
	// specific Modrinth project.
	KindModrinthProject Kind = 2
)

// Source records where a piece of content came from.
type Source struct {
	Kind      Kind
	ProjectID string
}

// entry is a single shard record: a 19-byte digest suffix plus its source.
type entry struct {
	key    [19]byte
	source Source
}

// Index is the full 256-shard hash→provenance map.
type Index struct {
	shards [256][]entry
}

// New creates an empty Index.
func New() *Index {
	return &Index{}
}

// splitHash splits a 20-byte digest into its shard selector (first byte) and
// its 19-byte suffix key.
func splitHash(hash [20]byte) (byte, [19]byte) {
	var suffix [19]byte
	copy(suffix[:], hash[1:])
	return hash[0], suffix
}

// find performs a binary search for key within shard, returning the index at
// which it was found (or the index at which it should be inserted) and
// whether it was found.
func find(shard []entry, key [19]byte) (int, bool) {
	i := sort.Search(len(shard), func(i int) bool {
		return bytes.Compare(shard[i].key[:], key[:]) >= 0
	})
	if i < len(shard) && shard[i].key == key {
		return i, true
	}
	return i, false
}

// Get looks up the source recorded for hash.
func (idx *Index) Get(hash [20]byte) (Source, bool) {
	shardIndex, key := splitHash(hash)
	shard := idx.shards[shardIndex]
	i, ok := find(shard, key)
	if !ok {
		return Source{}, false
	}
	return shard[i].source, true
}

// Set records source for hash, applying precedence rules so that more
// authoritative sources are never silently downgraded. Precedence, highest
// to lowest, is ModrinthProject > ModrinthUnknown > Manual:
//
//   - An existing Manual source is overwritten by anything except another
//     Manual (which would be a no-op).
//   - An existing ModrinthUnknown source is overwritten only by a
//     ModrinthProject.
//   - An existing ModrinthProject source is overwritten only by a different
//     ModrinthProject; a ModrinthUnknown or Manual would discard known
//     provenance, and the same project would be a no-op.
//
// It returns true if the index was actually modified.
func (idx *Index) Set(hash [20]byte, source Source) bool {
	shardIndex, key := splitHash(hash)
	shard := idx.shards[shardIndex]
	i, ok := find(shard, key)

	if !ok {
		newEntry := entry{key: key, source: source}
		idx.shards[shardIndex] = append(shard, entry{})
		copy(idx.shards[shardIndex][i+1:], idx.shards[shardIndex][i:])
		idx.shards[shardIndex][i] = newEntry
		return true
	}

	existing := shard[i].source
	if !shouldOverwrite(existing, source) {
		return false
	}

	shard[i].source = source
	return true
}

// shouldOverwrite implements the precedence rules documented on Set.
func shouldOverwrite(existing, incoming Source) bool {
	switch existing.Kind {
	case KindManual:
		return incoming.Kind != KindManual
	case KindModrinthUnknown:
		return incoming.Kind == KindModrinthProject
	case KindModrinthProject:
		return incoming.Kind == KindModrinthProject && incoming.ProjectID != existing.ProjectID
	default:
		return true
	}
}

// shard binary record layout: key[19] | kind[1] | param[1] | id[param]?
//
// kind 0 (Manual) and 1 (ModrinthUnknown) carry param == 0. Kind 2
// (ModrinthProject) carries param == len(ProjectID), followed by the
// project ID's UTF-8 bytes. Modrinth project IDs are short fixed-format
// slugs, so a ProjectID over 127 bytes never occurs in practice; encodeEntry
// treats one as a broken caller rather than a recoverable condition, panicking
// exactly as original_source/crates/backend/src/mod_metadata.rs's write does.

func encodeEntry(e entry) ([]byte, error) {
	buf := make([]byte, 0, 21+len(e.source.ProjectID))
	buf = append(buf, e.key[:]...)
	buf = append(buf, byte(e.source.Kind))
	switch e.source.Kind {
	case KindManual, KindModrinthUnknown:
		buf = append(buf, 0)
	case KindModrinthProject:
		if len(e.source.ProjectID) > 127 {
			panic(fmt.Sprintf("sourceindex: modrinth project id was unexpectedly big: %q", e.source.ProjectID))
		}
		buf = append(buf, byte(len(e.source.ProjectID)))
		buf = append(buf, e.source.ProjectID...)
	default:
		return nil, fmt.Errorf("unknown source kind %d", e.source.Kind)
	}
	return buf, nil
}

// decodeShard parses every entry in a shard file's contents, skipping
// records with an unrecognized kind tag (forward compatibility: the param
// byte still tells us how many bytes to skip).
func decodeShard(data []byte) ([]entry, error) {
	var entries []entry
	for len(data) > 0 {
		if len(data) < 21 {
			return nil, fmt.Errorf("truncated shard record: %d bytes remaining", len(data))
		}
		var key [19]byte
		copy(key[:], data[:19])
		kind := Kind(data[19])
		param := int(data[20])
		data = data[21:]

		if len(data) < param {
			return nil, fmt.Errorf("truncated shard record payload: need %d bytes, have %d", param, len(data))
		}
		payload := data[:param]
		data = data[param:]

		switch kind {
		case KindManual, KindModrinthUnknown:
			entries = append(entries, entry{key: key, source: Source{Kind: kind}})
		case KindModrinthProject:
			entries = append(entries, entry{key: key, source: Source{Kind: kind, ProjectID: string(payload)}})
		default:
			// Unknown kind: already consumed its param bytes above, so just
			// skip this record.
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].key[:], entries[j].key[:]) < 0
	})
	return entries, nil
}

// shardFileName returns the two-hex-digit file name for a shard selector.
func shardFileName(shardIndex int) string {
	return fmt.Sprintf("%02x", shardIndex)
}

// Save writes every non-empty shard to its own file under dir, atomically.
func (idx *Index) Save(dir string, logger *logging.Logger) error {
	for i, shard := range idx.shards {
		if len(shard) == 0 {
			continue
		}
		buf := make([]byte, 0, len(shard)*21)
		for _, e := range shard {
			encoded, err := encodeEntry(e)
			if err != nil {
				return fmt.Errorf("unable to encode shard %02x: %w", i, err)
			}
			buf = append(buf, encoded...)
		}
		path := filepath.Join(dir, shardFileName(i))
		if err := encoding.MarshalAndSave(path, logger, func() ([]byte, error) {
			return buf, nil
		}); err != nil {
			return fmt.Errorf("unable to write shard %02x: %w", i, err)
		}
	}
	return nil
}

// Load reads every shard file present under dir into a fresh Index. Missing
// shard files are treated as empty shards, not errors.
func Load(dir string) (*Index, error) {
	idx := New()
	for i := 0; i < 256; i++ {
		path := filepath.Join(dir, shardFileName(i))
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("unable to read shard %02x: %w", i, err)
		}
		entries, err := decodeShard(data)
		if err != nil {
			return nil, fmt.Errorf("unable to decode shard %02x: %w", i, err)
		}
		idx.shards[i] = entries
	}
	return idx, nil
}

// legacyEntry is the JSON shape of a single entry in the pre-sharded legacy
// source index document.
type legacyEntry struct {
	Type      string `json:"type"`
	ProjectID string `json:"projectId,omitempty"`
}

// FromLegacyJSON converts a legacy JSON-encoded source index (a flat object
// mapping a hex-encoded 20-byte hash to a {type, projectId?} record) into the
// sharded form used on disk going forward.
func FromLegacyJSON(data []byte) (*Index, error) {
	var legacy map[string]legacyEntry
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, fmt.Errorf("unable to parse legacy source index: %w", err)
	}

	idx := New()
	for hexHash, le := range legacy {
		raw, err := decodeHexHash(hexHash)
		if err != nil {
			continue
		}

		var source Source
		switch le.Type {
		case "manual":
			source = Source{Kind: KindManual}
		case "modrinth":
			if le.ProjectID == "" {
				source = Source{Kind: KindModrinthUnknown}
			} else {
				source = Source{Kind: KindModrinthProject, ProjectID: le.ProjectID}
			}
		default:
			continue
		}

		idx.Set(raw, source)
	}
	return idx, nil
}

// decodeHexHash decodes a 40-character hex string into a 20-byte digest.
func decodeHexHash(s string) ([20]byte, error) {
	var out [20]byte
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(decoded) != 20 {
		return out, fmt.Errorf("invalid hash length: %d", len(decoded))
	}
	copy(out[:], decoded)
	return out, nil
}
