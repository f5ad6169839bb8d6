// Package archive extracts ContentSummary metadata from mod/resourcepack/
// modpack archives (jars and zips), following the recognition order and
// icon normalization rules described for the archive metadata extractor.
//
// Grounded on original_source/crates/backend/src/mod_metadata.rs, which
// walks a zip archive's entry names in a fixed precedence order and derives
// a ContentSummary from whichever manifest file matches first.
package archive

import "sync/atomic"

// UpdateStatus records whether a content item is known to be up to date
// against its remote source. Nothing in this module sets it to anything but
// UpdateStatusUnknown: resolving it against live metadata is the network
// metadata fetcher's job (out of this module's scope), but the atomic cell
// itself is part of ContentSummary's data model, so other code may update it
// without taking a lock.
type UpdateStatus uint32

const (
	UpdateStatusUnknown UpdateStatus = iota
	UpdateStatusManualInstall
	UpdateStatusErrorNotFound
	UpdateStatusErrorInvalidHash
	UpdateStatusAlreadyUpToDate
	UpdateStatusModrinthAvailable
)

// Kind identifies which ecosystem a ContentSummary belongs to.
type Kind int

const (
	KindFabricMod Kind = iota
	KindForgeMod
	KindNeoForgeMod
	KindJavaModule
	KindResourcePack
	KindModpack
)

func (k Kind) String() string {
	switch k {
	case KindFabricMod:
		return "FabricMod"
	case KindForgeMod:
		return "ForgeMod"
	case KindNeoForgeMod:
		return "NeoForgeMod"
	case KindJavaModule:
		return "JavaModule"
	case KindResourcePack:
		return "ResourcePack"
	case KindModpack:
		return "Modpack"
	default:
		return "Unknown"
	}
}

// ModpackDownload is one file a modrinth.index.json declares, to be staged
// into the content library without placement.
type ModpackDownload struct {
	Path       string
	Downloads  []string
	Sha1       string
	FileSize   int
	Unsupported bool
}

// ModpackOverride is a blob of bytes shipped inside a modpack's overrides/
// or client-overrides/ directory, destined for the instance's game root.
type ModpackOverride struct {
	RelativePath string
	Data         []byte
}

// ModpackDetail holds the modpack-specific fields of a Summary of kind
// KindModpack.
type ModpackDetail struct {
	Downloads      []ModpackDownload
	ChildSummaries []*Summary // parallel to Downloads; nil entry if not yet resolved
	Overrides      []ModpackOverride
}

// Summary is the metadata extracted from an archive, keyed by the SHA-1 of
// its bytes. Instances of Summary are referentially shared across every
// InstanceContentSummary that points at the same hash; the only mutable
// field is UpdateStatus, which callers must only touch atomically.
type Summary struct {
	Hash          [20]byte
	ID            string
	Name          string
	VersionString string
	Authors       string
	Icon          []byte // normalized 64x64 PNG, nil if no icon was found
	Kind          Kind
	Modpack       *ModpackDetail // non-nil iff Kind == KindModpack

	UpdateStatus atomic.Uint32
}

// LoadUpdateStatus reads the current UpdateStatus.
func (s *Summary) LoadUpdateStatus() UpdateStatus {
	return UpdateStatus(s.UpdateStatus.Load())
}

// StoreUpdateStatus sets the current UpdateStatus.
func (s *Summary) StoreUpdateStatus(status UpdateStatus) {
	s.UpdateStatus.Store(uint32(status))
}

// InstallDirectory returns the content folder a Summary belongs to when the
// installer is asked to resolve an Automatic destination.
func (s *Summary) InstallDirectory() string {
	switch s.Kind {
	case KindResourcePack:
		return "resourcepacks"
	default:
		return "mods"
	}
}
