package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/semaphore"

	"github.com/mutagen-io/mutagen/internal/archive"
	"github.com/mutagen-io/mutagen/internal/instance"
	"github.com/mutagen-io/mutagen/internal/sourceindex"
	"github.com/mutagen-io/mutagen/pkg/identifier"
	"github.com/mutagen-io/mutagen/pkg/logging"
)

// maxConcurrentInstalls bounds how many files an Install call stages at
// once. Grounded on dreamdenizen/factorio-mod-updater's
// errgroup.Group.SetLimit pattern, generalized to
// golang.org/x/sync/semaphore.Weighted for per-request (rather than
// per-process) acquisition.
const maxConcurrentInstalls = 8

// DownloadKind identifies how a File's content should be obtained.
type DownloadKind int

const (
	DownloadURL DownloadKind = iota
	DownloadModrinthProject
	DownloadLocalFile
)

// Download describes where a File's bytes come from.
type Download struct {
	Kind DownloadKind

	// DownloadURL fields.
	URL  string
	Sha1 string
	Size int64

	// DownloadModrinthProject fields. VersionID, if set, pins an exact
	// version; otherwise the best version for loaderHint/versionHint is
	// resolved via Resolver.
	ProjectID string
	VersionID string

	// DownloadLocalFile fields.
	FilePath string
}

// PathPolicyKind identifies how a File's install destination is chosen.
type PathPolicyKind int

const (
	PathRaw PathPolicyKind = iota
	PathSafe
	PathAutomatic
)

// InstallPath is a File's destination policy.
type InstallPath struct {
	Kind PathPolicyKind
	Path string // relative path for Raw/Safe; ignored for Automatic
}

// File is a single file to install.
type File struct {
	Download   Download
	Path       InstallPath
	ReplaceOld string // absolute path to remove on successful placement, if any
	Source     sourceindex.Source
}

// Resolver resolves a Modrinth project/version reference to a concrete
// download, honoring loaderHint when selecting among a project's versions.
// It is supplied by the caller because network metadata fetching lives in a
// separate component.
type Resolver interface {
	ResolveModrinthVersion(ctx context.Context, projectID, versionID, loaderHint, versionHint string) (download Download, filename string, err error)
}

// Request is an install request: a batch of files to stage and, per
// Target, either left in the library or placed into an instance's game
// root.
type Request struct {
	// DestDir is the absolute path files are placed into when Target.Kind
	// is TargetExistingInstance (e.g. an instance's .minecraft directory).
	// Ignored for TargetLibraryOnly and TargetNewInstance, which resolve
	// their own destination.
	DestDir string

	Target Target

	LoaderHint  string
	VersionHint string
	Files       []File
}

// Result is the outcome of a successful Install call.
type Result struct {
	// Token correlates this install across log lines and, if a frontend
	// reports install progress asynchronously, across separate request/event
	// round trips.
	Token string

	Placed    []PlacedFile
	Summaries map[[20]byte]*archive.Summary
}

// PlacedFile describes one file placed into DestDir.
type PlacedFile struct {
	LibraryPath string
	InstallPath string // relative to the destination directory
	Hash        [20]byte
	Source      sourceindex.Source
}

type stagedFileResult struct {
	staged   *StagedFile
	summary  *archive.Summary
	filename string // source filename, used to resolve an Automatic destination
	file     File
}

// Install stages every file in req concurrently (bounded by
// maxConcurrentInstalls), resolves each one's install path, recursively
// stages any modpack's declared inner downloads (failures there are
// logged, not fatal), and — only if every top-level file staged
// successfully — commits: hard-links each file into the resolved
// destination directory and updates idx with each file's provenance.
//
// req.Target selects that destination (see resolveTarget): the library
// only, an existing instance (whose loader is upgraded to req.LoaderHint on
// success, if recognized), or a brand-new instance created as part of this
// call. instances/instancesDir are only consulted for TargetExistingInstance
// and TargetNewInstance respectively; both may be nil/empty for a
// library-only install.
//
// Grounded on original_source/crates/backend/src/install_content.rs's
// BackendState::install_content: stage-all-in-parallel, then a single
// commit phase. An error during staging aborts before anything is
// committed (already-staged library files are left in place since they're
// harmless and reusable). A hard-link failure during the commit returns an
// error and leaves the source index updates and any earlier placements in
// place.
func (l *Library) Install(ctx context.Context, req Request, resolver Resolver, cache *archive.Cache, idx *sourceindex.Index, instances *instance.Table, instancesDir string, logger *logging.Logger) (*Result, error) {
	token, err := identifier.New(identifier.PrefixContentLock)
	if err != nil {
		return nil, fmt.Errorf("unable to generate install token: %w", err)
	}
	logger.Debugf("install %s: staging %d file(s)", token, len(req.Files))

	sem := semaphore.NewWeighted(maxConcurrentInstalls)
	results := make([]stagedFileResult, len(req.Files))
	errs := make([]error, len(req.Files))

	done := make(chan int, len(req.Files))
	for i, f := range req.Files {
		i, f := i, f
		go func() {
			if err := sem.Acquire(ctx, 1); err != nil {
				errs[i] = err
				done <- i
				return
			}
			defer sem.Release(1)

			staged, summary, filename, err := l.stageOne(ctx, f, req.LoaderHint, resolver, cache, logger)
			if err != nil {
				errs[i] = err
				done <- i
				return
			}
			results[i] = stagedFileResult{staged: staged, summary: summary, filename: filename, file: f}
			done <- i
		}()
	}
	for range req.Files {
		<-done
	}

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	// Nested modpack staging: best-effort, errors logged and swallowed.
	for _, r := range results {
		if r.summary == nil || r.summary.Kind != archive.KindModpack || r.summary.Modpack == nil {
			continue
		}
		l.stageModpackChildren(ctx, r.summary, resolver, cache, logger)
	}

	result := &Result{Token: token, Summaries: make(map[[20]byte]*archive.Summary)}
	placements := make([]PlacedFile, 0, len(results))
	for _, r := range results {
		installPath, err := resolveInstallPath(r.file, r.summary, r.filename)
		if err != nil {
			return nil, err
		}
		placements = append(placements, PlacedFile{
			LibraryPath: r.staged.Path,
			InstallPath: installPath,
			Hash:        r.staged.Hash,
			Source:      r.file.Source,
		})
		if r.summary != nil {
			result.Summaries[r.staged.Hash] = r.summary
		}
	}

	// Commit: update the source index first, then hard-link. A hard-link
	// failure aborts the commit with an error: no copy fallback, since the
	// library must remain the sole content store. Manually-sourced files are
	// not recorded here; provenance tracking only exists to remember
	// automated installs.
	for _, p := range placements {
		if p.Source.Kind != sourceindex.KindManual {
			idx.Set(p.Hash, p.Source)
		}
	}

	destDir, err := l.resolveTarget(req, instances, instancesDir, logger)
	if err != nil {
		return nil, err
	}

	if destDir != "" {
		for i, p := range placements {
			dest := filepath.Join(destDir, p.InstallPath)
			if err := os.MkdirAll(filepath.Dir(dest), 0700); err != nil {
				return nil, fmt.Errorf("unable to create destination directory: %w", err)
			}
			if req.Files[i].ReplaceOld != "" {
				os.Remove(req.Files[i].ReplaceOld)
			}
			os.Remove(dest) // hard-linking over an existing file fails; clear it first.
			if err := os.Link(p.LibraryPath, dest); err != nil {
				return nil, fmt.Errorf("unable to hard-link %s into place: %w", p.LibraryPath, err)
			}
			result.Placed = append(result.Placed, p)
		}
	} else {
		result.Placed = placements
	}

	applyLoaderUpgrade(req, instances, logger)

	return result, nil
}

func (l *Library) stageOne(ctx context.Context, f File, loaderHint string, resolver Resolver, cache *archive.Cache, logger *logging.Logger) (*StagedFile, *archive.Summary, string, error) {
	switch f.Download.Kind {
	case DownloadURL:
		hash, err := ParseSha1Hex(f.Download.Sha1)
		if err != nil {
			return nil, nil, "", err
		}
		filename := filepath.Base(f.Download.URL)
		staged, err := l.StageURL(ctx, f.Download.URL, hash, f.Download.Size, trimExt(filepath.Ext(filename)), logger)
		if err != nil {
			return nil, nil, "", err
		}
		staged, summary := l.finishStaging(staged, cache)
		return staged, summary, filename, nil

	case DownloadLocalFile:
		filename := filepath.Base(f.Download.FilePath)
		staged, err := l.StageFile(f.Download.FilePath, trimExt(filepath.Ext(filename)))
		if err != nil {
			return nil, nil, "", err
		}
		staged, summary := l.finishStaging(staged, cache)
		return staged, summary, filename, nil

	case DownloadModrinthProject:
		if resolver == nil {
			return nil, nil, "", fmt.Errorf("%w: no resolver configured for a Modrinth reference", ErrUnableToFindDependencyVersion)
		}
		download, filename, err := resolver.ResolveModrinthVersion(ctx, f.Download.ProjectID, f.Download.VersionID, loaderHint, "")
		if err != nil {
			return nil, nil, "", err
		}
		hash, err := ParseSha1Hex(download.Sha1)
		if err != nil {
			return nil, nil, "", err
		}
		if filename == "" {
			filename = filepath.Base(download.URL)
		}
		staged, err := l.StageURL(ctx, download.URL, hash, download.Size, trimExt(filepath.Ext(filename)), logger)
		if err != nil {
			return nil, nil, "", err
		}
		staged, summary := l.finishStaging(staged, cache)
		return staged, summary, filename, nil

	default:
		return nil, nil, "", fmt.Errorf("%w: unrecognized download kind", ErrInvalidPath)
	}
}

func trimExt(ext string) string {
	if ext == "" {
		return ""
	}
	return ext[1:]
}

func (l *Library) finishStaging(staged *StagedFile, cache *archive.Cache) (*StagedFile, *archive.Summary) {
	var summary *archive.Summary
	if cache != nil {
		data, err := os.ReadFile(staged.Path)
		if err == nil {
			summary, _ = cache.GetOrExtract(staged.Hash, data, true)
		}
	}
	return staged, summary
}

// stageModpackChildren stages each of summary's declared inner downloads and
// resolves its own Summary, recording the result in
// summary.Modpack.ChildSummaries (index-aligned with Downloads). A child
// that cannot yet be staged or extracted is recorded with cache.
// MarkChildMissing instead, so that if it's later staged by some other
// install (e.g. as a standalone mod a user installed directly), cache.
// NotifyChildAvailable invalidates summary's cache entry and forces it to
// be recomputed with the now-resolvable child.
func (l *Library) stageModpackChildren(ctx context.Context, summary *archive.Summary, resolver Resolver, cache *archive.Cache, logger *logging.Logger) {
	if len(summary.Modpack.ChildSummaries) != len(summary.Modpack.Downloads) {
		summary.Modpack.ChildSummaries = make([]*archive.Summary, len(summary.Modpack.Downloads))
	}

	for i, download := range summary.Modpack.Downloads {
		if download.Unsupported || len(download.Downloads) == 0 {
			continue
		}
		hash, err := ParseSha1Hex(download.Sha1)
		if err != nil {
			logger.Warnf("skipping modpack child with invalid hash: %v", err)
			continue
		}
		staged, err := l.StageURL(ctx, download.Downloads[0], hash, int64(download.FileSize), trimExt(filepath.Ext(download.Path)), logger)
		if err != nil {
			logger.Warnf("unable to stage modpack child %s: %v", download.Path, err)
			if cache != nil {
				cache.MarkChildMissing(hash, summary.Hash)
			}
			continue
		}
		if cache == nil {
			continue
		}
		data, err := os.ReadFile(staged.Path)
		if err != nil {
			logger.Warnf("unable to read staged modpack child %s: %v", download.Path, err)
			cache.MarkChildMissing(hash, summary.Hash)
			continue
		}
		childSummary, err := cache.GetOrExtract(staged.Hash, data, false)
		if err != nil {
			logger.Warnf("unable to extract metadata for modpack child %s: %v", download.Path, err)
			cache.MarkChildMissing(hash, summary.Hash)
			continue
		}
		summary.Modpack.ChildSummaries[i] = childSummary
		cache.NotifyChildAvailable(staged.Hash)
	}
}

func resolveInstallPath(f File, summary *archive.Summary, filename string) (string, error) {
	switch f.Path.Kind {
	case PathRaw, PathSafe:
		return f.Path.Path, nil
	case PathAutomatic:
		if summary == nil || filename == "" {
			return "", ErrUnableToDetermineContentType
		}
		return filepath.Join(summary.InstallDirectory(), filename), nil
	default:
		return "", ErrInvalidPath
	}
}
