package housekeeping

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mutagen-io/mutagen/internal/layout"
	"github.com/mutagen-io/mutagen/pkg/logging"
	"github.com/mutagen-io/mutagen/pkg/must"
)

const (
	// maximumOrphanedLockAge is the maximum period of time that a content
	// library lock file is allowed to exist without a corresponding content
	// file before being treated as the remnant of a crashed installer and
	// removed.
	maximumOrphanedLockAge = 24 * time.Hour
	// maximumOrphanedTempFileAge is the maximum period of time that a
	// tempDownloadPrefix-named file is allowed to sit in the temp directory
	// before being treated as abandoned and removed.
	maximumOrphanedTempFileAge = 7 * 24 * time.Hour
	// tempDownloadPrefix is the name prefix of the temp directory files that
	// housekeepOrphanedTempFiles removes. The library's own downloads do not
	// use it: they are written beside their library path with a ".download"
	// suffix.
	tempDownloadPrefix = ".pandora."
	// lockFileSuffix is the suffix used for content library lock files.
	lockFileSuffix = ".lock"
)

// Housekeep invokes housekeeping functions on the launcher data directory.
func Housekeep(dirs *layout.Directories, logger *logging.Logger) {
	housekeepOrphanedLocks(dirs, logger)
	housekeepOrphanedTempFiles(dirs, logger)
}

// housekeepOrphanedLocks removes content library lock files that no longer
// have a corresponding content file and are old enough to rule out an
// installer that is still legitimately running.
func housekeepOrphanedLocks(dirs *layout.Directories, logger *logging.Logger) {
	now := time.Now()

	_ = filepath.WalkDir(dirs.ContentLibraryDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), lockFileSuffix) {
			return nil
		}

		contentPath := strings.TrimSuffix(path, lockFileSuffix)
		if _, statErr := os.Stat(contentPath); statErr == nil {
			// The content file exists, so this lock is either still
			// legitimately held or has been correctly retained after a
			// successful install (see DESIGN.md's lock retention decision).
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if now.Sub(info.ModTime()) > maximumOrphanedLockAge {
			must.OSRemove(path, logger)
		}
		return nil
	})
}

// housekeepOrphanedTempFiles removes tempDownloadPrefix-named files from the
// temp directory once they are older than maximumOrphanedTempFileAge.
func housekeepOrphanedTempFiles(dirs *layout.Directories, logger *logging.Logger) {
	entries, err := os.ReadDir(dirs.TempDir)
	if err != nil {
		return
	}

	now := time.Now()
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), tempDownloadPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) > maximumOrphanedTempFileAge {
			must.OSRemove(filepath.Join(dirs.TempDir, entry.Name()), logger)
		}
	}
}
