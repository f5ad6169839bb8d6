package housekeeping

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mutagen-io/mutagen/internal/layout"
	"github.com/mutagen-io/mutagen/pkg/logging"
)

func newTestDirectories(t *testing.T) *layout.Directories {
	t.Helper()
	t.Setenv("PANDORA_DATA_DIRECTORY", t.TempDir())
	dirs, err := layout.New()
	if err != nil {
		t.Fatal("unable to compute directories:", err)
	}
	if err := dirs.EnsureCreated(); err != nil {
		t.Fatal("unable to create directories:", err)
	}
	return dirs
}

// TestHousekeepSucceeds tests that Housekeep runs without error against an
// empty directory layout.
func TestHousekeepSucceeds(t *testing.T) {
	dirs := newTestDirectories(t)
	Housekeep(dirs, logging.RootLogger)
}

// TestHousekeepRemovesOrphanedLock tests that a lock file with no
// corresponding content file and an old modification time is removed.
func TestHousekeepRemovesOrphanedLock(t *testing.T) {
	dirs := newTestDirectories(t)

	shardDir := filepath.Join(dirs.ContentLibraryDir, "ab")
	if err := os.MkdirAll(shardDir, 0700); err != nil {
		t.Fatal(err)
	}
	lockPath := filepath.Join(shardDir, "abcdef.lock")
	if err := os.WriteFile(lockPath, nil, 0600); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(lockPath, old, old); err != nil {
		t.Fatal(err)
	}

	housekeepOrphanedLocks(dirs, logging.RootLogger)

	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Error("expected orphaned lock file to be removed")
	}
}

// TestHousekeepKeepsLockWithContent tests that a lock file whose content file
// still exists is retained, matching the "retain" decision in DESIGN.md.
func TestHousekeepKeepsLockWithContent(t *testing.T) {
	dirs := newTestDirectories(t)

	shardDir := filepath.Join(dirs.ContentLibraryDir, "ab")
	if err := os.MkdirAll(shardDir, 0700); err != nil {
		t.Fatal(err)
	}
	contentPath := filepath.Join(shardDir, "abcdef")
	if err := os.WriteFile(contentPath, []byte("data"), 0600); err != nil {
		t.Fatal(err)
	}
	lockPath := contentPath + lockFileSuffix
	if err := os.WriteFile(lockPath, nil, 0600); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(lockPath, old, old); err != nil {
		t.Fatal(err)
	}

	housekeepOrphanedLocks(dirs, logging.RootLogger)

	if _, err := os.Stat(lockPath); err != nil {
		t.Error("expected lock file with existing content to be retained")
	}
}

// TestHousekeepRemovesOrphanedTempFile tests that an old temporary download
// file is removed.
func TestHousekeepRemovesOrphanedTempFile(t *testing.T) {
	dirs := newTestDirectories(t)

	tempPath := filepath.Join(dirs.TempDir, ".pandora.download-12345")
	if err := os.WriteFile(tempPath, nil, 0600); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-8 * 24 * time.Hour)
	if err := os.Chtimes(tempPath, old, old); err != nil {
		t.Fatal(err)
	}

	housekeepOrphanedTempFiles(dirs, logging.RootLogger)

	if _, err := os.Stat(tempPath); !os.IsNotExist(err) {
		t.Error("expected orphaned temp file to be removed")
	}
}
