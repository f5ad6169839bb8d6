package daemon

import (
	"testing"

	"github.com/mutagen-io/mutagen/pkg/logging"
)

// TestLockCycle tests an acquisition/release cycle of the daemon lock.
func TestLockCycle(t *testing.T) {
	t.Setenv("PANDORA_DATA_DIRECTORY", t.TempDir())

	lock, err := AcquireLock(logging.RootLogger)
	if err != nil {
		t.Fatal("unable to acquire lock:", err)
	}

	if err := lock.Release(); err != nil {
		t.Fatal("unable to release lock:", err)
	}
}

// TestLockDuplicateFail tests that a second attempt to acquire the daemon
// lock while the first is held fails.
func TestLockDuplicateFail(t *testing.T) {
	t.Setenv("PANDORA_DATA_DIRECTORY", t.TempDir())

	lock, err := AcquireLock(logging.RootLogger)
	if err != nil {
		t.Fatal("unable to acquire lock:", err)
	}
	defer lock.Release()

	if _, err := AcquireLock(logging.RootLogger); err == nil {
		t.Error("second lock acquisition succeeded unexpectedly")
	}
}
