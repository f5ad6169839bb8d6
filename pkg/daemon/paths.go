package daemon

import (
	"github.com/mutagen-io/mutagen/internal/layout"
)

const (
	// lockName is the name of the daemon lock. It resides within the daemon
	// subdirectory of the launcher data directory.
	lockName = "daemon.lock"
	// logName is the name of the daemon log file.
	logName = "daemon.log"
)

// subpath computes a subpath of the daemon subdirectory, creating the
// launcher data directory (and all of its subdirectories, including the
// daemon subdirectory) in the process.
func subpath(name string) (string, error) {
	dirs, err := layout.New()
	if err != nil {
		return "", err
	}
	if err := dirs.EnsureCreated(); err != nil {
		return "", err
	}
	return dirs.DaemonSubpath(name), nil
}

// logPath computes the path to the daemon log, creating any intermediate
// directories as necessary.
func logPath() (string, error) {
	return subpath(logName)
}
