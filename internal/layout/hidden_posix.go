//go:build !windows

package layout

// markHidden is a no-op on POSIX systems, where a directory name is hidden
// only by virtue of its leading dot.
func markHidden(path string) {}
