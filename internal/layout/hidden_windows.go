//go:build windows

package layout

import (
	"golang.org/x/sys/windows"
)

// markHidden sets the hidden file attribute on the launcher data directory,
// since a leading dot carries no meaning on Windows.
func markHidden(path string) {
	pointer, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return
	}
	attributes, err := windows.GetFileAttributes(pointer)
	if err != nil {
		return
	}
	_ = windows.SetFileAttributes(pointer, attributes|windows.FILE_ATTRIBUTE_HIDDEN)
}
