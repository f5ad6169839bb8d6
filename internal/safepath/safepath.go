// Package safepath validates instance and filename strings supplied by a
// frontend before they are ever joined onto a filesystem path, so that a
// crafted or accidental name can neither escape its parent directory nor
// collide with a name Windows treats specially.
//
// Grounded on original_source/crates/backend/src/lib.rs's
// is_single_component_path and original_source/crates/frontend/src/lib.rs's
// is_valid_instance_name, which pairs it with the sanitize_filename crate's
// is_sanitized_with_options(windows: true). This package reimplements that
// crate's Windows rule set directly, since no Go module in the example pack
// wraps it.
package safepath

import (
	"path/filepath"
	"strings"
)

// reservedNames lists the Windows device names that cannot be used as a
// file or directory name, regardless of extension (CON.txt is just as
// reserved as CON). Matched case-insensitively, per the sanitize_filename
// crate's windows rule set.
var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// invalidChars are the characters Windows forbids in a path component:
// < > : " / \ | ? *, plus the ASCII control range.
func hasInvalidChar(name string) bool {
	for _, r := range name {
		if r < 0x20 {
			return true
		}
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			return true
		}
	}
	return false
}

// IsSingleComponentPath reports whether path, when parsed, names exactly one
// path component that is itself (not "..", not "/", not empty). Grounded on
// is_single_component_path: path.Components().peekable() with the first
// component required to be Normal and exactly one component total.
func IsSingleComponentPath(path string) bool {
	if path == "" {
		return false
	}
	clean := filepath.Clean(path)
	if clean == "." || clean == ".." || clean == string(filepath.Separator) {
		return false
	}
	if filepath.IsAbs(clean) {
		return false
	}
	if strings.ContainsRune(clean, filepath.Separator) || strings.ContainsRune(clean, '/') {
		return false
	}
	return clean == path
}

// IsSanitizedWindows reports whether name is safe to use as a file or
// directory component under Windows's naming rules: no forbidden
// characters, no reserved device name (with or without an extension), no
// trailing dot or space, and not empty.
func IsSanitizedWindows(name string) bool {
	if name == "" {
		return false
	}
	if hasInvalidChar(name) {
		return false
	}
	if strings.HasSuffix(name, ".") || strings.HasSuffix(name, " ") {
		return false
	}
	stem := name
	if i := strings.IndexByte(name, '.'); i >= 0 {
		stem = name[:i]
	}
	if reservedNames[strings.ToUpper(stem)] {
		return false
	}
	return true
}

// IsValidInstanceName reports whether name is safe to use as an instance
// directory name: a single path component that also passes Windows
// sanitization, so the same name is safe to use verbatim on every
// supported OS. Grounded on is_valid_instance_name.
func IsValidInstanceName(name string) bool {
	return IsSingleComponentPath(name) && IsSanitizedWindows(name)
}
