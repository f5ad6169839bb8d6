// Package version carries the launcher backend's own version identity.
package version

// Semantic version components for the launcher core.
const (
	Major = 0
	Minor = 1
	Patch = 0
)

// String returns the dotted semantic version string.
func String() string {
	return "0.1.0"
}
