package library

import "errors"

// Error taxonomy for install and staging failures: InvalidHash,
// InvalidPath, UnsupportedStatus, WrongHash, WrongSize,
// UnableToFindDependencyVersion, MismatchedProject,
// UnableToDetermineContentType, InvalidFilename. Other failures, I/O among
// them, are returned as the underlying error wrapped with context.
var (
	ErrInvalidHash                   = errors.New("library: invalid hash")
	ErrInvalidPath                   = errors.New("library: invalid install path")
	ErrUnsupportedStatus             = errors.New("library: server returned a non-200 status")
	ErrWrongHash                     = errors.New("library: downloaded content has the wrong hash")
	ErrWrongSize                     = errors.New("library: downloaded content has the wrong size")
	ErrUnableToFindDependencyVersion = errors.New("library: unable to find an appropriate version for dependency")
	ErrMismatchedProject             = errors.New("library: version belongs to a different project than requested")
	ErrUnableToDetermineContentType  = errors.New("library: unable to determine content type for automatic placement")
	ErrInvalidFilename               = errors.New("library: invalid filename")
)
