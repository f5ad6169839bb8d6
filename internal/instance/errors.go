package instance

import "fmt"

// ErrInstanceNotFound is returned by a loader when its instance's handle no
// longer resolves in the table it was given, which happens when the
// instance is removed while a background load for it is still running.
var ErrInstanceNotFound = fmt.Errorf("instance: not found")

// Error taxonomy for instance name validation, mirroring
// original_source/crates/backend/src/backend.rs's create_instance/
// rename_instance rejection cases: a name that escapes its parent directory
// as a path (NameIsPath), one that Windows's filename rules reject
// (NameInvalid), and one already used by a sibling instance (NameTaken).
var (
	ErrNameIsPath  = fmt.Errorf("instance: name must not be a path")
	ErrNameInvalid = fmt.Errorf("instance: name is invalid")
	ErrNameTaken   = fmt.Errorf("instance: name is already in use")
)
