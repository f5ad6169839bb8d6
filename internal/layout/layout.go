// Package layout computes and creates the on-disk directory inventory used
// by the launcher backend. It mirrors the subpath set of the original
// launcher's directory module, rooted beneath a single launcher data
// directory whose location can be overridden for testing or packaging.
package layout

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dataDirectoryName is the name of the launcher's data directory within
	// the user's home directory.
	dataDirectoryName = ".pandora"
	// dataDirectoryEnvironmentVariable allows the launcher data directory to
	// be overridden, primarily for testing and packaging.
	dataDirectoryEnvironmentVariable = "PANDORA_DATA_DIRECTORY"
)

// Directories is the directory inventory for a single launcher data
// directory. All fields are absolute paths.
type Directories struct {
	// Root is the launcher data directory itself.
	Root string

	// InstancesDir holds one subdirectory per instance.
	InstancesDir string

	// MetadataDir holds cached version/library metadata (populated by a
	// component outside this module's scope).
	MetadataDir string

	// AssetsRootDir, AssetsIndexDir, AssetsObjectsDir, and
	// VirtualLegacyAssetsDir mirror the vanilla launcher's asset layout.
	AssetsRootDir          string
	AssetsIndexDir         string
	AssetsObjectsDir       string
	VirtualLegacyAssetsDir string

	// LibrariesDir holds downloaded game libraries (out of scope for this
	// module beyond providing the path).
	LibrariesDir string
	// LogConfigsDir holds log4j configuration files.
	LogConfigsDir string
	// RuntimeBaseDir holds bundled JRE/JDK runtimes.
	RuntimeBaseDir string

	// ContentLibraryDir is the root of the content-addressed content
	// library.
	ContentLibraryDir string
	// ContentMetaDir holds the source index shards.
	ContentMetaDir string

	// TempDir and TempNativesBaseDir hold transient files. Installer
	// downloads are not written here; the library writes each one next to
	// its final path under ContentLibraryDir.
	TempDir           string
	TempNativesBaseDir string

	// AccountsJSONPath is the path to the accounts document (owned by the
	// auth pipeline, out of scope here; only the path is provided so other
	// components can avoid colliding with it).
	AccountsJSONPath string

	// ConfigJSONPath is the path to the global configuration document.
	ConfigJSONPath string

	// DaemonDir holds the daemon lock, log, and autostart marker.
	DaemonDir string
}

// directoryFields lists every directory (not file) field of Directories, for
// use by EnsureCreated.
func (d *Directories) directoryFields() []string {
	return []string{
		d.InstancesDir,
		d.MetadataDir,
		d.AssetsRootDir,
		d.AssetsIndexDir,
		d.AssetsObjectsDir,
		d.VirtualLegacyAssetsDir,
		d.LibrariesDir,
		d.LogConfigsDir,
		d.RuntimeBaseDir,
		d.ContentLibraryDir,
		d.ContentMetaDir,
		d.TempDir,
		d.TempNativesBaseDir,
		d.DaemonDir,
	}
}

// rootOverride returns the launcher data directory root, honoring the
// environment variable override if set.
func rootOverride() (string, error) {
	if override := os.Getenv(dataDirectoryEnvironmentVariable); override != "" {
		return override, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("unable to determine home directory: %w", err)
	}
	return filepath.Join(home, dataDirectoryName), nil
}

// New computes the directory inventory rooted at the launcher data
// directory, but does not create any directories on disk.
func New() (*Directories, error) {
	root, err := rootOverride()
	if err != nil {
		return nil, err
	}
	return newFromRoot(root), nil
}

// newFromRoot computes the directory inventory for an explicit root, mostly
// useful for tests.
func newFromRoot(root string) *Directories {
	assetsRoot := filepath.Join(root, "assets")
	assetsIndex := filepath.Join(assetsRoot, "indexes")
	temp := filepath.Join(root, "temp")

	return &Directories{
		Root: root,

		InstancesDir: filepath.Join(root, "instances"),

		MetadataDir: filepath.Join(root, "metadata"),

		AssetsRootDir:          assetsRoot,
		AssetsIndexDir:         assetsIndex,
		AssetsObjectsDir:       filepath.Join(assetsRoot, "objects"),
		VirtualLegacyAssetsDir: filepath.Join(assetsIndex, "virtual", "legacy"),

		LibrariesDir:   filepath.Join(root, "libraries"),
		LogConfigsDir:  filepath.Join(root, "logconfigs"),
		RuntimeBaseDir: filepath.Join(root, "runtime"),

		ContentLibraryDir: filepath.Join(root, "contentlibrary"),
		ContentMetaDir:    filepath.Join(root, "contentmeta"),

		TempDir:            temp,
		TempNativesBaseDir: filepath.Join(temp, "natives"),

		AccountsJSONPath: filepath.Join(root, "accounts.json"),
		ConfigJSONPath:   filepath.Join(root, "config.json"),

		DaemonDir: filepath.Join(root, "daemon"),
	}
}

// EnsureCreated creates every directory in the inventory (not files), along
// with the root itself, returning an error on the first failure.
func (d *Directories) EnsureCreated() error {
	if err := os.MkdirAll(d.Root, 0700); err != nil {
		return fmt.Errorf("unable to create launcher data directory: %w", err)
	}
	markHidden(d.Root)
	for _, dir := range d.directoryFields() {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("unable to create %s: %w", dir, err)
		}
	}
	return nil
}

// DaemonSubpath joins name onto the daemon subdirectory, which is assumed to
// already exist (created by EnsureCreated).
func (d *Directories) DaemonSubpath(name string) string {
	return filepath.Join(d.DaemonDir, name)
}
