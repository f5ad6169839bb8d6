package library

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mutagen-io/mutagen/internal/instance"
	"github.com/mutagen-io/mutagen/internal/slab"
	"github.com/mutagen-io/mutagen/pkg/logging"
)

// TargetKind identifies where an install's files are ultimately headed,
// mirroring the three destinations a frontend can ask for: the library
// only, an existing instance, or a brand-new instance created as part of
// the same install commit.
type TargetKind int

const (
	// TargetLibraryOnly stages files into the content library without
	// placing them anywhere; Request.DestDir is ignored.
	TargetLibraryOnly TargetKind = iota
	// TargetExistingInstance places files into an already-created instance.
	// Request.DestDir must already point at that instance's game root; on
	// success, Instance's loader is upgraded to LoaderHint if recognized.
	TargetExistingInstance
	// TargetNewInstance creates a new instance directory (named
	// NewInstanceName, under the instancesDir passed to Library.Install)
	// as part of this install's commit, and places files into it.
	TargetNewInstance
)

// Target tags an install with which of the three destinations above it is
// headed for. Only the fields relevant to Kind are meaningful.
type Target struct {
	Kind TargetKind

	// TargetExistingInstance fields.
	Instance slab.Handle

	// TargetNewInstance fields.
	NewInstanceName    string
	NewInstanceVersion string
}

// resolveTarget applies req.Target's side effects ahead of the install
// commit: creating a new instance directory and configuration when Kind is
// TargetNewInstance, and returning the destination directory files are
// placed into: the new instance's game root, Request.DestDir for
// TargetExistingInstance, or "" (place nothing) for TargetLibraryOnly.
// instances/instancesDir may be nil/empty when Kind
// is TargetLibraryOnly, since neither is consulted in that case.
func (l *Library) resolveTarget(req Request, instances *instance.Table, instancesDir string, logger *logging.Logger) (string, error) {
	switch req.Target.Kind {
	case TargetNewInstance:
		if instances == nil || instancesDir == "" {
			return "", fmt.Errorf("library: install requested a new instance but no instance table/directory was configured")
		}
		loader, _ := instance.ParseLoaderKind(req.LoaderHint)
		cfg := instance.Configuration{MinecraftVersion: req.Target.NewInstanceVersion, Loader: loader}

		path := filepath.Join(instancesDir, req.Target.NewInstanceName)
		inst, err := instance.New(path, cfg, logger)
		if err != nil {
			return "", fmt.Errorf("unable to create new instance: %w", err)
		}
		if instances.NameInUse(inst.Name) {
			return "", instance.ErrNameTaken
		}
		if err := os.MkdirAll(inst.GameRootPath, 0700); err != nil {
			return "", fmt.Errorf("unable to create new instance game root: %w", err)
		}
		if err := inst.Configuration.Modify(func(c *instance.Configuration) error {
			*c = cfg
			return nil
		}); err != nil {
			return "", fmt.Errorf("unable to persist new instance configuration: %w", err)
		}
		instances.Insert(inst)
		return inst.GameRootPath, nil

	case TargetLibraryOnly:
		return "", nil

	default:
		return req.DestDir, nil
	}
}

// applyLoaderUpgrade writes req.LoaderHint back onto the destination
// instance's Configuration.Loader after a successful install, when Kind is
// TargetExistingInstance and the hint names a recognized loader. Grounded
// on end-to-end scenario 1: installing a Fabric-hinted mod into a Vanilla
// instance upgrades that instance's loader to Fabric.
func applyLoaderUpgrade(req Request, instances *instance.Table, logger *logging.Logger) {
	if req.Target.Kind != TargetExistingInstance || instances == nil {
		return
	}
	loader, ok := instance.ParseLoaderKind(req.LoaderHint)
	if !ok {
		return
	}
	inst, ok := instances.Get(req.Target.Instance)
	if !ok {
		return
	}
	if err := inst.Configuration.Modify(func(c *instance.Configuration) error {
		c.Loader = loader
		return nil
	}); err != nil {
		logger.Warnf("unable to upgrade instance loader to %v: %v", loader, err)
	}
}
