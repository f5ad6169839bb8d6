package childstate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mutagen-io/mutagen/pkg/logging"
)

func TestSidecarPath(t *testing.T) {
	got := SidecarPath(filepath.FromSlash("/mods/foo.jar"))
	want := filepath.FromSlash("/mods/.foo.jar.pandorachildstate")
	if got != want {
		t.Errorf("SidecarPath = %q, want %q", got, want)
	}
}

func TestFoldDirtyPathRemapsSidecar(t *testing.T) {
	sidecar := filepath.FromSlash("/mods/.foo.jar.pandorachildstate")
	got := FoldDirtyPath(sidecar)
	want := filepath.FromSlash("/mods/foo.jar")
	if got != want {
		t.Errorf("FoldDirtyPath(%q) = %q, want %q", sidecar, got, want)
	}
}

func TestFoldDirtyPathLeavesNonSidecarUnchanged(t *testing.T) {
	path := filepath.FromSlash("/mods/foo.jar")
	if got := FoldDirtyPath(path); got != path {
		t.Errorf("FoldDirtyPath(%q) = %q, want unchanged", path, got)
	}
}

func TestFoldDirtyPathWithoutLeadingDot(t *testing.T) {
	// A sidecar name that, after stripping the suffix, doesn't start with a
	// dot should be returned as-is (aside from the suffix strip).
	sidecar := filepath.FromSlash("/mods/foo.jar.pandorachildstate")
	got := FoldDirtyPath(sidecar)
	want := filepath.FromSlash("/mods/foo.jar")
	if got != want {
		t.Errorf("FoldDirtyPath(%q) = %q, want %q", sidecar, got, want)
	}
}

func TestLoadMissingSidecarReturnsEmptyState(t *testing.T) {
	contentPath := filepath.Join(t.TempDir(), "foo.jar")
	state, err := Load(contentPath)
	if err != nil {
		t.Fatal("Load failed:", err)
	}
	if len(state.DisabledChildren) != 0 {
		t.Errorf("expected empty DisabledChildren, got %v", state.DisabledChildren)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	contentPath := filepath.Join(t.TempDir(), "foo.jar")
	state := &State{DisabledChildren: []string{"nested/a.jar", "nested/b.jar"}}

	if err := Save(contentPath, state, logging.RootLogger); err != nil {
		t.Fatal("Save failed:", err)
	}

	loaded, err := Load(contentPath)
	if err != nil {
		t.Fatal("Load failed:", err)
	}
	if len(loaded.DisabledChildren) != 2 {
		t.Fatalf("DisabledChildren = %v, want 2 entries", loaded.DisabledChildren)
	}
	if loaded.DisabledChildren[0] != "nested/a.jar" || loaded.DisabledChildren[1] != "nested/b.jar" {
		t.Errorf("DisabledChildren = %v, want [nested/a.jar nested/b.jar]", loaded.DisabledChildren)
	}
}

func TestSaveWithNoDisabledChildrenRemovesSidecar(t *testing.T) {
	contentPath := filepath.Join(t.TempDir(), "foo.jar")

	if err := Save(contentPath, &State{DisabledChildren: []string{"a.jar"}}, logging.RootLogger); err != nil {
		t.Fatal("Save failed:", err)
	}
	if _, err := os.Stat(SidecarPath(contentPath)); err != nil {
		t.Fatal("expected sidecar to exist after first save:", err)
	}

	if err := Save(contentPath, &State{}, logging.RootLogger); err != nil {
		t.Fatal("Save failed:", err)
	}
	if _, err := os.Stat(SidecarPath(contentPath)); !os.IsNotExist(err) {
		t.Error("expected sidecar to be removed once empty")
	}
}
