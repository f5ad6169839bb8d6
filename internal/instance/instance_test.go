package instance

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mutagen-io/mutagen/pkg/logging"
)

func TestNewDerivesPaths(t *testing.T) {
	root := filepath.FromSlash("/instances/Survival")
	inst, err := New(root, Configuration{}, logging.RootLogger)
	if err != nil {
		t.Fatal(err)
	}
	if inst.Name != "Survival" {
		t.Errorf("Name = %q, want Survival", inst.Name)
	}
	if inst.GameRootPath != filepath.Join(root, ".minecraft") {
		t.Errorf("GameRootPath = %q", inst.GameRootPath)
	}
	if inst.SavesPath != filepath.Join(root, ".minecraft", "saves") {
		t.Errorf("SavesPath = %q", inst.SavesPath)
	}
	for _, folder := range contentFolders {
		if inst.content[folder] == nil {
			t.Errorf("missing content folder state for %v", folder)
		}
	}
}

func TestLoadFromFolderRequiresConfiguration(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadFromFolder(dir, logging.RootLogger); err == nil {
		t.Error("expected an error for a directory with no info_v1.json")
	}
}

func TestLoadFromFolderRejectsNonDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(path, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFolder(path, logging.RootLogger); err != ErrNotADirectory {
		t.Errorf("err = %v, want ErrNotADirectory", err)
	}
}

func TestLoadFromFolderSucceedsWithConfiguration(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "info_v1.json"), []byte(`{"minecraft_version":"1.20.1"}`), 0600); err != nil {
		t.Fatal(err)
	}

	inst, err := LoadFromFolder(dir, logging.RootLogger)
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := inst.Configuration.Get()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MinecraftVersion != "1.20.1" {
		t.Errorf("MinecraftVersion = %q", cfg.MinecraftVersion)
	}
}

func TestOnRootRenamedUpdatesDerivedPaths(t *testing.T) {
	oldRoot := filepath.FromSlash("/instances/Old")
	inst, err := New(oldRoot, Configuration{}, logging.RootLogger)
	if err != nil {
		t.Fatal(err)
	}
	newRoot := filepath.FromSlash("/instances/New")
	inst.OnRootRenamed(newRoot, logging.RootLogger)

	if inst.Name != "New" {
		t.Errorf("Name = %q, want New", inst.Name)
	}
	if inst.GameRootPath != filepath.Join(newRoot, ".minecraft") {
		t.Errorf("GameRootPath = %q", inst.GameRootPath)
	}
	if inst.content[ContentFolderMods].path != filepath.Join(newRoot, ".minecraft", "mods") {
		t.Errorf("mods path = %q", inst.content[ContentFolderMods].path)
	}
}

func TestTableInsertGetRemove(t *testing.T) {
	table := NewTable()
	inst, err := New(t.TempDir(), Configuration{}, logging.RootLogger)
	if err != nil {
		t.Fatal(err)
	}
	handle := table.Insert(inst)

	got, ok := table.Get(handle)
	if !ok || got != inst {
		t.Fatalf("Get returned (%v, %v), want (inst, true)", got, ok)
	}

	removed, ok := table.Remove(handle)
	if !ok || removed != inst {
		t.Fatalf("Remove returned (%v, %v), want (inst, true)", removed, ok)
	}

	if _, ok := table.Get(handle); ok {
		t.Error("expected Get to fail after Remove")
	}
}

func TestLoadStateCAS(t *testing.T) {
	var s loadState
	s.store(StateLoaded)

	s.cas(func(current State) State {
		if current == StateLoaded {
			return StateUnloaded
		}
		return current
	})
	if s.load() != StateUnloaded {
		t.Errorf("load() = %v, want Unloaded", s.load())
	}
}

func TestLoadSignalFireWakesAwaiter(t *testing.T) {
	signal := newLoadSignal()
	done := make(chan struct{})

	go func() {
		signal.await(context.Background())
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	if signal.notified() {
		t.Error("expected not notified before fire")
	}

	signal.fire()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("await did not return after fire")
	}
	if !signal.notified() {
		t.Error("expected notified after fire")
	}
}
