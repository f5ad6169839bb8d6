package bus

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mutagen-io/mutagen/internal/archive"
	"github.com/mutagen-io/mutagen/internal/instance"
	"github.com/mutagen-io/mutagen/internal/slab"
	"github.com/mutagen-io/mutagen/internal/sourceindex"
	"github.com/mutagen-io/mutagen/internal/watch"
	"github.com/mutagen-io/mutagen/pkg/logging"
)

func newTestDispatcher(t *testing.T) (*Bus, *Dispatcher, *instance.Table) {
	t.Helper()
	instances := instance.NewTable()
	b := New()
	watchTable := watch.NewTable()
	watchDisp := watch.NewDispatcher(watchTable, instances, nil, logging.RootLogger)
	d := NewDispatcher(b, instances, t.TempDir(), watchDisp, archive.NewCache(), sourceindex.New(), nil, nil, logging.RootLogger)
	return b, d, instances
}

func TestDispatcherListInstances(t *testing.T) {
	b, d, instances := newTestDispatcher(t)

	root := t.TempDir()
	inst, err := instance.New(root, instance.Configuration{}, logging.RootLogger)
	if err != nil {
		t.Fatal(err)
	}
	instances.Insert(inst)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go d.Run(ctx, nil)

	resp, err := b.Send(ctx, Request{Kind: RequestListInstances})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Instances) != 1 {
		t.Fatalf("got %d instances, want 1", len(resp.Instances))
	}
	if resp.Instances[0].Root != root {
		t.Errorf("got root %q, want %q", resp.Instances[0].Root, root)
	}
}

func TestDispatcherLoadContentRoundTrip(t *testing.T) {
	b, d, instances := newTestDispatcher(t)

	root := t.TempDir()
	inst, err := instance.New(root, instance.Configuration{}, logging.RootLogger)
	if err != nil {
		t.Fatal(err)
	}
	handle := instances.Insert(inst)

	modsPath := filepath.Join(inst.GameRootPath, "mods")
	if err := os.MkdirAll(modsPath, 0700); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go d.Run(ctx, nil)

	resp, err := b.Send(ctx, Request{Kind: RequestLoadContent, Instance: handle, Folder: instance.ContentFolderMods})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Err != nil {
		t.Fatal(resp.Err)
	}
	if resp.Kind != ResponseContent {
		t.Errorf("resp.Kind = %v, want ResponseContent", resp.Kind)
	}
	if len(resp.Content) != 0 {
		t.Errorf("got %d content entries in an empty folder, want 0", len(resp.Content))
	}
}

func TestDispatcherUnknownInstanceReturnsError(t *testing.T) {
	b, d, _ := newTestDispatcher(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go d.Run(ctx, nil)

	resp, err := b.Send(ctx, Request{Kind: RequestLoadWorlds, Instance: slab.Handle{}})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Err == nil {
		t.Fatal("expected an error for an unknown instance handle")
	}
}

func TestDispatcherInstallWithoutLibraryReturnsError(t *testing.T) {
	b, d, _ := newTestDispatcher(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go d.Run(ctx, nil)

	resp, err := b.Send(ctx, Request{Kind: RequestInstallContent})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Err == nil {
		t.Fatal("expected an error when no library is configured")
	}
}
