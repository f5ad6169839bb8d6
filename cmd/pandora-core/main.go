// Command pandora-core runs the launcher backend daemon: it loads instances
// from the launcher data directory, watches them for filesystem changes,
// and serves frontend requests over the message bus. It takes no
// subcommands and no human-facing flags — the frontend that embeds or
// spawns this process is the only intended caller.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mutagen-io/mutagen/internal/archive"
	"github.com/mutagen-io/mutagen/internal/bus"
	"github.com/mutagen-io/mutagen/internal/instance"
	"github.com/mutagen-io/mutagen/internal/layout"
	"github.com/mutagen-io/mutagen/internal/library"
	"github.com/mutagen-io/mutagen/internal/slab"
	"github.com/mutagen-io/mutagen/internal/sourceindex"
	"github.com/mutagen-io/mutagen/internal/version"
	"github.com/mutagen-io/mutagen/internal/watch"
	"github.com/mutagen-io/mutagen/pkg/daemon"
	"github.com/mutagen-io/mutagen/pkg/housekeeping"
	"github.com/mutagen-io/mutagen/pkg/logging"
	"github.com/mutagen-io/mutagen/pkg/must"
)

// terminationSignals are the OS signals that trigger a clean shutdown.
var terminationSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

func main() {
	if err := run(); err != nil {
		logging.RootLogger.Error(fmt.Errorf("pandora-core: %w", err))
		os.Exit(1)
	}
}

func run() error {
	logger := logging.RootLogger.Sublogger("core")
	logger.Infof("starting pandora-core %s", version.String())

	dirs, err := layout.New()
	if err != nil {
		return fmt.Errorf("unable to compute data directory layout: %w", err)
	}
	if err := dirs.EnsureCreated(); err != nil {
		return fmt.Errorf("unable to create data directories: %w", err)
	}

	// Acquire the daemon lock and defer its release so that at most one
	// backend instance ever touches this data directory at a time.
	lock, err := daemon.AcquireLock(logger)
	if err != nil {
		return fmt.Errorf("unable to acquire daemon lock: %w", err)
	}
	defer must.Release(lock, logger)

	index, err := sourceindex.Load(dirs.ContentMetaDir)
	if err != nil {
		return fmt.Errorf("unable to load source index: %w", err)
	}
	cache := archive.NewCache()
	lib := library.New(dirs.ContentLibraryDir, nil)

	instances := instance.NewTable()
	watchTable := watch.NewTable()

	fsWatcher, err := watch.New(logger.Sublogger("watch"))
	if err != nil {
		return fmt.Errorf("unable to start filesystem watcher: %w", err)
	}
	defer must.Close(fsWatcher, logger)

	reg := newRegistry(dirs.InstancesDir, instances, watchTable, fsWatcher, logger.Sublogger("instances"))
	reg.watchTable.Subscribe(dirs.InstancesDir, dirs.InstancesDir, watch.Target{Kind: watch.TargetInstancesDir})
	if err := fsWatcher.Add(dirs.InstancesDir); err != nil {
		return fmt.Errorf("unable to watch instances directory: %w", err)
	}
	reg.rescan()

	watchDispatcher := watch.NewDispatcher(watchTable, instances, reg.rescan, logger.Sublogger("watch"))

	messageBus := bus.New()
	watchDispatcher.SetNotify(func(handle slab.Handle, kind watch.NotifyKind, folder instance.ContentFolder) {
		ev := bus.Event{Instance: handle, Folder: folder}
		switch kind {
		case watch.NotifyWorldsChanged:
			ev.Kind = bus.EventWorldsChanged
		case watch.NotifyServersChanged:
			ev.Kind = bus.EventServersChanged
		case watch.NotifyContentChanged:
			ev.Kind = bus.EventContentChanged
		default:
			return
		}
		messageBus.PublishEvent(ev)
	})
	dispatcher := bus.NewDispatcher(messageBus, instances, dirs.InstancesDir, watchDispatcher, cache, index, lib, nil, logger.Sublogger("bus"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	batches := make(chan []string, 16)
	go fsWatcher.Run(func(batch []string) {
		select {
		case batches <- batch:
		case <-ctx.Done():
		}
	})

	go housekeeping.Regularly(ctx, dirs, logger.Sublogger("housekeeping"))

	dispatcherDone := make(chan struct{})
	go func() {
		defer close(dispatcherDone)
		dispatcher.Run(ctx, batches)
	}()

	signalTermination := make(chan os.Signal, 1)
	signal.Notify(signalTermination, terminationSignals...)

	select {
	case sig := <-signalTermination:
		logger.Infof("terminating on signal: %s", sig)
	case <-dispatcherDone:
		logger.Info("dispatcher terminated unexpectedly")
	}

	cancel()
	if err := index.Save(dirs.ContentMetaDir, logger); err != nil {
		logger.Warnf("unable to persist source index on shutdown: %v", err)
	}

	return nil
}
