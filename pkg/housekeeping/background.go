package housekeeping

import (
	"context"
	"time"

	"github.com/mutagen-io/mutagen/internal/layout"
	"github.com/mutagen-io/mutagen/pkg/logging"
)

const (
	// housekeepingInterval is the interval at which housekeeping will be
	// invoked by the daemon.
	housekeepingInterval = 24 * time.Hour
)

// Regularly provides regular housekeeping operations at a standard interval.
// It is designed to be run as a background Goroutine in the daemon process.
// It terminates when the provided context is cancelled.
func Regularly(ctx context.Context, dirs *layout.Directories, logger *logging.Logger) {
	// Perform an initial housekeeping operation since the ticker won't fire
	// straight away.
	logger.Info("Performing initial housekeeping")
	Housekeep(dirs, logger)

	// Create a ticker to regulate housekeeping and defer its shutdown.
	ticker := time.NewTicker(housekeepingInterval)
	defer ticker.Stop()

	// Loop and wait for the ticker or cancellation.
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Info("Performing regular housekeeping")
			Housekeep(dirs, logger)
		}
	}
}
