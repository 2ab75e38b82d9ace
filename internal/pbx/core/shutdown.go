package core

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// maxConcurrentCloses bounds how many sinks are closed at once during
// shutdown, mirroring the bounded fan-out pattern used elsewhere for
// migrations: closing thousands of sockets at once is wasteful and closing
// them one at a time is slow.
const maxConcurrentCloses = 64

// closeAll force-closes every sink concurrently, up to maxConcurrentCloses
// at a time. Close errors are logged, not returned; the only error returned
// is ctx's, when it ends before every close has been started. A slow or
// wedged Close on one sink cannot block the others past ctx's deadline.
func closeAll(ctx context.Context, log Logger, sinks []Sink) error {
	if len(sinks) == 0 {
		return nil
	}

	sem := semaphore.NewWeighted(maxConcurrentCloses)
	g, gctx := errgroup.WithContext(ctx)

	for _, sink := range sinks {
		sink := sink
		if err := sem.Acquire(gctx, 1); err != nil {
			return err
		}
		g.Go(func() error {
			defer sem.Release(1)
			if err := sink.Close(); err != nil {
				log.Warn("sink close failed during shutdown", "error", err)
			}
			return nil
		})
	}

	return g.Wait()
}
