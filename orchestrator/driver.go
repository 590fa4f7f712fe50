package orchestrator

import (
	"context"

	"golang.org/x/sync/errgroup"

	"wikidat.dev/wiki"
)

// Driver pulls dump descriptors off a shared queue and runs each through the
// Orchestrator, per §4.7: "dump files are drawn from a shared queue
// terminated by a STOP sentinel; each consumed path acknowledges completion
// so the queue reaches empty only when all dumps are done." A STOP sentinel
// is a nil *wiki.Dump; the caller must send one per worker.
type Driver struct {
	Orchestrator *Orchestrator
	Workers      int
}

// Run starts Workers goroutines pulling from dumps until each has received
// its STOP sentinel, running RunDump for every non-nil value in between.
// The first worker error cancels the remaining ones via the shared context.
func (d *Driver) Run(ctx context.Context, dumps <-chan *wiki.Dump) error {
	g, gctx := errgroup.WithContext(ctx)
	workers := d.Workers
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return gctx.Err()
				case dump, ok := <-dumps:
					if !ok || dump == nil {
						return nil
					}
					if err := d.Orchestrator.RunDump(gctx, *dump); err != nil {
						return err
					}
				}
			}
		})
	}
	return g.Wait()
}
