package registry

import (
	"context"
	"time"

	"github.com/netring-io/netring/pkg/supervisor"
)

// StartCleanupTask registers the cleanup sweep (spec.md §4.1) under
// sup, running once per interval.
func (d *Directory) StartCleanupTask(sup *supervisor.Supervisor, interval time.Duration) {
	sup.Go("cleanup-sweep", func(ctx context.Context, tick func()) error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if err := d.CleanupSweep(ctx); err != nil {
					return err
				}
				tick()
			}
		}
	})
}
