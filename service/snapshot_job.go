package service

import (
	"context"
	"log"
	"time"

	"freya/infra/snapshot"
)

// StartSnapshotJob periodically persists engine state and truncates the
// journals it covers. A tick that collides with an in-flight call skips;
// the next tick catches up.
func (e *Engine) StartSnapshotJob(ctx context.Context, dir string, interval time.Duration) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s, err := e.Snapshot()
				if err != nil {
					continue
				}
				if err := snapshot.Save(dir, s); err != nil {
					log.Printf("[snapshot] save failed: %v", err)
					continue
				}
				if err := e.wal.TruncateBefore(s.Seq); err != nil {
					log.Printf("[snapshot] wal truncate: %v", err)
				}
				if err := e.outbox.TruncateAckedUpTo(s.Seq); err != nil {
					log.Printf("[snapshot] outbox truncate: %v", err)
				}
			}
		}
	}()
}
