package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"freya/infra/stream"
)

// StartDepthJob publishes a depth snapshot on every tick. The feed is
// advisory; a tick that loses to an in-flight call is dropped.
func (e *Engine) StartDepthJob(ctx context.Context, pub *stream.DepthPublisher, levels int, interval time.Duration) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				d, err := e.DepthSnapshot(levels)
				if err != nil {
					continue
				}
				payload, err := json.Marshal(d)
				if err != nil {
					log.Printf("[depth] encode: %v", err)
					continue
				}
				if err := pub.Publish(ctx, d.Asset, payload); err != nil {
					log.Printf("[depth] publish: %v", err)
				}
			}
		}
	}()
}
