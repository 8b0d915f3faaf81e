// Package settler periodically sweeps pending claims for house principals
// (dev-fee and royalty recipients) through custody, so operator revenue
// does not rely on anyone calling Claim by hand. User claims stay
// pull-based.
package settler

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"freya/service"
)

type Settler struct {
	engine     *service.Engine
	principals []uint64
	interval   time.Duration
}

func New(engine *service.Engine, principals []uint64, interval time.Duration) *Settler {
	return &Settler{
		engine:     engine,
		principals: principals,
		interval:   interval,
	}
}

func (s *Settler) Start(ctx context.Context) {
	go func() {
		t := time.NewTicker(s.interval)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.sweep(ctx)
			}
		}
	}()
}

func (s *Settler) sweep(ctx context.Context) {
	batch := uuid.NewString()
	for _, p := range s.principals {
		assetQty, payment, err := s.engine.Settle(ctx, p)
		if err != nil {
			// ErrReentrant here just means the engine was busy; retry
			// on the next tick either way
			continue
		}
		if assetQty == 0 && payment == 0 {
			continue
		}
		log.Printf("[settler] batch=%s principal=%d asset=%d payment=%d", batch, p, assetQty, payment)
	}
}
