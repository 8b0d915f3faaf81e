package service

import (
	"log"
	"time"

	"github.com/cockroachdb/errors"

	"freya/domain/book"
	"freya/domain/claims"
	"freya/infra/snapshot"
	"freya/infra/wal"
)

/*
Boot rebuilds in-memory state: latest snapshot first, then WAL records
committed after it.

IMPORTANT:
- This MUST run before accepting traffic.
- The outbox is NOT replayed; the broadcaster drains it independently.
- Replay re-runs matching and fee arithmetic, so the fee and royalty
  configuration must match the one the journal was written under.
*/
func Boot(e *Engine, snapDir, walDir string) error {
	snap, err := snapshot.Load(snapDir)
	if err != nil {
		return errors.Wrap(err, "load snapshot")
	}
	var after uint64
	if snap != nil {
		if err := e.restore(snap); err != nil {
			return errors.Wrap(err, "restore snapshot")
		}
		after = snap.Seq
	}

	last, err := wal.Replay(walDir, after, e.apply)
	if err != nil {
		return errors.Wrap(err, "wal replay")
	}

	// Resume sequencing AFTER replay.
	e.events = last
	e.seq.Reset(e.maxID)

	log.Printf("[boot] state rebuilt (snapshot seq=%d, wal seq=%d, last order id=%d)", after, last, e.maxID)
	return nil
}

func (e *Engine) apply(rec *wal.Record) error {
	switch rec.Type {
	case wal.RecordSubmit:
		var p wal.SubmitPayload
		if err := p.Decode(rec.Data); err != nil {
			return err
		}
		// Only accepted submissions are journaled, so a replay failure
		// means the journal and the code disagree.
		_, err := e.doSubmit(p.Caller, book.Side(p.Side), p.Price, p.Qty, p.OrderID, false)
		return errors.Wrapf(err, "replay submit seq=%d", rec.Seq)

	case wal.RecordCancel:
		var p wal.CancelPayload
		if err := p.Decode(rec.Data); err != nil {
			return err
		}
		return errors.Wrapf(e.doCancel(p.Caller, p.OrderID, false), "replay cancel seq=%d", rec.Seq)

	case wal.RecordClaim:
		var p wal.ClaimPayload
		if err := p.Decode(rec.Data); err != nil {
			return err
		}
		e.ledger.Claim(p.Principal, p.OrderID)
		return nil

	case wal.RecordSettle:
		var p wal.SettlePayload
		if err := p.Decode(rec.Data); err != nil {
			return err
		}
		e.ledger.ClaimAll(p.Principal)
		return nil
	}
	return errors.Newf("replay: unknown record type %d at seq %d", rec.Type, rec.Seq)
}

func (e *Engine) restore(s *snapshot.Snapshot) error {
	if s.Asset != e.asset {
		return errors.Newf("snapshot asset %d, engine asset %d", s.Asset, e.asset)
	}
	for _, o := range s.Orders {
		if err := e.book.Restore(book.Order{
			ID:    o.ID,
			Side:  book.Side(o.Side),
			Price: o.Price,
			Qty:   o.Qty,
		}); err != nil {
			return err
		}
		e.owners.Assign(o.ID, o.Owner)
		if o.ID > e.maxID {
			e.maxID = o.ID
		}
	}
	for _, c := range s.Claims {
		e.ledger.Record(c.Principal, c.OrderID, c.AssetQty, c.Payment)
	}
	e.burned = s.Burned
	e.events = s.Seq
	return nil
}

// Snapshot captures the full engine state at the current sequence.
func (e *Engine) Snapshot() (*snapshot.Snapshot, error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.leave()

	s := &snapshot.Snapshot{
		Seq:     e.events,
		Asset:   e.asset,
		Burned:  e.burned,
		Created: time.Now(),
	}
	var walkErr error
	for _, side := range []book.Side{book.Bid, book.Ask} {
		e.book.Walk(side, func(price int64, orders []book.Order) bool {
			for _, o := range orders {
				owner, ok := e.owners.OwnerOf(o.ID)
				if !ok {
					walkErr = errors.AssertionFailedf("no owner for resting order %d", o.ID)
					return false
				}
				s.Orders = append(s.Orders, snapshot.OrderEntry{
					ID:    o.ID,
					Side:  int(o.Side),
					Price: o.Price,
					Qty:   o.Qty,
					Owner: owner,
				})
			}
			return true
		})
	}
	if walkErr != nil {
		return nil, walkErr
	}
	e.ledger.Each(func(c claims.Claim) bool {
		s.Claims = append(s.Claims, snapshot.ClaimEntry{
			Principal: c.Principal,
			OrderID:   c.OrderID,
			AssetQty:  c.AssetQty,
			Payment:   c.Payment,
		})
		return true
	})
	return s, nil
}
