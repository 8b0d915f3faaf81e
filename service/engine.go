package service

import (
	"context"
	"encoding/json"
	"log"
	"sync/atomic"

	"github.com/cockroachdb/errors"

	"freya/domain/book"
	"freya/domain/claims"
	"freya/domain/market"
	"freya/infra/outbox"
	"freya/infra/sequence"
	"freya/infra/wal"
)

/*
Engine is the ONLY write entry point into the system.

All coordination between:
- domain (book, claims)
- collaborators (custody, royalty, owners)
- infra (wal, outbox)
happens here.

The execution model is single-writer: the host (or the gRPC adapter)
serializes calls, and the guard below turns a collaborator callback that
re-enters a public entry point into ErrReentrant instead of corrupted
state. Book, ledger and owner mutations always complete before any
collaborator is invoked.
*/
type Engine struct {
	inCall atomic.Bool

	asset uint64
	fees  market.FeeConfig

	book   *book.Book
	ledger *claims.Ledger
	owners market.Owners

	royalty market.RoyaltySource
	custody market.Custody

	seq    *sequence.Sequencer
	wal    *wal.WAL
	outbox *outbox.Outbox

	events uint64 // WAL/outbox sequence, distinct from order identifiers
	burned uint64
	maxID  uint64 // highest order id seen, for sequencer resume
}

// NewEngine wires all dependencies. No globals: each tradable asset pair
// gets its own Engine over its own book, ledger and journals.
func NewEngine(
	asset uint64,
	fees market.FeeConfig,
	b *book.Book,
	ledger *claims.Ledger,
	owners market.Owners,
	royalty market.RoyaltySource,
	custody market.Custody,
	seq *sequence.Sequencer,
	w *wal.WAL,
	ob *outbox.Outbox,
) *Engine {
	return &Engine{
		asset:   asset,
		fees:    fees,
		book:    b,
		ledger:  ledger,
		owners:  owners,
		royalty: royalty,
		custody: custody,
		seq:     seq,
		wal:     w,
		outbox:  ob,
	}
}

// SubmitResult reports one submission. OrderID is always assigned, even for
// fully filled orders, so claims can reference it. Err is set only inside
// batch results.
type SubmitResult struct {
	OrderID uint64
	Filled  uint32
	Rested  bool
	Err     error
}

// Submission is one entry of a batch.
type Submission struct {
	Side  book.Side
	Price int64
	Qty   uint32
}

// TradeEvent is the outbox payload published per matched fill.
type TradeEvent struct {
	V            int    `json:"v"`
	Seq          uint64 `json:"seq"`
	Asset        uint64 `json:"asset"`
	Maker        uint64 `json:"maker"`
	Taker        uint64 `json:"taker"`
	MakerOrderID uint64 `json:"maker_order_id"`
	TakerOrderID uint64 `json:"taker_order_id"`
	Price        int64  `json:"price"`
	Qty          uint32 `json:"qty"`
	Royalty      uint64 `json:"royalty"`
	DevFee       uint64 `json:"dev_fee"`
	Burned       uint64 `json:"burned"`
	NetProceeds  uint64 `json:"net_proceeds"`
}

//
// ──────────────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────────────
//

// Submit matches the order and rests any remainder at or above the floor.
func (e *Engine) Submit(caller uint64, side book.Side, price int64, qty uint32) (SubmitResult, error) {
	if err := e.enter(); err != nil {
		return SubmitResult{}, err
	}
	defer e.leave()
	return e.doSubmit(caller, side, price, qty, 0, true)
}

// SubmitBatch applies entries sequentially with no isolation between them:
// an earlier entry may create or consume a level a later entry sees.
// BelowMinimum and BoundExceeded fail only the offending entry.
func (e *Engine) SubmitBatch(caller uint64, subs []Submission) ([]SubmitResult, error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.leave()

	out := make([]SubmitResult, 0, len(subs))
	for _, sub := range subs {
		res, err := e.doSubmit(caller, sub.Side, sub.Price, sub.Qty, 0, true)
		res.Err = err
		out = append(out, res)
	}
	return out, nil
}

// Cancel removes a resting order owned by caller.
func (e *Engine) Cancel(caller, orderID uint64) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()
	return e.doCancel(caller, orderID, true)
}

// CancelBatch is best-effort: a NotFound or Unauthorized entry fails alone,
// siblings proceed, nothing rolls back.
func (e *Engine) CancelBatch(caller uint64, orderIDs []uint64) ([]error, error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.leave()

	out := make([]error, 0, len(orderIDs))
	for _, id := range orderIDs {
		out = append(out, e.doCancel(caller, id, true))
	}
	return out, nil
}

// Claim pays out and zeroes whatever is pending for (caller, orderID).
// Nothing pending is a valid zero result. Ledger state is final before
// custody is invoked; a failed transfer restores the claim.
func (e *Engine) Claim(ctx context.Context, caller, orderID uint64) (assetQty, payment uint64, err error) {
	if err := e.enter(); err != nil {
		return 0, 0, err
	}
	defer e.leave()

	assetQty, payment = e.ledger.Claim(caller, orderID)
	if assetQty == 0 && payment == 0 {
		return 0, 0, nil
	}
	if err := e.custody.TransferOut(ctx, caller, assetQty, payment); err != nil {
		e.ledger.Record(caller, orderID, assetQty, payment)
		return 0, 0, err
	}
	e.journal(wal.RecordClaim, (&wal.ClaimPayload{Principal: caller, OrderID: orderID}).Encode())
	return assetQty, payment, nil
}

// Settle drains every claim pending for one principal in a single payout.
func (e *Engine) Settle(ctx context.Context, principal uint64) (assetQty, payment uint64, err error) {
	if err := e.enter(); err != nil {
		return 0, 0, err
	}
	defer e.leave()

	assetQty, payment = e.ledger.ClaimAll(principal)
	if assetQty == 0 && payment == 0 {
		return 0, 0, nil
	}
	if err := e.custody.TransferOut(ctx, principal, assetQty, payment); err != nil {
		// payout failed; park the aggregate under order 0 so it stays
		// claimable
		e.ledger.Record(principal, 0, assetQty, payment)
		return 0, 0, err
	}
	e.journal(wal.RecordSettle, (&wal.SettlePayload{Principal: principal}).Encode())
	return assetQty, payment, nil
}

//
// ──────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────
//

type DepthLevel struct {
	Price  int64  `json:"price"`
	Qty    uint64 `json:"qty"`
	Orders int    `json:"orders"`
}

type Depth struct {
	Asset uint64       `json:"asset"`
	Seq   uint64       `json:"seq"`
	Bids  []DepthLevel `json:"bids"`
	Asks  []DepthLevel `json:"asks"`
}

// DepthSnapshot returns up to limit levels per side, best-first.
func (e *Engine) DepthSnapshot(limit int) (Depth, error) {
	if err := e.enter(); err != nil {
		return Depth{}, err
	}
	defer e.leave()

	d := Depth{Asset: e.asset, Seq: e.events}
	collect := func(side book.Side, into *[]DepthLevel) {
		e.book.Walk(side, func(price int64, orders []book.Order) bool {
			var qty uint64
			for _, o := range orders {
				qty += uint64(o.Qty)
			}
			*into = append(*into, DepthLevel{Price: price, Qty: qty, Orders: len(orders)})
			return limit <= 0 || len(*into) < limit
		})
	}
	collect(book.Bid, &d.Bids)
	collect(book.Ask, &d.Asks)
	return d, nil
}

// Pending reads the amounts owed to a principal from one order without
// clearing them.
func (e *Engine) Pending(principal, orderID uint64) (assetQty, payment uint64, err error) {
	if err := e.enter(); err != nil {
		return 0, 0, err
	}
	defer e.leave()
	assetQty, payment = e.ledger.Pending(principal, orderID)
	return assetQty, payment, nil
}

// Burned reports the cumulative burn-fee total.
func (e *Engine) Burned() uint64 { return e.burned }

//
// ──────────────────────────────────────────────────────────
// Internals
// ──────────────────────────────────────────────────────────
//

func (e *Engine) doSubmit(caller uint64, side book.Side, price int64, qty uint32, replayID uint64, journal bool) (SubmitResult, error) {
	id := replayID
	if id == 0 {
		var err error
		if id, err = e.seq.Next(); err != nil {
			return SubmitResult{}, errors.Mark(err, book.ErrBoundExceeded)
		}
	}
	if id > e.maxID {
		e.maxID = id
	}

	res, err := e.book.Submit(book.Order{ID: id, Side: side, Price: price, Qty: qty})
	if err != nil {
		return SubmitResult{OrderID: id}, err
	}
	if res.Rested {
		e.owners.Assign(id, caller)
	}

	// Book state is final; fee arithmetic, claims and journaling follow.
	// RoyaltyInfo is an external collaborator, hence the entry guard.
	var takerAsset, takerPayment uint64
	for _, fill := range res.Fills {
		maker, ok := e.owners.OwnerOf(fill.MakerOrderID)
		if !ok {
			return SubmitResult{OrderID: id}, errors.AssertionFailedf("no owner for resting order %d", fill.MakerOrderID)
		}

		proceeds := uint64(fill.Price) * uint64(fill.Qty)
		devFee := e.fees.DevFee(proceeds)
		burnFee := e.fees.BurnFee(proceeds)
		royaltyTo, royalty := e.royalty.RoyaltyInfo(e.asset, proceeds)
		if max := proceeds - devFee - burnFee; royalty > max {
			royalty = max
		}
		net := proceeds - devFee - burnFee - royalty

		if side == book.Bid {
			// taker buys: maker is owed the proceeds, taker the asset
			e.ledger.Record(maker, fill.MakerOrderID, 0, net)
			takerAsset += uint64(fill.Qty)
		} else {
			// taker sells: maker is owed the asset, taker the proceeds
			e.ledger.Record(maker, fill.MakerOrderID, uint64(fill.Qty), 0)
			takerPayment += net
		}
		e.ledger.Record(royaltyTo, fill.MakerOrderID, 0, royalty)
		e.ledger.Record(e.fees.DevRecipient, fill.MakerOrderID, 0, devFee)
		e.burned += burnFee

		if fill.MakerRemoved {
			e.owners.Release(fill.MakerOrderID)
		}

		if journal {
			e.emitTrade(caller, maker, id, fill, royalty, devFee, burnFee, net)
		}
	}
	if takerAsset > 0 || takerPayment > 0 {
		e.ledger.Record(caller, id, takerAsset, takerPayment)
	}

	if journal {
		e.journal(wal.RecordSubmit, (&wal.SubmitPayload{
			Caller:  caller,
			OrderID: id,
			Side:    uint8(side),
			Price:   price,
			Qty:     qty,
		}).Encode())
	}

	return SubmitResult{OrderID: id, Filled: res.Filled, Rested: res.Rested}, nil
}

func (e *Engine) doCancel(caller, orderID uint64, journal bool) error {
	owner, ok := e.owners.OwnerOf(orderID)
	if !ok {
		return errors.Wrapf(book.ErrNotFound, "order %d", orderID)
	}
	if owner != caller {
		return errors.Wrapf(book.ErrUnauthorized, "order %d", orderID)
	}
	if _, err := e.book.Cancel(orderID); err != nil {
		return err
	}
	e.owners.Release(orderID)

	if journal {
		e.journal(wal.RecordCancel, (&wal.CancelPayload{Caller: caller, OrderID: orderID}).Encode())
	}
	return nil
}

func (e *Engine) emitTrade(taker, maker, takerOrderID uint64, fill book.Fill, royalty, devFee, burnFee, net uint64) {
	seq := e.nextEvent()
	ev := TradeEvent{
		V:            1,
		Seq:          seq,
		Asset:        e.asset,
		Maker:        maker,
		Taker:        taker,
		MakerOrderID: fill.MakerOrderID,
		TakerOrderID: takerOrderID,
		Price:        fill.Price,
		Qty:          fill.Qty,
		Royalty:      royalty,
		DevFee:       devFee,
		Burned:       burnFee,
		NetProceeds:  net,
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[engine] encode trade event seq=%d: %v", seq, err)
		return
	}
	if err := e.outbox.Put(seq, payload); err != nil {
		log.Printf("[engine] outbox put seq=%d: %v", seq, err)
	}
}

func (e *Engine) journal(t wal.RecordType, payload []byte) {
	seq := e.nextEvent()
	if err := e.wal.Append(wal.NewRecord(t, seq, payload)); err != nil {
		log.Printf("[engine] wal append seq=%d type=%d: %v", seq, t, err)
	}
}

func (e *Engine) nextEvent() uint64 {
	e.events++
	return e.events
}

func (e *Engine) enter() error {
	if !e.inCall.CompareAndSwap(false, true) {
		return errors.WithStack(book.ErrReentrant)
	}
	return nil
}

func (e *Engine) leave() {
	e.inCall.Store(false)
}
