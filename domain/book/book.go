package book

import "github.com/cockroachdb/errors"

// Book holds one side-pair of price indices plus the resting-order index.
// One instance trades one asset identifier against one payment asset; there
// are no globals, callers build as many books as they need.
type Book struct {
	bids *priceTree
	asks *priceTree

	// resting locates a live order's level for arbitrary-position
	// cancellation without scanning both trees.
	resting map[uint64]restingRef

	minQty uint32
}

type restingRef struct {
	side  Side
	price int64
}

// Fill is one consumed slice of a resting order. Trades execute at the
// resting level's price.
type Fill struct {
	MakerOrderID uint64
	Price        int64
	Qty          uint32
	MakerRemoved bool
}

// Result of a submission. RestingID is o.ID when a remainder rested.
type Result struct {
	Filled uint32
	Fills  []Fill
	Rested bool
}

// NewBook creates an empty book. minQty is the floor gating new resting
// orders; it never gates consumption or partial-fill decay.
func NewBook(minQty uint32) *Book {
	return &Book{
		bids:    newPriceTree(),
		asks:    newPriceTree(),
		resting: make(map[uint64]restingRef),
		minQty:  minQty,
	}
}

func (b *Book) MinQty() uint32 { return b.minQty }

// Levels reports resident price levels per side.
func (b *Book) Levels(side Side) int {
	return b.tree(side).len()
}

// BestPrice returns the best resident price for a side: highest for bids,
// lowest for asks. ok is false on an empty side.
func (b *Book) BestPrice(side Side) (int64, bool) {
	if side == Bid {
		p, _, ok := b.bids.max()
		return p, ok
	}
	p, _, ok := b.asks.min()
	return p, ok
}

// NextPrice returns the next better resident price after the given one:
// the next lower bid, or the next higher ask.
func (b *Book) NextPrice(side Side, price int64) (int64, bool) {
	if side == Bid {
		return b.bids.below(price)
	}
	return b.asks.above(price)
}

// LevelQty returns the total resident quantity at one price level.
func (b *Book) LevelQty(side Side, price int64) uint64 {
	q := b.tree(side).find(price)
	if q == nil {
		return 0
	}
	return q.totalQty
}

// Contains reports whether the identifier is resting in the book.
func (b *Book) Contains(orderID uint64) bool {
	_, ok := b.resting[orderID]
	return ok
}

// Submit matches the incoming order against the opposite side and rests any
// remainder at or above the floor. Strict price priority across levels,
// strict arrival order within a level. Bound and floor violations fail
// before anything is mutated.
func (b *Book) Submit(o Order) (Result, error) {
	if err := b.validate(o); err != nil {
		return Result{}, err
	}

	remaining := o.Qty
	var fills []Fill

	opp := b.tree(o.Side.Opposite())
	for remaining > 0 {
		price, q, ok := b.bestOf(o.Side.Opposite())
		if !ok || !crosses(o.Side, o.Price, price) {
			break
		}
		for remaining > 0 && !q.empty() {
			makerID, consumed, removed := q.consumeFront(remaining)
			remaining -= consumed
			fills = append(fills, Fill{
				MakerOrderID: makerID,
				Price:        price,
				Qty:          consumed,
				MakerRemoved: removed,
			})
			if removed {
				delete(b.resting, makerID)
			}
		}
		if q.empty() {
			opp.delete(price)
		}
	}

	res := Result{Filled: o.Qty - remaining, Fills: fills}
	if remaining == 0 {
		return res, nil
	}

	// Dust below the floor is dropped, never left resting. The floor only
	// blocks the remainder of a partially filled order here; a brand-new
	// order below the floor was already rejected by validate.
	if remaining < b.minQty {
		return res, nil
	}

	same := b.tree(o.Side)
	q := same.upsert(o.Price)
	if err := q.append(o.ID, remaining); err != nil {
		if q.empty() {
			same.delete(o.Price)
		}
		return Result{}, err
	}
	b.resting[o.ID] = restingRef{side: o.Side, price: o.Price}
	res.Rested = true
	return res, nil
}

// Cancel removes a resting order from anywhere in its level, compacting the
// queue, and drops the level node if it empties. Ownership checks belong to
// the caller; the book only knows identifiers.
func (b *Book) Cancel(orderID uint64) (Order, error) {
	ref, ok := b.resting[orderID]
	if !ok {
		return Order{}, errors.Wrapf(ErrNotFound, "order %d", orderID)
	}
	tree := b.tree(ref.side)
	q := tree.find(ref.price)
	if q == nil {
		return Order{}, errors.AssertionFailedf("order %d indexed at missing level %d/%v", orderID, ref.price, ref.side)
	}
	qty, ok := q.removeAt(orderID)
	if !ok {
		// resting index and level queue disagree
		return Order{}, errors.AssertionFailedf("order %d indexed at %d/%v but not queued", orderID, ref.price, ref.side)
	}
	if q.empty() {
		tree.delete(ref.price)
	}
	delete(b.resting, orderID)
	return Order{ID: orderID, Side: ref.side, Price: ref.price, Qty: qty}, nil
}

// Restore rests an order without matching or floor checks. Used only when
// rebuilding from a snapshot.
func (b *Book) Restore(o Order) error {
	if o.Qty == 0 || o.Qty > MaxQty || o.ID > MaxOrderID {
		return errors.Wrapf(ErrBoundExceeded, "restore order %d", o.ID)
	}
	q := b.tree(o.Side).upsert(o.Price)
	if err := q.append(o.ID, o.Qty); err != nil {
		return err
	}
	b.resting[o.ID] = restingRef{side: o.Side, price: o.Price}
	return nil
}

// Walk visits levels best-first, handing each level's orders in arrival
// order. Used by snapshots and the depth feed.
func (b *Book) Walk(side Side, fn func(price int64, orders []Order) bool) {
	visit := func(price int64, q *levelQueue) bool {
		orders := make([]Order, 0, q.len())
		q.each(func(id uint64, qty uint32) bool {
			orders = append(orders, Order{ID: id, Side: side, Price: price, Qty: qty})
			return true
		})
		return fn(price, orders)
	}
	if side == Bid {
		b.bids.descend(visit)
	} else {
		b.asks.ascend(visit)
	}
}

func (b *Book) validate(o Order) error {
	switch {
	case o.Qty == 0 || o.Qty > MaxQty:
		return errors.Wrapf(ErrBoundExceeded, "quantity %d (max %d)", o.Qty, MaxQty)
	case o.ID > MaxOrderID:
		return errors.Wrapf(ErrBoundExceeded, "order id %d (max %d)", o.ID, MaxOrderID)
	case o.Price <= 0 || o.Price > MaxPrice:
		return errors.Wrapf(ErrBoundExceeded, "price %d", o.Price)
	case o.Qty < b.minQty:
		return errors.Wrapf(ErrBelowMinimum, "quantity %d (floor %d)", o.Qty, b.minQty)
	}
	if _, ok := b.resting[o.ID]; ok {
		return errors.Wrapf(ErrBoundExceeded, "duplicate order id %d", o.ID)
	}
	// The lifetime counter of the target level is checked before matching
	// so a failed submission mutates nothing.
	if q := b.tree(o.Side).find(o.Price); q != nil && q.lifetime >= maxLevelLifetime {
		return errors.Wrapf(ErrBoundExceeded, "level %d lifetime order count", o.Price)
	}
	return nil
}

func (b *Book) tree(side Side) *priceTree {
	if side == Bid {
		return b.bids
	}
	return b.asks
}

func (b *Book) bestOf(side Side) (int64, *levelQueue, bool) {
	if side == Bid {
		return b.bids.max()
	}
	return b.asks.min()
}

// crosses reports whether an incoming order at limit trades against the
// best opposite price.
func crosses(incoming Side, limit, best int64) bool {
	if incoming == Bid {
		return limit >= best
	}
	return limit <= best
}
