package book

import "github.com/cockroachdb/errors"

// segmentSlots mirrors the persisted layout of four packed orders per
// storage word.
const segmentSlots = 4

// maxLevelLifetime caps the orders ever appended at one price level. The
// counter never decreases; it is a lifetime bound, not an occupancy bound.
const maxLevelLifetime = uint64(1) << 34

type segment [segmentSlots]uint64

// levelQueue is the FIFO of packed orders resting at one exact price.
// head and tail are logical slot indices into the segment window; every
// slot in [head, tail) holds a live order. Cancellation closes its gap by
// shifting later slots forward, so the window is contiguous at all times.
type levelQueue struct {
	segs     []*segment
	head     int
	tail     int
	totalQty uint64
	lifetime uint64
}

func (q *levelQueue) len() int    { return q.tail - q.head }
func (q *levelQueue) empty() bool { return q.head == q.tail }

func (q *levelQueue) slot(i int) *uint64 {
	return &q.segs[i/segmentSlots][i%segmentSlots]
}

// append admits one order at the back of the queue, growing the segment
// window lazily. Floor policy is the caller's concern; append only enforces
// the lifetime bound.
func (q *levelQueue) append(id uint64, qty uint32) error {
	if q.lifetime >= maxLevelLifetime {
		return errors.Wrapf(ErrBoundExceeded, "level lifetime order count %d", q.lifetime)
	}
	if q.tail == len(q.segs)*segmentSlots {
		q.segs = append(q.segs, new(segment))
	}
	*q.slot(q.tail) = packOrder(id, qty)
	q.tail++
	q.lifetime++
	q.totalQty += uint64(qty)
	return nil
}

func (q *levelQueue) peekFront() (id uint64, qty uint32, ok bool) {
	if q.empty() {
		return 0, 0, false
	}
	w := *q.slot(q.head)
	return orderID(w), orderQty(w), true
}

// consumeFront takes up to want units from the front order. The front order
// is removed when it empties and reduced in place otherwise; a partial fill
// may legally leave it below the admission floor.
func (q *levelQueue) consumeFront(want uint32) (id uint64, consumed uint32, removed bool) {
	if q.empty() || want == 0 {
		return 0, 0, false
	}
	w := *q.slot(q.head)
	id = orderID(w)
	qty := orderQty(w)
	if want >= qty {
		consumed = qty
		removed = true
		q.advanceHead()
	} else {
		consumed = want
		*q.slot(q.head) = packOrder(id, qty-consumed)
	}
	q.totalQty -= uint64(consumed)
	return id, consumed, removed
}

// removeAt deletes the order with the given identifier from anywhere in the
// queue, shifting every later entry one slot earlier (across segment
// boundaries) so no hole is left mid-queue.
func (q *levelQueue) removeAt(id uint64) (qty uint32, ok bool) {
	pos := -1
	for i := q.head; i < q.tail; i++ {
		if orderID(*q.slot(i)) == id {
			pos = i
			qty = orderQty(*q.slot(i))
			break
		}
	}
	if pos < 0 {
		return 0, false
	}
	for i := pos; i < q.tail-1; i++ {
		*q.slot(i) = *q.slot(i + 1)
	}
	q.tail--
	*q.slot(q.tail) = 0
	q.totalQty -= uint64(qty)
	q.trimTail()
	return qty, true
}

// advanceHead drops the front slot and releases leading segments once they
// are fully consumed. Segments are never handed to another level.
func (q *levelQueue) advanceHead() {
	*q.slot(q.head) = 0
	q.head++
	for q.head >= segmentSlots {
		q.segs = q.segs[1:]
		q.head -= segmentSlots
		q.tail -= segmentSlots
	}
	q.trimTail()
}

func (q *levelQueue) trimTail() {
	for len(q.segs) > 0 && q.tail <= (len(q.segs)-1)*segmentSlots {
		q.segs = q.segs[:len(q.segs)-1]
	}
	if q.empty() {
		q.head, q.tail = 0, 0
	}
}

// each visits live orders front to back.
func (q *levelQueue) each(fn func(id uint64, qty uint32) bool) {
	for i := q.head; i < q.tail; i++ {
		w := *q.slot(i)
		if !fn(orderID(w), orderQty(w)) {
			return
		}
	}
}
