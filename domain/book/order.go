package book

type Side int

const (
	Bid Side = iota
	Ask
)

func (s Side) String() string {
	if s == Ask {
		return "Ask"
	}
	return "Bid"
}

func (s Side) Opposite() Side {
	if s == Bid {
		return Ask
	}
	return Bid
}

// Packed word layout: identifier in the low 40 bits, remaining quantity in
// the high 24 bits. The widths are a storage contract, not a suggestion;
// anything wider fails the operation instead of truncating.
const (
	idBits  = 40
	qtyBits = 24

	idMask = 1<<idBits - 1

	// MaxOrderID bounds identifiers issued over the engine's lifetime.
	MaxOrderID = uint64(1)<<idBits - 1

	// MaxQty bounds the remaining quantity of a single order.
	MaxQty = uint32(1)<<qtyBits - 1

	// MaxPrice keeps price*qty within uint64 for fee arithmetic.
	MaxPrice = int64(1)<<idBits - 1
)

func packOrder(id uint64, qty uint32) uint64 {
	return id&idMask | uint64(qty)<<idBits
}

func orderID(w uint64) uint64 {
	return w & idMask
}

func orderQty(w uint64) uint32 {
	return uint32(w >> idBits)
}

// Order is the unpacked view handed across the package boundary. Inside a
// level the order exists only as a packed word; the owning principal is
// resolved through the identifier, never stored here.
type Order struct {
	ID    uint64
	Side  Side
	Price int64
	Qty   uint32
}
