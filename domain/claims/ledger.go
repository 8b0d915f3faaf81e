// Package claims holds amounts owed to principals from completed matches.
// Matching never moves assets; it records a claim here and settlement pays
// it out later, so a claim's lifecycle is independent of the order that
// produced it.
package claims

// Claim is one pending entitlement: asset units and/or payment owed to a
// principal, attributed to the order that earned it.
type Claim struct {
	Principal uint64
	OrderID   uint64
	AssetQty  uint64
	Payment   uint64
}

type key struct {
	principal uint64
	orderID   uint64
}

// Ledger stores claims in an index-addressed arena: records live in dense
// slots, freed slots are recycled through a free list, and lookups go
// through the (principal, orderID), per-order and per-principal indexes.
// No pointers into the arena escape.
type Ledger struct {
	slots []Claim
	free  []uint32

	byKey       map[key]uint32
	byOrder     map[uint64][]uint32
	byPrincipal map[uint64][]uint32
}

func NewLedger() *Ledger {
	return &Ledger{
		byKey:       make(map[key]uint32),
		byOrder:     make(map[uint64][]uint32),
		byPrincipal: make(map[uint64][]uint32),
	}
}

// Len reports the number of live claim records.
func (l *Ledger) Len() int {
	return len(l.byKey)
}

// Record merges the owed amounts into the (principal, orderID) claim,
// creating it if absent. Zero-amount records are ignored.
func (l *Ledger) Record(principal, orderID, assetQty, payment uint64) {
	if assetQty == 0 && payment == 0 {
		return
	}
	k := key{principal: principal, orderID: orderID}
	if idx, ok := l.byKey[k]; ok {
		l.slots[idx].AssetQty += assetQty
		l.slots[idx].Payment += payment
		return
	}
	idx := l.alloc()
	l.slots[idx] = Claim{
		Principal: principal,
		OrderID:   orderID,
		AssetQty:  assetQty,
		Payment:   payment,
	}
	l.byKey[k] = idx
	l.byOrder[orderID] = append(l.byOrder[orderID], idx)
	l.byPrincipal[principal] = append(l.byPrincipal[principal], idx)
}

// Claim returns and zeroes the amounts owed to principal from orderID.
// An absent claim yields zeroes; that is "nothing pending", not an error.
func (l *Ledger) Claim(principal, orderID uint64) (assetQty, payment uint64) {
	k := key{principal: principal, orderID: orderID}
	idx, ok := l.byKey[k]
	if !ok {
		return 0, 0
	}
	c := l.slots[idx]
	l.release(k, idx)
	return c.AssetQty, c.Payment
}

// ClaimAll drains every claim pending for the principal.
func (l *Ledger) ClaimAll(principal uint64) (assetQty, payment uint64) {
	// release mutates the per-principal index, so drain a copy
	idxs := append([]uint32(nil), l.byPrincipal[principal]...)
	for _, idx := range idxs {
		c := l.slots[idx]
		assetQty += c.AssetQty
		payment += c.Payment
		l.release(key{principal: c.Principal, orderID: c.OrderID}, idx)
	}
	return assetQty, payment
}

// Pending reads the owed amounts without clearing them.
func (l *Ledger) Pending(principal, orderID uint64) (assetQty, payment uint64) {
	if idx, ok := l.byKey[key{principal: principal, orderID: orderID}]; ok {
		return l.slots[idx].AssetQty, l.slots[idx].Payment
	}
	return 0, 0
}

// ByOrder returns copies of all claims attributed to one order, whether or
// not that order still rests in the book.
func (l *Ledger) ByOrder(orderID uint64) []Claim {
	idxs := l.byOrder[orderID]
	out := make([]Claim, 0, len(idxs))
	for _, idx := range idxs {
		out = append(out, l.slots[idx])
	}
	return out
}

// Each visits every live claim. Order is unspecified.
func (l *Ledger) Each(fn func(Claim) bool) {
	for _, idx := range l.byKey {
		if !fn(l.slots[idx]) {
			return
		}
	}
}

func (l *Ledger) alloc() uint32 {
	if n := len(l.free); n > 0 {
		idx := l.free[n-1]
		l.free = l.free[:n-1]
		return idx
	}
	l.slots = append(l.slots, Claim{})
	return uint32(len(l.slots) - 1)
}

func (l *Ledger) release(k key, idx uint32) {
	c := l.slots[idx]
	l.slots[idx] = Claim{}
	delete(l.byKey, k)
	l.byOrder[c.OrderID] = dropIndex(l.byOrder[c.OrderID], idx)
	if len(l.byOrder[c.OrderID]) == 0 {
		delete(l.byOrder, c.OrderID)
	}
	l.byPrincipal[c.Principal] = dropIndex(l.byPrincipal[c.Principal], idx)
	if len(l.byPrincipal[c.Principal]) == 0 {
		delete(l.byPrincipal, c.Principal)
	}
	l.free = append(l.free, idx)
}

func dropIndex(idxs []uint32, idx uint32) []uint32 {
	for i, v := range idxs {
		if v == idx {
			idxs[i] = idxs[len(idxs)-1]
			return idxs[:len(idxs)-1]
		}
	}
	return idxs
}
