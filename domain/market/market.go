// Package market declares the collaborators the engine consumes at its
// boundary: asset custody, royalty lookup, fee configuration and order
// ownership. The engine only ever sees these interfaces; in-memory
// implementations below back tests and single-process deployments.
package market

import (
	"context"

	"github.com/cockroachdb/errors"
)

// Custody moves assets during settlement. It is never called while
// matching; matching only records claims.
type Custody interface {
	TransferIn(ctx context.Context, principal uint64, assetQty, payment uint64) error
	TransferOut(ctx context.Context, principal uint64, assetQty, payment uint64) error
}

// RoyaltySource resolves the royalty recipient and amount for one sale.
type RoyaltySource interface {
	RoyaltyInfo(asset uint64, saleAmount uint64) (recipient uint64, amount uint64)
}

// FeeConfig is read-only for the duration of a call.
type FeeConfig struct {
	DevBps       uint32
	BurnBps      uint32
	DevRecipient uint64
}

// DevFee and BurnFee are deductions from sale proceeds in basis points,
// truncating division.
func (f FeeConfig) DevFee(proceeds uint64) uint64  { return proceeds * uint64(f.DevBps) / 10_000 }
func (f FeeConfig) BurnFee(proceeds uint64) uint64 { return proceeds * uint64(f.BurnBps) / 10_000 }

// Owners resolves an order identifier to its owning principal. The packed
// book never stores owners inline.
type Owners interface {
	Assign(orderID, principal uint64)
	OwnerOf(orderID uint64) (uint64, bool)
	Release(orderID uint64)
	Each(fn func(orderID, principal uint64) bool)
}

// MemOwners is the in-process owner registry.
type MemOwners struct {
	owners map[uint64]uint64
}

func NewMemOwners() *MemOwners {
	return &MemOwners{owners: make(map[uint64]uint64)}
}

func (m *MemOwners) Assign(orderID, principal uint64) { m.owners[orderID] = principal }

func (m *MemOwners) OwnerOf(orderID uint64) (uint64, bool) {
	p, ok := m.owners[orderID]
	return p, ok
}

func (m *MemOwners) Release(orderID uint64) { delete(m.owners, orderID) }

func (m *MemOwners) Each(fn func(orderID, principal uint64) bool) {
	for id, p := range m.owners {
		if !fn(id, p) {
			return
		}
	}
}

// FixedRoyalty pays a flat bps rate to one recipient.
type FixedRoyalty struct {
	Recipient uint64
	Bps       uint32
}

func (r FixedRoyalty) RoyaltyInfo(_ uint64, saleAmount uint64) (uint64, uint64) {
	return r.Recipient, saleAmount * uint64(r.Bps) / 10_000
}

// MemCustody tracks balances in memory. Balance shortfalls fail the
// transfer; the engine surfaces that to the caller.
type MemCustody struct {
	asset   map[uint64]uint64
	payment map[uint64]uint64
}

func NewMemCustody() *MemCustody {
	return &MemCustody{
		asset:   make(map[uint64]uint64),
		payment: make(map[uint64]uint64),
	}
}

func (c *MemCustody) Deposit(principal uint64, assetQty, payment uint64) {
	c.asset[principal] += assetQty
	c.payment[principal] += payment
}

func (c *MemCustody) Balance(principal uint64) (assetQty, payment uint64) {
	return c.asset[principal], c.payment[principal]
}

func (c *MemCustody) TransferIn(_ context.Context, principal uint64, assetQty, payment uint64) error {
	if c.asset[principal] < assetQty || c.payment[principal] < payment {
		return errors.Newf("custody: insufficient balance for principal %d", principal)
	}
	c.asset[principal] -= assetQty
	c.payment[principal] -= payment
	return nil
}

func (c *MemCustody) TransferOut(_ context.Context, principal uint64, assetQty, payment uint64) error {
	c.asset[principal] += assetQty
	c.payment[principal] += payment
	return nil
}
