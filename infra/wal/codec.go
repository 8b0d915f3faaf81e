package wal

import (
	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Payloads are protobuf wire format, all-varint fields, encoded by hand
// with protowire. There is no generated code to keep in sync; the field
// numbers below are the schema.

// SubmitPayload commits one submission, including the identifier the
// sequencer assigned so replay is deterministic.
type SubmitPayload struct {
	Caller  uint64 // 1
	OrderID uint64 // 2
	Side    uint8  // 3
	Price   int64  // 4, zigzag
	Qty     uint32 // 5
}

func (p *SubmitPayload) Encode() []byte {
	var b []byte
	b = appendUvarintField(b, 1, p.Caller)
	b = appendUvarintField(b, 2, p.OrderID)
	b = appendUvarintField(b, 3, uint64(p.Side))
	b = appendUvarintField(b, 4, protowire.EncodeZigZag(p.Price))
	b = appendUvarintField(b, 5, uint64(p.Qty))
	return b
}

func (p *SubmitPayload) Decode(b []byte) error {
	return eachVarintField(b, func(num protowire.Number, v uint64) {
		switch num {
		case 1:
			p.Caller = v
		case 2:
			p.OrderID = v
		case 3:
			p.Side = uint8(v)
		case 4:
			p.Price = protowire.DecodeZigZag(v)
		case 5:
			p.Qty = uint32(v)
		}
	})
}

type CancelPayload struct {
	Caller  uint64 // 1
	OrderID uint64 // 2
}

func (p *CancelPayload) Encode() []byte {
	var b []byte
	b = appendUvarintField(b, 1, p.Caller)
	b = appendUvarintField(b, 2, p.OrderID)
	return b
}

func (p *CancelPayload) Decode(b []byte) error {
	return eachVarintField(b, func(num protowire.Number, v uint64) {
		switch num {
		case 1:
			p.Caller = v
		case 2:
			p.OrderID = v
		}
	})
}

type ClaimPayload struct {
	Principal uint64 // 1
	OrderID   uint64 // 2
}

func (p *ClaimPayload) Encode() []byte {
	var b []byte
	b = appendUvarintField(b, 1, p.Principal)
	b = appendUvarintField(b, 2, p.OrderID)
	return b
}

func (p *ClaimPayload) Decode(b []byte) error {
	return eachVarintField(b, func(num protowire.Number, v uint64) {
		switch num {
		case 1:
			p.Principal = v
		case 2:
			p.OrderID = v
		}
	})
}

type SettlePayload struct {
	Principal uint64 // 1
}

func (p *SettlePayload) Encode() []byte {
	return appendUvarintField(nil, 1, p.Principal)
}

func (p *SettlePayload) Decode(b []byte) error {
	return eachVarintField(b, func(num protowire.Number, v uint64) {
		if num == 1 {
			p.Principal = v
		}
	})
}

func appendUvarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func eachVarintField(b []byte, fn func(num protowire.Number, v uint64)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return errors.Wrap(protowire.ParseError(n), "wal: payload tag")
		}
		b = b[n:]
		if typ != protowire.VarintType {
			return errors.Newf("wal: unexpected wire type %d for field %d", typ, num)
		}
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return errors.Wrap(protowire.ParseError(n), "wal: payload varint")
		}
		b = b[n:]
		fn(num, v)
	}
	return nil
}
