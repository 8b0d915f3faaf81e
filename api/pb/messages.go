// Package pb carries the wire messages for the Engine service. The types
// are hand-maintained stubs encoded with protowire against freya.proto;
// the codec in service.go plugs them into gRPC without generated code.
package pb

import (
	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Message is what the codec requires of every request/response type.
type Message interface {
	MarshalWire() ([]byte, error)
	UnmarshalWire([]byte) error
}

type SubmitRequest struct {
	Caller uint64
	Side   uint32
	Price  int64
	Qty    uint32
}

func (m *SubmitRequest) MarshalWire() ([]byte, error) {
	var b []byte
	b = appendVarint(b, 1, m.Caller)
	b = appendVarint(b, 2, uint64(m.Side))
	b = appendVarint(b, 3, protowire.EncodeZigZag(m.Price))
	b = appendVarint(b, 4, uint64(m.Qty))
	return b, nil
}

func (m *SubmitRequest) UnmarshalWire(b []byte) error {
	return walkFields(b, func(num protowire.Number, v uint64, _ []byte) error {
		switch num {
		case 1:
			m.Caller = v
		case 2:
			m.Side = uint32(v)
		case 3:
			m.Price = protowire.DecodeZigZag(v)
		case 4:
			m.Qty = uint32(v)
		}
		return nil
	})
}

type SubmitResponse struct {
	OrderID uint64
	Filled  uint32
	Rested  bool
}

func (m *SubmitResponse) MarshalWire() ([]byte, error) {
	var b []byte
	b = appendVarint(b, 1, m.OrderID)
	b = appendVarint(b, 2, uint64(m.Filled))
	b = appendVarint(b, 3, encodeBool(m.Rested))
	return b, nil
}

func (m *SubmitResponse) UnmarshalWire(b []byte) error {
	return walkFields(b, func(num protowire.Number, v uint64, _ []byte) error {
		switch num {
		case 1:
			m.OrderID = v
		case 2:
			m.Filled = uint32(v)
		case 3:
			m.Rested = v != 0
		}
		return nil
	})
}

type SubmitEntry struct {
	Side  uint32
	Price int64
	Qty   uint32
}

func (m *SubmitEntry) MarshalWire() ([]byte, error) {
	var b []byte
	b = appendVarint(b, 1, uint64(m.Side))
	b = appendVarint(b, 2, protowire.EncodeZigZag(m.Price))
	b = appendVarint(b, 3, uint64(m.Qty))
	return b, nil
}

func (m *SubmitEntry) UnmarshalWire(b []byte) error {
	return walkFields(b, func(num protowire.Number, v uint64, _ []byte) error {
		switch num {
		case 1:
			m.Side = uint32(v)
		case 2:
			m.Price = protowire.DecodeZigZag(v)
		case 3:
			m.Qty = uint32(v)
		}
		return nil
	})
}

type SubmitBatchRequest struct {
	Caller  uint64
	Entries []SubmitEntry
}

func (m *SubmitBatchRequest) MarshalWire() ([]byte, error) {
	var b []byte
	b = appendVarint(b, 1, m.Caller)
	for i := range m.Entries {
		sub, err := m.Entries[i].MarshalWire()
		if err != nil {
			return nil, err
		}
		b = appendBytes(b, 2, sub)
	}
	return b, nil
}

func (m *SubmitBatchRequest) UnmarshalWire(b []byte) error {
	return walkFields(b, func(num protowire.Number, v uint64, raw []byte) error {
		switch num {
		case 1:
			m.Caller = v
		case 2:
			var e SubmitEntry
			if err := e.UnmarshalWire(raw); err != nil {
				return err
			}
			m.Entries = append(m.Entries, e)
		}
		return nil
	})
}

type SubmitBatchResult struct {
	OrderID uint64
	Filled  uint32
	Rested  bool
	Error   string
}

func (m *SubmitBatchResult) MarshalWire() ([]byte, error) {
	var b []byte
	b = appendVarint(b, 1, m.OrderID)
	b = appendVarint(b, 2, uint64(m.Filled))
	b = appendVarint(b, 3, encodeBool(m.Rested))
	if m.Error != "" {
		b = appendBytes(b, 4, []byte(m.Error))
	}
	return b, nil
}

func (m *SubmitBatchResult) UnmarshalWire(b []byte) error {
	return walkFields(b, func(num protowire.Number, v uint64, raw []byte) error {
		switch num {
		case 1:
			m.OrderID = v
		case 2:
			m.Filled = uint32(v)
		case 3:
			m.Rested = v != 0
		case 4:
			m.Error = string(raw)
		}
		return nil
	})
}

type SubmitBatchResponse struct {
	Results []SubmitBatchResult
}

func (m *SubmitBatchResponse) MarshalWire() ([]byte, error) {
	var b []byte
	for i := range m.Results {
		sub, err := m.Results[i].MarshalWire()
		if err != nil {
			return nil, err
		}
		b = appendBytes(b, 1, sub)
	}
	return b, nil
}

func (m *SubmitBatchResponse) UnmarshalWire(b []byte) error {
	return walkFields(b, func(num protowire.Number, _ uint64, raw []byte) error {
		if num == 1 {
			var r SubmitBatchResult
			if err := r.UnmarshalWire(raw); err != nil {
				return err
			}
			m.Results = append(m.Results, r)
		}
		return nil
	})
}

type CancelRequest struct {
	Caller  uint64
	OrderID uint64
}

func (m *CancelRequest) MarshalWire() ([]byte, error) {
	var b []byte
	b = appendVarint(b, 1, m.Caller)
	b = appendVarint(b, 2, m.OrderID)
	return b, nil
}

func (m *CancelRequest) UnmarshalWire(b []byte) error {
	return walkFields(b, func(num protowire.Number, v uint64, _ []byte) error {
		switch num {
		case 1:
			m.Caller = v
		case 2:
			m.OrderID = v
		}
		return nil
	})
}

type CancelResponse struct{}

func (m *CancelResponse) MarshalWire() ([]byte, error) { return nil, nil }
func (m *CancelResponse) UnmarshalWire([]byte) error   { return nil }

type CancelBatchRequest struct {
	Caller   uint64
	OrderIDs []uint64
}

func (m *CancelBatchRequest) MarshalWire() ([]byte, error) {
	var b []byte
	b = appendVarint(b, 1, m.Caller)
	for _, id := range m.OrderIDs {
		b = appendVarint(b, 2, id)
	}
	return b, nil
}

func (m *CancelBatchRequest) UnmarshalWire(b []byte) error {
	return walkFields(b, func(num protowire.Number, v uint64, _ []byte) error {
		switch num {
		case 1:
			m.Caller = v
		case 2:
			m.OrderIDs = append(m.OrderIDs, v)
		}
		return nil
	})
}

type CancelBatchResponse struct {
	Errors []string
}

func (m *CancelBatchResponse) MarshalWire() ([]byte, error) {
	var b []byte
	for _, e := range m.Errors {
		b = appendBytes(b, 1, []byte(e))
	}
	return b, nil
}

func (m *CancelBatchResponse) UnmarshalWire(b []byte) error {
	return walkFields(b, func(num protowire.Number, _ uint64, raw []byte) error {
		if num == 1 {
			m.Errors = append(m.Errors, string(raw))
		}
		return nil
	})
}

type ClaimRequest struct {
	Caller  uint64
	OrderID uint64
}

func (m *ClaimRequest) MarshalWire() ([]byte, error) {
	var b []byte
	b = appendVarint(b, 1, m.Caller)
	b = appendVarint(b, 2, m.OrderID)
	return b, nil
}

func (m *ClaimRequest) UnmarshalWire(b []byte) error {
	return walkFields(b, func(num protowire.Number, v uint64, _ []byte) error {
		switch num {
		case 1:
			m.Caller = v
		case 2:
			m.OrderID = v
		}
		return nil
	})
}

type ClaimResponse struct {
	AssetQty uint64
	Payment  uint64
}

func (m *ClaimResponse) MarshalWire() ([]byte, error) {
	var b []byte
	b = appendVarint(b, 1, m.AssetQty)
	b = appendVarint(b, 2, m.Payment)
	return b, nil
}

func (m *ClaimResponse) UnmarshalWire(b []byte) error {
	return walkFields(b, func(num protowire.Number, v uint64, _ []byte) error {
		switch num {
		case 1:
			m.AssetQty = v
		case 2:
			m.Payment = v
		}
		return nil
	})
}

type DepthRequest struct {
	Levels uint32
}

func (m *DepthRequest) MarshalWire() ([]byte, error) {
	return appendVarint(nil, 1, uint64(m.Levels)), nil
}

func (m *DepthRequest) UnmarshalWire(b []byte) error {
	return walkFields(b, func(num protowire.Number, v uint64, _ []byte) error {
		if num == 1 {
			m.Levels = uint32(v)
		}
		return nil
	})
}

type DepthLevel struct {
	Price  int64
	Qty    uint64
	Orders uint32
}

func (m *DepthLevel) MarshalWire() ([]byte, error) {
	var b []byte
	b = appendVarint(b, 1, protowire.EncodeZigZag(m.Price))
	b = appendVarint(b, 2, m.Qty)
	b = appendVarint(b, 3, uint64(m.Orders))
	return b, nil
}

func (m *DepthLevel) UnmarshalWire(b []byte) error {
	return walkFields(b, func(num protowire.Number, v uint64, _ []byte) error {
		switch num {
		case 1:
			m.Price = protowire.DecodeZigZag(v)
		case 2:
			m.Qty = v
		case 3:
			m.Orders = uint32(v)
		}
		return nil
	})
}

type DepthResponse struct {
	Asset uint64
	Seq   uint64
	Bids  []DepthLevel
	Asks  []DepthLevel
}

func (m *DepthResponse) MarshalWire() ([]byte, error) {
	var b []byte
	b = appendVarint(b, 1, m.Asset)
	b = appendVarint(b, 2, m.Seq)
	for i := range m.Bids {
		sub, err := m.Bids[i].MarshalWire()
		if err != nil {
			return nil, err
		}
		b = appendBytes(b, 3, sub)
	}
	for i := range m.Asks {
		sub, err := m.Asks[i].MarshalWire()
		if err != nil {
			return nil, err
		}
		b = appendBytes(b, 4, sub)
	}
	return b, nil
}

func (m *DepthResponse) UnmarshalWire(b []byte) error {
	return walkFields(b, func(num protowire.Number, v uint64, raw []byte) error {
		switch num {
		case 1:
			m.Asset = v
		case 2:
			m.Seq = v
		case 3:
			var l DepthLevel
			if err := l.UnmarshalWire(raw); err != nil {
				return err
			}
			m.Bids = append(m.Bids, l)
		case 4:
			var l DepthLevel
			if err := l.UnmarshalWire(raw); err != nil {
				return err
			}
			m.Asks = append(m.Asks, l)
		}
		return nil
	})
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func encodeBool(v bool) uint64 {
	if v {
		return 1
	}
	return 0
}

// walkFields dispatches varint fields through v and length-delimited fields
// through raw. Unknown fields are skipped, matching proto semantics.
func walkFields(b []byte, fn func(num protowire.Number, v uint64, raw []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return errors.Wrap(protowire.ParseError(n), "pb: tag")
		}
		b = b[n:]
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return errors.Wrap(protowire.ParseError(n), "pb: varint")
			}
			b = b[n:]
			if err := fn(num, v, nil); err != nil {
				return err
			}
		case protowire.BytesType:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return errors.Wrap(protowire.ParseError(n), "pb: bytes")
			}
			b = b[n:]
			if err := fn(num, 0, raw); err != nil {
				return err
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return errors.Wrap(protowire.ParseError(n), "pb: skip")
			}
			b = b[n:]
		}
	}
	return nil
}
