// Package outbox is the durable hand-off between matching and downstream
// consumers. Every trade writes one record here inside the engine call;
// the broadcaster drains pending records to Kafka and advances their state.
// Records survive restarts, so an event is never lost between "matched"
// and "published".
package outbox

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
)

type State uint8

const (
	StateNew State = iota
	StateSent
	StateAcked
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	default:
		return "UNKNOWN"
	}
}

// Record is one pending downstream event, keyed by the engine sequence it
// committed at.
type Record struct {
	Seq     uint64
	State   State
	Retries uint32
	Payload []byte
}

type Outbox struct {
	db *pebble.DB
}

func Open(dir string) (*Outbox, error) {
	db, err := pebble.Open(dir, &pebble.Options{
		DisableWAL: false, // durability is the whole point
	})
	if err != nil {
		return nil, err
	}
	return &Outbox{db: db}, nil
}

func (o *Outbox) Close() error {
	return o.db.Close()
}

// Put inserts a new record in state NEW.
func (o *Outbox) Put(seq uint64, payload []byte) error {
	rec := Record{Seq: seq, State: StateNew, Payload: payload}
	return o.db.Set(keyFor(seq), encodeRecord(rec), pebble.Sync)
}

// MarkSent and MarkAcked advance the state machine; both are idempotent.
func (o *Outbox) MarkSent(seq uint64) error  { return o.setState(seq, StateSent) }
func (o *Outbox) MarkAcked(seq uint64) error { return o.setState(seq, StateAcked) }

func (o *Outbox) setState(seq uint64, state State) error {
	rec, err := o.Get(seq)
	if err != nil {
		return err
	}
	if state == StateSent {
		rec.Retries++
	}
	rec.State = state
	return o.db.Set(keyFor(seq), encodeRecord(rec), pebble.Sync)
}

func (o *Outbox) Get(seq uint64) (Record, error) {
	val, closer, err := o.db.Get(keyFor(seq))
	if err != nil {
		return Record{}, err
	}
	defer closer.Close()
	return decodeRecord(val)
}

// ScanPending visits every record not yet ACKED, in sequence order. SENT
// records are revisited so a crash between send and ack retries.
func (o *Outbox) ScanPending(fn func(rec Record) error) error {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("trade/"),
		UpperBound: []byte("trade/~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		rec, err := decodeRecord(iter.Value())
		if err != nil {
			return err
		}
		if rec.State == StateAcked {
			continue
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

// TruncateAckedUpTo removes ACKED records with seq at or below the bound.
func (o *Outbox) TruncateAckedUpTo(seq uint64) error {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("trade/"),
		UpperBound: []byte("trade/~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		rec, err := decodeRecord(iter.Value())
		if err != nil {
			return err
		}
		if rec.State != StateAcked || rec.Seq > seq {
			continue
		}
		if err := o.db.Delete(keyFor(rec.Seq), pebble.Sync); err != nil {
			return err
		}
	}
	return iter.Error()
}

// binary layout: [seq:8][state:1][retries:4][payload]
func encodeRecord(r Record) []byte {
	buf := make([]byte, 8+1+4+len(r.Payload))
	binary.BigEndian.PutUint64(buf[:8], r.Seq)
	buf[8] = byte(r.State)
	binary.BigEndian.PutUint32(buf[9:13], r.Retries)
	copy(buf[13:], r.Payload)
	return buf
}

func decodeRecord(b []byte) (Record, error) {
	if len(b) < 13 {
		return Record{}, errors.New("outbox: short record")
	}
	return Record{
		Seq:     binary.BigEndian.Uint64(b[:8]),
		State:   State(b[8]),
		Retries: binary.BigEndian.Uint32(b[9:13]),
		Payload: append([]byte(nil), b[13:]...),
	}, nil
}

func keyFor(seq uint64) []byte {
	return []byte(fmt.Sprintf("trade/%020d", seq))
}
