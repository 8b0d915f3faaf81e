// Package sequence issues order identifiers. IDs are strictly monotonic,
// deterministic and replay-safe.
package sequence

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// Sequencer allocates identifiers up to a lifetime cap. The cap is a hard
// bound: once exhausted every further allocation fails.
type Sequencer struct {
	next atomic.Uint64
	max  uint64
}

// New creates a sequencer resuming after start. On a fresh start use 0; on
// replay, the last replayed identifier.
func New(start, max uint64) *Sequencer {
	s := &Sequencer{max: max}
	s.next.Store(start)
	return s
}

// Next returns the next identifier or fails when the lifetime cap is hit.
func (s *Sequencer) Next() (uint64, error) {
	v := s.next.Add(1)
	if v > s.max {
		s.next.Add(^uint64(0)) // undo, keep Current stable at the cap
		return 0, errors.Newf("sequence: identifier space exhausted (cap %d)", s.max)
	}
	return v, nil
}

// Current returns the last issued identifier.
func (s *Sequencer) Current() uint64 {
	return s.next.Load()
}

// Reset repositions the sequencer. Only valid after snapshot load or WAL
// replay.
func (s *Sequencer) Reset(v uint64) {
	s.next.Store(v)
}
