package sequence

import "sync/atomic"

// Sequencer hands out strictly increasing order ids. Ids are journaled with
// the command that used them, so replay restores the same ids.
type Sequencer struct {
	last atomic.Uint64
}

// New creates a sequencer whose next id is start+1.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.last.Store(start)
	return s
}

func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}

// Current returns the last issued id.
func (s *Sequencer) Current() uint64 {
	return s.last.Load()
}

// Observe raises the sequencer to at least v, so ids seen during replay or
// snapshot restore are never issued again.
func (s *Sequencer) Observe(v uint64) {
	for {
		cur := s.last.Load()
		if v <= cur || s.last.CompareAndSwap(cur, v) {
			return
		}
	}
}
