package service

import (
	"context"
	"time"

	"limitbook/domain/engine"
	"limitbook/domain/orderbook"
	"limitbook/snapshot"
)

// Snapshot captures every market at the current journal sequence. It holds
// all markets still while copying.
func (s *OrderService) Snapshot() *snapshot.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	var seq uint64
	if s.journal != nil {
		seq = s.journal.LastSeq()
	}
	return snapshot.Capture(seq, s.ids.Current(), s.engine)
}

// WriteSnapshot persists a snapshot and drops the journal segments it
// covers. It returns the journal sequence of the snapshot.
func (s *OrderService) WriteSnapshot(w *snapshot.Writer) (uint64, error) {
	snap := s.Snapshot()
	if err := w.Write(snap); err != nil {
		return 0, err
	}
	if s.journal != nil {
		if err := s.journal.TruncateBefore(snap.Seq); err != nil {
			return snap.Seq, err
		}
	}
	return snap.Seq, nil
}

// StartSnapshotJob writes a snapshot to dir every interval until ctx is done.
// The returned channel is closed once the job has exited, after which the
// journal may be closed.
func (s *OrderService) StartSnapshotJob(ctx context.Context, dir string, interval time.Duration) <-chan struct{} {
	w := &snapshot.Writer{Dir: dir}
	log := s.log.With("job", "snapshot", "dir", dir)
	done := make(chan struct{})

	go func() {
		defer close(done)
		t := time.NewTicker(interval)
		defer t.Stop()

		var last uint64
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}

			if s.journal != nil && s.journal.LastSeq() == last {
				continue
			}
			seq, err := s.WriteSnapshot(w)
			if err != nil {
				log.Error("snapshot failed", "err", err)
				continue
			}
			last = seq
			log.Debug("snapshot written", "seq", seq)
		}
	}()
	return done
}

// books lists every market; s.mu must be held.
func (s *OrderService) books() map[engine.TradingPair]*orderbook.OrderBook {
	out := make(map[engine.TradingPair]*orderbook.OrderBook)
	for _, pair := range s.engine.Markets() {
		if b, err := s.engine.Book(pair); err == nil {
			out[pair] = b
		}
	}
	return out
}
