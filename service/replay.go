package service

import (
	"fmt"
	"sync"

	"limitbook/domain/orderbook"
	"limitbook/infra/wal/entry"
	"limitbook/snapshot"
)

// ReplayStats summarizes a recovery.
type ReplayStats struct {
	SnapshotSeq uint64
	LastSeq     uint64
	Applied     int
	// Rejected counts journaled commands the engine refused again on replay.
	Rejected int
}

// Recover rebuilds svc from the snapshot in snapshotDir, if any, and the
// journal records after it. It must run before svc serves traffic.
// The outbox is not replayed: events already recorded stay there.
func Recover(svc *OrderService, snapshotDir, journalDir string) (ReplayStats, error) {
	snap, err := snapshot.Load(snapshotDir)
	if err != nil {
		return ReplayStats{}, err
	}

	var after uint64
	if snap != nil {
		if err := svc.restore(snap); err != nil {
			return ReplayStats{}, fmt.Errorf("restore snapshot: %w", err)
		}
		after = snap.Seq
	}

	stats, err := Replay(journalDir, svc, after)
	stats.SnapshotSeq = after
	return stats, err
}

// Replay applies every journal record with Seq > after to svc, without
// journaling, outbox events or market data. Order ids are taken from the
// records, and the sequencer resumes after the highest one.
func Replay(dir string, svc *OrderService, after uint64) (ReplayStats, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	stats := ReplayStats{LastSeq: after}
	lastSeq, err := entry.Replay(dir, after, func(rec *entry.Record) error {
		p, err := svc.codec.Decode(rec.Data)
		if err != nil {
			return fmt.Errorf("record %d: %w", rec.Seq, err)
		}
		c, err := decodeCommand(rec.Type, p)
		if err != nil {
			return fmt.Errorf("record %d: %w", rec.Seq, err)
		}

		if err := svc.replayCommand(c, rec.Seq); err != nil {
			stats.Rejected++
			svc.log.Warn("journaled command rejected on replay", "seq", rec.Seq, "type", rec.Type.String(), "err", err)
			return nil
		}
		stats.Applied++
		return nil
	})
	stats.LastSeq = lastSeq
	if err != nil {
		return stats, err
	}

	if svc.journal != nil {
		svc.journal.ResumeAfter(lastSeq)
	}
	for pair, book := range svc.books() {
		svc.updateResting(pair, book)
	}

	svc.log.Info("journal replayed",
		"after", after, "last_seq", lastSeq, "applied", stats.Applied, "rejected", stats.Rejected,
		"next_order_id", svc.ids.Current()+1)
	return stats, nil
}

// replayCommand applies c; s.mu is held exclusively.
func (s *OrderService) replayCommand(c command, seq uint64) error {
	if c.kind == entry.RecordNewMarket {
		return s.openMarket(c.pair)
	}

	if c.kind != entry.RecordCancel {
		s.ids.Observe(c.id)
	}

	var o *orderbook.Order
	if c.kind != entry.RecordCancel {
		var err error
		if o, err = newOrder(c); err != nil {
			return err
		}
		o.Seq = seq
	}
	_, err := s.apply(c, o)
	return err
}

// restore loads snap into an empty service.
func (s *OrderService) restore(snap *snapshot.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := snap.Restore(s.engine); err != nil {
		return err
	}
	for _, pair := range s.engine.Markets() {
		if _, ok := s.locks[pair]; !ok {
			s.locks[pair] = &sync.Mutex{}
		}
	}
	s.ids.Observe(snap.LastOrderID)
	if s.journal != nil {
		s.journal.ResumeAfter(snap.Seq)
	}
	return nil
}
