package snapshot

import (
	"encoding/gob"
	"os"
	"path/filepath"
	"time"

	"limitbook/domain/engine"
	"limitbook/domain/orderbook"
)

// Capture copies the resting state of eng. The caller must keep every book
// still for the duration.
func Capture(seq, lastOrderID uint64, eng *engine.MatchingEngine) *Snapshot {
	s := &Snapshot{
		Seq:         seq,
		LastOrderID: lastOrderID,
		Created:     time.Now().UTC(),
	}

	for _, pair := range eng.Markets() {
		book, err := eng.Book(pair)
		if err != nil {
			continue
		}
		m := MarketEntry{Pair: pair.String(), Orders: make([]OrderEntry, 0, book.Len())}

		collect := func(lvl *orderbook.PriceLevel) bool {
			for o := lvl.Head(); o != nil; o = o.Next() {
				m.Orders = append(m.Orders, OrderEntry{
					ID:        o.ID,
					Side:      int(o.Side),
					Price:     o.Price.Raw(),
					Size:      o.Size,
					Remaining: o.Remaining(),
				})
			}
			return true
		}
		book.WalkBids(collect)
		book.WalkAsks(collect)

		s.Markets = append(s.Markets, m)
	}
	return s
}

type Writer struct {
	Dir string
}

// Write replaces the snapshot in Dir. The file is written aside and renamed
// so a crash never leaves a torn snapshot behind.
func (w *Writer) Write(s *Snapshot) error {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(w.Dir, fileName+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(s); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(w.Dir, fileName))
}
