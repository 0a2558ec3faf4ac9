package snapshot

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"limitbook/domain/engine"
	"limitbook/domain/orderbook"
)

// Load reads the snapshot in dir. A missing snapshot is not an error: it
// returns nil and the journal is replayed from the start.
func Load(dir string) (*Snapshot, error) {
	f, err := os.Open(filepath.Join(dir, fileName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var s Snapshot
	if err := gob.NewDecoder(f).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &s, nil
}

// Restore registers every market of s in eng and rests its orders without
// matching. eng must not already hold any of the markets.
func (s *Snapshot) Restore(eng *engine.MatchingEngine) error {
	for _, m := range s.Markets {
		pair, err := engine.ParseTradingPair(m.Pair)
		if err != nil {
			return err
		}
		book, err := eng.NewMarket(pair)
		if err != nil {
			return err
		}

		for _, e := range m.Orders {
			price := orderbook.Price(e.Price)
			o, err := orderbook.RestoreLimitOrder(e.ID, orderbook.Side(e.Side), price, e.Size, e.Remaining)
			if err != nil {
				return fmt.Errorf("%s order %d: %w", m.Pair, e.ID, err)
			}
			if err := book.AddOrderAt(price, o); err != nil {
				return fmt.Errorf("%s order %d: %w", m.Pair, e.ID, err)
			}
		}
	}
	return nil
}
