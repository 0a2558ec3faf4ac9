package entry

import (
	"fmt"
	"io"
	"os"
)

type ReplayHandler func(*Record) error

// Replay feeds every record with Seq > after to fn, in journal order, and
// returns the last sequence seen. Sequences must be strictly increasing.
func Replay(dir string, after uint64, fn ReplayHandler) (lastSeq uint64, err error) {
	files, err := listSegments(dir)
	if err != nil {
		return 0, err
	}

	lastSeq = after
	var prev uint64
	for _, path := range files {
		if err := replaySegment(path, after, &prev, &lastSeq, fn); err != nil {
			return lastSeq, err
		}
	}
	return lastSeq, nil
}

func replaySegment(path string, after uint64, prev, lastSeq *uint64, fn ReplayHandler) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	for {
		rec, err := readRecord(f)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("%s: %w", path, err)
		}

		if rec.Seq <= *prev {
			return fmt.Errorf("%s: non-monotonic seq %d after %d", path, rec.Seq, *prev)
		}
		*prev = rec.Seq
		if rec.Seq <= after {
			continue
		}
		*lastSeq = rec.Seq

		if err := fn(rec); err != nil {
			return err
		}
	}
}
