package entry

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

type Config struct {
	Dir             string
	SegmentSize     int64
	SegmentDuration time.Duration // zero disables time-based rotation
	// SyncEveryWrite fsyncs after each Append.
	SyncEveryWrite bool
}

var ErrClosed = errors.New("journal closed")

// WAL is safe for concurrent Append; it assigns sequence numbers under its
// own lock so the file order always matches sequence order.
type WAL struct {
	mu sync.Mutex

	dir        string
	segSize    int64
	segDur     time.Duration
	syncWrites bool

	current    *segment
	lastRotate time.Time
	lastSeq    uint64
	closed     bool
}

// Open resumes after the highest existing segment and sequence, first
// cutting any torn final frame off the active segment.
func Open(cfg Config) (*WAL, error) {
	if cfg.Dir == "" {
		return nil, errors.New("journal dir is required")
	}
	if cfg.SegmentSize <= 0 {
		cfg.SegmentSize = 2 * 1024 * 1024
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}

	files, err := listSegments(cfg.Dir)
	if err != nil {
		return nil, err
	}

	index := 0
	for _, path := range files {
		if idx, err := segmentIndex(path); err == nil && idx > index {
			index = idx
		}
	}
	// A crash mid-append leaves a partial frame at the end of the active
	// segment; new frames written after it would be unreachable on replay.
	if len(files) > 0 {
		if _, err := repairTail(segmentPath(cfg.Dir, index)); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("repair %s: %w", segmentPath(cfg.Dir, index), err)
		}
	}

	var lastSeq uint64
	for _, path := range files {
		seq, err := maxSeqInSegment(path)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", path, err)
		}
		if seq > lastSeq {
			lastSeq = seq
		}
	}

	seg, err := openSegment(cfg.Dir, index)
	if err != nil {
		return nil, err
	}

	return &WAL{
		dir:        cfg.Dir,
		segSize:    cfg.SegmentSize,
		segDur:     cfg.SegmentDuration,
		syncWrites: cfg.SyncEveryWrite,
		current:    seg,
		lastRotate: time.Now(),
		lastSeq:    lastSeq,
	}, nil
}

// Append stamps r with the next sequence number and writes it.
func (w *WAL) Append(r *Record) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, ErrClosed
	}

	r.Seq = w.lastSeq + 1
	if err := w.current.append(encodeFrame(r)); err != nil {
		return 0, err
	}
	w.lastSeq = r.Seq

	if w.syncWrites {
		if err := w.current.sync(); err != nil {
			return r.Seq, err
		}
	}

	if w.shouldRotate() {
		return r.Seq, w.rotate()
	}
	return r.Seq, nil
}

// LastSeq is the sequence of the most recent record.
func (w *WAL) LastSeq() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeq
}

// ResumeAfter raises the next sequence above seq. After a snapshot at seq has
// let TruncateBefore drop every closed segment, the remaining segments may
// hold no record at all; resuming keeps new records ordered after the
// snapshot.
func (w *WAL) ResumeAfter(seq uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if seq > w.lastSeq {
		w.lastSeq = seq
	}
}

func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	return w.current.sync()
}

func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.current.sync(); err != nil {
		_ = w.current.close()
		return err
	}
	return w.current.close()
}

// TruncateBefore removes closed segments whose records all have Seq <= seq.
// The active segment is never removed.
func (w *WAL) TruncateBefore(seq uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	files, err := listSegments(w.dir)
	if err != nil {
		return err
	}

	for _, path := range files {
		if path == w.current.path {
			continue
		}
		maxSeq, err := maxSeqInSegment(path)
		if err != nil {
			continue
		}
		if maxSeq <= seq {
			if err := os.Remove(path); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *WAL) shouldRotate() bool {
	if w.current.offset >= w.segSize {
		return true
	}
	return w.segDur > 0 && time.Since(w.lastRotate) >= w.segDur
}

func (w *WAL) rotate() error {
	if err := w.current.sync(); err != nil {
		return err
	}
	_ = w.current.close()

	seg, err := openSegment(w.dir, w.current.index+1)
	if err != nil {
		return err
	}

	w.current = seg
	w.lastRotate = time.Now()
	return nil
}
