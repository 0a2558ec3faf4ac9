// Package exit is the outbox for fill events: each event is stored durably
// in pebble as NEW, then moved to SENT and ACKED by the broadcaster.
package exit

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
)

// -------------------- State --------------------

type ExitState uint8

const (
	StateNew ExitState = iota
	StateSent
	StateAcked
	StateFailed
)

func (s ExitState) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// -------------------- Record --------------------

type ExitRecord struct {
	Seq         uint64
	State       ExitState
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

const recordHeader = 1 + 4 + 8

// binary encoding: [state:1][retries:4][lastAttempt:8][payload]
func encodeRecord(r ExitRecord) []byte {
	buf := make([]byte, recordHeader+len(r.Payload))
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint32(buf[1:5], r.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(r.LastAttempt))
	copy(buf[recordHeader:], r.Payload)
	return buf
}

func decodeRecord(b []byte) (ExitRecord, error) {
	if len(b) < recordHeader {
		return ExitRecord{}, errors.New("invalid exit record length")
	}
	payload := make([]byte, len(b)-recordHeader)
	copy(payload, b[recordHeader:])
	return ExitRecord{
		State:       ExitState(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     payload,
	}, nil
}

// -------------------- WAL --------------------

var ErrNotFound = errors.New("exit record not found")

type ExitWAL struct {
	db *pebble.DB

	mu      sync.Mutex
	lastSeq uint64
}

func Open(dir string) (*ExitWAL, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	w := &ExitWAL{db: db}
	if err := w.loadLastSeq(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

func (w *ExitWAL) Close() error {
	return w.db.Close()
}

// -------------------- API --------------------

// PutNew stores payload as a NEW event and returns its sequence.
func (w *ExitWAL) PutNew(payload []byte) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	seq := w.lastSeq + 1
	rec := ExitRecord{State: StateNew, Payload: payload}

	// the high-water mark outlives DeleteAcked so sequences are never reused
	var mark [8]byte
	binary.BigEndian.PutUint64(mark[:], seq)

	batch := w.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(keyFor(seq), encodeRecord(rec), nil); err != nil {
		return 0, err
	}
	if err := batch.Set([]byte(lastSeqKey), mark[:], nil); err != nil {
		return 0, err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return 0, err
	}
	w.lastSeq = seq
	return seq, nil
}

func (w *ExitWAL) MarkSent(seq uint64) error {
	return w.update(seq, func(r *ExitRecord) { r.State = StateSent })
}

func (w *ExitWAL) MarkAcked(seq uint64) error {
	return w.update(seq, func(r *ExitRecord) { r.State = StateAcked })
}

// MarkFailed records a failed attempt; the event is retried later.
func (w *ExitWAL) MarkFailed(seq uint64) error {
	return w.update(seq, func(r *ExitRecord) {
		r.State = StateFailed
		r.Retries++
	})
}

// Get returns the current record for an event.
func (w *ExitWAL) Get(seq uint64) (ExitRecord, error) {
	val, closer, err := w.db.Get(keyFor(seq))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return ExitRecord{}, fmt.Errorf("%w: %d", ErrNotFound, seq)
		}
		return ExitRecord{}, err
	}
	defer closer.Close()

	rec, err := decodeRecord(val)
	rec.Seq = seq
	return rec, err
}

// DeleteAcked removes every ACKED record and returns how many were removed.
func (w *ExitWAL) DeleteAcked() (int, error) {
	var seqs []uint64
	err := w.ScanByState(StateAcked, func(rec ExitRecord) error {
		seqs = append(seqs, rec.Seq)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(seqs) == 0 {
		return 0, nil
	}

	batch := w.db.NewBatch()
	defer batch.Close()
	for _, seq := range seqs {
		if err := batch.Delete(keyFor(seq), nil); err != nil {
			return 0, err
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return 0, err
	}
	return len(seqs), nil
}

// -------------------- Scan --------------------

// ScanByState iterates records in the given states in sequence order.
func (w *ExitWAL) ScanByState(state ExitState, fn func(rec ExitRecord) error, more ...ExitState) error {
	want := map[ExitState]bool{state: true}
	for _, s := range more {
		want[s] = true
	}

	iter, err := w.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyPrefix + "~"),
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
		if !want[rec.State] {
			continue
		}

		seq, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		rec.Seq = seq

		if err := fn(rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

// -------------------- Helpers --------------------

const (
	keyPrefix  = "event/"
	lastSeqKey = "meta/last_seq"
)

func (w *ExitWAL) update(seq uint64, mutate func(*ExitRecord)) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	rec, err := w.Get(seq)
	if err != nil {
		return err
	}
	mutate(&rec)
	rec.LastAttempt = time.Now().UnixNano()
	return w.db.Set(keyFor(seq), encodeRecord(rec), pebble.Sync)
}

func (w *ExitWAL) loadLastSeq() error {
	val, closer, err := w.db.Get([]byte(lastSeqKey))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	defer closer.Close()
	if len(val) != 8 {
		return errors.New("invalid outbox sequence mark")
	}
	w.lastSeq = binary.BigEndian.Uint64(val)
	return nil
}

func keyFor(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", keyPrefix, seq))
}

func parseKey(b []byte) (uint64, error) {
	var seq uint64
	_, err := fmt.Sscanf(string(bytes.TrimPrefix(b, []byte(keyPrefix))), "%d", &seq)
	return seq, err
}
