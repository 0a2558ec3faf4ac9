package entry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestWAL_AppendAndReplay(t *testing.T) {
	dir := t.TempDir()

	// --- write phase ---
	w, err := Open(Config{Dir: dir, SegmentSize: 1 << 20})
	if err != nil {
		t.Fatalf("open wal: %v", err)
	}

	const n = 100
	for i := 0; i < n; i++ {
		seq, err := w.Append(NewRecord(RecordPlaceLimit, []byte(fmt.Sprintf("order-%d", i))))
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		if seq != uint64(i+1) {
			t.Fatalf("expected seq %d, got %d", i+1, seq)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// --- replay phase ---
	count := 0
	last, err := Replay(dir, 0, func(rec *Record) error {
		if rec.Type != RecordPlaceLimit {
			t.Fatalf("unexpected record type: %v", rec.Type)
		}
		if want := fmt.Sprintf("order-%d", count); string(rec.Data) != want {
			t.Fatalf("payload %q, want %q", rec.Data, want)
		}
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if count != n || last != n {
		t.Fatalf("expected %d records ending at %d, got %d ending at %d", n, n, count, last)
	}
}

func TestWAL_ReplayAfter(t *testing.T) {
	dir := t.TempDir()
	w, _ := Open(Config{Dir: dir})
	for i := 0; i < 10; i++ {
		_, _ = w.Append(NewRecord(RecordCancel, nil))
	}
	_ = w.Close()

	var seqs []uint64
	last, err := Replay(dir, 7, func(rec *Record) error {
		seqs = append(seqs, rec.Seq)
		return nil
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(seqs) != 3 || seqs[0] != 8 || last != 10 {
		t.Fatalf("unexpected replay window %v last=%d", seqs, last)
	}
}

func TestWAL_Rotation(t *testing.T) {
	dir := t.TempDir()

	w, err := Open(Config{Dir: dir, SegmentSize: 64})
	if err != nil {
		t.Fatalf("open wal: %v", err)
	}
	for i := 0; i < 10; i++ {
		if _, err := w.Append(NewRecord(RecordPlaceMarket, []byte("0123456789012345678901234567890123456789"))); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, _ := filepath.Glob(filepath.Join(dir, segmentGlob))
	if len(files) < 2 {
		t.Fatalf("expected rotated segments, found %d", len(files))
	}

	last, err := Replay(dir, 0, func(*Record) error { return nil })
	if err != nil || last != 10 {
		t.Fatalf("replay across segments: last=%d err=%v", last, err)
	}
}

func TestWAL_ReopenResumesSequence(t *testing.T) {
	dir := t.TempDir()
	w, _ := Open(Config{Dir: dir, SegmentSize: 64})
	for i := 0; i < 5; i++ {
		_, _ = w.Append(NewRecord(RecordNewMarket, []byte("BTC_USD-BTC_USD-BTC_USD-BTC_USD")))
	}
	_ = w.Close()

	w, err := Open(Config{Dir: dir, SegmentSize: 64})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if w.LastSeq() != 5 {
		t.Fatalf("expected last seq 5, got %d", w.LastSeq())
	}
	seq, err := w.Append(NewRecord(RecordCancel, nil))
	if err != nil || seq != 6 {
		t.Fatalf("append after reopen: seq=%d err=%v", seq, err)
	}
	_ = w.Close()

	if _, err := Replay(dir, 0, func(*Record) error { return nil }); err != nil {
		t.Fatalf("replay after reopen: %v", err)
	}
}

func TestWAL_TruncateBefore(t *testing.T) {
	dir := t.TempDir()
	w, _ := Open(Config{Dir: dir, SegmentSize: 40})
	for i := 0; i < 6; i++ {
		_, _ = w.Append(NewRecord(RecordCancel, []byte("payload-payload-payload")))
	}

	if err := w.TruncateBefore(4); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	_ = w.Close()

	var seqs []uint64
	_, err := Replay(dir, 4, func(rec *Record) error {
		seqs = append(seqs, rec.Seq)
		return nil
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(seqs) != 2 || seqs[0] != 5 || seqs[1] != 6 {
		t.Fatalf("records after truncation point must survive, got %v", seqs)
	}

	files, _ := filepath.Glob(filepath.Join(dir, segmentGlob))
	for _, f := range files {
		max, _ := maxSeqInSegment(f)
		if max != 0 && max <= 4 {
			t.Fatalf("segment %s with max seq %d should be gone", f, max)
		}
	}
}

func TestWAL_CorruptRecord(t *testing.T) {
	dir := t.TempDir()
	w, _ := Open(Config{Dir: dir})
	_, _ = w.Append(NewRecord(RecordPlaceLimit, []byte("good")))
	_ = w.Close()

	path := segmentPath(dir, 0)
	data, _ := os.ReadFile(path)
	data[headerSize] ^= 0xff
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Replay(dir, 0, func(*Record) error { return nil })
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestWAL_ReopenCutsTornTail(t *testing.T) {
	dir := t.TempDir()
	w, _ := Open(Config{Dir: dir})
	_, _ = w.Append(NewRecord(RecordPlaceLimit, []byte("first")))
	_ = w.Close()

	// crash mid-append: only part of the next header reached the disk
	path := segmentPath(dir, 0)
	intact, _ := os.Stat(path)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = f.Write([]byte{byte(RecordPlaceLimit), 0, 0, 0, 0})
	_ = f.Close()

	w, err = Open(Config{Dir: dir})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if st, _ := os.Stat(path); st.Size() != intact.Size() {
		t.Fatalf("torn tail kept: size %d, want %d", st.Size(), intact.Size())
	}
	seq, err := w.Append(NewRecord(RecordPlaceLimit, []byte("second")))
	if err != nil || seq != 2 {
		t.Fatalf("append after repair: seq=%d err=%v", seq, err)
	}
	_ = w.Close()

	var got []string
	last, err := Replay(dir, 0, func(rec *Record) error {
		got = append(got, fmt.Sprintf("%d:%s", rec.Seq, rec.Data))
		return nil
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if last != 2 || len(got) != 2 || got[0] != "1:first" || got[1] != "2:second" {
		t.Fatalf("replay after repair: last=%d records=%v", last, got)
	}
}

func TestWAL_ReopenCutsTornPayloadAndBadFinalFrame(t *testing.T) {
	for name, damage := range map[string]func([]byte) []byte{
		"short payload": func(b []byte) []byte { return b[:len(b)-3] },
		"bad checksum":  func(b []byte) []byte { b[len(b)-1] ^= 0xff; return b },
	} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			w, _ := Open(Config{Dir: dir})
			_, _ = w.Append(NewRecord(RecordPlaceLimit, []byte("kept")))
			_, _ = w.Append(NewRecord(RecordPlaceLimit, []byte("lost")))
			_ = w.Close()

			path := segmentPath(dir, 0)
			data, _ := os.ReadFile(path)
			if err := os.WriteFile(path, damage(data), 0o644); err != nil {
				t.Fatal(err)
			}

			w, err := Open(Config{Dir: dir})
			if err != nil {
				t.Fatalf("reopen: %v", err)
			}
			if w.LastSeq() != 1 {
				t.Fatalf("expected last seq 1 after repair, got %d", w.LastSeq())
			}
			_ = w.Close()
			last, err := Replay(dir, 0, func(*Record) error { return nil })
			if err != nil || last != 1 {
				t.Fatalf("replay: last=%d err=%v", last, err)
			}
		})
	}
}

func TestWAL_ReopenRefusesMidSegmentCorruption(t *testing.T) {
	dir := t.TempDir()
	w, _ := Open(Config{Dir: dir})
	_, _ = w.Append(NewRecord(RecordPlaceLimit, []byte("good")))
	_, _ = w.Append(NewRecord(RecordPlaceLimit, []byte("after")))
	_ = w.Close()

	path := segmentPath(dir, 0)
	data, _ := os.ReadFile(path)
	data[headerSize] ^= 0xff
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(Config{Dir: dir}); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
	if st, _ := os.Stat(path); st.Size() != int64(len(data)) {
		t.Fatal("mid-segment corruption must not be truncated")
	}
}

func TestWAL_ConcurrentAppendStaysMonotonic(t *testing.T) {
	dir := t.TempDir()
	w, _ := Open(Config{Dir: dir, SegmentSize: 512})

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_, _ = w.Append(NewRecord(RecordPlaceLimit, []byte("x")))
			}
		}()
	}
	wg.Wait()
	_ = w.Close()

	last, err := Replay(dir, 0, func(*Record) error { return nil })
	if err != nil || last != 400 {
		t.Fatalf("replay: last=%d err=%v", last, err)
	}
}

func TestWAL_AppendAfterClose(t *testing.T) {
	w, _ := Open(Config{Dir: t.TempDir()})
	_ = w.Close()
	if _, err := w.Append(NewRecord(RecordCancel, nil)); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestWAL_ResumeAfterSnapshotTruncation(t *testing.T) {
	dir := t.TempDir()
	w, _ := Open(Config{Dir: dir, SegmentSize: 16})
	for i := 0; i < 3; i++ {
		_, _ = w.Append(NewRecord(RecordCancel, []byte("payload")))
	}
	if err := w.TruncateBefore(3); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	_ = w.Close()

	// only the empty active segment is left
	w, err := Open(Config{Dir: dir, SegmentSize: 16})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if w.LastSeq() != 0 {
		t.Fatalf("expected empty journal, got last seq %d", w.LastSeq())
	}
	w.ResumeAfter(3)
	w.ResumeAfter(1)
	seq, err := w.Append(NewRecord(RecordCancel, nil))
	if err != nil || seq != 4 {
		t.Fatalf("append after resume: seq=%d err=%v", seq, err)
	}
	_ = w.Close()
}
