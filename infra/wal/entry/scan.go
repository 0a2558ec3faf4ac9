package entry

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// Frame: [type:1][seq:8][time:8][len:4][payload][crc:4]
const headerSize = 1 + 8 + 8 + 4

var ErrCorrupt = errors.New("journal record corrupt")

// errTorn marks a frame cut short by the end of the segment.
var errTorn = errors.New("torn frame")

func encodeFrame(r *Record) []byte {
	payloadLen := uint32(len(r.Data))
	buf := make([]byte, headerSize+int(payloadLen)+4)

	buf[0] = byte(r.Type)
	binary.BigEndian.PutUint64(buf[1:9], r.Seq)
	binary.BigEndian.PutUint64(buf[9:17], uint64(r.Time))
	binary.BigEndian.PutUint32(buf[17:21], payloadLen)
	copy(buf[headerSize:], r.Data)

	crc := checksum(buf[:headerSize+int(payloadLen)])
	binary.BigEndian.PutUint32(buf[headerSize+int(payloadLen):], crc)
	return buf
}

// readRecord returns io.EOF at a clean end of segment.
func readRecord(r io.Reader) (*Record, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("%w: %w in header", ErrCorrupt, errTorn)
		}
		return nil, err
	}

	l := binary.BigEndian.Uint32(header[17:21])
	data := make([]byte, int(l)+4)
	if _, err := io.ReadFull(r, data); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("%w: %w in payload", ErrCorrupt, errTorn)
		}
		return nil, err
	}

	payload := data[:l]
	crc := binary.BigEndian.Uint32(data[l:])
	if checksum(append(header, payload...)) != crc {
		return nil, fmt.Errorf("%w: crc mismatch", ErrCorrupt)
	}

	return &Record{
		Type: RecordType(header[0]),
		Seq:  binary.BigEndian.Uint64(header[1:9]),
		Time: int64(binary.BigEndian.Uint64(header[9:17])),
		Data: payload,
	}, nil
}

// maxSeqInSegment returns the largest sequence in a segment without
// verifying payloads. Used for truncation and for resuming on open.
func maxSeqInSegment(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var max uint64
	header := make([]byte, headerSize)
	for {
		if _, err := io.ReadFull(f, header); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return max, nil
			}
			return max, err
		}

		if seq := binary.BigEndian.Uint64(header[1:9]); seq > max {
			max = seq
		}

		payloadLen := binary.BigEndian.Uint32(header[17:21])
		if _, err := f.Seek(int64(payloadLen)+4, io.SeekCurrent); err != nil {
			return max, err
		}
	}
}

// intactPrefix returns the byte length of the leading run of intact frames in
// a segment and the highest sequence among them. A torn frame, or a checksum
// failure on the final frame, ends the run. A bad frame with data after it is
// returned as ErrCorrupt: it is not a crash artifact and must not be cut.
func intactPrefix(path string) (int64, uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var (
		off int64
		max uint64
	)
	for {
		rec, err := readRecord(r)
		switch {
		case err == io.EOF, errors.Is(err, errTorn):
			return off, max, nil
		case errors.Is(err, ErrCorrupt):
			if _, perr := r.Peek(1); perr == io.EOF {
				return off, max, nil
			}
			return off, max, fmt.Errorf("%s at offset %d: %w", path, off, err)
		case err != nil:
			return off, max, err
		}
		off += int64(headerSize + len(rec.Data) + 4)
		if rec.Seq > max {
			max = rec.Seq
		}
	}
}

// repairTail cuts a partially written final frame off a segment so that
// appends resume on a frame boundary. It reports the bytes dropped.
func repairTail(path string) (int64, error) {
	good, _, err := intactPrefix(path)
	if err != nil {
		return 0, err
	}
	st, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if st.Size() <= good {
		return 0, nil
	}
	if err := os.Truncate(path, good); err != nil {
		return 0, err
	}
	return st.Size() - good, nil
}
