package entry

import "time"

type RecordType uint8

const (
	RecordNewMarket RecordType = iota + 1
	RecordPlaceLimit
	RecordPlaceMarket
	RecordCancel
)

func (t RecordType) String() string {
	switch t {
	case RecordNewMarket:
		return "NEW_MARKET"
	case RecordPlaceLimit:
		return "PLACE_LIMIT"
	case RecordPlaceMarket:
		return "PLACE_MARKET"
	case RecordCancel:
		return "CANCEL"
	default:
		return "UNKNOWN"
	}
}

// Record is one journal entry. Seq is assigned by the WAL on Append.
type Record struct {
	Type RecordType
	Seq  uint64
	Time int64
	Data []byte
}

func NewRecord(t RecordType, data []byte) *Record {
	return &Record{
		Type: t,
		Time: time.Now().UnixNano(),
		Data: data,
	}
}
