package wal

import "time"

type RecordType uint8

const (
	RecordSubmit RecordType = iota
	RecordCancel
	RecordClaim
	RecordSettle
)

// Record is one durable engine mutation. Seq is the engine sequence the
// mutation committed at; replay applies records in Seq order.
type Record struct {
	Type RecordType
	Seq  uint64
	Time int64
	Data []byte
}

func NewRecord(t RecordType, seq uint64, data []byte) *Record {
	return &Record{
		Type: t,
		Seq:  seq,
		Time: time.Now().UnixNano(),
		Data: data,
	}
}
