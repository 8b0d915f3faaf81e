package wal

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAppendThenReplay(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir, SegmentSize: 1 << 20})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for seq := uint64(1); seq <= 5; seq++ {
		p := &SubmitPayload{Caller: 7, OrderID: seq, Side: 1, Price: -int64(seq), Qty: uint32(seq)}
		if err := w.Append(NewRecord(RecordSubmit, seq, p.Encode())); err != nil {
			t.Fatalf("append %d: %v", seq, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var got []uint64
	last, err := Replay(dir, 0, func(rec *Record) error {
		if rec.Type != RecordSubmit {
			t.Errorf("seq %d: wrong type %d", rec.Seq, rec.Type)
		}
		var p SubmitPayload
		if err := p.Decode(rec.Data); err != nil {
			return err
		}
		if p.OrderID != rec.Seq || p.Price != -int64(rec.Seq) {
			t.Errorf("seq %d: payload mangled %+v", rec.Seq, p)
		}
		got = append(got, rec.Seq)
		return nil
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if last != 5 || len(got) != 5 {
		t.Errorf("replayed %v, last %d", got, last)
	}
}

func TestReplaySkipsThroughAfter(t *testing.T) {
	dir := t.TempDir()
	w, _ := Open(Config{Dir: dir, SegmentSize: 1 << 20})
	for seq := uint64(1); seq <= 6; seq++ {
		_ = w.Append(NewRecord(RecordCancel, seq, (&CancelPayload{Caller: 1, OrderID: seq}).Encode()))
	}
	_ = w.Close()

	var got []uint64
	last, err := Replay(dir, 4, func(rec *Record) error {
		got = append(got, rec.Seq)
		return nil
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if last != 6 || len(got) != 2 || got[0] != 5 || got[1] != 6 {
		t.Errorf("replayed %v, last %d", got, last)
	}
}

func TestRotationAndResume(t *testing.T) {
	dir := t.TempDir()
	// tiny segments so every record rotates
	w, _ := Open(Config{Dir: dir, SegmentSize: 8})
	for seq := uint64(1); seq <= 4; seq++ {
		_ = w.Append(NewRecord(RecordSettle, seq, (&SettlePayload{Principal: seq}).Encode()))
	}
	_ = w.Close()

	files, _ := segmentPaths(dir)
	if len(files) < 4 {
		t.Fatalf("expected one segment per record, got %d", len(files))
	}

	// reopening appends to the highest segment, not a fresh numbering
	w2, err := Open(Config{Dir: dir, SegmentSize: 1 << 20})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	_ = w2.Append(NewRecord(RecordSettle, 5, (&SettlePayload{Principal: 5}).Encode()))
	_ = w2.Close()

	var got []uint64
	if _, err := Replay(dir, 0, func(rec *Record) error {
		got = append(got, rec.Seq)
		return nil
	}); err != nil {
		t.Fatalf("replay: %v", err)
	}
	for i, seq := range got {
		if seq != uint64(i+1) {
			t.Fatalf("sequence broken across segments: %v", got)
		}
	}
	if len(got) != 5 {
		t.Errorf("expected 5 records, got %v", got)
	}
}

func TestTruncateBeforeKeepsLiveSegments(t *testing.T) {
	dir := t.TempDir()
	w, _ := Open(Config{Dir: dir, SegmentSize: 8})
	for seq := uint64(1); seq <= 6; seq++ {
		_ = w.Append(NewRecord(RecordClaim, seq, (&ClaimPayload{Principal: 1, OrderID: seq}).Encode()))
	}

	if err := w.TruncateBefore(4); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	_ = w.Close()

	var got []uint64
	if _, err := Replay(dir, 0, func(rec *Record) error {
		got = append(got, rec.Seq)
		return nil
	}); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(got) == 0 || got[0] != 5 {
		t.Errorf("records at or below 4 should be gone, got %v", got)
	}
	for _, seq := range got {
		if seq <= 4 {
			t.Errorf("seq %d survived truncation", seq)
		}
	}
}

func TestTornTailEndsReplayCleanly(t *testing.T) {
	dir := t.TempDir()
	w, _ := Open(Config{Dir: dir, SegmentSize: 1 << 20})
	_ = w.Append(NewRecord(RecordSettle, 1, (&SettlePayload{Principal: 1}).Encode()))
	_ = w.Append(NewRecord(RecordSettle, 2, (&SettlePayload{Principal: 2}).Encode()))
	_ = w.Close()

	// chop a few bytes off the tail, as a crash mid-write would
	files, _ := segmentPaths(dir)
	path := files[len(files)-1]
	st, _ := os.Stat(path)
	if err := os.Truncate(path, st.Size()-3); err != nil {
		t.Fatalf("truncate file: %v", err)
	}

	var got []uint64
	last, err := Replay(dir, 0, func(rec *Record) error {
		got = append(got, rec.Seq)
		return nil
	})
	if err != nil {
		t.Fatalf("torn tail must not fail replay: %v", err)
	}
	if last != 1 || len(got) != 1 {
		t.Errorf("expected only the intact record, got %v", got)
	}
}

func TestCorruptRecordFailsReplay(t *testing.T) {
	dir := t.TempDir()
	w, _ := Open(Config{Dir: dir, SegmentSize: 1 << 20})
	_ = w.Append(NewRecord(RecordSettle, 1, (&SettlePayload{Principal: 1}).Encode()))
	_ = w.Close()

	files, _ := segmentPaths(dir)
	data, _ := os.ReadFile(files[0])
	data[21] ^= 0xFF // flip the first payload byte under the checksum
	if err := os.WriteFile(filepath.Join(dir, "segment-000000.wal"), data, 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	if _, err := Replay(dir, 0, func(*Record) error { return nil }); err == nil {
		t.Error("flipped byte must fail the checksum")
	}
}

func TestPayloadDecodeIgnoresUnknownFields(t *testing.T) {
	b := (&SubmitPayload{Caller: 9, OrderID: 3, Side: 1, Price: 77, Qty: 2}).Encode()
	b = appendUvarintField(b, 99, 12345) // a future field

	var p SubmitPayload
	if err := p.Decode(b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Caller != 9 || p.OrderID != 3 || p.Side != 1 || p.Price != 77 || p.Qty != 2 {
		t.Errorf("decoded %+v", p)
	}
}
