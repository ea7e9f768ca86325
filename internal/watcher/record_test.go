package watcher

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"time"
	"unicode/utf16"

	"github.com/Hara602/wheaSentry/internal/model"
)

type testRecord struct {
	id        uint32
	generated uint32
	signature uint32
	source    string
	computer  string
}

func utf16z(s string) []byte {
	var b bytes.Buffer
	for _, c := range utf16.Encode([]rune(s)) {
		binary.Write(&b, binary.LittleEndian, c)
	}
	b.Write([]byte{0, 0})
	return b.Bytes()
}

func encodeRecord(t *testing.T, r testRecord) []byte {
	t.Helper()
	if r.signature == 0 {
		r.signature = model.ELFLogSignature
	}
	tail := append(utf16z(r.source), utf16z(r.computer)...)
	for len(tail)%4 != 0 {
		tail = append(tail, 0)
	}
	hdr := model.EventLogRecordHeader{
		Length:        uint32(model.EventLogRecordHeaderSize + len(tail)),
		Reserved:      r.signature,
		RecordNumber:  1,
		TimeGenerated: r.generated,
		TimeWritten:   r.generated,
		EventID:       r.id,
		EventType:     model.EventTypeError,
	}
	var b bytes.Buffer
	if err := binary.Write(&b, binary.LittleEndian, hdr); err != nil {
		t.Fatalf("encode header: %v", err)
	}
	if b.Len() != model.EventLogRecordHeaderSize {
		t.Fatalf("header size = %d, want %d", b.Len(), model.EventLogRecordHeaderSize)
	}
	b.Write(tail)
	return b.Bytes()
}

func TestDecodeRecords(t *testing.T) {
	ts := uint32(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Unix())
	var buf []byte
	buf = append(buf, encodeRecord(t, testRecord{id: 0x80000011, generated: ts, source: "WHEA-Logger", computer: "HOST"})...)
	buf = append(buf, encodeRecord(t, testRecord{id: 7036, generated: ts + 5, source: "Service Control Manager", computer: "HOST"})...)

	records, err := DecodeRecords(buf)
	if err != nil {
		t.Fatalf("DecodeRecords: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if records[0].ID() != 17 {
		t.Errorf("records[0].ID() = %d, want 17", records[0].ID())
	}
	if !records[0].GeneratedAt.Equal(time.Unix(int64(ts), 0)) {
		t.Errorf("records[0].GeneratedAt = %v", records[0].GeneratedAt)
	}
	if records[0].Raw["SourceName"] != "WHEA-Logger" {
		t.Errorf("SourceName = %v, want WHEA-Logger", records[0].Raw["SourceName"])
	}
	if records[1].Raw["ComputerName"] != "HOST" {
		t.Errorf("ComputerName = %v, want HOST", records[1].Raw["ComputerName"])
	}
}

func TestDecodeRecordsBadSignature(t *testing.T) {
	buf := encodeRecord(t, testRecord{id: 17, generated: 1000, signature: 0xdeadbeef})
	buf = append(buf, encodeRecord(t, testRecord{id: 18, generated: 1000})...)

	records, err := DecodeRecords(buf)
	if err != nil {
		t.Fatalf("DecodeRecords: %v", err)
	}
	if !records[0].GeneratedAt.IsZero() {
		t.Errorf("bad signature record has timestamp %v, want zero", records[0].GeneratedAt)
	}
	if records[1].GeneratedAt.IsZero() {
		t.Error("good record lost its timestamp")
	}
}

func TestDecodeRecordsTruncated(t *testing.T) {
	good := encodeRecord(t, testRecord{id: 17, generated: 1000})
	broken := encodeRecord(t, testRecord{id: 18, generated: 1000})
	buf := append(good, broken[:len(broken)-4]...)

	records, err := DecodeRecords(buf)
	if !errors.Is(err, ErrMalformedRecord) {
		t.Fatalf("err = %v, want ErrMalformedRecord", err)
	}
	if len(records) != 1 || records[0].ID() != 17 {
		t.Errorf("records = %+v, want the one good record", records)
	}
}

func TestDecodeRecordsShortTail(t *testing.T) {
	buf := append(encodeRecord(t, testRecord{id: 19, generated: 1000}), 1, 2, 3)

	records, err := DecodeRecords(buf)
	if !errors.Is(err, ErrMalformedRecord) {
		t.Fatalf("err = %v, want ErrMalformedRecord", err)
	}
	if len(records) != 1 {
		t.Errorf("len(records) = %d, want 1", len(records))
	}
}

func TestDecodeRecordsEmpty(t *testing.T) {
	records, err := DecodeRecords(nil)
	if err != nil || len(records) != 0 {
		t.Errorf("DecodeRecords(nil) = %v, %v", records, err)
	}
}
