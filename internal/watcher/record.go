package watcher

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
	"unicode/utf16"

	"github.com/Hara602/wheaSentry/internal/model"
)

// DecodeRecords walks a ReadEventLog buffer.
// 缓冲区结构: [EVENTLOGRECORD1] + [EVENTLOGRECORD2] ... 每条记录以 Length 字段给出总长度
func DecodeRecords(buf []byte) ([]model.EventRecord, error) {
	var records []model.EventRecord
	offset := 0
	for offset < len(buf) {
		rest := len(buf) - offset
		if rest < model.EventLogRecordHeaderSize {
			return records, fmt.Errorf("%w: %d trailing bytes at offset %d", ErrMalformedRecord, rest, offset)
		}

		var hdr model.EventLogRecordHeader
		reader := bytes.NewReader(buf[offset : offset+model.EventLogRecordHeaderSize])
		if err := binary.Read(reader, binary.LittleEndian, &hdr); err != nil {
			return records, fmt.Errorf("%w: header at offset %d: %v", ErrMalformedRecord, offset, err)
		}

		// Length 不可信时无法定位下一条记录, 只能停止
		if hdr.Length < model.EventLogRecordHeaderSize || int(hdr.Length) > rest {
			return records, fmt.Errorf("%w: length %d at offset %d", ErrMalformedRecord, hdr.Length, offset)
		}

		records = append(records, decodeRecord(hdr, buf[offset:offset+int(hdr.Length)]))
		offset += int(hdr.Length)
	}
	return records, nil
}

func decodeRecord(hdr model.EventLogRecordHeader, rec []byte) model.EventRecord {
	source, next := readUTF16Z(rec, model.EventLogRecordHeaderSize)
	computer, _ := readUTF16Z(rec, next)

	r := model.EventRecord{
		Identifier: hdr.EventID,
		Raw: map[string]any{
			"RecordNumber":  hdr.RecordNumber,
			"EventID":       hdr.EventID,
			"EventType":     model.EventTypeName(hdr.EventType),
			"EventCategory": hdr.EventCategory,
			"NumStrings":    hdr.NumStrings,
			"TimeGenerated": hdr.TimeGenerated,
			"TimeWritten":   hdr.TimeWritten,
			"SourceName":    source,
			"ComputerName":  computer,
		},
	}
	// 签名不对或时间为 0: 时间戳无法解析, 留空由过滤器跳过
	if hdr.Reserved == model.ELFLogSignature && hdr.TimeGenerated != 0 {
		r.GeneratedAt = time.Unix(int64(hdr.TimeGenerated), 0)
	}
	return r
}

// readUTF16Z reads a NUL terminated UTF-16LE string starting at off and
// returns it with the offset just past the terminator.
func readUTF16Z(b []byte, off int) (string, int) {
	var u []uint16
	for off+1 < len(b) {
		c := binary.LittleEndian.Uint16(b[off:])
		off += 2
		if c == 0 {
			break
		}
		u = append(u, c)
	}
	return string(utf16.Decode(u)), off
}
