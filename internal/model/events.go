package model

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// EventID 事件 ID 的低 16 位
type EventID uint16

// MaskEventID clears the facility/severity bits the log service keeps in the
// upper half of the raw identifier.
func MaskEventID(raw uint32) EventID {
	return EventID(raw & 0xFFFF)
}

var recognized = map[EventID]string{
	17: "General hardware error event",
	18: "Machine Check Exception (MCE)",
	19: "Corrected Machine Check error",
	20: "PCI Express error",
	41: "Detailed WHEA error report",
	45: "Corrected memory error",
	46: "Corrected processor error",
	47: "Corrected PCI Express error",
}

// IsRecognized reports whether id is one of the WHEA identifiers we watch.
func IsRecognized(id EventID) bool {
	_, ok := recognized[id]
	return ok
}

// RecognizedList returns the watched identifiers in ascending order.
func RecognizedList() []EventID {
	ids := make([]EventID, 0, len(recognized))
	for id := range recognized {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Describe returns the meaning of a WHEA identifier, or "" if it is not watched.
func Describe(id EventID) string {
	return recognized[id]
}

// EventRecord 一条从系统事件日志读到的记录
type EventRecord struct {
	Identifier  uint32         // raw, mask before comparing
	GeneratedAt time.Time      // zero when the timestamp could not be decoded
	Raw         map[string]any // diagnostics only
}

// ID returns the masked identifier.
func (r EventRecord) ID() EventID {
	return MaskEventID(r.Identifier)
}

// AlertEvent is handed to the reaction dispatcher when a new error count is seen.
type AlertEvent struct {
	SessionID   string
	MatchCount  int
	Identifiers []EventID // ascending
	Timestamp   time.Time
}

// Codes renders the identifiers as "17, 45".
func (a AlertEvent) Codes() string {
	parts := make([]string, len(a.Identifiers))
	for i, id := range a.Identifiers {
		parts[i] = strconv.Itoa(int(id))
	}
	return strings.Join(parts, ", ")
}

// Message is the line written to the log panel and the error journal.
func (a AlertEvent) Message() string {
	return "WHEA error found (" + strconv.Itoa(a.MatchCount) + "). Error codes: " + a.Codes()
}

// Status 监控状态
type Status int

const (
	Stopped Status = iota
	Running
)

func (s Status) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}
