package model

const (
	// EventLogRecordHeaderSize is sizeof(EVENTLOGRECORD) without the variable tail.
	EventLogRecordHeaderSize = 56
)

// EventLogRecordHeader 对应 C 结构体 EVENTLOGRECORD 的定长部分
// 后面紧跟 SourceName、Computername (UTF-16, 以 0 结尾)、UserSid、Strings、Data
/*
typedef struct _EVENTLOGRECORD {
  DWORD Length;
  DWORD Reserved;
  DWORD RecordNumber;
  DWORD TimeGenerated;
  DWORD TimeWritten;
  DWORD EventID;
  WORD  EventType;
  WORD  NumStrings;
  WORD  EventCategory;
  WORD  ReservedFlags;
  DWORD ClosingRecordNumber;
  DWORD StringOffset;
  DWORD UserSidLength;
  DWORD UserSidOffset;
  DWORD DataLength;
  DWORD DataOffset;
} EVENTLOGRECORD;
*/
type EventLogRecordHeader struct {
	// 整条记录的长度 (包括 Header 自己)
	Length uint32
	// 固定为 ELF_LOG_SIGNATURE ("LfLe")
	Reserved      uint32
	RecordNumber  uint32
	TimeGenerated uint32 // seconds since 1970-01-01 UTC
	TimeWritten   uint32
	EventID       uint32
	EventType     uint16
	NumStrings    uint16
	EventCategory uint16
	// 填充位
	ReservedFlags       uint16
	ClosingRecordNumber uint32
	StringOffset        uint32
	UserSidLength       uint32
	UserSidOffset       uint32
	DataLength          uint32
	DataOffset          uint32
}

// ELFLogSignature is the value of Reserved in every well-formed record.
const ELFLogSignature = 0x654c664c

// Event types reported in EventLogRecordHeader.EventType.
const (
	EventTypeError       = 0x0001
	EventTypeWarning     = 0x0002
	EventTypeInformation = 0x0004
)

// EventTypeName maps a record's EventType to a readable level.
func EventTypeName(t uint16) string {
	switch t {
	case EventTypeError:
		return "error"
	case EventTypeWarning:
		return "warning"
	case EventTypeInformation:
		return "information"
	default:
		return "other"
	}
}
