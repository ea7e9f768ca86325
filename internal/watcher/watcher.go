package watcher

import (
	"errors"

	"github.com/Hara602/wheaSentry/internal/model"
)

const (
	DefaultLogName = "System"
	DefaultHost    = "localhost"
)

var (
	ErrOpen            = errors.New("open event log")
	ErrRead            = errors.New("read event log")
	ErrMalformedRecord = errors.New("malformed event record")
)

// Handle is an open event log.
type Handle uintptr

// EventSource 定义接口, 抽象系统事件日志服务
type EventSource interface {
	Open(logName, host string) (Handle, error)
	// Read returns the most recent backward batch. It may return records
	// together with an error wrapping ErrMalformedRecord; those records are
	// still usable.
	Read(h Handle) ([]model.EventRecord, error)
	Close(h Handle) error
}

func New() EventSource {
	return newSource()
}
