//go:build windows

package watcher

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/Hara602/wheaSentry/internal/model"
	"golang.org/x/sys/windows"
)

const (
	eventlogSequentialRead = 0x0001
	eventlogBackwardsRead  = 0x0008
	readBufferSize         = 0x10000
)

var (
	modadvapi32       = windows.NewLazySystemDLL("advapi32.dll")
	procOpenEventLogW = modadvapi32.NewProc("OpenEventLogW")
	procReadEventLogW = modadvapi32.NewProc("ReadEventLogW")
	procCloseEventLog = modadvapi32.NewProc("CloseEventLog")
)

type winSource struct{}

func newSource() EventSource { return &winSource{} }

func (s *winSource) Open(logName, host string) (Handle, error) {
	namePtr, err := windows.UTF16PtrFromString(logName)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrOpen, err)
	}
	// NULL 表示本机
	var hostPtr *uint16
	if host != "" && host != DefaultHost {
		if hostPtr, err = windows.UTF16PtrFromString(host); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrOpen, err)
		}
	}
	r, _, e := procOpenEventLogW.Call(uintptr(unsafe.Pointer(hostPtr)), uintptr(unsafe.Pointer(namePtr)))
	if r == 0 {
		return 0, fmt.Errorf("%w: %s on %s: %v", ErrOpen, logName, host, e)
	}
	return Handle(r), nil
}

func (s *winSource) Read(h Handle) ([]model.EventRecord, error) {
	buf := make([]byte, readBufferSize)
	n, needed, err := readEventLog(h, buf)
	if errors.Is(err, windows.ERROR_INSUFFICIENT_BUFFER) && needed > 0 {
		buf = make([]byte, needed)
		n, _, err = readEventLog(h, buf)
	}
	if errors.Is(err, windows.ERROR_HANDLE_EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}
	return DecodeRecords(buf[:n])
}

func readEventLog(h Handle, buf []byte) (read, needed uint32, err error) {
	r, _, e := procReadEventLogW.Call(
		uintptr(h),
		eventlogSequentialRead|eventlogBackwardsRead,
		0,
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(len(buf)),
		uintptr(unsafe.Pointer(&read)),
		uintptr(unsafe.Pointer(&needed)),
	)
	if r == 0 {
		return 0, needed, e
	}
	return read, needed, nil
}

func (s *winSource) Close(h Handle) error {
	r, _, e := procCloseEventLog.Call(uintptr(h))
	if r == 0 {
		return e
	}
	return nil
}
