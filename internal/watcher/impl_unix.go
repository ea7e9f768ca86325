//go:build !windows

package watcher

import (
	"fmt"
	"runtime"

	"github.com/Hara602/wheaSentry/internal/model"
)

// unixSource has no event log service to talk to; every poll fails to open
// and the scheduler keeps ticking.
type unixSource struct{}

func newSource() EventSource               { return &unixSource{} }
func (s *unixSource) Close(h Handle) error { return nil }

func (s *unixSource) Open(logName, host string) (Handle, error) {
	return 0, fmt.Errorf("%w: %s on %s: Windows event log is not available on %s", ErrOpen, logName, host, runtime.GOOS)
}

func (s *unixSource) Read(h Handle) ([]model.EventRecord, error) {
	return nil, fmt.Errorf("%w: no event log", ErrRead)
}
