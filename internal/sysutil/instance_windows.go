//go:build windows

package sysutil

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows"
)

func acquireInstance(name string) (*Instance, error) {
	namePtr, err := windows.UTF16PtrFromString(`Global\` + name)
	if err != nil {
		return nil, fmt.Errorf("mutex name: %w", err)
	}
	h, err := windows.CreateMutex(nil, false, namePtr)
	if errors.Is(err, windows.ERROR_ALREADY_EXISTS) {
		windows.CloseHandle(h)
		return nil, ErrAlreadyRunning
	}
	if err != nil {
		return nil, fmt.Errorf("create mutex: %w", err)
	}
	return &Instance{release: func() error { return windows.CloseHandle(h) }}, nil
}
