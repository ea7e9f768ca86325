package sysutil

import "errors"

// InstanceName 单实例锁名称
const InstanceName = "WHEA_MONITOR_APP_KEY"

var ErrAlreadyRunning = errors.New("another monitor instance is already running")

// Instance holds the host-wide single instance lock until Release.
type Instance struct {
	release func() error
}

// AcquireInstance takes the named lock or fails with ErrAlreadyRunning.
func AcquireInstance(name string) (*Instance, error) {
	return acquireInstance(name)
}

func (i *Instance) Release() error {
	if i == nil || i.release == nil {
		return nil
	}
	err := i.release()
	i.release = nil
	return err
}
