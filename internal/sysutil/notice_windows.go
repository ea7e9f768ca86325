//go:build windows

package sysutil

import "golang.org/x/sys/windows"

const (
	mbOK          = 0x00000000
	mbIconWarning = 0x00000030
)

// FatalNotice shows a blocking warning box before the process exits.
func FatalNotice(title, text string) {
	t, _ := windows.UTF16PtrFromString(text)
	c, _ := windows.UTF16PtrFromString(title)
	windows.MessageBox(0, t, c, mbOK|mbIconWarning)
}
