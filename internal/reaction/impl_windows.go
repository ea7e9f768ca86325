//go:build windows

package reaction

import (
	"fmt"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	mbOK              = 0x00000000
	mbIconInformation = 0x00000040

	sndAsync    = 0x0001
	sndFilename = 0x00020000
)

var (
	moduser32       = windows.NewLazySystemDLL("user32.dll")
	procMessageBeep = moduser32.NewProc("MessageBeep")

	modwinmm       = windows.NewLazySystemDLL("winmm.dll")
	procPlaySoundW = modwinmm.NewProc("PlaySoundW")
)

type winDisplay struct{}

func newDisplay() Display { return winDisplay{} }

// ShowInfo opens the message box on its own goroutine; MessageBoxW blocks
// until the operator closes it and the poll loop must not wait for that.
func (winDisplay) ShowInfo(title, text string) error {
	t, err := windows.UTF16PtrFromString(text)
	if err != nil {
		return err
	}
	c, err := windows.UTF16PtrFromString(title)
	if err != nil {
		return err
	}
	go windows.MessageBox(0, t, c, mbOK|mbIconInformation)
	return nil
}

type winAudio struct{}

func newAudio() Audio { return winAudio{} }

func (winAudio) PlayAsync(path string) error {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return err
	}
	r, _, e := procPlaySoundW.Call(uintptr(unsafe.Pointer(p)), 0, sndFilename|sndAsync)
	if r == 0 {
		return fmt.Errorf("PlaySound %s: %v", path, e)
	}
	return nil
}

func (winAudio) Beep() error {
	r, _, e := procMessageBeep.Call(mbOK)
	if r == 0 {
		return fmt.Errorf("MessageBeep: %v", e)
	}
	return nil
}

type winLauncher struct{}

func newLauncher() Launcher { return winLauncher{} }

// Launch hands the program to the shell, like double-clicking it: .exe and
// .bat both work and the child is not tied to our process.
func (winLauncher) Launch(path, args string) error {
	verb, _ := windows.UTF16PtrFromString("open")
	file, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return err
	}
	dir, err := windows.UTF16PtrFromString(filepath.Dir(path))
	if err != nil {
		return err
	}
	var argPtr *uint16
	if args != "" {
		if argPtr, err = windows.UTF16PtrFromString(args); err != nil {
			return err
		}
	}
	return windows.ShellExecute(0, verb, file, argPtr, dir, windows.SW_SHOWNORMAL)
}
