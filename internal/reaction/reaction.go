// Package reaction executes the operator's configured response to a WHEA alert.
package reaction

import (
	"os"
	"path/filepath"

	"github.com/Hara602/wheaSentry/internal/config"
)

const (
	Title          = "WHEA Monitor"
	DefaultMessage = "WHEA error detected"
)

// Display shows an informational notice to the operator.
type Display interface {
	ShowInfo(title, text string) error
}

// Audio plays sound assets and the system beep without blocking.
type Audio interface {
	PlayAsync(path string) error
	Beep() error
}

// Launcher starts a detached external program.
type Launcher interface {
	Launch(path, args string) error
}

// Sound is one entry of the fixed sound table.
type Sound struct {
	Name string
	Path string
}

// DefaultSounds returns the built-in sound table under %SystemRoot%\Media.
func DefaultSounds() [config.SoundCount]Sound {
	root := os.Getenv("SystemRoot")
	if root == "" {
		root = `C:\Windows`
	}
	media := filepath.Join(root, "Media")
	return [config.SoundCount]Sound{
		{Name: "Windows Background", Path: filepath.Join(media, "Windows Background.wav")},
		{Name: "System Notify", Path: filepath.Join(media, "Windows Notify System Generic.wav")},
		{Name: "Critical Stop", Path: filepath.Join(media, "Windows Critical Stop.wav")},
	}
}
