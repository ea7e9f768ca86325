//go:build unix

package reaction

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// startDetached starts cmd in its own session and reaps it in the background.
func startDetached(cmd *exec.Cmd) error {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait()
	return nil
}

type unixDisplay struct{}

func newDisplay() Display { return unixDisplay{} }

func (unixDisplay) ShowInfo(title, text string) error {
	bin, err := exec.LookPath("notify-send")
	if err != nil {
		return fmt.Errorf("no notification tool: %w", err)
	}
	return startDetached(exec.Command(bin, "--urgency=critical", title, text))
}

type unixAudio struct{}

func newAudio() Audio { return unixAudio{} }

func (unixAudio) PlayAsync(path string) error {
	for _, player := range []string{"paplay", "aplay"} {
		if bin, err := exec.LookPath(player); err == nil {
			return startDetached(exec.Command(bin, path))
		}
	}
	return fmt.Errorf("no audio player found for %s", path)
}

// Beep rings the terminal bell.
func (unixAudio) Beep() error {
	_, err := os.Stdout.Write([]byte("\a"))
	return err
}

type unixLauncher struct{}

func newLauncher() Launcher { return unixLauncher{} }

// Launch passes args as one argument after the program path.
func (unixLauncher) Launch(path, args string) error {
	cmd := exec.Command(path)
	if args != "" {
		cmd = exec.Command(path, args)
	}
	return startDetached(cmd)
}
