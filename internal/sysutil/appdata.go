package sysutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// AppDataDir returns (and creates) %APPDATA%\Forgotten\WHEAD, or the
// platform's per-user config dir equivalent.
func AppDataDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate user config dir: %w", err)
	}
	dir := filepath.Join(base, "Forgotten", "WHEAD")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create app data dir: %w", err)
	}
	return dir, nil
}
