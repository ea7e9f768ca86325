//go:build !windows

package sysutil

import (
	"fmt"
	"os"
)

// FatalNotice writes the notice to stderr; there is no desktop to block on.
func FatalNotice(title, text string) {
	fmt.Fprintf(os.Stderr, "%s: %s\n", title, text)
}
