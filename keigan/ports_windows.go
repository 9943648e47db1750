//go:build windows

package keigan

import (
	"fmt"
	"go.bug.st/serial.v1"
)

// Windows has no fuser equivalent; opening and closing through the native
// serial stack clears a stale handle in practice.
func releasePort(path string) error {
	port, err := serial.Open(path, &serial.Mode{})
	if err != nil {
		return fmt.Errorf("failed to cycle '%s': %w", path, err)
	}

	return port.Close()
}
