//go:build !windows

package keigan

import (
	"fmt"
	"os/exec"
)

// On POSIX hosts a process holding the port is killed outright; the motor
// link tolerates an abrupt disconnect.
func releasePort(path string) error {
	if err := exec.Command("fuser", "-k", path).Run(); err != nil {
		return fmt.Errorf("failed to kill holder of '%s': %w", path, err)
	}

	return nil
}
