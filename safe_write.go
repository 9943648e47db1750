package main

import (
	"fmt"
	"os"
	"time"
)

// safeWriteFile replaces name without a window in which a crash leaves a
// partial file: the new content lands under a timestamped sibling first and
// is renamed into place.
func safeWriteFile(name string, data []byte, perm os.FileMode) error {
	ut := time.Now().UnixNano() / int64(time.Millisecond)
	newName := fmt.Sprintf("%s-%d-new", name, ut)
	oldName := fmt.Sprintf("%s-%d-old", name, ut)

	if err := os.WriteFile(newName, data, perm); err != nil {
		return fmt.Errorf("failed to write new file: %w", err)
	}

	_, err := os.Stat(name)
	oldExists := !os.IsNotExist(err)

	if oldExists {
		if err := os.Rename(name, oldName); err != nil {
			return fmt.Errorf("failed to move old file aside: %w", err)
		}
	}

	if err := os.Rename(newName, name); err != nil {
		return fmt.Errorf("failed to move new file into place: %w", err)
	}

	if oldExists {
		if err := os.Remove(oldName); err != nil {
			return fmt.Errorf("failed to remove old file: %w", err)
		}
	}

	return nil
}
