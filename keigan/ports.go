package keigan

import (
	"go.bug.st/serial.v1"
)

// listPorts enumerates the host's serial devices. Replaceable in tests.
var listPorts = serial.GetPortsList

func portAvailable(path string) (bool, error) {
	ports, err := listPorts()
	if err != nil {
		return false, err
	}

	for _, p := range ports {
		if p == path {
			return true, nil
		}
	}

	return false, nil
}

var releasePortFn = releasePort

// ReleasePort attempts to free a serial port held by a stale process. The
// contract is best effort: a failure is reported but never guarantees the
// port is actually free, and success does not guarantee it either. The
// mechanism is platform dependent; see releasePort in the per platform
// files.
func ReleasePort(path string) error {
	return releasePortFn(path)
}
