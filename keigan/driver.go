package keigan

import (
	"encoding/binary"
	"fmt"
	"go.bug.st/serial.v1"
	"math"
	"sync"
)

// Driver is the subset of the Keigan motor command set this controller
// needs. Anything else on the vendor protocol is reachable by constructing
// frames through Command on the usb driver.
type Driver interface {
	EnableAction() error
	DisableAction() error
	SetSpeed(radPerSec float64) error
	MoveByDist(rad float64) error
	SetLED(state, red, green, blue byte) error
	SetCurveType(curve byte) error
	Close() error
}

// Keigan USB command opcodes.
const (
	cmdCurveType     = 0x05
	cmdSetLED        = 0x3a
	cmdDisableAction = 0x50
	cmdEnableAction  = 0x51
	cmdSetSpeed      = 0x58
	cmdMoveByDist    = 0x68
)

// usbDriver frames commands onto the motor's USB serial port. Frames are
// opcode, big endian task id, payload; the motor does not acknowledge
// writes on this transport.
type usbDriver struct {
	mu     sync.Mutex
	port   serial.Port
	taskID uint16
}

// openUSB opens the vendor serial link. Replaceable in tests.
var openUSB = func(path string, baud int) (Driver, error) {
	port, err := serial.Open(path, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port '%s': %w", path, err)
	}

	return &usbDriver{port: port}, nil
}

// Command writes one framed command with an arbitrary payload.
func (d *usbDriver) Command(opcode byte, payload []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.taskID++

	frame := make([]byte, 0, 3+len(payload))
	frame = append(frame, opcode)
	frame = binary.BigEndian.AppendUint16(frame, d.taskID)
	frame = append(frame, payload...)

	if _, err := d.port.Write(frame); err != nil {
		return fmt.Errorf("failed to write command 0x%02x: %w", opcode, err)
	}

	return nil
}

func (d *usbDriver) EnableAction() error {
	return d.Command(cmdEnableAction, nil)
}

func (d *usbDriver) DisableAction() error {
	return d.Command(cmdDisableAction, nil)
}

func (d *usbDriver) SetSpeed(radPerSec float64) error {
	return d.Command(cmdSetSpeed, float32Payload(radPerSec))
}

func (d *usbDriver) MoveByDist(rad float64) error {
	return d.Command(cmdMoveByDist, float32Payload(rad))
}

func (d *usbDriver) SetLED(state, red, green, blue byte) error {
	return d.Command(cmdSetLED, []byte{state, red, green, blue})
}

func (d *usbDriver) SetCurveType(curve byte) error {
	return d.Command(cmdCurveType, []byte{curve})
}

func (d *usbDriver) Close() error {
	return d.port.Close()
}

func float32Payload(v float64) []byte {
	out := make([]byte, 4)
	binary.BigEndian.PutUint32(out, math.Float32bits(float32(v)))

	return out
}
