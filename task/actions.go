package task

import (
	"fmt"
	"strings"
)

// ErrUnknownAction is wrapped with the action string that no enum of the
// resolved target kind accepts. A hard error, never a skip.
const ErrUnknownAction = taskError("unknown action")

// CameraAction is the closed set of actions a camera target accepts.
type CameraAction string

const (
	CameraGet              CameraAction = "get"
	CameraPost             CameraAction = "post"
	CameraPut              CameraAction = "put"
	CameraDelete           CameraAction = "delete"
	CameraShutter          CameraAction = "shutter"
	CameraAperture         CameraAction = "aperture"
	CameraExposure         CameraAction = "exposure"
	CameraISO              CameraAction = "iso"
	CameraWhiteBalance     CameraAction = "white_balance"
	CameraShutterSpeed     CameraAction = "shutter_speed"
	CameraColorTemperature CameraAction = "color_temperature"
)

// ParseCameraAction maps an action cell onto the camera enum.
func ParseCameraAction(s string) (CameraAction, error) {
	switch a := CameraAction(s); a {
	case CameraGet, CameraPost, CameraPut, CameraDelete, CameraShutter,
		CameraAperture, CameraExposure, CameraISO, CameraWhiteBalance,
		CameraShutterSpeed, CameraColorTemperature:
		return a, nil
	}

	return "", fmt.Errorf("%w for camera target: %s", ErrUnknownAction, s)
}

// MotorAction is the closed set of actions a motor target accepts.
type MotorAction string

const (
	MotorClockwise        MotorAction = "cw"
	MotorCounterClockwise MotorAction = "ccw"
	MotorSpeed            MotorAction = "speed"
)

// ParseMotorAction maps an action cell onto the motor enum.
func ParseMotorAction(s string) (MotorAction, error) {
	switch a := MotorAction(s); a {
	case MotorClockwise, MotorCounterClockwise, MotorSpeed:
		return a, nil
	}

	return "", fmt.Errorf("%w for motor target: %s", ErrUnknownAction, s)
}

// AllAction is the closed set of actions the pseudo target "all" accepts.
type AllAction string

// AllSleep is a no-op row; the per row wait_time supplies the actual delay.
const AllSleep AllAction = "sleep"

// ParseAllAction maps an action cell onto the "all" enum.
func ParseAllAction(s string) (AllAction, error) {
	if AllAction(s) == AllSleep {
		return AllSleep, nil
	}

	return "", fmt.Errorf("%w for target 'all': %s", ErrUnknownAction, s)
}

// ErrNotBoolean is wrapped with a param cell that ParseBool could not read.
const ErrNotBoolean = taskError("could not convert to bool")

// ParseBool converts a param cell to a boolean. The accepted spellings
// include the chart marker words used in shooting scripts.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "t", "yes", "y", "1", "mark":
		return true, nil
	case "false", "f", "no", "n", "0", "space":
		return false, nil
	}

	return false, fmt.Errorf("%w: %s", ErrNotBoolean, s)
}
