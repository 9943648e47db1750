package keigan

import "math"

// DegToRad converts degrees to the radians the vendor protocol speaks.
func DegToRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// RPMToRadPerSec converts revolutions per minute to the protocol's native
// angular velocity unit.
func RPMToRadPerSec(rpm float64) float64 {
	return rpm * 2 * math.Pi / 60
}
