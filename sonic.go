// Copyright 2026 by the M5Unit-Sonic authors, see LICENSE file

package sonic

import (
	"time"

	"periph.io/x/conn/v3/physic"
)

// Limits of the transducer, in millimeters. The chip cannot detect anything
// beyond 4.5m and readings below 20mm are unreliable.
const (
	MaxDistance = 4500
	MinDistance = 20
)

// DefaultAddr is the I2C address of the sensor, DefaultSpeed the bus speed
// the vendor driver configures.
const (
	DefaultAddr  uint16 = 0x57
	DefaultSpeed        = 200 * physic.KiloHertz
)

const (
	// maxDistanceUm is MaxDistance in the micrometer units the sensor
	// reports and the drivers store internally.
	maxDistanceUm = MaxDistance * 1000

	// soundSpeedUmPerUs is how far sound travels in one microsecond.
	soundSpeedUmPerUs = 343

	// trigPulseWidth is the minimum width of the pulse on the trigger pin
	// that starts a measurement on the IO variant.
	trigPulseWidth = 10 * time.Microsecond

	// defaultEchoTimeout bounds the wait for an echo. The theoretical
	// worst case round trip for MaxDistance is 2*4500mm/343mm/ms = 27ms,
	// the chip itself can hold the echo line quite a bit longer when
	// nothing reflects, so the vendor value of 120ms is kept.
	defaultEchoTimeout = 120 * time.Millisecond
)

// Sensor is the capability common to both hardware variants: a non-blocking
// poll plus I/O-free accessors for the most recent reading.
type Sensor interface {
	// ReadingAvailable advances the measurement cycle and reports whether
	// a fresh reading was latched. It must be called from the client's
	// loop.
	ReadingAvailable() bool
	// Distance returns the latest reading in millimeters, clamped to
	// MaxDistance.
	Distance() float32
	// DistanceInt returns the latest reading truncated to whole
	// millimeters, clamped to MaxDistance.
	DistanceInt() uint16
	// Busy reports whether a measurement cycle is outstanding.
	Busy() bool
}

// LogPrintf is a function used by the drivers to print logging info.
type LogPrintf func(format string, v ...interface{})

func nologPrintf(format string, v ...interface{}) {}

// clampMm converts a stored micrometer reading to clamped float millimeters.
func clampMm(um uint32) float32 {
	if um > maxDistanceUm {
		return MaxDistance
	}
	return float32(um) / 1000
}

// clampMmInt converts a stored micrometer reading to clamped whole
// millimeters.
func clampMmInt(um uint32) uint16 {
	mm := um / 1000
	if mm > MaxDistance {
		return MaxDistance
	}
	return uint16(mm)
}

// pulseToUm converts an echo pulse width to micrometers. The pulse covers the
// flight to the target and back, so half of it is distance. Saturates at the
// sensor's maximum.
func pulseToUm(pulse time.Duration) uint32 {
	um := uint64(pulse.Microseconds()) * soundSpeedUmPerUs / 2
	if um > maxDistanceUm {
		return maxDistanceUm
	}
	return uint32(um)
}
