// Copyright 2026 by the M5Unit-Sonic authors, see LICENSE file

// Package sonic contains a driver for the M5Stack Unit Sonic ultrasonic
// distance sensors. The unit exists in two hardware variants that share a
// transducer but little else: an I2C module (RCWL-9620 based) that performs
// the measurement internally and returns the distance over the bus, and an IO
// module (HC-SR04 style) that exposes a raw trigger/echo pin pair and leaves
// the timing to the host.
//
// Both variants are driven through the same non-blocking pattern: the caller
// invokes ReadingAvailable from its control loop and the driver advances a
// small state machine by at most one step per call. A call either triggers a
// new measurement cycle, notices that the cycle has completed (or timed out)
// and latches the result, or does nothing. The distance accessors never
// perform I/O and always return the last latched reading, so a caller that
// averages readings must gate on ReadingAvailable to avoid counting the same
// measurement twice.
//
// The I2C variant has no public datasheet. The protocol used here was reverse
// engineered from the vendor driver: write 0x01, wait 120ms, read back 3
// big-endian bytes of micrometers. See the conversionTime constant in i2c.go
// before assuming any further register structure exists.
//
// The IO variant measures the width of the echo pulse. Two strategies are
// offered: edge callbacks (EchoRising/EchoFalling, fed either from a real ISR
// on bare metal or from the WatchEdges goroutine on hosted platforms) combined
// with the polling state machine, or a simple blocking PulseDuration
// measurement for callers that don't mind stalling for the round trip. A
// missing echo is a legitimate outcome, not an error: when the timeout
// expires the driver latches MaxDistance and completes the cycle.
//
// On hosted Go the fields shared between the edge callbacks and the poll are
// guarded by a mutex. Ports that call EchoRising/EchoFalling from a real
// interrupt context must replace that with interrupt masking; the driver
// cannot do it for them.
//
// Low level pin access goes through the small GPIO interface in hal.go, with
// bindings for periph.io and embd. I2C access uses periph.io/x/conn/v3
// directly. Simple commands to test the sensors can be found in the cmd
// directory tree.
package sonic
