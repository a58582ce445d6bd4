// Copyright 2026 by the M5Unit-Sonic authors, see LICENSE file

package sonic

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"periph.io/x/conn/v3/i2c/i2ctest"
)

// playback returns a bus expecting the probe plus one full measurement cycle
// delivering the given payload.
func playback(payload []byte) *i2ctest.Playback {
	return &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: DefaultAddr, W: nil, R: nil},                // probe
			{Addr: DefaultAddr, W: []byte{cmdMeasure}, R: nil}, // trigger
			{Addr: DefaultAddr, W: nil, R: payload},            // collect
		},
		DontPanic: true,
	}
}

func TestI2CConversionCycle(t *testing.T) {
	mock := clock.NewMock()
	bus := playback([]byte{0x00, 0x03, 0xE8}) // 1000um = 1mm
	d, err := NewI2C(bus, &I2COpts{Clock: mock})
	if err != nil {
		t.Fatalf("NewI2C: %v", err)
	}

	// Before any measurement the reading is the maximum distance.
	if got := d.Distance(); got != MaxDistance {
		t.Fatalf("initial Distance got %v expected %v", got, MaxDistance)
	}
	if d.Busy() {
		t.Fatalf("busy before first poll")
	}

	// First poll triggers the conversion and reports nothing available.
	if d.ReadingAvailable() {
		t.Fatalf("reading available immediately after trigger")
	}
	if !d.Busy() {
		t.Fatalf("not busy while converting")
	}

	// Any amount of polling below the conversion time must not touch the
	// bus. The playback bus has no ops left before the collect read, so a
	// premature read or re-trigger would surface as a driver error.
	for i := 0; i < 10; i++ {
		mock.Add(11 * time.Millisecond) // ends at 110ms
		if d.ReadingAvailable() {
			t.Fatalf("reading available at %v, before conversion time", mock.Now().Sub(time.Unix(0, 0)))
		}
	}
	if err := d.Error(); err != nil {
		t.Fatalf("unexpected bus activity while converting: %v", err)
	}

	// Once the conversion time has elapsed the data gets collected.
	mock.Add(10 * time.Millisecond) // 120ms total
	if !d.ReadingAvailable() {
		t.Fatalf("no reading at conversion time")
	}
	if d.Busy() {
		t.Fatalf("busy after collecting")
	}
	if got := d.Distance(); got != 1.0 {
		t.Fatalf("Distance got %v expected 1.0", got)
	}
	if got := d.DistanceInt(); got != 1 {
		t.Fatalf("DistanceInt got %v expected 1", got)
	}

	// Accessors are idempotent without an intervening poll.
	if d.Distance() != 1.0 || d.DistanceInt() != 1 {
		t.Fatalf("accessors changed value without a new reading")
	}

	if err := bus.Close(); err != nil {
		t.Fatalf("unconsumed bus ops: %v", err)
	}
}

func TestI2CClamp(t *testing.T) {
	mock := clock.NewMock()
	bus := playback([]byte{0x98, 0x96, 0x80}) // 10,000,000um = 10m, off scale
	d, err := NewI2C(bus, &I2COpts{Clock: mock})
	if err != nil {
		t.Fatalf("NewI2C: %v", err)
	}

	d.ReadingAvailable()
	mock.Add(conversionTime)
	if !d.ReadingAvailable() {
		t.Fatalf("no reading at conversion time")
	}
	if got := d.Distance(); got != MaxDistance {
		t.Fatalf("Distance got %v expected clamp to %v", got, MaxDistance)
	}
	if got := d.DistanceInt(); got != MaxDistance {
		t.Fatalf("DistanceInt got %v expected clamp to %v", got, MaxDistance)
	}
}

func TestI2CNotDetected(t *testing.T) {
	// A bus with no scripted ops rejects the probe.
	bus := &i2ctest.Playback{DontPanic: true}
	if _, err := NewI2C(bus, nil); err == nil {
		t.Fatalf("expected detection failure on empty bus")
	}
}

func TestI2CReadFailureKeepsReading(t *testing.T) {
	mock := clock.NewMock()
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: DefaultAddr, W: nil, R: nil},
			{Addr: DefaultAddr, W: []byte{cmdMeasure}, R: nil},
			// No collect op: the read will fail.
		},
		DontPanic: true,
	}
	d, err := NewI2C(bus, &I2COpts{Clock: mock})
	if err != nil {
		t.Fatalf("NewI2C: %v", err)
	}

	d.ReadingAvailable()
	mock.Add(conversionTime)
	if d.ReadingAvailable() {
		t.Fatalf("reading reported despite failed collect")
	}
	if d.Error() == nil {
		t.Fatalf("expected a recorded bus error")
	}
	// The previous reading survives a failed collect.
	if got := d.Distance(); got != MaxDistance {
		t.Fatalf("Distance got %v expected %v", got, MaxDistance)
	}
	if d.Busy() {
		t.Fatalf("stuck busy after failed collect")
	}
}
