// Copyright 2026 by the M5Unit-Sonic authors, see LICENSE file

package sonic

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// cmdMeasure triggers a measurement. There is no datasheet for this chip; the
// vendor driver writes 0x01, waits 120ms and reads 3 bytes back, which looks
// like an ADC-style conversion start rather than a register address. No other
// commands are known to exist.
const cmdMeasure = 0x01

// conversionTime is how long the chip needs between the trigger and the data
// becoming readable. Reverse engineered from the blocking delay in the vendor
// driver, not from a datasheet.
const conversionTime = 120 * time.Millisecond

// i2cState is the measurement cycle state of an I2CDev.
type i2cState int

const (
	i2cIdle i2cState = iota
	i2cConverting
)

// I2CDev represents the I2C variant of the Unit Sonic.
//
// The device performs one measurement per trigger command and needs
// conversionTime before the result can be read. ReadingAvailable hides that
// behind a poll: instead of sleeping between the trigger write and the data
// read it keeps a deadline and only issues the read once the deadline has
// passed.
//
// The methods are not concurrency safe; the driver expects to be called from
// a single control loop.
type I2CDev struct {
	dev      i2c.Dev     // bus + address of the sensor
	clk      clock.Clock // time source for the conversion deadline
	log      LogPrintf   // function to use for logging
	state    i2cState
	deadline time.Time // valid while state == i2cConverting
	distance uint32    // last reading in micrometers
	err      error     // last bus error seen while polling
}

// I2COpts contains options used when initializing an I2CDev.
type I2COpts struct {
	Addr   uint16           // sensor address, 0 means DefaultAddr
	Speed  physic.Frequency // bus speed, 0 means DefaultSpeed
	Clock  clock.Clock      // time source, nil means the wall clock
	Logger LogPrintf        // function to use for logging, nil disables
}

// NewI2C initializes the sensor on the provided bus. It sets the bus speed
// and probes the address with a zero-length write; an error is returned iff
// the device does not acknowledge. Opts may be nil to accept all defaults.
func NewI2C(bus i2c.Bus, opts *I2COpts) (*I2CDev, error) {
	o := I2COpts{}
	if opts != nil {
		o = *opts
	}
	if o.Addr == 0 {
		o.Addr = DefaultAddr
	}
	if o.Speed == 0 {
		o.Speed = DefaultSpeed
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	d := &I2CDev{
		dev:      i2c.Dev{Bus: bus, Addr: o.Addr},
		clk:      o.Clock,
		log:      nologPrintf,
		distance: maxDistanceUm,
	}
	if o.Logger != nil {
		d.log = func(format string, v ...interface{}) {
			o.Logger("sonic: "+format, v...)
		}
	}

	if err := bus.SetSpeed(o.Speed); err != nil {
		return nil, fmt.Errorf("sonic: cannot set bus speed: %v", err)
	}
	// Probe: a zero-length transaction succeeds iff something acks the
	// address.
	if err := d.dev.Tx(nil, nil); err != nil {
		return nil, fmt.Errorf("sonic: no sensor detected at %#02x: %v", o.Addr, err)
	}
	d.log("detected at %#02x", o.Addr)
	return d, nil
}

// ReadingAvailable advances the measurement cycle and reports whether a fresh
// reading was latched. When idle it triggers a measurement and arms the
// conversion deadline; once the deadline has passed it reads the result. Each
// call does at most one bus transaction, so it is cheap enough to call every
// loop iteration.
func (d *I2CDev) ReadingAvailable() bool {
	if d.state == i2cIdle {
		if err := d.dev.Tx([]byte{cmdMeasure}, nil); err != nil {
			d.err = fmt.Errorf("sonic: trigger failed: %v", err)
			d.log("trigger failed: %v", err)
			return false
		}
		d.state = i2cConverting
		d.deadline = d.clk.Now().Add(conversionTime)
		d.log("conversion started")
	}

	if d.clk.Now().Before(d.deadline) {
		return false
	}

	var buf [3]byte
	d.state = i2cIdle
	if err := d.dev.Tx(nil, buf[:]); err != nil {
		// Keep the previous reading; the next call retriggers.
		d.err = fmt.Errorf("sonic: read failed: %v", err)
		d.log("read failed: %v", err)
		return false
	}
	d.distance = uint32(buf[0])<<16 | uint32(buf[1])<<8 | uint32(buf[2])
	d.log("reading %dum", d.distance)
	return true
}

// Distance returns the latest reading in millimeters, clamped to MaxDistance.
// It never performs I/O; gate on ReadingAvailable for fresh data.
func (d *I2CDev) Distance() float32 {
	return clampMm(d.distance)
}

// DistanceInt returns the latest reading truncated to whole millimeters,
// clamped to MaxDistance.
func (d *I2CDev) DistanceInt() uint16 {
	return clampMmInt(d.distance)
}

// Busy reports whether a conversion is outstanding.
func (d *I2CDev) Busy() bool {
	return d.state != i2cIdle
}

// Error returns the last bus error encountered while polling, if any.
func (d *I2CDev) Error() error { return d.err }

// SetLogger sets a logging function, nil may be used to disable logging,
// which is the default.
func (d *I2CDev) SetLogger(l LogPrintf) {
	if l != nil {
		d.log = l
	} else {
		d.log = nologPrintf
	}
}

// String implements fmt.Stringer.
func (d *I2CDev) String() string {
	return fmt.Sprintf("sonic-i2c{%#02x}", d.dev.Addr)
}

var _ Sensor = &I2CDev{}
