// Copyright 2026 by the M5Unit-Sonic authors, see LICENSE file

package sonic

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// ioState is the measurement cycle state of an IODev.
type ioState int

const (
	ioIdle ioState = iota
	ioAwaitEcho
)

// IODev represents the IO variant of the Unit Sonic (trigger/echo pin pair,
// HC-SR04 style).
//
// A measurement starts with a 10us pulse on the trigger pin, after which the
// sensor raises the echo pin for as long as the sound takes to travel to the
// target and back. The pulse width can be captured two ways:
//
// In interrupt mode the client arranges for EchoRising and EchoFalling to be
// called on the respective edges of the echo pin (WatchEdges does this with a
// goroutine on hosted platforms) and polls ReadingAvailable from its loop.
// The poll triggers a cycle when idle, latches the distance once the falling
// edge has been seen, and latches MaxDistance if the timeout expires first;
// a missing echo means nothing reflected, it is not an error.
//
// In blocking mode PulseDuration performs the whole cycle inline, stalling
// the caller for up to the round-trip time. This avoids any edge plumbing at
// the cost of burning the loop's time budget.
//
// The mutex guards the fields shared between the edge callbacks and the
// poll. That is sound as long as the callbacks run on goroutines; a port
// that calls them from a real interrupt context must mask the interrupt
// around ReadingAvailable instead.
type IODev struct {
	trig    GPIO
	echo    GPIO
	clk     clock.Clock
	log     LogPrintf
	timeout time.Duration

	mu         sync.Mutex
	state      ioState
	deadline   time.Time // valid while state == ioAwaitEcho
	pulseStart time.Time // captured by EchoRising
	pulse      time.Duration
	dataReady  bool
	distance   uint32 // last reading in micrometers
}

// IOOpts contains options used when initializing an IODev.
type IOOpts struct {
	Timeout time.Duration // echo timeout, 0 means the 120ms default
	Clock   clock.Clock   // time source, nil means the wall clock
	Logger  LogPrintf     // function to use for logging, nil disables
}

// NewIO initializes the sensor given its trigger and echo pins. The trigger
// pin is driven low, the echo pin configured as an input; edge watching is
// left to WatchEdges or the client's ISR setup. Opts may be nil to accept all
// defaults.
func NewIO(trig, echo GPIO, opts *IOOpts) (*IODev, error) {
	o := IOOpts{}
	if opts != nil {
		o = *opts
	}
	if o.Timeout == 0 {
		o.Timeout = defaultEchoTimeout
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	d := &IODev{
		trig:     trig,
		echo:     echo,
		clk:      o.Clock,
		log:      nologPrintf,
		timeout:  o.Timeout,
		distance: maxDistanceUm,
	}
	if o.Logger != nil {
		d.log = func(format string, v ...interface{}) {
			o.Logger("sonic: "+format, v...)
		}
	}

	trig.Out(GpioLow)
	if err := echo.In(GpioNoEdge); err != nil {
		return nil, fmt.Errorf("sonic: cannot configure echo pin %d: %v", echo.Number(), err)
	}
	return d, nil
}

// EchoRising must be called when the echo pin goes high. It marks the start
// of the pulse whose width encodes the distance.
func (d *IODev) EchoRising() {
	d.mu.Lock()
	d.pulseStart = d.clk.Now()
	d.mu.Unlock()
}

// EchoFalling must be called when the echo pin goes low. It computes the
// pulse width and flags the measurement as complete; ReadingAvailable picks
// it up on the next poll.
func (d *IODev) EchoFalling() {
	d.mu.Lock()
	d.pulse = d.clk.Now().Sub(d.pulseStart)
	d.dataReady = true
	d.mu.Unlock()
}

// ReadingAvailable advances the measurement cycle and reports whether a
// fresh reading was latched. When idle it emits the trigger pulse and arms
// the timeout; a completed echo latches the measured distance, an expired
// timeout latches MaxDistance. Only one cycle is ever outstanding: polling
// while busy never re-triggers.
func (d *IODev) ReadingAvailable() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == ioIdle {
		d.triggerPulse()
		d.state = ioAwaitEcho
		d.dataReady = false
		d.deadline = d.clk.Now().Add(d.timeout)
	}

	if d.dataReady {
		d.distance = pulseToUm(d.pulse)
		d.log("pulse %v -> %dum", d.pulse, d.distance)
		d.complete()
		return true
	}

	if !d.clk.Now().Before(d.deadline) {
		// No echo within the window: nothing in range.
		d.distance = maxDistanceUm
		d.log("echo timeout, nothing in range")
		d.complete()
		return true
	}

	return false
}

// triggerPulse starts a measurement on the chip. Called with mu held.
func (d *IODev) triggerPulse() {
	d.trig.Out(GpioHigh)
	time.Sleep(trigPulseWidth)
	d.trig.Out(GpioLow)
}

// complete resets the cycle state after a reading was latched. Called with
// mu held.
func (d *IODev) complete() {
	d.state = ioIdle
	d.dataReady = false
	d.deadline = time.Time{}
}

// PulseDuration performs one blocking measurement of the echo pulse width.
// It stalls for up to twice the configured timeout. A zero duration means no
// echo was seen. An error is only returned if the echo pin cannot be
// configured; use the interrupt mode if the pin library in use cannot watch
// single edges.
//
// The measurement rides on the scheduler's latency twice, so expect a few
// hundred microseconds of jitter; see the thread package for a way to reduce
// it.
func (d *IODev) PulseDuration() (time.Duration, error) {
	if err := d.echo.In(GpioRisingEdge); err != nil {
		return 0, fmt.Errorf("sonic: cannot watch echo pin %d: %v", d.echo.Number(), err)
	}
	d.mu.Lock()
	d.triggerPulse()
	d.mu.Unlock()

	if !d.echo.WaitForEdge(d.timeout) {
		d.log("echo timeout waiting for rising edge")
		return 0, nil
	}
	start := d.clk.Now()
	if err := d.echo.In(GpioFallingEdge); err != nil {
		return 0, fmt.Errorf("sonic: cannot watch echo pin %d: %v", d.echo.Number(), err)
	}
	if !d.echo.WaitForEdge(d.timeout) {
		d.log("echo timeout waiting for falling edge")
		return 0, nil
	}
	return d.clk.Now().Sub(start), nil
}

// ReadDistance performs one blocking measurement and returns the distance in
// millimeters, clamped to MaxDistance. A missing echo reads as MaxDistance.
// The reading is also latched for the Distance accessors.
func (d *IODev) ReadDistance() (float32, error) {
	pulse, err := d.PulseDuration()
	if err != nil {
		return 0, err
	}
	um := uint32(maxDistanceUm)
	if pulse > 0 {
		um = pulseToUm(pulse)
	}
	d.mu.Lock()
	d.distance = um
	d.mu.Unlock()
	return clampMm(um), nil
}

// WatchEdges spawns a goroutine that converts edges on the echo pin into
// EchoRising/EchoFalling calls, for platforms where the driver runs hosted
// and no real ISR exists. The pin level after each edge decides which
// callback fires, which assumes edges are not missed; a missed falling edge
// is caught by the poll timeout. The returned function stops the watcher.
func (d *IODev) WatchEdges() (func(), error) {
	if err := d.echo.In(GpioBothEdges); err != nil {
		return nil, fmt.Errorf("sonic: cannot watch echo pin %d: %v", d.echo.Number(), err)
	}
	stop := make(chan struct{})
	go func() {
		for {
			if d.echo.WaitForEdge(time.Second) {
				if d.echo.Read() == GpioHigh {
					d.EchoRising()
				} else {
					d.EchoFalling()
				}
				continue
			}
			select {
			case <-stop:
				d.log("edge watcher exiting")
				return
			default:
			}
		}
	}()
	return func() { close(stop) }, nil
}

// Distance returns the latest reading in millimeters, clamped to MaxDistance.
// It never performs I/O; gate on ReadingAvailable for fresh data.
func (d *IODev) Distance() float32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return clampMm(d.distance)
}

// DistanceInt returns the latest reading truncated to whole millimeters,
// clamped to MaxDistance.
func (d *IODev) DistanceInt() uint16 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return clampMmInt(d.distance)
}

// Busy reports whether an echo cycle is outstanding.
func (d *IODev) Busy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state != ioIdle
}

// SetLogger sets a logging function, nil may be used to disable logging,
// which is the default.
func (d *IODev) SetLogger(l LogPrintf) {
	if l != nil {
		d.log = l
	} else {
		d.log = nologPrintf
	}
}

// String implements fmt.Stringer.
func (d *IODev) String() string {
	return fmt.Sprintf("sonic-io{trig:%d echo:%d}", d.trig.Number(), d.echo.Number())
}

var _ Sensor = &IODev{}
