// Copyright 2026 by the M5Unit-Sonic authors, see LICENSE file

package sonic

import (
	"fmt"
	"time"

	"github.com/kidoman/embd"
	"periph.io/x/conn/v3/gpio"
)

// GPIO is the narrow pin interface the IO driver consumes. It exists so the
// driver doesn't care which of the host GPIO libraries is underneath; bindings
// for periph.io and embd are below, and tests substitute their own.
type GPIO interface {
	// In configures the pin as an input watching the given edge (one of
	// the Gpio*Edge constants).
	In(edge int) error
	// Read returns GpioLow or GpioHigh.
	Read() int
	// WaitForEdge blocks until a watched edge fires or the timeout
	// elapses, and reports which of the two happened.
	WaitForEdge(timeout time.Duration) bool
	// Out drives the pin as an output at the given level.
	Out(level int)
	// Number returns the pin number, for logging.
	Number() int
}

// Pin levels and edge selections for GPIO.In.
const (
	GpioLow  = 0
	GpioHigh = 1

	GpioNoEdge      = 0
	GpioRisingEdge  = 1
	GpioFallingEdge = 2
	GpioBothEdges   = 3
)

//===== GPIO binding for periph.io

// NewPin wraps a periph.io pin in the GPIO interface. Inputs are configured
// with a pull-down so a disconnected echo line reads low instead of floating.
func NewPin(p gpio.PinIO) GPIO {
	return &periphPin{p: p}
}

type periphPin struct {
	p gpio.PinIO
}

func (g *periphPin) In(edge int) error {
	e := []gpio.Edge{gpio.NoEdge, gpio.RisingEdge, gpio.FallingEdge, gpio.BothEdges}[edge]
	return g.p.In(gpio.PullDown, e)
}

func (g *periphPin) Read() int {
	if g.p.Read() == gpio.High {
		return GpioHigh
	}
	return GpioLow
}

func (g *periphPin) WaitForEdge(timeout time.Duration) bool {
	return g.p.WaitForEdge(timeout)
}

func (g *periphPin) Out(level int) {
	g.p.Out(gpio.Level(level == GpioHigh))
}

func (g *periphPin) Number() int {
	return g.p.Number()
}

//===== GPIO binding for embd

// NewGPIO opens the named pin through embd and wraps it in the GPIO
// interface. embd has no edge-wait primitive, so edges are converted to a
// small channel by a watch callback.
func NewGPIO(name string) (GPIO, error) {
	p, err := embd.NewDigitalPin(name)
	if err != nil {
		return nil, fmt.Errorf("sonic: cannot open pin %s: %v", name, err)
	}
	return &embdPin{p: p, dir: embd.In, edge: make(chan struct{}, 1)}, nil
}

type embdPin struct {
	p    embd.DigitalPin
	dir  embd.Direction
	edge chan struct{}
}

func (g *embdPin) In(edge int) error {
	if err := g.p.SetDirection(embd.In); err != nil {
		return err
	}
	g.dir = embd.In
	if edge == GpioNoEdge {
		return nil
	}
	e := []embd.Edge{embd.EdgeNone, embd.EdgeRising, embd.EdgeFalling, embd.EdgeBoth}[edge]
	return g.p.Watch(e, g.edgeCB)
}

func (g *embdPin) Read() int {
	v, _ := g.p.Read()
	return v
}

func (g *embdPin) WaitForEdge(timeout time.Duration) bool {
	select {
	case <-g.edge:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (g *embdPin) Out(level int) {
	if g.dir != embd.Out {
		g.p.SetDirection(embd.Out)
		g.dir = embd.Out
	}
	g.p.Write(level)
}

func (g *embdPin) Number() int {
	return g.p.N()
}

func (g *embdPin) edgeCB(embd.DigitalPin) {
	select {
	case g.edge <- struct{}{}:
	default:
	}
}
