// Copyright 2026 by the M5Unit-Sonic authors, see LICENSE file

package sonic

import (
	"testing"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func TestPeriphPinBinding(t *testing.T) {
	p := &gpiotest.Pin{N: "GPIO7", Num: 7, EdgesChan: make(chan gpio.Level, 1)}
	g := NewPin(p)

	if got := g.Number(); got != 7 {
		t.Fatalf("Number got %d expected 7", got)
	}

	g.Out(GpioHigh)
	if g.Read() != GpioHigh {
		t.Fatalf("Read after Out(high) not high")
	}
	g.Out(GpioLow)
	if g.Read() != GpioLow {
		t.Fatalf("Read after Out(low) not low")
	}

	if err := g.In(GpioBothEdges); err != nil {
		t.Fatalf("In: %v", err)
	}
	p.EdgesChan <- gpio.High
	if !g.WaitForEdge(time.Second) {
		t.Fatalf("edge not seen")
	}
	if g.Read() != GpioHigh {
		t.Fatalf("level after rising edge not high")
	}
	if g.WaitForEdge(time.Millisecond) {
		t.Fatalf("spurious edge")
	}
}
