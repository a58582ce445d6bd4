// Copyright 2026 by the M5Unit-Sonic authors, see LICENSE file

// sonic-i2c reads the I2C variant of the Unit Sonic in a polling loop and
// prints the distances it measures.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	sonic "github.com/klassing/M5Unit-Sonic"
)

var (
	busName = flag.String("bus", "", "I2C bus name or number, empty for the first available")
	addr    = flag.Uint("addr", uint(sonic.DefaultAddr), "sensor I2C address")
	count   = flag.Int("n", 10, "number of readings to take")
	verbose = flag.Bool("v", false, "log driver activity")
)

func mainImpl() error {
	flag.Parse()

	if _, err := host.Init(); err != nil {
		return err
	}
	bus, err := i2creg.Open(*busName)
	if err != nil {
		return err
	}
	defer bus.Close()

	opts := sonic.I2COpts{Addr: uint16(*addr)}
	if *verbose {
		opts.Logger = log.Printf
	}
	d, err := sonic.NewI2C(bus, &opts)
	if err != nil {
		return err
	}

	// Poll the way a control loop would: a short sleep per iteration and a
	// reading whenever the sensor has one.
	for got := 0; got < *count; {
		if d.ReadingAvailable() {
			fmt.Printf("%7.1f mm  (%d mm)\n", d.Distance(), d.DistanceInt())
			got++
		}
		time.Sleep(5 * time.Millisecond)
	}
	return d.Error()
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "sonic-i2c: %s.\n", err)
		os.Exit(1)
	}
}
