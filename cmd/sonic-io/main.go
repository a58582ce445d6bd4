// Copyright 2026 by the M5Unit-Sonic authors, see LICENSE file

// sonic-io reads the trigger/echo variant of the Unit Sonic and prints the
// distances it measures. By default it uses the non-blocking poll with a
// goroutine watching the echo edges; -block switches to the simple blocking
// measurement.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	sonic "github.com/klassing/M5Unit-Sonic"
	"github.com/klassing/M5Unit-Sonic/thread"
)

var (
	trigName = flag.String("trig", "GPIO26", "trigger pin name")
	echoName = flag.String("echo", "GPIO32", "echo pin name")
	useEmbd  = flag.Bool("embd", false, "use the embd GPIO binding instead of periph")
	block    = flag.Bool("block", false, "use blocking measurements instead of polling")
	rt       = flag.Bool("rt", false, "run with realtime scheduling (needs CAP_SYS_NICE)")
	count    = flag.Int("n", 10, "number of readings to take")
	verbose  = flag.Bool("v", false, "log driver activity")
)

func openPin(name string) (sonic.GPIO, error) {
	if *useEmbd {
		return sonic.NewGPIO(name)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("no pin named %s", name)
	}
	return sonic.NewPin(p), nil
}

func mainImpl() error {
	flag.Parse()

	if !*useEmbd {
		if _, err := host.Init(); err != nil {
			return err
		}
	}
	trig, err := openPin(*trigName)
	if err != nil {
		return err
	}
	echo, err := openPin(*echoName)
	if err != nil {
		return err
	}

	if *rt {
		// Pulse timing from userspace is at the scheduler's mercy,
		// realtime priority keeps the jitter down.
		if err := thread.Realtime(10); err != nil {
			return err
		}
	}

	opts := sonic.IOOpts{}
	if *verbose {
		opts.Logger = log.Printf
	}
	d, err := sonic.NewIO(trig, echo, &opts)
	if err != nil {
		return err
	}

	if *block {
		for i := 0; i < *count; i++ {
			mm, err := d.ReadDistance()
			if err != nil {
				return err
			}
			fmt.Printf("%7.1f mm\n", mm)
			time.Sleep(100 * time.Millisecond)
		}
		return nil
	}

	stop, err := d.WatchEdges()
	if err != nil {
		return err
	}
	defer stop()

	for got := 0; got < *count; {
		if d.ReadingAvailable() {
			fmt.Printf("%7.1f mm  (%d mm)\n", d.Distance(), d.DistanceInt())
			got++
		}
		time.Sleep(5 * time.Millisecond)
	}
	return nil
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "sonic-io: %s.\n", err)
		os.Exit(1)
	}
}
