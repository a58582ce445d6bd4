// Copyright 2026 by the M5Unit-Sonic authors, see LICENSE file

// Package thread raises the calling goroutine to realtime scheduling. The IO
// variant of the sensor times a 10us trigger pulse and a microsecond-scale
// echo pulse from userspace, so scheduling latency shows up directly as
// distance error; running the measuring goroutine under SCHED_RR takes most
// of that jitter out. Linux only, and the process needs CAP_SYS_NICE.
package thread

import (
	"fmt"
	"runtime"
	"syscall"
	"unsafe"
)

// Scheduling policies for Realtime.
const (
	FIFO = 1 // fifo scheduling policy
	RR   = 2 // round-robin scheduling policy
)

// Realtime locks the calling goroutine to its own kernel thread and elevates
// that thread to the round-robin realtime policy at the given priority
// (1..99, where 10 is a sensible default that stays below kernel threads).
func Realtime(priority int) error {
	if priority < 1 || priority > 99 {
		return fmt.Errorf("thread: priority %d out of range 1..99", priority)
	}
	// Pin the goroutine to its own kernel thread, else the priority would
	// hop between threads with the scheduler.
	runtime.LockOSThread()
	tid := syscall.Gettid()
	res, _, err := syscall.RawSyscall(syscall.SYS_SCHED_SETSCHEDULER, uintptr(tid),
		uintptr(RR), uintptr(unsafe.Pointer(&schedParam{priority})))
	if res == 0 {
		return nil
	}
	return err
}

type schedParam struct {
	Priority int
}
