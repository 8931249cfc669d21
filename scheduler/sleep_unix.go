// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

//go:build unix

package scheduler

import (
	"time"

	"golang.org/x/sys/unix"
)

// coarseSleep is waitUntil's OS sleep primitive. On Unix targets it
// calls clock_nanosleep directly instead of going through the runtime's
// timer wheel, shaving the scheduling jitter time.Sleep adds at
// sub-millisecond durations — the margin waitUntil's busy-wait window
// exists to absorb in the first place.
func coarseSleep(d time.Duration) {
	if d <= 0 {
		return
	}
	ts := unix.NsecToTimespec(d.Nanoseconds())
	for {
		rem := unix.Timespec{}
		err := unix.ClockNanosleep(unix.CLOCK_MONOTONIC, 0, &ts, &rem)
		if err == nil {
			return
		}
		if err != unix.EINTR {
			time.Sleep(d)
			return
		}
		ts = rem
	}
}
