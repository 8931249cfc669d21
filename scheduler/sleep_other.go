// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

//go:build !unix

package scheduler

import "time"

// coarseSleep falls back to the runtime timer on non-Unix targets.
func coarseSleep(d time.Duration) { time.Sleep(d) }
