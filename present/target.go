// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package present

import (
	"github.com/gogpu/gputypes"

	"github.com/xrruntime/compositor/scheduler"
)

// FrameTimings is the feedback tuple spec §4.5's calc_frame_timings
// returns to the scheduler.
type FrameTimings struct {
	FrameID          uint64
	WakeUpNs         int64
	DesiredPresentNs int64
	PresentSlopNs    int64
	PredictedDisplayNs int64
}

// Target is the presentation-target contract (spec §4.5): the single
// interface the compositor core depends on, implemented once per platform
// window-system backend.
type Target interface {
	// InitPreVulkan runs before device creation so the backend can
	// influence instance-extension selection.
	InitPreVulkan() error

	// InitPostVulkan runs after device creation and allocates the
	// backend's display swapchain.
	InitPostVulkan(width, height uint32) error

	// CreateImages builds the swapchain for the given parameters.
	CreateImages(width, height uint32, format gputypes.TextureFormat, usage gputypes.TextureUsage, mode gputypes.PresentMode) error

	// CheckReady reports whether a display image can currently be
	// acquired without blocking.
	CheckReady() bool

	// Acquire acquires the next display image, returning its index.
	Acquire() (index uint32, err error)

	// Present submits the image at index for display.
	Present(index uint32) error

	// UpdateTimings refreshes the backend's internal vsync/timing state.
	UpdateTimings()

	// CalcFrameTimings computes the feedback tuple the scheduler consumes.
	CalcFrameTimings() FrameTimings

	// MarkWakeUp records the wall-clock time frameID's wait_frame woke up.
	MarkWakeUp(frameID uint64, whenNs int64)

	// Destroy releases every native resource this target owns.
	Destroy()
}

// FeedScheduler drains one target's timing feedback into sched,
// completing the predict→present round trip (spec §4.1, §4.5).
func FeedScheduler(t Target, sched *scheduler.Scheduler, actualDisplayTimeNs, nextVsyncNs int64) {
	timings := t.CalcFrameTimings()
	sched.NotifyPresent(timings.FrameID, actualDisplayTimeNs, nextVsyncNs)
}
