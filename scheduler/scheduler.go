// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package scheduler implements the frame-pacing contract (spec §4.1): the
// predict/wait/mark/notify loop that converts the display's fixed cadence
// and a running estimate of application render cost into wake-up times.
//
// The blocking half of wait_frame runs on the caller's goroutine: a
// scheduler owns no thread of its own (callers already run on their
// session's I/O thread per spec §5), and waitUntil applies a
// coarse-sleep-then-busy-wait split directly.
package scheduler

import (
	"sync"
	"time"

	"github.com/xrruntime/compositor/internal/xrerr"
)

// Point is a frame lifecycle marker passed to Mark (spec §4.1 mark_frame).
type Point int

const (
	PointWoke Point = iota
	PointBegan
	PointSubmitted
	PointPresented
)

// Prediction is the result of Predict / Wait.
type Prediction struct {
	FrameID                  uint64
	WakeUpTimeNs             int64
	PredictedDisplayTimeNs   int64
	PredictedDisplayPeriodNs int64
}

// busyWaitWindow bounds the fine-grained spin at the end of wait_frame
// (spec §4.1, §9: "preserve as a bounded loop (≤ 1 ms)").
const busyWaitWindow = time.Millisecond

// Scheduler implements the frame scheduler / pacing engine (spec §4.1).
// One per session; the focused session's estimates drive expectedAppDuration.
type Scheduler struct {
	mu sync.Mutex

	nominalFrameIntervalNs int64

	expectedAppDurationNs int64 // smoothed BEGAN->SUBMITTED
	frameOverheadNs       int64 // smoothed compositor render cost
	safetyMarginNs        int64

	lastPredictedDisplayTimeNs int64
	nextFrameID                uint64

	outstanding bool // exactly one outstanding predicted frame
	waited      bool

	frames map[uint64]*frameTiming

	cancelled bool
	now       func() time.Time
	sleep     func(time.Duration)
}

type frameTiming struct {
	predictedDisplayTimeNs   int64
	predictedDisplayPeriodNs int64
	wakeUpTimeNs             int64
	wokeNs, beganNs, submittedNs, presentedNs int64
}

// renderBudgetNs is the minimum lead time predict_frame keeps between "now"
// and the predicted display time, so a prediction is never handed out for
// a display time that has (almost) already passed.
const renderBudgetNs = int64(2 * time.Millisecond)

const (
	defaultSwapIntervalMin = 1
	defaultSwapIntervalMax = 4

	// smoothing applies an exponential moving average with this weight on
	// the newest sample, matching the "smoothed" language of spec §4.1.
	smoothingAlpha = 0.2

	// safety-margin controller (spec SUPPLEMENTED FEATURES): widen fast on
	// a miss, recover slowly and linearly on a hit.
	marginWidenFactor    = 1.5
	marginRecoverStepNs  = int64(50 * time.Microsecond)
	marginInitialNs      = int64(500 * time.Microsecond)
	marginMaxNs          = int64(4 * time.Millisecond)
)

// New creates a scheduler for a display with the given nominal frame
// interval (e.g. 1e9/90 for a 90 Hz display).
func New(nominalFrameIntervalNs int64) *Scheduler {
	return &Scheduler{
		nominalFrameIntervalNs: nominalFrameIntervalNs,
		safetyMarginNs:         marginInitialNs,
		frames:                 make(map[uint64]*frameTiming),
		now:                    time.Now,
		sleep:                  coarseSleep,
	}
}

func (s *Scheduler) swapInterval() int64 {
	total := s.expectedAppDurationNs + s.frameOverheadNs
	if total <= 0 || s.nominalFrameIntervalNs <= 0 {
		return defaultSwapIntervalMin
	}
	n := (total + s.nominalFrameIntervalNs - 1) / s.nominalFrameIntervalNs
	if n < defaultSwapIntervalMin {
		n = defaultSwapIntervalMin
	}
	if n > defaultSwapIntervalMax {
		n = defaultSwapIntervalMax
	}
	return n
}

// Predict implements predict_frame: assigns the next frame_id and computes
// its wake-up and predicted-display times. Fails with CALL_ORDER_INVALID
// if a prediction is already outstanding (spec §8 round-trip property).
func (s *Scheduler) Predict() (Prediction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.outstanding {
		return Prediction{}, xrerr.ErrCallOrderInvalid
	}

	interval := s.swapInterval() * s.nominalFrameIntervalNs
	nowNs := s.now().UnixNano()

	predicted := s.lastPredictedDisplayTimeNs + interval
	for predicted-renderBudgetNs <= nowNs {
		predicted += interval
	}

	wakeUp := predicted - s.expectedAppDurationNs - s.frameOverheadNs - s.safetyMarginNs

	s.nextFrameID++
	id := s.nextFrameID
	s.frames[id] = &frameTiming{
		predictedDisplayTimeNs:   predicted,
		predictedDisplayPeriodNs: interval,
		wakeUpTimeNs:             wakeUp,
	}
	s.lastPredictedDisplayTimeNs = predicted
	s.outstanding = true
	s.waited = false

	return Prediction{
		FrameID:                  id,
		WakeUpTimeNs:             wakeUp,
		PredictedDisplayTimeNs:   predicted,
		PredictedDisplayPeriodNs: interval,
	}, nil
}

// Mark implements mark_frame: records the wall-clock time a frame reached
// point. Invalid ordering (e.g. SUBMITTED before BEGAN) is a programming
// error, matching spec §4.1's "fatal programming error" language — it
// panics rather than returning a value the caller might ignore.
func (s *Scheduler) Mark(frameID uint64, point Point, whenNs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ft, ok := s.frames[frameID]
	if !ok {
		panic("scheduler: mark_frame for unknown frame_id")
	}

	switch point {
	case PointWoke:
		ft.wokeNs = whenNs
	case PointBegan:
		if ft.wokeNs == 0 {
			panic("scheduler: BEGAN marked before WOKE")
		}
		ft.beganNs = whenNs
	case PointSubmitted:
		if ft.beganNs == 0 {
			panic("scheduler: SUBMITTED marked before BEGAN")
		}
		ft.submittedNs = whenNs
		s.observeAppDuration(ft.submittedNs - ft.beganNs)
	case PointPresented:
		if ft.submittedNs == 0 {
			panic("scheduler: PRESENTED marked before SUBMITTED")
		}
		ft.presentedNs = whenNs
		s.observeFrameOverhead(ft.presentedNs - ft.submittedNs)
	default:
		panic("scheduler: unknown frame lifecycle point")
	}
}

func (s *Scheduler) observeAppDuration(sampleNs int64) {
	if s.expectedAppDurationNs == 0 {
		s.expectedAppDurationNs = sampleNs
		return
	}
	s.expectedAppDurationNs = ema(s.expectedAppDurationNs, sampleNs)
}

func (s *Scheduler) observeFrameOverhead(sampleNs int64) {
	if s.frameOverheadNs == 0 {
		s.frameOverheadNs = sampleNs
		return
	}
	s.frameOverheadNs = ema(s.frameOverheadNs, sampleNs)
}

func ema(prev, sample int64) int64 {
	return int64(float64(prev)*(1-smoothingAlpha) + float64(sample)*smoothingAlpha)
}

// Wait implements wait_frame: blocks until the outstanding frame's
// wake-up time, then returns its timing. Returns xrerr.ErrCallOrderInvalid
// if called without an outstanding prediction, and an error wrapping
// context.Canceled-equivalent semantics if the scheduler was cancelled
// (spec §5 "destroying a session cancels any outstanding wait_frame").
func (s *Scheduler) Wait() (Prediction, error) {
	s.mu.Lock()
	if !s.outstanding || s.waited {
		s.mu.Unlock()
		return Prediction{}, xrerr.ErrCallOrderInvalid
	}
	id := s.nextFrameID
	ft := s.frames[id]
	wakeUp := ft.wakeUpTimeNs
	s.mu.Unlock()

	if cancelled := s.waitUntil(wakeUp); cancelled {
		return Prediction{}, xrerr.New(xrerr.KindSessionNotRunning, "wait_frame cancelled")
	}

	s.mu.Lock()
	s.waited = true
	ft.wokeNs = s.now().UnixNano()
	prediction := Prediction{
		FrameID:                  id,
		WakeUpTimeNs:             ft.wakeUpTimeNs,
		PredictedDisplayTimeNs:   ft.predictedDisplayTimeNs,
		PredictedDisplayPeriodNs: ft.predictedDisplayPeriodNs,
	}
	s.mu.Unlock()
	return prediction, nil
}

// waitUntil sleeps to deadlineNs: an OS sleep rounded down to a
// millisecond, then a bounded busy-wait for the remainder (spec §4.1,
// §9 "preserve as a bounded loop"). Returns true if cancelled mid-wait.
func (s *Scheduler) waitUntil(deadlineNs int64) (cancelled bool) {
	for {
		s.mu.Lock()
		if s.cancelled {
			s.mu.Unlock()
			return true
		}
		s.mu.Unlock()

		remaining := time.Duration(deadlineNs - s.now().UnixNano())
		if remaining <= 0 {
			return false
		}
		if remaining <= busyWaitWindow {
			for time.Duration(deadlineNs-s.now().UnixNano()) > 0 {
				s.mu.Lock()
				if s.cancelled {
					s.mu.Unlock()
					return true
				}
				s.mu.Unlock()
			}
			return false
		}
		sleepFor := remaining - busyWaitWindow
		s.sleep(sleepFor.Truncate(time.Millisecond))
	}
}

// Cancel aborts any in-progress Wait, used when the owning session is
// destroyed (spec §5).
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
}

// NotifyPresent implements notify_present: feeds back the actual display
// time and next vsync, updating future predictions. A missed deadline
// widens the safety margin (spec "Failure semantics" + SUPPLEMENTED
// FEATURES); a hit recovers it linearly.
func (s *Scheduler) NotifyPresent(frameID uint64, actualDisplayTimeNs, nextVsyncNs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ft, ok := s.frames[frameID]
	if !ok {
		return
	}

	missed := actualDisplayTimeNs > ft.predictedDisplayTimeNs
	if missed {
		widened := int64(float64(s.safetyMarginNs) * marginWidenFactor)
		if widened <= s.safetyMarginNs {
			widened = s.safetyMarginNs + marginRecoverStepNs
		}
		if widened > marginMaxNs {
			widened = marginMaxNs
		}
		s.safetyMarginNs = widened
	} else {
		s.safetyMarginNs -= marginRecoverStepNs
		if s.safetyMarginNs < 0 {
			s.safetyMarginNs = 0
		}
	}

	s.lastPredictedDisplayTimeNs = actualDisplayTimeNs
	s.outstanding = false
	delete(s.frames, frameID)
}

// SafetyMarginNs reports the current safety margin, exposed for tests and
// diagnostics.
func (s *Scheduler) SafetyMarginNs() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.safetyMarginNs
}
