// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package scheduler_test

import (
	"testing"
	"time"

	"github.com/xrruntime/compositor/scheduler"
)

func TestPredictTwiceWithoutWaitIsError(t *testing.T) {
	s := scheduler.New(int64(time.Second / 90))
	if _, err := s.Predict(); err != nil {
		t.Fatalf("first Predict: %v", err)
	}
	if _, err := s.Predict(); err == nil {
		t.Fatal("expected second Predict without an intervening Wait to fail")
	}
}

func TestPredictFrameIDIncreasesAfterCycle(t *testing.T) {
	s := scheduler.New(int64(time.Second / 90))

	p1, err := s.Predict()
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	s.NotifyPresent(p1.FrameID, p1.PredictedDisplayTimeNs, p1.PredictedDisplayTimeNs+p1.PredictedDisplayPeriodNs)

	p2, err := s.Predict()
	if err != nil {
		t.Fatalf("second Predict: %v", err)
	}
	if p2.FrameID <= p1.FrameID {
		t.Fatalf("expected frame_id to strictly increase, got %d then %d", p1.FrameID, p2.FrameID)
	}
}

func TestNotifyPresentMissedDeadlineWidensMargin(t *testing.T) {
	s := scheduler.New(int64(time.Second / 90))
	before := s.SafetyMarginNs()

	p, err := s.Predict()
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	// Report an actual display time well past the prediction: a miss.
	s.NotifyPresent(p.FrameID, p.PredictedDisplayTimeNs+int64(5*time.Millisecond), 0)

	after := s.SafetyMarginNs()
	if after <= before {
		t.Fatalf("expected safety margin to widen after a missed deadline: before=%d after=%d", before, after)
	}
}

func TestWaitReturnsAtWakeUpTime(t *testing.T) {
	s := scheduler.New(int64(time.Second / 90))
	if _, err := s.Predict(); err != nil {
		t.Fatalf("Predict: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.Wait()
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Wait: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait never returned — scheduler.Wait's PointWoke mark is deadlocking on its own mutex")
	}
}

func TestCancelUnblocksWait(t *testing.T) {
	s := scheduler.New(int64(time.Second / 90))
	if _, err := s.Predict(); err != nil {
		t.Fatalf("Predict: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.Wait()
		done <- err
	}()

	s.Cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected Wait to return an error after Cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after Cancel")
	}
}
