// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package swapchainmgr_test

import (
	"errors"
	"testing"

	"github.com/xrruntime/compositor/internal/xrerr"
	"github.com/xrruntime/compositor/swapchainmgr"
)

func TestAcquireWaitReleaseCycleVisitsEachIndexInFIFOOrder(t *testing.T) {
	sc := swapchainmgr.NewSwapchain(swapchainmgr.ImageDesc{Width: 4, Height: 4, ArrayLayerCount: 1, FaceCount: 1}, 3, false)

	const cycles = 2
	var seen []uint32
	for m := 0; m < cycles; m++ {
		for n := 0; n < 3; n++ {
			idx, err := sc.Acquire()
			if err != nil {
				t.Fatalf("Acquire: %v", err)
			}
			if err := sc.Wait(idx, nil); err != nil {
				t.Fatalf("Wait: %v", err)
			}
			if err := sc.Release(idx); err != nil {
				t.Fatalf("Release: %v", err)
			}
			seen = append(seen, idx)
		}
	}

	want := []uint32{0, 1, 2, 0, 1, 2}
	if len(seen) != len(want) {
		t.Fatalf("got %d acquisitions, want %d", len(seen), len(want))
	}
	for i, idx := range seen {
		if idx != want[i] {
			t.Errorf("acquisition %d: got index %d, want %d", i, idx, want[i])
		}
	}
}

func TestReleaseWithoutWaitFails(t *testing.T) {
	sc := swapchainmgr.NewSwapchain(swapchainmgr.ImageDesc{ArrayLayerCount: 1, FaceCount: 1}, 3, false)
	idx, err := sc.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := sc.Release(idx); !errors.Is(err, xrerr.ErrCallOrderInvalid) {
		t.Fatalf("expected ErrCallOrderInvalid releasing without wait, got %v", err)
	}
}

func TestStaticSwapchainSingleImage(t *testing.T) {
	sc := swapchainmgr.NewSwapchain(swapchainmgr.ImageDesc{Width: 1024, Height: 1024, ArrayLayerCount: 2, FaceCount: 1}, 1, true)

	idx, err := sc.Acquire()
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	if idx != 0 {
		t.Fatalf("expected index 0, got %d", idx)
	}

	if _, err := sc.Acquire(); !errors.Is(err, xrerr.ErrNoImageAvailable) {
		t.Fatalf("expected second Acquire on static swapchain to fail with NO_IMAGE_AVAILABLE, got %v", err)
	}

	if err := sc.Wait(idx, nil); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if err := sc.Release(idx); err != nil {
		t.Fatalf("Release: %v", err)
	}

	index, arrayLayers, faceCount, width, height, ok := sc.Released()
	if !ok {
		t.Fatal("expected Released to report the released image")
	}
	if index != 0 || arrayLayers != 2 || faceCount != 1 || width != 1024 || height != 1024 {
		t.Fatalf("unexpected Released() values: index=%d arrayLayers=%d faceCount=%d width=%d height=%d",
			index, arrayLayers, faceCount, width, height)
	}
}

func TestGarbageStackDrainsOnlyWhenFrameIsIdle(t *testing.T) {
	var stack swapchainmgr.GarbageStack
	sc := swapchainmgr.NewSwapchain(swapchainmgr.ImageDesc{ArrayLayerCount: 1, FaceCount: 1}, 3, false)
	sc.Destroy(10)
	stack.Push(sc)

	if drained := stack.Drain(5); len(drained) != 0 {
		t.Fatalf("expected nothing drained while idle frame (5) precedes destroy frame (10), got %d", len(drained))
	}
	if stack.Len() != 1 {
		t.Fatalf("expected swapchain to remain queued, got len %d", stack.Len())
	}

	drained := stack.Drain(10)
	if len(drained) != 1 {
		t.Fatalf("expected swapchain to drain once idle frame reaches destroy frame, got %d", len(drained))
	}
	if stack.Len() != 0 {
		t.Fatalf("expected stack empty after drain, got len %d", stack.Len())
	}
}
