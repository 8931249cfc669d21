// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package present

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/xrruntime/compositor/gpu"
	"github.com/xrruntime/compositor/gpu/vulkan"
	"github.com/xrruntime/compositor/internal/xrerr"
	"github.com/xrruntime/compositor/scheduler"
)

// VulkanTarget implements Target against a native window-system surface
// via gpu/vulkan.DisplaySwapchain, the reference implementation every
// other platform backend (KMS, Wayland-direct, XCB windowed) can be
// measured against.
type VulkanTarget struct {
	bundle  *vulkan.Bundle
	surface vulkan.Handle
	kind    Kind
	sched   *scheduler.Scheduler

	mu       sync.Mutex
	display  *vulkan.DisplaySwapchain
	fences   *vulkan.FencePool
	width    uint32
	height   uint32
	mode     gputypes.PresentMode

	lastFrameID  uint64
	lastWakeUpNs int64
}

// NewVulkanTarget creates a target bound to bundle's device and the given
// native surface handle, pacing against sched.
func NewVulkanTarget(bundle *vulkan.Bundle, surface vulkan.Handle, kind Kind, sched *scheduler.Scheduler) *VulkanTarget {
	return &VulkanTarget{bundle: bundle, surface: surface, kind: kind, sched: sched}
}

// InitPreVulkan is a no-op for the native Vulkan target: instance
// extensions are already selected by the time a Bundle exists.
func (t *VulkanTarget) InitPreVulkan() error { return nil }

// InitPostVulkan records the initial extent; CreateImages does the actual
// swapchain allocation once the caller knows the chosen format.
func (t *VulkanTarget) InitPostVulkan(width, height uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.width, t.height = width, height
	return nil
}

func (t *VulkanTarget) CreateImages(width, height uint32, format gputypes.TextureFormat, usage gputypes.TextureUsage, mode gputypes.PresentMode) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = format
	_ = usage

	display, err := vulkan.OpenDisplaySwapchain(t.bundle, t.surface, width, height, 3)
	if err != nil {
		return fmt.Errorf("present: create images: %w", err)
	}
	t.display = display
	t.fences = vulkan.NewFencePool(t.bundle)
	t.width, t.height, t.mode = width, height, mode
	gpu.Named("present").Info("swapchain created", "width", width, "height", height, "images", display.ImageCount(), "mode", mode)
	return nil
}

func (t *VulkanTarget) CheckReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.display != nil
}

func (t *VulkanTarget) Acquire() (uint32, error) {
	t.mu.Lock()
	display := t.display
	t.mu.Unlock()
	if display == nil {
		return 0, xrerr.New(xrerr.KindResourceUnavailable, "present: no display swapchain")
	}

	index, suboptimal, err := display.AcquireNext()
	if err != nil {
		if errors.Is(err, vulkan.ErrSurfaceOutdated) {
			return 0, gpu.ErrPresentationTargetOutdated
		}
		return 0, fmt.Errorf("present: acquire: %w", err)
	}
	if suboptimal {
		gpu.Named("present").Warn("display image suboptimal", "index", index)
	}
	return index, nil
}

func (t *VulkanTarget) Present(index uint32) error {
	t.mu.Lock()
	display, fences := t.display, t.fences
	t.mu.Unlock()
	if display == nil {
		return xrerr.New(xrerr.KindResourceUnavailable, "present: no display swapchain")
	}

	if err := display.Present(); err != nil {
		if errors.Is(err, vulkan.ErrSurfaceOutdated) {
			return gpu.ErrPresentationTargetOutdated
		}
		return fmt.Errorf("present: present image %d: %w", index, err)
	}
	if fences != nil {
		if _, err := fences.Arm(index); err != nil {
			gpu.Named("present").Warn("arm fence failed", "index", index, "error", err)
		}
	}
	return nil
}

// UpdateTimings refreshes the fence-wait-derived notion of "last present
// completed", used to decide whether the next acquire will block.
func (t *VulkanTarget) UpdateTimings() {
	t.mu.Lock()
	fences := t.fences
	t.mu.Unlock()
	if fences == nil {
		return
	}
	_ = fences.Wait(0, time.Millisecond)
}

func (t *VulkanTarget) CalcFrameTimings() FrameTimings {
	t.mu.Lock()
	defer t.mu.Unlock()
	return FrameTimings{
		FrameID:            t.lastFrameID,
		WakeUpNs:           t.lastWakeUpNs,
		DesiredPresentNs:   t.lastWakeUpNs,
		PresentSlopNs:      0,
		PredictedDisplayNs: t.lastWakeUpNs,
	}
}

func (t *VulkanTarget) MarkWakeUp(frameID uint64, whenNs int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastFrameID = frameID
	t.lastWakeUpNs = whenNs
}

// Destroy releases the display swapchain and fence pool, cancelling any
// outstanding scheduler wait first (spec §5 "destroying a session
// cancels any outstanding wait_frame").
func (t *VulkanTarget) Destroy() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sched != nil {
		t.sched.Cancel()
	}
	if t.display != nil {
		t.display.Destroy()
		t.display = nil
	}
	t.fences = nil
}
