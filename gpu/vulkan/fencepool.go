// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package vulkan

import (
	"fmt"
	"sync"
	"time"
	"unsafe"
)

// FencePool backs the swapchain manager's wait_image operation (spec §4.2):
// a per-image binary fence recycled after the GPU signals it, so "wait"
// blocks only the caller that asked for that specific image rather than
// the whole device.
//
// Adapted from gogpu/wgpu's hal/vulkan fencePool (binary-fence fallback
// path for pre-1.2 timeline semaphores); the monotonic-submission-value
// bookkeeping that pattern uses maps directly onto "one fence per acquired
// image index, signaled when the compositor's prior read completes".
type FencePool struct {
	bundle *Bundle

	mu     sync.Mutex
	active map[uint32]Handle // image index -> fence awaiting signal
	free   []Handle          // recycled fences ready for reuse
}

// NewFencePool creates an empty pool bound to the given bundle's device.
func NewFencePool(bundle *Bundle) *FencePool {
	return &FencePool{bundle: bundle, active: make(map[uint32]Handle)}
}

// Arm associates a fence with imageIndex, to be signaled once the
// compositor has finished any prior read of that image. Takes a recycled
// fence from the free list when available.
func (p *FencePool) Arm(imageIndex uint32) (Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var fence Handle
	if n := len(p.free); n > 0 {
		fence = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		var result int32
		args := []unsafe.Pointer{unsafe.Pointer(&p.bundle.device), nil, nil, unsafe.Pointer(&fence)}
		if err := p.bundle.fn.createFence.invoke(unsafe.Pointer(&result), args...); err != nil {
			return NullHandle, fmt.Errorf("vulkan: fence pool: create fence: %w", err)
		}
	}
	p.active[imageIndex] = fence
	return fence, nil
}

// Wait blocks until the fence armed for imageIndex signals or timeout
// elapses, then recycles it. Returns spec §4.2's TIMEOUT behavior by
// returning a non-nil error without mutating pool state on timeout.
func (p *FencePool) Wait(imageIndex uint32, timeout time.Duration) error {
	p.mu.Lock()
	fence, ok := p.active[imageIndex]
	p.mu.Unlock()
	if !ok {
		// Nothing armed for this index: treat as already satisfied, the
		// same way the upstream fencePool treats a value already known
		// to be completed.
		return nil
	}

	var result int32
	fenceCount := Handle(1)
	waitAll := Handle(1)
	timeoutNs := Handle(timeout.Nanoseconds())
	args := []unsafe.Pointer{
		unsafe.Pointer(&p.bundle.device),
		unsafe.Pointer(&fenceCount),
		unsafe.Pointer(&fence),
		unsafe.Pointer(&waitAll),
		unsafe.Pointer(&timeoutNs),
	}
	if err := p.bundle.fn.waitForFences.invoke(unsafe.Pointer(&result), args...); err != nil {
		return fmt.Errorf("vulkan: fence pool: wait for image %d: %w", imageIndex, err)
	}
	if result != 0 { // non-zero VkResult: VK_TIMEOUT or an error code.
		return fmt.Errorf("vulkan: fence pool: wait for image %d timed out", imageIndex)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	var resetResult int32
	resetArgs := []unsafe.Pointer{unsafe.Pointer(&p.bundle.device), unsafe.Pointer(&fenceCount), unsafe.Pointer(&fence)}
	_ = p.bundle.fn.resetFences.invoke(unsafe.Pointer(&resetResult), resetArgs...)
	delete(p.active, imageIndex)
	p.free = append(p.free, fence)
	return nil
}

// Len reports the number of fences currently armed.
func (p *FencePool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}
