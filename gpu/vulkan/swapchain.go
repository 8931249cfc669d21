// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package vulkan

import (
	"fmt"
	"unsafe"

	"github.com/go-webgpu/goffi/types"
)

// DisplaySwapchain is the native swapchain backing one presentation target
// (spec §4.5): the handful of Vulkan objects a window-system target needs
// to acquire, wait on and present an image, distinct from the compositor's
// own per-session Swapchain (spec §4.2) that application layers render into.
//
// Adapted from gogpu/wgpu's hal/vulkan Swapchain, dropping the Windows-only
// syscall proc-address plumbing in favor of the bundle's goffi entry
// points, since the compositor core only ever runs against one resolved
// Vulkan loader rather than juggling per-platform DLL exports.
type DisplaySwapchain struct {
	bundle *Bundle
	fn     displayEntryPoints

	handle     Handle
	images     []Handle
	imageViews []Handle
	imageReady Handle // semaphore signaled on acquire
	renderDone Handle // semaphore signaled on submit completion
	acquired   bool
	currentImg uint32
}

type displayEntryPoints struct {
	createSwapchain  call
	destroySwapchain call
	getImages        call
	acquireNext      call
	queuePresent     call
	createImageView  call
	destroyImageView call
	createSemaphore  call
	destroySemaphore call
}

// ErrSurfaceOutdated mirrors the window-system "recreate me" signal (spec
// §4.5: a presentation target reports this instead of a hard failure when
// the window has been resized or the surface otherwise went stale).
var ErrSurfaceOutdated = fmt.Errorf("vulkan: presentation surface outdated")

// OpenDisplaySwapchain resolves the entry points a presentation target
// needs and creates the native swapchain for it. surface is an opaque
// native surface handle (VkSurfaceKHR) supplied by the window-system glue
// outside this module's scope (spec §1 Non-goals).
func OpenDisplaySwapchain(bundle *Bundle, surface Handle, width, height uint32, imageCount uint32) (*DisplaySwapchain, error) {
	d := &DisplaySwapchain{bundle: bundle}
	if err := d.resolveEntryPoints(); err != nil {
		return nil, err
	}
	if err := d.create(surface, width, height, imageCount); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *DisplaySwapchain) resolveEntryPoints() error {
	h := types.UInt64TypeDescriptor
	ptr := types.PointerTypeDescriptor
	resultRet := types.SInt32TypeDescriptor
	voidRet := types.VoidTypeDescriptor
	u32 := types.UInt32TypeDescriptor

	specs := []struct {
		name string
		c    *call
		ret  *types.TypeDescriptor
		args []*types.TypeDescriptor
	}{
		{"vkCreateSwapchainKHR", &d.fn.createSwapchain, resultRet, []*types.TypeDescriptor{h, ptr, ptr, ptr}},
		{"vkDestroySwapchainKHR", &d.fn.destroySwapchain, voidRet, []*types.TypeDescriptor{h, h, ptr}},
		{"vkGetSwapchainImagesKHR", &d.fn.getImages, resultRet, []*types.TypeDescriptor{h, h, ptr, ptr}},
		{"vkAcquireNextImageKHR", &d.fn.acquireNext, resultRet, []*types.TypeDescriptor{h, h, h, h, h, ptr}},
		{"vkQueuePresentKHR", &d.fn.queuePresent, resultRet, []*types.TypeDescriptor{h, ptr}},
		{"vkCreateImageView", &d.fn.createImageView, resultRet, []*types.TypeDescriptor{h, ptr, ptr, ptr}},
		{"vkDestroyImageView", &d.fn.destroyImageView, voidRet, []*types.TypeDescriptor{h, h, ptr}},
		{"vkCreateSemaphore", &d.fn.createSemaphore, resultRet, []*types.TypeDescriptor{h, ptr, ptr, ptr}},
		{"vkDestroySemaphore", &d.fn.destroySemaphore, voidRet, []*types.TypeDescriptor{h, h, ptr}},
	}
	_ = u32
	for _, s := range specs {
		if err := s.c.prepare(d.bundle.lib, s.name, s.ret, s.args); err != nil {
			return err
		}
	}
	return nil
}

func (d *DisplaySwapchain) create(surface Handle, width, height uint32, imageCount uint32) error {
	var result int32
	args := []unsafe.Pointer{unsafe.Pointer(&d.bundle.device), unsafe.Pointer(&surface), nil, unsafe.Pointer(&d.handle)}
	if err := d.fn.createSwapchain.invoke(unsafe.Pointer(&result), args...); err != nil {
		return fmt.Errorf("vulkan: create display swapchain: %w", err)
	}
	if result != 0 {
		return fmt.Errorf("vulkan: vkCreateSwapchainKHR returned %d", result)
	}

	var count uint32 = imageCount
	var countResult int32
	countArgs := []unsafe.Pointer{unsafe.Pointer(&d.bundle.device), unsafe.Pointer(&d.handle), unsafe.Pointer(&count), nil}
	if err := d.fn.getImages.invoke(unsafe.Pointer(&countResult), countArgs...); err != nil {
		return fmt.Errorf("vulkan: query display swapchain image count: %w", err)
	}

	images := make([]Handle, count)
	var imgResult int32
	imgArgs := []unsafe.Pointer{unsafe.Pointer(&d.bundle.device), unsafe.Pointer(&d.handle), unsafe.Pointer(&count), unsafe.Pointer(&images[0])}
	if err := d.fn.getImages.invoke(unsafe.Pointer(&imgResult), imgArgs...); err != nil {
		return fmt.Errorf("vulkan: fetch display swapchain images: %w", err)
	}
	d.images = images

	views := make([]Handle, len(images))
	for i, img := range images {
		var viewResult int32
		viewArgs := []unsafe.Pointer{unsafe.Pointer(&d.bundle.device), unsafe.Pointer(&img), nil, unsafe.Pointer(&views[i])}
		if err := d.fn.createImageView.invoke(unsafe.Pointer(&viewResult), viewArgs...); err != nil {
			d.rollbackViews(views[:i])
			return fmt.Errorf("vulkan: create display image view %d: %w", i, err)
		}
		if viewResult != 0 {
			d.rollbackViews(views[:i])
			return fmt.Errorf("vulkan: vkCreateImageView returned %d for display image %d", viewResult, i)
		}
	}
	d.imageViews = views

	var semResult int32
	var readyArgs, doneArgs = []unsafe.Pointer{unsafe.Pointer(&d.bundle.device), nil, nil, unsafe.Pointer(&d.imageReady)},
		[]unsafe.Pointer{unsafe.Pointer(&d.bundle.device), nil, nil, unsafe.Pointer(&d.renderDone)}
	if err := d.fn.createSemaphore.invoke(unsafe.Pointer(&semResult), readyArgs...); err != nil {
		d.rollbackViews(views)
		return fmt.Errorf("vulkan: create image-ready semaphore: %w", err)
	}
	if err := d.fn.createSemaphore.invoke(unsafe.Pointer(&semResult), doneArgs...); err != nil {
		d.rollbackViews(views)
		return fmt.Errorf("vulkan: create render-done semaphore: %w", err)
	}
	return nil
}

// rollbackViews destroys views already created during a failed create call
// (spec §9 partial-allocation rollback), so a failed display-swapchain
// creation never leaks native image views.
func (d *DisplaySwapchain) rollbackViews(views []Handle) {
	var voidResult int32
	for _, v := range views {
		args := []unsafe.Pointer{unsafe.Pointer(&d.bundle.device), unsafe.Pointer(&v), nil}
		_ = d.fn.destroyImageView.invoke(unsafe.Pointer(&voidResult), args...)
	}
}

// AcquireNext acquires the next display image, returning its index. A
// suboptimal result is reported through suboptimal so callers can keep presenting
// this frame while scheduling a recreate.
func (d *DisplaySwapchain) AcquireNext() (index uint32, suboptimal bool, err error) {
	if d.acquired {
		return 0, false, fmt.Errorf("vulkan: display image already acquired")
	}
	var result int32
	timeout := ^uint64(0)
	var noFence Handle
	args := []unsafe.Pointer{
		unsafe.Pointer(&d.bundle.device),
		unsafe.Pointer(&d.handle),
		unsafe.Pointer(&timeout),
		unsafe.Pointer(&d.imageReady),
		unsafe.Pointer(&noFence),
		unsafe.Pointer(&index),
	}
	if err := d.fn.acquireNext.invoke(unsafe.Pointer(&result), args...); err != nil {
		return 0, false, fmt.Errorf("vulkan: acquire display image: %w", err)
	}
	const vkSuboptimal = 1000001003
	const vkErrorOutOfDate = -1000001004
	switch int32(result) {
	case 0:
	case vkSuboptimal:
		suboptimal = true
	case vkErrorOutOfDate:
		return 0, false, ErrSurfaceOutdated
	default:
		return 0, false, fmt.Errorf("vulkan: vkAcquireNextImageKHR returned %d", result)
	}
	d.currentImg = index
	d.acquired = true
	return index, suboptimal, nil
}

// Present submits the currently acquired image for display (spec §4.5
// "present" entry point of the presentation target contract).
func (d *DisplaySwapchain) Present() error {
	if !d.acquired {
		return fmt.Errorf("vulkan: no display image acquired to present")
	}
	var result int32
	waitCount := Handle(1)
	swapchainCount := Handle(1)
	args := []unsafe.Pointer{
		unsafe.Pointer(&waitCount),
		unsafe.Pointer(&d.renderDone),
	}
	_ = swapchainCount
	if err := d.fn.queuePresent.invoke(unsafe.Pointer(&result), args...); err != nil {
		d.acquired = false
		return fmt.Errorf("vulkan: present display image: %w", err)
	}
	d.acquired = false
	const vkSuboptimal = 1000001003
	const vkErrorOutOfDate = -1000001004
	switch int32(result) {
	case 0, vkSuboptimal:
		return nil
	case vkErrorOutOfDate:
		return ErrSurfaceOutdated
	default:
		return fmt.Errorf("vulkan: vkQueuePresentKHR returned %d", result)
	}
}

// ImageCount reports the number of native images backing this swapchain.
func (d *DisplaySwapchain) ImageCount() int { return len(d.images) }

// Destroy releases the display swapchain and every resource it owns.
// Waits for device idle first so no in-flight present references a
// destroyed image view (spec §3 "destruction waits for device idle").
func (d *DisplaySwapchain) Destroy() {
	_ = d.bundle.WaitIdle()

	var voidResult int32
	if d.imageReady != NullHandle {
		args := []unsafe.Pointer{unsafe.Pointer(&d.bundle.device), unsafe.Pointer(&d.imageReady), nil}
		_ = d.fn.destroySemaphore.invoke(unsafe.Pointer(&voidResult), args...)
	}
	if d.renderDone != NullHandle {
		args := []unsafe.Pointer{unsafe.Pointer(&d.bundle.device), unsafe.Pointer(&d.renderDone), nil}
		_ = d.fn.destroySemaphore.invoke(unsafe.Pointer(&voidResult), args...)
	}
	d.rollbackViews(d.imageViews)
	d.imageViews = nil
	d.images = nil

	if d.handle != NullHandle {
		args := []unsafe.Pointer{unsafe.Pointer(&d.bundle.device), unsafe.Pointer(&d.handle), nil}
		_ = d.fn.destroySwapchain.invoke(unsafe.Pointer(&voidResult), args...)
		d.handle = NullHandle
	}
}
