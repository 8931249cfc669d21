// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package vulkan is the Vulkan-like native GPU backend for the
// compositor's shared resource bundle (spec §3 "GPU resource bundle"):
// the device/queue handles, command pool, descriptor pools, pipeline
// cache, common samplers and distortion-mesh resources that every
// session on one compositor instance shares.
//
// It resolves its entry points dynamically through goffi, the same way
// gogpu/wgpu's hal/vulkan/vk loader resolves its function table — but
// scoped to only the handful of calls the compositor core itself issues
// directly (device-idle, command-pool, queue-submit, fences); pipeline
// and render-pass setup belong to the compose package instead, since
// those differ between the rasterization and compute composition paths.
package vulkan

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/go-webgpu/goffi/ffi"
	"github.com/go-webgpu/goffi/types"

	"github.com/xrruntime/compositor/gpu"
)

// Handle is an opaque native object handle (VkDevice, VkImage, VkQueue, …).
type Handle uint64

// NullHandle is the zero/invalid handle sentinel.
const NullHandle Handle = 0

// call is one resolved native entry point plus the calling-convention
// description goffi needs to invoke it.
type call struct {
	fn  unsafe.Pointer
	cif types.CallInterface
}

func (c *call) prepare(lib unsafe.Pointer, name string, ret *types.TypeDescriptor, args []*types.TypeDescriptor) error {
	fn, err := ffi.GetSymbol(lib, name)
	if err != nil {
		return fmt.Errorf("vulkan: resolve %s: %w", name, err)
	}
	if err := ffi.PrepareCallInterface(&c.cif, types.DefaultCall, ret, args); err != nil {
		return fmt.Errorf("vulkan: prepare call interface for %s: %w", name, err)
	}
	c.fn = fn
	return nil
}

// invoke calls the entry point, writing the return value (if any) into
// ret and passing args by the pointer-to-storage convention goffi
// requires (see hal/vulkan/vk/loader.go in the upstream for the rationale).
func (c *call) invoke(ret unsafe.Pointer, args ...unsafe.Pointer) error {
	if c.fn == nil {
		return fmt.Errorf("vulkan: entry point not resolved")
	}
	return ffi.CallFunction(&c.cif, c.fn, ret, args)
}

// entryPoints is the minimal native function table the bundle needs,
// resolved once at Open and shared read-only afterwards.
type entryPoints struct {
	deviceWaitIdle  call
	queueWaitIdle   call
	queueSubmit     call
	createCmdPool   call
	allocCmdBuffers call
	createFence     call
	waitForFences   call
	resetFences     call
}

// Bundle is the shared GPU resource bundle described by spec §3: one per
// compositor instance, destruction waits for device-idle, and every
// session borrows from it rather than owning a device of its own.
type Bundle struct {
	lib unsafe.Pointer
	fn  entryPoints

	device Handle
	phys   Handle

	// cmdMu guards command-pool allocation; §5 requires this to be a
	// distinct mutex from the queue's, never held while waiting on
	// host-visible memory.
	cmdMu   sync.Mutex
	cmdPool Handle

	// queueMu guards submission; §4.4 "submission is on a single queue
	// guarded by a second mutex".
	queueMu sync.Mutex
	queue   Handle

	pipelineCache Handle

	// samplers are shared across sessions: clamped and repeating, per
	// spec §3 "Image" — one or two samplers (clamped vs. repeating).
	samplerClamp  Handle
	samplerRepeat Handle

	// distortion holds the per-device precomputed UV-remap mesh
	// resources (spec §4.4 distortion pass): vertex buffer plus
	// per-eye, per-channel (R/G/B) UV image views for chromatic
	// correction.
	distortion DistortionMesh

	closed bool
}

// DistortionMesh is the device-specific UV remap applied by the final
// compositor pass (spec glossary: "Distortion mesh").
type DistortionMesh struct {
	VertexBuffer Handle
	// UVViews is indexed [eye][channel], channel 0=R, 1=G, 2=B.
	UVViews [2][3]Handle
}

// Open loads the native library and resolves the entry points the bundle
// issues directly. libraryPath is platform-specific (e.g.
// "libvulkan.so.1", "vulkan-1.dll").
func Open(libraryPath string) (*Bundle, error) {
	lib, err := ffi.LoadLibrary(libraryPath)
	if err != nil {
		return nil, fmt.Errorf("vulkan: load %q: %w", libraryPath, err)
	}

	b := &Bundle{lib: lib}
	if err := b.resolveEntryPoints(); err != nil {
		return nil, err
	}
	gpu.Named("vulkan").Info("bundle opened", "library", libraryPath)
	return b, nil
}

func (b *Bundle) resolveEntryPoints() error {
	h := types.UInt64TypeDescriptor
	voidRet := types.VoidTypeDescriptor
	resultRet := types.SInt32TypeDescriptor

	type spec struct {
		name string
		c    *call
		ret  *types.TypeDescriptor
		args []*types.TypeDescriptor
	}
	specs := []spec{
		{"vkDeviceWaitIdle", &b.fn.deviceWaitIdle, resultRet, []*types.TypeDescriptor{h}},
		{"vkQueueWaitIdle", &b.fn.queueWaitIdle, resultRet, []*types.TypeDescriptor{h}},
		{"vkQueueSubmit", &b.fn.queueSubmit, resultRet, []*types.TypeDescriptor{h, h, types.PointerTypeDescriptor, h}},
		{"vkCreateCommandPool", &b.fn.createCmdPool, resultRet, []*types.TypeDescriptor{h, types.PointerTypeDescriptor, types.PointerTypeDescriptor, types.PointerTypeDescriptor}},
		{"vkAllocateCommandBuffers", &b.fn.allocCmdBuffers, resultRet, []*types.TypeDescriptor{h, types.PointerTypeDescriptor, types.PointerTypeDescriptor}},
		{"vkCreateFence", &b.fn.createFence, resultRet, []*types.TypeDescriptor{h, types.PointerTypeDescriptor, types.PointerTypeDescriptor, types.PointerTypeDescriptor}},
		{"vkWaitForFences", &b.fn.waitForFences, resultRet, []*types.TypeDescriptor{h, h, types.PointerTypeDescriptor, h, h}},
		{"vkResetFences", &b.fn.resetFences, resultRet, []*types.TypeDescriptor{h, h, types.PointerTypeDescriptor}},
	}
	_ = voidRet
	for _, s := range specs {
		if err := s.c.prepare(b.lib, s.name, s.ret, s.args); err != nil {
			return err
		}
	}
	return nil
}

// BindDevice associates the bundle with an already-created logical device,
// physical device and queue. The compositor's instance/system layer is
// responsible for device selection (spec §6 "System: select").
func (b *Bundle) BindDevice(device, phys, queue Handle) {
	b.device, b.phys, b.queue = device, phys, queue
}

// CommandPool returns the shared command pool handle, creating it on first
// use. Allocation is serialized by cmdMu.
func (b *Bundle) CommandPool() (Handle, error) {
	b.cmdMu.Lock()
	defer b.cmdMu.Unlock()
	if b.cmdPool != NullHandle {
		return b.cmdPool, nil
	}
	var result int32
	var pool Handle
	args := []unsafe.Pointer{unsafe.Pointer(&b.device), nil, nil, unsafe.Pointer(&pool)}
	if err := b.fn.createCmdPool.invoke(unsafe.Pointer(&result), args...); err != nil {
		return NullHandle, fmt.Errorf("vulkan: create command pool: %w", err)
	}
	b.cmdPool = pool
	return pool, nil
}

// Submit submits recorded command buffers on the shared queue. The queue
// mutex is held only for the submission call itself — callers must not be
// waiting on host-visible memory while holding it (spec §4.4).
func (b *Bundle) Submit(submitInfoCount uint64, signalFence Handle) error {
	b.queueMu.Lock()
	defer b.queueMu.Unlock()
	var result int32
	args := []unsafe.Pointer{
		unsafe.Pointer(&b.queue),
		unsafe.Pointer(&submitInfoCount),
		nil,
		unsafe.Pointer(&signalFence),
	}
	if err := b.fn.queueSubmit.invoke(unsafe.Pointer(&result), args...); err != nil {
		return fmt.Errorf("vulkan: queue submit: %w", err)
	}
	return nil
}

// WaitIdle blocks until the device has completed all outstanding work.
// Used by destruction paths (spec §3: "its destruction waits for device
// idle") and never called from the frame-critical path.
func (b *Bundle) WaitIdle() error {
	var result int32
	return b.fn.deviceWaitIdle.invoke(unsafe.Pointer(&result), unsafe.Pointer(&b.device))
}

// Samplers returns the two shared samplers (clamped, repeating).
func (b *Bundle) Samplers() (clamp, repeat Handle) {
	return b.samplerClamp, b.samplerRepeat
}

// Distortion returns the shared distortion-mesh resources.
func (b *Bundle) Distortion() DistortionMesh {
	return b.distortion
}

// Close waits for device idle and marks the bundle closed. It does not
// destroy the command pool or any other native handle the bundle holds.
// Safe to call more than once; subsequent calls are no-ops.
func (b *Bundle) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	err := b.WaitIdle()
	gpu.Named("vulkan").Info("bundle closed", "error", err)
	return err
}
