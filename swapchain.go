// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package compositor

import (
	"sync/atomic"

	"github.com/gogpu/gputypes"

	"github.com/xrruntime/compositor/swapchainmgr"
)

var nextSwapchainID atomic.Uint64

// SwapchainCreateFlags mirrors spec §3's create-flag bit (static images).
type SwapchainCreateFlags uint32

const (
	SwapchainCreateFlagNone   SwapchainCreateFlags = 0
	SwapchainCreateFlagStatic SwapchainCreateFlags = 1 << 0
)

// SwapchainUsageFlags mirrors the usage bits an application requests
// (sampled / color-attachment / depth-stencil-attachment / storage).
type SwapchainUsageFlags uint32

const (
	SwapchainUsageSampled SwapchainUsageFlags = 1 << iota
	SwapchainUsageColorAttachment
	SwapchainUsageDepthStencilAttachment
	SwapchainUsageStorage
)

// SwapchainCreateInfo is the parameter block for CreateSwapchain (spec
// §3 Image / Swapchain).
type SwapchainCreateInfo struct {
	Width, Height   uint32
	ArrayLayerCount uint32
	FaceCount       uint32
	MipCount        uint32
	SampleCount     uint32
	Format          gputypes.TextureFormat
	UsageFlags      SwapchainUsageFlags
	CreateFlags     SwapchainCreateFlags
	ImageCount      uint32
}

// Swapchain is the public handle over a swapchainmgr.Swapchain, scoped
// to one session (spec §6 "Swapchain: create, import-from-native,
// enumerate images, acquire/wait/release").
type Swapchain struct {
	ID      uint64
	session *Session
	native  *swapchainmgr.Swapchain
	desc    swapchainmgr.ImageDesc
}

// CreateSwapchain allocates a new ring of images for s (spec §4.2).
func (s *Session) CreateSwapchain(info SwapchainCreateInfo) *Swapchain {
	desc := swapchainmgr.ImageDesc{
		Width:           info.Width,
		Height:          info.Height,
		ArrayLayerCount: info.ArrayLayerCount,
		FaceCount:       info.FaceCount,
		MipCount:        info.MipCount,
		Format:          uint32(info.Format),
		UsageFlags:      uint32(info.UsageFlags),
		SampleCount:     info.SampleCount,
	}
	static := info.CreateFlags&SwapchainCreateFlagStatic != 0
	native := swapchainmgr.NewSwapchain(desc, info.ImageCount, static)

	id := nextSwapchainID.Add(1)
	s.handle.AddSwapchain(id, native)
	return &Swapchain{ID: id, session: s, native: native, desc: desc}
}

// ImportSwapchain adopts an already-created swapchainmgr.Swapchain —
// e.g. one whose native images were allocated out-of-band by a platform
// backend — under a fresh ID (spec §6 "import-from-native").
func (s *Session) ImportSwapchain(native *swapchainmgr.Swapchain, desc SwapchainCreateInfo) *Swapchain {
	id := nextSwapchainID.Add(1)
	s.handle.AddSwapchain(id, native)
	return &Swapchain{ID: id, session: s, native: native, desc: swapchainmgr.ImageDesc{
		Width: desc.Width, Height: desc.Height,
		ArrayLayerCount: desc.ArrayLayerCount, FaceCount: desc.FaceCount,
		MipCount: desc.MipCount, Format: uint32(desc.Format),
		UsageFlags: uint32(desc.UsageFlags), SampleCount: desc.SampleCount,
	}}
}

// ImageCount reports the swapchain's ring size.
func (sc *Swapchain) ImageCount() uint32 { return sc.native.N() }

// Acquire implements acquire(out_index) (spec §4.2).
func (sc *Swapchain) Acquire() (uint32, error) { return sc.native.Acquire() }

// Wait implements wait(timeout, index); syncFn performs the native
// GPU-side synchronization (e.g. a gpu/vulkan.FencePool wait).
func (sc *Swapchain) Wait(index uint32, syncFn func() error) error {
	return sc.native.Wait(index, syncFn)
}

// Release implements release(index) (spec §4.2).
func (sc *Swapchain) Release(index uint32) error { return sc.native.Release(index) }

// Destroy pushes the swapchain onto its session's garbage stack rather
// than freeing it immediately (spec §4.2); currentFrame is the frame
// fence the drain step will compare against.
func (sc *Swapchain) Destroy(currentFrame uint64) {
	sc.session.handle.RemoveSwapchain(sc.ID, currentFrame)
}
