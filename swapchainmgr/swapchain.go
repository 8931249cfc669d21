// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package swapchainmgr

import (
	"sync"

	"github.com/xrruntime/compositor/internal/xrerr"
)

// ImageDesc describes one ring image's static attributes (spec §3 Image /
// Swapchain). It carries the data the layer validator needs to read back.
type ImageDesc struct {
	Width, Height   uint32
	ArrayLayerCount uint32
	FaceCount       uint32
	MipCount        uint32
	Format          uint32 // gputypes.TextureFormat, kept opaque here to avoid an import cycle
	UsageFlags      uint32
	SampleCount     uint32
}

// released records the last-released image index plus the monotonic
// sequence number required by spec §5 ("monotonic swapchain release
// sequence numbers never repeat").
type released struct {
	index uint32
	seq   uint64
	valid bool
}

// Swapchain implements the three-phase acquire/wait/release image
// lifecycle (spec §4.2). N is fixed at creation; a static swapchain
// (CreateFlagStatic) has exactly one image and permits exactly one
// lifetime acquire.
//
// Indices are a plain dense slice rather than a generational free-list
// allocator: N is fixed for the swapchain's lifetime and indices are
// never freed back to a shared pool, so the FIFO below is all the
// acquire/wait/release ordering spec §4.2 requires.
type Swapchain struct {
	mu sync.Mutex

	desc   ImageDesc
	static bool

	acquirable   []uint32 // FIFO of indices ready to acquire; front = index 0
	waited       uint32
	hasWaited    bool
	everAcquired bool // for static swapchains: true after the one lifetime acquire

	lastReleased released
	seqCounter   uint64

	// destroyed marks this swapchain as pushed onto the garbage stack
	// (spec §4.2 "destroy does not free immediately"); Garbage reads it.
	destroyed     bool
	destroyFrame  uint64 // frame fence recorded at Destroy (SUPPLEMENTED FEATURES)
}

// CreateFlagStatic mirrors the OpenXR STATIC_IMAGE create flag (spec §3:
// "Static swapchains ... have exactly one image").
const CreateFlagStatic = 1 << 0

// NewSwapchain creates a ring of n images (n == 1 forced when static is
// set, per spec §3's invariant). All indices start acquirable.
func NewSwapchain(desc ImageDesc, n uint32, static bool) *Swapchain {
	if static {
		n = 1
	}
	acquirable := make([]uint32, n)
	for i := range acquirable {
		acquirable[i] = uint32(i)
	}
	return &Swapchain{desc: desc, static: static, acquirable: acquirable}
}

// N reports the ring size.
func (s *Swapchain) N() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint32(len(s.acquirable)) + s.ringInFlight()
}

func (s *Swapchain) ringInFlight() uint32 {
	n := uint32(0)
	if s.hasWaited {
		n++
	}
	if s.lastReleased.valid {
		n++
	}
	return n
}

// Acquire implements the `acquire(out_index)` operation (spec §4.2):
// pops the FIFO front, or — for a static swapchain — permits exactly one
// lifetime acquire regardless of FIFO state.
func (s *Swapchain) Acquire() (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.static {
		if s.everAcquired {
			return 0, xrerr.ErrNoImageAvailable
		}
		s.everAcquired = true
		return 0, nil
	}

	if len(s.acquirable) == 0 {
		return 0, xrerr.ErrNoImageAvailable
	}
	index := s.acquirable[0]
	s.acquirable = s.acquirable[1:]
	return index, nil
}

// Wait implements `wait(timeout, index)` (spec §4.2). syncFn performs the
// actual GPU-side synchronization (e.g. gpu/vulkan.FencePool.Wait) and is
// only invoked after the swapchain's lock is released, so a slow
// wait never blocks concurrent acquire/release calls on other images.
func (s *Swapchain) Wait(index uint32, syncFn func() error) error {
	s.mu.Lock()
	if s.hasWaited {
		s.mu.Unlock()
		return xrerr.ErrCallOrderInvalid
	}
	s.mu.Unlock()

	if syncFn != nil {
		if err := syncFn(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasWaited {
		return xrerr.ErrCallOrderInvalid
	}
	s.waited = index
	s.hasWaited = true
	return nil
}

// Release implements `release(index)` (spec §4.2): clears waited, records
// the new released state with a fresh monotonic sequence number, and
// returns the previously released index to the acquirable FIFO — not
// index itself, since index only becomes eligible for reuse once a later
// caller has moved past it, mirroring "re-insert after the compositor is
// known to have finished reading a prior reference".
func (s *Swapchain) Release(index uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasWaited || s.waited != index {
		return xrerr.ErrCallOrderInvalid
	}
	s.hasWaited = false

	if s.lastReleased.valid {
		s.acquirable = append(s.acquirable, s.lastReleased.index)
	}

	s.seqCounter++
	s.lastReleased = released{index: index, seq: s.seqCounter, valid: true}
	return nil
}

// Released returns the current released image's index, array-layer and
// face count, and extent — the view the layer validator needs (spec
// §4.3) without reaching into swapchain internals directly.
func (s *Swapchain) Released() (index uint32, arrayLayerCount, faceCount, width, height uint32, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.lastReleased.valid {
		return 0, 0, 0, 0, 0, false
	}
	return s.lastReleased.index, s.desc.ArrayLayerCount, s.desc.FaceCount, s.desc.Width, s.desc.Height, true
}

// Destroy pushes this swapchain onto the garbage stack rather than
// freeing it immediately (spec §4.2), recording the frame fence the
// drain step compares against.
func (s *Swapchain) Destroy(currentFrame uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyed = true
	s.destroyFrame = currentFrame
}

// GarbageStack is the multi-producer (client I/O threads), single-
// consumer (main loop) destroy queue (spec §4.2, §5). Producers push
// destroyed swapchains; the main loop drains those whose destroy frame
// is behind the frame the device is now idle with respect to
// (SUPPLEMENTED FEATURES: monotonic frame-fence accounting).
type GarbageStack struct {
	mu    sync.Mutex
	items []*Swapchain
}

// Push adds a destroyed swapchain to the stack. Safe for concurrent use
// by multiple client I/O threads.
func (g *GarbageStack) Push(sc *Swapchain) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.items = append(g.items, sc)
}

// Drain removes and returns every swapchain whose destroy frame is no
// later than idleFrame — the frame fence the device has completed all
// work up to (spec §4.2 "when the device is idle with respect to the
// frame that could have referenced it"). Called by the main loop only;
// server.Server calls it once, when Run shuts down.
func (g *GarbageStack) Drain(idleFrame uint64) []*Swapchain {
	g.mu.Lock()
	defer g.mu.Unlock()

	var drained, kept []*Swapchain
	for _, sc := range g.items {
		sc.mu.Lock()
		safe := sc.destroyFrame <= idleFrame
		sc.mu.Unlock()
		if safe {
			drained = append(drained, sc)
		} else {
			kept = append(kept, sc)
		}
	}
	g.items = kept
	return drained
}

// Len reports the number of swapchains currently awaiting drain.
func (g *GarbageStack) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.items)
}
