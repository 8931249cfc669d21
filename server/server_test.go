// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package server_test

import (
	"sync"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/xrruntime/compositor/internal/config"
	"github.com/xrruntime/compositor/layer"
	"github.com/xrruntime/compositor/present"
	"github.com/xrruntime/compositor/server"
	"github.com/xrruntime/compositor/swapchainmgr"
	"github.com/xrruntime/compositor/xrmath"
)

type fakeTarget struct {
	mu        sync.Mutex
	destroyed bool
}

func (t *fakeTarget) InitPreVulkan() error                                 { return nil }
func (t *fakeTarget) InitPostVulkan(width, height uint32) error            { return nil }
func (t *fakeTarget) CreateImages(uint32, uint32, gputypes.TextureFormat, gputypes.TextureUsage, gputypes.PresentMode) error {
	return nil
}
func (t *fakeTarget) CheckReady() bool { return true }
func (t *fakeTarget) Acquire() (uint32, error) {
	return 0, nil
}
func (t *fakeTarget) Present(uint32) error               { return nil }
func (t *fakeTarget) UpdateTimings()                     {}
func (t *fakeTarget) CalcFrameTimings() present.FrameTimings { return present.FrameTimings{} }
func (t *fakeTarget) MarkWakeUp(uint64, int64)           {}
func (t *fakeTarget) Destroy() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.destroyed = true
}

func (t *fakeTarget) wasDestroyed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.destroyed
}

func newReleasedSwapchain(t *testing.T) *swapchainmgr.Swapchain {
	t.Helper()
	desc := swapchainmgr.ImageDesc{Width: 256, Height: 256, ArrayLayerCount: 1, FaceCount: 1}
	sc := swapchainmgr.NewSwapchain(desc, 2, false)
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
	return sc
}

func newTestServer() *server.Server {
	return server.New(nil, config.Default())
}

func TestAddSessionCreatesIndependentHandles(t *testing.T) {
	s := newTestServer()
	a := s.AddSession(1, &fakeTarget{}, 1e9/90)
	b := s.AddSession(2, &fakeTarget{}, 1e9/90)

	if a == b {
		t.Fatal("expected distinct handles for distinct session IDs")
	}
	if got, ok := s.Session(1); !ok || got != a {
		t.Fatalf("Session(1) = %v, %v, want %v, true", got, ok, a)
	}
	if _, ok := s.Session(99); ok {
		t.Fatal("Session(99) should not be found")
	}
}

func TestCommitFrameRejectsUnsupportedBlendMode(t *testing.T) {
	s := newTestServer()
	h := s.AddSession(1, &fakeTarget{}, 1e9/90)

	if err := h.CommitFrame(1, 0, layer.BlendMode(99), nil); err == nil {
		t.Fatal("expected an error for an unsupported blend mode")
	}
}

func TestCommitFrameQuadLayerAgainstReleasedSwapchain(t *testing.T) {
	s := newTestServer()
	h := s.AddSession(1, &fakeTarget{}, 1e9/90)

	sc := newReleasedSwapchain(t)
	h.AddSwapchain(7, sc)

	sub := layer.Submission{Type: layer.TypeQuad}
	sub.Quad.Sub = layer.SubImage{SwapchainID: 7, Rect: layer.Rect{Width: 256, Height: 256}}
	sub.Quad.Width, sub.Quad.Height = 1, 1
	sub.Quad.Pose = xrmath.Pose{Orientation: xrmath.Quat{R: 1}}

	if err := h.CommitFrame(5, 1000, layer.BlendOpaque, []layer.Submission{sub}); err != nil {
		t.Fatalf("CommitFrame: %v", err)
	}
}

func TestCommitFrameRejectsUnknownSwapchain(t *testing.T) {
	s := newTestServer()
	h := s.AddSession(1, &fakeTarget{}, 1e9/90)

	sub := layer.Submission{Type: layer.TypeQuad}
	sub.Quad.Sub = layer.SubImage{SwapchainID: 404}

	if err := h.CommitFrame(1, 0, layer.BlendOpaque, []layer.Submission{sub}); err == nil {
		t.Fatal("expected an error referencing an unregistered swapchain")
	}
}

func TestRemoveSwapchainPushesGarbage(t *testing.T) {
	s := newTestServer()
	h := s.AddSession(1, &fakeTarget{}, 1e9/90)

	sc := newReleasedSwapchain(t)
	h.AddSwapchain(7, sc)
	h.RemoveSwapchain(7, 10)

	if got := h.Garbage.Len(); got != 1 {
		t.Fatalf("Garbage.Len() = %d, want 1", got)
	}
	if _, _, _, _, _, ok := h.Released(7); ok {
		t.Fatal("a removed swapchain should no longer resolve")
	}
}

func TestRemoveSessionDestroysTarget(t *testing.T) {
	s := newTestServer()
	target := &fakeTarget{}
	s.AddSession(1, target, 1e9/90)

	s.RemoveSession(1)

	if !target.wasDestroyed() {
		t.Fatal("expected RemoveSession to destroy the session's target")
	}
	if _, ok := s.Session(1); ok {
		t.Fatal("session should no longer be attached after RemoveSession")
	}
}
