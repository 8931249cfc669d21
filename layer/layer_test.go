// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package layer_test

import (
	"errors"
	"testing"

	"github.com/xrruntime/compositor/internal/xrerr"
	"github.com/xrruntime/compositor/layer"
	"github.com/xrruntime/compositor/xrmath"
)

type fakeLookup struct {
	width, height uint32
	faceCount     uint32
	arrayLayers   uint32
}

func (f fakeLookup) Released(id uint64) (index, arrayLayerCount, faceCount, width, height uint32, ok bool) {
	if id == 0 {
		return 0, 0, 0, 0, 0, false
	}
	return 0, f.arrayLayers, f.faceCount, f.width, f.height, true
}

func unitPose() xrmath.Pose {
	return xrmath.Pose{Orientation: xrmath.Quat{R: 1}}
}

func TestZeroLayerFrameSucceeds(t *testing.T) {
	c := layer.NewCollector(layer.BlendOpaque)
	c.Begin(1, 0, layer.BlendOpaque)
	slot, err := c.Commit(fakeLookup{})
	if err != nil {
		t.Fatalf("zero-layer commit should succeed, got %v", err)
	}
	if len(slot.Submissions) != 0 {
		t.Fatalf("expected zero submissions, got %d", len(slot.Submissions))
	}
}

func TestUnsupportedBlendModeRejectsEvenWithZeroLayers(t *testing.T) {
	c := layer.NewCollector(layer.BlendOpaque)
	c.Begin(1, 0, layer.BlendAlphaBlend)
	_, err := c.Commit(fakeLookup{})
	if !errors.Is(err, xrerr.ErrEnvironmentBlendModeUnsupported) {
		t.Fatalf("expected ErrEnvironmentBlendModeUnsupported, got %v", err)
	}
}

func TestQuadImageRectOutOfBoundsRejected(t *testing.T) {
	c := layer.NewCollector(layer.BlendOpaque)
	c.Begin(1, 0, layer.BlendOpaque)

	var sub layer.Submission
	sub.Type = layer.TypeQuad
	sub.Quad.Sub = layer.SubImage{
		SwapchainID: 1,
		Rect:        layer.Rect{OffsetX: 400, OffsetY: 0, Width: 200, Height: 200},
	}
	sub.Quad.Pose = unitPose()
	if err := c.Append(sub); err != nil {
		t.Fatalf("Append: %v", err)
	}

	_, err := c.Commit(fakeLookup{width: 512, height: 512, faceCount: 1, arrayLayers: 1})
	if !errors.Is(err, xrerr.ErrSwapchainRectInvalid) {
		t.Fatalf("expected ErrSwapchainRectInvalid, got %v", err)
	}
}

func TestEquirect2AngleClampedNotRejected(t *testing.T) {
	c := layer.NewCollector(layer.BlendOpaque)
	c.Begin(1, 0, layer.BlendOpaque)

	var sub layer.Submission
	sub.Type = layer.TypeEquirect2
	sub.Equirect2.Sub = layer.SubImage{SwapchainID: 1, Rect: layer.Rect{Width: 10, Height: 10}}
	sub.Equirect2.Pose = unitPose()
	sub.Equirect2.CentralHorizontalAngle = 100 // far beyond 2π
	if err := c.Append(sub); err != nil {
		t.Fatalf("Append: %v", err)
	}

	slot, err := c.Commit(fakeLookup{width: 100, height: 100, faceCount: 1, arrayLayers: 1})
	if err != nil {
		t.Fatalf("expected clamp, not rejection, got %v", err)
	}
	if got := slot.Submissions[0].Equirect2.CentralHorizontalAngle; got > 6.2832 {
		t.Fatalf("expected angle clamped to 2π, got %v", got)
	}
}

func TestDepthPassthroughWhenMinEqualsMaxDepth(t *testing.T) {
	c := layer.NewCollector(layer.BlendOpaque)
	c.Begin(1, 0, layer.BlendOpaque)

	depth := &layer.DepthInfo{MinDepth: 0.5, MaxDepth: 0.5, NearZ: 0.1, FarZ: 100}
	var sub layer.Submission
	sub.Type = layer.TypeStereoProjection
	sub.StereoLeft = layer.SubImage{SwapchainID: 1, Rect: layer.Rect{Width: 10, Height: 10}}
	sub.StereoRight = layer.SubImage{SwapchainID: 1, Rect: layer.Rect{Width: 10, Height: 10}}
	sub.StereoLeftPose, sub.StereoRightPose = unitPose(), unitPose()
	sub.StereoDepthLeft, sub.StereoDepthRight = depth, depth
	if err := c.Append(sub); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if _, err := c.Commit(fakeLookup{width: 100, height: 100, faceCount: 1, arrayLayers: 1}); err != nil {
		t.Fatalf("expected minDepth==maxDepth to be accepted as passthrough, got %v", err)
	}
}
