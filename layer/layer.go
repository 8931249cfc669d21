// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package layer collects and validates the per-frame layer list (spec
// §4.3): layer_begin clears the slot, each layer_<type> call appends a
// submission, and layer_commit runs the validation rules that must reject
// before composition.
package layer

import (
	"math"

	"github.com/xrruntime/compositor/gpu"
	"github.com/xrruntime/compositor/internal/xrerr"
	"github.com/xrruntime/compositor/xrmath"
)

// EyeVisibility restricts a layer to one or both eyes.
type EyeVisibility int

const (
	EyeBoth EyeVisibility = iota
	EyeLeft
	EyeRight
)

// BlendMode is an environment blend mode a device may advertise.
type BlendMode int

const (
	BlendOpaque BlendMode = iota
	BlendAdditive
	BlendAlphaBlend
)

// SubImage references a rectangular region of a released swapchain image,
// the `sub` field every layer type carries (spec §3).
type SubImage struct {
	SwapchainID    uint64
	ImageArrayIndex uint32
	Rect           Rect
}

// Rect is an integer offset + extent, validated against its swapchain's
// extent (spec §4.3).
type Rect struct {
	OffsetX, OffsetY int32
	Width, Height    uint32
}

// DepthInfo is the optional per-eye depth subimage attached to a stereo
// projection layer.
type DepthInfo struct {
	Sub              SubImage
	MinDepth, MaxDepth float32
	NearZ, FarZ       float32
}

// Submission is the tagged-variant layer type (spec §3): exactly one of
// the typed fields below is populated, selected by Type.
type Submission struct {
	Type Type

	StereoLeft, StereoRight           SubImage
	StereoLeftPose, StereoRightPose   xrmath.Pose
	StereoLeftFov, StereoRightFov     xrmath.Fov
	StereoDepthLeft, StereoDepthRight *DepthInfo

	Quad struct {
		Sub           SubImage
		Pose          xrmath.Pose
		Width, Height float32
	}

	Cylinder struct {
		Sub                     SubImage
		Pose                    xrmath.Pose
		Radius, CentralAngle    float32
		AspectRatio             float32
	}

	Equirect1 struct {
		Sub         SubImage
		Pose        xrmath.Pose
		Radius      float32
		ScaleX, ScaleY, BiasX, BiasY float32
	}

	Equirect2 struct {
		Sub                                               SubImage
		Pose                                              xrmath.Pose
		Radius, CentralHorizontalAngle                    float32
		UpperVerticalAngle, LowerVerticalAngle             float32
	}

	Cube struct {
		Orientation xrmath.Quat
		SwapchainID uint64
	}

	EyeVisibility EyeVisibility
}

// Type discriminates Submission's active variant.
type Type int

const (
	TypeStereoProjection Type = iota
	TypeQuad
	TypeCylinder
	TypeEquirect1
	TypeEquirect2
	TypeCube
)

// equirect2AngleClamp is the SUPPLEMENTED FEATURES decision for spec §9's
// open question: clamp rather than reject central_horizontal_angle above
// a full turn.
const equirect2AngleClamp = 2 * math.Pi

// SwapchainLookup resolves a swapchain ID to the information the validator
// needs without importing the swapchainmgr package directly (keeps layer
// free of a dependency on the concrete swapchain implementation).
type SwapchainLookup interface {
	// Released reports whether the swapchain currently has a released
	// image and, if so, its index and array-layer/face count and extent.
	Released(id uint64) (index uint32, arrayLayerCount uint32, faceCount uint32, width, height uint32, ok bool)
}

// Slot is the fixed per-frame layer list plus its blend mode and
// predicted display time (spec §3 Layer slot).
type Slot struct {
	FrameID            uint64
	DisplayTimeNs      int64
	BlendMode          BlendMode
	Submissions        []Submission
}

// Collector implements layer_begin / layer_<type> / layer_commit (spec
// §4.3). Not safe for concurrent use by more than one caller at a time —
// the session's I/O thread is the sole writer per spec §5.
type Collector struct {
	slot            Slot
	begun           bool
	supportedBlends map[BlendMode]bool
}

// NewCollector creates a collector that accepts the given set of blend
// modes, matching the device's advertised `supported_blend_modes` (spec
// §4.3, §8 invariant 4).
func NewCollector(supported ...BlendMode) *Collector {
	m := make(map[BlendMode]bool, len(supported))
	for _, b := range supported {
		m[b] = true
	}
	return &Collector{supportedBlends: m}
}

// Begin clears the current slot and records the blend mode (layer_begin).
func (c *Collector) Begin(frameID uint64, displayTimeNs int64, blend BlendMode) {
	c.slot = Slot{FrameID: frameID, DisplayTimeNs: displayTimeNs, BlendMode: blend}
	c.begun = true
}

// Append adds one layer submission to the current slot (layer_<type>).
func (c *Collector) Append(s Submission) error {
	if !c.begun {
		return xrerr.ErrCallOrderInvalid
	}
	c.slot.Submissions = append(c.slot.Submissions, s)
	return nil
}

// Commit validates the slot against lookup and returns it for composition
// (layer_commit). A zero-layer frame is valid and discarded by the caller
// (spec §4.3, §8 scenario 3) — Commit itself only rejects bad input.
func (c *Collector) Commit(lookup SwapchainLookup) (Slot, error) {
	if !c.begun {
		return Slot{}, xrerr.ErrCallOrderInvalid
	}
	defer func() { c.begun = false }()

	if !c.supportedBlends[c.slot.BlendMode] {
		return Slot{}, xrerr.ErrEnvironmentBlendModeUnsupported
	}

	for i := range c.slot.Submissions {
		if err := validate(&c.slot.Submissions[i], lookup); err != nil {
			return Slot{}, err
		}
	}
	return c.slot, nil
}

func validate(s *Submission, lookup SwapchainLookup) error {
	switch s.Type {
	case TypeStereoProjection:
		if err := validateSub(s.StereoLeft, lookup, 1); err != nil {
			return err
		}
		if err := validateSub(s.StereoRight, lookup, 1); err != nil {
			return err
		}
		if !s.StereoLeftPose.Valid() || !s.StereoRightPose.Valid() {
			return xrerr.ErrLayerInvalid
		}
		if (s.StereoDepthLeft == nil) != (s.StereoDepthRight == nil) {
			return xrerr.ErrLayerInvalid
		}
		if s.StereoDepthLeft != nil {
			if err := validateDepth(s.StereoDepthLeft); err != nil {
				return err
			}
			if err := validateDepth(s.StereoDepthRight); err != nil {
				return err
			}
		}
	case TypeQuad:
		if err := validateSub(s.Quad.Sub, lookup, 1); err != nil {
			return err
		}
		if !s.Quad.Pose.Valid() {
			return xrerr.ErrLayerInvalid
		}
	case TypeCylinder:
		if err := validateSub(s.Cylinder.Sub, lookup, 1); err != nil {
			return err
		}
		if !s.Cylinder.Pose.Valid() {
			return xrerr.ErrLayerInvalid
		}
		if s.Cylinder.Radius < 0 {
			return xrerr.ErrLayerInvalid
		}
		if s.Cylinder.CentralAngle < 0 || s.Cylinder.CentralAngle > 2*math.Pi {
			return xrerr.ErrLayerInvalid
		}
		if s.Cylinder.AspectRatio <= 0 {
			return xrerr.ErrLayerInvalid
		}
	case TypeEquirect1:
		if err := validateSub(s.Equirect1.Sub, lookup, 1); err != nil {
			return err
		}
		if !s.Equirect1.Pose.Valid() {
			return xrerr.ErrLayerInvalid
		}
	case TypeEquirect2:
		if err := validateSub(s.Equirect2.Sub, lookup, 1); err != nil {
			return err
		}
		if !s.Equirect2.Pose.Valid() {
			return xrerr.ErrLayerInvalid
		}
		if s.Equirect2.CentralHorizontalAngle < 0 {
			return xrerr.ErrLayerInvalid
		}
		if s.Equirect2.CentralHorizontalAngle > equirect2AngleClamp {
			gpu.Named("layer").Warn("equirect2 central_horizontal_angle clamped", "angle", s.Equirect2.CentralHorizontalAngle)
			s.Equirect2.CentralHorizontalAngle = equirect2AngleClamp
		}
	case TypeCube:
		if !s.Cube.Orientation.IsUnit() {
			return xrerr.ErrLayerInvalid
		}
		if _, _, faceCount, _, _, ok := lookup.Released(s.Cube.SwapchainID); !ok || faceCount != 6 {
			return xrerr.ErrLayerInvalid
		}
	}
	return nil
}

func validateDepth(d *DepthInfo) error {
	if d.NearZ == d.FarZ {
		return xrerr.ErrLayerInvalid
	}
	if d.MinDepth < 0 || d.MinDepth > 1 || d.MaxDepth < 0 || d.MaxDepth > 1 {
		return xrerr.ErrLayerInvalid
	}
	if d.MinDepth > d.MaxDepth {
		return xrerr.ErrLayerInvalid
	}
	// minDepth == maxDepth is defined as passthrough (SUPPLEMENTED
	// FEATURES, spec §9 open question) rather than undefined: accepted
	// here, with no special composition effect applied by this package.
	return nil
}

func validateSub(sub SubImage, lookup SwapchainLookup, requiredFaceCount uint32) error {
	_, arrayLayerCount, faceCount, width, height, ok := lookup.Released(sub.SwapchainID)
	if !ok {
		return xrerr.ErrSwapchainRectInvalid
	}
	if sub.ImageArrayIndex >= arrayLayerCount {
		return xrerr.ErrLayerInvalid
	}
	if faceCount != requiredFaceCount {
		return xrerr.ErrLayerInvalid
	}
	if sub.Rect.OffsetX < 0 || sub.Rect.OffsetY < 0 {
		return xrerr.ErrSwapchainRectInvalid
	}
	if uint32(sub.Rect.OffsetX)+sub.Rect.Width > width || uint32(sub.Rect.OffsetY)+sub.Rect.Height > height {
		return xrerr.ErrSwapchainRectInvalid
	}
	return nil
}
