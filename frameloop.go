// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package compositor

import (
	"sync"

	"github.com/xrruntime/compositor/internal/xrerr"
	"github.com/xrruntime/compositor/layer"
	"github.com/xrruntime/compositor/scheduler"
	"github.com/xrruntime/compositor/xrmath"
)

// PredictFrame implements predict_frame (spec §4.1, §6): assigns the
// next frame ID and its predicted wake-up/display times.
func (s *Session) PredictFrame() (scheduler.Prediction, error) {
	return s.handle.Scheduler.Predict()
}

// WaitFrame implements wait_frame: blocks until the predicted wake-up
// time, the one long block in the public API surface (spec §5).
func (s *Session) WaitFrame() (scheduler.Prediction, error) {
	return s.handle.Scheduler.Wait()
}

// MarkFrame implements mark_frame: records the wall-clock time frameID
// reached point.
func (s *Session) MarkFrame(frameID uint64, point scheduler.Point, whenNs int64) {
	s.handle.Scheduler.Mark(frameID, point, whenNs)
}

// frameLoop holds the in-progress layer list between layer_begin and
// layer_commit for one session — mirroring layer.Collector's own
// begun-flag discipline one level up, since this package batches the
// per-call layer_<type> sequence into the one CommitFrame call
// server.SessionHandle exposes as its single producer entry point.
type frameLoop struct {
	mu            sync.Mutex
	begun         bool
	frameID       uint64
	displayTimeNs int64
	blend         layer.BlendMode
	submissions   []layer.Submission
}

var frameLoops sync.Map // map[*Session]*frameLoop

func (s *Session) loop() *frameLoop {
	v, _ := frameLoops.LoadOrStore(s, &frameLoop{})
	return v.(*frameLoop)
}

// BeginFrame implements begin_frame: opens a new layer slot for frameID.
// Must follow a successful WaitFrame for the same frameID (spec §5
// ordering guarantee). BeginFrame does not check that ordering; the only
// order it enforces is that LayerCommit without an open BeginFrame fails
// with CALL_ORDER_INVALID.
func (s *Session) BeginFrame(frameID uint64, displayTimeNs int64, blend layer.BlendMode) error {
	fl := s.loop()
	fl.mu.Lock()
	defer fl.mu.Unlock()
	fl.begun = true
	fl.frameID = frameID
	fl.displayTimeNs = displayTimeNs
	fl.blend = blend
	fl.submissions = fl.submissions[:0]
	return nil
}

// DiscardFrame implements discard_frame: abandons the in-progress slot
// without compositing it.
func (s *Session) DiscardFrame() {
	fl := s.loop()
	fl.mu.Lock()
	defer fl.mu.Unlock()
	fl.begun = false
	fl.submissions = nil
}

func (s *Session) appendLayer(sub layer.Submission) error {
	fl := s.loop()
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if !fl.begun {
		return xrerr.ErrCallOrderInvalid
	}
	fl.submissions = append(fl.submissions, sub)
	return nil
}

// LayerStereoProjection implements layer_stereo_projection.
func (s *Session) LayerStereoProjection(left, right layer.SubImage, leftPose, rightPose xrmath.Pose, leftFov, rightFov xrmath.Fov, vis layer.EyeVisibility) error {
	return s.appendLayer(layer.Submission{
		Type:           layer.TypeStereoProjection,
		StereoLeft:     left,
		StereoRight:    right,
		StereoLeftPose: leftPose, StereoRightPose: rightPose,
		StereoLeftFov: leftFov, StereoRightFov: rightFov,
		EyeVisibility: vis,
	})
}

// LayerStereoProjectionDepth implements layer_stereo_projection_depth.
func (s *Session) LayerStereoProjectionDepth(left, right layer.SubImage, leftPose, rightPose xrmath.Pose, leftFov, rightFov xrmath.Fov, leftDepth, rightDepth *layer.DepthInfo, vis layer.EyeVisibility) error {
	return s.appendLayer(layer.Submission{
		Type:           layer.TypeStereoProjection,
		StereoLeft:     left,
		StereoRight:    right,
		StereoLeftPose: leftPose, StereoRightPose: rightPose,
		StereoLeftFov: leftFov, StereoRightFov: rightFov,
		StereoDepthLeft: leftDepth, StereoDepthRight: rightDepth,
		EyeVisibility: vis,
	})
}

// LayerQuad implements layer_quad.
func (s *Session) LayerQuad(sub layer.SubImage, pose xrmath.Pose, width, height float32, vis layer.EyeVisibility) error {
	sm := layer.Submission{Type: layer.TypeQuad, EyeVisibility: vis}
	sm.Quad.Sub, sm.Quad.Pose, sm.Quad.Width, sm.Quad.Height = sub, pose, width, height
	return s.appendLayer(sm)
}

// LayerCylinder implements layer_cylinder.
func (s *Session) LayerCylinder(sub layer.SubImage, pose xrmath.Pose, radius, centralAngle, aspectRatio float32, vis layer.EyeVisibility) error {
	sm := layer.Submission{Type: layer.TypeCylinder, EyeVisibility: vis}
	sm.Cylinder.Sub, sm.Cylinder.Pose = sub, pose
	sm.Cylinder.Radius, sm.Cylinder.CentralAngle, sm.Cylinder.AspectRatio = radius, centralAngle, aspectRatio
	return s.appendLayer(sm)
}

// LayerEquirect1 implements layer_equirect1.
func (s *Session) LayerEquirect1(sub layer.SubImage, pose xrmath.Pose, radius, scaleX, scaleY, biasX, biasY float32, vis layer.EyeVisibility) error {
	sm := layer.Submission{Type: layer.TypeEquirect1, EyeVisibility: vis}
	sm.Equirect1.Sub, sm.Equirect1.Pose, sm.Equirect1.Radius = sub, pose, radius
	sm.Equirect1.ScaleX, sm.Equirect1.ScaleY = scaleX, scaleY
	sm.Equirect1.BiasX, sm.Equirect1.BiasY = biasX, biasY
	return s.appendLayer(sm)
}

// LayerEquirect2 implements layer_equirect2.
func (s *Session) LayerEquirect2(sub layer.SubImage, pose xrmath.Pose, radius, centralHorizontalAngle, upperVerticalAngle, lowerVerticalAngle float32, vis layer.EyeVisibility) error {
	sm := layer.Submission{Type: layer.TypeEquirect2, EyeVisibility: vis}
	sm.Equirect2.Sub, sm.Equirect2.Pose, sm.Equirect2.Radius = sub, pose, radius
	sm.Equirect2.CentralHorizontalAngle = centralHorizontalAngle
	sm.Equirect2.UpperVerticalAngle, sm.Equirect2.LowerVerticalAngle = upperVerticalAngle, lowerVerticalAngle
	return s.appendLayer(sm)
}

// LayerCube implements layer_cube.
func (s *Session) LayerCube(swapchainID uint64, orientation xrmath.Quat, vis layer.EyeVisibility) error {
	sm := layer.Submission{Type: layer.TypeCube, EyeVisibility: vis}
	sm.Cube.SwapchainID, sm.Cube.Orientation = swapchainID, orientation
	return s.appendLayer(sm)
}

// LayerCommit implements layer_commit: validates and publishes the
// in-progress slot as the next frame the server will composite.
func (s *Session) LayerCommit() error {
	fl := s.loop()
	fl.mu.Lock()
	if !fl.begun {
		fl.mu.Unlock()
		return xrerr.ErrCallOrderInvalid
	}
	frameID, displayTimeNs, blend := fl.frameID, fl.displayTimeNs, fl.blend
	submissions := make([]layer.Submission, len(fl.submissions))
	copy(submissions, fl.submissions)
	fl.begun = false
	fl.submissions = nil
	fl.mu.Unlock()

	return s.handle.CommitFrame(frameID, displayTimeNs, blend, submissions)
}
