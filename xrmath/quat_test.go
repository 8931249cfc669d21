// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package xrmath_test

import (
	"math"
	"testing"

	"github.com/xrruntime/compositor/xrmath"
)

func TestQuatIsUnit(t *testing.T) {
	cases := []struct {
		name string
		q    xrmath.Quat
		want bool
	}{
		{"identity", xrmath.Quat{R: 1}, true},
		{"within tolerance", xrmath.Quat{V: xrmath.Vec3{X: 0.05}, R: float32(math.Sqrt(1 - 0.05*0.05))}, true},
		{"zero", xrmath.Quat{}, false},
		{"double length", xrmath.Quat{R: 2}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.q.IsUnit(); got != c.want {
				t.Errorf("IsUnit() = %v, want %v (lenSq=%v)", got, c.want, c.q.LenSq())
			}
		})
	}
}

func TestVec3IsFinite(t *testing.T) {
	if !(xrmath.Vec3{X: 1, Y: 2, Z: 3}).IsFinite() {
		t.Error("expected finite vector to be finite")
	}
	inf := float32(math.Inf(1))
	if (xrmath.Vec3{X: inf}).IsFinite() {
		t.Error("expected vector containing +Inf to be non-finite")
	}
}

func TestPoseValid(t *testing.T) {
	good := xrmath.Pose{Position: xrmath.Vec3{X: 1, Y: 2, Z: 3}, Orientation: xrmath.Quat{R: 1}}
	if !good.Valid() {
		t.Error("expected pose with finite position and unit orientation to be valid")
	}
	bad := xrmath.Pose{Position: xrmath.Vec3{X: float32(math.NaN())}, Orientation: xrmath.Quat{R: 1}}
	if bad.Valid() {
		t.Error("expected pose with NaN position to be invalid")
	}
}

func TestMat4IdentityMul(t *testing.T) {
	id := xrmath.Identity()
	m := xrmath.FromPose(xrmath.Pose{Orientation: xrmath.Quat{R: 1}})
	got := id.Mul(m)
	for i := range got {
		if got[i] != m[i] {
			t.Fatalf("identity * m != m at index %d: got %v want %v", i, got[i], m[i])
		}
	}
}
