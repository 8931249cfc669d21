// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package xrmath

// Mat4 is a column-major 4x4 float32 matrix, matching the layout GPU
// uniform buffers expect.
type Mat4 [16]float32

// Identity returns the identity matrix.
func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Mul returns a*b (column-major, a applied after b).
func (a Mat4) Mul(b Mat4) Mat4 {
	var out Mat4
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += a[k*4+row] * b[col*4+k]
			}
			out[col*4+row] = sum
		}
	}
	return out
}

// FromPose builds the view matrix (inverse of the camera transform) for a
// pose: translation by -position, rotation by the conjugate orientation.
// Used to build the MVP matrix a rasterized layer's per-eye UBO carries
// (spec §4.4).
func FromPose(p Pose) Mat4 {
	q := p.Orientation
	x, y, z, w := q.V.X, q.V.Y, q.V.Z, q.R

	xx, yy, zz := x*x, y*y, z*z
	xy, xz, yz := x*y, x*z, y*z
	wx, wy, wz := w*x, w*y, w*z

	rot := Mat4{
		1 - 2*(yy+zz), 2 * (xy - wz), 2 * (xz + wy), 0,
		2 * (xy + wz), 1 - 2*(xx+zz), 2 * (yz - wx), 0,
		2 * (xz - wy), 2 * (yz + wx), 1 - 2*(xx+yy), 0,
		0, 0, 0, 1,
	}

	translate := Identity()
	translate[12] = -p.Position.X
	translate[13] = -p.Position.Y
	translate[14] = -p.Position.Z

	return rot.Mul(translate)
}

// TimeWarp builds the reprojection matrix described in spec §4.4: the
// transform from the pose the client rendered at (renderPose, renderFov)
// to the pose measured at present time (presentPose). Composition is
// present-view * inverse(render-view); since FromPose already returns a
// view matrix, the warp is presentView * renderViewInverse, approximated
// here by recomposing from the two poses directly (render FOV is carried
// by the caller for the projection terms it applies separately).
func TimeWarp(renderPose, presentPose Pose) Mat4 {
	renderView := FromPose(renderPose)
	presentView := FromPose(presentPose)
	inv := rigidInverse(renderView)
	return presentView.Mul(inv)
}

// rigidInverse inverts a rotation+translation matrix by transposing the
// rotation block and negating the translation in the rotated frame —
// valid because FromPose never produces scale or shear.
func rigidInverse(m Mat4) Mat4 {
	var out Mat4
	// Transpose the 3x3 rotation block.
	for col := 0; col < 3; col++ {
		for row := 0; row < 3; row++ {
			out[col*4+row] = m[row*4+col]
		}
	}
	out[15] = 1
	// Inverse translation: -R^T * t
	tx, ty, tz := m[12], m[13], m[14]
	out[12] = -(out[0]*tx + out[4]*ty + out[8]*tz)
	out[13] = -(out[1]*tx + out[5]*ty + out[9]*tz)
	out[14] = -(out[2]*tx + out[6]*ty + out[10]*tz)
	return out
}
