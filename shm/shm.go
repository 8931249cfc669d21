// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package shm defines the shared-memory layout (spec §6) published
// read-write by the server and read-only by clients in an
// out-of-process deployment. The actual memory-mapping transport is an
// external collaborator per spec §1 ("inter-process transport ... is
// deliberately out of scope"); this package only defines the fixed
// binary layout and the accessors a mapped region is read/written
// through.
package shm

import (
	"fmt"
	"unsafe"
)

// Limits on the fixed-size arrays the layout embeds, matching the
// MAX_DEVICES/MAX_INPUTS/MAX_OUTPUTS placeholders in spec §6.
const (
	MaxDevices = 16
	MaxInputs  = 256
	MaxOutputs = 64

	deviceNameLen = 256
)

// DeviceKind identifies the class of input device an entry describes
// (head, left/right controller, tracker, ...).
type DeviceKind uint32

const (
	DeviceKindInvalid DeviceKind = iota
	DeviceKindHMD
	DeviceKindLeftController
	DeviceKindRightController
	DeviceKindTracker
)

// InputDevice mirrors spec §6's `idevs` entry.
type InputDevice struct {
	Name        DeviceKind
	Str         [deviceNameLen]byte
	InputCount  uint32
	FirstInput  uint32
	OutputCount uint32
	FirstOutput uint32
}

// SetName copies s into Str, truncating if it does not fit.
func (d *InputDevice) SetName(s string) {
	n := copy(d.Str[:], s)
	for i := n; i < len(d.Str); i++ {
		d.Str[i] = 0
	}
}

// StringName returns Str up to its first NUL byte.
func (d *InputDevice) StringName() string {
	for i, b := range d.Str {
		if b == 0 {
			return string(d.Str[:i])
		}
	}
	return string(d.Str[:])
}

// Extent2D is a pixel width/height pair.
type Extent2D struct {
	WPixels uint32
	HPixels uint32
}

// Fov4 is a four-sided field of view in radians, matching the angle
// convention xrmath.Fov uses elsewhere in this module.
type Fov4 struct {
	AngleLeft  float32
	AngleRight float32
	AngleUp    float32
	AngleDown  float32
}

// View is one eye's recommended display extent plus its FOV.
type View struct {
	Display Extent2D
	Fov     Fov4
}

// HMD mirrors spec §6's `hmd` entry: one View per eye.
type HMD struct {
	Views [2]View
}

// InputState is one named input's current scalar/vector/pose value.
// Only the fields relevant to the input's type are meaningful; which
// fields those are is carried out-of-band by the input binding system
// (spec §1: "input action binding" is an external collaborator).
type InputState struct {
	Timestamp int64
	X, Y, Z   float32
	W         float32 // quaternion w, or a second scalar axis
	Pressed   bool
	Touched   bool
}

// OutputState is one named haptic output's requested pulse.
type OutputState struct {
	Frequency float32
	Amplitude float32
	DurationNs int64
}

// Layout is the fixed binary shape of the shared-memory region (spec
// §6). Every field is fixed-size so the struct can be overlaid directly
// onto a mapped region with no serialization step.
type Layout struct {
	IdevCount uint32
	_pad0     [4]byte // keep Idevs 8-byte aligned regardless of GOARCH
	Idevs     [MaxDevices]InputDevice
	HMD       HMD
	Inputs    [MaxInputs]InputState
	Outputs   [MaxOutputs]OutputState
}

// Size is the byte size a backing region must be at least as large as
// to hold one Layout.
var Size = int(unsafe.Sizeof(Layout{}))

// Open overlays a Layout onto region without copying. region must
// remain valid (and at least Size bytes long) for as long as the
// returned pointer is used; the caller owns synchronizing reads against
// concurrent writes from the other side of the mapping — this package
// only defines the shape, not the synchronization protocol.
func Open(region []byte) (*Layout, error) {
	if len(region) < Size {
		return nil, fmt.Errorf("shm: region is %d bytes, need at least %d", len(region), Size)
	}
	return (*Layout)(unsafe.Pointer(&region[0])), nil
}
