package gpu

import "errors"

// Runtime/GPU failure sentinels (spec §7): unrecoverable device-side
// states that every caller wraps as a single opaque kind rather than
// attempting to recover from.
var (
	// ErrDeviceOutOfMemory indicates the GPU has exhausted its memory.
	// Unrecoverable for the current allocation; the caller should reduce
	// resource usage or surface the failure to the affected session.
	ErrDeviceOutOfMemory = errors.New("gpu: device out of memory")

	// ErrDeviceLost indicates the GPU device has been lost (driver
	// crash, hardware disconnect, driver timeout). Per spec §7, device
	// loss is surfaced as session state LOSS_PENDING rather than
	// returned directly to most callers.
	ErrDeviceLost = errors.New("gpu: device lost")

	// ErrPresentationTargetLost indicates the presentation target's
	// backing surface was destroyed (e.g. the peek window closed).
	ErrPresentationTargetLost = errors.New("gpu: presentation target lost")

	// ErrPresentationTargetOutdated indicates the presentation target's
	// configuration is stale (resize, display-mode change) and must be
	// recreated via create_images before the next acquire/present.
	ErrPresentationTargetOutdated = errors.New("gpu: presentation target outdated")

	// ErrZeroArea indicates a presentation target was asked to create
	// images with zero width or height (window minimized or not yet
	// laid out).
	ErrZeroArea = errors.New("gpu: presentation target width and height must be non-zero")

	// ErrDriverBug indicates the driver returned a result that violates
	// its own API contract (e.g. reporting success while writing a null
	// handle). The operation cannot be completed by retrying as-is.
	ErrDriverBug = errors.New("gpu: driver returned a spec-violating result")
)
