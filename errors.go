// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package compositor

import "github.com/xrruntime/compositor/internal/xrerr"

// Kind re-exports the compositor's error taxonomy (spec §7) at the
// public API boundary, the way gogpu/wgpu's hal package re-exports its
// own HAL-level sentinels one layer up.
type Kind = xrerr.Kind

const (
	KindHandleInvalid          = xrerr.KindHandleInvalid
	KindCallOrderInvalid       = xrerr.KindCallOrderInvalid
	KindValidationFailure      = xrerr.KindValidationFailure
	KindResourceUnavailable    = xrerr.KindResourceUnavailable
	KindEnvironmentUnsupported = xrerr.KindEnvironmentUnsupported
	KindRuntimeFailure         = xrerr.KindRuntimeFailure
	KindSessionNotRunning      = xrerr.KindSessionNotRunning
)

var (
	ErrNoImageAvailable               = xrerr.ErrNoImageAvailable
	ErrTimeout                        = xrerr.ErrTimeout
	ErrLayerInvalid                   = xrerr.ErrLayerInvalid
	ErrSwapchainRectInvalid           = xrerr.ErrSwapchainRectInvalid
	ErrSwapchainFormatUnsupported     = xrerr.ErrSwapchainFormatUnsupported
	ErrSwapchainFlagUnsupported       = xrerr.ErrSwapchainFlagUnsupported
	ErrEnvironmentBlendModeUnsupported = xrerr.ErrEnvironmentBlendModeUnsupported
	ErrCallOrderInvalid               = xrerr.ErrCallOrderInvalid
	ErrSessionNotRunning              = xrerr.ErrSessionNotRunning
	ErrSessionLossPending             = xrerr.ErrSessionLossPending
)

// ErrorKind reports the Kind classifying err, if err carries one.
func ErrorKind(err error) (Kind, bool) {
	for k := xrerr.KindHandleInvalid; k <= xrerr.KindSessionNotRunning; k++ {
		if xrerr.Is(err, k) {
			return k, true
		}
	}
	return xrerr.KindUnknown, false
}
