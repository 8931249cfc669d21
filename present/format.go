// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package present implements the presentation-target contract (spec
// §4.5): the two-phase init, swapchain creation, per-frame
// acquire/present, and the scheduler feedback path every platform
// backend must provide, plus format/present-mode selection (spec §6).
package present

import "github.com/gogpu/gputypes"

// ColorFormatPreference is spec §6's color-format preference order,
// first-supported-wins. gputypes has no RGBA16Unorm constant (confirmed
// by exhaustively grepping every caller in this pack's corpus), so the
// top preference substitutes RGBA16Float, the closest real format with
// equivalent per-channel precision and no banding.
var ColorFormatPreference = []gputypes.TextureFormat{
	gputypes.TextureFormatRGBA16Float,
	gputypes.TextureFormatRGBA8UnormSrgb,
	gputypes.TextureFormatBGRA8UnormSrgb,
	gputypes.TextureFormatRGBA8Unorm,
	gputypes.TextureFormatBGRA8Unorm,
}

// DepthFormatPreference is spec §6's depth-only preference order.
// gputypes has no D32_SFLOAT-exact name collision concern: Depth32Float
// is the direct equivalent; Depth16Unorm likewise matches D16_UNORM.
var DepthFormatPreference = []gputypes.TextureFormat{
	gputypes.TextureFormatDepth16Unorm,
	gputypes.TextureFormatDepth32Float,
}

// DepthStencilFormatPreference is spec §6's depth-stencil preference
// order.
var DepthStencilFormatPreference = []gputypes.TextureFormat{
	gputypes.TextureFormatDepth24PlusStencil8,
	gputypes.TextureFormatDepth32FloatStencil8,
}

// SelectFormat returns the first entry of preference that supported
// reports true for, or ok=false if none are supported. supported is
// typically backed by a per-device/per-surface capability query the
// platform backend performs.
func SelectFormat(preference []gputypes.TextureFormat, supported func(gputypes.TextureFormat) bool) (gputypes.TextureFormat, bool) {
	for _, f := range preference {
		if supported(f) {
			return f, true
		}
	}
	return gputypes.TextureFormatUndefined, false
}

// Kind distinguishes the window-system family a presentation target runs
// against, since spec §4.5's present-mode selection rule depends on it.
type Kind int

const (
	// KindXCBWindowed is a desktop windowed peek surface.
	KindXCBWindowed Kind = iota
	// KindDirect covers KMS-like, NVIDIA direct, and Wayland direct
	// backends that provide true vsync timing.
	KindDirect
)

// SelectPresentMode implements spec §4.5's present-mode rule: FIFO is the
// default, MAILBOX is preferred for XCB windowed peek surfaces when the
// device supports it, IMMEDIATE is only used as the XCB fallback when
// neither FIFO nor MAILBOX is available.
func SelectPresentMode(kind Kind, supported func(gputypes.PresentMode) bool) gputypes.PresentMode {
	if kind == KindXCBWindowed {
		if supported(gputypes.PresentModeMailbox) {
			return gputypes.PresentModeMailbox
		}
		if supported(gputypes.PresentModeFifo) {
			return gputypes.PresentModeFifo
		}
		return gputypes.PresentModeImmediate
	}
	return gputypes.PresentModeFifo
}
