// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package present_test

import (
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/xrruntime/compositor/present"
)

func TestSelectFormatReturnsFirstSupported(t *testing.T) {
	supported := map[gputypes.TextureFormat]bool{
		gputypes.TextureFormatRGBA8UnormSrgb: true,
	}
	got, ok := present.SelectFormat(present.ColorFormatPreference, func(f gputypes.TextureFormat) bool { return supported[f] })
	if !ok {
		t.Fatal("expected a supported format")
	}
	if got != gputypes.TextureFormatRGBA8UnormSrgb {
		t.Fatalf("got %v, want RGBA8UnormSrgb", got)
	}
}

func TestSelectFormatReturnsFalseWhenNoneSupported(t *testing.T) {
	_, ok := present.SelectFormat(present.ColorFormatPreference, func(gputypes.TextureFormat) bool { return false })
	if ok {
		t.Fatal("expected ok=false when nothing is supported")
	}
}

func TestSelectPresentModePrefersMailboxForXCBWindowed(t *testing.T) {
	supported := func(m gputypes.PresentMode) bool { return true }
	if got := present.SelectPresentMode(present.KindXCBWindowed, supported); got != gputypes.PresentModeMailbox {
		t.Fatalf("got %v, want Mailbox", got)
	}
}

func TestSelectPresentModeFallsBackToImmediateForXCB(t *testing.T) {
	supported := func(m gputypes.PresentMode) bool { return m == gputypes.PresentModeImmediate }
	if got := present.SelectPresentMode(present.KindXCBWindowed, supported); got != gputypes.PresentModeImmediate {
		t.Fatalf("got %v, want Immediate", got)
	}
}

func TestSelectPresentModeDirectPrefersFifo(t *testing.T) {
	supported := func(m gputypes.PresentMode) bool { return true }
	if got := present.SelectPresentMode(present.KindDirect, supported); got != gputypes.PresentModeFifo {
		t.Fatalf("got %v, want Fifo", got)
	}
}
