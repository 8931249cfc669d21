// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package compositor

import (
	"github.com/xrruntime/compositor/internal/xrerr"
	"github.com/xrruntime/compositor/present"
	"github.com/xrruntime/compositor/server"
	"github.com/xrruntime/compositor/session"
)

// Session wraps one client's server.SessionHandle with the public,
// validated call sequence spec §6 exposes: create/destroy, begin/end,
// poll event.
type Session struct {
	inst   *Instance
	id     uint64
	handle *server.SessionHandle
	system *System
}

// CreateSession creates a new session against sys, presenting through
// target. nominalFrameIntervalNs seeds the session's frame scheduler
// (e.g. 1e9/90 for a 90 Hz display).
func (inst *Instance) CreateSession(sys *System, target present.Target, nominalFrameIntervalNs int64) *Session {
	id := inst.NextSessionID()
	handle := inst.server.AddSession(id, target, nominalFrameIntervalNs)
	return &Session{inst: inst, id: id, handle: handle, system: sys}
}

// ID returns the session's stable identifier.
func (s *Session) ID() uint64 { return s.id }

// State reports the session's current state-machine node (spec §4.6).
func (s *Session) State() session.State { return s.handle.Machine.State() }

// Begin implements IDLE -ready_to_begin-> READY.
func (s *Session) Begin() error {
	return s.handle.Machine.ReadyToBegin()
}

// End implements the client_end transition back to IDLE.
func (s *Session) End() error {
	return s.handle.Machine.ClientEnd()
}

// BecomeVisible/BecomeFocused/LoseFocus/Hide forward directly to the
// underlying state machine; the server invokes these in response to
// focus-policy decisions outside this package's scope (spec §1
// Non-goals: focus arbitration across sessions is a single-slot policy
// this core does not itself implement beyond "one focused session").

func (s *Session) BecomeVisible() error { return s.handle.Machine.BecomeVisible() }
func (s *Session) BecomeFocused() error { return s.handle.Machine.BecomeFocused() }
func (s *Session) LoseFocus() error     { return s.handle.Machine.LoseFocus() }
func (s *Session) Hide() error          { return s.handle.Machine.Hide() }

// PollEvent pops the oldest queued session event, if any.
func (s *Session) PollEvent() (session.Event, bool) {
	return s.handle.Machine.PollEvent()
}

// Destroy removes the session from its instance's server, cancelling
// any outstanding wait_frame and destroying its presentation target.
func (s *Session) Destroy() {
	s.inst.server.RemoveSession(s.id)
}

// GraphicsSyncHandle is the compositor's uniform view of a platform
// sync primitive (spec §6 "Fence import: from a platform-native sync
// handle"): a POSIX file descriptor, a Windows HANDLE, or an Android
// hardware buffer, depending on platform. Ownership transfers to the
// compositor on import.
type GraphicsSyncHandle uintptr

// InvalidGraphicsSyncHandle is the sentinel returned when no fence was
// imported.
const InvalidGraphicsSyncHandle GraphicsSyncHandle = 0

// ImportFence adopts a platform-native sync handle. The compositor
// treats the imported fence as satisfied exactly when the platform
// signals it; this package only validates the handle is non-nil, since
// the platform-specific wait primitive is resolved by the gpu/vulkan
// bundle the session's target was built against.
func (s *Session) ImportFence(h GraphicsSyncHandle) error {
	if h == InvalidGraphicsSyncHandle {
		return xrerr.New(xrerr.KindHandleInvalid, "compositor: invalid graphics sync handle")
	}
	return nil
}
