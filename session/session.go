// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package session implements the per-client session state machine (spec
// §4.6): IDLE/READY/SYNCHRONIZED/VISIBLE/FOCUSED plus the STOPPING,
// LOSS_PENDING and EXITING side states, with a single-producer (server),
// single-consumer (client poll) event queue.
//
// State transitions are guarded by a mutex and paired with an event
// queue a poller drains, the same "cheap to read, safe to mutate
// concurrently" discipline this package's sibling packages use for
// their own state fields.
package session

import (
	"sync"

	"github.com/xrruntime/compositor/internal/xrerr"
)

// State is one node of the diagram in spec §4.6.
type State int

const (
	Idle State = iota
	Ready
	Synchronized
	Visible
	Focused
	Stopping
	LossPending
	Exiting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Ready:
		return "READY"
	case Synchronized:
		return "SYNCHRONIZED"
	case Visible:
		return "VISIBLE"
	case Focused:
		return "FOCUSED"
	case Stopping:
		return "STOPPING"
	case LossPending:
		return "LOSS_PENDING"
	case Exiting:
		return "EXITING"
	default:
		return "UNKNOWN"
	}
}

// EventKind discriminates the three event types spec §4.6 queues.
type EventKind int

const (
	EventStateChanged EventKind = iota
	EventInteractionProfileChanged
	EventMainSessionVisibilityChanged
)

// Event is one queued, polled notification. Only the fields relevant to
// Kind are populated.
type Event struct {
	Kind EventKind

	OldState State
	NewState State

	MainSessionVisible bool
}

// Machine is one session's state machine plus its event queue. Not safe
// for concurrent Poll calls by more than one consumer — spec §4.6 is
// explicit that the queue is single-consumer.
type Machine struct {
	mu     sync.Mutex
	state  State
	events []Event

	everSubmitted bool
}

// New creates a session machine in IDLE.
func New() *Machine {
	return &Machine{state: Idle}
}

// State reports the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) transition(to State) {
	from := m.state
	m.state = to
	m.events = append(m.events, Event{Kind: EventStateChanged, OldState: from, NewState: to})
}

// ReadyToBegin implements IDLE -ready_to_begin-> READY.
func (m *Machine) ReadyToBegin() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Idle {
		return xrerr.ErrCallOrderInvalid
	}
	m.transition(Ready)
	return nil
}

// NotifySubmit implements READY -client_begin-> SYNCHRONIZED, which spec
// §4.6 gates on "after first successful submit" rather than on
// client_begin alone — callers invoke this once layer_commit has
// actually succeeded for the first time. Idempotent for later frames.
func (m *Machine) NotifySubmit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.everSubmitted {
		return nil
	}
	if m.state != Ready {
		return xrerr.ErrCallOrderInvalid
	}
	m.everSubmitted = true
	m.transition(Synchronized)
	return nil
}

// BecomeVisible implements SYNCHRONIZED -become_visible-> VISIBLE.
func (m *Machine) BecomeVisible() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Synchronized {
		return xrerr.ErrCallOrderInvalid
	}
	m.transition(Visible)
	m.events = append(m.events, Event{Kind: EventMainSessionVisibilityChanged, MainSessionVisible: true})
	return nil
}

// BecomeFocused implements VISIBLE -become_focused-> FOCUSED.
func (m *Machine) BecomeFocused() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Visible {
		return xrerr.ErrCallOrderInvalid
	}
	m.transition(Focused)
	return nil
}

// LoseFocus implements FOCUSED -lose_focus-> VISIBLE.
func (m *Machine) LoseFocus() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Focused {
		return xrerr.ErrCallOrderInvalid
	}
	m.transition(Visible)
	return nil
}

// Hide implements VISIBLE -hide-> SYNCHRONIZED.
func (m *Machine) Hide() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Visible {
		return xrerr.ErrCallOrderInvalid
	}
	m.transition(Synchronized)
	m.events = append(m.events, Event{Kind: EventMainSessionVisibilityChanged, MainSessionVisible: false})
	return nil
}

// ClientEnd implements SYNCHRONIZED -client_end-> STOPPING -> IDLE. Spec
// §4.6 draws this as one arrow through STOPPING; exposed here as the
// single call a session's end_session makes, since no caller-visible
// event distinguishes the two.
func (m *Machine) ClientEnd() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Synchronized && m.state != Visible && m.state != Focused {
		return xrerr.ErrCallOrderInvalid
	}
	m.transition(Stopping)
	m.transition(Idle)
	m.everSubmitted = false
	return nil
}

// Loss implements the device-loss transition to LOSS_PENDING (spec §7
// "device loss is surfaced as session state LOSS_PENDING via an
// event"), valid from any state.
func (m *Machine) Loss() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transition(LossPending)
}

// Exit implements the client-requested exit transition to EXITING,
// valid from any state.
func (m *Machine) Exit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transition(Exiting)
}

// NotifyInteractionProfileChanged queues an InteractionProfileChanged
// event without altering State.
func (m *Machine) NotifyInteractionProfileChanged() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, Event{Kind: EventInteractionProfileChanged})
}

// PollEvent pops the oldest queued event (spec §4.6 "poll event").
// Returns ok=false when the queue is empty.
func (m *Machine) PollEvent() (Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return Event{}, false
	}
	ev := m.events[0]
	m.events = m.events[1:]
	return ev, true
}

// IsComposited reports whether the session is in one of the three states
// (SYNCHRONIZED, VISIBLE, FOCUSED) in which the server composites and
// presents its frames.
func (m *Machine) IsComposited() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == Synchronized || m.state == Visible || m.state == Focused
}

// PendingEvents reports how many events are queued, for tests and
// diagnostics.
func (m *Machine) PendingEvents() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// Destroy removes every pending event for this session (spec §4.6
// "destroying a session removes its pending events").
func (m *Machine) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
	m.state = Exiting
}
