// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package session_test

import (
	"errors"
	"testing"

	"github.com/xrruntime/compositor/internal/xrerr"
	"github.com/xrruntime/compositor/session"
)

func TestFullLifecycleReachesFocused(t *testing.T) {
	m := session.New()
	if err := m.ReadyToBegin(); err != nil {
		t.Fatalf("ReadyToBegin: %v", err)
	}
	if err := m.NotifySubmit(); err != nil {
		t.Fatalf("NotifySubmit: %v", err)
	}
	if err := m.BecomeVisible(); err != nil {
		t.Fatalf("BecomeVisible: %v", err)
	}
	if err := m.BecomeFocused(); err != nil {
		t.Fatalf("BecomeFocused: %v", err)
	}
	if got := m.State(); got != session.Focused {
		t.Fatalf("State() = %v, want FOCUSED", got)
	}

	var kinds []session.EventKind
	for {
		ev, ok := m.PollEvent()
		if !ok {
			break
		}
		kinds = append(kinds, ev.Kind)
	}
	want := []session.EventKind{
		session.EventStateChanged, // READY
		session.EventStateChanged, // SYNCHRONIZED
		session.EventStateChanged, // VISIBLE
		session.EventMainSessionVisibilityChanged,
		session.EventStateChanged, // FOCUSED
	}
	if len(kinds) != len(want) {
		t.Fatalf("got %d events %v, want %d", len(kinds), kinds, len(want))
	}
}

func TestOutOfOrderTransitionIsCallOrderInvalid(t *testing.T) {
	m := session.New()
	if err := m.BecomeFocused(); !errors.Is(err, xrerr.ErrCallOrderInvalid) {
		t.Fatalf("expected ErrCallOrderInvalid from IDLE, got %v", err)
	}
}

func TestDestroyDropsPendingEvents(t *testing.T) {
	m := session.New()
	_ = m.ReadyToBegin()
	if m.PendingEvents() == 0 {
		t.Fatal("expected at least one pending event before destroy")
	}
	m.Destroy()
	if m.PendingEvents() != 0 {
		t.Fatalf("expected 0 pending events after Destroy, got %d", m.PendingEvents())
	}
	if got := m.State(); got != session.Exiting {
		t.Fatalf("State() after Destroy = %v, want EXITING", got)
	}
}

func TestLossValidFromAnyState(t *testing.T) {
	m := session.New()
	m.Loss()
	if got := m.State(); got != session.LossPending {
		t.Fatalf("State() = %v, want LOSS_PENDING", got)
	}
}

func TestHideReturnsToSynchronizedAndQueuesVisibilityEvent(t *testing.T) {
	m := session.New()
	_ = m.ReadyToBegin()
	_ = m.NotifySubmit()
	_ = m.BecomeVisible()
	for {
		if _, ok := m.PollEvent(); !ok {
			break
		}
	}
	if err := m.Hide(); err != nil {
		t.Fatalf("Hide: %v", err)
	}
	if got := m.State(); got != session.Synchronized {
		t.Fatalf("State() = %v, want SYNCHRONIZED", got)
	}
	ev, ok := m.PollEvent()
	if !ok || ev.Kind != session.EventStateChanged || ev.NewState != session.Synchronized {
		t.Fatalf("expected a StateChanged(SYNCHRONIZED) event first, got %+v ok=%v", ev, ok)
	}
	ev, ok = m.PollEvent()
	if !ok || ev.Kind != session.EventMainSessionVisibilityChanged || ev.MainSessionVisible {
		t.Fatalf("expected a MainSessionVisibilityChanged(false) event, got %+v ok=%v", ev, ok)
	}
}
