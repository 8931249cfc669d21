// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package server implements the compositor's concurrency model (spec
// §5): Run starts one goroutine per session attached at that time, each
// running the predict/wait/compose/present cycle, plus a single-consumer
// garbage-collection goroutine, all under one errgroup so a fatal failure
// in any of them tears the whole server down together. The
// garbage-collection goroutine drains every session's destroyed
// swapchains once, when Run shuts down; it does not sweep while frames
// are running. The optional peek-window HTTP server runs in its own
// goroutine started by EnablePeek, outside the errgroup: its failure is
// logged and does not stop Run, and Run closes it on return.
//
// Application-side rendering and the transport that carries layer
// submissions from an application process are out of this package's
// scope (spec §1 Non-goals); CommitFrame is the single-producer entry
// point any such transport calls into, mirroring the single-producer/
// single-consumer discipline session.Machine's event queue and
// swapchainmgr.GarbageStack already use.
//
// Follows an open-device, run-until-context-cancellation,
// tear-down-in-reverse-order shape, tying the main loop to its helper
// goroutines with golang.org/x/sync/errgroup.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/xrruntime/compositor/compose"
	"github.com/xrruntime/compositor/gpu"
	"github.com/xrruntime/compositor/internal/config"
	"github.com/xrruntime/compositor/internal/thread"
	"github.com/xrruntime/compositor/internal/xrerr"
	"github.com/xrruntime/compositor/layer"
	"github.com/xrruntime/compositor/present"
	"github.com/xrruntime/compositor/present/peek"
	"github.com/xrruntime/compositor/scheduler"
	"github.com/xrruntime/compositor/session"
	"github.com/xrruntime/compositor/swapchainmgr"
)

// SessionHandle bundles one client's session state machine, layer
// collector, frame scheduler, swapchain set and presentation target — the
// complete set of per-session state the main loop drives each frame.
type SessionHandle struct {
	ID        uint64
	Machine   *session.Machine
	Scheduler *scheduler.Scheduler
	Target    present.Target
	Garbage   swapchainmgr.GarbageStack

	// gpuThread pins every call into compose/present for this session to
	// one OS thread, matching the thread affinity goffi's resolved Vulkan
	// entry points expect of the command pool and present queue they bind.
	gpuThread *thread.Thread

	swapMu     sync.Mutex
	swapchains map[uint64]*swapchainmgr.Swapchain

	collector *layer.Collector

	slotMu  sync.Mutex
	slot    layer.Slot
	hasSlot bool
}

func newSessionHandle(id uint64, target present.Target, nominalIntervalNs int64) *SessionHandle {
	return &SessionHandle{
		ID:         id,
		Machine:    session.New(),
		Scheduler:  scheduler.New(nominalIntervalNs),
		Target:     target,
		gpuThread:  thread.New(),
		swapchains: make(map[uint64]*swapchainmgr.Swapchain),
		collector:  layer.NewCollector(layer.BlendOpaque, layer.BlendAdditive, layer.BlendAlphaBlend),
	}
}

// AddSwapchain registers a swapchain under id so later layer submissions
// referencing it validate against its real extent and layer/face count.
func (h *SessionHandle) AddSwapchain(id uint64, sc *swapchainmgr.Swapchain) {
	h.swapMu.Lock()
	defer h.swapMu.Unlock()
	h.swapchains[id] = sc
}

// RemoveSwapchain pushes sc onto the session's garbage stack rather than
// freeing it immediately (spec §4.2).
func (h *SessionHandle) RemoveSwapchain(id uint64, currentFrame uint64) {
	h.swapMu.Lock()
	sc, ok := h.swapchains[id]
	delete(h.swapchains, id)
	h.swapMu.Unlock()
	if !ok {
		return
	}
	sc.Destroy(currentFrame)
	h.Garbage.Push(sc)
}

// Released implements layer.SwapchainLookup by delegating to the named
// swapchain's own Released() view.
func (h *SessionHandle) Released(id uint64) (index, arrayLayerCount, faceCount, width, height uint32, ok bool) {
	h.swapMu.Lock()
	sc, found := h.swapchains[id]
	h.swapMu.Unlock()
	if !found {
		return 0, 0, 0, 0, 0, false
	}
	return sc.Released()
}

// CommitFrame runs layer_begin/layer_<type>*/layer_commit against this
// session's collector and, on success, publishes the result as the slot
// the next composited frame will render (spec §4.3). This is the single
// producer of composited content; the main loop is the single consumer.
func (h *SessionHandle) CommitFrame(frameID uint64, displayTimeNs int64, blend layer.BlendMode, submissions []layer.Submission) error {
	h.collector.Begin(frameID, displayTimeNs, blend)
	for _, s := range submissions {
		if err := h.collector.Append(s); err != nil {
			return err
		}
	}
	slot, err := h.collector.Commit(h)
	if err != nil {
		return err
	}
	if err := h.Machine.NotifySubmit(); err != nil && !errors.Is(err, xrerr.ErrCallOrderInvalid) {
		return err
	}

	h.slotMu.Lock()
	h.slot, h.hasSlot = slot, true
	h.slotMu.Unlock()
	return nil
}

func (h *SessionHandle) takeSlot() (layer.Slot, bool) {
	h.slotMu.Lock()
	defer h.slotMu.Unlock()
	return h.slot, h.hasSlot
}

// Server runs the compositor's main loop across every attached session.
type Server struct {
	compositor *compose.Compositor

	cfgMu sync.RWMutex
	cfg   config.Config

	mu       sync.Mutex
	sessions map[uint64]*SessionHandle

	mirror     *peek.Mirror
	peekServer *http.Server
}

// New creates a Server bound to compositor, running with the given
// initial configuration.
func New(compositor *compose.Compositor, cfg config.Config) *Server {
	cfg.Apply()
	return &Server{
		cfg:        cfg,
		compositor: compositor,
		sessions:   make(map[uint64]*SessionHandle),
	}
}

// ReloadConfig swaps in a new configuration, e.g. from an
// internal/config.Watcher callback. A change to CompositorCompute takes
// effect on the next frame of every session.
func (s *Server) ReloadConfig(cfg config.Config) {
	s.cfgMu.Lock()
	s.cfg = cfg
	s.cfgMu.Unlock()
	cfg.Apply()

	path := compose.PathRasterization
	if cfg.CompositorCompute {
		path = compose.PathCompute
	}
	s.compositor.SetPath(path)
	gpu.Named("server").Info("configuration reloaded", "viewport_scale", cfg.ViewportScalePercentage, "compute", cfg.CompositorCompute)
}

// AddSession registers a new client session with the server, returning
// its handle. nominalFrameIntervalNs seeds the session's frame scheduler.
func (s *Server) AddSession(id uint64, target present.Target, nominalFrameIntervalNs int64) *SessionHandle {
	h := newSessionHandle(id, target, nominalFrameIntervalNs)
	s.mu.Lock()
	s.sessions[id] = h
	s.mu.Unlock()
	gpu.Named("server").Info("session added", "session", id)
	return h
}

// Session returns the handle for id, if attached.
func (s *Server) Session(id uint64) (*SessionHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.sessions[id]
	return h, ok
}

// RemoveSession tears down and forgets a session, cancelling its
// outstanding wait_frame and destroying its presentation target (spec §5:
// "destroying a session cancels any outstanding wait_frame").
func (s *Server) RemoveSession(id uint64) {
	s.mu.Lock()
	h, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return
	}
	h.Scheduler.Cancel()
	h.gpuThread.CallVoid(h.Target.Destroy)
	h.gpuThread.Stop()
	h.Machine.Destroy()
	gpu.Named("server").Info("session removed", "session", id)
}

// EnablePeek starts the debug mirror window's WebSocket server on addr,
// compositing whichever eye(s) cfg.WindowPeek selects. A PeekNone
// configuration makes this a no-op.
func (s *Server) EnablePeek(addr string, width, height int) error {
	s.cfgMu.RLock()
	which := s.cfg.WindowPeek
	s.cfgMu.RUnlock()
	if which == config.PeekNone {
		return nil
	}

	s.mirror = peek.NewMirror(which, width, height)
	mux := http.NewServeMux()
	mux.Handle("/mirror", s.mirror)
	s.peekServer = &http.Server{Addr: addr, Handler: mux}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		if err := s.peekServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			gpu.Named("server").Error("peek server failed", "error", err)
		}
	}()
	return nil
}

// Run drives the frame loop of every session attached when it is called
// until ctx is cancelled, with the garbage-collection goroutine under the
// same errgroup (spec §5's concurrency model). The peek server, if
// EnablePeek started one, is not part of the errgroup; Run closes it
// after the errgroup returns.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	s.mu.Lock()
	ids := make([]uint64, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		id := id
		g.Go(func() error { return s.runSession(ctx, id) })
	}
	g.Go(func() error { return s.runGC(ctx) })

	err := g.Wait()
	if s.peekServer != nil {
		s.peekServer.Close()
	}
	return err
}

func (s *Server) runSession(ctx context.Context, id uint64) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		s.mu.Lock()
		h, ok := s.sessions[id]
		s.mu.Unlock()
		if !ok {
			return nil
		}

		if _, err := h.Scheduler.Predict(); err != nil {
			gpu.Named("server").Warn("predict_frame rejected", "session", id, "error", err)
			return nil
		}
		pred, err := h.Scheduler.Wait()
		if err != nil {
			gpu.Named("server").Warn("scheduler wait cancelled", "session", id, "error", err)
			return nil
		}
		h.Target.MarkWakeUp(pred.FrameID, pred.WakeUpTimeNs)
		h.Scheduler.Mark(pred.FrameID, scheduler.PointBegan, pred.WakeUpTimeNs)

		if !h.Machine.IsComposited() {
			h.Scheduler.NotifyPresent(pred.FrameID, pred.PredictedDisplayTimeNs, pred.PredictedDisplayTimeNs+pred.PredictedDisplayPeriodNs)
			continue
		}

		slot, ok := h.takeSlot()
		if !ok {
			h.Scheduler.NotifyPresent(pred.FrameID, pred.PredictedDisplayTimeNs, pred.PredictedDisplayTimeNs+pred.PredictedDisplayPeriodNs)
			continue
		}

		var eyes [2]compose.EyePose
		if composeErr, _ := h.gpuThread.Call(func() any { return s.compositor.RenderFrame(slot, eyes) }).(error); composeErr != nil {
			gpu.Named("server").Error("compose failed", "session", id, "error", composeErr)
			h.Scheduler.NotifyPresent(pred.FrameID, pred.PredictedDisplayTimeNs, pred.PredictedDisplayTimeNs+pred.PredictedDisplayPeriodNs)
			continue
		}
		h.Scheduler.Mark(pred.FrameID, scheduler.PointSubmitted, pred.PredictedDisplayTimeNs)

		nextVsyncNs := pred.PredictedDisplayTimeNs + pred.PredictedDisplayPeriodNs
		actualDisplayNs := pred.PredictedDisplayTimeNs
		h.gpuThread.CallVoid(func() {
			if !h.Target.CheckReady() {
				return
			}
			index, err := h.Target.Acquire()
			if err != nil {
				gpu.Named("server").Warn("acquire failed", "session", id, "error", err)
				return
			}
			if err := h.Target.Present(index); err != nil {
				gpu.Named("server").Warn("present failed", "session", id, "error", err)
				return
			}
			h.Target.UpdateTimings()
			actualDisplayNs = h.Target.CalcFrameTimings().PredictedDisplayNs
			present.FeedScheduler(h.Target, h.Scheduler, actualDisplayNs, nextVsyncNs)
		})
		h.Scheduler.Mark(pred.FrameID, scheduler.PointPresented, actualDisplayNs)
	}
}

// runGC is the server's single consumer of every session's destroyed
// swapchain garbage stack (spec §4.2: images are only released once the
// frame they were still in flight for has retired). Blocks until ctx is
// cancelled, then drains every session's stack once with no frame limit;
// swapchains destroyed while frames run stay queued until then.
func (s *Server) runGC(ctx context.Context) error {
	<-ctx.Done()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.sessions {
		h.Garbage.Drain(^uint64(0))
	}
	return nil
}
