// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package peek implements the debug mirror window (spec §6 WindowPeek):
// an optional, zero-copy-adjacent readback of one or both eyes' composited
// output, drawn into a 2D HUD overlay and optionally streamed to a browser
// over a WebSocket.
//
// Grounded on github.com/gogpu/gg's immediate-mode Context for the overlay
// drawing and on cogentcore-core's base/websocket example server for the
// upgrade-and-broadcast pattern.
package peek

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"sync"

	"github.com/gogpu/gg"
	"github.com/gorilla/websocket"
	"golang.org/x/image/draw"

	"github.com/xrruntime/compositor/gpu"
	"github.com/xrruntime/compositor/internal/config"
)

// Mirror composites a per-eye readback into a single debug frame per the
// config.Peek selection (PeekNone/PeekBoth/PeekLeft/PeekRight) and hands
// it to any attached WebSocket viewers.
type Mirror struct {
	mu       sync.Mutex
	which    config.Peek
	width    int
	height   int
	dc       *gg.Context
	upgrader websocket.Upgrader

	viewersMu sync.Mutex
	viewers   map[*websocket.Conn]struct{}
}

// NewMirror creates a mirror that composites into a width x height canvas
// (2*width x height for PeekBoth, the eyes side by side). which selects
// whether the left eye, right eye, or both are drawn.
func NewMirror(which config.Peek, width, height int) *Mirror {
	canvasW := width
	if which == config.PeekBoth {
		canvasW = width * 2
	}
	return &Mirror{
		which:  which,
		width:  width,
		height: height,
		dc:     gg.NewContext(canvasW, height),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		viewers: make(map[*websocket.Conn]struct{}),
	}
}

// Compose draws left and/or right eye readback images (already in
// image.RGBA form, supplied by the caller from a post-present host-visible
// staging copy) into the mirror canvas, scaling each to fit via
// golang.org/x/image/draw when its source size differs from the target.
func (m *Mirror) Compose(left, right image.Image) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dc.Clear()
	switch m.which {
	case config.PeekLeft:
		m.drawScaled(left, 0)
	case config.PeekRight:
		m.drawScaled(right, 0)
	case config.PeekBoth:
		m.drawScaled(left, 0)
		m.drawScaled(right, m.width)
	case config.PeekNone:
		return
	}

	m.drawHUD()
}

func (m *Mirror) drawScaled(src image.Image, xOffset int) {
	if src == nil {
		return
	}
	dst := image.NewRGBA(image.Rect(0, 0, m.width, m.height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	m.dc.DrawImage(gg.ImageBufFromImage(dst), float64(xOffset), 0)
}

func (m *Mirror) drawHUD() {
	m.dc.SetRGBA(0, 0, 0, 0.55)
	m.dc.DrawRectangle(4, 4, 150, 18)
	m.dc.Fill()
	m.dc.SetRGB(1, 1, 1)
	m.dc.DrawString(fmt.Sprintf("peek: %s", m.which), 8, 17)
}

// Frame returns the composed mirror image, suitable for a caller to PNG
// encode or hand straight to broadcast.
func (m *Mirror) Frame() image.Image {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dc.Image()
}

// Broadcast PNG-encodes the current frame and pushes it to every attached
// WebSocket viewer, dropping any connection whose write fails.
func (m *Mirror) Broadcast() error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, m.Frame()); err != nil {
		return fmt.Errorf("peek: encode frame: %w", err)
	}

	m.viewersMu.Lock()
	defer m.viewersMu.Unlock()
	for conn := range m.viewers {
		if err := conn.WriteMessage(websocket.BinaryMessage, buf.Bytes()); err != nil {
			gpu.Named("peek").Warn("dropping viewer", "error", err)
			conn.Close()
			delete(m.viewers, conn)
		}
	}
	return nil
}

// ServeHTTP upgrades a request to a WebSocket and registers the connection
// as a mirror viewer until it disconnects.
func (m *Mirror) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		gpu.Named("peek").Warn("upgrade failed", "error", err)
		return
	}
	m.viewersMu.Lock()
	m.viewers[conn] = struct{}{}
	m.viewersMu.Unlock()

	go func() {
		defer func() {
			m.viewersMu.Lock()
			delete(m.viewers, conn)
			m.viewersMu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// ViewerCount reports the number of currently attached WebSocket viewers.
func (m *Mirror) ViewerCount() int {
	m.viewersMu.Lock()
	defer m.viewersMu.Unlock()
	return len(m.viewers)
}
