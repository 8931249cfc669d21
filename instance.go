// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package compositor

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/xrruntime/compositor/compose"
	"github.com/xrruntime/compositor/gpu"
	"github.com/xrruntime/compositor/gpu/vulkan"
	"github.com/xrruntime/compositor/internal/config"
	"github.com/xrruntime/compositor/internal/xrerr"
	"github.com/xrruntime/compositor/server"
)

// Instance owns the shared GPU resource bundle and the server that
// drives every session created against it (spec §6 "Instance:
// create/destroy").
type Instance struct {
	bundle     *vulkan.Bundle
	compositor *compose.Compositor
	server     *server.Server
	watcher    *config.Watcher

	nextSessionID atomic.Uint64

	mu     sync.Mutex
	closed bool
}

// CreateInstance opens the native library at libraryPath, builds the
// shared GPU bundle, and creates a server bound to the initial
// configuration (its frame loop starts with Server().Run). configPath may be empty to skip the TOML file layer.
func CreateInstance(libraryPath, configPath string) (*Instance, error) {
	bundle, err := vulkan.Open(libraryPath)
	if err != nil {
		return nil, fmt.Errorf("compositor: open device: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		bundle.Close()
		return nil, fmt.Errorf("compositor: load config: %w", err)
	}

	path := compose.PathRasterization
	if cfg.CompositorCompute {
		path = compose.PathCompute
	}
	compositor, err := compose.New(bundle, path)
	if err != nil {
		bundle.Close()
		return nil, fmt.Errorf("compositor: create compositor: %w", err)
	}

	inst := &Instance{
		bundle:     bundle,
		compositor: compositor,
		server:     server.New(compositor, cfg),
	}

	if configPath != "" {
		watcher, err := config.WatchFile(configPath, inst.server.ReloadConfig)
		if err != nil {
			gpu.Named("instance").Warn("config watch failed, continuing without live reload", "path", configPath, "error", err)
		} else {
			inst.watcher = watcher
		}
	}

	gpu.Named("instance").Info("instance created", "library", libraryPath)
	return inst, nil
}

// Bundle returns the shared GPU resource bundle, for System/Session
// construction.
func (inst *Instance) Bundle() *vulkan.Bundle { return inst.bundle }

// Server returns the server driving this instance's sessions.
func (inst *Instance) Server() *server.Server { return inst.server }

// NextSessionID allocates a new monotonic session identifier.
func (inst *Instance) NextSessionID() uint64 { return inst.nextSessionID.Add(1) }

// Destroy waits for the device to go idle and releases every shared
// resource (spec §5 "Destruction of the compositor waits for every
// in-flight frame to complete (device idle) before freeing shared
// resources").
func (inst *Instance) Destroy() error {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if inst.closed {
		return xrerr.ErrCallOrderInvalid
	}
	inst.closed = true

	if inst.watcher != nil {
		inst.watcher.Close()
	}
	if err := inst.bundle.WaitIdle(); err != nil {
		gpu.Named("instance").Warn("device wait idle failed during destroy", "error", err)
	}
	inst.compositor.Destroy()
	if err := inst.bundle.Close(); err != nil {
		return fmt.Errorf("compositor: close device: %w", err)
	}
	gpu.Named("instance").Info("instance destroyed")
	return nil
}
