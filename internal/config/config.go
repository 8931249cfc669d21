// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package config implements the environment/config surface of spec §6:
// environment variables as the primary, authoritative source, an
// optional TOML file supplying defaults the environment overrides, and
// a file watcher so operators can retune non-session-affecting values
// without restarting the compositor.
//
// Grounded on cogentcore-core's `base/iox/tomlx` (TOML load) and its
// `fsnotify`-based build watcher for the hot-reload half; the
// environment-variable precedence rule follows the same "explicit
// overrides file default" convention every one of this pack's
// TOML-plus-env config loaders uses.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"

	"github.com/xrruntime/compositor/gpu"
)

// Peek selects which eye(s) the debug mirror window shows.
type Peek string

const (
	PeekNone  Peek = ""
	PeekBoth  Peek = "both"
	PeekLeft  Peek = "left"
	PeekRight Peek = "right"
)

// Config is the resolved environment/config surface (spec §6).
// ViewportScalePercentage, the log levels and CompositorCompute may be
// retuned by a live file reload (server.Server.ReloadConfig switches the
// shared compositor's path for every session); WindowPeek is read once,
// by server.Server.EnablePeek.
type Config struct {
	// ViewportScalePercentage multiplies recommended per-view pixel
	// dimensions, clamped to [1, 200].
	ViewportScalePercentage int

	// WindowPeek enables a desktop mirror view of one or both eyes.
	WindowPeek Peek

	// CompositorCompute selects the compute composition path over the
	// rasterization path (spec §4.4).
	CompositorCompute bool

	// ExitOnDisconnect terminates the server when the last client
	// disconnects.
	ExitOnDisconnect bool

	// LogLevels maps subsystem name ("scheduler", "swapchain", ...) to
	// its minimum slog.Level, applied via gpu.SetSubsystemLevel.
	LogLevels map[string]slog.Level
}

// fileDefaults is the shape of the optional TOML defaults file. Fields
// carry no tags; lowercase TOML keys still match them because
// pelletier/go-toml/v2 matches struct field names case-insensitively.
type fileDefaults struct {
	ViewportScalePercentage int
	WindowPeek              string
	CompositorCompute       bool
	ExitOnDisconnect        bool
	LogLevels               map[string]string
}

// Default returns the configuration that results from no environment
// variables and no TOML file being present.
func Default() Config {
	return Config{
		ViewportScalePercentage: 100,
		WindowPeek:              PeekNone,
		CompositorCompute:       false,
		ExitOnDisconnect:        true,
		LogLevels:               map[string]slog.Level{},
	}
}

// Load resolves Config from, in increasing precedence: built-in
// defaults, the optional TOML file at tomlPath (ignored if tomlPath is
// empty or unreadable), then environment variables.
func Load(tomlPath string) (Config, error) {
	cfg := Default()

	if tomlPath != "" {
		if data, err := os.ReadFile(tomlPath); err == nil {
			var fd fileDefaults
			if err := toml.Unmarshal(data, &fd); err != nil {
				return cfg, fmt.Errorf("config: parse %s: %w", tomlPath, err)
			}
			applyFileDefaults(&cfg, fd)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyFileDefaults(cfg *Config, fd fileDefaults) {
	if fd.ViewportScalePercentage != 0 {
		cfg.ViewportScalePercentage = fd.ViewportScalePercentage
	}
	if fd.WindowPeek != "" {
		cfg.WindowPeek = Peek(fd.WindowPeek)
	}
	cfg.CompositorCompute = fd.CompositorCompute
	cfg.ExitOnDisconnect = fd.ExitOnDisconnect
	for subsystem, name := range fd.LogLevels {
		if lvl, ok := parseLevel(name); ok {
			cfg.LogLevels[subsystem] = lvl
		}
	}
}

func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("VIEWPORT_SCALE_PERCENTAGE"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ViewportScalePercentage = n
		}
	}
	cfg.ViewportScalePercentage = clamp(cfg.ViewportScalePercentage, 1, 200)

	if v, ok := os.LookupEnv("WINDOW_PEEK"); ok {
		cfg.WindowPeek = Peek(v)
	}
	if v, ok := os.LookupEnv("COMPOSITOR_COMPUTE"); ok {
		cfg.CompositorCompute = parseBool(v)
	}
	if v, ok := os.LookupEnv("EXIT_ON_DISCONNECT"); ok {
		cfg.ExitOnDisconnect = parseBool(v)
	}

	const prefix = "COMPOSITOR_LOG_"
	for _, kv := range os.Environ() {
		name, val, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, prefix) {
			continue
		}
		subsystem := strings.ToLower(strings.TrimPrefix(name, prefix))
		if lvl, ok := parseLevel(val); ok {
			cfg.LogLevels[subsystem] = lvl
		}
	}
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

func parseLevel(name string) (slog.Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return slog.LevelDebug, true
	case "INFO":
		return slog.LevelInfo, true
	case "WARN", "WARNING":
		return slog.LevelWarn, true
	case "ERROR":
		return slog.LevelError, true
	default:
		return 0, false
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Apply pushes LogLevels into the gpu package's per-subsystem facade.
func (c Config) Apply() {
	for subsystem, lvl := range c.LogLevels {
		gpu.SetSubsystemLevel(subsystem, lvl)
	}
}

// Watcher hot-reloads a TOML file and invokes onReload with the newly
// resolved Config on every write. With server.Server.ReloadConfig as
// onReload, viewport scale, log levels and CompositorCompute take effect
// for running sessions; WindowPeek does not, since the peek server is
// configured once by server.Server.EnablePeek.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	path     string
	onReload func(Config)
	done     chan struct{}
}

// WatchFile starts watching path for writes, calling onReload with the
// freshly reloaded Config after each one. Returns a Watcher whose Close
// stops the watch goroutine.
func WatchFile(path string, onReload func(Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create watcher: %w", err)
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}

	w := &Watcher{watcher: fw, path: path, onReload: onReload, done: make(chan struct{})}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	log := gpu.Named("config")
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				log.Warn("config reload failed", "error", err)
				continue
			}
			cfg.Apply()
			w.onReload(cfg)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn("config watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

// Close stops the watch goroutine and releases the underlying fsnotify
// watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.done:
		return nil
	default:
		close(w.done)
	}
	return w.watcher.Close()
}
