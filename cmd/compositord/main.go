// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Command compositord runs the compositor server: it opens the native
// GPU library, loads configuration (spec §6 env/TOML surface), attaches
// the optional peek debug window, and drives the main loop until
// interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	compositor "github.com/xrruntime/compositor"
	"github.com/xrruntime/compositor/gpu"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	libraryPath := flag.String("library", defaultLibraryPath(), "path to the native Vulkan-like loader")
	configPath := flag.String("config", "", "path to a TOML configuration file (optional)")
	peekAddr := flag.String("peek-addr", "127.0.0.1:8082", "address the debug peek WebSocket server listens on")
	logLevel := flag.String("log-level", "info", "base log level: debug, info, warn, error")
	flag.Parse()

	gpu.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(*logLevel)})))

	inst, err := compositor.CreateInstance(*libraryPath, *configPath)
	if err != nil {
		return fmt.Errorf("compositord: create instance: %w", err)
	}
	defer inst.Destroy()

	if err := inst.Server().EnablePeek(*peekAddr, 1024, 1024); err != nil {
		gpu.Named("compositord").Warn("peek window disabled", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gpu.Named("compositord").Info("compositor server starting")
	if err := inst.Server().Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("compositord: server run: %w", err)
	}
	gpu.Named("compositord").Info("compositor server stopped")
	return nil
}

func defaultLibraryPath() string {
	switch {
	case os.Getenv("VULKAN_SDK") != "":
		return "vulkan-1"
	default:
		return "libvulkan.so.1"
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
