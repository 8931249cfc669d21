// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xrruntime/compositor/internal/config"
)

func TestDefaultValues(t *testing.T) {
	cfg := config.Default()
	if cfg.ViewportScalePercentage != 100 {
		t.Fatalf("ViewportScalePercentage = %d, want 100", cfg.ViewportScalePercentage)
	}
	if cfg.WindowPeek != config.PeekNone {
		t.Fatalf("WindowPeek = %q, want empty", cfg.WindowPeek)
	}
	if !cfg.ExitOnDisconnect {
		t.Fatal("ExitOnDisconnect should default true")
	}
}

func TestLoadClampsViewportScalePercentage(t *testing.T) {
	t.Setenv("VIEWPORT_SCALE_PERCENTAGE", "500")
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ViewportScalePercentage != 200 {
		t.Fatalf("ViewportScalePercentage = %d, want clamped to 200", cfg.ViewportScalePercentage)
	}

	t.Setenv("VIEWPORT_SCALE_PERCENTAGE", "0")
	cfg, err = config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ViewportScalePercentage != 1 {
		t.Fatalf("ViewportScalePercentage = %d, want clamped to 1", cfg.ViewportScalePercentage)
	}
}

func TestEnvOverridesTOMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "compositord.toml")
	if err := os.WriteFile(path, []byte("ViewportScalePercentage = 150\nWindowPeek = \"both\"\n"), 0o644); err != nil {
		t.Fatalf("write toml: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ViewportScalePercentage != 150 {
		t.Fatalf("ViewportScalePercentage = %d, want 150 from file", cfg.ViewportScalePercentage)
	}
	if cfg.WindowPeek != config.PeekBoth {
		t.Fatalf("WindowPeek = %q, want both", cfg.WindowPeek)
	}

	t.Setenv("VIEWPORT_SCALE_PERCENTAGE", "42")
	cfg, err = config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ViewportScalePercentage != 42 {
		t.Fatalf("ViewportScalePercentage = %d, want env override 42", cfg.ViewportScalePercentage)
	}
}

func TestWatchFileReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "compositord.toml")
	if err := os.WriteFile(path, []byte("ViewportScalePercentage = 100\n"), 0o644); err != nil {
		t.Fatalf("write toml: %v", err)
	}

	reloaded := make(chan config.Config, 1)
	w, err := config.WatchFile(path, func(c config.Config) {
		select {
		case reloaded <- c:
		default:
		}
	})
	if err != nil {
		t.Fatalf("WatchFile: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte("ViewportScalePercentage = 77\n"), 0o644); err != nil {
		t.Fatalf("rewrite toml: %v", err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.ViewportScalePercentage != 77 {
			t.Fatalf("reloaded ViewportScalePercentage = %d, want 77", cfg.ViewportScalePercentage)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload callback")
	}
}
