// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package vulkan_test

import (
	"testing"
	"time"

	"github.com/xrruntime/compositor/gpu/vulkan"
)

func TestFencePoolWaitUnarmedIsNoop(t *testing.T) {
	pool := vulkan.NewFencePool(nil)
	if err := pool.Wait(7, time.Millisecond); err != nil {
		t.Fatalf("wait on unarmed image index should be a no-op, got %v", err)
	}
	if n := pool.Len(); n != 0 {
		t.Fatalf("expected no armed fences, got %d", n)
	}
}
