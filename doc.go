// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package compositor is the public API surface of an OpenXR-style
// runtime compositor: Instance create/destroy, System selection and
// property queries, Session lifecycle, Swapchain creation, and the
// predict/wait/begin/layer/commit frame loop (spec §6 "Public API").
//
// Everything this package exposes is a thin, validated wrapper around
// gpu/vulkan (shared device resources), session (the per-client state
// machine), layer (slot collection/validation), swapchainmgr (image
// lifecycle), scheduler (frame pacing), compose (composition) and
// present (presentation targets); server ties them into the concurrent
// main loop. This package owns none of the algorithms, only the
// sequencing and validation the client-facing API contract requires.
package compositor
