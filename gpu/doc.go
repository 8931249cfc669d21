// Package gpu holds the ambient concerns shared by every GPU-facing
// package in the compositor: the device/runtime-failure error sentinels
// (spec §7 "runtime/GPU failure") and the no-op-by-default slog facade
// that gpu/vulkan, compose and present all log through.
//
// This package deliberately does not define a multi-backend Device/Queue
// abstraction the way a generic WebGPU HAL would — the compositor only
// ever drives one native backend (gpu/vulkan.Bundle) per instance, so
// that layer of indirection is folded directly into gpu/vulkan instead.
package gpu
