// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package compose

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gogpu/naga"
)

// shaderCache compiles WGSL sources to SPIR-V via naga.Compile once and
// keeps the result, keyed so the rasterization and compute pipelines
// don't recompile their (static) shader sources every frame.
type shaderCache struct {
	mu      sync.Mutex
	spirv   map[string][]uint32
}

func newShaderCache() *shaderCache {
	return &shaderCache{spirv: make(map[string][]uint32)}
}

// compile returns the SPIR-V words for wgslSource under key, compiling and
// caching it on first request.
func (c *shaderCache) compile(key, wgslSource string) ([]uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if words, ok := c.spirv[key]; ok {
		return words, nil
	}

	spirvBytes, err := naga.Compile(wgslSource)
	if err != nil {
		return nil, fmt.Errorf("compose: naga compile %q: %w", key, err)
	}
	if len(spirvBytes)%4 != 0 {
		return nil, fmt.Errorf("compose: naga compile %q: SPIR-V byte count %d not a multiple of 4", key, len(spirvBytes))
	}
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(spirvBytes[i*4:])
	}
	c.spirv[key] = words
	return words, nil
}

// rasterizationVertexWGSL draws a unit quad or cylinder-segment mesh
// textured by the layer's source image, transformed by its per-eye MVP.
const rasterizationVertexWGSL = `
struct Uniforms {
  mvp: mat4x4<f32>,
  flip_y: u32,
}
@group(0) @binding(0) var<uniform> u: Uniforms;

struct VertexOut {
  @builtin(position) position: vec4<f32>,
  @location(0) uv: vec2<f32>,
}

@vertex
fn vs_main(@location(0) pos: vec3<f32>, @location(1) uv: vec2<f32>) -> VertexOut {
  var out: VertexOut;
  out.position = u.mvp * vec4<f32>(pos, 1.0);
  var flipped_uv = uv;
  if (u.flip_y != 0u) {
    flipped_uv.y = 1.0 - flipped_uv.y;
  }
  out.uv = flipped_uv;
  return out;
}
`

// rasterizationFragmentWGSL samples the bound layer source through the
// shared clamp/repeat sampler.
const rasterizationFragmentWGSL = `
@group(0) @binding(1) var layer_sampler: sampler;
@group(0) @binding(2) var layer_texture: texture_2d<f32>;

@fragment
fn fs_main(@location(0) uv: vec2<f32>) -> @location(0) vec4<f32> {
  return textureSample(layer_texture, layer_sampler, uv);
}
`

// distortionFragmentWGSL is the final per-device UV-remap pass (spec §4.4
// distortion pass): three independent UV lookups, one per color channel,
// for chromatic-aberration correction.
const distortionFragmentWGSL = `
@group(0) @binding(0) var src_sampler: sampler;
@group(0) @binding(1) var src_texture: texture_2d<f32>;
@group(0) @binding(2) var uv_r: texture_2d<f32>;
@group(0) @binding(3) var uv_g: texture_2d<f32>;
@group(0) @binding(4) var uv_b: texture_2d<f32>;

@fragment
fn fs_distort(@location(0) uv: vec2<f32>) -> @location(0) vec4<f32> {
  let r = textureSample(src_texture, src_sampler, textureSample(uv_r, src_sampler, uv).xy).r;
  let g = textureSample(src_texture, src_sampler, textureSample(uv_g, src_sampler, uv).xy).g;
  let b = textureSample(src_texture, src_sampler, textureSample(uv_b, src_sampler, uv).xy).b;
  return vec4<f32>(r, g, b, 1.0);
}
`

// computeWGSL is the single compute-path dispatch (spec §4.4 "Compute
// path"): reads a source layer through a sampler, applies the time-warp
// MVP, and writes straight to the distorted output image.
const computeWGSL = `
struct Params {
  mvp: mat4x4<f32>,
  out_size: vec2<u32>,
}
@group(0) @binding(0) var<uniform> p: Params;
@group(0) @binding(1) var src_sampler: sampler;
@group(0) @binding(2) var src_texture: texture_2d<f32>;
@group(0) @binding(3) var out_texture: texture_storage_2d<rgba16float, write>;

@compute @workgroup_size(8, 8, 1)
fn cs_main(@builtin(global_invocation_id) gid: vec3<u32>) {
  if (gid.x >= p.out_size.x || gid.y >= p.out_size.y) {
    return;
  }
  let uv = (vec2<f32>(gid.xy) + vec2<f32>(0.5, 0.5)) / vec2<f32>(p.out_size);
  let warped = p.mvp * vec4<f32>(uv * 2.0 - 1.0, 0.0, 1.0);
  let sample = textureSampleLevel(src_texture, src_sampler, warped.xy * 0.5 + 0.5, 0.0);
  textureStore(out_texture, vec2<i32>(gid.xy), sample);
}
`
