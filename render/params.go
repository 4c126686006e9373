// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package render draws the live artifact table. Each artifact kind maps to
// one lazily created pipeline (point, line or triangle topology) and a
// fixed color; the consumer either records draws into a caller-owned render
// pass or renders a full offscreen frame with CPU readback.
package render

import (
	"encoding/binary"
	"math"

	"github.com/gogpu/worldview/artifact"
)

// paramsSize is the byte size of the shader uniform: color vec4<f32>.
const paramsSize = 16

// kindColor returns the solid RGBA color drawn for the kind.
func kindColor(kind artifact.Kind) [4]float32 {
	switch kind {
	case artifact.PointCloud:
		return [4]float32{0.9, 0.9, 0.9, 1}
	case artifact.Wireframe:
		return [4]float32{0.3, 0.9, 0.4, 1}
	case artifact.Mesh:
		return [4]float32{0.6, 0.6, 0.7, 1}
	default:
		return [4]float32{1, 0, 1, 1}
	}
}

// packParams lays the uniform out as little-endian float32, matching the
// WGSL Params struct.
func packParams(color [4]float32) []byte {
	out := make([]byte, paramsSize)
	for i, f := range color {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}
