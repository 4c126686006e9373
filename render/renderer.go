//go:build !nogpu

// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	_ "embed"
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/worldview/artifact"
	"github.com/gogpu/worldview/gpu"
	"github.com/gogpu/worldview/sequence"
)

//go:embed shaders/artifact.wgsl
var artifactShaderSource string

// sampleCount is the MSAA sample count for offscreen frames.
const sampleCount = 4

// vertexStride is 3 packed float32 coordinates, matching the artifact
// upload layout.
const vertexStride = 12

// kindPipeline holds the per-kind pipeline and its color uniform.
type kindPipeline struct {
	pipeline  hal.RenderPipeline
	uniform   hal.Buffer
	bindGroup hal.BindGroup
}

// Renderer draws the artifact table. Pipelines are created lazily, the
// first time a kind appears in the table.
//
// Renderer is not safe for concurrent use; the consumer goroutine owns it.
type Renderer struct {
	ctx   *gpu.Context
	table *sequence.Replace

	shader        hal.ShaderModule
	uniformLayout hal.BindGroupLayout
	pipeLayout    hal.PipelineLayout
	pipelines     map[artifact.Kind]*kindPipeline

	// Offscreen frame targets, recreated when dimensions change.
	msaaTex     hal.Texture
	msaaView    hal.TextureView
	resolveTex  hal.Texture
	resolveView hal.TextureView

	width, height uint32
}

// NewRenderer binds a renderer to a GPU context and an artifact table. No
// device resources are created until the first draw.
func NewRenderer(ctx *gpu.Context, table *sequence.Replace) *Renderer {
	return &Renderer{
		ctx:       ctx,
		table:     table,
		pipelines: make(map[artifact.Kind]*kindPipeline),
	}
}

// RecordDraws records one draw per live artifact into rp. The table lock is
// held while recording, so a concurrent Add cannot tear the frame.
func (r *Renderer) RecordDraws(rp hal.RenderPassEncoder) error {
	adapter := r.ctx.Adapter()

	var firstErr error
	r.table.Range(func(name string, v artifact.Variant) bool {
		count := v.DrawCount()
		if count == 0 {
			return true
		}
		kp, err := r.ensurePipeline(v.Kind())
		if err != nil {
			firstErr = fmt.Errorf("render %q: %w", name, err)
			return false
		}
		vbuf, ok := adapter.HALBuffer(v.VertexBuffer())
		if !ok {
			return true
		}

		rp.SetPipeline(kp.pipeline)
		rp.SetBindGroup(0, kp.bindGroup, nil)
		rp.SetVertexBuffer(0, vbuf, 0)
		if id := v.IndexBuffer(); id != gpu.InvalidID {
			ibuf, ok := adapter.HALBuffer(id)
			if !ok {
				return true
			}
			rp.SetIndexBuffer(ibuf, gputypes.IndexFormatUint32, 0)
			rp.DrawIndexed(count, 1, 0, 0, 0)
		} else {
			rp.Draw(count, 1, 0, 0)
		}
		return true
	})
	return firstErr
}

// Frame renders the table into an offscreen w by h target and returns the
// BGRA8 pixels.
func (r *Renderer) Frame(w, h uint32) ([]byte, error) {
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("render: zero frame dimensions")
	}
	if err := r.ensureTextures(w, h); err != nil {
		return nil, err
	}
	device := r.ctx.Device()

	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "artifact_frame_encoder",
	})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("artifact_frame"); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "artifact_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{
			{
				View:          r.msaaView,
				ResolveTarget: r.resolveView,
				LoadOp:        gputypes.LoadOpClear,
				StoreOp:       gputypes.StoreOpStore,
				ClearValue:    gputypes.Color{R: 0.05, G: 0.05, B: 0.08, A: 1},
			},
		},
	})
	drawErr := r.RecordDraws(rp)
	rp.End()
	if drawErr != nil {
		encoder.DiscardEncoding()
		return nil, drawErr
	}

	// After MSAA resolve the texture sits in attachment layout; the copy
	// below needs transfer-src.
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: r.resolveTex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})

	pixelBufSize := uint64(w) * uint64(h) * 4
	staging, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "artifact_frame_staging",
		Size:  pixelBufSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		encoder.DiscardEncoding()
		return nil, fmt.Errorf("create staging buffer: %w", err)
	}
	defer device.DestroyBuffer(staging)

	encoder.CopyTextureToBuffer(r.resolveTex, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: w * 4, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: r.resolveTex, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	defer device.FreeCommandBuffer(cmdBuf)

	fence, err := device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("create fence: %w", err)
	}
	defer device.DestroyFence(fence)

	if err := r.ctx.Queue().Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	fenceOK, err := device.Wait(fence, 1, 5*time.Second)
	if err != nil || !fenceOK {
		return nil, fmt.Errorf("wait for GPU: ok=%v err=%w", fenceOK, err)
	}

	pixels := make([]byte, pixelBufSize)
	if err := r.ctx.Queue().ReadBuffer(staging, 0, pixels); err != nil {
		return nil, fmt.Errorf("readback: %w", err)
	}
	return pixels, nil
}

// ensurePipeline creates the pipeline and color uniform for the kind.
func (r *Renderer) ensurePipeline(kind artifact.Kind) (*kindPipeline, error) {
	if kp, ok := r.pipelines[kind]; ok {
		return kp, nil
	}
	if err := r.ensureShared(); err != nil {
		return nil, err
	}
	device := r.ctx.Device()

	premulBlend := gputypes.BlendStatePremultiplied()
	pipeline, err := device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "artifact_" + kind.String(),
		Layout: r.pipeLayout,
		Vertex: hal.VertexState{
			Module:     r.shader,
			EntryPoint: "vs_main",
			Buffers:    vertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     r.shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    gputypes.TextureFormatBGRA8Unorm,
					Blend:     &premulBlend,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: topologyFor(kind),
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: sampleCount,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create %s pipeline: %w", kind, err)
	}

	uniform, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "artifact_" + kind.String() + "_params",
		Size:  paramsSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		device.DestroyRenderPipeline(pipeline)
		return nil, fmt.Errorf("create %s uniform: %w", kind, err)
	}
	r.ctx.Queue().WriteBuffer(uniform, 0, packParams(kindColor(kind)))

	bindGroup, err := device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "artifact_" + kind.String() + "_bind",
		Layout: r.uniformLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{
				Buffer: uniform.NativeHandle(), Offset: 0, Size: paramsSize,
			}},
		},
	})
	if err != nil {
		device.DestroyBuffer(uniform)
		device.DestroyRenderPipeline(pipeline)
		return nil, fmt.Errorf("create %s bind group: %w", kind, err)
	}

	kp := &kindPipeline{pipeline: pipeline, uniform: uniform, bindGroup: bindGroup}
	r.pipelines[kind] = kp
	return kp, nil
}

// ensureShared compiles the shader and creates the layouts shared by all
// kind pipelines.
func (r *Renderer) ensureShared() error {
	if r.shader != nil {
		return nil
	}
	device := r.ctx.Device()

	spirv, err := compileShader(artifactShaderSource)
	if err != nil {
		return err
	}
	shader, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "artifact_shader",
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return fmt.Errorf("create shader module: %w", err)
	}
	r.shader = shader

	uniformLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "artifact_uniform_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create uniform layout: %w", err)
	}
	r.uniformLayout = uniformLayout

	pipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "artifact_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{r.uniformLayout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}
	r.pipeLayout = pipeLayout
	return nil
}

// compileShader compiles WGSL to SPIR-V words via naga.
func compileShader(src string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("compile shader: %w", err)
	}
	code := make([]uint32, len(spirvBytes)/4)
	for i := range code {
		code[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return code, nil
}

func topologyFor(kind artifact.Kind) gputypes.PrimitiveTopology {
	switch kind {
	case artifact.PointCloud:
		return gputypes.PrimitiveTopologyPointList
	case artifact.Wireframe:
		return gputypes.PrimitiveTopologyLineList
	default:
		return gputypes.PrimitiveTopologyTriangleList
	}
}

func vertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: vertexStride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
			},
		},
	}
}

// ensureTextures creates or recreates the MSAA and resolve targets when the
// requested dimensions change.
func (r *Renderer) ensureTextures(w, h uint32) error {
	if r.width == w && r.height == h && r.msaaTex != nil {
		return nil
	}
	r.destroyTextures()
	device := r.ctx.Device()

	size := hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1}

	msaaTex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         "artifact_msaa",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   sampleCount,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatBGRA8Unorm,
		Usage:         gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("create MSAA texture: %w", err)
	}
	r.msaaTex = msaaTex

	msaaView, err := device.CreateTextureView(msaaTex, &hal.TextureViewDescriptor{
		Label:         "artifact_msaa_view",
		Format:        gputypes.TextureFormatBGRA8Unorm,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		r.destroyTextures()
		return fmt.Errorf("create MSAA view: %w", err)
	}
	r.msaaView = msaaView

	resolveTex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         "artifact_resolve",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatBGRA8Unorm,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		r.destroyTextures()
		return fmt.Errorf("create resolve texture: %w", err)
	}
	r.resolveTex = resolveTex

	resolveView, err := device.CreateTextureView(resolveTex, &hal.TextureViewDescriptor{
		Label:         "artifact_resolve_view",
		Format:        gputypes.TextureFormatBGRA8Unorm,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		r.destroyTextures()
		return fmt.Errorf("create resolve view: %w", err)
	}
	r.resolveView = resolveView

	r.width = w
	r.height = h
	return nil
}

func (r *Renderer) destroyTextures() {
	device := r.ctx.Device()
	if r.resolveView != nil {
		device.DestroyTextureView(r.resolveView)
		r.resolveView = nil
	}
	if r.resolveTex != nil {
		device.DestroyTexture(r.resolveTex)
		r.resolveTex = nil
	}
	if r.msaaView != nil {
		device.DestroyTextureView(r.msaaView)
		r.msaaView = nil
	}
	if r.msaaTex != nil {
		device.DestroyTexture(r.msaaTex)
		r.msaaTex = nil
	}
	r.width = 0
	r.height = 0
}

// Destroy releases all device resources. Safe to call more than once.
func (r *Renderer) Destroy() {
	device := r.ctx.Device()
	for kind, kp := range r.pipelines {
		device.DestroyBindGroup(kp.bindGroup)
		device.DestroyBuffer(kp.uniform)
		device.DestroyRenderPipeline(kp.pipeline)
		delete(r.pipelines, kind)
	}
	if r.pipeLayout != nil {
		device.DestroyPipelineLayout(r.pipeLayout)
		r.pipeLayout = nil
	}
	if r.uniformLayout != nil {
		device.DestroyBindGroupLayout(r.uniformLayout)
		r.uniformLayout = nil
	}
	if r.shader != nil {
		device.DestroyShaderModule(r.shader)
		r.shader = nil
	}
	r.destroyTextures()
}
