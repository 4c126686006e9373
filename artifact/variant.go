package artifact

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/worldview"
	"github.com/gogpu/worldview/gpu"
	"github.com/gogpu/worldview/ply"
)

// Byte strides of the packed buffer layouts.
const (
	// vertexStride is 3 packed float32 coordinates.
	vertexStride = 12

	// meshIndexStride is 3 uint32 indices per triangular facet.
	meshIndexStride = 12

	// wireframeIndexStride is 6 uint32 indices per triangular facet, one
	// line per edge.
	wireframeIndexStride = 24
)

// Variant is one live artifact: classified geometry backed by device
// buffers. The sequencer mutates it under the table lock; the renderer
// reads buffer handles and counts under the same lock.
type Variant interface {
	// Kind returns the renderable topology.
	Kind() Kind

	// VertexCount returns the number of vertices in the last upload.
	VertexCount() int

	// DrawCount returns the draw call argument: vertex count for point
	// clouds, index count otherwise.
	DrawCount() uint32

	// NeedsResize reports whether the geometry declared by h outgrows the
	// allocated buffers.
	NeedsResize(h *ply.Header) bool

	// UpdateCounts adopts the vertex count declared by h.
	UpdateCounts(h *ply.Header)

	// Upload packs the payload and writes it to the device buffers.
	Upload(p *ply.Payload) error

	// VertexBuffer returns the vertex buffer handle.
	VertexBuffer() gpu.BufferID

	// IndexBuffer returns the index buffer handle, or InvalidID for point
	// clouds.
	IndexBuffer() gpu.BufferID

	// Release frees the device buffers. Idempotent.
	Release()
}

// geometry is the single Variant implementation; the three kinds differ
// only in index packing and stride.
type geometry struct {
	kind Kind
	name string

	verts   *gpu.Buffer
	indices *gpu.Buffer

	vertexCount int
	indexCount  uint32
}

// New allocates buffers, with headroom, sized for the counts h declares.
// kind comes from Classify, so the caller's replace decision and the
// allocation always agree. It returns ErrUnrenderable when h has no
// non-empty vertex group.
func New(adapter gpu.Adapter, name string, kind Kind, h *ply.Header) (Variant, error) {
	if v := elementByRole(h, worldview.Vertex); v == nil || v.Count == 0 {
		return nil, ErrUnrenderable
	}

	g := &geometry{kind: kind, name: name}
	verts, err := gpu.NewBuffer(adapter, name+".vertices",
		vertexBytes(h), gpu.BufferUsageVertex|gpu.BufferUsageCopyDst)
	if err != nil {
		return nil, err
	}
	g.verts = verts

	if kind != PointCloud {
		indices, err := gpu.NewBuffer(adapter, name+".indices",
			indexBytes(kind, h), gpu.BufferUsageIndex|gpu.BufferUsageCopyDst)
		if err != nil {
			verts.Release()
			return nil, err
		}
		g.indices = indices
	}
	return g, nil
}

func vertexBytes(h *ply.Header) uint64 {
	if v := elementByRole(h, worldview.Vertex); v != nil {
		return uint64(v.Count) * vertexStride
	}
	return 0
}

func indexBytes(kind Kind, h *ply.Header) uint64 {
	f := elementByRole(h, worldview.Facet)
	if f == nil {
		return 0
	}
	switch kind {
	case Wireframe:
		return uint64(f.Count) * wireframeIndexStride
	case Mesh:
		return uint64(f.Count) * meshIndexStride
	default:
		return 0
	}
}

func (g *geometry) Kind() Kind       { return g.kind }
func (g *geometry) VertexCount() int { return g.vertexCount }

func (g *geometry) DrawCount() uint32 {
	if g.kind == PointCloud {
		return uint32(g.vertexCount)
	}
	return g.indexCount
}

func (g *geometry) NeedsResize(h *ply.Header) bool {
	if !g.verts.Fits(vertexBytes(h)) {
		return true
	}
	if g.indices != nil && !g.indices.Fits(indexBytes(g.kind, h)) {
		return true
	}
	return false
}

func (g *geometry) UpdateCounts(h *ply.Header) {
	if v := elementByRole(h, worldview.Vertex); v != nil {
		g.vertexCount = v.Count
	}
}

func (g *geometry) Upload(p *ply.Payload) error {
	vdata := packVertices(p.Vertices)
	if _, err := g.verts.EnsureCapacity(uint64(len(vdata))); err != nil {
		return err
	}
	if err := g.verts.Upload(vdata); err != nil {
		return fmt.Errorf("artifact %q: %w", g.name, err)
	}
	g.vertexCount = len(p.Vertices)

	if g.indices == nil {
		return nil
	}

	var idata []byte
	var skipped int
	switch g.kind {
	case Wireframe:
		idata, skipped = packWireframeIndices(p.Facets)
	default:
		idata, skipped = packMeshIndices(p.Facets)
	}
	if skipped > 0 {
		worldview.Logger().Warn("artifact: skipped non-triangular facets",
			"artifact", g.name, "count", skipped)
	}
	if _, err := g.indices.EnsureCapacity(uint64(len(idata))); err != nil {
		return err
	}
	if err := g.indices.Upload(idata); err != nil {
		return fmt.Errorf("artifact %q: %w", g.name, err)
	}
	g.indexCount = uint32(len(idata) / 4)
	return nil
}

func (g *geometry) VertexBuffer() gpu.BufferID {
	return g.verts.ID()
}

func (g *geometry) IndexBuffer() gpu.BufferID {
	if g.indices == nil {
		return gpu.InvalidID
	}
	return g.indices.ID()
}

func (g *geometry) Release() {
	g.verts.Release()
	if g.indices != nil {
		g.indices.Release()
	}
	g.vertexCount = 0
	g.indexCount = 0
}

// packVertices lays vertices out as tightly packed little-endian float32
// triples, matching the render pipeline's vertex layout.
func packVertices(verts []ply.Vertex) []byte {
	out := make([]byte, 0, len(verts)*vertexStride)
	var b [4]byte
	for _, v := range verts {
		for _, f := range [3]float32{v.X, v.Y, v.Z} {
			binary.LittleEndian.PutUint32(b[:], math.Float32bits(f))
			out = append(out, b[:]...)
		}
	}
	return out
}

// packMeshIndices emits 3 uint32 indices per triangular facet. Facets of
// any other arity are skipped and counted.
func packMeshIndices(facets []ply.Facet) ([]byte, int) {
	out := make([]byte, 0, len(facets)*meshIndexStride)
	skipped := 0
	var b [4]byte
	for _, f := range facets {
		if len(f.Indices) != 3 {
			skipped++
			continue
		}
		for _, i := range f.Indices {
			binary.LittleEndian.PutUint32(b[:], i)
			out = append(out, b[:]...)
		}
	}
	return out, skipped
}

// packWireframeIndices expands each triangular facet into its 3 edges as
// line-list index pairs.
func packWireframeIndices(facets []ply.Facet) ([]byte, int) {
	out := make([]byte, 0, len(facets)*wireframeIndexStride)
	skipped := 0
	var b [4]byte
	emit := func(i uint32) {
		binary.LittleEndian.PutUint32(b[:], i)
		out = append(out, b[:]...)
	}
	for _, f := range facets {
		if len(f.Indices) != 3 {
			skipped++
			continue
		}
		a, c, d := f.Indices[0], f.Indices[1], f.Indices[2]
		emit(a)
		emit(c)
		emit(c)
		emit(d)
		emit(d)
		emit(a)
	}
	return out, skipped
}
