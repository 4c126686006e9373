package artifact

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/gogpu/worldview/gpu"
	"github.com/gogpu/worldview/ply"
)

// mockAdapter records allocations so tests can observe buffer identities.
type mockAdapter struct {
	nextID gpu.BufferID
	alive  map[gpu.BufferID]uint64
	writes map[gpu.BufferID][]byte
}

func newMockAdapter() *mockAdapter {
	return &mockAdapter{
		nextID: 1,
		alive:  make(map[gpu.BufferID]uint64),
		writes: make(map[gpu.BufferID][]byte),
	}
}

func (m *mockAdapter) CreateBuffer(label string, size uint64, usage gpu.BufferUsage) (gpu.BufferID, error) {
	id := m.nextID
	m.nextID++
	m.alive[id] = size
	return id, nil
}

func (m *mockAdapter) DestroyBuffer(id gpu.BufferID) {
	delete(m.alive, id)
	delete(m.writes, id)
}

func (m *mockAdapter) WriteBuffer(id gpu.BufferID, offset uint64, data []byte) error {
	if _, ok := m.alive[id]; !ok {
		return gpu.ErrUnknownBuffer
	}
	m.writes[id] = append([]byte(nil), data...)
	return nil
}

func (m *mockAdapter) Flush() error { return nil }

func header(vertices, facets int, comments ...string) *ply.Header {
	h := &ply.Header{Format: ply.ASCII, Comments: comments}
	h.Elements = append(h.Elements, ply.ElementDef{Name: "vertex", Count: vertices})
	if facets >= 0 {
		h.Elements = append(h.Elements, ply.ElementDef{Name: "face", Count: facets})
	}
	return h
}

func payload(vertices, facets int) *ply.Payload {
	p := &ply.Payload{}
	for i := 0; i < vertices; i++ {
		p.Vertices = append(p.Vertices, ply.Vertex{X: float32(i)})
	}
	for i := 0; i < facets; i++ {
		p.Facets = append(p.Facets, ply.Facet{Indices: []uint32{0, 1, 2}})
	}
	return p
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		h      *ply.Header
		want   Kind
		wantOK bool
	}{
		{"vertex only", header(10, -1), PointCloud, true},
		{"vertex and empty face group", header(10, 0), PointCloud, true},
		{"vertex and faces", header(10, 4), Mesh, true},
		{"topology lines tag", header(10, 4, "topology lines"), Wireframe, true},
		{"wireframe tag", header(10, 4, "wireframe"), Wireframe, true},
		{"unrelated comment", header(10, 4, "generated by stage 2"), Mesh, true},
		{"zero vertices", header(0, -1), 0, false},
		{"no vertex group", &ply.Header{Elements: []ply.ElementDef{{Name: "camera", Count: 1}}}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Classify(tt.h)
			if ok != tt.wantOK || (ok && got != tt.want) {
				t.Errorf("Classify = %v, %v; want %v, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestNewRejectsUnrenderable(t *testing.T) {
	m := newMockAdapter()
	_, err := New(m, "empty", PointCloud, header(0, -1))
	if !errors.Is(err, ErrUnrenderable) {
		t.Fatalf("New = %v, want ErrUnrenderable", err)
	}
	if len(m.alive) != 0 {
		t.Errorf("%d buffers allocated for rejected artifact", len(m.alive))
	}
}

func TestNewUsesGivenKind(t *testing.T) {
	m := newMockAdapter()
	v, err := New(m, "wireA", Wireframe, header(3, 1))
	if err != nil {
		t.Fatal(err)
	}
	if v.Kind() != Wireframe {
		t.Errorf("Kind = %v, want Wireframe", v.Kind())
	}
}

func TestPointCloudLifecycle(t *testing.T) {
	m := newMockAdapter()
	h := header(500, -1)
	v, err := New(m, "cloudA", PointCloud, h)
	if err != nil {
		t.Fatal(err)
	}
	if v.IndexBuffer() != gpu.InvalidID {
		t.Error("point cloud has an index buffer")
	}

	v.UpdateCounts(h)
	if err := v.Upload(payload(500, 0)); err != nil {
		t.Fatal(err)
	}
	if v.VertexCount() != 500 {
		t.Errorf("VertexCount = %d, want 500", v.VertexCount())
	}
	if v.DrawCount() != 500 {
		t.Errorf("DrawCount = %d, want 500", v.DrawCount())
	}
	if got := len(m.writes[v.VertexBuffer()]); got != 500*12 {
		t.Errorf("uploaded %d bytes, want %d", got, 500*12)
	}
}

func TestSameSizeUpdateKeepsHandles(t *testing.T) {
	m := newMockAdapter()
	h := header(500, -1)
	v, err := New(m, "cloudA", PointCloud, h)
	if err != nil {
		t.Fatal(err)
	}
	id := v.VertexBuffer()

	if v.NeedsResize(h) {
		t.Fatal("NeedsResize true for identical header")
	}
	v.UpdateCounts(h)
	if err := v.Upload(payload(500, 0)); err != nil {
		t.Fatal(err)
	}
	if v.VertexBuffer() != id {
		t.Errorf("vertex buffer handle changed on same-size update")
	}
}

func TestNeedsResizeOnGrowth(t *testing.T) {
	m := newMockAdapter()
	v, err := New(m, "cloudA", PointCloud, header(500, -1))
	if err != nil {
		t.Fatal(err)
	}

	// Within the 2x headroom: no resize.
	if v.NeedsResize(header(900, -1)) {
		t.Error("NeedsResize true inside headroom")
	}
	if !v.NeedsResize(header(50_000, -1)) {
		t.Error("NeedsResize false for 100x growth")
	}
}

func TestMeshUploadPacksTriangles(t *testing.T) {
	m := newMockAdapter()
	h := header(4, 2)
	v, err := New(m, "meshA", Mesh, h)
	if err != nil {
		t.Fatal(err)
	}

	p := &ply.Payload{
		Vertices: payload(4, 0).Vertices,
		Facets: []ply.Facet{
			{Indices: []uint32{0, 1, 2}},
			{Indices: []uint32{0, 2, 3}},
		},
	}
	v.UpdateCounts(h)
	if err := v.Upload(p); err != nil {
		t.Fatal(err)
	}
	if v.DrawCount() != 6 {
		t.Errorf("DrawCount = %d, want 6", v.DrawCount())
	}
	data := m.writes[v.IndexBuffer()]
	if len(data) != 24 {
		t.Fatalf("index upload = %d bytes, want 24", len(data))
	}
	want := []uint32{0, 1, 2, 0, 2, 3}
	for i, w := range want {
		if got := binary.LittleEndian.Uint32(data[i*4:]); got != w {
			t.Errorf("index %d = %d, want %d", i, got, w)
		}
	}
}

func TestWireframeUploadExpandsEdges(t *testing.T) {
	m := newMockAdapter()
	h := header(3, 1, "topology lines")
	v, err := New(m, "wireA", Wireframe, h)
	if err != nil {
		t.Fatal(err)
	}

	p := &ply.Payload{
		Vertices: payload(3, 0).Vertices,
		Facets:   []ply.Facet{{Indices: []uint32{0, 1, 2}}},
	}
	v.UpdateCounts(h)
	if err := v.Upload(p); err != nil {
		t.Fatal(err)
	}
	if v.DrawCount() != 6 {
		t.Errorf("DrawCount = %d, want 6", v.DrawCount())
	}
	data := m.writes[v.IndexBuffer()]
	want := []uint32{0, 1, 1, 2, 2, 0}
	if len(data) != len(want)*4 {
		t.Fatalf("index upload = %d bytes, want %d", len(data), len(want)*4)
	}
	for i, w := range want {
		if got := binary.LittleEndian.Uint32(data[i*4:]); got != w {
			t.Errorf("index %d = %d, want %d", i, got, w)
		}
	}
}

func TestUploadSkipsNonTriangularFacets(t *testing.T) {
	m := newMockAdapter()
	h := header(5, 2)
	v, err := New(m, "meshA", Mesh, h)
	if err != nil {
		t.Fatal(err)
	}
	p := &ply.Payload{
		Vertices: payload(5, 0).Vertices,
		Facets: []ply.Facet{
			{Indices: []uint32{0, 1, 2, 3}},
			{Indices: []uint32{0, 1, 2}},
		},
	}
	v.UpdateCounts(h)
	if err := v.Upload(p); err != nil {
		t.Fatal(err)
	}
	if v.DrawCount() != 3 {
		t.Errorf("DrawCount = %d, want 3 (quad skipped)", v.DrawCount())
	}
}

func TestReleaseFreesBothBuffers(t *testing.T) {
	m := newMockAdapter()
	v, err := New(m, "meshA", Mesh, header(4, 2))
	if err != nil {
		t.Fatal(err)
	}
	if len(m.alive) != 2 {
		t.Fatalf("%d buffers alive, want 2", len(m.alive))
	}
	v.Release()
	v.Release()
	if len(m.alive) != 0 {
		t.Errorf("%d buffers alive after Release", len(m.alive))
	}
	if v.DrawCount() != 0 {
		t.Errorf("DrawCount = %d after Release", v.DrawCount())
	}
}
