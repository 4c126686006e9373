// Package artifact classifies decoded geometry files and owns the device
// buffers that back each renderable artifact.
package artifact

import (
	"errors"
	"strings"

	"github.com/gogpu/worldview"
	"github.com/gogpu/worldview/ply"
)

// Kind is the renderable topology of an artifact.
type Kind int

const (
	// PointCloud draws one point per vertex.
	PointCloud Kind = iota + 1

	// Wireframe draws facet edges as a line list.
	Wireframe

	// Mesh draws filled triangles.
	Mesh
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case PointCloud:
		return "point-cloud"
	case Wireframe:
		return "wireframe"
	case Mesh:
		return "mesh"
	default:
		return "unknown"
	}
}

// ErrUnrenderable is returned for files without renderable geometry, such
// as a missing or empty vertex group.
var ErrUnrenderable = errors.New("artifact: no renderable geometry")

// Classify derives the artifact kind from a parsed header. A vertex group
// alone is a point cloud; vertex plus facet groups make a mesh, unless the
// header carries a wireframe tag ("comment topology lines" or "comment
// wireframe"), which selects line rendering. A missing or empty vertex
// group is not renderable and reports false.
func Classify(h *ply.Header) (Kind, bool) {
	v := elementByRole(h, worldview.Vertex)
	if v == nil || v.Count == 0 {
		return 0, false
	}
	f := elementByRole(h, worldview.Facet)
	if f == nil || f.Count == 0 {
		return PointCloud, true
	}
	if wireframeTagged(h) {
		return Wireframe, true
	}
	return Mesh, true
}

// elementByRole finds the first header element whose name maps to the
// given schema element.
func elementByRole(h *ply.Header, want worldview.Element) *ply.ElementDef {
	for i := range h.Elements {
		if e, ok := worldview.ElementFromName(h.Elements[i].Name); ok && e == want {
			return &h.Elements[i]
		}
	}
	return nil
}

func wireframeTagged(h *ply.Header) bool {
	if h.HasComment("wireframe") {
		return true
	}
	for _, c := range h.Comments {
		fields := strings.Fields(c)
		for i := 0; i+1 < len(fields); i++ {
			if fields[i] == "topology" && fields[i+1] == "lines" {
				return true
			}
		}
	}
	return false
}
