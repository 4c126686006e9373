package worldview

// Element enumerates the schema element groups the viewer understands.
// Geometry files declare arbitrarily named record groups; only vertex and
// facet groups carry renderable data, everything else is diagnostic output
// from the upstream pipeline and is ignored.
type Element int

const (
	// Vertex is a position record group (3 packed floats).
	Vertex Element = iota + 1

	// Facet is a polygon index record group.
	Facet
)

// elementAliases maps on-disk group names to elements. Upstream producers
// are not consistent about naming, so common aliases are tolerated.
var elementAliases = map[string]Element{
	"vertex":   Vertex,
	"vertices": Vertex,
	"face":     Facet,
	"faces":    Facet,
	"facet":    Facet,
	"facets":   Facet,
}

// ElementFromName maps an on-disk group name to its Element.
// Unrecognized names report false and are skipped by callers.
func ElementFromName(name string) (Element, bool) {
	e, ok := elementAliases[name]
	return e, ok
}

// String returns the canonical on-disk name of the element.
func (e Element) String() string {
	switch e {
	case Vertex:
		return "vertex"
	case Facet:
		return "face"
	default:
		return "unknown"
	}
}
