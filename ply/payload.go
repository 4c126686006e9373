package ply

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/gogpu/worldview"
)

// Vertex is one decoded position record.
type Vertex struct {
	X, Y, Z float32
}

// Facet is one decoded polygon record, as indices into the vertex group.
type Facet struct {
	Indices []uint32
}

// Payload holds the renderable records of a file. Groups the viewer does not
// understand are decoded (to keep the stream aligned) and discarded.
type Payload struct {
	Vertices []Vertex
	Facets   []Facet
}

// ReadPayload decodes the payload blocks declared by h from r, in header
// order. Vertex groups must carry x, y and z scalar properties; facet groups
// must carry a vertex index list property. Missing coordinates decode as
// zero so that partially annotated files still load.
func ReadPayload(h *Header, r *bufio.Reader) (*Payload, error) {
	p := &Payload{}
	for i := range h.Elements {
		def := &h.Elements[i]
		if err := readElement(h.Format, def, r, p); err != nil {
			return nil, fmt.Errorf("element %q: %w", def.Name, err)
		}
	}
	return p, nil
}

func readElement(format Format, def *ElementDef, r *bufio.Reader, p *Payload) error {
	var dec decoder
	switch format {
	case ASCII:
		dec = &asciiDecoder{r: r}
	case BinaryLittleEndian:
		dec = &binaryDecoder{r: r}
	default:
		return ErrUnsupportedFormat
	}

	xi, yi, zi := propertyIndex(def, "x"), propertyIndex(def, "y"), propertyIndex(def, "z")
	listIdx := listIndex(def)

	isVertex := false
	isFacet := false
	if e, ok := worldview.ElementFromName(def.Name); ok {
		switch e {
		case worldview.Vertex:
			isVertex = true
			if xi < 0 && yi < 0 && zi < 0 {
				return fmt.Errorf("%w: vertex group has no coordinates", ErrMalformedHeader)
			}
		case worldview.Facet:
			isFacet = listIdx >= 0
		}
	}

	values := make([]float64, len(def.Properties))
	var indices []uint32
	for rec := 0; rec < def.Count; rec++ {
		indices = indices[:0]
		for pi := range def.Properties {
			prop := &def.Properties[pi]
			if prop.List {
				n, err := dec.scalar(prop.CountType)
				if err != nil {
					return err
				}
				count := int(n)
				if count < 0 {
					return fmt.Errorf("%w: negative list count", ErrMalformedPayload)
				}
				for j := 0; j < count; j++ {
					v, err := dec.scalar(prop.Type)
					if err != nil {
						return err
					}
					if isFacet && pi == listIdx {
						indices = append(indices, uint32(v))
					}
				}
				continue
			}
			v, err := dec.scalar(prop.Type)
			if err != nil {
				return err
			}
			values[pi] = v
		}
		if isVertex {
			var vert Vertex
			if xi >= 0 {
				vert.X = float32(values[xi])
			}
			if yi >= 0 {
				vert.Y = float32(values[yi])
			}
			if zi >= 0 {
				vert.Z = float32(values[zi])
			}
			p.Vertices = append(p.Vertices, vert)
		}
		if isFacet && len(indices) > 0 {
			p.Facets = append(p.Facets, Facet{Indices: append([]uint32(nil), indices...)})
		}
	}
	return nil
}

func propertyIndex(def *ElementDef, name string) int {
	for i := range def.Properties {
		if !def.Properties[i].List && def.Properties[i].Name == name {
			return i
		}
	}
	return -1
}

// listIndex returns the index of the vertex index list property, preferring
// the canonical vertex_indices name but accepting any list column.
func listIndex(def *ElementDef) int {
	fallback := -1
	for i := range def.Properties {
		if !def.Properties[i].List {
			continue
		}
		switch def.Properties[i].Name {
		case "vertex_indices", "vertex_index":
			return i
		}
		if fallback < 0 {
			fallback = i
		}
	}
	return fallback
}

// decoder pulls one scalar at a time from a payload stream. Every scalar is
// widened to float64, which is lossless for all supported types except the
// full uint32/int32 range; index lists in practice stay far below 2^53.
type decoder interface {
	scalar(t ScalarType) (float64, error)
}

type binaryDecoder struct {
	r   *bufio.Reader
	buf [8]byte
}

func (d *binaryDecoder) scalar(t ScalarType) (float64, error) {
	b := d.buf[:t.Size()]
	if _, err := io.ReadFull(d.r, b); err != nil {
		return 0, ErrTruncatedPayload
	}
	switch t {
	case Int8:
		return float64(int8(b[0])), nil
	case UInt8:
		return float64(b[0]), nil
	case Int16:
		return float64(int16(binary.LittleEndian.Uint16(b))), nil
	case UInt16:
		return float64(binary.LittleEndian.Uint16(b)), nil
	case Int32:
		return float64(int32(binary.LittleEndian.Uint32(b))), nil
	case UInt32:
		return float64(binary.LittleEndian.Uint32(b)), nil
	case Float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b))), nil
	case Float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
	default:
		return 0, fmt.Errorf("%w: unknown scalar type", ErrMalformedHeader)
	}
}

// asciiDecoder tokenizes whitespace-separated values. Records are newline
// terminated but the decoder only requires token order, so wrapped lines
// also parse.
type asciiDecoder struct {
	r      *bufio.Reader
	fields []string
	next   int
}

func (d *asciiDecoder) scalar(_ ScalarType) (float64, error) {
	for d.next >= len(d.fields) {
		line, err := d.r.ReadString('\n')
		if line == "" && err != nil {
			return 0, ErrTruncatedPayload
		}
		d.fields = strings.Fields(line)
		d.next = 0
	}
	tok := d.fields[d.next]
	d.next++
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad value %q", ErrMalformedPayload, tok)
	}
	return v, nil
}
