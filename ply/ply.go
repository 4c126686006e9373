// Package ply reads the PLY geometry files produced by the upstream
// reconstruction pipeline.
//
// A PLY file is a header declaring named element groups (each with a record
// count and a property list) followed by one payload block per group, in
// header order. The reader supports ascii and binary_little_endian formats
// and decodes only the groups the viewer renders (vertex positions and
// facet index lists), skipping everything else record by record.
package ply

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Header parse errors.
var (
	// ErrMalformedHeader is returned for input that is not a PLY header.
	ErrMalformedHeader = errors.New("ply: malformed header")

	// ErrUnsupportedFormat is returned for formats other than ascii and
	// binary_little_endian (i.e. binary_big_endian).
	ErrUnsupportedFormat = errors.New("ply: unsupported format")

	// ErrTruncatedPayload is returned when a payload block ends before the
	// declared record count is reached.
	ErrTruncatedPayload = errors.New("ply: truncated payload")

	// ErrMalformedPayload is returned when a payload value does not decode,
	// such as a non-numeric ascii token or a negative list count.
	ErrMalformedPayload = errors.New("ply: malformed payload")
)

// Format is the payload encoding declared by the header.
type Format int

const (
	// ASCII payloads carry one whitespace-separated record per line.
	ASCII Format = iota + 1

	// BinaryLittleEndian payloads carry packed little-endian records.
	BinaryLittleEndian
)

// String returns the on-disk format name.
func (f Format) String() string {
	switch f {
	case ASCII:
		return "ascii"
	case BinaryLittleEndian:
		return "binary_little_endian"
	default:
		return "unknown"
	}
}

// ScalarType is a PLY property scalar type.
type ScalarType int

const (
	Int8 ScalarType = iota + 1
	UInt8
	Int16
	UInt16
	Int32
	UInt32
	Float32
	Float64
)

// scalarTypes maps on-disk type names (both the 1.0 names and the common
// C-style aliases) to scalar types.
var scalarTypes = map[string]ScalarType{
	"char":    Int8,
	"int8":    Int8,
	"uchar":   UInt8,
	"uint8":   UInt8,
	"short":   Int16,
	"int16":   Int16,
	"ushort":  UInt16,
	"uint16":  UInt16,
	"int":     Int32,
	"int32":   Int32,
	"uint":    UInt32,
	"uint32":  UInt32,
	"float":   Float32,
	"float32": Float32,
	"double":  Float64,
	"float64": Float64,
}

// Size returns the byte width of the scalar in binary payloads.
func (t ScalarType) Size() int {
	switch t {
	case Int8, UInt8:
		return 1
	case Int16, UInt16:
		return 2
	case Int32, UInt32, Float32:
		return 4
	case Float64:
		return 8
	default:
		return 0
	}
}

// Property describes one column of an element group.
type Property struct {
	Name string
	Type ScalarType

	// List marks a variable-length property: a count scalar of CountType
	// followed by that many values of Type.
	List      bool
	CountType ScalarType
}

// ElementDef describes one element group: its name, record count, and the
// per-record property layout.
type ElementDef struct {
	Name       string
	Count      int
	Properties []Property
}

// Header is a parsed PLY header. Elements preserve declaration order, which
// is also payload order.
type Header struct {
	Format   Format
	Version  string
	Comments []string
	Elements []ElementDef
}

// Element returns the definition for the named group, or nil.
func (h *Header) Element(name string) *ElementDef {
	for i := range h.Elements {
		if h.Elements[i].Name == name {
			return &h.Elements[i]
		}
	}
	return nil
}

// HasComment reports whether any header comment contains the given word.
// Comments are the extension point of the format; the classifier uses this
// for the wireframe topology tag.
func (h *Header) HasComment(word string) bool {
	for _, c := range h.Comments {
		for _, f := range strings.Fields(c) {
			if f == word {
				return true
			}
		}
	}
	return false
}

// ReadHeader parses a PLY header from r, leaving r positioned at the first
// payload byte. All failures wrap ErrMalformedHeader or
// ErrUnsupportedFormat.
func ReadHeader(r *bufio.Reader) (*Header, error) {
	magic, err := readHeaderLine(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	if magic != "ply" {
		return nil, fmt.Errorf("%w: missing ply magic", ErrMalformedHeader)
	}

	h := &Header{}
	for {
		line, err := readHeaderLine(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "end_header":
			if h.Format == 0 {
				return nil, fmt.Errorf("%w: no format declaration", ErrMalformedHeader)
			}
			return h, nil

		case "format":
			if len(fields) < 2 {
				return nil, fmt.Errorf("%w: bad format line %q", ErrMalformedHeader, line)
			}
			switch fields[1] {
			case "ascii":
				h.Format = ASCII
			case "binary_little_endian":
				h.Format = BinaryLittleEndian
			case "binary_big_endian":
				return nil, fmt.Errorf("%w: binary_big_endian", ErrUnsupportedFormat)
			default:
				return nil, fmt.Errorf("%w: format %q", ErrUnsupportedFormat, fields[1])
			}
			if len(fields) >= 3 {
				h.Version = fields[2]
			}

		case "comment", "obj_info":
			h.Comments = append(h.Comments, strings.TrimSpace(strings.TrimPrefix(line, fields[0])))

		case "element":
			if len(fields) != 3 {
				return nil, fmt.Errorf("%w: bad element line %q", ErrMalformedHeader, line)
			}
			count, err := strconv.Atoi(fields[2])
			if err != nil || count < 0 {
				return nil, fmt.Errorf("%w: bad element count %q", ErrMalformedHeader, fields[2])
			}
			h.Elements = append(h.Elements, ElementDef{Name: fields[1], Count: count})

		case "property":
			if len(h.Elements) == 0 {
				return nil, fmt.Errorf("%w: property before element", ErrMalformedHeader)
			}
			prop, err := parseProperty(fields)
			if err != nil {
				return nil, err
			}
			last := &h.Elements[len(h.Elements)-1]
			last.Properties = append(last.Properties, prop)

		default:
			// Unknown header keywords are tolerated, matching the lenient
			// behavior expected of viewers.
		}
	}
}

func parseProperty(fields []string) (Property, error) {
	if len(fields) >= 5 && fields[1] == "list" {
		countType, ok := scalarTypes[fields[2]]
		if !ok {
			return Property{}, fmt.Errorf("%w: list count type %q", ErrMalformedHeader, fields[2])
		}
		valueType, ok := scalarTypes[fields[3]]
		if !ok {
			return Property{}, fmt.Errorf("%w: list value type %q", ErrMalformedHeader, fields[3])
		}
		return Property{Name: fields[4], Type: valueType, List: true, CountType: countType}, nil
	}
	if len(fields) == 3 {
		valueType, ok := scalarTypes[fields[1]]
		if !ok {
			return Property{}, fmt.Errorf("%w: property type %q", ErrMalformedHeader, fields[1])
		}
		return Property{Name: fields[2], Type: valueType}, nil
	}
	return Property{}, fmt.Errorf("%w: bad property line %q", ErrMalformedHeader, strings.Join(fields, " "))
}

// readHeaderLine reads one header line, tolerating CRLF endings.
func readHeaderLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
