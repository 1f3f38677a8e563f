package loader

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// plyFormat identifies the body encoding declared in a PLY header.
type plyFormat int

const (
	plyASCII plyFormat = iota
	plyBinaryLittleEndian
	plyBinaryBigEndian
)

// plyScalarType is the storage type of a PLY property value.
type plyScalarType int

const (
	plyInt8 plyScalarType = iota
	plyUint8
	plyInt16
	plyUint16
	plyInt32
	plyUint32
	plyFloat32
	plyFloat64
)

// plyScalarTypes maps every PLY type spelling (legacy and sized) to its scalar type.
var plyScalarTypes = map[string]plyScalarType{
	"char": plyInt8, "int8": plyInt8,
	"uchar": plyUint8, "uint8": plyUint8,
	"short": plyInt16, "int16": plyInt16,
	"ushort": plyUint16, "uint16": plyUint16,
	"int": plyInt32, "int32": plyInt32,
	"uint": plyUint32, "uint32": plyUint32,
	"float": plyFloat32, "float32": plyFloat32,
	"double": plyFloat64, "float64": plyFloat64,
}

// size returns the encoded size of the scalar type in bytes.
func (t plyScalarType) size() int {
	switch t {
	case plyInt8, plyUint8:
		return 1
	case plyInt16, plyUint16:
		return 2
	case plyInt32, plyUint32, plyFloat32:
		return 4
	default:
		return 8
	}
}

// isFloat reports whether the scalar type is a floating point type.
func (t plyScalarType) isFloat() bool {
	return t == plyFloat32 || t == plyFloat64
}

// plyProperty is one property declaration of a PLY element.
type plyProperty struct {
	name      string
	valueType plyScalarType
	isList    bool
	countType plyScalarType
}

// plyElement is one element declaration with its properties in declaration order.
type plyElement struct {
	name       string
	count      int
	properties []plyProperty
}

// plyHeader is the parsed PLY header. bodyOffset is the byte offset of the first
// body byte in the source data.
type plyHeader struct {
	format     plyFormat
	elements   []plyElement
	bodyOffset int
}

// element returns the first element with the given name.
func (h *plyHeader) element(name string) (*plyElement, bool) {
	for i := range h.elements {
		if h.elements[i].name == name {
			return &h.elements[i], true
		}
	}
	return nil, false
}

// parsePLYHeader parses the header lines up to and including end_header.
//
// Parameters:
//   - data: the complete PLY file
//
// Returns:
//   - *plyHeader: the parsed header
//   - error: ErrMalformedPLY wrapped with detail if the header is invalid
func parsePLYHeader(data []byte) (*plyHeader, error) {
	h := &plyHeader{}
	pos := 0
	lineNum := 0
	sawFormat := false

	for {
		nl := bytes.IndexByte(data[pos:], '\n')
		if nl < 0 {
			return nil, fmt.Errorf("%w: header is not terminated by end_header", ErrMalformedPLY)
		}
		line := strings.TrimRight(string(data[pos:pos+nl]), "\r")
		pos += nl + 1
		lineNum++

		if lineNum == 1 {
			if line != "ply" {
				return nil, fmt.Errorf("%w: missing ply magic", ErrMalformedPLY)
			}
			continue
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "comment", "obj_info":
		case "format":
			if len(fields) != 3 {
				return nil, fmt.Errorf("%w: line %d: bad format line", ErrMalformedPLY, lineNum)
			}
			switch fields[1] {
			case "ascii":
				h.format = plyASCII
			case "binary_little_endian":
				h.format = plyBinaryLittleEndian
			case "binary_big_endian":
				h.format = plyBinaryBigEndian
			default:
				return nil, fmt.Errorf("%w: line %d: unknown format %q", ErrMalformedPLY, lineNum, fields[1])
			}
			sawFormat = true
		case "element":
			if len(fields) != 3 {
				return nil, fmt.Errorf("%w: line %d: bad element line", ErrMalformedPLY, lineNum)
			}
			count, err := strconv.Atoi(fields[2])
			if err != nil || count < 0 {
				return nil, fmt.Errorf("%w: line %d: bad element count %q", ErrMalformedPLY, lineNum, fields[2])
			}
			h.elements = append(h.elements, plyElement{name: fields[1], count: count})
		case "property":
			if len(h.elements) == 0 {
				return nil, fmt.Errorf("%w: line %d: property before any element", ErrMalformedPLY, lineNum)
			}
			prop, err := parsePLYProperty(fields)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedPLY, lineNum, err)
			}
			el := &h.elements[len(h.elements)-1]
			el.properties = append(el.properties, prop)
		case "end_header":
			if !sawFormat {
				return nil, fmt.Errorf("%w: missing format line", ErrMalformedPLY)
			}
			h.bodyOffset = pos
			return h, nil
		default:
			return nil, fmt.Errorf("%w: line %d: unknown keyword %q", ErrMalformedPLY, lineNum, fields[0])
		}
	}
}

// parsePLYProperty parses "property <type> <name>" or "property list <count> <type> <name>".
func parsePLYProperty(fields []string) (plyProperty, error) {
	if len(fields) >= 2 && fields[1] == "list" {
		if len(fields) != 5 {
			return plyProperty{}, fmt.Errorf("bad list property line")
		}
		countType, ok := plyScalarTypes[fields[2]]
		if !ok || countType.isFloat() {
			return plyProperty{}, fmt.Errorf("bad list count type %q", fields[2])
		}
		valueType, ok := plyScalarTypes[fields[3]]
		if !ok {
			return plyProperty{}, fmt.Errorf("unknown type %q", fields[3])
		}
		return plyProperty{name: fields[4], valueType: valueType, isList: true, countType: countType}, nil
	}

	if len(fields) != 3 {
		return plyProperty{}, fmt.Errorf("bad property line")
	}
	valueType, ok := plyScalarTypes[fields[1]]
	if !ok {
		return plyProperty{}, fmt.Errorf("unknown type %q", fields[1])
	}
	return plyProperty{name: fields[2], valueType: valueType}, nil
}

// plyValueReader reads successive scalar values from a PLY body.
type plyValueReader interface {
	next(t plyScalarType) (float64, error)
}

// newPLYValueReader returns a reader for the body encoding of the header.
func newPLYValueReader(h *plyHeader, body []byte) plyValueReader {
	switch h.format {
	case plyBinaryLittleEndian:
		return &plyBinaryReader{data: body, order: binary.LittleEndian}
	case plyBinaryBigEndian:
		return &plyBinaryReader{data: body, order: binary.BigEndian}
	default:
		sc := bufio.NewScanner(bytes.NewReader(body))
		sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
		sc.Split(bufio.ScanWords)
		return &plyASCIIReader{scanner: sc}
	}
}

// plyBinaryReader decodes fixed-size binary values in the declared byte order.
type plyBinaryReader struct {
	data  []byte
	pos   int
	order binary.ByteOrder
}

func (r *plyBinaryReader) next(t plyScalarType) (float64, error) {
	n := t.size()
	if r.pos+n > len(r.data) {
		return 0, fmt.Errorf("%w: unexpected end of binary body", ErrMalformedPLY)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n

	switch t {
	case plyInt8:
		return float64(int8(b[0])), nil
	case plyUint8:
		return float64(b[0]), nil
	case plyInt16:
		return float64(int16(r.order.Uint16(b))), nil
	case plyUint16:
		return float64(r.order.Uint16(b)), nil
	case plyInt32:
		return float64(int32(r.order.Uint32(b))), nil
	case plyUint32:
		return float64(r.order.Uint32(b)), nil
	case plyFloat32:
		return float64(math.Float32frombits(r.order.Uint32(b))), nil
	default:
		return math.Float64frombits(r.order.Uint64(b)), nil
	}
}

// plyASCIIReader decodes whitespace-separated values.
type plyASCIIReader struct {
	scanner *bufio.Scanner
}

func (r *plyASCIIReader) next(t plyScalarType) (float64, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMalformedPLY, err)
		}
		return 0, fmt.Errorf("%w: unexpected end of ascii body: %v", ErrMalformedPLY, io.ErrUnexpectedEOF)
	}
	tok := r.scanner.Text()
	if t.isFloat() {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: bad float %q", ErrMalformedPLY, tok)
		}
		return v, nil
	}
	v, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad integer %q", ErrMalformedPLY, tok)
	}
	return float64(v), nil
}

// readPLYRow reads one row of an element, calling visit for every scalar property.
// List properties are consumed and skipped.
func readPLYRow(r plyValueReader, el *plyElement, visit func(propIndex int, v float64)) error {
	for i, prop := range el.properties {
		if prop.isList {
			n, err := r.next(prop.countType)
			if err != nil {
				return err
			}
			if n < 0 {
				return fmt.Errorf("%w: negative list length", ErrMalformedPLY)
			}
			for range int(n) {
				if _, err := r.next(prop.valueType); err != nil {
					return err
				}
			}
			continue
		}
		v, err := r.next(prop.valueType)
		if err != nil {
			return err
		}
		if visit != nil {
			visit(i, v)
		}
	}
	return nil
}
