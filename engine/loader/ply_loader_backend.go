package loader

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-splat/engine/splat"
)

// plyField identifies which Splat attribute a vertex property feeds.
type plyField int

const (
	plyFieldNone plyField = iota
	plyFieldX
	plyFieldY
	plyFieldZ
	plyFieldRed
	plyFieldGreen
	plyFieldBlue
	plyFieldAlpha
)

var plyFieldNames = map[string]plyField{
	"x":     plyFieldX,
	"y":     plyFieldY,
	"z":     plyFieldZ,
	"red":   plyFieldRed,
	"green": plyFieldGreen,
	"blue":  plyFieldBlue,
	"alpha": plyFieldAlpha,
}

// plyPreallocLimit bounds the up-front slice allocation so a lying header cannot
// force a huge allocation before the body is validated.
const plyPreallocLimit = 1 << 20

// plyLoaderBackend decodes the vertex element of a PLY file. Positions come from
// x/y/z properties of any numeric type; colors from red/green/blue/alpha, with
// 8-bit types scaled by 1/255. Everything else gets the splat.Default values.
type plyLoaderBackend struct{}

var _ loaderBackend = &plyLoaderBackend{}

func newPLYLoaderBackend() loaderBackend {
	return &plyLoaderBackend{}
}

func (b *plyLoaderBackend) Decode(data []byte, maxSplats int) ([]splat.Splat, error) {
	h, err := parsePLYHeader(data)
	if err != nil {
		return nil, err
	}

	vertex, ok := h.element("vertex")
	if !ok {
		return nil, ErrMissingVertexElement
	}
	if maxSplats > 0 && vertex.count > maxSplats {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManySplats, vertex.count, maxSplats)
	}

	fields := make([]plyField, len(vertex.properties))
	for i, p := range vertex.properties {
		if !p.isList {
			fields[i] = plyFieldNames[p.name]
		}
	}

	r := newPLYValueReader(h, data[h.bodyOffset:])
	splats := make([]splat.Splat, 0, min(vertex.count, plyPreallocLimit))

	for ei := range h.elements {
		el := &h.elements[ei]
		if el != vertex {
			for range el.count {
				if err := readPLYRow(r, el, nil); err != nil {
					return nil, fmt.Errorf("element %q: %w", el.name, err)
				}
			}
			continue
		}

		for row := range el.count {
			s := splat.Default()
			err := readPLYRow(r, el, func(i int, v float64) {
				applyPLYValue(&s, fields[i], el.properties[i].valueType, v)
			})
			if err != nil {
				return nil, fmt.Errorf("vertex %d: %w", row, err)
			}
			splats = append(splats, s)
		}
	}
	return splats, nil
}

// applyPLYValue stores one vertex property value into the splat. Every numeric type
// is accepted.
func applyPLYValue(s *splat.Splat, field plyField, t plyScalarType, v float64) {
	switch field {
	case plyFieldX, plyFieldY, plyFieldZ:
		s.Center[field-plyFieldX] = plyNumber(t, v, false)
	case plyFieldRed, plyFieldGreen, plyFieldBlue, plyFieldAlpha:
		s.Color[field-plyFieldRed] = plyNumber(t, v, true)
	}
}

// plyNumber converts a decoded property value to float32. Color channels stored in
// 8 bits, signed or not, are divided by 255; all other values convert unchanged.
func plyNumber(t plyScalarType, v float64, color bool) float32 {
	if color && t.size() == 1 {
		return float32(v) / 255.0
	}
	return float32(v)
}
