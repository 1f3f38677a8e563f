package loader

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-splat/engine/splat"
)

// rawLoaderBackend decodes the fixed-stride binary format: a headerless sequence of
// 128-byte records, each 32 little-endian float32 values in Splat.Floats order.
type rawLoaderBackend struct{}

var _ loaderBackend = &rawLoaderBackend{}

func newRawLoaderBackend() loaderBackend {
	return &rawLoaderBackend{}
}

func (b *rawLoaderBackend) Decode(data []byte, maxSplats int) ([]splat.Splat, error) {
	if len(data)%splat.RawStride != 0 {
		return nil, fmt.Errorf("%w: %d bytes, stride %d", ErrInvalidSplatSize, len(data), splat.RawStride)
	}

	count := len(data) / splat.RawStride
	if maxSplats > 0 && count > maxSplats {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManySplats, count, maxSplats)
	}

	splats := make([]splat.Splat, count)
	var rec [splat.RawFloats]float32
	for i := range splats {
		off := i * splat.RawStride
		for j := range rec {
			rec[j] = math.Float32frombits(binary.LittleEndian.Uint32(data[off+j*4:]))
		}
		splats[i] = splat.FromFloats(rec)
	}
	return splats, nil
}

// EncodeRaw serializes splats into the raw binary format. Decoding the result with
// a raw Loader returns bit-identical records.
//
// Parameters:
//   - splats: the splats to encode
//
// Returns:
//   - []byte: len(splats) * 128 bytes
func EncodeRaw(splats []splat.Splat) []byte {
	buf := make([]byte, len(splats)*splat.RawStride)
	for i := range splats {
		rec := splats[i].Floats()
		off := i * splat.RawStride
		for j, v := range rec {
			binary.LittleEndian.PutUint32(buf[off+j*4:], math.Float32bits(v))
		}
	}
	return buf
}
