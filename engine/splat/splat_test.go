package splat

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readFloat(buf []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
}

func TestFloatsRoundTrip(t *testing.T) {
	t.Parallel()
	var raw [RawFloats]float32
	for i := range raw {
		raw[i] = float32(i) + 0.5
	}
	s := FromFloats(raw)
	assert.Equal(t, mgl32.Vec3{0.5, 1.5, 2.5}, s.Center)
	assert.Equal(t, float32(7.5), s.Depth)
	assert.Equal(t, float32(16.5), s.ModelMatrix[0])
	assert.Equal(t, float32(31.5), s.ModelMatrix[15])
	assert.Equal(t, raw, s.Floats())
}

func TestDefault(t *testing.T) {
	t.Parallel()
	s := Default()
	assert.Equal(t, mgl32.Vec4{1, 1, 1, 1}, s.Color)
	assert.Equal(t, mgl32.Vec2{0.05, 0.05}, s.Scale)
	assert.Equal(t, mgl32.Vec3{0, 1, 0}, s.Normal)
	assert.Equal(t, mgl32.Vec3{1, 0, 0}, s.EllipseBasis)
	assert.Equal(t, mgl32.Ident4(), s.ModelMatrix)
	assert.Zero(t, s.Depth)
}

func TestGPUSizes(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 64, (&GPUSplatEntry{}).Size())
	assert.Equal(t, 160, (&GPUSplatUniforms{}).Size())
	assert.Equal(t, 48, (&GPUSortParams{}).Size())
	assert.Equal(t, 20, (&GPUIndirectArgs{}).Size())
}

func TestGPUSplatUniformsLayout(t *testing.T) {
	t.Parallel()
	proj := mgl32.Perspective(mgl32.DegToRad(45), 16.0/9.0, 0.1, 100)
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	u := NewGPUSplatUniforms(proj, view, 0.1, 100, 0.1, 0.01, 1.5, 42, 17)
	buf := u.Marshal()
	require.Len(t, buf, 160)

	for i := range 16 {
		assert.Equal(t, proj[i], readFloat(buf, i*4))
		assert.Equal(t, view[i], readFloat(buf, 64+i*4))
	}
	assert.Equal(t, float32(0.1), readFloat(buf, 128))
	assert.Equal(t, float32(100), readFloat(buf, 132))
	assert.Equal(t, float32(0.1), readFloat(buf, 136))
	assert.Equal(t, float32(0.01), readFloat(buf, 140))
	assert.Equal(t, float32(1.5), readFloat(buf, 144))
	assert.Equal(t, float32(42), readFloat(buf, 148))
	assert.Equal(t, float32(17), readFloat(buf, 152))
	assert.Equal(t, float32(0), readFloat(buf, 156))

	u.SetQuadExtent(1)
	assert.Equal(t, float32(1), readFloat(u.Marshal(), 156))
	assert.Equal(t, float32(17), readFloat(u.Marshal(), 152))
}

func TestGPUSplatEntryLayout(t *testing.T) {
	t.Parallel()
	s := Default()
	s.Center = mgl32.Vec3{1, 2, 3}
	s.Depth = 9
	s.Scale = mgl32.Vec2{0.25, 0.75}
	e := NewGPUSplatEntry(&s)
	buf := e.Marshal()
	require.Len(t, buf, 64)
	assert.Equal(t, float32(3), readFloat(buf, 8))
	assert.Equal(t, float32(9), readFloat(buf, 12))
	assert.Equal(t, float32(1), readFloat(buf, 28))
	assert.Equal(t, float32(0.25), readFloat(buf, 44))
	assert.Equal(t, float32(1), readFloat(buf, 48))
	assert.Equal(t, float32(0.75), readFloat(buf, 60))
}

func TestIndirectArgs(t *testing.T) {
	t.Parallel()
	a := NewGPUIndirectArgs(123)
	buf := a.Marshal()
	require.Len(t, buf, 20)
	want := []uint32{6, 123, 0, 0, 0}
	for i, w := range want {
		assert.Equal(t, w, binary.LittleEndian.Uint32(buf[i*4:]))
	}
}

func TestMarshalSHCoefficients(t *testing.T) {
	t.Parallel()
	tests := []struct {
		order uint32
		count int
	}{{0, 1}, {1, 4}, {2, 9}, {3, 16}}
	for _, tt := range tests {
		assert.Equal(t, tt.count, SHCoefficientCount(tt.order))

		buf := make([]byte, tt.count*16)
		for i := range buf {
			buf[i] = 0xFF
		}
		color := mgl32.Vec4{0.8, 0.5, 0.2, 1}
		MarshalSHCoefficients(buf, color, tt.order)

		for c := range 3 {
			dc := readFloat(buf, c*4)
			assert.InDelta(t, color[c], dc*SHC0+0.5, 1e-6)
		}
		for off := 12; off < len(buf); off += 4 {
			assert.Zero(t, readFloat(buf, off), "order %d offset %d", tt.order, off)
		}
	}
}
