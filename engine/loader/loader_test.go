package loader

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-splat/engine/splat"
)

func sampleSplats(n int) []splat.Splat {
	out := make([]splat.Splat, n)
	for i := range out {
		var raw [splat.RawFloats]float32
		for j := range raw {
			raw[j] = float32(i*100+j) * 0.25
		}
		out[i] = splat.FromFloats(raw)
	}
	return out
}

func TestRawRoundTrip(t *testing.T) {
	t.Parallel()
	for _, n := range []int{0, 1, 3, 64} {
		in := sampleSplats(n)
		data := EncodeRaw(in)
		require.Len(t, data, n*splat.RawStride)

		out, err := NewLoader().LoadBytes(data, FormatRaw)
		require.NoError(t, err)
		if diff := cmp.Diff(in, out); diff != "" {
			t.Errorf("n=%d round trip mismatch (-want +got):\n%s", n, diff)
		}
	}
}

func TestRawKeepsFullModelMatrix(t *testing.T) {
	t.Parallel()
	in := splat.Default()
	in.Center = mgl32.Vec3{1, -2, 3}
	in.Depth = 4.25
	in.ModelMatrix = mgl32.Translate3D(1, 2, 3).Mul4(mgl32.Scale3D(2, 2, 2))

	data := EncodeRaw([]splat.Splat{in})
	require.Len(t, data, 128)

	out, err := NewLoader().LoadBytes(data, FormatRaw)
	require.NoError(t, err)
	require.Len(t, out, 1)

	want, got := in.Floats(), out[0].Floats()
	for i := range want {
		assert.Equal(t, math.Float32bits(want[i]), math.Float32bits(got[i]), "float %d", i)
	}
	assert.Equal(t, mgl32.Vec4{1, 2, 3, 1}, out[0].ModelMatrix.Col(3))
}

func TestRawPreservesNaNBits(t *testing.T) {
	t.Parallel()
	data := make([]byte, splat.RawStride)
	const payload = 0x7fc01234
	binary.LittleEndian.PutUint32(data[0:], payload)

	out, err := NewLoader().LoadBytes(data, FormatRaw)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, uint32(payload), math.Float32bits(out[0].Center[0]))
	assert.Equal(t, data, EncodeRaw(out))
}

func TestRawInvalidSize(t *testing.T) {
	t.Parallel()
	for _, size := range []int{1, 116, 127, 129, 255} {
		out, err := NewLoader().LoadBytes(make([]byte, size), FormatRaw)
		assert.ErrorIs(t, err, ErrInvalidSplatSize, "size %d", size)
		assert.Nil(t, out)
	}
}

func TestMaxSplats(t *testing.T) {
	t.Parallel()
	l := NewLoader(WithMaxSplats(2))
	assert.Equal(t, 2, l.MaxSplats())

	_, err := l.LoadBytes(EncodeRaw(sampleSplats(3)), FormatRaw)
	assert.ErrorIs(t, err, ErrTooManySplats)

	ply := "ply\nformat ascii 1.0\nelement vertex 3\nproperty float x\nend_header\n1\n2\n3\n"
	_, err = l.LoadBytes([]byte(ply), FormatPLY)
	assert.ErrorIs(t, err, ErrTooManySplats)

	out, err := l.LoadBytes(EncodeRaw(sampleSplats(2)), FormatRaw)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestPLYDefaults(t *testing.T) {
	t.Parallel()
	ply := strings.Join([]string{
		"ply",
		"format ascii 1.0",
		"comment only positions",
		"element vertex 2",
		"property float x",
		"property float y",
		"property float z",
		"end_header",
		"1 2 3",
		"-4 5.5 6",
		"",
	}, "\n")

	out, err := NewLoader().LoadBytes([]byte(ply), FormatPLY)
	require.NoError(t, err)
	require.Len(t, out, 2)

	want := splat.Default()
	want.Center = mgl32.Vec3{1, 2, 3}
	assert.Equal(t, want, out[0])
	assert.Equal(t, mgl32.Vec3{-4, 5.5, 6}, out[1].Center)
	assert.Equal(t, mgl32.Vec4{1, 1, 1, 1}, out[1].Color)
}

func TestPLYColorTypes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		property string
		value    string
		want     float32
	}{
		{"uchar", "uchar", "255", 1},
		{"char", "char", "100", 100.0 / 255.0},
		{"int8", "int8", "51", 51.0 / 255.0},
		{"float", "float", "0.25", 0.25},
		{"double", "double", "0.75", 0.75},
		{"short", "short", "7", 7},
		{"uint", "uint", "2", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ply := "ply\nformat ascii 1.0\nelement vertex 1\nproperty " + tt.property +
				" red\nend_header\n" + tt.value + "\n"
			out, err := NewLoader().LoadBytes([]byte(ply), FormatPLY)
			require.NoError(t, err)
			require.Len(t, out, 1)
			assert.InDelta(t, tt.want, out[0].Color[0], 1e-6)
			assert.Equal(t, mgl32.Vec3{1, 1, 1}, mgl32.Vec3{out[0].Color[1], out[0].Color[2], out[0].Color[3]}, "absent channels keep defaults")
		})
	}
}

func TestPLYIntegerPositions(t *testing.T) {
	t.Parallel()
	ply := "ply\nformat ascii 1.0\nelement vertex 1\nproperty int x\nproperty float y\nproperty uchar z\nend_header\n-9 2 200\n"
	out, err := NewLoader().LoadBytes([]byte(ply), FormatPLY)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, mgl32.Vec3{-9, 2, 200}, out[0].Center)
}

func buildBinaryPLY(order binary.ByteOrder, formatName string) []byte {
	var buf bytes.Buffer
	buf.WriteString("ply\nformat " + formatName + " 1.0\n")
	buf.WriteString("element vertex 2\n")
	buf.WriteString("property float x\nproperty float y\nproperty float z\n")
	buf.WriteString("property list uchar int vertex_indices\n")
	buf.WriteString("property uchar red\nproperty uchar green\nproperty uchar blue\nproperty uchar alpha\n")
	buf.WriteString("element face 1\nproperty list uchar int vertex_indices\n")
	buf.WriteString("end_header\n")

	writeRow := func(x, y, z float32, listLen uint8, c [4]uint8) {
		_ = binary.Write(&buf, order, []float32{x, y, z})
		buf.WriteByte(listLen)
		for i := range int(listLen) {
			_ = binary.Write(&buf, order, int32(i))
		}
		buf.Write(c[:])
	}
	writeRow(1, 2, 3, 0, [4]uint8{255, 0, 51, 255})
	writeRow(-1, -2, -3, 2, [4]uint8{0, 255, 0, 0})

	buf.WriteByte(3)
	_ = binary.Write(&buf, order, []int32{0, 1, 0})
	return buf.Bytes()
}

func TestPLYBinaryParity(t *testing.T) {
	t.Parallel()
	le, err := NewLoader().LoadBytes(buildBinaryPLY(binary.LittleEndian, "binary_little_endian"), FormatPLY)
	require.NoError(t, err)
	be, err := NewLoader().LoadBytes(buildBinaryPLY(binary.BigEndian, "binary_big_endian"), FormatPLY)
	require.NoError(t, err)

	require.Len(t, le, 2)
	if diff := cmp.Diff(le, be); diff != "" {
		t.Errorf("little vs big endian mismatch (-le +be):\n%s", diff)
	}
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, le[0].Center)
	assert.Equal(t, mgl32.Vec3{-1, -2, -3}, le[1].Center)
	assert.InDelta(t, 0.2, le[0].Color[2], 1e-6)
	assert.Equal(t, float32(0), le[1].Color[3])
}

func TestPLYEmptyVertexList(t *testing.T) {
	t.Parallel()
	ply := "ply\nformat binary_little_endian 1.0\nelement vertex 0\nproperty float x\nend_header\n"
	out, err := NewLoader().LoadBytes([]byte(ply), FormatAuto)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestPLYErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data string
		want error
	}{
		{"no vertex element", "ply\nformat ascii 1.0\nelement face 0\nend_header\n", ErrMissingVertexElement},
		{"no end header", "ply\nformat ascii 1.0\nelement vertex 1\n", ErrMalformedPLY},
		{"bad magic", "plx\nformat ascii 1.0\nend_header\n", ErrMalformedPLY},
		{"unknown type", "ply\nformat ascii 1.0\nelement vertex 1\nproperty quad x\nend_header\n1\n", ErrMalformedPLY},
		{"truncated ascii", "ply\nformat ascii 1.0\nelement vertex 2\nproperty float x\nend_header\n1\n", ErrMalformedPLY},
		{"truncated binary", "ply\nformat binary_little_endian 1.0\nelement vertex 1\nproperty float x\nend_header\n\x00\x00", ErrMalformedPLY},
		{"missing format", "ply\nelement vertex 0\nend_header\n", ErrMalformedPLY},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := NewLoader().LoadBytes([]byte(tt.data), FormatPLY)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, out)
		})
	}
}

func TestLoadFromDisk(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	in := sampleSplats(5)

	rawPath := filepath.Join(dir, "scene.splat")
	require.NoError(t, os.WriteFile(rawPath, EncodeRaw(in), 0o644))
	plyPath := filepath.Join(dir, "scene.ply")
	require.NoError(t, os.WriteFile(plyPath, []byte("ply\nformat ascii 1.0\nelement vertex 1\nproperty float z\nend_header\n4\n"), 0o644))
	unknownPath := filepath.Join(dir, "scene.dat")
	require.NoError(t, os.WriteFile(unknownPath, []byte("ply\nformat ascii 1.0\nelement vertex 0\nend_header\n"), 0o644))

	l := NewLoader()
	out, err := l.Load(rawPath, FormatAuto)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(in, out))

	out, err = l.Load(plyPath, FormatAuto)
	require.NoError(t, err)
	assert.Equal(t, mgl32.Vec3{0, 0, 4}, out[0].Center)

	out, err = l.Load(unknownPath, FormatAuto)
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = l.Load(filepath.Join(dir, "missing.splat"), FormatAuto)
	assert.ErrorIs(t, err, os.ErrNotExist)

	out, err = l.LoadReader(bytes.NewReader(EncodeRaw(in[:2])), FormatRaw)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestParseFormat(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]Format{"": FormatAuto, "AUTO": FormatAuto, "splat": FormatRaw, "raw": FormatRaw, "ply": FormatPLY} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("obj")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.Equal(t, "ply", FormatPLY.String())
}
