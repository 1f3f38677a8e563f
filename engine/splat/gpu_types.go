package splat

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// SHC0 is the band-0 spherical harmonic basis constant 1 / (2 * sqrt(pi)).
const SHC0 = 0.28209479177387814

// MaxSHOrder is the highest spherical harmonic order the renderer accepts.
const MaxSHOrder = 3

// IndirectVertexCount is the per-instance vertex count written into indirect draw args.
const IndirectVertexCount = 6

// GPUSplatEntrySource is the canonical WGSL definition of the SplatEntry struct.
// Matches GPUSplatEntry layout exactly (64 bytes).
//
//go:embed assets/splat_entry.wgsl
var GPUSplatEntrySource string

// GPUSplatUniformsSource is the canonical WGSL definition of the SplatUniforms struct.
// Matches GPUSplatUniforms layout exactly (160 bytes).
//
//go:embed assets/splat_uniforms.wgsl
var GPUSplatUniformsSource string

// GPUSortParamsSource is the canonical WGSL definition of the SortParams struct.
// Matches GPUSortParams layout exactly (48 bytes).
//
//go:embed assets/sort_params.wgsl
var GPUSortParamsSource string

// GPUSplatEntry is the GPU-aligned per-splat record read by the render shader.
// The scale components ride in the padding slots of the vec3 fields.
// Size: 64 bytes (WGSL aligned).
type GPUSplatEntry struct {
	Center       [3]float32 // offset  0
	Depth        float32    // offset 12
	Color        [4]float32 // offset 16
	Normal       [3]float32 // offset 32
	ScaleX       float32    // offset 44
	EllipseBasis [3]float32 // offset 48
	ScaleY       float32    // offset 60
}

// NewGPUSplatEntry converts a Splat into its GPU entry.
//
// Parameters:
//   - s: the source splat
//
// Returns:
//   - GPUSplatEntry: the packed entry
func NewGPUSplatEntry(s *Splat) GPUSplatEntry {
	return GPUSplatEntry{
		Center:       s.Center,
		Depth:        s.Depth,
		Color:        s.Color,
		Normal:       s.Normal,
		ScaleX:       s.Scale[0],
		EllipseBasis: s.EllipseBasis,
		ScaleY:       s.Scale[1],
	}
}

// Size returns the size of the GPUSplatEntry struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (64)
func (g *GPUSplatEntry) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUSplatEntry struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 64-byte buffer ready for GPU upload
func (g *GPUSplatEntry) Marshal() []byte {
	buf := make([]byte, g.Size())
	g.MarshalTo(buf)
	return buf
}

// MarshalTo serializes the entry into dst, which must hold at least 64 bytes.
// Used to pack whole entry arrays without a per-splat allocation.
func (g *GPUSplatEntry) MarshalTo(dst []byte) {
	putFloats(dst[0:], g.Center[:]...)
	putFloats(dst[12:], g.Depth)
	putFloats(dst[16:], g.Color[:]...)
	putFloats(dst[32:], g.Normal[:]...)
	putFloats(dst[44:], g.ScaleX)
	putFloats(dst[48:], g.EllipseBasis[:]...)
	putFloats(dst[60:], g.ScaleY)
}

// GPUSplatUniforms is the GPU-aligned uniform block shared by the render and sort shaders.
// Matches the WGSL SplatUniforms struct layout exactly (see GPUSplatUniformsSource).
// Size: 160 bytes.
type GPUSplatUniforms struct {
	Projection [16]float32 // offset   0: column-major projection matrix
	View       [16]float32 // offset  64: column-major view matrix
	Params     [4]float32  // offset 128: z_near, z_far, frustum_tolerance, ellipse_margin
	Counts     [4]float32  // offset 144: splat_scale, splat_count, visible_count, quad_extent
}

// NewGPUSplatUniforms packs the per-frame uniform block.
//
// Parameters:
//   - projection, view: the camera matrices
//   - zNear, zFar: the camera clip planes
//   - tolerance, margin, scale: frustum tolerance, ellipse margin and splat scale from config
//   - splatCount, visibleCount: total and post-cull splat counts
//
// Returns:
//   - GPUSplatUniforms: the uniform block
func NewGPUSplatUniforms(projection, view mgl32.Mat4, zNear, zFar, tolerance, margin, scale float32, splatCount, visibleCount int) GPUSplatUniforms {
	return GPUSplatUniforms{
		Projection: projection,
		View:       view,
		Params:     [4]float32{zNear, zFar, tolerance, margin},
		Counts:     [4]float32{scale, float32(splatCount), float32(visibleCount), 0},
	}
}

// QuadExtentIndex is the Counts slot holding the quad extent. The draw expands each
// instance to a quad of this size in splat units; 0 collapses it to a point.
const QuadExtentIndex = 3

// SetQuadExtent sets the quad extent read by the vertex shader.
func (g *GPUSplatUniforms) SetQuadExtent(extent float32) {
	g.Counts[QuadExtentIndex] = extent
}

// Size returns the size of the GPUSplatUniforms struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (160)
func (g *GPUSplatUniforms) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUSplatUniforms struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 160-byte buffer ready for GPU upload
func (g *GPUSplatUniforms) Marshal() []byte {
	buf := make([]byte, g.Size())
	putFloats(buf[0:], g.Projection[:]...)
	putFloats(buf[64:], g.View[:]...)
	putFloats(buf[128:], g.Params[:]...)
	putFloats(buf[144:], g.Counts[:]...)
	return buf
}

// GPUSortParams carries the per-frame radix sort constants for the three compute passes.
// Round is rewritten on the device before every scatter round, every other field is
// fixed for the frame. Word offsets index the sorting buffer as an array of u32.
// Size: 48 bytes.
type GPUSortParams struct {
	Round           uint32 // offset  0: current digit place for the scatter pass
	EntryCount      uint32 // offset  4: number of (key, index) pairs to sort
	TileCount       uint32 // offset  8: ceil(EntryCount / workgroup entries)
	RadixBits       uint32 // offset 12
	RadixBase       uint32 // offset 16
	DigitPlaces     uint32 // offset 20
	MaxTiles        uint32 // offset 24: tile stride of the status region
	StatusOffset    uint32 // offset 28
	HistogramOffset uint32 // offset 32
	CounterOffset   uint32 // offset 36
	IndirectOffset  uint32 // offset 40
	WriteIndirect   uint32 // offset 44: 1 when the prefix pass emits draw args
}

// Size returns the size of the GPUSortParams struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (48)
func (g *GPUSortParams) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUSortParams struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 48-byte buffer ready for GPU upload
func (g *GPUSortParams) Marshal() []byte {
	buf := make([]byte, g.Size())
	putUints(buf, g.Round, g.EntryCount, g.TileCount, g.RadixBits, g.RadixBase, g.DigitPlaces,
		g.MaxTiles, g.StatusOffset, g.HistogramOffset, g.CounterOffset, g.IndirectOffset, g.WriteIndirect)
	return buf
}

// GPUIndirectArgs is the 20-byte argument block at the tail of the sorting buffer.
// The first four words match WebGPU's DrawIndirect layout, the fifth is reserved.
type GPUIndirectArgs struct {
	VertexCount   uint32
	InstanceCount uint32
	FirstVertex   uint32
	FirstInstance uint32
	_reserved     uint32
}

// NewGPUIndirectArgs returns the draw arguments for a frame with visible splats.
//
// Parameters:
//   - visible: number of visible splats (instance count)
//
// Returns:
//   - GPUIndirectArgs: {6, visible, 0, 0, 0}
func NewGPUIndirectArgs(visible uint32) GPUIndirectArgs {
	return GPUIndirectArgs{VertexCount: IndirectVertexCount, InstanceCount: visible}
}

// Size returns the size of the GPUIndirectArgs struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (20)
func (g *GPUIndirectArgs) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUIndirectArgs struct into a byte buffer.
//
// Returns:
//   - []byte: 20-byte buffer
func (g *GPUIndirectArgs) Marshal() []byte {
	buf := make([]byte, g.Size())
	putUints(buf, g.VertexCount, g.InstanceCount, g.FirstVertex, g.FirstInstance, 0)
	return buf
}

// SHCoefficientCount returns the number of spherical harmonic coefficients per splat for an order.
func SHCoefficientCount(order uint32) int {
	return int((order + 1) * (order + 1))
}

// MarshalSHCoefficients derives the color_sh coefficients for one splat and writes
// them into dst as vec4<f32> values (rgb, padding). Only the DC band is populated,
// reconstructed so that evaluating band 0 returns the base color; higher bands are zero.
//
// Parameters:
//   - dst: destination buffer, at least SHCoefficientCount(order) * 16 bytes
//   - color: the splat base color
//   - order: the spherical harmonic order
func MarshalSHCoefficients(dst []byte, color mgl32.Vec4, order uint32) {
	putFloats(dst,
		(color[0]-0.5)/SHC0,
		(color[1]-0.5)/SHC0,
		(color[2]-0.5)/SHC0,
		0,
	)
	n := SHCoefficientCount(order) * 16
	clear(dst[16:n])
}

func putFloats(dst []byte, values ...float32) {
	for i, v := range values {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
	}
}

func putUints(dst []byte, values ...uint32) {
	for i, v := range values {
		binary.LittleEndian.PutUint32(dst[i*4:], v)
	}
}
