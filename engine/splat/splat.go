// Package splat defines the Splat record shared by the loaders, the scene and the
// renderer, together with the GPU-aligned records derived from it at upload time.
package splat

import "github.com/go-gl/mathgl/mgl32"

const (
	// RawFloats is the number of float32 values in one raw binary splat record.
	RawFloats = 32

	// RawStride is the size in bytes of one raw binary splat record.
	RawStride = RawFloats * 4
)

// Splat is one renderable Gaussian primitive. Every field except Depth is fixed
// once the splat is loaded; Depth caches the view-space distance and is refreshed
// every frame before any ordering decision is made.
type Splat struct {
	Center       mgl32.Vec3 // world-space position
	Color        mgl32.Vec4 // RGBA, alpha is opacity
	Depth        float32    // cached view-space distance
	Scale        mgl32.Vec2 // footprint half-extents
	Normal       mgl32.Vec3
	EllipseBasis mgl32.Vec3 // major axis of the screen-space ellipse
	ModelMatrix  mgl32.Mat4 // column-major
}

// Default returns a Splat at the origin carrying the attribute defaults applied to
// formats that only provide position and color.
//
// Returns:
//   - Splat: white, opaque, 0.05 scale, +Y normal, +X basis, identity model matrix
func Default() Splat {
	return Splat{
		Color:        mgl32.Vec4{1, 1, 1, 1},
		Scale:        mgl32.Vec2{0.05, 0.05},
		Normal:       mgl32.Vec3{0, 1, 0},
		EllipseBasis: mgl32.Vec3{1, 0, 0},
		ModelMatrix:  mgl32.Ident4(),
	}
}

// Floats flattens the splat into its raw record order:
// center(3) color(4) depth(1) scale(2) normal(3) ellipse_basis(3) model_matrix(16).
//
// Returns:
//   - [RawFloats]float32: the flattened record
func (s *Splat) Floats() [RawFloats]float32 {
	var out [RawFloats]float32
	n := copy(out[:], s.Center[:])
	n += copy(out[n:], s.Color[:])
	out[n] = s.Depth
	n++
	n += copy(out[n:], s.Scale[:])
	n += copy(out[n:], s.Normal[:])
	n += copy(out[n:], s.EllipseBasis[:])
	copy(out[n:], s.ModelMatrix[:])
	return out
}

// FromFloats rebuilds a Splat from a flattened raw record. See Floats for the order.
//
// Parameters:
//   - f: the 32 raw values
//
// Returns:
//   - Splat: the decoded splat
func FromFloats(f [RawFloats]float32) Splat {
	var s Splat
	copy(s.Center[:], f[0:3])
	copy(s.Color[:], f[3:7])
	s.Depth = f[7]
	copy(s.Scale[:], f[8:10])
	copy(s.Normal[:], f[10:13])
	copy(s.EllipseBasis[:], f[13:16])
	copy(s.ModelMatrix[:], f[16:RawFloats])
	return s
}
