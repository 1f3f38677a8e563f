package camera

import "github.com/go-gl/mathgl/mgl32"

// Snapshot is an immutable copy of a camera's matrices and clip planes. It is
// taken once per frame so that depth refresh and culling see a consistent camera
// without contending on the camera mutex.
type Snapshot struct {
	Projection     mgl32.Mat4
	View           mgl32.Mat4
	ViewProjection mgl32.Mat4
	Near           float32
	Far            float32
}

func newSnapshot(projection, view mgl32.Mat4, near, far float32) Snapshot {
	return Snapshot{
		Projection:     projection,
		View:           view,
		ViewProjection: projection.Mul4(view),
		Near:           near,
		Far:            far,
	}
}

// NewSnapshot builds a Snapshot from explicit matrices.
//
// Parameters:
//   - projection: the projection matrix
//   - view: the view matrix
//   - near, far: the clip plane distances
//
// Returns:
//   - Snapshot: the snapshot
func NewSnapshot(projection, view mgl32.Mat4, near, far float32) Snapshot {
	return newSnapshot(projection, view, near, far)
}

// ClipSpacePosition returns (projection * view * [p, 1]).xyz with no perspective divide.
func (s *Snapshot) ClipSpacePosition(p mgl32.Vec3) mgl32.Vec3 {
	return s.ViewProjection.Mul4x1(p.Vec4(1)).Vec3()
}

// ViewDepth returns -(view * [p, 1]).z, the distance in front of the camera.
func (s *Snapshot) ViewDepth(p mgl32.Vec3) float32 {
	return -s.View.Mul4x1(p.Vec4(1))[2]
}

// ClipSpace4 returns the full homogeneous clip-space position projection * view * [p, 1].
func (s *Snapshot) ClipSpace4(p mgl32.Vec3) mgl32.Vec4 {
	return s.ViewProjection.Mul4x1(p.Vec4(1))
}
