package common

import "github.com/go-gl/mathgl/mgl32"

// InClipBounds reports whether a clip-space position lies inside the culling volume.
// The test is applied to raw clip coordinates (no perspective divide): z must lie
// strictly inside (0, 1) and |x|, |y| must be strictly below tolerance.
// NaN components never pass because every comparison against NaN is false.
//
// Parameters:
//   - clip: the clip-space position (projection * view * [p, 1]).xyz
//   - tolerance: the lateral half-extent of the accepted region
//
// Returns:
//   - bool: true if the position should be kept
func InClipBounds(clip mgl32.Vec3, tolerance float32) bool {
	if !(clip[2] > 0 && clip[2] < 1) {
		return false
	}
	return clip[0] > -tolerance && clip[0] < tolerance &&
		clip[1] > -tolerance && clip[1] < tolerance
}
