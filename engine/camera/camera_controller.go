package camera

import "github.com/go-gl/mathgl/mgl32"

// CameraController produces the camera position and target each frame. The
// orbit implementation keeps the camera on a sphere around the target and lets
// the target itself be panned along the camera's local axes.
type CameraController interface {
	// Position returns the current camera position.
	//
	// Returns:
	//   - mgl32.Vec3: the world-space camera position
	Position() mgl32.Vec3

	// Target returns the current orbit target.
	//
	// Returns:
	//   - mgl32.Vec3: the world-space look-at point
	Target() mgl32.Vec3

	// SetTarget moves the orbit target and recomputes the position.
	//
	// Parameters:
	//   - target: the new look-at point
	SetTarget(target mgl32.Vec3)

	// Zoom moves the camera toward (positive delta) or away from the target,
	// clamped to the radius bounds.
	//
	// Parameters:
	//   - delta: zoom amount in scroll units
	Zoom(delta float32)

	// OrbitLeft rotates the camera left around the target by one orbit step.
	OrbitLeft()

	// OrbitRight rotates the camera right around the target by one orbit step.
	OrbitRight()

	// OrbitUp raises the camera by one orbit step, clamped to the elevation bounds.
	OrbitUp()

	// OrbitDown lowers the camera by one orbit step, clamped to the elevation bounds.
	OrbitDown()

	// Radius returns the distance between camera and target.
	Radius() float32

	// SetRadius sets the orbit distance, clamped to the radius bounds.
	SetRadius(radius float32)

	// Azimuth returns the horizontal orbit angle in radians (0 = +Z).
	Azimuth() float32

	// SetAzimuth sets the horizontal orbit angle in radians.
	SetAzimuth(azimuth float32)

	// Elevation returns the vertical orbit angle in radians (0 = horizontal).
	Elevation() float32

	// SetElevation sets the vertical orbit angle, clamped to the elevation bounds.
	SetElevation(elevation float32)

	// PanRight translates camera and target along the camera's right axis.
	//
	// Parameters:
	//   - delta: distance in pan units (negative pans left)
	PanRight(delta float32)

	// PanUp translates camera and target along the camera's up axis.
	//
	// Parameters:
	//   - delta: distance in pan units (negative pans down)
	PanUp(delta float32)

	// PanForward translates camera and target along the viewing direction.
	//
	// Parameters:
	//   - delta: distance in pan units (negative moves back)
	PanForward(delta float32)

	// Reset restores the orbit parameters the controller was created with.
	Reset()
}
