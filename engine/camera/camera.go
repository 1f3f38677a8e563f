package camera

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-splat/common"
)

type cameraImpl struct {
	mu *sync.Mutex

	eye    mgl32.Vec3
	target mgl32.Vec3
	up     mgl32.Vec3

	fov    float32
	aspect float32
	near   float32
	far    float32

	view       mgl32.Mat4
	projection mgl32.Mat4

	controller CameraController
}

// Camera holds the perspective settings and the view/projection matrices used to
// cull, order and draw splats. The view comes from the attached CameraController
// when one is set, otherwise from the camera's own eye and target.
type Camera interface {
	// Eye returns the camera position in world space.
	//
	// Returns:
	//   - mgl32.Vec3: the eye position
	Eye() mgl32.Vec3

	// Target returns the world-space point the camera looks at.
	//
	// Returns:
	//   - mgl32.Vec3: the look-at target
	Target() mgl32.Vec3

	// Up returns the camera's up vector.
	//
	// Returns:
	//   - mgl32.Vec3: the up vector
	Up() mgl32.Vec3

	// Fov returns the vertical field of view in radians.
	Fov() float32

	// Aspect returns the aspect ratio (width / height).
	Aspect() float32

	// Near returns the near clipping plane distance.
	Near() float32

	// Far returns the far clipping plane distance.
	Far() float32

	// View returns the current column-major view matrix.
	View() mgl32.Mat4

	// Projection returns the current column-major projection matrix.
	Projection() mgl32.Mat4

	// Snapshot captures the matrices and clip planes in a lock-free value that can be
	// shared across workers for the duration of a frame.
	//
	// Returns:
	//   - Snapshot: an immutable copy of the camera state
	Snapshot() Snapshot

	// ClipSpacePosition transforms a world-space point by projection * view and returns
	// the xyz of the result without a perspective divide.
	//
	// Parameters:
	//   - p: the world-space point
	//
	// Returns:
	//   - mgl32.Vec3: the raw clip-space position
	ClipSpacePosition(p mgl32.Vec3) mgl32.Vec3

	// ViewDepth returns the distance of a world-space point along the view direction.
	// Points in front of the camera have positive depth.
	//
	// Parameters:
	//   - p: the world-space point
	//
	// Returns:
	//   - float32: the view-space depth
	ViewDepth(p mgl32.Vec3) float32

	// LookAt places the camera at eye looking at target and recomputes the view.
	//
	// Parameters:
	//   - eye: the camera position
	//   - target: the point to look at
	LookAt(eye, target mgl32.Vec3)

	// SetUp sets the camera's up vector and recomputes the view.
	SetUp(up mgl32.Vec3)

	// SetFov sets the vertical field of view in radians and recomputes the projection.
	SetFov(fov float32)

	// SetAspect sets the aspect ratio (width / height) and recomputes the projection.
	SetAspect(aspect float32)

	// SetNear sets the near clipping plane distance and recomputes the projection.
	SetNear(near float32)

	// SetFar sets the far clipping plane distance and recomputes the projection.
	SetFar(far float32)

	// SetMatrices overrides both matrices directly. The values stay in effect until a
	// setter or Update recomputes them.
	//
	// Parameters:
	//   - projection: the projection matrix
	//   - view: the view matrix
	SetMatrices(projection, view mgl32.Mat4)

	// Controller returns the attached CameraController, or nil.
	Controller() CameraController

	// SetController attaches a CameraController to the camera.
	//
	// Parameters:
	//   - ctrl: the controller to attach, nil to detach
	SetController(ctrl CameraController)

	// Update reads position and target from the controller and recomputes the
	// matrices. Should be called once per frame. Does nothing without a controller.
	Update()
}

var _ Camera = &cameraImpl{}

// NewCamera creates a new Camera with a 45 degree, 16:9 perspective projection
// (near 0.1, far 100) positioned at (0, 0, 5) looking at the origin.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:     &sync.Mutex{},
		eye:    mgl32.Vec3{0, 0, 5},
		up:     mgl32.Vec3{0, 1, 0},
		fov:    mgl32.DegToRad(45),
		aspect: 16.0 / 9.0,
		near:   0.1,
		far:    100.0,
	}
	for _, option := range options {
		option(c)
	}
	c.updateMatrices()
	return c
}

func (c *cameraImpl) Eye() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eye
}

func (c *cameraImpl) Target() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

func (c *cameraImpl) Up() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.up
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) View() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

func (c *cameraImpl) Projection() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projection
}

func (c *cameraImpl) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return newSnapshot(c.projection, c.view, c.near, c.far)
}

func (c *cameraImpl) ClipSpacePosition(p mgl32.Vec3) mgl32.Vec3 {
	s := c.Snapshot()
	return s.ClipSpacePosition(p)
}

func (c *cameraImpl) ViewDepth(p mgl32.Vec3) float32 {
	s := c.Snapshot()
	return s.ViewDepth(p)
}

func (c *cameraImpl) LookAt(eye, target mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eye = eye
	c.target = target
	c.updateMatrices()
}

func (c *cameraImpl) SetUp(up mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.up = up
	c.updateMatrices()
}

func (c *cameraImpl) SetFov(fov float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov = fov
	c.updateMatrices()
}

func (c *cameraImpl) SetAspect(aspect float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = aspect
	c.updateMatrices()
}

func (c *cameraImpl) SetNear(near float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.near = near
	c.updateMatrices()
}

func (c *cameraImpl) SetFar(far float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.far = far
	c.updateMatrices()
}

func (c *cameraImpl) SetMatrices(projection, view mgl32.Mat4) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.projection = projection
	c.view = view
}

func (c *cameraImpl) Controller() CameraController {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controller
}

func (c *cameraImpl) SetController(ctrl CameraController) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controller = ctrl
}

func (c *cameraImpl) Update() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.controller == nil {
		return
	}
	c.updateMatrices()
}

// updateMatrices recalculates the view and projection matrices, pulling eye and
// target from the controller when one is attached.
// Caller must hold the mutex.
func (c *cameraImpl) updateMatrices() {
	if c.controller != nil {
		c.eye = c.controller.Position()
		c.target = c.controller.Target()
	}
	c.view = mgl32.LookAtV(c.eye, c.target, c.up)
	c.projection = common.Perspective(c.fov, c.aspect, c.near, c.far)
}
