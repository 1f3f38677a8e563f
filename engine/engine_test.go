package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-splat/common"
	"github.com/Carmen-Shannon/oxy-splat/engine/camera"
	"github.com/Carmen-Shannon/oxy-splat/engine/config"
	"github.com/Carmen-Shannon/oxy-splat/engine/renderer"
	"github.com/Carmen-Shannon/oxy-splat/engine/scene"
	"github.com/Carmen-Shannon/oxy-splat/engine/window"
)

// fakeWindow runs the update callback until it is asked to close or maxFrames
// iterations have run.
type fakeWindow struct {
	maxFrames int
	closed    atomic.Bool

	onUpdate func()
	onResize func(width, height int)
	onScroll func(delta float32)
	onKey    func(keyCode uint32, pressed bool)
	onDrag   func(button window.MouseButton, dx, dy float32)
}

func (w *fakeWindow) SetUpdateCallback(cb func())                  { w.onUpdate = cb }
func (w *fakeWindow) SetResizeCallback(cb func(width, height int)) { w.onResize = cb }
func (w *fakeWindow) SetScrollCallback(cb func(delta float32))     { w.onScroll = cb }
func (w *fakeWindow) SetKeyCallback(cb func(uint32, bool))         { w.onKey = cb }
func (w *fakeWindow) SetDragCallback(cb func(window.MouseButton, float32, float32)) {
	w.onDrag = cb
}
func (w *fakeWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor { return nil }
func (w *fakeWindow) FramebufferSize() (int, int)                { return 800, 600 }
func (w *fakeWindow) IsRunning() bool                            { return !w.closed.Load() }
func (w *fakeWindow) RequestClose()                              { w.closed.Store(true) }
func (w *fakeWindow) Close() error                               { return nil }

func (w *fakeWindow) ProcessMessages() {
	for i := 0; i < w.maxFrames && w.IsRunning(); i++ {
		if w.onUpdate != nil {
			w.onUpdate()
		}
		time.Sleep(time.Millisecond)
	}
}

// fakeRenderer records frames, rebuilds and resizes. Methods the engine never
// calls are left to the embedded nil interface.
type fakeRenderer struct {
	renderer.Renderer

	mu       sync.Mutex
	cfg      config.Config
	frames   int
	failOn   int
	rebuilds []config.DepthSorting
	resizes  [][2]int
}

func (r *fakeRenderer) Config() config.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

func (r *fakeRenderer) RenderFrame(s scene.Scene) (renderer.FrameStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames++
	if r.failOn > 0 && r.frames == r.failOn {
		return renderer.FrameStats{}, errors.New("device lost")
	}
	return renderer.FrameStats{
		SplatCount:   s.SplatCount(),
		VisibleCount: r.frames,
		Strategy:     r.cfg.DepthSorting,
	}, nil
}

func (r *fakeRenderer) Rebuild(cfg config.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = cfg
	r.rebuilds = append(r.rebuilds, cfg.DepthSorting)
	return nil
}

func (r *fakeRenderer) Resize(width, height int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resizes = append(r.resizes, [2]int{width, height})
	return nil
}

func newTestEngine(t *testing.T, maxFrames int) (*engine, *fakeWindow, *fakeRenderer, camera.Camera) {
	t.Helper()
	common.SetLogger(nil)
	t.Cleanup(func() { common.SetLogger(nil) })

	cam := camera.NewCamera(camera.WithController(camera.NewOrbitController()))
	s := scene.NewScene("test", cam)
	t.Cleanup(s.Close)

	w := &fakeWindow{maxFrames: maxFrames}
	r := &fakeRenderer{cfg: config.Default()}
	e := NewEngine(WithWindow(w), WithRenderer(r), WithScene(s), WithTickRate(1000)).(*engine)
	return e, w, r, cam
}

func TestRunRequiresWindowRendererAndScene(t *testing.T) {
	err := NewEngine().Run(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestRunRendersUntilWindowStops(t *testing.T) {
	e, _, r, _ := newTestEngine(t, 3)

	require.NoError(t, e.Run(context.Background()))

	assert.Equal(t, 3, r.frames)
	assert.Equal(t, 3, e.LastFrame().VisibleCount)
	assert.Equal(t, config.DepthSortingCPU, e.LastFrame().Strategy)
}

func TestRunStopsOnRenderError(t *testing.T) {
	e, w, r, _ := newTestEngine(t, 10)
	r.failOn = 2

	err := e.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to render frame: device lost")
	assert.Equal(t, 2, r.frames)
	assert.True(t, w.closed.Load())
}

func TestRunHonorsContextCancel(t *testing.T) {
	e, w, _, _ := newTestEngine(t, 10000)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, e.Run(ctx))
	assert.True(t, w.closed.Load())
}

func TestQuitIsIdempotent(t *testing.T) {
	e, _, _, _ := newTestEngine(t, 1)
	e.Quit()
	e.Quit()
	require.NoError(t, e.Run(context.Background()))
}

func TestNumberKeysSwitchDepthSorting(t *testing.T) {
	e, w, r, _ := newTestEngine(t, 1)

	w.onKey(common.Key2, true)
	require.NoError(t, e.Run(context.Background()))

	assert.Equal(t, []config.DepthSorting{config.DepthSortingGPU}, r.rebuilds)
	assert.Equal(t, config.DepthSortingGPU, e.LastFrame().Strategy)
}

func TestSameDepthSortingSkipsRebuild(t *testing.T) {
	e, _, r, _ := newTestEngine(t, 1)

	e.SetDepthSorting(config.DepthSortingCPU)
	require.NoError(t, e.Run(context.Background()))
	assert.Empty(t, r.rebuilds)
}

func TestResizeUpdatesRendererAndAspect(t *testing.T) {
	_, w, r, cam := newTestEngine(t, 1)

	w.onResize(1000, 500)

	assert.Equal(t, [][2]int{{1000, 500}}, r.resizes)
	assert.InDelta(t, 2.0, cam.Aspect(), 1e-6)
}

func TestHeldKeysOrbitOnTick(t *testing.T) {
	e, w, _, cam := newTestEngine(t, 1)
	ctrl := cam.Controller()
	start := ctrl.Azimuth()

	var ticks []float32
	e.SetTickCallback(func(dt float32) { ticks = append(ticks, dt) })

	w.onKey(common.KeyD, true)
	e.tick(0.5)
	moved := ctrl.Azimuth()
	assert.Greater(t, moved, start)

	w.onKey(common.KeyD, false)
	e.tick(0.5)
	assert.Equal(t, moved, ctrl.Azimuth())
	assert.Equal(t, []float32{0.5, 0.5}, ticks)
}

func TestScrollZoomsAndResetRestores(t *testing.T) {
	_, w, _, cam := newTestEngine(t, 1)
	ctrl := cam.Controller()
	radius := ctrl.Radius()

	w.onScroll(1)
	assert.Less(t, ctrl.Radius(), radius)

	w.onKey(common.KeyR, true)
	assert.Equal(t, radius, ctrl.Radius())
}

func TestDragOrbitsAndPans(t *testing.T) {
	e, w, _, cam := newTestEngine(t, 1)
	ctrl := cam.Controller()
	azimuth := ctrl.Azimuth()

	w.onDrag(window.MouseButtonLeft, 100, 0)
	assert.InDelta(t, azimuth+100*e.dragSpeed, ctrl.Azimuth(), 1e-6)

	target := ctrl.Target()
	w.onDrag(window.MouseButtonRight, 50, 0)
	assert.NotEqual(t, target, ctrl.Target())
	assert.InDelta(t, 0, ctrl.Target().Sub(target).Y(), 1e-5)
}

func TestSceneWithoutControllerIgnoresInput(t *testing.T) {
	common.SetLogger(nil)
	cam := camera.NewCamera(camera.WithLookAt(mgl32.Vec3{0, 0, 3}, mgl32.Vec3{}))
	s := scene.NewScene("static", cam)
	t.Cleanup(s.Close)
	w := &fakeWindow{maxFrames: 1}
	e := NewEngine(WithWindow(w), WithRenderer(&fakeRenderer{cfg: config.Default()}), WithScene(s)).(*engine)

	w.onScroll(1)
	w.onDrag(window.MouseButtonLeft, 10, 10)
	w.onKey(common.KeyW, true)
	e.tick(0.1)

	assert.Equal(t, mgl32.Vec3{0, 0, 3}, cam.Eye())
}
