package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-splat/common"
	"github.com/Carmen-Shannon/oxy-splat/engine/camera"
	"github.com/Carmen-Shannon/oxy-splat/engine/config"
	"github.com/Carmen-Shannon/oxy-splat/engine/profiler"
	"github.com/Carmen-Shannon/oxy-splat/engine/renderer"
	"github.com/Carmen-Shannon/oxy-splat/engine/scene"
	"github.com/Carmen-Shannon/oxy-splat/engine/window"
)

// ErrNotConfigured is returned by Run when the engine has no window, renderer or scene.
var ErrNotConfigured = errors.New("engine needs a window, a renderer and a scene")

// strategyKeys maps the number row to depth sorting strategies.
var strategyKeys = map[uint32]config.DepthSorting{
	common.Key1: config.DepthSortingCPU,
	common.Key2: config.DepthSortingGPU,
	common.Key3: config.DepthSortingGPUIndirectDraw,
}

// engine is the implementation of the Engine interface.
type engine struct {
	mu sync.Mutex

	window   window.Window
	renderer renderer.Renderer
	scene    scene.Scene

	profiler         *profiler.Profiler
	profilingEnabled bool

	tickRate         time.Duration
	renderFrameLimit time.Duration
	tickCallback     func(deltaTime float32)

	// dragSpeed is radians per pixel for orbit drags and scene units per pixel for pans.
	dragSpeed float32

	// held is the set of keys currently down, consumed by the tick loop.
	held map[uint32]bool

	// pendingSorting is applied by the render loop with Rebuild.
	pendingSorting *config.DepthSorting

	lastFrame renderer.FrameStats
	frameErr  error

	quit     chan struct{}
	quitOnce sync.Once
	wg       sync.WaitGroup
}

// Engine drives an interactive splat viewer: it renders the scene once per window
// event loop iteration, turns input into orbit camera motion on a fixed tick and
// optionally logs frame statistics.
type Engine interface {
	Window() window.Window
	Renderer() renderer.Renderer
	Scene() scene.Scene

	// SetScene replaces the rendered scene. The renderer rebinds it on the next frame.
	SetScene(s scene.Scene)

	EnableProfiler()
	DisableProfiler()

	// SetTickRate sets the input tick frequency used by the next Run. Non-positive
	// values select 60.
	SetTickRate(fps float64)

	// SetTickCallback sets a function called on every input tick after held keys
	// were applied.
	//
	// Parameters:
	//   - callback: function receiving the seconds since the previous tick
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit caps the render rate. Non-positive values uncap it.
	SetRenderFrameLimit(fps float64)

	// SetDepthSorting switches the sorting strategy. The switch is applied on the
	// render thread before the next frame by rebuilding the renderer.
	SetDepthSorting(d config.DepthSorting)

	// LastFrame returns the statistics of the most recent rendered frame.
	LastFrame() renderer.FrameStats

	// Run blocks on the window event loop until the window closes, ctx is done or
	// Quit is called. It must be called on the thread that created the window.
	//
	// Parameters:
	//   - ctx: cancels the run
	//
	// Returns:
	//   - error: the first render error, or nil on a clean shutdown
	Run(ctx context.Context) error

	// Quit stops Run. It is safe to call more than once and from any goroutine.
	Quit()
}

var _ Engine = &engine{}

// NewEngine creates an Engine and wires the window's input and resize events into
// the renderer and the scene camera.
//
// Parameters:
//   - options: functional options to configure the engine
//
// Returns:
//   - Engine: the configured engine, not yet running
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		profiler:  profiler.NewProfiler(),
		tickRate:  time.Second / 60,
		dragSpeed: 0.005,
		held:      make(map[uint32]bool),
		quit:      make(chan struct{}),
	}
	for _, opt := range options {
		opt(e)
	}

	if e.window != nil {
		e.window.SetResizeCallback(e.handleResize)
		e.window.SetScrollCallback(e.handleScroll)
		e.window.SetKeyCallback(e.handleKey)
		e.window.SetDragCallback(e.handleDrag)
	}
	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) Scene() scene.Scene {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scene
}

func (e *engine) SetScene(s scene.Scene) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scene = s
}

func (e *engine) EnableProfiler() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profilingEnabled = true
}

func (e *engine) DisableProfiler() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profilingEnabled = false
}

func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tickRate = time.Duration(float64(time.Second) / fps)
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tickCallback = callback
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}

func (e *engine) SetDepthSorting(d config.DepthSorting) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pendingSorting = &d
}

func (e *engine) LastFrame() renderer.FrameStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastFrame
}

func (e *engine) Run(ctx context.Context) error {
	if e.window == nil || e.renderer == nil || e.Scene() == nil {
		return ErrNotConfigured
	}

	e.wg.Add(2)
	go e.handleTicks()
	go func() {
		defer e.wg.Done()
		select {
		case <-ctx.Done():
			e.Quit()
		case <-e.quit:
		}
	}()

	e.window.SetUpdateCallback(e.renderFrame)
	e.window.ProcessMessages()

	e.Quit()
	e.wg.Wait()

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frameErr
}

func (e *engine) Quit() {
	e.quitOnce.Do(func() {
		close(e.quit)
	})
}

// renderFrame runs on the window thread once per event loop iteration. A render
// error is kept for Run and closes the window.
func (e *engine) renderFrame() {
	select {
	case <-e.quit:
		e.window.RequestClose()
		return
	default:
	}
	start := time.Now()

	if err := e.applyPendingSorting(); err != nil {
		e.fail(err)
		return
	}

	stats, err := e.renderer.RenderFrame(e.Scene())
	if err != nil {
		e.fail(fmt.Errorf("failed to render frame: %w", err))
		return
	}

	e.mu.Lock()
	e.lastFrame = stats
	profiling := e.profilingEnabled
	limit := e.renderFrameLimit
	e.mu.Unlock()

	if profiling {
		e.profiler.Tick(profiler.Sample{
			Visible:  stats.VisibleCount,
			Total:    stats.SplatCount,
			Strategy: stats.Strategy.String(),
		})
	}

	if limit > 0 {
		if remaining := limit - time.Since(start); remaining > 0 {
			time.Sleep(remaining)
		}
	}
}

// applyPendingSorting rebuilds the renderer with a queued strategy switch. An
// unchanged strategy is dropped without a rebuild.
func (e *engine) applyPendingSorting() error {
	e.mu.Lock()
	pending := e.pendingSorting
	e.pendingSorting = nil
	e.mu.Unlock()

	if pending == nil {
		return nil
	}
	cfg := e.renderer.Config()
	if cfg.DepthSorting == *pending {
		return nil
	}
	cfg.DepthSorting = *pending
	if err := e.renderer.Rebuild(cfg); err != nil {
		return fmt.Errorf("failed to switch depth sorting to %s: %w", *pending, err)
	}
	common.Logf("[Engine] depth sorting switched to %s", *pending)
	return nil
}

func (e *engine) fail(err error) {
	e.mu.Lock()
	if e.frameErr == nil {
		e.frameErr = err
	}
	e.mu.Unlock()
	e.Quit()
	e.window.RequestClose()
}

// handleTicks applies held keys to the camera controller at the tick rate until
// Quit.
func (e *engine) handleTicks() {
	defer e.wg.Done()

	e.mu.Lock()
	rate := e.tickRate
	e.mu.Unlock()

	ticker := time.NewTicker(rate)
	defer ticker.Stop()
	lastTick := time.Now()

	for {
		select {
		case <-e.quit:
			return
		case now := <-ticker.C:
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now
			e.tick(dt)
		}
	}
}

// tick applies one step of held-key camera motion and calls the tick callback.
func (e *engine) tick(dt float32) {
	e.mu.Lock()
	held := make([]uint32, 0, len(e.held))
	for k, down := range e.held {
		if down {
			held = append(held, k)
		}
	}
	callback := e.tickCallback
	e.mu.Unlock()

	if ctrl := e.controller(); ctrl != nil {
		for _, k := range held {
			switch k {
			case common.KeyW:
				ctrl.OrbitUp()
			case common.KeyS:
				ctrl.OrbitDown()
			case common.KeyA:
				ctrl.OrbitLeft()
			case common.KeyD:
				ctrl.OrbitRight()
			case common.KeyQ:
				ctrl.Zoom(1)
			case common.KeyE:
				ctrl.Zoom(-1)
			case common.KeyUp:
				ctrl.PanForward(dt)
			case common.KeyDown:
				ctrl.PanForward(-dt)
			case common.KeyLeft:
				ctrl.PanRight(-dt)
			case common.KeyRight:
				ctrl.PanRight(dt)
			}
		}
	}

	if callback != nil {
		callback(dt)
	}
}

// controller returns the scene camera's orbit controller, or nil.
func (e *engine) controller() camera.CameraController {
	s := e.Scene()
	if s == nil || s.Camera() == nil {
		return nil
	}
	return s.Camera().Controller()
}

func (e *engine) handleResize(width, height int) {
	if err := e.renderer.Resize(width, height); err != nil {
		common.Logf("[Engine] resize to %dx%d failed: %v", width, height, err)
	}
	if s := e.Scene(); s != nil && s.Camera() != nil && height > 0 {
		s.Camera().SetAspect(float32(width) / float32(height))
	}
}

func (e *engine) handleScroll(delta float32) {
	if ctrl := e.controller(); ctrl != nil {
		ctrl.Zoom(delta)
	}
}

// handleKey tracks held keys for the tick loop. The number row switches the depth
// sorting strategy and R resets the orbit.
func (e *engine) handleKey(keyCode uint32, pressed bool) {
	e.mu.Lock()
	e.held[keyCode] = pressed
	e.mu.Unlock()

	if !pressed {
		return
	}
	if d, ok := strategyKeys[keyCode]; ok {
		e.SetDepthSorting(d)
		return
	}
	if keyCode == common.KeyR {
		if ctrl := e.controller(); ctrl != nil {
			ctrl.Reset()
		}
	}
}

// handleDrag orbits on a left drag and pans on the other buttons.
func (e *engine) handleDrag(button window.MouseButton, dx, dy float32) {
	ctrl := e.controller()
	if ctrl == nil {
		return
	}
	switch button {
	case window.MouseButtonLeft:
		ctrl.SetAzimuth(ctrl.Azimuth() + dx*e.dragSpeed)
		ctrl.SetElevation(ctrl.Elevation() + dy*e.dragSpeed)
	default:
		ctrl.PanRight(-dx * e.dragSpeed)
		ctrl.PanUp(dy * e.dragSpeed)
	}
}
