package engine

import (
	"github.com/Carmen-Shannon/oxy-splat/engine/renderer"
	"github.com/Carmen-Shannon/oxy-splat/engine/scene"
	"github.com/Carmen-Shannon/oxy-splat/engine/window"
)

// EngineBuilderOption is a functional option used to configure an Engine in NewEngine.
type EngineBuilderOption func(*engine)

// WithWindow sets the window the engine runs its event loop on.
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithRenderer sets the renderer that draws every frame. The engine does not close it.
func WithRenderer(r renderer.Renderer) EngineBuilderOption {
	return func(e *engine) {
		e.renderer = r
	}
}

// WithScene sets the scene to render.
func WithScene(s scene.Scene) EngineBuilderOption {
	return func(e *engine) {
		e.scene = s
	}
}

// WithProfiling sets whether frame statistics are logged once per second.
//
// Parameters:
//   - enabled: true to start with the profiler on
//
// Returns:
//   - EngineBuilderOption: a function that sets the profiler state
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithTickRate sets the input tick frequency. Non-positive values select 60.
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		e.SetTickRate(fps)
	}
}

// WithDragSpeed sets the camera motion per dragged pixel: radians when orbiting and
// scene units when panning.
func WithDragSpeed(speed float32) EngineBuilderOption {
	return func(e *engine) {
		if speed > 0 {
			e.dragSpeed = speed
		}
	}
}
