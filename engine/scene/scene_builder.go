package scene

import (
	"github.com/Carmen-Shannon/oxy-splat/engine/loader"
	"github.com/Carmen-Shannon/oxy-splat/engine/splat"
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithLoader sets the loader used by Load and LoadBytes, and whose cap SetSplats
// enforces. Defaults to loader.NewLoader() with no cap.
//
// Parameters:
//   - l: the loader
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithLoader(l loader.Loader) SceneBuilderOption {
	return func(s *scene) {
		s.ldr = l
	}
}

// WithSplats seeds the scene with a copy of splats. The loader cap is not applied.
//
// Parameters:
//   - splats: the initial splats
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithSplats(splats []splat.Splat) SceneBuilderOption {
	return func(s *scene) {
		s.splats = make([]splat.Splat, len(splats))
		copy(s.splats, splats)
		s.splatCount = len(s.splats)
	}
}

// WithComputeWorkers sets the number of worker goroutines used to refresh depths
// and cull. The default of 1 runs both on the calling goroutine. Chunks are never
// smaller than a few thousand splats, so small scenes stay single threaded.
//
// Parameters:
//   - n: the number of compute workers (minimum 1)
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithComputeWorkers(n int) SceneBuilderOption {
	return func(s *scene) {
		if n < 1 {
			n = 1
		}
		s.computeWorkers = n
	}
}
