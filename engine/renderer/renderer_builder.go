package renderer

import (
	"github.com/Carmen-Shannon/oxy-splat/engine/renderer/pipeline"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithPipeline pre-registers a Pipeline in the renderer's pipeline cache under its key.
// InitPipelines overwrites cached pipelines it builds itself.
//
// Parameters:
//   - p: the Pipeline to cache
//
// Returns:
//   - RendererBuilderOption: a function that applies the pipeline option to a renderer
func WithPipeline(p pipeline.Pipeline) RendererBuilderOption {
	return func(r *renderer) {
		r.pipelineCache[p.PipelineKey()] = p
	}
}

// WithForceSoftwareRenderer requests the fallback (software) adapter when the renderer
// creates its own backend.
//
// Parameters:
//   - force: whether to force the fallback adapter
//
// Returns:
//   - RendererBuilderOption: a function that applies the adapter option to a renderer
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return func(r *renderer) {
		r.forceFallbackAdapter = force
	}
}

// WithShaderValidation compiles every shader with naga before pipeline creation and
// logs failures as warnings.
func WithShaderValidation(enabled bool) RendererBuilderOption {
	return func(r *renderer) {
		r.validateShaders = enabled
	}
}
