package renderer

import (
	"github.com/cogentcore/webgpu/wgpu"

	"github.com/Carmen-Shannon/oxy-splat/engine/config"
	"github.com/Carmen-Shannon/oxy-splat/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-splat/engine/renderer/pipeline"
)

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend.
	BackendTypeWGPU RendererBackendType = iota
)

// MSAASampleCount is the sample count of the color and depth attachments. WebGPU
// guarantees support for 1 (off) and 4.
type MSAASampleCount uint32

const (
	// MSAAOff renders straight into the swapchain texture.
	MSAAOff MSAASampleCount = 1

	// MSAA4x renders into a 4x multisampled target resolved into the swapchain texture.
	MSAA4x MSAASampleCount = 4
)

// RendererBackend records and submits device work for the Renderer. A frame is one
// command stream: BeginFrame, any number of buffer and compute commands, one render
// pass, EndFrame and Present. Commands execute in recording order.
type RendererBackend interface {
	// ConfigureSurface (re)configures the presentation surface and the frame's depth
	// and multisample targets.
	//
	// Parameters:
	//   - width: the surface width in pixels
	//   - height: the surface height in pixels
	//
	// Returns:
	//   - error: error if a target texture could not be created
	ConfigureSurface(width, height int) error

	// SetPresentMode selects the present mode applied by the next ConfigureSurface.
	SetPresentMode(mode config.PresentMode)

	// RegisterRenderPipeline creates the device render pipeline for p and stores it on p.
	//
	// Parameters:
	//   - p: a render pipeline with vertex and fragment shaders
	//
	// Returns:
	//   - error: error if a module, layout or the pipeline could not be created
	RegisterRenderPipeline(p pipeline.Pipeline) error

	// RegisterComputePipeline creates the device compute pipeline for p and stores it on p.
	//
	// Parameters:
	//   - p: a compute pipeline with a compute shader
	//
	// Returns:
	//   - error: error if a module, layout or the pipeline could not be created
	RegisterComputePipeline(p pipeline.Pipeline) error

	// InitBindGroup creates the provider's layout, any buffer the provider does not
	// already hold and the bind group itself. Buffer usage is derived from the binding
	// type and OR-ed with the usage override. Buffer size defaults to the binding's
	// minimum size unless a size override is given.
	//
	// Parameters:
	//   - provider: the provider receiving the resources
	//   - descriptor: the bind group layout descriptor
	//   - usageOverrides: extra usage flags keyed by binding index
	//   - sizeOverrides: buffer sizes keyed by binding index
	//
	// Returns:
	//   - error: error if a resource could not be created
	InitBindGroup(provider bind_group_provider.BindGroupProvider, descriptor wgpu.BindGroupLayoutDescriptor, usageOverrides map[int]wgpu.BufferUsage, sizeOverrides map[int]uint64) error

	// CreateBuffer creates a buffer that is not part of any bind group and stores it
	// on the slot's provider.
	//
	// Parameters:
	//   - slot: the provider and binding key to store the buffer under
	//   - size: the buffer size in bytes
	//   - usage: the buffer usage flags
	//
	// Returns:
	//   - error: error if the buffer could not be created
	CreateBuffer(slot bind_group_provider.BufferSlot, size uint64, usage wgpu.BufferUsage) error

	// WriteBuffers enqueues host-to-device writes. Writes land before any command
	// submitted afterwards.
	//
	// Parameters:
	//   - writes: the writes to enqueue
	//
	// Returns:
	//   - error: error if a write targets a slot without a buffer
	WriteBuffers(writes []bind_group_provider.BufferWrite) error

	// BeginFrame acquires the next surface texture and opens the frame's command encoder.
	//
	// Returns:
	//   - error: error if the texture or encoder could not be acquired
	BeginFrame() error

	// ClearBuffer records a zero fill of size bytes at offset.
	ClearBuffer(slot bind_group_provider.BufferSlot, offset, size uint64)

	// CopyBuffer records a buffer-to-buffer copy.
	CopyBuffer(src bind_group_provider.BufferSlot, srcOffset uint64, dst bind_group_provider.BufferSlot, dstOffset, size uint64)

	// DispatchCompute records one compute pass running p with the provider's bind
	// group at index 0.
	//
	// Parameters:
	//   - p: the registered compute pipeline
	//   - provider: the bind group provider for group 0
	//   - workgroups: the dispatch size
	DispatchCompute(p pipeline.Pipeline, provider bind_group_provider.BindGroupProvider, workgroups [3]uint32)

	// BeginRenderPass opens the frame's render pass. Buffer and compute commands
	// cannot be recorded until EndFrame.
	//
	// Returns:
	//   - error: error if no frame is open
	BeginRenderPass() error

	// Draw records a non-indexed instanced draw.
	//
	// Parameters:
	//   - p: the registered render pipeline
	//   - bindGroups: providers bound at their slice index
	//   - vertexCount: vertices per instance
	//   - instanceCount: the number of instances
	Draw(p pipeline.Pipeline, bindGroups []bind_group_provider.BindGroupProvider, vertexCount, instanceCount uint32)

	// DrawIndirect records a non-indexed draw whose arguments are read from a buffer.
	//
	// Parameters:
	//   - p: the registered render pipeline
	//   - bindGroups: providers bound at their slice index
	//   - args: the buffer holding the draw arguments
	//   - offset: the byte offset of the arguments
	DrawIndirect(p pipeline.Pipeline, bindGroups []bind_group_provider.BindGroupProvider, args bind_group_provider.BufferSlot, offset uint64)

	// EndFrame closes the render pass and submits the frame's command stream.
	//
	// Returns:
	//   - error: error if the command stream could not be finished
	EndFrame() error

	// Present presents the acquired surface texture. It is a no-op without one.
	Present()

	// Release frees every device object the backend owns.
	Release()
}
