package renderer

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/Carmen-Shannon/oxy-splat/common"
	"github.com/Carmen-Shannon/oxy-splat/engine/config"
	"github.com/Carmen-Shannon/oxy-splat/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-splat/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-splat/engine/renderer/shader"
)

// depthFormat is the format of the render pass depth attachment.
const depthFormat = wgpu.TextureFormatDepth32Float

// bufferAlignment is the granularity of buffer sizes, copies and clears.
const bufferAlignment = 4

var (
	errNoFrame       = errors.New("no frame in progress")
	errPassOpen      = errors.New("render pass already open")
	errFrameNotReady = errors.New("previous frame surface not yet presented")
)

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	// requestedFormat is the configured surface format name, empty for the surface default.
	requestedFormat      string
	surfaceFormat        wgpu.TextureFormat
	presentMode          config.PresentMode
	sampleCount          MSAASampleCount
	msaaTexture          *wgpu.Texture
	msaaTextureView      *wgpu.TextureView
	depthTexture         *wgpu.Texture
	depthTextureView     *wgpu.TextureView
	renderPassDescriptor *wgpu.RenderPassDescriptor

	// Frame state. One encoder carries the compute work and the render pass.
	frameEncoder *wgpu.CommandEncoder
	framePass    *wgpu.RenderPassEncoder
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView
	frameErr     error
}

var _ RendererBackend = &wgpuRendererBackendImpl{}

// newWGPURendererBackend creates the instance, surface, adapter, device and queue.
// The calling goroutine is locked to its OS thread, which must be the thread that
// owns the window.
//
// Parameters:
//   - surfaceDescriptor: the platform surface descriptor from the window
//   - surfaceCfg: the configured surface format and present mode
//   - sampleCount: the MSAA sample count
//   - forceFallbackAdapter: request the software adapter
//
// Returns:
//   - *wgpuRendererBackendImpl: the backend, with the surface not yet configured
//   - error: error if no adapter or device could be acquired
func newWGPURendererBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, surfaceCfg config.SurfaceConfig, sampleCount MSAASampleCount, forceFallbackAdapter bool) (*wgpuRendererBackendImpl, error) {
	runtime.LockOSThread()
	b := &wgpuRendererBackendImpl{
		mu:              &sync.Mutex{},
		instance:        wgpu.CreateInstance(nil),
		requestedFormat: surfaceCfg.Format,
		presentMode:     surfaceCfg.PresentMode,
		sampleCount:     sampleCount,
	}
	b.surface = b.instance.CreateSurface(surfaceDescriptor)

	a, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    b.surface,
	})
	if err != nil {
		b.Release()
		return nil, fmt.Errorf("failed to request adapter: %w", err)
	}
	b.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Splat Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		b.Release()
		return nil, fmt.Errorf("failed to request device: %w", err)
	}
	b.device = d
	b.queue = d.GetQueue()

	return b, nil
}

func (b *wgpuRendererBackendImpl) ConfigureSurface(width, height int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	capabilities := b.surface.GetCapabilities(b.adapter)
	if len(capabilities.Formats) == 0 || len(capabilities.AlphaModes) == 0 {
		return errors.New("surface is not supported by the adapter")
	}
	b.surfaceFormat = pickSurfaceFormat(b.requestedFormat, capabilities.Formats)
	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: pickPresentMode(b.presentMode, capabilities.PresentModes),
		AlphaMode:   capabilities.AlphaModes[0],
	})

	b.releaseTargets()

	count := uint32(b.sampleCount)
	msaaEnabled := count > 1
	if msaaEnabled {
		tex, view, err := b.createTarget("MSAA Texture", width, height, count, b.surfaceFormat)
		if err != nil {
			return err
		}
		b.msaaTexture, b.msaaTextureView = tex, view
	}

	tex, view, err := b.createTarget("Depth Texture", width, height, count, depthFormat)
	if err != nil {
		return err
	}
	b.depthTexture, b.depthTextureView = tex, view

	// With MSAA the pass draws into the multisampled target and resolves into the
	// swapchain view set in BeginRenderPass.
	storeOp := wgpu.StoreOpStore
	if msaaEnabled {
		storeOp = wgpu.StoreOpDiscard
	}
	b.renderPassDescriptor = &wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       b.msaaTextureView,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    storeOp,
				ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 1},
			},
		},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            b.depthTextureView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpDiscard,
			DepthClearValue: 1.0,
		},
	}
	return nil
}

// createTarget creates a render attachment texture and its default view.
func (b *wgpuRendererBackendImpl) createTarget(label string, width, height int, sampleCount uint32, format wgpu.TextureFormat) (*wgpu.Texture, *wgpu.TextureView, error) {
	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: label,
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   sampleCount,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s: %w", label, err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, nil, fmt.Errorf("failed to create %s view: %w", label, err)
	}
	return tex, view, nil
}

// releaseTargets frees the depth and multisample targets.
// Caller must hold the mutex.
func (b *wgpuRendererBackendImpl) releaseTargets() {
	if b.msaaTextureView != nil {
		b.msaaTextureView.Release()
		b.msaaTextureView = nil
	}
	if b.msaaTexture != nil {
		b.msaaTexture.Release()
		b.msaaTexture = nil
	}
	if b.depthTextureView != nil {
		b.depthTextureView.Release()
		b.depthTextureView = nil
	}
	if b.depthTexture != nil {
		b.depthTexture.Release()
		b.depthTexture = nil
	}
}

func (b *wgpuRendererBackendImpl) SetPresentMode(mode config.PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.presentMode = mode
}

func (b *wgpuRendererBackendImpl) RegisterRenderPipeline(p pipeline.Pipeline) error {
	vertexShader := p.Shader(shader.ShaderTypeVertex)
	fragmentShader := p.Shader(shader.ShaderTypeFragment)
	if vertexShader == nil || fragmentShader == nil {
		return errors.New("both vertex and fragment shaders must be set to create a render pipeline")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	vs, err := b.device.CreateShaderModule(vertexShader.Module())
	if err != nil {
		return fmt.Errorf("pipeline %s: %w", p.PipelineKey(), err)
	}
	defer vs.Release()
	fs, err := b.device.CreateShaderModule(fragmentShader.Module())
	if err != nil {
		return fmt.Errorf("pipeline %s: %w", p.PipelineKey(), err)
	}
	defer fs.Release()

	pipelineLayout, err := b.createPipelineLayout(p)
	if err != nil {
		return err
	}
	defer pipelineLayout.Release()

	target := wgpu.ColorTargetState{
		Format:    b.surfaceFormat,
		WriteMask: p.WriteMask(),
	}
	if p.BlendEnabled() {
		target.Blend = p.BlendState()
	}
	depthCompare := p.DepthCompare()
	if !p.DepthTestEnabled() {
		depthCompare = wgpu.CompareFunctionAlways
	}

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  p.PipelineKey() + " Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: vertexShader.EntryPoint(),
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: fragmentShader.EntryPoint(),
			Targets:    []wgpu.ColorTargetState{target},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  p.Topology(),
			FrontFace: p.FrontFace(),
			CullMode:  p.CullMode(),
		},
		Multisample: wgpu.MultisampleState{
			Count: uint32(b.sampleCount),
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            depthFormat,
			DepthWriteEnabled: p.DepthWriteEnabled(),
			DepthCompare:      depthCompare,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("pipeline %s: %w", p.PipelineKey(), err)
	}

	p.SetRenderPipeline(created)
	return nil
}

func (b *wgpuRendererBackendImpl) RegisterComputePipeline(p pipeline.Pipeline) error {
	computeShader := p.Shader(shader.ShaderTypeCompute)
	if computeShader == nil {
		return errors.New("compute shader must be set to create a compute pipeline")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	module, err := b.device.CreateShaderModule(computeShader.Module())
	if err != nil {
		return fmt.Errorf("pipeline %s: %w", p.PipelineKey(), err)
	}
	defer module.Release()

	layout, err := b.createPipelineLayout(p)
	if err != nil {
		return err
	}
	defer layout.Release()

	created, err := b.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  p.PipelineKey() + " Compute Pipeline",
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: computeShader.EntryPoint(),
		},
	})
	if err != nil {
		return fmt.Errorf("pipeline %s: %w", p.PipelineKey(), err)
	}

	p.SetComputePipeline(created)
	return nil
}

// createPipelineLayout builds the pipeline layout from the pipeline's merged bind
// group layouts. Gaps in the group indices get empty layouts.
// Caller must hold the mutex.
func (b *wgpuRendererBackendImpl) createPipelineLayout(p pipeline.Pipeline) (*wgpu.PipelineLayout, error) {
	descriptors := p.BindGroupLayoutDescriptors()
	maxGroup := -1
	for g := range descriptors {
		maxGroup = max(maxGroup, g)
	}

	bindGroupLayouts := make([]*wgpu.BindGroupLayout, maxGroup+1)
	defer func() {
		for _, l := range bindGroupLayouts {
			if l != nil {
				l.Release()
			}
		}
	}()
	for g := range bindGroupLayouts {
		desc := descriptors[g]
		desc.Label = fmt.Sprintf("%s Group %d", p.PipelineKey(), g)
		layout, err := b.device.CreateBindGroupLayout(&desc)
		if err != nil {
			return nil, fmt.Errorf("failed to create bind group layout for group %d: %w", g, err)
		}
		bindGroupLayouts[g] = layout
	}

	layout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.PipelineKey(),
		BindGroupLayouts: bindGroupLayouts,
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", p.PipelineKey(), err)
	}
	return layout, nil
}

func (b *wgpuRendererBackendImpl) InitBindGroup(provider bind_group_provider.BindGroupProvider, descriptor wgpu.BindGroupLayoutDescriptor, usageOverrides map[int]wgpu.BufferUsage, sizeOverrides map[int]uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(descriptor.Entries) == 0 {
		return nil
	}

	layout := provider.BindGroupLayout()
	if layout == nil {
		descriptor.Label = provider.Label() + " Layout"
		var err error
		layout, err = b.device.CreateBindGroupLayout(&descriptor)
		if err != nil {
			return fmt.Errorf("%s: %w", provider.Label(), err)
		}
		provider.SetBindGroupLayout(layout)
	}

	entries := make([]wgpu.BindGroupEntry, len(descriptor.Entries))
	for i, entry := range descriptor.Entries {
		binding := int(entry.Binding)

		buf := provider.Buffer(binding)
		if buf == nil {
			var usage wgpu.BufferUsage
			switch entry.Buffer.Type {
			case wgpu.BufferBindingTypeUniform:
				usage = wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst
			case wgpu.BufferBindingTypeStorage, wgpu.BufferBindingTypeReadOnlyStorage:
				usage = wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst
			default:
				return fmt.Errorf("%s: binding %d is not a buffer binding", provider.Label(), binding)
			}
			usage |= usageOverrides[binding]

			size := entry.Buffer.MinBindingSize
			if override, ok := sizeOverrides[binding]; ok {
				size = override
			}
			var err error
			buf, err = b.device.CreateBuffer(&wgpu.BufferDescriptor{
				Label: fmt.Sprintf("%s Buffer %d", provider.Label(), binding),
				Size:  common.AlignUp(size, bufferAlignment),
				Usage: usage,
			})
			if err != nil {
				return fmt.Errorf("%s: failed to create buffer %d: %w", provider.Label(), binding, err)
			}
			provider.SetBuffer(binding, buf)
		}
		entries[i] = wgpu.BindGroupEntry{
			Binding: entry.Binding,
			Buffer:  buf,
			Offset:  0,
			Size:    wgpu.WholeSize,
		}
	}

	bindGroup, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   provider.Label() + " Bind Group",
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", provider.Label(), err)
	}
	provider.SetBindGroup(bindGroup)
	return nil
}

func (b *wgpuRendererBackendImpl) CreateBuffer(slot bind_group_provider.BufferSlot, size uint64, usage wgpu.BufferUsage) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: fmt.Sprintf("%s Buffer %d", slot.Provider.Label(), slot.Binding),
		Size:  common.AlignUp(size, bufferAlignment),
		Usage: usage,
	})
	if err != nil {
		return fmt.Errorf("%s: failed to create buffer %d: %w", slot.Provider.Label(), slot.Binding, err)
	}
	slot.Provider.SetBuffer(slot.Binding, buf)
	return nil
}

func (b *wgpuRendererBackendImpl) WriteBuffers(writes []bind_group_provider.BufferWrite) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, w := range writes {
		if len(w.Data) == 0 {
			continue
		}
		buf := w.Provider.Buffer(w.Binding)
		if buf == nil {
			return fmt.Errorf("%s: no buffer at binding %d", w.Provider.Label(), w.Binding)
		}
		b.queue.WriteBuffer(buf, w.Offset, w.Data)
	}
	return nil
}

func (b *wgpuRendererBackendImpl) BeginFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface != nil {
		return errFrameNotReady
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return err
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return err
	}
	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return err
	}

	b.frameEncoder = encoder
	b.frameSurface = surfaceTexture
	b.frameView = view
	b.frameErr = nil
	return nil
}

// recording reports whether buffer and compute commands can be recorded, noting
// the first misuse so EndFrame can report it.
// Caller must hold the mutex.
func (b *wgpuRendererBackendImpl) recording(op string) bool {
	switch {
	case b.frameEncoder == nil:
		b.frameErr = errors.Join(b.frameErr, fmt.Errorf("%s: %w", op, errNoFrame))
		return false
	case b.framePass != nil:
		b.frameErr = errors.Join(b.frameErr, fmt.Errorf("%s: %w", op, errPassOpen))
		return false
	}
	return true
}

func (b *wgpuRendererBackendImpl) ClearBuffer(slot bind_group_provider.BufferSlot, offset, size uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.recording("clear buffer") || size == 0 {
		return
	}
	b.frameEncoder.ClearBuffer(slot.Buffer(), offset, size)
}

func (b *wgpuRendererBackendImpl) CopyBuffer(src bind_group_provider.BufferSlot, srcOffset uint64, dst bind_group_provider.BufferSlot, dstOffset, size uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.recording("copy buffer") || size == 0 {
		return
	}
	b.frameEncoder.CopyBufferToBuffer(src.Buffer(), srcOffset, dst.Buffer(), dstOffset, size)
}

func (b *wgpuRendererBackendImpl) DispatchCompute(p pipeline.Pipeline, provider bind_group_provider.BindGroupProvider, workgroups [3]uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.recording("dispatch " + p.PipelineKey()) {
		return
	}
	computePipeline, ok := p.Pipeline().(*wgpu.ComputePipeline)
	if !ok || computePipeline == nil {
		b.frameErr = errors.Join(b.frameErr, fmt.Errorf("dispatch %s: pipeline not registered", p.PipelineKey()))
		return
	}

	pass := b.frameEncoder.BeginComputePass(nil)
	pass.SetPipeline(computePipeline)
	pass.SetBindGroup(0, provider.BindGroup(), nil)
	pass.DispatchWorkgroups(workgroups[0], workgroups[1], workgroups[2])
	pass.End()
	pass.Release()
}

func (b *wgpuRendererBackendImpl) BeginRenderPass() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameEncoder == nil {
		return errNoFrame
	}
	if b.framePass != nil {
		return errPassOpen
	}

	if b.sampleCount > 1 {
		b.renderPassDescriptor.ColorAttachments[0].ResolveTarget = b.frameView
	} else {
		b.renderPassDescriptor.ColorAttachments[0].View = b.frameView
	}
	b.framePass = b.frameEncoder.BeginRenderPass(b.renderPassDescriptor)
	return nil
}

// bindDraw sets the pipeline and bind groups for a draw.
// Caller must hold the mutex.
func (b *wgpuRendererBackendImpl) bindDraw(p pipeline.Pipeline, bindGroups []bind_group_provider.BindGroupProvider) bool {
	if b.framePass == nil {
		b.frameErr = errors.Join(b.frameErr, fmt.Errorf("draw %s: no render pass", p.PipelineKey()))
		return false
	}
	renderPipeline, ok := p.Pipeline().(*wgpu.RenderPipeline)
	if !ok || renderPipeline == nil {
		b.frameErr = errors.Join(b.frameErr, fmt.Errorf("draw %s: pipeline not registered", p.PipelineKey()))
		return false
	}
	b.framePass.SetPipeline(renderPipeline)
	for i, bg := range bindGroups {
		b.framePass.SetBindGroup(uint32(i), bg.BindGroup(), nil)
	}
	return true
}

func (b *wgpuRendererBackendImpl) Draw(p pipeline.Pipeline, bindGroups []bind_group_provider.BindGroupProvider, vertexCount, instanceCount uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.bindDraw(p, bindGroups) {
		return
	}
	b.framePass.Draw(vertexCount, instanceCount, 0, 0)
}

func (b *wgpuRendererBackendImpl) DrawIndirect(p pipeline.Pipeline, bindGroups []bind_group_provider.BindGroupProvider, args bind_group_provider.BufferSlot, offset uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.bindDraw(p, bindGroups) {
		return
	}
	b.framePass.DrawIndirect(args.Buffer(), offset)
}

func (b *wgpuRendererBackendImpl) EndFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameEncoder == nil {
		return errNoFrame
	}
	if b.framePass != nil {
		b.framePass.End()
		b.framePass.Release()
		b.framePass = nil
	}

	encoder := b.frameEncoder
	b.frameEncoder = nil
	defer encoder.Release()

	if b.frameErr != nil {
		b.releaseFrameSurface()
		return b.frameErr
	}

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		b.releaseFrameSurface()
		return err
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	return nil
}

func (b *wgpuRendererBackendImpl) Present() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface == nil {
		return
	}
	b.surface.Present()
	b.releaseFrameSurface()
}

// releaseFrameSurface drops the acquired swapchain texture and view.
// Caller must hold the mutex.
func (b *wgpuRendererBackendImpl) releaseFrameSurface() {
	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	if b.frameSurface != nil {
		b.frameSurface.Release()
		b.frameSurface = nil
	}
}

func (b *wgpuRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass != nil {
		b.framePass.Release()
		b.framePass = nil
	}
	if b.frameEncoder != nil {
		b.frameEncoder.Release()
		b.frameEncoder = nil
	}
	b.releaseFrameSurface()
	b.releaseTargets()
	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.surface != nil {
		b.surface.Release()
		b.surface = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}

// surfaceFormats maps the configured format names to texture formats.
var surfaceFormats = map[string]wgpu.TextureFormat{
	config.SurfaceFormatBGRA8UnormSrgb: wgpu.TextureFormatBGRA8UnormSrgb,
	config.SurfaceFormatBGRA8Unorm:     wgpu.TextureFormatBGRA8Unorm,
	config.SurfaceFormatRGBA8UnormSrgb: wgpu.TextureFormatRGBA8UnormSrgb,
	config.SurfaceFormatRGBA8Unorm:     wgpu.TextureFormatRGBA8Unorm,
}

// pickSurfaceFormat returns the requested format when the surface supports it and
// the surface's preferred format otherwise.
func pickSurfaceFormat(requested string, supported []wgpu.TextureFormat) wgpu.TextureFormat {
	if want, ok := surfaceFormats[requested]; ok {
		for _, f := range supported {
			if f == want {
				return f
			}
		}
	}
	return supported[0]
}

// pickPresentMode maps a configured present mode to the device enum, falling back to
// fifo, which every surface supports.
func pickPresentMode(mode config.PresentMode, supported []wgpu.PresentMode) wgpu.PresentMode {
	var want wgpu.PresentMode
	switch mode {
	case config.PresentModeImmediate:
		want = wgpu.PresentModeImmediate
	case config.PresentModeMailbox:
		want = wgpu.PresentModeMailbox
	default:
		return wgpu.PresentModeFifo
	}
	for _, m := range supported {
		if m == want {
			return want
		}
	}
	return wgpu.PresentModeFifo
}
