package renderer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/Carmen-Shannon/oxy-splat/common"
	"github.com/Carmen-Shannon/oxy-splat/engine/camera"
	"github.com/Carmen-Shannon/oxy-splat/engine/config"
	"github.com/Carmen-Shannon/oxy-splat/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-splat/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-splat/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-splat/engine/scene"
	"github.com/Carmen-Shannon/oxy-splat/engine/sorter"
	"github.com/Carmen-Shannon/oxy-splat/engine/splat"
	"github.com/Carmen-Shannon/oxy-splat/engine/window"
)

var (
	// ErrInvalidState is returned when an operation is called in a state that does not allow it.
	ErrInvalidState = errors.New("renderer: invalid state")

	// ErrTooManySplats is returned by RenderFrame when the scene holds more splats than
	// the buffers were sized for.
	ErrTooManySplats = errors.New("renderer: splat count exceeds max_splat_count")

	// ErrMissingBinding is returned when a shader does not declare a resource the
	// renderer binds.
	ErrMissingBinding = errors.New("renderer: shader does not declare binding")
)

// State is the lifecycle stage of a Renderer.
type State int

const (
	// StateUninitialized has no pipelines or buffers.
	StateUninitialized State = iota

	// StatePipelineReady has its pipelines registered.
	StatePipelineReady

	// StateBuffersReady has its buffers and bind groups created and can render.
	StateBuffersReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StatePipelineReady:
		return "pipeline_ready"
	case StateBuffersReady:
		return "buffers_ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// FrameStats summarizes one rendered frame.
type FrameStats struct {
	SplatCount   int
	VisibleCount int
	Strategy     config.DepthSorting
	Indirect     bool
}

// Provider labels. Each labels every device object its provider creates.
const (
	renderProviderLabel = "Splat Render"
	sortProviderLabel   = "Radix Sort"
	roundProviderLabel  = "Radix Rounds"
)

// roundTableBinding is the binding key of the round table inside its provider. The
// table is only ever a copy source, so it belongs to no bind group.
const roundTableBinding = 0

// renderBindings are the binding indices of the render bind group, resolved from the
// render shader's declarations.
type renderBindings struct {
	uniforms, entries, sorting, sh int
}

// sortBindings are the binding indices shared by the three radix sort shaders.
type sortBindings struct {
	params, sorting, scatter int
}

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	cfg      config.Config
	layout   sorter.Layout
	strategy sorter.Strategy
	state    State
	closed   bool

	backend       RendererBackend
	ownsBackend   bool
	surfaceSize   [2]int
	pipelineCache map[string]pipeline.Pipeline

	renderSlots    renderBindings
	sortSlots      sortBindings
	renderProvider bind_group_provider.BindGroupProvider
	sortProvider   bind_group_provider.BindGroupProvider
	roundProvider  bind_group_provider.BindGroupProvider
	boundScene     scene.Scene

	// Scratch upload buffers, sized once from MaxSplatCount.
	entryBytes []byte
	shBytes    []byte

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	validateShaders      bool
}

// Renderer draws a Scene's splats as camera-facing quads, ordered back to front by
// the configured depth sorting strategy.
//
// A Renderer moves through StateUninitialized, StatePipelineReady and
// StateBuffersReady. InitPipelines and InitBuffers advance one state each and fail
// with ErrInvalidState out of order; RenderFrame advances lazily. The config is fixed
// for the Renderer's lifetime; Rebuild swaps it and starts over.
type Renderer interface {
	// Config returns the renderer's configuration.
	Config() config.Config

	// State returns the current lifecycle state.
	State() State

	// Strategy returns the depth sorting strategy built from the config.
	Strategy() sorter.Strategy

	// Layout returns the sorting buffer layout derived from the config.
	Layout() sorter.Layout

	// Pipeline retrieves the cached Pipeline associated with the given key.
	// If the Pipeline does not exist, this will return nil.
	//
	// Parameters:
	//   - key: PipelineSplatRender or one of the sorter pipeline keys
	//
	// Returns:
	//   - pipeline.Pipeline: the cached pipeline or nil
	Pipeline(key string) pipeline.Pipeline

	// InitPipelines builds and registers the render pipeline and, for device sorting,
	// the three radix sort compute pipelines. Allowed only in StateUninitialized.
	//
	// Returns:
	//   - error: ErrInvalidState, or a shader or pipeline creation error
	InitPipelines() error

	// InitBuffers creates the persistent buffers and bind groups, sized from the config,
	// and publishes the device handles on s. Allowed only in StatePipelineReady.
	//
	// Parameters:
	//   - s: the scene that receives the device handles
	//
	// Returns:
	//   - error: ErrInvalidState, or a buffer or bind group creation error
	InitBuffers(s scene.Scene) error

	// RenderFrame refreshes depths, culls, orders and uploads the scene's splats, then
	// records and submits the sort and draw for one frame. Missing initialization is
	// performed first.
	//
	// Parameters:
	//   - s: the scene to draw
	//
	// Returns:
	//   - FrameStats: counts for the frame
	//   - error: ErrTooManySplats, an initialization error or a device error
	RenderFrame(s scene.Scene) (FrameStats, error)

	// Rebuild releases every pipeline and buffer and returns to StateUninitialized
	// with cfg. The MSAA sample count cannot change.
	//
	// Parameters:
	//   - cfg: the new configuration
	//
	// Returns:
	//   - error: error if cfg is invalid; the renderer is unchanged
	Rebuild(cfg config.Config) error

	// Resize reconfigures the surface.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	//
	// Returns:
	//   - error: error if the surface targets could not be recreated
	Resize(width, height int) error

	// SetPresentMode changes the present mode. It applies on the next Resize.
	SetPresentMode(mode config.PresentMode)

	// Cleanup releases buffers, bind groups and pipelines and clears the scene's
	// handles, returning to StateUninitialized. Safe to call in every state and more
	// than once.
	Cleanup()

	// Close runs Cleanup and releases a backend the renderer created. Every later
	// operation fails with ErrInvalidState.
	Close()
}

var _ Renderer = &renderer{}

// newRenderer validates cfg and applies options.
func newRenderer(cfg config.Config, options ...RendererBuilderOption) (*renderer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	layout := sorter.NewLayout(&cfg)
	strategy, err := sorter.New(cfg.DepthSorting, layout)
	if err != nil {
		return nil, err
	}

	r := &renderer{
		mu:            &sync.Mutex{},
		cfg:           cfg,
		layout:        layout,
		strategy:      strategy,
		surfaceSize:   [2]int{int(cfg.Surface.Width), int(cfg.Surface.Height)},
		pipelineCache: make(map[string]pipeline.Pipeline),
	}
	for _, opt := range options {
		opt(r)
	}
	return r, nil
}

// NewRenderer creates a Renderer on an existing backend. The backend's surface must
// already be configured.
//
// Parameters:
//   - backend: the device backend
//   - cfg: the configuration, validated here
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: a renderer in StateUninitialized
//   - error: error wrapping config.ErrInvalidConfig if cfg is invalid
func NewRenderer(backend RendererBackend, cfg config.Config, options ...RendererBuilderOption) (Renderer, error) {
	if backend == nil {
		return nil, errors.New("renderer: nil backend")
	}
	r, err := newRenderer(cfg, options...)
	if err != nil {
		return nil, err
	}
	r.backend = backend
	return r, nil
}

// NewWindowRenderer creates a Renderer drawing into a window through the WebGPU
// backend. It must be called on the window's thread, which it locks.
//
// Parameters:
//   - win: the target window
//   - cfg: the configuration, validated here
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: a renderer in StateUninitialized with its surface configured
//   - error: error if cfg is invalid or no device could be acquired
func NewWindowRenderer(win window.Window, cfg config.Config, options ...RendererBuilderOption) (Renderer, error) {
	r, err := newRenderer(cfg, options...)
	if err != nil {
		return nil, err
	}

	desc := win.SurfaceDescriptor()
	if desc == nil {
		return nil, fmt.Errorf("failed to create renderer: %w", window.ErrNotInitialized)
	}
	backend, err := newWGPURendererBackend(desc, cfg.Surface, MSAASampleCount(cfg.MSAASamples), r.forceFallbackAdapter)
	if err != nil {
		return nil, err
	}
	width, height := win.FramebufferSize()
	r.surfaceSize = [2]int{width, height}
	if err := backend.ConfigureSurface(r.surfaceSize[0], r.surfaceSize[1]); err != nil {
		backend.Release()
		return nil, err
	}
	r.backend = backend
	r.ownsBackend = true
	return r, nil
}

func (r *renderer) Config() config.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

func (r *renderer) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *renderer) Strategy() sorter.Strategy {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.strategy
}

func (r *renderer) Layout() sorter.Layout {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.layout
}

func (r *renderer) Pipeline(key string) pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pipelineCache[key]
}

// require fails with ErrInvalidState unless the renderer is open and in want.
// Caller must hold the mutex.
func (r *renderer) require(op string, want State) error {
	if r.closed {
		return fmt.Errorf("%w: %s after Close", ErrInvalidState, op)
	}
	if r.state != want {
		return fmt.Errorf("%w: %s requires %s, renderer is %s", ErrInvalidState, op, want, r.state)
	}
	return nil
}

func (r *renderer) InitPipelines() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.initPipelines()
}

func (r *renderer) initPipelines() error {
	if err := r.require("InitPipelines", StateUninitialized); err != nil {
		return err
	}

	built, err := r.buildPipelines()
	if err != nil {
		for _, p := range built {
			p.Release()
		}
		return err
	}
	for _, p := range built {
		r.pipelineCache[p.PipelineKey()] = p
	}

	r.state = StatePipelineReady
	common.Logf("[Renderer] pipelines ready (%s sorting, %d pipelines)", r.cfg.DepthSorting, len(built))
	return nil
}

// buildPipelines creates and registers every pipeline the strategy needs and resolves
// the binding indices from the shaders. Pipelines registered before a failure are
// returned with the error so the caller can release them.
// Caller must hold the mutex.
func (r *renderer) buildPipelines() ([]pipeline.Pipeline, error) {
	var built []pipeline.Pipeline

	vs, err := shader.NewShader(PipelineSplatRender+"_vs", shader.ShaderTypeVertex, splatRenderSource)
	if err != nil {
		return built, err
	}
	fs, err := shader.NewShader(PipelineSplatRender+"_fs", shader.ShaderTypeFragment, splatRenderSource)
	if err != nil {
		return built, err
	}
	r.validate(vs, fs)

	slots, err := resolveBindings(vs,
		shader.AnnotationArgSplatUniforms,
		shader.AnnotationArgSplatEntry,
		shader.AnnotationArgSorting,
		shader.AnnotationArgSHCoefficients,
	)
	if err != nil {
		return built, err
	}
	r.renderSlots = renderBindings{uniforms: slots[0], entries: slots[1], sorting: slots[2], sh: slots[3]}

	topology := wgpu.PrimitiveTopologyPointList
	if r.cfg.Topology == config.TopologyTriangleList {
		topology = wgpu.PrimitiveTopologyTriangleList
	}
	render := pipeline.NewPipeline(PipelineSplatRender, pipeline.PipelineTypeRender,
		pipeline.WithVertexShader(vs),
		pipeline.WithFragmentShader(fs),
		pipeline.WithTopology(topology),
		pipeline.WithBlendEnabled(true),
		pipeline.WithCullMode(wgpu.CullModeBack),
		pipeline.WithDepthCompare(wgpu.CompareFunctionLess),
	)
	if err := r.backend.RegisterRenderPipeline(render); err != nil {
		return built, err
	}
	built = append(built, render)

	if !r.cfg.DepthSorting.UsesDevice() {
		return built, nil
	}

	for _, cs := range computeSources {
		s, err := shader.NewShader(cs.key, shader.ShaderTypeCompute, cs.source)
		if err != nil {
			return built, err
		}
		if wg := s.WorkgroupSize(); wg[0] != sorter.WorkgroupEntries {
			return built, fmt.Errorf("shader %s: workgroup size %d, want %d", cs.key, wg[0], sorter.WorkgroupEntries)
		}
		r.validate(s)

		slots, err := resolveBindings(s,
			shader.AnnotationArgSortParams,
			shader.AnnotationArgSorting,
			shader.AnnotationArgScatter,
		)
		if err != nil {
			return built, err
		}
		r.sortSlots = sortBindings{params: slots[0], sorting: slots[1], scatter: slots[2]}

		p := pipeline.NewPipeline(cs.key, pipeline.PipelineTypeCompute, pipeline.WithComputeShader(s))
		if err := r.backend.RegisterComputePipeline(p); err != nil {
			return built, err
		}
		built = append(built, p)
	}
	return built, nil
}

// validate compiles shaders with naga when validation is enabled. Failures are logged
// and never fatal; the device compiler has the final say.
func (r *renderer) validate(shaders ...shader.Shader) {
	if !r.validateShaders {
		return
	}
	for _, s := range shaders {
		if err := s.Validate(); err != nil {
			common.Logf("[Renderer] warning: %v", err)
		}
	}
}

// resolveBindings looks up the binding index of each resource in the shader's group 0.
func resolveBindings(s shader.Shader, resources ...shader.AnnotationArg) ([]int, error) {
	out := make([]int, len(resources))
	for i, res := range resources {
		group, binding, ok := s.Binding(res)
		if !ok || group != 0 {
			return nil, fmt.Errorf("%w: %s in %s group 0", ErrMissingBinding, res, s.Key())
		}
		out[i] = binding
	}
	return out, nil
}

func (r *renderer) InitBuffers(s scene.Scene) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.initBuffers(s)
}

func (r *renderer) initBuffers(s scene.Scene) error {
	if err := r.require("InitBuffers", StatePipelineReady); err != nil {
		return err
	}
	if err := r.createProviders(); err != nil {
		r.releaseProviders()
		return err
	}

	n := int(r.cfg.MaxSplatCount)
	r.entryBytes = make([]byte, n*splatEntrySize)
	r.shBytes = make([]byte, n*r.shStride())

	r.bindScene(s)
	r.state = StateBuffersReady
	common.Logf("[Renderer] buffers ready (%d splats, sorting buffer %d bytes)", n, r.layout.SizeBytes())
	return nil
}

// splatEntrySize is the byte size of one GPUSplatEntry.
const splatEntrySize = 64

// shStride returns the byte size of one splat's color_sh coefficients.
func (r *renderer) shStride() int {
	return splat.SHCoefficientCount(r.cfg.SphericalHarmonicsOrder) * 16
}

// createProviders creates the render bind group and, for device sorting, the sort
// bind group sharing the sorting buffer plus the round table.
// Caller must hold the mutex.
func (r *renderer) createProviders() error {
	n := uint64(r.cfg.MaxSplatCount)
	render := r.pipelineCache[PipelineSplatRender]

	r.renderProvider = bind_group_provider.NewBindGroupProvider(renderProviderLabel)
	err := r.backend.InitBindGroup(r.renderProvider, render.BindGroupLayoutDescriptors()[0],
		map[int]wgpu.BufferUsage{
			r.renderSlots.sorting: wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst | wgpu.BufferUsageIndirect,
		},
		map[int]uint64{
			r.renderSlots.uniforms: 160,
			r.renderSlots.entries:  n * splatEntrySize,
			r.renderSlots.sorting:  r.layout.SizeBytes(),
			r.renderSlots.sh:       n * uint64(r.shStride()),
		},
	)
	if err != nil {
		return err
	}

	if !r.cfg.DepthSorting.UsesDevice() {
		return nil
	}

	r.sortProvider = bind_group_provider.NewBindGroupProvider(sortProviderLabel,
		bind_group_provider.WithSharedBuffer(r.sortSlots.sorting, r.renderProvider.Buffer(r.renderSlots.sorting)),
	)
	err = r.backend.InitBindGroup(r.sortProvider, r.pipelineCache[sorter.PipelineHistogram].BindGroupLayoutDescriptors()[0],
		map[int]wgpu.BufferUsage{
			r.sortSlots.scatter: wgpu.BufferUsageCopySrc,
		},
		map[int]uint64{
			r.sortSlots.params:  48,
			r.sortSlots.scatter: r.layout.ScatterSizeBytes(),
		},
	)
	if err != nil {
		return err
	}

	r.roundProvider = bind_group_provider.NewBindGroupProvider(roundProviderLabel)
	table := r.layout.RoundTable()
	roundSlot := bind_group_provider.BufferSlot{Provider: r.roundProvider, Binding: roundTableBinding}
	if err := r.backend.CreateBuffer(roundSlot, uint64(len(table))*4, wgpu.BufferUsageCopySrc|wgpu.BufferUsageCopyDst); err != nil {
		return err
	}
	return r.backend.WriteBuffers([]bind_group_provider.BufferWrite{{
		Provider: r.roundProvider,
		Binding:  roundTableBinding,
		Data:     common.SliceToBytes(table),
	}})
}

// bindScene publishes the device handles on s, clearing them from any previously
// bound scene.
// Caller must hold the mutex.
func (r *renderer) bindScene(s scene.Scene) {
	if r.boundScene != nil && r.boundScene != s {
		r.boundScene.ClearHandles()
	}
	r.boundScene = s
	if s == nil {
		return
	}
	s.SetHandles(scene.DeviceHandles{
		SplatBuffer:     &providerHandle{label: fmt.Sprintf("%s Buffer %d", renderProviderLabel, r.renderSlots.entries), provider: r.renderProvider},
		SortingBuffer:   &providerHandle{label: fmt.Sprintf("%s Buffer %d", renderProviderLabel, r.renderSlots.sorting), provider: r.renderProvider},
		RenderBindGroup: &providerHandle{label: renderProviderLabel + " Bind Group", provider: r.renderProvider},
	})
}

func (r *renderer) RenderFrame(s scene.Scene) (FrameStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s == nil || s.Camera() == nil {
		return FrameStats{}, errors.New("renderer: scene without a camera")
	}
	if r.closed {
		return FrameStats{}, fmt.Errorf("%w: RenderFrame after Close", ErrInvalidState)
	}
	if r.state == StateUninitialized {
		if err := r.initPipelines(); err != nil {
			return FrameStats{}, err
		}
	}
	if r.state == StatePipelineReady {
		if err := r.initBuffers(s); err != nil {
			return FrameStats{}, err
		}
	}
	if r.boundScene != s {
		r.bindScene(s)
	}

	splatCount := s.SplatCount()
	if splatCount > int(r.cfg.MaxSplatCount) {
		return FrameStats{}, fmt.Errorf("%w: %d > %d", ErrTooManySplats, splatCount, r.cfg.MaxSplatCount)
	}

	cam := s.Camera()
	cam.Update()
	snap := cam.Snapshot()
	s.RefreshDepths(snap)
	visible := s.Cull(snap, r.cfg.FrustumCullingTolerance, r.cfg.CullNDC)
	result := r.strategy.Order(s.Splats(), visible)
	stats := FrameStats{
		SplatCount:   splatCount,
		VisibleCount: result.Visible(),
		Strategy:     r.strategy.Kind(),
		Indirect:     result.Indirect,
	}

	if err := r.backend.WriteBuffers(r.frameWrites(s.Splats(), &snap, &result, splatCount)); err != nil {
		return stats, err
	}

	if err := r.backend.BeginFrame(); err != nil {
		return stats, err
	}
	r.strategy.Encode(&computeEncoder{r: r}, uint32(splatCount), uint32(result.Visible()))

	if err := r.backend.BeginRenderPass(); err != nil {
		return stats, err
	}
	render := r.pipelineCache[PipelineSplatRender]
	bindGroups := []bind_group_provider.BindGroupProvider{r.renderProvider}
	if result.Indirect {
		r.backend.DrawIndirect(render, bindGroups, r.sortingSlot(), r.layout.IndirectOffset())
	} else {
		r.backend.Draw(render, bindGroups, splat.IndirectVertexCount, uint32(splatCount))
	}
	if err := r.backend.EndFrame(); err != nil {
		return stats, err
	}
	r.backend.Present()
	return stats, nil
}

// frameWrites packs the frame's uploads: entries and color_sh in upload order, the
// uniform block, the (key, entry) pairs and, for device sorting, the sort params.
// Caller must hold the mutex.
func (r *renderer) frameWrites(splats []splat.Splat, snap *camera.Snapshot, result *sorter.Result, splatCount int) []bind_group_provider.BufferWrite {
	visible := result.Visible()
	order := r.cfg.SphericalHarmonicsOrder
	shStride := r.shStride()
	for i, idx := range result.Order {
		entry := splat.NewGPUSplatEntry(&splats[idx])
		entry.MarshalTo(r.entryBytes[i*splatEntrySize:])
		splat.MarshalSHCoefficients(r.shBytes[i*shStride:], splats[idx].Color, order)
	}

	uniforms := splat.NewGPUSplatUniforms(snap.Projection, snap.View, snap.Near, snap.Far,
		r.cfg.FrustumCullingTolerance, r.cfg.EllipseMargin, r.cfg.SplatScale, splatCount, visible)
	if r.cfg.Topology == config.TopologyTriangleList {
		uniforms.SetQuadExtent(1)
	}

	writes := []bind_group_provider.BufferWrite{
		{Provider: r.renderProvider, Binding: r.renderSlots.uniforms, Data: uniforms.Marshal()},
		{Provider: r.renderProvider, Binding: r.renderSlots.entries, Data: r.entryBytes[:visible*splatEntrySize]},
		{Provider: r.renderProvider, Binding: r.renderSlots.sh, Data: r.shBytes[:visible*shStride]},
		{Provider: r.renderProvider, Binding: r.renderSlots.sorting, Data: common.SliceToBytes(result.Pairs())},
	}
	if result.DeviceSorted {
		params := r.layout.SortParams(uint32(visible), result.Indirect)
		writes = append(writes, bind_group_provider.BufferWrite{
			Provider: r.sortProvider, Binding: r.sortSlots.params, Data: params.Marshal(),
		})
	}
	return writes
}

func (r *renderer) sortingSlot() bind_group_provider.BufferSlot {
	return bind_group_provider.BufferSlot{Provider: r.renderProvider, Binding: r.renderSlots.sorting}
}

// computeEncoder maps the sorter's named buffers and pipelines onto the renderer's
// providers and records through the backend.
type computeEncoder struct {
	r *renderer
}

var _ sorter.ComputeEncoder = &computeEncoder{}

func (e *computeEncoder) slot(b sorter.Buffer) bind_group_provider.BufferSlot {
	switch b {
	case sorter.BufferSorting:
		return e.r.sortingSlot()
	case sorter.BufferScatter:
		return bind_group_provider.BufferSlot{Provider: e.r.sortProvider, Binding: e.r.sortSlots.scatter}
	case sorter.BufferRoundTable:
		return bind_group_provider.BufferSlot{Provider: e.r.roundProvider, Binding: roundTableBinding}
	case sorter.BufferSortParams:
		return bind_group_provider.BufferSlot{Provider: e.r.sortProvider, Binding: e.r.sortSlots.params}
	}
	return bind_group_provider.BufferSlot{}
}

func (e *computeEncoder) ClearBuffer(buffer sorter.Buffer, offset, size uint64) {
	e.r.backend.ClearBuffer(e.slot(buffer), offset, size)
}

func (e *computeEncoder) CopyBuffer(src sorter.Buffer, srcOffset uint64, dst sorter.Buffer, dstOffset, size uint64) {
	e.r.backend.CopyBuffer(e.slot(src), srcOffset, e.slot(dst), dstOffset, size)
}

func (e *computeEncoder) Dispatch(pipelineKey string, x, y, z uint32) {
	e.r.backend.DispatchCompute(e.r.pipelineCache[pipelineKey], e.r.sortProvider, [3]uint32{x, y, z})
}

func (r *renderer) Rebuild(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	layout := sorter.NewLayout(&cfg)
	strategy, err := sorter.New(cfg.DepthSorting, layout)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("%w: Rebuild after Close", ErrInvalidState)
	}
	if cfg.MSAASamples != r.cfg.MSAASamples {
		return fmt.Errorf("%w: msaa_samples cannot change on Rebuild", config.ErrInvalidConfig)
	}

	r.cleanup()
	surfaceChanged := cfg.Surface != r.cfg.Surface
	r.cfg, r.layout, r.strategy = cfg, layout, strategy
	if surfaceChanged {
		r.backend.SetPresentMode(cfg.Surface.PresentMode)
		if err := r.backend.ConfigureSurface(r.surfaceSize[0], r.surfaceSize[1]); err != nil {
			return err
		}
	}
	common.Logf("[Renderer] rebuilt with %s sorting", cfg.DepthSorting)
	return nil
}

func (r *renderer) Resize(width, height int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("%w: Resize after Close", ErrInvalidState)
	}
	if width <= 0 || height <= 0 {
		return nil
	}
	r.surfaceSize = [2]int{width, height}
	return r.backend.ConfigureSurface(width, height)
}

func (r *renderer) SetPresentMode(mode config.PresentMode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.backend.SetPresentMode(mode)
	}
}

func (r *renderer) Cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleanup()
}

// cleanup releases everything created by InitPipelines and InitBuffers.
// Caller must hold the mutex.
func (r *renderer) cleanup() {
	if r.boundScene != nil {
		r.boundScene.ClearHandles()
		r.boundScene = nil
	}
	r.releaseProviders()
	for key, p := range r.pipelineCache {
		p.Release()
		delete(r.pipelineCache, key)
	}
	r.entryBytes, r.shBytes = nil, nil
	r.state = StateUninitialized
}

// releaseProviders releases the sort providers before the render provider, which
// owns the shared sorting buffer.
// Caller must hold the mutex.
func (r *renderer) releaseProviders() {
	for _, p := range []*bind_group_provider.BindGroupProvider{&r.roundProvider, &r.sortProvider, &r.renderProvider} {
		if *p != nil {
			(*p).Release()
			*p = nil
		}
	}
}

func (r *renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.cleanup()
	if r.ownsBackend {
		r.backend.Release()
	}
	r.closed = true
}

// providerHandle is the scene-facing view of a resource owned by a renderer provider.
// Releasing it releases the whole provider, which the renderer tolerates.
type providerHandle struct {
	label    string
	provider bind_group_provider.BindGroupProvider
}

var _ scene.DeviceHandle = &providerHandle{}

func (h *providerHandle) Label() string {
	return h.label
}

func (h *providerHandle) Release() {
	if h.provider != nil {
		h.provider.Release()
	}
}
