// Package config holds the renderer configuration: the depth sorting strategy,
// culling and splat tuning values, radix sort parameters and the surface
// description handed through to the presentation layer.
package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

const (
	// SortWorkgroupEntries is the number of pairs one radix sort workgroup handles.
	SortWorkgroupEntries = 256

	// MaxStorageBufferBindingSize is the largest storage binding the renderer may
	// create. It matches the default device limit the renderer requests.
	MaxStorageBufferBindingSize uint64 = 128 << 20
)

// BufferSizeError reports a persistent device buffer whose size, derived from the
// config, exceeds MaxStorageBufferBindingSize.
type BufferSizeError struct {
	Buffer string
	Size   uint64
	Limit  uint64
}

func (e *BufferSizeError) Error() string {
	return fmt.Sprintf("%s buffer needs %d bytes, device limit is %d", e.Buffer, e.Size, e.Limit)
}

func (e *BufferSizeError) Unwrap() error {
	return ErrInvalidConfig
}

// DepthSorting selects where and how visible splats are ordered each frame.
type DepthSorting int

const (
	// DepthSortingCPU sorts the visible set on the host.
	DepthSortingCPU DepthSorting = iota

	// DepthSortingGPU sorts the visible set with the device radix sort.
	DepthSortingGPU

	// DepthSortingGPUIndirectDraw sorts on the device and draws with arguments the
	// sort writes into the tail of the sorting buffer.
	DepthSortingGPUIndirectDraw
)

var depthSortingNames = map[DepthSorting]string{
	DepthSortingCPU:             "cpu",
	DepthSortingGPU:             "gpu",
	DepthSortingGPUIndirectDraw: "gpu_indirect_draw",
}

// String returns the config spelling of the strategy.
func (d DepthSorting) String() string {
	if s, ok := depthSortingNames[d]; ok {
		return s
	}
	return fmt.Sprintf("DepthSorting(%d)", int(d))
}

// UsesDevice reports whether the strategy runs the device radix sort.
func (d DepthSorting) UsesDevice() bool {
	return d == DepthSortingGPU || d == DepthSortingGPUIndirectDraw
}

// ParseDepthSorting converts "cpu", "gpu" or "gpu_indirect_draw" into a DepthSorting.
//
// Parameters:
//   - s: the strategy name, case-insensitive; "-" is accepted in place of "_"
//
// Returns:
//   - DepthSorting: the parsed strategy
//   - error: ErrInvalidConfig if the name is unknown
func ParseDepthSorting(s string) (DepthSorting, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for d, name := range depthSortingNames {
		if name == norm {
			return d, nil
		}
	}
	return DepthSortingCPU, fmt.Errorf("%w: unknown depth_sorting %q", ErrInvalidConfig, s)
}

func (d DepthSorting) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *DepthSorting) UnmarshalText(b []byte) error {
	v, err := ParseDepthSorting(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Topology is the primitive topology of the splat render pipeline.
type Topology int

const (
	// TopologyPointList draws each generated vertex as a point.
	TopologyPointList Topology = iota

	// TopologyTriangleList draws the six generated vertices as a filled quad.
	TopologyTriangleList
)

// String returns the config spelling of the topology.
func (t Topology) String() string {
	switch t {
	case TopologyPointList:
		return "point-list"
	case TopologyTriangleList:
		return "triangle-list"
	default:
		return fmt.Sprintf("Topology(%d)", int(t))
	}
}

func (t Topology) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Topology) UnmarshalText(b []byte) error {
	switch strings.ReplaceAll(strings.ToLower(string(b)), "_", "-") {
	case "point-list":
		*t = TopologyPointList
	case "triangle-list":
		*t = TopologyTriangleList
	default:
		return fmt.Errorf("%w: unknown primitive_topology %q", ErrInvalidConfig, string(b))
	}
	return nil
}

// PresentMode is the surface presentation mode.
type PresentMode string

const (
	PresentModeImmediate PresentMode = "immediate"
	PresentModeFifo      PresentMode = "fifo"
	PresentModeMailbox   PresentMode = "mailbox"
)

// Surface format names accepted by SurfaceConfig.Format. An empty format selects
// the surface's preferred format.
const (
	SurfaceFormatBGRA8UnormSrgb = "bgra8unorm-srgb"
	SurfaceFormatBGRA8Unorm     = "bgra8unorm"
	SurfaceFormatRGBA8UnormSrgb = "rgba8unorm-srgb"
	SurfaceFormatRGBA8Unorm     = "rgba8unorm"
)

var knownSurfaceFormats = []string{
	"",
	SurfaceFormatBGRA8UnormSrgb,
	SurfaceFormatBGRA8Unorm,
	SurfaceFormatRGBA8UnormSrgb,
	SurfaceFormatRGBA8Unorm,
}

// SurfaceConfig describes the presentation target. It is passed through to the
// renderer backend and never consulted by culling or sorting.
type SurfaceConfig struct {
	Format      string      `json:"format"`
	Width       uint32      `json:"width"`
	Height      uint32      `json:"height"`
	PresentMode PresentMode `json:"present_mode"`
}

// Config is the renderer configuration. It is treated as immutable for the
// lifetime of a Renderer; use Renderer.Rebuild to apply a different Config.
type Config struct {
	DepthSorting DepthSorting `json:"depth_sorting"`

	// FrustumCullingTolerance bounds |x| and |y| of the clip-space position.
	FrustumCullingTolerance float32 `json:"frustum_culling_tolerance"`

	// CullNDC divides the clip-space position by w before the bounds test.
	// Off by default, so culling runs on raw clip coordinates.
	CullNDC bool `json:"cull_ndc"`

	EllipseMargin float32 `json:"ellipse_margin"`
	SplatScale    float32 `json:"splat_scale"`

	// MaxSplatCount sizes every persistent device buffer.
	MaxSplatCount uint32 `json:"max_splat_count"`

	// RadixBitsPerDigit is the digit width of the device radix sort, 1 to 8.
	RadixBitsPerDigit uint32 `json:"radix_bits_per_digit"`

	// SphericalHarmonicsOrder selects the number of color_sh coefficients, 0 to 3.
	SphericalHarmonicsOrder uint32 `json:"spherical_harmonics_order"`

	UseCovarianceForScale  bool `json:"use_covariance_for_scale"`
	UseUnalignedRectangles bool `json:"use_unaligned_rectangles"`

	Topology    Topology `json:"primitive_topology"`
	MSAASamples uint32   `json:"msaa_samples"`

	// ComputeWorkers is the number of host workers used for depth refresh and
	// culling. 1 runs both inline on the calling goroutine.
	ComputeWorkers int `json:"compute_workers"`

	Surface SurfaceConfig `json:"surface"`
}

// Default returns the default configuration: host sorting, tolerance 0.1, margin
// 0.01, scale 1, 10000 splats, 1-bit radix digits, SH order 0 and an 800x600
// bgra8unorm-srgb surface presented immediately.
//
// Returns:
//   - Config: the default configuration
func Default() Config {
	return Config{
		DepthSorting:            DepthSortingCPU,
		FrustumCullingTolerance: 0.1,
		EllipseMargin:           0.01,
		SplatScale:              1.0,
		MaxSplatCount:           10000,
		RadixBitsPerDigit:       1,
		SphericalHarmonicsOrder: 0,
		Topology:                TopologyPointList,
		MSAASamples:             1,
		ComputeWorkers:          1,
		Surface: SurfaceConfig{
			Format:      SurfaceFormatBGRA8UnormSrgb,
			Width:       800,
			Height:      600,
			PresentMode: PresentModeImmediate,
		},
	}
}

// Validate checks every field and returns all problems joined together, each
// wrapping ErrInvalidConfig.
//
// Returns:
//   - error: nil if the config is usable
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...)))
	}

	if _, ok := depthSortingNames[c.DepthSorting]; !ok {
		fail("unknown depth_sorting %d", int(c.DepthSorting))
	}
	if !(c.FrustumCullingTolerance > 0) {
		fail("frustum_culling_tolerance must be > 0, got %v", c.FrustumCullingTolerance)
	}
	if !(c.EllipseMargin >= 0) {
		fail("ellipse_margin must be >= 0, got %v", c.EllipseMargin)
	}
	if !(c.SplatScale > 0) {
		fail("splat_scale must be > 0, got %v", c.SplatScale)
	}
	if c.MaxSplatCount == 0 {
		fail("max_splat_count must be > 0")
	}
	if c.RadixBitsPerDigit < 1 || c.RadixBitsPerDigit > 8 {
		fail("radix_bits_per_digit must be in [1, 8], got %d", c.RadixBitsPerDigit)
	}
	if c.SphericalHarmonicsOrder > 3 {
		fail("spherical_harmonics_order must be in [0, 3], got %d", c.SphericalHarmonicsOrder)
	}
	if c.Topology != TopologyPointList && c.Topology != TopologyTriangleList {
		fail("unknown primitive_topology %d", int(c.Topology))
	}
	switch c.MSAASamples {
	case 1, 4:
	default:
		fail("msaa_samples must be 1 or 4, got %d", c.MSAASamples)
	}
	if c.ComputeWorkers < 1 {
		fail("compute_workers must be >= 1, got %d", c.ComputeWorkers)
	}
	if c.Surface.Width == 0 || c.Surface.Height == 0 {
		fail("surface dimensions must be non-zero, got %dx%d", c.Surface.Width, c.Surface.Height)
	}
	if c.MaxSplatCount > 0 && c.RadixBitsPerDigit >= 1 && c.RadixBitsPerDigit <= 8 && c.SphericalHarmonicsOrder <= 3 {
		errs = append(errs, c.checkBufferSizes()...)
	}
	if !knownSurfaceFormat(c.Surface.Format) {
		fail("unknown surface format %q", c.Surface.Format)
	}
	switch c.Surface.PresentMode {
	case PresentModeImmediate, PresentModeFifo, PresentModeMailbox:
	default:
		fail("unknown surface present_mode %q", c.Surface.PresentMode)
	}
	return errors.Join(errs...)
}

// RadixBase returns the number of distinct digit values, 2^RadixBitsPerDigit.
func (c *Config) RadixBase() uint32 {
	return 1 << c.RadixBitsPerDigit
}

// RadixDigitPlaces returns the number of digit places needed to cover a 32-bit key.
func (c *Config) RadixDigitPlaces() uint32 {
	return (32 + c.RadixBitsPerDigit - 1) / c.RadixBitsPerDigit
}

// SortingBufferWords returns the number of u32 words in the device sorting
// buffer: pairs, per-tile status, global histograms, tile counters and the
// indirect draw arguments. Computed in 64 bits so oversized configs do not wrap.
func (c *Config) SortingBufferWords() uint64 {
	n := uint64(c.MaxSplatCount)
	base := uint64(c.RadixBase())
	places := uint64(c.RadixDigitPlaces())
	tiles := max((n+SortWorkgroupEntries-1)/SortWorkgroupEntries, 1)
	return 2*n + places*tiles*base + places*base + places + 5
}

// checkBufferSizes sizes every storage buffer the renderer allocates from
// max_splat_count and reports the ones over the device limit.
func (c *Config) checkBufferSizes() []error {
	n := uint64(c.MaxSplatCount)
	coefficients := uint64(c.SphericalHarmonicsOrder+1) * uint64(c.SphericalHarmonicsOrder+1)
	sizes := []struct {
		name string
		size uint64
	}{
		{"entries", n * 64},
		{"sh_coefficients", n * coefficients * 16},
		{"sorting", c.SortingBufferWords() * 4},
		{"scatter", n * 8},
	}

	var errs []error
	for _, b := range sizes {
		if b.size > MaxStorageBufferBindingSize {
			errs = append(errs, &BufferSizeError{Buffer: b.name, Size: b.size, Limit: MaxStorageBufferBindingSize})
		}
	}
	return errs
}

func knownSurfaceFormat(f string) bool {
	for _, k := range knownSurfaceFormats {
		if f == k {
			return true
		}
	}
	return false
}
