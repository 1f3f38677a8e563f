package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Parallel()
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, DepthSortingCPU, c.DepthSorting)
	assert.Equal(t, float32(0.1), c.FrustumCullingTolerance)
	assert.Equal(t, float32(0.01), c.EllipseMargin)
	assert.Equal(t, float32(1), c.SplatScale)
	assert.Equal(t, uint32(10000), c.MaxSplatCount)
	assert.Equal(t, uint32(1), c.RadixBitsPerDigit)
	assert.Equal(t, uint32(0), c.SphericalHarmonicsOrder)
	assert.Equal(t, SurfaceConfig{Format: "bgra8unorm-srgb", Width: 800, Height: 600, PresentMode: PresentModeImmediate}, c.Surface)
	assert.False(t, c.CullNDC)
}

func TestRadixDerivedValues(t *testing.T) {
	t.Parallel()
	tests := []struct {
		bits, base, places uint32
	}{
		{1, 2, 32},
		{3, 8, 11},
		{4, 16, 8},
		{5, 32, 7},
		{8, 256, 4},
	}
	for _, tt := range tests {
		c := Default()
		c.RadixBitsPerDigit = tt.bits
		assert.Equal(t, tt.base, c.RadixBase(), "bits %d", tt.bits)
		assert.Equal(t, tt.places, c.RadixDigitPlaces(), "bits %d", tt.bits)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero radix bits", func(c *Config) { c.RadixBitsPerDigit = 0 }},
		{"wide radix bits", func(c *Config) { c.RadixBitsPerDigit = 9 }},
		{"zero max splats", func(c *Config) { c.MaxSplatCount = 0 }},
		{"sh order", func(c *Config) { c.SphericalHarmonicsOrder = 4 }},
		{"tolerance", func(c *Config) { c.FrustumCullingTolerance = 0 }},
		{"negative margin", func(c *Config) { c.EllipseMargin = -1 }},
		{"scale", func(c *Config) { c.SplatScale = 0 }},
		{"workers", func(c *Config) { c.ComputeWorkers = 0 }},
		{"msaa", func(c *Config) { c.MSAASamples = 2 }},
		{"surface size", func(c *Config) { c.Surface.Width = 0 }},
		{"surface format", func(c *Config) { c.Surface.Format = "r8unorm" }},
		{"present mode", func(c *Config) { c.Surface.PresentMode = "vsync" }},
		{"strategy", func(c *Config) { c.DepthSorting = DepthSorting(7) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			assert.ErrorIs(t, c.Validate(), ErrInvalidConfig)
		})
	}
}

func TestValidateBufferLimits(t *testing.T) {
	t.Parallel()
	c := Default()
	c.RadixBitsPerDigit = 8
	c.MaxSplatCount = 2_097_152
	require.NoError(t, c.Validate())

	c.MaxSplatCount++
	err := c.Validate()
	require.ErrorIs(t, err, ErrInvalidConfig)
	var sizeErr *BufferSizeError
	require.ErrorAs(t, err, &sizeErr)
	assert.Equal(t, "entries", sizeErr.Buffer)
	assert.Equal(t, uint64(c.MaxSplatCount)*64, sizeErr.Size)
	assert.Equal(t, MaxStorageBufferBindingSize, sizeErr.Limit)

	c.MaxSplatCount = 800_000_000
	assert.Greater(t, c.SortingBufferWords(), uint64(1)<<32)
	err = c.Validate()
	require.ErrorAs(t, err, &sizeErr)
	assert.Contains(t, err.Error(), "sorting buffer needs")
}

func TestParseDepthSorting(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]DepthSorting{
		"cpu":               DepthSortingCPU,
		"GPU":               DepthSortingGPU,
		"gpu_indirect_draw": DepthSortingGPUIndirectDraw,
		"gpu-indirect-draw": DepthSortingGPUIndirectDraw,
	} {
		got, err := ParseDepthSorting(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseDepthSorting("radix")
	assert.ErrorIs(t, err, ErrInvalidConfig)

	assert.False(t, DepthSortingCPU.UsesDevice())
	assert.True(t, DepthSortingGPU.UsesDevice())
	assert.True(t, DepthSortingGPUIndirectDraw.UsesDevice())
}

func TestParseJSONC(t *testing.T) {
	t.Parallel()
	doc := `{
		// device sort with indirect draw
		"depth_sorting": "gpu_indirect_draw",
		"radix_bits_per_digit": 4,
		"max_splat_count": 250000,
		"primitive_topology": "triangle-list",
		"cull_ndc": true,
		"surface": {"width": 1280, "height": 720, "format": "bgra8unorm", "present_mode": "fifo"},
	}`
	got, err := Parse([]byte(doc))
	require.NoError(t, err)

	want := Default()
	want.DepthSorting = DepthSortingGPUIndirectDraw
	want.RadixBitsPerDigit = 4
	want.MaxSplatCount = 250000
	want.Topology = TopologyTriangleList
	want.CullNDC = true
	want.Surface = SurfaceConfig{Format: "bgra8unorm", Width: 1280, Height: 720, PresentMode: PresentModeFifo}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Parse mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown field", `{"depth_sort": "gpu"}`},
		{"unknown strategy", `{"depth_sorting": "quick"}`},
		{"invalid value", `{"radix_bits_per_digit": 12}`},
		{"malformed", `{"depth_sorting": `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadRoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	c := Default()
	c.DepthSorting = DepthSortingGPU
	c.SphericalHarmonicsOrder = 1
	data, err := c.Marshal()
	require.NoError(t, err)

	path := filepath.Join(dir, "splat.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(c, got))

	_, err = Load(filepath.Join(dir, "splat.yaml"))
	assert.Error(t, err)
	_, err = Load(filepath.Join(dir, "missing.jsonc"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
