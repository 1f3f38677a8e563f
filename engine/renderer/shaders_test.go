package renderer

import (
	"encoding/binary"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/naga"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-splat/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-splat/engine/sorter"
)

func TestRenderShaderDeclarations(t *testing.T) {
	vs, err := shader.NewShader("vs", shader.ShaderTypeVertex, splatRenderSource)
	require.NoError(t, err)
	fs, err := shader.NewShader("fs", shader.ShaderTypeFragment, splatRenderSource)
	require.NoError(t, err)

	assert.Equal(t, "vs_main", vs.EntryPoint())
	assert.Equal(t, "fs_main", fs.EntryPoint())

	for res, want := range map[shader.AnnotationArg]int{
		shader.AnnotationArgSplatUniforms:  0,
		shader.AnnotationArgSplatEntry:     1,
		shader.AnnotationArgSorting:        2,
		shader.AnnotationArgSHCoefficients: 3,
	} {
		group, binding, ok := vs.Binding(res)
		require.True(t, ok, "resource %s", res)
		assert.Equal(t, 0, group)
		assert.Equal(t, want, binding, "resource %s", res)
	}

	entries := vs.BindGroupLayoutDescriptors()[0].Entries
	require.Len(t, entries, 4)
	assert.Equal(t, wgpu.BufferBindingTypeUniform, entries[0].Buffer.Type)
	assert.Equal(t, uint64(160), entries[0].Buffer.MinBindingSize)
	assert.Equal(t, wgpu.BufferBindingTypeReadOnlyStorage, entries[1].Buffer.Type)
	assert.Equal(t, uint64(64), entries[1].Buffer.MinBindingSize)
	assert.Equal(t, wgpu.BufferBindingTypeReadOnlyStorage, entries[2].Buffer.Type)
	assert.Equal(t, uint64(16), entries[3].Buffer.MinBindingSize)
	assert.Equal(t, "color_sh", vs.BindGroupVarName(0, 3))
}

func TestComputeShaderDeclarations(t *testing.T) {
	entryPoints := map[string]string{
		sorter.PipelineHistogram: "histogram_main",
		sorter.PipelinePrefix:    "prefix_main",
		sorter.PipelineScatter:   "scatter_main",
	}
	for _, cs := range computeSources {
		t.Run(cs.key, func(t *testing.T) {
			s, err := shader.NewShader(cs.key, shader.ShaderTypeCompute, cs.source)
			require.NoError(t, err)

			assert.Equal(t, entryPoints[cs.key], s.EntryPoint())
			assert.Equal(t, [3]uint32{sorter.WorkgroupEntries, 1, 1}, s.WorkgroupSize())

			entries := s.BindGroupLayoutDescriptors()[0].Entries
			require.Len(t, entries, 3)
			assert.Equal(t, wgpu.BufferBindingTypeUniform, entries[0].Buffer.Type)
			assert.Equal(t, uint64(48), entries[0].Buffer.MinBindingSize)
			assert.Equal(t, wgpu.BufferBindingTypeStorage, entries[1].Buffer.Type)
			assert.Equal(t, wgpu.BufferBindingTypeStorage, entries[2].Buffer.Type)
			for _, e := range entries {
				assert.Equal(t, wgpu.ShaderStageCompute, e.Visibility)
			}

			slots, err := resolveBindings(s, shader.AnnotationArgSortParams, shader.AnnotationArgSorting, shader.AnnotationArgScatter)
			require.NoError(t, err)
			assert.Equal(t, []int{0, 1, 2}, slots)
		})
	}
}

func TestResolveBindingsMissing(t *testing.T) {
	s, err := shader.NewShader("hist", shader.ShaderTypeCompute, radixSortHistogramSource)
	require.NoError(t, err)
	_, err = resolveBindings(s, shader.AnnotationArgSHCoefficients)
	assert.ErrorIs(t, err, ErrMissingBinding)
}

// TestShadersCompileWithNaga runs the processed sources through naga. Features the
// pure-Go front end has not implemented yet skip rather than fail.
func TestShadersCompileWithNaga(t *testing.T) {
	sources := map[string]string{"splat_render": splatRenderSource}
	for _, cs := range computeSources {
		sources[cs.key] = cs.source
	}
	for key, src := range sources {
		t.Run(key, func(t *testing.T) {
			kind := shader.ShaderTypeCompute
			if key == "splat_render" {
				kind = shader.ShaderTypeVertex
			}
			s, err := shader.NewShader(key, kind, src)
			require.NoError(t, err)

			spirv, err := naga.Compile(s.Source())
			if err != nil {
				t.Skipf("Skipping: naga cannot compile %s yet: %v", key, err)
			}
			require.GreaterOrEqual(t, len(spirv), 4)
			assert.Equal(t, uint32(0x07230203), binary.LittleEndian.Uint32(spirv), "SPIR-V magic")
		})
	}
}
