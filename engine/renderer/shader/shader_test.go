package shader

import (
	"errors"
	"strings"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-splat/engine/splat"
)

func intPtr(v int) *int { return &v }

func TestParseAnnotation(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    *Annotation
		wantErr string
	}{
		{name: "plain wgsl", line: "let x = 1;"},
		{name: "ordinary comment", line: "// nothing to see"},
		{
			name: "include",
			line: "//@oxy:include splat_entry",
			want: &Annotation{Type: annotationTypeInclude, Args: []AnnotationArg{AnnotationArgSplatEntry}, Line: 3},
		},
		{
			name: "group array",
			line: "  //@oxy:group 0 1 storage_read entries array<splat_entry>",
			want: &Annotation{
				Type:    AnnotationTypeBindingGroup,
				Args:    []AnnotationArg{annotationArgStorageTypeRead, "entries", "array<splat_entry>"},
				Line:    3,
				Group:   intPtr(0),
				Binding: intPtr(1),
			},
		},
		{
			name: "provider",
			line: "//@oxy:provider 1 2 scatter",
			want: &Annotation{
				Type:    AnnotationTypeProvider,
				Args:    []AnnotationArg{AnnotationArgScatter},
				Line:    3,
				Group:   intPtr(1),
				Binding: intPtr(2),
			},
		},
		{name: "empty", line: "//@oxy:", wantErr: "empty @oxy annotation"},
		{name: "unknown type", line: "//@oxy:texture 0 0", wantErr: "unknown @oxy annotation type"},
		{name: "include arity", line: "//@oxy:include", wantErr: "exactly one argument"},
		{name: "include unknown struct", line: "//@oxy:include camera", wantErr: "unknown struct type"},
		{name: "group arity", line: "//@oxy:group 0 0 storage_uniform uniforms", wantErr: "five arguments"},
		{name: "group bad number", line: "//@oxy:group x 0 storage_uniform uniforms splat_uniforms", wantErr: "invalid group number"},
		{name: "binding bad number", line: "//@oxy:group 0 y storage_uniform uniforms splat_uniforms", wantErr: "invalid binding number"},
		{name: "group address space", line: "//@oxy:group 0 0 private uniforms splat_uniforms", wantErr: "unknown address space"},
		{name: "group struct", line: "//@oxy:group 0 0 storage_read lights array<light>", wantErr: "unknown struct type"},
		{name: "provider arity", line: "//@oxy:provider 0 2", wantErr: "three arguments"},
		{name: "provider identity", line: "//@oxy:provider 0 2 depth", wantErr: "unknown provider identity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAnnotation(tt.line, 3)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.True(t, strings.HasPrefix(err.Error(), "line 3:"), err.Error())
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("parseAnnotation() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAnnotationResource(t *testing.T) {
	assert.Equal(t, AnnotationArgSplatEntry, Annotation{
		Type: AnnotationTypeBindingGroup,
		Args: []AnnotationArg{annotationArgStorageTypeRead, "entries", "array<splat_entry>"},
	}.Resource())
	assert.Equal(t, AnnotationArgSorting, Annotation{
		Type: AnnotationTypeProvider,
		Args: []AnnotationArg{AnnotationArgSorting},
	}.Resource())
	assert.Equal(t, AnnotationArg(""), Annotation{
		Type: annotationTypeInclude,
		Args: []AnnotationArg{AnnotationArgSortParams},
	}.Resource())
}

func TestPreProcessorProcess(t *testing.T) {
	src := strings.Join([]string{
		"//@oxy:include sort_params",
		"//@oxy:group 0 0 storage_uniform params sort_params",
		"//@oxy:group 0 1 storage_read entries array<splat_entry>",
		"//@oxy:provider 0 2 sorting",
		"@group(0) @binding(2) var<storage, read_write> sorting: array<atomic<u32>>;",
	}, "\n")

	pp := NewPreProcessor()
	out, err := pp.Process(src)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, splat.GPUSortParamsSource))
	assert.Contains(t, out, "@group(0) @binding(0) var<uniform> params: SortParams;")
	assert.Contains(t, out, "@group(0) @binding(1) var<storage, read> entries: array<SplatEntry>;")
	assert.Contains(t, out, "@group(0) @binding(2) var<storage, read_write> sorting: array<atomic<u32>>;")
	assert.NotContains(t, out, "@oxy:")

	decls := pp.Declarations()
	require.Len(t, decls, 3)
	assert.Equal(t, AnnotationArgSortParams, decls[0].Resource())
	assert.Equal(t, AnnotationArgSplatEntry, decls[1].Resource())
	assert.Equal(t, AnnotationArgSorting, decls[2].Resource())

	// A second run starts from an empty declaration list.
	_, err = pp.Process("//@oxy:provider 0 3 sh_coefficients")
	require.NoError(t, err)
	require.Len(t, pp.Declarations(), 1)
	assert.Equal(t, AnnotationArgSHCoefficients, pp.Declarations()[0].Resource())
}

func TestPreProcessorReportsLine(t *testing.T) {
	_, err := NewPreProcessor().Process("fn f() {}\n\n//@oxy:include camera")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3:")
}

func TestGPURecordLayouts(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   wgslTypeLayout
	}{
		{"SplatUniforms", splat.GPUSplatUniformsSource, wgslTypeLayout{size: 160, align: 16}},
		{"SplatEntry", splat.GPUSplatEntrySource, wgslTypeLayout{size: 64, align: 16}},
		{"SortParams", splat.GPUSortParamsSource, wgslTypeLayout{size: 48, align: 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			layouts := computeStructSizes(parseStructBlocks(stripComments(tt.source)))
			got, ok := layouts[tt.name]
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNestedStructLayout(t *testing.T) {
	src := `
struct Outer {
    inner: Inner,
    tail: f32,
};
struct Inner {
    a: vec3<f32>,
    b: f32,
};`
	layouts := computeStructSizes(parseStructBlocks(src))
	assert.Equal(t, wgslTypeLayout{size: 16, align: 16}, layouts["Inner"])
	assert.Equal(t, wgslTypeLayout{size: 32, align: 16}, layouts["Outer"])
}

func TestStructLayoutSkipsBuiltins(t *testing.T) {
	src := `struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
};`
	layouts := computeStructSizes(parseStructBlocks(src))
	assert.Equal(t, wgslTypeLayout{size: 8, align: 8}, layouts["VertexOutput"])
}

func TestResolveTypeLayout(t *testing.T) {
	known := map[string]wgslTypeLayout{"SplatEntry": {size: 64, align: 16}}
	tests := []struct {
		typeName string
		want     wgslTypeLayout
		ok       bool
	}{
		{"u32", wgslTypeLayout{4, 4}, true},
		{"mat4x4<f32>", wgslTypeLayout{64, 16}, true},
		{"array<u32, 4>", wgslTypeLayout{16, 4}, true},
		{"array<vec3<f32>>", wgslTypeLayout{16, 16}, true},
		{"array<vec3<f32>, 2>", wgslTypeLayout{32, 16}, true},
		{"array<atomic<u32>>", wgslTypeLayout{4, 4}, true},
		{"array<SplatEntry>", wgslTypeLayout{64, 16}, true},
		{"texture_2d<f32>", wgslTypeLayout{}, false},
		{"array<u32, n>", wgslTypeLayout{}, false},
		{"array<Missing>", wgslTypeLayout{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.typeName, func(t *testing.T) {
			got, ok := resolveTypeLayout(tt.typeName, known)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStripComments(t *testing.T) {
	src := "a /* outer /* inner */ still */ b // line\nc"
	assert.Equal(t, "a  b \nc", stripComments(src))
	assert.Equal(t, "x", stripComments("x// trailing"))
}

func TestSplitAtTopLevelCommas(t *testing.T) {
	assert.Equal(t, []string{"array<u32, 4>", " f32"}, splitAtTopLevelCommas("array<u32, 4>, f32"))
	assert.Equal(t, []string{"u32"}, splitAtTopLevelCommas("u32"))
	assert.Equal(t, []string{"a", "", "b"}, splitAtTopLevelCommas("a,,b"))
}

func TestParseWorkgroupSize(t *testing.T) {
	assert.Equal(t, [3]uint32{64, 1, 1}, parseWorkgroupSize("@compute @workgroup_size(64)\nfn main() {}"))
	assert.Equal(t, [3]uint32{8, 8, 1}, parseWorkgroupSize("@compute @workgroup_size(8, 8)\nfn main() {}"))
	assert.Equal(t, [3]uint32{4, 2, 2}, parseWorkgroupSize("@workgroup_size( 4 , 2 , 2 )"))
	assert.Equal(t, [3]uint32{1, 1, 1}, parseWorkgroupSize("fn main() {}"))
	assert.Equal(t, [3]uint32{1, 1, 1}, parseWorkgroupSize("// @workgroup_size(32)\nfn main() {}"))
}

func TestParseEntryPoint(t *testing.T) {
	src := "@vertex\nfn vs_main() {}\n// @fragment fn commented() {}\n@fragment fn fs_main() {}"
	assert.Equal(t, "vs_main", parseEntryPoint(src, ShaderTypeVertex))
	assert.Equal(t, "fs_main", parseEntryPoint(src, ShaderTypeFragment))
	assert.Equal(t, "", parseEntryPoint(src, ShaderTypeCompute))
	assert.Equal(t, "", parseEntryPoint(src, ShaderType(42)))
}

func TestClassifyBuffer(t *testing.T) {
	tests := []struct {
		space string
		want  wgpu.BufferBindingType
		ok    bool
	}{
		{"uniform", wgpu.BufferBindingTypeUniform, true},
		{"storage, read_write", wgpu.BufferBindingTypeStorage, true},
		{"storage, read", wgpu.BufferBindingTypeReadOnlyStorage, true},
		{"storage", wgpu.BufferBindingTypeReadOnlyStorage, true},
		{"", 0, false},
		{"private", 0, false},
	}
	for _, tt := range tests {
		entry, ok := classifyBuffer(5, wgpu.ShaderStageCompute, tt.space)
		assert.Equal(t, tt.ok, ok, tt.space)
		if ok {
			assert.Equal(t, tt.want, entry.Buffer.Type, tt.space)
		}
		assert.Equal(t, uint32(5), entry.Binding)
		assert.Equal(t, wgpu.ShaderStageCompute, entry.Visibility)
	}
}

func TestParseBindGroupLayouts(t *testing.T) {
	src := splat.GPUSplatEntrySource + `
@group(1) @binding(3) var<storage, read> entries: array<SplatEntry>;
@group(1) @binding(0) var<uniform> scale: vec4<f32>;
// @group(1) @binding(7) var<uniform> commented: f32;
@group(0) @binding(0) var tex: texture_2d<f32>;
@group(1) @binding(1) var<storage, read_write> counters: array<atomic<u32>>;
`
	layouts, names := parseBindGroupLayouts(src, wgpu.ShaderStageFragment)

	_, hasTextures := layouts[0]
	assert.False(t, hasTextures)

	entries := layouts[1].Entries
	require.Len(t, entries, 3)
	bindings := []uint32{entries[0].Binding, entries[1].Binding, entries[2].Binding}
	assert.Equal(t, []uint32{0, 1, 3}, bindings)
	assert.Equal(t, uint64(16), entries[0].Buffer.MinBindingSize)
	assert.Equal(t, uint64(4), entries[1].Buffer.MinBindingSize)
	assert.Equal(t, uint64(64), entries[2].Buffer.MinBindingSize)
	assert.Equal(t, wgpu.BufferBindingTypeStorage, entries[1].Buffer.Type)

	assert.Equal(t, "entries", names[1][3])
	assert.Equal(t, "counters", names[1][1])
	assert.Empty(t, names[1][7])
}

const testComputeSource = `//@oxy:include sort_params
//@oxy:group 0 0 storage_uniform params sort_params
//@oxy:provider 0 1 sorting
@group(0) @binding(1) var<storage, read_write> sorting: array<atomic<u32>>;

@compute @workgroup_size(128)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    if (gid.x < params.entry_count) {
        atomicAdd(&sorting[gid.x], 1u);
    }
}
`

func TestNewShader(t *testing.T) {
	s, err := NewShader("test_compute", ShaderTypeCompute, testComputeSource)
	require.NoError(t, err)

	assert.Equal(t, "test_compute", s.Key())
	assert.Equal(t, ShaderTypeCompute, s.ShaderType())
	assert.Equal(t, "main", s.EntryPoint())
	assert.Equal(t, [3]uint32{128, 1, 1}, s.WorkgroupSize())
	assert.NotContains(t, s.Source(), "@oxy:")
	assert.Equal(t, "test_compute", s.Module().Label)
	assert.Equal(t, s.Source(), s.Module().WGSLDescriptor.Code)

	group, binding, ok := s.Binding(AnnotationArgSortParams)
	require.True(t, ok)
	assert.Equal(t, [2]int{0, 0}, [2]int{group, binding})
	group, binding, ok = s.Binding(AnnotationArgSorting)
	require.True(t, ok)
	assert.Equal(t, [2]int{0, 1}, [2]int{group, binding})
	_, _, ok = s.Binding(AnnotationArgScatter)
	assert.False(t, ok)

	entries := s.BindGroupLayoutDescriptors()[0].Entries
	require.Len(t, entries, 2)
	assert.Equal(t, uint64(48), entries[0].Buffer.MinBindingSize)
	assert.Equal(t, "sorting", s.BindGroupVarName(0, 1))
	assert.Equal(t, "", s.BindGroupVarName(2, 0))
	assert.Len(t, s.Declarations(), 2)
}

func TestNewShaderRenderStageHasNoWorkgroup(t *testing.T) {
	src := "@vertex\nfn vs_main() -> @builtin(position) vec4<f32> { return vec4<f32>(0.0); }"
	s, err := NewShader("vs", ShaderTypeVertex, src)
	require.NoError(t, err)
	assert.Equal(t, [3]uint32{}, s.WorkgroupSize())
	assert.Empty(t, s.BindGroupLayoutDescriptors())
}

func TestNewShaderErrors(t *testing.T) {
	_, err := NewShader("frag", ShaderTypeFragment, testComputeSource)
	assert.True(t, errors.Is(err, ErrMissingEntryPoint))

	_, err = NewShader("bad", ShaderTypeCompute, "//@oxy:include nope\n@compute @workgroup_size(1) fn main() {}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shader bad: failed to pre-process source")
}
