package shader

import (
	"errors"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/naga"
)

// ErrMissingEntryPoint is returned when a shader source has no entry point for its stage.
var ErrMissingEntryPoint = errors.New("shader has no entry point for its stage")

// ShaderType identifies the pipeline stage a shader is built for.
type ShaderType int

const (
	// ShaderTypeCompute indicates a shader containing a @compute entry point.
	ShaderTypeCompute ShaderType = iota

	// ShaderTypeVertex is the vertex stage of a render pipeline.
	ShaderTypeVertex

	// ShaderTypeFragment is the fragment stage paired with a vertex shader.
	ShaderTypeFragment
)

// shader is the implementation of the Shader interface.
type shader struct {
	key                        string
	source                     string
	shaderType                 ShaderType
	bindGroupLayoutDescriptors map[int]wgpu.BindGroupLayoutDescriptor
	bindingVarNames            map[int]map[int]string
	workGroupSize              [3]uint32
	entryPoint                 string
	module                     *wgpu.ShaderModuleDescriptor
	declarations               []Annotation
}

// Shader is a pre-processed and parsed WGSL shader ready for pipeline creation.
type Shader interface {
	// Key returns the unique identifier used to cache pipelines built from this shader.
	Key() string

	// Source returns the processed WGSL source.
	Source() string

	// ShaderType returns the stage this shader was built for.
	ShaderType() ShaderType

	// EntryPoint returns the entry point name for the shader's stage.
	EntryPoint() string

	// WorkgroupSize returns the @workgroup_size of a compute shader, or [0, 0, 0]
	// for render stages.
	WorkgroupSize() [3]uint32

	// Module returns the shader module descriptor built from the processed source.
	Module() *wgpu.ShaderModuleDescriptor

	// BindGroupLayoutDescriptors returns the buffer layouts parsed from the source,
	// keyed by group index.
	BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor

	// BindGroupVarName returns the variable declared at group and binding, or an
	// empty string.
	BindGroupVarName(group, binding int) string

	// Declarations returns the group and provider annotations found in the source.
	Declarations() []Annotation

	// Binding resolves the slot of a renderer resource from the shader's declarations.
	//
	// Parameters:
	//   - resource: a struct type or provider identity, e.g. AnnotationArgSorting
	//
	// Returns:
	//   - int: the @group index
	//   - int: the @binding index
	//   - bool: false if the shader does not declare the resource
	Binding(resource AnnotationArg) (int, int, bool)

	// Validate compiles the processed source with naga and reports the first front-end
	// or validation error.
	//
	// Returns:
	//   - error: nil if the source compiles
	Validate() error
}

var _ Shader = &shader{}

// NewShader pre-processes WGSL source and parses the metadata needed for pipeline
// creation: entry point, workgroup size and bind group layouts.
//
// Parameters:
//   - key: a unique identifier for the shader
//   - shaderType: the stage the shader is built for
//   - source: the raw WGSL source, typically embedded with go:embed
//
// Returns:
//   - Shader: the parsed shader
//   - error: error if pre-processing fails or the stage has no entry point
func NewShader(key string, shaderType ShaderType, source string) (Shader, error) {
	pp := NewPreProcessor()
	processed, err := pp.Process(source)
	if err != nil {
		return nil, fmt.Errorf("shader %s: failed to pre-process source: %w", key, err)
	}

	s := &shader{
		key:          key,
		source:       processed,
		shaderType:   shaderType,
		declarations: append([]Annotation(nil), pp.Declarations()...),
		entryPoint:   parseEntryPoint(processed, shaderType),
	}
	if s.entryPoint == "" {
		return nil, fmt.Errorf("shader %s: %w", key, ErrMissingEntryPoint)
	}

	var visibility wgpu.ShaderStage
	switch shaderType {
	case ShaderTypeVertex:
		visibility = wgpu.ShaderStageVertex
	case ShaderTypeFragment:
		visibility = wgpu.ShaderStageFragment
	case ShaderTypeCompute:
		visibility = wgpu.ShaderStageCompute
		s.workGroupSize = parseWorkgroupSize(processed)
	}
	s.bindGroupLayoutDescriptors, s.bindingVarNames = parseBindGroupLayouts(processed, visibility)
	s.module = &wgpu.ShaderModuleDescriptor{
		Label:          key,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: processed},
	}
	return s, nil
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) ShaderType() ShaderType {
	return s.shaderType
}

func (s *shader) EntryPoint() string {
	return s.entryPoint
}

func (s *shader) WorkgroupSize() [3]uint32 {
	return s.workGroupSize
}

func (s *shader) Module() *wgpu.ShaderModuleDescriptor {
	return s.module
}

func (s *shader) BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor {
	return s.bindGroupLayoutDescriptors
}

func (s *shader) BindGroupVarName(group, binding int) string {
	return s.bindingVarNames[group][binding]
}

func (s *shader) Declarations() []Annotation {
	return s.declarations
}

func (s *shader) Binding(resource AnnotationArg) (int, int, bool) {
	for _, d := range s.declarations {
		if d.Resource() == resource {
			return *d.Group, *d.Binding, true
		}
	}
	return 0, 0, false
}

func (s *shader) Validate() error {
	if _, err := naga.Compile(s.source); err != nil {
		return fmt.Errorf("shader %s: %w", s.key, err)
	}
	return nil
}
