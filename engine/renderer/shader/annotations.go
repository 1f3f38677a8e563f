// annotations.go defines the @oxy: annotation grammar understood by the splat shader
// pre-processor. Annotations are single-line WGSL comments that inject shared struct
// definitions, generate @group/@binding declarations, and tag hand-written bindings with
// the renderer resource that backs them. The renderer resolves its binding indices from
// the parsed declarations instead of hard-coding them per shader.
package shader

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// annotationPrefix marks an Oxy annotation inside a WGSL comment line.
const annotationPrefix = "@oxy:"

// AnnotationType identifies the kind of annotation parsed from a WGSL comment line.
type AnnotationType string

const (
	// annotationTypeInclude injects the WGSL source of a registered struct at the
	// annotation site. It produces no declaration.
	//
	// Syntax: //@oxy:include <struct_type>
	//
	// Example: //@oxy:include splat_uniforms
	annotationTypeInclude AnnotationType = "include"

	// AnnotationTypeBindingGroup generates a @group/@binding variable declaration for a
	// registered struct type (optionally wrapped in array<>) and records it.
	//
	// Syntax: //@oxy:group <group> <binding> <address_space> <var_name> <type>
	//
	// Example: //@oxy:group 0 0 storage_uniform uniforms splat_uniforms
	AnnotationTypeBindingGroup AnnotationType = "group"

	// AnnotationTypeProvider records which renderer resource backs a hand-written
	// binding. No WGSL is generated; the declaration below the annotation stays as is.
	// Used for bindings over raw WGSL types such as array<atomic<u32>>.
	//
	// Syntax: //@oxy:provider <group> <binding> <provider_identity>
	//
	// Example: //@oxy:provider 0 2 sorting
	AnnotationTypeProvider AnnotationType = "provider"
)

// Annotation is a single parsed @oxy: annotation.
type Annotation struct {
	// Type identifies which annotation was parsed.
	Type AnnotationType

	// Args holds the annotation's arguments. The contents depend on Type:
	//   - include:  [0] = struct type key
	//   - group:    [0] = address space, [1] = var name, [2] = WGSL type key
	//   - provider: [0] = provider identity
	Args []AnnotationArg

	// Line is the 1-based source line of the annotation.
	Line int

	// Group is the @group index for group and provider annotations. Nil for include.
	Group *int

	// Binding is the @binding index for group and provider annotations. Nil for include.
	Binding *int
}

// AnnotationArg is a typed string used as an annotation argument.
type AnnotationArg string

// Struct type arguments. Each maps to a GPU record in engine/splat with an embedded
// .wgsl asset file.
const (
	// AnnotationArgSplatUniforms identifies the SplatUniforms block.
	// Source: engine/splat/assets/splat_uniforms.wgsl
	AnnotationArgSplatUniforms AnnotationArg = "splat_uniforms"

	// AnnotationArgSplatEntry identifies the per-splat SplatEntry record.
	// Source: engine/splat/assets/splat_entry.wgsl
	AnnotationArgSplatEntry AnnotationArg = "splat_entry"

	// AnnotationArgSortParams identifies the per-round SortParams block.
	// Source: engine/splat/assets/sort_params.wgsl
	AnnotationArgSortParams AnnotationArg = "sort_params"
)

// Address space arguments for @oxy:group annotations.
const (
	annotationArgStorageTypeUniform   AnnotationArg = "storage_uniform"
	annotationArgStorageTypeRead      AnnotationArg = "storage_read"
	annotationArgStorageTypeReadWrite AnnotationArg = "storage_read_write"
)

// Provider identity arguments for @oxy:provider annotations.
const (
	// AnnotationArgSorting identifies the sorting buffer: key/index pairs, tile status,
	// histograms, tile counters and the indirect draw tail.
	AnnotationArgSorting AnnotationArg = "sorting"

	// AnnotationArgScatter identifies the scatter destination of a radix round.
	AnnotationArgScatter AnnotationArg = "scatter"

	// AnnotationArgSHCoefficients identifies the flat color_sh coefficient array.
	AnnotationArgSHCoefficients AnnotationArg = "sh_coefficients"
)

var validStructTypes = []AnnotationArg{
	AnnotationArgSplatUniforms,
	AnnotationArgSplatEntry,
	AnnotationArgSortParams,
}

var validAddressSpaces = []AnnotationArg{
	annotationArgStorageTypeUniform,
	annotationArgStorageTypeRead,
	annotationArgStorageTypeReadWrite,
}

var validProviderIdentities = []AnnotationArg{
	AnnotationArgSorting,
	AnnotationArgScatter,
	AnnotationArgSHCoefficients,
}

// parseAnnotation parses one WGSL source line. Lines without the annotation prefix
// return nil and no error.
//
// Parameters:
//   - line: the raw WGSL source line
//   - lineNum: the 1-based line number for error reporting
//
// Returns:
//   - *Annotation: the parsed annotation, or nil if the line is not an annotation
//   - error: a descriptive error if the annotation is malformed
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	_, after, ok := strings.Cut(strings.TrimSpace(line), annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty @oxy annotation", lineNum)
	}

	switch AnnotationType(args[0]) {
	case annotationTypeInclude:
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy include annotation requires exactly one argument", lineNum)
		}
		if !slices.Contains(validStructTypes, AnnotationArg(args[1])) {
			return nil, fmt.Errorf("line %d: unknown struct type %q in @oxy include annotation", lineNum, args[1])
		}
		return &Annotation{
			Type: annotationTypeInclude,
			Args: []AnnotationArg{AnnotationArg(args[1])},
			Line: lineNum,
		}, nil
	case AnnotationTypeBindingGroup:
		if len(args) != 6 {
			return nil, fmt.Errorf("line %d: @oxy group annotation requires five arguments (group, binding, address space, name, type)", lineNum)
		}
		group, binding, err := parseSlot(args[1], args[2], lineNum)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(validAddressSpaces, AnnotationArg(args[3])) {
			return nil, fmt.Errorf("line %d: unknown address space %q in @oxy group annotation", lineNum, args[3])
		}
		if elem := elementType(AnnotationArg(args[5])); !slices.Contains(validStructTypes, elem) {
			return nil, fmt.Errorf("line %d: unknown struct type %q in @oxy group annotation", lineNum, elem)
		}
		return &Annotation{
			Type:    AnnotationTypeBindingGroup,
			Args:    []AnnotationArg{AnnotationArg(args[3]), AnnotationArg(args[4]), AnnotationArg(args[5])},
			Line:    lineNum,
			Group:   &group,
			Binding: &binding,
		}, nil
	case AnnotationTypeProvider:
		if len(args) != 4 {
			return nil, fmt.Errorf("line %d: @oxy provider annotation requires three arguments (group, binding, provider identity)", lineNum)
		}
		group, binding, err := parseSlot(args[1], args[2], lineNum)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(validProviderIdentities, AnnotationArg(args[3])) {
			return nil, fmt.Errorf("line %d: unknown provider identity %q in @oxy provider annotation", lineNum, args[3])
		}
		return &Annotation{
			Type:    AnnotationTypeProvider,
			Args:    []AnnotationArg{AnnotationArg(args[3])},
			Line:    lineNum,
			Group:   &group,
			Binding: &binding,
		}, nil
	default:
		return nil, fmt.Errorf("line %d: unknown @oxy annotation type %q", lineNum, args[0])
	}
}

func parseSlot(groupArg, bindingArg string, lineNum int) (int, int, error) {
	group, err := strconv.Atoi(groupArg)
	if err != nil {
		return 0, 0, fmt.Errorf("line %d: invalid group number %q: %w", lineNum, groupArg, err)
	}
	binding, err := strconv.Atoi(bindingArg)
	if err != nil {
		return 0, 0, fmt.Errorf("line %d: invalid binding number %q: %w", lineNum, bindingArg, err)
	}
	return group, binding, nil
}

// elementType strips an array<> wrapper from a type argument.
func elementType(arg AnnotationArg) AnnotationArg {
	if inner, ok := strings.CutPrefix(string(arg), "array<"); ok {
		return AnnotationArg(strings.TrimSuffix(inner, ">"))
	}
	return arg
}

// Resource returns the renderer resource a declaration binds: the element struct type
// for group annotations and the provider identity for provider annotations.
func (a Annotation) Resource() AnnotationArg {
	switch a.Type {
	case AnnotationTypeBindingGroup:
		return elementType(a.Args[2])
	case AnnotationTypeProvider:
		return a.Args[0]
	default:
		return ""
	}
}
