// pre_processor.go implements the Oxy WGSL pre-processor. It replaces @oxy: annotations
// with injected struct sources or generated binding declarations and collects the
// declarations list the renderer uses to resolve binding indices.
package shader

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-splat/engine/splat"
)

// registryEntry pairs an embedded WGSL struct source with its WGSL type name.
type registryEntry struct {
	// Source is the raw WGSL struct definition injected by @oxy:include.
	Source string

	// Type is the WGSL type name emitted in @oxy:group declarations.
	Type string
}

type preProcessor struct {
	structRegistry       map[AnnotationArg]registryEntry
	addressSpaceRegistry map[AnnotationArg]string

	// declarations accumulates group and provider annotations. Reset by every Process call.
	declarations []Annotation
}

// PreProcessor expands @oxy: annotations in WGSL source and records the binding
// declarations it encountered.
type PreProcessor interface {
	// Process replaces @oxy: annotations with their WGSL output. Include annotations
	// become the embedded struct source, group annotations become @group/@binding
	// declarations, provider annotations produce nothing but are recorded.
	//
	// Parameters:
	//   - source: the raw WGSL source
	//
	// Returns:
	//   - string: the processed WGSL source
	//   - error: an error if any annotation is malformed
	Process(source string) (string, error)

	// Declarations returns the group and provider annotations collected by the most
	// recent Process call, in source order.
	Declarations() []Annotation
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor with the splat GPU records registered.
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor
func NewPreProcessor() PreProcessor {
	return &preProcessor{
		structRegistry: map[AnnotationArg]registryEntry{
			AnnotationArgSplatUniforms: {Source: splat.GPUSplatUniformsSource, Type: "SplatUniforms"},
			AnnotationArgSplatEntry:    {Source: splat.GPUSplatEntrySource, Type: "SplatEntry"},
			AnnotationArgSortParams:    {Source: splat.GPUSortParamsSource, Type: "SortParams"},
		},
		addressSpaceRegistry: map[AnnotationArg]string{
			annotationArgStorageTypeUniform:   "var<uniform>",
			annotationArgStorageTypeRead:      "var<storage, read>",
			annotationArgStorageTypeReadWrite: "var<storage, read_write>",
		},
	}
}

func (p *preProcessor) Process(source string) (string, error) {
	p.declarations = p.declarations[:0]

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		switch a.Type {
		case annotationTypeInclude:
			entry, ok := p.structRegistry[a.Args[0]]
			if !ok {
				return "", fmt.Errorf("line %d: unknown @oxy:include argument %q", a.Line, a.Args[0])
			}
			out = append(out, entry.Source)
		case AnnotationTypeBindingGroup:
			entry := p.structRegistry[elementType(a.Args[2])]
			wgslType := entry.Type
			if elementType(a.Args[2]) != a.Args[2] {
				wgslType = fmt.Sprintf("array<%s>", entry.Type)
			}
			out = append(out, fmt.Sprintf("@group(%d) @binding(%d) %s %s: %s;",
				*a.Group, *a.Binding, p.addressSpaceRegistry[a.Args[0]], a.Args[1], wgslType))
			p.declarations = append(p.declarations, *a)
		case AnnotationTypeProvider:
			p.declarations = append(p.declarations, *a)
		}
	}
	return strings.Join(out, "\n"), nil
}

func (p *preProcessor) Declarations() []Annotation {
	return p.declarations
}
