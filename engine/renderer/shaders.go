package renderer

import (
	_ "embed"

	"github.com/Carmen-Shannon/oxy-splat/engine/sorter"
)

// PipelineSplatRender is the cache key of the splat render pipeline. The radix sort
// pipelines are cached under sorter.PipelineHistogram, sorter.PipelinePrefix and
// sorter.PipelineScatter.
const PipelineSplatRender = "splat_render"

//go:embed assets/splat_render.wgsl
var splatRenderSource string

//go:embed assets/radix_sort_histogram.wgsl
var radixSortHistogramSource string

//go:embed assets/radix_sort_prefix.wgsl
var radixSortPrefixSource string

//go:embed assets/radix_sort_scatter.wgsl
var radixSortScatterSource string

// computeSources lists the radix sort passes in dispatch order.
var computeSources = []struct {
	key    string
	source string
}{
	{sorter.PipelineHistogram, radixSortHistogramSource},
	{sorter.PipelinePrefix, radixSortPrefixSource},
	{sorter.PipelineScatter, radixSortScatterSource},
}
