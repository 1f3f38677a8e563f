package sorter

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-splat/engine/config"
	"github.com/Carmen-Shannon/oxy-splat/engine/splat"
)

// Buffer names the device buffers a Strategy records commands against.
type Buffer string

const (
	// BufferSorting is the pairs + status + histogram + counters + indirect buffer.
	BufferSorting Buffer = "sorting"
	// BufferScatter receives each scatter round's output.
	BufferScatter Buffer = "scatter"
	// BufferRoundTable holds the digit place index for every round.
	BufferRoundTable Buffer = "round_table"
	// BufferSortParams is the sort uniform buffer. Round is its first word.
	BufferSortParams Buffer = "sort_params"
)

// Compute pipeline keys, one per radix sort pass.
const (
	PipelineHistogram = "radix_sort_histogram"
	PipelinePrefix    = "radix_sort_prefix"
	PipelineScatter   = "radix_sort_scatter"
)

// ComputeEncoder records the buffer and compute commands of a device sort into the
// frame's command stream. Commands execute in recording order.
type ComputeEncoder interface {
	// ClearBuffer zeroes size bytes of buffer starting at offset.
	ClearBuffer(buffer Buffer, offset, size uint64)

	// CopyBuffer copies size bytes between buffers.
	CopyBuffer(src Buffer, srcOffset uint64, dst Buffer, dstOffset uint64, size uint64)

	// Dispatch runs the named compute pipeline in its own pass.
	Dispatch(pipeline string, x, y, z uint32)
}

// Result is one frame's ordering decision.
type Result struct {
	// Order lists splat indices in upload order. Entry i of the uploaded entry
	// buffer is splat Order[i]. It is a new slice; the scene's splats stay in file
	// order.
	Order []uint32

	// Keys holds the radix key for each entry of Order when the device sorts.
	Keys []uint32

	// DeviceSorted is true when the device reorders the pairs before drawing.
	DeviceSorted bool

	// Indirect is true when the draw reads its instance count from the device.
	Indirect bool
}

// Visible returns the number of entries uploaded this frame.
func (r *Result) Visible() int {
	return len(r.Order)
}

// Pairs returns the interleaved (key, entry) words uploaded to the pairs region.
// Without device sorting every key is zero and entries are already in draw order.
func (r *Result) Pairs() []uint32 {
	out := make([]uint32, 2*len(r.Order))
	for i := range r.Order {
		if r.Keys != nil {
			out[2*i] = r.Keys[i]
		}
		out[2*i+1] = uint32(i)
	}
	return out
}

// Strategy orders the visible splats of a frame and, when it sorts on the device,
// records the compute work that finishes the job.
type Strategy interface {
	// Kind reports which depth sorting mode the strategy implements.
	Kind() config.DepthSorting

	// Order decides the upload order for the visible splats. Neither splats nor
	// visible is reordered; callers that need the sorted sequence read Result.Order,
	// and the scene keeps its file order.
	//
	// Parameters:
	//   - splats: the authoritative splat array, with depths refreshed for this frame
	//   - visible: indices of splats that passed culling, ascending
	//
	// Returns:
	//   - Result: the ordering decision
	Order(splats []splat.Splat, visible []uint32) Result

	// Encode records the device sort for this frame. It records nothing for
	// host-side strategies.
	//
	// Parameters:
	//   - enc: the frame's command recorder
	//   - splatCount: the total splat count, which sizes the dispatches
	//   - visible: the number of uploaded entries
	Encode(enc ComputeEncoder, splatCount, visible uint32)
}

// New returns the Strategy for a depth sorting mode.
//
// Parameters:
//   - kind: the configured depth sorting mode
//   - layout: the sorting buffer layout, used by device strategies
//
// Returns:
//   - Strategy: the strategy
//   - error: error if kind is unknown
func New(kind config.DepthSorting, layout Layout) (Strategy, error) {
	switch kind {
	case config.DepthSortingCPU:
		return &cpuStrategy{}, nil
	case config.DepthSortingGPU:
		return &gpuStrategy{layout: layout}, nil
	case config.DepthSortingGPUIndirectDraw:
		return &gpuStrategy{layout: layout, indirect: true}, nil
	}
	return nil, fmt.Errorf("sorter: unknown depth sorting mode %d", kind)
}
