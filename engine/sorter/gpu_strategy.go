package sorter

import (
	"github.com/Carmen-Shannon/oxy-splat/common"
	"github.com/Carmen-Shannon/oxy-splat/engine/config"
	"github.com/Carmen-Shannon/oxy-splat/engine/splat"
)

// gpuStrategy uploads visible splats in index order with their depth keys and
// sorts the pairs on the device. With indirect set, the prefix pass also writes
// the draw arguments.
type gpuStrategy struct {
	layout   Layout
	indirect bool
}

var _ Strategy = &gpuStrategy{}

func (s *gpuStrategy) Kind() config.DepthSorting {
	if s.indirect {
		return config.DepthSortingGPUIndirectDraw
	}
	return config.DepthSortingGPU
}

func (s *gpuStrategy) Order(splats []splat.Splat, visible []uint32) Result {
	keys := make([]uint32, len(visible))
	for i, idx := range visible {
		keys[i] = SortKey(splats[idx].Depth)
	}
	return Result{
		Order:        visible,
		Keys:         keys,
		DeviceSorted: true,
		Indirect:     s.indirect,
	}
}

// Encode records: clear, histogram, prefix, then per digit place the round index
// copy, the scatter dispatch and the scatter-to-pairs copy.
func (s *gpuStrategy) Encode(enc ComputeEncoder, splatCount, visible uint32) {
	offset, size := s.layout.ClearRange()
	enc.ClearBuffer(BufferSorting, offset, size)

	groups := max(common.DivCeil(splatCount, WorkgroupEntries), 1)
	enc.Dispatch(PipelineHistogram, groups, 1, 1)
	enc.Dispatch(PipelinePrefix, s.layout.Places, 1, 1)

	for round := range s.layout.Places {
		enc.CopyBuffer(BufferRoundTable, uint64(round)*4, BufferSortParams, 0, 4)
		enc.Dispatch(PipelineScatter, groups, 1, 1)
		if visible > 0 {
			enc.CopyBuffer(BufferScatter, 0, BufferSorting, 0, uint64(visible)*8)
		}
	}
}
