package sorter

import (
	"cmp"
	"slices"

	"github.com/Carmen-Shannon/oxy-splat/engine/config"
	"github.com/Carmen-Shannon/oxy-splat/engine/splat"
)

// cpuStrategy sorts visible splats back to front on the host. Only the returned
// Order is sorted: the splat array and the visible list are left untouched, so the
// scene keeps its file order.
type cpuStrategy struct{}

var _ Strategy = &cpuStrategy{}

func (s *cpuStrategy) Kind() config.DepthSorting {
	return config.DepthSortingCPU
}

func (s *cpuStrategy) Order(splats []splat.Splat, visible []uint32) Result {
	order := slices.Clone(visible)
	slices.SortStableFunc(order, func(a, b uint32) int {
		return cmp.Compare(splats[b].Depth, splats[a].Depth)
	})
	return Result{Order: order}
}

func (s *cpuStrategy) Encode(ComputeEncoder, uint32, uint32) {}
