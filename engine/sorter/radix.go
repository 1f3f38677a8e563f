package sorter

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-splat/common"
	"github.com/Carmen-Shannon/oxy-splat/engine/splat"
)

// Pair is one (key, index) entry of the sort.
type Pair struct {
	Key   uint32
	Index uint32
}

// HostSorter runs the three radix sort passes on the CPU against a word buffer
// laid out exactly like the device sorting buffer. It executes workgroups one at a
// time in tile claim order, which is one of the orders the device may produce, and
// exists to check the device algorithm and to sort when no device is present.
type HostSorter struct {
	layout  Layout
	params  splat.GPUSortParams
	words   []uint32
	scatter []uint32
}

// NewHostSorter allocates zeroed sorting and scatter buffers for layout.
//
// Parameters:
//   - layout: the sorting buffer layout
//
// Returns:
//   - *HostSorter: the sorter
func NewHostSorter(layout Layout) *HostSorter {
	return &HostSorter{
		layout:  layout,
		words:   make([]uint32, layout.TotalWords),
		scatter: make([]uint32, 2*uint64(layout.MaxEntries)),
	}
}

// Words exposes the sorting buffer contents.
func (h *HostSorter) Words() []uint32 {
	return h.words
}

// Load writes pairs into the pairs region and sets the frame parameters. It fails
// if more pairs are given than the layout was sized for.
//
// Parameters:
//   - pairs: the pairs to sort
//   - writeIndirect: whether PrefixPass writes draw arguments
//
// Returns:
//   - error: error if len(pairs) exceeds the layout capacity
func (h *HostSorter) Load(pairs []Pair, writeIndirect bool) error {
	if uint64(len(pairs)) > uint64(h.layout.MaxEntries) {
		return fmt.Errorf("host sort: %d pairs exceed capacity %d", len(pairs), h.layout.MaxEntries)
	}
	for i, p := range pairs {
		h.words[2*i] = p.Key
		h.words[2*i+1] = p.Index
	}
	h.params = h.layout.SortParams(uint32(len(pairs)), writeIndirect)
	return nil
}

// Clear zeroes the status, histogram and counter regions.
func (h *HostSorter) Clear() {
	clear(h.words[h.layout.StatusWord:h.layout.IndirectWord])
}

// Histogram counts the digit of every key at every place into the global
// histogram region.
//
// Parameters:
//   - workgroups: the number of dispatched workgroups; groups past the entry
//     count do nothing
func (h *HostSorter) Histogram(workgroups uint32) {
	p := h.params
	mask := p.RadixBase - 1
	for wg := range workgroups {
		for lid := range uint32(WorkgroupEntries) {
			i := wg*WorkgroupEntries + lid
			if i >= p.EntryCount {
				continue
			}
			key := h.words[2*i]
			for place := range p.DigitPlaces {
				digit := (key >> (place * p.RadixBits)) & mask
				h.words[p.HistogramOffset+place*p.RadixBase+digit]++
			}
		}
	}
}

// Prefix runs pass B: each place's histogram becomes an exclusive prefix sum, and
// the draw arguments are written when requested.
func (h *HostSorter) Prefix() {
	p := h.params
	for place := range p.DigitPlaces {
		base := p.HistogramOffset + place*p.RadixBase
		var sum uint32
		for d := range p.RadixBase {
			count := h.words[base+d]
			h.words[base+d] = sum
			sum += count
		}
	}
	if p.WriteIndirect == 1 {
		args := splat.NewGPUIndirectArgs(p.EntryCount)
		copy(h.words[p.IndirectOffset:], []uint32{args.VertexCount, args.InstanceCount, args.FirstVertex, args.FirstInstance, 0})
	}
}

// Scatter runs one pass C round for digit place round, writing into the scatter
// buffer, then copies the scatter buffer back over the pairs region the way the
// frame encoder does.
//
// Parameters:
//   - round: the digit place, least significant first
//   - workgroups: the number of dispatched workgroups
func (h *HostSorter) Scatter(round, workgroups uint32) {
	p := h.params
	p.Round = round
	mask := p.RadixBase - 1
	shift := round * p.RadixBits

	digits := make([]uint32, WorkgroupEntries)
	counts := make([]uint32, p.RadixBase)

	for range workgroups {
		counter := p.CounterOffset + round
		tile := h.words[counter]
		h.words[counter]++
		if tile >= p.TileCount {
			continue
		}

		start := tile * WorkgroupEntries
		n := min(p.EntryCount-start, WorkgroupEntries)
		for lid := range n {
			digits[lid] = (h.words[2*(start+lid)] >> shift) & mask
		}
		clear(counts)
		for lid := range n {
			counts[digits[lid]]++
		}

		status := p.StatusOffset + (round*p.MaxTiles+tile)*p.RadixBase
		prefixes := make([]uint32, p.RadixBase)
		for d := range p.RadixBase {
			if tile == 0 {
				h.words[status+d] = statusFlagPrefix | counts[d]
				continue
			}
			h.words[status+d] = statusFlagAggregate | counts[d]
			prefixes[d] = h.lookBack(p, round, tile, d)
			h.words[status+d] = statusFlagPrefix | (prefixes[d] + counts[d])
		}

		global := p.HistogramOffset + round*p.RadixBase
		for lid := range n {
			d := digits[lid]
			var rank uint32
			for j := range lid {
				if digits[j] == d {
					rank++
				}
			}
			pos := h.words[global+d] + prefixes[d] + rank
			h.scatter[2*pos] = h.words[2*(start+lid)]
			h.scatter[2*pos+1] = h.words[2*(start+lid)+1]
		}
	}

	copy(h.words[:2*p.EntryCount], h.scatter[:2*p.EntryCount])
}

// lookBack sums the counts of digit d over the tiles before tile, stopping at the
// first tile that has published an inclusive prefix.
func (h *HostSorter) lookBack(p splat.GPUSortParams, round, tile, d uint32) uint32 {
	var sum uint32
	for j := int64(tile) - 1; j >= 0; j-- {
		word := h.words[p.StatusOffset+(round*p.MaxTiles+uint32(j))*p.RadixBase+d]
		switch word & statusFlagMask {
		case statusFlagPrefix:
			return sum + word&statusCountMask
		case statusFlagAggregate:
			sum += word & statusCountMask
		default:
			// Tiles run in claim order here, so an earlier tile is never unpublished.
			panic(fmt.Sprintf("host sort: tile %d digit %d unpublished", j, d))
		}
	}
	return sum
}

// Pairs reads the first n pairs back out of the pairs region.
func (h *HostSorter) Pairs(n int) []Pair {
	out := make([]Pair, n)
	for i := range out {
		out[i] = Pair{Key: h.words[2*i], Index: h.words[2*i+1]}
	}
	return out
}

// IndirectArgs reads the draw arguments block.
func (h *HostSorter) IndirectArgs() splat.GPUIndirectArgs {
	w := h.words[h.layout.IndirectWord:]
	return splat.GPUIndirectArgs{VertexCount: w[0], InstanceCount: w[1], FirstVertex: w[2], FirstInstance: w[3]}
}

// Sort runs a full frame's sort: clear, histogram, prefix, and every scatter round.
// Workgroups are sized from dispatchEntries, which may exceed len(pairs) the same way
// the device dispatch is sized from the splat count rather than the visible count.
//
// Parameters:
//   - pairs: the pairs to sort
//   - dispatchEntries: the entry count the dispatch size is derived from
//   - writeIndirect: whether draw arguments are written
//
// Returns:
//   - []Pair: the pairs in ascending key order, stable
//   - error: error if pairs exceed the layout capacity
func (h *HostSorter) Sort(pairs []Pair, dispatchEntries uint32, writeIndirect bool) ([]Pair, error) {
	if err := h.Load(pairs, writeIndirect); err != nil {
		return nil, err
	}
	groups := max(common.DivCeil(max(dispatchEntries, uint32(len(pairs))), WorkgroupEntries), 1)
	h.Clear()
	h.Histogram(groups)
	h.Prefix()
	for round := range h.params.DigitPlaces {
		h.Scatter(round, groups)
	}
	return h.Pairs(len(pairs)), nil
}

// RadixSort sorts pairs by key, ascending and stable, with bits per digit, using a
// HostSorter sized for exactly len(pairs).
//
// Parameters:
//   - pairs: the pairs to sort
//   - bits: bits per digit, 1 through 8
//
// Returns:
//   - []Pair: the sorted pairs
func RadixSort(pairs []Pair, bits uint32) []Pair {
	h := NewHostSorter(newLayout(uint32(len(pairs)), bits))
	sorted, _ := h.Sort(pairs, uint32(len(pairs)), false)
	return sorted
}
