package sorter

import (
	"github.com/Carmen-Shannon/oxy-splat/common"
	"github.com/Carmen-Shannon/oxy-splat/engine/config"
	"github.com/Carmen-Shannon/oxy-splat/engine/splat"
)

// WorkgroupEntries is the number of pairs each radix sort workgroup processes.
// It must match @workgroup_size in the radix sort shaders.
const WorkgroupEntries = config.SortWorkgroupEntries

// IndirectWords is the number of u32 words reserved for draw arguments at the
// tail of the sorting buffer.
const IndirectWords = 5

// Status word flags used by the scatter pass look-back. The low 30 bits carry a count.
const (
	statusFlagAggregate uint32 = 1 << 30
	statusFlagPrefix    uint32 = 2 << 30
	statusFlagMask      uint32 = 3 << 30
	statusCountMask     uint32 = (1 << 30) - 1
)

// Layout describes the sorting buffer as an array of u32 words. All regions are
// sized from the configured maximum splat count, in this order:
//
//	pairs      2 * MaxEntries      interleaved (key, index)
//	status     Places * MaxTiles * Base   per tile, per digit look-back words
//	histogram  Places * Base       global digit counts, then exclusive offsets
//	counters   Places              dynamic tile counters, one per scatter round
//	indirect   5                   draw arguments
type Layout struct {
	MaxEntries uint32
	Bits       uint32
	Base       uint32
	Places     uint32
	MaxTiles   uint32

	// Region offsets are 64-bit so an oversized config cannot wrap them into
	// overlapping regions. Validated configs keep every offset below 2^32.
	StatusWord    uint64
	HistogramWord uint64
	CounterWord   uint64
	IndirectWord  uint64
	TotalWords    uint64
}

// NewLayout derives the sorting buffer layout from a config.
//
// Parameters:
//   - cfg: a validated config
//
// Returns:
//   - Layout: the buffer layout
func NewLayout(cfg *config.Config) Layout {
	return newLayout(cfg.MaxSplatCount, cfg.RadixBitsPerDigit)
}

func newLayout(maxEntries, bits uint32) Layout {
	l := Layout{
		MaxEntries: maxEntries,
		Bits:       bits,
		Base:       1 << bits,
		Places:     common.DivCeil(32, bits),
		MaxTiles:   max(common.DivCeil(maxEntries, WorkgroupEntries), 1),
	}
	places, base := uint64(l.Places), uint64(l.Base)
	l.StatusWord = 2 * uint64(maxEntries)
	l.HistogramWord = l.StatusWord + places*uint64(l.MaxTiles)*base
	l.CounterWord = l.HistogramWord + places*base
	l.IndirectWord = l.CounterWord + places
	l.TotalWords = l.IndirectWord + IndirectWords
	return l
}

// SizeBytes returns the size of the sorting buffer in bytes.
func (l Layout) SizeBytes() uint64 {
	return l.TotalWords * 4
}

// IndirectOffset returns the byte offset of the draw arguments, SizeBytes() - 20.
func (l Layout) IndirectOffset() uint64 {
	return l.IndirectWord * 4
}

// ClearRange returns the byte range zeroed before every device sort: the status,
// histogram and counter regions. Pairs and draw arguments are left untouched.
//
// Returns:
//   - offset: byte offset of the status region
//   - size: byte length up to the indirect block
func (l Layout) ClearRange() (offset, size uint64) {
	return l.StatusWord * 4, (l.IndirectWord - l.StatusWord) * 4
}

// ScatterSizeBytes returns the size of the scatter buffer in bytes.
func (l Layout) ScatterSizeBytes() uint64 {
	return uint64(l.MaxEntries) * 8
}

// RoundTable returns the digit place indices copied into SortParams.Round before
// each scatter round.
func (l Layout) RoundTable() []uint32 {
	t := make([]uint32, l.Places)
	for i := range t {
		t[i] = uint32(i)
	}
	return t
}

// SortParams builds the per-frame sort constants.
//
// Parameters:
//   - entries: the number of pairs to sort this frame
//   - writeIndirect: whether the prefix pass emits draw arguments
//
// Returns:
//   - splat.GPUSortParams: the uniform contents with Round set to 0
func (l Layout) SortParams(entries uint32, writeIndirect bool) splat.GPUSortParams {
	p := splat.GPUSortParams{
		EntryCount:      entries,
		TileCount:       common.DivCeil(entries, WorkgroupEntries),
		RadixBits:       l.Bits,
		RadixBase:       l.Base,
		DigitPlaces:     l.Places,
		MaxTiles:        l.MaxTiles,
		StatusOffset:    uint32(l.StatusWord),
		HistogramOffset: uint32(l.HistogramWord),
		CounterOffset:   uint32(l.CounterWord),
		IndirectOffset:  uint32(l.IndirectWord),
	}
	if writeIndirect {
		p.WriteIndirect = 1
	}
	return p
}
