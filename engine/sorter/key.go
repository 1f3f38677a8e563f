package sorter

import "math"

// orderedBits maps a float32 onto a uint32 whose unsigned order matches the
// float's numeric order. Negative zero is folded onto positive zero so that the
// two compare equal, as they do under cmp.Compare.
func orderedBits(f float32) uint32 {
	if f == 0 {
		f = 0
	}
	b := math.Float32bits(f)
	if b&0x80000000 != 0 {
		return ^b
	}
	return b | 0x80000000
}

// SortKey returns the 32-bit radix key for a view-space depth. Keys sort in
// ascending unsigned order when depths sort in descending order, so an ascending
// stable radix sort yields back-to-front order with ties kept in index order.
//
// Parameters:
//   - depth: the view-space depth
//
// Returns:
//   - uint32: the radix key
func SortKey(depth float32) uint32 {
	return ^orderedBits(depth)
}
