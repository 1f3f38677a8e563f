package loader

import "github.com/Carmen-Shannon/oxy-splat/engine/splat"

// loaderBackend defines the interface for decoding one splat file format.
// Implementations must not return a partial result alongside an error.
type loaderBackend interface {
	// Decode converts a complete in-memory file into splats.
	//
	// Parameters:
	//   - data: the file contents
	//   - maxSplats: the caller's splat cap, zero when unlimited; backends use it to
	//     reject oversized files before allocating
	//
	// Returns:
	//   - []splat.Splat: the decoded splats in file order
	//   - error: error if the data is malformed
	Decode(data []byte, maxSplats int) ([]splat.Splat, error)
}
