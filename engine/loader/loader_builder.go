package loader

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithMaxSplats is an option builder that caps the number of splats a single load
// may produce. Loads over the cap fail with ErrTooManySplats.
//
// Parameters:
//   - n: the maximum splat count, zero for unlimited
//
// Returns:
//   - LoaderBuilderOption: a function that applies the cap to a loader
func WithMaxSplats(n int) LoaderBuilderOption {
	return func(l *loader) {
		l.maxSplats = max(n, 0)
	}
}
