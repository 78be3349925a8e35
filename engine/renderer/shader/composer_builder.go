package shader

// ComposerBuilderOption configures a Composer at construction.
type ComposerBuilderOption func(*composer)

// WithWorkers sets the maximum number of pool workers used for composition.
//
// Parameters:
//   - n: maximum worker count, values below 1 are raised to 1
//
// Returns:
//   - ComposerBuilderOption: a function that applies the worker count to the composer
func WithWorkers(n int) ComposerBuilderOption {
	return func(c *composer) {
		c.workers = max(n, 1)
	}
}

// WithSourceLogging logs every composed source set at debug level.
func WithSourceLogging(enabled bool) ComposerBuilderOption {
	return func(c *composer) {
		c.logSources = enabled
	}
}
