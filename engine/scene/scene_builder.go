package scene

import (
	"github.com/Carmen-Shannon/oxy-scene/engine/event"
	"github.com/Carmen-Shannon/oxy-scene/engine/layer"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/node"
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithBus sets the bus the scene publishes marshal events on. A private bus is created otherwise.
//
// Parameters:
//   - b: the event bus
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithBus(b event.Bus) SceneBuilderOption {
	return func(s *scene) {
		s.bus = b
	}
}

// WithLayers sets the render-layer service. A service holding only the default layer is created
// otherwise.
//
// Parameters:
//   - l: the layer service
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithLayers(l layer.Service) SceneBuilderOption {
	return func(s *scene) {
		s.layers = l
	}
}

// WithSortDelay sets the number of renders between automatic sorts. Default is DefaultSortDelay.
func WithSortDelay(n int) SceneBuilderOption {
	return func(s *scene) {
		s.sortDelay = max(n, -1)
	}
}

// WithWhitewash makes every composed render program output opaque white, for debugging geometry.
func WithWhitewash(enabled bool) SceneBuilderOption {
	return func(s *scene) {
		s.whitewash = enabled
	}
}

// WithExecutor replaces the executor that issues draw calls.
func WithExecutor(e node.Executor) SceneBuilderOption {
	return func(s *scene) {
		s.executor = e
	}
}
