package renderer

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-scene/engine/config"
	"github.com/Carmen-Shannon/oxy-scene/engine/event"
	"github.com/Carmen-Shannon/oxy-scene/engine/layer"
	"github.com/Carmen-Shannon/oxy-scene/engine/logger"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/gfx"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/program"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithContext sets the graphics context directly instead of creating one for the backend type.
//
// Parameters:
//   - ctx: the graphics context
//
// Returns:
//   - RendererBuilderOption: a function that applies the context option to a renderer
func WithContext(ctx gfx.Context) RendererBuilderOption {
	return func(r *renderer) {
		r.ctx = ctx
	}
}

// WithBackend selects the graphics backend created when no context is given. Default is gfx.BackendGL21.
//
// Parameters:
//   - backend: the backend type
//
// Returns:
//   - RendererBuilderOption: a function that applies the backend option to a renderer
func WithBackend(backend gfx.BackendType) RendererBuilderOption {
	return func(r *renderer) {
		r.backendType = backend
	}
}

// WithConfig sets the render configuration. Default is config.Default().
//
// Parameters:
//   - cfg: the configuration
//
// Returns:
//   - RendererBuilderOption: a function that applies the config option to a renderer
func WithConfig(cfg config.Config) RendererBuilderOption {
	return func(r *renderer) {
		r.cfg = cfg
	}
}

// WithBus sets the event bus scenes are announced on.
func WithBus(b event.Bus) RendererBuilderOption {
	return func(r *renderer) {
		r.bus = b
	}
}

// WithLayers sets the render-layer service shared by every scene.
func WithLayers(l layer.Service) RendererBuilderOption {
	return func(r *renderer) {
		r.layers = l
	}
}

// WithProgramCache shares an existing program cache, for renderers drawing on the same context.
// The renderer closes it on Close.
func WithProgramCache(c program.Cache) RendererBuilderOption {
	return func(r *renderer) {
		r.programs = c
	}
}

// WithLogger installs l as the package logger used by every component.
//
// Parameters:
//   - l: the logger
//
// Returns:
//   - RendererBuilderOption: a function that installs the logger
func WithLogger(l *slog.Logger) RendererBuilderOption {
	return func(r *renderer) {
		logger.SetLogger(l)
	}
}
