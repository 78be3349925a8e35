package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-scene/engine/logger"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/gfx"
)

// initBackend creates the graphics context for the configured backend unless one was supplied.
func (r *renderer) initBackend() error {
	if r.ctx != nil {
		return nil
	}
	ctx, err := gfx.New(r.backendType)
	if err != nil {
		return fmt.Errorf("init graphics backend: %w", err)
	}
	r.ctx = ctx
	logger.L().Info("graphics backend ready", "backend", r.backendType)
	return nil
}
