package scene

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-scene/engine/logger"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/gfx"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/node"
	"github.com/Carmen-Shannon/oxy-scene/engine/state"
)

// PickOptions configures Pick.
type PickOptions struct {
	// DryRun reports whether a record with listeners is under the cursor without calling them.
	DryRun bool

	// TagSelector restricts the pass to matching records, as RenderOptions.TagSelector does.
	TagSelector string
}

// ensurePickTarget creates the offscreen target, or recreates it when the canvas size changed.
func (s *scene) ensurePickTarget() error {
	w, h := s.canvas.Width, s.canvas.Height
	if s.pickTarget != 0 && s.pickWidth == w && s.pickHeight == h {
		return nil
	}
	if s.pickTarget != 0 {
		s.ctx.DeleteFramebuffer(s.pickTarget)
		s.pickTarget = 0
	}
	fb, err := s.ctx.CreateFramebuffer(w, h)
	if err != nil {
		return fmt.Errorf("scene %s: pick target %dx%d: %w", s.id, w, h, err)
	}
	s.pickTarget, s.pickWidth, s.pickHeight = fb, w, h
	return nil
}

func (s *scene) Pick(x, y int, opts PickOptions) (bool, error) {
	if s.released {
		return false, fmt.Errorf("pick: %w: %s", ErrUnknownScene, s.id)
	}
	tags, err := s.compileTags(opts.TagSelector)
	if err != nil {
		return false, err
	}
	s.compact()
	if err := s.ensurePickTarget(); err != nil {
		return false, err
	}

	s.ctx.BindFramebuffer(s.pickTarget)
	s.ctx.Viewport(0, 0, s.pickWidth, s.pickHeight)
	s.ctx.ClearColor([4]float32{})
	s.ctx.Clear(gfx.ColorBuffer | gfx.DepthBuffer)
	s.ctx.Disable(gfx.Blend)

	s.executor.Begin(node.Frame{Picking: true, Width: s.pickWidth, Height: s.pickHeight})
	for _, n := range s.bin {
		if s.layers.IsEnabled(n.Layer) && n.Pickable() && tags.match(n) {
			s.executor.Draw(n)
		}
	}
	s.executor.End()

	px := s.ctx.ReadPixel(x, s.pickHeight-y-1)
	s.ctx.BindFramebuffer(0)

	index := node.PixelIndex(px)
	if index == 0 {
		return false, nil
	}
	n, ok := s.executor.Lookup(index)
	if !ok {
		logger.L().Debug("pick index without record", "scene", s.id, "index", index)
		return false, nil
	}
	listeners := n.PickListeners()
	if len(listeners) == 0 {
		return false, nil
	}
	if opts.DryRun {
		return true, nil
	}
	hit := state.PickHit{X: x, Y: y, NodeID: n.ID, GeometryID: n.GeometryID}
	for i := len(listeners) - 1; i >= 0; i-- {
		listeners[i](hit)
	}
	return true, nil
}
