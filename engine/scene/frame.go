package scene

import (
	"fmt"
	"log/slog"
	"regexp"

	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/gfx"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/node"
)

// RenderOptions configures Render.
type RenderOptions struct {
	// KeepBuffers skips clearing the canvas, for scenes drawn over another.
	KeepBuffers bool

	// TagSelector is a regular expression. When set, records with a non-empty tag that it does not
	// match are skipped. Untagged records are always drawn.
	TagSelector string
}

// FrameStats reports one rendered frame.
type FrameStats struct {
	SceneID     string
	Records     int
	Opaque      int
	Transparent int
	Skipped     int
	Sorted      bool
	Programs    int
}

// LogValue groups the stats in structured logs.
func (f FrameStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("scene", f.SceneID),
		slog.Int("records", f.Records),
		slog.Int("opaque", f.Opaque),
		slog.Int("transparent", f.Transparent),
		slog.Int("skipped", f.Skipped),
		slog.Bool("sorted", f.Sorted),
		slog.Int("programs", f.Programs),
	)
}

// tagFilter is a compiled tag selector. The zero value selects every record.
type tagFilter struct {
	selector string
	re       *regexp.Regexp
}

// compileTags returns the filter for selector, reusing the last compiled one.
func (s *scene) compileTags(selector string) (tagFilter, error) {
	if selector == "" {
		return tagFilter{}, nil
	}
	if s.tags.selector == selector {
		return s.tags, nil
	}
	re, err := regexp.Compile(selector)
	if err != nil {
		return tagFilter{}, fmt.Errorf("scene %s: tag selector: %w", s.id, err)
	}
	s.tags = tagFilter{selector: selector, re: re}
	return s.tags, nil
}

func (f tagFilter) match(n *node.Node) bool {
	if f.re == nil {
		return true
	}
	return n.Tag().Matches(f.selector, f.re)
}

// drawable reports whether n is drawn in a render pass.
func (s *scene) drawable(n *node.Node, tags tagFilter) bool {
	if !s.layers.IsEnabled(n.Layer) {
		return false
	}
	f := n.Flags()
	return f.Enabled && f.Visible && tags.match(n)
}

func (s *scene) Render(opts RenderOptions) (FrameStats, error) {
	if s.released {
		return FrameStats{}, fmt.Errorf("render: %w: %s", ErrUnknownScene, s.id)
	}
	tags, err := s.compileTags(opts.TagSelector)
	if err != nil {
		return FrameStats{}, err
	}
	s.compact()
	stats := FrameStats{
		SceneID:  s.id,
		Sorted:   s.schedule(),
		Records:  len(s.bin),
		Programs: s.programs.Len(),
	}

	s.ctx.BindFramebuffer(0)
	s.ctx.Viewport(0, 0, s.canvas.Width, s.canvas.Height)
	if !opts.KeepBuffers {
		var clearColor [4]float32
		if len(s.bin) > 0 {
			c := s.bin[0].RendererProps().ClearColor
			clearColor = [4]float32{c.R, c.G, c.B, c.A}
		}
		s.ctx.ClearColor(clearColor)
		s.ctx.Clear(gfx.ColorBuffer | gfx.DepthBuffer)
	}
	s.ctx.Disable(gfx.Blend)

	s.executor.Begin(node.Frame{Width: s.canvas.Width, Height: s.canvas.Height})
	deferred := s.deferred[:0]
	for _, n := range s.bin {
		if !s.drawable(n, tags) {
			stats.Skipped++
			continue
		}
		if n.Transparent() {
			deferred = append(deferred, n)
			continue
		}
		s.executor.Draw(n)
		stats.Opaque++
	}

	if len(deferred) > 0 {
		s.ctx.Enable(gfx.Blend)
		s.ctx.BlendFunc(gfx.SrcAlpha, gfx.OneMinusSrcAlpha)
		for _, n := range deferred {
			s.executor.Draw(n)
			stats.Transparent++
		}
		s.ctx.Disable(gfx.Blend)
	}
	s.executor.End()

	clear(deferred)
	s.deferred = deferred[:0]
	return stats, nil
}
