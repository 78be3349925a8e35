package shader

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-scene/engine/logger"
	"github.com/Carmen-Shannon/oxy-scene/engine/state"
)

// ShaderType identifies a shader stage in the composed set.
type ShaderType int

const (
	ShaderTypeVertex ShaderType = iota
	ShaderTypeFragment
)

// header is prepended to every composed shader. The precision statement is only valid on GLES, so it
// is guarded for desktop GLSL 1.10 compilers.
const header = "#ifdef GL_ES\nprecision highp float;\n#endif"

// Inputs is a snapshot of the active state objects that decide which code blocks a shader contains.
// Only the presence and kind of each input matters, never its values, so two snapshots built from
// states with equal feature hashes compose to identical source.
type Inputs struct {
	Geometry   state.Geometry
	Lights     []state.Light
	Layers     []state.TextureLayer
	Fog        *state.Fog
	Clips      []state.Clip
	Colortrans bool
	Morph      *state.Morph
	Custom     *state.CustomShader

	// Whitewash forces the render fragment output to opaque white.
	Whitewash bool
}

// Sources is the composed source of a render and pick program pair.
type Sources struct {
	RenderVertex   string
	RenderFragment string
	PickVertex     string
	PickFragment   string
}

type features struct {
	normals       bool
	uv            bool
	uv2           bool
	colors        bool
	lighting      bool
	texturing     bool
	fog           bool
	clipping      bool
	colortrans    bool
	morphing      bool
	morphVertices bool
	morphNormals  bool
}

func (in Inputs) features() features {
	g := in.Geometry
	f := features{
		normals: g.Normals != 0,
		uv:      g.UV != 0,
		uv2:     g.UV2 != 0,
		colors:  g.Colors != 0,
	}
	if m := in.Morph; m != nil {
		f.morphing = true
		f.morphVertices = m.Target1.Vertices != 0
		f.normals = f.normals || m.Target1.Normals != 0
		f.uv = f.uv || m.Target1.UV != 0
		f.uv2 = f.uv2 || m.Target1.UV2 != 0
	}
	f.lighting = len(in.Lights) > 0 && f.normals
	f.morphNormals = f.morphing && f.lighting && in.Morph.Target1.Normals != 0
	f.texturing = len(in.Layers) > 0 && (f.uv || f.uv2)
	f.fog = in.Fog != nil
	f.clipping = len(in.Clips) > 0
	f.colortrans = in.Colortrans
	return f
}

// layerPlan is the outcome of checking every texture layer against the available streams.
type layerPlan struct {
	active   []int
	warnings []string
}

func (in Inputs) planLayers(f features) layerPlan {
	var p layerPlan
	if !f.texturing {
		return p
	}
	for i, l := range in.Layers {
		switch l.ApplyFrom {
		case state.FromUV:
			if !f.uv {
				p.warnings = append(p.warnings, fmt.Sprintf("texture layer %d applies from uv but geometry has no uv coordinates", i))
				continue
			}
		case state.FromUV2:
			if !f.uv2 {
				p.warnings = append(p.warnings, fmt.Sprintf("texture layer %d applies from uv2 but geometry has no uv2 coordinates", i))
				continue
			}
		case state.FromNormal:
			if !f.lighting {
				p.warnings = append(p.warnings, fmt.Sprintf("texture layer %d applies from normal but geometry has no lit normals", i))
				continue
			}
		default:
			p.warnings = append(p.warnings, fmt.Sprintf("texture layer %d has unknown applyFrom %q", i, l.ApplyFrom))
			continue
		}
		switch l.ApplyTo {
		case state.ToBaseColor, state.ToAlpha, state.ToEmit:
		case state.ToSpecular, state.ToNormals:
			if !f.lighting {
				p.warnings = append(p.warnings, fmt.Sprintf("texture layer %d applies to %s but lighting is inactive", i, l.ApplyTo))
				continue
			}
		default:
			p.warnings = append(p.warnings, fmt.Sprintf("texture layer %d has unknown applyTo %q", i, l.ApplyTo))
			continue
		}
		p.active = append(p.active, i)
	}
	return p
}

func (in Inputs) hookStage(t ShaderType) state.HookStage {
	if in.Custom == nil {
		return state.HookStage{}
	}
	if t == ShaderTypeFragment {
		return in.Custom.Fragment
	}
	return in.Custom.Vertex
}

// source accumulates shader lines.
type source struct {
	b strings.Builder
}

func (s *source) line(l string) {
	s.b.WriteString(l)
	s.b.WriteByte('\n')
}

func (s *source) linef(format string, args ...any) {
	s.line(fmt.Sprintf(format, args...))
}

func (s *source) String() string {
	return s.b.String()
}

// finish runs the hook pre-processor over composed source.
func finish(s *source, stage state.HookStage) (string, error) {
	out, err := NewPreProcessor(stage).Process(s.String())
	if err != nil {
		return "", fmt.Errorf("splice shader hooks: %w", err)
	}
	return out, nil
}

func logWarnings(warnings []string) {
	for _, w := range warnings {
		logger.L().Warn("texture layer skipped", "reason", w)
	}
}
