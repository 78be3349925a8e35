package node

import (
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/logger"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/gfx"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/program"
	"github.com/Carmen-Shannon/oxy-scene/engine/state"
)

// maxAttribs is the number of attribute slots cleared on a program switch.
const maxAttribs = 8

// Frame describes the pass an executor is about to run.
type Frame struct {
	Picking bool
	Width   int
	Height  int
}

type executor struct {
	ctx         gfx.Context
	frame       Frame
	pass        *program.Pass
	last        [state.NumTypes]int
	framebuffer gfx.Framebuffer
	nextPick    int
	picks       map[int]*Node
	names       map[string][]string
}

// Executor issues the graphics calls for a sequence of records. It binds only the state whose id
// differs from the previously drawn record and rebinds everything when the program changes.
type Executor interface {
	// Begin starts a pass. A pick pass also forgets the pick indices of the previous one.
	//
	// Parameters:
	//   - f: the pass kind and canvas size
	Begin(f Frame)

	// Draw binds the record's program and state and draws its geometry. Render listeners are called
	// first, newest first. In a pick pass the record draws with its pick colour.
	//
	// Parameters:
	//   - n: the record to draw
	Draw(n *Node)

	// End finishes the pass and restores the default framebuffer if an image buffer was bound.
	End()

	// Lookup returns the record drawn with pick index i during the last pick pass.
	Lookup(i int) (*Node, bool)
}

var _ Executor = &executor{}

// NewExecutor creates an Executor drawing through ctx.
//
// Parameters:
//   - ctx: the graphics context
//
// Returns:
//   - Executor: the executor
func NewExecutor(ctx gfx.Context) Executor {
	e := &executor{
		ctx:   ctx,
		picks: make(map[int]*Node),
		names: make(map[string][]string),
	}
	e.invalidate()
	return e
}

func (e *executor) invalidate() {
	for i := range e.last {
		e.last[i] = -1
	}
}

// changed reports whether the record's state of type t differs from the last one bound, and marks it bound.
func (e *executor) changed(n *Node, t state.Type) bool {
	id := n.States[t].StateID()
	if e.last[t] == id {
		return false
	}
	e.last[t] = id
	return true
}

// indexed returns prefix followed by i, caching the names per prefix.
func (e *executor) indexed(prefix string, i int) string {
	names := e.names[prefix]
	for len(names) <= i {
		names = append(names, prefix+strconv.Itoa(len(names)))
	}
	e.names[prefix] = names
	return names[i]
}

func (e *executor) Begin(f Frame) {
	e.frame = f
	e.pass = nil
	e.framebuffer = 0
	e.invalidate()
	if f.Picking {
		e.nextPick = 1
		clear(e.picks)
	}
}

func (e *executor) Draw(n *Node) {
	pass := n.Program.Render()
	if e.frame.Picking {
		pass = n.Program.Pick()
	}
	if pass != e.pass {
		e.ctx.UseProgram(pass.Handle())
		e.pass = pass
		e.invalidate()
		for i := range maxAttribs {
			e.ctx.DisableAttribute(i)
		}
	}

	flags := n.Flags()
	if e.changed(n, state.TypeFlags) {
		e.applyFlags(flags)
		// gated blocks follow the flags
		e.last[state.TypeClips] = -1
		e.last[state.TypeFog] = -1
		e.last[state.TypeColortrans] = -1
	}
	if e.changed(n, state.TypeRenderer) {
		e.applyRenderer(n.RendererProps())
	}
	if !e.frame.Picking && e.changed(n, state.TypeImagebuf) {
		if fb := n.Imagebuf().Framebuffer; fb != e.framebuffer {
			e.ctx.BindFramebuffer(fb)
			e.framebuffer = fb
		}
	}
	geometryChanged := e.changed(n, state.TypeGeometry)
	morphChanged := e.changed(n, state.TypeMorph)
	if geometryChanged || morphChanged {
		e.bindGeometry(n)
	}
	if e.changed(n, state.TypeModelTransform) {
		t := n.Transform(state.TypeModelTransform)
		e.ctx.UniformMatrix4fv(e.pass.Uniform("uMMatrix"), (*[16]float32)(&t.Matrix))
		e.ctx.UniformMatrix4fv(e.pass.Uniform("uMNMatrix"), (*[16]float32)(&t.NormalMatrix))
	}
	if e.changed(n, state.TypeViewTransform) {
		t := n.Transform(state.TypeViewTransform)
		e.ctx.UniformMatrix4fv(e.pass.Uniform("uVMatrix"), (*[16]float32)(&t.Matrix))
		eye := eyeOf(t)
		e.ctx.Uniform3fv(e.pass.Uniform("uEye"), eye[:])
	}
	if e.changed(n, state.TypeProjectionTransform) {
		t := n.Transform(state.TypeProjectionTransform)
		e.ctx.UniformMatrix4fv(e.pass.Uniform("uPMatrix"), (*[16]float32)(&t.Matrix))
	}
	if e.changed(n, state.TypeClips) {
		e.applyClips(n.States[state.TypeClips].(*state.ClipsState).Clips, flags.Clipping)
	}

	shaderChanged := e.changed(n, state.TypeShader)
	paramsChanged := e.changed(n, state.TypeShaderParams)
	if shaderChanged || paramsChanged {
		e.applyShaderParams(n.ShaderParams())
	}

	if e.frame.Picking {
		e.applyPickColor(n)
	} else {
		if e.changed(n, state.TypeFog) {
			e.applyFog(n.States[state.TypeFog].(*state.FogState).Fog, flags.Fog)
		}
		if e.changed(n, state.TypeColortrans) {
			e.applyColortrans(n.States[state.TypeColortrans].(*state.ColortransState).Colortrans, flags.Colortrans)
		}
		if e.changed(n, state.TypeMaterial) {
			e.applyMaterial(n.States[state.TypeMaterial].(*state.MaterialState).Material)
		}
		if e.changed(n, state.TypeLights) {
			e.applyLights(n.States[state.TypeLights].(*state.LightsState).Lights)
		}
		if e.changed(n, state.TypeTexture) {
			e.applyTexture(n.States[state.TypeTexture].(*state.TextureState).Layers)
		}
	}

	if listeners := n.RenderListeners(); len(listeners) > 0 {
		q := &query{node: n, width: e.frame.Width, height: e.frame.Height}
		for i := len(listeners) - 1; i >= 0; i-- {
			listeners[i](q)
		}
	}

	g := n.Geometry()
	if g.Indices == 0 || g.IndexCount == 0 {
		return
	}
	mode := g.Primitive
	if n.RendererProps().Wireframe && (mode == gfx.Triangles || mode == gfx.TriangleStrip || mode == gfx.TriangleFan) {
		mode = gfx.Lines
	}
	e.ctx.DrawElements(mode, g.Indices, g.IndexCount)
}

func (e *executor) End() {
	if e.framebuffer != 0 {
		e.ctx.BindFramebuffer(0)
		e.framebuffer = 0
	}
	e.pass = nil
}

func (e *executor) Lookup(i int) (*Node, bool) {
	n, ok := e.picks[i]
	return n, ok
}

func (e *executor) applyFlags(f state.Flags) {
	if f.Backfaces {
		e.ctx.Disable(gfx.CullFace)
	} else {
		e.ctx.Enable(gfx.CullFace)
	}
	e.ctx.FrontFace(f.FrontFace)
	if f.Blend != nil {
		e.ctx.BlendFunc(f.Blend.Src, f.Blend.Dst)
	} else {
		e.ctx.BlendFunc(gfx.SrcAlpha, gfx.OneMinusSrcAlpha)
	}
}

func (e *executor) applyRenderer(p state.RendererProps) {
	if p.DepthTest {
		e.ctx.Enable(gfx.DepthTest)
	} else {
		e.ctx.Disable(gfx.DepthTest)
	}
	if v := p.Viewport; v[2] > 0 && v[3] > 0 {
		e.ctx.Viewport(v[0], v[1], v[2], v[3])
	} else {
		e.ctx.Viewport(0, 0, e.frame.Width, e.frame.Height)
	}
	e.ctx.Uniform3fv(e.pass.Uniform("uAmbient"), p.Ambient.Slice())
}

func (e *executor) attrib(name string, buf gfx.Buffer, size int) {
	if buf == 0 {
		return
	}
	if l := e.pass.Attrib(name); l.Valid() {
		e.ctx.BindAttribute(l, buf, size)
	}
}

// bindGeometry binds the vertex streams. A morph replaces the base streams it supplies: the first
// target feeds the base attributes and the second the morph attributes, mixed by the morph factor.
func (e *executor) bindGeometry(n *Node) {
	g := n.Geometry()
	vertices, normals, uv, uv2 := g.Vertices, g.Normals, g.UV, g.UV2
	var morphVertices, morphNormals gfx.Buffer

	m := n.States[state.TypeMorph].(*state.MorphState).Morph
	if m != nil {
		t1, t2 := m.Target1, m.Target2
		if t1.Vertices != 0 {
			vertices = t1.Vertices
			morphVertices = common.Coalesce(t2.Vertices, t1.Vertices)
		}
		if t1.Normals != 0 {
			normals = t1.Normals
			morphNormals = common.Coalesce(t2.Normals, t1.Normals)
		}
		uv = common.Coalesce(t1.UV, uv)
		uv2 = common.Coalesce(t1.UV2, uv2)
		e.ctx.Uniform1f(e.pass.Uniform("uMorphFactor"), m.Factor)
	}

	e.attrib("aVertex", vertices, 3)
	e.attrib("aNormal", normals, 3)
	e.attrib("aUVCoord", uv, 2)
	e.attrib("aUVCoord2", uv2, 2)
	e.attrib("aVertexColor", g.Colors, 4)
	e.attrib("aMorphVertex", morphVertices, 3)
	e.attrib("aMorphNormal", morphNormals, 3)
}

func (e *executor) applyClips(clips []state.Clip, enabled bool) {
	for i, c := range clips {
		mode := float32(c.Mode)
		if !enabled {
			mode = 0
		}
		e.ctx.Uniform1f(e.pass.Uniform(e.indexed("uClipMode", i)), mode)
		e.ctx.Uniform4fv(e.pass.Uniform(e.indexed("uClipNormalAndDist", i)), []float32{c.Normal[0], c.Normal[1], c.Normal[2], c.Dist})
	}
}

func (e *executor) applyFog(f *state.Fog, enabled bool) {
	if f == nil {
		return
	}
	mode := float32(f.Mode)
	if !enabled {
		mode = 0
	}
	e.ctx.Uniform1f(e.pass.Uniform("uFogMode"), mode)
	e.ctx.Uniform3fv(e.pass.Uniform("uFogColor"), f.Color.Slice())
	e.ctx.Uniform1f(e.pass.Uniform("uFogDensity"), f.Density)
	e.ctx.Uniform1f(e.pass.Uniform("uFogStart"), f.Start)
	e.ctx.Uniform1f(e.pass.Uniform("uFogEnd"), f.End)
}

func (e *executor) applyColortrans(c *state.Colortrans, enabled bool) {
	if c == nil {
		return
	}
	var mode float32
	if enabled {
		mode = 1
	}
	e.ctx.Uniform1f(e.pass.Uniform("uColortransMode"), mode)
	e.ctx.Uniform4fv(e.pass.Uniform("uColortransScale"), c.Scale.Slice())
	e.ctx.Uniform4fv(e.pass.Uniform("uColortransAdd"), c.Add.Slice())
	e.ctx.Uniform1f(e.pass.Uniform("uColortransSaturation"), c.Saturation)
}

func (e *executor) applyMaterial(m state.Material) {
	e.ctx.Uniform3fv(e.pass.Uniform("uMaterialBaseColor"), m.BaseColor.Slice())
	e.ctx.Uniform1f(e.pass.Uniform("uMaterialAlpha"), m.Alpha)
	e.ctx.Uniform1f(e.pass.Uniform("uMaterialEmit"), m.Emit)
	e.ctx.Uniform3fv(e.pass.Uniform("uMaterialSpecularColor"), m.SpecularColor.Slice())
	e.ctx.Uniform1f(e.pass.Uniform("uMaterialSpecular"), m.Specular)
	e.ctx.Uniform1f(e.pass.Uniform("uMaterialShine"), m.Shine)
}

func (e *executor) applyLights(lights []state.Light) {
	for i, l := range lights {
		e.ctx.Uniform3fv(e.pass.Uniform(e.indexed("uLightColor", i)), l.Color.Slice())
		if l.Mode == state.LightDir {
			e.ctx.Uniform3fv(e.pass.Uniform(e.indexed("uLightDir", i)), l.Dir[:])
			continue
		}
		e.ctx.Uniform3fv(e.pass.Uniform(e.indexed("uLightPos", i)), l.Pos[:])
		e.ctx.Uniform3fv(e.pass.Uniform(e.indexed("uLightAttenuation", i)), l.Attenuation[:])
	}
}

func (e *executor) applyTexture(layers []state.TextureLayer) {
	for i, l := range layers {
		sampler := e.pass.Uniform(e.indexed("uSampler", i))
		if !sampler.Valid() {
			continue
		}
		e.ctx.BindTexture(i, l.Texture)
		e.ctx.Uniform1i(sampler, int32(i))
		e.ctx.Uniform1f(e.pass.Uniform(e.indexed("uLayer", i)+"BlendFactor"), l.Factor())
		if l.Matrix != nil {
			e.ctx.UniformMatrix4fv(e.pass.Uniform(e.indexed("uLayer", i)+"Matrix"), (*[16]float32)(l.Matrix))
		}
	}
}

// applyShaderParams uploads a uniform stack for custom shader code. Names missing from the program
// are ignored by the context, so one stack may serve the render and the pick pass.
func (e *executor) applyShaderParams(stack []state.ShaderParams) {
	for _, params := range stack {
		for _, name := range slices.Sorted(maps.Keys(params)) {
			if err := e.uniform(e.pass.Uniform(name), params[name]); err != nil {
				logger.L().Warn("shader param skipped", "name", name, "error", err)
			}
		}
	}
}

func (e *executor) uniform(l gfx.Location, v any) error {
	switch v := v.(type) {
	case float32:
		e.ctx.Uniform1f(l, v)
	case float64:
		e.ctx.Uniform1f(l, float32(v))
	case int32:
		e.ctx.Uniform1i(l, v)
	case int:
		e.ctx.Uniform1i(l, int32(v))
	case bool:
		var i int32
		if v {
			i = 1
		}
		e.ctx.Uniform1i(l, i)
	case common.Vec3:
		e.ctx.Uniform3fv(l, v[:])
	case common.RGB:
		e.ctx.Uniform3fv(l, v.Slice())
	case common.RGBA:
		e.ctx.Uniform4fv(l, v.Slice())
	case common.Mat4:
		e.ctx.UniformMatrix4fv(l, (*[16]float32)(&v))
	case []float32:
		switch len(v) {
		case 1:
			e.ctx.Uniform1f(l, v[0])
		case 3:
			e.ctx.Uniform3fv(l, v)
		case 4:
			e.ctx.Uniform4fv(l, v)
		case 16:
			e.ctx.UniformMatrix4fv(l, (*[16]float32)(v))
		default:
			return fmt.Errorf("unsupported vector length %d", len(v))
		}
	default:
		return fmt.Errorf("unsupported value type %T", v)
	}
	return nil
}

// applyPickColor assigns the record its pick index. Records without listeners or a pinned colour draw
// with index 0, so they occlude without being pickable.
func (e *executor) applyPickColor(n *Node) {
	var index int
	if pc := n.PickColor(); pc != nil {
		index = PickIndex(pc.Color)
		if index != 0 {
			e.picks[index] = n
		}
	} else if len(n.PickListeners()) > 0 {
		for e.picks[e.nextPick] != nil {
			e.nextPick++
		}
		index = e.nextPick
		e.nextPick++
		e.picks[index] = n
	}
	c := PickColor(index)
	e.ctx.Uniform3fv(e.pass.Uniform("uPickColor"), c.Slice())
}

// eyeOf returns the camera position of a view transform.
func eyeOf(t *state.TransformState) common.Vec3 {
	if t.LookAt != nil {
		return t.LookAt.Eye
	}
	inv, ok := t.Matrix.Inverse()
	if !ok {
		return common.Vec3{}
	}
	return common.Vec3{inv[12], inv[13], inv[14]}
}
