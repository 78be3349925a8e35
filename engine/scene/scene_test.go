package scene

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/event"
	"github.com/Carmen-Shannon/oxy-scene/engine/layer"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/gfx"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/gfx/gfxtest"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/node"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/program"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-scene/engine/state"
)

type env struct {
	rec    *gfxtest.Recorder
	cache  program.Cache
	bus    event.Bus
	layers layer.Service
	scene  *scene
}

func newEnv(t *testing.T, options ...SceneBuilderOption) *env {
	t.Helper()
	e := &env{
		rec:    gfxtest.NewRecorder(),
		bus:    event.NewBus(),
		layers: layer.NewService(),
	}
	e.cache = program.NewCache(e.rec, program.WithWorkers(2))
	t.Cleanup(e.cache.Close)
	opts := append([]SceneBuilderOption{WithBus(e.bus), WithLayers(e.layers)}, options...)
	e.scene = NewScene("scene", event.Canvas{ID: "canvas", Width: 100, Height: 100}, e.rec, e.cache, opts...).(*scene)
	return e
}

// flat returns geometry with positions only.
func (e *env) flat() state.Geometry {
	return state.Geometry{
		Primitive:  gfx.Triangles,
		Vertices:   e.rec.CreateArrayBuffer(nil),
		Indices:    e.rec.CreateIndexBuffer(nil),
		IndexCount: 3,
	}
}

// lit returns geometry with normals, which has a different fingerprint than flat.
func (e *env) lit() state.Geometry {
	g := e.flat()
	g.Normals = e.rec.CreateArrayBuffer(nil)
	return g
}

func ids(nodes []*node.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

func refCount(t *testing.T, s Scene, typ state.Type, key string) int {
	t.Helper()
	o, ok := s.Lookup(typ, key)
	require.True(t, ok, "%s %q not in registry", typ, key)
	return o.RefCount()
}

func TestSetGeometryRetainsCurrentStates(t *testing.T) {
	e := newEnv(t)
	s := e.scene

	s.SetMaterial("red", state.Material{BaseColor: common.RGB{R: 1}, Alpha: 1})
	require.NoError(t, s.SetGeometry("a", e.flat()))
	require.NoError(t, s.SetGeometry("b", e.flat()))

	recs := s.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, 2, refCount(t, s, state.TypeMaterial, "red"))
	assert.Same(t, recs[0].Program, recs[1].Program)
	assert.Equal(t, 2, recs[0].Program.RefCount())
	assert.Equal(t, 1, refCount(t, s, state.TypeGeometry, "a"))

	// unset categories reference the defaults
	assert.Equal(t, state.DefaultKey(state.TypeFog), recs[0].States[state.TypeFog].Key())
	assert.Equal(t, 2, recs[0].States[state.TypeFog].RefCount())
}

func TestRemoveGeometryReleasesStates(t *testing.T) {
	e := newEnv(t)
	s := e.scene

	s.SetMaterial("red", state.DefaultMaterial())
	require.NoError(t, s.SetGeometry("a", e.flat()))
	require.NoError(t, s.SetGeometry("b", e.flat()))
	p := s.Records()[0].Program

	assert.True(t, s.RemoveGeometry("a"))
	assert.Equal(t, 1, refCount(t, s, state.TypeMaterial, "red"))
	_, ok := s.Lookup(state.TypeGeometry, "a")
	assert.False(t, ok)
	assert.Equal(t, 1, p.RefCount())

	assert.True(t, s.RemoveGeometry("b"))
	_, ok = s.Lookup(state.TypeMaterial, "red")
	assert.False(t, ok)
	assert.True(t, p.Destroyed())
	assert.Equal(t, 0, e.cache.Len())

	assert.False(t, s.RemoveGeometry("b"))
	assert.Empty(t, s.Records())
}

func TestRemoveGeometryReleasesPrefixedStates(t *testing.T) {
	e := newEnv(t)
	s := e.scene

	for _, prefix := range []string{"one/", "two/"} {
		s.SetIDPrefix(prefix)
		s.SetMaterial("m", state.DefaultMaterial())
		require.NoError(t, s.SetGeometry("cube", e.flat()))
	}
	s.SetIDPrefix("")

	assert.Equal(t, 1, refCount(t, s, state.TypeMaterial, "one/m"))
	assert.Equal(t, 1, refCount(t, s, state.TypeMaterial, "two/m"))
	_, ok := s.Lookup(state.TypeMaterial, "m")
	assert.False(t, ok)

	assert.False(t, s.RemoveGeometry("cube"))
	assert.True(t, s.RemoveGeometry("one/cube"))

	_, ok = s.Lookup(state.TypeMaterial, "one/m")
	assert.False(t, ok)
	_, ok = s.Lookup(state.TypeGeometry, "one/cube")
	assert.False(t, ok)
	assert.Equal(t, 1, refCount(t, s, state.TypeMaterial, "two/m"))
	require.Len(t, s.Records(), 1)
	assert.Equal(t, "two/cube", s.Records()[0].GeometryID)
}

func TestReleaseKeepsReplacementEntry(t *testing.T) {
	e := newEnv(t)
	s := e.scene

	// a full rebuild allocates a fresh object even when the key repeats
	s.SetMaterial("m", state.DefaultMaterial())
	require.NoError(t, s.SetGeometry("a", e.flat()))
	first := s.Current(state.TypeMaterial)
	s.SetMaterial("m", state.DefaultMaterial())
	require.NoError(t, s.SetGeometry("b", e.flat()))
	second := s.Current(state.TypeMaterial)
	require.NotSame(t, first, second)

	s.RemoveGeometry("a")
	assert.Equal(t, 0, first.RefCount())
	got, ok := s.Lookup(state.TypeMaterial, "m")
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Equal(t, 1, got.RefCount())
}

func TestFingerprintDeterminism(t *testing.T) {
	e := newEnv(t)
	s := e.scene

	light := []state.Light{{Mode: state.LightDir, Diffuse: true}}
	s.SetLights("l1", light)
	require.NoError(t, s.SetGeometry("a", e.lit()))
	s.SetLights("l2", []state.Light{{Mode: state.LightDir, Diffuse: true, Color: common.RGB{G: 1}}})
	require.NoError(t, s.SetGeometry("b", e.lit()))

	recs := s.Records()
	require.Len(t, recs, 2)
	assert.NotSame(t, recs[0].States[state.TypeLights], recs[1].States[state.TypeLights])
	assert.Equal(t, recs[0].Fingerprint, recs[1].Fingerprint)
	assert.Same(t, recs[0].Program, recs[1].Program)
	assert.Equal(t, "dird", recs[0].Fingerprint.Lights)
	assert.Equal(t, "canvas", recs[0].Fingerprint.CanvasID)

	s.SetLights("l3", append(light, state.Light{Mode: state.LightPoint, Specular: true}))
	require.NoError(t, s.SetGeometry("c", e.lit()))
	assert.NotEqual(t, recs[0].Fingerprint, s.Records()[2].Fingerprint)
	assert.Equal(t, 2, e.cache.Len())
}

func TestIdempotentFullRebuild(t *testing.T) {
	e := newEnv(t)
	s := e.scene
	a, b, c := e.flat(), e.lit(), e.flat()

	traverse := func() {
		s.Bind(BindOptions{Mode: FullRebuild})
		require.NoError(t, s.SetGeometry("a", a))
		s.SetFog("fog", &state.Fog{Mode: state.FogLinear, Start: 1, End: 100})
		require.NoError(t, s.SetGeometry("b", b))
		s.SetFog("", nil)
		require.NoError(t, s.SetGeometry("c", c))
		s.ForceSort(true)
		_, err := s.Render(RenderOptions{})
		require.NoError(t, err)
	}

	traverse()
	firstIDs := ids(s.Records())
	var firstFPs []program.Fingerprint
	for _, n := range s.Records() {
		firstFPs = append(firstFPs, n.Fingerprint)
	}

	traverse()
	recs := s.Records()
	require.Len(t, recs, len(firstIDs))
	assert.Equal(t, firstIDs, ids(recs))
	for i, n := range recs {
		assert.Equal(t, firstFPs[i], n.Fingerprint)
	}
	// old programs were released by the rebuild
	assert.Equal(t, 2, e.cache.Len())
}

func TestSortDelay(t *testing.T) {
	e := newEnv(t, WithSortDelay(3))
	s := e.scene

	require.NoError(t, s.SetGeometry("a", e.flat()))
	require.NoError(t, s.SetGeometry("b", e.lit()))
	require.NoError(t, s.SetGeometry("c", e.flat()))

	stats, err := s.Render(RenderOptions{})
	require.NoError(t, err)
	assert.True(t, stats.Sorted)
	assert.Equal(t, []string{"a", "c", "b"}, ids(s.Records()))

	s.Bind(BindOptions{Mode: IncrementalPatch})
	require.NoError(t, s.SetGeometry("d", e.flat()))
	assert.Equal(t, []string{"a", "c", "b", "d"}, ids(s.Records()))

	for range 2 {
		stats, err = s.Render(RenderOptions{})
		require.NoError(t, err)
		assert.False(t, stats.Sorted)
		assert.Equal(t, []string{"a", "c", "b", "d"}, ids(s.Records()))
	}

	stats, err = s.Render(RenderOptions{})
	require.NoError(t, err)
	assert.True(t, stats.Sorted)
	assert.Equal(t, []string{"a", "c", "d", "b"}, ids(s.Records()))
}

func TestSortDelayBounds(t *testing.T) {
	e := newEnv(t)
	s := e.scene
	require.NoError(t, s.SetGeometry("a", e.flat()))

	s.SetSortDelay(0)
	for range 3 {
		stats, err := s.Render(RenderOptions{})
		require.NoError(t, err)
		assert.True(t, stats.Sorted)
	}

	s.SetSortDelay(-1)
	for range 20 {
		stats, err := s.Render(RenderOptions{})
		require.NoError(t, err)
		assert.False(t, stats.Sorted)
	}
	s.ForceSort(false)
	stats, err := s.Render(RenderOptions{})
	require.NoError(t, err)
	assert.True(t, stats.Sorted)
}

func TestSortKeysGroupByLayer(t *testing.T) {
	e := newEnv(t)
	s := e.scene
	e.layers.SetPriority("overlay", 2)

	e.layers.Push("overlay")
	require.NoError(t, s.SetGeometry("top", e.flat()))
	e.layers.Pop()
	require.NoError(t, s.SetGeometry("bottom", e.lit()))

	_, err := s.Render(RenderOptions{})
	require.NoError(t, err)
	recs := s.Records()
	assert.Equal(t, []string{"bottom", "top"}, ids(recs))
	assert.Equal(t, 2*layerStride+recs[1].Program.ID(), recs[1].SortKey)
}

func TestIncrementalResortRebuildsKeys(t *testing.T) {
	e := newEnv(t, WithSortDelay(-1))
	s := e.scene
	e.layers.SetPriority("a", 1)
	e.layers.SetPriority("b", 2)

	e.layers.Push("a")
	require.NoError(t, s.SetGeometry("x", e.flat()))
	e.layers.Pop()
	e.layers.Push("b")
	require.NoError(t, s.SetGeometry("y", e.flat()))
	e.layers.Pop()

	s.ForceSort(false)
	_, err := s.Render(RenderOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, ids(s.Records()))

	e.layers.SetPriority("a", 5)
	s.Bind(BindOptions{Mode: IncrementalPatch, Resort: true})
	stats, err := s.Render(RenderOptions{})
	require.NoError(t, err)
	assert.True(t, stats.Sorted)
	assert.Equal(t, []string{"y", "x"}, ids(s.Records()))
}

func TestShaderCodeChangeAfterFullRebuild(t *testing.T) {
	e := newEnv(t)
	s := e.scene
	stage := func(body string) *state.CustomShader {
		return &state.CustomShader{Fragment: state.HookStage{
			Code:  "vec4 tint(vec4 c) { return " + body + "; }",
			Hooks: map[string]string{shader.HookPixelColor: "tint"},
		}}
	}
	fragment := func() string {
		recs := s.Records()
		require.Len(t, recs, 1)
		return e.rec.Source(recs[0].Program.Render().Handle())
	}

	s.SetShader("fx", stage("c * 0.5"))
	require.NoError(t, s.SetGeometry("a", e.flat()))
	assert.Contains(t, fragment(), "return c * 0.5;")

	s.Bind(BindOptions{Mode: FullRebuild})
	s.SetShader("fx", stage("vec4(1.0, 0.0, 0.0, 1.0)"))
	require.NoError(t, s.SetGeometry("a", e.flat()))
	src := fragment()
	assert.Contains(t, src, "return vec4(1.0, 0.0, 0.0, 1.0);")
	assert.NotContains(t, src, "c * 0.5")
}

func TestTagSelectorFiltersRenderAndPick(t *testing.T) {
	e := newEnv(t)
	s := e.scene

	s.SetTag("hud", "hud")
	hud := e.flat()
	require.NoError(t, s.SetGeometry("hud", hud))
	s.SetTag("world", "world")
	require.NoError(t, s.SetGeometry("world", e.flat()))
	s.SetTag("", "")
	require.NoError(t, s.SetGeometry("untagged", e.flat()))

	stats, err := s.Render(RenderOptions{TagSelector: "^wor"})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 2, stats.Opaque)

	stats, err = s.Render(RenderOptions{})
	require.NoError(t, err)
	assert.Zero(t, stats.Skipped)

	// a retagged record is matched again
	s.Bind(BindOptions{Mode: IncrementalPatch})
	s.SetTag("hud", "world-hud")
	stats, err = s.Render(RenderOptions{TagSelector: "^wor"})
	require.NoError(t, err)
	assert.Zero(t, stats.Skipped)

	fired := 0
	s.SetPickListeners("l", []state.PickListener{func(state.PickHit) { fired++ }})
	s.SetTag("hud", "hud")
	require.NoError(t, s.SetGeometry("hud", hud))
	e.rec.Cover(hud.Indices, gfxtest.Rect{X0: 0, Y0: 0, X1: 100, Y1: 100})

	picked, err := s.Pick(50, 50, PickOptions{TagSelector: "^world$"})
	require.NoError(t, err)
	assert.False(t, picked)
	picked, err = s.Pick(50, 50, PickOptions{TagSelector: "^hud$"})
	require.NoError(t, err)
	assert.True(t, picked)
	assert.Equal(t, 1, fired)

	_, err = s.Render(RenderOptions{TagSelector: "("})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tag selector")
}

func TestOpaqueTransparentPartition(t *testing.T) {
	e := newEnv(t, WithSortDelay(-1))
	s := e.scene

	transparent := state.DefaultFlags()
	transparent.Transparent = true
	geoms := map[string]state.Geometry{}
	for i, id := range []string{"t1", "o1", "t2", "o2", "t3"} {
		if strings.HasPrefix(id, "t") {
			s.SetFlags("glass", transparent)
		} else {
			s.SetFlags("", state.DefaultFlags())
		}
		g := e.flat()
		if i%2 == 0 {
			g = e.lit()
		}
		geoms[id] = g
		require.NoError(t, s.SetGeometry(id, g))
	}
	s.needsSort = false

	stats, err := s.Render(RenderOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Opaque)
	assert.Equal(t, 3, stats.Transparent)

	order := []string{"o1", "o2", "t1", "t2", "t3"}
	require.Len(t, e.rec.Draws, len(order))
	for i, id := range order {
		d := e.rec.Draws[i]
		assert.Equal(t, geoms[id].Indices, d.Indices, "draw %d", i)
		assert.Equal(t, strings.HasPrefix(id, "t"), d.Blending, "draw %d", i)
	}
	assert.False(t, e.rec.Enabled(gfx.Blend))
}

func TestSkipsDisabledLayersAndFlags(t *testing.T) {
	e := newEnv(t)
	s := e.scene
	e.layers.SetEnabled("hidden", false)

	e.layers.Push("hidden")
	require.NoError(t, s.SetGeometry("in-hidden-layer", e.flat()))
	e.layers.Pop()

	off := state.DefaultFlags()
	off.Visible = false
	s.SetFlags("off", off)
	require.NoError(t, s.SetGeometry("invisible", e.flat()))

	s.SetFlags("", state.DefaultFlags())
	require.NoError(t, s.SetGeometry("shown", e.flat()))

	stats, err := s.Render(RenderOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Skipped)
	assert.Equal(t, 1, stats.Opaque)
	assert.Len(t, e.rec.Draws, 1)
}

func TestCompactionAdjacentTail(t *testing.T) {
	e := newEnv(t, WithSortDelay(-1))
	s := e.scene

	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		require.NoError(t, s.SetGeometry(id, e.flat()))
	}
	s.RemoveGeometry("b")
	s.RemoveGeometry("e")
	s.RemoveGeometry("f")
	s.RemoveGeometry("d")
	require.Len(t, s.bin, 6)

	_, err := s.Render(RenderOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids(s.bin))
	assert.Equal(t, 0, s.destroyed)
	assert.Len(t, e.rec.Draws, 2)
	assert.Nil(t, s.bin[:cap(s.bin)][2])
}

func TestIncrementalPatchSwapsVolatileStates(t *testing.T) {
	e := newEnv(t)
	s := e.scene
	g := e.flat()

	s.SetFlags("f1", state.DefaultFlags())
	s.SetMaterial("m", state.DefaultMaterial())
	require.NoError(t, s.SetGeometry("a", g))
	rec := s.Records()[0]
	p := rec.Program

	s.Bind(BindOptions{Mode: IncrementalPatch})
	hidden := state.DefaultFlags()
	hidden.Visible = false
	s.SetFlags("f2", hidden)
	s.SetMaterial("m", state.Material{Alpha: 0.5})
	require.NoError(t, s.SetGeometry("a", g))

	require.Len(t, s.Records(), 1)
	assert.Same(t, rec, s.Records()[0])
	assert.Same(t, p, rec.Program)
	assert.Equal(t, 1, p.RefCount())
	assert.False(t, rec.Flags().Visible)

	_, ok := s.Lookup(state.TypeFlags, "f1")
	assert.False(t, ok)
	assert.Equal(t, 1, refCount(t, s, state.TypeFlags, "f2"))
	// the material object is reused and updated in place
	assert.Equal(t, 1, refCount(t, s, state.TypeMaterial, "m"))
	assert.Equal(t, float32(0.5), rec.States[state.TypeMaterial].(*state.MaterialState).Material.Alpha)
}

func TestMarshalPublishedBeforeRegistration(t *testing.T) {
	e := newEnv(t)
	s := e.scene

	var seen []string
	e.bus.Subscribe(event.TopicMarshal, func(payload any) {
		m := payload.(event.Marshal)
		seen = append(seen, m.GeometryID)
		s.SetMaterial("flushed", state.DefaultMaterial())
	})

	s.SetIDPrefix("inst/")
	require.NoError(t, s.SetGeometry("a", e.flat()))

	assert.Equal(t, []string{"inst/a"}, seen)
	assert.Equal(t, "inst/flushed", s.Records()[0].States[state.TypeMaterial].Key())
}

func TestCompileFailureAbortsRegistration(t *testing.T) {
	e := newEnv(t)
	e.rec.FailCompile = func(gfx.ShaderStage, string) string { return "bad" }

	err := e.scene.SetGeometry("a", e.flat())
	require.Error(t, err)
	assert.ErrorIs(t, err, program.ErrCompile)
	assert.Empty(t, e.scene.Records())
	_, ok := e.scene.Lookup(state.TypeGeometry, "a")
	assert.False(t, ok)
}

func TestPickRoundTrip(t *testing.T) {
	e := newEnv(t)
	s := e.scene

	var hits []state.PickHit
	var order []string
	s.SetPickListeners("l", []state.PickListener{
		func(h state.PickHit) { order = append(order, "old") },
		func(h state.PickHit) {
			order = append(order, "new")
			hits = append(hits, h)
		},
	})
	g := e.flat()
	require.NoError(t, s.SetGeometry("target", g))
	s.SetPickListeners("", nil)
	require.NoError(t, s.SetGeometry("plain", e.flat()))

	// bottom-left quarter of the canvas
	e.rec.Cover(g.Indices, gfxtest.Rect{X0: 0, Y0: 0, X1: 50, Y1: 50})

	picked, err := s.Pick(10, 90, PickOptions{})
	require.NoError(t, err)
	assert.True(t, picked)
	require.Len(t, hits, 1)
	assert.Equal(t, state.PickHit{X: 10, Y: 90, NodeID: "target", GeometryID: "target"}, hits[0])
	assert.Equal(t, []string{"new", "old"}, order)
	assert.Equal(t, gfx.Framebuffer(0), e.rec.BoundFramebuffer())

	picked, err = s.Pick(90, 10, PickOptions{})
	require.NoError(t, err)
	assert.False(t, picked)
	assert.Len(t, hits, 1)

	picked, err = s.Pick(10, 90, PickOptions{DryRun: true})
	require.NoError(t, err)
	assert.True(t, picked)
	assert.Len(t, hits, 1)
}

func TestPickSkipsUnpickableRecords(t *testing.T) {
	e := newEnv(t)
	s := e.scene

	fired := 0
	noPick := state.DefaultFlags()
	noPick.Picking = false
	s.SetFlags("nopick", noPick)
	s.SetPickListeners("l", []state.PickListener{func(state.PickHit) { fired++ }})
	g := e.flat()
	require.NoError(t, s.SetGeometry("a", g))
	e.rec.Cover(g.Indices, gfxtest.Rect{X0: 0, Y0: 0, X1: 100, Y1: 100})

	picked, err := s.Pick(50, 50, PickOptions{})
	require.NoError(t, err)
	assert.False(t, picked)
	assert.Zero(t, fired)
}

func TestPickTargetFollowsCanvas(t *testing.T) {
	e := newEnv(t)
	s := e.scene
	require.NoError(t, s.SetGeometry("a", e.flat()))

	_, err := s.Pick(1, 1, PickOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, e.rec.LiveFramebuffers())

	s.Resize(200, 50)
	_, err = s.Pick(1, 1, PickOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, e.rec.LiveFramebuffers())
	w, h, ok := e.rec.FramebufferSize(s.pickTarget)
	require.True(t, ok)
	assert.Equal(t, 200, w)
	assert.Equal(t, 50, h)
}

func TestPickIncompleteFramebuffer(t *testing.T) {
	e := newEnv(t)
	e.rec.IncompleteFramebuffers = true

	_, err := e.scene.Pick(1, 1, PickOptions{})
	assert.ErrorIs(t, err, gfx.ErrFramebufferIncomplete)
}

func TestReleaseDropsEverything(t *testing.T) {
	e := newEnv(t)
	s := e.scene
	require.NoError(t, s.SetGeometry("a", e.flat()))
	_, err := s.Pick(1, 1, PickOptions{})
	require.NoError(t, err)

	s.Release()
	assert.Equal(t, 0, e.cache.Len())
	assert.Equal(t, 0, e.rec.LiveFramebuffers())

	_, err = s.Render(RenderOptions{})
	assert.ErrorIs(t, err, ErrUnknownScene)
	_, err = s.Pick(1, 1, PickOptions{})
	assert.ErrorIs(t, err, ErrUnknownScene)
	assert.ErrorIs(t, s.SetGeometry("b", e.flat()), ErrUnknownScene)
}
