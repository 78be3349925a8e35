package renderer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-scene/engine/config"
	"github.com/Carmen-Shannon/oxy-scene/engine/event"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/gfx"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/gfx/gfxtest"
	"github.com/Carmen-Shannon/oxy-scene/engine/scene"
	"github.com/Carmen-Shannon/oxy-scene/engine/state"
)

func newTestRenderer(t *testing.T, options ...RendererBuilderOption) (Renderer, *gfxtest.Recorder) {
	t.Helper()
	rec := gfxtest.NewRecorder()
	r, err := NewRenderer(append([]RendererBuilderOption{WithContext(rec)}, options...)...)
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r, rec
}

func geometry(rec *gfxtest.Recorder) state.Geometry {
	return state.Geometry{
		Primitive:  gfx.Triangles,
		Vertices:   rec.CreateArrayBuffer(nil),
		Indices:    rec.CreateIndexBuffer(nil),
		IndexCount: 3,
	}
}

func TestBindUnknownScene(t *testing.T) {
	r, _ := newTestRenderer(t)

	err := r.BindScene("missing", scene.BindOptions{})
	assert.ErrorIs(t, err, scene.ErrUnknownScene)
	assert.Nil(t, r.ActiveScene())
}

func TestRenderFrameWithoutScene(t *testing.T) {
	r, rec := newTestRenderer(t)

	assert.ErrorIs(t, r.RenderFrame(FrameOptions{}), scene.ErrNoActiveScene)
	assert.ErrorIs(t, r.SetGeometry("a", geometry(rec)), scene.ErrNoActiveScene)
	// setters without a bound scene are ignored
	r.SetMaterial("m", state.DefaultMaterial())
}

func TestSessionCreatedFromEvent(t *testing.T) {
	r, rec := newTestRenderer(t)

	r.Bus().Publish(event.TopicSceneCreated, event.SceneCreated{
		SceneID: "main",
		Canvas:  event.Canvas{ID: "canvas", Width: 64, Height: 32},
	})
	_, ok := r.Scene("main")
	assert.False(t, ok, "sessions are allocated on first bind")

	require.NoError(t, r.BindScene("main", scene.BindOptions{Mode: scene.FullRebuild}))
	s, ok := r.Scene("main")
	require.True(t, ok)
	assert.Same(t, s, r.ActiveScene())
	assert.Equal(t, 64, s.Canvas().Width)

	r.SetMaterial("m", state.DefaultMaterial())
	require.NoError(t, r.SetGeometry("a", geometry(rec)))

	var stats []scene.FrameStats
	require.NoError(t, r.RenderFrame(FrameOptions{ProfileFunc: func(fs scene.FrameStats) {
		stats = append(stats, fs)
	}}))
	require.Len(t, stats, 1)
	assert.Equal(t, "main", stats[0].SceneID)
	assert.Equal(t, 1, stats[0].Opaque)
	assert.Len(t, rec.Draws, 1)
}

func TestMarshalHandlerCanCallSetters(t *testing.T) {
	r, rec := newTestRenderer(t)
	r.CreateScene("main", event.Canvas{ID: "canvas", Width: 8, Height: 8})
	require.NoError(t, r.BindScene("main", scene.BindOptions{}))

	r.Bus().Subscribe(event.TopicMarshal, func(any) {
		r.SetMaterial("late", state.DefaultMaterial())
	})
	require.NoError(t, r.SetGeometry("a", geometry(rec)))

	s := r.ActiveScene()
	assert.Equal(t, "late", s.Records()[0].States[state.TypeMaterial].Key())
}

func TestScenesShareProgramCache(t *testing.T) {
	r, rec := newTestRenderer(t)
	r.CreateScene("a", event.Canvas{ID: "canvas", Width: 8, Height: 8})
	r.CreateScene("b", event.Canvas{ID: "canvas", Width: 8, Height: 8})

	require.NoError(t, r.BindScene("a", scene.BindOptions{}))
	require.NoError(t, r.SetGeometry("g", geometry(rec)))
	require.NoError(t, r.BindScene("b", scene.BindOptions{}))
	require.NoError(t, r.SetGeometry("g", geometry(rec)))

	sa, _ := r.Scene("a")
	sb, _ := r.Scene("b")
	assert.Same(t, sa.Records()[0].Program, sb.Records()[0].Program)
	assert.Equal(t, 1, r.Programs().Len())
	assert.Equal(t, 2, sa.Records()[0].Program.RefCount())

	require.NoError(t, r.RemoveGeometry("a", "g"))
	assert.Equal(t, 1, sb.Records()[0].Program.RefCount())
	assert.ErrorIs(t, r.RemoveGeometry("missing", "g"), scene.ErrUnknownScene)
}

func TestResetReleasesEverySession(t *testing.T) {
	r, rec := newTestRenderer(t)
	r.CreateScene("a", event.Canvas{ID: "canvas", Width: 8, Height: 8})
	require.NoError(t, r.BindScene("a", scene.BindOptions{}))
	require.NoError(t, r.SetGeometry("g", geometry(rec)))
	p := r.ActiveScene().Records()[0].Program

	r.Reset()
	assert.True(t, p.Destroyed())
	assert.Equal(t, 0, r.Programs().Len())
	assert.Equal(t, 0, rec.LivePrograms())
	assert.Nil(t, r.ActiveScene())

	// the scene is still announced and gets a fresh session
	require.NoError(t, r.BindScene("a", scene.BindOptions{}))
	assert.Empty(t, r.ActiveScene().Records())
}

func TestPickThroughRenderer(t *testing.T) {
	r, rec := newTestRenderer(t)
	r.CreateScene("main", event.Canvas{ID: "canvas", Width: 10, Height: 10})
	require.NoError(t, r.BindScene("main", scene.BindOptions{}))

	fired := 0
	r.SetPickListeners("l", []state.PickListener{func(state.PickHit) { fired++ }})
	g := geometry(rec)
	require.NoError(t, r.SetGeometry("g", g))
	rec.Cover(g.Indices, gfxtest.Rect{X0: 0, Y0: 0, X1: 10, Y1: 10})

	picked, err := r.Pick(PickRequest{SceneID: "main", X: 5, Y: 5}, scene.PickOptions{})
	require.NoError(t, err)
	assert.True(t, picked)
	assert.Equal(t, 1, fired)

	_, err = r.Pick(PickRequest{SceneID: "other"}, scene.PickOptions{})
	assert.ErrorIs(t, err, scene.ErrUnknownScene)
}

func TestPickingDisabledByConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Render.Picking = false
	r, _ := newTestRenderer(t, WithConfig(cfg))

	picked, err := r.Pick(PickRequest{SceneID: "anything"}, scene.PickOptions{})
	require.NoError(t, err)
	assert.False(t, picked)
}

func TestResizeAndDestroy(t *testing.T) {
	r, _ := newTestRenderer(t)
	r.CreateScene("main", event.Canvas{ID: "canvas", Width: 10, Height: 10})
	require.NoError(t, r.BindScene("main", scene.BindOptions{}))

	require.NoError(t, r.Resize("main", 30, 20))
	s, _ := r.Scene("main")
	assert.Equal(t, 30, s.Canvas().Width)
	assert.Equal(t, 20, s.Canvas().Height)

	r.DestroyScene("main")
	assert.Nil(t, r.ActiveScene())
	assert.ErrorIs(t, r.Resize("main", 1, 1), scene.ErrUnknownScene)
	assert.ErrorIs(t, r.BindScene("main", scene.BindOptions{}), scene.ErrUnknownScene)
}

func TestInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Render.Workers = 0
	_, err := NewRenderer(WithContext(gfxtest.NewRecorder()), WithConfig(cfg))
	assert.Error(t, err)
}
