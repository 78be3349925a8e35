// Package scene implements the per-scene session of the render-state compiler: the state registry and
// current-state pointers a traversal fills through the setters, the draw-call bin built at geometry
// registration, and the frame and pick passes that execute it.
//
// A Scene is not safe for concurrent use. One traversal and its frame run on one goroutine, and only one
// scene may be bound at a time.
package scene

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/event"
	"github.com/Carmen-Shannon/oxy-scene/engine/layer"
	"github.com/Carmen-Shannon/oxy-scene/engine/logger"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/gfx"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/node"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/program"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-scene/engine/state"
)

var (
	// ErrNoActiveScene is returned when a frame is requested with no scene bound.
	ErrNoActiveScene = errors.New("no active scene")

	// ErrUnknownScene is returned for a scene id with no session, or a session that was released.
	ErrUnknownScene = errors.New("unknown scene")
)

// DefaultSortDelay is the number of renders between automatic bin sorts.
const DefaultSortDelay = 10

// BindMode selects how a traversal updates the bin.
type BindMode int

const (
	// FullRebuild discards every record, state object and program reference and rebuilds them from
	// the traversal.
	FullRebuild BindMode = iota

	// IncrementalPatch keeps the bin and only swaps the volatile references of existing records.
	IncrementalPatch
)

func (m BindMode) String() string {
	if m == IncrementalPatch {
		return "incremental"
	}
	return "full"
}

// BindOptions configures Bind.
type BindOptions struct {
	Mode BindMode

	// Resort forces a sort on the next render under IncrementalPatch. Sort keys are rebuilt first, so
	// layer priority changes since the last build take effect.
	Resort bool
}

type scene struct {
	id        string
	canvas    event.Canvas
	ctx       gfx.Context
	programs  program.Cache
	bus       event.Bus
	layers    layer.Service
	executor  node.Executor
	whitewash bool
	released  bool

	registry *state.Registry
	defaults state.Defaults
	current  [state.NumTypes]state.Object
	rebuild  bool
	prefix   string

	// fingerprint caches the fingerprint of the current states; nil after a shader-affecting change.
	fingerprint *program.Fingerprint

	bin        []*node.Node
	nodes      map[string]*node.Node
	byGeometry map[string][]*node.Node
	visits     map[string]int
	destroyed  int
	deferred   []*node.Node

	sortDelay     int
	countdown     int
	needsSort     bool
	needsSortKeys bool

	tags tagFilter

	pickTarget gfx.Framebuffer
	pickWidth  int
	pickHeight int
}

// Scene is one scene session.
type Scene interface {
	// ID returns the scene id.
	ID() string

	// Canvas returns the canvas the scene draws to.
	Canvas() event.Canvas

	// Bind starts a traversal. FullRebuild resets the current states to the defaults, drops every
	// record with its program reference, clears the registry and restarts the state id sequence, and
	// forces a sort key rebuild and a sort on the next render. IncrementalPatch keeps everything.
	//
	// Parameters:
	//   - opts: the bind mode and resort request
	Bind(opts BindOptions)

	// Mode returns the mode of the current binding.
	Mode() BindMode

	// SetIDPrefix namespaces every later setter and geometry id, for instanced subgraphs. An empty
	// prefix turns namespacing off. Bind resets it.
	SetIDPrefix(prefix string)

	SetClips(id string, clips []state.Clip)
	SetColortrans(id string, c *state.Colortrans)
	SetFlags(id string, f state.Flags)
	SetFog(id string, f *state.Fog)
	SetImagebuf(id string, b state.Imagebuf)
	SetLights(id string, lights []state.Light)
	SetMaterial(id string, m state.Material)
	SetMorph(id string, m *state.Morph)
	SetPickColor(id string, c *state.PickColor)
	SetTexture(id string, layers []state.TextureLayer)
	SetRenderer(id string, p state.RendererProps)

	// SetModelTransform sets the model matrix. The normal matrix is derived from it.
	SetModelTransform(id string, m common.Mat4)

	SetProjectionTransform(id string, m common.Mat4)

	// SetViewTransform sets the view matrix and, optionally, the camera it was built from.
	SetViewTransform(id string, m common.Mat4, lookAt *state.LookAt)

	SetPickListeners(id string, listeners []state.PickListener)
	SetRenderListeners(id string, listeners []state.RenderListener)
	SetShader(id string, c *state.CustomShader)

	// SetShaderParams sets uniform values for custom shader code. Later entries of the stack win.
	SetShaderParams(id string, params []state.ShaderParams)

	// SetTag labels the following geometry for RenderOptions.TagSelector and PickOptions.TagSelector.
	SetTag(id string, tag string)

	// SetGeometry registers a geometry visit. It publishes a marshal event first so collaborators can
	// flush deferred exports. Under IncrementalPatch an existing record only swaps its volatile
	// references; otherwise a record is built from the current states and appended to the bin.
	//
	// Parameters:
	//   - id: the geometry id, namespaced by the current prefix
	//   - g: the geometry buffers
	//
	// Returns:
	//   - error: a program compile failure, which must abort the frame
	SetGeometry(id string, g state.Geometry) error

	// RemoveGeometry tombstones the records of a geometry and releases their program and state
	// references. The id is matched exactly, so instanced geometry is removed by its prefixed id.
	//
	// Returns:
	//   - bool: true if any record was removed
	RemoveGeometry(id string) bool

	// ForceSort sorts the bin on the next render, rebuilding sort keys first when rebuildKeys is set.
	ForceSort(rebuildKeys bool)

	// SetSortDelay sets the number of renders between automatic sorts. 0 sorts every render and -1
	// never sorts automatically.
	SetSortDelay(n int)

	// Render runs the opaque pass then the blended transparent pass.
	//
	// Parameters:
	//   - opts: frame options
	//
	// Returns:
	//   - FrameStats: what the frame drew
	//   - error: ErrUnknownScene if the scene was released
	Render(opts RenderOptions) (FrameStats, error)

	// Pick draws the bin into the offscreen pick target, reads the pixel under (x, y), origin
	// top-left, and calls the pick listeners of the record found there, newest first.
	//
	// Returns:
	//   - bool: true if any listener fired
	//   - error: a framebuffer failure or ErrUnknownScene
	Pick(x, y int, opts PickOptions) (bool, error)

	// Resize sets the canvas size. The pick target is recreated on the next pick.
	Resize(width, height int)

	// Release drops every record with its program reference, the registry and the pick target.
	// The scene cannot be used afterwards.
	Release()

	// Records returns the live records in bin order.
	Records() []*node.Node

	// Lookup returns the registry object stored under (t, key). Keys include any prefix.
	Lookup(t state.Type, key string) (state.Object, bool)

	// Current returns the current object of category t.
	Current(t state.Type) state.Object
}

var _ Scene = &scene{}

// NewScene creates a session drawing to canvas through ctx, sharing programs through programs.
// The session starts bound in FullRebuild mode.
//
// Parameters:
//   - id: the scene id
//   - canvas: the canvas the scene draws to
//   - ctx: the graphics context
//   - programs: the program cache shared by scenes on ctx
//   - options: builder options
//
// Returns:
//   - Scene: the session
func NewScene(id string, canvas event.Canvas, ctx gfx.Context, programs program.Cache, options ...SceneBuilderOption) Scene {
	if ctx == nil {
		panic("scene: nil graphics context")
	}
	if programs == nil {
		panic("scene: nil program cache")
	}
	s := &scene{
		id:         id,
		canvas:     canvas,
		ctx:        ctx,
		programs:   programs,
		registry:   state.NewRegistry(),
		defaults:   state.NewDefaults(),
		nodes:      make(map[string]*node.Node),
		byGeometry: make(map[string][]*node.Node),
		visits:     make(map[string]int),
		sortDelay:  DefaultSortDelay,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.bus == nil {
		s.bus = event.NewBus()
	}
	if s.layers == nil {
		s.layers = layer.NewService()
	}
	if s.executor == nil {
		s.executor = node.NewExecutor(ctx)
	}
	s.countdown = s.sortDelay
	s.Bind(BindOptions{Mode: FullRebuild})
	return s
}

func (s *scene) ID() string {
	return s.id
}

func (s *scene) Canvas() event.Canvas {
	return s.canvas
}

func (s *scene) Bind(opts BindOptions) {
	s.prefix = ""
	s.fingerprint = nil
	clear(s.visits)
	s.current = s.defaults

	if opts.Mode == IncrementalPatch {
		s.rebuild = false
		if opts.Resort {
			s.ForceSort(true)
		}
		return
	}

	s.rebuild = true
	for _, n := range s.bin {
		if !n.Destroyed {
			s.programs.Release(n.Program)
		}
	}
	clear(s.bin)
	s.bin = s.bin[:0]
	clear(s.nodes)
	clear(s.byGeometry)
	s.destroyed = 0
	s.registry.Reset()
	s.defaults.ZeroRefCounts()
	s.needsSortKeys = true
	s.needsSort = true
}

func (s *scene) Mode() BindMode {
	if s.rebuild {
		return FullRebuild
	}
	return IncrementalPatch
}

func (s *scene) SetIDPrefix(prefix string) {
	s.prefix = prefix
}

// acquire makes the object for (t, id) current and reports whether its hash must be recomputed.
func (s *scene) acquire(t state.Type, id string) (state.Object, bool) {
	key := s.prefix + common.Coalesce(id, state.DefaultKey(t))
	o, fresh := s.registry.Acquire(t, key, s.rebuild)
	s.current[t] = o
	return o, s.rebuild || fresh
}

// rehash recomputes the hash of a shader-affecting object and invalidates the cached fingerprint.
func (s *scene) rehash(o state.Object, due bool) {
	if !due {
		return
	}
	o.Rehash()
	s.fingerprint = nil
}

func (s *scene) SetClips(id string, clips []state.Clip) {
	o, due := s.acquire(state.TypeClips, id)
	o.(*state.ClipsState).Clips = clips
	s.rehash(o, due)
}

func (s *scene) SetColortrans(id string, c *state.Colortrans) {
	o, due := s.acquire(state.TypeColortrans, id)
	o.(*state.ColortransState).Colortrans = c
	s.rehash(o, due)
}

func (s *scene) SetFlags(id string, f state.Flags) {
	o, _ := s.acquire(state.TypeFlags, id)
	o.(*state.FlagsState).Flags = f
}

func (s *scene) SetFog(id string, f *state.Fog) {
	o, due := s.acquire(state.TypeFog, id)
	o.(*state.FogState).Fog = f
	s.rehash(o, due)
}

func (s *scene) SetImagebuf(id string, b state.Imagebuf) {
	o, _ := s.acquire(state.TypeImagebuf, id)
	o.(*state.ImagebufState).Imagebuf = b
}

func (s *scene) SetLights(id string, lights []state.Light) {
	o, due := s.acquire(state.TypeLights, id)
	o.(*state.LightsState).Lights = lights
	s.rehash(o, due)
}

func (s *scene) SetMaterial(id string, m state.Material) {
	o, _ := s.acquire(state.TypeMaterial, id)
	o.(*state.MaterialState).Material = m
}

func (s *scene) SetMorph(id string, m *state.Morph) {
	o, due := s.acquire(state.TypeMorph, id)
	o.(*state.MorphState).Morph = m
	s.rehash(o, due)
}

func (s *scene) SetPickColor(id string, c *state.PickColor) {
	o, _ := s.acquire(state.TypePickColor, id)
	o.(*state.PickColorState).PickColor = c
}

func (s *scene) SetTexture(id string, layers []state.TextureLayer) {
	o, due := s.acquire(state.TypeTexture, id)
	o.(*state.TextureState).Layers = layers
	s.rehash(o, due)
}

func (s *scene) SetRenderer(id string, p state.RendererProps) {
	o, due := s.acquire(state.TypeRenderer, id)
	o.(*state.RendererState).Props = p
	s.rehash(o, due)
}

func (s *scene) SetModelTransform(id string, m common.Mat4) {
	o, _ := s.acquire(state.TypeModelTransform, id)
	t := o.(*state.TransformState)
	t.Matrix = m
	t.NormalMatrix = common.NormalMatrix(m)
}

func (s *scene) SetProjectionTransform(id string, m common.Mat4) {
	o, _ := s.acquire(state.TypeProjectionTransform, id)
	o.(*state.TransformState).Matrix = m
}

func (s *scene) SetViewTransform(id string, m common.Mat4, lookAt *state.LookAt) {
	o, _ := s.acquire(state.TypeViewTransform, id)
	t := o.(*state.TransformState)
	t.Matrix = m
	t.NormalMatrix = common.NormalMatrix(m)
	t.LookAt = lookAt
}

func (s *scene) SetPickListeners(id string, listeners []state.PickListener) {
	o, _ := s.acquire(state.TypePickListeners, id)
	o.(*state.PickListenersState).Listeners = listeners
}

func (s *scene) SetRenderListeners(id string, listeners []state.RenderListener) {
	o, _ := s.acquire(state.TypeRenderListeners, id)
	o.(*state.RenderListenersState).Listeners = listeners
}

func (s *scene) SetShader(id string, c *state.CustomShader) {
	o, due := s.acquire(state.TypeShader, id)
	o.(*state.ShaderState).Shader = c
	s.rehash(o, due)
}

func (s *scene) SetShaderParams(id string, params []state.ShaderParams) {
	o, _ := s.acquire(state.TypeShaderParams, id)
	o.(*state.ShaderParamsState).Params = params
}

func (s *scene) SetTag(id string, tag string) {
	o, _ := s.acquire(state.TypeTag, id)
	o.(*state.TagState).Tag = tag
}

func (s *scene) SetGeometry(id string, g state.Geometry) error {
	if s.released {
		return fmt.Errorf("set geometry %q: %w: %s", id, ErrUnknownScene, s.id)
	}
	gid := s.prefix + id
	s.bus.Publish(event.TopicMarshal, event.Marshal{SceneID: s.id, GeometryID: gid})

	visit := s.visits[gid]
	s.visits[gid] = visit + 1
	recordID := gid
	if visit > 0 {
		recordID = fmt.Sprintf("%s#%d", gid, visit)
	}

	if !s.rebuild {
		if n, ok := s.nodes[recordID]; ok {
			s.patch(n)
			return nil
		}
		logger.L().Debug("geometry not in bin, building record", "scene", s.id, "geometry", gid)
	}

	o, _ := s.registry.Acquire(state.TypeGeometry, gid, s.rebuild)
	gs := o.(*state.GeometryState)
	gs.Geometry = g
	prev := s.current[state.TypeGeometry].Hash()
	gs.Rehash()
	s.current[state.TypeGeometry] = o
	if gs.Hash() != prev {
		s.fingerprint = nil
	}

	fp := s.currentFingerprint()
	p, err := s.programs.Acquire(fp, s.inputs())
	if err != nil {
		if o.RefCount() == 0 {
			s.registry.Release(o)
		}
		return fmt.Errorf("scene %s: geometry %q: %w", s.id, gid, err)
	}

	n := &node.Node{
		ID:          recordID,
		GeometryID:  gid,
		Layer:       s.layers.Layer(),
		Program:     p,
		Fingerprint: fp,
		States:      s.current,
	}
	for _, st := range n.States {
		s.registry.Retain(st)
	}
	n.SortKey = s.sortKey(n)

	s.bin = append(s.bin, n)
	s.nodes[recordID] = n
	s.byGeometry[gid] = append(s.byGeometry[gid], n)
	return nil
}

// patch swaps the volatile references of n whose state ids differ from the current ones.
func (s *scene) patch(n *node.Node) {
	for _, t := range node.Volatile {
		cur := s.current[t]
		old := n.States[t]
		if old.StateID() == cur.StateID() {
			continue
		}
		s.registry.Release(old)
		s.registry.Retain(cur)
		n.States[t] = cur
	}
}

func (s *scene) currentFingerprint() program.Fingerprint {
	if s.fingerprint != nil {
		return *s.fingerprint
	}
	c := &s.current
	fp := program.Fingerprint{
		CanvasID:   s.canvas.ID,
		Renderer:   c[state.TypeRenderer].Hash(),
		Fog:        c[state.TypeFog].Hash(),
		Lights:     c[state.TypeLights].Hash(),
		Texture:    c[state.TypeTexture].Hash(),
		Clips:      c[state.TypeClips].Hash(),
		Morph:      c[state.TypeMorph].Hash(),
		Geometry:   c[state.TypeGeometry].Hash(),
		Colortrans: c[state.TypeColortrans].Hash(),
		Shader:     c[state.TypeShader].Hash(),
	}
	s.fingerprint = &fp
	return fp
}

// inputs snapshots the current shader-affecting states for the composer.
func (s *scene) inputs() shader.Inputs {
	c := &s.current
	return shader.Inputs{
		Geometry:   c[state.TypeGeometry].(*state.GeometryState).Geometry,
		Lights:     c[state.TypeLights].(*state.LightsState).Lights,
		Layers:     c[state.TypeTexture].(*state.TextureState).Layers,
		Fog:        c[state.TypeFog].(*state.FogState).Fog,
		Clips:      c[state.TypeClips].(*state.ClipsState).Clips,
		Colortrans: c[state.TypeColortrans].(*state.ColortransState).Colortrans != nil,
		Morph:      c[state.TypeMorph].(*state.MorphState).Morph,
		Custom:     c[state.TypeShader].(*state.ShaderState).Shader,
		Whitewash:  s.whitewash,
	}
}

func (s *scene) RemoveGeometry(id string) bool {
	nodes, ok := s.byGeometry[id]
	if !ok {
		return false
	}
	for _, n := range nodes {
		if n.Destroyed {
			continue
		}
		n.Destroyed = true
		s.destroyed++
		s.programs.Release(n.Program)
		for _, st := range n.States {
			s.registry.Release(st)
		}
		delete(s.nodes, n.ID)
	}
	delete(s.byGeometry, id)
	return true
}

func (s *scene) Resize(width, height int) {
	s.canvas.Width = width
	s.canvas.Height = height
}

func (s *scene) Release() {
	if s.released {
		return
	}
	s.Bind(BindOptions{Mode: FullRebuild})
	if s.pickTarget != 0 {
		s.ctx.DeleteFramebuffer(s.pickTarget)
		s.pickTarget = 0
	}
	s.released = true
	logger.L().Debug("scene released", "scene", s.id)
}

func (s *scene) Records() []*node.Node {
	out := make([]*node.Node, 0, len(s.bin)-s.destroyed)
	for _, n := range s.bin {
		if !n.Destroyed {
			out = append(out, n)
		}
	}
	return out
}

func (s *scene) Lookup(t state.Type, key string) (state.Object, bool) {
	return s.registry.Lookup(t, key)
}

func (s *scene) Current(t state.Type) state.Object {
	return s.current[t]
}
