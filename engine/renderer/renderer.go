package renderer

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/config"
	"github.com/Carmen-Shannon/oxy-scene/engine/event"
	"github.com/Carmen-Shannon/oxy-scene/engine/layer"
	"github.com/Carmen-Shannon/oxy-scene/engine/logger"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/gfx"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/program"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-scene/engine/scene"
	"github.com/Carmen-Shannon/oxy-scene/engine/state"
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.RWMutex

	backendType gfx.BackendType
	ctx         gfx.Context
	cfg         config.Config
	bus         event.Bus
	layers      layer.Service
	programs    program.Cache
	composer    shader.Composer
	sub         event.Subscription

	canvases map[string]event.Canvas
	sessions map[string]scene.Scene
	active   scene.Scene
}

// FrameOptions configures RenderFrame.
type FrameOptions struct {
	// ProfileFunc, when set, receives the stats of every rendered frame.
	ProfileFunc func(stats scene.FrameStats)

	// KeepBuffers skips clearing the canvas before drawing.
	KeepBuffers bool

	// TagSelector is a regular expression. When set, tagged records whose tag does not match are skipped.
	TagSelector string
}

// PickRequest names the scene and canvas position of a pick. The origin is the top-left corner.
type PickRequest struct {
	SceneID string
	X       int
	Y       int
}

// Renderer defines the collaborator-facing API of the render core.
//
// Scenes are announced on the event bus with event.TopicSceneCreated and their sessions are allocated
// on first bind. A traversal binds one scene, calls the setters and SetGeometry as it visits the tree,
// and the host then calls RenderFrame. Programs are shared by every scene through one cache.
// Setters called with no scene bound are ignored with a warning.
type Renderer interface {
	// Context returns the graphics context the renderer draws with.
	Context() gfx.Context

	// Bus returns the event bus the renderer listens on and publishes marshal events to.
	Bus() event.Bus

	// Layers returns the render-layer service.
	Layers() layer.Service

	// Programs returns the shared program cache.
	Programs() program.Cache

	// CreateScene announces a scene on the bus. It is a shorthand for publishing event.SceneCreated.
	//
	// Parameters:
	//   - id: the scene id
	//   - canvas: the canvas the scene draws to
	CreateScene(id string, canvas event.Canvas)

	// Scene returns the session of a scene if it has been bound at least once.
	Scene(id string) (scene.Scene, bool)

	// BindScene makes a scene the target of the setters and of RenderFrame, allocating its session on
	// first use.
	//
	// Parameters:
	//   - id: the scene id
	//   - opts: the bind mode and resort request
	//
	// Returns:
	//   - error: ErrUnknownScene if the scene was never announced
	BindScene(id string, opts scene.BindOptions) error

	// ActiveScene returns the bound scene, or nil.
	ActiveScene() scene.Scene

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
	SetModelTransform(id string, m common.Mat4)
	SetProjectionTransform(id string, m common.Mat4)
	SetViewTransform(id string, m common.Mat4, lookAt *state.LookAt)
	SetPickListeners(id string, listeners []state.PickListener)
	SetRenderListeners(id string, listeners []state.RenderListener)
	SetShader(id string, c *state.CustomShader)
	SetShaderParams(id string, params []state.ShaderParams)
	SetTag(id string, tag string)

	// SetGeometry registers a geometry visit in the bound scene.
	//
	// Returns:
	//   - error: ErrNoActiveScene, or a program compile failure that must abort the frame
	SetGeometry(id string, g state.Geometry) error

	// RemoveGeometry removes the records of a geometry from a scene.
	//
	// Returns:
	//   - error: ErrUnknownScene if the scene has no session
	RemoveGeometry(sceneID, geometryID string) error

	// RenderFrame renders the bound scene.
	//
	// Parameters:
	//   - opts: frame options
	//
	// Returns:
	//   - error: ErrNoActiveScene, or a failure from the frame
	RenderFrame(opts FrameOptions) error

	// Pick runs the pick pass of a scene at a canvas position. It returns false without drawing when
	// picking is disabled in the configuration.
	//
	// Returns:
	//   - bool: true if any pick listener fired
	//   - error: ErrUnknownScene or a pick target failure
	Pick(req PickRequest, opts scene.PickOptions) (bool, error)

	// Resize sets the canvas size of a scene.
	Resize(sceneID string, width, height int) error

	// DestroyScene releases a scene's session and forgets the scene.
	DestroyScene(id string)

	// Reset releases every session, then destroys every program. Scenes stay announced and get fresh
	// sessions on their next bind. Reset tears down all scenes at once and must never run while a
	// frame is being executed.
	Reset()

	// Close resets the renderer and stops listening on the bus.
	Close()
}

var _ Renderer = &renderer{}

// NewRenderer creates a Renderer. Without WithContext the graphics context is created for the
// backend type, which requires a current GL context on the calling thread.
//
// Parameters:
//   - options: builder options
//
// Returns:
//   - Renderer: the renderer
//   - error: if the graphics context cannot be created
func NewRenderer(options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:          &sync.RWMutex{},
		backendType: gfx.BackendGL21,
		cfg:         config.Default(),
		canvases:    make(map[string]event.Canvas),
		sessions:    make(map[string]scene.Scene),
	}
	for _, opt := range options {
		opt(r)
	}
	if err := r.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("renderer config: %w", err)
	}
	if err := r.initBackend(); err != nil {
		return nil, err
	}
	if r.bus == nil {
		r.bus = event.NewBus()
	}
	if r.layers == nil {
		r.layers = layer.NewService()
	}
	if r.programs == nil {
		composer := shader.NewComposer(
			shader.WithWorkers(r.cfg.Render.Workers),
			shader.WithSourceLogging(r.cfg.Render.LogShaders),
		)
		r.programs = program.NewCache(r.ctx,
			program.WithComposer(composer),
			program.WithSourceCacheSize(r.cfg.Render.SourceCache),
		)
		r.composer = composer
	}
	r.sub = r.bus.Subscribe(event.TopicSceneCreated, r.onSceneCreated)
	return r, nil
}

func (r *renderer) onSceneCreated(payload any) {
	ev, ok := payload.(event.SceneCreated)
	if !ok {
		logger.L().Warn("unexpected scene-created payload", "type", fmt.Sprintf("%T", payload))
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.canvases[ev.SceneID]; exists {
		logger.L().Warn("scene announced twice", "scene", ev.SceneID)
		return
	}
	r.canvases[ev.SceneID] = ev.Canvas
}

func (r *renderer) Context() gfx.Context {
	return r.ctx
}

func (r *renderer) Bus() event.Bus {
	return r.bus
}

func (r *renderer) Layers() layer.Service {
	return r.layers
}

func (r *renderer) Programs() program.Cache {
	return r.programs
}

func (r *renderer) CreateScene(id string, canvas event.Canvas) {
	r.bus.Publish(event.TopicSceneCreated, event.SceneCreated{SceneID: id, Canvas: canvas})
}

func (r *renderer) Scene(id string) (scene.Scene, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// session returns the session of id, allocating it from the announced canvas. The caller holds mu.
func (r *renderer) session(id string) (scene.Scene, error) {
	if s, ok := r.sessions[id]; ok {
		return s, nil
	}
	canvas, ok := r.canvases[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", scene.ErrUnknownScene, id)
	}
	s := scene.NewScene(id, canvas, r.ctx, r.programs,
		scene.WithBus(r.bus),
		scene.WithLayers(r.layers),
		scene.WithSortDelay(r.cfg.Render.SortDelay),
		scene.WithWhitewash(r.cfg.Render.Whitewash),
	)
	r.sessions[id] = s
	logger.L().Debug("scene session created", "scene", id, "width", canvas.Width, "height", canvas.Height)
	return s, nil
}

func (r *renderer) BindScene(id string, opts scene.BindOptions) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, err := r.session(id)
	if err != nil {
		return fmt.Errorf("bind scene: %w", err)
	}
	s.Bind(opts)
	r.active = s
	return nil
}

func (r *renderer) ActiveScene() scene.Scene {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// bound returns the active scene, logging when there is none. The lock is not held while the caller
// uses the scene, so marshal handlers may call back into the renderer.
func (r *renderer) bound(op string) scene.Scene {
	s := r.ActiveScene()
	if s == nil {
		logger.L().Warn("setter called with no scene bound", "op", op)
	}
	return s
}

func (r *renderer) SetIDPrefix(prefix string) {
	if s := r.bound("SetIDPrefix"); s != nil {
		s.SetIDPrefix(prefix)
	}
}

func (r *renderer) SetClips(id string, clips []state.Clip) {
	if s := r.bound("SetClips"); s != nil {
		s.SetClips(id, clips)
	}
}

func (r *renderer) SetColortrans(id string, c *state.Colortrans) {
	if s := r.bound("SetColortrans"); s != nil {
		s.SetColortrans(id, c)
	}
}

func (r *renderer) SetFlags(id string, f state.Flags) {
	if s := r.bound("SetFlags"); s != nil {
		s.SetFlags(id, f)
	}
}

func (r *renderer) SetFog(id string, f *state.Fog) {
	if s := r.bound("SetFog"); s != nil {
		s.SetFog(id, f)
	}
}

func (r *renderer) SetImagebuf(id string, b state.Imagebuf) {
	if s := r.bound("SetImagebuf"); s != nil {
		s.SetImagebuf(id, b)
	}
}

func (r *renderer) SetLights(id string, lights []state.Light) {
	if s := r.bound("SetLights"); s != nil {
		s.SetLights(id, lights)
	}
}

func (r *renderer) SetMaterial(id string, m state.Material) {
	if s := r.bound("SetMaterial"); s != nil {
		s.SetMaterial(id, m)
	}
}

func (r *renderer) SetMorph(id string, m *state.Morph) {
	if s := r.bound("SetMorph"); s != nil {
		s.SetMorph(id, m)
	}
}

func (r *renderer) SetPickColor(id string, c *state.PickColor) {
	if s := r.bound("SetPickColor"); s != nil {
		s.SetPickColor(id, c)
	}
}

func (r *renderer) SetTexture(id string, layers []state.TextureLayer) {
	if s := r.bound("SetTexture"); s != nil {
		s.SetTexture(id, layers)
	}
}

func (r *renderer) SetRenderer(id string, p state.RendererProps) {
	if s := r.bound("SetRenderer"); s != nil {
		s.SetRenderer(id, p)
	}
}

func (r *renderer) SetModelTransform(id string, m common.Mat4) {
	if s := r.bound("SetModelTransform"); s != nil {
		s.SetModelTransform(id, m)
	}
}

func (r *renderer) SetProjectionTransform(id string, m common.Mat4) {
	if s := r.bound("SetProjectionTransform"); s != nil {
		s.SetProjectionTransform(id, m)
	}
}

func (r *renderer) SetViewTransform(id string, m common.Mat4, lookAt *state.LookAt) {
	if s := r.bound("SetViewTransform"); s != nil {
		s.SetViewTransform(id, m, lookAt)
	}
}

func (r *renderer) SetPickListeners(id string, listeners []state.PickListener) {
	if s := r.bound("SetPickListeners"); s != nil {
		s.SetPickListeners(id, listeners)
	}
}

func (r *renderer) SetRenderListeners(id string, listeners []state.RenderListener) {
	if s := r.bound("SetRenderListeners"); s != nil {
		s.SetRenderListeners(id, listeners)
	}
}

func (r *renderer) SetShader(id string, c *state.CustomShader) {
	if s := r.bound("SetShader"); s != nil {
		s.SetShader(id, c)
	}
}

func (r *renderer) SetShaderParams(id string, params []state.ShaderParams) {
	if s := r.bound("SetShaderParams"); s != nil {
		s.SetShaderParams(id, params)
	}
}

func (r *renderer) SetTag(id string, tag string) {
	if s := r.bound("SetTag"); s != nil {
		s.SetTag(id, tag)
	}
}

func (r *renderer) SetGeometry(id string, g state.Geometry) error {
	s := r.ActiveScene()
	if s == nil {
		return fmt.Errorf("set geometry %q: %w", id, scene.ErrNoActiveScene)
	}
	return s.SetGeometry(id, g)
}

func (r *renderer) RemoveGeometry(sceneID, geometryID string) error {
	s, ok := r.Scene(sceneID)
	if !ok {
		return fmt.Errorf("remove geometry %q: %w: %s", geometryID, scene.ErrUnknownScene, sceneID)
	}
	s.RemoveGeometry(geometryID)
	return nil
}

func (r *renderer) RenderFrame(opts FrameOptions) error {
	s := r.ActiveScene()
	if s == nil {
		return fmt.Errorf("render frame: %w", scene.ErrNoActiveScene)
	}
	stats, err := s.Render(scene.RenderOptions{KeepBuffers: opts.KeepBuffers, TagSelector: opts.TagSelector})
	if err != nil {
		return err
	}
	if opts.ProfileFunc != nil {
		opts.ProfileFunc(stats)
	}
	return nil
}

func (r *renderer) Pick(req PickRequest, opts scene.PickOptions) (bool, error) {
	if !r.cfg.Render.Picking {
		return false, nil
	}
	s, ok := r.Scene(req.SceneID)
	if !ok {
		return false, fmt.Errorf("pick: %w: %s", scene.ErrUnknownScene, req.SceneID)
	}
	return s.Pick(req.X, req.Y, opts)
}

func (r *renderer) Resize(sceneID string, width, height int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	canvas, ok := r.canvases[sceneID]
	if !ok {
		return fmt.Errorf("resize: %w: %s", scene.ErrUnknownScene, sceneID)
	}
	canvas.Width, canvas.Height = width, height
	r.canvases[sceneID] = canvas
	if s, ok := r.sessions[sceneID]; ok {
		s.Resize(width, height)
	}
	return nil
}

func (r *renderer) DestroyScene(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.Release()
		delete(r.sessions, id)
		if r.active == s {
			r.active = nil
		}
	}
	delete(r.canvases, id)
}

func (r *renderer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		s.Release()
		delete(r.sessions, id)
	}
	r.active = nil
	r.programs.Reset()
	logger.L().Info("renderer reset")
}

func (r *renderer) Close() {
	r.Reset()
	r.bus.Unsubscribe(r.sub)
	r.programs.Close()
	if r.composer != nil {
		r.composer.Close()
	}
}
