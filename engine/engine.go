package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-scene/engine/logger"
	"github.com/Carmen-Shannon/oxy-scene/engine/profiler"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer"
	"github.com/Carmen-Shannon/oxy-scene/engine/scene"
	"github.com/Carmen-Shannon/oxy-scene/engine/window"
)

// ErrNoRenderer is returned by Frame and Run when the engine was built without a renderer.
var ErrNoRenderer = errors.New("engine has no renderer")

// TraverseFunc walks the application's scene graph once per frame, binding a scene and calling the
// renderer's setters and SetGeometry for every drawable it visits.
type TraverseFunc func(r renderer.Renderer) error

// engine implements the Engine interface.
// Drives traversal, rendering, picking and presentation on the thread owning the GL context.
type engine struct {
	window   window.Window
	renderer renderer.Renderer
	traverse TraverseFunc

	profiler         *profiler.Profiler
	profilingEnabled bool

	// pickScene is the scene picked on left click. Empty picks the bound scene.
	pickScene string
	clicks    [][2]int

	frameLimit time.Duration
	lastFrame  time.Time

	quit     bool
	quitOnce sync.Once
	err      error
}

// Engine is the main entry point for the engine.
// It orchestrates the frame loop on top of a window and a renderer.
type Engine interface {
	// Window returns the underlying window, or nil for headless engines.
	Window() window.Window

	// Renderer returns the renderer driven by the engine.
	Renderer() renderer.Renderer

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTraversal registers the function called at the start of every frame.
	//
	// Parameters:
	//   - fn: the traversal, or nil to render whatever the bound scene holds
	SetTraversal(fn TraverseFunc)

	// SetFrameLimit sets an optional frame rate cap in frames per second.
	// Pass 0 to uncap the loop (default).
	//
	// Parameters:
	//   - fps: maximum frames per second (0 = uncapped)
	SetFrameLimit(fps float64)

	// Click queues a pick at canvas pixel x, y (origin top-left). It runs after the next render.
	//
	// Parameters:
	//   - x: horizontal pixel
	//   - y: vertical pixel
	Click(x, y int)

	// Frame runs one iteration: traversal, render, queued picks.
	//
	// Returns:
	//   - error: the traversal error, or a render or pick failure
	Frame() error

	// Run starts the window loop and blocks until the window closes or Quit is called.
	// Each iteration runs Frame then swaps buffers.
	//
	// Returns:
	//   - error: the error that stopped the loop, if any
	Run() error

	// Quit stops the loop and closes the window. Safe to call multiple times.
	Quit()
}

var _ Engine = &engine{}

// NewEngine creates a new Engine instance with the provided options.
// Registers the window's resize and click callbacks when a window is given.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		profiler: profiler.NewProfiler(),
	}

	for _, opt := range options {
		opt(e)
	}

	if e.window != nil {
		e.window.SetResizeCallback(func(width, height int) {
			if e.renderer == nil {
				return
			}
			s := e.renderer.ActiveScene()
			if s == nil {
				return
			}
			if err := e.renderer.Resize(s.ID(), width, height); err != nil {
				logger.L().Warn("resize failed", "scene", s.ID(), "error", err)
			}
		})
		e.window.SetLeftClickCallback(e.Click)
	}

	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

func (e *engine) SetTraversal(fn TraverseFunc) {
	e.traverse = fn
}

func (e *engine) SetFrameLimit(fps float64) {
	if fps <= 0 {
		e.frameLimit = 0
		return
	}
	e.frameLimit = time.Duration(float64(time.Second) / fps)
}

func (e *engine) Click(x, y int) {
	e.clicks = append(e.clicks, [2]int{x, y})
}

func (e *engine) Frame() error {
	if e.renderer == nil {
		return ErrNoRenderer
	}

	if e.traverse != nil {
		if err := e.traverse(e.renderer); err != nil {
			return fmt.Errorf("traversal failed: %w", err)
		}
	}

	opts := renderer.FrameOptions{}
	if e.profilingEnabled && e.profiler != nil {
		opts.ProfileFunc = func(stats scene.FrameStats) {
			e.profiler.Tick(stats)
		}
	}
	if err := e.renderer.RenderFrame(opts); err != nil {
		if !errors.Is(err, scene.ErrNoActiveScene) {
			return err
		}
		logger.L().Debug("frame skipped", "reason", err)
	}

	return e.pick()
}

// pick drains the queued clicks against the pick scene.
func (e *engine) pick() error {
	if len(e.clicks) == 0 {
		return nil
	}
	clicks := e.clicks
	e.clicks = nil

	sceneID := e.pickScene
	if sceneID == "" {
		s := e.renderer.ActiveScene()
		if s == nil {
			return nil
		}
		sceneID = s.ID()
	}
	for _, c := range clicks {
		picked, err := e.renderer.Pick(renderer.PickRequest{SceneID: sceneID, X: c[0], Y: c[1]}, scene.PickOptions{})
		if err != nil {
			return fmt.Errorf("pick at %d,%d failed: %w", c[0], c[1], err)
		}
		logger.L().Debug("pick", "scene", sceneID, "x", c[0], "y", c[1], "hit", picked)
	}
	return nil
}

func (e *engine) Run() error {
	if e.renderer == nil {
		return ErrNoRenderer
	}
	if e.window == nil {
		return errors.New("engine has no window")
	}

	e.lastFrame = time.Now()
	e.window.SetUpdateCallback(func() {
		if e.quit {
			return
		}
		if err := e.Frame(); err != nil {
			logger.L().Error("frame failed", "error", err)
			e.err = err
			e.Quit()
			return
		}
		e.window.SwapBuffers()
		e.limit()
	})
	e.window.ProcessMessages()
	e.Quit()
	return e.err
}

// limit sleeps out the rest of the frame budget.
func (e *engine) limit() {
	if e.frameLimit > 0 {
		if remaining := e.frameLimit - time.Since(e.lastFrame); remaining > 0 {
			time.Sleep(remaining)
		}
	}
	e.lastFrame = time.Now()
}

func (e *engine) Quit() {
	e.quitOnce.Do(func() {
		e.quit = true
		if e.window != nil && e.window.IsRunning() {
			if err := e.window.Close(); err != nil {
				logger.L().Warn("window close failed", "error", err)
			}
		}
	})
}
