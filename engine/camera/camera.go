// Package camera keeps a look-at camera and pushes its view and projection transforms to a renderer.
package camera

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/state"
)

// TransformSetter receives the camera's transforms. renderer.Renderer and scene.Scene both satisfy it.
type TransformSetter interface {
	SetViewTransform(id string, m common.Mat4, lookAt *state.LookAt)
	SetProjectionTransform(id string, m common.Mat4)
}

type cameraImpl struct {
	mu *sync.Mutex

	eye  common.Vec3
	look common.Vec3
	up   common.Vec3

	fov    float32
	aspect float32
	near   float32
	far    float32

	viewMatrix       common.Mat4
	projectionMatrix common.Mat4
	dirty            bool
}

// Camera is a perspective look-at camera.
type Camera interface {
	// LookAt returns the eye, target and up vectors.
	LookAt() state.LookAt

	Fov() float32
	Aspect() float32
	Near() float32
	Far() float32

	// ViewMatrix returns the world to eye transform.
	ViewMatrix() common.Mat4

	// ProjectionMatrix returns the eye to clip transform.
	ProjectionMatrix() common.Mat4

	// SetLookAt moves the camera.
	//
	// Parameters:
	//   - eye: camera position
	//   - look: the point looked at
	//   - up: up direction
	SetLookAt(eye, look, up common.Vec3)

	SetFov(fov float32)

	// SetAspect sets width / height. Non-positive values are ignored.
	SetAspect(aspect float32)

	SetClip(near, far float32)

	// Apply sets the view transform under id+"-view" and the projection under id+"-proj".
	//
	// Parameters:
	//   - r: the renderer or scene to push to
	//   - id: the base state id
	Apply(r TransformSetter, id string)
}

var _ Camera = &cameraImpl{}

// NewCamera creates a camera at (0,0,10) looking at the origin with a 45 degree field of view.
//
// Parameters:
//   - options: functional options applied after the defaults
//
// Returns:
//   - Camera: the new camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:     &sync.Mutex{},
		eye:    common.Vec3{0, 0, 10},
		up:     common.Vec3{0, 1, 0},
		fov:    45.0 * (math.Pi / 180.0), // radians
		aspect: 1.0,
		near:   0.1,
		far:    100.0,
		dirty:  true,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *cameraImpl) LookAt() state.LookAt {
	c.mu.Lock()
	defer c.mu.Unlock()
	return state.LookAt{Eye: c.eye, Look: c.look, Up: c.up}
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) ViewMatrix() common.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateMatrices()
	return c.viewMatrix
}

func (c *cameraImpl) ProjectionMatrix() common.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateMatrices()
	return c.projectionMatrix
}

func (c *cameraImpl) SetLookAt(eye, look, up common.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eye, c.look, c.up = eye, look, up
	c.dirty = true
}

func (c *cameraImpl) SetFov(fov float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov = fov
	c.dirty = true
}

func (c *cameraImpl) SetAspect(aspect float32) {
	if aspect <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = aspect
	c.dirty = true
}

func (c *cameraImpl) SetClip(near, far float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.near, c.far = near, far
	c.dirty = true
}

func (c *cameraImpl) Apply(r TransformSetter, id string) {
	c.mu.Lock()
	c.updateMatrices()
	view, proj := c.viewMatrix, c.projectionMatrix
	lookAt := &state.LookAt{Eye: c.eye, Look: c.look, Up: c.up}
	c.mu.Unlock()

	r.SetViewTransform(id+"-view", view, lookAt)
	r.SetProjectionTransform(id+"-proj", proj)
}

// updateMatrices recomputes the view and projection matrices. Must hold mu.
func (c *cameraImpl) updateMatrices() {
	if !c.dirty {
		return
	}
	c.viewMatrix = common.LookAt(c.eye, c.look, c.up)
	c.projectionMatrix = common.Perspective(c.fov, c.aspect, c.near, c.far)
	c.dirty = false
}
