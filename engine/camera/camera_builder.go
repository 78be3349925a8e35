package camera

import "github.com/Carmen-Shannon/oxy-scene/common"

type CameraBuilderOption func(*cameraImpl)

// WithLookAt places the camera.
//
// Parameters:
//   - eye: camera position
//   - look: the point looked at
//   - up: up direction
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's look-at vectors
func WithLookAt(eye, look, up common.Vec3) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.eye, c.look, c.up = eye, look, up
	}
}

// WithFov sets the camera's field of view in radians.
//
// Parameters:
//   - fov: field of view in radians
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's field of view
func WithFov(fov float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.fov = fov
	}
}

// WithAspect sets the camera's aspect ratio (width / height).
func WithAspect(aspect float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		if aspect > 0 {
			c.aspect = aspect
		}
	}
}

// WithClip sets the near and far clip planes.
func WithClip(near, far float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.near, c.far = near, far
	}
}
