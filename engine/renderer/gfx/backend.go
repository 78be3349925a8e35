package gfx

import "fmt"

// BackendType identifies the graphics API implementation behind a Context.
type BackendType int

const (
	// BackendGL21 selects the desktop OpenGL 2.1 backend, which accepts the GLSL ES 1.0 subset the
	// shader composer emits.
	BackendGL21 BackendType = iota
)

func (b BackendType) String() string {
	if b == BackendGL21 {
		return "gl2.1"
	}
	return fmt.Sprintf("backend(%d)", int(b))
}

// New creates a Context for the given backend. The window's graphics context must already be current
// on the calling thread.
//
// Parameters:
//   - backend: the backend implementation to create
//
// Returns:
//   - Context: the graphics context
//   - error: if the backend is unknown or fails to initialise
func New(backend BackendType) (Context, error) {
	switch backend {
	case BackendGL21:
		return newGLContext()
	default:
		return nil, fmt.Errorf("unknown graphics backend %d", backend)
	}
}
