// Package gfx defines the immediate-mode graphics context the render core draws through. The
// interface follows the GLES 2.0 object model: shaders are compiled and linked into programs, uniforms
// are set one location at a time, vertex data lives in array buffers and draws are indexed.
package gfx

import "errors"

var (
	// ErrCompile is wrapped by every shader compile failure.
	ErrCompile = errors.New("shader compile failed")

	// ErrLink is wrapped by every program link failure.
	ErrLink = errors.New("program link failed")

	// ErrFramebufferIncomplete is returned when an offscreen target fails its completeness check.
	ErrFramebufferIncomplete = errors.New("framebuffer incomplete")
)

// Handle types. The zero value of each means "none".
type (
	Shader      uint32
	Program     uint32
	Buffer      uint32
	Texture     uint32
	Framebuffer uint32
)

// Location is a uniform or attribute location. Negative values mean the name is not active.
type Location int32

// Valid reports whether the location refers to an active uniform or attribute.
func (l Location) Valid() bool {
	return l >= 0
}

// ShaderStage selects the kind of shader to compile.
type ShaderStage int

const (
	StageVertex ShaderStage = iota
	StageFragment
)

func (s ShaderStage) String() string {
	if s == StageFragment {
		return "fragment"
	}
	return "vertex"
}

// Primitive is the topology of an indexed draw.
type Primitive int

const (
	Triangles Primitive = iota
	TriangleStrip
	TriangleFan
	Lines
	LineStrip
	LineLoop
	Points
)

var primitiveNames = [...]string{"triangles", "triangle-strip", "triangle-fan", "lines", "line-strip", "line-loop", "points"}

func (p Primitive) String() string {
	if int(p) < len(primitiveNames) {
		return primitiveNames[p]
	}
	return "unknown"
}

// Capability is a server-side toggle.
type Capability int

const (
	Blend Capability = iota
	DepthTest
	CullFace
)

// BlendFactor is a source or destination blend factor.
type BlendFactor int

const (
	Zero BlendFactor = iota
	One
	SrcColor
	OneMinusSrcColor
	SrcAlpha
	OneMinusSrcAlpha
	DstAlpha
	OneMinusDstAlpha
	DstColor
	OneMinusDstColor
)

// Winding selects which triangle winding is front facing.
type Winding int

const (
	CCW Winding = iota
	CW
)

// ClearMask selects the buffers cleared by Clear.
type ClearMask int

const (
	ColorBuffer ClearMask = 1 << iota
	DepthBuffer
)

// Context is the graphics API consumed by the program cache, the draw-call executor and the pick pass.
// Implementations are not safe for concurrent use; all calls happen on the thread owning the context.
type Context interface {
	// CreateShader compiles source for the given stage.
	//
	// Parameters:
	//   - stage: vertex or fragment
	//   - source: GLSL source text
	//
	// Returns:
	//   - Shader: the compiled shader
	//   - error: wraps ErrCompile and carries the driver's info log
	CreateShader(stage ShaderStage, source string) (Shader, error)

	// DeleteShader frees a compiled shader.
	DeleteShader(s Shader)

	// CreateProgram links a vertex and a fragment shader.
	//
	// Parameters:
	//   - vs: compiled vertex shader
	//   - fs: compiled fragment shader
	//
	// Returns:
	//   - Program: the linked program
	//   - error: wraps ErrLink and carries the driver's info log
	CreateProgram(vs, fs Shader) (Program, error)

	// DeleteProgram frees a linked program.
	DeleteProgram(p Program)

	// UseProgram makes p current for uniform updates and draws.
	UseProgram(p Program)

	// UniformLocation returns the location of a uniform in p, or an invalid location if inactive.
	UniformLocation(p Program, name string) Location

	// AttribLocation returns the location of a vertex attribute in p, or an invalid location if inactive.
	AttribLocation(p Program, name string) Location

	// Uniform setters apply to the current program. Invalid locations are ignored.
	Uniform1i(l Location, v int32)
	Uniform1f(l Location, v float32)
	Uniform3fv(l Location, v []float32)
	Uniform4fv(l Location, v []float32)
	UniformMatrix4fv(l Location, m *[16]float32)

	// CreateArrayBuffer uploads float vertex data.
	CreateArrayBuffer(data []float32) Buffer

	// CreateIndexBuffer uploads 16 bit element indices.
	CreateIndexBuffer(data []uint16) Buffer

	// DeleteBuffer frees an array or index buffer.
	DeleteBuffer(b Buffer)

	// BindAttribute points attribute l at buf with size float components per vertex and enables it.
	BindAttribute(l Location, buf Buffer, size int)

	// DisableAttribute disables the attribute array at index.
	DisableAttribute(index int)

	// DrawElements draws count 16 bit indices from indices.
	DrawElements(mode Primitive, indices Buffer, count int)

	// CreateTexture uploads an RGBA8 image. A nil rgba allocates storage only.
	CreateTexture(width, height int, rgba []byte) Texture

	// DeleteTexture frees a texture.
	DeleteTexture(t Texture)

	// BindTexture binds t to the texture unit.
	BindTexture(unit int, t Texture)

	Enable(c Capability)
	Disable(c Capability)
	BlendFunc(src, dst BlendFactor)
	FrontFace(w Winding)
	ClearColor(rgba [4]float32)
	Clear(mask ClearMask)
	Viewport(x, y, width, height int)

	// CreateFramebuffer creates an offscreen RGBA colour target with a 16 bit depth attachment.
	//
	// Parameters:
	//   - width, height: size of the target in pixels
	//
	// Returns:
	//   - Framebuffer: the complete framebuffer
	//   - error: wraps ErrFramebufferIncomplete if the completeness check fails
	CreateFramebuffer(width, height int) (Framebuffer, error)

	// DeleteFramebuffer frees a framebuffer and its attachments.
	DeleteFramebuffer(f Framebuffer)

	// BindFramebuffer directs draws to f, or to the default framebuffer when f is zero.
	BindFramebuffer(f Framebuffer)

	// ReadPixel reads the RGBA value of one pixel of the bound framebuffer. Origin is bottom-left.
	ReadPixel(x, y int) [4]byte

	// Finish blocks until all submitted commands complete.
	Finish()
}
