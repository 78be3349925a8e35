package gfx

import (
	"fmt"
	"strings"

	"github.com/go-gl/gl/v2.1/gl"

	"github.com/Carmen-Shannon/oxy-scene/engine/logger"
)

// glTarget holds the attachments owned by a framebuffer created through CreateFramebuffer.
type glTarget struct {
	color uint32
	depth uint32
}

type glContext struct {
	targets map[Framebuffer]glTarget
}

var _ Context = &glContext{}

func newGLContext() (*glContext, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("init gl: %w", err)
	}
	logger.L().Info("gl context ready",
		"version", gl.GoStr(gl.GetString(gl.VERSION)),
		"glsl", gl.GoStr(gl.GetString(gl.SHADING_LANGUAGE_VERSION)),
		"renderer", gl.GoStr(gl.GetString(gl.RENDERER)),
	)
	return &glContext{targets: make(map[Framebuffer]glTarget)}, nil
}

func (c *glContext) CreateShader(stage ShaderStage, source string) (Shader, error) {
	kind := uint32(gl.VERTEX_SHADER)
	if stage == StageFragment {
		kind = gl.FRAGMENT_SHADER
	}
	s := gl.CreateShader(kind)

	csrc, free := gl.Strs(source + "\x00")
	gl.ShaderSource(s, 1, csrc, nil)
	free()
	gl.CompileShader(s)

	var status int32
	gl.GetShaderiv(s, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var n int32
		gl.GetShaderiv(s, gl.INFO_LOG_LENGTH, &n)
		info := strings.Repeat("\x00", int(n+1))
		gl.GetShaderInfoLog(s, n, nil, gl.Str(info))
		gl.DeleteShader(s)
		return 0, fmt.Errorf("%w (%s): %s", ErrCompile, stage, strings.TrimRight(info, "\x00"))
	}
	return Shader(s), nil
}

func (c *glContext) DeleteShader(s Shader) {
	gl.DeleteShader(uint32(s))
}

func (c *glContext) CreateProgram(vs, fs Shader) (Program, error) {
	p := gl.CreateProgram()
	gl.AttachShader(p, uint32(vs))
	gl.AttachShader(p, uint32(fs))
	gl.LinkProgram(p)

	var status int32
	gl.GetProgramiv(p, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var n int32
		gl.GetProgramiv(p, gl.INFO_LOG_LENGTH, &n)
		info := strings.Repeat("\x00", int(n+1))
		gl.GetProgramInfoLog(p, n, nil, gl.Str(info))
		gl.DeleteProgram(p)
		return 0, fmt.Errorf("%w: %s", ErrLink, strings.TrimRight(info, "\x00"))
	}
	return Program(p), nil
}

func (c *glContext) DeleteProgram(p Program) {
	gl.DeleteProgram(uint32(p))
}

func (c *glContext) UseProgram(p Program) {
	gl.UseProgram(uint32(p))
}

func (c *glContext) UniformLocation(p Program, name string) Location {
	return Location(gl.GetUniformLocation(uint32(p), gl.Str(name+"\x00")))
}

func (c *glContext) AttribLocation(p Program, name string) Location {
	return Location(gl.GetAttribLocation(uint32(p), gl.Str(name+"\x00")))
}

func (c *glContext) Uniform1i(l Location, v int32) {
	if l.Valid() {
		gl.Uniform1i(int32(l), v)
	}
}

func (c *glContext) Uniform1f(l Location, v float32) {
	if l.Valid() {
		gl.Uniform1f(int32(l), v)
	}
}

func (c *glContext) Uniform3fv(l Location, v []float32) {
	if l.Valid() && len(v) >= 3 {
		gl.Uniform3fv(int32(l), 1, &v[0])
	}
}

func (c *glContext) Uniform4fv(l Location, v []float32) {
	if l.Valid() && len(v) >= 4 {
		gl.Uniform4fv(int32(l), 1, &v[0])
	}
}

func (c *glContext) UniformMatrix4fv(l Location, m *[16]float32) {
	if l.Valid() {
		gl.UniformMatrix4fv(int32(l), 1, false, &m[0])
	}
}

func (c *glContext) CreateArrayBuffer(data []float32) Buffer {
	var b uint32
	gl.GenBuffers(1, &b)
	gl.BindBuffer(gl.ARRAY_BUFFER, b)
	if len(data) > 0 {
		gl.BufferData(gl.ARRAY_BUFFER, len(data)*4, gl.Ptr(data), gl.STATIC_DRAW)
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	return Buffer(b)
}

func (c *glContext) CreateIndexBuffer(data []uint16) Buffer {
	var b uint32
	gl.GenBuffers(1, &b)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, b)
	if len(data) > 0 {
		gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(data)*2, gl.Ptr(data), gl.STATIC_DRAW)
	}
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, 0)
	return Buffer(b)
}

func (c *glContext) DeleteBuffer(b Buffer) {
	id := uint32(b)
	gl.DeleteBuffers(1, &id)
}

func (c *glContext) BindAttribute(l Location, buf Buffer, size int) {
	if !l.Valid() || buf == 0 {
		return
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, uint32(buf))
	gl.EnableVertexAttribArray(uint32(l))
	gl.VertexAttribPointerWithOffset(uint32(l), int32(size), gl.FLOAT, false, 0, 0)
}

func (c *glContext) DisableAttribute(index int) {
	gl.DisableVertexAttribArray(uint32(index))
}

func (c *glContext) DrawElements(mode Primitive, indices Buffer, count int) {
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, uint32(indices))
	gl.DrawElementsWithOffset(glPrimitive(mode), int32(count), gl.UNSIGNED_SHORT, 0)
}

func (c *glContext) CreateTexture(width, height int, rgba []byte) Texture {
	var t uint32
	gl.GenTextures(1, &t)
	gl.BindTexture(gl.TEXTURE_2D, t)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)

	var pixels any
	if len(rgba) > 0 {
		pixels = rgba
	}
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA, int32(width), int32(height), 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pixels))
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return Texture(t)
}

func (c *glContext) DeleteTexture(t Texture) {
	id := uint32(t)
	gl.DeleteTextures(1, &id)
}

func (c *glContext) BindTexture(unit int, t Texture) {
	gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
	gl.BindTexture(gl.TEXTURE_2D, uint32(t))
}

func (c *glContext) Enable(cp Capability) {
	gl.Enable(glCapability(cp))
}

func (c *glContext) Disable(cp Capability) {
	gl.Disable(glCapability(cp))
}

func (c *glContext) BlendFunc(src, dst BlendFactor) {
	gl.BlendFunc(glBlendFactor(src), glBlendFactor(dst))
}

func (c *glContext) FrontFace(w Winding) {
	if w == CW {
		gl.FrontFace(gl.CW)
		return
	}
	gl.FrontFace(gl.CCW)
}

func (c *glContext) ClearColor(rgba [4]float32) {
	gl.ClearColor(rgba[0], rgba[1], rgba[2], rgba[3])
}

func (c *glContext) Clear(mask ClearMask) {
	var bits uint32
	if mask&ColorBuffer != 0 {
		bits |= gl.COLOR_BUFFER_BIT
	}
	if mask&DepthBuffer != 0 {
		bits |= gl.DEPTH_BUFFER_BIT
	}
	gl.Clear(bits)
}

func (c *glContext) Viewport(x, y, width, height int) {
	gl.Viewport(int32(x), int32(y), int32(width), int32(height))
}

func (c *glContext) CreateFramebuffer(width, height int) (Framebuffer, error) {
	var fb uint32
	gl.GenFramebuffers(1, &fb)
	gl.BindFramebuffer(gl.FRAMEBUFFER, fb)

	color := uint32(c.CreateTexture(width, height, nil))

	var depth uint32
	gl.GenRenderbuffers(1, &depth)
	gl.BindRenderbuffer(gl.RENDERBUFFER, depth)
	gl.RenderbufferStorage(gl.RENDERBUFFER, gl.DEPTH_COMPONENT16, int32(width), int32(height))

	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, color, 0)
	gl.FramebufferRenderbuffer(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, gl.RENDERBUFFER, depth)

	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	gl.BindRenderbuffer(gl.RENDERBUFFER, 0)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)

	c.targets[Framebuffer(fb)] = glTarget{color: color, depth: depth}
	if status != gl.FRAMEBUFFER_COMPLETE {
		c.DeleteFramebuffer(Framebuffer(fb))
		return 0, fmt.Errorf("%w: status 0x%x", ErrFramebufferIncomplete, status)
	}
	return Framebuffer(fb), nil
}

func (c *glContext) DeleteFramebuffer(f Framebuffer) {
	if t, ok := c.targets[f]; ok {
		gl.DeleteTextures(1, &t.color)
		gl.DeleteRenderbuffers(1, &t.depth)
		delete(c.targets, f)
	}
	id := uint32(f)
	gl.DeleteFramebuffers(1, &id)
}

func (c *glContext) BindFramebuffer(f Framebuffer) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, uint32(f))
}

func (c *glContext) ReadPixel(x, y int) [4]byte {
	var px [4]byte
	gl.ReadPixels(int32(x), int32(y), 1, 1, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(&px[0]))
	return px
}

func (c *glContext) Finish() {
	gl.Finish()
}

func glPrimitive(p Primitive) uint32 {
	switch p {
	case TriangleStrip:
		return gl.TRIANGLE_STRIP
	case TriangleFan:
		return gl.TRIANGLE_FAN
	case Lines:
		return gl.LINES
	case LineStrip:
		return gl.LINE_STRIP
	case LineLoop:
		return gl.LINE_LOOP
	case Points:
		return gl.POINTS
	default:
		return gl.TRIANGLES
	}
}

func glCapability(c Capability) uint32 {
	switch c {
	case DepthTest:
		return gl.DEPTH_TEST
	case CullFace:
		return gl.CULL_FACE
	default:
		return gl.BLEND
	}
}

func glBlendFactor(f BlendFactor) uint32 {
	switch f {
	case Zero:
		return gl.ZERO
	case SrcColor:
		return gl.SRC_COLOR
	case OneMinusSrcColor:
		return gl.ONE_MINUS_SRC_COLOR
	case SrcAlpha:
		return gl.SRC_ALPHA
	case OneMinusSrcAlpha:
		return gl.ONE_MINUS_SRC_ALPHA
	case DstAlpha:
		return gl.DST_ALPHA
	case OneMinusDstAlpha:
		return gl.ONE_MINUS_DST_ALPHA
	case DstColor:
		return gl.DST_COLOR
	case OneMinusDstColor:
		return gl.ONE_MINUS_DST_COLOR
	default:
		return gl.ONE
	}
}
