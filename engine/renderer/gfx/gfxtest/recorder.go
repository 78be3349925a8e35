// Package gfxtest provides a recording gfx.Context for tests. It compiles nothing, but it keeps enough
// state to check draw order, blending, uniforms and program lifetimes. A rectangle rasteriser fills
// offscreen targets with the current uPickColor so pick passes can be exercised end to end.
package gfxtest

import (
	"fmt"
	"math"
	"strings"

	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/gfx"
)

// Draw is one recorded DrawElements call.
type Draw struct {
	Program     gfx.Program
	Indices     gfx.Buffer
	Count       int
	Mode        gfx.Primitive
	Blending    bool
	Framebuffer gfx.Framebuffer
}

// Rect is a half-open pixel rectangle [X0, X1) x [Y0, Y1) with a bottom-left origin.
type Rect struct {
	X0, Y0, X1, Y1 int
}

type shader struct {
	stage  gfx.ShaderStage
	source string
}

type program struct {
	vs, fs    gfx.Shader
	source    string
	locations map[string]gfx.Location
	names     map[gfx.Location]string
	values    map[string][]float32
}

type target struct {
	width, height int
	pixels        map[[2]int][4]byte
}

// Recorder implements gfx.Context in memory.
type Recorder struct {
	// FailCompile, when set, is called for every shader. A non-empty result fails the compile with
	// that info log.
	FailCompile func(stage gfx.ShaderStage, source string) string

	// IncompleteFramebuffers makes CreateFramebuffer fail its completeness check.
	IncompleteFramebuffers bool

	// Draws lists every draw in submission order.
	Draws []Draw

	nextID       uint32
	shaders      map[gfx.Shader]shader
	programs     map[gfx.Program]*program
	deleted      []gfx.Program
	current      gfx.Program
	enabled      map[gfx.Capability]bool
	blendSrc     gfx.BlendFactor
	blendDst     gfx.BlendFactor
	front        gfx.Winding
	buffers      map[gfx.Buffer]bool
	textures     map[gfx.Texture]bool
	targets      map[gfx.Framebuffer]*target
	bound        gfx.Framebuffer
	coverage     map[gfx.Buffer]Rect
	attribs      map[int]gfx.Buffer
	boundTexture map[int]gfx.Texture
	viewport     [4]int
}

var _ gfx.Context = &Recorder{}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		shaders:      make(map[gfx.Shader]shader),
		programs:     make(map[gfx.Program]*program),
		enabled:      make(map[gfx.Capability]bool),
		buffers:      make(map[gfx.Buffer]bool),
		textures:     make(map[gfx.Texture]bool),
		targets:      make(map[gfx.Framebuffer]*target),
		coverage:     make(map[gfx.Buffer]Rect),
		attribs:      make(map[int]gfx.Buffer),
		boundTexture: make(map[int]gfx.Texture),
	}
}

func (r *Recorder) id() uint32 {
	r.nextID++
	return r.nextID
}

// Cover makes every later draw of indices fill rect in the bound offscreen target.
func (r *Recorder) Cover(indices gfx.Buffer, rect Rect) {
	r.coverage[indices] = rect
}

// LivePrograms returns the number of linked programs not yet deleted.
func (r *Recorder) LivePrograms() int {
	return len(r.programs)
}

// DeletedPrograms returns the programs deleted so far, in order.
func (r *Recorder) DeletedPrograms() []gfx.Program {
	return r.deleted
}

// LiveFramebuffers returns the number of framebuffers not yet deleted.
func (r *Recorder) LiveFramebuffers() int {
	return len(r.targets)
}

// Source returns the concatenated vertex and fragment source of a live program.
func (r *Recorder) Source(p gfx.Program) string {
	if prog, ok := r.programs[p]; ok {
		return prog.source
	}
	return ""
}

// Uniform returns the last value set for a uniform of p.
func (r *Recorder) Uniform(p gfx.Program, name string) ([]float32, bool) {
	prog, ok := r.programs[p]
	if !ok {
		return nil, false
	}
	v, ok := prog.values[name]
	return v, ok
}

// Enabled reports whether a capability is currently enabled.
func (r *Recorder) Enabled(c gfx.Capability) bool {
	return r.enabled[c]
}

// Blend returns the current blend factors.
func (r *Recorder) Blend() (gfx.BlendFactor, gfx.BlendFactor) {
	return r.blendSrc, r.blendDst
}

// FrontFaceWinding returns the current front face winding.
func (r *Recorder) FrontFaceWinding() gfx.Winding {
	return r.front
}

// BoundFramebuffer returns the framebuffer draws currently go to.
func (r *Recorder) BoundFramebuffer() gfx.Framebuffer {
	return r.bound
}

// BoundTexture returns the texture bound to a unit.
func (r *Recorder) BoundTexture(unit int) gfx.Texture {
	return r.boundTexture[unit]
}

// Attribute returns the buffer bound to an attribute index, zero if disabled.
func (r *Recorder) Attribute(index int) gfx.Buffer {
	return r.attribs[index]
}

// ViewportRect returns the last viewport.
func (r *Recorder) ViewportRect() [4]int {
	return r.viewport
}

// Reset forgets recorded draws.
func (r *Recorder) Reset() {
	r.Draws = nil
}

func (r *Recorder) CreateShader(stage gfx.ShaderStage, source string) (gfx.Shader, error) {
	if r.FailCompile != nil {
		if info := r.FailCompile(stage, source); info != "" {
			return 0, fmt.Errorf("%w (%s): %s", gfx.ErrCompile, stage, info)
		}
	}
	s := gfx.Shader(r.id())
	r.shaders[s] = shader{stage: stage, source: source}
	return s, nil
}

func (r *Recorder) DeleteShader(s gfx.Shader) {
	delete(r.shaders, s)
}

func (r *Recorder) CreateProgram(vs, fs gfx.Shader) (gfx.Program, error) {
	v, okv := r.shaders[vs]
	f, okf := r.shaders[fs]
	if !okv || !okf || v.stage != gfx.StageVertex || f.stage != gfx.StageFragment {
		return 0, fmt.Errorf("%w: invalid shader pair %d/%d", gfx.ErrLink, vs, fs)
	}
	p := gfx.Program(r.id())
	r.programs[p] = &program{
		vs:        vs,
		fs:        fs,
		source:    v.source + "\n" + f.source,
		locations: make(map[string]gfx.Location),
		names:     make(map[gfx.Location]string),
		values:    make(map[string][]float32),
	}
	return p, nil
}

func (r *Recorder) DeleteProgram(p gfx.Program) {
	if _, ok := r.programs[p]; ok {
		delete(r.programs, p)
		r.deleted = append(r.deleted, p)
	}
	if r.current == p {
		r.current = 0
	}
}

func (r *Recorder) UseProgram(p gfx.Program) {
	r.current = p
}

func (r *Recorder) location(p gfx.Program, name string) gfx.Location {
	prog, ok := r.programs[p]
	if !ok || !strings.Contains(prog.source, name) {
		return -1
	}
	if l, ok := prog.locations[name]; ok {
		return l
	}
	l := gfx.Location(len(prog.locations))
	prog.locations[name] = l
	prog.names[l] = name
	return l
}

func (r *Recorder) UniformLocation(p gfx.Program, name string) gfx.Location {
	return r.location(p, name)
}

func (r *Recorder) AttribLocation(p gfx.Program, name string) gfx.Location {
	return r.location(p, name)
}

func (r *Recorder) set(l gfx.Location, v []float32) {
	prog, ok := r.programs[r.current]
	if !ok || !l.Valid() {
		return
	}
	if name, ok := prog.names[l]; ok {
		prog.values[name] = append([]float32(nil), v...)
	}
}

func (r *Recorder) Uniform1i(l gfx.Location, v int32) {
	r.set(l, []float32{float32(v)})
}

func (r *Recorder) Uniform1f(l gfx.Location, v float32) {
	r.set(l, []float32{v})
}

func (r *Recorder) Uniform3fv(l gfx.Location, v []float32) {
	r.set(l, v[:3])
}

func (r *Recorder) Uniform4fv(l gfx.Location, v []float32) {
	r.set(l, v[:4])
}

func (r *Recorder) UniformMatrix4fv(l gfx.Location, m *[16]float32) {
	r.set(l, m[:])
}

func (r *Recorder) CreateArrayBuffer([]float32) gfx.Buffer {
	b := gfx.Buffer(r.id())
	r.buffers[b] = true
	return b
}

func (r *Recorder) CreateIndexBuffer([]uint16) gfx.Buffer {
	b := gfx.Buffer(r.id())
	r.buffers[b] = true
	return b
}

func (r *Recorder) DeleteBuffer(b gfx.Buffer) {
	delete(r.buffers, b)
}

func (r *Recorder) BindAttribute(l gfx.Location, buf gfx.Buffer, _ int) {
	if l.Valid() && buf != 0 {
		r.attribs[int(l)] = buf
	}
}

func (r *Recorder) DisableAttribute(index int) {
	delete(r.attribs, index)
}

func (r *Recorder) DrawElements(mode gfx.Primitive, indices gfx.Buffer, count int) {
	r.Draws = append(r.Draws, Draw{
		Program:     r.current,
		Indices:     indices,
		Count:       count,
		Mode:        mode,
		Blending:    r.enabled[gfx.Blend],
		Framebuffer: r.bound,
	})
	r.rasterise(indices)
}

func (r *Recorder) rasterise(indices gfx.Buffer) {
	t, ok := r.targets[r.bound]
	if !ok {
		return
	}
	rect, ok := r.coverage[indices]
	if !ok {
		return
	}
	color, ok := r.Uniform(r.current, "uPickColor")
	if !ok || len(color) < 3 {
		return
	}
	px := [4]byte{toByte(color[0]), toByte(color[1]), toByte(color[2]), 255}
	for y := max(rect.Y0, 0); y < min(rect.Y1, t.height); y++ {
		for x := max(rect.X0, 0); x < min(rect.X1, t.width); x++ {
			t.pixels[[2]int{x, y}] = px
		}
	}
}

func toByte(v float32) byte {
	return byte(math.Round(float64(min(max(v, 0), 1) * 255)))
}

func (r *Recorder) CreateTexture(int, int, []byte) gfx.Texture {
	t := gfx.Texture(r.id())
	r.textures[t] = true
	return t
}

func (r *Recorder) DeleteTexture(t gfx.Texture) {
	delete(r.textures, t)
}

func (r *Recorder) BindTexture(unit int, t gfx.Texture) {
	r.boundTexture[unit] = t
}

func (r *Recorder) Enable(c gfx.Capability)  { r.enabled[c] = true }
func (r *Recorder) Disable(c gfx.Capability) { r.enabled[c] = false }

func (r *Recorder) BlendFunc(src, dst gfx.BlendFactor) {
	r.blendSrc, r.blendDst = src, dst
}

func (r *Recorder) FrontFace(w gfx.Winding) {
	r.front = w
}

func (r *Recorder) ClearColor([4]float32) {}

func (r *Recorder) Clear(mask gfx.ClearMask) {
	if t, ok := r.targets[r.bound]; ok && mask&gfx.ColorBuffer != 0 {
		clear(t.pixels)
	}
}

func (r *Recorder) Viewport(x, y, width, height int) {
	r.viewport = [4]int{x, y, width, height}
}

func (r *Recorder) CreateFramebuffer(width, height int) (gfx.Framebuffer, error) {
	if r.IncompleteFramebuffers {
		return 0, fmt.Errorf("%w: status 0x8cd6", gfx.ErrFramebufferIncomplete)
	}
	f := gfx.Framebuffer(r.id())
	r.targets[f] = &target{width: width, height: height, pixels: make(map[[2]int][4]byte)}
	return f, nil
}

// FramebufferSize returns the size of a live framebuffer.
func (r *Recorder) FramebufferSize(f gfx.Framebuffer) (int, int, bool) {
	t, ok := r.targets[f]
	if !ok {
		return 0, 0, false
	}
	return t.width, t.height, true
}

func (r *Recorder) DeleteFramebuffer(f gfx.Framebuffer) {
	delete(r.targets, f)
	if r.bound == f {
		r.bound = 0
	}
}

func (r *Recorder) BindFramebuffer(f gfx.Framebuffer) {
	r.bound = f
}

func (r *Recorder) ReadPixel(x, y int) [4]byte {
	if t, ok := r.targets[r.bound]; ok {
		return t.pixels[[2]int{x, y}]
	}
	return [4]byte{}
}

func (r *Recorder) Finish() {}
