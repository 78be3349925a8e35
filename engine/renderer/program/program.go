// Package program caches linked render and pick program pairs by fingerprint. A program lives while at
// least one draw-call record references it and is destroyed when the last reference is released.
package program

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/gfx"
)

// ErrCompile is matched by every shader compile or link failure reported by the cache.
var ErrCompile = errors.New("program compilation failed")

// Fingerprint identifies the feature combination that decides shader source. Fields are compared as a
// tuple, so no separator can make two different combinations collide.
type Fingerprint struct {
	CanvasID   string
	Renderer   string
	Fog        string
	Lights     string
	Texture    string
	Clips      string
	Morph      string
	Geometry   string
	Colortrans string
	Shader     string
}

// String joins the fields in order, for logs.
func (f Fingerprint) String() string {
	return strings.Join([]string{
		f.CanvasID, f.Renderer, f.Fog, f.Lights, f.Texture, f.Clips, f.Morph, f.Geometry, f.Colortrans, f.Shader,
	}, ";")
}

// Pass is one linked program of a pair with lazily resolved uniform and attribute locations.
type Pass struct {
	ctx      gfx.Context
	handle   gfx.Program
	uniforms map[string]gfx.Location
	attribs  map[string]gfx.Location
}

func newPass(ctx gfx.Context, handle gfx.Program) *Pass {
	return &Pass{
		ctx:      ctx,
		handle:   handle,
		uniforms: make(map[string]gfx.Location),
		attribs:  make(map[string]gfx.Location),
	}
}

// Handle returns the linked program.
func (p *Pass) Handle() gfx.Program {
	return p.handle
}

// Uniform returns the location of a uniform, caching the lookup.
func (p *Pass) Uniform(name string) gfx.Location {
	if l, ok := p.uniforms[name]; ok {
		return l
	}
	l := p.ctx.UniformLocation(p.handle, name)
	p.uniforms[name] = l
	return l
}

// Attrib returns the location of a vertex attribute, caching the lookup.
func (p *Pass) Attrib(name string) gfx.Location {
	if l, ok := p.attribs[name]; ok {
		return l
	}
	l := p.ctx.AttribLocation(p.handle, name)
	p.attribs[name] = l
	return l
}

// Program is a cached render and pick pair.
type Program struct {
	id          int
	fingerprint Fingerprint
	refCount    int
	render      *Pass
	pick        *Pass
	destroyed   bool
}

// ID returns the program's sequence number. Ids are never reused within a cache's lifetime.
func (p *Program) ID() int {
	return p.id
}

// Fingerprint returns the key the program was cached under.
func (p *Program) Fingerprint() Fingerprint {
	return p.fingerprint
}

// RefCount returns the number of references held on the program.
func (p *Program) RefCount() int {
	return p.refCount
}

// Render returns the render pass program.
func (p *Program) Render() *Pass {
	return p.render
}

// Pick returns the pick pass program.
func (p *Program) Pick() *Pass {
	return p.pick
}

// Destroyed reports whether the GL programs have been deleted.
func (p *Program) Destroyed() bool {
	return p.destroyed
}

// CompileError reports a failed compile or link together with the sources that caused it.
type CompileError struct {
	Fingerprint    Fingerprint
	Pass           string
	VertexSource   string
	FragmentSource string
	Err            error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s program [%s]: %v", e.Pass, e.Fingerprint, e.Err)
}

func (e *CompileError) Unwrap() []error {
	return []error{ErrCompile, e.Err}
}
