package program

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Carmen-Shannon/oxy-scene/engine/logger"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/gfx"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/shader"
)

type cache struct {
	mu          *sync.Mutex
	ctx         gfx.Context
	composer    shader.Composer
	ownComposer bool
	sourceSize  int
	workers     int
	sources     *lru.Cache[Fingerprint, shader.Sources]
	programs    map[Fingerprint]*Program
	nextID      int
}

// Cache is the program cache shared by every scene drawing to one graphics context.
type Cache interface {
	// Acquire returns the program for fp with its reference count incremented. On a miss the sources
	// are composed from in (or taken from the source memo), both pairs are compiled and linked, and
	// the new program starts with one reference and the next sequence id.
	//
	// Parameters:
	//   - fp: the fingerprint of the active states
	//   - in: the active inputs, used only on a miss
	//
	// Returns:
	//   - *Program: the cached program
	//   - error: a *CompileError matching ErrCompile if compilation fails; nothing is cached then
	Acquire(fp Fingerprint, in shader.Inputs) (*Program, error)

	// Release drops one reference. At zero both GL programs are deleted and the entry is removed, so a
	// later Acquire of the same fingerprint compiles a new program.
	Release(p *Program)

	// Lookup returns the live program for fp without taking a reference.
	Lookup(fp Fingerprint) (*Program, bool)

	// Len returns the number of live programs.
	Len() int

	// Reset deletes every program regardless of references. Callers must first release the references
	// held by every scene, and must not call Reset while a frame is executing.
	Reset()

	// Close resets the cache and stops a composer the cache created itself.
	Close()
}

var _ Cache = &cache{}

// NewCache creates a cache compiling through ctx.
//
// Parameters:
//   - ctx: the graphics context programs are compiled on
//   - options: builder options
//
// Returns:
//   - Cache: the program cache
func NewCache(ctx gfx.Context, options ...CacheBuilderOption) Cache {
	if ctx == nil {
		panic("program: nil graphics context")
	}
	c := &cache{
		mu:         &sync.Mutex{},
		ctx:        ctx,
		sourceSize: 64,
		workers:    4,
		programs:   make(map[Fingerprint]*Program),
	}
	for _, opt := range options {
		opt(c)
	}
	if c.composer == nil {
		c.composer = shader.NewComposer(shader.WithWorkers(max(c.workers, 1)))
		c.ownComposer = true
	}
	sources, err := lru.New[Fingerprint, shader.Sources](c.sourceSize)
	if err != nil {
		panic(fmt.Sprintf("program: source memo: %v", err))
	}
	c.sources = sources
	return c
}

func (c *cache) Acquire(fp Fingerprint, in shader.Inputs) (*Program, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.programs[fp]; ok {
		p.refCount++
		return p, nil
	}

	src, ok := c.sources.Get(fp)
	if !ok {
		var err error
		src, err = c.composer.Compose(in)
		if err != nil {
			return nil, &CompileError{Fingerprint: fp, Pass: "compose", Err: err}
		}
		c.sources.Add(fp, src)
	}

	render, err := c.link(fp, "render", src.RenderVertex, src.RenderFragment)
	if err != nil {
		return nil, err
	}
	pick, err := c.link(fp, "pick", src.PickVertex, src.PickFragment)
	if err != nil {
		c.ctx.DeleteProgram(render)
		return nil, err
	}

	p := &Program{
		id:          c.nextID,
		fingerprint: fp,
		refCount:    1,
		render:      newPass(c.ctx, render),
		pick:        newPass(c.ctx, pick),
	}
	c.nextID++
	c.programs[fp] = p
	logger.L().Debug("program created", "id", p.id, "fingerprint", fp.String())
	return p, nil
}

// link compiles and links one pass. On failure both sources are logged before the error is returned.
func (c *cache) link(fp Fingerprint, pass, vsSrc, fsSrc string) (gfx.Program, error) {
	fail := func(err error) (gfx.Program, error) {
		logger.L().Error("shader program failed",
			"pass", pass,
			"fingerprint", fp.String(),
			"error", err,
			"vertex_source", vsSrc,
			"fragment_source", fsSrc,
		)
		return 0, &CompileError{Fingerprint: fp, Pass: pass, VertexSource: vsSrc, FragmentSource: fsSrc, Err: err}
	}

	vs, err := c.ctx.CreateShader(gfx.StageVertex, vsSrc)
	if err != nil {
		return fail(err)
	}
	defer c.ctx.DeleteShader(vs)

	fs, err := c.ctx.CreateShader(gfx.StageFragment, fsSrc)
	if err != nil {
		return fail(err)
	}
	defer c.ctx.DeleteShader(fs)

	p, err := c.ctx.CreateProgram(vs, fs)
	if err != nil {
		return fail(err)
	}
	return p, nil
}

func (c *cache) Release(p *Program) {
	if p == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if p.refCount > 0 {
		p.refCount--
	}
	if p.refCount > 0 || p.destroyed {
		return
	}
	c.destroy(p)
	if cur, ok := c.programs[p.fingerprint]; ok && cur == p {
		delete(c.programs, p.fingerprint)
	}
}

func (c *cache) destroy(p *Program) {
	c.ctx.DeleteProgram(p.render.handle)
	c.ctx.DeleteProgram(p.pick.handle)
	p.destroyed = true
	logger.L().Debug("program destroyed", "id", p.id, "fingerprint", p.fingerprint.String())
}

func (c *cache) Lookup(fp Fingerprint) (*Program, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.programs[fp]
	return p, ok
}

func (c *cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.programs)
}

func (c *cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for fp, p := range c.programs {
		if p.refCount > 0 {
			logger.L().Warn("program destroyed with live references", "id", p.id, "refs", p.refCount)
		}
		p.refCount = 0
		c.destroy(p)
		delete(c.programs, fp)
	}
}

func (c *cache) Close() {
	c.Reset()
	if c.ownComposer {
		c.composer.Close()
	}
}
