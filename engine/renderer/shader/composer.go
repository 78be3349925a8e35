package shader

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"

	"github.com/Carmen-Shannon/oxy-scene/engine/logger"
)

type composer struct {
	pool       worker.DynamicWorkerPool
	workers    int
	logSources bool
	nextTask   int
	mu         *sync.Mutex
}

// Composer produces the four sources of a program pair.
type Composer interface {
	// Compose builds every source for in. The four compositions run concurrently on the composer's
	// worker pool and Compose returns once all have finished.
	//
	// Parameters:
	//   - in: the active inputs
	//
	// Returns:
	//   - Sources: the composed sources
	//   - error: the joined errors of every composition that failed
	Compose(in Inputs) (Sources, error)

	// Close stops the worker pool. The composer must not be used afterwards.
	Close()
}

var _ Composer = &composer{}

// NewComposer creates a Composer backed by a dynamic worker pool.
func NewComposer(options ...ComposerBuilderOption) Composer {
	c := &composer{
		workers: 4,
		mu:      &sync.Mutex{},
	}
	for _, opt := range options {
		opt(c)
	}
	c.pool = worker.NewDynamicWorkerPool(c.workers, 16, 1*time.Second)
	return c
}

func (c *composer) Compose(in Inputs) (Sources, error) {
	var out Sources
	jobs := []struct {
		name string
		fn   func(Inputs) (string, error)
		dst  *string
	}{
		{"render vertex", RenderVertex, &out.RenderVertex},
		{"render fragment", RenderFragment, &out.RenderFragment},
		{"pick vertex", PickVertex, &out.PickVertex},
		{"pick fragment", PickFragment, &out.PickFragment},
	}

	c.mu.Lock()
	base := c.nextTask
	c.nextTask += len(jobs)
	c.mu.Unlock()

	errs := make([]error, len(jobs))
	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		c.pool.SubmitTask(worker.Task{
			ID: base + i,
			Do: func() (any, error) {
				defer wg.Done()
				src, err := job.fn(in)
				if err != nil {
					errs[i] = fmt.Errorf("compose %s shader: %w", job.name, err)
					return nil, errs[i]
				}
				*job.dst = src
				return nil, nil
			},
		})
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return Sources{}, err
	}
	if c.logSources {
		logger.L().Debug("composed shaders",
			"render_vertex", out.RenderVertex,
			"render_fragment", out.RenderFragment,
			"pick_vertex", out.PickVertex,
			"pick_fragment", out.PickFragment,
		)
	}
	return out, nil
}

func (c *composer) Close() {
	c.pool.Stop()
}
