// Package layer tracks named render layers: their priorities, which are enabled, and the layer
// that is current during a traversal.
package layer

import (
	"slices"
	"sync"
)

// DefaultLayer is the layer used when a traversal has not entered any named layer.
const DefaultLayer = ""

type service struct {
	mu         *sync.RWMutex
	priorities map[string]int
	disabled   map[string]bool
	stack      []string
}

// Service is the render-layer service consulted by geometry registration and frame execution.
type Service interface {
	// Layer returns the current layer, the top of the push stack or DefaultLayer.
	Layer() string

	// Priority returns the priority of the named layer. Unknown layers have priority 0.
	Priority(name string) int

	// EnabledLayers returns the names of all known layers that are enabled, sorted by priority then name.
	// DefaultLayer is always included.
	EnabledLayers() []string

	// IsEnabled reports whether records in the named layer are drawn. Unknown layers are enabled.
	IsEnabled(name string) bool

	// SetPriority registers the layer and sets its priority.
	SetPriority(name string, priority int)

	// SetEnabled registers the layer and enables or disables it. DefaultLayer cannot be disabled.
	SetEnabled(name string, enabled bool)

	// Push makes name the current layer until the matching Pop.
	Push(name string)

	// Pop restores the previous current layer. Popping an empty stack is a no-op.
	Pop()
}

var _ Service = &service{}

// NewService creates a service from the given options.
func NewService(options ...ServiceBuilderOption) Service {
	s := &service{
		mu:         &sync.RWMutex{},
		priorities: map[string]int{DefaultLayer: 0},
		disabled:   make(map[string]bool),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *service) Layer() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.stack) == 0 {
		return DefaultLayer
	}
	return s.stack[len(s.stack)-1]
}

func (s *service) Priority(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.priorities[name]
}

func (s *service) EnabledLayers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.priorities))
	for name := range s.priorities {
		if !s.disabled[name] {
			out = append(out, name)
		}
	}
	slices.SortFunc(out, func(a, b string) int {
		if pa, pb := s.priorities[a], s.priorities[b]; pa != pb {
			return pa - pb
		}
		if a < b {
			return -1
		}
		if a > b {
			return 1
		}
		return 0
	})
	return out
}

func (s *service) IsEnabled(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.disabled[name]
}

func (s *service) SetPriority(name string, priority int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.priorities[name] = priority
}

func (s *service) SetEnabled(name string, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.priorities[name]; !ok {
		s.priorities[name] = 0
	}
	if name == DefaultLayer {
		return
	}
	s.disabled[name] = !enabled
}

func (s *service) Push(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.priorities[name]; !ok {
		s.priorities[name] = 0
	}
	s.stack = append(s.stack, name)
}

func (s *service) Pop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.stack) > 0 {
		s.stack = s.stack[:len(s.stack)-1]
	}
}
