// internal/component/registry.go
//
// Component registry (cycle-free).
//
// Each concrete component lives under components/<name>.  cmd/web builds
// them with their Deps, registers them, and calls Mount once; Mount runs the
// optional Init hook and lets every component add its routes to the shared
// router.  Components register routes on the shared router instead of being
// mounted at “/” because chi allows only one Mount per pattern.

package component

import (
	"fmt"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Initializer is optional.  If a Component implements it, Mount calls
// Init(deps) once before its routes are added.
type Initializer interface {
	Init(Deps) error
}

// Component contract.
//
// Routes() adds page endpoints to r, e.g:
//
//	r.Get("/login", c.getLogin)
//	r.Post("/login", c.postLogin)
type Component interface {
	Name() string
	Routes(r chi.Router)
}

// Registry holds the components of one process.
type Registry struct {
	mu   sync.RWMutex
	byID map[string]Component
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: map[string]Component{}}
}

// Register adds c.  A duplicate name is a programming error and panics.
func (reg *Registry) Register(c Component) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, dup := reg.byID[c.Name()]; dup {
		panic("component: duplicate registration of " + c.Name())
	}
	reg.byID[c.Name()] = c
}

// All returns every registered component ordered by name.
func (reg *Registry) All() []Component {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]Component, 0, len(reg.byID))
	for _, c := range reg.byID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Mount initialises every component and adds its routes to r.
func (reg *Registry) Mount(r chi.Router, deps Deps) error {
	for _, c := range reg.All() {
		if in, ok := c.(Initializer); ok {
			if err := in.Init(deps); err != nil {
				return fmt.Errorf("component %s: init: %w", c.Name(), err)
			}
		}
		c.Routes(r)
		zap.S().Debugw("component mounted", "component", c.Name())
	}
	return nil
}
