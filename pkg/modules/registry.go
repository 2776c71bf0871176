// Package modules tracks the set of running data modules.
package modules

import "sync"

// Module is a background data module with an idempotent lifecycle.
type Module interface {
	Name() string
	Start()
	Stop()
}

// Registry is the active-module list. Modules register when their
// update loop starts and deregister themselves when it exits.
type Registry struct {
	mu     sync.Mutex
	active []Module
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Register(m Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.active {
		if existing == m {
			return
		}
	}
	r.active = append(r.active, m)
}

func (r *Registry) Deregister(m Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.active {
		if existing == m {
			r.active = append(r.active[:i], r.active[i+1:]...)
			return
		}
	}
}

// Active lists the names of currently registered modules.
func (r *Registry) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.active))
	for _, m := range r.active {
		names = append(names, m.Name())
	}
	return names
}

// StopAll stops every registered module.
func (r *Registry) StopAll() {
	r.mu.Lock()
	active := append([]Module(nil), r.active...)
	r.mu.Unlock()
	for _, m := range active {
		m.Stop()
	}
}
