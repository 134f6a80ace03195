// Package services provides business logic for the launch coordinator.
package services

import (
	"errors"
	"sync"
	"time"

	"github.com/pandeptwidyaop/instance-remote/internal/models"
)

var (
	// ErrInstanceNotFound indicates no instance is registered under a name.
	ErrInstanceNotFound = errors.New("instance not found")
	// ErrInstanceExists indicates a duplicate registration attempt.
	ErrInstanceExists = errors.New("instance already registered")
)

// Registry is the authoritative in-memory record of registered instances.
// It is insertion-ordered and safe for concurrent use; Mark is the only
// mutator of lifecycle state.
type Registry struct {
	mu        sync.RWMutex
	instances map[string]*models.Instance
	order     []string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		instances: make(map[string]*models.Instance),
	}
}

// Register adds an instance. Duplicate names are rejected: within a batch
// they would make port and result keys ambiguous.
func (r *Registry) Register(inst *models.Instance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.instances[inst.Name]; ok {
		return ErrInstanceExists
	}

	now := time.Now()
	inst.RegisteredAt = now
	inst.UpdatedAt = now
	if inst.Status == "" {
		inst.Status = models.StatusPending
	}

	r.instances[inst.Name] = inst
	r.order = append(r.order, inst.Name)
	return nil
}

// Unregister removes an instance by name.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.instances[name]; !ok {
		return ErrInstanceNotFound
	}
	delete(r.instances, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Get returns a snapshot copy of the named instance.
func (r *Registry) Get(name string) (*models.Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inst, ok := r.instances[name]
	if !ok {
		return nil, ErrInstanceNotFound
	}
	snapshot := *inst
	return &snapshot, nil
}

// All returns snapshot copies of every instance in registration order.
func (r *Registry) All() []*models.Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Instance, 0, len(r.order))
	for _, name := range r.order {
		snapshot := *r.instances[name]
		out = append(out, &snapshot)
	}
	return out
}

// Mark transitions an instance's lifecycle status. Safe to call from
// concurrent launch workers.
func (r *Registry) Mark(name string, status models.InstanceStatus, detail string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	inst, ok := r.instances[name]
	if !ok {
		return ErrInstanceNotFound
	}
	inst.Status = status
	inst.Detail = detail
	inst.UpdatedAt = time.Now()
	return nil
}

// SetPort records the port assigned to an instance.
func (r *Registry) SetPort(name string, port int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	inst, ok := r.instances[name]
	if !ok {
		return ErrInstanceNotFound
	}
	inst.Port = &port
	inst.UpdatedAt = time.Now()
	return nil
}

// SetPID records the PID of a launched instance.
func (r *Registry) SetPID(name string, pid int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	inst, ok := r.instances[name]
	if !ok {
		return ErrInstanceNotFound
	}
	inst.PID = &pid
	inst.UpdatedAt = time.Now()
	return nil
}
