// Package backend defines the adapter contract every inference backend
// implements and the registry that lazily builds and caches one adapter per
// backend for the life of the process.
package backend

import (
	"context"
	"fmt"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"vision-gateway/internal/catalog"
	"vision-gateway/internal/types"
	"vision-gateway/log"
	apperrors "vision-gateway/pkg/errors"
)

// Adapter runs tasks against one inference backend. A single instance is
// shared by every job routed to the backend, so Run must be safe for
// concurrent use or serialize internally.
type Adapter interface {
	ID() types.BackendID
	SupportedTasks() []types.TaskID
	Run(ctx context.Context, task types.TaskID, image []byte, params types.Params) (*types.RawResult, error)
}

// Factory constructs an adapter. It may be expensive and is called at most
// once per successful construction.
type Factory func() (Adapter, error)

type entry struct {
	mu      sync.Mutex
	factory Factory
	adapter Adapter
}

// Registry maps backend ids to lazily constructed adapters.
type Registry struct {
	catalog *catalog.Catalog

	mu      sync.RWMutex
	entries map[types.BackendID]*entry
}

func NewRegistry(c *catalog.Catalog) *Registry {
	return &Registry{
		catalog: c,
		entries: make(map[types.BackendID]*entry),
	}
}

// Register installs the factory for id. Registering over an already built
// adapter replaces it.
func (r *Registry) Register(id types.BackendID, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = &entry{factory: factory}
}

// Get returns the cached adapter for id, constructing it on first use.
// A failed construction is not cached; the next call retries.
func (r *Registry) Get(id types.BackendID) (Adapter, error) {
	desc, ok := r.catalog.Backend(id)
	if !ok {
		return nil, apperrors.ErrUnknownBackend.WithDetail(string(id))
	}

	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeBackendInit, "Backend %s is not configured", id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.adapter != nil {
		return e.adapter, nil
	}

	log.GetLogger().Info("[BackendRegistry] constructing adapter", zap.String("backend", string(id)))
	adapter, err := e.factory()
	if err != nil {
		log.GetLogger().Error("[BackendRegistry] adapter construction failed",
			zap.String("backend", string(id)), zap.Error(err))
		return nil, apperrors.Wrap(apperrors.CodeBackendInit, fmt.Sprintf("Backend %s failed to initialise", id), err)
	}

	if missing, _ := lo.Difference(desc.Tasks, adapter.SupportedTasks()); len(missing) > 0 {
		return nil, apperrors.Newf(apperrors.CodeBackendInit,
			"Backend %s adapter does not implement catalog tasks %v", id, missing)
	}

	e.adapter = adapter
	return adapter, nil
}

// Loaded reports whether the adapter for id has been constructed.
func (r *Registry) Loaded(id types.BackendID) bool {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.adapter != nil
}

// Configured lists the backend ids that have a factory.
func (r *Registry) Configured() []types.BackendID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Filter(types.AllBackends, func(id types.BackendID, _ int) bool {
		_, ok := r.entries[id]
		return ok
	})
}
