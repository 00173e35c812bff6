// Package modelrouter resolves a task and an optional backend override to a
// concrete adapter.
package modelrouter

import (
	"fmt"
	"strings"

	"vision-gateway/internal/backend"
	"vision-gateway/internal/catalog"
	"vision-gateway/internal/types"
	apperrors "vision-gateway/pkg/errors"
)

type Router struct {
	catalog  *catalog.Catalog
	registry *backend.Registry
}

func New(c *catalog.Catalog, r *backend.Registry) *Router {
	return &Router{catalog: c, registry: r}
}

// Route is a validated task/backend pair.
type Route struct {
	Task    types.TaskID
	Backend types.BackendID
}

// Validate parses and checks the pair without constructing any adapter. An
// empty model selects the task's default backend.
func (r *Router) Validate(task, model string) (Route, error) {
	taskID, ok := types.ParseTask(task)
	if !ok {
		return Route{}, withSuggestion(apperrors.ErrUnknownTask, task, catalog.SuggestTask(task))
	}
	desc, ok := r.catalog.Task(taskID)
	if !ok {
		return Route{}, apperrors.ErrUnknownTask.WithDetail(task)
	}

	if strings.TrimSpace(model) == "" {
		if desc.Default == "" {
			return Route{}, apperrors.ErrNoDefaultBackend.WithDetail(string(taskID))
		}
		return Route{Task: taskID, Backend: desc.Default}, nil
	}

	backendID, ok := types.ParseBackend(model)
	if !ok {
		return Route{}, withSuggestion(apperrors.ErrUnknownBackend, model, catalog.SuggestBackend(model))
	}
	if !r.catalog.Supports(backendID, taskID) {
		return Route{}, apperrors.ErrUnsupportedTask.WithDetail(
			fmt.Sprintf("backend %s does not support task %s", backendID, taskID))
	}
	return Route{Task: taskID, Backend: backendID}, nil
}

// Resolve validates the pair and returns the backend's adapter, constructing
// it on first use.
func (r *Router) Resolve(task, model string) (backend.Adapter, Route, error) {
	route, err := r.Validate(task, model)
	if err != nil {
		return nil, Route{}, err
	}
	adapter, err := r.ResolveRoute(route)
	return adapter, route, err
}

// ResolveRoute returns the adapter for an already validated route.
func (r *Router) ResolveRoute(route Route) (backend.Adapter, error) {
	if !r.catalog.Supports(route.Backend, route.Task) {
		return nil, apperrors.ErrUnsupportedTask.WithDetail(
			fmt.Sprintf("backend %s does not support task %s", route.Backend, route.Task))
	}
	return r.registry.Get(route.Backend)
}

func withSuggestion(base *apperrors.AppError, input, suggestion string) error {
	if suggestion == "" {
		return base.WithDetail(input)
	}
	return base.WithDetail(fmt.Sprintf("%s (did you mean %q?)", input, suggestion))
}
