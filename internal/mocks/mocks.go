// Package mocks provides mock implementations of core interfaces for testing.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"vision-gateway/internal/types"
)

// MockAdapter is a mock implementation of backend.Adapter
type MockAdapter struct {
	mock.Mock
	Backend types.BackendID
	Tasks   []types.TaskID
}

func (m *MockAdapter) ID() types.BackendID {
	return m.Backend
}

func (m *MockAdapter) SupportedTasks() []types.TaskID {
	return m.Tasks
}

func (m *MockAdapter) Run(ctx context.Context, task types.TaskID, image []byte, params types.Params) (*types.RawResult, error) {
	args := m.Called(ctx, task, image, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.RawResult), args.Error(1)
}

// MockNotifier is a mock implementation of notify.Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) JobFinished(ctx context.Context, job *types.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockNotifier) Close() error {
	args := m.Called()
	return args.Error(0)
}
