package storage

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Get(ctx context.Context, namespace string, key string) (string, bool, error) {
	args := m.Called(ctx, namespace, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockBackend) Set(ctx context.Context, namespace string, key string, value string) error {
	args := m.Called(ctx, namespace, key, value)
	return args.Error(0)
}

func (m *MockBackend) Delete(ctx context.Context, namespace string, key string) error {
	args := m.Called(ctx, namespace, key)
	return args.Error(0)
}

