package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnavailable is returned by a backend that cannot reach its storage.
var ErrUnavailable = errors.New("storage unavailable")

// Backend is a namespaced key/value store. A namespace is one browser
// context; keys are the logical storage names kept for that context.
type Backend interface {
	Get(ctx context.Context, namespace string, key string) (string, bool, error)
	Set(ctx context.Context, namespace string, key string, value string) error
	Delete(ctx context.Context, namespace string, key string) error
}

func validateNamespace(namespace string) error {
	if strings.TrimSpace(namespace) == "" {
		return fmt.Errorf("namespace is required")
	}
	return nil
}

func validate(namespace string, key string) error {
	if err := validateNamespace(namespace); err != nil {
		return err
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("key is required")
	}
	return nil
}
