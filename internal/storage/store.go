package storage

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("artifact not found")

// Store persists artifacts by flat name. Names are validated by callers.
type Store interface {
	Put(ctx context.Context, name string, data []byte, contentType string) error
	Get(ctx context.Context, name string) ([]byte, error)
	Delete(ctx context.Context, name string) error
	Exists(ctx context.Context, name string) (bool, error)
}
