package storage

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("object not found")

// ObjectStore stores opaque objects by name.
type ObjectStore interface {
	Put(ctx context.Context, name string, data []byte, contentType string) error
	// Get returns ErrNotFound when name does not exist.
	Get(ctx context.Context, name string) ([]byte, error)
}
