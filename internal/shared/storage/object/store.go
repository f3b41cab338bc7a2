package object

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a storage key has no object.
var ErrNotFound = errors.New("object not found")

// ObjectStore archives uploaded files.
type ObjectStore interface {
	// Put stores data under the owner's namespace and returns its storage key.
	Put(ctx context.Context, owner string, fileName string, contentType string, data []byte) (storageKey string, err error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	Delete(ctx context.Context, storageKey string) error
}
