// Package blob stores attachment bytes under generated keys.
package blob

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a key holds no object.
var ErrNotFound = errors.New("blob not found")

// Store uploads and removes objects. PutObject returns the object's public URL.
type Store interface {
	PutObject(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	DeleteObject(ctx context.Context, key string) error
}
