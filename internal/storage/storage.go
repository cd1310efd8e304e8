// Package storage writes generated artifacts to durable storage and returns
// a URL clients can fetch them from.
package storage

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by a nil store.
var ErrNotConfigured = errors.New("storage: no store configured")

// ObjectStore persists bytes under key and returns a public URL.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

var (
	_ ObjectStore = (*FileStore)(nil)
	_ ObjectStore = (*S3Store)(nil)
)
