package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotExist is returned when the requested object is not in the store.
var ErrNotExist = errors.New("stored object does not exist")

// Object is an open stored file. Seek + bounded reads serve byte ranges without
// loading the whole file.
type Object interface {
	io.ReadSeekCloser
	Size() int64
}

// Store persists uploaded audio bytes under opaque keys.
type Store interface {
	// Save writes r under key and returns the number of bytes stored. A failed Save
	// leaves nothing behind.
	Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) (int64, error)
	// Open returns ErrNotExist when key is missing.
	Open(ctx context.Context, key string) (Object, error)
	// Remove returns ErrNotExist when key is missing.
	Remove(ctx context.Context, key string) error
	// Location describes where key lives, for records and logs.
	Location(key string) string
}
