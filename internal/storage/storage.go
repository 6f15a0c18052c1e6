package storage

import (
	"context"
	"io"
)

// Store is the blob backend behind resource uploads. Keys are opaque
// slash-separated paths chosen by the caller.
type Store interface {
	Put(ctx context.Context, key string, contentType string, data []byte) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// OpenRange opens the inclusive byte range [start, end]. A negative end
	// reads to the end of the object.
	OpenRange(ctx context.Context, key string, start int64, end int64) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
