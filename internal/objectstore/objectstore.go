// Package objectstore is the boundary to long-term binary storage. The
// production backend lives outside this repository; workers depend only on
// the Store interface. A local-disk implementation is provided for
// development and tests.
package objectstore

import (
	"context"
	"io"
	"time"
)

// Store persists media blobs and resolves access URLs.
type Store interface {
	// Put streams body to path and returns the stored object's URL.
	Put(ctx context.Context, body io.Reader, contentType, path string) (string, error)
	// PresignedURL returns a time-limited access URL for an existing object.
	PresignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)
}
