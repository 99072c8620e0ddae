package adapter

import (
	"context"
	"time"
)

// ObjectStat is the result of a metadata-only existence check.
type ObjectStat struct {
	Exists bool
	Size   int64
	ETag   string
}

// ObjectStore is the contract with durable object storage: existence checks,
// presigned writes with bounded expiry, and the explicit create/complete/abort
// verbs of a multi-part write (parts are staged as separate objects and
// composed into the destination on completion).
type ObjectStore interface {
	// Stat never reads object bytes.
	Stat(ctx context.Context, key string) (ObjectStat, error)
	// SignedPutURL issues a presigned single-shot write location.
	SignedPutURL(ctx context.Context, key, contentType string, ttl time.Duration) (string, time.Time, error)
	// Compose concatenates the staged part objects, in order, into dst.
	Compose(ctx context.Context, dst string, parts []string) error
	// Delete removes an object; deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error
	// Bucket names the backing bucket, for plans and asset descriptors.
	Bucket() string
}
