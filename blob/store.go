package blob

import (
	"context"
	"errors"
)

// ErrNotFound indicates no object exists at the given bucket and key.
var ErrNotFound = errors.New("blob not found")

// Store is the object storage contract the ingestion path consumes.
// Objects are addressed by bucket and key only; implementations must not
// assume any further path semantics.
type Store interface {
	// Get returns the object's bytes, or ErrNotFound.
	Get(ctx context.Context, bucket, key string) ([]byte, error)

	// Delete removes the object. Deleting a missing object is not an error.
	Delete(ctx context.Context, bucket, key string) error
}
