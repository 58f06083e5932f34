package repository

import (
	"context"
	"encoding/json"
	"io"
)

// CancelFunc stops a subscription. Delivery is asynchronous, so a
// callback already in flight when it returns may still arrive once;
// consumers that need a hard cutoff must discard stale deliveries
// themselves.
type CancelFunc func()

// RemoteStore is the contract the sync core has with the backing keyed,
// hierarchical, subscribable store. Paths are slash-separated from the
// tree root; a nil value inside a BatchWrite deletes that path.
//
// BatchWrite must apply all entries or none. The sync core performs at
// most one batched write attempt per logical operation and relies on
// this guarantee for its denormalized fan-out writes.
type RemoteStore interface {
	// Get reads the value at path into dest. It returns false (and no
	// error) when the path holds nothing.
	Get(ctx context.Context, path string, dest interface{}) (bool, error)
	Set(ctx context.Context, path string, value interface{}) error
	Delete(ctx context.Context, path string) error
	BatchWrite(ctx context.Context, updates map[string]interface{}) error
	// NewChildID reserves a unique child key under path without writing
	// a record there.
	NewChildID(ctx context.Context, path string) (string, error)
	// Subscribe registers onChange for the subtree at path. The current
	// snapshot is delivered once on registration and again after every
	// change, as raw JSON ("null" for an empty subtree). onCancel fires
	// when the store revokes the subscription (it will not fire after
	// the returned CancelFunc has been called).
	Subscribe(path string, onChange func(snapshot json.RawMessage), onCancel func(err error)) (CancelFunc, error)
}

// ObjectStore is the contract with the media object storage.
type ObjectStore interface {
	// Put uploads the object at path and returns its public URL.
	Put(ctx context.Context, path string, r io.Reader, contentType string) (string, error)
	// Delete removes the object a previous Put returned url for.
	Delete(ctx context.Context, url string) error
}
