package memstore

import (
	"context"
	"fmt"
	"io"
	"sync"

	"swapit/pkg/errors"
)

// ObjectStore keeps uploaded objects in memory, keyed by the URL Put
// returned for them.
type ObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func NewObjectStore() *ObjectStore {
	return &ObjectStore{objects: make(map[string][]byte)}
}

func (o *ObjectStore) Put(ctx context.Context, path string, r io.Reader, contentType string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", errors.Internal("Failed to read upload source", err)
	}

	url := fmt.Sprintf("mem://objects/%s", path)
	o.mu.Lock()
	o.objects[url] = data
	o.mu.Unlock()
	return url, nil
}

func (o *ObjectStore) Delete(ctx context.Context, url string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.objects[url]; !ok {
		return errors.NotFound("Object", nil)
	}
	delete(o.objects, url)
	return nil
}

// Len reports how many objects are currently stored.
func (o *ObjectStore) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.objects)
}

// Has reports whether url still resolves to an object.
func (o *ObjectStore) Has(url string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.objects[url]
	return ok
}
