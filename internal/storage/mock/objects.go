package mock

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/your-org/photomarket/internal/storage"
)

// Objects is an in-memory storage.ObjectStore.
type Objects struct {
	mu      sync.RWMutex
	objects map[string][]byte
	types   map[string]string

	// Error injection
	PutError    error
	GetError    error
	DeleteError error
}

var _ storage.ObjectStore = (*Objects)(nil)

func NewObjects() *Objects {
	return &Objects{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

func (o *Objects) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	if o.PutError != nil {
		return o.PutError
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.objects[key] = slices.Clone(data)
	o.types[key] = contentType
	return nil
}

func (o *Objects) GetObject(ctx context.Context, key string) ([]byte, error) {
	if o.GetError != nil {
		return nil, o.GetError
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	data, ok := o.objects[key]
	if !ok {
		return nil, fmt.Errorf("get object %s: %w", key, storage.ErrNotFound)
	}
	return slices.Clone(data), nil
}

func (o *Objects) DeleteObject(ctx context.Context, key string) error {
	if o.DeleteError != nil {
		return o.DeleteError
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.objects, key)
	delete(o.types, key)
	return nil
}

func (o *Objects) DeleteObjects(ctx context.Context, keys []string) error {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := o.DeleteObject(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// Has reports whether key is stored.
func (o *Objects) Has(key string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.objects[key]
	return ok
}

// ContentType returns the content type recorded for key.
func (o *Objects) ContentType(key string) string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.types[key]
}
