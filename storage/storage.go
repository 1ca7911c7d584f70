// Package storage holds the object-store backends used for image blobs and
// their JSON sidecars. Every backend has overwrite-or-create semantics per key.
package storage

import (
	"context"
	"errors"
	"time"
)

var ErrObjectNotExist = errors.New("storage: object does not exist")

// Object is a stored blob together with the content type it was written with.
type Object struct {
	Key         string
	ContentType string
	Data        []byte
}

// Store is the artifact store used by the gallery.
type Store interface {
	// Put creates or overwrites the object at key.
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Get returns ErrObjectNotExist when nothing is stored at key.
	Get(ctx context.Context, key string) (*Object, error)
	Exists(ctx context.Context, key string) (bool, error)
	// Delete removes the object at key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// SignedURL returns a URL granting read access to key for ttl.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}
