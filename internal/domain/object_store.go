package domain

import (
	"context"
	"errors"
)

// ErrObjectNotFound is a sentinel error returned when a blob key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore defines the interface to the external durable blob store holding
// uploaded documents, metadata sidecars, form templates and filled forms.
// Put has atomic per-key semantics; the store itself carries no core logic.
type ObjectStore interface {
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	// List returns the keys under the given prefix, in lexical order.
	List(ctx context.Context, bucket, prefix string) ([]string, error)
}
