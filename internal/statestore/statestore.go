// Package statestore provides the key/value persistence used for circuit
// breaker state and enriched basket records, with PostgreSQL, Redis, and
// in-memory implementations selected by configuration.
package statestore

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("statestore: key not found")

// Store is a minimal key/value persistence surface.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
