package cart

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned by Client methods when the requested resource
// does not exist.
var ErrNotFound = errors.New("cart: resource not found")

// OrderUpdate is the body of an update-order request. Version is the
// optimistic concurrency token; the platform rejects stale updates.
type OrderUpdate struct {
	Version int64          `json:"version"`
	Actions []UpdateAction `json:"actions"`
}

// ShippingMethodQuery restricts a shipping method listing.
type ShippingMethodQuery struct {
	Where string
}

// TypeDraft describes a custom type to create on the platform.
type TypeDraft struct {
	Key              string            `json:"key"`
	Name             map[string]string `json:"name"`
	ResourceTypeIDs  []string          `json:"resourceTypeIds"`
	FieldDefinitions []any             `json:"fieldDefinitions,omitempty"`
}

// Client is the commerce platform surface the integration consumes. All
// calls are remote and may fail with ErrNotFound or a generic error.
type Client interface {
	GetOrderByID(ctx context.Context, id string) (*Order, error)
	UpdateOrderByID(ctx context.Context, id string, update OrderUpdate) (*Order, error)
	GetShippingMethods(ctx context.Context, query ShippingMethodQuery) ([]ShippingMethod, error)
	GetTypeByKey(ctx context.Context, key string) (*TypeRef, error)
	CreateType(ctx context.Context, draft TypeDraft) (*TypeRef, error)
}
