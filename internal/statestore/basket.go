package statestore

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"

	"github.com/xenking/loyalty-bridge/internal/domain/basket"
)

const basketKeyPrefix = "basket:"

// BasketStore persists accepted open-basket responses keyed by order
// reference, so a later settlement can finalize them without recomputation.
// Records are retained after settlement for audit and replay.
type BasketStore struct {
	store Store
}

// NewBasketStore returns a BasketStore layered on the given Store.
func NewBasketStore(store Store) *BasketStore {
	return &BasketStore{store: store}
}

// Save persists the enriched basket for the given order reference.
func (s *BasketStore) Save(ctx context.Context, reference string, eb basket.EnrichedBasket) error {
	raw, err := json.Marshal(eb)
	if err != nil {
		return errors.Wrap(err, "marshal enriched basket")
	}
	if err := s.store.Put(ctx, basketKeyPrefix+reference, raw); err != nil {
		return errors.Wrapf(err, "save enriched basket %q", reference)
	}
	return nil
}

// Get loads the enriched basket for the given order reference. Returns
// ErrNotFound when no basket was opened for it.
func (s *BasketStore) Get(ctx context.Context, reference string) (*basket.EnrichedBasket, error) {
	raw, err := s.store.Get(ctx, basketKeyPrefix+reference)
	if err != nil {
		return nil, err
	}
	var eb basket.EnrichedBasket
	if err := json.Unmarshal(raw, &eb); err != nil {
		return nil, errors.Wrapf(err, "decode enriched basket %q", reference)
	}
	return &eb, nil
}

// Delete removes the stored basket. Settlement does not call this; it
// exists for housekeeping.
func (s *BasketStore) Delete(ctx context.Context, reference string) error {
	return s.store.Delete(ctx, basketKeyPrefix+reference)
}
