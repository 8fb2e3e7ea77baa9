package commerce

import (
	"context"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/loyalty-bridge/internal/domain/cart"
)

// CartTypeKey is the custom type carrying the integration's cart and order
// fields.
const CartTypeKey = "loyalty-cart-type"

// CartTypeDraft describes the custom type the integration needs on carts
// and orders.
func CartTypeDraft() cart.TypeDraft {
	stringField := func(name, label string) any {
		return map[string]any{
			"name":     name,
			"label":    map[string]string{"en": label},
			"required": false,
			"type":     map[string]string{"name": "String"},
		}
	}
	stringSetField := func(name, label string) any {
		return map[string]any{
			"name":     name,
			"label":    map[string]string{"en": label},
			"required": false,
			"type": map[string]any{
				"name":        "Set",
				"elementType": map[string]string{"name": "String"},
			},
		}
	}

	return cart.TypeDraft{
		Key:             CartTypeKey,
		Name:            map[string]string{"en": "Loyalty integration fields"},
		ResourceTypeIDs: []string{"cart", "order"},
		FieldDefinitions: []any{
			stringField(cart.FieldIdentityValue, "Shopper identity value"),
			stringSetField(cart.FieldVoucherCodes, "Voucher codes"),
			stringField(cart.FieldSettledStatus, "Settlement status"),
			stringSetField(cart.FieldErrors, "Integration errors"),
			stringSetField(cart.FieldAppliedDiscounts, "Applied discount descriptions"),
		},
	}
}

// EnsureType creates the custom type if it does not already exist. Safe to
// run on every startup.
func EnsureType(ctx context.Context, client cart.Client, draft cart.TypeDraft, lg *zap.Logger) error {
	existing, err := client.GetTypeByKey(ctx, draft.Key)
	if err == nil && existing != nil {
		lg.Info("Custom type already exists, skipping creation", zap.String("key", draft.Key))
		return nil
	}
	if err != nil && !errors.Is(err, cart.ErrNotFound) {
		return errors.Wrapf(err, "get type %q", draft.Key)
	}

	lg.Info("Custom type not found, creating", zap.String("key", draft.Key))
	if _, err := client.CreateType(ctx, draft); err != nil {
		return errors.Wrapf(err, "create type %q", draft.Key)
	}
	return nil
}
