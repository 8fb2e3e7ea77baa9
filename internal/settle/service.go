// Package settle finalizes previously opened loyalty baskets once the
// associated order is confirmed paid.
package settle

import (
	"context"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/loyalty-bridge/internal/domain/basket"
	"github.com/xenking/loyalty-bridge/internal/domain/cart"
	"github.com/xenking/loyalty-bridge/internal/loyalty"
	"github.com/xenking/loyalty-bridge/internal/mapper"
)

// Service orchestrates settlement: load the enriched basket, settle it via
// the resilient loyalty client, and turn the result into order update
// actions.
type Service struct {
	mapper *mapper.Mapper
	wallet loyalty.Invoker
	lg     *zap.Logger
}

// New creates a settlement Service.
func New(m *mapper.Mapper, wallet loyalty.Invoker, lg *zap.Logger) *Service {
	return &Service{mapper: m, wallet: wallet, lg: lg}
}

// SettleTransactionFromOrder settles the order's basket and returns the
// update actions to apply: the applied discount drafts, if any, and the
// settled-status marker.
func (s *Service) SettleTransactionFromOrder(ctx context.Context, o *cart.Order) ([]cart.UpdateAction, error) {
	payload, err := s.mapper.OrderToSettlePayload(ctx, o.ID)
	if err != nil {
		return nil, errors.Wrap(err, "build settle payload")
	}

	resp, err := s.wallet.SettleBasket(ctx, payload)
	if err != nil {
		return nil, errors.Wrap(err, "settle basket")
	}

	s.lg.Info("Settled loyalty basket", zap.String("order_id", o.ID))

	actions := settlementActions(s.mapper, resp, o)
	return actions, nil
}

// settlementActions maps the settlement response into update actions. The
// discount mapping is shared with the open flow.
func settlementActions(m *mapper.Mapper, resp *basket.Response, o *cart.Order) []cart.UpdateAction {
	var actions []cart.UpdateAction

	drafts := m.DiscountsToDirectDrafts(resp, &cart.Cart{
		ID:           o.ID,
		LineItems:    o.LineItems,
		TotalPrice:   o.TotalPrice,
		ShippingInfo: o.ShippingInfo,
	})
	if len(drafts) > 0 {
		actions = append(actions, cart.SetDirectDiscounts(drafts))
	}

	actions = append(actions, cart.SetCustomField(cart.FieldSettledStatus, cart.SettledStatusSettled))
	return actions
}
