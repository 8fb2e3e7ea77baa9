package processor

import (
	"context"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/loyalty-bridge/internal/domain/cart"
)

// EventOrderCreated is the platform's order-created message type tag.
const EventOrderCreated = "OrderCreated"

// OrderClient is the commerce surface the order-created processor needs.
type OrderClient interface {
	GetOrderByID(ctx context.Context, id string) (*cart.Order, error)
	UpdateOrderByID(ctx context.Context, id string, update cart.OrderUpdate) (*cart.Order, error)
}

// OrderSettler computes the update actions that settle an order's loyalty
// basket.
type OrderSettler interface {
	SettleTransactionFromOrder(ctx context.Context, o *cart.Order) ([]cart.UpdateAction, error)
}

var _ EventProcessor = (*OrderCreatedProcessor)(nil)

// OrderCreatedProcessor settles the loyalty basket once an order is paid.
// The settled-status custom field is the idempotency guard: a redelivered
// event for an already settled order generates no actions.
type OrderCreatedProcessor struct {
	commerce OrderClient
	settler  OrderSettler
	disabled bool
	lg       *zap.Logger
}

// NewOrderCreatedProcessor creates the processor. disabled turns it off
// administratively; its events then validate false.
func NewOrderCreatedProcessor(commerce OrderClient, settler OrderSettler, disabled bool, lg *zap.Logger) *OrderCreatedProcessor {
	return &OrderCreatedProcessor{commerce: commerce, settler: settler, disabled: disabled, lg: lg}
}

func (p *OrderCreatedProcessor) EventType() string { return EventOrderCreated }

// IsEventValid requires an order resource, the matching type tag, a Paid
// payment state, and the processor not being disabled.
func (p *OrderCreatedProcessor) IsEventValid(ctx context.Context, msg *cart.Message) bool {
	return msg.Resource.TypeID == "order" &&
		msg.Type == EventOrderCreated &&
		p.isPaid(ctx, msg) &&
		!p.disabled
}

// isPaid prefers the payment state embedded in the message and falls back
// to fetching the order. A fetch failure fails closed: the event is
// invalid, logged as a warning, never retried synchronously.
func (p *OrderCreatedProcessor) isPaid(ctx context.Context, msg *cart.Message) bool {
	state := msg.PaymentState
	if msg.Order != nil {
		state = msg.Order.PaymentState
	}
	if state == "" {
		o, err := p.commerce.GetOrderByID(ctx, msg.Resource.ID)
		if err != nil {
			p.lg.Warn("Failed to get order to check payment state",
				zap.String("order_id", msg.Resource.ID),
				zap.Error(err),
			)
			return false
		}
		state = o.PaymentState
	}
	return state == cart.PaymentStatePaid
}

// GenerateActions returns the single settlement action, or nothing when
// the order's settled-status field already reads SETTLED.
func (p *OrderCreatedProcessor) GenerateActions(ctx context.Context, msg *cart.Message) ([]DeferredAction, error) {
	o := msg.Order
	if o == nil {
		var err error
		o, err = p.commerce.GetOrderByID(ctx, msg.Resource.ID)
		if err != nil {
			return nil, errors.Wrapf(err, "get order %q", msg.Resource.ID)
		}
	}

	if o.Custom.String(cart.FieldSettledStatus) == cart.SettledStatusSettled {
		p.lg.Debug("Order already settled, nothing to do", zap.String("order_id", o.ID))
		return nil, nil
	}

	order := o
	return []DeferredAction{func(ctx context.Context) error {
		actions, err := p.settler.SettleTransactionFromOrder(ctx, order)
		if err != nil {
			return errors.Wrapf(err, "settle order %q", order.ID)
		}
		_, err = p.commerce.UpdateOrderByID(ctx, order.ID, cart.OrderUpdate{
			Version: order.Version,
			Actions: actions,
		})
		if err != nil {
			return errors.Wrapf(err, "update order %q", order.ID)
		}
		return nil
	}}, nil
}
