package processor

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/loyalty-bridge/internal/domain/cart"
)

type mockOrderClient struct {
	order      *cart.Order
	getErr     error
	updates    []cart.OrderUpdate
	updatedIDs []string
}

func (m *mockOrderClient) GetOrderByID(_ context.Context, _ string) (*cart.Order, error) {
	return m.order, m.getErr
}

func (m *mockOrderClient) UpdateOrderByID(_ context.Context, id string, u cart.OrderUpdate) (*cart.Order, error) {
	m.updatedIDs = append(m.updatedIDs, id)
	m.updates = append(m.updates, u)
	return m.order, nil
}

type mockSettler struct {
	actions []cart.UpdateAction
	err     error
	calls   int
}

func (m *mockSettler) SettleTransactionFromOrder(_ context.Context, _ *cart.Order) ([]cart.UpdateAction, error) {
	m.calls++
	return m.actions, m.err
}

func paidOrder(id string) *cart.Order {
	return &cart.Order{
		ID:           id,
		Version:      7,
		PaymentState: cart.PaymentStatePaid,
		Custom:       &cart.CustomFields{Fields: map[string]any{}},
	}
}

func orderCreatedMsg(o *cart.Order) *cart.Message {
	return &cart.Message{
		ID:       "msg-1",
		Type:     EventOrderCreated,
		Resource: cart.ResourceRef{TypeID: "order", ID: o.ID},
		Order:    o,
	}
}

func TestOrderCreated_IsEventValid(t *testing.T) {
	tests := []struct {
		name     string
		msg      *cart.Message
		client   *mockOrderClient
		disabled bool
		want     bool
	}{
		{
			name:   "paid order embedded in message",
			msg:    orderCreatedMsg(paidOrder("o1")),
			client: &mockOrderClient{},
			want:   true,
		},
		{
			name: "payment state from message payload",
			msg: &cart.Message{
				Type:         EventOrderCreated,
				Resource:     cart.ResourceRef{TypeID: "order", ID: "o1"},
				PaymentState: cart.PaymentStatePaid,
			},
			client: &mockOrderClient{},
			want:   true,
		},
		{
			name: "order fetched when not embedded",
			msg: &cart.Message{
				Type:     EventOrderCreated,
				Resource: cart.ResourceRef{TypeID: "order", ID: "o1"},
			},
			client: &mockOrderClient{order: paidOrder("o1")},
			want:   true,
		},
		{
			name: "fetch failure fails closed",
			msg: &cart.Message{
				Type:     EventOrderCreated,
				Resource: cart.ResourceRef{TypeID: "order", ID: "o1"},
			},
			client: &mockOrderClient{getErr: errors.New("boom")},
			want:   false,
		},
		{
			name: "unpaid order is invalid",
			msg: func() *cart.Message {
				o := paidOrder("o1")
				o.PaymentState = "Pending"
				return orderCreatedMsg(o)
			}(),
			client: &mockOrderClient{},
			want:   false,
		},
		{
			name: "wrong resource type",
			msg: &cart.Message{
				Type:     EventOrderCreated,
				Resource: cart.ResourceRef{TypeID: "cart", ID: "c1"},
			},
			client: &mockOrderClient{},
			want:   false,
		},
		{
			name: "wrong event type tag",
			msg: &cart.Message{
				Type:     "OrderDeleted",
				Resource: cart.ResourceRef{TypeID: "order", ID: "o1"},
				Order:    paidOrder("o1"),
			},
			client: &mockOrderClient{},
			want:   false,
		},
		{
			name:     "administratively disabled",
			msg:      orderCreatedMsg(paidOrder("o1")),
			client:   &mockOrderClient{},
			disabled: true,
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewOrderCreatedProcessor(tt.client, &mockSettler{}, tt.disabled, zaptest.NewLogger(t))
			assert.Equal(t, tt.want, p.IsEventValid(context.Background(), tt.msg))
		})
	}
}

func TestOrderCreated_GenerateActions_SettlesOnce(t *testing.T) {
	o := paidOrder("o1")
	client := &mockOrderClient{order: o}
	settler := &mockSettler{actions: []cart.UpdateAction{
		cart.SetCustomField(cart.FieldSettledStatus, cart.SettledStatusSettled),
	}}
	p := NewOrderCreatedProcessor(client, settler, false, zaptest.NewLogger(t))

	actions, err := p.GenerateActions(context.Background(), orderCreatedMsg(o))
	require.NoError(t, err)
	require.Len(t, actions, 1)

	require.NoError(t, actions[0](context.Background()))
	assert.Equal(t, 1, settler.calls)
	require.Len(t, client.updates, 1)
	assert.Equal(t, int64(7), client.updates[0].Version, "update must be gated by the order version")
	assert.Equal(t, []string{"o1"}, client.updatedIDs)
	assert.Equal(t, settler.actions, client.updates[0].Actions)
}

func TestOrderCreated_GenerateActions_Idempotent(t *testing.T) {
	o := paidOrder("o1")
	o.Custom.Fields[cart.FieldSettledStatus] = cart.SettledStatusSettled

	settler := &mockSettler{}
	p := NewOrderCreatedProcessor(&mockOrderClient{order: o}, settler, false, zaptest.NewLogger(t))

	actions, err := p.GenerateActions(context.Background(), orderCreatedMsg(o))
	require.NoError(t, err)
	assert.Empty(t, actions, "a settled order must generate no actions on redelivery")
	assert.Zero(t, settler.calls)
}

func TestOrderCreated_GenerateActions_SettleErrorPropagates(t *testing.T) {
	o := paidOrder("o1")
	client := &mockOrderClient{order: o}
	settler := &mockSettler{err: errors.New("wallet settle failed")}
	p := NewOrderCreatedProcessor(client, settler, false, zaptest.NewLogger(t))

	actions, err := p.GenerateActions(context.Background(), orderCreatedMsg(o))
	require.NoError(t, err)
	require.Len(t, actions, 1)

	require.Error(t, actions[0](context.Background()))
	assert.Empty(t, client.updates, "a failed settlement must not update the order")
}

func TestRegistry_RoutesByEventType(t *testing.T) {
	p := NewOrderCreatedProcessor(&mockOrderClient{}, &mockSettler{}, false, zaptest.NewLogger(t))
	r := NewRegistry(p)

	got, ok := r.For(EventOrderCreated)
	require.True(t, ok)
	assert.Same(t, p, got.(*OrderCreatedProcessor))

	_, ok = r.For("CartCreated")
	assert.False(t, ok)
}

func TestSeenFilter(t *testing.T) {
	f := NewSeenFilter(1000, 0.01)
	assert.False(t, f.CheckAndAdd("msg-1"), "first sight must be a definite negative")
	assert.True(t, f.CheckAndAdd("msg-1"))
}
