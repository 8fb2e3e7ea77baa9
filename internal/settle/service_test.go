package settle

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/loyalty-bridge/internal/domain/basket"
	"github.com/xenking/loyalty-bridge/internal/domain/cart"
	"github.com/xenking/loyalty-bridge/internal/mapper"
	"github.com/xenking/loyalty-bridge/internal/statestore"
)

type stubWallet struct {
	lastSettle *basket.SettleRequest
	resp       *basket.Response
	err        error
}

func (s *stubWallet) OpenBasket(context.Context, *basket.OpenRequest) (*basket.Response, error) {
	return s.resp, s.err
}

func (s *stubWallet) SettleBasket(_ context.Context, req *basket.SettleRequest) (*basket.Response, error) {
	s.lastSettle = req
	return s.resp, s.err
}

type noShipping struct{}

func (noShipping) GetShippingMethods(context.Context, cart.ShippingMethodQuery) ([]cart.ShippingMethod, error) {
	return nil, nil
}

func testOrder() *cart.Order {
	return &cart.Order{
		ID:      "order-9",
		Version: 2,
		LineItems: []cart.LineItem{{
			Variant:    cart.Variant{SKU: "245865"},
			Price:      cart.Price{Value: cart.Money{CurrencyCode: "GBP", CentAmount: 1000}},
			TotalPrice: cart.Money{CurrencyCode: "GBP", CentAmount: 2000},
			Quantity:   2,
		}},
		TotalPrice: cart.Money{CurrencyCode: "GBP", CentAmount: 2000},
	}
}

func TestSettleTransactionFromOrder(t *testing.T) {
	baskets := statestore.NewBasketStore(statestore.NewMemory())
	require.NoError(t, baskets.Save(context.Background(), "order-9", basket.EnrichedBasket{
		Basket: basket.Basket{Type: basket.BasketTypeStandard, Summary: basket.Summary{TotalBasketValue: 2000}},
	}))

	wallet := &stubWallet{resp: &basket.Response{
		AnalyseBasketResults: &basket.AnalyseBasketResults{
			Basket: basket.Basket{
				Summary: basket.Summary{AdjustmentResults: []basket.Adjustment{{Value: 200}}},
			},
		},
	}}

	m := mapper.New(mapper.Config{IncomingIdentifier: "outlet1"}, noShipping{}, baskets)
	svc := New(m, wallet, zaptest.NewLogger(t))

	actions, err := svc.SettleTransactionFromOrder(context.Background(), testOrder())
	require.NoError(t, err)

	require.NotNil(t, wallet.lastSettle)
	assert.Equal(t, "ACTIVE", wallet.lastSettle.Mode)
	assert.Equal(t, "order-9", wallet.lastSettle.Reference)

	require.Len(t, actions, 2)
	discounts, ok := actions[0].(cart.SetDirectDiscountsAction)
	require.True(t, ok)
	require.Len(t, discounts.Discounts, 1)
	assert.Equal(t, int64(200), discounts.Discounts[0].Value.Money[0].CentAmount)

	settled, ok := actions[1].(cart.SetCustomFieldAction)
	require.True(t, ok)
	assert.Equal(t, cart.FieldSettledStatus, settled.Name)
	assert.Equal(t, cart.SettledStatusSettled, settled.Value)
}

func TestSettleTransactionFromOrder_NoStoredBasket(t *testing.T) {
	baskets := statestore.NewBasketStore(statestore.NewMemory())
	m := mapper.New(mapper.Config{}, noShipping{}, baskets)
	svc := New(m, &stubWallet{}, zaptest.NewLogger(t))

	_, err := svc.SettleTransactionFromOrder(context.Background(), testOrder())
	require.ErrorIs(t, err, statestore.ErrNotFound)
}

func TestSettleTransactionFromOrder_EngineErrorPropagates(t *testing.T) {
	baskets := statestore.NewBasketStore(statestore.NewMemory())
	require.NoError(t, baskets.Save(context.Background(), "order-9", basket.EnrichedBasket{}))

	m := mapper.New(mapper.Config{}, noShipping{}, baskets)
	svc := New(m, &stubWallet{err: errors.New("engine down")}, zaptest.NewLogger(t))

	_, err := svc.SettleTransactionFromOrder(context.Background(), testOrder())
	require.Error(t, err)
}

func TestSettlementActionsWithoutDiscounts(t *testing.T) {
	baskets := statestore.NewBasketStore(statestore.NewMemory())
	require.NoError(t, baskets.Save(context.Background(), "order-9", basket.EnrichedBasket{}))

	m := mapper.New(mapper.Config{}, noShipping{}, baskets)
	svc := New(m, &stubWallet{resp: &basket.Response{}}, zaptest.NewLogger(t))

	actions, err := svc.SettleTransactionFromOrder(context.Background(), testOrder())
	require.NoError(t, err)
	require.Len(t, actions, 1, "no discounts yields only the settled-status marker")
	_, ok := actions[0].(cart.SetCustomFieldAction)
	assert.True(t, ok)
}
