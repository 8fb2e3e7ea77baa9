package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/loyalty-bridge/internal/domain/basket"
	"github.com/xenking/loyalty-bridge/internal/domain/cart"
)

// engineResponse mirrors the engine's analysed basket for the standard
// two-item cart: two basket-level adjustments plus one adjustment per item.
func engineResponse() *basket.Response {
	return &basket.Response{
		AnalyseBasketResults: &basket.AnalyseBasketResults{
			Basket: basket.Basket{
				Type: basket.BasketTypeStandard,
				Summary: basket.Summary{
					AdjustmentResults: []basket.Adjustment{{Value: 200}, {Value: 500}},
				},
				Contents: []basket.Item{
					{UPC: "245865", AdjustmentResults: []basket.ItemAdjustment{{TotalDiscountAmount: 100}}},
					{UPC: "245879", AdjustmentResults: []basket.ItemAdjustment{{TotalDiscountAmount: 250}}},
				},
			},
			Discount: []basket.Discount{{CampaignName: "Example Discount"}},
		},
	}
}

func TestDiscountsToDirectDrafts(t *testing.T) {
	m := newTestMapper(Config{}, &mockShippingMethods{})
	c := testCart()

	drafts := m.DiscountsToDirectDrafts(engineResponse(), c)
	require.Len(t, drafts, 4)

	// Basket-level adjustments target the cart total.
	assert.Equal(t, cart.TargetTotalPrice, drafts[0].Target.Type)
	assert.Equal(t, int64(200), drafts[0].Value.Money[0].CentAmount)
	assert.Equal(t, "GBP", drafts[0].Value.Money[0].CurrencyCode)
	assert.Equal(t, cart.TargetTotalPrice, drafts[1].Target.Type)
	assert.Equal(t, int64(500), drafts[1].Value.Money[0].CentAmount)

	// Per-item adjustments target line items by identifier predicate.
	assert.Equal(t, cart.TargetLineItems, drafts[2].Target.Type)
	assert.Equal(t, `sku="245865"`, drafts[2].Target.Predicate)
	assert.Equal(t, int64(100), drafts[2].Value.Money[0].CentAmount)
	assert.Equal(t, `sku="245879"`, drafts[3].Target.Predicate)
	assert.Equal(t, int64(250), drafts[3].Value.Money[0].CentAmount)
}

func TestBasketToItemDiscounts_UnmatchedIdentifierDropped(t *testing.T) {
	m := newTestMapper(Config{}, &mockShippingMethods{})
	c := testCart()

	resp := engineResponse()
	resp.AnalyseBasketResults.Basket.Contents = append(
		resp.AnalyseBasketResults.Basket.Contents,
		basket.Item{UPC: "999999", AdjustmentResults: []basket.ItemAdjustment{{TotalDiscountAmount: 400}}},
	)

	drafts := m.BasketToItemDiscounts(resp.AdjustedBasket(), c)
	require.Len(t, drafts, 2, "adjustment for an identifier absent from the cart is dropped")
	for _, d := range drafts {
		assert.NotEqual(t, int64(400), d.Value.Money[0].CentAmount)
	}
}

func TestBasketToShippingDiscounts(t *testing.T) {
	m := newTestMapper(Config{ShippingMethodMap: map[string]string{"standard-delivery": "SHIP001"}}, &mockShippingMethods{})
	c := testCart()

	resp := engineResponse()
	resp.AnalyseBasketResults.Basket.Contents = append(
		resp.AnalyseBasketResults.Basket.Contents,
		basket.Item{UPC: "SHIP001", AdjustmentResults: []basket.ItemAdjustment{{TotalDiscountAmount: 300}}},
	)

	drafts := m.BasketToShippingDiscounts(resp.AdjustedBasket(), c)
	require.Len(t, drafts, 1)
	assert.Equal(t, cart.TargetShipping, drafts[0].Target.Type)
	assert.Empty(t, drafts[0].Target.Predicate)
	assert.Equal(t, int64(300), drafts[0].Value.Money[0].CentAmount)
}

func TestBasketToShippingDiscounts_UnmappedIdentifierDropped(t *testing.T) {
	m := newTestMapper(Config{ShippingMethodMap: map[string]string{"standard-delivery": "SHIP001"}}, &mockShippingMethods{})

	resp := engineResponse()
	resp.AnalyseBasketResults.Basket.Contents = []basket.Item{
		{UPC: "SHIP999", AdjustmentResults: []basket.ItemAdjustment{{TotalDiscountAmount: 300}}},
	}

	drafts := m.BasketToShippingDiscounts(resp.AdjustedBasket(), testCart())
	assert.Empty(t, drafts)
}

func TestDiscountsToDirectDrafts_NoAnalysis(t *testing.T) {
	m := newTestMapper(Config{}, &mockShippingMethods{})
	assert.Nil(t, m.DiscountsToDirectDrafts(&basket.Response{}, testCart()))
}

func TestDiscountDescriptions(t *testing.T) {
	m := newTestMapper(Config{}, &mockShippingMethods{})
	assert.Equal(t, []string{"Example Discount"}, m.DiscountDescriptions(engineResponse()))
	assert.Nil(t, m.DiscountDescriptions(nil))
}
