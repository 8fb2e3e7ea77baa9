package mapper

import (
	"fmt"

	"github.com/xenking/loyalty-bridge/internal/domain/basket"
	"github.com/xenking/loyalty-bridge/internal/domain/cart"
)

// BasketToCartDiscounts maps basket-level adjustments onto totalPrice
// direct discount drafts. Currency and precision are copied from the
// cart's total.
func (m *Mapper) BasketToCartDiscounts(b *basket.Basket, c *cart.Cart) []cart.DirectDiscountDraft {
	drafts := make([]cart.DirectDiscountDraft, 0, len(b.Summary.AdjustmentResults))
	for _, adj := range b.Summary.AdjustmentResults {
		drafts = append(drafts, cart.AbsoluteDiscount(
			adj.Value,
			c.TotalPrice,
			cart.DiscountTarget{Type: cart.TargetTotalPrice},
		))
	}
	return drafts
}

// BasketToItemDiscounts maps per-content-item adjustments onto lineItems
// direct discount drafts, joining on the item identifier against the
// cart's current line items. Adjustments for identifiers the cart no
// longer carries are dropped: the engine may reference items that have
// since left the cart, and one stale entry must not fail the mapping.
func (m *Mapper) BasketToItemDiscounts(b *basket.Basket, c *cart.Cart) []cart.DirectDiscountDraft {
	var drafts []cart.DirectDiscountDraft
	for _, item := range b.Contents {
		li, ok := findLineItemBySKU(c.LineItems, item.UPC)
		if !ok {
			continue
		}
		for _, adj := range item.AdjustmentResults {
			drafts = append(drafts, cart.AbsoluteDiscount(
				adj.TotalDiscountAmount,
				li.TotalPrice,
				cart.DiscountTarget{
					Type:      cart.TargetLineItems,
					Predicate: fmt.Sprintf("sku=%q", item.UPC),
				},
			))
		}
	}
	return drafts
}

// BasketToShippingDiscounts maps adjustments on shipping pseudo-items onto
// shipping direct discount drafts. The join runs against the configured
// shipping-method map, not the cart's shipping line; unmapped identifiers
// are dropped like unmatched items.
func (m *Mapper) BasketToShippingDiscounts(b *basket.Basket, c *cart.Cart) []cart.DirectDiscountDraft {
	var drafts []cart.DirectDiscountDraft
	for _, item := range b.Contents {
		if !m.isShippingIdentifier(item.UPC) {
			continue
		}
		for _, adj := range item.AdjustmentResults {
			drafts = append(drafts, cart.AbsoluteDiscount(
				adj.TotalDiscountAmount,
				c.TotalPrice,
				cart.DiscountTarget{Type: cart.TargetShipping},
			))
		}
	}
	return drafts
}

// DiscountsToDirectDrafts runs all three target-category mappings over an
// engine response and concatenates the drafts: basket-level, per-item,
// then shipping.
func (m *Mapper) DiscountsToDirectDrafts(resp *basket.Response, c *cart.Cart) []cart.DirectDiscountDraft {
	b := resp.AdjustedBasket()
	if b == nil {
		return nil
	}
	drafts := m.BasketToCartDiscounts(b, c)
	drafts = append(drafts, m.BasketToItemDiscounts(b, c)...)
	drafts = append(drafts, m.BasketToShippingDiscounts(b, c)...)
	return drafts
}

// DiscountDescriptions extracts the applied campaign names.
func (m *Mapper) DiscountDescriptions(resp *basket.Response) []string {
	if resp == nil || resp.AnalyseBasketResults == nil {
		return nil
	}
	names := make([]string, 0, len(resp.AnalyseBasketResults.Discount))
	for _, d := range resp.AnalyseBasketResults.Discount {
		names = append(names, d.CampaignName)
	}
	return names
}

func (m *Mapper) isShippingIdentifier(upc string) bool {
	for _, mapped := range m.cfg.ShippingMethodMap {
		if mapped == upc {
			return true
		}
	}
	return false
}

func findLineItemBySKU(items []cart.LineItem, sku string) (cart.LineItem, bool) {
	if sku == "" {
		return cart.LineItem{}, false
	}
	for _, li := range items {
		if li.Variant.SKU == sku {
			return li, true
		}
	}
	return cart.LineItem{}, false
}
