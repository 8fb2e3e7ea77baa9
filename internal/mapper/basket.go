// Package mapper translates between the commerce platform's cart/order
// model and the loyalty engine's basket vocabulary, in both directions.
package mapper

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"

	"github.com/xenking/loyalty-bridge/internal/domain/basket"
	"github.com/xenking/loyalty-bridge/internal/domain/cart"
	"github.com/xenking/loyalty-bridge/internal/statestore"
)

// ShippingMethodGetter is the single commerce lookup the mapper performs.
type ShippingMethodGetter interface {
	GetShippingMethods(ctx context.Context, query cart.ShippingMethodQuery) ([]cart.ShippingMethod, error)
}

// Config holds the mapping rules that vary per deployment.
type Config struct {
	// UseItemSKU selects whether basket items carry the variant SKU in the
	// sku field or the upc field. Exactly one is ever set.
	UseItemSKU bool
	// IncomingIdentifier and ParentIncomingIdentifier form the engine
	// location block. The parent is omitted when empty.
	IncomingIdentifier       string
	ParentIncomingIdentifier string
	// ExcludeUnidentifiedCustomers disables open-offer inclusion for carts
	// without a shopper identity.
	ExcludeUnidentifiedCustomers bool
	// ShippingMethodMap maps commerce shipping method keys to the engine
	// identifiers (upc) representing shipping as a basket pseudo-item.
	ShippingMethodMap map[string]string
}

// Mapper performs the bidirectional translation. It is stateless and
// side-effect-free except for the shipping-method lookup and the enriched
// basket load for settlement.
type Mapper struct {
	cfg      Config
	commerce ShippingMethodGetter
	baskets  *statestore.BasketStore
}

// New creates a Mapper.
func New(cfg Config, commerce ShippingMethodGetter, baskets *statestore.BasketStore) *Mapper {
	return &Mapper{cfg: cfg, commerce: commerce, baskets: baskets}
}

// LineItemsToBasketContents maps cart line items one-to-one onto basket
// items.
func (m *Mapper) LineItemsToBasketContents(lineItems []cart.LineItem) []basket.Item {
	contents := make([]basket.Item, 0, len(lineItems))
	for _, li := range lineItems {
		contents = append(contents, m.lineItemToBasketItem(li))
	}
	return contents
}

func (m *Mapper) lineItemToBasketItem(li cart.LineItem) basket.Item {
	unit := li.Price.Value.CentAmount
	item := basket.Item{
		ItemUnitCost:               unit,
		TotalUnitCost:              unit * li.Quantity,
		TotalUnitCostAfterDiscount: unit * li.Quantity,
		Description:                li.Name.First(),
		ItemUnitMetric:             basket.UnitMetricEach,
		ItemUnitCount:              li.Quantity,
		SalesKey:                   basket.SalesKeySale,
	}
	if m.cfg.UseItemSKU {
		item.SKU = li.Variant.SKU
	} else {
		item.UPC = li.Variant.SKU
	}
	return item
}

// ShippingToBasketItem resolves the cart's shipping method against the
// configured shipping-method map and, on a match, represents shipping as a
// basket pseudo-item. Returns nil when there is no shipping info or no
// mapping. The shipping method key is looked up remotely; that lookup is
// the only error source.
func (m *Mapper) ShippingToBasketItem(ctx context.Context, shippingInfo *cart.ShippingInfo) (*basket.Item, error) {
	if len(m.cfg.ShippingMethodMap) == 0 || shippingInfo == nil || shippingInfo.ShippingMethod == nil {
		return nil, nil
	}

	methods, err := m.commerce.GetShippingMethods(ctx, cart.ShippingMethodQuery{
		Where: fmt.Sprintf("id in (%q)", shippingInfo.ShippingMethod.ID),
	})
	if err != nil {
		return nil, errors.Wrap(err, "get shipping methods")
	}
	if len(methods) == 0 {
		return nil, nil
	}

	upc, ok := m.cfg.ShippingMethodMap[methods[0].Key]
	if !ok {
		return nil, nil
	}

	price := shippingInfo.Price.CentAmount
	return &basket.Item{
		UPC:                        upc,
		ItemUnitCost:               price,
		TotalUnitCost:              price,
		TotalUnitCostAfterDiscount: price,
		Description:                shippingInfo.ShippingMethodName,
		ItemUnitMetric:             basket.UnitMetricEach,
		ItemUnitCount:              1,
		SalesKey:                   basket.SalesKeySale,
	}, nil
}

// VoucherCodesToTokens filters out empty codes and wraps the rest as
// campaign tokens.
func (m *Mapper) VoucherCodesToTokens(codes []string) []basket.CampaignToken {
	tokens := make([]basket.CampaignToken, 0, len(codes))
	for _, code := range codes {
		if code == "" {
			continue
		}
		tokens = append(tokens, basket.CampaignToken{Type: basket.TokenKind, Value: code})
	}
	return tokens
}

// CartToOpenPayload assembles the full wallet-open request for a cart.
// Totals are computed by reduction over line items plus the shipping price;
// the engine may apply its own rounding on the way back.
func (m *Mapper) CartToOpenPayload(ctx context.Context, c *cart.Cart, includeIdentity bool) (*basket.OpenRequest, error) {
	contents := m.LineItemsToBasketContents(c.LineItems)

	shippingItem, err := m.ShippingToBasketItem(ctx, c.ShippingInfo)
	if err != nil {
		return nil, err
	}
	if shippingItem != nil {
		contents = append(contents, *shippingItem)
	}

	var totalItems, totalValue int64
	for _, li := range c.LineItems {
		totalItems += li.Quantity
		totalValue += li.Price.Value.CentAmount * li.Quantity
	}
	if c.ShippingInfo != nil {
		totalValue += c.ShippingInfo.Price.CentAmount
	}

	req := &basket.OpenRequest{
		Reference: c.ID,
		Lock:      true,
		Location: basket.Location{
			IncomingIdentifier:       m.cfg.IncomingIdentifier,
			ParentIncomingIdentifier: m.cfg.ParentIncomingIdentifier,
		},
		Examine: m.VoucherCodesToTokens(c.Custom.Strings(cart.FieldVoucherCodes)),
		Options: basket.Options{
			AdjustBasket: basket.Toggle{
				IncludeOpenOffers: !m.cfg.ExcludeUnidentifiedCustomers,
				Enabled:           true,
			},
			AnalyseBasket: basket.Toggle{
				IncludeOpenOffers: !m.cfg.ExcludeUnidentifiedCustomers,
				Enabled:           true,
			},
		},
		Basket: basket.Basket{
			Type: basket.BasketTypeStandard,
			Summary: basket.Summary{
				RedemptionChannel:   basket.ChannelOnline,
				TotalDiscountAmount: basket.DiscountAmount{Promotions: 0},
				TotalItems:          totalItems,
				TotalBasketValue:    totalValue,
			},
			Contents: contents,
		},
	}

	if includeIdentity {
		if identity := c.Custom.String(cart.FieldIdentityValue); identity != "" {
			req.Identity = &basket.Identity{IdentityValue: identity}
		}
	}

	return req, nil
}

// OrderToSettlePayload builds the settle request for a previously opened
// basket, retrieved from the basket store by order reference.
func (m *Mapper) OrderToSettlePayload(ctx context.Context, reference string) (*basket.SettleRequest, error) {
	eb, err := m.baskets.Get(ctx, reference)
	if err != nil {
		return nil, errors.Wrapf(err, "load enriched basket for order %q", reference)
	}

	return &basket.SettleRequest{
		Mode:      basket.ModeActive,
		Reference: reference,
		Location: basket.Location{
			IncomingIdentifier:       m.cfg.IncomingIdentifier,
			ParentIncomingIdentifier: m.cfg.ParentIncomingIdentifier,
		},
		Basket: eb.Basket,
	}, nil
}
