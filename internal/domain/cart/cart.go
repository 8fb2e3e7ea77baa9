// Package cart models the commerce platform resources the integration reads
// and updates: carts, orders, shipping info, custom fields, and the update
// actions sent back to the platform.
package cart

import "sort"

// Payment states reported by the commerce platform on orders.
const (
	PaymentStatePaid = "Paid"
)

// Custom field names managed by the integration on carts and orders.
const (
	FieldIdentityValue    = "loyalty-identityValue"
	FieldVoucherCodes     = "loyalty-voucherCodes"
	FieldSettledStatus    = "loyalty-settledStatus"
	FieldErrors           = "loyalty-errors"
	FieldAppliedDiscounts = "loyalty-appliedDiscounts"
)

// SettledStatusSettled marks an order whose loyalty basket has been settled.
const SettledStatusSettled = "SETTLED"

// Money is an amount in minor currency units (cents).
type Money struct {
	Type           string `json:"type,omitempty"`
	CurrencyCode   string `json:"currencyCode"`
	CentAmount     int64  `json:"centAmount"`
	FractionDigits int    `json:"fractionDigits,omitempty"`
}

// LocalizedString maps locale tags to translated values.
type LocalizedString map[string]string

// First returns the value for the lexicographically first locale. Locale
// selection is not configurable; with a single locale this is simply that
// locale's value.
func (l LocalizedString) First() string {
	if len(l) == 0 {
		return ""
	}
	keys := make([]string, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return l[keys[0]]
}

// Variant identifies a sellable product variant.
type Variant struct {
	SKU string `json:"sku"`
}

// Price wraps the variant price value.
type Price struct {
	Value Money `json:"value"`
}

// LineItem is one priced cart or order line.
type LineItem struct {
	ID         string          `json:"id"`
	Name       LocalizedString `json:"name"`
	Variant    Variant         `json:"variant"`
	Price      Price           `json:"price"`
	TotalPrice Money           `json:"totalPrice"`
	Quantity   int64           `json:"quantity"`
}

// ShippingMethodRef references a shipping method resource by id.
type ShippingMethodRef struct {
	TypeID string `json:"typeId"`
	ID     string `json:"id"`
}

// ShippingInfo describes the cart's chosen shipping method and price.
type ShippingInfo struct {
	ShippingMethodName string             `json:"shippingMethodName"`
	Price              Money              `json:"price"`
	ShippingMethod     *ShippingMethodRef `json:"shippingMethod,omitempty"`
}

// TypeRef references a custom type resource by key.
type TypeRef struct {
	TypeID string `json:"typeId"`
	Key    string `json:"key,omitempty"`
	ID     string `json:"id,omitempty"`
}

// CustomFields holds the custom type reference and field values attached to
// a cart or order.
type CustomFields struct {
	Type   TypeRef        `json:"type"`
	Fields map[string]any `json:"fields"`
}

// String returns the named field as a string, or "" when absent or of
// another type.
func (c *CustomFields) String(name string) string {
	if c == nil || c.Fields == nil {
		return ""
	}
	s, _ := c.Fields[name].(string)
	return s
}

// Strings returns the named field as a string slice. JSON decoding yields
// []any, so both representations are accepted.
func (c *CustomFields) Strings(name string) []string {
	if c == nil || c.Fields == nil {
		return nil
	}
	switch v := c.Fields[name].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Cart is the commerce platform cart resource, reduced to the fields the
// integration consumes.
type Cart struct {
	ID           string        `json:"id"`
	Version      int64         `json:"version"`
	LineItems    []LineItem    `json:"lineItems"`
	TotalPrice   Money         `json:"totalPrice"`
	ShippingInfo *ShippingInfo `json:"shippingInfo,omitempty"`
	Custom       *CustomFields `json:"custom,omitempty"`
}

// Order is the commerce platform order resource, reduced to the fields the
// integration consumes.
type Order struct {
	ID           string        `json:"id"`
	Version      int64         `json:"version"`
	PaymentState string        `json:"paymentState,omitempty"`
	LineItems    []LineItem    `json:"lineItems"`
	TotalPrice   Money         `json:"totalPrice"`
	ShippingInfo *ShippingInfo `json:"shippingInfo,omitempty"`
	Custom       *CustomFields `json:"custom,omitempty"`
}

// ResourceRef identifies the resource a platform message concerns.
type ResourceRef struct {
	TypeID string `json:"typeId"`
	ID     string `json:"id"`
}

// Message is a platform notification about a resource change. Some message
// types embed the full resource (Order); others carry only the reference.
type Message struct {
	ID           string      `json:"id"`
	Type         string      `json:"type"`
	Resource     ResourceRef `json:"resource"`
	Order        *Order      `json:"order,omitempty"`
	PaymentState string      `json:"paymentState,omitempty"`
}

// ShippingMethod is a shipping method resource returned by the platform.
type ShippingMethod struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name,omitempty"`
}
