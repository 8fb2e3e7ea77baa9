package cart

// Direct discount target types.
const (
	TargetTotalPrice = "totalPrice"
	TargetLineItems  = "lineItems"
	TargetShipping   = "shipping"
)

// DiscountValue is an absolute money discount.
type DiscountValue struct {
	Type  string  `json:"type"`
	Money []Money `json:"money"`
}

// DiscountTarget selects what a direct discount applies to: the whole cart
// total, line items matched by predicate, or shipping.
type DiscountTarget struct {
	Type      string `json:"type"`
	Predicate string `json:"predicate,omitempty"`
}

// DirectDiscountDraft instructs the platform to apply a monetary discount to
// a specific target without involving its native promotion engine.
type DirectDiscountDraft struct {
	Value  DiscountValue  `json:"value"`
	Target DiscountTarget `json:"target"`
}

// AbsoluteDiscount builds an absolute-money draft with the currency and
// precision copied from the given reference amount.
func AbsoluteDiscount(centAmount int64, ref Money, target DiscountTarget) DirectDiscountDraft {
	return DirectDiscountDraft{
		Value: DiscountValue{
			Type: "absolute",
			Money: []Money{{
				Type:           ref.Type,
				CurrencyCode:   ref.CurrencyCode,
				CentAmount:     centAmount,
				FractionDigits: ref.FractionDigits,
			}},
		},
		Target: target,
	}
}

// UpdateAction is one entry in an update request's actions list. The
// concrete types below serialize to the platform's polymorphic action JSON.
type UpdateAction interface {
	action() string
}

// SetCustomTypeAction attaches a custom type with field values to a
// resource, replacing any existing custom fields.
type SetCustomTypeAction struct {
	Action string         `json:"action"`
	Type   TypeRef        `json:"type"`
	Fields map[string]any `json:"fields,omitempty"`
}

func (a SetCustomTypeAction) action() string { return a.Action }

// SetCustomType builds a setCustomType action for the type with the given key.
func SetCustomType(typeKey string, fields map[string]any) SetCustomTypeAction {
	return SetCustomTypeAction{
		Action: "setCustomType",
		Type:   TypeRef{TypeID: "type", Key: typeKey},
		Fields: fields,
	}
}

// SetCustomFieldAction sets a single custom field value on a resource that
// already has a custom type.
type SetCustomFieldAction struct {
	Action string `json:"action"`
	Name   string `json:"name"`
	Value  any    `json:"value,omitempty"`
}

func (a SetCustomFieldAction) action() string { return a.Action }

// SetCustomField builds a setCustomField action.
func SetCustomField(name string, value any) SetCustomFieldAction {
	return SetCustomFieldAction{Action: "setCustomField", Name: name, Value: value}
}

// SetDirectDiscountsAction replaces the resource's direct discounts.
type SetDirectDiscountsAction struct {
	Action    string                `json:"action"`
	Discounts []DirectDiscountDraft `json:"discounts"`
}

func (a SetDirectDiscountsAction) action() string { return a.Action }

// SetDirectDiscounts builds a setDirectDiscounts action.
func SetDirectDiscounts(discounts []DirectDiscountDraft) SetDirectDiscountsAction {
	return SetDirectDiscountsAction{Action: "setDirectDiscounts", Discounts: discounts}
}

// ErrorDetail is one entry of the error-marker custom field payload.
type ErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// GenericErrorType marks an unexpected integration failure. The surrounding
// commerce flow treats it as informational and proceeds uninterrupted.
const GenericErrorType = "LOYALTY_GENERIC_ERROR"
