// Package basket models the loyalty engine's wallet vocabulary: baskets of
// priced content items, campaign tokens, and the open/settle payloads.
package basket

// Fixed vocabulary values on outbound basket items.
const (
	UnitMetricEach = "EACH"
	SalesKeySale   = "SALE"

	BasketTypeStandard = "STANDARD"
	ChannelOnline      = "Online"

	TokenKind  = "TOKEN"
	ModeActive = "ACTIVE"
)

// Item is one priced line in a basket. Exactly one of SKU or UPC is set,
// selected by configuration.
type Item struct {
	SKU                        string           `json:"sku,omitempty"`
	UPC                        string           `json:"upc,omitempty"`
	ItemUnitCost               int64            `json:"itemUnitCost"`
	TotalUnitCostAfterDiscount int64            `json:"totalUnitCostAfterDiscount"`
	TotalUnitCost              int64            `json:"totalUnitCost"`
	Description                string           `json:"description"`
	ItemUnitMetric             string           `json:"itemUnitMetric"`
	ItemUnitCount              int64            `json:"itemUnitCount"`
	SalesKey                   string           `json:"salesKey"`
	AdjustmentResults          []ItemAdjustment `json:"adjustmentResults,omitempty"`
}

// Adjustment is a basket-level discount computed by the engine.
type Adjustment struct {
	Value int64 `json:"value"`
}

// ItemAdjustment is a per-content-item discount computed by the engine.
type ItemAdjustment struct {
	TotalDiscountAmount int64 `json:"totalDiscountAmount"`
}

// DiscountAmount is the engine's basket discount summary block. General and
// staff are nullable on the wire.
type DiscountAmount struct {
	General    *int64 `json:"general"`
	Staff      *int64 `json:"staff"`
	Promotions int64  `json:"promotions"`
}

// Summary totals a basket. AdjustmentResults is only populated on engine
// responses.
type Summary struct {
	RedemptionChannel   string         `json:"redemptionChannel"`
	TotalDiscountAmount DiscountAmount `json:"totalDiscountAmount"`
	TotalItems          int64          `json:"totalItems"`
	TotalBasketValue    int64          `json:"totalBasketValue"`
	AdjustmentResults   []Adjustment   `json:"adjustmentResults,omitempty"`
}

// Basket is the engine's representation of a purchase.
type Basket struct {
	Type     string  `json:"type"`
	Summary  Summary `json:"summary"`
	Contents []Item  `json:"contents"`
}

// Identity carries the shopper identifier when identification is requested.
type Identity struct {
	IdentityValue string `json:"identityValue"`
}

// Location identifies the selling location in the engine.
type Location struct {
	IncomingIdentifier       string `json:"incomingIdentifier"`
	ParentIncomingIdentifier string `json:"parentIncomingIdentifier,omitempty"`
}

// CampaignToken is a voucher code submitted for examination.
type CampaignToken struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Toggle enables one basket analysis option.
type Toggle struct {
	IncludeOpenOffers bool `json:"includeOpenOffers"`
	Enabled           bool `json:"enabled"`
}

// Options selects the engine's basket adjustment and analysis behavior.
type Options struct {
	AdjustBasket  Toggle `json:"adjustBasket"`
	AnalyseBasket Toggle `json:"analyseBasket"`
}

// OpenRequest is the outbound wallet-open payload.
type OpenRequest struct {
	Reference string          `json:"reference"`
	Identity  *Identity       `json:"identity,omitempty"`
	Lock      bool            `json:"lock"`
	Location  Location        `json:"location"`
	Examine   []CampaignToken `json:"examine,omitempty"`
	Options   Options         `json:"options"`
	Basket    Basket          `json:"basket"`
}

// SettleRequest finalizes a previously opened basket.
type SettleRequest struct {
	Mode      string   `json:"mode"`
	Reference string   `json:"reference"`
	Location  Location `json:"location"`
	Basket    Basket   `json:"basket"`
}

// Discount describes one applied campaign.
type Discount struct {
	CampaignName string `json:"campaignName"`
}

// AnalyseBasketResults carries the engine's adjusted basket and the applied
// campaign descriptions.
type AnalyseBasketResults struct {
	Basket   Basket     `json:"basket"`
	Discount []Discount `json:"discount,omitempty"`
}

// ExamineResult reports the validation outcome for one submitted voucher.
// A nil ErrorCode means the voucher was accepted.
type ExamineResult struct {
	Value        string  `json:"value"`
	ErrorCode    *string `json:"errorCode"`
	ErrorMessage string  `json:"errorMessage,omitempty"`
}

// Accepted reports whether the voucher passed examination.
func (e ExamineResult) Accepted() bool { return e.ErrorCode == nil }

// Response is the engine's reply to both open and settle calls.
type Response struct {
	AnalyseBasketResults *AnalyseBasketResults `json:"analyseBasketResults"`
	Examine              []ExamineResult       `json:"examine,omitempty"`
}

// AdjustedBasket returns the analysed basket, or nil when the engine
// returned no analysis block.
func (r *Response) AdjustedBasket() *Basket {
	if r == nil || r.AnalyseBasketResults == nil {
		return nil
	}
	return &r.AnalyseBasketResults.Basket
}

// EnrichedBasket is the accepted open response retained for settlement.
type EnrichedBasket struct {
	Basket   Basket     `json:"basket"`
	Discount []Discount `json:"discount,omitempty"`
}
