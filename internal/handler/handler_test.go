package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/loyalty-bridge/internal/domain/basket"
	"github.com/xenking/loyalty-bridge/internal/domain/cart"
	"github.com/xenking/loyalty-bridge/internal/loyalty"
	"github.com/xenking/loyalty-bridge/internal/mapper"
	"github.com/xenking/loyalty-bridge/internal/processor"
	"github.com/xenking/loyalty-bridge/internal/statestore"
	"github.com/xenking/loyalty-bridge/pkg/breaker"
)

const testTypeKey = "loyalty-cart-type"

type stubWallet struct {
	openCalls []*basket.OpenRequest
	resp      *basket.Response
	err       error
	// errOnce fails only the first open call.
	errOnce error
}

func (s *stubWallet) OpenBasket(_ context.Context, req *basket.OpenRequest) (*basket.Response, error) {
	s.openCalls = append(s.openCalls, req)
	if s.errOnce != nil {
		err := s.errOnce
		s.errOnce = nil
		return nil, err
	}
	return s.resp, s.err
}

func (s *stubWallet) SettleBasket(context.Context, *basket.SettleRequest) (*basket.Response, error) {
	return s.resp, s.err
}

type noShipping struct{}

func (noShipping) GetShippingMethods(context.Context, cart.ShippingMethodQuery) ([]cart.ShippingMethod, error) {
	return nil, nil
}

type stubProcessor struct {
	valid    bool
	actions  []processor.DeferredAction
	err      error
	executed int
}

func (p *stubProcessor) EventType() string { return "OrderCreated" }

func (p *stubProcessor) IsEventValid(context.Context, *cart.Message) bool { return p.valid }

func (p *stubProcessor) GenerateActions(context.Context, *cart.Message) ([]processor.DeferredAction, error) {
	return p.actions, p.err
}

func newTestHandler(t *testing.T, wallet loyalty.Invoker, proc processor.EventProcessor) (*Handler, *statestore.BasketStore) {
	t.Helper()

	baskets := statestore.NewBasketStore(statestore.NewMemory())
	m := mapper.New(mapper.Config{IncomingIdentifier: "outlet1"}, noShipping{}, baskets)
	h := New(
		processor.NewRegistry(proc),
		processor.NewSeenFilter(1000, 0.01),
		m,
		wallet,
		baskets,
		testTypeKey,
	)
	return h, baskets
}

func doRequest(t *testing.T, h *Handler, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	mux := http.NewServeMux()
	h.Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw)))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	return rec, decoded
}

func extensionBody(c cart.Cart) map[string]any {
	return map[string]any{
		"action": "Update",
		"resource": map[string]any{
			"typeId": "cart",
			"obj":    c,
		},
	}
}

func testCart() cart.Cart {
	return cart.Cart{
		ID:      "cart-1",
		Version: 3,
		LineItems: []cart.LineItem{{
			Name:       cart.LocalizedString{"en": "Bottled water"},
			Variant:    cart.Variant{SKU: "245865"},
			Price:      cart.Price{Value: cart.Money{CurrencyCode: "GBP", CentAmount: 1000}},
			TotalPrice: cart.Money{CurrencyCode: "GBP", CentAmount: 2000},
			Quantity:   2,
		}},
		TotalPrice: cart.Money{CurrencyCode: "GBP", CentAmount: 2000},
	}
}

func engineResponse() *basket.Response {
	return &basket.Response{
		AnalyseBasketResults: &basket.AnalyseBasketResults{
			Basket: basket.Basket{
				Type: basket.BasketTypeStandard,
				Summary: basket.Summary{
					TotalBasketValue:  2000,
					AdjustmentResults: []basket.Adjustment{{Value: 200}},
				},
				Contents: []basket.Item{{
					UPC:               "245865",
					AdjustmentResults: []basket.ItemAdjustment{{TotalDiscountAmount: 100}},
				}},
			},
			Discount: []basket.Discount{{CampaignName: "Example Discount"}},
		},
	}
}

func actionTypes(t *testing.T, decoded map[string]any) []string {
	t.Helper()

	raw, ok := decoded["actions"].([]any)
	require.True(t, ok, "response must carry an actions array")

	types := make([]string, 0, len(raw))
	for _, a := range raw {
		m, ok := a.(map[string]any)
		require.True(t, ok)
		types = append(types, m["action"].(string))
	}
	return types
}

func TestCartExtensionAppliesDiscounts(t *testing.T) {
	wallet := &stubWallet{resp: engineResponse()}
	h, baskets := newTestHandler(t, wallet, &stubProcessor{})

	rec, decoded := doRequest(t, h, "/cart/extension", extensionBody(testCart()))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []string{"setCustomType", "setDirectDiscounts"}, actionTypes(t, decoded))

	require.Len(t, wallet.openCalls, 1)
	assert.Equal(t, "cart-1", wallet.openCalls[0].Reference)
	assert.True(t, wallet.openCalls[0].Lock)

	eb, err := baskets.Get(context.Background(), "cart-1")
	require.NoError(t, err, "adjusted basket must be stored for settlement")
	assert.Equal(t, int64(200), eb.Basket.Summary.AdjustmentResults[0].Value)
	require.Len(t, eb.Discount, 1)
	assert.Equal(t, "Example Discount", eb.Discount[0].CampaignName)
}

func TestCartExtensionEngineFailureReturnsErrorMarker(t *testing.T) {
	wallet := &stubWallet{err: errors.New("engine unreachable")}
	h, baskets := newTestHandler(t, wallet, &stubProcessor{})

	rec, decoded := doRequest(t, h, "/cart/extension", extensionBody(testCart()))
	require.Equal(t, http.StatusOK, rec.Code, "engine failure must not break checkout")

	require.Equal(t, []string{"setCustomType"}, actionTypes(t, decoded))

	raw := rec.Body.String()
	assert.Contains(t, raw, cart.GenericErrorType)
	assert.NotContains(t, raw, "setDirectDiscounts")

	_, err := baskets.Get(context.Background(), "cart-1")
	require.ErrorIs(t, err, statestore.ErrNotFound)
}

func TestCartExtensionTimeoutContained(t *testing.T) {
	wallet := &stubWallet{err: breaker.ErrTimeout}
	h, _ := newTestHandler(t, wallet, &stubProcessor{})

	rec, decoded := doRequest(t, h, "/cart/extension", extensionBody(testCart()))
	require.Equal(t, http.StatusOK, rec.Code, "an engine timeout must not break checkout")
	require.Equal(t, []string{"setCustomType"}, actionTypes(t, decoded))
	assert.Contains(t, rec.Body.String(), cart.GenericErrorType)
}

func TestCartExtensionRetriesWithoutUnknownIdentity(t *testing.T) {
	wallet := &stubWallet{
		resp:    engineResponse(),
		errOnce: &loyalty.StatusError{StatusCode: http.StatusNotFound},
	}
	h, _ := newTestHandler(t, wallet, &stubProcessor{})

	c := testCart()
	c.Custom = &cart.CustomFields{Fields: map[string]any{
		cart.FieldIdentityValue: "shopper-77",
	}}

	rec, decoded := doRequest(t, h, "/cart/extension", extensionBody(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, actionTypes(t, decoded), "setDirectDiscounts")

	require.Len(t, wallet.openCalls, 2)
	require.NotNil(t, wallet.openCalls[0].Identity)
	assert.Equal(t, "shopper-77", wallet.openCalls[0].Identity.IdentityValue)
	assert.Nil(t, wallet.openCalls[1].Identity, "retry must drop the unknown identity")
}

func TestCartExtensionSurfacesRejectedVouchers(t *testing.T) {
	code := "PCEXNF"
	resp := engineResponse()
	resp.Examine = []basket.ExamineResult{
		{Value: "good-code"},
		{Value: "bad-code", ErrorCode: &code, ErrorMessage: "Voucher invalid"},
	}
	h, _ := newTestHandler(t, &stubWallet{resp: resp}, &stubProcessor{})

	rec, _ := doRequest(t, h, "/cart/extension", extensionBody(testCart()))
	require.Equal(t, http.StatusOK, rec.Code)

	raw := rec.Body.String()
	assert.Contains(t, raw, "PCEXNF")
	assert.Contains(t, raw, "Voucher invalid")
	assert.NotContains(t, raw, "good-code", "accepted vouchers produce no error entry")
}

func TestCartExtensionIgnoresOtherResources(t *testing.T) {
	wallet := &stubWallet{resp: engineResponse()}
	h, _ := newTestHandler(t, wallet, &stubProcessor{})

	body := map[string]any{
		"action":   "Update",
		"resource": map[string]any{"typeId": "payment"},
	}
	rec, decoded := doRequest(t, h, "/cart/extension", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, actionTypes(t, decoded))
	assert.Empty(t, wallet.openCalls)
}

func TestEventDispatchExecutesActions(t *testing.T) {
	proc := &stubProcessor{valid: true}
	proc.actions = []processor.DeferredAction{
		func(context.Context) error { proc.executed++; return nil },
		func(context.Context) error { proc.executed++; return nil },
	}
	h, _ := newTestHandler(t, &stubWallet{}, proc)

	rec, decoded := doRequest(t, h, "/events", cart.Message{
		ID:   "msg-1",
		Type: "OrderCreated",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, statusOK, decoded["status"])
	assert.Equal(t, 2, proc.executed)
}

func TestEventRedeliveryFlaggedButStillProcessed(t *testing.T) {
	proc := &stubProcessor{valid: true}
	proc.actions = []processor.DeferredAction{
		func(context.Context) error { proc.executed++; return nil },
	}
	h, _ := newTestHandler(t, &stubWallet{}, proc)

	msg := cart.Message{ID: "msg-dup", Type: "OrderCreated"}

	_, first := doRequest(t, h, "/events", msg)
	assert.Nil(t, first["redelivery"], "first delivery must not be flagged")

	_, second := doRequest(t, h, "/events", msg)
	assert.Equal(t, true, second["redelivery"])
	assert.Equal(t, statusOK, second["status"])
	assert.Equal(t, 2, proc.executed, "a flagged redelivery must still be processed")
}

func TestEventInvalidMessageSkippedSilently(t *testing.T) {
	proc := &stubProcessor{valid: false}
	h, _ := newTestHandler(t, &stubWallet{}, proc)

	rec, decoded := doRequest(t, h, "/events", cart.Message{ID: "msg-2", Type: "OrderCreated"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, statusIgnored, decoded["status"])
	assert.Zero(t, proc.executed)
}

func TestEventUnknownTypeIgnored(t *testing.T) {
	h, _ := newTestHandler(t, &stubWallet{}, &stubProcessor{valid: true})

	rec, decoded := doRequest(t, h, "/events", cart.Message{ID: "msg-3", Type: "CartDeleted"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, statusIgnored, decoded["status"])
}

func TestEventActionFailureReportsErrorStatus(t *testing.T) {
	proc := &stubProcessor{valid: true}
	proc.actions = []processor.DeferredAction{
		func(context.Context) error { return errors.New("platform update failed") },
	}
	h, _ := newTestHandler(t, &stubWallet{}, proc)

	rec, decoded := doRequest(t, h, "/events", cart.Message{ID: "msg-4", Type: "OrderCreated"})
	require.Equal(t, http.StatusOK, rec.Code, "failures still respond with a success status code")
	assert.Equal(t, statusError, decoded["status"])
}

func TestEventMalformedBodyIgnored(t *testing.T) {
	h, _ := newTestHandler(t, &stubWallet{}, &stubProcessor{valid: true})

	mux := http.NewServeMux()
	h.Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/events", strings.NewReader("{not json")))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), statusIgnored)
}
