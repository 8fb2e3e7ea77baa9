package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/loyalty-bridge/internal/domain/basket"
	"github.com/xenking/loyalty-bridge/internal/domain/cart"
	"github.com/xenking/loyalty-bridge/internal/loyalty"
)

// extensionRequest is the platform's API extension envelope.
type extensionRequest struct {
	Action   string `json:"action"`
	Resource struct {
		TypeID string    `json:"typeId"`
		Obj    cart.Cart `json:"obj"`
	} `json:"resource"`
}

// extensionResponse carries the update actions back to the platform. The
// status code is always 200; rejecting the extension call would block the
// shopper's checkout.
type extensionResponse struct {
	Actions []cart.UpdateAction `json:"actions"`
}

// HandleCartExtension prices the cart's basket against the loyalty engine
// and returns the discount and custom-field update actions. Any failure is
// contained: the response is still success-shaped, with a generic error
// marker in place of discounts.
func (h *Handler) HandleCartExtension(w http.ResponseWriter, r *http.Request) {
	lg := logger(r)

	var req extensionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		lg.Warn("Failed to decode extension request", zap.Error(err))
		respondJSON(w, extensionResponse{Actions: h.genericErrorActions()})
		return
	}
	if req.Resource.TypeID != "cart" {
		respondJSON(w, extensionResponse{Actions: []cart.UpdateAction{}})
		return
	}

	c := &req.Resource.Obj
	lg = lg.With(zap.String("cart_id", c.ID))

	actions, err := h.cartActions(r.Context(), c, lg)
	if err != nil {
		lg.Error("Failed to process cart extension", zap.Error(err))
		respondJSON(w, extensionResponse{Actions: h.genericErrorActions()})
		return
	}

	respondJSON(w, extensionResponse{Actions: actions})
}

func (h *Handler) cartActions(ctx context.Context, c *cart.Cart, lg *zap.Logger) ([]cart.UpdateAction, error) {
	resp, err := h.openBasket(ctx, c, lg)
	if err != nil {
		return nil, err
	}

	if adjusted := resp.AdjustedBasket(); adjusted != nil {
		eb := basket.EnrichedBasket{
			Basket:   *adjusted,
			Discount: resp.AnalyseBasketResults.Discount,
		}
		if err := h.baskets.Save(ctx, c.ID, eb); err != nil {
			return nil, errors.Wrap(err, "save enriched basket")
		}
	}

	fields := map[string]any{}
	if identity := c.Custom.String(cart.FieldIdentityValue); identity != "" {
		fields[cart.FieldIdentityValue] = identity
	}
	if codes := c.Custom.Strings(cart.FieldVoucherCodes); len(codes) > 0 {
		fields[cart.FieldVoucherCodes] = codes
	}
	if errs := voucherErrors(resp.Examine); len(errs) > 0 {
		fields[cart.FieldErrors] = errs
	}
	if names := h.mapper.DiscountDescriptions(resp); len(names) > 0 {
		fields[cart.FieldAppliedDiscounts] = names
	}

	actions := []cart.UpdateAction{cart.SetCustomType(h.typeKey, fields)}
	if drafts := h.mapper.DiscountsToDirectDrafts(resp, c); len(drafts) > 0 {
		actions = append(actions, cart.SetDirectDiscounts(drafts))
	}
	return actions, nil
}

// openBasket calls the engine with the shopper identity when present. A 404
// from the engine with an identity attached means the identity is unknown
// there; retry once without it so the shopper still gets open offers.
func (h *Handler) openBasket(ctx context.Context, c *cart.Cart, lg *zap.Logger) (*basket.Response, error) {
	payload, err := h.mapper.CartToOpenPayload(ctx, c, true)
	if err != nil {
		return nil, errors.Wrap(err, "build open payload")
	}

	resp, err := h.wallet.OpenBasket(ctx, payload)
	if err == nil {
		return resp, nil
	}

	var statusErr *loyalty.StatusError
	if payload.Identity != nil && errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		lg.Warn("Shopper identity not known to loyalty engine, retrying without identity",
			zap.String("identity", payload.Identity.IdentityValue))

		payload, err = h.mapper.CartToOpenPayload(ctx, c, false)
		if err != nil {
			return nil, errors.Wrap(err, "build open payload")
		}
		return h.wallet.OpenBasket(ctx, payload)
	}
	return nil, err
}

// voucherErrors serializes the rejected examine results as error-marker
// entries.
func voucherErrors(results []basket.ExamineResult) []string {
	var out []string
	for _, res := range results {
		if res.Accepted() {
			continue
		}
		detail, err := json.Marshal(cart.ErrorDetail{
			Type:    *res.ErrorCode,
			Message: res.ErrorMessage,
		})
		if err != nil {
			continue
		}
		out = append(out, string(detail))
	}
	return out
}
