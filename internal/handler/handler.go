// Package handler is the HTTP boundary: it receives platform notifications
// and cart extension calls, and guarantees a well-formed success response
// even when processing fails, so the shopper's checkout is never broken by
// the integration.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/loyalty-bridge/internal/domain/cart"
	"github.com/xenking/loyalty-bridge/internal/loyalty"
	"github.com/xenking/loyalty-bridge/internal/mapper"
	"github.com/xenking/loyalty-bridge/internal/processor"
	"github.com/xenking/loyalty-bridge/internal/statestore"
)

// Handler serves the integration's two inbound endpoints.
type Handler struct {
	registry *processor.Registry
	seen     *processor.SeenFilter
	mapper   *mapper.Mapper
	wallet   loyalty.Invoker
	baskets  *statestore.BasketStore
	typeKey  string
}

// New creates a Handler.
func New(
	registry *processor.Registry,
	seen *processor.SeenFilter,
	m *mapper.Mapper,
	wallet loyalty.Invoker,
	baskets *statestore.BasketStore,
	typeKey string,
) *Handler {
	return &Handler{
		registry: registry,
		seen:     seen,
		mapper:   m,
		wallet:   wallet,
		baskets:  baskets,
		typeKey:  typeKey,
	}
}

// Register mounts the handler's routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /events", h.HandleEvent)
	mux.HandleFunc("POST /cart/extension", h.HandleCartExtension)
}

func respondJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(body)
}

// genericErrorActions is the benign error-marker response: a recognizable
// custom-field payload instead of a failure status.
func (h *Handler) genericErrorActions() []cart.UpdateAction {
	detail, _ := json.Marshal(cart.ErrorDetail{
		Type:    cart.GenericErrorType,
		Message: "An unexpected error occurred in the loyalty integration",
	})
	return []cart.UpdateAction{
		cart.SetCustomType(h.typeKey, map[string]any{
			cart.FieldErrors: []string{string(detail)},
		}),
	}
}

func logger(r *http.Request) *zap.Logger {
	return zctx.From(r.Context())
}
