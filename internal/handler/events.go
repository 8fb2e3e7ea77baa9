package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/xenking/loyalty-bridge/internal/domain/cart"
)

// eventResponse is the envelope returned to the notification source. The
// status is informational; the HTTP status is always 200 so the platform
// does not retry into a failing integration indefinitely. Redelivery marks
// messages the dedupe pre-filter has possibly seen before; it is advisory
// (the filter is probabilistic) and never suppresses processing.
type eventResponse struct {
	Status     string `json:"status"`
	Redelivery bool   `json:"redelivery,omitempty"`
}

const (
	statusOK      = "OK"
	statusIgnored = "IGNORED"
	statusError   = "ERROR"
)

// HandleEvent processes one platform notification. Invalid or inapplicable
// messages are skipped silently; processing failures are logged and
// reported with a success-shaped envelope.
func (h *Handler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	lg := logger(r)

	var msg cart.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		lg.Warn("Failed to decode event message", zap.Error(err))
		respondJSON(w, eventResponse{Status: statusIgnored})
		return
	}

	lg = lg.With(zap.String("message_id", msg.ID), zap.String("event_type", msg.Type))

	redelivery := msg.ID != "" && h.seen.CheckAndAdd(msg.ID)
	if redelivery {
		// Possibly a redelivery; the settled-status guard decides, this is
		// advisory only.
		lg.Info("Message possibly seen before, relying on idempotency guard")
	}

	proc, ok := h.registry.For(msg.Type)
	if !ok {
		lg.Debug("No processor registered for event type")
		respondJSON(w, eventResponse{Status: statusIgnored, Redelivery: redelivery})
		return
	}

	if !proc.IsEventValid(r.Context(), &msg) {
		lg.Debug("Event not valid for processing, skipping")
		respondJSON(w, eventResponse{Status: statusIgnored, Redelivery: redelivery})
		return
	}

	actions, err := proc.GenerateActions(r.Context(), &msg)
	if err != nil {
		lg.Error("Failed to generate actions for event", zap.Error(err))
		respondJSON(w, eventResponse{Status: statusError, Redelivery: redelivery})
		return
	}

	for _, action := range actions {
		if err := action(r.Context()); err != nil {
			lg.Error("Deferred action failed", zap.Error(err))
			respondJSON(w, eventResponse{Status: statusError, Redelivery: redelivery})
			return
		}
	}

	respondJSON(w, eventResponse{Status: statusOK, Redelivery: redelivery})
}
