// Package processor dispatches commerce platform notifications to
// per-event-type processors that validate applicability, enforce
// idempotency, and produce deferred update actions.
package processor

import (
	"context"

	"github.com/xenking/loyalty-bridge/internal/domain/cart"
)

// DeferredAction is a not-yet-executed update against the commerce
// platform. Executing the actions, in order, is the caller's
// responsibility after IsEventValid returns true.
type DeferredAction func(ctx context.Context) error

// EventProcessor handles one platform event type.
type EventProcessor interface {
	// EventType is the message type tag this processor handles.
	EventType() string
	// IsEventValid reports whether the message should be processed. False
	// means skip silently, never an error.
	IsEventValid(ctx context.Context, msg *cart.Message) bool
	// GenerateActions produces the deferred actions for a valid message.
	// Errors propagate to the boundary, which converts them into a safe
	// response.
	GenerateActions(ctx context.Context, msg *cart.Message) ([]DeferredAction, error)
}

// Registry routes messages to processors by event type tag.
type Registry struct {
	procs map[string]EventProcessor
}

// NewRegistry builds a registry over the given processors.
func NewRegistry(procs ...EventProcessor) *Registry {
	byType := make(map[string]EventProcessor, len(procs))
	for _, p := range procs {
		byType[p.EventType()] = p
	}
	return &Registry{procs: byType}
}

// For returns the processor registered for the event type, if any.
func (r *Registry) For(eventType string) (EventProcessor, bool) {
	p, ok := r.procs[eventType]
	return p, ok
}
