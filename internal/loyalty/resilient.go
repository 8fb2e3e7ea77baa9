package loyalty

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/loyalty-bridge/internal/domain/basket"
	"github.com/xenking/loyalty-bridge/internal/statestore"
	"github.com/xenking/loyalty-bridge/pkg/breaker"
)

// CircuitStateKey is the fixed state-store key for persisted breaker state.
const CircuitStateKey = "circuit-state"

// Invoker is the wallet surface guarded by the breaker.
type Invoker interface {
	OpenBasket(ctx context.Context, req *basket.OpenRequest) (*basket.Response, error)
	SettleBasket(ctx context.Context, req *basket.SettleRequest) (*basket.Response, error)
}

// circuitRecord is the persisted breaker state. Only the minimal state
// needed to resume as Open survives a restart; rolling statistics do not.
type circuitRecord struct {
	Enabled bool              `json:"enabled"`
	State   *breaker.Snapshot `json:"state,omitempty"`
}

var _ Invoker = (*ResilientClient)(nil)

// ResilientClient wraps a wallet Invoker with a circuit breaker whose Open
// state is persisted across restarts: a restart during an Open period keeps
// the circuit Open instead of resetting to Closed and hammering a known
// failing dependency. When administratively disabled it calls straight
// through and never consults the store.
type ResilientClient struct {
	wallet  Invoker
	br      *breaker.Breaker
	store   statestore.Store
	lg      *zap.Logger
	enabled bool
	timeout time.Duration

	done chan struct{}
}

// defaultCallTimeout bounds engine calls when no timeout is configured.
const defaultCallTimeout = 3 * time.Second

// NewResilientClient creates a ResilientClient. enabled=false disables the
// breaker administratively; calls then pass straight through, still bounded
// by timeout. A non-positive timeout falls back to a default.
func NewResilientClient(wallet Invoker, br *breaker.Breaker, store statestore.Store, enabled bool, timeout time.Duration, lg *zap.Logger) *ResilientClient {
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &ResilientClient{
		wallet:  wallet,
		br:      br,
		store:   store,
		lg:      lg,
		enabled: enabled,
		timeout: timeout,
		done:    make(chan struct{}),
	}
}

// Start loads any persisted circuit state and begins consuming breaker
// events. Must be called before the first wallet call.
func (c *ResilientClient) Start(ctx context.Context) error {
	if !c.enabled {
		c.lg.Warn("Circuit breaker is DISABLED, all calls go straight to the loyalty engine")
		return nil
	}

	if err := c.restoreState(ctx); err != nil {
		return err
	}

	switch c.br.State() {
	case breaker.Open:
		c.lg.Error("Initialized circuit breaker, the circuit is OPEN, requests are NOT sent to the loyalty engine")
	default:
		c.lg.Info("Initialized circuit breaker, the circuit is closed, all requests are sent to the loyalty engine")
	}

	go c.consumeEvents()
	return nil
}

// Stop ends the event consumer. Pending persistence writes complete first.
func (c *ResilientClient) Stop() {
	close(c.done)
}

// OpenBasket calls the engine's open operation under the breaker.
func (c *ResilientClient) OpenBasket(ctx context.Context, req *basket.OpenRequest) (*basket.Response, error) {
	var resp *basket.Response
	err := c.fire(ctx, func(ctx context.Context) error {
		var err error
		resp, err = c.wallet.OpenBasket(ctx, req)
		return err
	})
	return resp, err
}

// SettleBasket calls the engine's settle operation under the breaker.
func (c *ResilientClient) SettleBasket(ctx context.Context, req *basket.SettleRequest) (*basket.Response, error) {
	var resp *basket.Response
	err := c.fire(ctx, func(ctx context.Context) error {
		var err error
		resp, err = c.wallet.SettleBasket(ctx, req)
		return err
	})
	return resp, err
}

// fire routes the call through the breaker, which owns timeout policy. With
// the breaker disabled the engine call must still be bounded, so the
// passthrough applies the same per-call timeout itself.
func (c *ResilientClient) fire(ctx context.Context, op func(context.Context) error) error {
	if !c.enabled {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		return op(callCtx)
	}
	return c.br.Execute(ctx, op)
}

// restoreState loads the persisted record, if any, and resumes the breaker
// from it. A corrupt or unreadable record is logged and ignored rather than
// blocking startup.
func (c *ResilientClient) restoreState(ctx context.Context) error {
	raw, err := c.store.Get(ctx, CircuitStateKey)
	if err != nil {
		if errors.Is(err, statestore.ErrNotFound) {
			return nil
		}
		return errors.Wrap(err, "load circuit state")
	}

	var rec circuitRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		c.lg.Warn("Ignoring unreadable persisted circuit state", zap.Error(err))
		return nil
	}
	if rec.State != nil {
		c.br.Restore(*rec.State)
	}
	return nil
}

// consumeEvents turns the breaker's transition stream into logs and
// persistence: state is written exactly on Open and deleted exactly on
// Close, never on individual calls.
func (c *ResilientClient) consumeEvents() {
	for {
		select {
		case <-c.done:
			return
		case ev := <-c.br.Events():
			c.handleEvent(ev)
		}
	}
}

func (c *ResilientClient) handleEvent(ev breaker.Event) {
	switch ev.Kind {
	case breaker.EventOpen:
		c.lg.Warn("Circuit breaker is OPENED, subsequent calls will fail immediately")
		c.saveState()
	case breaker.EventClose:
		c.lg.Info("Circuit breaker is closed, calls will proceed as normal")
		c.deleteState()
	case breaker.EventHalfOpen:
		c.lg.Warn("Circuit breaker is half open, the next call decides whether it opens or closes")
	case breaker.EventFailure:
		c.lg.Error("Loyalty engine call failed", zap.Error(ev.Err))
	case breaker.EventTimeout:
		c.lg.Error("Loyalty engine call timed out")
	case breaker.EventReject:
		c.lg.Error("Loyalty engine call rejected, the circuit is open")
	case breaker.EventSuccess:
		c.lg.Debug("Loyalty engine call succeeded")
	}
}

func (c *ResilientClient) saveState() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	snap := c.br.Snapshot()
	raw, err := json.Marshal(circuitRecord{Enabled: true, State: &snap})
	if err != nil {
		c.lg.Error("Failed to encode circuit state", zap.Error(err))
		return
	}
	if err := c.store.Put(ctx, CircuitStateKey, raw); err != nil {
		c.lg.Error("Failed to persist circuit state", zap.Error(err))
		return
	}
	c.lg.Debug("Saved circuit breaker state")
}

func (c *ResilientClient) deleteState() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.store.Delete(ctx, CircuitStateKey); err != nil {
		c.lg.Error("Failed to delete persisted circuit state", zap.Error(err))
	}
}
