// Package breaker implements a circuit breaker guarding a single remote
// operation.
//
// The breaker tracks call outcomes over a rolling window and moves between
// three states: Closed (calls pass through), Open (calls fail fast), and
// HalfOpen (a single probe call decides the next state). State transitions
// and per-call outcomes are published on an event stream so persistence and
// logging stay outside the state machine, and the minimal state needed to
// resume as Open can be exported and restored across process restarts.
package breaker

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
)

// Errors returned by Execute. Wrapped-call errors pass through unchanged.
var (
	// ErrOpenCircuit is returned without invoking the operation while the
	// circuit is Open.
	ErrOpenCircuit = errors.New("breaker: circuit open")

	// ErrTimeout is returned when the operation exceeds the per-call timeout.
	// A timed-out call counts as a failure.
	ErrTimeout = errors.New("breaker: call timed out")
)

// State is the breaker's logical state.
type State int32

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// EventKind discriminates breaker events.
type EventKind int

const (
	EventSuccess EventKind = iota
	EventFailure
	EventTimeout
	EventReject
	EventOpen
	EventClose
	EventHalfOpen
)

func (k EventKind) String() string {
	switch k {
	case EventSuccess:
		return "success"
	case EventFailure:
		return "failure"
	case EventTimeout:
		return "timeout"
	case EventReject:
		return "reject"
	case EventOpen:
		return "open"
	case EventClose:
		return "close"
	case EventHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Event is one state transition or call outcome.
type Event struct {
	Kind EventKind
	At   time.Time
	Err  error
}

// Options tunes the breaker. Zero values fall back to the defaults below.
type Options struct {
	// Timeout bounds each wrapped call. A call exceeding it counts as a
	// failure and returns ErrTimeout.
	Timeout time.Duration
	// ResetTimeout is how long the circuit stays Open before allowing a
	// half-open probe.
	ResetTimeout time.Duration
	// ErrorThresholdPercentage trips the circuit when the rolling failure
	// percentage reaches it.
	ErrorThresholdPercentage int
	// VolumeThreshold is the minimum number of calls in the rolling window
	// before the error percentage is considered.
	VolumeThreshold int
	// RollingWindow is the span of the outcome-tracking window.
	RollingWindow time.Duration
	// RollingBuckets is the window's bucket count.
	RollingBuckets int
	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

const (
	defaultTimeout        = 3 * time.Second
	defaultResetTimeout   = 30 * time.Second
	defaultErrorThreshold = 50
	defaultVolume         = 10
	defaultWindow         = 10 * time.Second
	defaultBuckets        = 10
)

func (o *Options) withDefaults() {
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.ResetTimeout <= 0 {
		o.ResetTimeout = defaultResetTimeout
	}
	if o.ErrorThresholdPercentage <= 0 {
		o.ErrorThresholdPercentage = defaultErrorThreshold
	}
	if o.VolumeThreshold <= 0 {
		o.VolumeThreshold = defaultVolume
	}
	if o.RollingWindow <= 0 {
		o.RollingWindow = defaultWindow
	}
	if o.RollingBuckets <= 0 {
		o.RollingBuckets = defaultBuckets
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
}

type bucket struct {
	success int
	failure int
}

// Breaker guards one remote operation. Safe for concurrent use, though the
// expected deployment has a single in-flight call per instance.
type Breaker struct {
	opts Options

	mu            sync.Mutex
	state         State
	openedAt      time.Time
	probeInFlight bool

	ring      []bucket
	ringPos   int
	bucketAt  time.Time
	bucketDur time.Duration

	events chan Event
}

// New creates a Closed breaker with the given options.
func New(opts Options) *Breaker {
	opts.withDefaults()
	b := &Breaker{
		opts:      opts,
		state:     Closed,
		ring:      make([]bucket, opts.RollingBuckets),
		bucketDur: opts.RollingWindow / time.Duration(opts.RollingBuckets),
		events:    make(chan Event, 64),
	}
	b.bucketAt = opts.Clock()
	return b
}

// Events exposes the breaker's transition and call-outcome stream. Events
// are dropped, never blocked on, when the consumer lags.
func (b *Breaker) Events() <-chan Event {
	return b.events
}

// State returns the current logical state. An Open circuit whose reset
// timeout has elapsed still reports Open until the next call probes it.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot exports the minimal state needed to resume the breaker after a
// restart. Rolling-window statistics are deliberately excluded.
type Snapshot struct {
	State    string    `json:"status"`
	OpenedAt time.Time `json:"openedAt,omitempty"`
}

// Snapshot returns the breaker's persistable state.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{State: b.state.String(), OpenedAt: b.openedAt}
}

// Restore initializes the breaker from a persisted snapshot. Only an Open
// snapshot changes anything: the circuit resumes Open with its original
// opening time, so the reset timeout is not restarted by the restart.
// Restore emits no events.
func (b *Breaker) Restore(s Snapshot) {
	if s.State != Open.String() {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Open
	b.openedAt = s.OpenedAt
	if b.openedAt.IsZero() {
		b.openedAt = b.opts.Clock()
	}
}

// Execute runs op under the breaker. While Open it fails fast with
// ErrOpenCircuit without invoking op. The op's result or error passes
// through unchanged; a call exceeding the per-call timeout returns
// ErrTimeout and counts as a failure. A dispatched op is never cancelled
// beyond its per-call deadline.
func (b *Breaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if !b.allow() {
		b.emit(EventReject, nil)
		return ErrOpenCircuit
	}

	callCtx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- op(callCtx) }()

	select {
	case err := <-done:
		if err != nil {
			b.record(false)
			b.emit(EventFailure, err)
			return err
		}
		b.record(true)
		b.emit(EventSuccess, nil)
		return nil
	case <-callCtx.Done():
		b.record(false)
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			b.emit(EventTimeout, callCtx.Err())
			return ErrTimeout
		}
		b.emit(EventFailure, callCtx.Err())
		return callCtx.Err()
	}
}

// allow decides whether a call may proceed, handling the Open -> HalfOpen
// transition when the reset timeout has elapsed.
func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case Open:
		if b.opts.Clock().Sub(b.openedAt) < b.opts.ResetTimeout {
			return false
		}
		b.state = HalfOpen
		b.probeInFlight = true
		b.emitLocked(EventHalfOpen, nil)
		return true
	case HalfOpen:
		// Only one probe at a time.
		if b.probeInFlight {
			return false
		}
		b.probeInFlight = true
		return true
	}
	return false
}

// record accounts one call outcome and applies state transitions.
func (b *Breaker) record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.opts.Clock()

	switch b.state {
	case HalfOpen:
		b.probeInFlight = false
		if success {
			b.toClosedLocked()
		} else {
			b.toOpenLocked(now)
		}
	case Closed:
		b.advanceLocked(now)
		cur := &b.ring[b.ringPos]
		if success {
			cur.success++
			return
		}
		cur.failure++
		total, failures := b.countsLocked()
		if total >= b.opts.VolumeThreshold &&
			failures*100 >= total*b.opts.ErrorThresholdPercentage {
			b.toOpenLocked(now)
		}
	case Open:
		// A straggler finishing after the circuit opened; already counted
		// toward the trip, nothing to update.
	}
}

func (b *Breaker) toOpenLocked(now time.Time) {
	b.state = Open
	b.openedAt = now
	b.resetWindowLocked(now)
	b.emitLocked(EventOpen, nil)
}

func (b *Breaker) toClosedLocked() {
	b.state = Closed
	b.openedAt = time.Time{}
	b.resetWindowLocked(b.opts.Clock())
	b.emitLocked(EventClose, nil)
}

func (b *Breaker) resetWindowLocked(now time.Time) {
	for i := range b.ring {
		b.ring[i] = bucket{}
	}
	b.ringPos = 0
	b.bucketAt = now
}

// advanceLocked rotates the ring forward to the bucket covering now.
func (b *Breaker) advanceLocked(now time.Time) {
	steps := int(now.Sub(b.bucketAt) / b.bucketDur)
	if steps <= 0 {
		return
	}
	if steps >= len(b.ring) {
		b.resetWindowLocked(now)
		return
	}
	for range steps {
		b.ringPos = (b.ringPos + 1) % len(b.ring)
		b.ring[b.ringPos] = bucket{}
	}
	b.bucketAt = b.bucketAt.Add(time.Duration(steps) * b.bucketDur)
}

func (b *Breaker) countsLocked() (total, failures int) {
	for _, bk := range b.ring {
		total += bk.success + bk.failure
		failures += bk.failure
	}
	return total, failures
}

func (b *Breaker) emit(kind EventKind, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.emitLocked(kind, err)
}

func (b *Breaker) emitLocked(kind EventKind, err error) {
	select {
	case b.events <- Event{Kind: kind, At: b.opts.Clock(), Err: err}:
	default:
	}
}
