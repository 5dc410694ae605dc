// Package correlation tracks the calls a connection has issued and is still
// waiting on, keyed by their unique id.
package correlation

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/juju/clock"

	"github.com/morezero/ocpp-central-system/pkg/metrics"
	"github.com/morezero/ocpp-central-system/pkg/ocppj"
)

const logPrefix = "correlation:table"

// Outcome is what a pending call resolves to: the CallResult payload, or an
// error (*ocppj.Error for a CallError, ocppj.ErrTimeout, or
// ocppj.ErrConnectionClosed).
type Outcome struct {
	Payload json.RawMessage
	Err     error
}

// PendingCall is one outstanding outbound call.
type PendingCall struct {
	ID       string
	Action   string
	IssuedAt time.Time
	// Deadline is zero when the call never expires.
	Deadline time.Time

	done     chan Outcome
	timer    clock.Timer
	detached atomic.Bool
}

// Done delivers exactly one Outcome.
func (p *PendingCall) Done() <-chan Outcome {
	return p.done
}

// Detach marks the call as having no local waiter. A response that later
// resolves it is reported as unmatched.
func (p *PendingCall) Detach() {
	p.detached.Store(true)
}

func (p *PendingCall) deliver(o Outcome) {
	if p.timer != nil {
		p.timer.Stop()
	}
	p.done <- o
}

// Table is the per-connection correlation table. All methods are safe for
// concurrent use.
type Table struct {
	station string
	clock   clock.Clock

	mu      sync.Mutex
	pending map[string]*PendingCall
	closed  bool
}

// NewTable creates an empty table for the named station. A nil clock uses
// the wall clock.
func NewTable(station string, clk clock.Clock) *Table {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Table{
		station: station,
		clock:   clk,
		pending: make(map[string]*PendingCall),
	}
}

// Register records a new pending call. A positive timeout arms a deadline
// after which the call expires with ocppj.ErrTimeout. Registering an id that
// is already pending fails with ocppj.ErrDuplicateCorrelation; registering
// on a drained table fails with ocppj.ErrConnectionClosed.
func (t *Table) Register(id, action string, timeout time.Duration) (*PendingCall, error) {
	now := t.clock.Now()
	pc := &PendingCall{
		ID:       id,
		Action:   action,
		IssuedAt: now,
		done:     make(chan Outcome, 1),
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ocppj.ErrConnectionClosed
	}
	if _, exists := t.pending[id]; exists {
		return nil, fmt.Errorf("%s - %w: %s", logPrefix, ocppj.ErrDuplicateCorrelation, id)
	}
	if timeout > 0 {
		pc.Deadline = now.Add(timeout)
		pc.timer = t.clock.AfterFunc(timeout, func() { t.expire(pc) })
	}
	t.pending[id] = pc
	return pc, nil
}

// Resolve completes the pending call with the given id. It reports false when
// no call is pending under that id, or when the call had no local waiter;
// both cases are logged as unmatched responses.
func (t *Table) Resolve(id string, o Outcome) bool {
	t.mu.Lock()
	pc, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	t.mu.Unlock()

	if !ok {
		slog.Warn(fmt.Sprintf("%s - unmatched response from %s for id %q", logPrefix, t.station, id))
		metrics.RecordUnmatchedResponse()
		return false
	}
	pc.deliver(o)
	if pc.detached.Load() {
		slog.Info(fmt.Sprintf("%s - response from %s for unawaited %s call %q", logPrefix, t.station, pc.Action, id))
		metrics.RecordUnmatchedResponse()
		return false
	}
	return true
}

// Expire removes the pending call with the given id and wakes its waiter
// with ocppj.ErrTimeout.
func (t *Table) Expire(id string) bool {
	t.mu.Lock()
	pc, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	pc.deliver(Outcome{Err: ocppj.ErrTimeout})
	return true
}

// Abandon is Expire for a specific registration. It does nothing if the id
// has since been resolved and registered again by another call.
func (t *Table) Abandon(pc *PendingCall) bool {
	return t.expire(pc)
}

func (t *Table) expire(pc *PendingCall) bool {
	t.mu.Lock()
	cur, ok := t.pending[pc.ID]
	if !ok || cur != pc {
		t.mu.Unlock()
		return false
	}
	delete(t.pending, pc.ID)
	t.mu.Unlock()

	slog.Debug(fmt.Sprintf("%s - %s call %q to %s expired", logPrefix, pc.Action, pc.ID, t.station))
	pc.deliver(Outcome{Err: ocppj.ErrTimeout})
	return true
}

// Drain closes the table. Every pending call is woken with
// ocppj.ErrConnectionClosed and later registrations fail. Drain returns the
// calls it completed; calling it again returns nothing.
func (t *Table) Drain() []*PendingCall {
	t.mu.Lock()
	t.closed = true
	drained := make([]*PendingCall, 0, len(t.pending))
	for id, pc := range t.pending {
		drained = append(drained, pc)
		delete(t.pending, id)
	}
	t.mu.Unlock()

	for _, pc := range drained {
		pc.deliver(Outcome{Err: ocppj.ErrConnectionClosed})
	}
	if len(drained) > 0 {
		slog.Info(fmt.Sprintf("%s - drained %d pending calls for %s", logPrefix, len(drained), t.station))
	}
	return drained
}

// Lookup returns the action of a pending call.
func (t *Table) Lookup(id string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pc, ok := t.pending[id]
	if !ok {
		return "", false
	}
	return pc.Action, true
}

// Len returns the number of pending calls.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Closed reports whether Drain has been called.
func (t *Table) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
