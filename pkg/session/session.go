// Package session binds one charging station connection to its correlation
// table and the dispatch registry. It issues outbound calls, routes inbound
// frames, and serializes everything written to the transport.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"

	"github.com/morezero/ocpp-central-system/pkg/correlation"
	"github.com/morezero/ocpp-central-system/pkg/metrics"
	"github.com/morezero/ocpp-central-system/pkg/ocppj"
)

const logPrefix = "session:session"

const (
	DefaultCallTimeout   = 30 * time.Second
	DefaultMaxIDAttempts = 5
)

// Transport writes one text frame to the station.
type Transport interface {
	Send(frame []byte) error
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(frame []byte) error

func (f TransportFunc) Send(frame []byte) error { return f(frame) }

// Dispatcher produces the terminal response for an inbound call.
// *dispatcher.Registry satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, stationID string, call *ocppj.Call) ocppj.Message
}

// Config tunes a session. Zero fields take their defaults.
type Config struct {
	// CallTimeout bounds how long an outbound call waits for its response.
	CallTimeout time.Duration
	// MaxIDAttempts bounds unique id regeneration on collision.
	MaxIDAttempts int
	NewID         func() string
	Clock         clock.Clock
	Observer      Observer
}

func (c Config) withDefaults() Config {
	if c.CallTimeout <= 0 {
		c.CallTimeout = DefaultCallTimeout
	}
	if c.MaxIDAttempts <= 0 {
		c.MaxIDAttempts = DefaultMaxIDAttempts
	}
	if c.NewID == nil {
		c.NewID = uuid.NewString
	}
	if c.Clock == nil {
		c.Clock = clock.WallClock
	}
	if c.Observer == nil {
		c.Observer = nopObserver{}
	}
	return c
}

// Session is the live state of one station connection.
type Session struct {
	id         string
	transport  Transport
	dispatcher Dispatcher
	table      *correlation.Table
	cfg        Config

	ctx    context.Context
	cancel context.CancelFunc

	sendMu     sync.Mutex
	sendClosed bool

	handlers  sync.WaitGroup
	closeOnce sync.Once
	done      chan struct{}
}

// New creates a session for stationID writing to t and answering inbound
// calls through d. With a nil d every inbound call is answered
// NotImplemented.
func New(stationID string, t Transport, d Dispatcher, cfg Config) *Session {
	cfg = cfg.withDefaults()
	if d == nil {
		d = unhandled{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:         stationID,
		transport:  t,
		dispatcher: d,
		table:      correlation.NewTable(stationID, cfg.Clock),
		cfg:        cfg,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// ID returns the station id.
func (s *Session) ID() string { return s.id }

// Done is closed once the session is closed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Pending returns the number of outbound calls awaiting a response.
func (s *Session) Pending() int { return s.table.Len() }

// CallOption adjusts a single outbound call.
type CallOption func(*callOptions)

type callOptions struct {
	timeout time.Duration
	await   bool
}

// WithTimeout overrides the session call timeout for one call. A
// non-positive d keeps the session default.
func WithTimeout(d time.Duration) CallOption {
	return func(o *callOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithoutAwait sends the call and returns as soon as it is written. Its
// response, if any, is logged as unclaimed.
func WithoutAwait() CallOption {
	return func(o *callOptions) { o.await = false }
}

// Call issues action with payload to the station and waits for the
// response. It returns the CallResult payload, an *ocppj.Error when the
// station answers with a CallError, ocppj.ErrTimeout when the deadline
// passes, or ocppj.ErrConnectionClosed when the connection goes away first.
// Cancelling ctx abandons the call and returns ctx.Err().
func (s *Session) Call(ctx context.Context, action string, payload any, opts ...CallOption) (json.RawMessage, error) {
	o := callOptions{timeout: s.cfg.CallTimeout, await: true}
	for _, opt := range opts {
		opt(&o)
	}

	body, err := ocppj.MarshalPayload(payload)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to encode %s payload: %w", logPrefix, action, err)
	}

	pc, err := s.register(action, o.timeout)
	if err != nil {
		return nil, err
	}
	if !o.await {
		pc.Detach()
	}

	if err := s.write(&ocppj.Call{ID: pc.ID, Action: action, Payload: body}, action); err != nil {
		s.table.Abandon(pc)
		metrics.RecordOutbound(action, "send_failed", 0)
		if errors.Is(err, ocppj.ErrConnectionClosed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ocppj.ErrSendFailed, err)
	}
	if !o.await {
		return nil, nil
	}

	select {
	case out := <-pc.Done():
		metrics.RecordOutbound(action, outcomeLabel(out.Err), s.cfg.Clock.Now().Sub(pc.IssuedAt))
		return out.Payload, out.Err
	case <-ctx.Done():
		s.table.Abandon(pc)
		metrics.RecordOutbound(action, "cancelled", s.cfg.Clock.Now().Sub(pc.IssuedAt))
		return nil, ctx.Err()
	}
}

// register allocates a fresh unique id and records the pending call before
// anything is written, so a fast response always finds its entry.
func (s *Session) register(action string, timeout time.Duration) (*correlation.PendingCall, error) {
	for attempt := 1; attempt <= s.cfg.MaxIDAttempts; attempt++ {
		id := s.cfg.NewID()
		pc, err := s.table.Register(id, action, timeout)
		if err == nil {
			return pc, nil
		}
		if !errors.Is(err, ocppj.ErrDuplicateCorrelation) {
			return nil, err
		}
		slog.Debug(fmt.Sprintf("%s - id %q already pending on %s, attempt %d", logPrefix, id, s.id, attempt))
	}
	return nil, ocppj.NewError(ocppj.InternalError,
		fmt.Sprintf("no unique id for %s after %d attempts", action, s.cfg.MaxIDAttempts)).
		WithCause(ocppj.ErrDuplicateCorrelation)
}

// HandleFrame routes one inbound text frame. Calls are dispatched on their
// own goroutine; responses resolve the matching pending call. Malformed
// frames are logged and dropped, except that a malformed Call with a
// recoverable id is answered with a CallError.
func (s *Session) HandleFrame(raw []byte) {
	msg, err := ocppj.Decode(raw)
	if err != nil {
		s.rejectFrame(err)
		return
	}
	metrics.RecordFrame("in", msg.Type().String())

	switch m := msg.(type) {
	case *ocppj.Call:
		s.cfg.Observer.FrameReceived(s.frameEvent(m, m.Action, raw))
		s.handlers.Add(1)
		go func() {
			defer s.handlers.Done()
			s.respond(m)
		}()

	case *ocppj.CallResult:
		action, _ := s.table.Lookup(m.ID)
		s.cfg.Observer.FrameReceived(s.frameEvent(m, action, raw))
		s.table.Resolve(m.ID, correlation.Outcome{Payload: m.Payload})

	case *ocppj.CallError:
		action, _ := s.table.Lookup(m.ID)
		s.cfg.Observer.FrameReceived(s.frameEvent(m, action, raw))
		s.table.Resolve(m.ID, correlation.Outcome{Err: m.Err()})
	}
}

func (s *Session) respond(call *ocppj.Call) {
	resp := s.dispatcher.Dispatch(s.ctx, s.id, call)
	if err := s.write(resp, call.Action); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to answer %s %q on %s: %v", logPrefix, call.Action, call.ID, s.id, err))
	}
}

// write encodes and writes one message. Writes are serialized so frames
// leave in the order write was called.
func (s *Session) write(m ocppj.Message, action string) error {
	frame, err := ocppj.Encode(m)
	if err != nil {
		return err
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.sendClosed {
		return ocppj.ErrConnectionClosed
	}
	// observed before the write: the answer to a call may be read back
	// before Send returns
	s.cfg.Observer.FrameSent(s.frameEvent(m, action, frame))
	if err := s.transport.Send(frame); err != nil {
		return err
	}
	metrics.RecordFrame("out", m.Type().String())
	return nil
}

func (s *Session) rejectFrame(err error) {
	var de *ocppj.DecodeError
	if !errors.As(err, &de) {
		slog.Warn(fmt.Sprintf("%s - dropped frame from %s: %v", logPrefix, s.id, err))
		return
	}
	metrics.RecordDecodeFailure(string(de.Kind))
	slog.Warn(fmt.Sprintf("%s - dropped malformed frame from %s: %v", logPrefix, s.id, de))
	if !de.RepliesAsCallError() {
		return
	}
	reply := ocppj.NewCallError(de.ID, ocppj.NewError(de.Kind, de.Reason))
	if err := s.write(reply, ""); err != nil {
		slog.Debug(fmt.Sprintf("%s - could not report malformed call %q to %s: %v", logPrefix, de.ID, s.id, err))
	}
}

// Close stops the session: later sends fail, handler contexts are
// cancelled, and every caller still waiting receives
// ocppj.ErrConnectionClosed. It returns the number of calls drained and is
// safe to call more than once.
func (s *Session) Close() int {
	drained := 0
	s.closeOnce.Do(func() {
		s.sendMu.Lock()
		s.sendClosed = true
		s.sendMu.Unlock()

		s.cancel()
		drained = len(s.table.Drain())
		close(s.done)
		slog.Info(fmt.Sprintf("%s - closed session for %s, drained %d pending calls", logPrefix, s.id, drained))
	})
	return drained
}

// Wait blocks until every inbound call dispatched so far has finished.
func (s *Session) Wait() {
	s.handlers.Wait()
}

func (s *Session) frameEvent(m ocppj.Message, action string, frame []byte) FrameEvent {
	if c, ok := m.(*ocppj.Call); ok {
		action = c.Action
	}
	return FrameEvent{
		StationID: s.id,
		Message:   m,
		Action:    action,
		Frame:     frame,
		At:        s.cfg.Clock.Now(),
	}
}

// unhandled answers inbound calls on sessions opened without a dispatcher.
type unhandled struct{}

func (unhandled) Dispatch(_ context.Context, _ string, call *ocppj.Call) ocppj.Message {
	return ocppj.NewCallError(call.ID, ocppj.NewError(ocppj.NotImplemented, fmt.Sprintf("action %s is not supported", call.Action)))
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ocppj.ErrTimeout):
		return "timeout"
	case errors.Is(err, ocppj.ErrConnectionClosed):
		return "closed"
	default:
		return "call_error"
	}
}
