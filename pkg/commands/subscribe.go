package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/ocpp-central-system/pkg/commsutil"
)

const subscribeLogPrefix = "commands:subscribe"

// DefaultRequestTimeout bounds one command including the station's answer.
const DefaultRequestTimeout = 60 * time.Second

// Listener serves commands received on a COMMS subject.
type Listener struct {
	sub     *comms.Subscription
	handler *Handler
	timeout time.Duration
	ctx     context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	closed  bool
	running sync.WaitGroup
}

func newListener(h *Handler, timeout time.Duration) *Listener {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Listener{handler: h, timeout: timeout, ctx: ctx, cancel: cancel}
}

// Listen subscribes h to subject. Each message is handled on its own
// goroutine so a slow station does not hold up the others. Commands are
// bounded by timeout unless the request asks for less.
func Listen(nc *comms.Conn, subject string, h *Handler, timeout time.Duration) (*Listener, error) {
	if subject == "" {
		subject = commsutil.SubjectCommands
	}
	l := newListener(h, timeout)
	sub, err := nc.Subscribe(subject, l.handle)
	if err != nil {
		l.cancel()
		return nil, fmt.Errorf("%s - failed to subscribe to %s: %w", subscribeLogPrefix, subject, err)
	}
	l.sub = sub
	slog.Info(fmt.Sprintf("%s - Subscribed to %s", subscribeLogPrefix, subject))
	return l, nil
}

// handle starts serving msg unless the listener is shutting down.
func (l *Listener) handle(msg *comms.Msg) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		slog.Debug(fmt.Sprintf("%s - dropped command received during shutdown", subscribeLogPrefix))
		return
	}
	l.running.Add(1)
	l.mu.Unlock()

	go func() {
		defer l.running.Done()
		respond(msg, serve(l.ctx, l.handler, msg.Data, l.timeout))
	}()
}

func serve(ctx context.Context, h *Handler, data []byte, timeout time.Duration) *Response {
	var req Request
	if err := commsutil.DecodePayload(data, &req); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to decode request: %v", subscribeLogPrefix, err))
		return errorResponse("", CodeInvalidRequest, "Failed to decode request", false)
	}

	// the caller's own timeout wins when it is shorter, with room to answer
	if req.TimeoutMs > 0 {
		if d := time.Duration(req.TimeoutMs)*time.Millisecond + time.Second; d < timeout {
			timeout = d
		}
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return h.Handle(reqCtx, &req)
}

func respond(msg *comms.Msg, resp *Response) {
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to encode response: %v", subscribeLogPrefix, err))
		return
	}
	if err := msg.Respond(data); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to respond: %v", subscribeLogPrefix, err))
	}
}

// Close unsubscribes, cancels commands still waiting on stations and waits
// for them to answer.
func (l *Listener) Close() error {
	err := l.sub.Unsubscribe()
	l.stop()
	return err
}

func (l *Listener) stop() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.cancel()
	l.running.Wait()
}
