package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync/atomic"
	"time"

	"github.com/morezero/ocpp-central-system/pkg/metrics"
	"github.com/morezero/ocpp-central-system/pkg/ocppj"
)

const logPrefix = "dispatcher:dispatch"

// Registry maps action names to handlers. Handlers are registered during
// startup; the first Dispatch freezes the registry, after which it is
// read-only and safe for concurrent use.
type Registry struct {
	handlers map[string]Handler
	codec    Codec
	frozen   atomic.Bool
}

// NewRegistry creates an empty registry. A nil codec passes payloads
// through as raw JSON.
func NewRegistry(codec Codec) *Registry {
	if codec == nil {
		codec = rawCodec{}
	}
	return &Registry{
		handlers: make(map[string]Handler),
		codec:    codec,
	}
}

// Register binds a handler to an action. It panics on an empty action, a
// nil handler, a duplicate registration, or registration after the first
// Dispatch.
func (r *Registry) Register(action string, h Handler) {
	if r.frozen.Load() {
		panic(fmt.Sprintf("%s - register %q after dispatch started", logPrefix, action))
	}
	if action == "" {
		panic(fmt.Sprintf("%s - empty action", logPrefix))
	}
	if h == nil {
		panic(fmt.Sprintf("%s - nil handler for %q", logPrefix, action))
	}
	if _, dup := r.handlers[action]; dup {
		panic(fmt.Sprintf("%s - duplicate handler for %q", logPrefix, action))
	}
	r.handlers[action] = h
}

// Handle registers a handler function.
func (r *Registry) Handle(action string, fn func(ctx context.Context, req *Request) (any, error)) {
	r.Register(action, HandlerFunc(fn))
}

// Actions lists the registered actions, sorted.
func (r *Registry) Actions() []string {
	out := make([]string, 0, len(r.handlers))
	for a := range r.handlers {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Dispatch runs the handler for call and returns the terminal message to
// send back: a *ocppj.CallResult or *ocppj.CallError echoing call.ID.
func (r *Registry) Dispatch(ctx context.Context, stationID string, call *ocppj.Call) ocppj.Message {
	r.frozen.Store(true)
	start := time.Now()

	resp := r.dispatch(ctx, stationID, call)

	code := ""
	if ce, ok := resp.(*ocppj.CallError); ok {
		code = string(ce.ErrorCode)
	}
	metrics.RecordDispatch(call.Action, code, time.Since(start))
	return resp
}

func (r *Registry) dispatch(ctx context.Context, stationID string, call *ocppj.Call) ocppj.Message {
	slog.Debug(fmt.Sprintf("%s - station=%s action=%s id=%s", logPrefix, stationID, call.Action, call.ID))

	h, ok := r.handlers[call.Action]
	if !ok {
		return ocppj.NewCallError(call.ID, ocppj.NewError(ocppj.NotImplemented,
			fmt.Sprintf("Action %s is not implemented", call.Action)))
	}

	payload, err := r.codec.DecodeRequest(call.Action, call.Payload)
	if err != nil {
		slog.Info(fmt.Sprintf("%s - rejected %s from %s: %v", logPrefix, call.Action, stationID, err))
		return ocppj.NewCallError(call.ID, ocppj.AsError(err))
	}

	req := &Request{
		StationID: stationID,
		UniqueID:  call.ID,
		Action:    call.Action,
		Payload:   payload,
		Raw:       call.Payload,
	}
	conf, err := invoke(ctx, h, req)
	if err != nil {
		return ocppj.NewCallError(call.ID, handlerError(stationID, call, err))
	}

	raw, err := r.codec.EncodeConfirmation(call.Action, conf)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - %s handler for %s produced an invalid confirmation: %v", logPrefix, call.Action, stationID, err))
		return ocppj.NewCallError(call.ID, ocppj.NewError(ocppj.InternalError, ""))
	}
	return &ocppj.CallResult{ID: call.ID, Payload: raw}
}

func invoke(ctx context.Context, h Handler, req *Request) (conf any, err error) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error(fmt.Sprintf("%s - %s handler panicked: %v\n%s", logPrefix, req.Action, p, debug.Stack()))
			conf, err = nil, fmt.Errorf("%s - handler panic: %v", logPrefix, p)
		}
	}()
	return h.Handle(ctx, req)
}

// handlerError keeps an explicit protocol error as-is and hides everything
// else behind a generic InternalError.
func handlerError(stationID string, call *ocppj.Call, err error) *ocppj.Error {
	var oe *ocppj.Error
	if errors.As(err, &oe) {
		slog.Info(fmt.Sprintf("%s - %s from %s answered with %s", logPrefix, call.Action, stationID, oe.Kind))
		return oe
	}
	slog.Error(fmt.Sprintf("%s - %s handler failed for %s: %v", logPrefix, call.Action, stationID, err))
	return ocppj.NewError(ocppj.InternalError, "")
}
