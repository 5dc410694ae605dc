package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/morezero/ocpp-central-system/pkg/csms"
	"github.com/morezero/ocpp-central-system/pkg/metrics"
	"github.com/morezero/ocpp-central-system/pkg/ocppj"
	"github.com/morezero/ocpp-central-system/pkg/session"
)

const logPrefix = "commands:handler"

// Issuer sends a command to a station. *csms.Commands satisfies it.
type Issuer interface {
	Issue(ctx context.Context, stationID, action string, params json.RawMessage, opts csms.IssueOptions) (json.RawMessage, error)
}

// StationLister lists the connected stations. *session.Manager satisfies it.
type StationLister interface {
	Stations() []string
}

// Handler turns command envelopes into station calls.
type Handler struct {
	issuer   Issuer
	stations StationLister
}

// NewHandler creates a Handler.
func NewHandler(issuer Issuer, stations StationLister) *Handler {
	return &Handler{issuer: issuer, stations: stations}
}

// Handle executes one command and builds its response. It never returns nil.
func (h *Handler) Handle(ctx context.Context, req *Request) *Response {
	switch req.Type {
	case TypeStations:
		ids := h.stations.Stations()
		if ids == nil {
			ids = []string{}
		}
		data, err := json.Marshal(map[string]any{"stations": ids})
		if err != nil {
			return errorResponse(req.ID, CodeInternalError, err.Error(), true)
		}
		return &Response{ID: req.ID, Ok: true, Result: data}
	case TypeCall, "":
		return h.call(ctx, req)
	default:
		return errorResponse(req.ID, CodeUnknownRequestType, fmt.Sprintf("unknown request type %q", req.Type), false)
	}
}

func (h *Handler) call(ctx context.Context, req *Request) *Response {
	if req.Station == "" || req.Action == "" {
		return errorResponse(req.ID, CodeInvalidArgument, "station and action are required", false)
	}

	opts := csms.IssueOptions{NoWait: !req.awaits(), Raw: req.Raw}
	if req.TimeoutMs > 0 {
		opts.Timeout = time.Duration(req.TimeoutMs) * time.Millisecond
	}

	slog.Info(fmt.Sprintf("%s - %s to %s (await=%v)", logPrefix, req.Action, req.Station, !opts.NoWait))
	result, err := h.issuer.Issue(ctx, req.Station, req.Action, req.Params, opts)
	if err != nil {
		resp := errorFor(req.ID, err)
		metrics.RecordCommand(req.Action, resp.Error.Code)
		slog.Warn(fmt.Sprintf("%s - %s to %s failed: %v", logPrefix, req.Action, req.Station, err))
		return resp
	}
	metrics.RecordCommand(req.Action, "ok")
	return &Response{ID: req.ID, Ok: true, Result: result}
}

// errorFor maps a command failure onto a response. Failures on the way to
// the station are retryable; answers from the station are not.
func errorFor(id string, err error) *Response {
	switch {
	case errors.Is(err, session.ErrNotConnected):
		return errorResponse(id, CodeNotFound, err.Error(), false)
	case errors.Is(err, ocppj.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return errorResponse(id, CodeTimeout, err.Error(), true)
	case errors.Is(err, ocppj.ErrConnectionClosed):
		return errorResponse(id, CodeConnectionClosed, err.Error(), true)
	case errors.Is(err, ocppj.ErrSendFailed):
		return errorResponse(id, CodeSendFailed, err.Error(), true)
	case errors.Is(err, csms.ErrInvalidCommand):
		return protocolErrorResponse(id, CodeInvalidArgument, err)
	case errors.Is(err, csms.ErrInvalidConfirmation):
		return protocolErrorResponse(id, CodeInvalidResponse, err)
	}

	var oe *ocppj.Error
	if errors.As(err, &oe) {
		// the station answered with a CallError
		return protocolErrorResponse(id, string(ocppj.AsError(oe).Kind), err)
	}
	return errorResponse(id, CodeInternalError, err.Error(), true)
}

func protocolErrorResponse(id, code string, err error) *Response {
	resp := errorResponse(id, code, err.Error(), false)
	oe := ocppj.AsError(err)
	details := map[string]any{"errorCode": string(oe.Kind), "errorDescription": oe.Description}
	if len(oe.Details) > 0 {
		details["errorDetails"] = oe.Details
	}
	resp.Error.Details = details
	return resp
}
