// Package dispatcher routes inbound OCPP calls to action handlers and turns
// each call into exactly one CallResult or CallError.
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/morezero/ocpp-central-system/pkg/ocppj"
)

// Request is one inbound call as seen by a handler.
type Request struct {
	StationID string
	UniqueID  string
	Action    string
	// Payload is the decoded request struct from the catalog, or the raw
	// JSON for actions the catalog does not describe.
	Payload any
	Raw     json.RawMessage
}

// Handler processes one action. Returning an *ocppj.Error selects the
// CallError kind sent back; any other error is reported as InternalError.
type Handler interface {
	Handle(ctx context.Context, req *Request) (any, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req *Request) (any, error)

func (f HandlerFunc) Handle(ctx context.Context, req *Request) (any, error) {
	return f(ctx, req)
}

// Typed adapts a handler that takes the decoded request struct directly.
func Typed[T any](fn func(ctx context.Context, req *Request, payload *T) (any, error)) HandlerFunc {
	return func(ctx context.Context, req *Request) (any, error) {
		payload, ok := req.Payload.(*T)
		if !ok {
			return nil, fmt.Errorf("%s - %s payload has type %T", logPrefix, req.Action, req.Payload)
		}
		return fn(ctx, req, payload)
	}
}

// Codec validates inbound request payloads and outbound confirmations.
// *catalog.Catalog satisfies it.
type Codec interface {
	DecodeRequest(action string, raw json.RawMessage) (any, error)
	EncodeConfirmation(action string, conf any) (json.RawMessage, error)
}

type rawCodec struct{}

func (rawCodec) DecodeRequest(_ string, raw json.RawMessage) (any, error) {
	return raw, nil
}

func (rawCodec) EncodeConfirmation(_ string, conf any) (json.RawMessage, error) {
	return ocppj.MarshalPayload(conf)
}
