// Package ocppj implements the OCPP-J message envelope: the three JSON array
// shapes exchanged over a charging station connection, their codec, and the
// protocol error taxonomy shared by both directions of traffic.
package ocppj

import (
	"encoding/json"
	"fmt"
)

// MessageType is the first element of every OCPP-J envelope.
type MessageType int

const (
	TypeCall       MessageType = 2
	TypeCallResult MessageType = 3
	TypeCallError  MessageType = 4
)

func (t MessageType) String() string {
	switch t {
	case TypeCall:
		return "Call"
	case TypeCallResult:
		return "CallResult"
	case TypeCallError:
		return "CallError"
	default:
		return fmt.Sprintf("MessageType(%d)", int(t))
	}
}

// Message is one decoded envelope. The concrete types are *Call, *CallResult
// and *CallError.
type Message interface {
	Type() MessageType
	UniqueID() string
}

// Call is a request envelope: [2, uniqueId, action, payload].
type Call struct {
	ID      string
	Action  string
	Payload json.RawMessage
}

// CallResult is a successful terminal response: [3, uniqueId, payload].
type CallResult struct {
	ID      string
	Payload json.RawMessage
}

// CallError is a failed terminal response:
// [4, uniqueId, errorCode, errorDescription, errorDetails].
type CallError struct {
	ID               string
	ErrorCode        ErrorKind
	ErrorDescription string
	ErrorDetails     map[string]any
}

var (
	_ Message = (*Call)(nil)
	_ Message = (*CallResult)(nil)
	_ Message = (*CallError)(nil)
)

func (c *Call) Type() MessageType       { return TypeCall }
func (c *Call) UniqueID() string        { return c.ID }
func (r *CallResult) Type() MessageType { return TypeCallResult }
func (r *CallResult) UniqueID() string  { return r.ID }
func (e *CallError) Type() MessageType  { return TypeCallError }
func (e *CallError) UniqueID() string   { return e.ID }

// Err converts the wire error into an *Error, normalizing unknown codes to
// GenericError and filling in an empty description.
func (e *CallError) Err() *Error {
	return (&Error{
		Kind:        ParseErrorKind(string(e.ErrorCode)),
		Description: e.ErrorDescription,
		Details:     e.ErrorDetails,
	}).normalize()
}

// NewCall marshals payload and builds a Call. A json.RawMessage payload is
// used as-is.
func NewCall(id, action string, payload any) (*Call, error) {
	raw, err := MarshalPayload(payload)
	if err != nil {
		return nil, err
	}
	return &Call{ID: id, Action: action, Payload: raw}, nil
}

// NewCallResult marshals payload and builds a CallResult.
func NewCallResult(id string, payload any) (*CallResult, error) {
	raw, err := MarshalPayload(payload)
	if err != nil {
		return nil, err
	}
	return &CallResult{ID: id, Payload: raw}, nil
}

// NewCallError builds a CallError from a structured error. A nil err
// produces a GenericError.
func NewCallError(id string, err *Error) *CallError {
	if err == nil {
		err = &Error{Kind: GenericError}
	}
	n := err.normalize()
	return &CallError{
		ID:               id,
		ErrorCode:        n.Kind,
		ErrorDescription: n.Description,
		ErrorDetails:     n.Details,
	}
}

// MarshalPayload encodes a payload value. nil encodes as an empty object,
// which is what every OCPP action with no fields expects.
func MarshalPayload(payload any) (json.RawMessage, error) {
	switch p := payload.(type) {
	case nil:
		return json.RawMessage("{}"), nil
	case json.RawMessage:
		if len(p) == 0 {
			return json.RawMessage("{}"), nil
		}
		return p, nil
	case []byte:
		if len(p) == 0 {
			return json.RawMessage("{}"), nil
		}
		return json.RawMessage(p), nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ocppj: marshal payload: %w", err)
	}
	return raw, nil
}
