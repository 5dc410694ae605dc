// Package commands accepts operator commands over COMMS request/reply and
// forwards them to connected stations.
package commands

import "encoding/json"

// Request types.
const (
	TypeCall     = "call"
	TypeStations = "stations"
)

// Request is the JSON envelope of an incoming command.
type Request struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Station string          `json:"station,omitempty"`
	Action  string          `json:"action,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Await   *bool           `json:"await,omitempty"`

	// Raw forwards params without checking them against the action's
	// request schema.
	Raw       bool               `json:"raw,omitempty"`
	// TimeoutMs overrides the call timeout for this command.
	TimeoutMs int                `json:"timeoutMs,omitempty"`
	Ctx       *InvocationContext `json:"ctx,omitempty"`
}

// awaits reports whether the caller wants the station's confirmation.
func (r *Request) awaits() bool {
	return r.Await == nil || *r.Await
}

// Response is the JSON envelope of a command response.
type Response struct {
	ID     string          `json:"id"`
	Ok     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ErrorDetail    `json:"error,omitempty"`
}

// ErrorDetail holds structured error information.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	Retryable bool   `json:"retryable"`
}

// InvocationContext holds context from the caller.
type InvocationContext struct {
	RequestID     string `json:"requestId,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
	UserID        string `json:"userId,omitempty"`
}

// Error codes that are not OCPP error kinds.
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeInvalidArgument    = "INVALID_ARGUMENT"
	CodeNotFound           = "NOT_FOUND"
	CodeTimeout            = "TIMEOUT"
	CodeConnectionClosed   = "CONNECTION_CLOSED"
	CodeSendFailed         = "SEND_FAILED"
	CodeInvalidResponse    = "INVALID_RESPONSE"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeUnknownRequestType = "UNKNOWN_TYPE"
)

func errorResponse(id, code, message string, retryable bool) *Response {
	return &Response{
		ID: id,
		Ok: false,
		Error: &ErrorDetail{
			Code:      code,
			Message:   message,
			Retryable: retryable,
		},
	}
}
