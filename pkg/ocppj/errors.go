package ocppj

import (
	"errors"
	"maps"
)

// ErrorKind is the errorCode carried by a CallError.
type ErrorKind string

const (
	NotImplemented                ErrorKind = "NotImplemented"
	NotSupported                  ErrorKind = "NotSupported"
	InternalError                 ErrorKind = "InternalError"
	ProtocolError                 ErrorKind = "ProtocolError"
	SecurityError                 ErrorKind = "SecurityError"
	FormationViolation            ErrorKind = "FormationViolation"
	PropertyConstraintViolation   ErrorKind = "PropertyConstraintViolation"
	OccurrenceConstraintViolation ErrorKind = "OccurrenceConstraintViolation"
	TypeConstraintViolation       ErrorKind = "TypeConstraintViolation"
	GenericError                  ErrorKind = "GenericError"
)

var defaultDescriptions = map[ErrorKind]string{
	NotImplemented:                "Requested Action is not known by receiver",
	NotSupported:                  "Requested Action is recognized but not supported by the receiver",
	InternalError:                 "An internal error occurred and the receiver was not able to process the requested Action successfully",
	ProtocolError:                 "Payload for Action is incomplete",
	SecurityError:                 "During the processing of Action a security issue occurred preventing receiver from completing the Action successfully",
	FormationViolation:            "Payload for Action is syntactically incorrect or not conform the PDU structure for Action",
	PropertyConstraintViolation:   "Payload is syntactically correct but at least one field contains an invalid value",
	OccurrenceConstraintViolation: "Payload for Action is syntactically correct but at least one of the fields violates occurrence constraints",
	TypeConstraintViolation:       "Payload for Action is syntactically correct but at least one of the fields violates data type constraints",
	GenericError:                  "Any other error not covered by the previous ones",
}

// Valid reports whether k is one of the ten OCPP 1.6 error codes.
func (k ErrorKind) Valid() bool {
	_, ok := defaultDescriptions[k]
	return ok
}

// DefaultDescription returns the standard human-readable text for k.
func (k ErrorKind) DefaultDescription() string {
	if d, ok := defaultDescriptions[k]; ok {
		return d
	}
	return defaultDescriptions[GenericError]
}

// ParseErrorKind maps a wire errorCode onto the taxonomy. Unknown codes
// become GenericError.
func ParseErrorKind(s string) ErrorKind {
	k := ErrorKind(s)
	if k.Valid() {
		return k
	}
	return GenericError
}

// Error is a structured protocol error. Handlers return it to choose the
// CallError sent to the peer, and the issuer returns it when the peer
// answers with a CallError.
type Error struct {
	Kind        ErrorKind
	Description string
	Details     map[string]any
	cause       error
}

// NewError creates an *Error of the given kind.
func NewError(kind ErrorKind, description string) *Error {
	return &Error{Kind: kind, Description: description}
}

func (e *Error) Error() string {
	n := e.normalize()
	return string(n.Kind) + ": " + n.Description
}

func (e *Error) Unwrap() error {
	return e.cause
}

// WithDetails returns a copy of e carrying details.
func (e *Error) WithDetails(details map[string]any) *Error {
	c := *e
	c.Details = maps.Clone(details)
	return &c
}

// WithCause returns a copy of e that unwraps to cause.
func (e *Error) WithCause(cause error) *Error {
	c := *e
	c.cause = cause
	return &c
}

// Is matches another *Error of the same kind, so callers can test
// errors.Is(err, ocppj.NewError(ocppj.NotImplemented, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.normalize().Kind == t.normalize().Kind
}

func (e *Error) normalize() *Error {
	n := *e
	if !n.Kind.Valid() {
		n.Kind = GenericError
	}
	if n.Description == "" {
		n.Description = n.Kind.DefaultDescription()
	}
	return &n
}

var (
	// ErrTimeout is returned to a caller whose deadline passed before a
	// response arrived.
	ErrTimeout = errors.New("ocppj: call timed out")
	// ErrConnectionClosed is returned to callers still waiting when the
	// connection terminates, and to calls issued on a closed connection.
	ErrConnectionClosed = errors.New("ocppj: connection closed")
	// ErrDuplicateCorrelation is returned when a correlation id is already
	// pending on the connection.
	ErrDuplicateCorrelation = errors.New("ocppj: duplicate correlation id")
	// ErrSendFailed is returned when the transport rejects an outbound frame.
	ErrSendFailed = errors.New("ocppj: send failed")
)

// AsError maps any error onto the taxonomy. Structured errors keep their
// kind, decode errors carry their classification, and everything else
// becomes GenericError described by the error text. The result always has a
// non-empty description.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var oe *Error
	if errors.As(err, &oe) {
		return oe.normalize()
	}
	var de *DecodeError
	if errors.As(err, &de) {
		return (&Error{Kind: de.Kind, Description: de.Reason, cause: err}).normalize()
	}
	kind := GenericError
	if errors.Is(err, ErrDuplicateCorrelation) {
		kind = InternalError
	}
	return (&Error{Kind: kind, Description: err.Error(), cause: err}).normalize()
}
