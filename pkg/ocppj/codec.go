package ocppj

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// DecodeError describes a frame that could not be decoded. ID holds the
// correlation id when one could still be recovered from the frame, and Type
// the message type when the first element was readable.
type DecodeError struct {
	Kind   ErrorKind
	Type   MessageType
	ID     string
	Reason string
}

func (e *DecodeError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("ocppj: %s (%s, id %q)", e.Reason, e.Kind, e.ID)
	}
	return fmt.Sprintf("ocppj: %s (%s)", e.Reason, e.Kind)
}

// RepliesAsCallError reports whether the peer should be told about the bad
// frame. Only a malformed Call with a recoverable id gets a CallError back;
// a malformed response has nothing to answer.
func (e *DecodeError) RepliesAsCallError() bool {
	return e.Type == TypeCall && e.ID != ""
}

// Decode parses one text frame into a *Call, *CallResult or *CallError.
// Payloads are kept as raw JSON; their shape is checked later against the
// action catalog. Failures are returned as *DecodeError.
func Decode(raw []byte) (Message, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, &DecodeError{Kind: ProtocolError, Reason: "frame is not a JSON array"}
	}
	if len(elems) == 0 {
		return nil, &DecodeError{Kind: ProtocolError, Reason: "frame is an empty array"}
	}

	n, err := strconv.Atoi(string(bytes.TrimSpace(elems[0])))
	if err != nil {
		return nil, &DecodeError{Kind: ProtocolError, Reason: "message type is not an integer"}
	}
	typ := MessageType(n)
	var arity int
	switch typ {
	case TypeCall:
		arity = 4
	case TypeCallResult:
		arity = 3
	case TypeCallError:
		arity = 5
	default:
		return nil, &DecodeError{Kind: ProtocolError, Reason: fmt.Sprintf("unknown message type %d", n)}
	}

	var id string
	if len(elems) > 1 {
		if err := json.Unmarshal(elems[1], &id); err != nil {
			return nil, &DecodeError{Kind: FormationViolation, Type: typ, Reason: "unique id is not a string"}
		}
	}
	if len(elems) != arity {
		return nil, &DecodeError{
			Kind:   FormationViolation,
			Type:   typ,
			ID:     id,
			Reason: fmt.Sprintf("%s must have %d elements, got %d", typ, arity, len(elems)),
		}
	}
	if id == "" {
		return nil, &DecodeError{Kind: FormationViolation, Type: typ, Reason: "unique id is empty"}
	}

	switch typ {
	case TypeCall:
		var action string
		if err := json.Unmarshal(elems[2], &action); err != nil || action == "" {
			return nil, &DecodeError{Kind: FormationViolation, Type: typ, ID: id, Reason: "action is not a non-empty string"}
		}
		return &Call{ID: id, Action: action, Payload: elems[3]}, nil

	case TypeCallResult:
		return &CallResult{ID: id, Payload: elems[2]}, nil

	default:
		var code, desc string
		if err := json.Unmarshal(elems[2], &code); err != nil {
			return nil, &DecodeError{Kind: FormationViolation, Type: typ, ID: id, Reason: "error code is not a string"}
		}
		if err := json.Unmarshal(elems[3], &desc); err != nil {
			return nil, &DecodeError{Kind: FormationViolation, Type: typ, ID: id, Reason: "error description is not a string"}
		}
		var details map[string]any
		if err := json.Unmarshal(elems[4], &details); err != nil {
			return nil, &DecodeError{Kind: FormationViolation, Type: typ, ID: id, Reason: "error details is not an object"}
		}
		return &CallError{ID: id, ErrorCode: ErrorKind(code), ErrorDescription: desc, ErrorDetails: details}, nil
	}
}

// Encode renders a message as its JSON array form.
func Encode(m Message) ([]byte, error) {
	var frame []any
	switch v := m.(type) {
	case *Call:
		frame = []any{TypeCall, v.ID, v.Action, payloadOrEmpty(v.Payload)}
	case *CallResult:
		frame = []any{TypeCallResult, v.ID, payloadOrEmpty(v.Payload)}
	case *CallError:
		details := v.ErrorDetails
		if details == nil {
			details = map[string]any{}
		}
		code := ParseErrorKind(string(v.ErrorCode))
		desc := v.ErrorDescription
		if desc == "" {
			desc = code.DefaultDescription()
		}
		frame = []any{TypeCallError, v.ID, code, desc, details}
	case nil:
		return nil, fmt.Errorf("ocppj: encode nil message")
	default:
		return nil, fmt.Errorf("ocppj: encode unsupported message %T", m)
	}
	b, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("ocppj: encode %s: %w", m.Type(), err)
	}
	return b, nil
}

func payloadOrEmpty(p json.RawMessage) json.RawMessage {
	if len(bytes.TrimSpace(p)) == 0 {
		return json.RawMessage("{}")
	}
	return p
}
