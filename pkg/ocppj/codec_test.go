package ocppj

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecode_Valid(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantType MessageType
		wantID   string
	}{
		{
			name:     "call",
			raw:      `[2,"19223201","BootNotification",{"chargePointVendor":"VendorX","chargePointModel":"SingleSocketCharger"}]`,
			wantType: TypeCall,
			wantID:   "19223201",
		},
		{
			name:     "call with empty payload",
			raw:      `[2,"a","Heartbeat",{}]`,
			wantType: TypeCall,
			wantID:   "a",
		},
		{
			name:     "call result",
			raw:      `[3,"19223201",{"status":"Accepted","currentTime":"2013-02-01T20:53:32.486Z","interval":300}]`,
			wantType: TypeCallResult,
			wantID:   "19223201",
		},
		{
			name:     "call error",
			raw:      `[4,"162376037","NotSupported","SetDisplayMessageRequest not implemented",{}]`,
			wantType: TypeCallError,
			wantID:   "162376037",
		},
		{
			name:     "whitespace around elements",
			raw:      " [ 3 , \"x\" , { } ] ",
			wantType: TypeCallResult,
			wantID:   "x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode([]byte(tt.raw))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if msg.Type() != tt.wantType {
				t.Errorf("Type() = %v, want %v", msg.Type(), tt.wantType)
			}
			if msg.UniqueID() != tt.wantID {
				t.Errorf("UniqueID() = %q, want %q", msg.UniqueID(), tt.wantID)
			}
		})
	}
}

func TestDecode_CallFields(t *testing.T) {
	msg, err := Decode([]byte(`[2,"id-1","Authorize",{"idTag":"ABC123"}]`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	call, ok := msg.(*Call)
	if !ok {
		t.Fatalf("expected *Call, got %T", msg)
	}
	if call.Action != "Authorize" {
		t.Errorf("Action = %q, want Authorize", call.Action)
	}
	if string(call.Payload) != `{"idTag":"ABC123"}` {
		t.Errorf("Payload = %s", call.Payload)
	}
}

func TestDecode_CallErrorFields(t *testing.T) {
	msg, err := Decode([]byte(`[4,"id-9","SomethingOdd","",{"hint":"x"}]`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	ce := msg.(*CallError)
	if ce.ErrorDetails["hint"] != "x" {
		t.Errorf("ErrorDetails = %v", ce.ErrorDetails)
	}

	e := ce.Err()
	if e.Kind != GenericError {
		t.Errorf("unknown code should map to GenericError, got %s", e.Kind)
	}
	if e.Description == "" {
		t.Error("description must never be empty")
	}
}

func TestDecode_Failures(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantKind    ErrorKind
		wantID      string
		wantReplies bool
	}{
		{name: "not json", raw: `hello`, wantKind: ProtocolError},
		{name: "object", raw: `{"a":1}`, wantKind: ProtocolError},
		{name: "empty array", raw: `[]`, wantKind: ProtocolError},
		{name: "type is a string", raw: `["2","id","Heartbeat",{}]`, wantKind: ProtocolError},
		{name: "type is a float", raw: `[2.5,"id","Heartbeat",{}]`, wantKind: ProtocolError},
		{name: "unknown type", raw: `[5,"id",{}]`, wantKind: ProtocolError},
		{name: "id is a number", raw: `[2,42,"Heartbeat",{}]`, wantKind: FormationViolation},
		{name: "empty id", raw: `[3,"",{}]`, wantKind: FormationViolation},
		{
			name:        "call missing payload",
			raw:         `[2,"abc","Heartbeat"]`,
			wantKind:    FormationViolation,
			wantID:      "abc",
			wantReplies: true,
		},
		{
			name:        "call with extra element",
			raw:         `[2,"abc","Heartbeat",{},{}]`,
			wantKind:    FormationViolation,
			wantID:      "abc",
			wantReplies: true,
		},
		{
			name:        "call action not a string",
			raw:         `[2,"abc",7,{}]`,
			wantKind:    FormationViolation,
			wantID:      "abc",
			wantReplies: true,
		},
		{
			name:     "result with wrong arity",
			raw:      `[3,"abc"]`,
			wantKind: FormationViolation,
			wantID:   "abc",
		},
		{
			name:     "error details not an object",
			raw:      `[4,"abc","GenericError","x","details"]`,
			wantKind: FormationViolation,
			wantID:   "abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode([]byte(tt.raw))
			if err == nil {
				t.Fatalf("Decode() = %v, want error", msg)
			}
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("expected *DecodeError, got %T", err)
			}
			if de.Kind != tt.wantKind {
				t.Errorf("Kind = %s, want %s", de.Kind, tt.wantKind)
			}
			if de.ID != tt.wantID {
				t.Errorf("ID = %q, want %q", de.ID, tt.wantID)
			}
			if de.RepliesAsCallError() != tt.wantReplies {
				t.Errorf("RepliesAsCallError() = %v, want %v", de.RepliesAsCallError(), tt.wantReplies)
			}
		})
	}
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want string
	}{
		{
			name: "call",
			msg:  &Call{ID: "1", Action: "Reset", Payload: json.RawMessage(`{"type":"Soft"}`)},
			want: `[2,"1","Reset",{"type":"Soft"}]`,
		},
		{
			name: "call without payload",
			msg:  &Call{ID: "1", Action: "ClearCache"},
			want: `[2,"1","ClearCache",{}]`,
		},
		{
			name: "call result",
			msg:  &CallResult{ID: "2", Payload: json.RawMessage(`{"status":"Accepted"}`)},
			want: `[3,"2",{"status":"Accepted"}]`,
		},
		{
			name: "call error fills description and details",
			msg:  &CallError{ID: "3", ErrorCode: NotImplemented},
			want: `[4,"3","NotImplemented","Requested Action is not known by receiver",{}]`,
		},
		{
			name: "call error with unknown code",
			msg:  &CallError{ID: "4", ErrorCode: "Weird", ErrorDescription: "boom"},
			want: `[4,"4","GenericError","boom",{}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.msg)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Encode() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEncode_DecodeRoundTrip(t *testing.T) {
	call, err := NewCall("rt-1", "StatusNotification", map[string]any{"connectorId": 1, "status": "Available", "errorCode": "NoError"})
	if err != nil {
		t.Fatalf("NewCall() error = %v", err)
	}
	raw, err := Encode(call)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	msg, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	got := msg.(*Call)
	if got.ID != call.ID || got.Action != call.Action {
		t.Errorf("round trip = %+v, want %+v", got, call)
	}

	var a, b map[string]any
	_ = json.Unmarshal(call.Payload, &a)
	_ = json.Unmarshal(got.Payload, &b)
	if len(a) != len(b) || a["status"] != b["status"] {
		t.Errorf("payload changed: %v vs %v", a, b)
	}
}

func TestEncode_Nil(t *testing.T) {
	if _, err := Encode(nil); err == nil {
		t.Error("expected error encoding nil message")
	}
}
