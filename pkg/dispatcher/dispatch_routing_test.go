package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/morezero/ocpp-central-system/pkg/catalog"
	"github.com/morezero/ocpp-central-system/pkg/ocppj"
)

func newCatalogRegistry() *Registry {
	return NewRegistry(catalog.New())
}

func call(id, action, payload string) *ocppj.Call {
	return &ocppj.Call{ID: id, Action: action, Payload: json.RawMessage(payload)}
}

func expectCallError(t *testing.T, msg ocppj.Message, id string, kind ocppj.ErrorKind) *ocppj.CallError {
	t.Helper()
	ce, ok := msg.(*ocppj.CallError)
	if !ok {
		t.Fatalf("dispatcher:dispatch_routing_test - expected *CallError, got %T", msg)
	}
	if ce.ID != id {
		t.Errorf("dispatcher:dispatch_routing_test - ID = %q, want %q", ce.ID, id)
	}
	if ce.ErrorCode != kind {
		t.Errorf("dispatcher:dispatch_routing_test - ErrorCode = %s, want %s", ce.ErrorCode, kind)
	}
	if ce.ErrorDescription == "" {
		t.Error("dispatcher:dispatch_routing_test - description must never be empty")
	}
	return ce
}

// TestDispatch_UnknownAction verifies that unregistered actions return NotImplemented.
func TestDispatch_UnknownAction(t *testing.T) {
	reg := newCatalogRegistry()

	resp := reg.Dispatch(context.Background(), "CP1", call("test-1", "FooBar", `{}`))

	ce := expectCallError(t, resp, "test-1", ocppj.NotImplemented)
	if ce.ErrorDescription != "Action FooBar is not implemented" {
		t.Errorf("dispatcher:dispatch_routing_test - description = %q", ce.ErrorDescription)
	}
}

func TestDispatch_UnknownActionPreservesUniqueID(t *testing.T) {
	reg := newCatalogRegistry()

	for _, id := range []string{"req-1", "req-2", "unique-abc-123"} {
		resp := reg.Dispatch(context.Background(), "CP1", call(id, "unknown", `{}`))
		if resp.UniqueID() != id {
			t.Errorf("dispatcher:dispatch_routing_test - expected ID=%q, got %q", id, resp.UniqueID())
		}
	}
}

func TestDispatch_Success(t *testing.T) {
	reg := newCatalogRegistry()
	var got *Request
	reg.Register(catalog.ActionAuthorize, Typed(func(_ context.Context, req *Request, p *catalog.AuthorizeRequest) (any, error) {
		got = req
		status := catalog.AuthorizationStatusInvalid
		if p.IdTag == "GOOD" {
			status = catalog.AuthorizationStatusAccepted
		}
		return &catalog.AuthorizeConfirmation{IdTagInfo: &catalog.IdTagInfo{Status: status}}, nil
	}))

	resp := reg.Dispatch(context.Background(), "CP7", call("a1", catalog.ActionAuthorize, `{"idTag":"GOOD"}`))

	res, ok := resp.(*ocppj.CallResult)
	if !ok {
		t.Fatalf("dispatcher:dispatch_routing_test - expected *CallResult, got %#v", resp)
	}
	if res.ID != "a1" {
		t.Errorf("dispatcher:dispatch_routing_test - ID = %q", res.ID)
	}
	if string(res.Payload) != `{"idTagInfo":{"status":"Accepted"}}` {
		t.Errorf("dispatcher:dispatch_routing_test - payload = %s", res.Payload)
	}
	if got.StationID != "CP7" || got.UniqueID != "a1" || got.Action != catalog.ActionAuthorize {
		t.Errorf("dispatcher:dispatch_routing_test - request = %+v", got)
	}
}

func TestDispatch_ValidationFailureSkipsHandler(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    ocppj.ErrorKind
	}{
		{name: "missing idTag", payload: `{}`, want: ocppj.OccurrenceConstraintViolation},
		{name: "idTag wrong type", payload: `{"idTag":5}`, want: ocppj.TypeConstraintViolation},
		{name: "unknown field", payload: `{"idTag":"A","extra":1}`, want: ocppj.FormationViolation},
		{name: "idTag too long", payload: `{"idTag":"123456789012345678901"}`, want: ocppj.PropertyConstraintViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := newCatalogRegistry()
			called := false
			reg.Handle(catalog.ActionAuthorize, func(context.Context, *Request) (any, error) {
				called = true
				return nil, nil
			})

			resp := reg.Dispatch(context.Background(), "CP1", call("v1", catalog.ActionAuthorize, tt.payload))

			expectCallError(t, resp, "v1", tt.want)
			if called {
				t.Error("dispatcher:dispatch_routing_test - handler ran for an invalid payload")
			}
		})
	}
}

func TestDispatch_HandlerErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		want     ocppj.ErrorKind
		wantDesc string
	}{
		{
			name:     "explicit protocol error keeps its kind",
			err:      ocppj.NewError(ocppj.SecurityError, "station not allowed"),
			want:     ocppj.SecurityError,
			wantDesc: "station not allowed",
		},
		{
			name: "plain error becomes InternalError without leaking text",
			err:  errors.New("pq: connection refused on 10.0.0.7"),
			want: ocppj.InternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := newCatalogRegistry()
			reg.Handle(catalog.ActionHeartbeat, func(context.Context, *Request) (any, error) {
				return nil, tt.err
			})

			resp := reg.Dispatch(context.Background(), "CP1", call("h1", catalog.ActionHeartbeat, `{}`))

			ce := expectCallError(t, resp, "h1", tt.want)
			if tt.wantDesc != "" && ce.ErrorDescription != tt.wantDesc {
				t.Errorf("dispatcher:dispatch_routing_test - description = %q, want %q", ce.ErrorDescription, tt.wantDesc)
			}
			if tt.want == ocppj.InternalError && ce.ErrorDescription != ocppj.InternalError.DefaultDescription() {
				t.Errorf("dispatcher:dispatch_routing_test - internal description leaked: %q", ce.ErrorDescription)
			}
		})
	}
}

func TestDispatch_HandlerPanic(t *testing.T) {
	reg := newCatalogRegistry()
	reg.Handle(catalog.ActionHeartbeat, func(context.Context, *Request) (any, error) {
		panic("nil map write")
	})

	resp := reg.Dispatch(context.Background(), "CP1", call("p1", catalog.ActionHeartbeat, `{}`))

	expectCallError(t, resp, "p1", ocppj.InternalError)
}

func TestDispatch_InvalidConfirmation(t *testing.T) {
	reg := newCatalogRegistry()
	reg.Handle(catalog.ActionHeartbeat, func(context.Context, *Request) (any, error) {
		return &catalog.HeartbeatConfirmation{}, nil
	})

	resp := reg.Dispatch(context.Background(), "CP1", call("c1", catalog.ActionHeartbeat, `{}`))

	expectCallError(t, resp, "c1", ocppj.InternalError)
}

func TestDispatch_RawCodecPassesPayload(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Handle("VendorPing", func(_ context.Context, req *Request) (any, error) {
		raw, ok := req.Payload.(json.RawMessage)
		if !ok {
			t.Errorf("dispatcher:dispatch_routing_test - payload type %T", req.Payload)
		}
		return raw, nil
	})

	resp := reg.Dispatch(context.Background(), "CP1", call("r1", "VendorPing", `{"n":1}`))

	res, ok := resp.(*ocppj.CallResult)
	if !ok || string(res.Payload) != `{"n":1}` {
		t.Errorf("dispatcher:dispatch_routing_test - response = %#v", resp)
	}
}

func TestDispatch_TypedMismatch(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Register("Authorize", Typed(func(context.Context, *Request, *catalog.AuthorizeRequest) (any, error) {
		return nil, nil
	}))

	resp := reg.Dispatch(context.Background(), "CP1", call("t1", "Authorize", `{"idTag":"A"}`))

	expectCallError(t, resp, "t1", ocppj.InternalError)
}

func TestDispatch_ConcurrentCalls(t *testing.T) {
	reg := newCatalogRegistry()
	reg.Handle(catalog.ActionHeartbeat, func(context.Context, *Request) (any, error) {
		return &catalog.HeartbeatConfirmation{CurrentTime: catalog.NewDateTime(fixedNow)}, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := reg.Dispatch(context.Background(), "CP1", call("same", catalog.ActionHeartbeat, `{}`))
			if _, ok := resp.(*ocppj.CallResult); !ok {
				t.Errorf("dispatcher:dispatch_routing_test - expected CallResult, got %T", resp)
			}
		}()
	}
	wg.Wait()
}
