package dispatcher

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/morezero/ocpp-central-system/pkg/catalog"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func noop(context.Context, *Request) (any, error) { return nil, nil }

func expectPanic(t *testing.T, contains string, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected panic containing %q", contains)
		}
		if s, _ := r.(string); !strings.Contains(s, contains) {
			t.Errorf("panic = %v, want it to contain %q", r, contains)
		}
	}()
	fn()
}

func TestRegister_Duplicate(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Handle(catalog.ActionHeartbeat, noop)
	expectPanic(t, "duplicate", func() { reg.Handle(catalog.ActionHeartbeat, noop) })
}

func TestRegister_Invalid(t *testing.T) {
	reg := NewRegistry(nil)
	expectPanic(t, "empty action", func() { reg.Handle("", noop) })
	expectPanic(t, "nil handler", func() { reg.Register("Heartbeat", nil) })
}

func TestRegister_AfterDispatch(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Handle(catalog.ActionHeartbeat, noop)
	reg.Dispatch(context.Background(), "CP1", call("1", catalog.ActionHeartbeat, `{}`))

	expectPanic(t, "after dispatch", func() { reg.Handle(catalog.ActionAuthorize, noop) })
}

func TestActions(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Handle("StatusNotification", noop)
	reg.Handle("Authorize", noop)
	reg.Handle("Heartbeat", noop)

	got := reg.Actions()
	want := []string{"Authorize", "Heartbeat", "StatusNotification"}
	if len(got) != len(want) {
		t.Fatalf("Actions() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Actions()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
