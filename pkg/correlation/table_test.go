package correlation

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"go.uber.org/goleak"

	"github.com/morezero/ocpp-central-system/pkg/ocppj"
)

const testPrefix = "correlation:table_test"

func receive(t *testing.T, pc *PendingCall) Outcome {
	t.Helper()
	select {
	case o := <-pc.Done():
		return o
	case <-time.After(5 * time.Second):
		t.Fatalf("%s - no outcome delivered for %q", testPrefix, pc.ID)
		return Outcome{}
	}
}

func assertPending(t *testing.T, pc *PendingCall) {
	t.Helper()
	select {
	case o := <-pc.Done():
		t.Fatalf("%s - unexpected outcome for %q: %+v", testPrefix, pc.ID, o)
	default:
	}
}

func TestRegisterResolve(t *testing.T) {
	tbl := NewTable("CP1", testclock.NewClock(time.Now()))

	pc, err := tbl.Register("a", "Reset", 0)
	if err != nil {
		t.Fatalf("%s - Register() error = %v", testPrefix, err)
	}
	if tbl.Len() != 1 {
		t.Errorf("%s - Len() = %d, want 1", testPrefix, tbl.Len())
	}
	if action, ok := tbl.Lookup("a"); !ok || action != "Reset" {
		t.Errorf("%s - Lookup() = %q, %v", testPrefix, action, ok)
	}

	if !tbl.Resolve("a", Outcome{Payload: json.RawMessage(`{"status":"Accepted"}`)}) {
		t.Fatalf("%s - Resolve() = false, want true", testPrefix)
	}
	o := receive(t, pc)
	if o.Err != nil || string(o.Payload) != `{"status":"Accepted"}` {
		t.Errorf("%s - outcome = %+v", testPrefix, o)
	}
	if tbl.Len() != 0 {
		t.Errorf("%s - Len() after resolve = %d, want 0", testPrefix, tbl.Len())
	}
}

func TestRegisterDuplicate(t *testing.T) {
	tbl := NewTable("CP1", nil)
	if _, err := tbl.Register("dup", "Reset", 0); err != nil {
		t.Fatal(err)
	}
	_, err := tbl.Register("dup", "ClearCache", 0)
	if !errors.Is(err, ocppj.ErrDuplicateCorrelation) {
		t.Fatalf("%s - err = %v, want ErrDuplicateCorrelation", testPrefix, err)
	}
	if action, _ := tbl.Lookup("dup"); action != "Reset" {
		t.Errorf("%s - duplicate registration replaced the original entry", testPrefix)
	}
	tbl.Drain()
}

func TestResolveUnknown(t *testing.T) {
	tbl := NewTable("CP1", nil)
	if tbl.Resolve("nope", Outcome{}) {
		t.Error("Resolve of unknown id should report false")
	}
}

func TestResolveTwice(t *testing.T) {
	tbl := NewTable("CP1", nil)
	pc, _ := tbl.Register("x", "Reset", 0)
	if !tbl.Resolve("x", Outcome{Payload: json.RawMessage(`{}`)}) {
		t.Fatal("first Resolve should match")
	}
	if tbl.Resolve("x", Outcome{Payload: json.RawMessage(`{}`)}) {
		t.Error("second Resolve should be unmatched")
	}
	receive(t, pc)
	assertPending(t, pc)
}

func TestResolveDetached(t *testing.T) {
	tbl := NewTable("CP1", nil)
	pc, _ := tbl.Register("f", "TriggerMessage", 0)
	pc.Detach()
	if tbl.Resolve("f", Outcome{}) {
		t.Error("Resolve of a detached call should report unmatched")
	}
	if tbl.Len() != 0 {
		t.Error("detached call should still be removed")
	}
}

func TestDeadlineExpiresAfterTimeout(t *testing.T) {
	clk := testclock.NewClock(time.Now())
	tbl := NewTable("CP1", clk)

	pc, err := tbl.Register("slow", "GetConfiguration", 30*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if want := pc.IssuedAt.Add(30 * time.Second); !pc.Deadline.Equal(want) {
		t.Errorf("%s - Deadline = %v, want %v", testPrefix, pc.Deadline, want)
	}

	if err := clk.WaitAdvance(29*time.Second, time.Second, 1); err != nil {
		t.Fatal(err)
	}
	assertPending(t, pc)

	clk.Advance(time.Second)
	o := receive(t, pc)
	if !errors.Is(o.Err, ocppj.ErrTimeout) {
		t.Fatalf("%s - outcome = %+v, want ErrTimeout", testPrefix, o)
	}
	if tbl.Len() != 0 {
		t.Errorf("%s - expired call left in table", testPrefix)
	}

	if tbl.Resolve("slow", Outcome{Payload: json.RawMessage(`{}`)}) {
		t.Error("late response should be unmatched")
	}
}

func TestResolveBeforeDeadlineStopsTimer(t *testing.T) {
	clk := testclock.NewClock(time.Now())
	tbl := NewTable("CP1", clk)

	pc, _ := tbl.Register("fast", "Reset", 10*time.Second)
	tbl.Resolve("fast", Outcome{Payload: json.RawMessage(`{"status":"Accepted"}`)})
	o := receive(t, pc)
	if o.Err != nil {
		t.Fatalf("%s - outcome err = %v", testPrefix, o.Err)
	}

	clk.Advance(time.Minute)
	assertPending(t, pc)
}

func TestStaleTimerDoesNotExpireReusedID(t *testing.T) {
	clk := testclock.NewClock(time.Now())
	tbl := NewTable("CP1", clk)

	first, _ := tbl.Register("same", "Reset", 10*time.Second)
	tbl.Resolve("same", Outcome{})
	receive(t, first)

	if tbl.Abandon(first) {
		t.Error("Abandon of a resolved call should do nothing")
	}

	second, err := tbl.Register("same", "Reset", 0)
	if err != nil {
		t.Fatal(err)
	}
	clk.Advance(time.Minute)
	assertPending(t, second)
	if tbl.Len() != 1 {
		t.Errorf("%s - reused id was removed by a stale deadline", testPrefix)
	}
	tbl.Drain()
}

func TestExpire(t *testing.T) {
	tbl := NewTable("CP1", nil)
	pc, _ := tbl.Register("e", "Reset", 0)
	if !tbl.Expire("e") {
		t.Fatal("Expire() = false")
	}
	if o := receive(t, pc); !errors.Is(o.Err, ocppj.ErrTimeout) {
		t.Errorf("%s - outcome = %+v", testPrefix, o)
	}
	if tbl.Expire("e") {
		t.Error("second Expire should report false")
	}
}

func TestDrain(t *testing.T) {
	defer goleak.VerifyNone(t)

	tbl := NewTable("CP1", nil)
	var calls []*PendingCall
	for i := 0; i < 3; i++ {
		pc, err := tbl.Register(fmt.Sprintf("d%d", i), "Reset", time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		calls = append(calls, pc)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(calls))
	for i, pc := range calls {
		wg.Add(1)
		go func(i int, pc *PendingCall) {
			defer wg.Done()
			errs[i] = (<-pc.Done()).Err
		}(i, pc)
	}

	drained := tbl.Drain()
	wg.Wait()

	if len(drained) != 3 {
		t.Errorf("%s - Drain() returned %d calls, want 3", testPrefix, len(drained))
	}
	for i, err := range errs {
		if !errors.Is(err, ocppj.ErrConnectionClosed) {
			t.Errorf("%s - waiter %d got %v, want ErrConnectionClosed", testPrefix, i, err)
		}
	}
	if !tbl.Closed() {
		t.Error("table should be closed after Drain")
	}
	if _, err := tbl.Register("late", "Reset", 0); !errors.Is(err, ocppj.ErrConnectionClosed) {
		t.Errorf("%s - Register after Drain err = %v, want ErrConnectionClosed", testPrefix, err)
	}
	if again := tbl.Drain(); len(again) != 0 {
		t.Errorf("%s - second Drain returned %d calls", testPrefix, len(again))
	}
}

func TestConcurrentResolveDeliversExactlyOnce(t *testing.T) {
	tbl := NewTable("CP1", nil)
	const n = 50
	calls := make([]*PendingCall, n)
	for i := range calls {
		calls[i], _ = tbl.Register(fmt.Sprintf("c%d", i), "Reset", 0)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	matched := 0
	for i := 0; i < n; i++ {
		for r := 0; r < 2; r++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				if tbl.Resolve(id, Outcome{}) {
					mu.Lock()
					matched++
					mu.Unlock()
				}
			}(fmt.Sprintf("c%d", i))
		}
	}
	wg.Wait()

	if matched != n {
		t.Errorf("%s - matched = %d, want %d", testPrefix, matched, n)
	}
	for _, pc := range calls {
		receive(t, pc)
		assertPending(t, pc)
	}
}
