package mem

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/morezero/typed-ipc/pkg/transport"
)

const memTestPrefix = "mem:mem_test"

func newPair(t *testing.T) (*Bus, *Main, *Renderer) {
	t.Helper()
	bus := NewBus()
	t.Cleanup(bus.Close)
	return bus, bus.Main(), bus.NewRenderer()
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("%s - timed out waiting for delivery", memTestPrefix)
	}
}

func TestInvoke_HandleRoundTrip(t *testing.T) {
	_, main, r := newPair(t)

	_, err := main.Handle("math::add", func(_ context.Context, ev transport.Event, args []any) (any, error) {
		if ev.Sender == nil || ev.Sender.ID() != r.ID() {
			t.Errorf("%s - sender = %v, want %s", memTestPrefix, ev.Sender, r.ID())
		}
		return args[0].(int) + args[1].(int), nil
	})
	if err != nil {
		t.Fatalf("%s - Handle: %v", memTestPrefix, err)
	}

	got, err := r.Invoke(context.Background(), "math::add", 2, 3)
	if err != nil {
		t.Fatalf("%s - Invoke: %v", memTestPrefix, err)
	}
	if got != 5 {
		t.Errorf("%s - got %v, want 5", memTestPrefix, got)
	}
}

func TestInvoke_NoResponder(t *testing.T) {
	_, _, r := newPair(t)
	_, err := r.Invoke(context.Background(), "nobody")
	if !errors.Is(err, transport.ErrNoResponder) {
		t.Errorf("%s - err = %v, want ErrNoResponder", memTestPrefix, err)
	}
}

func TestHandle_SecondRegistrationRejected(t *testing.T) {
	_, main, _ := newPair(t)
	noop := func(context.Context, transport.Event, []any) (any, error) { return nil, nil }
	if _, err := main.Handle("ch", noop); err != nil {
		t.Fatalf("%s - first Handle: %v", memTestPrefix, err)
	}
	if _, err := main.Handle("ch", noop); !errors.Is(err, transport.ErrHandlerExists) {
		t.Errorf("%s - err = %v, want ErrHandlerExists", memTestPrefix, err)
	}
	if err := main.HandleOnce("ch", noop); !errors.Is(err, transport.ErrHandlerExists) {
		t.Errorf("%s - err = %v, want ErrHandlerExists", memTestPrefix, err)
	}
}

func TestHandle_TeardownAllowsReregistration(t *testing.T) {
	_, main, r := newPair(t)
	teardown, err := main.Handle("ch", func(context.Context, transport.Event, []any) (any, error) { return 1, nil })
	if err != nil {
		t.Fatalf("%s - Handle: %v", memTestPrefix, err)
	}
	teardown()
	if _, err := r.Invoke(context.Background(), "ch"); !errors.Is(err, transport.ErrNoResponder) {
		t.Errorf("%s - err = %v, want ErrNoResponder after teardown", memTestPrefix, err)
	}
	if _, err := main.Handle("ch", func(context.Context, transport.Event, []any) (any, error) { return 2, nil }); err != nil {
		t.Fatalf("%s - re-Handle: %v", memTestPrefix, err)
	}
	// A stale teardown must not remove the new responder.
	teardown()
	if got, err := r.Invoke(context.Background(), "ch"); err != nil || got != 2 {
		t.Errorf("%s - got %v, %v; want 2", memTestPrefix, got, err)
	}
}

func TestHandleOnce_ServesOneRequest(t *testing.T) {
	_, main, r := newPair(t)
	var calls atomic.Int32
	err := main.HandleOnce("setup", func(context.Context, transport.Event, []any) (any, error) {
		calls.Add(1)
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("%s - HandleOnce: %v", memTestPrefix, err)
	}

	if got, err := r.Invoke(context.Background(), "setup"); err != nil || got != "ok" {
		t.Fatalf("%s - first Invoke = %v, %v", memTestPrefix, got, err)
	}
	if _, err := r.Invoke(context.Background(), "setup"); !errors.Is(err, transport.ErrNoResponder) {
		t.Errorf("%s - second Invoke err = %v, want ErrNoResponder", memTestPrefix, err)
	}
	if calls.Load() != 1 {
		t.Errorf("%s - handler calls = %d, want 1", memTestPrefix, calls.Load())
	}
}

func TestInvoke_ResponderErrorBecomesRemoteError(t *testing.T) {
	_, main, r := newPair(t)
	_, _ = main.Handle("fail", func(context.Context, transport.Event, []any) (any, error) {
		return nil, errors.New("boom")
	})
	_, err := r.Invoke(context.Background(), "fail")
	var re *transport.RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("%s - err = %v, want *RemoteError", memTestPrefix, err)
	}
	if re.Code != transport.CodeHandlerError || re.Message != "boom" || re.Channel != "fail" {
		t.Errorf("%s - RemoteError = %+v", memTestPrefix, re)
	}
}

func TestInvoke_ContextCancelled(t *testing.T) {
	_, main, r := newPair(t)
	release := make(chan struct{})
	defer close(release)
	_, _ = main.Handle("slow", func(context.Context, transport.Event, []any) (any, error) {
		<-release
		return nil, nil
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := r.Invoke(ctx, "slow"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("%s - err = %v, want DeadlineExceeded", memTestPrefix, err)
	}
}

func TestSend_FIFOPerChannel(t *testing.T) {
	_, main, r := newPair(t)
	const n = 200
	var mu sync.Mutex
	var got []int
	done := make(chan struct{})
	_, _ = main.On("seq", func(_ transport.Event, args []any) {
		mu.Lock()
		got = append(got, args[0].(int))
		if len(got) == n {
			close(done)
		}
		mu.Unlock()
	})
	for i := 0; i < n; i++ {
		if err := r.Send("seq", i); err != nil {
			t.Fatalf("%s - Send: %v", memTestPrefix, err)
		}
	}
	waitFor(t, done)
	for i, v := range got {
		if v != i {
			t.Fatalf("%s - got[%d] = %d, out of order", memTestPrefix, i, v)
		}
	}
}

func TestOn_TeardownIsPerListener(t *testing.T) {
	_, main, r := newPair(t)
	var a, b atomic.Int32
	done := make(chan struct{}, 4)
	teardownA, _ := main.On("ch", func(transport.Event, []any) { a.Add(1) })
	_, _ = main.On("ch", func(transport.Event, []any) { b.Add(1); done <- struct{}{} })

	_ = r.Send("ch")
	waitFor(t, done)
	teardownA()
	_ = r.Send("ch")
	waitFor(t, done)

	if a.Load() != 1 {
		t.Errorf("%s - listener A calls = %d, want 1", memTestPrefix, a.Load())
	}
	if b.Load() != 2 {
		t.Errorf("%s - listener B calls = %d, want 2", memTestPrefix, b.Load())
	}
}

func TestOnce_DeliversAtMostOnce(t *testing.T) {
	_, main, r := newPair(t)
	var calls atomic.Int32
	done := make(chan struct{}, 4)
	_ = main.Once("ready", func(transport.Event, []any) { calls.Add(1) })
	_, _ = main.On("ready", func(transport.Event, []any) { done <- struct{}{} })

	_ = r.Send("ready")
	_ = r.Send("ready")
	waitFor(t, done)
	waitFor(t, done)
	if calls.Load() != 1 {
		t.Errorf("%s - once calls = %d, want 1", memTestPrefix, calls.Load())
	}
	if main.ListenerCount("ready") != 1 {
		t.Errorf("%s - ListenerCount = %d, want 1", memTestPrefix, main.ListenerCount("ready"))
	}
}

func TestSendTo_NoReplayForLateListener(t *testing.T) {
	_, main, r := newPair(t)
	if err := main.SendTo(r, "clock::tick", 1); err != nil {
		t.Fatalf("%s - SendTo before listener: %v", memTestPrefix, err)
	}

	got := make(chan int, 4)
	_, _ = r.On("clock::tick", func(_ transport.Event, args []any) { got <- args[0].(int) })
	_ = main.SendTo(r, "clock::tick", 2)

	select {
	case v := <-got:
		if v != 2 {
			t.Errorf("%s - first delivery = %d, want 2 (no replay)", memTestPrefix, v)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("%s - no delivery", memTestPrefix)
	}
}

func TestSendTo_ClosedTarget(t *testing.T) {
	_, main, r := newPair(t)
	r.Close()
	if err := main.SendTo(r, "ch"); !errors.Is(err, transport.ErrTargetClosed) {
		t.Errorf("%s - err = %v, want ErrTargetClosed", memTestPrefix, err)
	}
	if err := main.SendTo(transport.TargetID("missing"), "ch"); !errors.Is(err, transport.ErrTargetClosed) {
		t.Errorf("%s - err = %v, want ErrTargetClosed", memTestPrefix, err)
	}
	if err := r.Send("ch"); !errors.Is(err, transport.ErrClosed) {
		t.Errorf("%s - Send after Close err = %v, want ErrClosed", memTestPrefix, err)
	}
}

func TestRemoveAllListeners(t *testing.T) {
	_, main, r := newPair(t)
	var calls atomic.Int32
	_, _ = r.On("ch", func(transport.Event, []any) { calls.Add(1) })
	_ = r.Once("ch", func(transport.Event, []any) { calls.Add(1) })
	if err := r.RemoveAllListeners("ch"); err != nil {
		t.Fatalf("%s - RemoveAllListeners: %v", memTestPrefix, err)
	}
	if r.ListenerCount("ch") != 0 {
		t.Errorf("%s - ListenerCount = %d, want 0", memTestPrefix, r.ListenerCount("ch"))
	}

	done := make(chan struct{})
	_, _ = r.On("other", func(transport.Event, []any) { close(done) })
	_ = main.SendTo(r, "ch")
	_ = main.SendTo(r, "other")
	waitFor(t, done)
	if calls.Load() != 0 {
		t.Errorf("%s - removed listeners called %d times", memTestPrefix, calls.Load())
	}
}

func TestListenerPanicIsContained(t *testing.T) {
	_, main, r := newPair(t)
	done := make(chan struct{})
	_, _ = main.On("ch", func(transport.Event, []any) { panic("bad listener") })
	_, _ = main.On("ch", func(transport.Event, []any) { close(done) })
	_ = r.Send("ch")
	waitFor(t, done)
}

func TestRenderer_CloseFromOwnListener(t *testing.T) {
	_, main, r := newPair(t)
	done := make(chan struct{})
	_, _ = r.On("shutdown", func(transport.Event, []any) {
		r.Close()
		close(done)
	})
	if err := main.SendTo(r, "shutdown"); err != nil {
		t.Fatalf("%s - SendTo: %v", memTestPrefix, err)
	}
	waitFor(t, done)

	select {
	case <-r.loop.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("%s - renderer loop did not stop after closing itself", memTestPrefix)
	}
	if err := main.SendTo(r, "shutdown"); !errors.Is(err, transport.ErrTargetClosed) {
		t.Errorf("%s - SendTo after self-close err = %v, want ErrTargetClosed", memTestPrefix, err)
	}
}
