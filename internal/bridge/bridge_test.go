package bridge

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/script-host/internal/engine"
)

// scriptedHost is a test double standing in for the UI program. It records
// deliveries and can auto-reply through the bridge's result sink.
type scriptedHost struct {
	mu        sync.Mutex
	post      ResultFunc
	delivered []Command
	reply     func(cmd Command) (Result, bool)
	closed    bool
}

func (h *scriptedHost) Start(post ResultFunc) error {
	h.mu.Lock()
	h.post = post
	h.mu.Unlock()
	return nil
}

func (h *scriptedHost) Deliver(cmd Command) {
	h.mu.Lock()
	h.delivered = append(h.delivered, cmd)
	reply := h.reply
	post := h.post
	h.mu.Unlock()

	if reply == nil {
		return
	}
	if res, ok := reply(cmd); ok {
		// Replies come from a foreign goroutine, as the real host's would.
		go post(res)
	}
}

func (h *scriptedHost) Verbs() []string {
	return []string{"ping", "silent"}
}

func (h *scriptedHost) Close() error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	return nil
}

func (h *scriptedHost) commands() []Command {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Command, len(h.delivered))
	copy(out, h.delivered)
	return out
}

func echoHost() *scriptedHost {
	return &scriptedHost{
		reply: func(cmd Command) (Result, bool) {
			if cmd.Verb == "silent" {
				return Result{}, false
			}
			return Result{ID: cmd.ID, ReplyTo: cmd.ReplyTo, Value: cmd.Args["msg"]}, true
		},
	}
}

func newTestBridge(t *testing.T, host Host, opts ...Option) (*Bridge, *engine.Loop) {
	t.Helper()
	loop := engine.New(engine.WithPollInterval(5 * time.Millisecond))
	loop.Liveness().SetRunForever(true)
	loop.Start()
	t.Cleanup(func() {
		loop.Stop()
		loop.Wait()
	})

	b := New(loop, host, opts...)
	require.NoError(t, b.Start())
	return b, loop
}

func TestSendValidatesSynchronously(t *testing.T) {
	b, _ := newTestBridge(t, echoHost())

	_, err := b.Send("noSuchVerb", nil, func(any, error) error { return nil })
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownVerb)
	var regErr *engine.RegistrationError
	assert.ErrorAs(t, err, &regErr)

	_, err = b.Send("ping", nil, nil)
	require.Error(t, err)
	assert.ErrorAs(t, err, &regErr)
}

func TestSendDeliversAndResolvesResult(t *testing.T) {
	host := echoHost()
	b, _ := newTestBridge(t, host)

	got := make(chan any, 1)
	h, err := b.Send("ping", map[string]any{"msg": "hello"}, func(payload any, err error) error {
		require.NoError(t, err)
		got <- payload
		return nil
	})
	require.NoError(t, err)
	assert.NotZero(t, h)

	select {
	case payload := <-got:
		assert.Equal(t, "hello", payload)
	case <-time.After(2 * time.Second):
		t.Fatal("result callback never ran")
	}

	cmds := host.commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, "ping", cmds[0].Verb)
	assert.Equal(t, h, cmds[0].ReplyTo)
	assert.NotEmpty(t, cmds[0].ID)
}

func TestCommandIDsAreUnique(t *testing.T) {
	host := &scriptedHost{}
	b, _ := newTestBridge(t, host)

	for i := 0; i < 10; i++ {
		_, err := b.Send("silent", nil, func(any, error) error { return nil })
		require.NoError(t, err)
	}

	seen := make(map[string]bool)
	for _, cmd := range host.commands() {
		assert.False(t, seen[cmd.ID], "duplicate command id %s", cmd.ID)
		seen[cmd.ID] = true
	}
	assert.Len(t, seen, 10)
	assert.Equal(t, 10, b.Outstanding())
}

func TestCallBlocksForResult(t *testing.T) {
	b, _ := newTestBridge(t, echoHost())

	value, err := b.Call("ping", map[string]any{"msg": "round-trip"})
	require.NoError(t, err)
	assert.Equal(t, "round-trip", value)
	assert.Eventually(t, func() bool { return b.Outstanding() == 0 },
		time.Second, 5*time.Millisecond)
}

func TestCallRefusedOnLoopGoroutine(t *testing.T) {
	b, loop := newTestBridge(t, echoHost())

	err := loop.RunOnLoopSync(func() error {
		_, callErr := b.Call("ping", nil)
		return callErr
	})
	assert.ErrorIs(t, err, engine.ErrOnLoop)
}

func TestTimeoutSynthesizesFailureResult(t *testing.T) {
	host := &scriptedHost{} // never replies
	b, _ := newTestBridge(t, host, WithTimeout(20*time.Millisecond))

	results := make(chan error, 2)
	_, err := b.Send("silent", nil, func(payload any, err error) error {
		results <- err
		return nil
	})
	require.NoError(t, err)

	select {
	case err := <-results:
		var timeoutErr *engine.TimeoutError
		assert.ErrorAs(t, err, &timeoutErr)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout result never arrived")
	}

	// A late real reply finds no registered handle and is dropped.
	cmds := host.commands()
	require.Len(t, cmds, 1)
	host.post(Result{ID: cmds[0].ID, ReplyTo: cmds[0].ReplyTo, Value: "late"})

	select {
	case err := <-results:
		t.Fatalf("callback ran twice, second error: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Zero(t, b.Outstanding())
}

func TestCancelDropsEventualResult(t *testing.T) {
	host := &scriptedHost{}
	b, _ := newTestBridge(t, host)

	fired := make(chan struct{}, 1)
	h, err := b.Send("silent", nil, func(any, error) error {
		fired <- struct{}{}
		return nil
	})
	require.NoError(t, err)
	require.True(t, b.Cancel(h))
	assert.False(t, b.Cancel(h))

	cmds := host.commands()
	require.Len(t, cmds, 1)
	host.post(Result{ID: cmds[0].ID, ReplyTo: cmds[0].ReplyTo, Value: "ignored"})

	select {
	case <-fired:
		t.Fatal("cancelled command's callback ran")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestKnowsAndVerbs(t *testing.T) {
	b, _ := newTestBridge(t, echoHost())

	assert.True(t, b.Knows("ping"))
	assert.False(t, b.Knows("nope"))
	assert.Equal(t, []string{"ping", "silent"}, b.Verbs())
}

func TestSubscribePublishUnsubscribe(t *testing.T) {
	b, _ := newTestBridge(t, echoHost())

	first := make(chan any, 4)
	second := make(chan any, 4)
	h1, err := b.Subscribe("windowClosed", func(payload any, err error) error {
		first <- payload
		return nil
	})
	require.NoError(t, err)
	_, err = b.Subscribe("windowClosed", func(payload any, err error) error {
		second <- payload
		return nil
	})
	require.NoError(t, err)

	_, err = b.Subscribe("windowClosed", nil)
	assert.Error(t, err)

	b.Publish("windowClosed", "w-1")
	for _, ch := range []chan any{first, second} {
		select {
		case payload := <-ch:
			assert.Equal(t, "w-1", payload)
		case <-time.After(2 * time.Second):
			t.Fatal("subscriber never received the event")
		}
	}

	require.True(t, b.Unsubscribe(h1))
	b.Publish("windowClosed", "w-2")

	select {
	case payload := <-second:
		assert.Equal(t, "w-2", payload)
	case <-time.After(2 * time.Second):
		t.Fatal("remaining subscriber never received the event")
	}
	select {
	case payload := <-first:
		t.Fatalf("unsubscribed callback received %v", payload)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPublishUnknownEventIsNoop(t *testing.T) {
	b, _ := newTestBridge(t, echoHost())
	b.Publish("neverSubscribed", nil)
}

func TestCloseClosesHost(t *testing.T) {
	host := echoHost()
	b, _ := newTestBridge(t, host)

	require.NoError(t, b.Close())
	host.mu.Lock()
	closed := host.closed
	host.mu.Unlock()
	assert.True(t, closed)
}

func TestCallFailsWhenLoopStops(t *testing.T) {
	host := &scriptedHost{}
	loop := engine.New(engine.WithPollInterval(5 * time.Millisecond))
	loop.Liveness().SetRunForever(true)
	loop.Start()

	b := New(loop, host)
	require.NoError(t, b.Start())

	errCh := make(chan error, 1)
	go func() {
		_, err := b.Call("silent", nil)
		errCh <- err
	}()

	// Give the call time to register, then tear the loop down under it.
	time.Sleep(20 * time.Millisecond)
	loop.Stop()
	loop.Wait()

	select {
	case err := <-errCh:
		assert.True(t, errors.Is(err, engine.ErrLoopClosed))
	case <-time.After(2 * time.Second):
		t.Fatal("blocked call never returned after loop stop")
	}
}
