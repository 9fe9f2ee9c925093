package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/joeycumines/script-host/internal/engine"
)

func newTestPool(t *testing.T) (*Pool, *engine.Loop) {
	t.Helper()
	loop := engine.New(engine.WithPollInterval(5 * time.Millisecond))
	loop.Liveness().SetRunForever(true)
	loop.Start()
	t.Cleanup(func() {
		loop.Stop()
		loop.Wait()
	})

	pool := NewPool(loop)
	t.Cleanup(pool.Close)
	return pool, loop
}

// runOp runs one operation and waits for its loop-dispatched outcome.
func runOp(t *testing.T, pool *Pool, name string, args map[string]any) (any, error) {
	t.Helper()
	type outcome struct {
		value any
		err   error
	}
	ch := make(chan outcome, 1)
	if _, err := pool.Run(name, args, func(payload any, err error) error {
		ch <- outcome{value: payload, err: err}
		return nil
	}); err != nil {
		t.Fatalf("Run(%q) failed: %v", name, err)
	}
	select {
	case o := <-ch:
		return o.value, o.err
	case <-time.After(5 * time.Second):
		t.Fatalf("operation %q never completed", name)
		return nil, nil
	}
}

func TestBuiltinOpsRegistered(t *testing.T) {
	pool, _ := newTestPool(t)

	want := []string{"exec", "readFile", "sleep", "writeFile"}
	if got := pool.Ops(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected ops %v, got %v", want, got)
	}
}

func TestUnknownOpFailsSynchronously(t *testing.T) {
	pool, _ := newTestPool(t)

	_, err := pool.Run("noSuchOp", nil, func(any, error) error { return nil })
	if err == nil {
		t.Fatal("unknown op must fail at the call site")
	}
	if !errors.Is(err, ErrUnknownOp) {
		t.Errorf("expected ErrUnknownOp, got %v", err)
	}
	var regErr *engine.RegistrationError
	if !errors.As(err, &regErr) {
		t.Errorf("expected RegistrationError, got %T", err)
	}
}

func TestNilCallbackFailsSynchronously(t *testing.T) {
	pool, _ := newTestPool(t)

	if _, err := pool.Run("sleep", map[string]any{"ms": 1}, nil); err == nil {
		t.Fatal("nil callback must fail at the call site")
	}
}

func TestSleepOp(t *testing.T) {
	pool, _ := newTestPool(t)

	value, err := runOp(t, pool, "sleep", map[string]any{"ms": 10})
	if err != nil {
		t.Fatalf("sleep failed: %v", err)
	}
	if value != 10 {
		t.Errorf("expected slept duration 10, got %v", value)
	}

	if _, err := runOp(t, pool, "sleep", map[string]any{"ms": -1}); err == nil {
		t.Error("negative sleep must fail")
	}
	if _, err := runOp(t, pool, "sleep", map[string]any{"ms": "soon"}); err == nil {
		t.Error("non-numeric sleep must fail")
	}
}

func TestReadWriteFileOps(t *testing.T) {
	pool, _ := newTestPool(t)
	path := filepath.Join(t.TempDir(), "note.txt")

	value, err := runOp(t, pool, "writeFile", map[string]any{"path": path, "data": "hello worker"})
	if err != nil {
		t.Fatalf("writeFile failed: %v", err)
	}
	if value != len("hello worker") {
		t.Errorf("expected written length %d, got %v", len("hello worker"), value)
	}

	value, err = runOp(t, pool, "readFile", map[string]any{"path": path})
	if err != nil {
		t.Fatalf("readFile failed: %v", err)
	}
	if value != "hello worker" {
		t.Errorf("expected file content round-trip, got %v", value)
	}

	if _, err := runOp(t, pool, "readFile", map[string]any{"path": filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Error("reading a missing file must fail")
	}
	if _, err := runOp(t, pool, "readFile", nil); err == nil {
		t.Error("missing path argument must fail")
	}
}

func TestExecOp(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh available")
	}
	pool, _ := newTestPool(t)

	value, err := runOp(t, pool, "exec", map[string]any{
		"argv": []any{"/bin/sh", "-c", "echo out; echo err >&2"},
	})
	if err != nil {
		t.Fatalf("exec failed: %v", err)
	}
	result, ok := value.(map[string]any)
	if !ok {
		t.Fatalf("expected map result, got %T", value)
	}
	if result["stdout"] != "out\n" {
		t.Errorf("expected stdout %q, got %q", "out\n", result["stdout"])
	}
	if result["stderr"] != "err\n" {
		t.Errorf("expected stderr %q, got %q", "err\n", result["stderr"])
	}
	if result["code"] != 0 || result["error"] != false {
		t.Errorf("expected clean exit, got code=%v error=%v", result["code"], result["error"])
	}
}

func TestExecOpNonzeroExitIsAResult(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh available")
	}
	pool, _ := newTestPool(t)

	value, err := runOp(t, pool, "exec", map[string]any{
		"argv": []string{"/bin/sh", "-c", "exit 3"},
	})
	if err != nil {
		t.Fatalf("exec of a failing command must still deliver a result: %v", err)
	}
	result := value.(map[string]any)
	if result["code"] != 3 {
		t.Errorf("expected exit code 3, got %v", result["code"])
	}
	if result["error"] != true {
		t.Error("nonzero exit should be flagged in the result")
	}
}

func TestExecOpCommandLine(t *testing.T) {
	if _, err := os.Stat("/bin/echo"); err != nil {
		t.Skip("no /bin/echo available")
	}
	pool, _ := newTestPool(t)

	value, err := runOp(t, pool, "exec", map[string]any{"line": `/bin/echo "quoted arg"`})
	if err != nil {
		t.Fatalf("exec failed: %v", err)
	}
	result := value.(map[string]any)
	if result["stdout"] != "quoted arg\n" {
		t.Errorf("expected quote-aware tokenization, got stdout %q", result["stdout"])
	}
}

func TestExecOpEmptyArgv(t *testing.T) {
	pool, _ := newTestPool(t)

	if _, err := runOp(t, pool, "exec", map[string]any{"argv": []string{}}); err == nil {
		t.Error("empty argv must fail")
	}
	if _, err := runOp(t, pool, "exec", map[string]any{"argv": []any{42}}); err == nil {
		t.Error("non-string argv element must fail")
	}
}

func TestRegisterOp(t *testing.T) {
	pool, _ := newTestPool(t)

	if err := pool.RegisterOp("double", func(_ context.Context, args map[string]any) (any, error) {
		n, err := intArg(args, "n")
		if err != nil {
			return nil, err
		}
		return n * 2, nil
	}); err != nil {
		t.Fatalf("RegisterOp failed: %v", err)
	}

	value, err := runOp(t, pool, "double", map[string]any{"n": 21})
	if err != nil {
		t.Fatalf("custom op failed: %v", err)
	}
	if value != 42 {
		t.Errorf("expected 42, got %v", value)
	}

	if err := pool.RegisterOp("double", func(context.Context, map[string]any) (any, error) {
		return nil, nil
	}); err == nil {
		t.Error("duplicate op name must be rejected")
	}
	if err := pool.RegisterOp("", nil); err == nil {
		t.Error("empty registration must be rejected")
	}
}

func TestPanicInOpBecomesError(t *testing.T) {
	pool, _ := newTestPool(t)

	if err := pool.RegisterOp("explode", func(context.Context, map[string]any) (any, error) {
		panic("kaboom")
	}); err != nil {
		t.Fatalf("RegisterOp failed: %v", err)
	}

	_, err := runOp(t, pool, "explode", nil)
	var panicErr *engine.PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("expected PanicError, got %v", err)
	}
	if panicErr.Value != "kaboom" {
		t.Errorf("expected panic value to survive, got %v", panicErr.Value)
	}
}

func TestCancelledRunResultIsDropped(t *testing.T) {
	pool, _ := newTestPool(t)

	fired := make(chan struct{}, 1)
	h, err := pool.Run("sleep", map[string]any{"ms": 20}, func(any, error) error {
		fired <- struct{}{}
		return nil
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	pool.loop.Registry().Cancel(h)

	select {
	case <-fired:
		t.Fatal("cancelled run's callback ran")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestCloseCancelsOpContext(t *testing.T) {
	loop := engine.New(engine.WithPollInterval(5 * time.Millisecond))
	loop.Liveness().SetRunForever(true)
	loop.Start()
	defer func() {
		loop.Stop()
		loop.Wait()
	}()

	pool := NewPool(loop)
	errCh := make(chan error, 1)
	if _, err := pool.Run("sleep", map[string]any{"ms": 60000}, func(_ any, err error) error {
		errCh <- err
		return nil
	}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		pool.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return; op ignored context cancellation")
	}
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled sleep never delivered its outcome")
	}
}
