package scripting

// JavaScript API functions for worker offload

import "github.com/dop251/goja"

// jsWorkerRun starts a named blocking operation on a worker goroutine and
// returns its handle. The callback receives (result, err) on completion.
// An unknown op name throws at the call site.
func (e *Engine) jsWorkerRun(op string, args map[string]interface{}, fn goja.Callable) int64 {
	h, err := e.pool.Run(op, args, e.jsCallback(fn))
	if err != nil {
		e.throw(err)
	}
	return int64(h)
}

// jsWorkerOps returns the available operation names.
func (e *Engine) jsWorkerOps() []string {
	return e.pool.Ops()
}
