// Package scripting embeds the JavaScript runtime and exposes the host's
// asynchronous primitives (timers, worker offload, the UI bridge) to
// scripts. The goja VM is not goroutine-safe; it is created on the engine
// loop goroutine and only ever touched from there.
package scripting

import (
	"fmt"
	"io"
	"os"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"

	"github.com/joeycumines/script-host/internal/bridge"
	"github.com/joeycumines/script-host/internal/engine"
	"github.com/joeycumines/script-host/internal/worker"
)

// Engine owns the goja VM and the script-facing API surface.
type Engine struct {
	loop     *engine.Loop
	pool     *worker.Pool
	bridge   *bridge.Bridge
	logger   *Logger
	vm       *goja.Runtime
	registry *require.Registry
	stdout   io.Writer
	stderr   io.Writer
	guiOn    bool
}

// NewEngine creates an engine over an already-constructed loop, worker pool,
// and bridge. guiAvailable reflects which host variant backs the bridge.
func NewEngine(loop *engine.Loop, pool *worker.Pool, br *bridge.Bridge, logger *Logger, stdout, stderr io.Writer, guiAvailable bool) *Engine {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return &Engine{
		loop:   loop,
		pool:   pool,
		bridge: br,
		logger: logger,
		stdout: stdout,
		stderr: stderr,
		guiOn:  guiAvailable,
	}
}

// Start launches the loop and initializes the VM on it: module registry,
// console, and the host API namespaces.
func (e *Engine) Start() error {
	e.loop.Start()
	return e.loop.RunOnLoopSync(func() error {
		vm := goja.New()
		e.registry = require.NewRegistry()
		e.registry.Enable(vm)
		console.Enable(vm)
		e.vm = vm
		e.setupGlobals()
		return nil
	})
}

// Loop returns the engine loop.
func (e *Engine) Loop() *engine.Loop {
	return e.loop
}

// Logger returns the script-visible logger.
func (e *Engine) Logger() *Logger {
	return e.logger
}

// LoadScript compiles and runs code on the loop under the given name. A
// compile or top-level runtime error is returned to the caller; it is the
// uncaught-load-error path that makes the process exit nonzero.
func (e *Engine) LoadScript(name, code string) error {
	return e.loop.RunOnLoopSync(func() error {
		prg, err := goja.Compile(name, code, true)
		if err != nil {
			return fmt.Errorf("failed to compile %s: %w", name, err)
		}
		if _, err := e.vm.RunProgram(prg); err != nil {
			return fmt.Errorf("failed to run %s: %w", name, err)
		}
		return nil
	})
}

// LoadScriptFile reads and runs a script from disk.
func (e *Engine) LoadScriptFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read script %s: %w", path, err)
	}
	return e.LoadScript(path, string(content))
}

// LoadFragment runs one -e code fragment. Fragments execute in order before
// the main script.
func (e *Engine) LoadFragment(index int, code string) error {
	return e.LoadScript(fmt.Sprintf("<fragment-%d>", index), code)
}

// SetGlobal sets a global variable in the JavaScript runtime.
func (e *Engine) SetGlobal(name string, value any) error {
	return e.loop.RunOnLoopSync(func() error {
		return e.vm.Set(name, value)
	})
}

// setupGlobals installs the host API namespaces, both as globals and as
// require()-able native modules under the host: prefix. Loop goroutine only.
func (e *Engine) setupGlobals() {
	for name, api := range e.namespaces() {
		_ = e.vm.Set(name, api)
		e.registry.RegisterNativeModule("host:"+name, func(_ *goja.Runtime, module *goja.Object) {
			exports := module.Get("exports").(*goja.Object)
			for key, fn := range api {
				_ = exports.Set(key, fn)
			}
		})
	}
}

func (e *Engine) namespaces() map[string]map[string]interface{} {
	out := make(map[string]map[string]interface{})

	out["timers"] = map[string]interface{}{
		"setTimeout":      e.jsSetTimeout,
		"setInterval":     e.jsSetInterval,
		"clear":           e.jsClearTimer,
		"pendingCount":    e.jsPendingCount,
		"activeIntervals": e.jsActiveIntervals,
	}

	out["worker"] = map[string]interface{}{
		"run": e.jsWorkerRun,
		"ops": e.jsWorkerOps,
	}

	out["gui"] = map[string]interface{}{
		"available":     e.jsGUIAvailable,
		"send":          e.jsGUISend,
		"createWindow":  e.jsGUICreateWindow,
		"setWindowText": e.jsGUISetWindowText,
		"showWindow":    e.jsGUIShowWindow,
		"hideWindow":    e.jsGUIHideWindow,
		"closeWindow":   e.jsGUICloseWindow,
		"listWindows":   e.jsGUIListWindows,
		"updateWindow":  e.jsGUIUpdateWindow,
		"on":            e.jsGUIOn,
		"off":           e.jsGUIOff,
	}

	out["log"] = map[string]interface{}{
		"debug":      e.jsLogDebug,
		"info":       e.jsLogInfo,
		"warn":       e.jsLogWarn,
		"error":      e.jsLogError,
		"printf":     e.jsLogPrintf,
		"getLogs":    e.jsGetLogs,
		"clearLogs":  e.jsLogClear,
		"searchLogs": e.jsLogSearch,
	}

	out["output"] = map[string]interface{}{
		"print":  e.jsOutputPrint,
		"printf": e.jsOutputPrintf,
	}

	out["system"] = map[string]interface{}{
		"exec":       e.jsSystemExec,
		"readFile":   e.jsSystemReadFile,
		"writeFile":  e.jsSystemWriteFile,
		"fileExists": e.jsSystemFileExists,
		"env":        e.jsSystemEnv,
		"parseArgv":  e.jsSystemParseArgv,
	}

	return out
}

// jsCallback wraps a JS function as an engine callback. The wrapper runs on
// the loop goroutine, so touching the VM is safe; a thrown JS exception
// comes back as the call error and is handled at the dispatch boundary.
func (e *Engine) jsCallback(fn goja.Callable) engine.Callback {
	return func(payload any, err error) error {
		var errVal goja.Value = goja.Null()
		if err != nil {
			errVal = e.vm.NewGoError(err)
		}
		_, callErr := fn(goja.Undefined(), e.vm.ToValue(payload), errVal)
		return callErr
	}
}

// throw raises err as a JS exception at the registration call site.
func (e *Engine) throw(err error) {
	panic(e.vm.NewGoError(err))
}
