package command

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joeycumines/script-host/internal/bridge"
	"github.com/joeycumines/script-host/internal/config"
	"github.com/joeycumines/script-host/internal/engine"
	"github.com/joeycumines/script-host/internal/scripting"
	"github.com/joeycumines/script-host/internal/uihost"
	"github.com/joeycumines/script-host/internal/worker"
)

// RunCommand executes a JavaScript file (and/or -e fragments) inside the
// script engine and exits when the engine drains.
type RunCommand struct {
	*BaseCommand
	config *config.Config

	fragments  fragmentList
	noGUI      bool
	runForever bool
	verbose    bool
}

// fragmentList collects repeated -e flags in order.
type fragmentList []string

func (f *fragmentList) String() string {
	return strings.Join(*f, "; ")
}

func (f *fragmentList) Set(value string) error {
	*f = append(*f, value)
	return nil
}

// NewRunCommand creates a new run command.
func NewRunCommand(cfg *config.Config) *RunCommand {
	return &RunCommand{
		BaseCommand: NewBaseCommand(
			"run",
			"Run a JavaScript file in the script engine",
			"run [options] [script.js]",
		),
		config: cfg,
	}
}

// SetupFlags configures the flags for the run command.
func (c *RunCommand) SetupFlags(fs *flag.FlagSet) {
	fs.Var(&c.fragments, "e", "Execute a code fragment before the script (repeatable)")
	fs.BoolVar(&c.noGUI, "no-gui", false, "Use the headless UI host")
	fs.BoolVar(&c.runForever, "run-forever", false, "Keep running with no pending callbacks")
	fs.BoolVar(&c.verbose, "v", false, "Verbose logging (debug level)")
}

// eventSink is implemented by both UI host variants; it cannot live on the
// bridge Host interface because the bridge that fans events out is built
// over the host.
type eventSink interface {
	SetEvents(uihost.EventFunc)
}

// Execute wires the engine, loads the script, and blocks until drain.
func (c *RunCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) > 1 {
		return fmt.Errorf("expected at most one script path, got %d arguments", len(args))
	}
	if len(args) == 0 && len(c.fragments) == 0 {
		return fmt.Errorf("nothing to run: pass a script path or -e fragments")
	}

	engCfg := c.config.Engine

	level := scripting.ParseLevel(engCfg.LogLevel)
	if c.verbose {
		level = scripting.ParseLevel("debug")
	}
	logger := scripting.NewLogger(stdout, engCfg.LogMaxEntries, level)

	loop := engine.New(
		engine.WithLogger(logger.Slog()),
		engine.WithSyncTimeout(time.Duration(engCfg.SyncTimeoutMs)*time.Millisecond),
	)
	if c.runForever || engCfg.RunForever {
		loop.Liveness().SetRunForever(true)
	}

	useGUI := !c.noGUI && isTerminal(os.Stdout)
	var host bridge.Host
	if useGUI {
		host = uihost.NewTerminal()
	} else {
		host = uihost.NewHeadless()
	}

	var bridgeOpts []bridge.Option
	bridgeOpts = append(bridgeOpts, bridge.WithBridgeLogger(logger.Slog()))
	if engCfg.BridgeTimeoutMs > 0 {
		bridgeOpts = append(bridgeOpts, bridge.WithTimeout(time.Duration(engCfg.BridgeTimeoutMs)*time.Millisecond))
	}
	br := bridge.New(loop, host, bridgeOpts...)
	if sink, ok := host.(eventSink); ok {
		sink.SetEvents(br.Publish)
	}

	pool := worker.NewPool(loop, worker.WithPoolLogger(logger.Slog()))

	eng := scripting.NewEngine(loop, pool, br, logger, stdout, stderr, useGUI)
	if err := eng.Start(); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}
	if err := br.Start(); err != nil {
		loop.Stop()
		loop.Wait()
		return fmt.Errorf("failed to start ui host: %w", err)
	}

	// Interrupt begins a drain instead of killing the process so already
	// queued callbacks still complete.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		loop.Stop()
	}()

	loadErr := c.load(eng, args)
	if loadErr == nil {
		loop.MarkLoaded()
	} else {
		loop.Stop()
	}

	loop.Wait()
	signal.Stop(sigCh)
	_ = br.Close()
	pool.Close()

	if loadErr != nil {
		return fmt.Errorf("script load failed: %w", loadErr)
	}
	return nil
}

// load runs -e fragments in order, then the main script if one was given.
func (c *RunCommand) load(eng *scripting.Engine, args []string) error {
	for i, fragment := range c.fragments {
		if err := eng.LoadFragment(i, fragment); err != nil {
			return err
		}
	}
	if len(args) == 1 {
		return eng.LoadScriptFile(args[0])
	}
	return nil
}

// isTerminal reports whether f is attached to a character device.
func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
