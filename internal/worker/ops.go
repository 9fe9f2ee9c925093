package worker

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/joeycumines/script-host/internal/argv"
)

// registerBuiltinOps installs the standard operation set. Ops take loosely
// typed args (they arrive from script values); a bad argument is an op
// error delivered through the normal result path.
func registerBuiltinOps(p *Pool) {
	// Registration of the fixed built-in set cannot collide.
	_ = p.RegisterOp("sleep", opSleep)
	_ = p.RegisterOp("readFile", opReadFile)
	_ = p.RegisterOp("writeFile", opWriteFile)
	_ = p.RegisterOp("exec", opExec)
}

func opSleep(ctx context.Context, args map[string]any) (any, error) {
	ms, err := intArg(args, "ms")
	if err != nil {
		return nil, err
	}
	if ms < 0 {
		return nil, fmt.Errorf("sleep: negative duration %dms", ms)
	}
	timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-timer.C:
		return ms, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func opReadFile(_ context.Context, args map[string]any) (any, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func opWriteFile(_ context.Context, args map[string]any) (any, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return nil, err
	}
	data, err := stringArg(args, "data")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		return nil, err
	}
	return len(data), nil
}

// opExec runs an argv-style command and returns stdout, stderr, and the
// exit code as a map. A nonzero exit is a result, not an op error, so
// scripts can inspect failing commands. Accepts either an "argv" string
// array or a "line" shell-like string, tokenized POSIX-style.
func opExec(ctx context.Context, args map[string]any) (any, error) {
	var cmdArgv []string
	if line, ok := args["line"].(string); ok {
		cmdArgv = argv.ParseSlice(line)
	} else {
		parsed, err := stringSliceArg(args, "argv")
		if err != nil {
			return nil, err
		}
		cmdArgv = parsed
	}
	if len(cmdArgv) == 0 {
		return nil, fmt.Errorf("exec: empty argv")
	}

	c := exec.CommandContext(ctx, cmdArgv[0], cmdArgv[1:]...)
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	runErr := c.Run()

	code := 0
	message := ""
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
		message = runErr.Error()
	}
	return map[string]any{
		"stdout":  stdout.String(),
		"stderr":  stderr.String(),
		"code":    code,
		"error":   runErr != nil,
		"message": message,
	}, nil
}

func intArg(args map[string]any, key string) (int, error) {
	v, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("missing argument %q", key)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("argument %q must be a number, got %T", key, v)
	}
}

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing argument %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string, got %T", key, v)
	}
	return s, nil
}

func stringSliceArg(args map[string]any, key string) ([]string, error) {
	v, ok := args[key]
	if !ok {
		return nil, fmt.Errorf("missing argument %q", key)
	}
	switch vs := v.(type) {
	case []string:
		return vs, nil
	case []any:
		out := make([]string, 0, len(vs))
		for i, item := range vs {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("argument %q[%d] must be a string, got %T", key, i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("argument %q must be an array of strings, got %T", key, v)
	}
}
