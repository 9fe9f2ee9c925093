package scripting

// JavaScript API functions for synchronous system access. These block the
// loop while they run; scripts that care should use worker.run instead.

import (
	"bytes"
	"os"
	"os/exec"

	"github.com/joeycumines/script-host/internal/argv"
)

// jsSystemExec executes a system command and returns an object with stdout,
// stderr, and exit code.
func (e *Engine) jsSystemExec(cmd string, args ...string) map[string]interface{} {
	c := exec.Command(cmd, args...)
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	err := c.Run()
	code := 0
	errStr := ""
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
		errStr = err.Error()
	}
	return map[string]interface{}{
		"stdout":  stdout.String(),
		"stderr":  stderr.String(),
		"code":    code,
		"error":   err != nil,
		"message": errStr,
	}
}

// jsSystemReadFile reads a file and returns an object with content or error
// info.
func (e *Engine) jsSystemReadFile(path string) map[string]interface{} {
	if path == "" {
		return map[string]interface{}{"error": true, "message": "empty path", "content": ""}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return map[string]interface{}{"error": true, "message": err.Error(), "content": ""}
	}
	return map[string]interface{}{"error": false, "content": string(data)}
}

// jsSystemWriteFile writes content to a file, creating it if needed.
func (e *Engine) jsSystemWriteFile(path, content string) map[string]interface{} {
	if path == "" {
		return map[string]interface{}{"error": true, "message": "empty path"}
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return map[string]interface{}{"error": true, "message": err.Error()}
	}
	return map[string]interface{}{"error": false}
}

// jsSystemFileExists checks whether a file or directory exists at the given
// path.
func (e *Engine) jsSystemFileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// jsSystemEnv gets an environment variable.
func (e *Engine) jsSystemEnv(key string) string {
	return os.Getenv(key)
}

// jsSystemParseArgv parses a shell-like command line into argv using a
// POSIX-compliant tokenizer. The result is suitable for worker.run("exec").
func (e *Engine) jsSystemParseArgv(s string) []string {
	return argv.ParseSlice(s)
}
