package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SetKeyInFile updates or inserts a global option in the config file at
// path, preserving comments, blank lines, and section contents. The file is
// created if it does not exist. Only the global section (before the first
// [section] header) is touched; writes are atomic via a temp file rename.
func SetKeyInFile(path, key, value string) error {
	if key == "" {
		return fmt.Errorf("empty config key")
	}

	var lines []string
	if data, err := os.ReadFile(path); err == nil {
		lines = strings.Split(string(data), "\n")
		// Drop a single trailing empty line from the final newline so we do
		// not accumulate blank lines across rewrites.
		if n := len(lines); n > 0 && lines[n-1] == "" {
			lines = lines[:n-1]
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	newLine := key
	if value != "" {
		newLine = key + " " + value
	}

	replaced := false
	firstSection := -1
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			firstSection = i
			break
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name := line
		if idx := strings.IndexByte(line, ' '); idx >= 0 {
			name = line[:idx]
		}
		if name == key {
			lines[i] = newLine
			replaced = true
			break
		}
	}

	if !replaced {
		if firstSection >= 0 {
			lines = append(lines[:firstSection], append([]string{newLine}, lines[firstSection:]...)...)
		} else {
			lines = append(lines, newLine)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp := path + ".tmp"
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(tmp, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace config file: %w", err)
	}
	return nil
}
