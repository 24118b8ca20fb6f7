package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// boundPath resolves path against cwd and rejects anything escaping it. The
// fs methods exist so built-in tools can round-trip file content through
// client-mediated permission checks; they are not a general file API.
func boundPath(cwd, path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required and must be a string")
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(cwd, path)
	}
	path = filepath.Clean(path)

	rel, err := filepath.Rel(cwd, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path is outside the session working directory: %s", path)
	}
	return path, nil
}

// readTextFile reads the file, optionally narrowing to a 1-based line range.
func readTextFile(path string, line, limit int) (string, error) {
	if line < 0 {
		return "", fmt.Errorf("line must be a positive integer (1-based)")
	}
	if limit < 0 {
		return "", fmt.Errorf("limit must be a positive integer")
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	text := string(buf)
	if line == 0 && limit == 0 {
		return text, nil
	}

	lines := strings.Split(text, "\n")
	start := 0
	if line > 0 {
		start = line - 1
	}
	if start > len(lines) {
		start = len(lines)
	}
	end := len(lines)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	return strings.Join(lines[start:end], "\n"), nil
}

func writeTextFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
