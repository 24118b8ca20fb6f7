package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type Config struct {
	LogLevel string `json:"logLevel"`
	LogFile  string `json:"logFile,omitempty"`

	// ClaudeBin is the Claude Code CLI executable driven by the bridge.
	ClaudeBin string `json:"claudeBin"`

	Tools ToolsConfig `json:"tools"`
}

type ToolsConfig struct {
	// Disabled suppresses registration of the built-in tool catalog for
	// every session (per-session opt-out arrives via _meta).
	Disabled bool `json:"disabled,omitempty"`

	Terminal TerminalConfig `json:"terminal"`
}

type TerminalConfig struct {
	MaxProcesses       int `json:"maxProcesses"`
	OutputByteLimit    int `json:"outputByteLimit,omitempty"`
	MaxOutputByteLimit int `json:"maxOutputByteLimit,omitempty"`
}

func Default() Config {
	return Config{
		LogLevel:  "info",
		ClaudeBin: "claude",
		Tools: ToolsConfig{
			Terminal: TerminalConfig{
				MaxProcesses:       10,
				OutputByteLimit:    1024 * 1024,
				MaxOutputByteLimit: 10 * 1024 * 1024,
			},
		},
	}
}

func Normalize(cfg Config) (Config, error) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if strings.TrimSpace(cfg.ClaudeBin) == "" {
		cfg.ClaudeBin = "claude"
	}
	if cfg.Tools.Terminal.MaxProcesses <= 0 {
		cfg.Tools.Terminal.MaxProcesses = 10
	}
	if cfg.Tools.Terminal.OutputByteLimit <= 0 {
		cfg.Tools.Terminal.OutputByteLimit = 1024 * 1024
	}
	if cfg.Tools.Terminal.MaxOutputByteLimit < cfg.Tools.Terminal.OutputByteLimit {
		cfg.Tools.Terminal.MaxOutputByteLimit = cfg.Tools.Terminal.OutputByteLimit
	}
	if cfg.LogFile != "" {
		resolved, err := expandPath(cfg.LogFile)
		if err != nil {
			return Config{}, err
		}
		cfg.LogFile = resolved
	}
	return cfg, nil
}

func Validate(cfg Config) []error {
	var errs []error

	if cfg.LogLevel != "error" && cfg.LogLevel != "warn" && cfg.LogLevel != "info" && cfg.LogLevel != "debug" {
		errs = append(errs, fmt.Errorf("invalid logLevel: %s", cfg.LogLevel))
	}
	if cfg.Tools.Terminal.MaxProcesses < 1 || cfg.Tools.Terminal.MaxProcesses > 100 {
		errs = append(errs, errors.New("tools.terminal.maxProcesses must be between 1 and 100"))
	}
	return errs
}

func expandPath(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", errors.New("path cannot be empty")
	}

	if strings.HasPrefix(p, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		p = filepath.Join(home, strings.TrimPrefix(p, "~"))
	}

	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", p, err)
	}
	return abs, nil
}
