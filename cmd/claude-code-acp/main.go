// claude-code-acp speaks the Agent Client Protocol on stdio and drives a
// Claude Code CLI subprocess per editor session.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/soddy-dev/claude-code-acp/internal/config"
	"github.com/soddy-dev/claude-code-acp/internal/logging"
	"github.com/soddy-dev/claude-code-acp/internal/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		logLevel    string
		logFile     string
		claudeBin   string
		showVersion bool
	)
	pflag.StringVar(&logLevel, "log-level", "", "log level: error, warn, info, debug")
	pflag.StringVar(&logFile, "log-file", "", "append logs to this file instead of stderr")
	pflag.StringVar(&claudeBin, "claude-bin", "", "path to the claude executable")
	pflag.BoolVar(&showVersion, "version", false, "print version and exit")
	pflag.Parse()

	if showVersion {
		fmt.Fprintf(os.Stderr, "%s %s\n", server.AdapterName, server.AdapterVersion)
		return 0
	}

	cfg := config.Default()
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFile != "" {
		cfg.LogFile = logFile
	}
	if claudeBin != "" {
		cfg.ClaudeBin = claudeBin
	}
	cfg, err := config.Normalize(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		return 1
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		}
		return 1
	}

	logger := logging.New(cfg.LogLevel)
	if cfg.LogFile != "" {
		fileLogger, err := logging.NewWithFile(cfg.LogLevel, cfg.LogFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, "open log file:", err)
			return 1
		}
		logger = fileLogger
		defer logger.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg, os.Stdin, os.Stdout, logger)
	if err := srv.Serve(ctx); err != nil && ctx.Err() == nil {
		logger.Error("bridge terminated", map[string]any{"error": err.Error()})
		return 1
	}
	return 0
}
