// Package main is the entry point for the bookburst server.
//
// The main package is kept minimal. Its job is to:
//  1. Read configuration (environment variables, optionally from .env)
//  2. Create the logger
//  3. Hand both to internal/server and wait for a shutdown signal
//
// Two commands are available:
//
//	bookburst serve                               start the HTTP server (default)
//	bookburst signup --email E --username U       create an account from the terminal
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sakif/bookburst/internal/config"
	"github.com/sakif/bookburst/internal/logging"
)

func main() {
	os.Exit(execute(newRootCmd()))
}

// execute runs root and returns the process exit code. Errors are printed
// here because the commands silence cobra's own error output.
func execute(root *cobra.Command) int {
	if err := root.Execute(); err != nil {
		fmt.Fprintf(root.ErrOrStderr(), "error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	serve := newServeCmd()

	root := &cobra.Command{
		Use:           "bookburst",
		Short:         "BookBurst reading tracker backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		// No sub-command means serve.
		RunE: serve.RunE,
	}
	root.AddCommand(serve, newSignupCmd())
	return root
}

// setup loads the configuration and builds the logger every command shares.
// The returned close function flushes the log file, if any.
func setup() (config.Config, *slog.Logger, func() error, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, nil, err
	}

	logger, closeLog, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	}, os.Stdout)
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("logging: %w", err)
	}
	return cfg, logger, closeLog, nil
}
