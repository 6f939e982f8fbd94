// Package app contains the core application logic: it wires the sweep
// loader, the cluster context, and the coordinator together and drives the
// sweep sequentially, decoupled from any specific entrypoint like a CLI.
package app

import (
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/vk/sweepbench/internal/pattern"
	"github.com/vk/sweepbench/internal/remote"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW    io.Writer
	logger  *slog.Logger
	config  *Config
	sweepID string

	// exec and gen are nil unless injected; Run wires the production
	// implementations otherwise.
	exec remote.Executor
	gen  pattern.Generator
}

// Option customizes an App, primarily for tests.
type Option func(*App)

// WithExecutor injects a remote executor in place of the ssh implementation.
func WithExecutor(exec remote.Executor) Option {
	return func(a *App) { a.exec = exec }
}

// WithGenerator injects a pattern generator in place of the external command.
func WithGenerator(gen pattern.Generator) Option {
	return func(a *App) { a.gen = gen }
}

// NewApp is the constructor for the main application. Every invocation gets a
// unique sweep id attached to all its log records.
func NewApp(outW io.Writer, config *Config, opts ...Option) *App {
	sweepID := uuid.NewString()
	logger := newLogger(config.LogLevel, config.LogFormat, outW).With("sweep_id", sweepID)

	a := &App{
		outW:    outW,
		logger:  logger,
		config:  config,
		sweepID: sweepID,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}
