package cli

import (
	"io"
	"os"
	"os/signal"

	"github.com/ksyq12/labcmdr/internal/config"
	"github.com/ksyq12/labcmdr/internal/executor"
	"github.com/ksyq12/labcmdr/internal/input"
	"github.com/ksyq12/labcmdr/internal/lab"
	"github.com/ksyq12/labcmdr/internal/server"
)

// Dependencies aggregates all CLI external dependencies for testability
type Dependencies struct {
	ConfigLoader ConfigLoader
	LabFinder    LabFinder
	Lifecycle    *server.Lifecycle
	Process      server.Process
	Executor     executor.CommandExecutor
	StdinReader  StdinReader
	Interrupts   InterruptSource

	// Stdin and Stdout back the interactive console and the access log mirror
	Stdin  io.Reader
	Stdout io.Writer
}

// ConfigLoader loads the global configuration
type ConfigLoader interface {
	Load() *config.Global
	Path() (string, error)
}

// LabFinder locates the lab enclosing a directory
type LabFinder interface {
	FindRoot(start string) (string, error)
}

// InterruptSource delivers SIGINT to the console. The returned function
// stops delivery.
type InterruptSource interface {
	Notify() (<-chan os.Signal, func())
}

// StdinReader reads from stdin
type StdinReader = input.Reader

// Package-level dependencies (can be overridden for testing)
var deps = &Dependencies{
	ConfigLoader: &realConfigLoader{},
	LabFinder:    &realLabFinder{},
	Lifecycle:    server.NewLifecycle(),
	Process:      server.OSProcess,
	Executor:     executor.NewSystemExecutor(),
	StdinReader:  input.NewStdinReader(),
	Interrupts:   &realInterrupts{},
	Stdin:        os.Stdin,
	Stdout:       os.Stdout,
}

// SetDeps replaces the package dependencies (for testing)
func SetDeps(d *Dependencies) {
	deps = d
}

// GetDeps returns the current dependencies (for testing)
func GetDeps() *Dependencies {
	return deps
}

// Real implementations that delegate to existing functions

type realConfigLoader struct{}

func (r *realConfigLoader) Load() *config.Global {
	return config.Load()
}

func (r *realConfigLoader) Path() (string, error) {
	return config.ConfigPath()
}

type realLabFinder struct{}

func (r *realLabFinder) FindRoot(start string) (string, error) {
	return lab.FindRoot(start)
}

type realInterrupts struct{}

func (r *realInterrupts) Notify() (<-chan os.Signal, func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	return ch, func() { signal.Stop(ch) }
}
