// Package executor runs external programs: the privileged hosts-file pipe,
// the operator's editor and the log pager. Tests swap in MockExecutor.
package executor

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// CommandExecutor is an interface for executing system commands
type CommandExecutor interface {
	// Execute runs a command and returns its combined output
	Execute(name string, args ...string) ([]byte, error)

	// ExecuteInput runs a command with stdin fed from input
	ExecuteInput(input []byte, name string, args ...string) ([]byte, error)

	// Interactive runs a command attached to the terminal
	Interactive(name string, args ...string) error

	// LookPath searches for an executable in the directories named by the PATH
	LookPath(file string) (string, error)
}

// SystemExecutor implements CommandExecutor using os/exec
type SystemExecutor struct{}

// NewSystemExecutor creates a new SystemExecutor
func NewSystemExecutor() *SystemExecutor {
	return &SystemExecutor{}
}

// Execute runs a command and returns combined output
func (e *SystemExecutor) Execute(name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	return cmd.CombinedOutput()
}

// ExecuteInput runs a command with the given stdin and returns combined output
func (e *SystemExecutor) ExecuteInput(input []byte, name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	cmd.Stdin = bytes.NewReader(input)
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return out, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return out, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// Interactive runs a command with the process's stdin, stdout and stderr
func (e *SystemExecutor) Interactive(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// LookPath searches for an executable
func (e *SystemExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

// IsInterrupted reports whether err is a child exit caused by Ctrl+C or
// SIGTERM (exit status 130 or 143)
func IsInterrupted(err error) bool {
	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		return false
	}
	code := exitErr.ExitCode()
	return code == 130 || code == 143
}

// MockExecutor is a mock implementation for testing
type MockExecutor struct {
	ExecuteFunc     func(name string, args ...string) ([]byte, error)
	InputFunc       func(input []byte, name string, args ...string) ([]byte, error)
	InteractiveFunc func(name string, args ...string) error
	LookPathFunc    func(file string) (string, error)

	mu    sync.Mutex
	Calls []CommandCall
}

// CommandCall records a command execution for verification
type CommandCall struct {
	Name  string
	Args  []string
	Input []byte
}

func (m *MockExecutor) record(c CommandCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, c)
}

// Execute calls the mock function
func (m *MockExecutor) Execute(name string, args ...string) ([]byte, error) {
	m.record(CommandCall{Name: name, Args: args})
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(name, args...)
	}
	return []byte(""), nil
}

// ExecuteInput calls the mock function
func (m *MockExecutor) ExecuteInput(input []byte, name string, args ...string) ([]byte, error) {
	m.record(CommandCall{Name: name, Args: args, Input: input})
	if m.InputFunc != nil {
		return m.InputFunc(input, name, args...)
	}
	return []byte(""), nil
}

// Interactive calls the mock function
func (m *MockExecutor) Interactive(name string, args ...string) error {
	m.record(CommandCall{Name: name, Args: args})
	if m.InteractiveFunc != nil {
		return m.InteractiveFunc(name, args...)
	}
	return nil
}

// LookPath calls the mock function
func (m *MockExecutor) LookPath(file string) (string, error) {
	if m.LookPathFunc != nil {
		return m.LookPathFunc(file)
	}
	return "/usr/bin/" + file, nil
}
