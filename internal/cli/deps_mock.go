package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/ksyq12/labcmdr/internal/config"
	"github.com/ksyq12/labcmdr/internal/executor"
	"github.com/ksyq12/labcmdr/internal/input"
	"github.com/ksyq12/labcmdr/internal/lab"
	"github.com/ksyq12/labcmdr/internal/server"
)

// MockConfigLoader is a test double for ConfigLoader. Load re-reads File on
// every call so that config edits made by a command are visible to the next.
type MockConfigLoader struct {
	File    string
	PathErr error
	Loads   int
}

func (m *MockConfigLoader) Load() *config.Global {
	m.Loads++
	return config.LoadFrom(m.File)
}

func (m *MockConfigLoader) Path() (string, error) {
	if m.PathErr != nil {
		return "", m.PathErr
	}
	return m.File, nil
}

// MockLabFinder is a test double for LabFinder. With neither Root nor Err
// set it searches upward from start like the real finder.
type MockLabFinder struct {
	Root string
	Err  error
}

func (m *MockLabFinder) FindRoot(start string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	if m.Root != "" {
		return m.Root, nil
	}
	return lab.FindRoot(start)
}

// MockProcess is a test double for server.Process
type MockProcess struct {
	AliveFunc  func(pid int) bool
	SignalFunc func(pid int, sig os.Signal) error

	mu      sync.Mutex
	Signals []os.Signal
}

func (m *MockProcess) Alive(pid int) bool {
	if m.AliveFunc != nil {
		return m.AliveFunc(pid)
	}
	return pid == os.Getpid()
}

func (m *MockProcess) Signal(pid int, sig os.Signal) error {
	m.mu.Lock()
	m.Signals = append(m.Signals, sig)
	m.mu.Unlock()
	if m.SignalFunc != nil {
		return m.SignalFunc(pid, sig)
	}
	return nil
}

// MockInterrupts is a test double for InterruptSource
type MockInterrupts struct {
	C chan os.Signal
}

func (m *MockInterrupts) Notify() (<-chan os.Signal, func()) {
	return m.C, func() {}
}

// SyncBuffer is a bytes.Buffer safe for a writer and a reader on different
// goroutines
type SyncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *SyncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *SyncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Reset discards everything written so far
func (b *SyncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

// NewTestLifecycle returns a Lifecycle that binds loopback and never exits
// the process
func NewTestLifecycle() *server.Lifecycle {
	l := server.NewLifecycle()
	l.ResolveIP = func([]string) (string, string, error) { return "127.0.0.1", "lo", nil }
	l.Exit = func(int) {}
	l.StopTimeout = time.Second
	return l
}

// MockDependenciesBuilder helps create mock dependencies for tests
type MockDependenciesBuilder struct {
	deps *Dependencies
}

// NewMockDeps creates a new MockDependenciesBuilder with sensible defaults
func NewMockDeps() *MockDependenciesBuilder {
	return &MockDependenciesBuilder{
		deps: &Dependencies{
			ConfigLoader: &MockConfigLoader{File: filepath.Join(os.TempDir(), "labcmdr-missing", "config.yaml")},
			LabFinder:    &MockLabFinder{},
			Lifecycle:    NewTestLifecycle(),
			Process:      &MockProcess{},
			Executor:     &executor.MockExecutor{},
			StdinReader:  input.NewStringReader("y\n"),
			Interrupts:   &MockInterrupts{C: make(chan os.Signal, 1)},
			Stdin:        strings.NewReader(""),
			Stdout:       io.Discard,
		},
	}
}

// WithConfigFile points the config loader at a user config file
func (b *MockDependenciesBuilder) WithConfigFile(path string) *MockDependenciesBuilder {
	b.deps.ConfigLoader = &MockConfigLoader{File: path}
	return b
}

// WithLab pins the lab root instead of searching from the working directory
func (b *MockDependenciesBuilder) WithLab(root string) *MockDependenciesBuilder {
	b.deps.LabFinder = &MockLabFinder{Root: root}
	return b
}

// WithLabError makes lab lookup fail
func (b *MockDependenciesBuilder) WithLabError(err error) *MockDependenciesBuilder {
	b.deps.LabFinder = &MockLabFinder{Err: err}
	return b
}

// WithExecutor sets the command executor
func (b *MockDependenciesBuilder) WithExecutor(exec executor.CommandExecutor) *MockDependenciesBuilder {
	b.deps.Executor = exec
	return b
}

// WithProcess sets the process controller used for cross-process stop
func (b *MockDependenciesBuilder) WithProcess(proc server.Process) *MockDependenciesBuilder {
	b.deps.Process = proc
	return b
}

// WithLifecycle sets the server lifecycle
func (b *MockDependenciesBuilder) WithLifecycle(l *server.Lifecycle) *MockDependenciesBuilder {
	b.deps.Lifecycle = l
	return b
}

// WithStdinInput sets the answers returned to confirmation prompts
func (b *MockDependenciesBuilder) WithStdinInput(inputs ...string) *MockDependenciesBuilder {
	b.deps.StdinReader = input.NewStringReader(inputs...)
	return b
}

// WithConsole sets the console input, output and interrupt channel
func (b *MockDependenciesBuilder) WithConsole(in io.Reader, out io.Writer, interrupts chan os.Signal) *MockDependenciesBuilder {
	b.deps.Stdin = in
	b.deps.Stdout = out
	b.deps.Interrupts = &MockInterrupts{C: interrupts}
	return b
}

// Build returns the configured Dependencies
func (b *MockDependenciesBuilder) Build() *Dependencies {
	return b.deps
}

// testingT is the subset of *testing.T the helper needs
type testingT interface {
	Helper()
	Cleanup(func())
	TempDir() string
	Fatalf(format string, args ...interface{})
}

// TestHelper provides utilities for CLI tests: a temp home with a user config,
// a hosts file, captured output and mock dependencies.
type TestHelper struct {
	T          testingT
	OldDeps    *Dependencies
	Home       string
	ConfigFile string
	LabsRoot   string
	HostsFile  string
	Executor   *executor.MockExecutor
	Process    *MockProcess
	Out        *SyncBuffer
}

// NewTestHelper installs mock dependencies and captures output until the
// test ends
func NewTestHelper(t testingT) *TestHelper {
	t.Helper()

	home := t.TempDir()
	h := &TestHelper{
		T:          t,
		OldDeps:    deps,
		Home:       home,
		ConfigFile: filepath.Join(home, ".config", "labcmdr", "config.yaml"),
		LabsRoot:   filepath.Join(home, "Labs"),
		HostsFile:  filepath.Join(home, "hosts"),
		Executor:   &executor.MockExecutor{},
		Process:    &MockProcess{},
		Out:        &SyncBuffer{},
	}

	if err := os.MkdirAll(filepath.Dir(h.ConfigFile), 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	cfg := fmt.Sprintf(`paths:
  labs_root: %s
system:
  hosts_file: %s
  use_sudo_for_hosts: false
`, h.LabsRoot, h.HostsFile)
	if err := os.WriteFile(h.ConfigFile, []byte(cfg), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if err := os.WriteFile(h.HostsFile, []byte("127.0.0.1\tlocalhost\n"), 0644); err != nil {
		t.Fatalf("failed to write hosts file: %v", err)
	}

	deps = NewMockDeps().
		WithConfigFile(h.ConfigFile).
		WithExecutor(h.Executor).
		WithProcess(h.Process).
		Build()

	oldOutput := color.Output
	color.Output = h.Out
	resetFlags()

	t.Cleanup(func() {
		_ = deps.Lifecycle.Close()
		deps = h.OldDeps
		color.Output = oldOutput
		resetFlags()
	})

	return h
}

// SetLab pins the lab root used by commands
func (h *TestHelper) SetLab(root string) {
	deps.LabFinder = &MockLabFinder{Root: root}
}

// SetStdinInput sets the answers returned to confirmation prompts
func (h *TestHelper) SetStdinInput(inputs ...string) {
	deps.StdinReader = input.NewStringReader(inputs...)
}

// SetConfig appends YAML to the user config file
func (h *TestHelper) SetConfig(yaml string) {
	f, err := os.OpenFile(h.ConfigFile, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		h.T.Fatalf("failed to open config: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(yaml); err != nil {
		h.T.Fatalf("failed to write config: %v", err)
	}
}

// NewLab creates a lab config at dir and returns the root
func (h *TestHelper) NewLab(dir string, meta lab.Metadata, ip string, fqdns ...string) string {
	h.T.Helper()
	cfg := lab.New(meta)
	if err := cfg.SetIP(ip); err != nil {
		h.T.Fatalf("SetIP failed: %v", err)
	}
	cfg.Network.FQDN = append(cfg.Network.FQDN, fqdns...)
	if err := os.MkdirAll(lab.MarkerPath(dir), 0755); err != nil {
		h.T.Fatalf("failed to create marker dir: %v", err)
	}
	if err := lab.Save(dir, cfg); err != nil {
		h.T.Fatalf("Save failed: %v", err)
	}
	h.SetLab(dir)
	return dir
}

// LoadLab re-reads the lab config at root
func (h *TestHelper) LoadLab(root string) *lab.Config {
	h.T.Helper()
	cfg, err := lab.Load(root)
	if err != nil {
		h.T.Fatalf("Load failed: %v", err)
	}
	return cfg
}

// Execute runs the command line through the root command
func (h *TestHelper) Execute(args ...string) error {
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

// resetFlags restores every command flag to its default
func resetFlags() {
	jsonOutput = false
	verbose = false
	createName, createPlatform, createType, createIP, createCategory, createConference = "", "", "", "", "", ""
	createFQDNs = nil
	createSeason, createWeek, createYear = 0, 0, 0
	statusWatch = false
	configInitForce = false
	serverPort = 0
	logFollow = false
	logLines = 20
	hostsShowAll = false
}
