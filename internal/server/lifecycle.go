// Package server runs the lab file server and keeps the lab's runtime
// record in step with it.
//
// A process owns one Lifecycle, which owns at most one running Handle.
// Every transition is persisted through lab.Update, so the runtime section
// is either fully populated or fully cleared on disk.
package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/ksyq12/labcmdr/internal/config"
	"github.com/ksyq12/labcmdr/internal/errors"
	"github.com/ksyq12/labcmdr/internal/fileserver"
	"github.com/ksyq12/labcmdr/internal/lab"
	"github.com/ksyq12/labcmdr/internal/logger"
	"github.com/ksyq12/labcmdr/internal/platform"
	"go.uber.org/zap"
)

// State of a Lifecycle
type State int

// Lifecycle states
const (
	Stopped State = iota
	Starting
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "stopped"
	}
}

// DefaultStopTimeout bounds graceful shutdown
const DefaultStopTimeout = 5 * time.Second

// Subdirectories created under the serve and loot roots on start
var (
	ServeDirs = []string{"tools", "exploits", "payloads"}
	LootDirs  = []string{"creds", "hashes", "interesting_files", "screenshots"}
)

// Options configures a server start
type Options struct {
	Root          string
	Port          int
	AutoIncrement bool
	Interfaces    []string
	EnableUpload  bool
	ServePath     string
	LootPath      string
	// Console mirrors the access log; nil logs to the file only.
	Console io.Writer
}

// OptionsFromConfig fills Options from the global config. port overrides
// server.default_port when non-zero.
func OptionsFromConfig(cfg *config.Config, root string, port int) Options {
	if port == 0 {
		port = cfg.Server.DefaultPort
	}
	return Options{
		Root:          root,
		Port:          port,
		AutoIncrement: cfg.Server.AutoIncrementPort,
		Interfaces:    cfg.Network.Interfaces(),
		EnableUpload:  cfg.Server.EnableUpload,
		ServePath:     cfg.Server.ServePath,
		LootPath:      cfg.Server.LootPath,
	}
}

// Handle is a running file server
type Handle struct {
	Root      string
	IP        string
	Interface string
	Port      int
	PID       int
	StartedAt time.Time
	ServeDir  string
	LootDir   string
	LogPath   string

	srv  *http.Server
	log  *fileserver.AccessLog
	done chan struct{}
	err  error
}

// Addr returns ip:port
func (h *Handle) Addr() string {
	return net.JoinHostPort(h.IP, strconv.Itoa(h.Port))
}

// URL returns the base URL targets use
func (h *Handle) URL() string {
	return "http://" + h.Addr()
}

// Done is closed when the serve loop exits
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err reports why the serve loop exited, if not through Stop
func (h *Handle) Err() error {
	<-h.done
	return h.err
}

// Lifecycle owns the process's file server
type Lifecycle struct {
	// ResolveIP picks the bind address from interface names
	ResolveIP func(names []string) (ip, iface string, err error)
	// Exit is called after a signal-triggered shutdown
	Exit func(code int)
	// Now stamps server_started_at
	Now         func() time.Time
	StopTimeout time.Duration

	mu     sync.Mutex
	state  State
	handle *Handle
}

// NewLifecycle returns a Lifecycle bound to the real network and process
func NewLifecycle() *Lifecycle {
	return &Lifecycle{
		ResolveIP:   platform.ResolveAttackerIP,
		Exit:        os.Exit,
		Now:         time.Now,
		StopTimeout: DefaultStopTimeout,
	}
}

// State returns the current state
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Handle returns the running server, or nil
func (l *Lifecycle) Handle() *Handle {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handle
}

// Start brings the server up and records it in the lab config. When a server
// is already running it is returned with already set.
func (l *Lifecycle) Start(ctx context.Context, opts Options) (h *Handle, already bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.handle != nil {
		return l.handle, true, nil
	}
	l.state = Starting
	h, err = l.start(ctx, opts)
	if err != nil {
		l.state = Stopped
		return nil, false, err
	}
	l.handle = h
	l.state = Running
	return h, false, nil
}

func (l *Lifecycle) start(ctx context.Context, opts Options) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ip, iface, err := l.ResolveIP(opts.Interfaces)
	if err != nil {
		return nil, err
	}
	logger.Debug("Binding to %s on %s", ip, iface)

	h := &Handle{
		Root:      opts.Root,
		IP:        ip,
		Interface: iface,
		PID:       os.Getpid(),
		ServeDir:  config.LabPath(opts.Root, opts.ServePath),
		LootDir:   config.LabPath(opts.Root, opts.LootPath),
		LogPath:   lab.LogPath(opts.Root),
		done:      make(chan struct{}),
	}
	if err := skeleton(h.ServeDir, ServeDirs); err != nil {
		return nil, err
	}
	if err := skeleton(h.LootDir, LootDirs); err != nil {
		return nil, err
	}

	attempts := 1
	if opts.AutoIncrement {
		attempts = ProbeAttempts
	}
	ln, port, err := ProbePort(ip, opts.Port, attempts)
	if err != nil {
		return nil, err
	}
	h.Port = port

	h.log, err = fileserver.OpenAccessLog(h.LogPath, opts.Console)
	if err != nil {
		_ = ln.Close()
		return nil, err
	}
	h.StartedAt = l.Now()
	if err := h.log.Banner(h.StartedAt, ip, port); err != nil {
		logger.Warn("Failed to write log banner: %v", err)
	}

	h.srv = &http.Server{
		Handler: fileserver.New(fileserver.Options{
			ServeRoot:    h.ServeDir,
			LootRoot:     h.LootDir,
			EnableUpload: opts.EnableUpload,
			Log:          h.log.Logger,
		}),
		ReadHeaderTimeout: 30 * time.Second,
		ErrorLog:          zap.NewStdLog(h.log.Logger),
	}
	go func() {
		defer close(h.done)
		if err := h.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("File server stopped: %v", err)
			h.err = err
		}
	}()

	err = lab.Update(opts.Root, func(c *lab.Config) error {
		c.Runtime.MarkRunning(port, h.PID, ip, h.LogPath, h.StartedAt)
		return nil
	})
	if err != nil {
		_ = h.srv.Close()
		<-h.done
		_ = h.log.Close()
		return nil, fmt.Errorf("failed to record server state: %w", err)
	}

	logger.Info("Server listening on %s", h.URL())
	return h, nil
}

func skeleton(root string, dirs []string) error {
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", d, err)
		}
	}
	return nil
}

// Stop shuts the server down, waiting at most StopTimeout for in-flight
// requests, then clears the runtime record in one write.
func (l *Lifecycle) Stop(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.handle == nil {
		return errors.ErrServerNotRunning
	}
	return l.stop(ctx)
}

func (l *Lifecycle) stop(ctx context.Context) error {
	h := l.handle
	l.state = Stopping

	sctx, cancel := context.WithTimeout(ctx, l.StopTimeout)
	if err := h.srv.Shutdown(sctx); err != nil {
		logger.Warn("Graceful shutdown did not finish, closing connections: %v", err)
		_ = h.srv.Close()
	}
	cancel()

	select {
	case <-h.done:
	case <-time.After(l.StopTimeout):
		logger.Warn("Serve loop did not exit within %s", l.StopTimeout)
	}
	h.log.Info(fmt.Sprintf("Server stopped after %s", l.Now().Sub(h.StartedAt).Round(time.Second)))
	_ = h.log.Close()

	l.handle = nil
	l.state = Stopped

	if err := lab.Update(h.Root, func(c *lab.Config) error {
		c.Runtime.Clear()
		return nil
	}); err != nil {
		return fmt.Errorf("server stopped but runtime state was not cleared: %w", err)
	}
	logger.Info("Server on port %d stopped", h.Port)
	return nil
}

// Restart stops a running server and starts a new one. A zero opts.Port
// reuses the previous port. Start failures are returned.
func (l *Lifecycle) Restart(ctx context.Context, opts Options) (*Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.handle != nil {
		prev := l.handle.Port
		if err := l.stop(ctx); err != nil {
			return nil, err
		}
		if opts.Port == 0 {
			opts.Port = prev
		}
	}

	l.state = Starting
	h, err := l.start(ctx, opts)
	if err != nil {
		l.state = Stopped
		return nil, err
	}
	l.handle = h
	l.state = Running
	return h, nil
}

// Close stops the server if one is running. It is safe to call at exit
// whether or not a server was started.
func (l *Lifecycle) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.handle == nil {
		return nil
	}
	return l.stop(context.Background())
}

// InstallSignalHandlers stops the server and exits 0 when one of sigs
// arrives. The returned function uninstalls the handler.
func (l *Lifecycle) InstallSignalHandlers(sigs ...os.Signal) func() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	quit := make(chan struct{})
	var once sync.Once

	go func() {
		select {
		case sig := <-ch:
			logger.Info("Received %s, shutting down", sig)
			if err := l.Close(); err != nil {
				logger.Error("Shutdown failed: %v", err)
			}
			l.Exit(0)
		case <-quit:
		}
	}()

	return func() {
		once.Do(func() {
			signal.Stop(ch)
			close(quit)
		})
	}
}
