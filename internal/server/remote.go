package server

import (
	"context"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/ksyq12/labcmdr/internal/errors"
	"github.com/ksyq12/labcmdr/internal/lab"
	"github.com/ksyq12/labcmdr/internal/logger"
	"github.com/ksyq12/labcmdr/internal/platform"
)

// RemoteStopTimeout bounds how long StopRemote waits for the owning process
var RemoteStopTimeout = DefaultStopTimeout + 2*time.Second

// Process abstracts signalling the process that owns a server
type Process interface {
	Alive(pid int) bool
	Signal(pid int, sig os.Signal) error
}

type osProcess struct{}

func (osProcess) Alive(pid int) bool                  { return platform.ProcessAlive(pid) }
func (osProcess) Signal(pid int, sig os.Signal) error { return platform.Signal(pid, sig) }

// OSProcess signals real processes
var OSProcess Process = osProcess{}

// StopRemote stops a server owned by another process by sending it SIGTERM
// and waiting for its runtime record to clear. A record whose process is
// gone is cleared directly and reported as stale.
func StopRemote(ctx context.Context, root string, proc Process) (stale bool, err error) {
	cfg, err := lab.Load(root)
	if err != nil {
		return false, err
	}
	rt := cfg.Runtime
	if !rt.ServerRunning && rt.Consistent() {
		return false, errors.ErrServerNotRunning
	}

	pid := 0
	if rt.ServerPID != nil {
		pid = *rt.ServerPID
	}
	if pid == 0 || pid == os.Getpid() || !proc.Alive(pid) {
		logger.Debug("Clearing stale runtime record (pid %d)", pid)
		return true, clearRuntime(root)
	}

	if err := proc.Signal(pid, syscall.SIGTERM); err != nil {
		return false, fmt.Errorf("failed to signal server process %d: %w", pid, err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		cfg, err := lab.Load(root)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		if !cfg.Runtime.ServerRunning || !proc.Alive(pid) {
			return struct{}{}, nil
		}
		return struct{}{}, fmt.Errorf("server process %d still running", pid)
	}, backoff.WithBackOff(b), backoff.WithMaxElapsedTime(RemoteStopTimeout))
	if err != nil {
		return false, err
	}

	// the process may have died without cleaning up
	cfg, err = lab.Load(root)
	if err != nil {
		return false, err
	}
	if cfg.Runtime.ServerRunning {
		return true, clearRuntime(root)
	}
	return false, nil
}

func clearRuntime(root string) error {
	return lab.Update(root, func(c *lab.Config) error {
		c.Runtime.Clear()
		return nil
	})
}
