package server

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ksyq12/labcmdr/internal/errors"
	"github.com/ksyq12/labcmdr/internal/lab"
)

type fakeProcess struct {
	alive    atomic.Bool
	signalFn func(pid int, sig os.Signal) error

	mu      sync.Mutex
	signals []os.Signal
}

func newFakeProcess(alive bool) *fakeProcess {
	p := &fakeProcess{}
	p.alive.Store(alive)
	return p
}

func (f *fakeProcess) Alive(int) bool { return f.alive.Load() }

func (f *fakeProcess) Signal(pid int, sig os.Signal) error {
	f.mu.Lock()
	f.signals = append(f.signals, sig)
	f.mu.Unlock()
	if f.signalFn != nil {
		return f.signalFn(pid, sig)
	}
	return nil
}

func markRunning(t *testing.T, root string, pid int) {
	t.Helper()
	err := lab.Update(root, func(c *lab.Config) error {
		c.Runtime.MarkRunning(9000, pid, "10.10.14.2", lab.LogPath(root), time.Now())
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestStopRemote(t *testing.T) {
	t.Run("not running", func(t *testing.T) {
		root := newLab(t)
		_, err := StopRemote(context.Background(), root, newFakeProcess(false))
		if !errors.Is(err, errors.ErrServerNotRunning) {
			t.Errorf("expected ErrServerNotRunning, got %v", err)
		}
	})

	t.Run("stale record", func(t *testing.T) {
		root := newLab(t)
		markRunning(t, root, 999999)
		proc := newFakeProcess(false)

		stale, err := StopRemote(context.Background(), root, proc)
		if err != nil || !stale {
			t.Fatalf("StopRemote = %v, %v", stale, err)
		}
		if len(proc.signals) != 0 {
			t.Error("dead process was signalled")
		}
		cfg, _ := lab.Load(root)
		if cfg.Runtime.ServerRunning || cfg.Runtime.ServerPort != nil {
			t.Errorf("runtime not cleared: %+v", cfg.Runtime)
		}
	})

	t.Run("owning process cleans up", func(t *testing.T) {
		root := newLab(t)
		markRunning(t, root, 424242)
		proc := newFakeProcess(true)
		proc.signalFn = func(int, os.Signal) error {
			go func() {
				time.Sleep(50 * time.Millisecond)
				_ = clearRuntime(root)
				proc.alive.Store(false)
			}()
			return nil
		}

		stale, err := StopRemote(context.Background(), root, proc)
		if err != nil || stale {
			t.Fatalf("StopRemote = %v, %v", stale, err)
		}
		if len(proc.signals) != 1 {
			t.Errorf("signals = %v", proc.signals)
		}
	})

	t.Run("owning process never exits", func(t *testing.T) {
		root := newLab(t)
		markRunning(t, root, 424242)
		old := RemoteStopTimeout
		RemoteStopTimeout = 200 * time.Millisecond
		t.Cleanup(func() { RemoteStopTimeout = old })

		_, err := StopRemote(context.Background(), root, newFakeProcess(true))
		if err == nil {
			t.Fatal("expected timeout error")
		}
	})
}
