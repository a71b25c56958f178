package lab

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/ksyq12/labcmdr/internal/errors"
	"golang.org/x/sys/unix"
)

const lockFile = ".labconfig.lock"

// lockTimeout bounds how long a writer waits for another writer
var lockTimeout = 3 * time.Second

// withLock runs fn while holding an exclusive flock on the lab's lock file
func withLock(root string, fn func() error) error {
	path := filepath.Join(MarkerPath(root), lockFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.LabNotFound(root)
		}
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	defer f.Close()

	fd := int(f.Fd())
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB)
		if err == nil || errors.Is(err, unix.EWOULDBLOCK) {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}, backoff.WithBackOff(b), backoff.WithMaxElapsedTime(lockTimeout))
	if err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, context.DeadlineExceeded) {
			return errors.Wrap(errors.ErrCodeLockTimeout, "timed out waiting for lab config lock", err)
		}
		return fmt.Errorf("failed to lock lab config: %w", err)
	}
	defer func() { _ = unix.Flock(fd, unix.LOCK_UN) }()

	return fn()
}
