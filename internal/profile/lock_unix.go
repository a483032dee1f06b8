//go:build !windows

package profile

import (
	"context"
	"fmt"
	"os"
	"syscall"
	"time"
)

// acquireLock takes an advisory flock on the registry file, retrying until
// lockTimeout.
func acquireLock(ctx context.Context, file *os.File, exclusive bool) error {
	lockType := syscall.LOCK_SH
	if exclusive {
		lockType = syscall.LOCK_EX
	}

	deadline := time.Now().Add(lockTimeout)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := syscall.Flock(int(file.Fd()), lockType|syscall.LOCK_NB)
		if err == nil {
			return nil
		}
		if err != syscall.EWOULDBLOCK {
			return fmt.Errorf("acquire registry lock: %w", err)
		}
		if time.Now().After(deadline) {
			return ErrLockTimeout
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func releaseLock(file *os.File) {
	syscall.Flock(int(file.Fd()), syscall.LOCK_UN) //nolint:errcheck // Lock dies with the fd regardless
}
