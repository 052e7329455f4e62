package fs

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/byteowlz/tmpltr/pkg/core"
)

const (
	// LockSuffix is appended to a content file name to form its lock file.
	LockSuffix = ".lock"

	// DefaultLockTimeout bounds how long Lock waits for a held lock.
	DefaultLockTimeout = 5 * time.Second

	lockPoll = 10 * time.Millisecond
)

// LockPath returns the lock file guarding file.
func LockPath(file string) string {
	return file + LockSuffix
}

// Lock takes the exclusive lock on file by creating <file>.lock with
// O_EXCL, polling while another process holds it. It gives up after wait
// with a *core.LockTimeoutError, or earlier when ctx is done. A
// non-positive wait means DefaultLockTimeout.
//
// The returned func releases the lock and must be called on every path.
func Lock(ctx context.Context, file string, wait time.Duration) (func(), error) {
	if wait <= 0 {
		wait = DefaultLockTimeout
	}
	lockPath := LockPath(file)
	deadline := time.Now().Add(wait)

	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return func() {
				os.Remove(lockPath)
			}, nil
		}
		if !os.IsExist(err) {
			return nil, &core.IOError{Path: lockPath, Err: fmt.Errorf("failed to acquire lock: %w", err)}
		}
		if !time.Now().Before(deadline) {
			return nil, &core.LockTimeoutError{File: file, Wait: wait}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockPoll):
		}
	}
}
