package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gofrs/flock"

	"shotforge/internal/pipeline"
	"shotforge/internal/textutil"
)

// ErrSessionBusy is returned when another process holds the session lock.
var ErrSessionBusy = errors.New("session is already running in another process")

// SessionLock is an exclusive, process-wide lock for one project episode.
// A process that wants the session while it is held leaves a cancel request
// next to the lock file; the holder notices it through WatchCancel.
type SessionLock struct {
	lock       *flock.Flock
	cancelPath string
}

// LockPath returns the lock file location for key under dir.
func LockPath(dir string, key pipeline.SessionKey) string {
	return filepath.Join(dir, lockBase(key)+".lock")
}

// CancelPath returns the location of the cancel request for key under dir.
func CancelPath(dir string, key pipeline.SessionKey) string {
	return filepath.Join(dir, lockBase(key)+".cancel")
}

func lockBase(key pipeline.SessionKey) string {
	return textutil.SanitizeToken(key.ProjectID) + "_" + textutil.SanitizeToken(key.EpisodeID)
}

// AcquireSessionLock takes the lock without blocking.
func AcquireSessionLock(dir string, key pipeline.SessionKey) (*SessionLock, error) {
	lock, err := newFlock(dir, key)
	if err != nil {
		return nil, err
	}
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionBusy, key)
	}
	return held(dir, key, lock)
}

// AcquireSessionLockContext retries every retryDelay until the lock is free
// or ctx ends. Pair it with RequestCancel to take over a running session.
func AcquireSessionLockContext(ctx context.Context, dir string, key pipeline.SessionKey, retryDelay time.Duration) (*SessionLock, error) {
	lock, err := newFlock(dir, key)
	if err != nil {
		return nil, err
	}
	ok, err := lock.TryLockContext(ctx, retryDelay)
	if ctxErr := ctx.Err(); ctxErr != nil {
		if ok {
			_ = lock.Unlock()
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrSessionBusy, key, ctxErr)
	}
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionBusy, key)
	}
	return held(dir, key, lock)
}

// RequestCancel asks whichever process holds key's lock to stop its run.
func RequestCancel(dir string, key pipeline.SessionKey) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}
	pid := strconv.Itoa(os.Getpid()) + "\n"
	if err := os.WriteFile(CancelPath(dir, key), []byte(pid), 0o644); err != nil {
		return fmt.Errorf("request cancel: %w", err)
	}
	return nil
}

func newFlock(dir string, key pipeline.SessionKey) (*flock.Flock, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	return flock.New(LockPath(dir, key)), nil
}

// held drops any request addressed to an earlier holder.
func held(dir string, key pipeline.SessionKey, lock *flock.Flock) (*SessionLock, error) {
	l := &SessionLock{lock: lock, cancelPath: CancelPath(dir, key)}
	if err := os.Remove(l.cancelPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		_ = lock.Unlock()
		return nil, fmt.Errorf("clear cancel request: %w", err)
	}
	return l, nil
}

// Path returns the lock file location.
func (l *SessionLock) Path() string {
	return l.lock.Path()
}

// CancelRequested reports whether another process asked for the session.
func (l *SessionLock) CancelRequested() bool {
	_, err := os.Stat(l.cancelPath)
	return err == nil
}

// WatchCancel checks for a cancel request every interval until ctx ends and
// calls stop once if one appears.
func (l *SessionLock) WatchCancel(ctx context.Context, interval time.Duration, stop func()) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if l.CancelRequested() {
					stop()
					return
				}
			}
		}
	}()
}

// Release unlocks the session. It is safe to call more than once.
func (l *SessionLock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}
