package checkpoint

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"shotforge/internal/pipeline"
)

func TestAcquireSessionLock(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "locks")
	key := pipeline.SessionKey{ProjectID: "Proj 1", EpisodeID: "ep/2"}

	first, err := AcquireSessionLock(dir, key)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if got, want := first.Path(), filepath.Join(dir, "proj_1_ep_2.lock"); got != want {
		t.Fatalf("Path = %q, want %q", got, want)
	}

	if _, err := AcquireSessionLock(dir, key); !errors.Is(err, ErrSessionBusy) {
		t.Fatalf("second acquire err = %v, want ErrSessionBusy", err)
	}

	other, err := AcquireSessionLock(dir, pipeline.SessionKey{ProjectID: "Proj 1", EpisodeID: "ep-3"})
	if err != nil {
		t.Fatalf("other session: %v", err)
	}
	defer other.Release()

	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	again, err := AcquireSessionLock(dir, key)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	_ = again.Release()
}

func TestAcquireSessionLockContextTakesOverAfterCancel(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "locks")
	key := pipeline.SessionKey{ProjectID: "proj", EpisodeID: "ep1"}

	holder, err := AcquireSessionLock(dir, key)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if holder.CancelRequested() {
		t.Fatal("fresh lock reports a cancel request")
	}

	stopped := make(chan struct{})
	holder.WatchCancel(t.Context(), 10*time.Millisecond, func() {
		_ = holder.Release()
		close(stopped)
	})

	if err := RequestCancel(dir, key); err != nil {
		t.Fatalf("RequestCancel: %v", err)
	}
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	next, err := AcquireSessionLockContext(ctx, dir, key, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("takeover: %v", err)
	}
	defer next.Release()

	select {
	case <-stopped:
	default:
		t.Fatal("holder was not asked to stop")
	}
	if next.CancelRequested() {
		t.Fatal("cancel request survived the takeover")
	}
	if _, err := os.Stat(CancelPath(dir, key)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("cancel file stat err = %v", err)
	}
}

func TestAcquireSessionLockContextGivesUp(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "locks")
	key := pipeline.SessionKey{ProjectID: "proj", EpisodeID: "ep1"}

	holder, err := AcquireSessionLock(dir, key)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer holder.Release()

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()
	_, err = AcquireSessionLockContext(ctx, dir, key, 10*time.Millisecond)
	if !errors.Is(err, ErrSessionBusy) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want ErrSessionBusy and DeadlineExceeded", err)
	}
}
