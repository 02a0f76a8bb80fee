package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSessionsRunCancelsPreviousRun(t *testing.T) {
	sessions := NewSessions()
	key := SessionKey{ProjectID: "p", EpisodeID: "e"}

	started := make(chan struct{})
	firstErr := make(chan error, 1)
	go func() {
		firstErr <- sessions.Run(context.Background(), key, func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		})
	}()
	<-started
	if !sessions.Active(key) {
		t.Fatal("expected active run")
	}

	ran := false
	err := sessions.Run(context.Background(), key, func(ctx context.Context) error {
		ran = true
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !ran {
		t.Fatal("second run did not execute")
	}
	select {
	case err := <-firstErr:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("first run err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("first run was not canceled")
	}
	if sessions.Active(key) {
		t.Fatal("registry should be empty after runs finish")
	}
}

func TestSessionsCancel(t *testing.T) {
	sessions := NewSessions()
	key := SessionKey{ProjectID: "p", EpisodeID: "e"}
	if sessions.Cancel(key) {
		t.Fatal("Cancel reported a run that does not exist")
	}

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- sessions.Run(context.Background(), key, func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		})
	}()
	<-started
	if !sessions.Cancel(key) {
		t.Fatal("Cancel should find the active run")
	}
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("run did not stop")
	}
}

func TestSessionsIndependentKeys(t *testing.T) {
	sessions := NewSessions()
	a := SessionKey{ProjectID: "p", EpisodeID: "a"}
	b := SessionKey{ProjectID: "p", EpisodeID: "b"}

	err := sessions.Run(context.Background(), a, func(context.Context) error {
		return sessions.Run(context.Background(), b, func(ctx context.Context) error {
			if !sessions.Active(a) || !sessions.Active(b) {
				t.Error("both sessions should be active")
			}
			return ctx.Err()
		})
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
}
