package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"shotforge/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "structure", "complete", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"structure", "complete", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want services.Outcome
	}{
		{"context canceled", fmt.Errorf("call: %w", context.Canceled), services.OutcomeCanceled},
		{"marker", services.Wrap(services.ErrCanceled, "shots", "", "stopped", nil), services.OutcomeCanceled},
		{"abort wording", errors.New("The operation was aborted"), services.OutcomeCanceled},
		{"british spelling", errors.New("request cancelled by user"), services.OutcomeCanceled},
		{"plain failure", errors.New("upstream 500"), services.OutcomeFailure},
		{"deadline", context.DeadlineExceeded, services.OutcomeFailure},
		{"nil", nil, services.OutcomeFailure},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.Classify(tc.err); got != tc.want {
				t.Fatalf("Classify(%v) = %s, want %s", tc.err, got, tc.want)
			}
		})
	}
	if services.IsCanceled(nil) {
		t.Fatal("nil must not be canceled")
	}
}
