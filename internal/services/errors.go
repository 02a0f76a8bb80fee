package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool      = errors.New("external tool error")
	ErrValidation        = errors.New("validation error")
	ErrConfiguration     = errors.New("configuration error")
	ErrNotFound          = errors.New("not found")
	ErrTimeout           = errors.New("timeout")
	ErrTransient         = errors.New("transient failure")
	ErrCanceled          = errors.New("canceled")
	ErrMalformedResponse = errors.New("malformed response")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Outcome classifies a failed operation for user reporting.
type Outcome string

const (
	OutcomeFailure  Outcome = "failure"
	OutcomeCanceled Outcome = "canceled"
)

// Classify reports whether err represents a user cancellation or a genuine
// failure. Collaborators that do not propagate context errors are recognized by
// their abort/cancel wording.
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeFailure
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrCanceled) {
		return OutcomeCanceled
	}
	msg := strings.ToLower(err.Error())
	for _, fragment := range []string{"aborted", "abort", "canceled", "cancelled"} {
		if strings.Contains(msg, fragment) {
			return OutcomeCanceled
		}
	}
	return OutcomeFailure
}

// IsCanceled is shorthand for Classify(err) == OutcomeCanceled.
func IsCanceled(err error) bool {
	return err != nil && Classify(err) == OutcomeCanceled
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
