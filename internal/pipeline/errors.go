package pipeline

import (
	"fmt"

	"shotforge/internal/services"
)

// StageError reports why a run stopped. Canceled distinguishes a user
// cancellation from a genuine failure; both leave the last checkpoint intact.
type StageError struct {
	Stage    Stage
	Canceled bool
	Err      error
}

func (e *StageError) Error() string {
	if e.Canceled {
		return fmt.Sprintf("%s stage canceled: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, services.ErrCanceled) recognize cancellations.
func (e *StageError) Is(target error) bool {
	return e.Canceled && target == services.ErrCanceled
}

// UserMessage renders the error for people rather than logs.
func (e *StageError) UserMessage() string {
	if e.Canceled {
		return fmt.Sprintf("Generation canceled during the %s stage; resume available.", e.Stage)
	}
	return fmt.Sprintf("The %s stage failed: %v; progress is kept at the last checkpoint.", e.Stage, e.Err)
}

func newStageError(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Canceled: services.IsCanceled(err), Err: err}
}
