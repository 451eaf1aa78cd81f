package types

import (
	"context"
	"errors"
	"fmt"
)

// Stage names one step of a cycle
type Stage string

const (
	StageGenerate   Stage = "generate"
	StageScore      Stage = "score"
	StageSynthesize Stage = "synthesize"
	StagePublish    Stage = "publish"
	StageRecord     Stage = "record"
)

// ErrTimeout matches any StageError caused by an external call running past its deadline
var ErrTimeout = errors.New("external call timed out")

// StageError is a failure that ends the current cycle but never the process.
// Step narrows down where inside the stage it happened (e.g. "narration", "compose").
// Output carries captured diagnostics of a failed subprocess, if any.
type StageError struct {
	Stage  Stage
	Step   string
	Err    error
	Output string
}

func (e *StageError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("%s/%s: %v", e.Stage, e.Step, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Is reports deadline failures as ErrTimeout
func (e *StageError) Is(target error) bool {
	return target == ErrTimeout && e.Timeout()
}

// Timeout reports whether the stage failed because a deadline was exceeded
func (e *StageError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// NewStageError wraps err for stage/step, keeping an existing StageError intact
func NewStageError(stage Stage, step string, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) && se.Stage == stage {
		return err
	}
	return &StageError{Stage: stage, Step: step, Err: err}
}

// StageOf returns the stage an error belongs to, or "" if it is not a StageError
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
