package pipeline

import (
	"errors"
	"fmt"
)

// ErrGenerationBusy is returned when a stage is re-triggered for a scene
// and asset kind that is already in progress.
var ErrGenerationBusy = errors.New("generation already in progress")

// ErrSceneNotFound is returned when a per-scene stage targets a missing id.
var ErrSceneNotFound = errors.New("scene not found")

// ErrorKind classifies a stage failure.
type ErrorKind string

const (
	KindValidation       ErrorKind = "validation"
	KindGeneration       ErrorKind = "generation"
	KindPartialNarration ErrorKind = "partialNarration"
	KindStorage          ErrorKind = "storage"
)

// StageError is a stage-aware error carried from a pipeline boundary into
// the specific scene or global field it concerns.
type StageError struct {
	Stage   string    `json:"stage"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

// Error formats stage failures for logs and UI.
func (e *StageError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *StageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// validationError builds a pre-network input rejection.
func validationError(stage, message string) *StageError {
	return &StageError{Stage: stage, Kind: KindValidation, Message: message}
}

// generationError wraps a failed or unusable port call.
func generationError(stage, message string, err error) *StageError {
	return &StageError{Stage: stage, Kind: KindGeneration, Message: message, Err: err}
}

// partialNarrationError reports a narration that succeeded with gaps:
// audio was produced and stored, but some parts were skipped.
func partialNarrationError(message string) *StageError {
	return &StageError{Stage: "narrate", Kind: KindPartialNarration, Message: message}
}

// storageError wraps a failed media or snapshot write.
func storageError(stage, message string, err error) *StageError {
	return &StageError{Stage: stage, Kind: KindStorage, Message: message, Err: err}
}
