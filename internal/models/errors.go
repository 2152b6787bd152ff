package models

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the transcription pipeline. Callers wrap them with
// fmt.Errorf("%w") and test with errors.Is.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrIO              = errors.New("media source unavailable")
	ErrAuth            = errors.New("authentication unavailable")
	ErrTimeout         = errors.New("transcription session timed out")
	ErrTransport       = errors.New("transcript delivery failed")
)

// InvalidArgumentError reports a request field that failed validation.
type InvalidArgumentError struct {
	Field string
	Value string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument: %s=%q", e.Field, e.Value)
}

func (e *InvalidArgumentError) Unwrap() error {
	return ErrInvalidArgument
}
