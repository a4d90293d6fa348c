package validator

import (
	"errors"
	"fmt"
)

var (
	ErrModelLoad      = errors.New("model load failed")
	ErrModelNotLoaded = errors.New("model is not loaded")
	ErrImageTooLarge  = errors.New("image size too large")
	ErrImageDecode    = errors.New("image decode failed")
	ErrInference      = errors.New("inference failed")
	ErrTensorShape    = errors.New("unexpected output tensor shape")
	ErrEmptyOutput    = errors.New("failed to find max score")
	ErrNaNScore       = fmt.Errorf("%w: score is NaN", ErrEmptyOutput)
)

// Pipeline stages reported by StageError.
const (
	StageSetup       = "setup"
	StageLoad        = "load"
	StageInput       = "input"
	StageDecode      = "decode"
	StageInference   = "inference"
	StagePostprocess = "postprocess"
)

// StageError records which step of Setup or Validate failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return e.Stage + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage string, err error) error {
	return &StageError{Stage: stage, Err: err}
}
