package model

import "errors"

var (
	ErrRuntimeUnavailable = errors.New("onnx runtime unavailable")
	ErrUnsupportedModel   = errors.New("unsupported model")
	ErrShapeMismatch      = errors.New("tensor shape mismatch")
	ErrPlanClosed         = errors.New("plan is closed")
)
