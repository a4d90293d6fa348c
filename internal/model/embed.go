package model

import _ "embed"

//go:embed assets/id_validation.onnx
var embeddedModel []byte

// Embedded returns the model compiled into the binary. Callers must not
// modify the returned slice.
func Embedded() []byte {
	return embeddedModel
}
