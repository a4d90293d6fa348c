package model

// Metadata describes the single input and output the compiled graph exposes.
type Metadata struct {
	InputName   string
	OutputName  string
	InputShape  []int64
	OutputShape []int64
}

// Tensor is a dense float32 tensor in row-major order.
type Tensor struct {
	Shape []int64
	Data  []float32
}

func NewTensor(shape []int64, data []float32) Tensor {
	return Tensor{Shape: append([]int64(nil), shape...), Data: data}
}

// Elements returns the number of values the shape describes, or -1 if any
// dimension is negative.
func Elements(shape []int64) int64 {
	if len(shape) == 0 {
		return 0
	}
	n := int64(1)
	for _, dim := range shape {
		if dim < 0 {
			return -1
		}
		n *= dim
	}
	return n
}

func sameShape(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Compiler turns serialized model bytes into a runnable plan.
type Compiler interface {
	Compile(onnxData []byte) (Plan, error)
}

// Plan is a compiled model. Run must not mutate the plan's weights, so
// repeated calls with the same input yield the same outputs.
type Plan interface {
	Metadata() Metadata
	Run(input Tensor) ([]Tensor, error)
	Close() error
}
