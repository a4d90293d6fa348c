package model

import (
	"errors"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ORTCompiler compiles ONNX documents with onnxruntime. The runtime applies
// its full set of graph optimizations when building the session.
type ORTCompiler struct {
	// LibraryPath points at the onnxruntime shared library. Empty keeps the
	// binding's default lookup.
	LibraryPath string
	// IntraOpThreads caps the threads used inside a single operator; 0 lets
	// the runtime decide.
	IntraOpThreads int
	// InputShape is the shape the caller will feed. Dynamic input dimensions
	// are resolved against it and static ones must match it.
	InputShape []int64
}

type ortPlan struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	metadata     Metadata
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	closed       bool
}

func (c ORTCompiler) Compile(onnxData []byte) (Plan, error) {
	if len(onnxData) == 0 {
		return nil, fmt.Errorf("%w: empty model document", ErrUnsupportedModel)
	}
	if err := acquireEnvironment(c.LibraryPath); err != nil {
		return nil, err
	}

	plan, err := c.compile(onnxData)
	if err != nil {
		if releaseErr := releaseEnvironment(); releaseErr != nil {
			err = errors.Join(err, releaseErr)
		}
		return nil, err
	}
	return plan, nil
}

func (c ORTCompiler) compile(onnxData []byte) (*ortPlan, error) {
	inputs, outputs, err := ort.GetInputOutputInfoWithONNXData(onnxData)
	if err != nil {
		return nil, fmt.Errorf("failed to read model inputs and outputs: %w", err)
	}
	if len(inputs) != 1 {
		return nil, fmt.Errorf("%w: expected 1 input, got %d", ErrUnsupportedModel, len(inputs))
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("%w: model has no outputs", ErrUnsupportedModel)
	}

	in, out := inputs[0], outputs[0]
	inputShape, outputShape, err := resolveIO(in, out, c.InputShape)
	if err != nil {
		return nil, err
	}

	metadata := Metadata{
		InputName:   in.Name,
		OutputName:  out.Name,
		InputShape:  inputShape,
		OutputShape: outputShape,
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(inputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(outputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	if c.IntraOpThreads > 0 {
		if err := options.SetIntraOpNumThreads(c.IntraOpThreads); err != nil {
			inputTensor.Destroy()
			outputTensor.Destroy()
			return nil, fmt.Errorf("failed to set intra-op threads: %w", err)
		}
	}

	session, err := ort.NewAdvancedSessionWithONNXData(onnxData,
		[]string{metadata.InputName}, []string{metadata.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		options)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ortPlan{
		session:      session,
		metadata:     metadata,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

func (p *ortPlan) Metadata() Metadata {
	return p.metadata
}

func (p *ortPlan) Run(input Tensor) ([]Tensor, error) {
	if !sameShape(input.Shape, p.metadata.InputShape) {
		return nil, fmt.Errorf("%w: input shape %v, model expects %v",
			ErrShapeMismatch, input.Shape, p.metadata.InputShape)
	}
	if int64(len(input.Data)) != Elements(input.Shape) {
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrShapeMismatch, len(input.Data), input.Shape)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPlanClosed
	}

	copy(p.inputTensor.GetData(), input.Data)

	if err := p.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	scores := make([]float32, len(p.outputTensor.GetData()))
	copy(scores, p.outputTensor.GetData())

	return []Tensor{NewTensor(p.metadata.OutputShape, scores)}, nil
}

func (p *ortPlan) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	if p.inputTensor != nil {
		errs = append(errs, p.inputTensor.Destroy())
	}
	if p.outputTensor != nil {
		errs = append(errs, p.outputTensor.Destroy())
	}
	if p.session != nil {
		errs = append(errs, p.session.Destroy())
	}
	errs = append(errs, releaseEnvironment())
	return errors.Join(errs...)
}

// resolveIO checks the graph's first input and output against what Run
// feeds and reads, and returns the concrete shapes to allocate.
func resolveIO(in, out ort.InputOutputInfo, want []int64) ([]int64, []int64, error) {
	if in.DataType != ort.TensorElementDataTypeFloat {
		return nil, nil, fmt.Errorf("%w: input %q is not a float32 tensor", ErrUnsupportedModel, in.Name)
	}
	if out.DataType != ort.TensorElementDataTypeFloat {
		return nil, nil, fmt.Errorf("%w: output %q is not a float32 tensor", ErrShapeMismatch, out.Name)
	}

	inputShape, err := resolveInputShape(in.Dimensions, want)
	if err != nil {
		return nil, nil, fmt.Errorf("input %q: %w", in.Name, err)
	}
	outputShape, err := resolveDynamic(out.Dimensions)
	if err != nil {
		return nil, nil, fmt.Errorf("output %q: %w", out.Name, err)
	}
	return inputShape, outputShape, nil
}

func resolveInputShape(declared ort.Shape, want []int64) ([]int64, error) {
	if len(want) == 0 {
		return resolveDynamic(declared)
	}
	if len(declared) != len(want) {
		return nil, fmt.Errorf("%w: model declares rank %d, want %v", ErrShapeMismatch, len(declared), want)
	}
	shape := make([]int64, len(declared))
	for i, dim := range declared {
		switch {
		case dim < 0:
			shape[i] = want[i]
		case dim != want[i]:
			return nil, fmt.Errorf("%w: model declares %v, want %v", ErrShapeMismatch, declared, want)
		default:
			shape[i] = dim
		}
	}
	return shape, nil
}

// resolveDynamic pins a symbolic batch dimension to 1, the batch size this
// package always runs with. Any other symbolic dimension cannot be sized
// ahead of the run.
func resolveDynamic(declared ort.Shape) ([]int64, error) {
	shape := make([]int64, len(declared))
	for i, dim := range declared {
		if dim < 0 {
			if i != 0 {
				return nil, fmt.Errorf("%w: dimension %d of %v is dynamic", ErrUnsupportedModel, i, declared)
			}
			dim = 1
		}
		shape[i] = dim
	}
	return shape, nil
}
