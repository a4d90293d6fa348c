package validator

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/Brownie44l1/id-validator/internal/model"
	"github.com/Brownie44l1/id-validator/internal/preprocess"
	"go.uber.org/zap"
)

// ValidationResult is the top class reported by the model.
type ValidationResult struct {
	Label string  `json:"label"`
	Score float32 `json:"score"`
	Index int     `json:"index"`
}

// Model is a compiled identity-document classifier. It is owned by the
// caller of Setup and may be shared between goroutines until Close.
type Model struct {
	mu            sync.RWMutex
	plan          model.Plan
	labels        []string
	maxImageBytes int64
	maxPixels     int64
	logger        *zap.Logger
}

// Setup compiles the embedded model. Each call returns an independent Model.
func Setup(cfg Config) (*Model, error) {
	cfg = cfg.withDefaults()

	start := time.Now()
	plan, err := cfg.Compiler.Compile(model.Embedded())
	if err != nil {
		return nil, stageErr(StageSetup, fmt.Errorf("%w: %w", ErrModelLoad, err))
	}

	meta := plan.Metadata()
	cfg.Logger.Info("model loaded",
		zap.String("input", meta.InputName),
		zap.Int64s("input_shape", meta.InputShape),
		zap.String("output", meta.OutputName),
		zap.Int64s("output_shape", meta.OutputShape),
		zap.Strings("labels", cfg.Labels),
		zap.Int64("max_image_bytes", cfg.MaxImageBytes),
		zap.Int64("max_pixels", cfg.MaxPixels),
		zap.Duration("took", time.Since(start)))

	return &Model{
		plan:          plan,
		labels:        cfg.Labels,
		maxImageBytes: cfg.MaxImageBytes,
		maxPixels:     cfg.MaxPixels,
		logger:        cfg.Logger,
	}, nil
}

// Validate classifies an encoded image with m. A nil m reports
// ErrModelNotLoaded.
func Validate(m *Model, image []byte) (ValidationResult, error) {
	return m.Validate(image)
}

func (m *Model) Validate(image []byte) (ValidationResult, error) {
	if !m.loaded() {
		return ValidationResult{}, stageErr(StageLoad, ErrModelNotLoaded)
	}
	if int64(len(image)) > m.maxImageBytes {
		return ValidationResult{}, stageErr(StageInput,
			fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrImageTooLarge, len(image), m.maxImageBytes))
	}

	start := time.Now()
	header, _, err := preprocess.DecodeConfig(image)
	if err != nil {
		return ValidationResult{}, stageErr(StageDecode, fmt.Errorf("%w: %w", ErrImageDecode, err))
	}
	if pixels := int64(header.Width) * int64(header.Height); pixels > m.maxPixels {
		return ValidationResult{}, stageErr(StageInput,
			fmt.Errorf("%w: %dx%d pixels exceeds limit of %d", ErrImageTooLarge, header.Width, header.Height, m.maxPixels))
	}

	img, format, err := preprocess.Decode(image)
	if err != nil {
		return ValidationResult{}, stageErr(StageDecode, fmt.Errorf("%w: %w", ErrImageDecode, err))
	}
	bounds := img.Bounds()
	if bounds.Empty() {
		return ValidationResult{}, stageErr(StageDecode, fmt.Errorf("%w: image has no pixels", ErrImageDecode))
	}
	decoded := time.Now()

	input := preprocess.Tensor(img)
	preprocessed := time.Now()

	result, err := m.Classify(input)
	if err != nil {
		return ValidationResult{}, err
	}

	m.logger.Debug("image validated",
		zap.String("format", format),
		zap.Int("width", bounds.Dx()),
		zap.Int("height", bounds.Dy()),
		zap.String("label", result.Label),
		zap.Float32("score", result.Score),
		zap.Duration("decode", decoded.Sub(start)),
		zap.Duration("preprocess", preprocessed.Sub(decoded)),
		zap.Duration("classify", time.Since(preprocessed)))

	return result, nil
}

// Classify runs the model on an already normalized input tensor and reduces
// the first output to its top class.
func (m *Model) Classify(input model.Tensor) (ValidationResult, error) {
	if m == nil {
		return ValidationResult{}, stageErr(StageLoad, ErrModelNotLoaded)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.plan == nil {
		return ValidationResult{}, stageErr(StageLoad, ErrModelNotLoaded)
	}

	outputs, err := m.plan.Run(input)
	if err != nil {
		if errors.Is(err, model.ErrPlanClosed) {
			return ValidationResult{}, stageErr(StageInference, fmt.Errorf("%w: %w", ErrModelNotLoaded, err))
		}
		return ValidationResult{}, stageErr(StageInference, fmt.Errorf("%w: %w", ErrInference, err))
	}

	scores, err := firstOutput(outputs)
	if err != nil {
		return ValidationResult{}, stageErr(StagePostprocess, err)
	}

	index, score, err := argmax(scores)
	if err != nil {
		return ValidationResult{}, stageErr(StagePostprocess, err)
	}

	return ValidationResult{
		Label: labelFor(m.labels, index),
		Score: score,
		Index: index,
	}, nil
}

func (m *Model) loaded() bool {
	if m == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.plan != nil
}

// Close releases the compiled plan. Later calls to Validate report
// ErrModelNotLoaded.
func (m *Model) Close() error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.plan == nil {
		return nil
	}
	err := m.plan.Close()
	m.plan = nil
	if err != nil {
		return fmt.Errorf("failed to close model: %w", err)
	}
	return nil
}

func firstOutput(outputs []model.Tensor) ([]float32, error) {
	if len(outputs) == 0 {
		return nil, fmt.Errorf("%w: model returned no outputs", ErrTensorShape)
	}
	out := outputs[0]
	if len(out.Shape) > 0 && model.Elements(out.Shape) != int64(len(out.Data)) {
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrTensorShape, len(out.Data), out.Shape)
	}
	return out.Data, nil
}

// argmax returns the first index holding the largest score.
func argmax(scores []float32) (int, float32, error) {
	if len(scores) == 0 {
		return 0, 0, ErrEmptyOutput
	}
	best := 0
	for i, score := range scores {
		if math.IsNaN(float64(score)) {
			return 0, 0, fmt.Errorf("%w at index %d", ErrNaNScore, i)
		}
		if score > scores[best] {
			best = i
		}
	}
	return best, scores[best], nil
}

func labelFor(labels []string, index int) string {
	if index < 0 || index >= len(labels) {
		return UnknownLabel
	}
	return labels[index]
}
