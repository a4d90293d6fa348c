package validator

import (
	"github.com/Brownie44l1/id-validator/internal/model"
	"github.com/Brownie44l1/id-validator/internal/preprocess"
	"go.uber.org/zap"
)

const (
	DefaultMaxImageBytes = 5 << 20
	// DefaultMaxPixels bounds the decoded image at 8192x8192.
	DefaultMaxPixels = 8192 * 8192
)

// DefaultLabels are the classes of the embedded model, in output order.
var DefaultLabels = []string{"invalid", "valid_back", "valid_front"}

const UnknownLabel = "unknown"

type Config struct {
	// MaxImageBytes caps the encoded image size accepted by Validate.
	// Values <= 0 select DefaultMaxImageBytes; the cap is never disabled.
	MaxImageBytes int64
	// MaxPixels caps width*height read from the image header, checked before
	// the pixels are decoded. Values <= 0 select DefaultMaxPixels.
	MaxPixels int64
	// Labels maps output indices to class names. Empty selects DefaultLabels.
	Labels []string
	// Compiler builds the runnable plan. Nil selects an onnxruntime compiler
	// using the binding's default library lookup.
	Compiler model.Compiler
	Logger   *zap.Logger
}

func DefaultConfig() Config {
	return Config{
		MaxImageBytes: DefaultMaxImageBytes,
		MaxPixels:     DefaultMaxPixels,
		Labels:        DefaultLabels,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxImageBytes <= 0 {
		c.MaxImageBytes = DefaultMaxImageBytes
	}
	if c.MaxPixels <= 0 {
		c.MaxPixels = DefaultMaxPixels
	}
	if len(c.Labels) == 0 {
		c.Labels = DefaultLabels
	}
	c.Labels = append([]string(nil), c.Labels...)
	if c.Compiler == nil {
		c.Compiler = ORTCompiler("", 0)
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// ORTCompiler returns an onnxruntime compiler for the preprocessed input
// shape Validate feeds.
func ORTCompiler(libraryPath string, intraOpThreads int) model.ORTCompiler {
	return model.ORTCompiler{
		LibraryPath:    libraryPath,
		IntraOpThreads: intraOpThreads,
		InputShape:     preprocess.InputShape(),
	}
}
