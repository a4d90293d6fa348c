package model

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// The onnxruntime environment is process wide. Every compiled plan holds a
// reference and the last one to close tears the environment down.
var env struct {
	mu   sync.Mutex
	refs int
}

func acquireEnvironment(libraryPath string) error {
	env.mu.Lock()
	defer env.mu.Unlock()

	if env.refs == 0 && !ort.IsInitialized() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("%w: failed to initialize ONNX environment: %w", ErrRuntimeUnavailable, err)
		}
	}
	env.refs++
	return nil
}

func releaseEnvironment() error {
	env.mu.Lock()
	defer env.mu.Unlock()

	if env.refs == 0 {
		return nil
	}
	env.refs--
	if env.refs > 0 || !ort.IsInitialized() {
		return nil
	}
	if err := ort.DestroyEnvironment(); err != nil {
		return fmt.Errorf("failed to destroy ONNX environment: %w", err)
	}
	return nil
}
