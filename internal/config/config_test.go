package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Brownie44l1/id-validator/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "idcheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, int64(validator.DefaultMaxImageBytes), cfg.Validation.MaxImageBytes)
	assert.Equal(t, int64(validator.DefaultMaxPixels), cfg.Validation.MaxPixels)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
runtime:
  library_path: /opt/onnxruntime/lib/libonnxruntime.so
  intra_op_threads: 2
validation:
  max_image_bytes: 1048576
  max_pixels: 4000000
log:
  level: debug
  format: json
  file: /var/log/idcheck.log
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/opt/onnxruntime/lib/libonnxruntime.so", cfg.Runtime.LibraryPath)
	assert.Equal(t, 2, cfg.Runtime.IntraOpThreads)
	assert.Equal(t, int64(1<<20), cfg.Validation.MaxImageBytes)
	assert.Equal(t, int64(4000000), cfg.Validation.MaxPixels)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "/var/log/idcheck.log", cfg.Log.File)
	assert.Equal(t, 3, cfg.Log.MaxBackups, "unset keys keep their defaults")
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeConfig(t, "runtime:\n  gpu: true\n"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"threads": "runtime:\n  intra_op_threads: -1\n",
		"size":    "validation:\n  max_image_bytes: 0\n",
		"pixels":  "validation:\n  max_pixels: -5\n",
		"format":  "log:\n  format: xml\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
