package detector

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nvr-ai/go-detect/models/postprocess"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 1280, cfg.TargetSize)
	assert.Equal(t, float32(0.4), cfg.ConfidenceThreshold)
	assert.Equal(t, float32(0.45), cfg.IoUThreshold)
	assert.Equal(t, postprocess.CoordinatesPixel, cfg.Coordinates)
	assert.False(t, cfg.Clip)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"Zero size", func(c *Config) { c.TargetSize = 0 }, false},
		{"Negative confidence", func(c *Config) { c.ConfidenceThreshold = -0.1 }, false},
		{"Confidence above one", func(c *Config) { c.ConfidenceThreshold = 1.01 }, false},
		{"NaN IoU", func(c *Config) { c.IoUThreshold = float32(math.NaN()) }, false},
		{"IoU above one", func(c *Config) { c.IoUThreshold = 2 }, false},
		{"Unknown coordinates", func(c *Config) { c.Coordinates = "polar" }, false},
		{"Empty coordinates default to pixel", func(c *Config) { c.Coordinates = "" }, true},
		{"Boundary thresholds", func(c *Config) { c.ConfidenceThreshold, c.IoUThreshold = 0, 1 }, true},
		{"Normalized", func(c *Config) { c.Coordinates = postprocess.CoordinatesNormalized }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}

func TestConfig_Derived(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Clip = true
	cfg.Coordinates = ""

	assert.Equal(t, postprocess.NMSConfig{IoUThreshold: 0.45}, cfg.NMS())
	assert.Equal(t, postprocess.RescaleOptions{Coordinates: postprocess.CoordinatesPixel, Clip: true}, cfg.Rescale())
}
