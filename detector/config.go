package detector

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-detect/models/postprocess"
)

// ErrInvalidConfig is returned by Config.Validate and Detect for unusable settings.
var ErrInvalidConfig = errors.New("invalid detector config")

// Config holds the per-call detection settings.
//
// A Config is a plain value passed to every Detect call, so concurrent callers can use
// different thresholds against the same Detector.
type Config struct {
	// TargetSize is the side length S of the square model input.
	TargetSize int `json:"target_size" yaml:"target_size"`

	// ConfidenceThreshold drops candidates whose best class score is not above this value.
	ConfidenceThreshold float32 `json:"confidence_threshold" yaml:"confidence_threshold"`

	// IoUThreshold controls Non-Maximum Suppression within each class.
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"`

	// Coordinates is the space the model emits boxes in.
	Coordinates postprocess.CoordinateSpace `json:"coordinates" yaml:"coordinates"`

	// Clip clamps final boxes to the source image.
	Clip bool `json:"clip" yaml:"clip"`

	// Debug logs per-stage counts.
	Debug bool `json:"debug" yaml:"debug"`
}

// DefaultConfig returns the settings for a 1280px YOLO export.
//
// Returns:
//   - Config: TargetSize 1280, confidence 0.4, IoU 0.45, pixel coordinates, no clipping.
//
// @example
// cfg := DefaultConfig()
// cfg.ConfidenceThreshold = 0.25
// result, err := det.Detect(ctx, img, cfg)
func DefaultConfig() Config {
	return Config{
		TargetSize:          1280,
		ConfidenceThreshold: 0.4,
		IoUThreshold:        0.45,
		Coordinates:         postprocess.CoordinatesPixel,
	}
}

// Validate checks the size, both thresholds and the coordinate space.
func (c Config) Validate() error {
	if c.TargetSize <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "target size %d must be positive", c.TargetSize)
	}
	if !(c.ConfidenceThreshold >= 0 && c.ConfidenceThreshold <= 1) {
		return errors.Wrapf(ErrInvalidConfig, "confidence threshold %v outside [0, 1]", c.ConfidenceThreshold)
	}
	if !(c.IoUThreshold >= 0 && c.IoUThreshold <= 1) {
		return errors.Wrapf(ErrInvalidConfig, "IoU threshold %v outside [0, 1]", c.IoUThreshold)
	}
	if _, err := postprocess.ParseCoordinateSpace(string(c.Coordinates)); err != nil {
		return errors.Wrap(ErrInvalidConfig, err.Error())
	}
	return nil
}

// NMS returns the suppression settings.
func (c Config) NMS() postprocess.NMSConfig {
	return postprocess.NMSConfig{IoUThreshold: c.IoUThreshold}
}

// Rescale returns the inverse mapping settings.
func (c Config) Rescale() postprocess.RescaleOptions {
	coords, _ := postprocess.ParseCoordinateSpace(string(c.Coordinates))
	return postprocess.RescaleOptions{Coordinates: coords, Clip: c.Clip}
}
