package postprocess

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-detect/images"
)

// CoordinateSpace names the space the model emits box coordinates in.
type CoordinateSpace string

const (
	// CoordinatesPixel means boxes are in pixels of the S x S model input.
	CoordinatesPixel CoordinateSpace = "pixel"
	// CoordinatesNormalized means boxes are fractions in [0, 1] of the model input.
	CoordinatesNormalized CoordinateSpace = "normalized"
)

// ParseCoordinateSpace parses a coordinate space name, case-insensitively. An empty
// string yields CoordinatesPixel.
func ParseCoordinateSpace(s string) (CoordinateSpace, error) {
	switch CoordinateSpace(strings.ToLower(strings.TrimSpace(s))) {
	case "", CoordinatesPixel:
		return CoordinatesPixel, nil
	case CoordinatesNormalized:
		return CoordinatesNormalized, nil
	}
	return "", errors.Errorf("unknown coordinate space %q", s)
}

// RescaleOptions controls the inverse letterbox mapping.
type RescaleOptions struct {
	// Coordinates is the space decoded boxes are expressed in.
	Coordinates CoordinateSpace `json:"coordinates" yaml:"coordinates"`
	// Clip clamps rescaled boxes to the bounds of the source image.
	Clip bool `json:"clip" yaml:"clip"`
}

// Rescale maps detections from model input coordinates back to the source image.
//
// The letterbox anchors the resized image at the origin, so a pixel coordinate maps back
// by dividing by the letterbox scale. Normalized coordinates are first multiplied by the
// target size. The origin always maps to the origin.
//
// Arguments:
//   - detections: Detections in model input coordinates. Not modified.
//   - params: The letterbox mapping used to build the model input.
//   - opts: The coordinate space and clipping behaviour.
//
// Returns:
//   - A fresh slice of detections in source image coordinates, same order and length.
//
// @example
// final := Rescale(kept, lb.Params, RescaleOptions{Coordinates: CoordinatesPixel})
func Rescale(detections []Detection, params images.LetterboxParams, opts RescaleOptions) []Detection {
	size := float32(params.TargetSize)

	out := make([]Detection, len(detections))
	for i, d := range detections {
		if opts.Coordinates == CoordinatesNormalized {
			d.Box = d.Box.Scale(size)
		}
		d.Box.X1, d.Box.Y1 = params.ToSource(d.Box.X1, d.Box.Y1)
		d.Box.X2, d.Box.Y2 = params.ToSource(d.Box.X2, d.Box.Y2)
		if opts.Clip {
			d.Box = d.Box.Clamp(float32(params.SourceWidth), float32(params.SourceHeight))
		}
		out[i] = d
	}
	return out
}
