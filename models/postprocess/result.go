// Package postprocess - Decoding, suppression and rescaling of raw detector output.
package postprocess

import (
	"fmt"

	"github.com/nvr-ai/go-detect/images"
)

// Detection represents a single detection result.
type Detection struct {
	// The bounding box of the detection, in corner form.
	Box images.Box `json:"box"`
	// The confidence score of the detection, in (0, 1].
	Score float32 `json:"score"`
	// The predicted class index of the detection.
	Class int `json:"class"`
}

// Centroid returns the center of the detection's box.
func (d Detection) Centroid() (x, y float32) {
	return d.Box.Center()
}

func (d Detection) String() string {
	return fmt.Sprintf("class %d score %.3f box %v", d.Class, d.Score, d.Box)
}
