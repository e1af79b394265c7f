package postprocess

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-detect/images"
)

// BoxChannels is the number of leading channels holding cx, cy, w, h.
const BoxChannels = 4

// ErrMalformedOutput is returned when the model output does not have the [1, C, N] float32
// layout with at least one class channel.
var ErrMalformedOutput = errors.New("malformed model output")

// OutputLayout describes a validated [1, C, N] output tensor.
type OutputLayout struct {
	// Channels is C, the number of values per candidate.
	Channels int
	// Candidates is N, the number of candidate columns.
	Candidates int
}

// Classes returns the number of class score channels, C-4.
func (l OutputLayout) Classes() int {
	return l.Channels - BoxChannels
}

// Layout validates the shape and dtype of a raw model output.
func Layout(out *tensor.Dense) (OutputLayout, error) {
	if out == nil {
		return OutputLayout{}, errors.Wrap(ErrMalformedOutput, "nil tensor")
	}
	if out.Dtype() != tensor.Float32 {
		return OutputLayout{}, errors.Wrapf(ErrMalformedOutput, "dtype %v, want float32", out.Dtype())
	}
	shape := out.Shape()
	if len(shape) != 3 {
		return OutputLayout{}, errors.Wrapf(ErrMalformedOutput, "shape %v, want [1, C, N]", shape)
	}
	if shape[0] != 1 {
		return OutputLayout{}, errors.Wrapf(ErrMalformedOutput, "batch size %d, want 1", shape[0])
	}
	if shape[1] <= BoxChannels {
		return OutputLayout{}, errors.Wrapf(ErrMalformedOutput, "%d channels, need at least %d", shape[1], BoxChannels+1)
	}
	return OutputLayout{Channels: shape[1], Candidates: shape[2]}, nil
}

// Decode converts a [1, C, N] output tensor into candidate detections.
//
// Channels 0-3 of each column hold the box center and size; channels 4..C-1 hold one score
// per class. The element for channel c of column i lives at flat index c*N + i.
//
// A column becomes a candidate only when its best class score is strictly greater than
// threshold. Equal scores resolve to the lowest class index. Candidates are returned in
// column order.
//
// Arguments:
//   - out: The raw model output.
//   - threshold: The confidence threshold.
//
// Returns:
//   - []Detection: The candidates, boxes in the coordinate space of the model input.
//   - error: ErrMalformedOutput when out does not have the expected layout.
//
// @example
// candidates, err := Decode(output, 0.4)
func Decode(out *tensor.Dense, threshold float32) ([]Detection, error) {
	layout, err := Layout(out)
	if err != nil {
		return nil, err
	}
	if out.IsView() {
		materialized, ok := out.Materialize().(*tensor.Dense)
		if !ok {
			return nil, errors.Wrap(ErrMalformedOutput, "cannot materialize view")
		}
		out = materialized
	}
	data, ok := out.Data().([]float32)
	if !ok {
		return nil, errors.Wrap(ErrMalformedOutput, "backing data is not []float32")
	}

	c, n := layout.Channels, layout.Candidates
	if len(data) < c*n {
		return nil, errors.Wrapf(ErrMalformedOutput, "backing data holds %d values, need %d", len(data), c*n)
	}

	return decode(data, c, n, threshold), nil
}

func decode(data []float32, c, n int, threshold float32) []Detection {
	detections := make([]Detection, 0)

	for i := 0; i < n; i++ {
		// NaN scores never compare greater, so they cannot win the argmax.
		best := float32(0)
		bestChannel := -1
		for ch := BoxChannels; ch < c; ch++ {
			if v := data[ch*n+i]; v > best {
				best = v
				bestChannel = ch
			}
		}

		if bestChannel < 0 || !(best > threshold) {
			continue
		}

		detections = append(detections, Detection{
			Box:   images.NewBoxFromCenter(data[i], data[n+i], data[2*n+i], data[3*n+i]),
			Score: best,
			Class: bestChannel - BoxChannels,
		})
	}

	return detections
}
