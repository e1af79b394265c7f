// Package preprocess turns raw images into detector input tensors.
package preprocess

import (
	"image"
	"image/draw"

	"github.com/cyclopcam/logs"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-detect/images"
)

// Channels is the number of color channels in the input tensor.
const Channels = 3

// Result contains the input tensor and the letterbox that produced it.
type Result struct {
	// Tensor is the float32 input of shape [1, 3, S, S], RGB planes, values in [0, 1].
	Tensor *tensor.Dense
	// Letterbox holds the padded canvas, the untouched source image and the mapping.
	Letterbox *images.Letterboxed
}

// Shape returns the shape of the input tensor.
func (r *Result) Shape() tensor.Shape {
	return r.Tensor.Shape()
}

// Preprocessor letterboxes images into a square canvas and lays them out as an
// NCHW float32 tensor.
type Preprocessor struct {
	size      int
	log       logs.Log
	debugMode bool
}

// NewPreprocessor creates a new preprocessor for a square model input.
//
// Arguments:
// - size: The side length S of the model input.
// - log: Logger for debug output, may be nil.
//
// Returns:
// - A configured Preprocessor instance.
//
// @example
// preprocessor := NewPreprocessor(1280, logger)
func NewPreprocessor(size int, log logs.Log) *Preprocessor {
	return &Preprocessor{
		size: size,
		log:  log,
	}
}

// Size returns the side length of the model input.
func (p *Preprocessor) Size() int {
	return p.size
}

// SetDebugMode enables or disables debug logging.
func (p *Preprocessor) SetDebugMode(enabled bool) {
	p.debugMode = enabled
}

func (p *Preprocessor) debugf(format string, args ...any) {
	if p.debugMode && p.log != nil {
		p.log.Debugf(format, args...)
	}
}

// Preprocess letterboxes img and converts the canvas into the input tensor.
//
// Arguments:
// - img: The source image. It is not modified.
//
// Returns:
// - Result containing the tensor and letterbox metadata.
// - error if the image or target size has an invalid dimension.
//
// @example
// result, err := preprocessor.Preprocess(frame)
//
//	if err != nil {
//	    return err
//	}
//
// out, err := engine.Infer(ctx, result.Tensor)
func (p *Preprocessor) Preprocess(img image.Image) (*Result, error) {
	lb, err := images.Letterbox(img, p.size)
	if err != nil {
		return nil, errors.Wrap(err, "letterbox failed")
	}

	p.debugf("Letterboxed %dx%d to %dx%d, scale %.4f, content %dx%d",
		lb.Params.SourceWidth, lb.Params.SourceHeight, p.size, p.size,
		lb.Params.Scale, lb.Params.ResizedWidth, lb.Params.ResizedHeight)

	t := ToTensor(lb.Canvas)

	p.debugf("Input tensor shape: %v", t.Shape())

	return &Result{
		Tensor:    t,
		Letterbox: lb,
	}, nil
}

// ToTensor converts an RGBA canvas into a [1, 3, H, W] float32 tensor.
//
// The three planes hold red, green and blue in that order, each value divided by 255.
// Alpha is ignored.
//
// Arguments:
// - canvas: The image to convert.
//
// Returns:
// - The tensor backed by a freshly allocated slice.
//
// @example
// t := ToTensor(lb.Canvas) // shape (1, 3, 1280, 1280)
func ToTensor(canvas *image.RGBA) *tensor.Dense {
	bounds := canvas.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if bounds.Min != (image.Point{}) {
		shifted := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.Draw(shifted, shifted.Bounds(), canvas, bounds.Min, draw.Src)
		canvas = shifted
	}

	channelSize := width * height
	data := make([]float32, Channels*channelSize)
	red := data[0:channelSize]
	green := data[channelSize : channelSize*2]
	blue := data[channelSize*2 : channelSize*3]

	i := 0
	for y := 0; y < height; y++ {
		row := canvas.Pix[y*canvas.Stride : y*canvas.Stride+width*4]
		for x := 0; x < width; x++ {
			red[i] = float32(row[x*4]) / 255.0
			green[i] = float32(row[x*4+1]) / 255.0
			blue[i] = float32(row[x*4+2]) / 255.0
			i++
		}
	}

	return tensor.New(
		tensor.WithShape(1, Channels, height, width),
		tensor.WithBacking(data),
	)
}
