package images

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/chewxy/math32"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// PadColor is the neutral mid-gray used to fill the letterbox padding.
var PadColor = color.RGBA{R: 128, G: 128, B: 128, A: 255}

// ErrInvalidDimensions is returned when an image or target size has a zero or negative side.
var ErrInvalidDimensions = errors.New("invalid image dimensions")

// LetterboxParams records the forward mapping from a source image onto the square canvas.
//
// The resized image is anchored at the top-left corner of the canvas and the padding is
// only added on the right and bottom edges, so mapping back to the source is a division
// by Scale with no offset.
type LetterboxParams struct {
	// Scale is the uniform scale factor min(S/W, S/H) applied to both axes.
	Scale float32 `json:"scale"`
	// TargetSize is the side length S of the square canvas.
	TargetSize int `json:"target_size"`
	// SourceWidth is the width of the original image.
	SourceWidth int `json:"source_width"`
	// SourceHeight is the height of the original image.
	SourceHeight int `json:"source_height"`
	// ResizedWidth is the width of the resized image on the canvas.
	ResizedWidth int `json:"resized_width"`
	// ResizedHeight is the height of the resized image on the canvas.
	ResizedHeight int `json:"resized_height"`
}

// NewLetterboxParams computes the letterbox mapping for a width x height image on a size x size
// canvas.
//
// At least one side of the resized image is exactly size; the other side is rounded to the
// nearest pixel and clamped to [1, size].
//
// Arguments:
//   - width: The width of the source image.
//   - height: The height of the source image.
//   - size: The side length of the square canvas.
//
// Returns:
//   - LetterboxParams: The forward mapping.
//   - error: ErrInvalidDimensions if any dimension is not positive.
//
// @example
// params, _ := NewLetterboxParams(1920, 1080, 1280)
// // params.Scale ≈ 0.6667, params.ResizedWidth = 1280, params.ResizedHeight = 720
func NewLetterboxParams(width, height, size int) (LetterboxParams, error) {
	if width <= 0 || height <= 0 {
		return LetterboxParams{}, errors.Wrapf(ErrInvalidDimensions, "source %dx%d", width, height)
	}
	if size <= 0 {
		return LetterboxParams{}, errors.Wrapf(ErrInvalidDimensions, "target size %d", size)
	}

	scaleX := float32(size) / float32(width)
	scaleY := float32(size) / float32(height)
	scale := math32.Min(scaleX, scaleY)

	resizedWidth, resizedHeight := size, size
	if scaleX < scaleY {
		resizedHeight = scaledSide(height, scale, size)
	} else if scaleY < scaleX {
		resizedWidth = scaledSide(width, scale, size)
	}

	return LetterboxParams{
		Scale:         scale,
		TargetSize:    size,
		SourceWidth:   width,
		SourceHeight:  height,
		ResizedWidth:  resizedWidth,
		ResizedHeight: resizedHeight,
	}, nil
}

func scaledSide(side int, scale float32, size int) int {
	return min(max(int(float32(side)*scale+0.5), 1), size)
}

// ToSource maps a point on the canvas back to source image coordinates.
func (p LetterboxParams) ToSource(x, y float32) (float32, float32) {
	return x / p.Scale, y / p.Scale
}

// Content returns the canvas region covered by the resized image.
func (p LetterboxParams) Content() image.Rectangle {
	return image.Rect(0, 0, p.ResizedWidth, p.ResizedHeight)
}

// Letterboxed holds the model input canvas along with the untouched source image.
type Letterboxed struct {
	// Source is the original image. It is never modified and is the surface for annotation.
	Source image.Image
	// Canvas is the size x size padded image fed to the model.
	Canvas *image.RGBA
	// Params is the mapping used to build Canvas.
	Params LetterboxParams
}

// Letterbox resizes src uniformly so that it fits in a size x size square, places it flush
// against the top-left corner and fills the rest of the square with PadColor.
//
// No cropping occurs. When the source already fits at scale 1 no resampling is performed.
//
// Arguments:
//   - src: The source image.
//   - size: The side length of the square canvas.
//
// Returns:
//   - *Letterboxed: The canvas, the retained source image and the mapping.
//   - error: ErrInvalidDimensions if src is empty or size is not positive.
//
// @example
// lb, err := Letterbox(frame, 1280)
//
//	if err != nil {
//	    return err
//	}
//
// x, y := lb.Params.ToSource(640, 360)
func Letterbox(src image.Image, size int) (*Letterboxed, error) {
	if src == nil {
		return nil, errors.Wrap(ErrInvalidDimensions, "nil image")
	}
	bounds := src.Bounds()

	params, err := NewLetterboxParams(bounds.Dx(), bounds.Dy(), size)
	if err != nil {
		return nil, err
	}

	canvas := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{PadColor}, image.Point{}, draw.Src)

	var resized image.Image = src
	if params.ResizedWidth != bounds.Dx() || params.ResizedHeight != bounds.Dy() {
		resized = resize.Resize(uint(params.ResizedWidth), uint(params.ResizedHeight), src, resize.Bicubic)
	}
	draw.Draw(canvas, params.Content(), resized, resized.Bounds().Min, draw.Src)

	return &Letterboxed{
		Source: src,
		Canvas: canvas,
		Params: params,
	}, nil
}
