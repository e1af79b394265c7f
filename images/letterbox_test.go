package images

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
	return img
}

func TestNewLetterboxParams(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		size          int
		scale         float32
		resizedWidth  int
		resizedHeight int
	}{
		{"Landscape 1080p", 1920, 1080, 1280, 1280.0 / 1920.0, 1280, 720},
		{"Portrait", 1080, 1920, 1280, 1280.0 / 1920.0, 720, 1280},
		{"Square identity", 640, 640, 640, 1, 640, 640},
		{"Square upscale", 320, 320, 640, 2, 640, 640},
		{"Small landscape upscale", 100, 50, 640, 6.4, 640, 320},
		{"Extreme aspect keeps one pixel", 10000, 1, 100, 0.01, 100, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewLetterboxParams(tt.width, tt.height, tt.size)
			require.NoError(t, err)
			assert.InDelta(t, tt.scale, p.Scale, 1e-5)
			assert.Equal(t, tt.resizedWidth, p.ResizedWidth)
			assert.Equal(t, tt.resizedHeight, p.ResizedHeight)
			assert.Equal(t, tt.size, p.TargetSize)
			assert.Equal(t, tt.width, p.SourceWidth)
			assert.Equal(t, tt.height, p.SourceHeight)
			assert.LessOrEqual(t, p.ResizedWidth, tt.size)
			assert.LessOrEqual(t, p.ResizedHeight, tt.size)
		})
	}
}

func TestNewLetterboxParams_Invalid(t *testing.T) {
	tests := []struct {
		name                string
		width, height, size int
	}{
		{"Zero width", 0, 100, 640},
		{"Zero height", 100, 0, 640},
		{"Negative width", -5, 100, 640},
		{"Zero size", 100, 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLetterboxParams(tt.width, tt.height, tt.size)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidDimensions))
		})
	}
}

func TestLetterboxParams_ToSource(t *testing.T) {
	p, err := NewLetterboxParams(1920, 1080, 1280)
	require.NoError(t, err)

	x, y := p.ToSource(0, 0)
	assert.Equal(t, float32(0), x)
	assert.Equal(t, float32(0), y)

	x, y = p.ToSource(640, 360)
	assert.InDelta(t, 960, x, 1e-3)
	assert.InDelta(t, 540, y, 1e-3)
}

func TestLetterbox_Landscape(t *testing.T) {
	src := solidImage(1920, 1080, color.RGBA{R: 200, G: 10, B: 30, A: 255})

	lb, err := Letterbox(src, 1280)
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, 1280, 1280), lb.Canvas.Bounds())
	assert.Equal(t, 1280, lb.Params.ResizedWidth)
	assert.Equal(t, 720, lb.Params.ResizedHeight)
	assert.Same(t, src, lb.Source.(*image.RGBA))

	// Content sits at the top-left corner.
	assert.Equal(t, color.RGBA{R: 200, G: 10, B: 30, A: 255}, lb.Canvas.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{R: 200, G: 10, B: 30, A: 255}, lb.Canvas.RGBAAt(1279, 719))

	// Rows below the content are padding.
	for _, y := range []int{720, 900, 1279} {
		for _, x := range []int{0, 640, 1279} {
			assert.Equal(t, PadColor, lb.Canvas.RGBAAt(x, y), "pixel (%d,%d)", x, y)
		}
	}
}

func TestLetterbox_Portrait(t *testing.T) {
	src := solidImage(300, 600, color.RGBA{R: 0, G: 255, B: 0, A: 255})

	lb, err := Letterbox(src, 320)
	require.NoError(t, err)

	assert.Equal(t, 160, lb.Params.ResizedWidth)
	assert.Equal(t, 320, lb.Params.ResizedHeight)
	assert.Equal(t, color.RGBA{R: 0, G: 255, B: 0, A: 255}, lb.Canvas.RGBAAt(0, 319))
	assert.Equal(t, PadColor, lb.Canvas.RGBAAt(160, 0))
	assert.Equal(t, PadColor, lb.Canvas.RGBAAt(319, 319))
}

func TestLetterbox_Identity(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			src.SetRGBA(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 4), B: uint8(x + y), A: 255})
		}
	}

	lb, err := Letterbox(src, 64)
	require.NoError(t, err)

	assert.Equal(t, float32(1), lb.Params.Scale)
	assert.Equal(t, src.Pix, lb.Canvas.Pix)
}

func TestLetterbox_OffsetBounds(t *testing.T) {
	base := solidImage(200, 100, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	sub := base.SubImage(image.Rect(100, 50, 200, 100))

	lb, err := Letterbox(sub, 100)
	require.NoError(t, err)

	assert.Equal(t, 100, lb.Params.ResizedWidth)
	assert.Equal(t, 50, lb.Params.ResizedHeight)
	assert.Equal(t, color.RGBA{R: 1, G: 2, B: 3, A: 255}, lb.Canvas.RGBAAt(0, 0))
	assert.Equal(t, PadColor, lb.Canvas.RGBAAt(0, 50))
}

func TestLetterbox_Invalid(t *testing.T) {
	_, err := Letterbox(image.NewRGBA(image.Rect(0, 0, 0, 10)), 640)
	assert.True(t, errors.Is(err, ErrInvalidDimensions))

	_, err = Letterbox(nil, 640)
	assert.True(t, errors.Is(err, ErrInvalidDimensions))

	_, err = Letterbox(solidImage(10, 10, PadColor), -1)
	assert.True(t, errors.Is(err, ErrInvalidDimensions))
}

func BenchmarkLetterbox_1080p(b *testing.B) {
	src := solidImage(1920, 1080, color.RGBA{R: 90, G: 120, B: 150, A: 255})

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := Letterbox(src, 640); err != nil {
			b.Fatal(err)
		}
	}
}
