// Package images - Image geometry and letterbox utilities for detector inputs.
package images

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Box is an axis-aligned bounding box in corner form.
//
// X2 >= X1 and Y2 >= Y1 are not enforced. A box decoded from a model can be
// degenerate, so every area computation clamps negative extents to zero.
type Box struct {
	X1, Y1, X2, Y2 float32
}

// NewBoxFromCenter converts a center-form box (cx, cy, w, h) to corner form.
//
// Arguments:
//   - cx, cy: The center of the box.
//   - w, h: The width and height of the box.
//
// Returns:
//   - Box: The corner-form box.
//
// @example
// box := NewBoxFromCenter(50, 50, 20, 10) // Box{40, 45, 60, 55}
func NewBoxFromCenter(cx, cy, w, h float32) Box {
	return Box{
		X1: cx - w/2,
		Y1: cy - h/2,
		X2: cx + w/2,
		Y2: cy + h/2,
	}
}

// Width returns the clamped width of the box.
func (b Box) Width() float32 {
	return math32.Max(0, b.X2-b.X1)
}

// Height returns the clamped height of the box.
func (b Box) Height() float32 {
	return math32.Max(0, b.Y2-b.Y1)
}

// Area returns max(0, x2-x1) * max(0, y2-y1).
func (b Box) Area() float32 {
	return b.Width() * b.Height()
}

// Center returns the centroid of the box.
func (b Box) Center() (x, y float32) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

// Intersection returns the area shared by two boxes, zero when they do not overlap.
func (b Box) Intersection(o Box) float32 {
	ix1 := math32.Max(b.X1, o.X1)
	iy1 := math32.Max(b.Y1, o.Y1)
	ix2 := math32.Min(b.X2, o.X2)
	iy2 := math32.Min(b.Y2, o.Y2)
	return math32.Max(0, ix2-ix1) * math32.Max(0, iy2-iy1)
}

// Scale multiplies every coordinate by f.
func (b Box) Scale(f float32) Box {
	return Box{X1: b.X1 * f, Y1: b.Y1 * f, X2: b.X2 * f, Y2: b.Y2 * f}
}

// Clamp limits the box to [0, width] x [0, height].
func (b Box) Clamp(width, height float32) Box {
	return Box{
		X1: math32.Min(math32.Max(b.X1, 0), width),
		Y1: math32.Min(math32.Max(b.Y1, 0), height),
		X2: math32.Min(math32.Max(b.X2, 0), width),
		Y2: math32.Min(math32.Max(b.Y2, 0), height),
	}
}

func (b Box) String() string {
	return fmt.Sprintf("(%g,%g,%g,%g)", b.X1, b.Y1, b.X2, b.Y2)
}

// IoU (Intersection over Union) measures how much two boxes overlap.
//
// It is formally defined by the formula:
//
//	IoU = Area of Intersection / Area of Union
//
//	- A value of 1.0 means the boxes are identical.
//	- A value of 0.0 means the boxes don't overlap at all.
//
// **Intersection**
//
//	The top-left corner of the overlap is the maximum of the two top-left corners,
//	the bottom-right corner is the minimum of the two bottom-right corners. Negative
//	extents mean there is no overlap and are clamped to zero.
//
// **Union**
//
//	Area(Union) = Area(A) + Area(B) - Area(Intersection)
//
//	Areas are clamped the same way, so a degenerate box contributes nothing. When the
//	union is exactly zero (two zero-area boxes) the IoU is 0, never NaN.
//
// The computation is symmetric: IoU(a, b) == IoU(b, a).
//
// Arguments:
//   - a: The first box.
//   - b: The other box to compare against.
//
// Returns:
//   - float32: A value between 0.0 and 1.0 representing the IoU score.
//
// Example Usage:
// ```go
//
//	a := Box{X1: 0, Y1: 0, X2: 100, Y2: 100}
//	b := Box{X1: 50, Y1: 50, X2: 150, Y2: 150}
//
//	score := IoU(a, b) // intersection=2500, union=17500, score≈0.142857
//
// ```
func IoU(a, b Box) float32 {
	inter := a.Intersection(b)
	union := a.Area() + b.Area() - inter
	if union == 0 {
		return 0
	}
	return inter / union
}
