// Package render writes detection results as text reports and annotated images.
package render

import (
	"fmt"
	"image"
	"io"

	"github.com/fogleman/gg"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-detect/models"
	"github.com/nvr-ai/go-detect/models/postprocess"
)

// Box outline and label styling.
const (
	LineWidth = 2
	labelPad  = 2
)

// Line formats a detection as
//
//	Class=<id>, Score=<score>, BBox=(x1,y1,x2,y2)Centroid=(cx,cy)
func Line(d postprocess.Detection) string {
	cx, cy := d.Centroid()
	return fmt.Sprintf("Class=%d, Score=%g, BBox=(%g,%g,%g,%g)Centroid=(%g,%g)",
		d.Class, d.Score, d.Box.X1, d.Box.Y1, d.Box.X2, d.Box.Y2, cx, cy)
}

// Report writes one line per detection to w, in order. When classes is not nil each line
// ends with the class label.
func Report(w io.Writer, detections []postprocess.Detection, classes *models.OutputClassSet) error {
	for _, d := range detections {
		line := Line(d)
		if classes != nil {
			line += " Label=" + classes.Name(d.Class)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return errors.Wrap(err, "write report")
		}
	}
	return nil
}

// Label returns the caption drawn above a box, e.g. "person (87.65%)".
func Label(d postprocess.Detection, classes *models.OutputClassSet) string {
	return fmt.Sprintf("%s (%.2f%%)", classes.Name(d.Class), d.Score*100)
}

// Annotate draws every detection on a copy of src: a red outline and a white caption just
// above the top-left corner of the box. src is not modified.
//
// Arguments:
//   - src: The image the detections are expressed in.
//   - detections: Boxes in src coordinates.
//   - classes: Labels for the captions. Nil falls back to "class_<id>".
//
// Returns:
//   - image.Image: The annotated copy.
//
// @example
// annotated := render.Annotate(result.Source, result.Detections, models.YOLOClasses)
// err := util.SaveImage("output.png", annotated)
func Annotate(src image.Image, detections []postprocess.Detection, classes *models.OutputClassSet) image.Image {
	dc := gg.NewContextForImage(src)
	dc.SetLineWidth(LineWidth)

	for _, d := range detections {
		b := d.Box
		dc.SetRGB(1, 0, 0)
		dc.DrawRectangle(float64(b.X1), float64(b.Y1), float64(b.Width()), float64(b.Height()))
		dc.Stroke()

		text := Label(d, classes)
		_, th := dc.MeasureString(text)
		y := max(float64(b.Y1)-labelPad, th)
		dc.SetRGB(1, 1, 1)
		dc.DrawString(text, float64(b.X1), y)
	}

	return dc.Image()
}
