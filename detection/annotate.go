package detection

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// BoxStyle controls how Plot draws boxes and labels
type BoxStyle struct {
	Thickness int
	FontScale float64
}

// DefaultBoxStyle matches the trail thickness
var DefaultBoxStyle = BoxStyle{Thickness: 2, FontScale: 0.5}

// palette is indexed by class id
var palette = []color.RGBA{
	{R: 255, G: 56, B: 56, A: 255},
	{R: 255, G: 157, B: 151, A: 255},
	{R: 255, G: 112, B: 31, A: 255},
	{R: 255, G: 178, B: 29, A: 255},
	{R: 207, G: 210, B: 49, A: 255},
	{R: 72, G: 249, B: 10, A: 255},
	{R: 146, G: 204, B: 23, A: 255},
	{R: 61, G: 219, B: 134, A: 255},
	{R: 26, G: 147, B: 52, A: 255},
	{R: 0, G: 212, B: 187, A: 255},
	{R: 44, G: 153, B: 168, A: 255},
	{R: 0, G: 194, B: 255, A: 255},
	{R: 52, G: 69, B: 147, A: 255},
	{R: 100, G: 115, B: 255, A: 255},
	{R: 0, G: 24, B: 236, A: 255},
	{R: 132, G: 56, B: 255, A: 255},
	{R: 82, G: 0, B: 133, A: 255},
	{R: 203, G: 56, B: 255, A: 255},
	{R: 255, G: 149, B: 200, A: 255},
	{R: 255, G: 55, B: 199, A: 255},
}

// ClassColor returns the drawing color of a class
func ClassColor(classID int) color.RGBA {
	if classID < 0 {
		classID = -classID
	}
	return palette[classID%len(palette)]
}

// Label is the text drawn above the box
func (d Detection) Label() string {
	if d.Tracked {
		return fmt.Sprintf("id:%d %s %.2f", d.Track, d.ClassName, d.Confidence)
	}
	return fmt.Sprintf("%s %.2f", d.ClassName, d.Confidence)
}

// Plot returns a copy of frame with every detection boxed and labeled.
// The caller owns the returned Mat; frame is left untouched.
func (r *Result) Plot(frame gocv.Mat, style BoxStyle) gocv.Mat {
	img := frame.Clone()
	if r.Empty() {
		return img
	}
	if style.Thickness <= 0 {
		style.Thickness = DefaultBoxStyle.Thickness
	}
	if style.FontScale <= 0 {
		style.FontScale = DefaultBoxStyle.FontScale
	}

	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	for _, d := range r.Detections {
		c := ClassColor(d.ClassID)
		gocv.Rectangle(&img, d.Box, c, style.Thickness)

		label := d.Label()
		textSize := gocv.GetTextSize(label, gocv.FontHersheySimplex, style.FontScale, 1)
		top := d.Box.Min.Y - textSize.Y - 6
		if top < 0 {
			top = d.Box.Min.Y
		}
		bg := image.Rect(d.Box.Min.X, top, d.Box.Min.X+textSize.X+4, top+textSize.Y+6)
		gocv.Rectangle(&img, bg, c, -1)
		gocv.PutText(&img, label, image.Pt(bg.Min.X+2, bg.Max.Y-3), gocv.FontHersheySimplex, style.FontScale, white, 1)
	}
	return img
}
