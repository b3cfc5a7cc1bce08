package overlay

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"trailcam/detection"
	"trailcam/tracking"
)

// TrajectorySource is the read side of the trajectory store
type TrajectorySource interface {
	Get(id tracking.Identity) tracking.Trajectory
}

// Style holds the fixed drawing settings of a run
type Style struct {
	TrailColor     color.RGBA
	TrailThickness int
	Box            detection.BoxStyle
}

// DefaultStyle draws light grey trails, 2px thick
func DefaultStyle() Style {
	return Style{
		TrailColor:     color.RGBA{R: 230, G: 230, B: 230, A: 255},
		TrailThickness: 2,
		Box:            detection.DefaultBoxStyle,
	}
}

// Renderer handles visualization and overlay rendering
type Renderer struct {
	trailColor     color.RGBA // Trail polyline color
	trailThickness int
	boxStyle       detection.BoxStyle
}

// NewRenderer creates a renderer; a non-positive thickness falls back to the default
func NewRenderer(style Style) *Renderer {
	if style.TrailThickness <= 0 {
		style.TrailThickness = DefaultStyle().TrailThickness
	}
	return &Renderer{
		trailColor:     style.TrailColor,
		trailThickness: style.TrailThickness,
		boxStyle:       style.Box,
	}
}

// Render draws every detection box and label, then the trail of each tracked
// detection. With no detections the input frame itself is returned and nothing
// is allocated; otherwise the returned Mat is a new one owned by the caller.
// Trajectories are only read.
func (r *Renderer) Render(frame gocv.Mat, result *detection.Result, trajectories TrajectorySource) gocv.Mat {
	if result.Empty() {
		return frame
	}

	annotated := result.Plot(frame, r.boxStyle)
	for _, d := range result.Tracked() {
		r.DrawTrail(&annotated, trajectories.Get(d.Track))
	}
	return annotated
}

// DrawTrail draws an open polyline through the trajectory, oldest point first
func (r *Renderer) DrawTrail(img *gocv.Mat, trajectory tracking.Trajectory) {
	if trajectory.Len() < 2 {
		return // Need at least 2 points for a path
	}

	pts := gocv.NewPointsVectorFromPoints([][]image.Point{trajectory.Positions()})
	defer pts.Close()

	gocv.Polylines(img, pts, false, r.trailColor, r.trailThickness)
}
