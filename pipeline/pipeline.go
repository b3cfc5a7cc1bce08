// Package pipeline runs detection, trajectory update and rendering for one frame
// at a time.
package pipeline

import (
	"fmt"
	"log/slog"
	"time"

	"gocv.io/x/gocv"

	"trailcam/detection"
	"trailcam/overlay"
	"trailcam/tracking"
)

// Outcome is the result of processing one frame. Frame is always safe to write:
// on failure it is the unmodified input.
type Outcome struct {
	Index int
	Frame gocv.Mat
	// Fresh is true when Frame is a new Mat the caller must close, false when
	// it is the input frame itself
	Fresh      bool
	Err        error
	Detections int
	Tracked    int
	Duration   time.Duration
}

// Failed reports whether the frame fell back to the raw input
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// Release closes the annotated frame if it was allocated for this outcome
func (o *Outcome) Release() {
	if o.Fresh {
		o.Frame.Close()
		o.Fresh = false
	}
}

// Settings are the per-run detection parameters
type Settings struct {
	Confidence float64
	Profile    detection.TrackerProfile
}

// Pipeline processes frames in arrival order. It is used from a single goroutine.
type Pipeline struct {
	detector detection.Detector
	store    *tracking.Store
	renderer *overlay.Renderer
	settings Settings
	logger   *slog.Logger
}

// New creates a pipeline over an already loaded detector and a run-owned store
func New(detector detection.Detector, store *tracking.Store, renderer *overlay.Renderer, settings Settings, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		detector: detector,
		store:    store,
		renderer: renderer,
		settings: settings,
		logger:   logger.With("component", "pipeline"),
	}
}

// Process detects, updates trajectories and renders one frame. A failure in any
// step, including a panic, is logged with the frame index and the input frame is
// returned instead. Trajectories are not touched when detection fails.
func (p *Pipeline) Process(frame gocv.Mat, index int) (out Outcome) {
	start := time.Now()
	out = Outcome{Index: index, Frame: frame}

	defer func() {
		if r := recover(); r != nil {
			out.Release()
			out.Frame = frame
			out.Err = fmt.Errorf("frame %d: panic: %v", index, r)
		}
		if out.Err != nil {
			p.logger.Error("frame processing failed, writing raw frame", "frame", index, "error", out.Err)
		}
		out.Duration = time.Since(start)
	}()

	result, err := p.detector.Detect(frame, p.settings.Confidence, p.settings.Profile)
	if err != nil {
		out.Err = fmt.Errorf("frame %d: detect: %w", index, err)
		return out
	}
	out.Detections = len(result.Detections)

	for _, d := range result.Tracked() {
		p.store.Update(d.Track, tracking.Point{Position: d.Center(), Frame: index})
		out.Tracked++
	}

	annotated := p.renderer.Render(frame, result, p.store)
	out.Frame = annotated
	out.Fresh = !result.Empty()
	return out
}

// Store returns the trajectory store the pipeline writes to
func (p *Pipeline) Store() *tracking.Store {
	return p.store
}
