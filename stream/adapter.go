// Package stream owns the video source and sink of a run.
package stream

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"gocv.io/x/gocv"
)

var (
	// ErrStreamOpen is returned when the input video cannot be opened
	ErrStreamOpen = errors.New("cannot open video stream")
	// ErrSinkOpen is returned when no codec candidate could open the output
	ErrSinkOpen = errors.New("cannot open video writer")
)

// DefaultFPS is used when the source does not report a frame rate
const DefaultFPS = 30.0

// Descriptor holds the stream properties read once at open
type Descriptor struct {
	Width       int
	Height      int
	FPS         float64
	TotalFrames int
}

// Source is an opened video capture
type Source interface {
	IsOpened() bool
	Get(prop gocv.VideoCaptureProperties) float64
	Read(m *gocv.Mat) bool
	Close() error
}

// SourceOpener opens a video file for reading
type SourceOpener func(path string) (Source, error)

// OpenFile opens path with OpenCV's VideoCapture
func OpenFile(path string) (Source, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		if vc != nil {
			vc.Close()
		}
		return nil, err
	}
	return vc, nil
}

// Adapter reads frames from one source and writes them to one sink
type Adapter struct {
	openSource SourceOpener
	policy     CodecPolicy
	logger     *slog.Logger

	source Source
	sink   Sink
	codec  string
	desc   Descriptor
	closed bool
}

// AdapterOption configures an Adapter
type AdapterOption func(*Adapter)

// WithSourceOpener replaces the VideoCapture based opener
func WithSourceOpener(fn SourceOpener) AdapterOption {
	return func(a *Adapter) {
		a.openSource = fn
	}
}

// NewAdapter creates an adapter that opens sinks through policy
func NewAdapter(policy CodecPolicy, logger *slog.Logger, opts ...AdapterOption) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Adapter{
		openSource: OpenFile,
		policy:     policy,
		logger:     logger.With("component", "stream"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// OpenSource opens the input video and reads its properties
func (a *Adapter) OpenSource(path string) (Descriptor, error) {
	src, err := a.openSource(path)
	if err != nil {
		return Descriptor{}, fmt.Errorf("%w: %s: %w", ErrStreamOpen, path, err)
	}
	if !src.IsOpened() {
		src.Close()
		return Descriptor{}, fmt.Errorf("%w: %s", ErrStreamOpen, path)
	}

	desc := Descriptor{
		Width:       int(src.Get(gocv.VideoCaptureFrameWidth)),
		Height:      int(src.Get(gocv.VideoCaptureFrameHeight)),
		FPS:         src.Get(gocv.VideoCaptureFPS),
		TotalFrames: int(src.Get(gocv.VideoCaptureFrameCount)),
	}
	if desc.FPS <= 0 || math.IsNaN(desc.FPS) || math.IsInf(desc.FPS, 0) {
		a.logger.Warn("source reports no frame rate, using default", "fps", DefaultFPS)
		desc.FPS = DefaultFPS
	}
	if desc.TotalFrames < 0 {
		desc.TotalFrames = 0
	}

	a.source = src
	a.desc = desc
	a.logger.Info("source opened",
		"path", path,
		"width", desc.Width,
		"height", desc.Height,
		"fps", desc.FPS,
		"total_frames", desc.TotalFrames)
	return desc, nil
}

// OpenSink opens the output video through the codec policy
func (a *Adapter) OpenSink(path string, desc Descriptor) error {
	sink, codec, err := a.policy.Open(path, desc, a.logger)
	if err != nil {
		return err
	}
	a.sink = sink
	a.codec = codec
	a.logger.Info("writer opened", "path", path, "codec", codec)
	return nil
}

// Descriptor returns the properties of the open source
func (a *Adapter) Descriptor() Descriptor {
	return a.desc
}

// Codec returns the name of the candidate that opened the sink
func (a *Adapter) Codec() string {
	return a.codec
}

// Read decodes the next frame into m. It returns false at the end of the
// stream, which is not an error.
func (a *Adapter) Read(m *gocv.Mat) bool {
	if a.source == nil {
		return false
	}
	if !a.source.Read(m) {
		return false
	}
	return !m.Empty()
}

// Write appends a frame to the sink. Without a sink it does nothing.
func (a *Adapter) Write(frame gocv.Mat) error {
	if a.sink == nil {
		return nil
	}
	return a.sink.Write(frame)
}

// Close releases the sink and the source. It is safe to call more than once.
func (a *Adapter) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true

	var errs []error
	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close writer: %w", err))
		}
		a.sink = nil
	}
	if a.source != nil {
		if err := a.source.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close source: %w", err))
		}
		a.source = nil
	}
	a.logger.Debug("stream closed")
	return errors.Join(errs...)
}
