// Package runner drives one video through the pipeline from device acquisition
// to the final report.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gocv.io/x/gocv"

	"trailcam/detection"
	"trailcam/metrics"
	"trailcam/observability"
	"trailcam/overlay"
	"trailcam/pipeline"
	"trailcam/report"
	"trailcam/stream"
	"trailcam/tracking"
)

var (
	// ErrDevice is returned when no device could run the detector
	ErrDevice = errors.New("inference device unavailable")
	// ErrInterrupted is returned when the run was cancelled between frames
	ErrInterrupted = errors.New("processing interrupted")
	// ErrClosed is returned by Run on a controller that already ran
	ErrClosed = errors.New("controller closed")
)

// State is the lifecycle position of a Controller
type State int

const (
	StateInit State = iota
	StateDeviceAcquired
	StateStreamOpen
	StateRunning
	StateFinalizing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateDeviceAcquired:
		return "device_acquired"
	case StateStreamOpen:
		return "stream_open"
	case StateRunning:
		return "running"
	case StateFinalizing:
		return "finalizing"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Loader builds a detector on a device
type Loader func(detection.Device) (detection.Detector, error)

// Stream is the source and sink of a run. *stream.Adapter implements it.
type Stream interface {
	OpenSource(path string) (stream.Descriptor, error)
	OpenSink(path string, desc stream.Descriptor) error
	Read(m *gocv.Mat) bool
	Write(frame gocv.Mat) error
	Codec() string
	Close() error
}

// Ledger stores finished runs
type Ledger interface {
	Record(ctx context.Context, r *report.Report) error
}

// Job describes what to process
type Job struct {
	InputPath    string
	OutputPath   string
	Settings     pipeline.Settings
	ProgressStep int
}

// Controller runs a Job once. It is not safe for concurrent use.
type Controller struct {
	devices  detection.DeviceSelector
	load     Loader
	stream   Stream
	store    *tracking.Store
	renderer *overlay.Renderer
	job      Job
	recorder *metrics.Recorder
	ledger   Ledger
	onSample func(Sample)
	logger   *slog.Logger

	state    State
	device   *detection.Device
	detector detection.Detector
	now      func() time.Time
}

// Option configures a Controller
type Option func(*Controller)

// WithRecorder publishes frame metrics to r
func WithRecorder(r *metrics.Recorder) Option {
	return func(c *Controller) {
		c.recorder = r
	}
}

// WithLedger records the final report in l
func WithLedger(l Ledger) Option {
	return func(c *Controller) {
		c.ledger = l
	}
}

// WithProgress calls fn every time progress is logged
func WithProgress(fn func(Sample)) Option {
	return func(c *Controller) {
		c.onSample = fn
	}
}

// New creates a controller. The store is owned by this run.
func New(devices detection.DeviceSelector, load Loader, s Stream, store *tracking.Store, renderer *overlay.Renderer, job Job, logger *slog.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		devices:  devices,
		load:     load,
		stream:   s,
		store:    store,
		renderer: renderer,
		job:      job,
		logger:   logger.With("component", "runner"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.recorder == nil {
		c.recorder = metrics.NewRecorder()
	}
	return c
}

// State returns the current lifecycle state
func (c *Controller) State() State {
	return c.state
}

// Run processes the whole input. The returned report is non-nil whenever Run
// got past the ErrClosed check, including on failure.
func (c *Controller) Run(ctx context.Context) (*report.Report, error) {
	if c.state != StateInit {
		return nil, ErrClosed
	}

	rep := report.New()
	rep.Timestamp = c.now()
	rep.InputPath = c.job.InputPath
	rep.OutputPath = c.job.OutputPath
	ctx = observability.WithRunID(ctx, rep.RunID)

	var started time.Time
	err := c.execute(ctx, rep, &started)
	if err != nil {
		c.logger.ErrorContext(ctx, "run aborted", "stage", c.state.String(), "error", err)
	}
	err = c.finalize(ctx, rep, started, err)
	return rep, err
}

func (c *Controller) execute(ctx context.Context, rep *report.Report, started *time.Time) error {
	device, err := c.devices.SelectDevice()
	if err != nil {
		return fmt.Errorf("%w: select: %w", ErrDevice, err)
	}
	c.device = &device

	if err := c.loadDetector(ctx); err != nil {
		return err
	}
	c.state = StateDeviceAcquired
	rep.Device = c.device.String()

	desc, err := c.stream.OpenSource(c.job.InputPath)
	if err != nil {
		return err
	}
	if err := c.stream.OpenSink(c.job.OutputPath, desc); err != nil {
		return err
	}
	c.state = StateStreamOpen
	rep.Codec = c.stream.Codec()
	rep.TotalFrames = desc.TotalFrames

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w before first frame: %w", ErrInterrupted, context.Cause(ctx))
	}

	c.state = StateRunning
	*started = c.now()
	c.logger.InfoContext(ctx, "processing started",
		"input", c.job.InputPath,
		"output", c.job.OutputPath,
		"device", rep.Device,
		"codec", rep.Codec,
		"total_frames", desc.TotalFrames)
	return c.loop(ctx, rep, desc)
}

// loadDetector loads on the selected device and retries exactly once on CPU
// when a non-CPU device fails.
func (c *Controller) loadDetector(ctx context.Context) error {
	det, err := c.load(*c.device)
	if err == nil {
		c.detector = det
		return nil
	}
	if c.device.Kind == detection.DeviceCPU {
		return fmt.Errorf("%w: load detector on %s: %w", ErrDevice, c.device, err)
	}

	c.logger.WarnContext(ctx, "detector failed on device, falling back to CPU", "device", c.device.String(), "error", err)
	if relErr := c.devices.Release(*c.device); relErr != nil {
		c.logger.WarnContext(ctx, "device release failed", "device", c.device.String(), "error", relErr)
	}
	cpu := detection.CPU
	c.device = &cpu

	det, cpuErr := c.load(cpu)
	if cpuErr != nil {
		return fmt.Errorf("%w: load detector on cpu after fallback: %w", ErrDevice, errors.Join(err, cpuErr))
	}
	c.detector = det
	return nil
}

func (c *Controller) loop(ctx context.Context, rep *report.Report, desc stream.Descriptor) error {
	pipe := pipeline.New(c.detector, c.store, c.renderer, c.job.Settings, c.logger)
	meter := NewMeter(c.job.ProgressStep)

	frame := gocv.NewMat()
	defer frame.Close()

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w after %d frames: %w", ErrInterrupted, rep.FramesProcessed, context.Cause(ctx))
		}

		frameStart := time.Now()
		if !c.stream.Read(&frame) {
			return nil
		}
		index := rep.FramesProcessed

		out := pipe.Process(frame, index)
		err := c.stream.Write(out.Frame)
		out.Release()
		if err != nil {
			return fmt.Errorf("write frame %d: %w", index, err)
		}

		rep.FramesProcessed++
		if out.Failed() {
			rep.FrameErrors++
		}
		if n := c.store.Evict(index); n > 0 {
			c.logger.DebugContext(ctx, "idle trajectories evicted", "frame", index, "count", n)
		}

		elapsed := time.Since(frameStart)
		c.recorder.ObserveFrame(elapsed, out.Detections, out.Failed())
		c.recorder.SetTrajectories(c.store.Len())

		sample := Sample{Processed: rep.FramesProcessed, Total: desc.TotalFrames, Elapsed: elapsed}
		if meter.Observe(sample) {
			c.recorder.SetProgress(sample.Percent())
			c.logger.InfoContext(ctx, "progress",
				"percent", int(sample.Percent()),
				"frame", sample.Processed,
				"total", sample.Total,
				"fps", fmt.Sprintf("%.1f", sample.FPS()))
			if c.onSample != nil {
				c.onSample(sample)
			}
		}
	}
}

// finalize releases everything acquired so far exactly once, then writes the
// report when processing started and records the run in the ledger.
func (c *Controller) finalize(ctx context.Context, rep *report.Report, started time.Time, runErr error) error {
	reachedRunning := c.state == StateRunning
	c.state = StateFinalizing

	var teardown []error
	if err := c.stream.Close(); err != nil {
		teardown = append(teardown, fmt.Errorf("close stream: %w", err))
	}
	if c.detector != nil {
		if err := c.detector.Close(); err != nil {
			teardown = append(teardown, fmt.Errorf("close detector: %w", err))
		}
		c.detector = nil
	}
	if c.device != nil {
		if err := c.devices.Release(*c.device); err != nil {
			teardown = append(teardown, fmt.Errorf("release device: %w", err))
		}
		c.device = nil
	}
	if err := errors.Join(teardown...); err != nil {
		c.logger.ErrorContext(ctx, "teardown failed", "stage", "finalizing", "error", err)
		runErr = errors.Join(runErr, err)
	}

	switch {
	case runErr == nil:
		rep.Status = report.StatusCompleted
	case errors.Is(runErr, ErrInterrupted):
		rep.Status = report.StatusInterrupted
	default:
		rep.Status = report.StatusFailed
	}

	if reachedRunning {
		rep.Duration = c.now().Sub(started)
		path, err := rep.WriteFile()
		if err != nil {
			c.logger.ErrorContext(ctx, "report not written", "stage", "finalizing", "error", err)
		} else {
			c.logger.InfoContext(ctx, "report written", "path", path)
		}
		c.logger.InfoContext(ctx, "processing finished",
			"status", rep.Status,
			"frames", rep.FramesProcessed,
			"total", rep.TotalFrames,
			"frame_errors", rep.FrameErrors,
			"duration", rep.Duration.Round(time.Millisecond).String(),
			"avg_fps", fmt.Sprintf("%.2f", rep.AverageFPS()))
	}

	if c.ledger != nil {
		if err := c.ledger.Record(context.WithoutCancel(ctx), rep); err != nil {
			c.logger.WarnContext(ctx, "run not recorded in ledger", "error", err)
		}
	}

	c.state = StateClosed
	return runErr
}
