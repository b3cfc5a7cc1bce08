package runner_test

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"trailcam/detection"
	"trailcam/overlay"
	"trailcam/pipeline"
	"trailcam/report"
	"trailcam/runner"
	"trailcam/stream"
	"trailcam/tracking"
)

var errBoom = errors.New("boom")

type fakeSource struct {
	template gocv.Mat
	frames   int
	read     int
	closed   int
}

func (f *fakeSource) IsOpened() bool { return true }
func (f *fakeSource) Close() error   { f.closed++; return nil }
func (f *fakeSource) Get(prop gocv.VideoCaptureProperties) float64 {
	switch prop {
	case gocv.VideoCaptureFrameWidth:
		return float64(f.template.Cols())
	case gocv.VideoCaptureFrameHeight:
		return float64(f.template.Rows())
	case gocv.VideoCaptureFPS:
		return 25
	case gocv.VideoCaptureFrameCount:
		return float64(f.frames)
	}
	return 0
}
func (f *fakeSource) Read(m *gocv.Mat) bool {
	if f.read >= f.frames {
		return false
	}
	f.read++
	f.template.CopyTo(m)
	return true
}

type fakeSink struct {
	written int
	closed  int
}

func (f *fakeSink) IsOpened() bool       { return true }
func (f *fakeSink) Write(gocv.Mat) error { f.written++; return nil }
func (f *fakeSink) Close() error         { f.closed++; return nil }

type fakeDetector struct {
	calls   int
	failOn  int
	onCall  func(n int)
	closed  int
	trackID tracking.Identity
}

func (d *fakeDetector) Detect(_ gocv.Mat, _ float64, _ detection.TrackerProfile) (*detection.Result, error) {
	d.calls++
	if d.onCall != nil {
		d.onCall(d.calls)
	}
	if d.calls == d.failOn {
		return nil, errBoom
	}
	x := d.calls % 40
	return &detection.Result{Detections: []detection.Detection{
		{Box: image.Rect(x, 4, x+10, 14), ClassName: "car", Confidence: 0.8, Track: d.trackID, Tracked: true},
	}}, nil
}
func (d *fakeDetector) Info() detection.ProviderInfo { return detection.ProviderInfo{Type: "CPU"} }
func (d *fakeDetector) Close() error                 { d.closed++; return nil }

type fakeDevices struct {
	device   detection.Device
	err      error
	released []detection.DeviceKind
}

func (f *fakeDevices) SelectDevice() (detection.Device, error) { return f.device, f.err }
func (f *fakeDevices) Release(d detection.Device) error {
	f.released = append(f.released, d.Kind)
	return nil
}

type fakeLedger struct {
	reports []*report.Report
}

func (f *fakeLedger) Record(_ context.Context, r *report.Report) error {
	f.reports = append(f.reports, r)
	return nil
}

type harness struct {
	source   *fakeSource
	sink     *fakeSink
	detector *fakeDetector
	devices  *fakeDevices
	ledger   *fakeLedger
	store    *tracking.Store
	loads    []detection.DeviceKind
	loadErr  map[detection.DeviceKind]error
	openErr  error
	output   string
	step     int
	samples  []runner.Sample
}

func newHarness(t *testing.T, frames int) *harness {
	t.Helper()
	tmpl := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 48, 64, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { tmpl.Close() })

	return &harness{
		source:   &fakeSource{template: tmpl, frames: frames},
		sink:     &fakeSink{},
		detector: &fakeDetector{trackID: 7},
		devices:  &fakeDevices{device: detection.CPU},
		ledger:   &fakeLedger{},
		store:    tracking.NewStore(tracking.DefaultMaxHistory),
		loadErr:  map[detection.DeviceKind]error{},
		output:   filepath.Join(t.TempDir(), "result.mp4"),
		step:     1,
	}
}

func (h *harness) controller() *runner.Controller {
	policy := stream.CodecPolicy{Candidates: []stream.Candidate{{
		Name: "fake",
		Open: func(string, stream.Descriptor) (stream.Sink, error) { return h.sink, nil },
	}}}
	adapter := stream.NewAdapter(policy, nil, stream.WithSourceOpener(func(string) (stream.Source, error) {
		if h.openErr != nil {
			return nil, h.openErr
		}
		return h.source, nil
	}))

	load := func(d detection.Device) (detection.Detector, error) {
		h.loads = append(h.loads, d.Kind)
		if err := h.loadErr[d.Kind]; err != nil {
			return nil, err
		}
		return h.detector, nil
	}

	job := runner.Job{
		InputPath:    "clip.mp4",
		OutputPath:   h.output,
		Settings:     pipeline.Settings{Confidence: 0.5},
		ProgressStep: h.step,
	}
	return runner.New(h.devices, load, adapter, h.store, overlay.NewRenderer(overlay.DefaultStyle()), job, nil,
		runner.WithLedger(h.ledger),
		runner.WithProgress(func(s runner.Sample) { h.samples = append(h.samples, s) }))
}

func TestRunRecoversFromFailedFrame(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 10)
	h.detector.failOn = 5
	c := h.controller()

	rep, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 10, h.sink.written)
	assert.Equal(t, 10, rep.FramesProcessed)
	assert.Equal(t, 10, rep.TotalFrames)
	assert.Equal(t, 1, rep.FrameErrors)
	assert.Equal(t, report.StatusCompleted, rep.Status)
	assert.Equal(t, "fake", rep.Codec)
	assert.Equal(t, 9, h.store.Get(7).Len())

	assert.Equal(t, runner.StateClosed, c.State())
	assert.Equal(t, 1, h.detector.closed)
	assert.Equal(t, 1, h.sink.closed)
	assert.Equal(t, 1, h.source.closed)
	assert.Equal(t, []detection.DeviceKind{detection.DeviceCPU}, h.devices.released)

	require.Len(t, h.ledger.reports, 1)
	assert.Equal(t, rep.RunID, h.ledger.reports[0].RunID)
	_, err = os.Stat(filepath.Join(filepath.Dir(h.output), report.FileName))
	require.NoError(t, err)
}

func TestRunKeepsBoundedTrajectory(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 300)
	rep, err := h.controller().Run(context.Background())
	require.NoError(t, err)

	traj := h.store.Get(7)
	assert.Equal(t, 30, traj.Len())
	assert.Equal(t, 270, traj.At(0).Frame)
	last, ok := traj.Last()
	require.True(t, ok)
	assert.Equal(t, 299, last.Frame)
	assert.Equal(t, 300, rep.FramesProcessed)
	assert.Greater(t, rep.AverageFPS(), 0.0)
}

func TestRunProgressEmissions(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 200)
	_, err := h.controller().Run(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, h.samples)
	assert.LessOrEqual(t, len(h.samples), 100)
	for i := 1; i < len(h.samples); i++ {
		assert.GreaterOrEqual(t, h.samples[i].Percent(), h.samples[i-1].Percent())
	}
	assert.InDelta(t, 100.0, h.samples[len(h.samples)-1].Percent(), 1e-9)
}

func TestRunFallsBackToCPUOnce(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 3)
	h.devices.device = detection.Device{Kind: detection.DeviceCUDA, Name: "NVIDIA GPU 0"}
	h.loadErr[detection.DeviceCUDA] = errBoom

	rep, err := h.controller().Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []detection.DeviceKind{detection.DeviceCUDA, detection.DeviceCPU}, h.loads)
	assert.Equal(t, []detection.DeviceKind{detection.DeviceCUDA, detection.DeviceCPU}, h.devices.released)
	assert.Equal(t, detection.CPU.String(), rep.Device)
	assert.Equal(t, 3, rep.FramesProcessed)
}

func TestRunDeviceFailureIsFatal(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 3)
	h.devices.device = detection.Device{Kind: detection.DeviceCUDA}
	h.loadErr[detection.DeviceCUDA] = errBoom
	h.loadErr[detection.DeviceCPU] = errBoom

	rep, err := h.controller().Run(context.Background())
	require.ErrorIs(t, err, runner.ErrDevice)
	assert.Len(t, h.loads, 2)
	assert.Equal(t, report.StatusFailed, rep.Status)
	assert.Zero(t, h.source.read)

	_, statErr := os.Stat(filepath.Join(filepath.Dir(h.output), report.FileName))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunCPULoadFailureIsNotRetried(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 3)
	h.loadErr[detection.DeviceCPU] = errBoom

	_, err := h.controller().Run(context.Background())
	require.ErrorIs(t, err, runner.ErrDevice)
	require.ErrorIs(t, err, errBoom)
	assert.Len(t, h.loads, 1)
}

func TestRunSelectDeviceFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 3)
	h.devices.err = detection.ErrNoGPU

	_, err := h.controller().Run(context.Background())
	require.ErrorIs(t, err, runner.ErrDevice)
	assert.Empty(t, h.loads)
	assert.Empty(t, h.devices.released)
}

func TestRunStreamOpenFailureTearsDown(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 3)
	h.openErr = errBoom
	c := h.controller()

	rep, err := c.Run(context.Background())
	require.ErrorIs(t, err, stream.ErrStreamOpen)
	assert.Equal(t, report.StatusFailed, rep.Status)
	assert.Equal(t, 1, h.detector.closed)
	assert.Equal(t, []detection.DeviceKind{detection.DeviceCPU}, h.devices.released)
	assert.Equal(t, runner.StateClosed, c.State())
	require.Len(t, h.ledger.reports, 1)
}

func TestRunInterrupted(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 50)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.detector.onCall = func(n int) {
		if n == 3 {
			cancel()
		}
	}

	rep, err := h.controller().Run(ctx)
	require.ErrorIs(t, err, runner.ErrInterrupted)
	assert.Equal(t, report.StatusInterrupted, rep.Status)
	assert.Equal(t, 3, rep.FramesProcessed)
	assert.Equal(t, 3, h.sink.written)
	assert.Equal(t, 1, h.sink.closed)
	assert.Equal(t, 1, h.detector.closed)

	_, statErr := os.Stat(filepath.Join(filepath.Dir(h.output), report.FileName))
	require.NoError(t, statErr)
}

func TestRunOnlyOnce(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 2)
	c := h.controller()
	_, err := c.Run(context.Background())
	require.NoError(t, err)

	rep, err := c.Run(context.Background())
	require.ErrorIs(t, err, runner.ErrClosed)
	assert.Nil(t, rep)
	assert.Equal(t, 1, h.detector.closed)
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "running", runner.StateRunning.String())
	assert.Equal(t, "closed", runner.StateClosed.String())
	assert.Equal(t, "state(42)", runner.State(42).String())
}
