// Package metrics records run throughput as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "trailcam"

// Recorder holds the run metrics on its own registry
type Recorder struct {
	registry        *prometheus.Registry
	framesProcessed prometheus.Counter
	frameErrors     prometheus.Counter
	frameDuration   prometheus.Histogram
	detections      prometheus.Counter
	trajectories    prometheus.Gauge
	progress        prometheus.Gauge
}

// NewRecorder creates and registers the run metrics
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		framesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_processed_total",
			Help:      "Frames read, processed and written.",
		}),
		frameErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_errors_total",
			Help:      "Frames written raw because processing failed.",
		}),
		frameDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_duration_seconds",
			Help:      "Wall time spent on one frame from read to write.",
			Buckets:   prometheus.ExponentialBuckets(0.002, 2, 12),
		}),
		detections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detections_total",
			Help:      "Objects detected over all frames.",
		}),
		trajectories: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_trajectories",
			Help:      "Identities held by the trajectory store.",
		}),
		progress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "progress_ratio",
			Help:      "Fraction of the input processed, 0 to 1.",
		}),
	}

	r.registry.MustRegister(
		r.framesProcessed,
		r.frameErrors,
		r.frameDuration,
		r.detections,
		r.trajectories,
		r.progress,
	)
	return r
}

// Registry exposes the registry for serving and tests
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveFrame records one written frame
func (r *Recorder) ObserveFrame(elapsed time.Duration, detections int, failed bool) {
	r.framesProcessed.Inc()
	r.frameDuration.Observe(elapsed.Seconds())
	r.detections.Add(float64(detections))
	if failed {
		r.frameErrors.Inc()
	}
}

// SetTrajectories records the current size of the trajectory store
func (r *Recorder) SetTrajectories(n int) {
	r.trajectories.Set(float64(n))
}

// SetProgress records completion as a percentage
func (r *Recorder) SetProgress(percent float64) {
	r.progress.Set(percent / 100)
}
