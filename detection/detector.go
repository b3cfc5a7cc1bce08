package detection

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"gocv.io/x/gocv"

	"trailcam/tracking"
)

// YOLODetector couples a NetProvider with an identity Assigner
type YOLODetector struct {
	provider *NetProvider
	assigner *Assigner
	profile  string
	info     ProviderInfo
	logger   *slog.Logger
}

// Load creates a detector on device and verifies it with a test inference
func Load(cfg NetConfig, device Device, logger *slog.Logger) (*YOLODetector, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "detector")

	startTime := time.Now()
	logger.Info("loading model", "model", cfg.ModelPath, "device", device.String())

	provider, err := NewNetProvider(cfg, device)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", device.Kind, err)
	}

	if err := provider.smokeTest(); err != nil {
		provider.Close()
		return nil, fmt.Errorf("%s test inference failed: %w", device.Kind, err)
	}

	info := ProviderInfo{
		Type:     "CPU",
		Backend:  "CPU",
		Device:   device.String(),
		Model:    filepath.Base(cfg.ModelPath),
		InitTime: time.Since(startTime),
	}
	if device.Kind == DeviceCUDA {
		info.Type, info.Backend = "GPU", "CUDA"
	}

	logger.Info("detector ready",
		"type", info.Type,
		"backend", info.Backend,
		"init_time", info.InitTime.Round(time.Millisecond))

	return &YOLODetector{
		provider: provider,
		info:     info,
		logger:   logger,
	}, nil
}

// Detect runs inference and assigns identities. Switching profiles between
// calls starts a fresh assigner.
func (d *YOLODetector) Detect(frame gocv.Mat, confidence float64, profile TrackerProfile) (*Result, error) {
	detections, err := d.provider.Infer(frame, confidence)
	if err != nil {
		return nil, err
	}

	if d.assigner == nil || d.profile != profile.Name {
		if d.assigner != nil {
			d.logger.Warn("tracker profile changed, identities restart", "profile", profile.Name)
		}
		d.assigner = NewAssigner(profile)
		d.profile = profile.Name
	}
	d.assigner.Assign(detections)

	return &Result{Detections: detections}, nil
}

// Info returns information about the provider
func (d *YOLODetector) Info() ProviderInfo {
	return d.info
}

// Close releases the network
func (d *YOLODetector) Close() error {
	return d.provider.Close()
}

// Tracked returns the tracked detections of r, in detection order
func (r *Result) Tracked() []Detection {
	if r.Empty() {
		return nil
	}
	var out []Detection
	for _, d := range r.Detections {
		if d.Tracked {
			out = append(out, d)
		}
	}
	return out
}

// Identities lists the identities present in r
func (r *Result) Identities() []tracking.Identity {
	var ids []tracking.Identity
	for _, d := range r.Tracked() {
		ids = append(ids, d.Track)
	}
	return ids
}
