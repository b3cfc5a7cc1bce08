package detection

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"gocv.io/x/gocv"

	"trailcam/tracking"
)

// ErrNoGPU is returned when a CUDA device is required but none is usable
var ErrNoGPU = errors.New("no usable GPU")

// Detection is one object found on a frame
type Detection struct {
	Box        image.Rectangle
	ClassID    int
	ClassName  string
	Confidence float64
	// Track is only meaningful when Tracked is true
	Track   tracking.Identity
	Tracked bool
}

// Center returns the box center used as the trajectory point
func (d Detection) Center() image.Point {
	return image.Pt(d.Box.Min.X+d.Box.Dx()/2, d.Box.Min.Y+d.Box.Dy()/2)
}

// Result represents the output of object detection for one frame. It is not
// modified after Detect returns.
type Result struct {
	Detections []Detection
}

// Empty reports whether nothing was detected
func (r *Result) Empty() bool {
	return r == nil || len(r.Detections) == 0
}

// Detector runs detection plus identity assignment on a frame. Tracker state
// persists between calls so identities stay stable across the stream.
type Detector interface {
	Detect(frame gocv.Mat, confidence float64, profile TrackerProfile) (*Result, error)
	Info() ProviderInfo
	Close() error
}

// ProviderInfo contains information about the inference provider
type ProviderInfo struct {
	Type     string        // "GPU" or "CPU"
	Backend  string        // "CUDA", "CPU"
	Device   string        // Device identifier
	Model    string        // Model file
	InitTime time.Duration // Time taken to initialize
}

// DeviceKind names an inference target
type DeviceKind string

const (
	DeviceCPU  DeviceKind = "cpu"
	DeviceCUDA DeviceKind = "cuda"
)

// Device is an acquired inference device
type Device struct {
	Kind DeviceKind
	Name string
}

// CPU is the device every host has
var CPU = Device{Kind: DeviceCPU, Name: "CPU"}

func (d Device) String() string {
	if d.Name == "" {
		return string(d.Kind)
	}
	return fmt.Sprintf("%s (%s)", d.Kind, d.Name)
}

// DeviceSelector hands out the device a run should use and takes it back
type DeviceSelector interface {
	SelectDevice() (Device, error)
	Release(Device) error
}

// Probe selects CUDA when the host has a working NVIDIA stack, CPU otherwise.
// Preference may force "cpu" or "cuda"; "auto" (or empty) probes.
type Probe struct {
	preference string
	logger     *slog.Logger

	// hasGPU is replaced in tests
	hasGPU func() bool
}

// NewProbe creates a device probe
func NewProbe(preference string, logger *slog.Logger) *Probe {
	if logger == nil {
		logger = slog.Default()
	}
	return &Probe{
		preference: strings.ToLower(strings.TrimSpace(preference)),
		logger:     logger.With("component", "device"),
		hasGPU:     hasGPUCapability,
	}
}

// SelectDevice performs auto-detection and returns the best available device
func (p *Probe) SelectDevice() (Device, error) {
	switch p.preference {
	case "", "auto":
	case string(DeviceCPU):
		p.logger.Info("CPU device forced by configuration")
		return CPU, nil
	case string(DeviceCUDA):
		if !p.hasGPU() {
			return Device{}, fmt.Errorf("cuda device requested: %w", ErrNoGPU)
		}
		return Device{Kind: DeviceCUDA, Name: "NVIDIA GPU 0"}, nil
	default:
		return Device{}, fmt.Errorf("unknown device preference %q", p.preference)
	}

	p.logger.Info("auto-detecting best inference device")
	if p.hasGPU() {
		p.logger.Info("GPU capability detected, using CUDA")
		return Device{Kind: DeviceCUDA, Name: "NVIDIA GPU 0"}, nil
	}
	p.logger.Info("no GPU capability detected, using CPU")
	return CPU, nil
}

// Release gives the device back. Network memory on the device is freed when
// the detector that used it is closed, so only the handle is dropped here.
func (p *Probe) Release(d Device) error {
	if d.Kind == DeviceCUDA {
		p.logger.Info("GPU memory released", "device", d.String())
	}
	return nil
}

// hasGPUCapability checks if GPU inference is possible
func hasGPUCapability() bool {
	if !hasNVIDIAGPU() {
		return false
	}
	// CUDA itself is exercised by the smoke inference when the detector loads
	return hasNVIDIADriver()
}

// hasNVIDIAGPU checks if NVIDIA GPU is present
func hasNVIDIAGPU() bool {
	output, err := exec.Command("lspci").Output()
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(string(output)), "nvidia")
}

// hasNVIDIADriver checks if NVIDIA drivers are loaded
func hasNVIDIADriver() bool {
	if err := exec.Command("nvidia-smi", "--query-gpu=name", "--format=csv,noheader").Run(); err != nil {
		return false
	}
	matches, _ := filepath.Glob("/dev/nvidia*")
	return len(matches) > 0
}
