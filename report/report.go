// Package report produces the end-of-run summary and keeps a ledger of past runs.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FileName is the report written next to the output video
const FileName = "processing_info.txt"

// Status is how a run ended
type Status string

const (
	StatusCompleted   Status = "completed"
	StatusInterrupted Status = "interrupted"
	StatusFailed      Status = "failed"
)

// Report summarizes one run
type Report struct {
	RunID           string
	Timestamp       time.Time
	InputPath       string
	OutputPath      string
	FramesProcessed int
	TotalFrames     int
	FrameErrors     int
	Duration        time.Duration
	Device          string
	Codec           string
	Status          Status
}

// New creates a report with a fresh run id
func New() *Report {
	return &Report{RunID: uuid.NewString()}
}

// AverageFPS is frames processed over wall-clock seconds, 0 when no time elapsed
func (r *Report) AverageFPS() float64 {
	secs := r.Duration.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(r.FramesProcessed) / secs
}

// OutputDir is the directory holding the output video
func (r *Report) OutputDir() string {
	return filepath.Dir(r.OutputPath)
}

// WriteTo renders the plain-text report
func (r *Report) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	b.WriteString("Object Detection - Processing Report\n")
	b.WriteString(strings.Repeat("=", 50) + "\n")
	fmt.Fprintf(&b, "Timestamp: %s\n", r.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Frames Processed: %d/%d\n", r.FramesProcessed, r.TotalFrames)
	fmt.Fprintf(&b, "Processing Time: %.2f seconds\n", r.Duration.Seconds())
	fmt.Fprintf(&b, "Average FPS: %.2f\n", r.AverageFPS())
	fmt.Fprintf(&b, "Output Video: %s\n", filepath.Base(r.OutputPath))
	fmt.Fprintf(&b, "Output Directory: %s\n", r.OutputDir())
	fmt.Fprintf(&b, "Frame Errors: %d\n", r.FrameErrors)
	fmt.Fprintf(&b, "Device: %s\n", r.Device)
	fmt.Fprintf(&b, "Codec: %s\n", r.Codec)
	fmt.Fprintf(&b, "Status: %s\n", r.Status)
	fmt.Fprintf(&b, "Run ID: %s\n", r.RunID)

	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// WriteFile writes processing_info.txt into the output directory and returns its path
func (r *Report) WriteFile() (string, error) {
	path := filepath.Join(r.OutputDir(), FileName)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create report: %w", err)
	}
	if _, err := r.WriteTo(f); err != nil {
		f.Close()
		return "", fmt.Errorf("write report: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close report: %w", err)
	}
	return path, nil
}
