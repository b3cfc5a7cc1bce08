package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trailcam/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trailcam.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_EmptyFile_UsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.InDelta(t, config.DefaultConfidence, cfg.Detection.Confidence, 1e-9)
	assert.Equal(t, config.DefaultTracker, cfg.Detection.Tracker)
	assert.Equal(t, config.DefaultMaxHistory, cfg.Tracking.MaxHistory)
	assert.Equal(t, 0, cfg.Tracking.IdleEvictionFrames)
	assert.Equal(t, []int{230, 230, 230}, cfg.Overlay.TrailColor)
	assert.Equal(t, config.DefaultTrailThickness, cfg.Overlay.TrailThickness)
	assert.Equal(t, []string{"avc1", "mp4v", "XVID"}, cfg.Output.Codecs)
	assert.Equal(t, config.DefaultStepPercent, cfg.Progress.StepPercent)
	assert.Equal(t, "results", cfg.Output.ResultsDir)
	assert.Equal(t, "result.mp4", cfg.Output.Filename)
	assert.Equal(t, filepath.Join("results", "runs.db"), cfg.LedgerPath())
}

func TestLoadConfig_ValidFile_Unmarshals(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `input:
  video: clips/river.mp4
model:
  size: m
  device: cpu
detection:
  confidence: 0.35
tracking:
  max_history: 50
  idle_eviction_frames: 120
overlay:
  trail_color: [255, 0, 0]
output:
  codecs: [mp4v]
  ffmpeg_fallback: true
history:
  database: "off"
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "clips/river.mp4", cfg.Input.Video)
	assert.Equal(t, "m", cfg.Model.Size)
	assert.Equal(t, "cpu", cfg.Model.Device)
	assert.InDelta(t, 0.35, cfg.Detection.Confidence, 1e-9)
	assert.Equal(t, 50, cfg.Tracking.MaxHistory)
	assert.Equal(t, 120, cfg.Tracking.IdleEvictionFrames)
	assert.Equal(t, []int{255, 0, 0}, cfg.Overlay.TrailColor)
	assert.Equal(t, []string{"mp4v"}, cfg.Output.Codecs)
	assert.True(t, cfg.Output.FFmpegFallback)
	assert.Empty(t, cfg.LedgerPath())
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "detection:\n  confidence: 0.3\n")
	t.Setenv("TRAILCAM_DETECTION_CONFIDENCE", "0.8")

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, cfg.Detection.Confidence, 1e-9)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"confidence", "detection:\n  confidence: 1.5\n", config.ErrInvalidConfidence},
		{"history", "tracking:\n  max_history: 0\n", config.ErrInvalidHistory},
		{"color", "overlay:\n  trail_color: [1, 2]\n", config.ErrInvalidColor},
		{"step", "progress:\n  step_percent: 0\n", config.ErrInvalidStep},
		{"device", "model:\n  device: tpu\n", config.ErrInvalidDevice},
		{"codecs", "output:\n  codecs: []\n", config.ErrNoCodecs},
		{"filename", "output:\n  filename: a/b.mp4\n", config.ErrInvalidFilename},
		{"format", "logging:\n  format: xml\n", config.ErrInvalidLogFormat},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.LoadConfig(writeConfig(t, tt.content))
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoadConfig_MalformedFile(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(writeConfig(t, "detection: [unterminated\n"))
	require.Error(t, err)
}
