package config

import "github.com/spf13/viper"

// Input and model defaults.
const (
	DefaultVideo     = "media/853889-hd_1920_1080_25fps.mp4"
	DefaultModelPath = "model/yolo11s.onnx"
	DefaultModelDir  = "model"
	DefaultInputSize = 640
	DefaultDevice    = "auto"
)

// Detection defaults.
const (
	DefaultConfidence   = 0.5
	DefaultNMSThreshold = 0.45
	DefaultTracker      = "bytetrack.yaml"
)

// Tracking and overlay defaults.
const (
	DefaultMaxHistory     = 30
	DefaultTrailThickness = 2
	DefaultBoxThickness   = 2
	DefaultFontScale      = 0.5
)

// DefaultTrailColor is R, G, B.
var DefaultTrailColor = []int{230, 230, 230}

// Output defaults.
const (
	DefaultResultsDir   = "results"
	DefaultFilename     = "result.mp4"
	DefaultFFmpegBinary = "ffmpeg"
	DefaultStepPercent  = 1
)

// DefaultCodecs is tried in order.
var DefaultCodecs = []string{"avc1", "mp4v", "XVID"}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("input.video", DefaultVideo)

	viperCfg.SetDefault("model.path", DefaultModelPath)
	viperCfg.SetDefault("model.size", "")
	viperCfg.SetDefault("model.dir", DefaultModelDir)
	viperCfg.SetDefault("model.names", "")
	viperCfg.SetDefault("model.input_size", DefaultInputSize)
	viperCfg.SetDefault("model.device", DefaultDevice)

	viperCfg.SetDefault("detection.confidence", DefaultConfidence)
	viperCfg.SetDefault("detection.nms_threshold", DefaultNMSThreshold)
	viperCfg.SetDefault("detection.tracker", DefaultTracker)

	viperCfg.SetDefault("tracking.max_history", DefaultMaxHistory)
	viperCfg.SetDefault("tracking.idle_eviction_frames", 0)

	viperCfg.SetDefault("overlay.trail_color", DefaultTrailColor)
	viperCfg.SetDefault("overlay.trail_thickness", DefaultTrailThickness)
	viperCfg.SetDefault("overlay.box_thickness", DefaultBoxThickness)
	viperCfg.SetDefault("overlay.font_scale", DefaultFontScale)

	viperCfg.SetDefault("output.results_dir", DefaultResultsDir)
	viperCfg.SetDefault("output.filename", DefaultFilename)
	viperCfg.SetDefault("output.codecs", DefaultCodecs)
	viperCfg.SetDefault("output.ffmpeg_fallback", false)
	viperCfg.SetDefault("output.ffmpeg_binary", DefaultFFmpegBinary)

	viperCfg.SetDefault("progress.step_percent", DefaultStepPercent)

	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.format", "text")

	viperCfg.SetDefault("metrics.listen", "")

	viperCfg.SetDefault("history.database", "")
}
